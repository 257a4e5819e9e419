package credential

import (
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func useArrayKeyring(t *testing.T, items ...keyring.Item) {
	t.Helper()

	ring := keyring.NewArrayKeyring(items)
	prev := openKeyring
	openKeyring = func() (keyring.Keyring, error) { return ring, nil }
	t.Cleanup(func() { openKeyring = prev })
}

func TestGetPrefersKeyring(t *testing.T) {
	useArrayKeyring(t, keyring.Item{Key: KeyAIAPIKey, Data: []byte("from-ring")})
	t.Setenv("TRIAGE_AI_API_KEY", "from-env")

	v, err := Get(KeyAIAPIKey)
	require.NoError(t, err)
	assert.Equal(t, "from-ring", v)
}

func TestGetFallsBackToEnv(t *testing.T) {
	useArrayKeyring(t)
	t.Setenv("TRIAGE_IMAP_PASSWORD", "hunter2")

	v, err := Get(KeyIMAPPassword)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", v)
}

func TestGetMissing(t *testing.T) {
	useArrayKeyring(t)
	t.Setenv("TRIAGE_AI_API_KEY", "")

	_, err := Get(KeyAIAPIKey)
	assert.ErrorIs(t, err, ErrMissing)
}

func TestSetThenDelete(t *testing.T) {
	useArrayKeyring(t)

	require.NoError(t, Set(KeyIMAPPassword, "secret"))
	v, err := Get(KeyIMAPPassword)
	require.NoError(t, err)
	assert.Equal(t, "secret", v)

	require.NoError(t, Delete(KeyIMAPPassword))
	t.Setenv("TRIAGE_IMAP_PASSWORD", "")
	_, err = Get(KeyIMAPPassword)
	assert.ErrorIs(t, err, ErrMissing)
}
