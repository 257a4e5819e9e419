// Package setup asks for the secrets the triage tool needs and stores
// them in the system keyring.
package setup

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/nhle/inbox-triage/internal/credential"
	"github.com/nhle/inbox-triage/internal/model"
)

// Answers holds what the user entered.
type Answers struct {
	Backend  string
	Host     string
	Port     string
	Username string
	Password string
	TLS      bool
	APIKey   string
	Model    string
}

// AnswersFrom pre-fills answers from the current configuration.
func AnswersFrom(cfg *model.AppConfig) *Answers {
	return &Answers{
		Backend:  cfg.Mail.Backend,
		Host:     cfg.Mail.IMAP.Host,
		Port:     cfg.Mail.IMAP.Port,
		Username: cfg.Mail.IMAP.Username,
		TLS:      cfg.Mail.IMAP.TLS,
		Model:    cfg.AI.Model,
	}
}

// NewForm builds the setup form writing into a.
func NewForm(a *Answers) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Mail backend").
				Options(
					huh.NewOption("IMAP - any standard mailbox", "imap"),
					huh.NewOption("Gmail - OAuth via the Gmail API", "gmail"),
				).
				Value(&a.Backend),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("IMAP Host").
				Description("IMAP server hostname").
				Placeholder("imap.example.com").
				Value(&a.Host).
				Validate(validateRequired("IMAP Host")),
			huh.NewInput().
				Title("IMAP Port").
				Description("IMAP server port (e.g., 993)").
				Placeholder("993").
				Value(&a.Port).
				Validate(validatePort),
			huh.NewInput().
				Title("Username").
				Description("Email account username").
				Placeholder("user@example.com").
				Value(&a.Username).
				Validate(validateRequired("Username")),
			huh.NewInput().
				Title("Password").
				Description("Email account password or app password").
				EchoMode(huh.EchoModePassword).
				Value(&a.Password).
				Validate(validateRequired("Password")),
			huh.NewConfirm().
				Title("Use TLS").
				Description("Enable TLS encryption for connections").
				Affirmative("Yes").
				Negative("No").
				Value(&a.TLS),
		).WithHideFunc(func() bool { return a.Backend != "imap" }),
		huh.NewGroup(
			huh.NewInput().
				Title("AI API key").
				Description("Key for the OpenAI-compatible endpoint").
				EchoMode(huh.EchoModePassword).
				Value(&a.APIKey).
				Validate(validateRequired("AI API key")),
			huh.NewInput().
				Title("Model").
				Placeholder("gpt-4.1-mini").
				Value(&a.Model),
		),
	)
}

// Apply copies the answers into cfg and stores the secrets.
func Apply(a *Answers, cfg *model.AppConfig) error {
	cfg.Mail.Backend = a.Backend
	if strings.TrimSpace(a.Model) != "" {
		cfg.AI.Model = strings.TrimSpace(a.Model)
	}

	if a.Backend == "imap" {
		cfg.Mail.IMAP.Host = strings.TrimSpace(a.Host)
		cfg.Mail.IMAP.Port = strings.TrimSpace(a.Port)
		cfg.Mail.IMAP.Username = strings.TrimSpace(a.Username)
		cfg.Mail.IMAP.TLS = a.TLS
		if err := credential.Set(credential.KeyIMAPPassword, a.Password); err != nil {
			return fmt.Errorf("saving IMAP password: %w", err)
		}
	}

	if err := credential.Set(credential.KeyAIAPIKey, a.APIKey); err != nil {
		return fmt.Errorf("saving AI key: %w", err)
	}
	return nil
}

func validateRequired(fieldName string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
		return nil
	}
}

func validatePort(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("port is required")
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return fmt.Errorf("port must be a number")
		}
	}
	return nil
}
