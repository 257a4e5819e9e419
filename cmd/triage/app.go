package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"

	"github.com/nhle/inbox-triage/internal/ai"
	"github.com/nhle/inbox-triage/internal/credential"
	"github.com/nhle/inbox-triage/internal/logging"
	"github.com/nhle/inbox-triage/internal/mail"
	"github.com/nhle/inbox-triage/internal/mail/gmailbox"
	"github.com/nhle/inbox-triage/internal/mail/imapbox"
	"github.com/nhle/inbox-triage/internal/model"
	"github.com/nhle/inbox-triage/internal/ratelimit"
	"github.com/nhle/inbox-triage/internal/store"
	"github.com/nhle/inbox-triage/internal/sync"
	"github.com/nhle/inbox-triage/internal/triage"
)

// app holds the wired components for one command invocation.
type app struct {
	cfg    *model.AppConfig
	logger *log.Logger
	store  *store.SQLiteStore
	mail   *mail.Gateway
	ai     *ai.Gateway

	logFile *os.File
}

func configPath() string {
	if opts.Config != "" {
		return opts.Config
	}
	return model.DefaultConfigPath()
}

// need selects what newApp wires besides the store.
type need uint8

const (
	needMail need = 1 << iota
	needAI

	// needTUI sends logs to a file so they do not tear the terminal view.
	needTUI
)

// loadConfig reads the config file and sets up logging.
func loadConfig(logTo io.Writer) (*model.AppConfig, *log.Logger, error) {
	if opts.EnvFile != "" {
		if err := godotenv.Load(opts.EnvFile); err != nil {
			return nil, nil, fmt.Errorf("loading env file: %w", err)
		}
	}

	cfg, err := model.LoadConfig(configPath())
	if err != nil {
		return nil, nil, err
	}
	level := cfg.Log.Level
	if opts.LogLevel != "" {
		level = opts.LogLevel
	}
	return cfg, logging.New(level, logTo), nil
}

// logFile opens the log file kept next to the database.
func logFile(cfg *model.AppConfig) (*os.File, error) {
	path := filepath.Join(filepath.Dir(cfg.Store.Path), "triage.log")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	return f, nil
}

// newApp opens the store and, when needed, the mail and AI gateways.
func newApp(n need) (*app, error) {
	cfg, logger, err := loadConfig(os.Stderr)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger}

	if n&needTUI != 0 {
		f, err := logFile(cfg)
		if err != nil {
			return nil, err
		}
		a.logFile = f
		a.logger.SetOutput(f)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Store.Path), 0o755); err != nil {
		a.close()
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	a.store, err = store.NewSQLiteStore(cfg.Store.Path)
	if err != nil {
		a.close()
		return nil, err
	}

	if n&needMail != 0 {
		res, err := newResource(cfg.Mail)
		if err != nil {
			a.close()
			return nil, err
		}
		a.mail = mail.NewGateway(res, logging.ForComponent(logger, "mail"),
			mail.WithConnectAttempts(cfg.Mail.ConnectAttempts),
			mail.WithConnectBackoff(cfg.Mail.ConnectBackoff()),
		)
	}

	if n&needAI != 0 {
		key, err := credential.Get(credential.KeyAIAPIKey)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("AI key (run setup first): %w", err)
		}
		var aiOpts []ai.Option
		if t := cfg.AI.Timeout(); t > 0 {
			aiOpts = append(aiOpts, ai.WithTimeout(t))
		}
		a.ai = ai.NewGateway(
			ai.NewOpenAICompleter(key, cfg.AI),
			ratelimit.FromConfig(cfg.Rate),
			logging.ForComponent(logger, "ai"),
			aiOpts...,
		)
	}

	return a, nil
}

func newResource(cfg model.MailConfig) (mail.Resource, error) {
	switch cfg.Backend {
	case "gmail":
		c, err := gmailbox.NewClient(cfg.Gmail)
		if err != nil {
			return nil, err
		}
		return c, nil
	case "imap", "":
		password, err := credential.Get(credential.KeyIMAPPassword)
		if err != nil {
			return nil, fmt.Errorf("IMAP password (run setup first): %w", err)
		}
		return imapbox.NewClient(cfg.IMAP, password), nil
	}
	return nil, fmt.Errorf("unknown mail backend %q", cfg.Backend)
}

func (a *app) orchestrator() *triage.Orchestrator {
	return triage.NewOrchestrator(triage.Deps{
		Store:       a.store,
		Mail:        a.mail,
		AI:          a.ai,
		Logger:      logging.ForComponent(a.logger, "orchestrator"),
		FileFolders: a.cfg.Folders.Enabled,
	})
}

func (a *app) poller() *sync.Poller {
	return sync.New(a.store, a.mail, a.orchestrator(), sync.Config{
		Folder:    a.cfg.Mail.Folder,
		BatchSize: a.cfg.Watch.BatchSize,
		Interval:  a.cfg.Watch.PollInterval(),
	}, logging.ForComponent(a.logger, "poller"))
}

func (a *app) close() {
	if a.mail != nil {
		if err := a.mail.Close(); err != nil {
			a.logger.Warn("closing mailbox", "err", err)
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("closing store", "err", err)
		}
	}
	if a.logFile != nil {
		_ = a.logFile.Close()
	}
}
