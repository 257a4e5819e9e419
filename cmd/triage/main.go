package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
)

// Options are the flags shared by every command.
type Options struct {
	Config   string `short:"c" long:"config" description:"Path to the config file" value-name:"FILE"`
	EnvFile  string `long:"env-file" description:"Load environment variables from FILE" value-name:"FILE"`
	LogLevel string `short:"l" long:"log-level" description:"Override the configured log level" choice:"debug" choice:"info" choice:"warn" choice:"error"`
}

var opts Options

func main() {
	parser := flags.NewParser(&opts, flags.Default)
	parser.ShortDescription = "inbox-triage"
	parser.LongDescription = "Classifies mail and turns it into tasks."

	commands := []struct {
		name, short, long string
		data              any
	}{
		{"run", "Extract tasks from stored emails", "Run the triage pipeline over the given email ids.", &runCommand{}},
		{"sync", "Sync the inbox once", "Fetch the newest emails and triage every unprocessed one.", &syncCommand{}},
		{"watch", "Sync the inbox on a schedule", "Sync, then keep syncing every poll interval until interrupted.", &watchCommand{}},
		{"folders", "List mail folders", "List the folders of the configured mailbox.", &foldersCommand{}},
		{"tasks", "List extracted tasks", "List tasks stored by previous runs.", &tasksCommand{}},
		{"dedup", "Remove duplicate summaries", "Ask the model which fyi and newsletter summaries repeat each other and delete the repeats.", &dedupCommand{}},
		{"stats", "Show classification accuracy", "Compare AI categories with user corrections.", &statsCommand{}},
		{"setup", "Configure mailbox and AI access", "Store the mailbox password and AI key in the system keyring.", &setupCommand{}},
	}
	for _, c := range commands {
		if _, err := parser.AddCommand(c.name, c.short, c.long, c.data); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}

	// Keyring and config take precedence; a .env file only fills gaps.
	_ = godotenv.Load()

	if _, err := parser.Parse(); err != nil {
		var fe *flags.Error
		if errors.As(err, &fe) && fe.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}
}
