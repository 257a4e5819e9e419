package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"

	"github.com/nhle/inbox-triage/internal/logging"
	"github.com/nhle/inbox-triage/internal/model"
	"github.com/nhle/inbox-triage/internal/store"
	"github.com/nhle/inbox-triage/internal/theme"
	"github.com/nhle/inbox-triage/internal/triage"
	"github.com/nhle/inbox-triage/internal/ui/progress"
	"github.com/nhle/inbox-triage/internal/ui/setup"
	"github.com/nhle/inbox-triage/internal/ui/watch"
)

// interruptContext is cancelled on SIGINT or SIGTERM.
func interruptContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func tuiUnless(plain bool) need {
	if plain {
		return 0
	}
	return needTUI
}

// runBatch runs fn behind the progress view, or plainly when plain is set.
func runBatch(ctx context.Context, plain bool, fn progress.RunFunc) (triage.BatchResult, error) {
	if plain {
		return fn(ctx, func(p triage.Progress) {
			fmt.Printf("[%d/%d] %s %s\n", p.Index, p.Total, p.EmailID, p.Category)
		})
	}

	final, err := tea.NewProgram(progress.New(ctx, fn)).Run()
	if err != nil {
		return triage.BatchResult{}, fmt.Errorf("running progress view: %w", err)
	}
	done := final.(progress.Model).Result()
	if done == nil {
		return triage.BatchResult{}, context.Canceled
	}
	return done.Result, done.Err
}

func printBatch(res triage.BatchResult, err error, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if encErr := enc.Encode(res); encErr != nil {
			return encErr
		}
		return err
	}
	fmt.Println(progress.Summary(res, err))
	for _, e := range res.Errors {
		fmt.Println(theme.ErrorStyle.Render("  " + e))
	}
	return err
}

type runCommand struct {
	Plain bool `long:"plain" description:"Print one line per email instead of the progress view"`
	JSON  bool `long:"json" description:"Print the batch result as JSON"`

	Args struct {
		IDs []string `positional-arg-name:"EMAIL-ID" required:"1"`
	} `positional-args:"yes"`
}

func (c *runCommand) Execute(_ []string) error {
	a, err := newApp(needMail | needAI | tuiUnless(c.Plain || c.JSON))
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := interruptContext()
	defer cancel()

	orch := a.orchestrator()
	res, err := runBatch(ctx, c.Plain || c.JSON, func(ctx context.Context, p triage.ProgressFunc) (triage.BatchResult, error) {
		return orch.ExtractTasks(ctx, c.Args.IDs, p)
	})
	return printBatch(res, err, c.JSON)
}

type syncCommand struct {
	Plain bool `long:"plain" description:"Print one line per email instead of the progress view"`
	JSON  bool `long:"json" description:"Print the batch result as JSON"`
}

func (c *syncCommand) Execute(_ []string) error {
	a, err := newApp(needMail | needAI | tuiUnless(c.Plain || c.JSON))
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := interruptContext()
	defer cancel()

	poller := a.poller()
	var msgFetched, msgNew int
	res, err := runBatch(ctx, c.Plain || c.JSON, func(ctx context.Context, p triage.ProgressFunc) (triage.BatchResult, error) {
		poller.OnProgress(p)
		msg := poller.SyncOnce(ctx)
		msgFetched, msgNew = msg.Fetched, msg.NewCount
		return msg.Batch, msg.Error
	})
	if !c.JSON {
		fmt.Printf("fetched %d emails, %d new\n", msgFetched, msgNew)
	}
	return printBatch(res, err, c.JSON)
}

type watchCommand struct {
	Plain bool `long:"plain" description:"Log each sync instead of showing the watch view"`
}

func (c *watchCommand) Execute(_ []string) error {
	a, err := newApp(needMail | needAI | tuiUnless(c.Plain))
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := interruptContext()
	defer cancel()

	poller := a.poller()
	poller.OnProgress(func(p triage.Progress) {
		a.logger.Info("triaged", "email", p.EmailID, "category", p.Category, "source", p.Source)
	})

	if !c.Plain {
		if _, err := tea.NewProgram(watch.New(ctx, poller, a.cfg.Mail.Folder)).Run(); err != nil {
			return fmt.Errorf("running watch view: %w", err)
		}
		return nil
	}

	a.logger.Info("watching", "folder", a.cfg.Mail.Folder, "every", a.cfg.Watch.PollInterval())
	if err := poller.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

type foldersCommand struct{}

func (c *foldersCommand) Execute(_ []string) error {
	a, err := newApp(needMail)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := interruptContext()
	defer cancel()

	folders, err := a.mail.ListFolders(ctx)
	if err != nil {
		return err
	}
	for _, f := range folders {
		name := f.Name
		if !f.Selectable {
			name = theme.HelpStyle.Render(name + " (not selectable)")
		}
		fmt.Println(name)
	}
	return nil
}

type tasksCommand struct {
	Category string `long:"category" description:"Only show tasks of this category"`
	Email    string `long:"email" description:"Only show tasks linked to this email id"`
	Limit    int    `long:"limit" default:"50" description:"Maximum number of tasks"`
	JSON     bool   `long:"json" description:"Print tasks as JSON"`
}

func (c *tasksCommand) Execute(_ []string) error {
	a, err := newApp(0)
	if err != nil {
		return err
	}
	defer a.close()

	filter := store.TaskFilter{Limit: c.Limit, SortBy: "created_at", SortDesc: true}
	if c.Category != "" {
		cat, ok := model.ParseCategory(c.Category)
		if !ok {
			return fmt.Errorf("unknown category %q", c.Category)
		}
		filter.Category = &cat
	}
	if c.Email != "" {
		filter.LinkedEmailID = &c.Email
	}

	tasks, err := a.store.GetTasks(context.Background(), filter)
	if err != nil {
		return err
	}

	if c.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(tasks)
	}
	for _, t := range tasks {
		due := ""
		if t.DueDate != nil {
			due = " due " + t.DueDate.Format("2006-01-02")
		}
		fmt.Printf("%s %s %s%s\n",
			theme.PriorityStyle(t.Priority).Render(string(t.Priority)),
			theme.CategoryStyle(t.Category).Render(string(t.Category)),
			t.Title,
			theme.HelpStyle.Render(due),
		)
	}
	return nil
}

type dedupCommand struct{}

func (c *dedupCommand) Execute(_ []string) error {
	a, err := newApp(needAI)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := interruptContext()
	defer cancel()

	report, err := triage.NewDeduper(a.ai, a.store, logging.ForComponent(a.logger, "dedup")).DeduplicateSummaries(ctx)
	if err != nil {
		return err
	}
	for cat, n := range report.Examined {
		fmt.Printf("%s: examined %d\n", theme.CategoryStyle(cat).Render(string(cat)), n)
	}
	for _, r := range report.Removed {
		fmt.Printf("  removed %s (duplicate of %s) %s\n", r.ID, r.DuplicateOf, theme.HelpStyle.Render(r.Reason))
	}
	for _, cat := range report.Skipped {
		fmt.Println(theme.ErrorStyle.Render(fmt.Sprintf("%s: skipped, model unavailable", cat)))
	}
	return nil
}

type statsCommand struct{}

func (c *statsCommand) Execute(_ []string) error {
	a, err := newApp(0)
	if err != nil {
		return err
	}
	defer a.close()

	ctx := context.Background()
	counts, err := a.store.CategoryCounts(ctx)
	if err != nil {
		return err
	}
	acc, err := a.store.CategoryAccuracy(ctx)
	if err != nil {
		return err
	}
	byCat := make(map[model.Category]store.CategoryAccuracy, len(acc))
	for _, x := range acc {
		byCat[x.Category] = x
	}

	var lines []string
	for _, cat := range model.AllCategories {
		line := fmt.Sprintf("%-26s %5d", cat, counts[cat])
		if x, ok := byCat[cat]; ok && x.Reviewed > 0 {
			line += fmt.Sprintf("   %d/%d correct (%.0f%%)", x.Correct, x.Reviewed, 100*x.Rate())
		}
		lines = append(lines, line)
	}
	fmt.Println(theme.HeaderStyle.Render("Categories"))
	fmt.Println(theme.BorderStyle.Render(strings.Join(lines, "\n")))
	return nil
}

type setupCommand struct{}

func (c *setupCommand) Execute(_ []string) error {
	cfg, _, err := loadConfig(os.Stderr)
	if err != nil {
		return err
	}

	answers := setup.AnswersFrom(cfg)
	if err := setup.NewForm(answers).Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return nil
		}
		return err
	}
	if err := setup.Apply(answers, cfg); err != nil {
		return err
	}
	if err := model.SaveConfig(configPath(), cfg); err != nil {
		return err
	}
	fmt.Println(theme.StatusBarStyle.Render("Saved " + configPath()))
	return nil
}
