package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"golang.org/x/term"

	"github.com/Strob0t/taskbridge/internal/adapter/postgres"
	"github.com/Strob0t/taskbridge/internal/config"
	"github.com/Strob0t/taskbridge/internal/port/papers"
)

// runAdmin dispatches admin subcommands (migrate, put-translation, list-translations).
func runAdmin(args []string) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "--help" {
		printAdminHelp()
		return nil
	}

	switch args[0] {
	case "migrate":
		return runAdminMigrate(args[1:])
	case "put-translation":
		return runAdminPutTranslation(args[1:])
	case "list-translations":
		return runAdminListTranslations(args[1:])
	default:
		printAdminHelp()
		return fmt.Errorf("unknown admin command: %s", args[0])
	}
}

func printAdminHelp() {
	fmt.Fprintf(os.Stderr, `Usage: taskbridge admin <command> [options]

Commands:
  migrate             Apply database migrations and print the schema version
  put-translation     Store a paper translation served by the translator tool
  list-translations   List stored translations
  help                Show this help message

Examples:
  taskbridge admin migrate
  taskbridge admin put-translation --paper-id 40668760 --lang zh-CN --file paper.txt
  cat paper.txt | taskbridge admin put-translation --paper-id 40668760 --lang en
  taskbridge admin list-translations --limit 20
`)
}

func loadAdminConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if cfg.Postgres.DSN == "" {
		return nil, fmt.Errorf("postgres dsn is not configured (DATABASE_URL)")
	}
	return cfg, nil
}

func loadPaperStore(ctx context.Context) (*postgres.PaperStore, func(), error) {
	cfg, err := loadAdminConfig()
	if err != nil {
		return nil, nil, err
	}
	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	return postgres.NewPaperStore(pool, cfg.Postgres.QueryTimeout), pool.Close, nil
}

func runAdminMigrate(args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadAdminConfig()
	if err != nil {
		return err
	}

	ctx := context.Background()
	if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	version, err := postgres.MigrationVersion(ctx, cfg.Postgres.DSN)
	if err != nil {
		return fmt.Errorf("migration version: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Schema at version %d\n", version)
	return nil
}

func runAdminPutTranslation(args []string) error {
	fs := flag.NewFlagSet("put-translation", flag.ContinueOnError)
	paperID := fs.Int64("paper-id", 0, "numeric paper id (required)")
	lang := fs.String("lang", "zh-CN", "translation language")
	url := fs.String("url", "", "link to the translated document")
	file := fs.String("file", "", "file holding the translation text (stdin if empty)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *paperID <= 0 {
		return fmt.Errorf("--paper-id is required")
	}

	text, err := readTranslation(*file)
	if err != nil {
		return fmt.Errorf("read translation: %w", err)
	}
	if text == "" {
		return fmt.Errorf("translation text is empty")
	}

	ctx := context.Background()
	store, cleanup, err := loadPaperStore(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := store.UpsertTranslation(ctx, &papers.Translation{
		PaperID: *paperID,
		Lang:    *lang,
		Text:    text,
		URL:     *url,
	}); err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Stored translation %d/%s (%d bytes)\n", *paperID, *lang, len(text))
	return nil
}

func runAdminListTranslations(args []string) error {
	fs := flag.NewFlagSet("list-translations", flag.ContinueOnError)
	limit := fs.Int("limit", 50, "maximum rows to list")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx := context.Background()
	store, cleanup, err := loadPaperStore(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	list, err := store.ListTranslations(ctx, *limit)
	if err != nil {
		return err
	}

	if len(list) == 0 {
		fmt.Println("No translations found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "PAPER_ID\tLANG\tURL")
	for i := range list {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\n", list[i].PaperID, list[i].Lang, list[i].URL)
	}
	return w.Flush()
}

// readTranslation reads the text from path, or from stdin when path is
// empty. An interactive stdin gets a prompt so the command does not look hung.
func readTranslation(path string) (string, error) {
	if path != "" {
		b, err := os.ReadFile(path) //nolint:gosec // G304: operator-supplied path
		return string(b), err
	}
	if term.IsTerminal(int(os.Stdin.Fd())) { //nolint:gosec // fd fits in int
		fmt.Fprintln(os.Stderr, "Enter translation text, finish with Ctrl-D:")
	}
	b, err := io.ReadAll(os.Stdin)
	return string(b), err
}
