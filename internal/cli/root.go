package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"pagecraft/internal/catalog"
	"pagecraft/internal/editor"
	"pagecraft/internal/format"
	"pagecraft/internal/store"

	"github.com/spf13/cobra"
)

type App struct {
	Dir        string
	Project    string
	Catalog    string
	PrettyJSON bool
	Format     string
	LogLevel   string
}

func NewRootCmd() *cobra.Command {
	app := &App{}

	cmd := &cobra.Command{
		Use:          "pagecraft",
		Short:        "Pagecraft page-builder editing core",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # Create a document in ./.pagecraft
  pagecraft init

  # Build a page from the catalog
  pagecraft instances add-type Section
  pagecraft tree --text

  # Apply an assistant response
  pagecraft build response.json

  # Direct instance lookup (shortcut for: pagecraft instances show <inst-id>)
  pagecraft inst-ab12cd34
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.PersistentFlags().StringVar(&app.Dir, "dir", envOr("PAGECRAFT_DIR", ""), "Path to store dir (overrides project resolution)")
	cmd.PersistentFlags().StringVar(&app.Project, "project", envOr("PAGECRAFT_PROJECT", ""), "Project name (stored under the config dir)")
	cmd.PersistentFlags().StringVar(&app.Catalog, "catalog", envOr("PAGECRAFT_CATALOG", ""), "YAML catalog merged over the built-in one")
	cmd.PersistentFlags().BoolVar(&app.PrettyJSON, "pretty", false, "Pretty-print JSON output")
	cmd.PersistentFlags().StringVar(&app.Format, "format", envOr("PAGECRAFT_FORMAT", "json"), "Output format (json|yaml)")
	cmd.PersistentFlags().StringVar(&app.LogLevel, "log-level", envOr("PAGECRAFT_LOG_LEVEL", ""), "Log level on stderr (debug|info|warn|error)")

	cmd.AddCommand(newInitCmd(app))
	cmd.AddCommand(newDocsCmd(app))
	cmd.AddCommand(newTreeCmd(app))
	cmd.AddCommand(newInstancesCmd(app))
	cmd.AddCommand(newStylesCmd(app))
	cmd.AddCommand(newPrebuiltsCmd(app))
	cmd.AddCommand(newLinksCmd(app))
	cmd.AddCommand(newCopyCmd(app))
	cmd.AddCommand(newCutCmd(app))
	cmd.AddCommand(newPasteCmd(app))
	cmd.AddCommand(newDuplicateCmd(app))
	cmd.AddCommand(newUndoCmd(app))
	cmd.AddCommand(newRedoCmd(app))
	cmd.AddCommand(newBuildCmd(app))
	cmd.AddCommand(newExportCmd(app))
	cmd.AddCommand(newImportCmd(app))
	cmd.AddCommand(newEventsCmd(app))
	cmd.AddCommand(newCatalogCmd(app))
	cmd.AddCommand(newProjectsCmd(app))

	return cmd
}

// session is one loaded document plus the store it came from.
type session struct {
	store store.Store
	ed    *editor.Editor
	opts  editor.Options
	log   *slog.Logger
	fresh bool
}

func resolveDir(app *App, cfg *store.GlobalConfig) (string, error) {
	if app.Dir != "" {
		return app.Dir, nil
	}
	// 1) --project
	// 2) ~/.pagecraft/config.json currentProject
	// 3) discovered (or local) .pagecraft directory
	if app.Project != "" {
		return store.ProjectDir(app.Project)
	}
	if cfg != nil && cfg.CurrentProject != "" {
		app.Project = cfg.CurrentProject
		return store.ProjectDir(cfg.CurrentProject)
	}
	return store.DefaultDir()
}

func newLogger(cmd *cobra.Command, app *App, cfg *store.GlobalConfig) (*slog.Logger, error) {
	name := app.LogLevel
	if name == "" && cfg != nil {
		name = cfg.LogLevel
	}
	if name == "" {
		name = "warn"
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(name)); err != nil {
		return nil, fmt.Errorf("invalid log level: %q", name)
	}
	h := slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: lvl})
	return slog.New(h), nil
}

// loadSession opens the document of the resolved store. A store without a document
// yields an empty one that is created on the first commit.
func loadSession(cmd *cobra.Command, app *App) (*session, error) {
	cfg, err := store.LoadConfig()
	if err != nil {
		return nil, err
	}
	dir, err := resolveDir(app, cfg)
	if err != nil {
		return nil, err
	}
	app.Dir = dir

	log, err := newLogger(cmd, app, cfg)
	if err != nil {
		return nil, err
	}
	catPath := app.Catalog
	if catPath == "" {
		catPath = cfg.CatalogPath
	}
	cat, err := catalog.Load(catPath)
	if err != nil {
		return nil, err
	}
	opts := editor.Options{Catalog: cat, HistoryCapacity: cfg.HistoryCapacity, Logger: log}

	s := store.Store{Dir: dir}
	doc, err := s.Load(cmd.Context())
	if errors.Is(err, store.ErrNoDocument) {
		log.Debug("no document yet", "dir", dir)
		return &session{store: s, ed: editor.New(opts), opts: opts, log: log, fresh: true}, nil
	}
	if err != nil {
		return nil, err
	}
	ed, err := editor.FromDocument(*doc, opts)
	if err != nil {
		return nil, err
	}
	return &session{store: s, ed: ed, opts: opts, log: log}, nil
}

// commit saves the document and appends one event to the log.
func (s *session) commit(ctx context.Context, typ, entityID string, payload any) error {
	doc := s.ed.Export()
	if err := s.store.Save(ctx, &doc); err != nil {
		return err
	}
	if _, err := s.store.AppendEvent(ctx, typ, entityID, payload); err != nil {
		s.log.Warn("event append failed", "type", typ, "error", err)
	}
	s.fresh = false
	return nil
}

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func writeOut(cmd *cobra.Command, app *App, v any) error {
	return format.Write(cmd.OutOrStdout(), v, app.Format, app.PrettyJSON)
}

func writeErr(cmd *cobra.Command, err error) error {
	fmt.Fprintln(cmd.ErrOrStderr(), err.Error())
	return err
}
