package cli

import (
	"path/filepath"

	"pagecraft/internal/store"

	"github.com/spf13/cobra"
)

func newInitCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize local storage with an empty document",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSession(cmd, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			created := s.fresh
			if err := s.store.Ensure(); err != nil {
				return writeErr(cmd, err)
			}
			if created {
				if err := s.commit(cmd.Context(), "document.init", s.ed.DocumentID(), map[string]any{"dir": app.Dir}); err != nil {
					return writeErr(cmd, err)
				}
			}

			// Remember the project so later calls can omit --project.
			if app.Project != "" {
				cfg, err := store.LoadConfig()
				if err == nil && cfg.CurrentProject == "" {
					cfg.CurrentProject = app.Project
					_ = store.SaveConfig(cfg)
				}
			}

			return writeOut(cmd, app, map[string]any{
				"data": map[string]any{
					"dir":        app.Dir,
					"documentId": s.ed.DocumentID(),
					"created":    created,
					"sqlitePath": filepath.Join(app.Dir, "pagecraft.sqlite"),
				},
			})
		},
	}
	return cmd
}
