package cli

import (
	"strings"

	"pagecraft/internal/editor"
	"pagecraft/internal/store"

	"github.com/spf13/cobra"
)

func newExportCmd(app *App) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the document as plain JSON (stdout unless --out)",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSession(cmd, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			doc := s.ed.Export()
			if out = strings.TrimSpace(out); out == "" {
				return writeOut(cmd, app, map[string]any{"data": doc})
			}
			if err := store.ExportJSON(out, &doc); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{
				"data": map[string]any{"path": out, "documentId": doc.ID, "instances": doc.Root.Count()},
			})
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "Write to this file")
	return cmd
}

func newImportCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <document.json>",
		Short: "Replace the stored document with an exported one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := store.ImportJSON(args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			s, err := loadSession(cmd, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			ed, err := editor.FromDocument(*doc, s.opts)
			if err != nil {
				return writeErr(cmd, err)
			}
			s.ed = ed
			if err := s.commit(cmd.Context(), "document.import", ed.DocumentID(), map[string]any{"path": args[0]}); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{
				"data": map[string]any{"documentId": ed.DocumentID(), "instances": ed.Root().Count()},
			})
		},
	}
	return cmd
}
