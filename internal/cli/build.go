package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"pagecraft/internal/aispec"

	"github.com/spf13/cobra"
)

func newBuildCmd(app *App) *cobra.Command {
	var parentID string

	cmd := &cobra.Command{
		Use:   "build <response.json|->",
		Short: "Apply an assistant response (create, update, delete or generate-image)",
		Long: strings.TrimSpace(`
Reads an assistant response and applies it to the document.

create adds the flattened components under --parent (default: root).
update merges props and styles into existing instances.
delete removes the selected instance.
generate-image is echoed back; nothing is generated here.
`),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readResponse(cmd, args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			s, err := loadSession(cmd, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			resp, err := aispec.Parse(raw, s.ed.Catalog())
			if err != nil {
				return writeErr(cmd, err)
			}
			res, err := s.ed.ApplyResponse(resp, parentID)
			if err != nil {
				return writeErr(cmd, err)
			}
			if resp.Action != aispec.ActionGenerateImage {
				if err := s.commit(cmd.Context(), "build."+string(resp.Action), s.ed.DocumentID(), res); err != nil {
					return writeErr(cmd, err)
				}
			}
			return writeOut(cmd, app, map[string]any{"data": res})
		},
	}

	cmd.Flags().StringVar(&parentID, "parent", "", "Parent instance id for created components (default: root)")
	return cmd
}

func readResponse(cmd *cobra.Command, path string) ([]byte, error) {
	var r io.Reader
	if path == "-" {
		r = cmd.InOrStdin()
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	b, err := io.ReadAll(io.LimitReader(r, aispec.MaxResponseBytes+1))
	if err != nil {
		return nil, err
	}
	if len(b) > aispec.MaxResponseBytes {
		return nil, fmt.Errorf("response exceeds %d bytes", aispec.MaxResponseBytes)
	}
	return b, nil
}
