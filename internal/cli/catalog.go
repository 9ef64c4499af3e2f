package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

func newCatalogCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Component catalog commands",
	}

	var names bool
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List component types",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSession(cmd, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			if names {
				return writeOut(cmd, app, map[string]any{"data": s.ed.Catalog().Types()})
			}
			return writeOut(cmd, app, map[string]any{"data": s.ed.Catalog().Entries()})
		},
	}
	listCmd.Flags().BoolVar(&names, "names", false, "Only type names, in catalog order")

	showCmd := &cobra.Command{
		Use:   "show <type>",
		Short: "Show one component type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSession(cmd, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			e, ok := s.ed.Catalog().Lookup(strings.TrimSpace(args[0]))
			if !ok {
				return writeErr(cmd, errNotFound("component type", args[0]))
			}
			return writeOut(cmd, app, map[string]any{"data": e})
		},
	}

	cmd.AddCommand(listCmd, showCmd)
	return cmd
}
