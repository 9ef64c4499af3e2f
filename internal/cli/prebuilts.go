package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

func newPrebuiltsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "prebuilts",
		Aliases: []string{"prebuilt"},
		Short:   "Prebuilt (master) commands",
	}
	cmd.AddCommand(newPrebuiltsSaveCmd(app))
	cmd.AddCommand(newPrebuiltsListCmd(app))
	cmd.AddCommand(newPrebuiltsShowCmd(app))
	cmd.AddCommand(newPrebuiltsInsertCmd(app))
	cmd.AddCommand(newPrebuiltsDeleteCmd(app))
	return cmd
}

func newPrebuiltsSaveCmd(app *App) *cobra.Command {
	var (
		name     string
		category string
	)

	cmd := &cobra.Command{
		Use:   "save <instance-id>",
		Short: "Save an instance as a prebuilt and make it the master",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSession(cmd, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			p, err := s.ed.SaveAsPrebuilt(strings.TrimSpace(args[0]), name, category)
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := s.commit(cmd.Context(), "prebuilt.save", p.ID, map[string]any{"masterInstanceId": args[0], "name": p.Name}); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": p})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Prebuilt name")
	cmd.Flags().StringVar(&category, "category", "", "Prebuilt category")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newPrebuiltsListCmd(app *App) *cobra.Command {
	var category string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List prebuilts",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSession(cmd, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			out := s.ed.Prebuilts()
			if category = strings.TrimSpace(category); category != "" {
				filtered := out[:0]
				for _, p := range out {
					if strings.EqualFold(p.Category, category) {
						filtered = append(filtered, p)
					}
				}
				out = filtered
			}
			return writeOut(cmd, app, map[string]any{"data": out})
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "Only prebuilts of this category")
	return cmd
}

func newPrebuiltsShowCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <prebuilt-id>",
		Short: "Show a prebuilt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSession(cmd, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			p, ok := s.ed.Prebuilt(strings.TrimSpace(args[0]))
			if !ok {
				return writeErr(cmd, errNotFound("prebuilt", args[0]))
			}
			return writeOut(cmd, app, map[string]any{"data": p})
		},
	}
	return cmd
}

func newPrebuiltsInsertCmd(app *App) *cobra.Command {
	var (
		parentID string
		index    int
	)

	cmd := &cobra.Command{
		Use:   "insert <prebuilt-id>",
		Short: "Insert a linked instance of a prebuilt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSession(cmd, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			masterID := strings.TrimSpace(args[0])
			id, err := s.ed.InsertPrebuilt(masterID, parentID, index)
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := s.commit(cmd.Context(), "prebuilt.insert", id, map[string]any{"masterId": masterID, "parentId": parentID}); err != nil {
				return writeErr(cmd, err)
			}
			inst, _ := s.ed.FindInstance(id)
			link, _ := s.ed.Link(id)
			return writeOut(cmd, app, map[string]any{"data": map[string]any{"instance": inst, "link": link}})
		},
	}

	cmd.Flags().StringVar(&parentID, "parent", "", "Parent instance id (default: root)")
	cmd.Flags().IntVar(&index, "index", -1, "Child index (negative appends)")
	return cmd
}

func newPrebuiltsDeleteCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <prebuilt-id>",
		Short: "Delete a prebuilt that no instance links to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSession(cmd, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			id := strings.TrimSpace(args[0])
			if err := s.ed.DeletePrebuilt(id); err != nil {
				return writeErr(cmd, err)
			}
			if err := s.commit(cmd.Context(), "prebuilt.delete", id, map[string]any{"id": id}); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]any{"id": id, "changed": true}})
		},
	}
	return cmd
}

func newLinksCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "links",
		Aliases: []string{"link"},
		Short:   "Instance link commands",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List instance links",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSession(cmd, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": s.ed.Links()})
		},
	}

	showCmd := &cobra.Command{
		Use:   "show <instance-id>",
		Short: "Show the link of an instance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSession(cmd, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			l, ok := s.ed.Link(strings.TrimSpace(args[0]))
			if !ok {
				return writeErr(cmd, errNotFound("link", args[0]))
			}
			return writeOut(cmd, app, map[string]any{"data": l})
		},
	}

	unlinkCmd := &cobra.Command{
		Use:   "unlink <instance-id>",
		Short: "Detach an instance from its prebuilt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSession(cmd, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			id := strings.TrimSpace(args[0])
			if !s.ed.Unlink(id) {
				return writeOut(cmd, app, map[string]any{"data": unchanged(id)})
			}
			if err := s.commit(cmd.Context(), "link.remove", id, map[string]any{"id": id}); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]any{"id": id, "changed": true}})
		},
	}

	cmd.AddCommand(listCmd, showCmd, unlinkCmd)
	return cmd
}
