package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/joescharf/tagger/internal/models"
	"github.com/joescharf/tagger/internal/output"
	"github.com/joescharf/tagger/internal/tagfield"
)

var groupHandle string

var groupCmd = &cobra.Command{
	Use:   "group",
	Short: "Manage tag groups",
	Long:  "Create, list, and delete the tag groups that scope tag fields.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return groupListRun()
	},
}

var groupListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List all tag groups",
	RunE: func(cmd *cobra.Command, args []string) error {
		return groupListRun()
	},
}

var groupCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a new tag group",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return groupCreateRun(args[0], groupHandle)
	},
}

var groupDeleteCmd = &cobra.Command{
	Use:     "delete <id>",
	Aliases: []string{"rm"},
	Short:   "Delete a tag group and all of its tags",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return groupDeleteRun(args[0])
	},
}

func init() {
	groupCreateCmd.Flags().StringVar(&groupHandle, "handle", "", "Group handle (default: derived from name)")
	groupCmd.AddCommand(groupListCmd)
	groupCmd.AddCommand(groupCreateCmd)
	groupCmd.AddCommand(groupDeleteCmd)
	rootCmd.AddCommand(groupCmd)
}

func parseID(kind, raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s id: %q", kind, raw)
	}
	return id, nil
}

func groupListRun() error {
	s, err := getStore()
	if err != nil {
		return err
	}

	groups, err := s.ListTagGroups(context.Background())
	if err != nil {
		return err
	}

	if len(groups) == 0 {
		ui.Info("No tag groups. Use 'tagger group create <name>' to create one.")
		return nil
	}

	table := ui.Table([]string{"ID", "Name", "Handle", "Source", "Created"})
	for _, g := range groups {
		_ = table.Append([]string{
			strconv.FormatInt(g.ID, 10),
			output.Cyan(g.Name),
			g.Handle,
			tagfield.FormatSource(g.ID),
			g.CreatedAt.Format("2006-01-02"),
		})
	}
	_ = table.Render()
	return nil
}

func groupCreateRun(name, handle string) error {
	s, err := getStore()
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would create tag group: %s", name)
		return nil
	}

	g := &models.TagGroup{Name: name, Handle: handle}
	if err := s.CreateTagGroup(context.Background(), g); err != nil {
		return fmt.Errorf("create tag group: %w", err)
	}

	ui.Success("Created tag group %s (source %s)", output.Cyan(g.Name), tagfield.FormatSource(g.ID))
	return nil
}

func groupDeleteRun(rawID string) error {
	id, err := parseID("group", rawID)
	if err != nil {
		return err
	}
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	g, err := s.GetTagGroup(ctx, id)
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would delete tag group: %s", g.Name)
		return nil
	}

	if err := s.DeleteTagGroup(ctx, id); err != nil {
		return fmt.Errorf("delete tag group: %w", err)
	}

	ui.Success("Deleted tag group: %s", g.Name)
	return nil
}
