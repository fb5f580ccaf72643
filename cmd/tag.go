package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/joescharf/tagger/internal/models"
	"github.com/joescharf/tagger/internal/output"
)

var tagGroupID int64

var tagCmd = &cobra.Command{
	Use:   "tag",
	Short: "Manage tags",
	Long:  "Create, list, and delete tags within a tag group.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return tagListRun(tagGroupID)
	},
}

var tagListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List the tags in a group",
	RunE: func(cmd *cobra.Command, args []string) error {
		return tagListRun(tagGroupID)
	},
}

var tagCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a new tag",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return tagCreateRun(tagGroupID, args[0])
	},
}

var tagDeleteCmd = &cobra.Command{
	Use:     "delete <id>",
	Aliases: []string{"rm"},
	Short:   "Delete a tag",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return tagDeleteRun(args[0])
	},
}

func init() {
	tagCmd.PersistentFlags().Int64VarP(&tagGroupID, "group", "g", 0, "Tag group ID")
	tagCmd.AddCommand(tagListCmd)
	tagCmd.AddCommand(tagCreateCmd)
	tagCmd.AddCommand(tagDeleteCmd)
	rootCmd.AddCommand(tagCmd)
}

func tagListRun(groupID int64) error {
	if groupID <= 0 {
		return fmt.Errorf("--group is required")
	}
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	g, err := s.GetTagGroup(ctx, groupID)
	if err != nil {
		return err
	}
	tags, err := s.ListTags(ctx, groupID)
	if err != nil {
		return err
	}

	if len(tags) == 0 {
		ui.Info("No tags in %s. Use 'tagger tag create <name> --group %d' to create one.", g.Name, g.ID)
		return nil
	}

	table := ui.Table([]string{"ID", "Name", "Created"})
	for _, t := range tags {
		_ = table.Append([]string{
			strconv.FormatInt(t.ID, 10),
			output.Cyan(t.Name),
			t.CreatedAt.Format("2006-01-02"),
		})
	}
	_ = table.Render()
	return nil
}

func tagCreateRun(groupID int64, name string) error {
	if groupID <= 0 {
		return fmt.Errorf("--group is required")
	}
	s, err := getStore()
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would create tag: %s", name)
		return nil
	}

	tag := &models.Tag{GroupID: groupID, Name: name}
	if err := s.CreateTag(context.Background(), tag); err != nil {
		return fmt.Errorf("create tag: %w", err)
	}

	ui.Success("Created tag %s (id %d)", output.Cyan(tag.Name), tag.ID)
	return nil
}

func tagDeleteRun(rawID string) error {
	id, err := parseID("tag", rawID)
	if err != nil {
		return err
	}
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	tag, err := s.GetTag(ctx, id)
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would delete tag: %s", tag.Name)
		return nil
	}

	if err := s.DeleteTag(ctx, id); err != nil {
		return fmt.Errorf("delete tag: %w", err)
	}

	ui.Success("Deleted tag: %s", tag.Name)
	return nil
}
