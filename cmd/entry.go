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

var (
	entryField string
	entryClear bool
)

var entryCmd = &cobra.Command{
	Use:   "entry",
	Short: "Manage entries and their tags",
	RunE: func(cmd *cobra.Command, args []string) error {
		return entryListRun()
	},
}

var entryListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List all entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		return entryListRun()
	},
}

var entryCreateCmd = &cobra.Command{
	Use:   "create <title>",
	Short: "Create a new entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return entryCreateRun(args[0])
	},
}

var entryShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show an entry and the tags on each field",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return entryShowRun(args[0])
	},
}

var entryTagCmd = &cobra.Command{
	Use:   "tag <id> [value...]",
	Short: "Replace the tags on one of an entry's fields",
	Long: `Replace the tags on one of an entry's fields.

Each value is an existing tag ID or "new:<name>". A "new:" value uses the
group's tag with that name, creating it when missing. Values that cannot be
resolved are skipped. The saved set replaces whatever the field held before.

  tagger entry tag 4 --field topics 12 new:sqlite new:"Go tooling"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return entryTagRun(args[0], entryField, args[1:], entryClear)
	},
}

func init() {
	entryTagCmd.Flags().StringVarP(&entryField, "field", "f", "", "Field handle (required)")
	entryTagCmd.Flags().BoolVar(&entryClear, "clear", false, "Remove all tags when no values are given")
	_ = entryTagCmd.MarkFlagRequired("field")

	entryCmd.AddCommand(entryListCmd)
	entryCmd.AddCommand(entryCreateCmd)
	entryCmd.AddCommand(entryShowCmd)
	entryCmd.AddCommand(entryTagCmd)
	rootCmd.AddCommand(entryCmd)
}

func entryListRun() error {
	s, err := getStore()
	if err != nil {
		return err
	}

	entries, err := s.ListEntries(context.Background())
	if err != nil {
		return err
	}

	if len(entries) == 0 {
		ui.Info("No entries. Use 'tagger entry create <title>' to create one.")
		return nil
	}

	table := ui.Table([]string{"ID", "Title", "Updated"})
	for _, e := range entries {
		_ = table.Append([]string{
			strconv.FormatInt(e.ID, 10),
			output.Cyan(e.Title),
			e.UpdatedAt.Format("2006-01-02 15:04"),
		})
	}
	_ = table.Render()
	return nil
}

func entryCreateRun(title string) error {
	s, err := getStore()
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would create entry: %s", title)
		return nil
	}

	e := &models.Entry{Title: title}
	if err := s.CreateEntry(context.Background(), e); err != nil {
		return fmt.Errorf("create entry: %w", err)
	}

	ui.Success("Created entry %s (id %d)", output.Cyan(e.Title), e.ID)
	return nil
}

func entryShowRun(rawID string) error {
	id, err := parseID("entry", rawID)
	if err != nil {
		return err
	}
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	e, err := s.GetEntry(ctx, id)
	if err != nil {
		return err
	}
	fields, err := s.ListFields(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(ui.Out, "%s  %s\n", output.Cyan(e.Title), e.UpdatedAt.Format("2006-01-02 15:04"))
	if len(fields) == 0 {
		return nil
	}

	fmt.Fprintln(ui.Out)
	table := ui.Table([]string{"Field", "Tags"})
	for _, f := range fields {
		tags, err := s.GetRelatedTags(ctx, f.ID, e.ID)
		if err != nil {
			return err
		}
		_ = table.Append([]string{f.Handle, output.TagNames(tagNames(tags))})
	}
	_ = table.Render()
	return nil
}

func entryTagRun(rawID, handle string, values []string, clearAll bool) error {
	id, err := parseID("entry", rawID)
	if err != nil {
		return err
	}
	if len(values) == 0 && !clearAll {
		return fmt.Errorf("no tag values given (use --clear to remove all tags)")
	}
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	if _, err := s.GetEntry(ctx, id); err != nil {
		return err
	}
	f, err := s.GetFieldByHandle(ctx, handle)
	if err != nil {
		return err
	}
	ft := tagfield.NewFieldType(f, s, logger)

	if _, ok := ft.GroupID(); !ok {
		ui.Warning("Field %s is not set to a valid source; tags left unchanged", f.Handle)
		return nil
	}

	if dryRun {
		ui.DryRunMsg("Would set %s on entry %d to: %v", f.Handle, id, values)
		return nil
	}

	raw := values
	if raw == nil {
		raw = []string{}
	}
	res, err := ft.AfterEntrySave(ctx, id, raw)
	if err != nil {
		return err
	}
	if err := s.TouchEntry(ctx, id); err != nil {
		return err
	}

	tags, err := s.GetRelatedTags(ctx, f.ID, id)
	if err != nil {
		return err
	}
	ui.VerboseLog("Resolved tag IDs: %v", res.TagIDs)
	ui.Success("Saved %d tag(s) on %s: %s", len(tags), f.Handle, output.TagNames(tagNames(tags)))
	return nil
}

func tagNames(tags []*models.Tag) []string {
	names := make([]string, len(tags))
	for i, t := range tags {
		names[i] = t.Name
	}
	return names
}
