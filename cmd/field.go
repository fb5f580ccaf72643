package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/tagger/internal/models"
	"github.com/joescharf/tagger/internal/output"
	"github.com/joescharf/tagger/internal/tagfield"
)

var (
	fieldName   string
	fieldSource string
)

var fieldCmd = &cobra.Command{
	Use:   "field",
	Short: "Manage tag fields",
	Long: `Create and list tag fields.

A field's source setting selects its tag group, e.g. --source taggroup:3.
A field without a valid source is kept, but saving it never changes tags.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return fieldListRun()
	},
}

var fieldListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List all fields",
	RunE: func(cmd *cobra.Command, args []string) error {
		return fieldListRun()
	},
}

var fieldCreateCmd = &cobra.Command{
	Use:   "create <handle>",
	Short: "Create a new tag field",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return fieldCreateRun(args[0], fieldName, fieldSource)
	},
}

func init() {
	fieldCreateCmd.Flags().StringVar(&fieldName, "name", "", "Display name (default: handle)")
	fieldCreateCmd.Flags().StringVar(&fieldSource, "source", "", "Source setting, e.g. taggroup:1 (default: field.default_source)")
	fieldCmd.AddCommand(fieldListCmd)
	fieldCmd.AddCommand(fieldCreateCmd)
	rootCmd.AddCommand(fieldCmd)
}

func fieldListRun() error {
	s, err := getStore()
	if err != nil {
		return err
	}

	fields, err := s.ListFields(context.Background())
	if err != nil {
		return err
	}

	if len(fields) == 0 {
		ui.Info("No fields. Use 'tagger field create <handle> --source taggroup:<id>' to create one.")
		return nil
	}

	table := ui.Table([]string{"ID", "Handle", "Name", "Source"})
	for _, f := range fields {
		_, ok := tagfield.ParseSource(f.Source)
		_ = table.Append([]string{
			strconv.FormatInt(f.ID, 10),
			output.Cyan(f.Handle),
			f.Name,
			output.SourceColor(f.Source, ok),
		})
	}
	_ = table.Render()
	return nil
}

func fieldCreateRun(handle, name, source string) error {
	if source == "" {
		source = viper.GetString("field.default_source")
	}
	s, err := getStore()
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would create field: %s (source %q)", handle, source)
		return nil
	}

	f := &models.Field{Handle: handle, Name: name, Source: source}
	if err := s.CreateField(context.Background(), f); err != nil {
		return fmt.Errorf("create field: %w", err)
	}

	if _, ok := tagfield.ParseSource(source); !ok {
		ui.Warning("Field %s is not set to a valid source; saves will not change its tags", f.Handle)
	}
	ui.Success("Created field: %s", output.Cyan(f.Handle))
	return nil
}
