package cmd

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var (
	configForce bool
	configYAML  bool
)

// configDirFunc returns the config directory path, replaceable in tests.
var configDirFunc = defaultConfigDir

func defaultConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "tagger"), nil
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or manage configuration",
	Long: `Show or manage tagger configuration.

Settings come from ~/.config/tagger/config.yaml, overridden by TAGGER_*
environment variables (log.level is TAGGER_LOG_LEVEL). Running bare
'tagger config' is the same as 'tagger config show'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write config.yaml with the current values",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configInitRun()
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration and where each value comes from",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Open config.yaml in $EDITOR",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configEditRun()
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite existing config file")
	configShowCmd.Flags().BoolVar(&configYAML, "yaml", false, "Print effective values as YAML")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configEditCmd)
	rootCmd.AddCommand(configCmd)
}

// configKey documents one key registered in setDefaults.
type configKey struct {
	Key  string
	Help string
}

var configKeys = []configKey{
	{Key: "state_dir", Help: "Directory for tagger state (default: ~/.config/tagger)"},
	{Key: "db_path", Help: "SQLite database file (default: <state_dir>/tagger.db)"},
	{Key: "port", Help: "Port for 'tagger serve' (default: 8080)"},
	{Key: "log.level", Help: "debug, info, warn, or error (default: info)"},
	{Key: "field.default_source", Help: `Source for 'tagger field create' without --source, e.g. "taggroup:1"`},
}

// envVarFor returns the environment variable viper reads for key.
func envVarFor(key string) string {
	return "TAGGER_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// splitKey splits "log.level" into its section and leaf.
func splitKey(key string) (section, leaf string) {
	if i := strings.LastIndex(key, "."); i >= 0 {
		return key[:i], key[i+1:]
	}
	return "", key
}

// yamlScalar renders v as a single YAML value, quoting only when needed.
func yamlScalar(v any) string {
	out, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return strings.TrimSpace(string(out))
}

const configTemplate = `# tagger configuration
#
# Environment variables override this file: TAGGER_ plus the key in upper
# case with dots as underscores, e.g. TAGGER_LOG_LEVEL.
# 'tagger config show' reports where each value comes from.
{{ range $s := .Sections }}
{{ if $s.Name }}{{ $s.Name }}:
{{ end }}{{ range $s.Keys }}{{ $s.Indent }}# {{ .Help }}
{{ $s.Indent }}{{ .Leaf }}: {{ .Value }}
{{ end }}{{ end }}`

type templateKey struct {
	Leaf  string
	Help  string
	Value string
}

type templateSection struct {
	Name   string
	Indent string
	Keys   []templateKey
}

// configSections groups configKeys by section, top-level keys first.
func configSections() []templateSection {
	var sections []templateSection
	index := map[string]int{}
	add := func(name string) int {
		if i, ok := index[name]; ok {
			return i
		}
		s := templateSection{Name: name}
		if name != "" {
			s.Indent = "  "
		}
		sections = append(sections, s)
		index[name] = len(sections) - 1
		return index[name]
	}
	add("")

	for _, k := range configKeys {
		section, leaf := splitKey(k.Key)
		i := add(section)
		sections[i].Keys = append(sections[i].Keys, templateKey{
			Leaf:  leaf,
			Help:  k.Help,
			Value: yamlScalar(viper.Get(k.Key)),
		})
	}
	return sections
}

func renderConfig() ([]byte, error) {
	tmpl, err := template.New("config").Parse(configTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse config template: %w", err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, struct{ Sections []templateSection }{configSections()}); err != nil {
		return nil, fmt.Errorf("render config template: %w", err)
	}
	return buf.Bytes(), nil
}

func configFilePath() (string, error) {
	dir, err := configDirFunc()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

func configInitRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(cfgPath); err == nil {
		if !configForce {
			return fmt.Errorf("config file already exists: %s (use --force to overwrite)", cfgPath)
		}
		ui.Warning("Overwriting existing config file")
	}

	content, err := renderConfig()
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would create config file: %s", cfgPath)
		fmt.Fprintln(ui.Out)
		fmt.Fprint(ui.Out, string(content))
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(cfgPath), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(cfgPath, content, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	ui.Success("Config file created: %s", cfgPath)
	fmt.Fprintln(ui.Out)
	fmt.Fprint(ui.Out, string(content))
	return nil
}

// fileConfig loads only the config file, so its keys can be told apart
// from defaults and environment values. A missing file yields nil.
func fileConfig(path string) *viper.Viper {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil
	}
	return v
}

// detectSource reports where the effective value of key comes from.
func detectSource(key string, file *viper.Viper) string {
	env := envVarFor(key)
	if _, ok := os.LookupEnv(env); ok {
		return fmt.Sprintf("(env: %s)", env)
	}
	if file != nil && file.IsSet(key) {
		return "(file)"
	}
	return "(default)"
}

// effectiveYAML renders every known key's effective value as nested YAML.
func effectiveYAML() ([]byte, error) {
	root := map[string]any{}
	for _, k := range configKeys {
		section, leaf := splitKey(k.Key)
		if section == "" {
			root[leaf] = viper.Get(k.Key)
			continue
		}
		m, ok := root[section].(map[string]any)
		if !ok {
			m = map[string]any{}
			root[section] = m
		}
		m[leaf] = viper.Get(k.Key)
	}
	return yaml.Marshal(root)
}

func configShowRun() error {
	if configYAML {
		out, err := effectiveYAML()
		if err != nil {
			return fmt.Errorf("encode config: %w", err)
		}
		fmt.Fprint(ui.Out, string(out))
		return nil
	}

	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	file := fileConfig(cfgPath)
	if file != nil {
		ui.Info("Config file: %s", cfgPath)
	} else {
		ui.Info("Config file: (none)")
	}
	fmt.Fprintln(ui.Out)

	table := ui.Table([]string{"Key", "Value", "Source"})
	for _, k := range configKeys {
		_ = table.Append([]string{k.Key, fmt.Sprint(viper.Get(k.Key)), detectSource(k.Key, file)})
	}
	_ = table.Render()
	return nil
}

func configEditRun() error {
	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = os.Getenv("VISUAL")
	}
	if editor == "" {
		return fmt.Errorf("$EDITOR is not set: set it to your preferred editor (e.g. export EDITOR=vim)")
	}

	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}
	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s (run 'tagger config init' first)", cfgPath)
	}

	if dryRun {
		ui.DryRunMsg("Would open %s in %s", cfgPath, editor)
		return nil
	}

	editCmd := exec.Command(editor, cfgPath)
	editCmd.Stdin = os.Stdin
	editCmd.Stdout = os.Stdout
	editCmd.Stderr = os.Stderr
	return editCmd.Run()
}
