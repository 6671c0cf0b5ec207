package cmd

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"text/template"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var configForce bool

// configDirFunc returns the config directory path, replaceable in tests.
var configDirFunc = defaultConfigDir

func defaultConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "tribunal"), nil
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or manage configuration",
	Long: `Show or manage tribunal configuration.

Running bare 'tribunal config' is the same as 'tribunal config show'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create config file with commented defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configInitRun()
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration with sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Open config file in $EDITOR",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configEditRun()
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite existing config file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configEditCmd)
	rootCmd.AddCommand(configCmd)
}

// configTemplate is the template for generating config.yaml with comments.
const configTemplate = `# tribunal configuration
# See: tribunal config show (for effective values and sources)

# State/data directory (default: ~/.config/tribunal)
# state_dir: {{ .StateDir }}

# SQLite cost-ledger path (default: ~/.config/tribunal/tribunal.db)
# db_path: {{ .DBPath }}

# Reviewer roster file; empty uses the built-in roster
# roster_path: "{{ .RosterPath }}"

# Directory for raw response captures
# capture_dir: {{ .CaptureDir }}

# Directory of per-phase knowledge notes; empty disables retrieval
# knowledge_dir: "{{ .KnowledgeDir }}"

# Run settings
run:
  # Launch delay between same-phase waves, milliseconds
  stagger_ms: {{ .StaggerMs }}

  # Per-call timeout, seconds
  call_timeout_s: {{ .CallTimeoutS }}

  # Cross-score acceptance threshold, 0-10
  score_threshold: {{ .ScoreThreshold }}

  # Include the tertiary reviewer by default
  tertiary: {{ .Tertiary }}

  # Domain label stamped on every report; empty leaves it blank
  domain: "{{ .Domain }}"

# Adversarial red-team pipeline
# redteam:
#   # External command for --mode red-team; request JSON arrives on stdin
#   # command: ["loa-redteam", "--json"]

# Budget settings, integer cents
budget:
  # Per-run ceiling when --budget is not given (0 = unlimited)
  default_cents: {{ .DefaultCents }}

  # Ceiling across all runs per UTC day (0 = unlimited)
  daily_ceiling_cents: {{ .DailyCeilingCents }}
`

type configTemplateData struct {
	StateDir          string
	DBPath            string
	RosterPath        string
	CaptureDir        string
	KnowledgeDir      string
	StaggerMs         int
	CallTimeoutS      int
	ScoreThreshold    int
	Tertiary          bool
	Domain            string
	DefaultCents      int
	DailyCeilingCents int
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

	// Check if file already exists
	if _, err := os.Stat(cfgPath); err == nil {
		if !configForce {
			return fmt.Errorf("config file already exists: %s (use --force to overwrite)", cfgPath)
		}
		ui.Warning("Overwriting existing config file")
	}

	// Build template data from current viper values
	data := configTemplateData{
		StateDir:          viper.GetString("state_dir"),
		DBPath:            viper.GetString("db_path"),
		RosterPath:        viper.GetString("roster_path"),
		CaptureDir:        viper.GetString("capture_dir"),
		KnowledgeDir:      viper.GetString("knowledge_dir"),
		StaggerMs:         viper.GetInt("run.stagger_ms"),
		CallTimeoutS:      viper.GetInt("run.call_timeout_s"),
		ScoreThreshold:    viper.GetInt("run.score_threshold"),
		Tertiary:          viper.GetBool("run.tertiary"),
		Domain:            viper.GetString("run.domain"),
		DefaultCents:      viper.GetInt("budget.default_cents"),
		DailyCeilingCents: viper.GetInt("budget.daily_ceiling_cents"),
	}

	tmpl, err := template.New("config").Parse(configTemplate)
	if err != nil {
		return fmt.Errorf("template parse error: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("template execute error: %w", err)
	}

	// Create config directory
	dir := filepath.Dir(cfgPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(cfgPath, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	ui.Success("Config file created: %s", cfgPath)
	fmt.Fprintln(ui.Out)
	fmt.Fprint(ui.Out, buf.String())
	return nil
}

// configKeyInfo describes a config key for display purposes.
type configKeyInfo struct {
	Key    string
	EnvVar string
}

var configKeys = []configKeyInfo{
	{Key: "state_dir", EnvVar: "TRIBUNAL_STATE_DIR"},
	{Key: "db_path", EnvVar: "TRIBUNAL_DB_PATH"},
	{Key: "roster_path", EnvVar: "TRIBUNAL_ROSTER_PATH"},
	{Key: "capture_dir", EnvVar: "TRIBUNAL_CAPTURE_DIR"},
	{Key: "knowledge_dir", EnvVar: "TRIBUNAL_KNOWLEDGE_DIR"},
	{Key: "run.stagger_ms", EnvVar: "TRIBUNAL_RUN_STAGGER_MS"},
	{Key: "run.call_timeout_s", EnvVar: "TRIBUNAL_RUN_CALL_TIMEOUT_S"},
	{Key: "run.score_threshold", EnvVar: "TRIBUNAL_RUN_SCORE_THRESHOLD"},
	{Key: "run.tertiary", EnvVar: "TRIBUNAL_RUN_TERTIARY"},
	{Key: "run.domain", EnvVar: "TRIBUNAL_RUN_DOMAIN"},
	{Key: "redteam.command", EnvVar: "TRIBUNAL_REDTEAM_COMMAND"},
	{Key: "budget.default_cents", EnvVar: "TRIBUNAL_BUDGET_DEFAULT_CENTS"},
	{Key: "budget.daily_ceiling_cents", EnvVar: "TRIBUNAL_BUDGET_DAILY_CEILING_CENTS"},
}

func configShowRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	// Check if config file exists
	if _, err := os.Stat(cfgPath); err == nil {
		ui.Info("Config file: %s", cfgPath)
	} else {
		ui.Info("Config file: (none)")
	}
	fmt.Fprintln(ui.Out)

	// Read config file values to determine file source
	fileValues := readConfigFileValues(cfgPath)

	for _, k := range configKeys {
		val := viper.Get(k.Key)
		source := detectSource(k.Key, k.EnvVar, fileValues)
		fmt.Fprintf(ui.Out, "  %-28s %v  %s\n", k.Key, val, source)
	}

	return nil
}

// readConfigFileValues reads the raw YAML file and returns a flat map of keys present in it.
func readConfigFileValues(path string) map[string]bool {
	result := make(map[string]bool)

	data, err := os.ReadFile(path)
	if err != nil {
		return result
	}

	var parsed map[string]any
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return result
	}

	// Flatten nested keys with dot notation
	flattenKeys("", parsed, result)
	return result
}

// flattenKeys recursively flattens a nested map to dot-notation keys.
func flattenKeys(prefix string, m map[string]any, result map[string]bool) {
	for key, val := range m {
		fullKey := key
		if prefix != "" {
			fullKey = prefix + "." + key
		}
		if nested, ok := val.(map[string]any); ok {
			flattenKeys(fullKey, nested, result)
		} else {
			result[fullKey] = true
		}
	}
}

// detectSource determines where a config value is coming from.
func detectSource(key, envVar string, fileValues map[string]bool) string {
	if _, ok := os.LookupEnv(envVar); ok {
		return fmt.Sprintf("(env: %s)", envVar)
	}
	if fileValues[key] {
		return "(file)"
	}
	return "(default)"
}

func configEditRun() error {
	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = os.Getenv("VISUAL")
	}
	if editor == "" {
		return fmt.Errorf("$EDITOR is not set, set it to your preferred editor (e.g. export EDITOR=vim)")
	}

	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s (run 'tribunal config init' first)", cfgPath)
	}

	editCmd := exec.Command(editor, cfgPath)
	editCmd.Stdin = os.Stdin
	editCmd.Stdout = os.Stdout
	editCmd.Stderr = os.Stderr
	return editCmd.Run()
}
