package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/tribunal/internal/output"
	"github.com/joescharf/tribunal/internal/roster"
	"github.com/joescharf/tribunal/internal/store"
)

// Package-level shared dependencies, initialized in cobra.OnInitialize.
var (
	ui        *output.UI
	dataStore store.Store

	verbose bool

	buildVersion = "dev"
	buildCommit  = "none"
	buildDate    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "tribunal",
	Short: "Multi-reviewer consensus runs over planning documents",
	Long: `tribunal sends a planning document (PRD, design doc, sprint plan) to
several independent LLM reviewers, cross-scores their improvement items,
and merges the results into a classified consensus report. Alternate
modes run an adversarial red-team pass or a three-perspective inquiry.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
}

// exitError carries a run's terminal status out of a RunE so Execute can use
// it as the process exit code.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	if err := rootCmd.Execute(); err != nil {
		var ee *exitError
		if errors.As(err, &ee) {
			os.Exit(ee.code)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initDeps)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/tribunal/config.yaml)")
}

func initConfig() {
	// If --config is explicitly set, use that file
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot find home directory: %v\n", err)
			os.Exit(1)
		}

		configDir := filepath.Join(home, ".config", "tribunal")
		viper.AddConfigPath(configDir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("TRIBUNAL")
	viper.AutomaticEnv()

	// Defaults via viper.SetDefault()
	home, _ := os.UserHomeDir()
	defaultConfigDir := filepath.Join(home, ".config", "tribunal")

	viper.SetDefault("state_dir", defaultConfigDir)
	viper.SetDefault("db_path", filepath.Join(defaultConfigDir, "tribunal.db"))
	viper.SetDefault("roster_path", "")
	viper.SetDefault("capture_dir", filepath.Join(defaultConfigDir, "captures"))
	viper.SetDefault("knowledge_dir", "")
	viper.SetDefault("anthropic.api_key", "")
	viper.SetDefault("run.stagger_ms", 2000)
	viper.SetDefault("run.call_timeout_s", 300)
	viper.SetDefault("run.score_threshold", 7)
	viper.SetDefault("run.tertiary", false)
	viper.SetDefault("run.domain", "")
	viper.SetDefault("redteam.command", []string{})
	viper.SetDefault("budget.default_cents", 0)
	viper.SetDefault("budget.daily_ceiling_cents", 0)
	viper.SetDefault("budget.phase_estimate_cents", 50)

	// Read config file if it exists (optional)
	_ = viper.ReadInConfig()
}

func initDeps() {
	ui = output.New()
	ui.Verbose = verbose
}

// loadRoster resolves the reviewer roster from config, falling back to the
// built-in defaults.
func loadRoster() (*roster.Roster, error) {
	path := viper.GetString("roster_path")
	if path == "" {
		return roster.Default(), nil
	}
	return roster.Load(path)
}

// getStore returns the shared store, initializing it on first call.
func getStore() (store.Store, error) {
	if dataStore != nil {
		return dataStore, nil
	}

	dbPath := viper.GetString("db_path")
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := s.Migrate(rootCmd.Context()); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	dataStore = s
	return dataStore, nil
}
