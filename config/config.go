package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/printware/loghound/constants/lipgloss"
)

// ScanConfig bounds the live source scan.
type ScanConfig struct {
	Roots               []string `mapstructure:"roots"`
	IncludeExt          []string `mapstructure:"include_ext"`
	ExcludeDirs         []string `mapstructure:"exclude_dirs"`
	MaxResults          int      `mapstructure:"max_results"`
	MaxFileBytes        int64    `mapstructure:"max_file_bytes"`
	MaxSeconds          float64  `mapstructure:"max_seconds"`
	MaxFilesScanned     int      `mapstructure:"max_files_scanned"`
	ProgressEveryNFiles int      `mapstructure:"progress_every_n_files"`
	ContextFallback     int      `mapstructure:"context_fallback"`
	CaseInsensitive     bool     `mapstructure:"case_insensitive"`
	FollowSymlinks      bool     `mapstructure:"follow_symlinks"`
	NormalizeNumbers    bool     `mapstructure:"normalize_numbers"`
}

// IndexConfig locates the offline index artifact.
type IndexConfig struct {
	OutputPath string `mapstructure:"output_path"`
}

// Config represents the structure of the configuration file
type Config struct {
	Version string       `mapstructure:"version"`
	Theme   string       `mapstructure:"theme"`
	Scan    *ScanConfig  `mapstructure:"scan"`
	Index   *IndexConfig `mapstructure:"index"`
}

// DefaultConfig values. Empty roots trigger repository discovery at run
// time instead of scanning a hardcoded path.
var DefaultConfig = Config{
	Version: "1.0.0",
	Theme:   "dracula",
	Scan: &ScanConfig{
		Roots:      nil,
		IncludeExt: []string{".py"},
		ExcludeDirs: []string{
			"node_modules", "dist", "build", "out", ".next", "venv", ".venv",
			"__pycache__", ".pytest_cache", ".mypy_cache", ".git", ".hg",
			".svn", ".idea", ".vscode",
		},
		MaxResults:          10,
		MaxFileBytes:        10485760,
		MaxSeconds:          0,
		MaxFilesScanned:     0,
		ProgressEveryNFiles: 100,
		ContextFallback:     50,
	},
	Index: &IndexConfig{
		OutputPath: "loghound-index.json",
	},
}

// cfgFile holds the path to the configuration file (set via CLI)
var cfgFile string

// LoadConfigs initializes the configuration from file, flags, and environment variables, and returns the final config.
func LoadConfigs(rootCmd *cobra.Command, cwd string) *Config {
	var config *Config

	// Set default values using Viper
	setDefaults()

	// Automatically read environment variables
	viper.AutomaticEnv()

	// Explicitly bind environment variables to config keys
	bindEnv()

	// Check if the user provided a config file
	if cfgFile != "" {
		// Use the config file from the flag
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			fmt.Println(lipgloss.Red.Render(fmt.Sprintf("Error reading config file: %v", err)))
			os.Exit(1)
		}
	} else {
		// Look for configuration files in the current directory
		viper.SetConfigName("loghound-config") // Name of config file (without extension)
		viper.AddConfigPath(cwd)               // Look in the current working directory

		// Support both JSON and YAML formats
		viper.SetConfigType("yaml") // Set default type
		if err := viper.ReadInConfig(); err != nil {
			// If YAML fails, try JSON
			viper.SetConfigType("json")
			if err := viper.ReadInConfig(); err != nil {
				// If both fail, we'll continue with defaults
				fmt.Println(lipgloss.Yellow.Render("No configuration file found, using defaults"))
			}
		}
	}

	// Bind CLI flags to override config values
	bindFlags(rootCmd)

	// Unmarshal the configuration into the Config struct
	if err := viper.Unmarshal(&config); err != nil {
		fmt.Println(lipgloss.Red.Render(fmt.Sprintf("Unable to decode into struct: %v", err)))
		os.Exit(1)
	}

	return config
}

// setDefaults sets all default configuration values
func setDefaults() {
	viper.SetDefault("version", DefaultConfig.Version)
	viper.SetDefault("theme", DefaultConfig.Theme)
	viper.SetDefault("scan.roots", DefaultConfig.Scan.Roots)
	viper.SetDefault("scan.include_ext", DefaultConfig.Scan.IncludeExt)
	viper.SetDefault("scan.exclude_dirs", DefaultConfig.Scan.ExcludeDirs)
	viper.SetDefault("scan.max_results", DefaultConfig.Scan.MaxResults)
	viper.SetDefault("scan.max_file_bytes", DefaultConfig.Scan.MaxFileBytes)
	viper.SetDefault("scan.max_seconds", DefaultConfig.Scan.MaxSeconds)
	viper.SetDefault("scan.max_files_scanned", DefaultConfig.Scan.MaxFilesScanned)
	viper.SetDefault("scan.progress_every_n_files", DefaultConfig.Scan.ProgressEveryNFiles)
	viper.SetDefault("scan.context_fallback", DefaultConfig.Scan.ContextFallback)
	viper.SetDefault("scan.case_insensitive", DefaultConfig.Scan.CaseInsensitive)
	viper.SetDefault("scan.follow_symlinks", DefaultConfig.Scan.FollowSymlinks)
	viper.SetDefault("scan.normalize_numbers", DefaultConfig.Scan.NormalizeNumbers)
	viper.SetDefault("index.output_path", DefaultConfig.Index.OutputPath)
}

// bindEnv explicitly binds environment variables to configuration keys
func bindEnv() {
	_ = viper.BindEnv("theme", "THEME")
	_ = viper.BindEnv("scan.roots", "SCAN_ROOTS")
	_ = viper.BindEnv("scan.max_results", "MAX_RESULTS")
	_ = viper.BindEnv("scan.max_file_bytes", "MAX_FILE_BYTES")
	_ = viper.BindEnv("scan.max_seconds", "MAX_SECONDS")
	_ = viper.BindEnv("scan.max_files_scanned", "MAX_FILES_SCANNED")
	_ = viper.BindEnv("scan.case_insensitive", "CASE_INSENSITIVE")
	_ = viper.BindEnv("scan.follow_symlinks", "FOLLOW_SYMLINKS")
	_ = viper.BindEnv("index.output_path", "INDEX_OUTPUT_PATH")
}

// bindFlags binds the CLI flags to configuration values.
func bindFlags(rootCmd *cobra.Command) {
	_ = viper.BindPFlag("theme", rootCmd.PersistentFlags().Lookup("theme"))
	_ = viper.BindPFlag("scan.roots", rootCmd.PersistentFlags().Lookup("roots"))
	_ = viper.BindPFlag("scan.max_results", rootCmd.PersistentFlags().Lookup("max_results"))
	_ = viper.BindPFlag("scan.max_file_bytes", rootCmd.PersistentFlags().Lookup("max_file_bytes"))
	_ = viper.BindPFlag("scan.max_seconds", rootCmd.PersistentFlags().Lookup("max_seconds"))
	_ = viper.BindPFlag("scan.max_files_scanned", rootCmd.PersistentFlags().Lookup("max_files_scanned"))
	_ = viper.BindPFlag("scan.case_insensitive", rootCmd.PersistentFlags().Lookup("case_insensitive"))
	_ = viper.BindPFlag("scan.follow_symlinks", rootCmd.PersistentFlags().Lookup("follow_symlinks"))
	_ = viper.BindPFlag("index.output_path", rootCmd.PersistentFlags().Lookup("index_output_path"))
}

// InitFlags initializes the flags for the root command.
func InitFlags(rootCmd *cobra.Command) {
	// Use PersistentFlags so that these flags are available in all subcommands
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Specifies the path to a configuration file (JSON or YAML) that contains all the settings for the application.")

	// Theme configuration
	rootCmd.PersistentFlags().String("theme", DefaultConfig.Theme, "Set the syntax highlighting theme for rendered code blocks. (e.g., 'dracula', 'monokai')")

	// Scan configuration
	rootCmd.PersistentFlags().StringSlice("roots", DefaultConfig.Scan.Roots, "Source roots to scan. Empty triggers repository discovery under the current directory.")
	rootCmd.PersistentFlags().Int("max_results", DefaultConfig.Scan.MaxResults, "Stop scanning after this many matches (0 = unlimited).")
	rootCmd.PersistentFlags().Int64("max_file_bytes", DefaultConfig.Scan.MaxFileBytes, "Skip files larger than this many bytes.")
	rootCmd.PersistentFlags().Float64("max_seconds", DefaultConfig.Scan.MaxSeconds, "Stop scanning after this many seconds (0 = unlimited).")
	rootCmd.PersistentFlags().Int("max_files_scanned", DefaultConfig.Scan.MaxFilesScanned, "Stop scanning after this many files (0 = unlimited).")
	rootCmd.PersistentFlags().Bool("case_insensitive", DefaultConfig.Scan.CaseInsensitive, "Match the exact key without case sensitivity.")
	rootCmd.PersistentFlags().Bool("follow_symlinks", DefaultConfig.Scan.FollowSymlinks, "Follow symlinked files and directories while scanning.")

	// Index configuration
	rootCmd.PersistentFlags().String("index_output_path", DefaultConfig.Index.OutputPath, "Path of the offline index artifact read by 'query' and written by 'ingest'.")

	// Version flag
	rootCmd.Flags().BoolP("version", "v", false, "Specifies the version of the application.")
}

// GetConfigFileType returns the type of the configuration file based on its extension
func GetConfigFileType(filename string) string {
	if strings.HasSuffix(filename, ".json") {
		return "json"
	} else if strings.HasSuffix(filename, ".yaml") || strings.HasSuffix(filename, ".yml") {
		return "yaml"
	}
	return ""
}
