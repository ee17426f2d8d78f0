package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/printware/loghound/code_search"
	"github.com/printware/loghound/config"
	"github.com/printware/loghound/constants/lipgloss"
	"github.com/printware/loghound/log_analyzer"
	"github.com/printware/loghound/log_analyzer/contracts"
	"github.com/printware/loghound/log_analyzer/models"
	"github.com/printware/loghound/repo_discover"
)

const fileCacheEntries = 256

// RootDependencies holds the wiring shared by every subcommand.
type RootDependencies struct {
	Config   *config.Config
	Cwd      string
	Cache    *code_search.FileCache
	Analyzer contracts.ILogAnalyzer
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "loghound",
	Short: "Correlate printer log lines with the source code that emitted them",
	Long: `loghound takes pasted printer log lines and finds the code that produced them.
The 'analyze' subcommand scans configured source roots live; 'ingest' builds an
offline index artifact and 'query' searches it without touching the tree.`,
	Run: func(cmd *cobra.Command, args []string) {
		if v, _ := cmd.Flags().GetBool("version"); v {
			fmt.Println(config.DefaultConfig.Version)
			return
		}
		_ = cmd.Help()
	},
}

// Execute adds all child commands to the root command and runs it.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(lipgloss.Red.Render(fmt.Sprintf("%v", err)))
		os.Exit(1)
	}
}

func init() {
	config.InitFlags(rootCmd)
}

// handleRootCommand loads configuration and builds the shared dependencies.
// Roots left empty in the config are resolved by repository discovery under
// the working directory, refusing to fan out from a filesystem root.
func handleRootCommand(cmd *cobra.Command) *RootDependencies {
	cwd, err := os.Getwd()
	if err != nil {
		fmt.Println(lipgloss.Red.Render(fmt.Sprintf("Error getting current directory: %v", err)))
		return nil
	}

	cfg := config.LoadConfigs(rootCmd, cwd)
	if len(cfg.Scan.Roots) == 0 {
		roots, err := discoverRoots(cwd, cfg)
		if err != nil {
			fmt.Println(lipgloss.Red.Render(err.Error()))
			return nil
		}
		cfg.Scan.Roots = roots
	}

	cache := code_search.NewFileCache(fileCacheEntries)
	analyzer := log_analyzer.NewAnalyzer(models.Settings{
		Roots:               cfg.Scan.Roots,
		IncludeExt:          cfg.Scan.IncludeExt,
		ExcludeDirs:         cfg.Scan.ExcludeDirs,
		MaxResults:          cfg.Scan.MaxResults,
		MaxFileBytes:        cfg.Scan.MaxFileBytes,
		MaxSeconds:          cfg.Scan.MaxSeconds,
		MaxFilesScanned:     cfg.Scan.MaxFilesScanned,
		ProgressEveryNFiles: cfg.Scan.ProgressEveryNFiles,
		ContextFallback:     cfg.Scan.ContextFallback,
		CaseInsensitive:     cfg.Scan.CaseInsensitive,
		FollowSymlinks:      cfg.Scan.FollowSymlinks,
		NormalizeNumbers:    cfg.Scan.NormalizeNumbers,
	}, cache)

	return &RootDependencies{
		Config:   cfg,
		Cwd:      cwd,
		Cache:    cache,
		Analyzer: analyzer,
	}
}

func discoverRoots(cwd string, cfg *config.Config) ([]string, error) {
	if repo_discover.IsMassiveRoot(cwd) {
		return nil, fmt.Errorf("refusing to discover repositories under %s; configure scan.roots explicitly", cwd)
	}
	candidates := repo_discover.Discover([]string{cwd}, repo_discover.Options{
		ExcludeDirs: cfg.Scan.ExcludeDirs,
	})
	if len(candidates) == 0 {
		return []string{cwd}, nil
	}
	return []string{candidates[0].Path}, nil
}
