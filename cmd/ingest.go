package cmd

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/printware/loghound/constants/lipgloss"
	"github.com/printware/loghound/indexer"
)

// ingestCmd: loghound ingest
var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Build the offline index artifact from the configured source roots",
	Long: `The 'ingest' subcommand parses every source file under the configured roots,
extracts one chunk per function with its error literals, and writes the whole
index as a single JSON artifact. The write is atomic: an interrupted run never
corrupts an existing artifact.`,
	Run: func(cmd *cobra.Command, args []string) {
		rootDependencies := handleRootCommand(cmd)
		if rootDependencies == nil {
			return
		}
		handleIngestCommand(rootDependencies)
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

func handleIngestCommand(rootDependencies *RootDependencies) {
	cfg := rootDependencies.Config

	ix := indexer.New(indexer.Options{
		Roots:               cfg.Scan.Roots,
		IncludeExt:          cfg.Scan.IncludeExt,
		ExcludeDirs:         cfg.Scan.ExcludeDirs,
		MaxFileBytes:        cfg.Scan.MaxFileBytes,
		ProgressEveryNFiles: cfg.Scan.ProgressEveryNFiles,
	})

	spinner := pterm.DefaultSpinner.WithStyle(pterm.NewStyle(pterm.FgCyan)).
		WithSequence("⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏").
		WithDelay(100).WithRemoveWhenDone(true)

	spinnerIngest, _ := spinner.Start("Indexing source roots...")
	artifact, err := ix.Run(func(stats indexer.RunStats) {
		spinnerIngest.UpdateText(fmt.Sprintf("Indexing source roots... %d files, %d functions",
			stats.FilesProcessed, stats.FunctionsFound))
	})
	spinnerIngest.Stop()
	fmt.Print("\r")

	if err != nil {
		fmt.Println(lipgloss.Red.Render(fmt.Sprintf("Indexing failed: %v", err)))
		return
	}

	outputPath := cfg.Index.OutputPath
	if err := artifact.Save(outputPath); err != nil {
		fmt.Println(lipgloss.Red.Render(fmt.Sprintf("Error writing index: %v", err)))
		return
	}

	summary := lipgloss.BoxStyle.Render(fmt.Sprintf(
		"files processed: %d\nfiles failed:    %d\nfunctions:       %d\nerror literals:  %d\nelapsed:         %.2fs\nartifact:        %s",
		artifact.Stats.FilesProcessed, artifact.Stats.FilesFailed,
		artifact.Stats.FunctionsFound, artifact.Stats.ErrorsFound,
		artifact.Stats.ElapsedSeconds, outputPath))
	fmt.Println(summary)
	fmt.Println(lipgloss.Green.Render("✓ Index artifact written."))
}
