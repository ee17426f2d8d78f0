package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/printware/loghound/constants/lipgloss"
	"github.com/printware/loghound/indexer"
)

// cleanCmd: loghound clean
var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove the offline index artifact",
	Long: `The 'clean' subcommand deletes the index artifact written by 'ingest'.
Use it to force a full re-index or to drop a corrupt artifact.`,
	Run: func(cmd *cobra.Command, args []string) {
		var force bool
		var stats bool

		force, _ = cmd.Flags().GetBool("force")
		stats, _ = cmd.Flags().GetBool("stats")

		handleCleanCommand(force, stats, cmd)
	},
}

func init() {
	cleanCmd.Flags().BoolP("force", "f", false, "Delete without confirmation")
	cleanCmd.Flags().BoolP("stats", "s", false, "Show artifact statistics instead of deleting")
	rootCmd.AddCommand(cleanCmd)
}

func handleCleanCommand(force bool, showStats bool, cmd *cobra.Command) {
	rootDependencies := handleRootCommand(cmd)
	if rootDependencies == nil {
		return
	}
	path := rootDependencies.Config.Index.OutputPath

	if showStats {
		artifact, err := indexer.Load(path)
		if errors.Is(err, indexer.ErrArtifactNotFound) {
			fmt.Println(lipgloss.Yellow.Render("No index artifact to inspect."))
			return
		}
		if err != nil {
			fmt.Println(lipgloss.Yellow.Render(fmt.Sprintf("Warning: could not read artifact: %v", err)))
			return
		}
		fmt.Println(lipgloss.Info.Render("Index Artifact:"))
		fmt.Printf("  Path:           %s\n", path)
		fmt.Printf("  Created:        %s\n", artifact.CreatedAt)
		fmt.Printf("  Chunks:         %d\n", artifact.TotalChunks)
		fmt.Printf("  Error literals: %d\n", artifact.TotalErrors)
		fmt.Printf("  Files indexed:  %d\n", artifact.Stats.FilesProcessed)
		return
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Println(lipgloss.Yellow.Render("No index artifact to remove."))
		return
	}

	if !force {
		reader := bufio.NewReader(os.Stdin)
		fmt.Printf("Delete index artifact %s? (y/N): ", path)
		response, _ := reader.ReadString('\n')
		response = strings.TrimSpace(strings.ToLower(response))
		if response != "y" && response != "yes" {
			fmt.Println(lipgloss.Yellow.Render("Clean cancelled."))
			return
		}
	}

	spinner := pterm.DefaultSpinner.WithStyle(pterm.NewStyle(pterm.FgCyan)).
		WithSequence("⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏").
		WithDelay(100).WithRemoveWhenDone(true)

	spinnerClean, _ := spinner.Start("Removing index artifact...")
	err := os.Remove(path)
	spinnerClean.Stop()
	fmt.Print("\r")

	if err != nil {
		fmt.Println(lipgloss.Red.Render(fmt.Sprintf("Error removing index artifact: %v", err)))
		return
	}
	fmt.Println(lipgloss.Green.Render("✓ Index artifact removed."))
}
