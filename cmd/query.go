package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/printware/loghound/constants/lipgloss"
	"github.com/printware/loghound/index_search"
	"github.com/printware/loghound/indexer"
	"github.com/printware/loghound/utils"
)

// queryCmd: loghound query
var queryCmd = &cobra.Command{
	Use:   "query <error message>",
	Short: "Search the offline index artifact for an error message",
	Long: `The 'query' subcommand searches a previously ingested index artifact without
touching the source tree. Exact error-index hits come first, then partial key
matches, then a content search over the indexed chunks.`,
	Args: cobra.MinimumNArgs(1),
}

func init() {
	// Assigned here rather than in the composite literal to avoid an
	// initialization cycle (handleQueryCommand reads queryCmd's flags).
	queryCmd.RunE = func(cmd *cobra.Command, args []string) error {
		rootDependencies := handleRootCommand(cmd)
		if rootDependencies == nil {
			return nil
		}
		return handleQueryCommand(rootDependencies, strings.Join(args, " "))
	}
	queryCmd.Flags().Bool("code", false, "Print the code of every matched chunk")
	rootCmd.AddCommand(queryCmd)
}

func handleQueryCommand(rootDependencies *RootDependencies, query string) error {
	path := rootDependencies.Config.Index.OutputPath

	engine, err := index_search.LoadEngine(path)
	switch {
	case errors.Is(err, indexer.ErrArtifactNotFound):
		fmt.Println(lipgloss.Yellow.Render(
			fmt.Sprintf("No index artifact at %s; run 'loghound ingest' first.", path)))
		return nil
	case errors.Is(err, indexer.ErrSchemaMismatch):
		fmt.Println(lipgloss.Yellow.Render(
			fmt.Sprintf("Index artifact at %s is from an incompatible version; re-run 'loghound ingest'.", path)))
		return nil
	case errors.Is(err, indexer.ErrArtifactMalformed):
		fmt.Println(lipgloss.Red.Render(
			fmt.Sprintf("Index artifact at %s is corrupt; re-run 'loghound ingest'.", path)))
		return nil
	case err != nil:
		return err
	}

	results := engine.Search(query)
	if len(results) == 0 {
		fmt.Println(lipgloss.Yellow.Render("No results."))
		return nil
	}

	showCode, _ := queryCmd.Flags().GetBool("code")
	theme := rootDependencies.Config.Theme

	fmt.Println(lipgloss.Info.Render(fmt.Sprintf("%d result(s):", len(results))))
	for i, r := range results {
		header := fmt.Sprintf("%d. %s  [%s, score %.2f]", i+1, r.ErrorKey, r.MatchType, r.Score)
		fmt.Println(lipgloss.Green.Render(header))
		if r.MatchedText != "" && r.MatchedText != r.ErrorKey {
			fmt.Println(lipgloss.Gray.Render("   " + r.MatchedText))
		}
		for _, chunk := range r.Chunks {
			location := fmt.Sprintf("   %s:%d  %s", chunk.FilePath, chunk.LineStart, chunk.Signature)
			if chunk.ClassName != "" {
				location += "  (in class " + chunk.ClassName + ")"
			}
			fmt.Println(location)
			if showCode {
				utils.RenderNumberedBlock(chunk.Code, chunk.LineStart, "python", theme)
			}
		}
	}
	return nil
}
