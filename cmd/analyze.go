package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/printware/loghound/code_search"
	"github.com/printware/loghound/constants/lipgloss"
	"github.com/printware/loghound/log_analyzer/models"
	"github.com/printware/loghound/utils"
)

// analyzeCmd: loghound analyze
var analyzeCmd = &cobra.Command{
	Use:   "analyze [log text]",
	Short: "Parse a pasted log line and find the source that emitted it",
	Long: `The 'analyze' subcommand parses printer log text, scans the configured source
roots for the message and shows each hit inside its enclosing function or class.
Log text can be passed as an argument, piped on stdin, or pasted interactively.`,
}

func init() {
	// Assigned here rather than in the composite literal to avoid an
	// initialization cycle (printReport reads analyzeCmd's flags).
	analyzeCmd.Run = func(cmd *cobra.Command, args []string) {
		rootDependencies := handleRootCommand(cmd)
		if rootDependencies == nil {
			return
		}
		handleAnalyzeCommand(rootDependencies, args)
	}
	analyzeCmd.Flags().Bool("blocks", false, "Print the full enclosing block for every match, not just the signature")
	rootCmd.AddCommand(analyzeCmd)
}

func handleAnalyzeCommand(rootDependencies *RootDependencies, args []string) {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	text, err := readLogText(ctx, args)
	if err != nil {
		if err == context.Canceled {
			fmt.Println(lipgloss.Yellow.Render("\nCancelled."))
			return
		}
		fmt.Println(lipgloss.Red.Render(fmt.Sprintf("%v", err)))
		return
	}
	if strings.TrimSpace(text) == "" {
		fmt.Println(lipgloss.Yellow.Render("Nothing to analyze."))
		return
	}

	spinner := pterm.DefaultSpinner.WithStyle(pterm.NewStyle(pterm.FgLightBlue)).
		WithSequence("⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏").
		WithDelay(100).WithRemoveWhenDone(true)

	spinnerScan, _ := spinner.Start("Scanning source roots...")
	report := rootDependencies.Analyzer.Analyze(text, func(stats code_search.ScanStats) {
		spinnerScan.UpdateText(fmt.Sprintf("Scanning source roots... %d files", stats.FilesScanned))
	})
	spinnerScan.Stop()
	fmt.Print("\r")

	printReport(rootDependencies, report)
}

func readLogText(ctx context.Context, args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}

	// Piped input is consumed whole; a terminal gets the interactive paste
	// prompt instead.
	if info, err := os.Stdin.Stat(); err == nil && info.Mode()&os.ModeCharDevice == 0 {
		var sb strings.Builder
		scanner := bufio.NewScanner(os.Stdin)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			sb.WriteString(scanner.Text())
			sb.WriteByte('\n')
		}
		return sb.String(), scanner.Err()
	}

	return utils.ReadPastedLogWithContext(ctx, bufio.NewReader(os.Stdin))
}

func printReport(rootDependencies *RootDependencies, report models.Report) {
	theme := rootDependencies.Config.Theme
	showBlocks, _ := analyzeCmd.Flags().GetBool("blocks")

	parsedBox := lipgloss.BoxStyle.Render(fmt.Sprintf(
		"line:      %s\ncomponent: %s\nlevel:     %s\nthread:    %s\nmessage:   %s",
		report.SelectedLine, report.Parsed.Component, report.Parsed.Level,
		report.Parsed.Thread, report.Parsed.Message))
	fmt.Println(parsedBox)

	if report.Notes != "" {
		fmt.Println(lipgloss.Yellow.Render(report.Notes))
		return
	}
	if len(report.Matches) == 0 {
		fmt.Println(lipgloss.Yellow.Render("No matches found."))
		printScanStats(report.ScanStats)
		return
	}

	fmt.Println(lipgloss.Info.Render(fmt.Sprintf("%d match(es):", len(report.Matches))))
	for i, m := range report.Matches {
		header := fmt.Sprintf("%d. %s:%d  [%s, score %.2f]", i+1, m.Path, m.LineNo, m.MatchType, m.Score)
		fmt.Println(lipgloss.Green.Render(header))

		switch {
		case m.Signature != "":
			fmt.Printf("   %s (%s, lines %d-%d)\n",
				lipgloss.Info.Render(m.Signature), m.EnclosureType, m.StartLine, m.EndLine)
		case m.ContextPreview != "":
			fmt.Println(lipgloss.Gray.Render(fmt.Sprintf("   context lines %d-%d:", m.StartLine, m.EndLine)))
			utils.RenderNumberedBlock(m.ContextPreview, m.StartLine, "python", theme)
		}
		if m.Notes != "" {
			fmt.Println(lipgloss.Gray.Render("   " + m.Notes))
		}
		if showBlocks && m.Signature != "" {
			block, err := blockForMatch(rootDependencies, m)
			if err == nil && block != "" {
				utils.RenderNumberedBlock(block, m.StartLine, "python", theme)
			}
		}
	}
	printScanStats(report.ScanStats)
}

func blockForMatch(rootDependencies *RootDependencies, m models.EnrichedMatch) (string, error) {
	lines, err := rootDependencies.Cache.Lines(m.Path)
	if err != nil {
		return "", err
	}
	if m.StartLine < 1 || m.EndLine > len(lines) || m.StartLine > m.EndLine {
		return "", nil
	}
	return strings.Join(lines[m.StartLine-1:m.EndLine], "\n"), nil
}

func printScanStats(stats code_search.ScanStats) {
	line := fmt.Sprintf("scanned %d files in %.2fs, %d hits, %d skipped",
		stats.FilesScanned, stats.ElapsedSeconds, stats.HitsFound, stats.SkippedTotal())
	if stats.StoppedReason != "" {
		line += ", stopped: " + stats.StoppedReason
	}
	fmt.Println(lipgloss.Gray.Render(line))
}
