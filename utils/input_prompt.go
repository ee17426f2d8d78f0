package utils

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/printware/loghound/constants/lipgloss"
)

// ReadPastedLog reads a multi-line log paste from the reader. Input ends at
// a blank line or EOF, so a whole copied log block can be pasted at once.
func ReadPastedLog(reader *bufio.Reader) (string, error) {
	fmt.Print(lipgloss.BlueSky.Render("paste log lines, finish with an empty line\n> "))

	var lines []string
	for {
		line, err := reader.ReadString('\n')
		trimmed := strings.TrimRight(line, "\r\n")
		if trimmed != "" {
			lines = append(lines, trimmed)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("read input: %w", err)
		}
		if trimmed == "" {
			break
		}
	}
	return strings.Join(lines, "\n"), nil
}

// ReadPastedLogWithContext reads a log paste with cancellation support, so
// Ctrl+C exits cleanly while the prompt is waiting.
func ReadPastedLogWithContext(ctx context.Context, reader *bufio.Reader) (string, error) {
	inputChan := make(chan string, 1)
	errChan := make(chan error, 1)

	go func() {
		text, err := ReadPastedLog(reader)
		if err != nil {
			errChan <- err
			return
		}
		inputChan <- text
	}()

	select {
	case <-ctx.Done():
		fmt.Println()
		return "", ctx.Err()
	case err := <-errChan:
		return "", err
	case input := <-inputChan:
		return input, nil
	}
}
