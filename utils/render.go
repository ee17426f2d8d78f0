package utils

import (
	"fmt"
	"os"
	"strings"

	"github.com/alecthomas/chroma/v2/quick"
)

// RenderCodeBlock prints a source block with syntax highlighting. When
// highlighting fails (unknown theme, no terminal support) the block is
// printed plain instead of being dropped.
func RenderCodeBlock(code string, language string, theme string) {
	if !strings.HasSuffix(code, "\n") {
		code += "\n"
	}
	if err := quick.Highlight(os.Stdout, code, language, "terminal256", theme); err != nil {
		fmt.Print(code)
	}
}

// RenderNumberedBlock prints a source block with its original line numbers,
// highlighting each line. startLine is 1-based.
func RenderNumberedBlock(code string, startLine int, language string, theme string) {
	for i, line := range strings.Split(code, "\n") {
		fmt.Printf("%5d │ ", startLine+i)
		if err := quick.Highlight(os.Stdout, line+"\n", language, "terminal256", theme); err != nil {
			fmt.Println(line)
		}
	}
}
