package contracts

import (
	"github.com/printware/loghound/code_search"
	"github.com/printware/loghound/log_analyzer/models"
)

type ILogAnalyzer interface {
	Analyze(text string, progress code_search.ProgressFunc) models.Report
}
