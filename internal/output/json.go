package output

import (
	"encoding/json"
)

// JSONFormatter formats reports as JSON.
type JSONFormatter struct{}

// jsonOutput is the JSON structure for output.
type jsonOutput struct {
	GeneratedAt string      `json:"generated_at"`
	TotalFiles  int         `json:"total_files"`
	DryRun      bool        `json:"dry_run,omitempty"`
	Summary     jsonSummary `json:"summary"`
	Links       []jsonEntry `json:"links"`
}

type jsonSummary struct {
	Tokens      int `json:"tokens"`
	Matched     int `json:"matched"`
	Shortened   int `json:"shortened"`
	Cached      int `json:"cached"`
	Unreachable int `json:"unreachable"`
	Ignored     int `json:"ignored"`
	Unshortened int `json:"unshortened"`
}

type jsonEntry struct {
	File     string `json:"file,omitempty"`
	Line     int    `json:"line,omitempty"`
	Original string `json:"original"`
	Result   string `json:"result"`
	Domain   string `json:"domain"`
	Status   string `json:"status"`
	Attempts int    `json:"attempts,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// Format implements Formatter.
func (*JSONFormatter) Format(report *Report) ([]byte, error) {
	output := jsonOutput{
		GeneratedAt: report.GeneratedAt.Format("2006-01-02T15:04:05Z07:00"),
		TotalFiles:  len(report.Files),
		DryRun:      report.DryRun,
		Summary:     jsonSummary(report.Summary),
		Links:       make([]jsonEntry, 0, len(report.Entries)),
	}

	for _, e := range report.Entries {
		output.Links = append(output.Links, jsonEntry{
			File:     e.File,
			Line:     e.Line,
			Original: e.Original,
			Result:   e.Result,
			Domain:   e.Domain,
			Status:   string(e.Status),
			Attempts: e.Attempts,
			Reason:   e.Reason,
		})
	}

	return json.MarshalIndent(output, "", "  ")
}
