package output

import (
	"gopkg.in/yaml.v3"
)

// YAMLFormatter formats reports as YAML.
type YAMLFormatter struct{}

// yamlOutput is the YAML structure for output.
type yamlOutput struct {
	GeneratedAt string      `yaml:"generated_at"`
	Links       []yamlEntry `yaml:"links"`
	Summary     yamlSummary `yaml:"summary"`
	TotalFiles  int         `yaml:"total_files"`
	DryRun      bool        `yaml:"dry_run,omitempty"`
}

type yamlSummary struct {
	Tokens      int `yaml:"tokens"`
	Matched     int `yaml:"matched"`
	Shortened   int `yaml:"shortened"`
	Cached      int `yaml:"cached"`
	Unreachable int `yaml:"unreachable"`
	Ignored     int `yaml:"ignored"`
	Unshortened int `yaml:"unshortened"`
}

type yamlEntry struct {
	File     string `yaml:"file,omitempty"`
	Original string `yaml:"original"`
	Result   string `yaml:"result"`
	Domain   string `yaml:"domain"`
	Status   string `yaml:"status"`
	Reason   string `yaml:"reason,omitempty"`
	Line     int    `yaml:"line,omitempty"`
	Attempts int    `yaml:"attempts,omitempty"`
}

// Format implements Formatter.
func (*YAMLFormatter) Format(report *Report) ([]byte, error) {
	output := yamlOutput{
		GeneratedAt: report.GeneratedAt.Format("2006-01-02T15:04:05Z07:00"),
		TotalFiles:  len(report.Files),
		DryRun:      report.DryRun,
		Summary:     yamlSummary(report.Summary),
		Links:       make([]yamlEntry, 0, len(report.Entries)),
	}

	for _, e := range report.Entries {
		output.Links = append(output.Links, yamlEntry{
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

	return yaml.Marshal(output)
}
