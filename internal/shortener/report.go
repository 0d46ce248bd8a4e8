package shortener

// Status describes what happened to an allow-listed token.
type Status string

// Token statuses reported in a Replacement.
const (
	StatusShortened   Status = "shortened"   // Provider produced a new short link
	StatusCached      Status = "cached"      // Short link came from the cache
	StatusUnreachable Status = "unreachable" // Reachability check failed
	StatusIgnored     Status = "ignored"     // Exempted by an ignore rule
	StatusUnshortened Status = "unshortened" // Retries exhausted
)

// Replacement records the decision made for one allow-listed token.
type Replacement struct {
	Index    int    `json:"index" yaml:"index"`
	Original string `json:"original" yaml:"original"`
	Result   string `json:"result" yaml:"result"`
	Domain   string `json:"domain" yaml:"domain"`
	Status   Status `json:"status" yaml:"status"`
	Attempts int    `json:"attempts,omitempty" yaml:"attempts,omitempty"`
	Reason   string `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// Changed reports whether the token was rewritten in the output.
func (r Replacement) Changed() bool {
	return r.Result != r.Original
}

// Report is the detailed outcome of a Process call.
type Report struct {
	Text         string        `json:"text" yaml:"text"`
	Tokens       int           `json:"tokens" yaml:"tokens"`
	Replacements []Replacement `json:"replacements" yaml:"replacements"`
}

// Count returns the number of replacements with the given status.
func (r *Report) Count(status Status) int {
	n := 0
	for _, rep := range r.Replacements {
		if rep.Status == status {
			n++
		}
	}
	return n
}
