package harness

import "github.com/roach88/gelsim/internal/store"

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every assertion held.
	Pass bool `json:"pass"`

	// Run is the run as read back from the archive.
	Run store.Run `json:"run"`

	// Errors contains assertion failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Errors: []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// lane returns the archived bands of the named lane in load order.
func lane(run store.Run, name string) []store.Band {
	out := []store.Band{}
	for _, b := range run.Bands {
		if b.LaneName == name {
			out = append(out, b)
		}
	}
	return out
}
