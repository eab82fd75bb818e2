package history

import (
	"time"

	"github.com/twinsync/twinsync/pkg/engine"
)

// Run is one archived engine run.
type Run struct {
	ID         string    `json:"id"`
	Operation  string    `json:"operation"`
	Status     string    `json:"status"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Detail     string    `json:"detail,omitempty"`
}

// Duration returns how long the run took.
func (r Run) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Execution is one archived provider dispatch within a run. Actions and
// Results are stored as JSON blobs in the database.
type Execution struct {
	ID        int64                 `json:"id"`
	RunID     string                `json:"run_id"`
	Provider  string                `json:"provider"`
	Actions   []engine.Action       `json:"actions"`
	Results   []engine.ActionResult `json:"results"`
	CreatedAt time.Time             `json:"created_at"`
}
