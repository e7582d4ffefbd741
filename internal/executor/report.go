package executor

import (
	"time"
)

// Report is the machine-readable record of one run, written to the log
// store as report.json.
type Report struct {
	RunID       string            `json:"run_id"`
	Event       string            `json:"event"`
	Branch      string            `json:"branch,omitempty"`
	StartedAt   time.Time         `json:"started_at"`
	CompletedAt time.Time         `json:"completed_at"`
	Conclusion  Conclusion        `json:"conclusion"`
	Instances   []*InstanceResult `json:"instances"`
}

// InstanceResult records the outcome of one job instance.
type InstanceResult struct {
	ID          string            `json:"id"`
	Job         string            `json:"job"`
	Matrix      map[string]string `json:"matrix,omitempty"`
	RunsOn      string            `json:"runs_on,omitempty"`
	Status      Status            `json:"status"`
	Conclusion  Conclusion        `json:"conclusion"`
	StartedAt   *time.Time        `json:"started_at,omitempty"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
	Steps       []*StepResult     `json:"steps"`

	err error
}

// StepResult records the outcome of one step within an instance.
type StepResult struct {
	Number      int        `json:"number"`
	Name        string     `json:"name"`
	Status      Status     `json:"status"`
	Conclusion  Conclusion `json:"conclusion"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	LogPath     string     `json:"log_path,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// Succeeded reports whether every instance in the run succeeded. The run
// conclusion is the logical AND of all instance conclusions.
func (r *Report) Succeeded() bool {
	for _, inst := range r.Instances {
		if inst.Conclusion != ConclusionSuccess {
			return false
		}
	}
	return true
}
