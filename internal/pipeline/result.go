package pipeline

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RunResult tracks counts, faults and errors from one run.
type RunResult struct {
	RunID  uuid.UUID
	DryRun bool

	RecordsLoaded     int
	ManualPairs       int
	Proposals         int
	Accepted          int
	Demoted           int
	MergeConflicts    int
	Unresolved        int
	Malformed         int
	Candidates        int
	IdentitiesWritten int
	LinksWritten      int
	ViewsPublished    int
	ExportFiles       []string

	// Faults are integrity faults that halted a source's resolution pass.
	Faults []string
	Errors []string

	Duration time.Duration
}

// AddFault records an integrity fault.
func (r *RunResult) AddFault(err error) {
	r.Faults = append(r.Faults, err.Error())
}

// AddError records an error message.
func (r *RunResult) AddError(msg string) {
	r.Errors = append(r.Errors, msg)
}

// AddErrorf records a formatted error message.
func (r *RunResult) AddErrorf(format string, args ...interface{}) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// Failed reports whether the run should exit non-zero.
func (r *RunResult) Failed() bool {
	return len(r.Faults) > 0 || len(r.Errors) > 0
}

// Summary returns a human-readable summary of the run.
func (r *RunResult) Summary() string {
	return fmt.Sprintf(
		"records=%d proposals=%d accepted=%d demoted=%d merge_conflicts=%d unresolved=%d candidates=%d identities=%d links=%d views=%d faults=%d errors=%d",
		r.RecordsLoaded, r.Proposals, r.Accepted, r.Demoted, r.MergeConflicts,
		r.Unresolved, r.Candidates, r.IdentitiesWritten, r.LinksWritten,
		r.ViewsPublished, len(r.Faults), len(r.Errors),
	)
}
