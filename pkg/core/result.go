package core

// PipelineResult captures the outcome of executing one plan step.
// It is produced once per step and never mutated afterwards.
type PipelineResult struct {
	Tool       string `json:"tool"`
	RequestID  string `json:"request_id"`
	Success    bool   `json:"success"`
	Result     any    `json:"result,omitempty"`
	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

// VerificationReport is the verifier's judgement for one execution,
// correlated back to the step by RequestID.
type VerificationReport struct {
	RequestID     string   `json:"request_id"`
	OverallPassed bool     `json:"overall_passed"`
	Issues        []string `json:"issues,omitempty"`
}

// MemoryWriteRequest is one item of the memory batch derived from a
// successful, non-nil execution result.
type MemoryWriteRequest struct {
	Content     string  `json:"content"`
	Source      string  `json:"source"`
	Reliability float64 `json:"reliability"`
}

// MemoryReport summarizes a batched memory write.
type MemoryReport struct {
	BatchID      string `json:"batch_id,omitempty"`
	ItemsWritten int    `json:"items_written"`
}

// OrchestratedResult is the terminal aggregate returned to the caller.
// Success holds iff every execution succeeded and every verification passed.
type OrchestratedResult struct {
	Plan                *ExecutionPlan       `json:"plan"`
	Executions          []PipelineResult     `json:"executions"`
	VerificationReports []VerificationReport `json:"verification_reports"`
	MemoryReport        *MemoryReport        `json:"memory_report,omitempty"`
	AuditReport         AuditReport          `json:"audit_report"`
	DurationMs          int64                `json:"duration_ms"`
	Success             bool                 `json:"success"`
}

// OverallSuccess computes the final success conjunction over executions and
// verification reports.
func OverallSuccess(executions []PipelineResult, verifications []VerificationReport) bool {
	for _, exec := range executions {
		if !exec.Success {
			return false
		}
	}
	for _, report := range verifications {
		if !report.OverallPassed {
			return false
		}
	}
	return true
}
