package core

// DriftSeverity grades behavioral deviation found by the auditor.
type DriftSeverity string

const (
	DriftSeverityNone     DriftSeverity = "none"
	DriftSeverityLow      DriftSeverity = "low"
	DriftSeverityMedium   DriftSeverity = "medium"
	DriftSeverityHigh     DriftSeverity = "high"
	DriftSeverityCritical DriftSeverity = "critical"
)

// DriftDimensions are the four measured axes of behavioral drift.
// A value of 1.0 means fully aligned.
type DriftDimensions struct {
	GoalAlignment        float64 `json:"goal_alignment"`
	BehaviorConsistency  float64 `json:"behavior_consistency"`
	OutputQuality        float64 `json:"output_quality"`
	InstructionAdherence float64 `json:"instruction_adherence"`
}

// DriftReport measures behavioral deviation for one orchestration run.
type DriftReport struct {
	Score       float64         `json:"score"`
	Dimensions  DriftDimensions `json:"dimensions"`
	Severity    DriftSeverity   `json:"severity"`
	Corrections []string        `json:"corrections"`
}

// AuditReport is the audit phase's output.
type AuditReport struct {
	Drift           DriftReport `json:"drift"`
	EventsAnalyzed  int         `json:"events_analyzed"`
	Anomalies       []string    `json:"anomalies"`
	Recommendations []string    `json:"recommendations"`
}

// AuditRequest carries the context the auditor inspects.
type AuditRequest struct {
	Plan          *ExecutionPlan
	AgentID       string
	Identity      *IdentityConfig
	RecentOutputs []string
}

// NeutralAuditReport returns the all-neutral default substituted when the
// audit phase is skipped or fails. Both paths share this single factory so
// the literal is defined exactly once.
func NeutralAuditReport() AuditReport {
	return AuditReport{
		Drift: DriftReport{
			Score: 0,
			Dimensions: DriftDimensions{
				GoalAlignment:        1,
				BehaviorConsistency:  1,
				OutputQuality:        1,
				InstructionAdherence: 1,
			},
			Severity:    DriftSeverityNone,
			Corrections: []string{},
		},
		EventsAnalyzed:  0,
		Anomalies:       []string{},
		Recommendations: []string{},
	}
}
