package model

// Severity classifies how urgently an audit issue needs attention
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// IssueType identifies the category of an audit finding
type IssueType string

const (
	IssueCycle             IssueType = "circular-dependency"
	IssueMissingReference  IssueType = "missing-reference"
	IssueLogical           IssueType = "logical-inconsistency"
	IssueStatus            IssueType = "status-inconsistency"
	IssuePriority          IssueType = "priority-inconsistency"
	IssueOrphan            IssueType = "orphaned-task"
	IssueRedundant         IssueType = "redundant-dependency"
	IssueBottleneck        IssueType = "bottleneck"
	IssueLongChain         IssueType = "long-chain"
)

// Issue is one audit finding
type Issue struct {
	Type          IssueType `json:"type"`
	Severity      Severity  `json:"severity"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	AffectedTasks []string  `json:"affectedTasks"`
	Suggestion    string    `json:"suggestion,omitempty"`
	AutoFixable   bool      `json:"autoFixable"`
}

// Summary counts issues by severity
type Summary struct {
	Critical int `json:"critical"`
	Warnings int `json:"warnings"`
	Info     int `json:"info"`
	Total    int `json:"total"`
}

// Metrics are whole-graph measurements computed alongside an audit
type Metrics struct {
	TaskCount       int `json:"taskCount"`
	DependencyCount int `json:"dependencyCount"`
	CycleComponents int `json:"cycleComponents"` // strongly connected components of size > 1
	MaxChainLength  int `json:"maxChainLength"`
	OrphanCount     int `json:"orphanCount"`
}

// FixResult records the outcome of one auto-fix attempt. A fix either applies
// fully or reports failure; it is never partial.
type FixResult struct {
	Issue   Issue  `json:"issue"`
	Applied bool   `json:"applied"`
	Reason  string `json:"reason,omitempty"`
}

// Report is the outcome of a full or partial graph audit
type Report struct {
	Issues  []Issue     `json:"issues"`
	Summary Summary     `json:"summary"`
	Metrics *Metrics    `json:"metrics,omitempty"`
	Fixes   []FixResult `json:"fixes,omitempty"`
}

// Summarize recomputes the severity counts from the issue list
func (r *Report) Summarize() {
	s := Summary{}
	for _, issue := range r.Issues {
		switch issue.Severity {
		case SeverityCritical:
			s.Critical++
		case SeverityWarning:
			s.Warnings++
		case SeverityInfo:
			s.Info++
		}
	}
	s.Total = len(r.Issues)
	r.Summary = s
}
