package mutate

import (
	"fmt"
	"strings"

	"github.com/mkarlsson/taskgraph/pkg/model"
)

// The mutator returns typed errors so callers can branch on the failure kind
// with errors.As instead of parsing message text.

// SelfDependencyError reports an attempt to make a task depend on itself.
// Never downgraded by force.
type SelfDependencyError struct {
	TaskID string
}

func (e *SelfDependencyError) Error() string {
	return fmt.Sprintf("task %s cannot depend on itself", e.TaskID)
}

// TaskNotFoundError reports that an endpoint of the requested edge does not
// exist in the collection. Never downgraded by force.
type TaskNotFoundError struct {
	TaskID string
}

func (e *TaskNotFoundError) Error() string {
	return fmt.Sprintf("task %s not found", e.TaskID)
}

// CircularDependencyError reports that the requested edge would close a
// directed cycle. CyclePath starts and ends at the revisited task.
type CircularDependencyError struct {
	From      string
	To        string
	CyclePath []string
}

func (e *CircularDependencyError) Error() string {
	return fmt.Sprintf("adding %s -> %s would create a cycle: %s",
		e.From, e.To, strings.Join(e.CyclePath, " -> "))
}

// DependencyTypeError reports that the edge fails its type's semantic rule
type DependencyTypeError struct {
	From   string
	To     string
	Type   model.DependencyType
	Reason string
}

func (e *DependencyTypeError) Error() string {
	return fmt.Sprintf("invalid %s dependency %s -> %s: %s", e.Type, e.From, e.To, e.Reason)
}

// RemovalWarningError reports that removing the edge raised blocking-severity
// warnings. Carries the full warning list, blocking and informational alike.
type RemovalWarningError struct {
	From     string
	To       string
	Warnings []ImpactWarning
}

func (e *RemovalWarningError) Error() string {
	return fmt.Sprintf("removing %s -> %s raised %d warning(s); use force to override",
		e.From, e.To, len(e.Warnings))
}

// ImpactWarning is one finding from the removal-impact analysis. Blocking
// warnings fail the removal unless forced; the rest are informational.
type ImpactWarning struct {
	Kind     string `json:"kind"`
	Message  string `json:"message"`
	Blocking bool   `json:"blocking"`
}

// Warning kinds reported by the removal-impact analysis
const (
	WarnPrematureUnblock  = "premature-unblock"
	WarnLogicalDependency = "logical-dependency"
	WarnOrphanedDependent = "orphaned-dependent"
	WarnCriticalPath      = "critical-path"
)
