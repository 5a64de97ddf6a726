package model

import (
	"encoding/json"
	"time"
)

// TaskStatus represents the lifecycle state of a task
type TaskStatus string

const (
	StatusPending    TaskStatus = "pending"
	StatusInProgress TaskStatus = "in-progress"
	StatusCompleted  TaskStatus = "completed"
	StatusBlocked    TaskStatus = "blocked"
	StatusCancelled  TaskStatus = "cancelled"
)

// TaskPriority represents the scheduling priority of a task
type TaskPriority string

const (
	PriorityHigh   TaskPriority = "high"
	PriorityMedium TaskPriority = "medium"
	PriorityLow    TaskPriority = "low"
)

// DependencyType represents the semantic relation carried by a dependency edge
type DependencyType string

const (
	DependencyBlocking       DependencyType = "blocking"         // Dependency must complete before the task can proceed
	DependencyRelated        DependencyType = "related"          // Informational link, no ordering constraint
	DependencyOptional       DependencyType = "optional"         // Nice-to-have ordering, never enforced
	DependencyFinishToStart  DependencyType = "finish-to-start"  // Dependency finishes before the task starts
	DependencyStartToStart   DependencyType = "start-to-start"   // Dependency starts before the task starts
	DependencyFinishToFinish DependencyType = "finish-to-finish" // Dependency finishes before the task finishes
	DependencyStartToFinish  DependencyType = "start-to-finish"  // Dependency starts before the task finishes
)

// Known reports whether the type is one of the recognized dependency types
func (d DependencyType) Known() bool {
	switch d {
	case DependencyBlocking, DependencyRelated, DependencyOptional,
		DependencyFinishToStart, DependencyStartToStart,
		DependencyFinishToFinish, DependencyStartToFinish:
		return true
	}
	return false
}

// DetailedDependency carries the edge metadata for one entry in a task's
// Dependencies list. The two sequences are kept cardinality-aligned.
type DetailedDependency struct {
	TaskID  string         `json:"taskId"`
	Type    DependencyType `json:"type"`
	AddedAt time.Time      `json:"addedAt"`
	Reason  string         `json:"reason,omitempty"`
	AddedBy string         `json:"addedBy,omitempty"`
}

// Task represents a unit of work and its outgoing dependency edges.
// Attributes beyond the dependency fields are payload consumed by validators
// but owned by other tools; unknown fields round-trip through Extra.
type Task struct {
	ID                   string               `json:"id"`
	Title                string               `json:"title"`
	Description          string               `json:"description,omitempty"`
	Status               TaskStatus           `json:"status"`
	Priority             TaskPriority         `json:"priority"`
	Effort               float64              `json:"effort,omitempty"`
	Skills               []string             `json:"skills,omitempty"`
	Dependencies         []string             `json:"dependencies"`
	DetailedDependencies []DetailedDependency `json:"detailed_dependencies,omitempty"`
	CreatedAt            time.Time            `json:"created_at,omitzero"`
	UpdatedAt            time.Time            `json:"updated_at,omitzero"`

	// Extra holds fields this engine does not model, preserved verbatim
	// so report-generation tools keep whatever metadata they stored.
	Extra map[string]json.RawMessage `json:"-"`
}

// taskFields are the JSON keys owned by the Task struct itself.
var taskFields = []string{
	"id", "title", "description", "status", "priority", "effort", "skills",
	"dependencies", "detailed_dependencies", "created_at", "updated_at",
}

// UnmarshalJSON decodes the known task fields and stashes everything else in Extra.
func (t *Task) UnmarshalJSON(data []byte) error {
	type alias Task
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for _, key := range taskFields {
		delete(raw, key)
	}
	if len(raw) > 0 {
		a.Extra = raw
	}

	*t = Task(a)
	return nil
}

// MarshalJSON encodes the known fields and merges the Extra passthrough back in.
func (t Task) MarshalJSON() ([]byte, error) {
	type alias Task
	data, err := json.Marshal(alias(t))
	if err != nil {
		return nil, err
	}
	if len(t.Extra) == 0 {
		return data, nil
	}

	var merged map[string]json.RawMessage
	if err := json.Unmarshal(data, &merged); err != nil {
		return nil, err
	}
	for key, value := range t.Extra {
		if _, owned := merged[key]; !owned {
			merged[key] = value
		}
	}
	return json.Marshal(merged)
}

// DependsOn reports whether the task has a direct edge to the given id
func (t *Task) DependsOn(id string) bool {
	for _, dep := range t.Dependencies {
		if dep == id {
			return true
		}
	}
	return false
}

// DetailFor returns the detailed entry for a direct dependency, if recorded
func (t *Task) DetailFor(id string) (DetailedDependency, bool) {
	for _, d := range t.DetailedDependencies {
		if d.TaskID == id {
			return d, true
		}
	}
	return DetailedDependency{}, false
}
