package model

import "time"

// ChangeAction identifies the kind of mutation recorded in the change log
type ChangeAction string

const (
	ActionAdd    ChangeAction = "add"
	ActionRemove ChangeAction = "remove"
)

// CascadeResult records one edge removed as part of a cascade
type CascadeResult struct {
	TaskID            string `json:"taskId"`
	RemovedDependency string `json:"removedDependency"`
	Reason            string `json:"reason,omitempty"`
}

// ChangeEntry is one record emitted to the external change-log sink per
// mutation. The sink is append-only; the engine never reads entries back.
type ChangeEntry struct {
	ID             string          `json:"id"`
	Action         ChangeAction    `json:"action"`
	TaskID         string          `json:"taskId"`
	DependsOn      string          `json:"dependsOn"`
	Type           DependencyType  `json:"type,omitempty"`
	Reason         string          `json:"reason,omitempty"`
	Forced         bool            `json:"forced,omitempty"`
	CascadeResults []CascadeResult `json:"cascadeResults,omitempty"`
	Timestamp      time.Time       `json:"timestamp"`
}
