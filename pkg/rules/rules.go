package rules

import (
	"fmt"

	"github.com/mkarlsson/taskgraph/pkg/graph"
	"github.com/mkarlsson/taskgraph/pkg/model"
)

// Result is the outcome of a dependency type check
type Result struct {
	Valid  bool
	Reason string
}

func ok() Result {
	return Result{Valid: true}
}

func reject(format string, args ...any) Result {
	return Result{Reason: fmt.Sprintf(format, args...)}
}

// Validate applies the semantic rule for the given dependency type to the
// dependent task and its dependency. The check is advisory: the mutator lets
// callers force past a rejection.
func Validate(task, dependency *model.Task, typ model.DependencyType) Result {
	switch typ {
	case model.DependencyBlocking:
		if task.Priority == model.PriorityHigh && dependency.Priority == model.PriorityLow {
			return reject("high-priority task %s should not block on low-priority task %s", task.ID, dependency.ID)
		}
		return ok()

	case model.DependencyFinishToStart:
		if dependency.Status == model.StatusPending && task.Status == model.StatusCompleted {
			return reject("completed task %s cannot start after pending task %s finishes", task.ID, dependency.ID)
		}
		return ok()

	case model.DependencyStartToStart:
		if task.Status != model.StatusPending && dependency.Status == model.StatusPending {
			return reject("task %s has already started but dependency %s is still pending", task.ID, dependency.ID)
		}
		return ok()

	case model.DependencyFinishToFinish:
		if task.Status == model.StatusCompleted && dependency.Status != model.StatusCompleted {
			return reject("task %s is completed but dependency %s is not", task.ID, dependency.ID)
		}
		return ok()

	case model.DependencyStartToFinish:
		if task.Status == model.StatusCompleted && dependency.Status == model.StatusPending {
			return reject("task %s is completed but dependency %s has not started", task.ID, dependency.ID)
		}
		return ok()

	case model.DependencyRelated, model.DependencyOptional:
		// Informational relations carry no ordering constraint.
		return ok()

	default:
		return reject("unknown dependency type")
	}
}

// OnCriticalPath applies the critical-path heuristic: a high-priority task
// with at least one dependency or dependent. This is deliberately not a real
// critical-path-method calculation; downstream report text is worded around
// this exact definition.
func OnCriticalPath(g *graph.DependencyGraph, t *model.Task) bool {
	if t.Priority != model.PriorityHigh {
		return false
	}
	return len(g.Neighbors(t.ID)) > 0 || len(g.Dependents(t.ID)) > 0
}
