package audit

import (
	"fmt"

	"github.com/mkarlsson/taskgraph/pkg/logging"
	"github.com/mkarlsson/taskgraph/pkg/model"
)

// applyFixes applies the mechanical remediation for each auto-fixable issue.
// Each fix either applies fully or reports failure with a reason; there is
// no partial application.
func (a *Auditor) applyFixes(issues []model.Issue) []model.FixResult {
	var results []model.FixResult

	for _, issue := range issues {
		if !issue.AutoFixable {
			continue
		}

		result := model.FixResult{Issue: issue}
		switch issue.Type {
		case model.IssueMissingReference, model.IssueRedundant:
			result = a.fixRemoveEdge(issue)
		case model.IssuePriority:
			result = a.fixBumpPriority(issue)
		default:
			result.Reason = fmt.Sprintf("no fix handler for %s", issue.Type)
		}

		if result.Applied {
			logging.Info("auto-fix applied", "type", issue.Type, "tasks", issue.AffectedTasks)
		} else {
			logging.Warn("auto-fix failed", "type", issue.Type, "reason", result.Reason)
		}
		results = append(results, result)
	}

	return results
}

// fixRemoveEdge drops the edge named by the issue's affected pair, keeping
// the simple and detailed sequences aligned.
func (a *Auditor) fixRemoveEdge(issue model.Issue) model.FixResult {
	result := model.FixResult{Issue: issue}
	if len(issue.AffectedTasks) < 2 {
		result.Reason = "issue does not name an edge"
		return result
	}
	from, to := issue.AffectedTasks[0], issue.AffectedTasks[1]

	task := a.collection.FindTask(from)
	if task == nil {
		result.Reason = fmt.Sprintf("task %s no longer exists", from)
		return result
	}
	if !task.DependsOn(to) {
		result.Reason = fmt.Sprintf("edge %s -> %s already gone", from, to)
		return result
	}

	for i, dep := range task.Dependencies {
		if dep == to {
			task.Dependencies = append(task.Dependencies[:i], task.Dependencies[i+1:]...)
			break
		}
	}
	for i, detail := range task.DetailedDependencies {
		if detail.TaskID == to {
			task.DetailedDependencies = append(task.DetailedDependencies[:i], task.DetailedDependencies[i+1:]...)
			break
		}
	}
	now := a.now()
	task.UpdatedAt = now
	a.collection.TouchDependencyStats(-1, now)

	result.Applied = true
	return result
}

// fixBumpPriority raises the dependency's priority one level
func (a *Auditor) fixBumpPriority(issue model.Issue) model.FixResult {
	result := model.FixResult{Issue: issue}
	if len(issue.AffectedTasks) < 2 {
		result.Reason = "issue does not name an edge"
		return result
	}

	dep := a.collection.FindTask(issue.AffectedTasks[1])
	if dep == nil {
		result.Reason = fmt.Sprintf("task %s no longer exists", issue.AffectedTasks[1])
		return result
	}

	switch dep.Priority {
	case model.PriorityLow:
		dep.Priority = model.PriorityMedium
	case model.PriorityMedium:
		dep.Priority = model.PriorityHigh
	default:
		result.Reason = fmt.Sprintf("%s is already %s priority", dep.ID, dep.Priority)
		return result
	}

	dep.UpdatedAt = a.now()
	result.Applied = true
	return result
}
