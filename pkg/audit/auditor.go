package audit

import (
	"fmt"
	"strings"
	"time"

	"github.com/mkarlsson/taskgraph/pkg/cycles"
	"github.com/mkarlsson/taskgraph/pkg/graph"
	"github.com/mkarlsson/taskgraph/pkg/logging"
	"github.com/mkarlsson/taskgraph/pkg/model"
	"github.com/mkarlsson/taskgraph/pkg/reach"
	"github.com/mkarlsson/taskgraph/pkg/rules"
)

// Check selects one category of audit
type Check string

const (
	CheckCycles       Check = "cycles"
	CheckLogical      Check = "logical"
	CheckOrphans      Check = "orphans"
	CheckRedundant    Check = "redundant"
	CheckCriticalPath Check = "critical-path"
	CheckFull         Check = "full"
)

// Thresholds for the critical-path heuristics
const (
	bottleneckDependents = 3
	longChainDepth       = 5
)

// Options configures an audit run
type Options struct {
	Checks  []Check
	AutoFix bool // Apply mechanical fixes, then re-audit
}

// ParseChecks turns a comma-separated list into checks, defaulting to full
func ParseChecks(s string) []Check {
	if strings.TrimSpace(s) == "" {
		return []Check{CheckFull}
	}
	var checks []Check
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			checks = append(checks, Check(trimmed))
		}
	}
	return checks
}

// Auditor runs whole-graph validation over one collection snapshot. Unlike
// the mutator's pre-flight probe, which is local to the candidate edge, the
// auditor is the only place pre-existing problems surface.
type Auditor struct {
	collection *model.TaskCollection
	now        func() time.Time
}

// NewAuditor creates an auditor over the given collection
func NewAuditor(c *model.TaskCollection) *Auditor {
	return &Auditor{collection: c, now: time.Now}
}

// Run executes the requested checks and returns the categorized issue list.
// With AutoFix set, fixable issues are applied to the collection and the
// same checks re-run, so the returned report describes the post-fix state
// with the fix outcomes attached.
func (a *Auditor) Run(opts Options) *model.Report {
	report := a.scan(opts.Checks)
	if !opts.AutoFix {
		return report
	}

	fixes := a.applyFixes(report.Issues)
	if len(fixes) == 0 {
		return report
	}

	logging.Info("auto-fix applied, re-auditing", "fixes", len(fixes))
	fixed := a.scan(opts.Checks)
	fixed.Fixes = fixes
	return fixed
}

func (a *Auditor) scan(checks []Check) *model.Report {
	g := graph.New(a.collection)
	report := &model.Report{Issues: []model.Issue{}}

	// Structural integrity is checked on every run: later checks assume the
	// issue list already names any dangling references.
	report.Issues = append(report.Issues, a.checkMissingReferences(g)...)

	for _, check := range a.expand(checks) {
		switch check {
		case CheckCycles:
			report.Issues = append(report.Issues, a.checkCycles(g)...)
		case CheckLogical:
			report.Issues = append(report.Issues, a.checkLogical(g)...)
		case CheckOrphans:
			report.Issues = append(report.Issues, a.checkOrphans(g)...)
		case CheckRedundant:
			report.Issues = append(report.Issues, a.checkRedundant(g)...)
		case CheckCriticalPath:
			report.Issues = append(report.Issues, a.checkCriticalPath(g)...)
		default:
			logging.Warn("unknown audit check requested", "check", check)
		}
	}

	report.Summarize()
	report.Metrics = a.metrics(g)
	return report
}

func (a *Auditor) expand(checks []Check) []Check {
	for _, check := range checks {
		if check == CheckFull {
			return []Check{CheckCycles, CheckLogical, CheckOrphans, CheckRedundant, CheckCriticalPath}
		}
	}
	return checks
}

func (a *Auditor) checkCycles(g *graph.DependencyGraph) []model.Issue {
	var issues []model.Issue
	for _, cycle := range cycles.FindAllCycles(g) {
		issues = append(issues, model.Issue{
			Type:          model.IssueCycle,
			Severity:      model.SeverityCritical,
			Title:         "Circular dependency",
			Description:   "dependency cycle: " + strings.Join(cycle, " -> "),
			AffectedTasks: cycle[:len(cycle)-1],
			Suggestion:    "remove one edge of the cycle to restore a valid ordering",
		})
	}
	return issues
}

func (a *Auditor) checkMissingReferences(g *graph.DependencyGraph) []model.Issue {
	var issues []model.Issue
	for _, id := range g.AllTaskIDs() {
		for _, dep := range g.Neighbors(id) {
			if g.TaskExists(dep) {
				continue
			}
			issues = append(issues, model.Issue{
				Type:          model.IssueMissingReference,
				Severity:      model.SeverityCritical,
				Title:         "Missing dependency",
				Description:   fmt.Sprintf("%s depends on %s, which does not exist", id, dep),
				AffectedTasks: []string{id, dep},
				Suggestion:    "remove the dangling edge",
				AutoFixable:   true,
			})
		}
	}
	return issues
}

func (a *Auditor) checkLogical(g *graph.DependencyGraph) []model.Issue {
	var issues []model.Issue
	for _, id := range g.AllTaskIDs() {
		task, _ := g.Task(id)
		for _, depID := range g.Neighbors(id) {
			dep, exists := g.Task(depID)
			if !exists {
				continue // Reported as a missing reference
			}

			if inferred, reason := rules.InferLogicalDependency(task, dep); inferred {
				issues = append(issues, model.Issue{
					Type:          model.IssueLogical,
					Severity:      model.SeverityWarning,
					Title:         "Inferred logical dependency",
					Description:   reason,
					AffectedTasks: []string{id, depID},
					Suggestion:    "review whether this edge encodes a real ordering before changing it",
				})
			}

			if task.Status == model.StatusCompleted &&
				dep.Status != model.StatusCompleted && dep.Status != model.StatusCancelled {
				issues = append(issues, model.Issue{
					Type:          model.IssueStatus,
					Severity:      model.SeverityWarning,
					Title:         "Completed before dependency",
					Description:   fmt.Sprintf("%s is completed but its dependency %s is %s", id, depID, dep.Status),
					AffectedTasks: []string{id, depID},
					Suggestion:    "verify the completion or correct the dependency's status",
				})
			} else if task.Status == model.StatusInProgress && dep.Status == model.StatusPending {
				issues = append(issues, model.Issue{
					Type:          model.IssueStatus,
					Severity:      model.SeverityInfo,
					Title:         "Started before dependency",
					Description:   fmt.Sprintf("%s is in progress but its dependency %s has not started", id, depID),
					AffectedTasks: []string{id, depID},
				})
			}

			if task.Priority == model.PriorityHigh && dep.Priority == model.PriorityLow {
				issues = append(issues, model.Issue{
					Type:          model.IssuePriority,
					Severity:      model.SeverityInfo,
					Title:         "Priority inversion",
					Description:   fmt.Sprintf("high-priority %s depends on low-priority %s", id, depID),
					AffectedTasks: []string{id, depID},
					Suggestion:    "raise the dependency's priority",
					AutoFixable:   true,
				})
			}
		}
	}
	return issues
}

func (a *Auditor) checkOrphans(g *graph.DependencyGraph) []model.Issue {
	var issues []model.Issue
	for _, id := range g.AllTaskIDs() {
		if len(g.Neighbors(id)) > 0 || len(g.Dependents(id)) > 0 {
			continue
		}
		issues = append(issues, model.Issue{
			Type:          model.IssueOrphan,
			Severity:      model.SeverityInfo,
			Title:         "Orphaned task",
			Description:   id + " has no dependencies and no dependents",
			AffectedTasks: []string{id},
			Suggestion:    "connect the task to the graph or confirm it is standalone work",
		})
	}
	return issues
}

func (a *Auditor) checkRedundant(g *graph.DependencyGraph) []model.Issue {
	var issues []model.Issue
	for _, id := range g.AllTaskIDs() {
		for _, depID := range g.Neighbors(id) {
			if !g.TaskExists(depID) || id == depID {
				continue
			}
			if reach.HasPath(g, id, depID, true) {
				issues = append(issues, model.Issue{
					Type:          model.IssueRedundant,
					Severity:      model.SeverityInfo,
					Title:         "Redundant dependency",
					Description:   fmt.Sprintf("%s -> %s is already implied by an indirect path", id, depID),
					AffectedTasks: []string{id, depID},
					Suggestion:    "remove the direct edge",
					AutoFixable:   true,
				})
			}
		}
	}
	return issues
}

func (a *Auditor) checkCriticalPath(g *graph.DependencyGraph) []model.Issue {
	var issues []model.Issue
	for _, id := range g.AllTaskIDs() {
		if dependents := g.Dependents(id); len(dependents) >= bottleneckDependents {
			issues = append(issues, model.Issue{
				Type:          model.IssueBottleneck,
				Severity:      model.SeverityWarning,
				Title:         "Bottleneck task",
				Description:   fmt.Sprintf("%d tasks depend directly on %s", len(dependents), id),
				AffectedTasks: append([]string{id}, dependents...),
				Suggestion:    "split the task or parallelize its dependents",
			})
		}
		if depth := reach.ChainLength(g, id); depth >= longChainDepth {
			issues = append(issues, model.Issue{
				Type:          model.IssueLongChain,
				Severity:      model.SeverityInfo,
				Title:         "Long dependency chain",
				Description:   fmt.Sprintf("%s sits on a dependency chain %d tasks deep", id, depth),
				AffectedTasks: []string{id},
				Suggestion:    "look for chain links that can run in parallel",
			})
		}
	}
	return issues
}

func (a *Auditor) metrics(g *graph.DependencyGraph) *model.Metrics {
	m := &model.Metrics{
		TaskCount:       len(g.AllTaskIDs()),
		DependencyCount: g.EdgeCount(),
		CycleComponents: len(cycles.Components(g)),
	}
	for _, id := range g.AllTaskIDs() {
		if depth := reach.ChainLength(g, id); depth > m.MaxChainLength {
			m.MaxChainLength = depth
		}
		if len(g.Neighbors(id)) == 0 && len(g.Dependents(id)) == 0 {
			m.OrphanCount++
		}
	}
	return m
}
