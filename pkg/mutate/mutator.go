package mutate

import (
	"time"

	"github.com/google/uuid"
	"github.com/mkarlsson/taskgraph/pkg/cycles"
	"github.com/mkarlsson/taskgraph/pkg/graph"
	"github.com/mkarlsson/taskgraph/pkg/logging"
	"github.com/mkarlsson/taskgraph/pkg/model"
	"github.com/mkarlsson/taskgraph/pkg/reach"
	"github.com/mkarlsson/taskgraph/pkg/rules"
)

// ChangeSink receives one structured record per applied mutation. The sink
// is append-only from the engine's point of view.
type ChangeSink interface {
	Append(entry model.ChangeEntry) error
}

// Mutator applies single-edge changes to one task collection snapshot. The
// collection is owned by whichever caller loaded it for the duration of the
// operation; failed operations leave it untouched.
type Mutator struct {
	collection *model.TaskCollection
	sink       ChangeSink
	session    string
	now        func() time.Time
}

// NewMutator creates a mutator over the given collection. sink may be nil
// when the caller has no change log configured.
func NewMutator(c *model.TaskCollection, sink ChangeSink) *Mutator {
	return &Mutator{
		collection: c,
		sink:       sink,
		session:    uuid.NewString(),
		now:        time.Now,
	}
}

// AddOptions configures AddDependency. The zero value validates cycles and
// type rules and fails on violations.
type AddOptions struct {
	Reason         string
	Force          bool // Downgrade cycle and type violations to warnings
	SkipCycleCheck bool // Skip the cycle probe entirely
}

// ImpactSummary describes what the new edge touches: how many tasks hang off
// the dependent task, how deep the dependency's own chain runs, and whether
// the dependent task sits on the critical path per the priority heuristic.
type ImpactSummary struct {
	DirectDependents int  `json:"directDependents"`
	DependencyChain  int  `json:"dependencyChain"`
	OnCriticalPath   bool `json:"onCriticalPath"`
}

// AddResult reports the outcome of AddDependency
type AddResult struct {
	Added         bool
	AlreadyExists bool
	Warnings      []string
	Impact        *ImpactSummary
	Entry         *model.ChangeEntry
}

// AddDependency adds the edge taskID -> dependsOnID with the given type
// (empty defaults to blocking). Cycle and type violations fail the operation
// unless forced; self-dependencies and unknown tasks always fail. The cycle
// probe is local to the candidate edge: cycles already present elsewhere in
// the collection are the auditor's concern, not this operation's.
func (m *Mutator) AddDependency(taskID, dependsOnID string, typ model.DependencyType, opts AddOptions) (*AddResult, error) {
	if typ == "" {
		typ = model.DependencyBlocking
	}

	if taskID == dependsOnID {
		return nil, &SelfDependencyError{TaskID: taskID}
	}

	task := m.collection.FindTask(taskID)
	if task == nil {
		return nil, &TaskNotFoundError{TaskID: taskID}
	}
	dependency := m.collection.FindTask(dependsOnID)
	if dependency == nil {
		return nil, &TaskNotFoundError{TaskID: dependsOnID}
	}

	if task.DependsOn(dependsOnID) {
		return &AddResult{AlreadyExists: true}, nil
	}

	g := graph.New(m.collection)
	result := &AddResult{}

	if !opts.SkipCycleCheck {
		check := cycles.WouldCreateCycle(g, taskID, dependsOnID)
		if check.HasCycle {
			if !opts.Force {
				return nil, &CircularDependencyError{From: taskID, To: dependsOnID, CyclePath: check.Path}
			}
			logging.Warn("forcing cycle-creating dependency",
				"task", taskID, "dependsOn", dependsOnID, "cycle", check.Path)
			result.Warnings = append(result.Warnings,
				(&CircularDependencyError{From: taskID, To: dependsOnID, CyclePath: check.Path}).Error())
		}
	}

	if verdict := rules.Validate(task, dependency, typ); !verdict.Valid {
		if !opts.Force {
			return nil, &DependencyTypeError{From: taskID, To: dependsOnID, Type: typ, Reason: verdict.Reason}
		}
		logging.Warn("forcing dependency past type validation",
			"task", taskID, "dependsOn", dependsOnID, "type", typ, "reason", verdict.Reason)
		result.Warnings = append(result.Warnings, verdict.Reason)
	}

	now := m.now()
	task.Dependencies = append(task.Dependencies, dependsOnID)
	task.DetailedDependencies = append(task.DetailedDependencies, model.DetailedDependency{
		TaskID:  dependsOnID,
		Type:    typ,
		AddedAt: now,
		Reason:  opts.Reason,
		AddedBy: m.session,
	})
	task.UpdatedAt = now
	m.collection.TouchDependencyStats(1, now)

	result.Added = true
	result.Entry = m.record(model.ChangeEntry{
		Action:    model.ActionAdd,
		TaskID:    taskID,
		DependsOn: dependsOnID,
		Type:      typ,
		Reason:    opts.Reason,
		Forced:    opts.Force && len(result.Warnings) > 0,
		Timestamp: now,
	})

	// Impact over the post-add graph.
	g = graph.New(m.collection)
	result.Impact = &ImpactSummary{
		DirectDependents: len(g.Dependents(taskID)),
		DependencyChain:  reach.ChainLength(g, dependsOnID),
		OnCriticalPath:   rules.OnCriticalPath(g, task),
	}

	logging.Info("dependency added", "task", taskID, "dependsOn", dependsOnID, "type", typ)
	return result, nil
}

// RemoveOptions configures RemoveDependency. The zero value analyzes impact
// and fails on blocking warnings.
type RemoveOptions struct {
	Force              bool // Downgrade blocking removal warnings
	CascadeRemoval     bool // Also drop edges made redundant by this removal
	SkipImpactAnalysis bool // Skip the removal-impact checks entirely
}

// RemoveResult reports the outcome of RemoveDependency
type RemoveResult struct {
	Removed  bool
	NotFound bool
	Warnings []ImpactWarning
	Cascades []model.CascadeResult
	Entry    *model.ChangeEntry
}

// RemoveDependency removes the edge taskID -> dependsOnID. Impact analysis
// runs first unless skipped; blocking warnings fail the operation unless
// forced. With CascadeRemoval, edges made redundant by this removal are
// dropped and individually logged.
func (m *Mutator) RemoveDependency(taskID, dependsOnID string, opts RemoveOptions) (*RemoveResult, error) {
	task := m.collection.FindTask(taskID)
	if task == nil {
		return nil, &TaskNotFoundError{TaskID: taskID}
	}
	if !task.DependsOn(dependsOnID) {
		return &RemoveResult{NotFound: true}, nil
	}

	g := graph.New(m.collection)
	result := &RemoveResult{}

	if !opts.SkipImpactAnalysis {
		result.Warnings = m.analyzeRemoval(g, task, dependsOnID)
		if hasBlocking(result.Warnings) && !opts.Force {
			return nil, &RemovalWarningError{From: taskID, To: dependsOnID, Warnings: result.Warnings}
		}
		if hasBlocking(result.Warnings) {
			logging.Warn("forcing dependency removal past blocking warnings",
				"task", taskID, "dependsOn", dependsOnID, "warnings", len(result.Warnings))
		}
	}

	now := m.now()
	m.dropEdge(task, dependsOnID, now)

	if opts.CascadeRemoval {
		result.Cascades = m.cascade(taskID, dependsOnID, now)
	}

	result.Removed = true
	result.Entry = m.record(model.ChangeEntry{
		Action:         model.ActionRemove,
		TaskID:         taskID,
		DependsOn:      dependsOnID,
		Forced:         opts.Force && hasBlocking(result.Warnings),
		CascadeResults: result.Cascades,
		Timestamp:      now,
	})

	logging.Info("dependency removed", "task", taskID, "dependsOn", dependsOnID,
		"cascades", len(result.Cascades))
	return result, nil
}

// analyzeRemoval runs the four removal-impact checks over the pre-removal graph
func (m *Mutator) analyzeRemoval(g *graph.DependencyGraph, task *model.Task, dependsOnID string) []ImpactWarning {
	var warnings []ImpactWarning
	dependency := m.collection.FindTask(dependsOnID)

	// Premature unblock: the dependent still waits while the dependency is
	// unfinished; cutting the edge would release it too early.
	if dependency != nil &&
		(task.Status == model.StatusPending || task.Status == model.StatusBlocked) &&
		dependency.Status != model.StatusCompleted {
		warnings = append(warnings, ImpactWarning{
			Kind:     WarnPrematureUnblock,
			Message:  "removing this dependency may unblock " + task.ID + " before " + dependsOnID + " is completed",
			Blocking: true,
		})
	}

	if dependency != nil {
		if inferred, reason := rules.InferLogicalDependency(task, dependency); inferred {
			warnings = append(warnings, ImpactWarning{
				Kind:    WarnLogicalDependency,
				Message: "titles suggest a real ordering: " + reason,
			})
		}
	}

	// Dependents of the task that reached the dependency only through it
	// lose their route once the edge goes.
	for _, depID := range g.Dependents(task.ID) {
		if !reach.HasPathAvoiding(g, depID, dependsOnID, task.ID) {
			warnings = append(warnings, ImpactWarning{
				Kind:    WarnOrphanedDependent,
				Message: depID + " has no alternate path to " + dependsOnID,
			})
		}
	}

	if dependency != nil && rules.OnCriticalPath(g, task) && rules.OnCriticalPath(g, dependency) {
		warnings = append(warnings, ImpactWarning{
			Kind:     WarnCriticalPath,
			Message:  "both " + task.ID + " and " + dependsOnID + " are on the critical path",
			Blocking: true,
		})
	}

	return warnings
}

// cascade removes, for every other task with direct edges to both endpoints,
// its edge to the removed dependency: the route through the dependent task
// already implies the relation.
func (m *Mutator) cascade(taskID, dependsOnID string, now time.Time) []model.CascadeResult {
	var results []model.CascadeResult

	for _, other := range m.collection.Tasks {
		if other.ID == taskID {
			continue
		}
		if !other.DependsOn(dependsOnID) || !other.DependsOn(taskID) {
			continue
		}

		m.dropEdge(other, dependsOnID, now)
		reason := "redundant via " + taskID
		results = append(results, model.CascadeResult{
			TaskID:            other.ID,
			RemovedDependency: dependsOnID,
			Reason:            reason,
		})
		m.record(model.ChangeEntry{
			Action:    model.ActionRemove,
			TaskID:    other.ID,
			DependsOn: dependsOnID,
			Reason:    reason,
			Timestamp: now,
		})
		logging.Info("cascade removal", "task", other.ID, "dependsOn", dependsOnID, "via", taskID)
	}

	return results
}

// dropEdge removes the simple dependency and its detailed counterpart,
// keeping the two sequences cardinality-aligned, and updates the aggregates.
func (m *Mutator) dropEdge(task *model.Task, dependsOnID string, now time.Time) {
	for i, dep := range task.Dependencies {
		if dep == dependsOnID {
			task.Dependencies = append(task.Dependencies[:i], task.Dependencies[i+1:]...)
			break
		}
	}
	for i, detail := range task.DetailedDependencies {
		if detail.TaskID == dependsOnID {
			task.DetailedDependencies = append(task.DetailedDependencies[:i], task.DetailedDependencies[i+1:]...)
			break
		}
	}
	task.UpdatedAt = now
	m.collection.TouchDependencyStats(-1, now)
}

func (m *Mutator) record(entry model.ChangeEntry) *model.ChangeEntry {
	entry.ID = uuid.NewString()
	if m.sink != nil {
		if err := m.sink.Append(entry); err != nil {
			// The mutation already applied; a sink failure must not roll it
			// back or fail the operation.
			logging.Error("change log append failed", "error", err, "action", entry.Action)
		}
	}
	return &entry
}

func hasBlocking(warnings []ImpactWarning) bool {
	for _, w := range warnings {
		if w.Blocking {
			return true
		}
	}
	return false
}
