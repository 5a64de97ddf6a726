package mutate

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/mkarlsson/taskgraph/pkg/model"
)

// memorySink collects change entries in memory for assertions
type memorySink struct {
	entries []model.ChangeEntry
}

func (s *memorySink) Append(entry model.ChangeEntry) error {
	s.entries = append(s.entries, entry)
	return nil
}

func mkCollection(tasks ...*model.Task) *model.TaskCollection {
	c := &model.TaskCollection{Tasks: tasks}
	c.Metadata.Dependencies.TotalDependencies = c.EdgeCount()
	return c
}

func mkTask(id string, deps ...string) *model.Task {
	t := &model.Task{ID: id, Title: id, Status: model.StatusPending, Priority: model.PriorityMedium, Dependencies: deps}
	for _, dep := range deps {
		t.DetailedDependencies = append(t.DetailedDependencies, model.DetailedDependency{
			TaskID: dep, Type: model.DependencyBlocking, AddedAt: time.Now(),
		})
	}
	return t
}

func TestAddSelfDependency(t *testing.T) {
	c := mkCollection(mkTask("t1"))
	m := NewMutator(c, nil)

	_, err := m.AddDependency("t1", "t1", "", AddOptions{})
	var selfErr *SelfDependencyError
	if !errors.As(err, &selfErr) {
		t.Fatalf("Expected SelfDependencyError, got %v", err)
	}

	// Force never overrides a self dependency.
	_, err = m.AddDependency("t1", "t1", "", AddOptions{Force: true})
	if !errors.As(err, &selfErr) {
		t.Fatalf("Force must not override self dependency, got %v", err)
	}
}

func TestAddTaskNotFound(t *testing.T) {
	c := mkCollection(mkTask("t1"))
	m := NewMutator(c, nil)

	_, err := m.AddDependency("t1", "ghost", "", AddOptions{Force: true})
	var notFound *TaskNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("Expected TaskNotFoundError, got %v", err)
	}
	if notFound.TaskID != "ghost" {
		t.Errorf("Expected offending id ghost, got %s", notFound.TaskID)
	}

	_, err = m.AddDependency("ghost", "t1", "", AddOptions{})
	if !errors.As(err, &notFound) {
		t.Fatalf("Expected TaskNotFoundError for missing dependent, got %v", err)
	}
}

func TestAddAlreadyExists(t *testing.T) {
	c := mkCollection(mkTask("t1", "t2"), mkTask("t2"))
	m := NewMutator(c, nil)

	result, err := m.AddDependency("t1", "t2", "", AddOptions{})
	if err != nil {
		t.Fatalf("Duplicate add should be a no-op, got %v", err)
	}
	if !result.AlreadyExists || result.Added {
		t.Errorf("Expected AlreadyExists, got %+v", result)
	}
	if len(c.FindTask("t1").Dependencies) != 1 {
		t.Errorf("Dependencies should be unchanged, got %v", c.FindTask("t1").Dependencies)
	}
}

func TestAddCycleRejected(t *testing.T) {
	// t2 depends on t1, t3 depends on t2; closing t1 -> t3 is a cycle.
	c := mkCollection(mkTask("t1"), mkTask("t2", "t1"), mkTask("t3", "t2"))
	m := NewMutator(c, nil)

	_, err := m.AddDependency("t1", "t3", "", AddOptions{})
	var cycleErr *CircularDependencyError
	if !errors.As(err, &cycleErr) {
		t.Fatalf("Expected CircularDependencyError, got %v", err)
	}

	want := []string{"t1", "t3", "t2", "t1"}
	if !reflect.DeepEqual(cycleErr.CyclePath, want) {
		t.Errorf("Expected cycle path %v, got %v", want, cycleErr.CyclePath)
	}
	if len(c.FindTask("t1").Dependencies) != 0 {
		t.Error("Failed add must not modify the collection")
	}
}

func TestAddCycleForced(t *testing.T) {
	sink := &memorySink{}
	c := mkCollection(mkTask("t1"), mkTask("t2", "t1"), mkTask("t3", "t2"))
	m := NewMutator(c, sink)

	result, err := m.AddDependency("t1", "t3", "", AddOptions{Force: true})
	if err != nil {
		t.Fatalf("Forced add should succeed, got %v", err)
	}
	if !result.Added || len(result.Warnings) == 0 {
		t.Errorf("Forced add should succeed with warnings, got %+v", result)
	}
	if !c.FindTask("t1").DependsOn("t3") {
		t.Error("Forced edge should be present")
	}
	if len(sink.entries) != 1 || !sink.entries[0].Forced {
		t.Errorf("Change entry should record the forced override, got %+v", sink.entries)
	}
}

func TestAddSkipCycleCheck(t *testing.T) {
	c := mkCollection(mkTask("t1"), mkTask("t2", "t1"))
	m := NewMutator(c, nil)

	result, err := m.AddDependency("t1", "t2", "", AddOptions{SkipCycleCheck: true})
	if err != nil {
		t.Fatalf("Cycle check disabled, add should succeed: %v", err)
	}
	if !result.Added || len(result.Warnings) != 0 {
		t.Errorf("Expected clean add with checks skipped, got %+v", result)
	}
}

func TestAddTypeValidation(t *testing.T) {
	high := mkTask("t1")
	high.Priority = model.PriorityHigh
	low := mkTask("t2")
	low.Priority = model.PriorityLow
	c := mkCollection(high, low)
	m := NewMutator(c, nil)

	_, err := m.AddDependency("t1", "t2", model.DependencyBlocking, AddOptions{})
	var typeErr *DependencyTypeError
	if !errors.As(err, &typeErr) {
		t.Fatalf("Expected DependencyTypeError, got %v", err)
	}
	if typeErr.Reason == "" {
		t.Error("DependencyTypeError must carry the validation reason")
	}

	result, err := m.AddDependency("t1", "t2", model.DependencyBlocking, AddOptions{Force: true})
	if err != nil || !result.Added {
		t.Fatalf("Forced add should succeed, got (%+v, %v)", result, err)
	}
	if len(result.Warnings) != 1 {
		t.Errorf("Expected the validation reason as a warning, got %v", result.Warnings)
	}
}

func TestAddUnknownType(t *testing.T) {
	c := mkCollection(mkTask("t1"), mkTask("t2"))
	m := NewMutator(c, nil)

	_, err := m.AddDependency("t1", "t2", model.DependencyType("mystery"), AddOptions{})
	var typeErr *DependencyTypeError
	if !errors.As(err, &typeErr) {
		t.Fatalf("Expected DependencyTypeError for unknown type, got %v", err)
	}
	if typeErr.Reason != "unknown dependency type" {
		t.Errorf("Expected reason %q, got %q", "unknown dependency type", typeErr.Reason)
	}
}

func TestAddUpdatesBookkeeping(t *testing.T) {
	sink := &memorySink{}
	c := mkCollection(mkTask("t1"), mkTask("t2"))
	m := NewMutator(c, sink)

	result, err := m.AddDependency("t1", "t2", model.DependencyRelated, AddOptions{Reason: "shared schema"})
	if err != nil {
		t.Fatal(err)
	}

	task := c.FindTask("t1")
	if len(task.Dependencies) != 1 || len(task.DetailedDependencies) != 1 {
		t.Fatalf("Sequences out of sync: %v vs %v", task.Dependencies, task.DetailedDependencies)
	}
	detail := task.DetailedDependencies[0]
	if detail.TaskID != "t2" || detail.Type != model.DependencyRelated || detail.Reason != "shared schema" {
		t.Errorf("Unexpected detailed entry %+v", detail)
	}
	if detail.AddedBy == "" {
		t.Error("Detailed entry should record the session that added it")
	}
	if task.UpdatedAt.IsZero() {
		t.Error("Add should stamp the task's modification time")
	}
	if c.Metadata.Dependencies.TotalDependencies != 1 {
		t.Errorf("Counter should be 1, got %d", c.Metadata.Dependencies.TotalDependencies)
	}

	if len(sink.entries) != 1 {
		t.Fatalf("Expected 1 change entry, got %d", len(sink.entries))
	}
	entry := sink.entries[0]
	if entry.Action != model.ActionAdd || entry.TaskID != "t1" || entry.DependsOn != "t2" {
		t.Errorf("Unexpected change entry %+v", entry)
	}
	if entry.ID == "" || entry.Timestamp.IsZero() {
		t.Error("Change entries need an id and timestamp")
	}
	if result.Entry == nil || result.Entry.ID != entry.ID {
		t.Error("Result should carry the recorded entry")
	}
}

func TestAddImpactSummary(t *testing.T) {
	// t2 and t3 depend on t1; t4's chain is t4 -> t5.
	t1 := mkTask("t1")
	t1.Priority = model.PriorityHigh
	c := mkCollection(t1, mkTask("t2", "t1"), mkTask("t3", "t1"), mkTask("t4", "t5"), mkTask("t5"))
	m := NewMutator(c, nil)

	result, err := m.AddDependency("t1", "t4", model.DependencyRelated, AddOptions{})
	if err != nil {
		t.Fatal(err)
	}
	impact := result.Impact
	if impact == nil {
		t.Fatal("Successful add must return an impact summary")
	}
	if impact.DirectDependents != 2 {
		t.Errorf("t1 has 2 direct dependents, got %d", impact.DirectDependents)
	}
	if impact.DependencyChain != 2 {
		t.Errorf("t4's chain is t4 -> t5, depth 2, got %d", impact.DependencyChain)
	}
	if !impact.OnCriticalPath {
		t.Error("High-priority t1 with edges is on the critical path")
	}
}

func TestRemoveMissingEdge(t *testing.T) {
	c := mkCollection(mkTask("t1"), mkTask("t2"))
	m := NewMutator(c, nil)

	result, err := m.RemoveDependency("t1", "t2", RemoveOptions{})
	if err != nil {
		t.Fatalf("Missing edge is a no-op, got %v", err)
	}
	if !result.NotFound || result.Removed {
		t.Errorf("Expected NotFound, got %+v", result)
	}
}

func TestRemoveSymmetry(t *testing.T) {
	c := mkCollection(mkTask("t1", "t0"), mkTask("t0"), mkTask("t2"))
	task := c.FindTask("t1")
	task.Status = model.StatusInProgress // Avoid the premature-unblock warning
	wantDeps := append([]string(nil), task.Dependencies...)
	wantDetails := append([]model.DetailedDependency(nil), task.DetailedDependencies...)

	m := NewMutator(c, nil)
	if _, err := m.AddDependency("t1", "t2", model.DependencyOptional, AddOptions{}); err != nil {
		t.Fatal(err)
	}
	result, err := m.RemoveDependency("t1", "t2", RemoveOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if !result.Removed {
		t.Fatalf("Expected removal, got %+v", result)
	}

	if !reflect.DeepEqual(task.Dependencies, wantDeps) {
		t.Errorf("Dependencies not restored: want %v, got %v", wantDeps, task.Dependencies)
	}
	if !reflect.DeepEqual(task.DetailedDependencies, wantDetails) {
		t.Errorf("Detailed dependencies not restored: want %v, got %v", wantDetails, task.DetailedDependencies)
	}
	if c.Metadata.Dependencies.TotalDependencies != len(wantDeps) {
		t.Errorf("Counter should be back to %d, got %d", len(wantDeps), c.Metadata.Dependencies.TotalDependencies)
	}
}

func TestRemovePrematureUnblockBlocks(t *testing.T) {
	dep := mkTask("t2")
	dep.Status = model.StatusInProgress
	c := mkCollection(mkTask("t1", "t2"), dep)
	m := NewMutator(c, nil)

	_, err := m.RemoveDependency("t1", "t2", RemoveOptions{})
	var warnErr *RemovalWarningError
	if !errors.As(err, &warnErr) {
		t.Fatalf("Expected RemovalWarningError, got %v", err)
	}
	found := false
	for _, w := range warnErr.Warnings {
		if w.Kind == WarnPrematureUnblock && w.Blocking {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected a blocking premature-unblock warning, got %+v", warnErr.Warnings)
	}
	if !c.FindTask("t1").DependsOn("t2") {
		t.Error("Failed removal must leave the edge in place")
	}

	result, err := m.RemoveDependency("t1", "t2", RemoveOptions{Force: true})
	if err != nil || !result.Removed {
		t.Fatalf("Forced removal should succeed, got (%+v, %v)", result, err)
	}
	if len(result.Warnings) == 0 {
		t.Error("Forced removal should still surface the warnings")
	}
}

func TestRemoveCompletedDependencyClean(t *testing.T) {
	dep := mkTask("t2")
	dep.Status = model.StatusCompleted
	c := mkCollection(mkTask("t1", "t2"), dep)
	m := NewMutator(c, nil)

	result, err := m.RemoveDependency("t1", "t2", RemoveOptions{})
	if err != nil {
		t.Fatalf("Removing an edge to a completed dependency is clean, got %v", err)
	}
	if !result.Removed {
		t.Errorf("Expected removal, got %+v", result)
	}
}

func TestRemoveOrphanedDependentInformational(t *testing.T) {
	// t3 -> t1 -> t2; removing t1 -> t2 leaves t3 with no route to t2.
	dep := mkTask("t2")
	dep.Status = model.StatusCompleted
	mid := mkTask("t1", "t2")
	mid.Status = model.StatusInProgress
	c := mkCollection(mid, dep, mkTask("t3", "t1"))
	m := NewMutator(c, nil)

	result, err := m.RemoveDependency("t1", "t2", RemoveOptions{})
	if err != nil {
		t.Fatalf("Orphaning alone is informational, not blocking: %v", err)
	}
	found := false
	for _, w := range result.Warnings {
		if w.Kind == WarnOrphanedDependent && !w.Blocking {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected an informational orphaned-dependent warning, got %+v", result.Warnings)
	}
}

func TestRemoveCriticalPathBlocks(t *testing.T) {
	task := mkTask("t1", "t2")
	task.Priority = model.PriorityHigh
	task.Status = model.StatusInProgress
	dep := mkTask("t2")
	dep.Priority = model.PriorityHigh
	dep.Status = model.StatusCompleted
	c := mkCollection(task, dep)
	m := NewMutator(c, nil)

	_, err := m.RemoveDependency("t1", "t2", RemoveOptions{})
	var warnErr *RemovalWarningError
	if !errors.As(err, &warnErr) {
		t.Fatalf("Expected RemovalWarningError for critical path endpoints, got %v", err)
	}
}

func TestCascadeRemoval(t *testing.T) {
	// t1 -> t3, t2 -> t3 and t2 -> t1: after removing t1 -> t3 with cascade,
	// t2's direct edge to t3 goes too.
	sink := &memorySink{}
	t3 := mkTask("t3")
	t3.Status = model.StatusCompleted
	c := mkCollection(mkTask("t1", "t3"), mkTask("t2", "t3", "t1"), t3)
	m := NewMutator(c, sink)

	result, err := m.RemoveDependency("t1", "t3", RemoveOptions{CascadeRemoval: true, SkipImpactAnalysis: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Cascades) != 1 {
		t.Fatalf("Expected 1 cascade removal, got %+v", result.Cascades)
	}
	cascade := result.Cascades[0]
	if cascade.TaskID != "t2" || cascade.RemovedDependency != "t3" {
		t.Errorf("Unexpected cascade %+v", cascade)
	}
	if c.FindTask("t2").DependsOn("t3") {
		t.Error("Cascaded edge should be gone")
	}
	if !c.FindTask("t2").DependsOn("t1") {
		t.Error("The implying edge must remain")
	}

	// One entry for the cascade, one for the primary removal.
	if len(sink.entries) != 2 {
		t.Fatalf("Expected 2 change entries, got %d", len(sink.entries))
	}
	if len(sink.entries[1].CascadeResults) != 1 {
		t.Errorf("Primary entry should carry the cascade results, got %+v", sink.entries[1])
	}
}
