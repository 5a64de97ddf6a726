package model

import (
	"encoding/json"
	"time"
)

// DependencyStats is the collection-level aggregate maintained by the mutator
type DependencyStats struct {
	TotalDependencies int       `json:"totalDependencies"`
	LastUpdated       time.Time `json:"lastUpdated,omitzero"`
}

// Metadata holds collection-level bookkeeping. Keys other than "dependencies"
// belong to other tools and round-trip through Extra.
type Metadata struct {
	Dependencies DependencyStats `json:"dependencies"`

	Extra map[string]json.RawMessage `json:"-"`
}

func (m *Metadata) UnmarshalJSON(data []byte) error {
	type alias Metadata
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	delete(raw, "dependencies")
	if len(raw) > 0 {
		a.Extra = raw
	}

	*m = Metadata(a)
	return nil
}

func (m Metadata) MarshalJSON() ([]byte, error) {
	type alias Metadata
	data, err := json.Marshal(alias(m))
	if err != nil {
		return nil, err
	}
	if len(m.Extra) == 0 {
		return data, nil
	}

	var merged map[string]json.RawMessage
	if err := json.Unmarshal(data, &merged); err != nil {
		return nil, err
	}
	for key, value := range m.Extra {
		if _, owned := merged[key]; !owned {
			merged[key] = value
		}
	}
	return json.Marshal(merged)
}

// TaskCollection is one in-memory snapshot of the task store. It is loaded
// fresh for each operation and written back whole; the engine holds no state
// across invocations.
type TaskCollection struct {
	Metadata Metadata `json:"metadata"`
	Tasks    []*Task  `json:"tasks"`
}

// FindTask returns the task with the given id, or nil if absent
func (c *TaskCollection) FindTask(id string) *Task {
	for _, t := range c.Tasks {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// HasTask reports whether a task with the given id exists in the collection
func (c *TaskCollection) HasTask(id string) bool {
	return c.FindTask(id) != nil
}

// EdgeCount returns the total number of dependency edges across all tasks
func (c *TaskCollection) EdgeCount() int {
	count := 0
	for _, t := range c.Tasks {
		count += len(t.Dependencies)
	}
	return count
}

// TouchDependencyStats adjusts the aggregate edge counter and stamps the
// last-updated time. The counter is clamped at zero so a remove on an
// out-of-sync collection cannot drive it negative.
func (c *TaskCollection) TouchDependencyStats(delta int, now time.Time) {
	total := c.Metadata.Dependencies.TotalDependencies + delta
	if total < 0 {
		total = 0
	}
	c.Metadata.Dependencies.TotalDependencies = total
	c.Metadata.Dependencies.LastUpdated = now
}
