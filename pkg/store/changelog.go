package store

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/mkarlsson/taskgraph/pkg/model"
)

// ChangeLog appends mutation records to a JSONL file, one entry per line.
// The engine only ever appends; nothing in this module reads entries back.
type ChangeLog struct {
	path string
}

// NewChangeLog creates a change log sink at the given path
func NewChangeLog(path string) *ChangeLog {
	return &ChangeLog{path: path}
}

// Append writes one change entry as a JSON line
func (l *ChangeLog) Append(entry model.ChangeEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encoding change entry: %w", err)
	}
	data = append(data, '\n')

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening change log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("appending change entry: %w", err)
	}
	return nil
}
