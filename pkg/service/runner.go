package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/mkarlsson/taskgraph/pkg/audit"
	"github.com/mkarlsson/taskgraph/pkg/logging"
	"github.com/mkarlsson/taskgraph/pkg/model"
	"github.com/mkarlsson/taskgraph/pkg/store"
	"github.com/mkarlsson/taskgraph/pkg/web"
)

// AuditRunner orchestrates load-audit-publish cycles over the task store
type AuditRunner struct {
	store  *store.Store
	server *web.Server
	mu     sync.Mutex // Prevent concurrent audit runs
}

// RunOptions configures one audit run
type RunOptions struct {
	Checks  []audit.Check
	AutoFix bool
	Reason  string // e.g., "initial audit", "store changed"
}

// NewAuditRunner creates a new audit runner. The server may be nil when
// running without web mode.
func NewAuditRunner(s *store.Store, server *web.Server) *AuditRunner {
	return &AuditRunner{
		store:  s,
		server: server,
	}
}

// Run loads the collection, audits it, and publishes the results
func (ar *AuditRunner) Run(ctx context.Context, opts RunOptions) (*model.Report, error) {
	ar.mu.Lock()
	defer ar.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	logging.Info("starting audit", "reason", opts.Reason)

	// Phase 1: load the collection
	ar.publishStatus("loading", "Loading task collection...", 1, 3)

	collection, err := ar.store.Load()
	if err != nil {
		ar.publishStatus("error", fmt.Sprintf("Error loading store: %v", err), 1, 3)
		return nil, fmt.Errorf("failed to load task store: %w", err)
	}
	logging.Info("loaded collection", "tasks", len(collection.Tasks), "dependencies", collection.EdgeCount())

	if ar.server != nil {
		ar.server.SetCollection(collection)
	}

	// Phase 2: audit
	ar.publishStatus("auditing", "Auditing dependency graph...", 2, 3)

	auditor := audit.NewAuditor(collection)
	report := auditor.Run(audit.Options{
		Checks:  opts.Checks,
		AutoFix: opts.AutoFix,
	})

	// Phase 3: persist fixes and publish
	applied := appliedFixes(report)
	if applied > 0 {
		ar.publishStatus("fixing", fmt.Sprintf("Saving %d applied fix(es)...", applied), 3, 3)
		if err := ar.store.Update(func(c *model.TaskCollection) error {
			c.Tasks = collection.Tasks
			c.Metadata = collection.Metadata
			return nil
		}); err != nil {
			ar.publishStatus("error", fmt.Sprintf("Error saving fixes: %v", err), 3, 3)
			return report, fmt.Errorf("failed to save fixed collection: %w", err)
		}
	}

	if ar.server != nil {
		ar.server.SetReport(report)
		ar.server.PublishReportSummary("complete", true)
	}
	ar.publishStatus("ready", "Audit complete", 3, 3)

	logging.Info("audit complete",
		"reason", opts.Reason,
		"issues", report.Summary.Total,
		"critical", report.Summary.Critical,
		"fixes", applied,
	)
	return report, nil
}

func (ar *AuditRunner) publishStatus(state, message string, step, total int) {
	if ar.server == nil {
		return
	}
	if err := ar.server.PublishAuditStatus(state, message, step, total); err != nil {
		logging.Warn("failed to publish audit status", "state", state, "error", err)
	}
}

func appliedFixes(report *model.Report) int {
	n := 0
	for _, fix := range report.Fixes {
		if fix.Applied {
			n++
		}
	}
	return n
}
