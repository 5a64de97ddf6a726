package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/mux"

	"github.com/mkarlsson/taskgraph/pkg/graph"
	"github.com/mkarlsson/taskgraph/pkg/logging"
	"github.com/mkarlsson/taskgraph/pkg/model"
	"github.com/mkarlsson/taskgraph/pkg/pubsub"
)

// GraphNode represents a task in the dependency graph view
type GraphNode struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Status   string `json:"status"`
	Priority string `json:"priority"`
}

// GraphEdge represents a dependency edge in the graph view
type GraphEdge struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Type   string `json:"type"`
}

// GraphData holds the dependency graph for visualization
type GraphData struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

// Server serves audit reports and the task graph over HTTP
type Server struct {
	router     *mux.Router
	publisher  pubsub.Publisher
	mu         sync.RWMutex
	report     *model.Report
	collection *model.TaskCollection
}

// NewServer creates a new web server
func NewServer() *Server {
	ssePublisher := pubsub.NewSSEPublisher()

	// audit_status: new subscribers only need the current state
	ssePublisher.ConfigureTopic(pubsub.TopicAuditStatus, pubsub.TopicConfig{
		BufferSize: 10,
		ReplayAll:  false,
	})

	// audit_report: replay only the latest summary
	ssePublisher.ConfigureTopic(pubsub.TopicAuditReport, pubsub.TopicConfig{
		BufferSize: 5,
		ReplayAll:  false,
	})

	s := &Server{
		router:    mux.NewRouter(),
		publisher: ssePublisher,
	}
	s.setupRoutes()
	return s
}

// SetReport stores the latest audit report
func (s *Server) SetReport(r *model.Report) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.report = r
}

// SetCollection stores the latest task collection
func (s *Server) SetCollection(c *model.TaskCollection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collection = c
}

// PublishAuditStatus publishes an audit progress event
func (s *Server) PublishAuditStatus(state, message string, step, total int) error {
	status := pubsub.AuditStatus{
		State:   state,
		Message: message,
		Step:    step,
		Total:   total,
	}
	return s.publisher.Publish(pubsub.TopicAuditStatus, state, status)
}

// PublishReportSummary publishes a report summary event
func (s *Server) PublishReportSummary(eventType string, complete bool) error {
	s.mu.RLock()
	report := s.report
	s.mu.RUnlock()

	data := pubsub.ReportSummary{Complete: complete}
	if report != nil {
		data.Critical = report.Summary.Critical
		data.Warnings = report.Summary.Warnings
		data.Info = report.Summary.Info
		data.Total = report.Summary.Total
		data.Fixes = len(report.Fixes)
	}
	return s.publisher.Publish(pubsub.TopicAuditReport, eventType, data)
}

func (s *Server) setupRoutes() {
	// SSE subscription endpoints
	s.router.HandleFunc("/api/subscribe/audit_status", s.handleSubscribe(pubsub.TopicAuditStatus)).Methods("GET")
	s.router.HandleFunc("/api/subscribe/audit_report", s.handleSubscribe(pubsub.TopicAuditReport)).Methods("GET")

	// API routes - more specific routes must come first
	s.router.HandleFunc("/api/report", s.handleReport).Methods("GET")
	s.router.HandleFunc("/api/graph", s.handleGraph).Methods("GET")
	s.router.HandleFunc("/api/tasks", s.handleTasks).Methods("GET")
	s.router.HandleFunc("/api/tasks/{id}", s.handleTask).Methods("GET")

	s.router.Use(logging.OperationIDMiddleware)
}

// handleSubscribe streams events for a topic over SSE
func (s *Server) handleSubscribe(topic string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("Access-Control-Allow-Origin", "*")

		// Initial comment establishes the connection (Safari compatibility)
		fmt.Fprintf(w, ": connected\n\n")
		if flusher, ok := w.(http.Flusher); ok {
			flusher.Flush()
		}

		sub, err := s.publisher.Subscribe(r.Context(), topic)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		defer sub.Close()

		for event := range sub.Events() {
			if err := pubsub.WriteSSE(w, event); err != nil {
				logging.ErrorContext(r.Context(), "error writing SSE event", "error", err)
				return
			}
			if flusher, ok := w.(http.Flusher); ok {
				flusher.Flush()
			}
		}
	}
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	s.mu.RLock()
	report := s.report
	s.mu.RUnlock()

	if report == nil {
		http.Error(w, "Report not available", http.StatusServiceUnavailable)
		return
	}

	json.NewEncoder(w).Encode(report)
}

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	s.mu.RLock()
	collection := s.collection
	s.mu.RUnlock()

	if collection == nil {
		json.NewEncoder(w).Encode(&GraphData{
			Nodes: []GraphNode{},
			Edges: []GraphEdge{},
		})
		return
	}

	json.NewEncoder(w).Encode(buildGraphData(collection))
}

func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	s.mu.RLock()
	collection := s.collection
	s.mu.RUnlock()

	if collection == nil {
		json.NewEncoder(w).Encode([]*model.Task{})
		return
	}

	json.NewEncoder(w).Encode(collection.Tasks)
}

func (s *Server) handleTask(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	s.mu.RLock()
	collection := s.collection
	s.mu.RUnlock()

	if collection == nil {
		http.Error(w, "Task data not available", http.StatusServiceUnavailable)
		return
	}

	id := mux.Vars(r)["id"]
	task := collection.FindTask(id)
	if task == nil {
		http.Error(w, fmt.Sprintf("Task not found: %s", id), http.StatusNotFound)
		return
	}

	json.NewEncoder(w).Encode(task)
}

// buildGraphData creates a graph visualization from the task collection.
// Detailed records supply edge types; plain edges without a detail record
// fall back to the default type.
func buildGraphData(collection *model.TaskCollection) *GraphData {
	g := graph.New(collection)

	data := &GraphData{
		Nodes: make([]GraphNode, 0, len(collection.Tasks)),
		Edges: make([]GraphEdge, 0),
	}

	for _, task := range collection.Tasks {
		data.Nodes = append(data.Nodes, GraphNode{
			ID:       task.ID,
			Label:    task.Title,
			Status:   string(task.Status),
			Priority: string(task.Priority),
		})
	}

	for _, id := range g.AllTaskIDs() {
		task := collection.FindTask(id)
		if task == nil {
			continue
		}
		for _, dep := range task.Dependencies {
			edgeType := string(model.DependencyBlocking)
			if detail, ok := task.DetailFor(dep); ok && detail.Type != "" {
				edgeType = string(detail.Type)
			}
			data.Edges = append(data.Edges, GraphEdge{
				Source: task.ID,
				Target: dep,
				Type:   edgeType,
			})
		}
	}

	return data
}

// Start starts the web server on the specified port
func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	logging.Info("starting web server", "url", fmt.Sprintf("http://localhost%s", addr))
	return http.ListenAndServe(addr, s.router)
}
