package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"compliance-taskboard/internal/config"
	"compliance-taskboard/internal/engine"
	"compliance-taskboard/internal/lifecycle"
	"compliance-taskboard/internal/models"
	"compliance-taskboard/internal/ratelimit"
	"compliance-taskboard/internal/store"
	"compliance-taskboard/internal/telemetry"
	"compliance-taskboard/internal/triage"
)

// Token costs per engine operation: generating a whole period is the
// expensive one.
const (
	costGenerate = 5
	costRisk     = 2
	costReassign = 1
)

// Server wires HTTP handlers for the task board and lifecycle actions.
type Server struct {
	cfg     config.Config
	store   *store.Store
	machine *lifecycle.Machine
	engine  *engine.Client
	limiter *ratelimit.Bucket
}

// New constructs the API server.
func New(cfg config.Config, st *store.Store, machine *lifecycle.Machine, eng *engine.Client, limiter *ratelimit.Bucket) *Server {
	return &Server{
		cfg:     cfg,
		store:   st,
		machine: machine,
		engine:  eng,
		limiter: limiter,
	}
}

// Router builds the HTTP router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/metrics", telemetry.Handler())

	r.Get("/tasks", s.handleBoard)
	r.Get("/tasks/{id}", s.handleGetTask)
	r.Get("/tasks/{id}/events", s.handleListEvents)
	r.Post("/tasks/{id}/transitions", s.handleTransition)
	r.Post("/tasks/approvals", s.handleBulkApprove)

	r.Post("/engine/generate", s.handleEngineGenerate)
	r.Post("/engine/risk", s.handleEngineRisk)
	r.Post("/engine/reassign", s.handleEngineReassign)
	return r
}

// handleBoard composes the closing/current board from the latest snapshot.
func (s *Server) handleBoard(w http.ResponseWriter, r *http.Request) {
	filter := models.TaskFilter{
		AssigneeID:   r.URL.Query().Get("assignee"),
		FiscalPeriod: r.URL.Query().Get("period"),
		PeriodFrom:   r.URL.Query().Get("period_from"),
		PeriodTo:     r.URL.Query().Get("period_to"),
	}
	tasks, err := s.store.FetchTasks(r.Context(), filter)
	if err != nil {
		http.Error(w, "failed to fetch tasks", http.StatusInternalServerError)
		return
	}

	today := time.Now()
	board := triage.ComposeBoard(tasks, today, triage.PeriodOf(today))

	var overdue, dueToday float64
	for _, bucket := range [][]triage.BoardTask{board.Closing, board.Current} {
		for _, bt := range bucket {
			switch bt.Category {
			case models.CategoryOverdue:
				overdue++
			case models.CategoryDueToday:
				dueToday++
			}
		}
	}
	telemetry.OverdueGauge.Set(overdue)
	telemetry.DueTodayGauge.Set(dueToday)

	writeJSON(w, http.StatusOK, board)
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.store.GetTask(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, lifecycle.ErrTaskNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, "failed to fetch task", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := s.store.ListEvents(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "failed to fetch events", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

type transitionRequest struct {
	Action        models.EventAction `json:"action"`
	ActorID       string             `json:"actor_id"`
	ExpectedState models.TaskState   `json:"expected_state"`
	Reason        string             `json:"reason"`
	Metadata      map[string]any     `json:"metadata"`
}

// handleTransition applies a single lifecycle transition. The error taxonomy
// maps to distinct status codes so the UI can tell "you can't do that" from
// "someone else changed it".
func (s *Server) handleTransition(w http.ResponseWriter, r *http.Request) {
	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	ev, err := s.machine.Apply(r.Context(), lifecycle.Request{
		TaskID:   chi.URLParam(r, "id"),
		Action:   req.Action,
		ActorID:  req.ActorID,
		Expected: req.ExpectedState,
		Reason:   req.Reason,
		Metadata: req.Metadata,
	})
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, lifecycle.ErrMissingRequiredField):
			status = http.StatusBadRequest
		case errors.Is(err, lifecycle.ErrTaskNotFound):
			status = http.StatusNotFound
		case errors.Is(err, lifecycle.ErrInvalidTransition):
			status = http.StatusUnprocessableEntity
		case errors.Is(err, lifecycle.ErrConcurrentModification):
			status = http.StatusConflict
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"event": ev})
}

type bulkApproveRequest struct {
	TaskIDs []string `json:"task_ids"`
	ActorID string   `json:"actor_id"`
}

type bulkApproveItem struct {
	TaskID string                 `json:"task_id"`
	OK     bool                   `json:"ok"`
	Error  string                 `json:"error,omitempty"`
	Event  *models.LifecycleEvent `json:"event,omitempty"`
}

// handleBulkApprove approves each task independently; earlier successes stay
// committed when a later item fails.
func (s *Server) handleBulkApprove(w http.ResponseWriter, r *http.Request) {
	var req bulkApproveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if len(req.TaskIDs) == 0 {
		http.Error(w, "task_ids is required", http.StatusBadRequest)
		return
	}

	results := s.machine.BulkApprove(r.Context(), req.TaskIDs, req.ActorID)
	items := make([]bulkApproveItem, 0, len(results))
	for _, res := range results {
		item := bulkApproveItem{TaskID: res.TaskID, OK: res.Err == nil}
		if res.Err != nil {
			item.Error = res.Err.Error()
		} else {
			ev := res.Event
			item.Event = &ev
		}
		items = append(items, item)
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": items})
}

type engineRequest struct {
	Period         string `json:"period"`
	CollaboratorID string `json:"collaborator_id"`
}

func (s *Server) handleEngineGenerate(w http.ResponseWriter, r *http.Request) {
	s.runEngine(w, r, costGenerate, func(req engineRequest) (engine.RunSummary, error) {
		if req.Period == "" {
			return engine.RunSummary{}, errBadEngineRequest("period is required")
		}
		return s.engine.GenerateTasks(r.Context(), req.Period)
	})
}

func (s *Server) handleEngineRisk(w http.ResponseWriter, r *http.Request) {
	s.runEngine(w, r, costRisk, func(req engineRequest) (engine.RunSummary, error) {
		if req.Period == "" {
			return engine.RunSummary{}, errBadEngineRequest("period is required")
		}
		return s.engine.RefreshRisk(r.Context(), req.Period)
	})
}

func (s *Server) handleEngineReassign(w http.ResponseWriter, r *http.Request) {
	s.runEngine(w, r, costReassign, func(req engineRequest) (engine.RunSummary, error) {
		if req.CollaboratorID == "" {
			return engine.RunSummary{}, errBadEngineRequest("collaborator_id is required")
		}
		return s.engine.Reassign(r.Context(), req.CollaboratorID)
	})
}

type badEngineRequest string

func errBadEngineRequest(msg string) error { return badEngineRequest(msg) }

func (e badEngineRequest) Error() string { return string(e) }

// runEngine rate-limits and proxies a manual engine trigger. Upstream
// failures pass through with the engine's own message.
func (s *Server) runEngine(w http.ResponseWriter, r *http.Request, cost int, call func(engineRequest) (engine.RunSummary, error)) {
	var req engineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	if s.limiter != nil {
		allowed, _, err := s.limiter.AllowN(r.Context(), "engine:"+tenantFromRequest(r), cost)
		if err != nil {
			http.Error(w, "rate limit error", http.StatusInternalServerError)
			return
		}
		if !allowed {
			telemetry.RateLimitRejects.Inc()
			http.Error(w, "rate limited", http.StatusTooManyRequests)
			return
		}
	}

	summary, err := call(req)
	if err != nil {
		var bad badEngineRequest
		if errors.As(err, &bad) {
			http.Error(w, bad.Error(), http.StatusBadRequest)
			return
		}
		var upstream *engine.UpstreamError
		if errors.As(err, &upstream) {
			writeJSON(w, http.StatusBadGateway, map[string]any{
				"error":           "engine failure",
				"upstream_status": upstream.Status,
				"upstream_body":   upstream.Body,
			})
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func tenantFromRequest(r *http.Request) string {
	if v := r.Header.Get("X-Tenant-ID"); v != "" {
		return v
	}
	return "default"
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}
