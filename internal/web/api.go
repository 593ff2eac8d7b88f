package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/sumithkumar07/aetherflow/internal/executor"
	"github.com/sumithkumar07/aetherflow/internal/schedule"
	"github.com/sumithkumar07/aetherflow/internal/store"
	"github.com/sumithkumar07/aetherflow/internal/tracker"
)

func (s *Server) registerAPI(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/status", s.getStatus)
	mux.HandleFunc("GET /api/agents", s.listAgents)

	mux.HandleFunc("POST /api/analyze", s.analyzeTask)

	mux.HandleFunc("GET /api/workflows", s.listWorkflows)
	mux.HandleFunc("POST /api/workflows", s.submitWorkflow)
	mux.HandleFunc("GET /api/workflows/{id}", s.getWorkflow)
	mux.HandleFunc("GET /api/workflows/{id}/status", s.getWorkflowStatus)
	mux.HandleFunc("POST /api/workflows/{id}/cancel", s.cancelWorkflow)
	mux.HandleFunc("DELETE /api/workflows/{id}", s.deleteWorkflow)

	mux.HandleFunc("GET /api/schedules", s.listSchedules)
	mux.HandleFunc("POST /api/schedules", s.createSchedule)
	mux.HandleFunc("PUT /api/schedules/{id}/status", s.updateScheduleStatus)
	mux.HandleFunc("DELETE /api/schedules/{id}", s.deleteSchedule)

	mux.HandleFunc("GET /api/secrets", s.listSecrets)
	mux.HandleFunc("POST /api/secrets", s.createSecret)
	mux.HandleFunc("DELETE /api/secrets/{id}", s.deleteSecret)
}

func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	var active []string
	if s.orch != nil {
		active = s.orch.ActiveWorkflows()
	}
	jsonResponse(w, map[string]any{
		"version":          s.version,
		"uptime":           formatUptime(time.Since(s.startedAt)),
		"agents":           s.registry.Len(),
		"active_workflows": active,
	})
}

func (s *Server) listAgents(w http.ResponseWriter, r *http.Request) {
	type agentView struct {
		Role            string   `json:"role"`
		Name            string   `json:"name"`
		Confidence      float64  `json:"confidence"`
		Specializations []string `json:"specializations"`
		Collaborators   []string `json:"collaborators,omitempty"`
	}

	agents := make([]agentView, 0, s.registry.Len())
	for _, cap := range s.registry.All() {
		v := agentView{
			Role:            cap.Role.String(),
			Name:            cap.Name,
			Confidence:      cap.Confidence,
			Specializations: cap.Specializations,
		}
		for _, c := range cap.Collaborators {
			v.Collaborators = append(v.Collaborators, c.String())
		}
		agents = append(agents, v)
	}
	jsonResponse(w, agents)
}

// analyzeTask is a dry run: requirement and recommendation without starting
// a workflow.
func (s *Server) analyzeTask(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Task string `json:"task"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Task == "" {
		jsonError(w, "task is required", http.StatusBadRequest)
		return
	}

	req := s.orch.Analyze(body.Task)
	rec, err := s.orch.SelectAgents(req)
	if err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	jsonResponse(w, map[string]any{
		"requirement":    req,
		"recommendation": rec,
	})
}

func (s *Server) listWorkflows(w http.ResponseWriter, r *http.Request) {
	runs, err := s.store.ListWorkflowRuns()
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, runs)
}

func (s *Server) submitWorkflow(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Task string `json:"task"`
		Mode string `json:"mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Task == "" {
		jsonError(w, "task is required", http.StatusBadRequest)
		return
	}
	if body.Mode == "" {
		body.Mode = "parallel"
	}

	mode, err := executor.ParseMode(body.Mode)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	sub, err := s.orch.Submit(r.Context(), body.Task, mode)
	if err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	jsonStatus(w, http.StatusAccepted, sub)
}

func (s *Server) getWorkflow(w http.ResponseWriter, r *http.Request) {
	run, err := s.store.GetWorkflowRun(r.PathValue("id"))
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if run == nil {
		jsonError(w, "workflow not found", http.StatusNotFound)
		return
	}
	jsonResponse(w, run)
}

func (s *Server) getWorkflowStatus(w http.ResponseWriter, r *http.Request) {
	snap, err := s.orch.Status(r.PathValue("id"))
	if errors.Is(err, tracker.ErrWorkflowNotFound) {
		jsonError(w, "workflow not found", http.StatusNotFound)
		return
	}
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, snap)
}

func (s *Server) cancelWorkflow(w http.ResponseWriter, r *http.Request) {
	if !s.orch.Cancel(r.PathValue("id")) {
		jsonError(w, "workflow not running", http.StatusNotFound)
		return
	}
	jsonResponse(w, map[string]string{"status": "cancelling"})
}

func (s *Server) deleteWorkflow(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteWorkflowRun(r.PathValue("id")); err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, map[string]string{"status": "deleted"})
}

func (s *Server) listSchedules(w http.ResponseWriter, r *http.Request) {
	runs, err := s.store.ListScheduledRuns()
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	type scheduleView struct {
		store.ScheduledRun
		Describe string `json:"describe"`
	}
	views := make([]scheduleView, 0, len(runs))
	for _, run := range runs {
		views = append(views, scheduleView{ScheduledRun: run, Describe: schedule.Describe(run.Schedule)})
	}
	jsonResponse(w, views)
}

func (s *Server) createSchedule(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name     string `json:"name"`
		Schedule string `json:"schedule"`
		Task     string `json:"task"`
		Mode     string `json:"mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if body.Name == "" || body.Schedule == "" || body.Task == "" {
		jsonError(w, "name, schedule and task are required", http.StatusBadRequest)
		return
	}
	if body.Mode == "" {
		body.Mode = "parallel"
	}
	if _, err := executor.ParseMode(body.Mode); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	normalized, err := schedule.Normalize(body.Schedule)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	run := &store.ScheduledRun{
		ID:        uuid.New().String(),
		Name:      body.Name,
		Schedule:  normalized,
		Task:      body.Task,
		Mode:      body.Mode,
		Status:    "active",
		NextRunAt: schedule.NextRun(normalized, time.Now()),
	}
	if err := s.store.SaveScheduledRun(run); err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	jsonStatus(w, http.StatusCreated, run)
}

func (s *Server) updateScheduleStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if body.Status != "active" && body.Status != "paused" {
		jsonError(w, "status must be active or paused", http.StatusBadRequest)
		return
	}

	if err := s.store.UpdateScheduledRunStatus(r.PathValue("id"), body.Status); err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, map[string]string{"status": body.Status})
}

func (s *Server) deleteSchedule(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteScheduledRun(r.PathValue("id")); err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, map[string]string{"status": "deleted"})
}

func (s *Server) listSecrets(w http.ResponseWriter, r *http.Request) {
	secrets, err := s.store.ListSecrets()
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, secrets)
}

func (s *Server) createSecret(w http.ResponseWriter, r *http.Request) {
	if s.vault == nil {
		jsonError(w, "vault not configured", http.StatusServiceUnavailable)
		return
	}

	var body struct {
		Name    string `json:"name"`
		AgentID string `json:"agent_id"`
		Value   string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Name == "" || body.Value == "" {
		jsonError(w, "name and value are required", http.StatusBadRequest)
		return
	}

	ciphertext, nonce, err := s.vault.Encrypt([]byte(body.Value))
	if err != nil {
		jsonError(w, "encryption failed", http.StatusInternalServerError)
		return
	}

	secret := &store.Secret{
		ID:      uuid.New().String(),
		Name:    body.Name,
		AgentID: body.AgentID,
		Value:   ciphertext,
		Nonce:   nonce,
	}
	if err := s.store.SaveSecret(secret); err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	jsonStatus(w, http.StatusCreated, secret)
}

func (s *Server) deleteSecret(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteSecret(r.PathValue("id")); err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, map[string]string{"status": "deleted"})
}

func formatUptime(d time.Duration) string {
	d = d.Round(time.Second)
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}

func jsonResponse(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(data)
}

func jsonStatus(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(data)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
