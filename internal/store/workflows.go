package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// WorkflowRun is the persisted record of one orchestrated workflow. The
// requirement, plan, results and synthesis are stored as JSON documents; the
// core imposes no schema on them beyond its own data model.
type WorkflowRun struct {
	ID           string          `json:"id"`
	Task         string          `json:"task"`
	Mode         string          `json:"mode"`
	Status       string          `json:"status"`
	CurrentPhase string          `json:"current_phase,omitempty"`
	Requirement  json.RawMessage `json:"requirement,omitempty"`
	Plan         json.RawMessage `json:"plan,omitempty"`
	Agents       json.RawMessage `json:"agents,omitempty"`
	Results      json.RawMessage `json:"results,omitempty"`
	Synthesis    json.RawMessage `json:"synthesis,omitempty"`
	StartedAt    time.Time       `json:"started_at"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
}

const workflowColumns = `id, task, mode, status, current_phase, requirement, plan, agents, results, synthesis, started_at, completed_at`

func scanWorkflowRun(scanner interface {
	Scan(dest ...any) error
}) (*WorkflowRun, error) {
	r := &WorkflowRun{}
	var phase, requirement, plan, agents, results, synthesis *string
	err := scanner.Scan(&r.ID, &r.Task, &r.Mode, &r.Status, &phase,
		&requirement, &plan, &agents, &results, &synthesis,
		&r.StartedAt, &r.CompletedAt)
	if err != nil {
		return nil, err
	}
	if phase != nil {
		r.CurrentPhase = *phase
	}
	if requirement != nil {
		r.Requirement = json.RawMessage(*requirement)
	}
	if plan != nil {
		r.Plan = json.RawMessage(*plan)
	}
	if agents != nil {
		r.Agents = json.RawMessage(*agents)
	}
	if results != nil {
		r.Results = json.RawMessage(*results)
	}
	if synthesis != nil {
		r.Synthesis = json.RawMessage(*synthesis)
	}
	return r, nil
}

func (s *Store) SaveWorkflowRun(r *WorkflowRun) error {
	_, err := s.db.Exec(`
		INSERT INTO workflow_runs (id, task, mode, status, current_phase, requirement, plan, agents, results, synthesis)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			current_phase = excluded.current_phase,
			results = excluded.results,
			synthesis = excluded.synthesis,
			completed_at = CASE WHEN excluded.status IN ('completed', 'failed') THEN CURRENT_TIMESTAMP ELSE completed_at END`,
		r.ID, r.Task, r.Mode, r.Status, r.CurrentPhase,
		nullable(r.Requirement), nullable(r.Plan), nullable(r.Agents),
		nullable(r.Results), nullable(r.Synthesis))
	if err != nil {
		return fmt.Errorf("save workflow run: %w", err)
	}
	return nil
}

func (s *Store) GetWorkflowRun(id string) (*WorkflowRun, error) {
	row := s.db.QueryRow(`SELECT `+workflowColumns+` FROM workflow_runs WHERE id = ?`, id)
	r, err := scanWorkflowRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get workflow run: %w", err)
	}
	return r, nil
}

func (s *Store) ListWorkflowRuns() ([]WorkflowRun, error) {
	rows, err := s.db.Query(`SELECT ` + workflowColumns + ` FROM workflow_runs ORDER BY started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list workflow runs: %w", err)
	}
	defer rows.Close()

	var runs []WorkflowRun
	for rows.Next() {
		r, err := scanWorkflowRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan workflow run: %w", err)
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

// UpdateWorkflowRun updates the mutable slice of a run: status, current phase,
// and the result/synthesis documents once execution finishes.
func (s *Store) UpdateWorkflowRun(id, status, currentPhase string, results, synthesis json.RawMessage) error {
	_, err := s.db.Exec(`
		UPDATE workflow_runs
		SET status = ?, current_phase = ?, results = ?, synthesis = ?,
		    completed_at = CASE WHEN ? IN ('completed', 'failed') THEN CURRENT_TIMESTAMP ELSE completed_at END
		WHERE id = ?`,
		status, currentPhase, nullable(results), nullable(synthesis), status, id)
	return err
}

func (s *Store) DeleteWorkflowRun(id string) error {
	_, err := s.db.Exec(`DELETE FROM workflow_runs WHERE id = ?`, id)
	return err
}

func nullable(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
