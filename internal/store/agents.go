package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type Agent struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Confidence      float64   `json:"confidence"`
	Specializations []string  `json:"specializations"`
	Collaborators   []string  `json:"collaborators"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (s *Store) SaveAgent(a *Agent) error {
	specs, _ := json.Marshal(a.Specializations)
	collabs, _ := json.Marshal(a.Collaborators)

	_, err := s.db.Exec(`
		INSERT INTO agents (id, name, confidence, specializations, collaborators)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			confidence = excluded.confidence,
			specializations = excluded.specializations,
			collaborators = excluded.collaborators,
			updated_at = CURRENT_TIMESTAMP`,
		a.ID, a.Name, a.Confidence, string(specs), string(collabs))
	if err != nil {
		return fmt.Errorf("save agent: %w", err)
	}
	return nil
}

func (s *Store) GetAgent(id string) (*Agent, error) {
	row := s.db.QueryRow(`
		SELECT id, name, confidence, specializations, collaborators, created_at, updated_at
		FROM agents WHERE id = ?`, id)
	a, err := scanAgent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get agent: %w", err)
	}
	return a, nil
}

func (s *Store) ListAgents() ([]Agent, error) {
	rows, err := s.db.Query(`
		SELECT id, name, confidence, specializations, collaborators, created_at, updated_at
		FROM agents ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	defer rows.Close()

	var agents []Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan agent: %w", err)
		}
		agents = append(agents, *a)
	}
	return agents, rows.Err()
}

func (s *Store) DeleteAgentsNotIn(ids []string) error {
	if len(ids) == 0 {
		_, err := s.db.Exec(`DELETE FROM agents`)
		return err
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	_, err := s.db.Exec(`DELETE FROM agents WHERE id NOT IN (`+placeholders+`)`, args...)
	return err
}

func scanAgent(scanner interface {
	Scan(dest ...any) error
}) (*Agent, error) {
	a := &Agent{}
	var specs, collabs string
	err := scanner.Scan(&a.ID, &a.Name, &a.Confidence, &specs, &collabs, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	_ = json.Unmarshal([]byte(specs), &a.Specializations)
	_ = json.Unmarshal([]byte(collabs), &a.Collaborators)
	return a, nil
}
