package store

import (
	"database/sql"
	"fmt"
	"time"
)

// Secret holds encrypted credential material for a completion provider.
// Value and Nonce are ciphertext produced by the vault; plaintext never
// touches the database.
type Secret struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	AgentID   string    `json:"agent_id,omitempty"`
	Value     []byte    `json:"-"`
	Nonce     []byte    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (s *Store) SaveSecret(sec *Secret) error {
	_, err := s.db.Exec(`
		INSERT INTO secrets (id, name, agent_id, value, nonce)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			agent_id = excluded.agent_id,
			value = excluded.value,
			nonce = excluded.nonce,
			updated_at = CURRENT_TIMESTAMP`,
		sec.ID, sec.Name, sec.AgentID, sec.Value, sec.Nonce)
	if err != nil {
		return fmt.Errorf("save secret: %w", err)
	}
	return nil
}

func (s *Store) GetSecret(id string) (*Secret, error) {
	row := s.db.QueryRow(`
		SELECT id, name, agent_id, value, nonce, created_at, updated_at
		FROM secrets WHERE id = ?`, id)
	sec, err := scanSecret(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get secret: %w", err)
	}
	return sec, nil
}

// GetAgentSecret returns the credential secret bound to an agent id, if any.
func (s *Store) GetAgentSecret(agentID string) (*Secret, error) {
	row := s.db.QueryRow(`
		SELECT id, name, agent_id, value, nonce, created_at, updated_at
		FROM secrets WHERE agent_id = ? ORDER BY updated_at DESC LIMIT 1`, agentID)
	sec, err := scanSecret(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get agent secret: %w", err)
	}
	return sec, nil
}

func (s *Store) ListSecrets() ([]Secret, error) {
	rows, err := s.db.Query(`
		SELECT id, name, agent_id, created_at, updated_at
		FROM secrets ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list secrets: %w", err)
	}
	defer rows.Close()

	var secrets []Secret
	for rows.Next() {
		sec := &Secret{}
		var agentID *string
		if err := rows.Scan(&sec.ID, &sec.Name, &agentID, &sec.CreatedAt, &sec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan secret: %w", err)
		}
		if agentID != nil {
			sec.AgentID = *agentID
		}
		secrets = append(secrets, *sec)
	}
	return secrets, rows.Err()
}

func (s *Store) DeleteSecret(id string) error {
	_, err := s.db.Exec(`DELETE FROM secrets WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete secret: %w", err)
	}
	return nil
}

func scanSecret(scanner interface {
	Scan(dest ...any) error
}) (*Secret, error) {
	sec := &Secret{}
	var agentID *string
	err := scanner.Scan(&sec.ID, &sec.Name, &agentID, &sec.Value, &sec.Nonce, &sec.CreatedAt, &sec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if agentID != nil {
		sec.AgentID = *agentID
	}
	return sec, nil
}
