// Package completion defines the boundary to the agent-completion service:
// an opaque, possibly slow, possibly failing remote call that turns a prompt
// into a text response.
package completion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sumithkumar07/aetherflow/internal/natsbus"
	"github.com/sumithkumar07/aetherflow/internal/store"
	"github.com/sumithkumar07/aetherflow/internal/vault"
)

// Result is the provider's answer to one completion call. Provider-side
// failures are surfaced in Status/Error rather than as Go errors, so a bad
// provider response never aborts sibling work.
type Result struct {
	Status    string            `json:"status"` // success | error
	Response  string            `json:"response"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Error     string            `json:"error,omitempty"`
	ElapsedMs int64             `json:"elapsed_ms"`
}

// Client is the completion boundary. Invoke blocks until the provider
// answers, the context expires, or the transport fails.
type Client interface {
	Invoke(ctx context.Context, agentID, message string, meta map[string]string) (*Result, error)
}

type request struct {
	AgentID string            `json:"agent_id"`
	Message string            `json:"message"`
	Meta    map[string]string `json:"meta,omitempty"`
}

// NATSClient invokes completion providers over NATS request/reply. Providers
// subscribe to completion.<agent-id> and answer with a Result payload.
type NATSClient struct {
	client *natsbus.Client
	store  *store.Store
	vault  *vault.Vault
}

func NewNATSClient(bus *natsbus.Bus, s *store.Store, v *vault.Vault) (*NATSClient, error) {
	client, err := natsbus.NewClient(bus)
	if err != nil {
		return nil, fmt.Errorf("completion nats client: %w", err)
	}
	return &NATSClient{client: client, store: s, vault: v}, nil
}

func (c *NATSClient) Invoke(ctx context.Context, agentID, message string, meta map[string]string) (*Result, error) {
	req := request{
		AgentID: agentID,
		Message: message,
		Meta:    c.withCredentials(agentID, meta),
	}
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal completion request: %w", err)
	}

	start := time.Now()
	msg, err := c.client.RequestWithContext(ctx, natsbus.TopicCompletion(agentID), data)
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, fmt.Errorf("completion request %s: %w", agentID, err)
	}

	var result Result
	if err := json.Unmarshal(msg.Data, &result); err != nil {
		// Tolerate non-JSON providers: treat the raw payload as the response.
		result = Result{Status: "success", Response: string(msg.Data)}
	}
	if result.ElapsedMs == 0 {
		result.ElapsedMs = elapsed
	}
	if result.Status == "" {
		result.Status = "success"
	}
	return &result, nil
}

// withCredentials resolves the agent's vault-encrypted credential, if one is
// stored, and attaches it to the request metadata.
func (c *NATSClient) withCredentials(agentID string, meta map[string]string) map[string]string {
	out := make(map[string]string, len(meta)+1)
	for k, v := range meta {
		out[k] = v
	}

	if c.store == nil || c.vault == nil {
		return out
	}

	sec, err := c.store.GetAgentSecret(agentID)
	if err != nil || sec == nil {
		return out
	}
	plaintext, err := c.vault.Decrypt(sec.Value, sec.Nonce)
	if err != nil {
		slog.Warn("failed to decrypt agent credential", "agent", agentID, "error", err)
		return out
	}
	out["credential"] = string(plaintext)
	return out
}

func (c *NATSClient) Close() {
	c.client.Close()
}
