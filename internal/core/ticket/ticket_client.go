// Package ticket creates support tickets for escalated sessions, either
// through an external ticketing service or a local stub when none is
// configured.
package ticket

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tobiadeyemi/Resolva/internal/core"
)

// HTTPClient talks to an external ticketing service over HTTP.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *HTTPClient) CreateTicket(ctx context.Context, req core.TicketRequest) (*core.Ticket, error) {
	if !req.Consent {
		return nil, fmt.Errorf("%w: ticket creation requires user consent", core.ErrPermission)
	}

	body, err := json.Marshal(map[string]string{
		"summary":    req.Summary,
		"session_id": req.SessionID,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal ticket request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/tickets", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build ticket request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: ticket service unreachable: %v", core.ErrExternal, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: ticket service returned %d", core.ErrExternal, resp.StatusCode)
	}

	var payload struct {
		TicketID  string    `json:"ticket_id"`
		CreatedAt time.Time `json:"created_at"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: decode ticket response: %v", core.ErrExternal, err)
	}
	if payload.TicketID == "" {
		return nil, fmt.Errorf("%w: ticket service returned empty ticket id", core.ErrExternal)
	}
	if payload.CreatedAt.IsZero() {
		payload.CreatedAt = time.Now().UTC()
	}

	return &core.Ticket{TicketID: payload.TicketID, CreatedAt: payload.CreatedAt}, nil
}

// StubClient issues locally generated ticket ids. Used when no external
// ticketing service is configured.
type StubClient struct{}

func NewStubClient() *StubClient {
	return &StubClient{}
}

func (c *StubClient) CreateTicket(ctx context.Context, req core.TicketRequest) (*core.Ticket, error) {
	if !req.Consent {
		return nil, fmt.Errorf("%w: ticket creation requires user consent", core.ErrPermission)
	}

	id, err := newTicketID()
	if err != nil {
		return nil, err
	}
	return &core.Ticket{TicketID: id, CreatedAt: time.Now().UTC()}, nil
}

// newTicketID returns an id of the form TCK-A1B2C3D4.
func newTicketID() (string, error) {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate ticket id: %w", err)
	}
	return "TCK-" + strings.ToUpper(hex.EncodeToString(buf)), nil
}
