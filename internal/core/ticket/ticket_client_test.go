package ticket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tobiadeyemi/Resolva/internal/core"
)

var ticketIDPattern = regexp.MustCompile(`^TCK-[0-9A-F]{8}$`)

func TestStubClientGeneratesTicketIDs(t *testing.T) {
	c := NewStubClient()

	ticket, err := c.CreateTicket(context.Background(), core.TicketRequest{
		Consent: true, Summary: "washer not draining", SessionID: "sess-1",
	})
	require.NoError(t, err)
	assert.Regexp(t, ticketIDPattern, ticket.TicketID)
	assert.False(t, ticket.CreatedAt.IsZero())
}

func TestStubClientRequiresConsent(t *testing.T) {
	c := NewStubClient()

	_, err := c.CreateTicket(context.Background(), core.TicketRequest{Consent: false})
	assert.ErrorIs(t, err, core.ErrPermission)
}

func TestHTTPClientCreatesTicket(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tickets", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "sess-1", body["session_id"])

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"ticket_id": "TCK-DEADBEEF"})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL)
	ticket, err := c.CreateTicket(context.Background(), core.TicketRequest{
		Consent: true, Summary: "noisy spin cycle", SessionID: "sess-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "TCK-DEADBEEF", ticket.TicketID)
	assert.False(t, ticket.CreatedAt.IsZero())
}

func TestHTTPClientSurfacesServiceErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL)
	_, err := c.CreateTicket(context.Background(), core.TicketRequest{Consent: true})
	assert.ErrorIs(t, err, core.ErrExternal)
}

func TestHTTPClientRequiresConsent(t *testing.T) {
	c := NewHTTPClient("http://localhost:0")
	_, err := c.CreateTicket(context.Background(), core.TicketRequest{Consent: false})
	assert.ErrorIs(t, err, core.ErrPermission)
}
