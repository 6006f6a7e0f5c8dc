package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webitel/im-thread-gateway/internal/auth"
	"github.com/webitel/im-thread-gateway/internal/domain/broadcast"
	"github.com/webitel/im-thread-gateway/internal/domain/instance"
	"github.com/webitel/im-thread-gateway/internal/domain/timeoutsvc"
	"github.com/webitel/im-thread-gateway/internal/registry"
	"github.com/webitel/im-thread-gateway/internal/router"
)

type stubInstance struct {
	*instance.Base
	truncated string
}

func (s *stubInstance) AddConnection(sub broadcast.Subscriber)   { s.Base.AddConnection(sub, nil) }
func (s *stubInstance) Prepare(ctx context.Context) (bool, error) { return true, nil }
func (s *stubInstance) Start(ctx context.Context) error           { return nil }
func (s *stubInstance) Stop()                                     {}
func (s *stubInstance) Cleanup()                                  {}
func (s *stubInstance) SendAnswer(context.Context, instance.InboundAnswer) error        { return nil }
func (s *stubInstance) SendOAuthCallback(context.Context, instance.OAuthCallback) error { return nil }
func (s *stubInstance) UploadImage(context.Context, instance.InboundImage) error        { return nil }
func (s *stubInstance) Truncate(ctx context.Context, eventID string) error {
	s.truncated = eventID
	return nil
}
func (s *stubInstance) ListMessages(context.Context) ([]*instance.StoredMessage, error) {
	return []*instance.StoredMessage{{EventID: "e1", Role: "user"}}, nil
}

func newTestServer(t *testing.T) (*httptest.Server, *registry.Registry) {
	auth.Disabled = false
	clock := timeoutsvc.NewFakeClock(time.Unix(0, 0))
	factory := func(base *instance.Base) instance.Instance { return &stubInstance{Base: base} }
	reg := registry.New(factory, registry.WithClock(clock), registry.WithHeartbeatInterval(time.Hour))
	t.Cleanup(func() { reg.Shutdown(context.Background()) })

	h := New(router.New(reg), nil)
	r := chi.NewRouter()
	r.Route("/api/projects/{project}/threads/{thread}", func(r chi.Router) {
		r.Get("/messages", h.ListMessages)
		r.Get("/messages/{id}", h.GetMessage)
		r.Post("/messages", h.SendMessage)
		r.Delete("/messages/{id}", h.DeleteMessage)
		r.Post("/stop", h.Stop)
		r.Post("/upload", h.Upload)
	})
	return httptest.NewServer(r), reg
}

func TestListMessages_RequiresForwardedEmail(t *testing.T) {
	srv, _ := newTestServer(t)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/projects/p1/threads/t1/messages")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestListMessages_ReturnsJSONMessages(t *testing.T) {
	srv, reg := newTestServer(t)
	defer srv.Close()
	reg.GetOrCreate(context.Background(), "t1", "p1", "alice", nil)

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/projects/p1/threads/t1/messages", nil)
	req.Header.Set(auth.ForwardedEmailHeader, "alice")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var msgs []*instance.StoredMessage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&msgs))
	require.Len(t, msgs, 1)
	assert.Equal(t, "e1", msgs[0].EventID)
}

func TestSendMessage_DispatchesAnswer(t *testing.T) {
	srv, reg := newTestServer(t)
	defer srv.Close()
	reg.GetOrCreate(context.Background(), "t1", "p1", "alice", nil)

	body, _ := json.Marshal(sendMessageRequest{Content: []instance.ContentPart{{Type: "text", Content: "hi"}}})
	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/projects/p1/threads/t1/messages", bytes.NewReader(body))
	req.Header.Set(auth.ForwardedEmailHeader, "alice")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestDeleteMessage_WrongUserIsForbidden(t *testing.T) {
	srv, reg := newTestServer(t)
	defer srv.Close()
	reg.GetOrCreate(context.Background(), "t1", "p1", "alice", nil)

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/api/projects/p1/threads/t1/messages/e1", nil)
	req.Header.Set(auth.ForwardedEmailHeader, "bob")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
