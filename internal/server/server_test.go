package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"quizrunner/internal/config"
	"quizrunner/internal/task"
)

// stubProcessor records requests and can block to simulate a slow pipeline.
type stubProcessor struct {
	mu      sync.Mutex
	reqs    []task.Request
	release chan struct{} // when non-nil, Process blocks until closed
	done    chan struct{}
}

func (p *stubProcessor) Process(_ context.Context, req task.Request) {
	if p.release != nil {
		<-p.release
	}
	p.mu.Lock()
	p.reqs = append(p.reqs, req)
	p.mu.Unlock()
	if p.done != nil {
		p.done <- struct{}{}
	}
}

func (p *stubProcessor) requests() []task.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]task.Request(nil), p.reqs...)
}

func postTask(t *testing.T, url string, body map[string]string) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url+"/tasks", "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	return resp
}

func TestHandleTask_AckIsImmediateAndDecoupled(t *testing.T) {
	proc := &stubProcessor{release: make(chan struct{}), done: make(chan struct{}, 1)}
	s := New(config.ServerConfig{Secret: "hunter2"}, proc, zap.NewNop())
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	start := time.Now()
	resp := postTask(t, ts.URL, map[string]string{
		"email": "user@example.com", "secret": "hunter2", "url": "https://host/quiz",
	})
	defer resp.Body.Close()

	// The ack arrives while the pipeline is still blocked.
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Less(t, time.Since(start), time.Second)
	assert.Empty(t, proc.requests())

	var ack map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&ack))
	assert.Equal(t, "accepted", ack["status"])
	assert.NotEmpty(t, ack["task_id"])

	close(proc.release)
	select {
	case <-proc.done:
	case <-time.After(2 * time.Second):
		t.Fatal("pipeline never ran")
	}

	reqs := proc.requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "user@example.com", reqs[0].Email)
	assert.Equal(t, "https://host/quiz", reqs[0].URL)
	assert.False(t, reqs[0].AcceptedAt.IsZero())
}

func TestHandleTask_WrongSecret(t *testing.T) {
	proc := &stubProcessor{}
	s := New(config.ServerConfig{Secret: "hunter2"}, proc, zap.NewNop())
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp := postTask(t, ts.URL, map[string]string{
		"email": "user@example.com", "secret": "wrong", "url": "https://host/quiz",
	})
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Empty(t, proc.requests())
}

func TestHandleTask_MissingFields(t *testing.T) {
	proc := &stubProcessor{}
	s := New(config.ServerConfig{Secret: "hunter2"}, proc, zap.NewNop())
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	for _, body := range []map[string]string{
		{"secret": "hunter2", "url": "https://host/quiz"},
		{"email": "user@example.com", "url": "https://host/quiz"},
		{"email": "user@example.com", "secret": "hunter2"},
	} {
		resp := postTask(t, ts.URL, body)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		resp.Body.Close()
	}
	assert.Empty(t, proc.requests())
}

func TestHandleTask_InvalidJSON(t *testing.T) {
	s := New(config.ServerConfig{Secret: "hunter2"}, &stubProcessor{}, zap.NewNop())
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/tasks", "application/json", bytes.NewReader([]byte("not json")))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealthz(t *testing.T) {
	s := New(config.ServerConfig{}, &stubProcessor{}, zap.NewNop())
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
