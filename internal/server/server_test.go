package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gzhole/groupguard/internal/engine"
	"github.com/gzhole/groupguard/internal/history"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubEngine struct {
	checked []string
	reset   []string
	report  engine.Report
}

func (s *stubEngine) Status() engine.Status {
	return engine.Status{Mode: "hybrid", BatchSize: 10, BufferGroups: 2, BufferMessages: 7}
}

func (s *stubEngine) ForceCheck(_ context.Context, groupID string, _ engine.Handle) engine.Report {
	s.checked = append(s.checked, groupID)
	rep := s.report
	rep.Group = groupID
	return rep
}

func (s *stubEngine) ResetGroup(groupID string) engine.GroupReset {
	s.reset = append(s.reset, groupID)
	return engine.GroupReset{Group: groupID, Discarded: 4}
}

type brokenStore struct{ *history.MemoryStore }

func (brokenStore) List(context.Context, string) ([]history.Record, error) {
	return nil, errors.New("database is gone")
}

func do(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req, err := http.NewRequest(method, path, nil)
	require.NoError(t, err)
	h.ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	s := New("", &stubEngine{}, nil, nil)
	w := do(t, s.Handler(), http.MethodGet, "/healthz")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/json")
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestStatus(t *testing.T) {
	s := New("", &stubEngine{}, nil, nil)
	w := do(t, s.Handler(), http.MethodGet, "/status")

	require.Equal(t, http.StatusOK, w.Code)
	var st engine.Status
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
	assert.Equal(t, "hybrid", st.Mode)
	assert.Equal(t, 7, st.BufferMessages)
}

func TestCheck(t *testing.T) {
	eng := &stubEngine{report: engine.Report{Source: engine.SourceForce, Messages: 3, Enforced: []string{"u1"}}}
	s := New("", eng, nil, nil)

	w := do(t, s.Handler(), http.MethodPost, "/groups/12345/check")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"12345"}, eng.checked)
	var rep engine.Report
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rep))
	assert.Equal(t, "12345", rep.Group)
	assert.Equal(t, []string{"u1"}, rep.Enforced)
}

func TestCheck_RequiresPost(t *testing.T) {
	eng := &stubEngine{}
	s := New("", eng, nil, nil)
	w := do(t, s.Handler(), http.MethodGet, "/groups/1/check")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Empty(t, eng.checked)
}

func TestResetBuffer(t *testing.T) {
	eng := &stubEngine{}
	s := New("", eng, nil, nil)

	w := do(t, s.Handler(), http.MethodDelete, "/groups/777/buffer")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"777"}, eng.reset)
	assert.Empty(t, eng.checked)
	var r engine.GroupReset
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &r))
	assert.Equal(t, "777", r.Group)
	assert.Equal(t, 4, r.Discarded)
}

func TestGroupHistory(t *testing.T) {
	store := history.NewMemoryStore()
	_, err := store.RecordEnforcement(context.Background(), "g1", "u1", time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	s := New("", &stubEngine{}, store, nil)
	w := do(t, s.Handler(), http.MethodGet, "/groups/g1/history")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Group   string           `json:"group"`
		Records []history.Record `json:"records"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "g1", body.Group)
	require.Len(t, body.Records, 1)
	assert.Equal(t, 1, body.Records[0].Count)

	w = do(t, s.Handler(), http.MethodGet, "/groups/empty/history")
	assert.JSONEq(t, `{"group":"empty","records":[]}`, w.Body.String())
}

func TestGroupHistory_Errors(t *testing.T) {
	w := do(t, New("", &stubEngine{}, nil, nil).Handler(), http.MethodGet, "/groups/g1/history")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, New("", &stubEngine{}, brokenStore{history.NewMemoryStore()}, nil).Handler(), http.MethodGet, "/groups/g1/history")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "database is gone")
}

func TestMetrics(t *testing.T) {
	s := New("", &stubEngine{}, nil, nil)
	w := do(t, s.Handler(), http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	s := New("", &stubEngine{}, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	url := "http://" + ln.Addr().String() + "/healthz"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(shutdownTimeout + time.Second):
		t.Fatal("server did not shut down")
	}
}
