package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/gzhole/groupguard/internal/history"
	"github.com/gzhole/groupguard/internal/logger"
	"github.com/gzhole/groupguard/internal/trigger"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock { return &fakeClock{t: t0} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type gatewayFunc func(ctx context.Context, contextText, providerID string) (string, error)

func (f gatewayFunc) Analyze(ctx context.Context, contextText, providerID string) (string, error) {
	return f(ctx, contextText, providerID)
}

func staticGateway(resp string) gatewayFunc {
	return func(context.Context, string, string) (string, error) { return resp, nil }
}

type fakeHandle struct {
	mu             sync.Mutex
	enforced       []string
	durations      []time.Duration
	notices        []string
	enforceErr     error
	panicOnEnforce bool
}

func (h *fakeHandle) Enforce(_ context.Context, groupID, userID string, d time.Duration) error {
	if h.panicOnEnforce {
		panic("enforcer exploded")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.enforceErr != nil {
		return h.enforceErr
	}
	h.enforced = append(h.enforced, groupID+"/"+userID)
	h.durations = append(h.durations, d)
	return nil
}

func (h *fakeHandle) Notify(_ context.Context, groupID, text string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.notices = append(h.notices, text)
	return nil
}

func (h *fakeHandle) Enforced() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.enforced...)
}

func (h *fakeHandle) Notices() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.notices...)
}

type recordingAuditor struct {
	mu     sync.Mutex
	events []logger.AuditEvent
}

func (a *recordingAuditor) Log(ev logger.AuditEvent) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, ev)
	return nil
}

func (a *recordingAuditor) Events() []logger.AuditEvent {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]logger.AuditEvent(nil), a.events...)
}

// testOptions fills the fields every test needs; callers override the rest.
func testOptions(mode trigger.Mode, batch int) Options {
	return Options{
		Mode:            mode,
		BatchSize:       batch,
		CheckInterval:   time.Minute,
		BanDuration:     10 * time.Minute,
		CoolDown:        time.Hour,
		AnalyzerTimeout: 2 * time.Second,
		WarningTemplate: "{user} muted",
		Provider:        "main",
		Location:        time.UTC,
	}
}

type testEngine struct {
	*Engine
	clock  *fakeClock
	store  *history.MemoryStore
	handle *fakeHandle
	audit  *recordingAuditor
}

func newTestEngine(t *testing.T, opts Options, gw gatewayFunc) *testEngine {
	t.Helper()
	te := &testEngine{
		clock:  newFakeClock(),
		store:  history.NewMemoryStore(),
		handle: &fakeHandle{},
		audit:  &recordingAuditor{},
	}
	deps := Deps{
		History: te.store,
		Audit:   te.audit,
		Now:     te.clock.Now,
	}
	if gw != nil {
		deps.Gateway = gw
	}
	te.Engine = New(opts, deps)
	return te
}

// say delivers a message from user to group through OnMessage.
func (te *testEngine) say(group, user, text string) bool {
	return te.OnMessage(context.Background(), Event{
		GroupID:     group,
		UserID:      user,
		Text:        text,
		DisplayName: "name-" + user,
		ArrivedAt:   te.clock.Now(),
		Handle:      te.handle,
	})
}
