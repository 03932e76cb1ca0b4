// Package engine turns a stream of group chat messages into moderation
// actions. It buffers messages per group, decides when a batch is worth an
// analyzer call, and runs each batch through the analyzer, the guardrail and
// the enforcement gateway under a per-group lock.
package engine

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/gzhole/groupguard/internal/analyzer"
	"github.com/gzhole/groupguard/internal/buffer"
	"github.com/gzhole/groupguard/internal/config"
	"github.com/gzhole/groupguard/internal/guardrail"
	"github.com/gzhole/groupguard/internal/history"
	"github.com/gzhole/groupguard/internal/logger"
	"github.com/gzhole/groupguard/internal/trigger"
)

// MessageTTL is how long a message may sit in the buffer before the
// scheduler's expiry sweep drops it.
const MessageTTL = time.Hour

// Enforcer mutes a user.
type Enforcer interface {
	Enforce(ctx context.Context, groupID, userID string, d time.Duration) error
}

// Notifier posts a message to a group.
type Notifier interface {
	Notify(ctx context.Context, groupID, text string) error
}

// Handle is the per-group route back to the chat platform. The ingestion
// side supplies one with every event; the latest one per group is kept.
type Handle interface {
	Enforcer
	Notifier
}

// Auditor records enforcement outcomes.
type Auditor interface {
	Log(event logger.AuditEvent) error
}

// Event is one inbound chat message.
type Event struct {
	GroupID     string
	UserID      string
	Text        string
	DisplayName string
	ArrivedAt   time.Time
	IsSelf      bool
	Handle      Handle
}

// Options are the engine's tunables, normally derived from config.
type Options struct {
	Mode            trigger.Mode
	BatchSize       int
	CheckInterval   time.Duration
	RecentLimit     int
	BanDuration     time.Duration
	CoolDown        time.Duration
	AnalyzerTimeout time.Duration
	SendWarning     bool
	WarningTemplate string
	Provider        string
	Whitelist       []string
	EnabledGroups   []string
	// Location renders message times for the analyzer; nil means time.Local.
	Location *time.Location
}

// OptionsFromConfig maps the loaded configuration onto engine options.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	mode, err := trigger.ParseMode(cfg.TriggerMode)
	if err != nil {
		return Options{}, err
	}
	return Options{
		Mode:            mode,
		BatchSize:       cfg.BatchSize,
		CheckInterval:   cfg.CheckIntervalDuration(),
		RecentLimit:     cfg.RecentMessageLimit,
		BanDuration:     cfg.BanDurationDuration(),
		CoolDown:        cfg.CoolDownDuration(),
		AnalyzerTimeout: cfg.AnalyzerTimeoutDuration(),
		SendWarning:     cfg.SendWarning,
		WarningTemplate: cfg.WarningTemplate,
		Provider:        cfg.LLMProvider,
		Whitelist:       cfg.WhitelistUsers,
		EnabledGroups:   cfg.EnabledGroups,
	}, nil
}

// Deps are the engine's collaborators. Only History is required.
type Deps struct {
	History history.Store
	Gateway analyzer.Gateway
	// DefaultHandle is used for groups that have not delivered a handle yet.
	DefaultHandle Handle
	Audit         Auditor
	Logger        *zap.Logger
	Now           func() time.Time
}

// Engine owns the buffer, trigger clocks, group locks and violation history.
type Engine struct {
	opts    Options
	buf     *buffer.Buffer
	clocks  *trigger.Clocks
	locks   *lockRegistry
	history history.Store
	guard   *guardrail.Validator
	gateway analyzer.Gateway
	audit   Auditor
	log     *zap.Logger
	now     func() time.Time

	handlesMu     sync.RWMutex
	handles       map[string]Handle
	defaultHandle Handle

	whitelist map[string]struct{}
	enabled   map[string]struct{}

	inflight sync.WaitGroup
}

// New creates an engine from opts, filling defaults for zero-valued fields.
func New(opts Options, deps Deps) *Engine {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.History == nil {
		deps.History = history.NewMemoryStore()
	}
	// Config validation rejects a zero window; this only covers Options
	// built by hand.
	if opts.CoolDown <= 0 {
		opts.CoolDown = guardrail.DefaultCoolDown
	}
	if opts.AnalyzerTimeout <= 0 {
		opts.AnalyzerTimeout = 30 * time.Second
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}

	return &Engine{
		opts:          opts,
		buf:           buffer.New(),
		clocks:        trigger.NewClocks(),
		locks:         newLockRegistry(),
		history:       deps.History,
		guard:         guardrail.NewValidator(deps.History, opts.CoolDown, deps.Now),
		gateway:       deps.Gateway,
		audit:         deps.Audit,
		log:           deps.Logger,
		now:           deps.Now,
		handles:       make(map[string]Handle),
		defaultHandle: deps.DefaultHandle,
		whitelist:     toSet(opts.Whitelist),
		enabled:       toSet(opts.EnabledGroups),
	}
}

// OnMessage buffers ev and, when the trigger fires, starts a batch cycle in
// the background. It never waits on a group lock. It reports whether a
// cycle was started.
func (e *Engine) OnMessage(ctx context.Context, ev Event) bool {
	if ev.GroupID == "" || ev.UserID == "" {
		return false
	}
	if ev.Handle != nil {
		e.setHandle(ev.GroupID, ev.Handle)
	}
	if ev.IsSelf {
		messagesTotal.WithLabelValues("self").Inc()
		return false
	}

	now := e.now()
	e.clocks.Init(ev.GroupID, now)

	if !e.groupEnabled(ev.GroupID) {
		messagesTotal.WithLabelValues("group_disabled").Inc()
		return false
	}
	if _, ok := e.whitelist[ev.UserID]; ok {
		messagesTotal.WithLabelValues("whitelisted").Inc()
		return false
	}

	arrived := ev.ArrivedAt
	if arrived.IsZero() {
		arrived = now
	}
	total := e.buf.Append(ev.GroupID, buffer.Message{
		UserID:      ev.UserID,
		Text:        ev.Text,
		DisplayName: ev.DisplayName,
		ArrivedAt:   arrived,
	})
	messagesTotal.WithLabelValues("buffered").Inc()

	if e.opts.RecentLimit > 0 {
		if dropped := e.buf.TrimToRecent(ev.GroupID, e.opts.RecentLimit); dropped > 0 {
			messagesTrimmed.Add(float64(dropped))
			total = e.buf.TotalCount(ev.GroupID)
		}
	}

	elapsed := e.clocks.Elapsed(ev.GroupID, now)
	if !trigger.ShouldTrigger(e.opts.Mode, total, e.opts.BatchSize, elapsed, e.opts.CheckInterval) {
		return false
	}

	e.log.Debug("trigger fired",
		zap.String("group", ev.GroupID),
		zap.String("mode", string(e.opts.Mode)),
		zap.Int("count", total),
		zap.Duration("elapsed", elapsed))
	triggersTotal.WithLabelValues(SourceMessage).Inc()
	e.spawn(ctx, ev.GroupID, SourceMessage)
	return true
}

// spawn runs a batch cycle in its own goroutine. The cycle outlives ctx's
// cancellation so a shutdown never abandons a half-finished cycle.
func (e *Engine) spawn(ctx context.Context, groupID, source string) {
	e.inflight.Add(1)
	go func() {
		defer e.inflight.Done()
		e.process(context.WithoutCancel(ctx), groupID, source)
	}()
}

// Wait blocks until every cycle started by OnMessage has finished.
func (e *Engine) Wait() {
	e.inflight.Wait()
}

// ForceCheck runs a batch cycle for groupID now, subject to the same group
// lock as every other trigger. A non-nil h replaces the group's handle.
func (e *Engine) ForceCheck(ctx context.Context, groupID string, h Handle) Report {
	if h != nil {
		e.setHandle(groupID, h)
	}
	if e.buf.TotalCount(groupID) == 0 {
		return Report{Group: groupID, Source: SourceForce, Empty: true}
	}
	triggersTotal.WithLabelValues(SourceForce).Inc()
	return e.process(ctx, groupID, SourceForce)
}

// GroupReset describes a discarded group buffer.
type GroupReset struct {
	Group     string    `json:"group"`
	Discarded int       `json:"discarded"`
	LastCheck time.Time `json:"last_check"`
}

// ResetGroup drops everything buffered for groupID without analyzing it and
// restarts the group's clock. It waits for any in-flight cycle of the group.
func (e *Engine) ResetGroup(groupID string) GroupReset {
	lock := e.locks.get(groupID)
	lock.Lock()
	defer lock.Unlock()

	n := e.buf.TotalCount(groupID)
	e.buf.Clear(groupID)
	e.clocks.Reset(groupID, e.now())
	last, _ := e.clocks.Last(groupID)
	e.log.Info("group buffer reset", zap.String("group", groupID), zap.Int("discarded", n))
	return GroupReset{Group: groupID, Discarded: n, LastCheck: last}
}

// Status is a point-in-time view of the engine.
type Status struct {
	Mode           string `json:"trigger_mode"`
	TimeSensitive  bool   `json:"time_sensitive"`
	CheckInterval  string `json:"check_interval"`
	BatchSize      int    `json:"batch_size"`
	RecentLimit    int    `json:"recent_message_limit"`
	CoolDown       string `json:"cool_down_window"`
	Provider       string `json:"llm_provider"`
	BufferGroups   int    `json:"buffer_groups"`
	BufferMessages int    `json:"buffer_messages"`
}

// Status reports the effective trigger settings and current buffer size.
func (e *Engine) Status() Status {
	groups, messages := e.buf.Stats()
	return Status{
		Mode:           string(e.opts.Mode),
		TimeSensitive:  e.opts.Mode.TimeSensitive(),
		CheckInterval:  e.opts.CheckInterval.String(),
		BatchSize:      e.opts.BatchSize,
		RecentLimit:    e.opts.RecentLimit,
		CoolDown:       e.guard.CoolDown().String(),
		Provider:       e.opts.Provider,
		BufferGroups:   groups,
		BufferMessages: messages,
	}
}

func (e *Engine) setHandle(groupID string, h Handle) {
	e.handlesMu.Lock()
	defer e.handlesMu.Unlock()
	e.handles[groupID] = h
}

func (e *Engine) handle(groupID string) Handle {
	e.handlesMu.RLock()
	defer e.handlesMu.RUnlock()
	if h, ok := e.handles[groupID]; ok {
		return h
	}
	return e.defaultHandle
}

func (e *Engine) groupEnabled(groupID string) bool {
	if len(e.enabled) == 0 {
		return true
	}
	_, ok := e.enabled[groupID]
	return ok
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, it := range items {
		set[it] = struct{}{}
	}
	return set
}
