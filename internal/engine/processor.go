package engine

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/gzhole/groupguard/internal/analyzer"
	"github.com/gzhole/groupguard/internal/buffer"
	"github.com/gzhole/groupguard/internal/logger"
	"github.com/gzhole/groupguard/internal/verdict"
)

// process runs one batch cycle for groupID while holding the group's lock.
// Whatever happens in between, the cycle ends by clearing the analyzed
// messages and resetting the group's trigger clock. An empty buffer is a
// no-op and leaves the clock alone.
func (e *Engine) process(ctx context.Context, groupID, source string) (rep Report) {
	lock := e.locks.get(groupID)
	lock.Lock()
	defer lock.Unlock()

	rep = Report{Group: groupID, Source: source}
	snap := e.buf.Snapshot(groupID)
	if snap.Empty() {
		rep.Empty = true
		cyclesTotal.WithLabelValues("empty").Inc()
		return rep
	}

	rep.Cycle = uuid.NewString()
	rep.Messages = snap.Total()
	log := e.log.With(
		zap.String("group", groupID),
		zap.String("cycle", rep.Cycle),
		zap.String("source", source))

	ctx, span := tracer.Start(ctx, "engine.process", trace.WithAttributes(
		attribute.String("group", groupID),
		attribute.String("source", source),
		attribute.Int("messages", rep.Messages)))
	started := time.Now()
	outcome := "ok"

	defer func() {
		e.buf.ClearThrough(snap)
		e.clocks.Reset(groupID, e.now())

		cyclesTotal.WithLabelValues(outcome).Inc()
		cycleDuration.Observe(time.Since(started).Seconds())
		span.SetAttributes(attribute.Int("enforced", len(rep.Enforced)))
		span.End()
		log.Info("batch cycle finished",
			zap.String("outcome", outcome),
			zap.Int("count", rep.Messages),
			zap.Int("verdicts", rep.Verdicts),
			zap.Int("rejected", rep.Rejected),
			zap.Strings("enforced", rep.Enforced))
	}()
	defer func() {
		if r := recover(); r != nil {
			outcome = "panic"
			rep.fail("internal error: %v", r)
			span.SetStatus(codes.Error, "panic")
			log.Error("batch cycle panicked", zap.Any("panic", r), zap.Stack("stack"))
		}
	}()

	outcome = e.runCycle(ctx, log, snap, &rep)
	if outcome != "ok" && outcome != "skipped" {
		span.SetStatus(codes.Error, outcome)
	}
	return rep
}

// runCycle covers formatting through enforcement and returns the cycle
// outcome label.
func (e *Engine) runCycle(ctx context.Context, log *zap.Logger, snap buffer.Snapshot, rep *Report) string {
	if e.opts.Provider == "" || e.gateway == nil {
		rep.Skipped = "no analyzer provider configured"
		log.Warn("no analyzer provider configured, skipping analysis")
		return "skipped"
	}

	contextText := analyzer.Format(snap, e.opts.Location)
	raw, err := e.analyze(ctx, contextText)
	if errors.Is(err, analyzer.ErrNoProvider) {
		rep.Skipped = "no analyzer provider configured"
		log.Warn("no analyzer provider configured, skipping analysis")
		return "skipped"
	}
	if err != nil {
		rep.fail("analyzer: %v", err)
		log.Error("analyzer call failed", zap.Error(err))
		return "analyzer_error"
	}

	all, err := verdict.Parse(raw)
	if err != nil {
		rep.fail("analyzer response: %v", err)
		log.Error("could not parse analyzer response", zap.Error(err), zap.Int("response_bytes", len(raw)))
		return "parse_error"
	}
	verdicts, dropped := verdict.Explicit(all)
	rep.Verdicts = len(all)
	rep.Dropped = dropped
	if dropped > 0 {
		verdictsTotal.WithLabelValues("no_user_id").Add(float64(dropped))
		log.Warn("discarded verdicts without a user id", zap.Int("count", dropped))
	}

	for _, v := range verdicts {
		e.apply(ctx, log, snap, v, rep)
	}
	return "ok"
}

// analyze calls the gateway with the configured timeout. A gateway that
// ignores its context is abandoned when the deadline passes.
func (e *Engine) analyze(ctx context.Context, contextText string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.opts.AnalyzerTimeout)
	defer cancel()

	type result struct {
		out string
		err error
	}
	ch := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- result{err: fmt.Errorf("analyzer panicked: %v", r)}
			}
		}()
		out, err := e.gateway.Analyze(ctx, contextText, e.opts.Provider)
		ch <- result{out: out, err: err}
	}()

	select {
	case r := <-ch:
		return r.out, r.err
	case <-ctx.Done():
		return "", fmt.Errorf("analyzer timed out after %s: %w", e.opts.AnalyzerTimeout, ctx.Err())
	}
}

// apply takes one verdict through the guardrail and, if accepted, the
// enforcement gateway. History is written only after enforcement succeeds.
func (e *Engine) apply(ctx context.Context, log *zap.Logger, snap buffer.Snapshot, v verdict.Verdict, rep *Report) {
	groupID := snap.Group
	log = log.With(zap.String("user", v.UserID))

	d := e.guard.Check(ctx, groupID, v.UserID, snap, v.Reason)
	if !d.Accepted {
		rep.Rejected++
		verdictsTotal.WithLabelValues(string(d.Rule)).Inc()
		log.Warn("verdict rejected by guardrail", zap.String("rule", string(d.Rule)), zap.String("detail", d.Detail))
		e.record(rep, logger.AuditEvent{
			Group: groupID, User: v.UserID, Decision: logger.DecisionRejected,
			Rule: string(d.Rule), Reason: v.Reason,
		})
		return
	}
	verdictsTotal.WithLabelValues("accepted").Inc()

	h := e.handle(groupID)
	if h == nil {
		rep.fail("mute %s: no route to group %s", v.UserID, groupID)
		enforcementsTotal.WithLabelValues("no_handle").Inc()
		log.Error("no handle for group, cannot enforce")
		e.record(rep, logger.AuditEvent{
			Group: groupID, User: v.UserID, Decision: logger.DecisionFailed,
			Reason: v.Reason, Error: "no handle for group",
		})
		return
	}

	if err := h.Enforce(ctx, groupID, v.UserID, e.opts.BanDuration); err != nil {
		rep.fail("mute %s: %v", v.UserID, err)
		enforcementsTotal.WithLabelValues("failed").Inc()
		log.Error("enforcement failed", zap.Error(err))
		e.record(rep, logger.AuditEvent{
			Group: groupID, User: v.UserID, Decision: logger.DecisionFailed,
			Reason: v.Reason, Error: err.Error(),
		})
		return
	}
	enforcementsTotal.WithLabelValues("ok").Inc()
	rep.Enforced = append(rep.Enforced, v.UserID)

	rec, err := e.history.RecordEnforcement(ctx, groupID, v.UserID, e.now())
	if err != nil {
		log.Error("record violation history failed", zap.Error(err))
	}
	log.Info("user muted",
		zap.String("reason", v.Reason),
		zap.Duration("duration", e.opts.BanDuration),
		zap.Int("violations", rec.Count))
	e.record(rep, logger.AuditEvent{
		Group: groupID, User: v.UserID, Decision: logger.DecisionEnforced,
		Reason: v.Reason, DurationSeconds: int64(e.opts.BanDuration / time.Second),
	})

	if !e.opts.SendWarning {
		return
	}
	text := e.warning(snap, v)
	if err := h.Notify(ctx, groupID, text); err != nil {
		log.Warn("warning message failed", zap.Error(err))
	}
}

// warning fills the template's {user}, {name}, {reason} and {duration}
// placeholders.
func (e *Engine) warning(snap buffer.Snapshot, v verdict.Verdict) string {
	name := v.UserID
	if msgs, ok := snap.Messages(v.UserID); ok && len(msgs) > 0 && msgs[len(msgs)-1].DisplayName != "" {
		name = msgs[len(msgs)-1].DisplayName
	}
	return strings.NewReplacer(
		"{user}", v.UserID,
		"{name}", name,
		"{reason}", v.Reason,
		"{duration}", strconv.FormatInt(int64(e.opts.BanDuration/time.Second), 10),
	).Replace(e.opts.WarningTemplate)
}

func (e *Engine) record(rep *Report, ev logger.AuditEvent) {
	if e.audit == nil {
		return
	}
	ev.Timestamp = e.now().UTC().Format(time.RFC3339)
	ev.Cycle = rep.Cycle
	ev.Source = rep.Source
	if err := e.audit.Log(ev); err != nil {
		e.log.Warn("audit log write failed", zap.Error(err))
	}
}
