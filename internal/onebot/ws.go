package onebot

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// MessageHandler receives every group message that is not from the bot
// itself and has non-empty text.
type MessageHandler func(ctx context.Context, msg Message)

// Listener consumes events from a OneBot forward websocket and reconnects
// with backoff until its context is cancelled.
type Listener struct {
	url      string
	token    string
	handler  MessageHandler
	log      *zap.Logger
	dialer   *websocket.Dialer
	now      func() time.Time
	minDelay time.Duration
	maxDelay time.Duration
}

func NewListener(url, token string, handler MessageHandler, log *zap.Logger) *Listener {
	if log == nil {
		log = zap.NewNop()
	}
	return &Listener{
		url:      url,
		token:    token,
		handler:  handler,
		log:      log,
		dialer:   websocket.DefaultDialer,
		now:      time.Now,
		minDelay: time.Second,
		maxDelay: 30 * time.Second,
	}
}

// Run blocks until ctx is done. Connection errors are logged and retried.
func (l *Listener) Run(ctx context.Context) error {
	delay := l.minDelay
	for {
		connected, err := l.session(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if connected {
			delay = l.minDelay
		}
		if err != nil {
			l.log.Warn("onebot websocket disconnected", zap.Error(err), zap.Duration("retry_in", delay))
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
		delay *= 2
		if delay > l.maxDelay {
			delay = l.maxDelay
		}
	}
}

// session reads one connection until it fails. connected reports whether
// the dial succeeded.
func (l *Listener) session(ctx context.Context) (connected bool, err error) {
	header := http.Header{}
	if l.token != "" {
		header.Set("Authorization", "Bearer "+l.token)
	}
	conn, _, err := l.dialer.DialContext(ctx, l.url, header)
	if err != nil {
		return false, err
	}
	defer conn.Close()
	l.log.Info("onebot websocket connected", zap.String("url", l.url))

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return true, err
		}
		msg, ok, err := ParseEvent(data)
		if err != nil {
			l.log.Debug("skipping malformed event", zap.Error(err))
			continue
		}
		if !ok {
			continue
		}
		if msg.IsSelf || strings.TrimSpace(msg.Text) == "" {
			continue
		}
		msg.ArrivedAt = l.now()
		l.handler(ctx, msg)
	}
}
