package onebot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ErrActionFailed is returned when the OneBot API answers with a non-zero retcode.
var ErrActionFailed = errors.New("onebot action failed")

// Client calls the OneBot HTTP API. It satisfies the engine's enforcement
// and notification interfaces.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	limiter *rate.Limiter
	log     *zap.Logger
}

// NewClient creates a client for baseURL allowing at most actionsPerSecond
// calls, with a burst of the same size.
func NewClient(baseURL, token string, actionsPerSecond float64, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	if actionsPerSecond <= 0 {
		actionsPerSecond = 5
	}
	burst := int(actionsPerSecond)
	if burst < 1 {
		burst = 1
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 15 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(actionsPerSecond), burst),
		log:     log,
	}
}

type response struct {
	Status  string          `json:"status"`
	Retcode int             `json:"retcode"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Wording string          `json:"wording"`
}

// Enforce mutes userID in groupID for d, rounded down to whole seconds.
func (c *Client) Enforce(ctx context.Context, groupID, userID string, d time.Duration) error {
	gid, err := parseID("group", groupID)
	if err != nil {
		return err
	}
	uid, err := parseID("user", userID)
	if err != nil {
		return err
	}
	_, err = c.call(ctx, "set_group_ban", map[string]any{
		"group_id": gid,
		"user_id":  uid,
		"duration": int64(d / time.Second),
	})
	return err
}

// Notify posts text to groupID as plain text.
func (c *Client) Notify(ctx context.Context, groupID, text string) error {
	gid, err := parseID("group", groupID)
	if err != nil {
		return err
	}
	_, err = c.call(ctx, "send_group_msg", map[string]any{
		"group_id":    gid,
		"message":     text,
		"auto_escape": true,
	})
	return err
}

func (c *Client) call(ctx context.Context, action string, params any) (json.RawMessage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	body, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+action, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", action, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%s: read response: %w", action, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s: http %d", ErrActionFailed, action, resp.StatusCode)
	}

	var r response
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("%s: decode response: %w", action, err)
	}
	if r.Retcode != 0 {
		detail := r.Wording
		if detail == "" {
			detail = r.Message
		}
		return nil, fmt.Errorf("%w: %s: retcode %d %s", ErrActionFailed, action, r.Retcode, detail)
	}
	c.log.Debug("onebot action ok", zap.String("action", action))
	return r.Data, nil
}

func parseID(kind, id string) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(id), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s id %q: %w", kind, id, err)
	}
	return n, nil
}
