// Package onebot connects to a OneBot v11 implementation (NapCat, Lagrange,
// go-cqhttp): group messages arrive over a forward websocket and moderation
// actions go out over the HTTP API.
package onebot

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Message is a group chat message ready for the engine.
type Message struct {
	GroupID     string
	UserID      string
	Text        string
	DisplayName string
	ArrivedAt   time.Time
	IsSelf      bool
}

type segment struct {
	Type string `json:"type"`
	Data struct {
		Text string `json:"text"`
	} `json:"data"`
}

type rawEvent struct {
	PostType    string          `json:"post_type"`
	MessageType string          `json:"message_type"`
	SelfID      json.Number     `json:"self_id"`
	UserID      json.Number     `json:"user_id"`
	GroupID     json.Number     `json:"group_id"`
	RawMessage  string          `json:"raw_message"`
	Message     json.RawMessage `json:"message"`
	Sender      struct {
		Nickname string `json:"nickname"`
		Card     string `json:"card"`
	} `json:"sender"`
}

var cqCode = regexp.MustCompile(`\[CQ:[^\]]*\]`)

// ParseEvent decodes one websocket frame. ok is false for anything that is
// not a group message (heartbeats, lifecycle events, private messages).
func ParseEvent(data []byte) (msg Message, ok bool, err error) {
	var ev rawEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return Message{}, false, fmt.Errorf("decode event: %w", err)
	}
	if ev.MessageType != "group" {
		return Message{}, false, nil
	}
	if ev.PostType != "message" && ev.PostType != "message_sent" {
		return Message{}, false, nil
	}

	msg = Message{
		GroupID:     ev.GroupID.String(),
		UserID:      ev.UserID.String(),
		Text:        messageText(ev),
		DisplayName: ev.Sender.Card,
	}
	if msg.DisplayName == "" {
		msg.DisplayName = ev.Sender.Nickname
	}
	msg.IsSelf = ev.PostType == "message_sent" || (ev.SelfID != "" && ev.SelfID == ev.UserID)
	return msg, true, nil
}

// messageText keeps only the plain text of a message.
func messageText(ev rawEvent) string {
	if len(ev.Message) > 0 && ev.Message[0] == '[' {
		var segs []segment
		if err := json.Unmarshal(ev.Message, &segs); err == nil {
			var b strings.Builder
			for _, s := range segs {
				if s.Type == "text" {
					b.WriteString(s.Data.Text)
				}
			}
			return strings.TrimSpace(b.String())
		}
	}
	if len(ev.Message) > 0 && ev.Message[0] == '"' {
		var s string
		if err := json.Unmarshal(ev.Message, &s); err == nil {
			return strings.TrimSpace(cqCode.ReplaceAllString(s, ""))
		}
	}
	return strings.TrimSpace(cqCode.ReplaceAllString(ev.RawMessage, ""))
}
