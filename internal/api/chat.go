package api

import (
	"context"
	"fmt"

	"github.com/yyupcompany/kyyupgame-sub066/internal/transport"
	"github.com/yyupcompany/kyyupgame-sub066/internal/validation"
	"go.uber.org/zap"
)

type ChatSession struct {
	ConversationID ID     `json:"conversationId"`
	Title          string `json:"title,omitempty"`
	Greeting       string `json:"greeting,omitempty"`
}

type ChatMessage struct {
	ConversationID ID     `json:"conversationId" validate:"required"`
	Content        string `json:"content" validate:"notblank"`
	Type           string `json:"type,omitempty" validate:"omitempty,oneof=text image voice"`
}

type ChatReply struct {
	MessageID ID     `json:"messageId,omitempty"`
	Content   string `json:"content"`
	Role      string `json:"role,omitempty"`
	CreatedAt string `json:"createdAt,omitempty"`
}

type Chat struct {
	base
}

func NewChat(req transport.Requester, logger *zap.Logger) *Chat {
	return &Chat{base: newBase(req, logger, "chat")}
}

// Start открывает сессию. topic может быть пустым.
func (s *Chat) Start(ctx context.Context, topic string) (*ChatSession, error) {
	body := map[string]string{}
	if topic != "" {
		body["topic"] = topic
	}
	var out ChatSession
	if err := s.post(ctx, "/chat/start", body, &out); err != nil {
		return nil, fmt.Errorf("start chat: %w", err)
	}
	return &out, nil
}

func (s *Chat) Send(ctx context.Context, msg ChatMessage) (*ChatReply, error) {
	if msg.Type == "" {
		msg.Type = "text"
	}
	if err := validation.Struct(msg); err != nil {
		return nil, fmt.Errorf("send chat message: %w", err)
	}
	var out ChatReply
	if err := s.post(ctx, "/chat/send", msg, &out); err != nil {
		return nil, fmt.Errorf("send chat message: %w", err)
	}
	return &out, nil
}

func (s *Chat) History(ctx context.Context, conversationID ID) []ChatReply {
	items, err := fetchList[ChatReply](ctx, s.base, "/chat/history/"+esc(conversationID), nil, "messages", "history")
	if err != nil {
		s.swallow("history", err)
		return []ChatReply{}
	}
	return items
}
