package api

import (
	"context"
	"fmt"

	"github.com/yyupcompany/kyyupgame-sub066/internal/transport"
	"github.com/yyupcompany/kyyupgame-sub066/internal/validation"
	"go.uber.org/zap"
)

type Conversation struct {
	ID           ID     `json:"id"`
	Title        string `json:"title"`
	UserID       ID     `json:"userId,omitempty"`
	ModelID      ID     `json:"modelId,omitempty"`
	MessageCount int    `json:"messageCount,omitempty"`
	LastMessage  string `json:"lastMessage,omitempty"`
	CreatedAt    string `json:"createdAt,omitempty"`
	UpdatedAt    string `json:"updatedAt,omitempty"`
}

type Message struct {
	ID             ID             `json:"id,omitempty"`
	ConversationID ID             `json:"conversationId,omitempty"`
	Role           string         `json:"role,omitempty"`
	Content        string         `json:"content" validate:"notblank"`
	Type           string         `json:"messageType,omitempty" validate:"omitempty,oneof=text image audio file"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      string         `json:"createdAt,omitempty"`
}

type ConversationInput struct {
	Title   string `json:"title,omitempty"`
	ModelID ID     `json:"modelId,omitempty"`
}

type Conversations struct {
	base
}

func NewConversations(req transport.Requester, logger *zap.Logger) *Conversations {
	return &Conversations{base: newBase(req, logger, "conversations")}
}

const conversationsPath = "/ai/conversations"

func (s *Conversations) List(ctx context.Context, q PageQuery) ([]Conversation, error) {
	items, err := fetchList[Conversation](ctx, s.base, conversationsPath, q.values(), "conversations")
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return items, nil
}

func (s *Conversations) Create(ctx context.Context, in ConversationInput) (*Conversation, error) {
	var out Conversation
	if err := s.post(ctx, conversationsPath, in, &out); err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	return &out, nil
}

func (s *Conversations) Get(ctx context.Context, id ID) (*Conversation, error) {
	var out Conversation
	if err := s.get(ctx, conversationsPath+"/"+esc(id), nil, &out); err != nil {
		return nil, fmt.Errorf("get conversation %s: %w", id, err)
	}
	return &out, nil
}

func (s *Conversations) Messages(ctx context.Context, id ID, q PageQuery) ([]Message, error) {
	items, err := fetchList[Message](ctx, s.base, conversationsPath+"/"+esc(id)+"/messages", q.values(), "messages")
	if err != nil {
		return nil, fmt.Errorf("conversation %s messages: %w", id, err)
	}
	return items, nil
}

func (s *Conversations) SendMessage(ctx context.Context, id ID, msg Message) (*Message, error) {
	if err := validation.Struct(msg); err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}
	var out Message
	if err := s.post(ctx, conversationsPath+"/"+esc(id)+"/messages", msg, &out); err != nil {
		return nil, fmt.Errorf("send message to %s: %w", id, err)
	}
	return &out, nil
}

func (s *Conversations) Delete(ctx context.Context, id ID) error {
	if err := s.del(ctx, conversationsPath+"/"+esc(id)); err != nil {
		return fmt.Errorf("delete conversation %s: %w", id, err)
	}
	return nil
}

func (s *Conversations) UpdateTitle(ctx context.Context, id ID, title string) error {
	if err := s.put(ctx, conversationsPath+"/"+esc(id), map[string]string{"title": title}, nil); err != nil {
		return fmt.Errorf("rename conversation %s: %w", id, err)
	}
	return nil
}
