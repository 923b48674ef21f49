package service

import (
	"context"
	"errors"
	"strings"

	"github.com/krismos64/Staka-livres-sub003/internal/datamodels/conversation"
)

// ErrEmptyMessage a posted message had no content.
var ErrEmptyMessage = errors.New("message content is empty")

// ConversationService the customer/staff message thread.
type ConversationService struct {
	messages conversation.Repository
}

func NewConversationService(messages conversation.Repository) *ConversationService {
	return &ConversationService{messages: messages}
}

// List returns a user's thread after the given message id.
func (s *ConversationService) List(ctx context.Context, userID, afterID int64, limit int) ([]*conversation.Message, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.messages.ListByUser(ctx, userID, afterID, limit)
}

// Post appends a message to a user's thread.
func (s *ConversationService) Post(ctx context.Context, userID int64, author, content string) (*conversation.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyMessage
	}
	if author != conversation.AuthorClient && author != conversation.AuthorStaff {
		author = conversation.AuthorClient
	}
	m := &conversation.Message{
		UserID:  userID,
		Author:  author,
		Content: content,
	}
	if err := s.messages.Create(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}
