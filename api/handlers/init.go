package handlers

import (
	"github.com/customeros/replydesk/api/handlers/replies"
	"github.com/customeros/replydesk/interfaces"
	"github.com/customeros/replydesk/internal/logger"
)

type APIHandlers struct {
	Replies *replies.RepliesHandler
}

func InitHandlers(cache replies.ThreadCache, composer interfaces.ReplyComposer, log logger.Logger) *APIHandlers {
	return &APIHandlers{
		Replies: replies.NewRepliesHandler(cache, composer, log),
	}
}
