package replies

import (
	"context"

	"github.com/customeros/replydesk/interfaces"
	"github.com/customeros/replydesk/internal/logger"
	"github.com/customeros/replydesk/internal/models"
	"github.com/customeros/replydesk/services/threadcache"
)

// ThreadCache is the part of the coordinator the reply endpoints drive.
type ThreadCache interface {
	Snapshot() models.Snapshot
	IsRefreshing() bool
	Refresh(ctx context.Context) (bool, error)
	Send(ctx context.Context, req threadcache.SendRequest) (*models.Thread, error)
}

type RepliesHandler struct {
	cache    ThreadCache
	composer interfaces.ReplyComposer
	log      logger.Logger
}

func NewRepliesHandler(cache ThreadCache, composer interfaces.ReplyComposer, log logger.Logger) *RepliesHandler {
	return &RepliesHandler{
		cache:    cache,
		composer: composer,
		log:      log,
	}
}
