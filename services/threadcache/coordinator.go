package threadcache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/opentracing/opentracing-go"
	tracingLog "github.com/opentracing/opentracing-go/log"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/customeros/replydesk/interfaces"
	"github.com/customeros/replydesk/internal/logger"
	"github.com/customeros/replydesk/internal/models"
	"github.com/customeros/replydesk/internal/tracing"
	"github.com/customeros/replydesk/internal/utils"
)

const (
	defaultQuery       = "is:unread"
	defaultConcurrency = 5
	labelUnread        = "UNREAD"
)

type Dependencies struct {
	Mail       interfaces.MailProvider
	Classifier interfaces.ThreadClassifier
	Composer   interfaces.ReplyComposer
}

type Config struct {
	Queries            []string
	LabelIDs           []string
	MaxResultsPerQuery int64
	Concurrency        int
	// SelfAddress skips the provider profile lookup when set
	SelfAddress string
	SenderName  string
}

type Status struct {
	Refreshing       bool      `json:"refreshing"`
	LastRefreshAt    time.Time `json:"lastRefreshAt,omitempty"`
	LastRefreshError string    `json:"lastRefreshError,omitempty"`
	RefreshCount     int       `json:"refreshCount"`
	Unreplied        int       `json:"unreplied"`
	Replied          int       `json:"replied"`
}

// Coordinator owns the unreplied and replied thread collections. Refresh and
// Send are its only writers.
type Coordinator struct {
	mail       interfaces.MailProvider
	classifier interfaces.ThreadClassifier
	composer   interfaces.ReplyComposer
	cfg        Config
	log        logger.Logger

	refreshing atomic.Bool

	mu        sync.Mutex
	unreplied []models.Thread
	replied   []models.Thread
	self      string
	lastRun   time.Time
	lastErr   error
	runs      int
}

func NewCoordinator(deps Dependencies, cfg Config, log logger.Logger) *Coordinator {
	if len(cfg.Queries) == 0 {
		cfg.Queries = []string{defaultQuery}
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	return &Coordinator{
		mail:       deps.Mail,
		classifier: deps.Classifier,
		composer:   deps.Composer,
		cfg:        cfg,
		log:        log,
		self:       utils.ExtractEmailAddress(cfg.SelfAddress),
		unreplied:  []models.Thread{},
		replied:    []models.Thread{},
	}
}

// Refresh rebuilds the unreplied collection from the provider. It returns false
// without doing anything when another refresh is already running.
func (c *Coordinator) Refresh(ctx context.Context) (bool, error) {
	if !c.refreshing.CompareAndSwap(false, true) {
		c.log.Debug("Refresh already in progress, skipping")
		return false, nil
	}
	defer c.refreshing.Store(false)

	span, ctx := opentracing.StartSpanFromContext(ctx, "Coordinator.Refresh")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	startedAt := time.Now()
	err := c.refresh(ctx)

	c.mu.Lock()
	c.lastRun = startedAt.UTC()
	c.lastErr = err
	c.runs++
	c.mu.Unlock()

	if err != nil {
		tracing.TraceErr(span, err)
		c.log.Errorf("Thread refresh failed: %v", err)
		return true, err
	}
	tracing.LogObjectAsJson(span, "status", c.Status())
	c.log.Infof("Thread refresh finished in %s", time.Since(startedAt))
	return true, nil
}

func (c *Coordinator) refresh(ctx context.Context) error {
	span := opentracing.SpanFromContext(ctx)

	self, err := c.selfAddress(ctx)
	if err != nil {
		return err
	}

	threadIDs, err := c.listThreadIDs(ctx)
	if err != nil {
		return err
	}
	span.LogFields(tracingLog.Int("threads.listed", len(threadIDs)))

	cached := c.cachedUnreplied()
	results := make([]*models.Thread, len(threadIDs))
	toClassify := make([]int, 0, len(threadIDs))
	for i, id := range threadIDs {
		if thread, ok := cached[id]; ok && thread.HasUsableCandidates() {
			reused := thread.Clone()
			results[i] = &reused
			continue
		}
		toClassify = append(toClassify, i)
	}
	span.LogFields(tracingLog.Int("threads.reused", len(threadIDs)-len(toClassify)))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Concurrency)
	for _, i := range toClassify {
		g.Go(func() error {
			thread, err := c.classifier.Classify(gctx, threadIDs[i], self)
			if err != nil {
				// one bad thread must not fail the batch
				c.log.Warnf("Skipping thread %s: %v", threadIDs[i], err)
				return nil
			}
			results[i] = thread
			return nil
		})
	}
	_ = g.Wait()

	unreplied := make([]models.Thread, 0, len(results))
	replied := make([]models.Thread, 0)
	for _, thread := range results {
		if thread == nil {
			continue
		}
		if thread.Replied {
			replied = append(replied, *thread)
		} else {
			unreplied = append(unreplied, *thread)
		}
	}

	c.apply(unreplied, replied)
	span.LogFields(tracingLog.Int("threads.unreplied", len(unreplied)), tracingLog.Int("threads.replied", len(replied)))
	return nil
}

// apply replaces the unreplied collection. Threads already in replied, including
// ones a send migrated while this refresh was running, never return to unreplied.
func (c *Coordinator) apply(unreplied, replied []models.Thread) {
	c.mu.Lock()
	defer c.mu.Unlock()

	known := make(map[string]struct{}, len(c.replied))
	for _, t := range c.replied {
		known[t.ThreadID] = struct{}{}
	}

	next := make([]models.Thread, 0, len(unreplied))
	for _, t := range unreplied {
		if _, ok := known[t.ThreadID]; ok {
			continue
		}
		next = append(next, t)
	}
	c.unreplied = next

	for _, t := range replied {
		if _, ok := known[t.ThreadID]; ok {
			continue
		}
		known[t.ThreadID] = struct{}{}
		c.replied = append(c.replied, t)
	}
}

func (c *Coordinator) listThreadIDs(ctx context.Context) ([]string, error) {
	ids := make([]string, 0)
	for _, query := range c.cfg.Queries {
		found, err := c.mail.ListThreads(ctx, interfaces.ThreadQuery{
			Query:      query,
			LabelIDs:   c.cfg.LabelIDs,
			MaxResults: c.cfg.MaxResultsPerQuery,
		})
		if err != nil {
			return nil, errors.Wrapf(err, "failed to list threads for query %q", query)
		}
		ids = append(ids, found...)
	}
	return utils.UniqueStrings(ids), nil
}

func (c *Coordinator) cachedUnreplied() map[string]models.Thread {
	c.mu.Lock()
	defer c.mu.Unlock()

	cached := make(map[string]models.Thread, len(c.unreplied))
	for _, t := range c.unreplied {
		cached[t.ThreadID] = t
	}
	return cached
}

func (c *Coordinator) selfAddress(ctx context.Context) (string, error) {
	c.mu.Lock()
	self := c.self
	c.mu.Unlock()
	if self != "" {
		return self, nil
	}

	profile, err := c.mail.Profile(ctx)
	if err != nil {
		return "", errors.Wrap(err, "failed to resolve mailbox address")
	}
	self = utils.ExtractEmailAddress(profile)

	c.mu.Lock()
	c.self = self
	c.mu.Unlock()
	return self, nil
}

// Snapshot returns copies of both collections.
func (c *Coordinator) Snapshot() models.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snapshot := models.Snapshot{
		Unreplied: make([]models.Thread, 0, len(c.unreplied)),
		Replied:   make([]models.Thread, 0, len(c.replied)),
	}
	for _, t := range c.unreplied {
		snapshot.Unreplied = append(snapshot.Unreplied, t.Clone())
	}
	for _, t := range c.replied {
		snapshot.Replied = append(snapshot.Replied, t.Clone())
	}
	return snapshot
}

func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	status := Status{
		Refreshing:    c.refreshing.Load(),
		LastRefreshAt: c.lastRun,
		RefreshCount:  c.runs,
		Unreplied:     len(c.unreplied),
		Replied:       len(c.replied),
	}
	if c.lastErr != nil {
		status.LastRefreshError = c.lastErr.Error()
	}
	return status
}

func (c *Coordinator) IsRefreshing() bool {
	return c.refreshing.Load()
}
