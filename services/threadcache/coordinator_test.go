package threadcache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	replyerrors "github.com/customeros/replydesk/errors"
	"github.com/customeros/replydesk/interfaces"
	"github.com/customeros/replydesk/internal/enum"
	"github.com/customeros/replydesk/internal/logger"
	"github.com/customeros/replydesk/internal/models"
)

const self = "desk@taxoffice.kr"

type fakeMail struct {
	mu        sync.Mutex
	listings  map[string][]string
	listErr   error
	threads   map[string]*interfaces.ProviderThread
	metadata  map[string]*interfaces.MessageMetadata
	sendErr   error
	labelErr  error
	profiles  int
	metaCalls int
	sent      [][]byte
	unread    []string
}

func (f *fakeMail) Profile(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profiles++
	return "Tax Desk <" + self + ">", nil
}

func (f *fakeMail) ListThreads(_ context.Context, query interfaces.ThreadQuery) ([]string, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.listings[query.Query], nil
}

func (f *fakeMail) GetThread(_ context.Context, threadID string) (*interfaces.ProviderThread, error) {
	return f.threads[threadID], nil
}

func (f *fakeMail) GetMessageMetadata(_ context.Context, messageID string) (*interfaces.MessageMetadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.metaCalls++
	if m, ok := f.metadata[messageID]; ok {
		return m, nil
	}
	return &interfaces.MessageMetadata{ID: messageID, From: "cust@x.com", MessageID: "<" + messageID + "@x.com>"}, nil
}

func (f *fakeMail) SendMessage(_ context.Context, raw []byte, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return "", f.sendErr
	}
	f.sent = append(f.sent, raw)
	return "sent-1", nil
}

func (f *fakeMail) ModifyThreadLabels(_ context.Context, threadID string, _, remove []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.labelErr != nil {
		return f.labelErr
	}
	if len(remove) > 0 && remove[0] == labelUnread {
		f.unread = append(f.unread, threadID)
	}
	return nil
}

func (f *fakeMail) providerCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.metaCalls + len(f.sent)
}

type fakeClassifier struct {
	mu      sync.Mutex
	threads map[string]*models.Thread
	errs    map[string]error
	calls   map[string]int
	// blockOn, when set, holds Classify for the listed thread until released
	blockOn string
	entered chan struct{}
	release chan struct{}
}

func newFakeClassifier(threads ...*models.Thread) *fakeClassifier {
	f := &fakeClassifier{threads: map[string]*models.Thread{}, errs: map[string]error{}, calls: map[string]int{}}
	for _, t := range threads {
		f.threads[t.ThreadID] = t
	}
	return f
}

func (f *fakeClassifier) Classify(_ context.Context, threadID, selfAddress string) (*models.Thread, error) {
	f.mu.Lock()
	f.calls[threadID]++
	thread, err := f.threads[threadID], f.errs[threadID]
	block := f.blockOn == threadID
	f.mu.Unlock()

	if block {
		f.entered <- struct{}{}
		<-f.release
	}
	if err != nil || thread == nil {
		return nil, err
	}
	clone := thread.Clone()
	return &clone, nil
}

func (f *fakeClassifier) callsFor(threadID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[threadID]
}

type fakeComposer struct {
	err    error
	drafts []interfaces.ReplyDraft
}

func (f *fakeComposer) Compose(_ context.Context, draft interfaces.ReplyDraft) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.drafts = append(f.drafts, draft)
	return []byte("raw:" + draft.Body), nil
}

func (f *fakeComposer) Signature() string { return "" }

func unrepliedThread(id string, candidates ...models.ResponseCandidate) *models.Thread {
	return &models.Thread{
		ThreadID: id,
		From:     "cust@x.com",
		Subject:  "question " + id,
		Messages: []models.Message{{
			ID:   id + "-m1",
			From: "cust@x.com",
			Body: "When is my refund?",
			Date: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC),
		}},
		Candidates: candidates,
	}
}

func repliedThread(id string) *models.Thread {
	thread := unrepliedThread(id)
	thread.Messages = append(thread.Messages, models.Message{ID: id + "-m2", From: self, IsFromSelf: true, Body: "answer"})
	thread.Replied = true
	return thread
}

var direct = models.ResponseCandidate{Category: enum.CandidateDirectAnswer, Subject: "Re: q", Body: "answer"}

func newTestCoordinator(mail *fakeMail, classifier *fakeClassifier, composer *fakeComposer) *Coordinator {
	return NewCoordinator(Dependencies{Mail: mail, Classifier: classifier, Composer: composer}, Config{
		Queries:            []string{"is:unread", "is:read in:inbox -in:sent"},
		LabelIDs:           []string{"INBOX"},
		MaxResultsPerQuery: 15,
		Concurrency:        2,
	}, logger.NewNopLogger())
}

func threadIDs(threads []models.Thread) []string {
	ids := make([]string, 0, len(threads))
	for _, t := range threads {
		ids = append(ids, t.ThreadID)
	}
	return ids
}

func TestRefresh_PartitionsAndDeduplicates(t *testing.T) {
	mail := &fakeMail{listings: map[string][]string{
		"is:unread":                 {"t1", "t2"},
		"is:read in:inbox -in:sent": {"t2", "t3", "t4"},
	}}
	classifier := newFakeClassifier(unrepliedThread("t1", direct), repliedThread("t2"), unrepliedThread("t3", direct))
	c := newTestCoordinator(mail, classifier, &fakeComposer{})

	ran, err := c.Refresh(context.Background())

	require.NoError(t, err)
	assert.True(t, ran)
	snapshot := c.Snapshot()
	assert.Equal(t, []string{"t1", "t3"}, threadIDs(snapshot.Unreplied))
	assert.Equal(t, []string{"t2"}, threadIDs(snapshot.Replied))
	assert.Equal(t, 1, classifier.callsFor("t2"))
	assert.Equal(t, 1, classifier.callsFor("t4"))
	assert.Equal(t, 1, mail.profiles)

	status := c.Status()
	assert.False(t, status.Refreshing)
	assert.Equal(t, 1, status.RefreshCount)
	assert.Equal(t, 2, status.Unreplied)
	assert.Empty(t, status.LastRefreshError)
}

func TestRefresh_ReusesThreadsWithUsableCandidates(t *testing.T) {
	failed := models.ResponseCandidate{Category: enum.CandidateDirectAnswer, Subject: "Error", Body: "failed", Failed: true}
	mail := &fakeMail{listings: map[string][]string{"is:unread": {"t1", "t2", "t3"}}}
	classifier := newFakeClassifier(unrepliedThread("t1", direct), unrepliedThread("t2", failed), unrepliedThread("t3"))
	c := newTestCoordinator(mail, classifier, &fakeComposer{})

	for i := 0; i < 3; i++ {
		_, err := c.Refresh(context.Background())
		require.NoError(t, err)
	}

	assert.Equal(t, 1, classifier.callsFor("t1"))
	assert.Equal(t, 3, classifier.callsFor("t2"))
	assert.Equal(t, 3, classifier.callsFor("t3"))
	assert.Equal(t, []string{"t1", "t2", "t3"}, threadIDs(c.Snapshot().Unreplied))
	assert.Equal(t, 1, mail.profiles)
}

func TestRefresh_ThreadsNoLongerListedAreDropped(t *testing.T) {
	mail := &fakeMail{listings: map[string][]string{"is:unread": {"t1", "t2"}}}
	c := newTestCoordinator(mail, newFakeClassifier(unrepliedThread("t1", direct), unrepliedThread("t2", direct)), &fakeComposer{})
	_, err := c.Refresh(context.Background())
	require.NoError(t, err)

	mail.listings["is:unread"] = []string{"t2"}
	_, err = c.Refresh(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"t2"}, threadIDs(c.Snapshot().Unreplied))
}

func TestRefresh_ConcurrentCallIsDropped(t *testing.T) {
	mail := &fakeMail{listings: map[string][]string{"is:unread": {"t1"}}}
	classifier := newFakeClassifier(unrepliedThread("t1", direct))
	classifier.blockOn = "t1"
	classifier.entered = make(chan struct{})
	classifier.release = make(chan struct{})
	c := newTestCoordinator(mail, classifier, &fakeComposer{})

	done := make(chan bool)
	go func() {
		ran, _ := c.Refresh(context.Background())
		done <- ran
	}()
	<-classifier.entered

	assert.True(t, c.IsRefreshing())
	assert.True(t, c.Status().Refreshing)
	ran, err := c.Refresh(context.Background())
	assert.NoError(t, err)
	assert.False(t, ran)

	close(classifier.release)
	assert.True(t, <-done)
	assert.Equal(t, 1, classifier.callsFor("t1"))
	assert.False(t, c.IsRefreshing())
}

func TestRefresh_ListFailureKeepsCache(t *testing.T) {
	mail := &fakeMail{listings: map[string][]string{"is:unread": {"t1"}}}
	c := newTestCoordinator(mail, newFakeClassifier(unrepliedThread("t1", direct)), &fakeComposer{})
	_, err := c.Refresh(context.Background())
	require.NoError(t, err)

	mail.listErr = errors.New("quota exceeded")
	ran, err := c.Refresh(context.Background())

	assert.True(t, ran)
	assert.ErrorContains(t, err, "quota exceeded")
	assert.Equal(t, []string{"t1"}, threadIDs(c.Snapshot().Unreplied))
	assert.Contains(t, c.Status().LastRefreshError, "quota exceeded")
}

func TestRefresh_FailingThreadIsSkipped(t *testing.T) {
	mail := &fakeMail{listings: map[string][]string{"is:unread": {"t1", "t2"}}}
	classifier := newFakeClassifier(unrepliedThread("t2", direct))
	classifier.errs["t1"] = errors.New("thread fetch timeout")
	c := newTestCoordinator(mail, classifier, &fakeComposer{})

	_, err := c.Refresh(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []string{"t2"}, threadIDs(c.Snapshot().Unreplied))
}

func TestRefresh_KnownRepliedThreadIsNotDuplicated(t *testing.T) {
	mail := &fakeMail{listings: map[string][]string{"is:unread": {"t1"}}}
	c := newTestCoordinator(mail, newFakeClassifier(repliedThread("t1")), &fakeComposer{})

	for i := 0; i < 2; i++ {
		_, err := c.Refresh(context.Background())
		require.NoError(t, err)
	}

	assert.Equal(t, []string{"t1"}, threadIDs(c.Snapshot().Replied))
}

func TestSend_ValidationHappensBeforeProviderCalls(t *testing.T) {
	mail := &fakeMail{listings: map[string][]string{"is:unread": {"t1"}}}
	composer := &fakeComposer{}
	c := newTestCoordinator(mail, newFakeClassifier(unrepliedThread("t1", direct)), composer)
	_, err := c.Refresh(context.Background())
	require.NoError(t, err)

	_, err = c.Send(context.Background(), SendRequest{ThreadID: "t1", Subject: "  ", Body: "text"})
	assert.True(t, errors.Is(err, replyerrors.ErrEmptySubject))

	_, err = c.Send(context.Background(), SendRequest{ThreadID: "t1", Subject: "Re: q", Body: "\n"})
	assert.True(t, errors.Is(err, replyerrors.ErrEmptyBody))

	assert.Zero(t, mail.providerCalls())
	assert.Empty(t, composer.drafts)
	assert.Len(t, c.Snapshot().Unreplied, 1)
}

func TestSend_MovesThreadToHeadOfReplied(t *testing.T) {
	mail := &fakeMail{
		listings: map[string][]string{"is:unread": {"t1", "t2"}, "is:read in:inbox -in:sent": {"t0"}},
		metadata: map[string]*interfaces.MessageMetadata{
			"t1-m1": {ID: "t1-m1", From: "cust@x.com", ReplyTo: "Kim <kim@x.com>", MessageID: "<abc@x.com>", References: "<root@x.com>"},
		},
	}
	composer := &fakeComposer{}
	c := NewCoordinator(Dependencies{Mail: mail, Classifier: newFakeClassifier(unrepliedThread("t1", direct), unrepliedThread("t2", direct), repliedThread("t0")), Composer: composer},
		Config{Queries: []string{"is:unread", "is:read in:inbox -in:sent"}, SenderName: "Tax Desk"}, logger.NewNopLogger())
	_, err := c.Refresh(context.Background())
	require.NoError(t, err)

	updated, err := c.Send(context.Background(), SendRequest{ThreadID: "t1", Subject: "Re: q", Body: "edited answer", Category: enum.CandidateDirectAnswer})

	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.True(t, updated.Replied)
	assert.True(t, updated.LastMessage().IsFromSelf)
	assert.Equal(t, "sent-1", updated.LastMessage().ID)

	snapshot := c.Snapshot()
	assert.Equal(t, []string{"t2"}, threadIDs(snapshot.Unreplied))
	assert.Equal(t, []string{"t1", "t0"}, threadIDs(snapshot.Replied))
	assert.Equal(t, "edited answer", snapshot.Replied[0].LastMessage().Body)
	assert.True(t, snapshot.Replied[0].LastMessage().IsFromSelf)

	require.Len(t, composer.drafts, 1)
	draft := composer.drafts[0]
	assert.Equal(t, "Kim <kim@x.com>", draft.To)
	assert.Equal(t, `"Tax Desk" <desk@taxoffice.kr>`, draft.From)
	assert.Equal(t, "<abc@x.com>", draft.InReplyTo)
	assert.Equal(t, "<root@x.com> <abc@x.com>", draft.References)
	assert.Equal(t, []string{"t1"}, mail.unread)
}

func TestSend_ProviderFailureLeavesCacheUnchanged(t *testing.T) {
	mail := &fakeMail{listings: map[string][]string{"is:unread": {"t1"}}, sendErr: errors.New("550 rejected")}
	c := newTestCoordinator(mail, newFakeClassifier(unrepliedThread("t1", direct)), &fakeComposer{})
	_, err := c.Refresh(context.Background())
	require.NoError(t, err)
	before := c.Snapshot()

	_, err = c.Send(context.Background(), SendRequest{ThreadID: "t1", Subject: "Re: q", Body: "a"})

	assert.ErrorContains(t, err, "550 rejected")
	assert.Equal(t, before, c.Snapshot())
	assert.Empty(t, mail.unread)
}

func TestSend_ComposeFailureLeavesCacheUnchanged(t *testing.T) {
	mail := &fakeMail{listings: map[string][]string{"is:unread": {"t1"}}}
	c := newTestCoordinator(mail, newFakeClassifier(unrepliedThread("t1", direct)), &fakeComposer{err: replyerrors.ErrAttachmentNotFound})
	_, err := c.Refresh(context.Background())
	require.NoError(t, err)

	_, err = c.Send(context.Background(), SendRequest{ThreadID: "t1", Subject: "Re: q", Body: "a", Attachments: []string{"x.pdf"}})

	assert.True(t, errors.Is(err, replyerrors.ErrAttachmentNotFound))
	assert.Len(t, c.Snapshot().Unreplied, 1)
	assert.Empty(t, mail.sent)
}

func TestSend_UnknownThread(t *testing.T) {
	c := newTestCoordinator(&fakeMail{}, newFakeClassifier(), &fakeComposer{})

	_, err := c.Send(context.Background(), SendRequest{ThreadID: "nope", Subject: "Re: q", Body: "a"})

	assert.True(t, errors.Is(err, replyerrors.ErrThreadNotFound))
}

func TestSend_LabelFailureStillMigrates(t *testing.T) {
	mail := &fakeMail{listings: map[string][]string{"is:unread": {"t1"}}, labelErr: errors.New("label api down")}
	c := newTestCoordinator(mail, newFakeClassifier(unrepliedThread("t1", direct)), &fakeComposer{})
	_, err := c.Refresh(context.Background())
	require.NoError(t, err)

	_, err = c.Send(context.Background(), SendRequest{ThreadID: "t1", Subject: "Re: q", Body: "a"})

	require.NoError(t, err)
	assert.Empty(t, c.Snapshot().Unreplied)
	assert.Len(t, c.Snapshot().Replied, 1)
}

func TestSend_DuringRefreshIsNotOverwritten(t *testing.T) {
	failed := models.ResponseCandidate{Category: enum.CandidateDirectAnswer, Subject: "Error", Body: "failed", Failed: true}
	mail := &fakeMail{listings: map[string][]string{"is:unread": {"t1", "t2"}}}
	classifier := newFakeClassifier(unrepliedThread("t1", direct), unrepliedThread("t2", failed))
	c := newTestCoordinator(mail, classifier, &fakeComposer{})
	_, err := c.Refresh(context.Background())
	require.NoError(t, err)

	// t1 is reused from cache while t2 is re-classified and held
	classifier.mu.Lock()
	classifier.blockOn = "t2"
	classifier.entered = make(chan struct{})
	classifier.release = make(chan struct{})
	classifier.mu.Unlock()

	done := make(chan error)
	go func() {
		_, err := c.Refresh(context.Background())
		done <- err
	}()
	<-classifier.entered

	_, err = c.Send(context.Background(), SendRequest{ThreadID: "t1", Subject: "Re: q", Body: "a"})
	require.NoError(t, err)

	close(classifier.release)
	require.NoError(t, <-done)

	snapshot := c.Snapshot()
	assert.Equal(t, []string{"t2"}, threadIDs(snapshot.Unreplied))
	assert.Equal(t, []string{"t1"}, threadIDs(snapshot.Replied))
}

func TestRecordSend(t *testing.T) {
	mail := &fakeMail{listings: map[string][]string{"is:unread": {"t1"}}}
	c := newTestCoordinator(mail, newFakeClassifier(unrepliedThread("t1", direct)), &fakeComposer{})
	_, err := c.Refresh(context.Background())
	require.NoError(t, err)

	updated, err := c.RecordSend("t1", models.Message{ID: "x", From: self, Body: "manual"})
	require.NoError(t, err)
	assert.True(t, updated.Replied)
	assert.True(t, updated.LastMessage().IsFromSelf)
	assert.Len(t, updated.Messages, 2)

	_, err = c.RecordSend("t1", models.Message{ID: "y"})
	assert.True(t, errors.Is(err, replyerrors.ErrThreadNotFound))
}

func TestSnapshot_ReturnsCopies(t *testing.T) {
	mail := &fakeMail{listings: map[string][]string{"is:unread": {"t1"}}}
	c := newTestCoordinator(mail, newFakeClassifier(unrepliedThread("t1", direct)), &fakeComposer{})
	_, err := c.Refresh(context.Background())
	require.NoError(t, err)

	snapshot := c.Snapshot()
	snapshot.Unreplied[0].Candidates[0].Body = "mutated"
	snapshot.Unreplied[0].Messages[0].Body = "mutated"

	fresh := c.Snapshot()
	assert.Equal(t, "answer", fresh.Unreplied[0].Candidates[0].Body)
	assert.Equal(t, "When is my refund?", fresh.Unreplied[0].Messages[0].Body)
}
