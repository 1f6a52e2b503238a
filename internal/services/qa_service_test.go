package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/docchat/internal/core"
	"github.com/markdave123-py/docchat/internal/core/audit"
	"github.com/markdave123-py/docchat/internal/core/session"
	"github.com/markdave123-py/docchat/internal/models"
)

type fakeExtractor struct {
	doc *models.ExtractedDocument
	err error
}

func (f *fakeExtractor) Extract(_ context.Context, _ []byte, _ string) (*models.ExtractedDocument, error) {
	return f.doc, f.err
}

// stubConversation replies with its exchange count and fails while failNext is set.
type stubConversation struct {
	turns    int
	prompts  []string
	failNext bool
	delay    time.Duration
	inFlight atomic.Int32
	overlap  atomic.Bool
}

func (c *stubConversation) Send(_ context.Context, prompt string) (string, error) {
	if c.inFlight.Add(1) > 1 {
		c.overlap.Store(true)
	}
	defer c.inFlight.Add(-1)
	if c.delay > 0 {
		time.Sleep(c.delay)
	}

	if c.failNext {
		c.failNext = false
		return "", core.NewBackendError(errors.New("429 rate limit exceeded"))
	}
	c.prompts = append(c.prompts, prompt)
	c.turns += 2
	return fmt.Sprintf("reply #%d", c.turns/2), nil
}

func (c *stubConversation) Turns() int { return c.turns }

type stubBackend struct {
	mu    sync.Mutex
	convs []*stubConversation
	delay time.Duration
	err   error
}

func (b *stubBackend) StartConversation(context.Context) (core.Conversation, error) {
	if b.err != nil {
		return nil, b.err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	c := &stubConversation{delay: b.delay}
	b.convs = append(b.convs, c)
	return c, nil
}

func (b *stubBackend) last() *stubConversation {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.convs[len(b.convs)-1]
}

type recordingAudit struct {
	mu      sync.Mutex
	records []models.QueryRecord
}

func (a *recordingAudit) Record(rec models.QueryRecord) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records = append(a.records, rec)
}

func (a *recordingAudit) all() []models.QueryRecord {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]models.QueryRecord(nil), a.records...)
}

type fakeArchive struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (f *fakeArchive) Archive(_ context.Context, sessionID, fileName, _ string, _ []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, sessionID+"/"+fileName)
	return "s3://" + sessionID, f.err
}

func twoPageDoc() *models.ExtractedDocument {
	return &models.ExtractedDocument{
		Pages:      []models.Page{{Number: 1, Text: "Alpha"}, {Number: 2, Text: "Beta"}},
		TotalPages: 2,
	}
}

type fixture struct {
	svc     *QAService
	store   *session.Store
	backend *stubBackend
	audit   *recordingAudit
}

func newFixture(t *testing.T, ext core.DocumentExtractor, archive core.DocumentArchive) *fixture {
	t.Helper()
	f := &fixture{
		store:   session.NewStore(session.Config{}, nil),
		backend: &stubBackend{},
		audit:   &recordingAudit{},
	}
	f.svc = NewQAService(ext, f.backend, f.store, f.audit, archive, nil)
	f.svc.now = func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.FixedZone("X", 3600)) }
	return f
}

func (f *fixture) upload(t *testing.T) string {
	t.Helper()
	res, err := f.svc.HandleUpload(context.Background(), models.Upload{Data: []byte("%PDF-1.7"), FileName: "report.pdf"})
	require.NoError(t, err)
	require.NotEmpty(t, res.SessionID)
	return res.SessionID
}

func TestUploadCreatesSessionWithPageMarkedText(t *testing.T) {
	f := newFixture(t, &fakeExtractor{doc: twoPageDoc()}, nil)

	res, err := f.svc.HandleUpload(context.Background(), models.Upload{Data: []byte("x"), FileName: "report.pdf"})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Pages)

	sess, ok := f.store.Get(res.SessionID)
	require.True(t, ok)
	assert.Equal(t, "\n\n[Page 1]\nAlpha\n\n[Page 2]\nBeta", sess.Text)
	assert.Equal(t, "report.pdf", sess.DocumentName)
	assert.Equal(t, 1, f.svc.SessionCount())
}

func TestUploadExtractionErrorCreatesNoSession(t *testing.T) {
	extErr := &core.ExtractionError{Err: errors.New("malformed PDF")}
	f := newFixture(t, &fakeExtractor{err: extErr}, nil)

	_, err := f.svc.HandleUpload(context.Background(), models.Upload{Data: []byte("junk")})
	require.Error(t, err)
	assert.Equal(t, "malformed PDF", err.Error())
	assert.ErrorIs(t, err, core.ErrExtraction)
	assert.Equal(t, 0, f.store.Len())
	assert.Empty(t, f.backend.convs)
}

func TestUploadBackendStartFailure(t *testing.T) {
	f := newFixture(t, &fakeExtractor{doc: twoPageDoc()}, nil)
	f.backend.err = errors.New("no model")

	_, err := f.svc.HandleUpload(context.Background(), models.Upload{Data: []byte("x")})
	require.Error(t, err)
	assert.Equal(t, 0, f.store.Len())
}

func TestQueryUnknownSession(t *testing.T) {
	f := newFixture(t, &fakeExtractor{doc: twoPageDoc()}, nil)

	res := f.svc.HandleQuery(context.Background(), models.QueryRequest{SessionID: "does-not-exist", Query: "hi"})
	assert.Equal(t, NotFoundAnswer, res.Answer)
	assert.Equal(t, models.StatusError, res.Status)
	assert.Equal(t, 0, f.store.Len())

	recs := f.audit.all()
	require.Len(t, recs, 1)
	assert.Equal(t, models.StatusError, recs[0].Status)
	assert.Equal(t, "anonymous", recs[0].UserEmail)
	assert.Equal(t, "unknown", recs[0].FileName)
}

func TestQueryBuildsGroundedPromptAndRetainsHistory(t *testing.T) {
	f := newFixture(t, &fakeExtractor{doc: twoPageDoc()}, nil)
	id := f.upload(t)

	first := f.svc.HandleQuery(context.Background(), models.QueryRequest{SessionID: id, Query: "What is on page 2?"})
	second := f.svc.HandleQuery(context.Background(), models.QueryRequest{SessionID: id, Query: "And page 1?"})

	assert.Equal(t, models.QueryResult{Answer: "reply #1", Status: models.StatusAnswered}, first)
	assert.Equal(t, "reply #2", second.Answer)

	conv := f.backend.last()
	assert.Equal(t, 4, conv.Turns())
	assert.Equal(t,
		"Use the following PDF content to answer the question.\n\nPDF:\n\n\n[Page 1]\nAlpha\n\n[Page 2]\nBeta\n\nQuestion: What is on page 2?",
		conv.prompts[0])
}

func TestQueryBackendFailureThenRecovery(t *testing.T) {
	f := newFixture(t, &fakeExtractor{doc: twoPageDoc()}, nil)
	id := f.upload(t)
	conv := f.backend.last()

	f.svc.HandleQuery(context.Background(), models.QueryRequest{SessionID: id, Query: "q1"})
	conv.failNext = true
	failed := f.svc.HandleQuery(context.Background(), models.QueryRequest{SessionID: id, Query: "q2"})
	recovered := f.svc.HandleQuery(context.Background(), models.QueryRequest{SessionID: id, Query: "q3"})

	assert.True(t, strings.HasPrefix(failed.Answer, ErrorAnswerPrefix), failed.Answer)
	assert.Contains(t, failed.Answer, "429 rate limit exceeded")
	assert.Equal(t, models.StatusError, failed.Status)

	assert.Equal(t, "reply #2", recovered.Answer)
	assert.Equal(t, 4, conv.Turns(), "failed turn leaves no history")

	recs := f.audit.all()
	require.Len(t, recs, 3)
	assert.Equal(t, []string{models.StatusAnswered, models.StatusError, models.StatusAnswered},
		[]string{recs[0].Status, recs[1].Status, recs[2].Status})
}

func TestQueryAuditRecordFields(t *testing.T) {
	f := newFixture(t, &fakeExtractor{doc: twoPageDoc()}, nil)
	id := f.upload(t)

	f.svc.HandleQuery(context.Background(), models.QueryRequest{SessionID: id, Query: "q", UserEmail: "ana@example.com"})
	f.svc.HandleQuery(context.Background(), models.QueryRequest{SessionID: id, Query: "q", FileName: "override.pdf"})

	recs := f.audit.all()
	require.Len(t, recs, 2)
	assert.Equal(t, "ana@example.com", recs[0].UserEmail)
	assert.Equal(t, "report.pdf", recs[0].FileName)
	assert.Equal(t, "reply #1", recs[0].Answer)
	assert.Equal(t, time.UTC, recs[0].Timestamp.Location())
	assert.Equal(t, "override.pdf", recs[1].FileName)
	assert.Equal(t, "anonymous", recs[1].UserEmail)
}

func TestQuerySameSessionIsSerialized(t *testing.T) {
	f := newFixture(t, &fakeExtractor{doc: twoPageDoc()}, nil)
	f.backend.delay = 20 * time.Millisecond
	id := f.upload(t)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.svc.HandleQuery(context.Background(), models.QueryRequest{SessionID: id, Query: "q"})
		}()
	}
	wg.Wait()

	conv := f.backend.last()
	assert.False(t, conv.overlap.Load())
	assert.Equal(t, 10, conv.Turns())
}

// barrierBackend blocks every Send until two are in flight at once.
type barrierBackend struct {
	active  atomic.Int32
	bothIn  chan struct{}
	closeFn sync.Once
}

type barrierConversation struct{ b *barrierBackend }

func (b *barrierBackend) StartConversation(context.Context) (core.Conversation, error) {
	return barrierConversation{b: b}, nil
}

func (c barrierConversation) Send(ctx context.Context, _ string) (string, error) {
	if c.b.active.Add(1) >= 2 {
		c.b.closeFn.Do(func() { close(c.b.bothIn) })
	}
	defer c.b.active.Add(-1)
	select {
	case <-c.b.bothIn:
		return "ok", nil
	case <-time.After(2 * time.Second):
		return "", errors.New("no parallel call observed")
	}
}

func (c barrierConversation) Turns() int { return 0 }

func TestQueryDifferentSessionsRunInParallel(t *testing.T) {
	backend := &barrierBackend{bothIn: make(chan struct{})}
	store := session.NewStore(session.Config{}, nil)
	svc := NewQAService(&fakeExtractor{doc: twoPageDoc()}, backend, store, nil, nil, nil)

	a, err := svc.HandleUpload(context.Background(), models.Upload{Data: []byte("a")})
	require.NoError(t, err)
	b, err := svc.HandleUpload(context.Background(), models.Upload{Data: []byte("b")})
	require.NoError(t, err)

	results := make([]models.QueryResult, 2)
	var wg sync.WaitGroup
	for i, id := range []string{a.SessionID, b.SessionID} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = svc.HandleQuery(context.Background(), models.QueryRequest{SessionID: id, Query: "q"})
		}()
	}
	wg.Wait()

	assert.Equal(t, "ok", results[0].Answer)
	assert.Equal(t, "ok", results[1].Answer)
}

type failingSink struct{ delay time.Duration }

func (failingSink) Name() string { return "failing" }

func (s failingSink) Deliver(ctx context.Context, _ models.QueryRecord) error {
	select {
	case <-time.After(s.delay):
	case <-ctx.Done():
	}
	return errors.New("sink unavailable")
}

func TestQueryResponseIndependentOfAuditSink(t *testing.T) {
	dispatcher := audit.NewDispatcher(audit.Config{QueueSize: 4, Timeout: time.Second}, nil, failingSink{delay: 500 * time.Millisecond})
	require.NoError(t, dispatcher.Start(context.Background()))
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = dispatcher.Close(ctx)
	}()

	store := session.NewStore(session.Config{}, nil)
	svc := NewQAService(&fakeExtractor{doc: twoPageDoc()}, &stubBackend{}, store, dispatcher, nil, nil)
	up, err := svc.HandleUpload(context.Background(), models.Upload{Data: []byte("x")})
	require.NoError(t, err)

	start := time.Now()
	res := svc.HandleQuery(context.Background(), models.QueryRequest{SessionID: up.SessionID, Query: "q"})
	assert.Less(t, time.Since(start), 200*time.Millisecond)
	assert.Equal(t, models.QueryResult{Answer: "reply #1", Status: models.StatusAnswered}, res)
}

func TestUploadArchivesInBackground(t *testing.T) {
	archive := &fakeArchive{err: errors.New("bucket missing")}
	f := newFixture(t, &fakeExtractor{doc: twoPageDoc()}, archive)

	id := f.upload(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, f.svc.Wait(ctx))

	archive.mu.Lock()
	defer archive.mu.Unlock()
	assert.Equal(t, []string{id + "/report.pdf"}, archive.calls)
	_, ok := f.store.Get(id)
	assert.True(t, ok, "archive failure does not affect the session")
}
