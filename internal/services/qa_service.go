package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/markdave123-py/docchat/internal/core"
	"github.com/markdave123-py/docchat/internal/core/session"
	"github.com/markdave123-py/docchat/internal/models"
)

const (
	NotFoundAnswer    = "❌ Session not found. Please upload the PDF again."
	ErrorAnswerPrefix = "❌ Error from Gemini: "

	anonymousUser   = "anonymous"
	unknownDocument = "unknown"
	archiveTimeout  = 2 * time.Minute
)

// QAService runs uploads and queries end to end.
type QAService struct {
	extractor core.DocumentExtractor
	backend   core.ConversationBackend
	sessions  *session.Store
	audit     core.AuditLogger
	archive   core.DocumentArchive
	logger    *zap.Logger
	now       func() time.Time

	archiving sync.WaitGroup
}

// NewQAService wires the pipeline. audit and archive may be nil.
func NewQAService(
	extractor core.DocumentExtractor,
	backend core.ConversationBackend,
	sessions *session.Store,
	audit core.AuditLogger,
	archive core.DocumentArchive,
	logger *zap.Logger,
) *QAService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QAService{
		extractor: extractor,
		backend:   backend,
		sessions:  sessions,
		audit:     audit,
		archive:   archive,
		logger:    logger,
		now:       time.Now,
	}
}

// HandleUpload extracts the document and opens a session for it. Extraction errors are
// returned unchanged and no session is created.
func (s *QAService) HandleUpload(ctx context.Context, up models.Upload) (models.UploadResult, error) {
	doc, err := s.extractor.Extract(ctx, up.Data, up.ContentType)
	if err != nil {
		s.logger.Info("extraction failed", zap.String("file", up.FileName), zap.Error(err))
		return models.UploadResult{}, err
	}

	conv, err := s.backend.StartConversation(ctx)
	if err != nil {
		return models.UploadResult{}, err
	}

	id := s.sessions.Create(doc.Text(), up.FileName, conv)
	s.logger.Info("session created",
		zap.String("session_id", id),
		zap.String("file", up.FileName),
		zap.Int("pages", len(doc.Pages)),
		zap.Int("total_pages", doc.TotalPages),
		zap.Bool("truncated", doc.Truncated()),
	)

	if s.archive != nil {
		s.archiveAsync(id, up)
	}
	return models.UploadResult{SessionID: id, Pages: len(doc.Pages)}, nil
}

func (s *QAService) archiveAsync(sessionID string, up models.Upload) {
	s.archiving.Add(1)
	go func() {
		defer s.archiving.Done()
		ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
		defer cancel()

		url, err := s.archive.Archive(ctx, sessionID, up.FileName, up.ContentType, up.Data)
		if err != nil {
			s.logger.Warn("archive upload failed", zap.String("session_id", sessionID), zap.Error(err))
			return
		}
		s.logger.Debug("document archived", zap.String("session_id", sessionID), zap.String("url", url))
	}()
}

// HandleQuery answers req against its session. Every outcome, including failures, is
// returned as an answer string; Status tells them apart.
func (s *QAService) HandleQuery(ctx context.Context, req models.QueryRequest) models.QueryResult {
	var (
		result  models.QueryResult
		docName string
	)

	sess, ok := s.sessions.Get(req.SessionID)
	if !ok {
		result = models.QueryResult{Answer: NotFoundAnswer, Status: models.StatusError}
	} else {
		docName = sess.DocumentName
		result = s.answer(ctx, sess, req.Query)
	}

	s.record(req, docName, result)
	return result
}

func (s *QAService) answer(ctx context.Context, sess *session.Session, query string) models.QueryResult {
	reply, err := sess.Converse(ctx, BuildPrompt(sess.Text, query))
	if err != nil {
		kind := core.ErrorPermanent
		var be *core.BackendError
		if errors.As(err, &be) {
			kind = be.Kind
		}
		s.logger.Warn("backend call failed",
			zap.String("session_id", sess.ID), zap.String("kind", string(kind)), zap.Error(err))
		return models.QueryResult{Answer: ErrorAnswerPrefix + err.Error(), Status: models.StatusError}
	}
	return models.QueryResult{Answer: reply, Status: models.StatusAnswered}
}

func (s *QAService) record(req models.QueryRequest, docName string, result models.QueryResult) {
	if s.audit == nil {
		return
	}
	rec := models.QueryRecord{
		Timestamp: s.now().UTC(),
		UserEmail: firstNonEmpty(req.UserEmail, anonymousUser),
		FileName:  firstNonEmpty(req.FileName, docName, unknownDocument),
		Query:     req.Query,
		Answer:    result.Answer,
		Status:    result.Status,
	}
	s.audit.Record(rec)
}

// SessionCount reports live sessions.
func (s *QAService) SessionCount() int {
	return s.sessions.Len()
}

// Wait blocks until in-flight archive uploads finish or ctx ends.
func (s *QAService) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.archiving.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// BuildPrompt embeds the full document text followed by the question.
func BuildPrompt(text, query string) string {
	return "Use the following PDF content to answer the question.\n\nPDF:\n" + text + "\n\nQuestion: " + query
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
