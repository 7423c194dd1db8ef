// Package thread manages the thread lifecycle: creation behind the
// relevance gate, edits, cascading removal, interactions and reports.
package thread

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/steemit/sdgforum/internal/apperr"
	"github.com/steemit/sdgforum/internal/interaction"
	"github.com/steemit/sdgforum/internal/models"
	"github.com/steemit/sdgforum/internal/moderation"
	"github.com/steemit/sdgforum/internal/review"
	"github.com/steemit/sdgforum/pkg/telemetry"
)

// Paging defaults
const (
	DefaultPageSize = 10
	MaxPageSize     = 50
)

// ListFilter selects active top-level threads
type ListFilter struct {
	Tags        []string
	CategoryIDs []string
	Search      string
	Offset      int
	Limit       int
}

// Store is the thread persistence
type Store interface {
	// CreateThread inserts the thread and its category links in one transaction
	CreateThread(ctx context.Context, t *models.Thread) error
	// GetThread loads a thread in any status with author and categories, or nil
	GetThread(ctx context.Context, id string) (*models.Thread, error)
	// UpdateThread saves edited fields; categories are replaced when replaceCategories is set
	UpdateThread(ctx context.Context, t *models.Thread, replaceCategories bool) error
	// RemoveWithReplies marks the thread and its active direct replies REMOVED atomically
	RemoveWithReplies(ctx context.Context, id string) error
	UpdateStatus(ctx context.Context, id string, status models.ThreadStatus) error

	ListThreads(ctx context.Context, filter ListFilter) ([]models.Thread, error)
	CountThreads(ctx context.Context, filter ListFilter) (int64, error)
	ListReplies(ctx context.Context, parentID string, offset, limit int) ([]models.Thread, int64, error)

	// AddInteraction inserts unless the (thread, user, type) key exists
	AddInteraction(ctx context.Context, in *models.Interaction) (bool, error)
	// RemoveInteraction deletes by key and reports whether a row existed
	RemoveInteraction(ctx context.Context, threadID, userID string, kind models.InteractionType) (bool, error)

	CreateReport(ctx context.Context, r *models.Report) error
	GetUser(ctx context.Context, id string) (*models.User, error)
}

// CategoryResolver validates category selections
type CategoryResolver interface {
	Resolve(ctx context.Context, ids []string) ([]models.Category, error)
}

// Reviewer is the pre-create relevance gate
type Reviewer interface {
	ReviewForCreate(ctx context.Context, req review.Request) (moderation.Decision, error)
}

// ReportChecker runs the report-threshold re-review
type ReportChecker interface {
	CheckThreshold(ctx context.Context, threadID string) moderation.Outcome
}

// Counter derives engagement counts
type Counter interface {
	Summarize(ctx context.Context, threadIDs []string) (map[string]interaction.Counts, error)
}

// CreateInput is a new thread or reply
type CreateInput struct {
	Title       string
	Body        string
	Tags        []string
	CategoryIDs []string
	Image       string
	ParentID    string
}

// UpdateInput holds edits; nil fields are left unchanged
type UpdateInput struct {
	Title       *string
	Body        *string
	Tags        []string
	CategoryIDs []string
	Image       *string
}

// ListQuery is a thread listing request
type ListQuery struct {
	Page        int
	PageSize    int
	Tags        []string
	CategoryIDs []string
	Search      string
}

// Report is a filed report
type Report struct {
	ID         string    `json:"id"`
	ThreadID   string    `json:"thread_id"`
	ReasonCode string    `json:"reason_code"`
	Message    *string   `json:"message"`
	CreatedAt  time.Time `json:"created_at"`
}

// Service implements the thread lifecycle
type Service struct {
	store      Store
	categories CategoryResolver
	reviewer   Reviewer
	reports    ReportChecker
	counter    Counter
	logger     *zap.Logger
	now        func() time.Time
}

// NewService creates a thread service
func NewService(store Store, categories CategoryResolver, reviewer Reviewer, reports ReportChecker, counter Counter, logger *zap.Logger) *Service {
	return &Service{
		store:      store,
		categories: categories,
		reviewer:   reviewer,
		reports:    reports,
		counter:    counter,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Create creates a top-level thread behind the relevance gate, or a reply
// without review. Nothing is written when the gate rejects or is unavailable.
func (s *Service) Create(ctx context.Context, authorID string, in CreateInput) (*View, error) {
	ctx, span := telemetry.StartSpan(ctx, "thread.create")
	defer span.End()

	body := strings.TrimSpace(in.Body)
	if body == "" {
		return nil, apperr.Validation("thread body is required")
	}

	tags, err := NormalizeTags(in.Tags)
	if err != nil {
		return nil, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, apperr.Internal("failed to generate thread id", err)
	}

	now := s.now()
	thread := &models.Thread{
		ID:        id.String(),
		AuthorID:  authorID,
		Body:      body,
		Tags:      tags,
		Status:    models.ThreadStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if image := strings.TrimSpace(in.Image); image != "" {
		thread.Image = sql.NullString{String: image, Valid: true}
	}

	if parentID := strings.TrimSpace(in.ParentID); parentID != "" {
		if err := s.prepareReply(ctx, thread, parentID, in); err != nil {
			return nil, err
		}
		span.SetAttributes(attribute.Bool("thread.reply", true))
	} else {
		if err := s.prepareTopLevel(ctx, thread, in); err != nil {
			return nil, err
		}
	}

	if err := s.store.CreateThread(ctx, thread); err != nil {
		return nil, apperr.Internal("failed to create thread", err)
	}

	s.logger.Info("Thread created",
		zap.String("thread_id", thread.ID),
		zap.String("author_id", authorID),
		zap.Bool("reply", thread.IsReply()),
		zap.Int("review_score", thread.ReviewScore))

	return s.view(ctx, thread.ID)
}

func (s *Service) prepareReply(ctx context.Context, thread *models.Thread, parentID string, in CreateInput) error {
	parent, err := s.store.GetThread(ctx, parentID)
	if err != nil {
		return apperr.Internal("failed to load parent thread", err)
	}
	if parent == nil || !parent.IsActive() {
		return apperr.NotFound("parent thread not found")
	}

	thread.ParentThreadID = sql.NullString{String: parent.ID, Valid: true}
	thread.Title = strings.TrimSpace(in.Title)
	if thread.Title == "" {
		thread.Title = "Re: " + parent.Title
	}

	if len(in.CategoryIDs) > 0 {
		categories, err := s.categories.Resolve(ctx, in.CategoryIDs)
		if err != nil {
			return err
		}
		thread.Categories = categories
	}
	return nil
}

func (s *Service) prepareTopLevel(ctx context.Context, thread *models.Thread, in CreateInput) error {
	thread.Title = strings.TrimSpace(in.Title)
	if thread.Title == "" {
		return apperr.Validation("thread title is required")
	}

	categories, err := s.categories.Resolve(ctx, in.CategoryIDs)
	if err != nil {
		return err
	}
	thread.Categories = categories

	decision, err := s.reviewer.ReviewForCreate(ctx, moderation.RequestFor(thread))
	if err != nil {
		return err
	}

	thread.ReviewScore = decision.Score
	thread.ReviewedAt = sql.NullTime{Time: s.now(), Valid: true}
	return nil
}

// Update edits a thread owned by actorID. Edits are not re-reviewed.
func (s *Service) Update(ctx context.Context, actorID, threadID string, in UpdateInput) (*View, error) {
	thread, err := s.owned(ctx, actorID, threadID)
	if err != nil {
		return nil, err
	}
	if !thread.IsActive() {
		return nil, apperr.NotFound("thread not found")
	}

	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" && !thread.IsReply() {
			return nil, apperr.Validation("thread title is required")
		}
		if title != "" {
			thread.Title = title
		}
	}

	if in.Body != nil {
		body := strings.TrimSpace(*in.Body)
		if body == "" {
			return nil, apperr.Validation("thread body is required")
		}
		thread.Body = body
	}

	if in.Tags != nil {
		tags, err := NormalizeTags(in.Tags)
		if err != nil {
			return nil, err
		}
		thread.Tags = tags
	}

	if in.Image != nil {
		image := strings.TrimSpace(*in.Image)
		thread.Image = sql.NullString{String: image, Valid: image != ""}
	}

	replaceCategories := in.CategoryIDs != nil
	if replaceCategories {
		categories, err := s.categories.Resolve(ctx, in.CategoryIDs)
		if err != nil {
			return nil, err
		}
		thread.Categories = categories
	}

	thread.UpdatedAt = s.now()
	if err := s.store.UpdateThread(ctx, thread, replaceCategories); err != nil {
		return nil, apperr.Internal("failed to update thread", err)
	}

	return s.view(ctx, thread.ID)
}

// Remove removes a thread owned by actorID together with its direct
// replies. Removing an already removed thread is a no-op.
func (s *Service) Remove(ctx context.Context, actorID, threadID string) error {
	thread, err := s.owned(ctx, actorID, threadID)
	if err != nil {
		return err
	}
	if !thread.IsActive() {
		return nil
	}

	if err := s.store.RemoveWithReplies(ctx, thread.ID); err != nil {
		return apperr.Internal("failed to remove thread", err)
	}

	s.logger.Info("Thread removed by author", zap.String("thread_id", thread.ID))
	return nil
}

// SetStatus lets moderators and admins change any thread's status.
// REMOVED cascades to direct replies; ACTIVE restores only the thread.
func (s *Service) SetStatus(ctx context.Context, actorID, threadID string, status models.ThreadStatus) (*View, error) {
	if status != models.ThreadStatusActive && status != models.ThreadStatusRemoved {
		return nil, apperr.Validation("invalid thread status %q", status)
	}

	actor, err := s.store.GetUser(ctx, actorID)
	if err != nil {
		return nil, apperr.Internal("failed to load user", err)
	}
	if actor == nil || !actor.Role.CanModerate() {
		return nil, apperr.Forbidden("only moderators can change thread status")
	}

	thread, err := s.store.GetThread(ctx, threadID)
	if err != nil {
		return nil, apperr.Internal("failed to load thread", err)
	}
	if thread == nil {
		return nil, apperr.NotFound("thread not found")
	}

	if thread.Status != status {
		if status == models.ThreadStatusRemoved {
			err = s.store.RemoveWithReplies(ctx, thread.ID)
		} else {
			err = s.store.UpdateStatus(ctx, thread.ID, status)
		}
		if err != nil {
			return nil, apperr.Internal("failed to update thread status", err)
		}
		s.logger.Info("Thread status changed by moderator",
			zap.String("thread_id", thread.ID),
			zap.String("actor_id", actorID),
			zap.String("status", string(status)))
	}

	return s.view(ctx, thread.ID)
}

// Like adds the user's like; liking twice keeps one row
func (s *Service) Like(ctx context.Context, userID, threadID string) (*interaction.Counts, error) {
	return s.addInteraction(ctx, userID, threadID, models.InteractionLike)
}

// Unlike removes the user's like or reports NotFound
func (s *Service) Unlike(ctx context.Context, userID, threadID string) (*interaction.Counts, error) {
	return s.removeInteraction(ctx, userID, threadID, models.InteractionLike)
}

// Repost adds the user's repost; reposting twice keeps one row
func (s *Service) Repost(ctx context.Context, userID, threadID string) (*interaction.Counts, error) {
	return s.addInteraction(ctx, userID, threadID, models.InteractionRepost)
}

// Unrepost removes the user's repost or reports NotFound
func (s *Service) Unrepost(ctx context.Context, userID, threadID string) (*interaction.Counts, error) {
	return s.removeInteraction(ctx, userID, threadID, models.InteractionRepost)
}

func (s *Service) addInteraction(ctx context.Context, userID, threadID string, kind models.InteractionType) (*interaction.Counts, error) {
	if _, err := s.active(ctx, threadID); err != nil {
		return nil, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, apperr.Internal("failed to generate interaction id", err)
	}

	if _, err := s.store.AddInteraction(ctx, &models.Interaction{
		ID:        id.String(),
		ThreadID:  threadID,
		UserID:    userID,
		Type:      kind,
		CreatedAt: s.now(),
	}); err != nil {
		return nil, apperr.Internal("failed to save interaction", err)
	}

	return s.countsFor(ctx, threadID)
}

func (s *Service) removeInteraction(ctx context.Context, userID, threadID string, kind models.InteractionType) (*interaction.Counts, error) {
	removed, err := s.store.RemoveInteraction(ctx, threadID, userID, kind)
	if err != nil {
		return nil, apperr.Internal("failed to delete interaction", err)
	}
	if !removed {
		return nil, apperr.NotFound("%s not found", strings.ToLower(string(kind)))
	}
	return s.countsFor(ctx, threadID)
}

// CreateReport files a report and then runs the threshold check. The
// report is stored regardless of what the check does.
func (s *Service) CreateReport(ctx context.Context, reporterID, threadID, reasonCode, message string) (*Report, error) {
	if _, err := s.active(ctx, threadID); err != nil {
		return nil, err
	}

	reasonCode = strings.TrimSpace(reasonCode)
	if reasonCode == "" {
		return nil, apperr.Validation("reason code is required")
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, apperr.Internal("failed to generate report id", err)
	}

	report := &models.Report{
		ID:         id.String(),
		ThreadID:   threadID,
		ReporterID: reporterID,
		ReasonCode: reasonCode,
		CreatedAt:  s.now(),
	}
	if message = strings.TrimSpace(message); message != "" {
		report.Message = sql.NullString{String: message, Valid: true}
	}

	if err := s.store.CreateReport(ctx, report); err != nil {
		return nil, apperr.Internal("failed to save report", err)
	}

	outcome := s.reports.CheckThreshold(ctx, threadID)
	s.logger.Debug("Report filed",
		zap.String("thread_id", threadID),
		zap.String("threshold_action", outcome.Action.String()),
		zap.Int64("reports", outcome.Reports))

	out := &Report{
		ID:         report.ID,
		ThreadID:   report.ThreadID,
		ReasonCode: report.ReasonCode,
		CreatedAt:  report.CreatedAt,
	}
	if report.Message.Valid {
		out.Message = &report.Message.String
	}
	return out, nil
}

// List returns active top-level threads, newest first
func (s *Service) List(ctx context.Context, q ListQuery) (*Page, error) {
	page, pageSize := normalizePage(q.Page, q.PageSize)

	tags, err := NormalizeTags(q.Tags)
	if err != nil {
		return nil, err
	}

	filter := ListFilter{
		Tags:        tags,
		CategoryIDs: trimAll(q.CategoryIDs),
		Search:      strings.TrimSpace(q.Search),
		Offset:      models.Offset(page, pageSize),
		Limit:       pageSize,
	}

	var (
		threads []models.Thread
		total   int64
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		threads, err = s.store.ListThreads(gctx, filter)
		return err
	})
	g.Go(func() error {
		var err error
		total, err = s.store.CountThreads(gctx, filter)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, apperr.Internal("failed to list threads", err)
	}

	data, err := s.views(ctx, threads)
	if err != nil {
		return nil, err
	}

	return &Page{
		Data:       data,
		Pagination: models.NewPagination(page, pageSize, total),
	}, nil
}

// GetByID returns an active thread
func (s *Service) GetByID(ctx context.Context, threadID string) (*View, error) {
	thread, err := s.active(ctx, threadID)
	if err != nil {
		return nil, err
	}

	counts, err := s.counter.Summarize(ctx, []string{thread.ID})
	if err != nil {
		return nil, apperr.Internal("failed to count interactions", err)
	}

	view := NewView(thread, counts[thread.ID])
	return &view, nil
}

// ListReplies returns active replies of an active thread, oldest first
func (s *Service) ListReplies(ctx context.Context, threadID string, page, pageSize int) (*Page, error) {
	if _, err := s.active(ctx, threadID); err != nil {
		return nil, err
	}

	page, pageSize = normalizePage(page, pageSize)
	replies, total, err := s.store.ListReplies(ctx, threadID, models.Offset(page, pageSize), pageSize)
	if err != nil {
		return nil, apperr.Internal("failed to list replies", err)
	}

	data, err := s.views(ctx, replies)
	if err != nil {
		return nil, err
	}

	return &Page{
		Data:       data,
		Pagination: models.NewPagination(page, pageSize, total),
	}, nil
}

// owned loads a thread and checks that actorID is its author
func (s *Service) owned(ctx context.Context, actorID, threadID string) (*models.Thread, error) {
	thread, err := s.store.GetThread(ctx, threadID)
	if err != nil {
		return nil, apperr.Internal("failed to load thread", err)
	}
	if thread == nil {
		return nil, apperr.NotFound("thread not found")
	}
	if thread.AuthorID != actorID {
		return nil, apperr.Forbidden("only the author can modify this thread")
	}
	return thread, nil
}

func (s *Service) active(ctx context.Context, threadID string) (*models.Thread, error) {
	thread, err := s.store.GetThread(ctx, threadID)
	if err != nil {
		return nil, apperr.Internal("failed to load thread", err)
	}
	if thread == nil || !thread.IsActive() {
		return nil, apperr.NotFound("thread not found")
	}
	return thread, nil
}

func (s *Service) view(ctx context.Context, threadID string) (*View, error) {
	thread, err := s.store.GetThread(ctx, threadID)
	if err != nil {
		return nil, apperr.Internal("failed to load thread", err)
	}
	if thread == nil {
		return nil, apperr.NotFound("thread not found")
	}

	counts, err := s.counter.Summarize(ctx, []string{thread.ID})
	if err != nil {
		return nil, apperr.Internal("failed to count interactions", err)
	}

	view := NewView(thread, counts[thread.ID])
	return &view, nil
}

func (s *Service) views(ctx context.Context, threads []models.Thread) ([]View, error) {
	ids := make([]string, 0, len(threads))
	for i := range threads {
		ids = append(ids, threads[i].ID)
	}

	counts, err := s.counter.Summarize(ctx, ids)
	if err != nil {
		return nil, apperr.Internal("failed to count interactions", err)
	}
	return NewViews(threads, counts), nil
}

func (s *Service) countsFor(ctx context.Context, threadID string) (*interaction.Counts, error) {
	counts, err := s.counter.Summarize(ctx, []string{threadID})
	if err != nil {
		return nil, apperr.Internal("failed to count interactions", err)
	}
	c := counts[threadID]
	return &c, nil
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return page, pageSize
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
