package api

import (
	"context"
	"encoding/json"

	"github.com/gin-gonic/gin"

	"github.com/steemit/sdgforum/internal/interaction"
	"github.com/steemit/sdgforum/internal/models"
	"github.com/steemit/sdgforum/internal/thread"
)

// ThreadService is the thread lifecycle used by the thread methods
type ThreadService interface {
	Create(ctx context.Context, authorID string, in thread.CreateInput) (*thread.View, error)
	Update(ctx context.Context, actorID, threadID string, in thread.UpdateInput) (*thread.View, error)
	Remove(ctx context.Context, actorID, threadID string) error
	SetStatus(ctx context.Context, actorID, threadID string, status models.ThreadStatus) (*thread.View, error)
	Like(ctx context.Context, userID, threadID string) (*interaction.Counts, error)
	Unlike(ctx context.Context, userID, threadID string) (*interaction.Counts, error)
	Repost(ctx context.Context, userID, threadID string) (*interaction.Counts, error)
	Unrepost(ctx context.Context, userID, threadID string) (*interaction.Counts, error)
	CreateReport(ctx context.Context, reporterID, threadID, reasonCode, message string) (*thread.Report, error)
	List(ctx context.Context, q thread.ListQuery) (*thread.Page, error)
	GetByID(ctx context.Context, threadID string) (*thread.View, error)
	ListReplies(ctx context.Context, threadID string, page, pageSize int) (*thread.Page, error)
}

// ThreadAPI provides the thread.* methods
type ThreadAPI struct {
	threads ThreadService
}

// NewThreadAPI creates a new thread API
func NewThreadAPI(threads ThreadService) *ThreadAPI {
	return &ThreadAPI{threads: threads}
}

// Create handles thread.create
func (a *ThreadAPI) Create(ctx *gin.Context, params json.RawMessage) (interface{}, error) {
	identity, err := requireIdentity(ctx)
	if err != nil {
		return nil, err
	}
	var p createThreadParams
	if err := bindParams(params, &p); err != nil {
		return nil, err
	}

	return a.threads.Create(ctx.Request.Context(), identity.UserID, thread.CreateInput{
		Title:       p.Title,
		Body:        p.Body,
		Tags:        p.Tags,
		CategoryIDs: p.CategoryIDs,
		Image:       p.Image,
		ParentID:    p.ParentThreadID,
	})
}

// Update handles thread.update
func (a *ThreadAPI) Update(ctx *gin.Context, params json.RawMessage) (interface{}, error) {
	identity, err := requireIdentity(ctx)
	if err != nil {
		return nil, err
	}
	var p updateThreadParams
	if err := bindParams(params, &p); err != nil {
		return nil, err
	}

	return a.threads.Update(ctx.Request.Context(), identity.UserID, p.ThreadID, thread.UpdateInput{
		Title:       p.Title,
		Body:        p.Body,
		Tags:        p.Tags,
		CategoryIDs: p.CategoryIDs,
		Image:       p.Image,
	})
}

// Remove handles thread.remove
func (a *ThreadAPI) Remove(ctx *gin.Context, params json.RawMessage) (interface{}, error) {
	identity, err := requireIdentity(ctx)
	if err != nil {
		return nil, err
	}
	var p threadIDParams
	if err := bindParams(params, &p); err != nil {
		return nil, err
	}

	if err := a.threads.Remove(ctx.Request.Context(), identity.UserID, p.ThreadID); err != nil {
		return nil, err
	}
	return gin.H{"removed": true}, nil
}

// SetStatus handles thread.set_status
func (a *ThreadAPI) SetStatus(ctx *gin.Context, params json.RawMessage) (interface{}, error) {
	identity, err := requireIdentity(ctx)
	if err != nil {
		return nil, err
	}
	var p setStatusParams
	if err := bindParams(params, &p); err != nil {
		return nil, err
	}

	return a.threads.SetStatus(ctx.Request.Context(), identity.UserID, p.ThreadID, models.ThreadStatus(p.Status))
}

type interactionFunc func(ctx context.Context, userID, threadID string) (*interaction.Counts, error)

func (a *ThreadAPI) interact(fn interactionFunc) MethodHandler {
	return func(ctx *gin.Context, params json.RawMessage) (interface{}, error) {
		identity, err := requireIdentity(ctx)
		if err != nil {
			return nil, err
		}
		var p threadIDParams
		if err := bindParams(params, &p); err != nil {
			return nil, err
		}
		return fn(ctx.Request.Context(), identity.UserID, p.ThreadID)
	}
}

// Like handles thread.like
func (a *ThreadAPI) Like() MethodHandler { return a.interact(a.threads.Like) }

// Unlike handles thread.unlike
func (a *ThreadAPI) Unlike() MethodHandler { return a.interact(a.threads.Unlike) }

// Repost handles thread.repost
func (a *ThreadAPI) Repost() MethodHandler { return a.interact(a.threads.Repost) }

// Unrepost handles thread.unrepost
func (a *ThreadAPI) Unrepost() MethodHandler { return a.interact(a.threads.Unrepost) }

// Report handles thread.report
func (a *ThreadAPI) Report(ctx *gin.Context, params json.RawMessage) (interface{}, error) {
	identity, err := requireIdentity(ctx)
	if err != nil {
		return nil, err
	}
	var p reportParams
	if err := bindParams(params, &p); err != nil {
		return nil, err
	}

	return a.threads.CreateReport(ctx.Request.Context(), identity.UserID, p.ThreadID, p.ReasonCode, p.Message)
}

// List handles thread.list
func (a *ThreadAPI) List(ctx *gin.Context, params json.RawMessage) (interface{}, error) {
	var p listThreadsParams
	if err := bindParams(params, &p); err != nil {
		return nil, err
	}

	return a.threads.List(ctx.Request.Context(), thread.ListQuery{
		Page:        p.Page,
		PageSize:    p.PageSize,
		Tags:        p.Tags,
		CategoryIDs: p.CategoryIDs,
		Search:      p.Search,
	})
}

// Get handles thread.get
func (a *ThreadAPI) Get(ctx *gin.Context, params json.RawMessage) (interface{}, error) {
	var p threadIDParams
	if err := bindParams(params, &p); err != nil {
		return nil, err
	}
	return a.threads.GetByID(ctx.Request.Context(), p.ThreadID)
}

// Replies handles thread.replies
func (a *ThreadAPI) Replies(ctx *gin.Context, params json.RawMessage) (interface{}, error) {
	var p listRepliesParams
	if err := bindParams(params, &p); err != nil {
		return nil, err
	}
	return a.threads.ListReplies(ctx.Request.Context(), p.ThreadID, p.Page, p.PageSize)
}
