package api

import (
	"context"
	"encoding/json"

	"github.com/gin-gonic/gin"

	"github.com/steemit/sdgforum/internal/chat"
	"github.com/steemit/sdgforum/internal/models"
)

// ChatService is the chat group and message service
type ChatService interface {
	CreateGroup(ctx context.Context, ownerID, name string, categoryIDs []string) (*chat.Group, error)
	ListGroups(ctx context.Context, page, pageSize int) (*chat.GroupPage, error)
	GetGroup(ctx context.Context, groupID string) (*chat.Group, error)
	JoinGroup(ctx context.Context, groupID, userID string) (*chat.Member, error)
	LeaveGroup(ctx context.Context, groupID, userID string) error
	EnsureActiveMember(ctx context.Context, groupID, userID string) (*models.ChatGroupMember, error)
	CreateMessage(ctx context.Context, groupID, userID, body, replyToID string) (*chat.Message, error)
	ListMessages(ctx context.Context, groupID, userID, after string, limit int) ([]chat.Message, error)
}

// ChatAPI provides the chat.* methods
type ChatAPI struct {
	chat ChatService
}

// NewChatAPI creates a new chat API
func NewChatAPI(chat ChatService) *ChatAPI {
	return &ChatAPI{chat: chat}
}

// CreateGroup handles chat.create_group
func (a *ChatAPI) CreateGroup(ctx *gin.Context, params json.RawMessage) (interface{}, error) {
	identity, err := requireIdentity(ctx)
	if err != nil {
		return nil, err
	}
	var p createGroupParams
	if err := bindParams(params, &p); err != nil {
		return nil, err
	}
	return a.chat.CreateGroup(ctx.Request.Context(), identity.UserID, p.Name, p.CategoryIDs)
}

// ListGroups handles chat.list_groups
func (a *ChatAPI) ListGroups(ctx *gin.Context, params json.RawMessage) (interface{}, error) {
	var p listGroupsParams
	if err := bindParams(params, &p); err != nil {
		return nil, err
	}
	return a.chat.ListGroups(ctx.Request.Context(), p.Page, p.PageSize)
}

// GetGroup handles chat.get_group
func (a *ChatAPI) GetGroup(ctx *gin.Context, params json.RawMessage) (interface{}, error) {
	var p groupIDParams
	if err := bindParams(params, &p); err != nil {
		return nil, err
	}
	return a.chat.GetGroup(ctx.Request.Context(), p.GroupID)
}

// Join handles chat.join
func (a *ChatAPI) Join(ctx *gin.Context, params json.RawMessage) (interface{}, error) {
	identity, err := requireIdentity(ctx)
	if err != nil {
		return nil, err
	}
	var p groupIDParams
	if err := bindParams(params, &p); err != nil {
		return nil, err
	}
	return a.chat.JoinGroup(ctx.Request.Context(), p.GroupID, identity.UserID)
}

// Leave handles chat.leave
func (a *ChatAPI) Leave(ctx *gin.Context, params json.RawMessage) (interface{}, error) {
	identity, err := requireIdentity(ctx)
	if err != nil {
		return nil, err
	}
	var p groupIDParams
	if err := bindParams(params, &p); err != nil {
		return nil, err
	}
	if err := a.chat.LeaveGroup(ctx.Request.Context(), p.GroupID, identity.UserID); err != nil {
		return nil, err
	}
	return gin.H{"left": true}, nil
}

// Send handles chat.send
func (a *ChatAPI) Send(ctx *gin.Context, params json.RawMessage) (interface{}, error) {
	identity, err := requireIdentity(ctx)
	if err != nil {
		return nil, err
	}
	var p sendMessageParams
	if err := bindParams(params, &p); err != nil {
		return nil, err
	}
	return a.chat.CreateMessage(ctx.Request.Context(), p.GroupID, identity.UserID, p.Body, p.ReplyToID)
}

// ListMessages handles chat.list_messages
func (a *ChatAPI) ListMessages(ctx *gin.Context, params json.RawMessage) (interface{}, error) {
	identity, err := requireIdentity(ctx)
	if err != nil {
		return nil, err
	}
	var p listMessagesParams
	if err := bindParams(params, &p); err != nil {
		return nil, err
	}

	messages, err := a.chat.ListMessages(ctx.Request.Context(), p.GroupID, identity.UserID, p.After, p.Limit)
	if err != nil {
		return nil, err
	}
	return gin.H{"data": messages}, nil
}
