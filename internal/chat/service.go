// Package chat implements category chat groups, causally ordered messages
// and their realtime fan-out.
package chat

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/steemit/sdgforum/internal/apperr"
	"github.com/steemit/sdgforum/internal/models"
	"github.com/steemit/sdgforum/pkg/telemetry"
)

// Defaults for message validation and paging
const (
	DefaultMaxMessageLength = 2000
	DefaultPageLimit        = 50
)

// GroupSummary is a group with its activity counts
type GroupSummary struct {
	Group        models.ChatGroup
	MemberCount  int64
	MessageCount int64
}

// Store is the chat persistence
type Store interface {
	CreateGroup(ctx context.Context, group *models.ChatGroup, owner *models.ChatGroupMember) error
	FindGroup(ctx context.Context, id string) (*models.ChatGroup, error)
	FindGroupByName(ctx context.Context, name string) (*models.ChatGroup, error)
	ListGroups(ctx context.Context, offset, limit int) ([]GroupSummary, int64, error)
	GroupCounts(ctx context.Context, groupID string) (members int64, messages int64, err error)
	ListMembers(ctx context.Context, groupID string) ([]models.ChatGroupMember, error)

	GetMembership(ctx context.Context, groupID, userID string) (*models.ChatGroupMember, error)
	// UpsertMembership creates the membership or clears left_at on an existing one
	UpsertMembership(ctx context.Context, member *models.ChatGroupMember) (*models.ChatGroupMember, error)
	MarkLeft(ctx context.Context, groupID, userID string, at time.Time) error

	CreateMessage(ctx context.Context, message *models.ChatMessage) error
	// GetMessage loads a message with its author and reply target
	GetMessage(ctx context.Context, id string) (*models.ChatMessage, error)
	ListMessages(ctx context.Context, groupID, after string, limit int) ([]models.ChatMessage, error)
}

// CategoryResolver validates category selections
type CategoryResolver interface {
	Resolve(ctx context.Context, ids []string) ([]models.Category, error)
	List(ctx context.Context) ([]models.Category, error)
}

// Broadcaster fans a new message out to the group's live subscribers
type Broadcaster interface {
	Broadcast(ctx context.Context, groupID string, message Message)
}

// Options tunes message limits
type Options struct {
	MaxMessageLength int
	PageLimit        int
}

// Service implements chat groups and messages
type Service struct {
	store       Store
	categories  CategoryResolver
	ids         *Generator
	broadcaster Broadcaster
	opts        Options
	logger      *zap.Logger
	now         func() time.Time
}

// NewService creates a chat service. The generator must be the single
// instance shared by every message writer in the process.
func NewService(store Store, categories CategoryResolver, ids *Generator, opts Options, logger *zap.Logger) *Service {
	if opts.MaxMessageLength <= 0 {
		opts.MaxMessageLength = DefaultMaxMessageLength
	}
	if opts.PageLimit <= 0 {
		opts.PageLimit = DefaultPageLimit
	}
	return &Service{
		store:      store,
		categories: categories,
		ids:        ids,
		opts:       opts,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// SetBroadcaster attaches the realtime fan-out
func (s *Service) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// CreateGroup creates a group owned by ownerID with 1-3 categories
func (s *Service) CreateGroup(ctx context.Context, ownerID, name string, categoryIDs []string) (*Group, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Validation("group name is required")
	}

	categories, err := s.categories.Resolve(ctx, categoryIDs)
	if err != nil {
		return nil, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, apperr.Internal("failed to generate group id", err)
	}

	now := s.now()
	group := &models.ChatGroup{
		ID:         id.String(),
		Name:       name,
		OwnerID:    sql.NullString{String: ownerID, Valid: true},
		CreatedAt:  now,
		Categories: categories,
	}
	owner := &models.ChatGroupMember{
		GroupID:  group.ID,
		UserID:   ownerID,
		Role:     models.MemberRoleOwner,
		JoinedAt: now,
	}

	if err := s.store.CreateGroup(ctx, group, owner); err != nil {
		return nil, apperr.Internal("failed to create chat group", err)
	}

	s.logger.Info("Chat group created", zap.String("group_id", group.ID), zap.String("owner_id", ownerID))

	return s.GetGroup(ctx, group.ID)
}

// ListGroups returns groups newest first
func (s *Service) ListGroups(ctx context.Context, page, pageSize int) (*GroupPage, error) {
	page, pageSize = normalizePage(page, pageSize, 20, 100)

	summaries, total, err := s.store.ListGroups(ctx, models.Offset(page, pageSize), pageSize)
	if err != nil {
		return nil, apperr.Internal("failed to list chat groups", err)
	}

	data := make([]Group, 0, len(summaries))
	for i := range summaries {
		data = append(data, NewGroup(&summaries[i].Group, nil, summaries[i].MemberCount, summaries[i].MessageCount))
	}

	return &GroupPage{
		Data:       data,
		Pagination: models.NewPagination(page, pageSize, total),
	}, nil
}

// GetGroup returns a group with its members
func (s *Service) GetGroup(ctx context.Context, groupID string) (*Group, error) {
	group, err := s.ensureGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}

	members, err := s.store.ListMembers(ctx, groupID)
	if err != nil {
		return nil, apperr.Internal("failed to list group members", err)
	}

	memberCount, messageCount, err := s.store.GroupCounts(ctx, groupID)
	if err != nil {
		return nil, apperr.Internal("failed to count group activity", err)
	}

	view := NewGroup(group, members, memberCount, messageCount)
	return &view, nil
}

// JoinGroup adds the user to the group, or reactivates a left membership
func (s *Service) JoinGroup(ctx context.Context, groupID, userID string) (*Member, error) {
	if _, err := s.ensureGroup(ctx, groupID); err != nil {
		return nil, err
	}

	member, err := s.store.UpsertMembership(ctx, &models.ChatGroupMember{
		GroupID:  groupID,
		UserID:   userID,
		Role:     models.MemberRoleMember,
		JoinedAt: s.now(),
	})
	if err != nil {
		return nil, apperr.Internal("failed to join chat group", err)
	}

	view := NewMember(member)
	return &view, nil
}

// LeaveGroup marks the membership as left. Owners cannot leave.
func (s *Service) LeaveGroup(ctx context.Context, groupID, userID string) error {
	member, err := s.store.GetMembership(ctx, groupID, userID)
	if err != nil {
		return apperr.Internal("failed to load membership", err)
	}
	if member == nil || !member.IsActive() {
		return apperr.NotFound("membership not found")
	}
	if member.Role == models.MemberRoleOwner {
		return apperr.Validation("group owner cannot leave the group")
	}

	if err := s.store.MarkLeft(ctx, groupID, userID, s.now()); err != nil {
		return apperr.Internal("failed to leave chat group", err)
	}
	return nil
}

// EnsureActiveMember returns the membership or a Forbidden error
func (s *Service) EnsureActiveMember(ctx context.Context, groupID, userID string) (*models.ChatGroupMember, error) {
	member, err := s.store.GetMembership(ctx, groupID, userID)
	if err != nil {
		return nil, apperr.Internal("failed to load membership", err)
	}
	if member == nil {
		return nil, apperr.Forbidden("you are not a member of this group")
	}
	if !member.IsActive() {
		return nil, apperr.Forbidden("you have left this group")
	}
	return member, nil
}

// EnsureSDGGroups creates the public group of every category that has none
// and returns how many were created
func (s *Service) EnsureSDGGroups(ctx context.Context) (int, error) {
	categories, err := s.categories.List(ctx)
	if err != nil {
		return 0, err
	}

	created := 0
	for i := range categories {
		name := SDGGroupName(categories[i])
		existing, err := s.store.FindGroupByName(ctx, name)
		if err != nil {
			return created, fmt.Errorf("failed to look up group %q: %w", name, err)
		}
		if existing != nil {
			continue
		}

		id, err := uuid.NewV7()
		if err != nil {
			return created, fmt.Errorf("failed to generate group id: %w", err)
		}
		group := &models.ChatGroup{
			ID:         id.String(),
			Name:       name,
			CreatedAt:  s.now(),
			Categories: []models.Category{categories[i]},
		}
		if err := s.store.CreateGroup(ctx, group, nil); err != nil {
			return created, fmt.Errorf("failed to create group %q: %w", name, err)
		}
		created++
	}

	if created > 0 {
		s.logger.Info("SDG chat groups created", zap.Int("count", created))
	}
	return created, nil
}

// SDGGroupName names the public group of a category
func SDGGroupName(c models.Category) string {
	return fmt.Sprintf("SDG %d: %s", c.SDGNumber, c.Name)
}

// CreateMessage appends a message to the group and broadcasts it
func (s *Service) CreateMessage(ctx context.Context, groupID, userID, body, replyToID string) (*Message, error) {
	ctx, span := telemetry.StartSpan(ctx, "chat.create_message")
	defer span.End()

	if _, err := s.ensureGroup(ctx, groupID); err != nil {
		return nil, err
	}
	if _, err := s.EnsureActiveMember(ctx, groupID, userID); err != nil {
		return nil, err
	}

	body = strings.TrimSpace(body)
	if body == "" {
		return nil, apperr.Validation("message body is required")
	}
	if utf8.RuneCountInString(body) > s.opts.MaxMessageLength {
		return nil, apperr.Validation("message body exceeds %d characters", s.opts.MaxMessageLength)
	}

	message := &models.ChatMessage{
		GroupID:   groupID,
		UserID:    userID,
		Body:      body,
		CreatedAt: s.now(),
	}

	if replyToID = strings.TrimSpace(replyToID); replyToID != "" {
		target, err := s.store.GetMessage(ctx, replyToID)
		if err != nil {
			return nil, apperr.Internal("failed to load reply target", err)
		}
		if target == nil || target.GroupID != groupID {
			return nil, apperr.Validation("reply target message not found in this group")
		}
		message.ReplyToID = sql.NullString{String: target.ID, Valid: true}
	}

	message.ID = s.ids.NextID()
	if err := s.store.CreateMessage(ctx, message); err != nil {
		return nil, apperr.Internal("failed to create message", err)
	}

	stored, err := s.store.GetMessage(ctx, message.ID)
	if err != nil {
		s.logger.Warn("Reloading created chat message failed",
			zap.String("group_id", groupID),
			zap.String("message_id", message.ID),
			zap.Error(err))
	}
	if stored == nil {
		stored = message
	}

	telemetry.Metrics().ChatMessages.Add(ctx, 1)

	view := NewMessage(stored)
	if s.broadcaster != nil {
		s.broadcaster.Broadcast(ctx, groupID, view)
	}
	return &view, nil
}

// ListMessages returns up to limit messages with id greater than after,
// oldest first
func (s *Service) ListMessages(ctx context.Context, groupID, userID, after string, limit int) ([]Message, error) {
	if _, err := s.ensureGroup(ctx, groupID); err != nil {
		return nil, err
	}
	if _, err := s.EnsureActiveMember(ctx, groupID, userID); err != nil {
		return nil, err
	}

	if limit <= 0 || limit > s.opts.PageLimit {
		limit = s.opts.PageLimit
	}

	messages, err := s.store.ListMessages(ctx, groupID, strings.TrimSpace(after), limit)
	if err != nil {
		return nil, apperr.Internal("failed to list messages", err)
	}
	return NewMessages(messages), nil
}

func (s *Service) ensureGroup(ctx context.Context, groupID string) (*models.ChatGroup, error) {
	group, err := s.store.FindGroup(ctx, groupID)
	if err != nil {
		return nil, apperr.Internal("failed to load chat group", err)
	}
	if group == nil {
		return nil, apperr.NotFound("chat group not found")
	}
	return group, nil
}

func normalizePage(page, pageSize, def, maxSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = def
	}
	if pageSize > maxSize {
		pageSize = maxSize
	}
	return page, pageSize
}
