package chat

import (
	"time"

	"github.com/steemit/sdgforum/internal/models"
)

// Message is the API and realtime representation of a chat message
type Message struct {
	ID        string          `json:"id"`
	GroupID   string          `json:"group_id"`
	User      *models.UserRef `json:"user"`
	Body      string          `json:"body"`
	ReplyTo   *ReplyRef       `json:"reply_to"`
	CreatedAt time.Time       `json:"created_at"`
}

// ReplyRef summarises the message being replied to
type ReplyRef struct {
	ID   string          `json:"id"`
	Body string          `json:"body"`
	User *models.UserRef `json:"user"`
}

// NewMessage maps a chat message
func NewMessage(m *models.ChatMessage) Message {
	out := Message{
		ID:        m.ID,
		GroupID:   m.GroupID,
		User:      models.NewUserRef(m.User),
		Body:      m.Body,
		CreatedAt: m.CreatedAt,
	}
	if m.ReplyTo != nil {
		out.ReplyTo = &ReplyRef{
			ID:   m.ReplyTo.ID,
			Body: m.ReplyTo.Body,
			User: models.NewUserRef(m.ReplyTo.User),
		}
	} else if m.ReplyToID.Valid {
		out.ReplyTo = &ReplyRef{ID: m.ReplyToID.String}
	}
	return out
}

// NewMessages maps messages in order
func NewMessages(messages []models.ChatMessage) []Message {
	out := make([]Message, 0, len(messages))
	for i := range messages {
		out = append(out, NewMessage(&messages[i]))
	}
	return out
}

// Member is a chat group membership
type Member struct {
	UserID   string          `json:"user_id"`
	User     *models.UserRef `json:"user"`
	Role     string          `json:"role"`
	JoinedAt time.Time       `json:"joined_at"`
	LeftAt   *time.Time      `json:"left_at"`
}

// NewMember maps a membership
func NewMember(m *models.ChatGroupMember) Member {
	out := Member{
		UserID:   m.UserID,
		User:     models.NewUserRef(m.User),
		Role:     string(m.Role),
		JoinedAt: m.JoinedAt,
	}
	if m.LeftAt.Valid {
		left := m.LeftAt.Time
		out.LeftAt = &left
	}
	return out
}

// Group is a chat group with its categories and activity counts
type Group struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Owner        *models.UserRef   `json:"owner"`
	Categories   []models.Category `json:"categories"`
	Members      []Member          `json:"members,omitempty"`
	MemberCount  int64             `json:"member_count"`
	MessageCount int64             `json:"message_count"`
	CreatedAt    time.Time         `json:"created_at"`
}

// GroupPage is a page of chat groups
type GroupPage struct {
	Data       []Group           `json:"data"`
	Pagination models.Pagination `json:"pagination"`
}

// NewGroup maps a chat group; members may be nil for list views
func NewGroup(g *models.ChatGroup, members []models.ChatGroupMember, memberCount, messageCount int64) Group {
	out := Group{
		ID:           g.ID,
		Name:         g.Name,
		Owner:        models.NewUserRef(g.Owner),
		Categories:   g.Categories,
		MemberCount:  memberCount,
		MessageCount: messageCount,
		CreatedAt:    g.CreatedAt,
	}
	if out.Categories == nil {
		out.Categories = []models.Category{}
	}
	for i := range members {
		out.Members = append(out.Members, NewMember(&members[i]))
	}
	return out
}
