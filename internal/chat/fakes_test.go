package chat

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/steemit/sdgforum/internal/apperr"
	"github.com/steemit/sdgforum/internal/models"
)

type memStore struct {
	mu       sync.Mutex
	groups   map[string]*models.ChatGroup
	members  map[string]*models.ChatGroupMember
	messages map[string]*models.ChatMessage
}

func newMemStore() *memStore {
	return &memStore{
		groups:   make(map[string]*models.ChatGroup),
		members:  make(map[string]*models.ChatGroupMember),
		messages: make(map[string]*models.ChatMessage),
	}
}

func memberKey(groupID, userID string) string {
	return groupID + "/" + userID
}

func (m *memStore) CreateGroup(_ context.Context, group *models.ChatGroup, owner *models.ChatGroupMember) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	g := *group
	m.groups[g.ID] = &g
	if owner != nil {
		o := *owner
		m.members[memberKey(o.GroupID, o.UserID)] = &o
	}
	return nil
}

func (m *memStore) FindGroup(_ context.Context, id string) (*models.ChatGroup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.groups[id]
	if !ok {
		return nil, nil
	}
	return g, nil
}

func (m *memStore) FindGroupByName(_ context.Context, name string) (*models.ChatGroup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, g := range m.groups {
		if g.Name == name {
			return g, nil
		}
	}
	return nil, nil
}

func (m *memStore) ListGroups(_ context.Context, offset, limit int) ([]GroupSummary, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []GroupSummary
	for _, g := range m.groups {
		all = append(all, GroupSummary{Group: *g})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Group.ID > all[j].Group.ID })
	total := int64(len(all))
	if offset >= len(all) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (m *memStore) GroupCounts(_ context.Context, groupID string) (int64, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var members, messages int64
	for _, mem := range m.members {
		if mem.GroupID == groupID && mem.IsActive() {
			members++
		}
	}
	for _, msg := range m.messages {
		if msg.GroupID == groupID {
			messages++
		}
	}
	return members, messages, nil
}

func (m *memStore) ListMembers(_ context.Context, groupID string) ([]models.ChatGroupMember, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ChatGroupMember
	for _, mem := range m.members {
		if mem.GroupID == groupID {
			out = append(out, *mem)
		}
	}
	return out, nil
}

func (m *memStore) GetMembership(_ context.Context, groupID, userID string) (*models.ChatGroupMember, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mem, ok := m.members[memberKey(groupID, userID)]
	if !ok {
		return nil, nil
	}
	copied := *mem
	return &copied, nil
}

func (m *memStore) UpsertMembership(_ context.Context, member *models.ChatGroupMember) (*models.ChatGroupMember, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := memberKey(member.GroupID, member.UserID)
	if existing, ok := m.members[key]; ok {
		existing.LeftAt.Valid = false
		copied := *existing
		return &copied, nil
	}
	copied := *member
	m.members[key] = &copied
	return member, nil
}

func (m *memStore) MarkLeft(_ context.Context, groupID, userID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	mem := m.members[memberKey(groupID, userID)]
	mem.LeftAt.Time = at
	mem.LeftAt.Valid = true
	return nil
}

func (m *memStore) CreateMessage(_ context.Context, message *models.ChatMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.messages[message.ID]; ok {
		return apperr.Conflict("duplicate message id %s", message.ID)
	}
	copied := *message
	m.messages[message.ID] = &copied
	return nil
}

func (m *memStore) GetMessage(_ context.Context, id string) (*models.ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.messages[id]
	if !ok {
		return nil, nil
	}
	copied := *msg
	return &copied, nil
}

func (m *memStore) ListMessages(_ context.Context, groupID, after string, limit int) ([]models.ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ChatMessage
	for _, msg := range m.messages {
		if msg.GroupID == groupID && strings.Compare(msg.ID, after) > 0 {
			out = append(out, *msg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeCategories struct {
	categories []models.Category
}

func (f *fakeCategories) Resolve(_ context.Context, ids []string) ([]models.Category, error) {
	if len(ids) == 0 || len(ids) > 3 {
		return nil, apperr.Validation("select between 1 and 3 categories")
	}
	var out []models.Category
	for _, id := range ids {
		found := false
		for _, c := range f.categories {
			if c.ID == id {
				out = append(out, c)
				found = true
			}
		}
		if !found {
			return nil, apperr.NotFound("one or more categories were not found")
		}
	}
	return out, nil
}

func (f *fakeCategories) List(_ context.Context) ([]models.Category, error) {
	return f.categories, nil
}
