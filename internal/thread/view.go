package thread

import (
	"database/sql"
	"time"

	"github.com/steemit/sdgforum/internal/interaction"
	"github.com/steemit/sdgforum/internal/models"
)

// View is the outward representation of a thread or reply
type View struct {
	ID             string             `json:"id"`
	ParentThreadID *string            `json:"parent_thread_id"`
	Author         *models.UserRef    `json:"author"`
	Title          string             `json:"title"`
	Body           string             `json:"body"`
	Image          *string            `json:"image"`
	Tags           []string           `json:"tags"`
	Status         string             `json:"status"`
	ReviewScore    int                `json:"review_score"`
	Categories     []models.Category  `json:"categories"`
	Counts         interaction.Counts `json:"counts"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
}

// Page is a page of threads
type Page struct {
	Data       []View            `json:"data"`
	Pagination models.Pagination `json:"pagination"`
}

// NewView maps a thread and its derived counts
func NewView(t *models.Thread, counts interaction.Counts) View {
	tags := t.Tags
	if tags == nil {
		tags = []string{}
	}
	categories := t.Categories
	if categories == nil {
		categories = []models.Category{}
	}
	return View{
		ID:             t.ID,
		ParentThreadID: nullString(t.ParentThreadID),
		Author:         models.NewUserRef(t.Author),
		Title:          t.Title,
		Body:           t.Body,
		Image:          nullString(t.Image),
		Tags:           tags,
		Status:         string(t.Status),
		ReviewScore:    t.ReviewScore,
		Categories:     categories,
		Counts:         counts,
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
	}
}

// NewViews maps threads in order, looking up counts by id
func NewViews(threads []models.Thread, counts map[string]interaction.Counts) []View {
	out := make([]View, 0, len(threads))
	for i := range threads {
		out = append(out, NewView(&threads[i], counts[threads[i].ID]))
	}
	return out
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}
