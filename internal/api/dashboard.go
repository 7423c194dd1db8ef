package api

import (
	"context"
	"encoding/json"

	"github.com/gin-gonic/gin"

	"github.com/steemit/sdgforum/internal/dashboard"
	"github.com/steemit/sdgforum/internal/models"
)

// CategoryService lists the goal categories
type CategoryService interface {
	List(ctx context.Context) ([]models.Category, error)
}

// DashboardService computes weekly aggregates
type DashboardService interface {
	WeeklyStats(ctx context.Context) (*dashboard.WeeklyStats, error)
	TopThreads(ctx context.Context) (*dashboard.TopThreads, error)
}

// DashboardAPI provides category.list and the dashboard.* methods
type DashboardAPI struct {
	categories CategoryService
	dashboard  DashboardService
}

// NewDashboardAPI creates a new dashboard API
func NewDashboardAPI(categories CategoryService, dashboard DashboardService) *DashboardAPI {
	return &DashboardAPI{categories: categories, dashboard: dashboard}
}

// Categories handles category.list
func (a *DashboardAPI) Categories(ctx *gin.Context, _ json.RawMessage) (interface{}, error) {
	categories, err := a.categories.List(ctx.Request.Context())
	if err != nil {
		return nil, err
	}
	return gin.H{"data": categories}, nil
}

// WeeklyStats handles dashboard.weekly_stats
func (a *DashboardAPI) WeeklyStats(ctx *gin.Context, _ json.RawMessage) (interface{}, error) {
	return a.dashboard.WeeklyStats(ctx.Request.Context())
}

// TopThreads handles dashboard.top_threads
func (a *DashboardAPI) TopThreads(ctx *gin.Context, _ json.RawMessage) (interface{}, error) {
	return a.dashboard.TopThreads(ctx.Request.Context())
}
