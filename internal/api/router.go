package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/steemit/sdgforum/internal/chat"
	"github.com/steemit/sdgforum/pkg/logging"
)

// HealthChecker is a dependency that can report its health
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Services are the domain services exposed over the API
type Services struct {
	Threads    ThreadService
	Chat       ChatService
	Categories CategoryService
	Dashboard  DashboardService

	// Hub serves /ws/chat when set
	Hub *chat.Hub

	// Health lists named dependencies reported by /health
	Health map[string]HealthChecker
}

// Router sets up API routes
type Router struct {
	handler        *JSONRPCHandler
	services       Services
	auth           *Authenticator
	allowedOrigins []string
	logger         *zap.Logger
}

// NewRouter creates a new API router
func NewRouter(services Services, auth *Authenticator, allowedOrigins []string) *Router {
	router := &Router{
		handler:        NewJSONRPCHandler(),
		services:       services,
		auth:           auth,
		allowedOrigins: allowedOrigins,
		logger:         logging.GetLogger().With(zap.String("component", "api-router")),
	}

	router.registerMethods()

	return router
}

// SetupRoutes sets up all API routes
func (r *Router) SetupRoutes(engine *gin.Engine) {
	engine.GET("/health", r.healthHandler)
	engine.GET("/.well-known/healthcheck.json", r.healthHandler)

	authed := engine.Group("/", r.auth.Middleware())
	authed.POST("/", r.handler.Handle)
	authed.GET("/ws/chat", r.chatSocket)
}

// registerMethods registers all API methods
func (r *Router) registerMethods() {
	threads := NewThreadAPI(r.services.Threads)

	r.handler.RegisterMethod("thread.create", threads.Create)
	r.handler.RegisterMethod("thread.update", threads.Update)
	r.handler.RegisterMethod("thread.remove", threads.Remove)
	r.handler.RegisterMethod("thread.set_status", threads.SetStatus)
	r.handler.RegisterMethod("thread.like", threads.Like())
	r.handler.RegisterMethod("thread.unlike", threads.Unlike())
	r.handler.RegisterMethod("thread.repost", threads.Repost())
	r.handler.RegisterMethod("thread.unrepost", threads.Unrepost())
	r.handler.RegisterMethod("thread.report", threads.Report)
	r.handler.RegisterMethod("thread.list", threads.List)
	r.handler.RegisterMethod("thread.get", threads.Get)
	r.handler.RegisterMethod("thread.replies", threads.Replies)

	chatAPI := NewChatAPI(r.services.Chat)

	r.handler.RegisterMethod("chat.create_group", chatAPI.CreateGroup)
	r.handler.RegisterMethod("chat.list_groups", chatAPI.ListGroups)
	r.handler.RegisterMethod("chat.get_group", chatAPI.GetGroup)
	r.handler.RegisterMethod("chat.join", chatAPI.Join)
	r.handler.RegisterMethod("chat.leave", chatAPI.Leave)
	r.handler.RegisterMethod("chat.send", chatAPI.Send)
	r.handler.RegisterMethod("chat.list_messages", chatAPI.ListMessages)

	dashboardAPI := NewDashboardAPI(r.services.Categories, r.services.Dashboard)

	r.handler.RegisterMethod("category.list", dashboardAPI.Categories)
	r.handler.RegisterMethod("dashboard.weekly_stats", dashboardAPI.WeeklyStats)
	r.handler.RegisterMethod("dashboard.top_threads", dashboardAPI.TopThreads)
}

// healthHandler handles health check requests
func (r *Router) healthHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(r.services.Health))
	for name, checker := range r.services.Health {
		if err := checker.Health(ctx); err != nil {
			r.logger.Warn("Health check failed", zap.String("dependency", name), zap.Error(err))
			checks[name] = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	state := "OK"
	if status != http.StatusOK {
		state = "DEGRADED"
	}
	c.JSON(status, gin.H{
		"status":  state,
		"service": "sdgforum-api",
		"checks":  checks,
	})
}

func (r *Router) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		HandshakeTimeout: 10 * time.Second,
		CheckOrigin:      r.checkOrigin,
	}
}

func (r *Router) checkOrigin(req *http.Request) bool {
	origin := req.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range r.allowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	r.logger.Warn("WebSocket connection rejected from unauthorized origin", zap.String("origin", origin))
	return false
}

// chatSocket upgrades an authenticated request to a chat connection
func (r *Router) chatSocket(c *gin.Context) {
	if r.services.Hub == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "chat is not available"})
		return
	}

	identity, err := requireIdentity(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, JSONRPCResponse{JSONRPC: "2.0", Error: NewError(err)})
		return
	}

	upgrader := r.upgrader()
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		r.logger.Warn("WebSocket upgrade error", zap.Error(err))
		return
	}

	chat.NewClient(r.services.Hub, conn, r.services.Chat, identity.UserID).Start()
}
