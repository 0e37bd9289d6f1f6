package router

import (
	"commfeed/internal/config"
	"commfeed/internal/handlers"
	"commfeed/internal/middleware"
	"commfeed/internal/services"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

const sessionName = "commfeed_session"

// New 组装服务、中间件与全部路由
func New(conn *gorm.DB, clock clockwork.Clock, cfg *config.Config) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.AccessLog())
	r.Use(middleware.Metrics())

	store := cookie.NewStore([]byte(cfg.SessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   7 * 24 * 3600,
		HttpOnly: true,
		Secure:   cfg.IsProduction(),
	})
	r.Use(sessions.Sessions(sessionName, store))

	// Services
	ledger := services.NewLedger(conn)
	users := services.NewUserService(conn, ledger, clock)
	comments := services.NewCommentService(conn, clock)
	reactions := services.NewReactionService(conn, ledger, clock)
	leaderboard := services.NewLeaderboard(conn, clock)

	r.Use(middleware.LoadUser(users))

	RegisterRoutes(r, Handlers{
		Auth:        handlers.NewAuthHandler(users, cfg.LeaderboardWindow),
		Post:        handlers.NewPostHandler(comments, reactions),
		Reaction:    handlers.NewReactionHandler(reactions),
		Leaderboard: handlers.NewLeaderboardHandler(leaderboard, cfg.LeaderboardSize, cfg.LeaderboardMaxSize, cfg.LeaderboardWindow),
		User:        handlers.NewUserHandler(users, ledger, cfg.LeaderboardWindow),
		Health:      handlers.NewHealthHandler(conn),
	}, middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst))

	return r
}

type Handlers struct {
	Auth        *handlers.AuthHandler
	Post        *handlers.PostHandler
	Reaction    *handlers.ReactionHandler
	Leaderboard *handlers.LeaderboardHandler
	User        *handlers.UserHandler
	Health      *handlers.HealthHandler
}

func RegisterRoutes(r *gin.Engine, h Handlers, limiter *middleware.RateLimiter) {
	r.GET("/healthz", h.Health.Healthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")

	// 公共路由
	api.GET("/posts", h.Post.List)
	api.GET("/posts/:id", h.Post.Detail)
	api.GET("/leaderboard", h.Leaderboard.Top)
	api.GET("/users/:id/karma", h.User.Karma)
	api.GET("/users/:id/ledger", h.User.Ledger)
	api.POST("/auth/login", limiter.Middleware(), h.Auth.Login)
	api.POST("/auth/register", limiter.Middleware(), h.Auth.Register)
	api.POST("/auth/logout", h.Auth.Logout)

	// 受保护路由
	authorized := api.Group("/")
	authorized.Use(middleware.AuthRequired())
	{
		authorized.GET("/auth/me", h.Auth.Me)

		// 写操作按客户端 IP 限流
		writes := authorized.Group("/")
		writes.Use(limiter.Middleware())
		writes.POST("/posts", h.Post.Create)
		writes.POST("/posts/:id/comments", h.Post.CreateComment)
		writes.POST("/reactions", h.Reaction.React)
		writes.DELETE("/reactions", h.Reaction.Unreact)
	}
}
