package router

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	authhandler "snote_backend/internal/feature/auth/transport/handler"
	"snote_backend/internal/feature/auth/transport/middleware"
	"snote_backend/internal/platform/http/handler"
	"snote_backend/internal/shared/ratelimiter"
)

// Metrics is the collector set exposed on /metrics.
type Metrics interface {
	middleware.RequestObserver
	Handler() http.Handler
}

// Deps are the components the router wires into routes.
type Deps struct {
	Auth      *authhandler.AuthHandler
	Validator middleware.SessionValidator
	// Limiter はサインアップ・サインインのみに適用されます。nilなら無制限です。
	Limiter   ratelimiter.RateLimiterInterface
	Metrics   Metrics
	Readiness map[string]handler.Check
}

// NewRouter はヘルスチェック・メトリクス・認証APIのルートを登録したgin.Engineを返します。
func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())
	if d.Metrics != nil {
		r.Use(middleware.Metrics(d.Metrics))
		r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))
	}

	// 導通確認用
	r.GET("/healthz", handler.Health)
	r.HEAD("/healthz", handler.Health)
	r.OPTIONS("/healthz", handler.Health)
	r.GET("/readyz", handler.Readiness(d.Readiness))

	// 認証不要
	auth := r.Group("/auth")
	{
		credentials := auth.Group("")
		if d.Limiter != nil {
			credentials.Use(middleware.RateLimit(d.Limiter))
		}
		// 新規ユーザー登録（セッション発行）
		credentials.POST("/signup", d.Auth.SignUp)
		// ログイン（セッション発行）
		credentials.POST("/signin", d.Auth.SignIn)

		auth.POST("/signout", d.Auth.SignOut)
		auth.GET("/session", d.Auth.Session)
	}

	// 認証必須のルート
	// → Authorization: Bearer <token> ヘッダーに有効なセッションが必要になる
	protected := auth.Group("", middleware.AuthRequired(d.Validator))
	{
		protected.GET("/me", d.Auth.Me)
		protected.POST("/signout/all", d.Auth.SignOutAll)
	}

	return r
}

// requestLogger writes one structured log line per request.
// The query string is never logged.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		level := slog.LevelInfo
		if c.Writer.Status() >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		slog.Log(c.Request.Context(), level, "http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"remote_addr", c.ClientIP(),
		)
	}
}
