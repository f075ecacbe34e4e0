// Package handler はauthフィーチャーのHTTPハンドラーを提供します。
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"snote_backend/internal/feature/auth/domain"
	"snote_backend/internal/feature/auth/domain/entity"
	"snote_backend/internal/feature/auth/transport/http/dto"
	"snote_backend/internal/feature/auth/transport/middleware"
)

// AuthUsecase は認証操作のユースケースを定義します。
// Goの慣例に従い、インターフェースはプロバイダー（usecase）ではなくコンシューマー（handler）が定義します。
type AuthUsecase interface {
	// SignUp は新規ユーザーを登録し、セッショントークンを返します。
	SignUp(ctx context.Context, email, password string) (string, error)
	// SignIn はユーザーを認証し、成功時に新しいセッショントークンを返します。
	SignIn(ctx context.Context, email, password string) (string, error)
	// SignOut はトークンのセッションを削除します。失敗は呼び出し元に返しません。
	SignOut(ctx context.Context, token string)
	// SignOutEverywhere はユーザーの全セッションを削除します。
	SignOutEverywhere(ctx context.Context, userID string) error
	// ValidateRequest はトークンが有効なセッションであればユーザーIDを返します。
	ValidateRequest(ctx context.Context, token string) (string, error)
	// CurrentUser はユーザー情報を返します。
	CurrentUser(ctx context.Context, userID string) (*entity.User, error)
}

// AuthHandler は認証操作のHTTPリクエストを処理します。
type AuthHandler struct {
	auth AuthUsecase
}

// NewAuthHandler はAuthHandlerの新しいインスタンスを生成します。
func NewAuthHandler(auth AuthUsecase) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// SignUp はユーザー登録APIエンドポイントを処理します。
// - JSONが不正な場合は400を返却
// - 入力値が要件を満たさない場合は400を返却
// - メールアドレスが登録済みの場合は409を返却
// - 成功時はセッショントークン付きで201を返却
func (h *AuthHandler) SignUp(c *gin.Context) {
	var req dto.SignupReq
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.Warn("signup bind failed", "error", err, "remote_addr", c.ClientIP())
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			field := strings.ToLower(verrs[0].Field())
			c.JSON(http.StatusBadRequest, dto.ErrorRes{Error: domain.ErrValidation.Error() + ": " + field + " is required"})
			return
		}
		c.JSON(http.StatusBadRequest, dto.ErrorRes{Error: "invalid request body"})
		return
	}

	token, err := h.auth.SignUp(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		slog.Warn("signup failed", "error", err, "email", req.Email, "remote_addr", c.ClientIP())
		writeError(c, err)
		return
	}
	slog.Info("user signup successful", "email", req.Email, "remote_addr", c.ClientIP())
	c.JSON(http.StatusCreated, dto.TokenRes{Token: token})
}

// SignIn はユーザーログインAPIエンドポイントを処理します。
// - JSONが不正な場合は400を返却
// - 認証失敗時は原因に関わらず同一の401を返却
// - 認証成功時は新しいセッショントークン付きで200を返却
func (h *AuthHandler) SignIn(c *gin.Context) {
	var req dto.SigninReq
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.Warn("signin bind failed", "error", err, "remote_addr", c.ClientIP())
		c.JSON(http.StatusBadRequest, dto.ErrorRes{Error: "invalid request body"})
		return
	}

	token, err := h.auth.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		// ユーザー列挙攻撃を防止するため、実際のエラーを公開しない
		slog.Warn("signin failed", "error", err, "email", req.Email, "remote_addr", c.ClientIP())
		writeError(c, err)
		return
	}
	slog.Info("user signin successful", "email", req.Email, "remote_addr", c.ClientIP())
	c.JSON(http.StatusOK, dto.TokenRes{Token: token})
}

// SignOut はログアウトAPIエンドポイントを処理します。
// トークンの有無や有効性に関わらず常に200を返します。
func (h *AuthHandler) SignOut(c *gin.Context) {
	if token, ok := middleware.BearerToken(c); ok {
		h.auth.SignOut(c.Request.Context(), token)
	}
	c.JSON(http.StatusOK, dto.EmptyRes{})
}

// Session はトークンが有効なセッションかどうかを返します。
// ストアに到達できない場合は有効とみなさず503を返します。
func (h *AuthHandler) Session(c *gin.Context) {
	token, ok := middleware.BearerToken(c)
	if !ok {
		c.JSON(http.StatusOK, dto.SessionRes{Valid: false})
		return
	}

	userID, err := h.auth.ValidateRequest(c.Request.Context(), token)
	if err != nil {
		if errors.Is(err, domain.ErrUnauthenticated) {
			c.JSON(http.StatusOK, dto.SessionRes{Valid: false})
			return
		}
		slog.Error("session check failed", "error", err, "remote_addr", c.ClientIP())
		c.JSON(http.StatusServiceUnavailable, dto.SessionRes{Valid: false})
		return
	}
	c.JSON(http.StatusOK, dto.SessionRes{Valid: true, UserID: userID})
}

// Me は認証済みユーザーの情報を返します。AuthRequiredミドルウェアの後に登録します。
func (h *AuthHandler) Me(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		writeError(c, domain.ErrUnauthenticated)
		return
	}

	user, err := h.auth.CurrentUser(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.MeRes{UserID: user.ID, Email: user.Email, CreatedAt: user.CreatedAt})
}

// SignOutAll は認証済みユーザーの全セッションを削除します。AuthRequiredミドルウェアの後に登録します。
func (h *AuthHandler) SignOutAll(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		writeError(c, domain.ErrUnauthenticated)
		return
	}

	if err := h.auth.SignOutEverywhere(c.Request.Context(), userID); err != nil {
		slog.Error("signout everywhere failed", "error", err, "user_id", userID)
		writeError(c, err)
		return
	}
	slog.Info("user signed out everywhere", "user_id", userID)
	c.JSON(http.StatusOK, dto.EmptyRes{})
}

// writeError はユースケースのエラーをステータスコードに変換します。
// ラップされた内部エラーの詳細はレスポンスに含めません。
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		// 検証エラーのメッセージはフィールド単位の定型文のみ
		c.JSON(http.StatusBadRequest, dto.ErrorRes{Error: err.Error()})
	case errors.Is(err, domain.ErrDuplicateEmail):
		c.JSON(http.StatusConflict, dto.ErrorRes{Error: domain.ErrDuplicateEmail.Error()})
	case errors.Is(err, domain.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, dto.ErrorRes{Error: domain.ErrInvalidCredentials.Error()})
	case errors.Is(err, domain.ErrUnauthenticated):
		c.JSON(http.StatusUnauthorized, dto.ErrorRes{Error: domain.ErrUnauthenticated.Error()})
	case errors.Is(err, domain.ErrStorageUnavailable):
		c.JSON(http.StatusServiceUnavailable, dto.ErrorRes{Error: "service unavailable"})
	default:
		c.JSON(http.StatusInternalServerError, dto.ErrorRes{Error: "internal server error"})
	}
}
