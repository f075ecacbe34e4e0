package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"snote_backend/internal/feature/auth/domain"
	"snote_backend/internal/feature/auth/domain/entity"
)

const (
	// minPasswordLength はパスワードの最低文字数を定義します。
	minPasswordLength = 6
	// maxPasswordBytes はbcryptが扱える入力の上限バイト数です。
	maxPasswordBytes = 72

	// dummyPasswordHash はユーザーが存在しない場合のタイミング攻撃緩和用のbcryptハッシュです（cost 10）。
	dummyPasswordHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"
)

// validate はトランスポート層に依存しない入力検証に使います。
var validate = validator.New()

// メトリクスに記録する結果ラベル。
const (
	ResultSuccess            = "success"
	ResultValidation         = "validation_error"
	ResultDuplicate          = "duplicate_email"
	ResultInvalidCredentials = "invalid_credentials"
	ResultError              = "error"
)

// authUsecase は認証ビジネスロジックを実装します。
// 永続的な状態は持たず、ストア・ハッシャー間の調整のみを行います。
type authUsecase struct {
	users        UserRepository
	sessions     *SessionStore
	hasher       PasswordHasher
	metrics      Metrics
	storeTimeout time.Duration
}

// Option はauthUsecaseの設定を変更します。
type Option func(*authUsecase)

// WithMetrics は認証結果を記録するMetricsを設定します。
func WithMetrics(m Metrics) Option {
	return func(u *authUsecase) {
		if m != nil {
			u.metrics = m
		}
	}
}

// WithUserStoreTimeout はユーザーストア呼び出し1回あたりのタイムアウトを設定します。
func WithUserStoreTimeout(d time.Duration) Option {
	return func(u *authUsecase) {
		if d > 0 {
			u.storeTimeout = d
		}
	}
}

// NewAuthUsecase はauthUsecaseの新しいインスタンスを生成します。
func NewAuthUsecase(users UserRepository, sessions *SessionStore, hasher PasswordHasher, opts ...Option) *authUsecase {
	u := &authUsecase{
		users:        users,
		sessions:     sessions,
		hasher:       hasher,
		metrics:      noopMetrics{},
		storeTimeout: DefaultStoreTimeout,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// validateCredentials はメールアドレスとパスワードが要件を満たしているかチェックします。
func validateCredentials(email, password string) error {
	if email == "" {
		return fmt.Errorf("%w: email is required", domain.ErrValidation)
	}
	if err := validate.Var(email, "required,email"); err != nil {
		return fmt.Errorf("%w: email is malformed", domain.ErrValidation)
	}
	if utf8.RuneCountInString(password) < minPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters long", domain.ErrValidation, minPasswordLength)
	}
	if len(password) > maxPasswordBytes {
		return fmt.Errorf("%w: password must be at most %d bytes long", domain.ErrValidation, maxPasswordBytes)
	}
	return nil
}

// SignUp はハッシュ化されたパスワードで新規ユーザーを登録し、そのままセッションを発行します。
// 自動リトライは行いません（二重登録を防ぐため）。
func (u *authUsecase) SignUp(ctx context.Context, email, password string) (string, error) {
	email = entity.NormalizeEmail(email)
	if err := validateCredentials(email, password); err != nil {
		u.metrics.ObserveSignUp(ResultValidation)
		return "", err
	}

	hashed, err := u.hasher.Hash(ctx, password)
	if err != nil {
		u.metrics.ObserveSignUp(ResultError)
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	user := &entity.User{ID: uuid.NewString(), Email: email, Password: hashed}
	if err := u.createUser(ctx, user); err != nil {
		if errors.Is(err, ErrEmailAlreadyExists) {
			u.metrics.ObserveSignUp(ResultDuplicate)
			return "", domain.ErrDuplicateEmail
		}
		u.metrics.ObserveSignUp(ResultError)
		return "", fmt.Errorf("%w: create user: %w", domain.ErrStorageUnavailable, err)
	}

	token, err := u.sessions.Create(ctx, user.ID)
	if err != nil {
		u.metrics.ObserveSignUp(ResultError)
		return "", err
	}
	u.metrics.ObserveSignUp(ResultSuccess)
	return token, nil
}

// SignIn はユーザーを認証し、成功時に新しいセッショントークンを返します。
// ユーザー未検出とパスワード不一致は同一のエラーを返します。
// タイミング攻撃を防止するため、ユーザーが存在しない場合でもbcrypt比較を実行します。
// bcryptは先頭72バイトしか比較しないため、それを超えるパスワードはダミーハッシュと比較した上で拒否します。
func (u *authUsecase) SignIn(ctx context.Context, email, password string) (string, error) {
	email = entity.NormalizeEmail(email)

	user, err := u.findUserByEmail(ctx, email)
	passwordHash := dummyPasswordHash
	switch {
	case err == nil:
		passwordHash = user.Password
	case errors.Is(err, ErrUserNotFound):
		user = nil
	default:
		u.metrics.ObserveSignIn(ResultError)
		return "", fmt.Errorf("%w: find user: %w", domain.ErrStorageUnavailable, err)
	}

	if len(password) > maxPasswordBytes {
		user = nil
		passwordHash = dummyPasswordHash
		password = password[:maxPasswordBytes]
	}

	// 第1引数は平文パスワード、第2引数はハッシュ化パスワード
	ok, err := u.hasher.Verify(ctx, password, passwordHash)
	if err != nil {
		u.metrics.ObserveSignIn(ResultError)
		return "", fmt.Errorf("failed to verify password: %w", err)
	}
	if user == nil || !ok {
		u.metrics.ObserveSignIn(ResultInvalidCredentials)
		return "", domain.ErrInvalidCredentials
	}

	token, err := u.sessions.Create(ctx, user.ID)
	if err != nil {
		u.metrics.ObserveSignIn(ResultError)
		return "", err
	}
	u.metrics.ObserveSignIn(ResultSuccess)
	return token, nil
}

// SignOut はセッションを削除します。呼び出し元から見て常に成功します。
func (u *authUsecase) SignOut(ctx context.Context, token string) {
	if err := u.sessions.Delete(ctx, token); err != nil {
		slog.Warn("sign out: failed to delete session", "error", err)
	}
}

// SignOutEverywhere は指定ユーザーの全セッションを削除します。
func (u *authUsecase) SignOutEverywhere(ctx context.Context, userID string) error {
	return u.sessions.DeleteAllForUser(ctx, userID)
}

// ValidateRequest は保護されたすべての操作が通過するゲートです。
// 有効なセッションであればユーザーIDを返し、それ以外はdomain.ErrUnauthenticatedを返します。
// ストア障害時はdomain.ErrStorageUnavailableをラップしたエラーを返します（フェイルクローズ）。
func (u *authUsecase) ValidateRequest(ctx context.Context, token string) (string, error) {
	userID, err := u.sessions.Lookup(ctx, token)
	if err != nil {
		if errors.Is(err, ErrInvalidSession) {
			return "", domain.ErrUnauthenticated
		}
		return "", err
	}
	return userID, nil
}

// CurrentUser は認証済みユーザーの情報を返します。
// セッションが残っていてもユーザーが削除済みの場合は未認証として扱います。
func (u *authUsecase) CurrentUser(ctx context.Context, userID string) (*entity.User, error) {
	ctx, cancel := context.WithTimeout(ctx, u.storeTimeout)
	defer cancel()

	user, err := u.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, domain.ErrUnauthenticated
		}
		return nil, fmt.Errorf("%w: find user: %w", domain.ErrStorageUnavailable, err)
	}
	return user, nil
}

// SweepExpiredSessions は期限切れセッションを削除し、削除件数を返します。
func (u *authUsecase) SweepExpiredSessions(ctx context.Context) (int64, error) {
	n, err := u.sessions.SweepExpired(ctx)
	if err != nil {
		return 0, err
	}
	u.metrics.ObserveSessionsSwept(n)
	return n, nil
}

func (u *authUsecase) createUser(ctx context.Context, user *entity.User) error {
	ctx, cancel := context.WithTimeout(ctx, u.storeTimeout)
	defer cancel()
	return u.users.Create(ctx, user)
}

func (u *authUsecase) findUserByEmail(ctx context.Context, email string) (*entity.User, error) {
	ctx, cancel := context.WithTimeout(ctx, u.storeTimeout)
	defer cancel()
	return u.users.FindByEmail(ctx, email)
}
