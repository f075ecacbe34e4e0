package dto

// SigninReq は/auth/signinエンドポイントのリクエストボディを表します。
// 空のフィールドも認証失敗と同じ401で返すため、bindingタグは付けません。
type SigninReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
