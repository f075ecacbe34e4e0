// Package dto はauthフィーチャーのHTTPトランスポート層のデータ転送オブジェクトを定義します。
package dto

// SignupReq は/auth/signupエンドポイントのリクエストボディを表します。
// 必須フィールドのみGinのbindingタグで検証します。
// メール形式は前後の空白を除去・小文字化した後にユースケース層で検証します。
type SignupReq struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}
