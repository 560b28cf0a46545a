package validator

import (
	"regexp"
	"strings"

	"github.com/Kimbarona/dream-pack-store-be-sub000/internal/usecase"
)

// パスワード最低文字数
const minPasswordLen = 8

var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

type authValidator struct{}

// Usecaseは interface を依存注入
func NewAuthValidator() usecase.AuthValidator {
	return authValidator{}
}

// サインアップの入力を検証
func (authValidator) ValidateRegister(email string, password string) map[string]string {
	fields := map[string]string{}
	email = strings.TrimSpace(email)

	// email形式
	switch {
	case email == "":
		fields["email"] = "is required"
	case !isEmailLike(email):
		fields["email"] = "is not a valid email"
	}

	switch {
	case password == "":
		fields["password"] = "is required"
	case len(password) < minPasswordLen:
		fields["password"] = "must be at least 8 characters"
	}
	return fields
}

// ログインの入力を検証
func (authValidator) ValidateLogin(email string, password string) map[string]string {
	fields := map[string]string{}
	if strings.TrimSpace(email) == "" {
		fields["email"] = "is required"
	} else if !isEmailLike(strings.TrimSpace(email)) {
		fields["email"] = "is not a valid email"
	}
	if password == "" {
		fields["password"] = "is required"
	}
	return fields
}

// 簡易メール形式をチェック
func isEmailLike(s string) bool {
	return emailRe.MatchString(s)
}
