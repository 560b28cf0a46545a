package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/Kimbarona/dream-pack-store-be-sub000/internal/usecase"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const (
	CtxUserIDKey   = "user_id"   // string(uuid)
	CtxUserRoleKey = "user_role" // string
)

func errUnauthorized() error {
	return usecase.NewHTTPError(http.StatusUnauthorized, usecase.CodeUnauthorized, "unauthorized")
}

// bearerAuth用のJWT検証ミドルウェア。
func AuthJWT(secret string) echo.MiddlewareFunc {
	key := []byte(secret)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			//Authorizationヘッダを取得
			authz := c.Request().Header.Get("Authorization")
			if authz == "" {
				return errUnauthorized()
			}

			//Bearer形式か確認してtokenを抜く
			parts := strings.SplitN(authz, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				return errUnauthorized()
			}
			rawToken := strings.TrimSpace(parts[1])
			if rawToken == "" {
				return errUnauthorized()
			}

			//JWTをパースして検証する（exp も見る）
			token, err := jwt.Parse(rawToken, func(t *jwt.Token) (interface{}, error) {
				if t.Method != jwt.SigningMethodHS256 {
					return nil, errors.New("unexpected signing method")
				}
				return key, nil
			})
			if err != nil || token == nil || !token.Valid {
				return errUnauthorized()
			}

			//claimsを取り出す
			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				return errUnauthorized()
			}

			//user_id（uuid）を取り出す
			sub, _ := claims["sub"].(string)
			if _, err := uuid.Parse(sub); err != nil {
				return errUnauthorized()
			}

			//roleを取り出す（USER/ADMIN）
			role, _ := claims["role"].(string)
			if role == "" {
				return errUnauthorized()
			}

			//contextへ保存
			c.Set(CtxUserIDKey, sub)
			c.Set(CtxUserRoleKey, role)

			return next(c)
		}
	}
}

// UserID は AuthJWT が入れたユーザーIDを返す。
func UserID(c echo.Context) (string, bool) {
	id, ok := c.Get(CtxUserIDKey).(string)
	return id, ok && id != ""
}
