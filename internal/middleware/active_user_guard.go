package middleware

import (
	"net/http"

	"github.com/Kimbarona/dream-pack-store-be-sub000/internal/repository"
	"github.com/Kimbarona/dream-pack-store-be-sub000/internal/usecase"

	"github.com/labstack/echo/v4"
)

// ActiveUserGuard はトークンのユーザーがまだ存在し、停止されていないか確認する。
// 停止・削除されたユーザーのトークンは有効期限内でも 401。
func ActiveUserGuard(userRepo repository.UserRepository) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			//AuthJWTが入れたuser_id を取得する
			userID, ok := UserID(c)
			if !ok {
				return errUnauthorized()
			}

			//DBから最新のuserを取得する
			user, err := userRepo.FindByID(c.Request().Context(), userID)
			if err != nil {
				return errUnauthorized()
			}
			if !user.IsActive {
				return usecase.NewHTTPError(http.StatusForbidden, usecase.CodeUnauthorized, "user is inactive")
			}

			// ロールはトークンではなくDBの値を信じる
			c.Set(CtxUserRoleKey, string(user.Role))
			return next(c)
		}
	}
}
