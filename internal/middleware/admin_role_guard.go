package middleware

import (
	"net/http"

	"github.com/Kimbarona/dream-pack-store-be-sub000/internal/domain/model"
	"github.com/Kimbarona/dream-pack-store-be-sub000/internal/usecase"

	"github.com/labstack/echo/v4"
)

//contextに入っているroleがADMINかどうかを確認します。

func AdminRoleGuard() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, ok := c.Get(CtxUserRoleKey).(string)
			if !ok || role == "" {
				return errUnauthorized()
			}

			//USERは拒否、ADMINだけ許可
			if model.Role(role) != model.RoleAdmin {
				return usecase.NewHTTPError(http.StatusForbidden, usecase.CodeUnauthorized, "admin only")
			}

			return next(c)
		}
	}
}
