package middleware

import (
	"strconv"
	"time"

	"github.com/Kimbarona/dream-pack-store-be-sub000/internal/observability"

	"github.com/labstack/echo/v4"
)

// Metrics はルート単位のレイテンシを記録する。ラベルは登録パスなので増えすぎない。
func Metrics(m *observability.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			m.HTTPRequestDuration.
				WithLabelValues(c.Request().Method, route, strconv.Itoa(c.Response().Status)).
				Observe(time.Since(start).Seconds())
			return nil
		}
	}
}
