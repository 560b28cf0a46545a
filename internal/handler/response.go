package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/Kimbarona/dream-pack-store-be-sub000/internal/observability"
	"github.com/Kimbarona/dream-pack-store-be-sub000/internal/usecase"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type SuccessResponse struct {
	Success bool `json:"success"`
	Data    any  `json:"data,omitempty"`
}

type ErrorResponse struct {
	Success bool              `json:"success"`
	Code    usecase.ErrorCode `json:"code"`
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors,omitempty"`
	// デバッグビルドのときだけ
	Debug string `json:"debug,omitempty"`
}

func respond(c echo.Context, status int, data any) error {
	return c.JSON(status, SuccessResponse{Success: true, Data: data})
}

func badRequest(msg string, field string) error {
	e := usecase.NewHTTPError(http.StatusBadRequest, usecase.CodeValidationFailed, msg)
	if field != "" {
		e.Errors = map[string]string{field: msg}
	}
	return e
}

// ErrorHandler は echo のエラーをすべて同じ形のJSONにする。
// debug=false のとき内部の原因は返さない（ログにだけ出す）。
func ErrorHandler(logger *zap.Logger, debug bool) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		he := toHTTPError(err)

		l := observability.FromContext(c.Request().Context(), logger)
		if he.Status >= http.StatusInternalServerError {
			l.Error("request failed",
				zap.Int("status", he.Status),
				zap.String("code", string(he.Code)),
				zap.Error(err),
			)
		}

		body := ErrorResponse{
			Code:    he.Code,
			Message: he.Message,
			Errors:  he.Errors,
		}
		if debug && he.Cause != nil {
			body.Debug = he.Cause.Error()
		}

		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(he.Status)
		} else {
			werr = c.JSON(he.Status, body)
		}
		if werr != nil {
			l.Warn("failed to write error response", zap.Error(werr))
		}
	}
}

func toHTTPError(err error) *usecase.HTTPError {
	if he, ok := usecase.AsHTTPError(err); ok {
		return he
	}
	var ee *echo.HTTPError
	if errors.As(err, &ee) {
		msg := http.StatusText(ee.Code)
		if s, ok := ee.Message.(string); ok && s != "" {
			msg = s
		}
		code := usecase.CodeInternal
		switch {
		case ee.Code == http.StatusNotFound:
			code = usecase.CodeNotFound
		case ee.Code == http.StatusUnauthorized:
			code = usecase.CodeUnauthorized
		case ee.Code == http.StatusTooManyRequests:
			code = usecase.CodeRateLimited
		case ee.Code == http.StatusServiceUnavailable:
			code = usecase.CodeRetryLater
		case ee.Code < http.StatusInternalServerError:
			code = usecase.CodeValidationFailed
		}
		out := usecase.NewHTTPError(ee.Code, code, msg)
		if ee.Internal != nil {
			out = out.WithCause(ee.Internal)
		}
		return out
	}
	return usecase.NewHTTPError(http.StatusInternalServerError, usecase.CodeInternal, "internal error").WithCause(err)
}

// ページング用クエリ（空ならデフォルト）
func queryInt(c echo.Context, name string, def int) (int, error) {
	v := c.QueryParam(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, badRequest("invalid "+name, name)
	}
	return n, nil
}
