package httpserver

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	apperrors "github.com/pscheid92/wspush/internal/platform/errors"
)

const maxJSONBodySize = 1 << 20

// envelope is the success body: {"code":0,"message":"ok","data":...}.
type envelope struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

// writeOK sends body inside the success envelope. A map that already has
// both "code" and "message" is sent unchanged; nil becomes {}.
func writeOK(c echo.Context, body any) error {
	if body == nil {
		body = map[string]any{}
	}

	if m, ok := body.(map[string]any); ok {
		_, hasCode := m["code"]
		_, hasMessage := m["message"]
		if hasCode && hasMessage {
			return c.JSON(http.StatusOK, m)
		}
	}

	return c.JSON(http.StatusOK, envelope{Code: 0, Message: "ok", Data: body})
}

// bindJSON decodes a JSON request body into v. The content type must be
// application/json; an empty body decodes as {}.
func bindJSON(c echo.Context, v any) error {
	req := c.Request()
	if !strings.HasPrefix(req.Header.Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		return apperrors.ValidationError("request body is not JSON")
	}

	body, err := io.ReadAll(io.LimitReader(req.Body, maxJSONBodySize))
	if err != nil {
		return apperrors.InternalError("", fmt.Errorf("failed to read request body: %w", err))
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		body = []byte("{}")
	}

	if err := json.Unmarshal(body, v); err != nil {
		return apperrors.ValidationError("request body is not valid JSON").WithDetail(err.Error())
	}
	return nil
}
