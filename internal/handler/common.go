package handler // handler translates HTTP requests into service calls

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/book-panel/internal/repository"
)

// errorBody is the JSON shape of every failed response.
type errorBody struct {
	Error string `json:"error"`
}

// statusOf maps an error kind to its HTTP status.
func statusOf(err error) int {
	switch repository.KindOf(err) {
	case repository.KindValidation:
		return http.StatusBadRequest
	case repository.KindNotFound:
		return http.StatusNotFound
	case repository.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err as {"error": message}.  Store failures are logged with
// the request they belong to and their cause is not echoed to the client.
func fail(c echo.Context, log *zap.Logger, err error) error {
	status := statusOf(err)
	msg := repository.Message(err)
	if status >= http.StatusInternalServerError {
		log.Error("request failed",
			zap.String("method", c.Request().Method),
			zap.String("uri", c.Request().RequestURI),
			zap.Error(err),
		)
	}
	return c.JSON(status, errorBody{Error: msg})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, errorBody{Error: msg})
}

// pathID parses a positive integer path parameter.
func pathID(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, repository.Validationf("invalid %s", name)
	}
	return id, nil
}

// queryIDs collects integer values of a repeated or comma separated query
// parameter (?languageId=1&languageId=2 or ?languageId=1,2).
func queryIDs(c echo.Context, name string) ([]int64, error) {
	var ids []int64
	for _, raw := range queryList(c, name) {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, repository.Validationf("invalid %s %q", name, raw)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// queryList returns the non-empty values of a repeated or comma separated
// query parameter.
func queryList(c echo.Context, name string) []string {
	var out []string
	for _, v := range c.QueryParams()[name] {
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

// queryInt parses an optional integer query parameter.
func queryInt(c echo.Context, name string) (*int64, error) {
	raw := strings.TrimSpace(c.QueryParam(name))
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, repository.Validationf("invalid %s %q", name, raw)
	}
	return &n, nil
}
