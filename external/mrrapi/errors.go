package mrrapi

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	crerr "github.com/cockroachdb/errors"
)

// Domain error kinds the admin surface branches on. The raw *APIError stays
// in the chain for callers that need the exact status.
var (
	ErrPlayerNotFound      = crerr.New("player not found")
	ErrPlayerAlreadyExists = crerr.New("player already exists")
	ErrReviewNotFound      = crerr.New("review not found")
	ErrNoSession           = crerr.New("no active session")
)

var errTransient = crerr.New("mrr backend transient failure")

// APIError carries the HTTP status and the server-extracted message for any
// non-2xx response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if strings.TrimSpace(e.Message) == "" {
		return fmt.Sprintf("backend status=%d", e.StatusCode)
	}
	return fmt.Sprintf("backend status=%d message=%s", e.StatusCode, e.Message)
}

func apiErrorStatus(err error) (int, bool) {
	var apiErr *APIError
	if stderrors.As(err, &apiErr) {
		return apiErr.StatusCode, true
	}
	return 0, false
}

func IsNotFound(err error) bool {
	status, ok := apiErrorStatus(err)
	return ok && status == http.StatusNotFound
}

func IsConflict(err error) bool {
	status, ok := apiErrorStatus(err)
	return ok && status == http.StatusConflict
}

func IsForbidden(err error) bool {
	status, ok := apiErrorStatus(err)
	return ok && status == http.StatusForbidden
}

func IsServerError(err error) bool {
	status, ok := apiErrorStatus(err)
	return ok && status >= 500
}

func isRetryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

var cooldownDatePatterns = []struct {
	re     *regexp.Regexp
	layout string
}{
	{regexp.MustCompile(`\d{4}-\d{2}-\d{2}`), "2006-01-02"},
	{regexp.MustCompile(`\d{2}\.\d{2}\.\d{4}`), "02.01.2006"},
}

// CooldownDate digs the next-allowed review date out of a 403/409 error
// message. The backend only reports the cooldown as free text today, so this
// stays a pattern match isolated here; once the backend grows a structured
// code this function goes away.
func CooldownDate(err error) (time.Time, bool) {
	var apiErr *APIError
	if !stderrors.As(err, &apiErr) {
		return time.Time{}, false
	}
	if apiErr.StatusCode != http.StatusForbidden && apiErr.StatusCode != http.StatusConflict {
		return time.Time{}, false
	}

	for _, pattern := range cooldownDatePatterns {
		match := pattern.re.FindString(apiErr.Message)
		if match == "" {
			continue
		}
		parsed, parseErr := time.Parse(pattern.layout, match)
		if parseErr != nil {
			continue
		}
		return parsed, true
	}

	return time.Time{}, false
}
