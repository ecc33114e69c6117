package middleware

import (
	"encoding/json"
	"net/http"
	"time"
)

// DefaultRequestTimeout is the default request timeout (30 seconds)
const DefaultRequestTimeout = 30 * time.Second

// timeoutBody is written when a handler overruns its deadline.
var timeoutBody = func() string {
	b, _ := json.Marshal(ErrorResponse{Error: "internal", Message: "Request Timeout"})
	return string(b)
}()

// Timeout cancels the handler's context at the deadline, which also aborts the upstream
// model call, and answers 503 with a JSON body.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	return func(next http.Handler) http.Handler {
		th := http.TimeoutHandler(next, timeout, timeoutBody)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Replaced by the handler's own headers when it finishes in time.
			w.Header().Set("Content-Type", "application/json")
			th.ServeHTTP(w, r)
		})
	}
}
