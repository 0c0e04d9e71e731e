package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/rs/zerolog"

	"github.com/windforecast/windforecast/internal/api/models"
)

// Recovery turns a handler panic into a 500 problem and an error log line
// carrying the route and, on the refresh route, the operator. A panic after
// the handler started writing only logs, since the status is already sent.
// http.ErrAbortHandler is re-raised so the server drops the connection.
func Recovery(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := newStatusRecorder(w)
			defer func() {
				v := recover()
				if v == nil {
					return
				}
				if err, ok := v.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(v)
				}

				requestID := GetRequestID(r.Context())
				event := log.Error().
					Str("request_id", requestID).
					Str("method", r.Method).
					Str("route", routePattern(r)).
					Str("panic", fmt.Sprint(v)).
					Bytes("stack", debug.Stack()).
					Bool("response_started", rec.wroteHeader)
				if operatorID := GetOperatorID(r.Context()); operatorID != "" {
					event = event.Str("operator_id", operatorID)
				}
				event.Msg("panic recovered")

				if rec.wroteHeader {
					return
				}
				models.NewProblem(models.KindInternal, requestID, "an unexpected error occurred").
					At(r.URL.Path).
					Write(w)
			}()

			next.ServeHTTP(rec, r)
		})
	}
}
