package middleware

import (
	"mime"
	"net/http"
	"strings"

	"github.com/windforecast/windforecast/internal/api/models"
)

// ContentTypeJSON defaults responses to application/json. Problem responses
// set their own type.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if w.Header().Get("Content-Type") == "" {
			w.Header().Set("Content-Type", "application/json")
		}
		next.ServeHTTP(w, r)
	})
}

// RequireJSON guards the refresh body. Bodies without a Content-Type, and
// empty bodies, pass since both mean "refresh every station". Declared types
// must be JSON (application/json or a +json suffix) in UTF-8.
func RequireJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ct := r.Header.Get("Content-Type")
		if ct == "" || r.ContentLength == 0 {
			next.ServeHTTP(w, r)
			return
		}
		if detail := jsonBodyProblem(ct); detail != "" {
			models.NewProblem(models.KindUnsupportedMedia, GetRequestID(r.Context()), detail).
				At(r.URL.Path).
				Write(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// jsonBodyProblem returns why ct is not an acceptable refresh body type, or
// "" when it is.
func jsonBodyProblem(ct string) string {
	mediaType, params, err := mime.ParseMediaType(ct)
	if err != nil {
		return "Content-Type is malformed"
	}
	if mediaType != "application/json" &&
		!(strings.HasPrefix(mediaType, "application/") && strings.HasSuffix(mediaType, "+json")) {
		return "Content-Type must be application/json, got " + mediaType
	}
	if charset, ok := params["charset"]; ok && !strings.EqualFold(charset, "utf-8") {
		return "request body must be UTF-8, got charset " + charset
	}
	return ""
}
