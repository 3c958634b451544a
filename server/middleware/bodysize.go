package middleware

import (
	"net/http"

	apperrors "github.com/kbukum/captiongen/errors"
	"github.com/kbukum/captiongen/util"
)

// BodySizeLimit caps request bodies at limit bytes. Requests that declare a
// larger Content-Length are rejected with 413 up front; chunked bodies fail
// with *http.MaxBytesError when read past the limit. limit <= 0 disables it.
func BodySizeLimit(limit int64) Middleware {
	return func(next http.Handler) http.Handler {
		if limit <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > limit {
				writeError(w, apperrors.PayloadTooLarge(util.FormatSize(limit)))
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, limit)
			next.ServeHTTP(w, r)
		})
	}
}
