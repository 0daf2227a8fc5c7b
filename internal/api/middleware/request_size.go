package middleware

import (
	"fmt"
	"net/http"

	"github.com/Togather-Foundation/rsvp/internal/api/problem"
)

const (
	// DefaultMaxBodySize caps JSON bodies.
	DefaultMaxBodySize int64 = 1 << 20

	// multipartOverhead is allowed on top of the image limit for the other
	// form fields and part headers.
	multipartOverhead int64 = 1 << 20
)

// RequestSize caps request bodies at maxBytes. A declared Content-Length over
// the cap is refused with 413 before the handler runs; otherwise the body is
// wrapped in http.MaxBytesReader and handlers see *http.MaxBytesError when a
// chunked body runs past the cap.
func RequestSize(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				err := &http.MaxBytesError{Limit: maxBytes}
				problem.Write(w, r, http.StatusRequestEntityTooLarge, problem.TypePayloadTooLarge, "Payload too large", err, "",
					problem.WithDetail(fmt.Sprintf("request body exceeds %d bytes", maxBytes)))
				return
			}
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// PublicRequestSize limits JSON request bodies to DefaultMaxBodySize.
func PublicRequestSize() func(http.Handler) http.Handler {
	return RequestSize(DefaultMaxBodySize)
}

// UploadRequestSize limits multipart bodies carrying an image of at most
// maxImageBytes.
func UploadRequestSize(maxImageBytes int64) func(http.Handler) http.Handler {
	return RequestSize(maxImageBytes + multipartOverhead)
}
