package httputil

import (
	"fmt"
	"io"
	"net/http"

	"github.com/andybalholm/brotli"
	"github.com/pierrec/lz4/v4"
)

// DecompressPayload replaces the body of requests sent with a brotli or lz4
// content encoding by a decompressing reader. Other encodings are refused.
func DecompressPayload(next http.Handler) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()

		switch encoding := r.Header.Get("Content-Encoding"); encoding {
		case "", "identity":
		case "br":
			r.Body = io.NopCloser(brotli.NewReader(r.Body))
		case "lz4":
			r.Body = io.NopCloser(lz4.NewReader(r.Body))
		default:
			http.Error(w, fmt.Sprintf("unsupported content encoding %q", encoding), http.StatusUnsupportedMediaType)
			return
		}

		next.ServeHTTP(w, r)
	})
}
