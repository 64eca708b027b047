package server

import (
	"net/http"

	"github.com/klauspost/compress/gzhttp"
)

// compressionMiddleware gzips text responses. Stored files go out as
// application/octet-stream and are left alone, so ranges keep working.
func compressionMiddleware() func(http.Handler) http.Handler {
	wrap, err := gzhttp.NewWrapper(
		gzhttp.MinSize(1024),
		gzhttp.ExceptContentTypes([]string{"application/octet-stream"}),
	)
	if err != nil {
		// Only reachable with invalid static options.
		panic(err)
	}
	return func(next http.Handler) http.Handler {
		return wrap(next)
	}
}
