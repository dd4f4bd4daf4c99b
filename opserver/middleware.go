/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package opserver

import (
	"fmt"
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/xid"

	"github.com/acronis/go-raterelay/log"
)

const headerRequestID = "X-Request-ID"

// requestID reads X-Request-ID request header, generates a new one if it's empty and returns it in the response.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(headerRequestID)
		if id == "" {
			id = xid.New().String()
			r.Header.Set(headerRequestID, id)
		}
		rw.Header().Set(headerRequestID, id)
		next.ServeHTTP(rw, r)
	})
}

// logging logs completed requests. Requests to quiet endpoints are logged only if they fail.
func logging(logger log.FieldLogger, quietEndpoints ...string) func(next http.Handler) http.Handler {
	quiet := make(map[string]struct{}, len(quietEndpoints))
	for _, e := range quietEndpoints {
		quiet[e] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			startTime := time.Now()
			wrw := chimiddleware.NewWrapResponseWriter(rw, r.ProtoMajor)
			next.ServeHTTP(wrw, r)

			status := wrw.Status()
			if status == 0 {
				status = http.StatusOK
			}
			if _, ok := quiet[r.URL.Path]; ok && status < http.StatusBadRequest {
				return
			}
			duration := time.Since(startTime)
			logger.Info(fmt.Sprintf("response completed in %.3fs", duration.Seconds()),
				log.String("request_id", r.Header.Get(headerRequestID)),
				log.String("method", r.Method),
				log.String("uri", r.RequestURI),
				log.String("remote_addr", r.RemoteAddr),
				log.Int64("duration_ms", duration.Milliseconds()),
				log.Int("status", status),
				log.Int("bytes_sent", wrw.BytesWritten()),
			)
		})
	}
}
