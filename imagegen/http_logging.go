// ABOUTME: Request logging middleware for the generation API in the log.Printf key=value style.
// ABOUTME: Tags each request with an X-Request-ID and records status, size and latency.
package imagegen

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
)

const requestIDHeader = "X-Request-ID"

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(p []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(p)
	r.bytes += n
	return n, err
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)

		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)

		status := rec.status
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)
		requestDuration.WithLabelValues(r.Method, strconv.Itoa(status)).Observe(elapsed.Seconds())
		log.Printf("component=imagegen action=request request_id=%s method=%s path=%s status=%d bytes=%d duration=%s remote=%s",
			id,
			r.Method,
			r.URL.Path,
			status,
			rec.bytes,
			elapsed.Round(time.Microsecond),
			r.RemoteAddr,
		)
	})
}
