package logging

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"time"
)

// StatusWriter wraps a http.ResponseWriter to capture the status code
// and byte count an access log entry needs, since neither is
// otherwise observable after the handler returns.
type StatusWriter struct {
	writer http.ResponseWriter
	code   int
	bytes  int64
}

func (w *StatusWriter) Write(data []byte) (count int, err error) {
	count, err = w.writer.Write(data)
	w.bytes += int64(count)
	return
}

func (w *StatusWriter) WriteHeader(code int) {
	if code == 0 {
		code = http.StatusOK
	}
	w.writer.WriteHeader(code)
	w.code = code
}

func (w *StatusWriter) Header() http.Header {
	return w.writer.Header()
}

func (w *StatusWriter) Flush() {
	if f, ok := w.writer.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *StatusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hij, ok := w.writer.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("logging: underlying ResponseWriter does not support hijacking")
	}
	return hij.Hijack()
}

// AccessLogMiddleware wraps next so that every request it serves is
// recorded to al once the handler returns.
func AccessLogMiddleware(al *AccessLogger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &StatusWriter{writer: w}
		start := time.Now()

		next.ServeHTTP(sw, r)

		if sw.code == 0 {
			sw.code = http.StatusOK
		}

		al.Log(&AccessEntry{
			Request:      r,
			StatusCode:   sw.code,
			ResponseSize: sw.bytes,
			Duration:     time.Since(start),
			RequestTime:  start,
			RequestID:    sw.Header().Get("X-Request-Id"),
		})
	})
}
