package middleware

import (
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/pratik-mahalle/ec2inventory/internal/pkg/logger"
)

type logFieldsKey struct{}

// fieldWriter carries the extra fields handlers attach to the request log
type fieldWriter struct {
	chimiddleware.WrapResponseWriter
	fields map[string]interface{}
}

// AddLogField adds a field to the request log
func AddLogField(w http.ResponseWriter, key string, value interface{}) {
	if fw, ok := w.(*fieldWriter); ok {
		fw.fields[key] = value
	}
}

// Logger returns a middleware that logs every request once it has been served.
// Probes and metric scrapes are logged at debug level.
func Logger(log *logger.Logger) func(http.Handler) http.Handler {
	log = log.Component("http")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			fw := &fieldWriter{
				WrapResponseWriter: chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor),
				fields:             make(map[string]interface{}),
			}

			next.ServeHTTP(fw, r)

			status := fw.Status()
			if status == 0 {
				status = http.StatusOK
			}
			fields := map[string]interface{}{
				"method":      r.Method,
				"path":        r.URL.Path,
				"query":       r.URL.RawQuery,
				"status":      status,
				"duration_ms": time.Since(start).Milliseconds(),
				"bytes":       fw.BytesWritten(),
				"ip":          r.RemoteAddr,
				"request_id":  GetRequestID(r),
			}
			for k, v := range fw.fields {
				fields[k] = v
			}

			entry := log.WithFields(fields)
			switch {
			case r.URL.Path == "/health" || r.URL.Path == "/metrics":
				entry.Debug("HTTP request")
			case status >= http.StatusInternalServerError:
				entry.Error("HTTP request")
			default:
				entry.Info("HTTP request")
			}
		})
	}
}
