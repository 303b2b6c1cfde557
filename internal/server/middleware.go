package server

import (
	"net/http"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/fleetroute/internal/places"
	"github.com/desertthunder/fleetroute/internal/shared"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Logging logs one line per request with its status and duration.
func Logging(logger *log.Logger) Middleware {
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	logger = shared.WithLogger(logger, "component", "http")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			logger.Info("request", "method", r.Method, "path", r.URL.Path, "status", rec.status, "duration", time.Since(start))
		})
	}
}

// Recover turns a handler panic into an UNKNOWN_ERROR answer.
func Recover(logger *log.Logger) Middleware {
	if logger == nil {
		logger = shared.DiscardLogger()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if v := recover(); v != nil {
					logger.Error("handler panic", "path", r.URL.Path, "panic", v)
					writeJSON(w, places.DetailsResponse{Status: places.StatusUnknownError, ErrorMessage: internalError})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
