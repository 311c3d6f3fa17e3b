package http

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"strconv"
	"time"

	"github.com/halcyonlabs/idcore/internal/observability/logger"
	"github.com/halcyonlabs/idcore/internal/rate"
)

// WithRequestID asigna un X-Request-ID si el cliente no trae uno y propaga
// el logger enriquecido por el contexto del request.
func WithRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := r.Header.Get("X-Request-ID")
		if rid == "" {
			b := make([]byte, 8)
			_, _ = rand.Read(b)
			rid = hex.EncodeToString(b)
		}
		w.Header().Set("X-Request-ID", rid)

		log := logger.From(r.Context()).With(logger.RequestID(rid))
		next.ServeHTTP(w, r.WithContext(logger.ToContext(r.Context(), log)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

// WithLogging loguea cada request con método, path, status y duración.
func WithLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sr := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sr, r)

		logger.From(r.Context()).Info("request",
			logger.Layer("handler"),
			logger.Method(r.Method),
			logger.Path(r.URL.Path),
			logger.Status(sr.status),
			logger.Duration(time.Since(start)),
			logger.ClientIP(clientIP(r)),
		)
	})
}

// WithRecover captura panics de handlers y responde 500.
func WithRecover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.From(r.Context()).Error("panic en handler",
					logger.Path(r.URL.Path),
					logger.String("panic", toString(rec)),
				)
				WriteError(w, http.StatusInternalServerError, "internal_error", "error interno")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// WithSecurityHeaders inyecta cabeceras de defensa por defecto para una API.
func WithSecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		next.ServeHTTP(w, r)
	})
}

// WithRateLimit frena intentos por IP sobre los endpoints de autenticación.
// Un limiter caído no corta el servicio: se loguea y se deja pasar.
func WithRateLimit(l rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, err := l.Allow(r.Context(), clientIP(r))
			if err != nil {
				logger.From(r.Context()).Warn("rate limiter no disponible",
					logger.Component("rate"),
					logger.Err(err),
				)
				next.ServeHTTP(w, r)
				return
			}
			if !res.Allowed {
				secs := int(res.RetryAfter.Seconds())
				if secs < 1 {
					secs = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				WriteError(w, http.StatusTooManyRequests, "rate_limited", "demasiados intentos, probá más tarde")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	return r.RemoteAddr
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	if err, ok := v.(error); ok {
		return err.Error()
	}
	return "panic"
}
