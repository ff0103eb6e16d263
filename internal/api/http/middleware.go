package rewards

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	model "github.com/glkeru/loyalty/rewards/internal/models"
	services "github.com/glkeru/loyalty/rewards/internal/services"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// метрики

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rewards_http_requests_total",
			Help: "Кол-во HTTP запросов",
		},
		[]string{"path", "code"},
	)

	httpRequestsError = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rewards_http_errors_total",
			Help: "Кол-во ошибочных HTTP запросов",
		},
		[]string{"path", "code"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rewards_http_request_duration_seconds",
			Help:    "Продолжительность HTTP запросов",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "code"},
	)
)

type ctxKey int

const (
	identityKey ctxKey = iota
	integrationKey
)

type logResponseWriter struct {
	http.ResponseWriter
	status int
}

func (w *logResponseWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// шаблон маршрута, чтобы не плодить метки по ID
func routePath(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return r.URL.Path
}

func MiddlewareLog() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

			reqtime := time.Now()
			logrw := &logResponseWriter{w, http.StatusOK}
			next.ServeHTTP(logrw, r)

			labels := prometheus.Labels{
				"path": routePath(r),
				"code": strconv.Itoa(logrw.status),
			}
			httpRequestsTotal.With(labels).Inc()
			httpRequestDuration.With(labels).Observe(time.Since(reqtime).Seconds())

			if logrw.status >= http.StatusBadRequest {
				httpRequestsError.With(labels).Inc()
			}
		})
	}
}

// Пользователь панели управления
func (h *Handler) MiddlewareIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, err := h.auth.ResolveCallerIdentity(r)
		if err != nil {
			h.fail(w, "MiddlewareIdentity", err)
			return
		}
		if brandID, ok := mux.Vars(r)["brandId"]; ok && !identity.CanAccessBrand(brandID) {
			writeJSON(w, http.StatusForbidden, ErrorResponse{Error: "Access denied to this brand", Code: "forbidden"})
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey, identity)))
	})
}

// Интеграция: X-API-Key или Authorization: Bearer rk_...
func (h *Handler) MiddlewareAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get("X-API-Key")
		if raw == "" {
			if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok && strings.HasPrefix(token, services.APIKeyPrefix) {
				raw = token
			}
		}
		if raw == "" {
			writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "API key is required", Code: "unauthorized"})
			return
		}
		auth, err := h.serv.APIKeys.Verify(r.Context(), raw)
		if err != nil {
			h.fail(w, "MiddlewareAPIKey", err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), integrationKey, auth)))
	})
}

func IdentityFromContext(ctx context.Context) model.Identity {
	identity, _ := ctx.Value(identityKey).(model.Identity)
	return identity
}

func IntegrationFromContext(ctx context.Context) model.IntegrationAuth {
	auth, _ := ctx.Value(integrationKey).(model.IntegrationAuth)
	return auth
}
