package rewards

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	interf "github.com/glkeru/loyalty/rewards/internal/interfaces"
	model "github.com/glkeru/loyalty/rewards/internal/models"
	services "github.com/glkeru/loyalty/rewards/internal/services"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

// Проверка готовности хранилища
type Pinger interface {
	Ping(ctx context.Context) error
}

type Services struct {
	Ledger      *services.LedgerService
	Redemptions *services.RedemptionService
	Fraud       *services.FraudService
	Identity    *services.IdentityService
	APIKeys     *services.APIKeyService
}

type Handler struct {
	router   *mux.Router
	logger   *zap.Logger
	serv     Services
	auth     interf.IdentityProvider
	store    Pinger
	validate *validator.Validate
}

func NewHandler(logger *zap.Logger, serv Services, auth interf.IdentityProvider, store Pinger) *Handler {
	router := mux.NewRouter()
	h := &Handler{
		router:   router,
		logger:   logger,
		serv:     serv,
		auth:     auth,
		store:    store,
		validate: newValidator(),
	}
	router.Use(MiddlewareLog())

	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	router.HandleFunc("/healthz", h.HealthHandler).Methods(http.MethodGet)

	// панель управления
	dash := router.NewRoute().Subrouter()
	dash.Use(h.MiddlewareIdentity)
	dash.HandleFunc("/brands/{brandId}/points/issue", h.IssueHandler).Methods(http.MethodPost)
	dash.HandleFunc("/brands/{brandId}/points/burn", h.BurnHandler).Methods(http.MethodPost)
	dash.HandleFunc("/brands/{brandId}/points/balance/{userId}", h.BalanceHandler).Methods(http.MethodGet)
	dash.HandleFunc("/brands/{brandId}/points/ledger/{userId}", h.UserLedgerHandler).Methods(http.MethodGet)
	dash.HandleFunc("/brands/{brandId}/ledger", h.BrandLedgerHandler).Methods(http.MethodGet)
	dash.HandleFunc("/brands/{brandId}/summary", h.BrandSummaryHandler).Methods(http.MethodGet)
	dash.HandleFunc("/brands/{brandId}/redemptions", h.CreateRedemptionHandler).Methods(http.MethodPost)
	dash.HandleFunc("/brands/{brandId}/redemptions", h.ListRedemptionsHandler).Methods(http.MethodGet)
	dash.HandleFunc("/brands/{brandId}/api-keys", h.CreateKeyHandler).Methods(http.MethodPost)
	dash.HandleFunc("/brands/{brandId}/api-keys", h.ListKeysHandler).Methods(http.MethodGet)
	dash.HandleFunc("/brands/{brandId}/api-keys/{id}", h.DisableKeyHandler).Methods(http.MethodDelete)
	dash.HandleFunc("/redemptions/{id}", h.GetRedemptionHandler).Methods(http.MethodGet)
	dash.HandleFunc("/redemptions/{id}/cancel", h.CancelRedemptionHandler).Methods(http.MethodPost)
	dash.HandleFunc("/redemptions/{id}/complete", h.CompleteRedemptionHandler).Methods(http.MethodPost)
	dash.HandleFunc("/fraud/flags", h.ListFlagsHandler).Methods(http.MethodGet)
	dash.HandleFunc("/fraud/flags/{id}", h.GetFlagHandler).Methods(http.MethodGet)
	dash.HandleFunc("/fraud/flags/{id}/review", h.ReviewFlagHandler).Methods(http.MethodPost, http.MethodPatch)

	// интеграции по API ключу
	integ := router.PathPrefix("/integration").Subrouter()
	integ.Use(h.MiddlewareAPIKey)
	integ.HandleFunc("/whoami", h.WhoamiHandler).Methods(http.MethodGet)
	integ.HandleFunc("/points/issue", h.IntegrationIssueHandler).Methods(http.MethodPost)
	integ.HandleFunc("/points/balance", h.IntegrationBalanceHandler).Methods(http.MethodGet)
	integ.HandleFunc("/users/{externalUserId}/balance", h.IntegrationBalanceHandler).Methods(http.MethodGet)
	integ.HandleFunc("/redemptions", h.IntegrationRedeemHandler).Methods(http.MethodPost)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) Log(msg string, service string, err error) {
	h.logger.Error(msg,
		zap.String("service", service),
		zap.Error(err),
	)
}

func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if h.store != nil {
		if err := h.store.Ping(r.Context()); err != nil {
			h.Log("Ping", "HealthHandler", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// decode читает тело и проверяет DTO
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Body is not correct", Code: "bad_request"})
		return false
	}
	defer r.Body.Close()
	if err = json.Unmarshal(body, dst); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Body is not correct", Code: "bad_request"})
		return false
	}
	if err = h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{
				Error: verrs[0].Field() + " failed " + verrs[0].Tag(),
				Code:  "validation",
				Field: verrs[0].Field(),
			})
			return false
		}
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "validation"})
		return false
	}
	return true
}

// Ошибки сервисов в HTTP статусы
func (h *Handler) fail(w http.ResponseWriter, service string, err error) {
	var verr *model.ValidationError
	var ierr *model.InsufficientBalanceError
	var serr *model.InvalidStateError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: verr.Error(), Code: "validation", Field: verr.Field})
	case errors.As(err, &ierr):
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Error:     ierr.Error(),
			Code:      "insufficient_balance",
			Required:  &ierr.Required,
			Available: &ierr.Available,
		})
	case errors.As(err, &serr):
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Error:     serr.Error(),
			Code:      "invalid_state",
			Current:   serr.Current,
			Attempted: serr.Attempted,
		})
	case errors.Is(err, model.ErrNotFound):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: "not_found"})
	case errors.Is(err, model.ErrUnauthorized):
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "Not authenticated", Code: "unauthorized"})
	case errors.Is(err, model.ErrForbidden):
		writeJSON(w, http.StatusForbidden, ErrorResponse{Error: err.Error(), Code: "forbidden"})
	case errors.Is(err, model.ErrInfrastructure):
		h.Log("Storage unavailable", service, err)
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: "Service unavailable", Code: "unavailable"})
	default:
		h.Log("Internal error", service, err)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "Internal server error", Code: "internal"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	j, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(j)
}

// limit и offset из строки запроса
func pageParams(r *http.Request) (limit int, offset int, err error) {
	q := r.URL.Query()
	if v := q.Get("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil {
			return 0, 0, model.NewValidationError("limit", "must be a number")
		}
	}
	if v := q.Get("offset"); v != "" {
		if offset, err = strconv.Atoi(v); err != nil {
			return 0, 0, model.NewValidationError("offset", "must be a number")
		}
	}
	return limit, offset, nil
}
