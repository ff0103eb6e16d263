package rewards

import (
	"net/http"

	model "github.com/glkeru/loyalty/rewards/internal/models"
	services "github.com/glkeru/loyalty/rewards/internal/services"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// Начисление баллов
func (h *Handler) IssueHandler(w http.ResponseWriter, r *http.Request) {
	req := IssueRequest{}
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.serv.Ledger.MintPoints(r.Context(), services.MintRequest{
		BrandID:        mux.Vars(r)["brandId"],
		UserID:         req.UserID,
		Amount:         req.Amount,
		Reason:         req.Reason,
		Metadata:       req.Metadata,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		h.fail(w, "IssueHandler", err)
		return
	}
	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}
	writeJSON(w, status, res)
}

// Списание баллов
func (h *Handler) BurnHandler(w http.ResponseWriter, r *http.Request) {
	req := BurnRequest{}
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.serv.Ledger.BurnPoints(r.Context(), services.BurnRequest{
		BrandID:  mux.Vars(r)["brandId"],
		UserID:   req.UserID,
		Amount:   req.Amount,
		Reason:   req.Reason,
		Metadata: req.Metadata,
	})
	if err != nil {
		h.fail(w, "BurnHandler", err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// Баланс пользователя
func (h *Handler) BalanceHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	balance, err := h.serv.Ledger.GetUserBalance(r.Context(), vars["brandId"], vars["userId"])
	if err != nil {
		h.fail(w, "BalanceHandler", err)
		return
	}
	writeJSON(w, http.StatusOK, BalanceResponse{BrandID: vars["brandId"], UserID: vars["userId"], Balance: balance})
}

// Итоги бренда
func (h *Handler) BrandSummaryHandler(w http.ResponseWriter, r *http.Request) {
	summary, err := h.serv.Ledger.GetBrandSummary(r.Context(), mux.Vars(r)["brandId"])
	if err != nil {
		h.fail(w, "BrandSummaryHandler", err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// История пользователя
func (h *Handler) UserLedgerHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	h.ledger(w, r, vars["brandId"], vars["userId"], "UserLedgerHandler")
}

// История бренда
func (h *Handler) BrandLedgerHandler(w http.ResponseWriter, r *http.Request) {
	h.ledger(w, r, mux.Vars(r)["brandId"], r.URL.Query().Get("userId"), "BrandLedgerHandler")
}

func (h *Handler) ledger(w http.ResponseWriter, r *http.Request, brandID string, userID string, service string) {
	limit, _, err := pageParams(r)
	if err != nil {
		h.fail(w, service, err)
		return
	}
	q := r.URL.Query()
	page, err := h.serv.Ledger.ListLedgerHistory(r.Context(), services.HistoryRequest{
		BrandID: brandID,
		UserID:  userID,
		Cursor:  q.Get("cursor"),
		Limit:   limit,
		Type:    model.EntryType(q.Get("type")),
		Reason:  q.Get("reason"),
	})
	if err != nil {
		h.fail(w, service, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// Списание по кампании
func (h *Handler) CreateRedemptionHandler(w http.ResponseWriter, r *http.Request) {
	req := RedeemRequest{}
	if !h.decode(w, r, &req) {
		return
	}
	red, err := h.serv.Redemptions.CreateRedemption(r.Context(), services.RedemptionRequest{
		BrandID:    mux.Vars(r)["brandId"],
		UserID:     req.UserID,
		PointsUsed: req.PointsUsed,
		CampaignID: req.CampaignID,
		Metadata:   req.Metadata,
		Hold:       req.Hold,
	})
	if err != nil {
		h.fail(w, "CreateRedemptionHandler", err)
		return
	}
	writeJSON(w, http.StatusCreated, red)
}

func (h *Handler) ListRedemptionsHandler(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pageParams(r)
	if err != nil {
		h.fail(w, "ListRedemptionsHandler", err)
		return
	}
	q := r.URL.Query()
	list, err := h.serv.Redemptions.ListRedemptions(r.Context(), model.RedemptionFilter{
		BrandID: mux.Vars(r)["brandId"],
		UserID:  q.Get("userId"),
		Status:  model.RedemptionStatus(q.Get("status")),
		Limit:   limit,
		Offset:  offset,
	})
	if err != nil {
		h.fail(w, "ListRedemptionsHandler", err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) GetRedemptionHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	red, err := h.serv.Redemptions.GetRedemption(r.Context(), id)
	if err != nil {
		h.fail(w, "GetRedemptionHandler", err)
		return
	}
	if !h.brandAccess(w, r, red.BrandID) {
		return
	}
	writeJSON(w, http.StatusOK, red)
}

// Отмена: только pending
func (h *Handler) CancelRedemptionHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if !h.redemptionAccess(w, r, id, "CancelRedemptionHandler") {
		return
	}
	red, err := h.serv.Redemptions.CancelRedemption(r.Context(), id)
	if err != nil {
		h.fail(w, "CancelRedemptionHandler", err)
		return
	}
	writeJSON(w, http.StatusOK, red)
}

func (h *Handler) CompleteRedemptionHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if !h.redemptionAccess(w, r, id, "CompleteRedemptionHandler") {
		return
	}
	red, err := h.serv.Redemptions.CompleteRedemption(r.Context(), id)
	if err != nil {
		h.fail(w, "CompleteRedemptionHandler", err)
		return
	}
	writeJSON(w, http.StatusOK, red)
}

// Флаги мошенничества
func (h *Handler) ListFlagsHandler(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pageParams(r)
	if err != nil {
		h.fail(w, "ListFlagsHandler", err)
		return
	}
	q := r.URL.Query()
	// без brandId список доступен только администратору
	if brandID := q.Get("brandId"); brandID != "" || !IdentityFromContext(r.Context()).PlatformAdmin {
		if !h.brandAccess(w, r, brandID) {
			return
		}
	}
	flags, err := h.serv.Fraud.ListFlags(r.Context(), model.FlagFilter{
		BrandID: q.Get("brandId"),
		UserID:  q.Get("userId"),
		Status:  model.FraudStatus(q.Get("status")),
		Limit:   limit,
		Offset:  offset,
	})
	if err != nil {
		h.fail(w, "ListFlagsHandler", err)
		return
	}
	writeJSON(w, http.StatusOK, flags)
}

func (h *Handler) GetFlagHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	flag, err := h.serv.Fraud.GetFlag(r.Context(), id)
	if err != nil {
		h.fail(w, "GetFlagHandler", err)
		return
	}
	if !h.brandAccess(w, r, flag.BrandID) {
		return
	}
	writeJSON(w, http.StatusOK, flag)
}

// Рассмотрение флага: только администратор платформы
func (h *Handler) ReviewFlagHandler(w http.ResponseWriter, r *http.Request) {
	identity := IdentityFromContext(r.Context())
	if !identity.PlatformAdmin {
		writeJSON(w, http.StatusForbidden, ErrorResponse{Error: "Platform admin required", Code: "forbidden"})
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	req := ReviewRequest{}
	if !h.decode(w, r, &req) {
		return
	}
	flag, err := h.serv.Fraud.ReviewFlag(r.Context(), id, identity.UserID, req.Status)
	if err != nil {
		h.fail(w, "ReviewFlagHandler", err)
		return
	}
	writeJSON(w, http.StatusOK, flag)
}

// API ключи бренда
func (h *Handler) CreateKeyHandler(w http.ResponseWriter, r *http.Request) {
	req := CreateKeyRequest{}
	if !h.decode(w, r, &req) {
		return
	}
	key, raw, err := h.serv.APIKeys.CreateKey(r.Context(), mux.Vars(r)["brandId"], req.Name)
	if err != nil {
		h.fail(w, "CreateKeyHandler", err)
		return
	}
	writeJSON(w, http.StatusCreated, CreateKeyResponse{Key: key, APIKey: raw})
}

func (h *Handler) ListKeysHandler(w http.ResponseWriter, r *http.Request) {
	keys, err := h.serv.APIKeys.ListKeys(r.Context(), mux.Vars(r)["brandId"])
	if err != nil {
		h.fail(w, "ListKeysHandler", err)
		return
	}
	writeJSON(w, http.StatusOK, keys)
}

func (h *Handler) DisableKeyHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.serv.APIKeys.DisableKey(r.Context(), mux.Vars(r)["brandId"], id); err != nil {
		h.fail(w, "DisableKeyHandler", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Доступ к бренду сущности, у которой brandId нет в пути
func (h *Handler) brandAccess(w http.ResponseWriter, r *http.Request, brandID string) bool {
	if IdentityFromContext(r.Context()).CanAccessBrand(brandID) {
		return true
	}
	writeJSON(w, http.StatusForbidden, ErrorResponse{Error: "Access denied to this brand", Code: "forbidden"})
	return false
}

func (h *Handler) redemptionAccess(w http.ResponseWriter, r *http.Request, id uuid.UUID, service string) bool {
	red, err := h.serv.Redemptions.GetRedemption(r.Context(), id)
	if err != nil {
		h.fail(w, service, err)
		return false
	}
	return h.brandAccess(w, r, red.BrandID)
}

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "Not found", Code: "not_found"})
		return uuid.Nil, false
	}
	return id, true
}
