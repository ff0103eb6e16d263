package rewards

import (
	"net/http"
	"strings"

	services "github.com/glkeru/loyalty/rewards/internal/services"
	"github.com/gorilla/mux"
)

func (h *Handler) WhoamiHandler(w http.ResponseWriter, r *http.Request) {
	auth := IntegrationFromContext(r.Context())
	writeJSON(w, http.StatusOK, WhoamiResponse{BrandID: auth.BrandID, APIKeyID: auth.APIKeyID.String(), Status: "ok"})
}

// Начисление по внешнему ID пользователя
func (h *Handler) IntegrationIssueHandler(w http.ResponseWriter, r *http.Request) {
	req := IntegrationIssueRequest{}
	if !h.decode(w, r, &req) {
		return
	}
	auth := IntegrationFromContext(r.Context())
	res, err := h.serv.Identity.IssueToExternalUser(r.Context(), auth, services.IntegrationIssueRequest{
		ExternalUserID: req.ExternalUserID,
		Amount:         req.Points,
		Reason:         req.Reason,
		Metadata:       req.Metadata,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		h.fail(w, "IntegrationIssueHandler", err)
		return
	}
	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}
	writeJSON(w, status, IntegrationIssueResponse{
		Status:         "ok",
		BrandID:        auth.BrandID,
		UserID:         res.User.ID,
		ExternalUserID: req.ExternalUserID,
		PointsIssued:   req.Points,
		NewBalance:     res.NewBalance,
		LedgerEntryID:  res.Entry.ID.String(),
		Replayed:       res.Replayed,
	})
}

// Баланс: ?externalUserId= или /users/{externalUserId}/balance. Неизвестный пользователь - 0
func (h *Handler) IntegrationBalanceHandler(w http.ResponseWriter, r *http.Request) {
	external := mux.Vars(r)["externalUserId"]
	if external == "" {
		external = r.URL.Query().Get("externalUserId")
	}
	external = strings.TrimSpace(external)
	if external == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "externalUserId is required", Code: "validation", Field: "externalUserId"})
		return
	}
	auth := IntegrationFromContext(r.Context())
	balance, err := h.serv.Identity.IntegrationBalance(r.Context(), auth, external)
	if err != nil {
		h.fail(w, "IntegrationBalanceHandler", err)
		return
	}
	writeJSON(w, http.StatusOK, IntegrationBalanceResponse{
		Status:         "ok",
		BrandID:        auth.BrandID,
		ExternalUserID: external,
		Balance:        balance,
	})
}

func (h *Handler) IntegrationRedeemHandler(w http.ResponseWriter, r *http.Request) {
	req := IntegrationRedeemRequest{}
	if !h.decode(w, r, &req) {
		return
	}
	red, err := h.serv.Identity.RedeemForExternalUser(r.Context(), IntegrationFromContext(r.Context()), services.IntegrationRedeemRequest{
		ExternalUserID: req.ExternalUserID,
		PointsUsed:     req.PointsUsed,
		CampaignID:     req.CampaignID,
		Metadata:       req.Metadata,
	})
	if err != nil {
		h.fail(w, "IntegrationRedeemHandler", err)
		return
	}
	writeJSON(w, http.StatusCreated, red)
}
