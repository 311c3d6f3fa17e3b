package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/halcyonlabs/idcore/internal/domain"
	"github.com/halcyonlabs/idcore/internal/identity"
)

type createIdentityReq struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	DID         string `json:"did"`
}

type identityResp struct {
	ID             string     `json:"id"`
	Username       string     `json:"username"`
	DisplayName    string     `json:"display_name,omitempty"`
	Email          string     `json:"email,omitempty"`
	Phone          string     `json:"phone,omitempty"`
	Status         string     `json:"status"`
	DID            string     `json:"did,omitempty"`
	EmailConfirmed bool       `json:"email_confirmed"`
	PhoneConfirmed bool       `json:"phone_confirmed"`
	LockedUntil    *time.Time `json:"locked_until,omitempty"`
	MFAMethods     []string   `json:"mfa_methods,omitempty"`
	AccountAddress string     `json:"account_address,omitempty"`
	AccountPending bool       `json:"account_pending,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

func toIdentityResp(i *domain.Identity) identityResp {
	resp := identityResp{
		ID:             i.ID,
		Username:       i.Username,
		DisplayName:    i.DisplayName,
		Email:          i.Email,
		Phone:          i.Phone,
		Status:         string(i.Status),
		DID:            i.DID,
		EmailConfirmed: i.EmailConfirmed,
		PhoneConfirmed: i.PhoneConfirmed,
		LockedUntil:    i.LockedUntil,
		CreatedAt:      i.CreatedAt,
	}
	for _, m := range i.EnabledMFAMethods {
		resp.MFAMethods = append(resp.MFAMethods, string(m))
	}
	if i.Provisioning != nil {
		resp.AccountAddress = i.Provisioning.Address
		resp.AccountPending = i.Provisioning.Failed && !i.Provisioning.Provisioned()
	}
	return resp
}

func (h *handlers) createIdentity(w http.ResponseWriter, r *http.Request) {
	var req createIdentityReq
	if !ReadJSON(w, r, &req) {
		return
	}
	if req.Username == "" || req.Password == "" {
		WriteError(w, http.StatusBadRequest, "invalid_request", "username y password son obligatorios")
		return
	}
	ident, err := h.d.Identity.Create(r.Context(), identity.CreateInput{
		Username:    req.Username,
		Password:    req.Password,
		DisplayName: req.DisplayName,
		Email:       req.Email,
		Phone:       req.Phone,
		DID:         req.DID,
	})
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, toIdentityResp(ident))
}

func (h *handlers) getIdentity(w http.ResponseWriter, r *http.Request) {
	ident, err := h.d.Identity.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, toIdentityResp(ident))
}

func (h *handlers) revokeIdentity(w http.ResponseWriter, r *http.Request) {
	if err := h.d.Identity.Revoke(r.Context(), chi.URLParam(r, "id")); err != nil {
		WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) unlockIdentity(w http.ResponseWriter, r *http.Request) {
	if err := h.d.Identity.Unlock(r.Context(), chi.URLParam(r, "id")); err != nil {
		WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) confirmEmail(w http.ResponseWriter, r *http.Request) {
	if err := h.d.Identity.ConfirmEmail(r.Context(), chi.URLParam(r, "id")); err != nil {
		WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) confirmPhone(w http.ResponseWriter, r *http.Request) {
	if err := h.d.Identity.ConfirmPhone(r.Context(), chi.URLParam(r, "id")); err != nil {
		WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type updateBiometricReq struct {
	BiometricType string  `json:"biometric_type"`
	Template      []byte  `json:"template"`
	Format        string  `json:"format"`
	LivenessScore float64 `json:"liveness_score"`

	// Verification es obligatoria para re-enrolar un template existente.
	Verification *struct {
		Template      []byte  `json:"template"`
		LivenessScore float64 `json:"liveness_score"`
	} `json:"verification,omitempty"`
}

func (h *handlers) updateBiometric(w http.ResponseWriter, r *http.Request) {
	var req updateBiometricReq
	if !ReadJSON(w, r, &req) {
		return
	}
	newData := &domain.BiometricData{
		Type:          domain.BiometricType(req.BiometricType),
		Template:      req.Template,
		Format:        req.Format,
		LivenessScore: req.LivenessScore,
	}
	var verification *domain.BiometricData
	if req.Verification != nil {
		verification = &domain.BiometricData{
			Type:          domain.BiometricType(req.BiometricType),
			Template:      req.Verification.Template,
			LivenessScore: req.Verification.LivenessScore,
		}
	}
	token, err := h.d.Identity.UpdateBiometric(r.Context(), chi.URLParam(r, "id"), newData, verification)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"evidence_token": token})
}

func (h *handlers) retryProvisioning(w http.ResponseWriter, r *http.Request) {
	if err := h.d.Identity.RetryProvisioning(r.Context(), chi.URLParam(r, "id")); err != nil {
		WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
