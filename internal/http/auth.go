package http

import (
	"net/http"

	"github.com/halcyonlabs/idcore/internal/auth"
	"github.com/halcyonlabs/idcore/internal/domain"
)

type signInPasswordReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *handlers) signInPassword(w http.ResponseWriter, r *http.Request) {
	var req signInPasswordReq
	if !ReadJSON(w, r, &req) {
		return
	}
	res, err := h.d.Auth.SignIn(r.Context(), auth.PasswordCredential{
		Username:  req.Username,
		Password:  req.Password,
		IP:        clientIP(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, res)
}

type signInBiometricReq struct {
	IdentityID    string  `json:"identity_id"`
	BiometricType string  `json:"biometric_type"`
	Template      []byte  `json:"template"`
	Format        string  `json:"format"`
	LivenessScore float64 `json:"liveness_score"`
}

func (h *handlers) signInBiometric(w http.ResponseWriter, r *http.Request) {
	var req signInBiometricReq
	if !ReadJSON(w, r, &req) {
		return
	}
	res, err := h.d.Auth.SignIn(r.Context(), auth.BiometricCredential{
		IdentityID: req.IdentityID,
		Sample: &domain.BiometricData{
			Type:          domain.BiometricType(req.BiometricType),
			Template:      req.Template,
			Format:        req.Format,
			LivenessScore: req.LivenessScore,
		},
		IP:        clientIP(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, res)
}

type signInDIDReq struct {
	DID string `json:"did"`
}

func (h *handlers) signInDID(w http.ResponseWriter, r *http.Request) {
	var req signInDIDReq
	if !ReadJSON(w, r, &req) {
		return
	}
	res, err := h.d.Auth.SignIn(r.Context(), auth.DIDCredential{
		DID:       req.DID,
		IP:        clientIP(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, res)
}

type signInTokenReq struct {
	Token string `json:"token"`
}

func (h *handlers) signInFederated(w http.ResponseWriter, r *http.Request) {
	var req signInTokenReq
	if !ReadJSON(w, r, &req) {
		return
	}
	res, err := h.d.Auth.SignIn(r.Context(), auth.FederatedCredential{
		Token:     req.Token,
		IP:        clientIP(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, res)
}

func (h *handlers) signInService(w http.ResponseWriter, r *http.Request) {
	var req signInTokenReq
	if !ReadJSON(w, r, &req) {
		return
	}
	res, err := h.d.Auth.SignIn(r.Context(), auth.ServiceCredential{
		Token:     req.Token,
		IP:        clientIP(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, res)
}

type signOutReq struct {
	SessionID string `json:"session_id"`
}

func (h *handlers) signOut(w http.ResponseWriter, r *http.Request) {
	var req signOutReq
	if !ReadJSON(w, r, &req) {
		return
	}
	if err := h.d.Auth.SignOut(r.Context(), req.SessionID); err != nil {
		WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

func (h *handlers) refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshReq
	if !ReadJSON(w, r, &req) {
		return
	}
	res, err := h.d.Auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, res)
}
