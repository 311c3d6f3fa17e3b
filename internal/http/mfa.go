package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/halcyonlabs/idcore/internal/domain"
)

type mfaCodeReq struct {
	Code string `json:"code"`
}

func (h *handlers) setupMFA(w http.ResponseWriter, r *http.Request) {
	res, err := h.d.MFA.Setup(r.Context(), chi.URLParam(r, "id"), domain.MFAMethod(chi.URLParam(r, "method")))
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{
		"method":      string(res.Method),
		"secret":      res.Secret,
		"otpauth_url": res.OTPAuthURL,
	})
}

func (h *handlers) enableMFA(w http.ResponseWriter, r *http.Request) {
	var req mfaCodeReq
	if !ReadJSON(w, r, &req) {
		return
	}
	err := h.d.MFA.Enable(r.Context(), chi.URLParam(r, "id"), domain.MFAMethod(chi.URLParam(r, "method")), req.Code)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) disableMFA(w http.ResponseWriter, r *http.Request) {
	err := h.d.MFA.Disable(r.Context(), chi.URLParam(r, "id"), domain.MFAMethod(chi.URLParam(r, "method")))
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) createChallenge(w http.ResponseWriter, r *http.Request) {
	err := h.d.MFA.CreateChallenge(r.Context(), chi.URLParam(r, "id"), domain.MFAMethod(chi.URLParam(r, "method")))
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *handlers) verifyChallenge(w http.ResponseWriter, r *http.Request) {
	var req mfaCodeReq
	if !ReadJSON(w, r, &req) {
		return
	}
	ok, err := h.d.MFA.VerifyChallenge(r.Context(), chi.URLParam(r, "id"), domain.MFAMethod(chi.URLParam(r, "method")), req.Code)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]bool{"valid": ok})
}

func (h *handlers) generateBackupCodes(w http.ResponseWriter, r *http.Request) {
	codes, err := h.d.MFA.GenerateBackupCodes(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string][]string{"backup_codes": codes})
}

func (h *handlers) listMFA(w http.ResponseWriter, r *http.Request) {
	cfgs, err := h.d.MFA.ListMethods(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	type item struct {
		Method  string `json:"method"`
		Enabled bool   `json:"enabled"`
	}
	out := make([]item, 0, len(cfgs))
	for _, cfg := range cfgs {
		out = append(out, item{Method: string(cfg.Method), Enabled: cfg.Enabled})
	}
	WriteJSON(w, http.StatusOK, out)
}
