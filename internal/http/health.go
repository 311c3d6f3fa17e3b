package http

import "net/http"

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) provisioningHealth(w http.ResponseWriter, r *http.Request) {
	if h.d.Provisioner == nil {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	status := h.d.Provisioner.Health()
	code := http.StatusOK
	if !status.IsHealthy {
		code = http.StatusServiceUnavailable
	}
	WriteJSON(w, code, status)
}
