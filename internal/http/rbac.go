package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/halcyonlabs/idcore/internal/domain"
)

type permissionReq struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Status      string `json:"status"`
}

type permissionResp struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status"`
	Version     int    `json:"version"`
}

func toPermissionResp(p *domain.Permission) permissionResp {
	return permissionResp{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Status:      string(p.Status),
		Version:     p.Version,
	}
}

func (h *handlers) createPermission(w http.ResponseWriter, r *http.Request) {
	var req permissionReq
	if !ReadJSON(w, r, &req) {
		return
	}
	if req.Name == "" {
		WriteError(w, http.StatusBadRequest, "invalid_request", "name es obligatorio")
		return
	}
	p, err := h.d.RBACAdmin.CreatePermission(r.Context(), req.Name, req.Description)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, toPermissionResp(p))
}

func (h *handlers) getPermission(w http.ResponseWriter, r *http.Request) {
	p, err := h.d.RBACAdmin.GetPermission(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, toPermissionResp(p))
}

func (h *handlers) updatePermission(w http.ResponseWriter, r *http.Request) {
	var req permissionReq
	if !ReadJSON(w, r, &req) {
		return
	}
	p, err := h.d.RBACAdmin.UpdatePermission(r.Context(), chi.URLParam(r, "id"), req.Description, domain.EntityStatus(req.Status))
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, toPermissionResp(p))
}

func (h *handlers) deletePermission(w http.ResponseWriter, r *http.Request) {
	if err := h.d.RBACAdmin.DeletePermission(r.Context(), chi.URLParam(r, "id")); err != nil {
		WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) listPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := h.d.RBACAdmin.ListPermissions(r.Context())
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	out := make([]permissionResp, 0, len(perms))
	for _, p := range perms {
		out = append(out, toPermissionResp(p))
	}
	WriteJSON(w, http.StatusOK, out)
}

type roleReq struct {
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	Status        string   `json:"status"`
	PermissionIDs []string `json:"permission_ids"`
}

type roleResp struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Description   string   `json:"description,omitempty"`
	Status        string   `json:"status"`
	Version       int      `json:"version"`
	PermissionIDs []string `json:"permission_ids"`
}

func toRoleResp(role *domain.Role) roleResp {
	return roleResp{
		ID:            role.ID,
		Name:          role.Name,
		Description:   role.Description,
		Status:        string(role.Status),
		Version:       role.Version,
		PermissionIDs: role.PermissionIDs,
	}
}

func (h *handlers) createRole(w http.ResponseWriter, r *http.Request) {
	var req roleReq
	if !ReadJSON(w, r, &req) {
		return
	}
	if req.Name == "" {
		WriteError(w, http.StatusBadRequest, "invalid_request", "name es obligatorio")
		return
	}
	role, err := h.d.RBACAdmin.CreateRole(r.Context(), req.Name, req.Description, req.PermissionIDs)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, toRoleResp(role))
}

func (h *handlers) listRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.d.RBACAdmin.ListRoles(r.Context())
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	out := make([]roleResp, 0, len(roles))
	for _, role := range roles {
		out = append(out, toRoleResp(role))
	}
	WriteJSON(w, http.StatusOK, out)
}

func (h *handlers) getRole(w http.ResponseWriter, r *http.Request) {
	role, err := h.d.RBACAdmin.GetRole(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, toRoleResp(role))
}

func (h *handlers) updateRole(w http.ResponseWriter, r *http.Request) {
	var req roleReq
	if !ReadJSON(w, r, &req) {
		return
	}
	role, err := h.d.RBACAdmin.UpdateRole(r.Context(), chi.URLParam(r, "id"), req.Description, domain.EntityStatus(req.Status), req.PermissionIDs)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, toRoleResp(role))
}

func (h *handlers) deleteRole(w http.ResponseWriter, r *http.Request) {
	if err := h.d.RBACAdmin.DeleteRole(r.Context(), chi.URLParam(r, "id")); err != nil {
		WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) grantPermission(w http.ResponseWriter, r *http.Request) {
	err := h.d.RBACAdmin.GrantPermission(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "permissionID"))
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) revokePermission(w http.ResponseWriter, r *http.Request) {
	err := h.d.RBACAdmin.RevokePermission(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "permissionID"))
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) grantRole(w http.ResponseWriter, r *http.Request) {
	err := h.d.RBACAdmin.GrantRole(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "roleID"))
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) revokeRole(w http.ResponseWriter, r *http.Request) {
	err := h.d.RBACAdmin.RevokeRole(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "roleID"))
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) identityPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := h.d.Resolver.GetIdentityPermissions(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	out := make([]permissionResp, 0, len(perms))
	for _, p := range perms {
		out = append(out, toPermissionResp(p))
	}
	WriteJSON(w, http.StatusOK, out)
}

func (h *handlers) checkPermission(w http.ResponseWriter, r *http.Request) {
	ok, err := h.d.Resolver.HasPermission(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "name"))
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]bool{"allowed": ok})
}

func (h *handlers) identityRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.d.Resolver.GetIdentityRoles(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	out := make([]roleResp, 0, len(roles))
	for _, role := range roles {
		out = append(out, toRoleResp(role))
	}
	WriteJSON(w, http.StatusOK, out)
}
