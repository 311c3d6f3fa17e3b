package rbac

import (
	"context"
	"errors"
	"testing"

	"github.com/halcyonlabs/idcore/internal/domain"
	"github.com/halcyonlabs/idcore/internal/store/memory"
)

func newTestRBAC() (*Admin, *Resolver) {
	repo := memory.NewRBACRepo()
	return NewAdmin(repo), NewResolver(repo)
}

func TestResolveUnionWithoutDuplicates(t *testing.T) {
	admin, resolver := newTestRBAC()
	ctx := context.Background()

	p1, err := admin.CreatePermission(ctx, "docs.read", "")
	if err != nil {
		t.Fatalf("CreatePermission: %v", err)
	}
	p2, err := admin.CreatePermission(ctx, "docs.write", "")
	if err != nil {
		t.Fatalf("CreatePermission: %v", err)
	}
	editor, err := admin.CreateRole(ctx, "editor", "", []string{p1.ID, p2.ID})
	if err != nil {
		t.Fatalf("CreateRole: %v", err)
	}

	// p1 llega por dos caminos: grant directo y vía el rol.
	if err := admin.GrantPermission(ctx, "alice", p1.ID); err != nil {
		t.Fatalf("GrantPermission: %v", err)
	}
	if err := admin.GrantRole(ctx, "alice", editor.ID); err != nil {
		t.Fatalf("GrantRole: %v", err)
	}

	perms, err := resolver.GetIdentityPermissions(ctx, "alice")
	if err != nil {
		t.Fatalf("GetIdentityPermissions: %v", err)
	}
	if len(perms) != 2 {
		t.Fatalf("quería 2 permisos sin duplicados, hay %d", len(perms))
	}
	names := map[string]bool{}
	for _, p := range perms {
		names[p.Name] = true
	}
	if !names["docs.read"] || !names["docs.write"] {
		t.Fatalf("set resuelto incompleto: %v", names)
	}
}

func TestResolveSkipsInactive(t *testing.T) {
	admin, resolver := newTestRBAC()
	ctx := context.Background()

	p1, _ := admin.CreatePermission(ctx, "docs.read", "")
	p2, _ := admin.CreatePermission(ctx, "docs.write", "")
	role, err := admin.CreateRole(ctx, "editor", "", []string{p2.ID})
	if err != nil {
		t.Fatalf("CreateRole: %v", err)
	}
	if err := admin.GrantPermission(ctx, "bob", p1.ID); err != nil {
		t.Fatalf("GrantPermission: %v", err)
	}
	if err := admin.GrantRole(ctx, "bob", role.ID); err != nil {
		t.Fatalf("GrantRole: %v", err)
	}

	// Rol inactivo: sus permisos dejan de contar, el grant directo queda.
	if _, err := admin.UpdateRole(ctx, role.ID, "", domain.StatusInactive, []string{p2.ID}); err != nil {
		t.Fatalf("UpdateRole: %v", err)
	}
	perms, err := resolver.GetIdentityPermissions(ctx, "bob")
	if err != nil {
		t.Fatalf("GetIdentityPermissions: %v", err)
	}
	if len(perms) != 1 || perms[0].Name != "docs.read" {
		t.Fatalf("con rol inactivo quería solo docs.read, hay %v", perms)
	}

	// Permiso directo inactivo: tampoco cuenta.
	if _, err := admin.UpdatePermission(ctx, p1.ID, "", domain.StatusInactive); err != nil {
		t.Fatalf("UpdatePermission: %v", err)
	}
	perms, err = resolver.GetIdentityPermissions(ctx, "bob")
	if err != nil {
		t.Fatalf("GetIdentityPermissions: %v", err)
	}
	if len(perms) != 0 {
		t.Fatalf("quería set vacío, hay %d", len(perms))
	}
}

func TestHasPermissionCaseInsensitive(t *testing.T) {
	admin, resolver := newTestRBAC()
	ctx := context.Background()

	// El alta normaliza a minúsculas y la resolución compara con fold.
	p, err := admin.CreatePermission(ctx, "Docs.Read", "")
	if err != nil {
		t.Fatalf("CreatePermission: %v", err)
	}
	if p.Name != "docs.read" {
		t.Fatalf("nombre sin normalizar: %q", p.Name)
	}
	if err := admin.GrantPermission(ctx, "carol", p.ID); err != nil {
		t.Fatalf("GrantPermission: %v", err)
	}

	ok, err := resolver.HasPermission(ctx, "carol", "DOCS.READ")
	if err != nil {
		t.Fatalf("HasPermission: %v", err)
	}
	if !ok {
		t.Fatal("el chequeo de permiso debe ser case-insensitive")
	}
	ok, err = resolver.HasPermission(ctx, "carol", "docs.write")
	if err != nil {
		t.Fatalf("HasPermission: %v", err)
	}
	if ok {
		t.Fatal("permiso no otorgado reportado como presente")
	}
}

func TestDeleteInUse(t *testing.T) {
	admin, _ := newTestRBAC()
	ctx := context.Background()

	p, _ := admin.CreatePermission(ctx, "docs.read", "")
	role, err := admin.CreateRole(ctx, "reader", "", []string{p.ID})
	if err != nil {
		t.Fatalf("CreateRole: %v", err)
	}

	// Referenciado desde un rol: no se puede borrar.
	if err := admin.DeletePermission(ctx, p.ID); !errors.Is(err, domain.ErrAssignmentInUse) {
		t.Fatalf("DeletePermission en uso: err = %v", err)
	}

	if err := admin.GrantRole(ctx, "dave", role.ID); err != nil {
		t.Fatalf("GrantRole: %v", err)
	}
	if err := admin.DeleteRole(ctx, role.ID); !errors.Is(err, domain.ErrAssignmentInUse) {
		t.Fatalf("DeleteRole en uso: err = %v", err)
	}

	// Sin asignaciones, ambos borrados pasan.
	if err := admin.RevokeRole(ctx, "dave", role.ID); err != nil {
		t.Fatalf("RevokeRole: %v", err)
	}
	if err := admin.DeleteRole(ctx, role.ID); err != nil {
		t.Fatalf("DeleteRole: %v", err)
	}
	if err := admin.DeletePermission(ctx, p.ID); err != nil {
		t.Fatalf("DeletePermission: %v", err)
	}
}

func TestGrantIdempotentRevokeStrict(t *testing.T) {
	admin, resolver := newTestRBAC()
	ctx := context.Background()

	p, _ := admin.CreatePermission(ctx, "docs.read", "")
	if err := admin.GrantPermission(ctx, "erin", p.ID); err != nil {
		t.Fatalf("GrantPermission: %v", err)
	}
	if err := admin.GrantPermission(ctx, "erin", p.ID); err != nil {
		t.Fatalf("GrantPermission repetido: %v", err)
	}
	perms, _ := resolver.GetIdentityPermissions(ctx, "erin")
	if len(perms) != 1 {
		t.Fatalf("grant repetido duplicó la asignación: %d", len(perms))
	}

	if err := admin.RevokePermission(ctx, "erin", p.ID); err != nil {
		t.Fatalf("RevokePermission: %v", err)
	}
	if err := admin.RevokePermission(ctx, "erin", p.ID); !errors.Is(err, domain.ErrAssignmentNotFound) {
		t.Fatalf("revoke sin asignación: err = %v", err)
	}
}

func TestCreateDuplicateName(t *testing.T) {
	admin, _ := newTestRBAC()
	ctx := context.Background()

	if _, err := admin.CreatePermission(ctx, "docs.read", ""); err != nil {
		t.Fatalf("CreatePermission: %v", err)
	}
	if _, err := admin.CreatePermission(ctx, "docs.read", "otra"); !errors.Is(err, domain.ErrPermissionExists) {
		t.Fatalf("permiso duplicado: err = %v", err)
	}

	if _, err := admin.CreateRole(ctx, "editor", "", nil); err != nil {
		t.Fatalf("CreateRole: %v", err)
	}
	if _, err := admin.CreateRole(ctx, "editor", "", nil); !errors.Is(err, domain.ErrRoleExists) {
		t.Fatalf("rol duplicado: err = %v", err)
	}
}

func TestCreateRoleUnknownPermission(t *testing.T) {
	admin, _ := newTestRBAC()
	if _, err := admin.CreateRole(context.Background(), "editor", "", []string{"no-such-permission"}); !errors.Is(err, domain.ErrPermissionNotFound) {
		t.Fatalf("rol con permiso inexistente: err = %v", err)
	}
}

func TestCreateInvalidName(t *testing.T) {
	admin, _ := newTestRBAC()
	ctx := context.Background()

	for _, name := range []string{"", "bad name", "semi;colon", ":leader"} {
		if _, err := admin.CreatePermission(ctx, name, ""); !errors.Is(err, domain.ErrInvalidName) {
			t.Fatalf("CreatePermission(%q): err = %v", name, err)
		}
		if _, err := admin.CreateRole(ctx, name, "", nil); !errors.Is(err, domain.ErrInvalidName) {
			t.Fatalf("CreateRole(%q): err = %v", name, err)
		}
	}
}
