package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/halcyonlabs/idcore/internal/domain"
	"github.com/halcyonlabs/idcore/internal/store/memory"
)

func newTestManager(now func() time.Time) *Manager {
	return NewManager(Deps{Sessions: memory.NewSessionRepo(), Now: now})
}

func TestCreateAndValidate(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := newTestManager(func() time.Time { return base })

	s, refresh, err := m.Create(context.Background(), CreateInput{
		IdentityID:  "ident-1",
		AccessToken: "at-1",
		ExpiresAt:   base.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if s.ID == "" {
		t.Fatal("session sin ID")
	}
	if refresh == "" {
		t.Fatal("refresh token vacío")
	}
	if s.RefreshTokenHash == refresh {
		t.Fatal("el refresh crudo no debe persistirse")
	}

	got, err := m.Validate(context.Background(), s.ID)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if got.IdentityID != "ident-1" {
		t.Fatalf("IdentityID = %q", got.IdentityID)
	}

	if _, err := m.Validate(context.Background(), "no-such-session"); !errors.Is(err, domain.ErrInvalidOrExpiredToken) {
		t.Fatalf("sesión desconocida: err = %v", err)
	}
}

func TestValidateExpired(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := base
	m := newTestManager(func() time.Time { return now })

	s, _, err := m.Create(context.Background(), CreateInput{
		IdentityID:  "ident-1",
		AccessToken: "at-1",
		ExpiresAt:   base.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	now = base.Add(2 * time.Hour)
	if _, err := m.Validate(context.Background(), s.ID); !errors.Is(err, domain.ErrInvalidOrExpiredToken) {
		t.Fatalf("sesión vencida: err = %v", err)
	}
}

func TestRotatePreservesSessionID(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := newTestManager(func() time.Time { return base })

	s, refresh, err := m.Create(context.Background(), CreateInput{
		IdentityID:  "ident-1",
		AccessToken: "at-1",
		ExpiresAt:   base.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	rotated, newRefresh, err := m.Rotate(context.Background(), refresh, "at-2", base.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	if rotated.ID != s.ID {
		t.Fatalf("el ID de sesión debe preservarse: %q != %q", rotated.ID, s.ID)
	}
	if rotated.IdentityID != s.IdentityID {
		t.Fatal("la identidad debe preservarse")
	}
	if rotated.AccessToken == s.AccessToken {
		t.Fatal("el access token debe cambiar")
	}
	if newRefresh == refresh {
		t.Fatal("el refresh token debe cambiar")
	}
	if rotated.RefreshTokenHash == s.RefreshTokenHash {
		t.Fatal("el hash del refresh debe cambiar")
	}

	// El refresh viejo queda canjeado.
	if _, _, err := m.Rotate(context.Background(), refresh, "at-3", base.Add(3*time.Hour)); !errors.Is(err, domain.ErrInvalidOrExpiredToken) {
		t.Fatalf("refresh ya canjeado: err = %v", err)
	}

	// El nuevo sí funciona.
	if _, _, err := m.Rotate(context.Background(), newRefresh, "at-3", base.Add(3*time.Hour)); err != nil {
		t.Fatalf("Rotate con refresh nuevo: %v", err)
	}
}

func TestRotateConcurrentSingleWinner(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := newTestManager(func() time.Time { return base })

	_, refresh, err := m.Create(context.Background(), CreateInput{
		IdentityID:  "ident-1",
		AccessToken: "at-1",
		ExpiresAt:   base.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	const racers = 8
	errs := make(chan error, racers)
	for i := 0; i < racers; i++ {
		go func() {
			_, _, err := m.Rotate(context.Background(), refresh, "at-race", base.Add(2*time.Hour))
			errs <- err
		}()
	}

	wins := 0
	for i := 0; i < racers; i++ {
		err := <-errs
		switch {
		case err == nil:
			wins++
		case errors.Is(err, domain.ErrInvalidOrExpiredToken):
		default:
			t.Fatalf("error inesperado: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("exactamente un rotador debe ganar, ganaron %d", wins)
	}
}

func TestRevokeIdempotent(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := newTestManager(func() time.Time { return base })

	s, _, err := m.Create(context.Background(), CreateInput{
		IdentityID:  "ident-1",
		AccessToken: "at-1",
		ExpiresAt:   base.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := m.Revoke(context.Background(), s.ID); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if err := m.Revoke(context.Background(), s.ID); err != nil {
		t.Fatalf("Revoke repetido: %v", err)
	}
	if err := m.Revoke(context.Background(), "no-such-session"); err != nil {
		t.Fatalf("Revoke de sesión inexistente: %v", err)
	}

	if _, err := m.Validate(context.Background(), s.ID); !errors.Is(err, domain.ErrInvalidOrExpiredToken) {
		t.Fatalf("sesión revocada: err = %v", err)
	}
}

func TestRevokeAll(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := newTestManager(func() time.Time { return base })

	for i := 0; i < 3; i++ {
		if _, _, err := m.Create(context.Background(), CreateInput{
			IdentityID:  "ident-1",
			AccessToken: "at",
			ExpiresAt:   base.Add(time.Hour),
		}); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	n, err := m.RevokeAll(context.Background(), "ident-1")
	if err != nil {
		t.Fatalf("RevokeAll: %v", err)
	}
	if n != 3 {
		t.Fatalf("RevokeAll = %d, quería 3", n)
	}

	n, err = m.RevokeAll(context.Background(), "ident-1")
	if err != nil {
		t.Fatalf("RevokeAll repetido: %v", err)
	}
	if n != 0 {
		t.Fatalf("RevokeAll repetido = %d, quería 0", n)
	}
}
