package domain

import "time"

// Session es una sesión autenticada. Estados: Active → Revoked (terminal,
// escritura explícita) y Active → Expired (terminal, por reloj, sin escritura).
// Varias sesiones concurrentes por identidad son válidas: revocar una nunca
// afecta a sus hermanas.
type Session struct {
	ID         string
	IdentityID string

	AccessToken string

	// RefreshTokenHash es sha256(refresh) en base64url. El valor crudo se
	// entrega una sola vez al crear/rotar y no se persiste.
	RefreshTokenHash string

	ExpiresAt time.Time
	IP        string
	UserAgent string
	Revoked   bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsValid: !revoked ∧ now < expiresAt.
func (s *Session) IsValid(now time.Time) bool {
	return !s.Revoked && now.Before(s.ExpiresAt)
}

// Revoke marca la sesión como revocada.
func (s *Session) Revoke(now time.Time) {
	s.Revoked = true
	s.UpdatedAt = now
}

// Rotate reemplaza ambos tokens y extiende la expiración, preservando el id
// de sesión y el id de identidad.
func (s *Session) Rotate(accessToken, refreshHash string, expiresAt, now time.Time) {
	s.AccessToken = accessToken
	s.RefreshTokenHash = refreshHash
	s.ExpiresAt = expiresAt
	s.UpdatedAt = now
}
