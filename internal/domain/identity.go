// Package domain contiene los agregados del core de identidad: Identity,
// Session, MFAConfiguration, Role/Permission y el estado de provisioning.
// Las reglas de negocio viven acá; la persistencia es un colaborador externo
// detrás de las interfaces de domain/repository.
package domain

import (
	"strings"
	"time"
)

// IdentityStatus es el estado del ciclo de vida de una identidad.
type IdentityStatus string

const (
	IdentityUnverified IdentityStatus = "unverified"
	IdentityVerified   IdentityStatus = "verified"
	IdentityRevoked    IdentityStatus = "revoked"
)

// Identity es el agregado raíz de autenticación. Se crea en el registro y
// nunca se borra físicamente: la baja es un cambio de estado a Revoked.
type Identity struct {
	ID          string
	Username    string
	DisplayName string
	Email       string
	Phone       string

	PasswordHash   string
	EmailConfirmed bool
	PhoneConfirmed bool

	Status IdentityStatus

	// DID es el decentralized identifier asociado, si existe.
	DID string

	// FederatedSubject es el sub/oid del IdP externo (identidades auto-provisionadas).
	FederatedSubject string

	// ServiceID identifica cuentas de servicio (auth service-to-service).
	ServiceID string

	Biometric *BiometricData

	FailedLoginAttempts int
	LockedUntil         *time.Time
	LastLoginAt         *time.Time

	// EnabledMFAMethods refleja qué métodos tienen configuración habilitada.
	EnabledMFAMethods []MFAMethod

	// Provisioning registra el resultado best-effort del alta de cuenta externa.
	// nil = nunca se intentó.
	Provisioning *ProvisioningState

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsLocked indica si hay un lockout activo en el instante dado.
func (i *Identity) IsLocked(now time.Time) bool {
	return i.LockedUntil != nil && i.LockedUntil.After(now)
}

// SignIn registra un inicio de sesión exitoso: resetea el contador de fallos
// y limpia el lockout. Falla si la identidad está revocada o bloqueada.
func (i *Identity) SignIn(now time.Time) error {
	if i.Status == IdentityRevoked {
		return ErrIdentityRevoked
	}
	if i.IsLocked(now) {
		return ErrAccountLocked
	}
	t := now
	i.LastLoginAt = &t
	i.FailedLoginAttempts = 0
	i.LockedUntil = nil
	i.UpdatedAt = now
	return nil
}

// RecordFailedLogin incrementa el contador de intentos fallidos y, si se
// alcanzó el umbral (threshold > 0), aplica el lockout.
func (i *Identity) RecordFailedLogin(now time.Time, threshold int, lockout time.Duration) {
	i.FailedLoginAttempts++
	if threshold > 0 && i.FailedLoginAttempts >= threshold {
		until := now.Add(lockout)
		i.LockedUntil = &until
	}
	i.UpdatedAt = now
}

// Unlock limpia el lockout y el contador de fallos.
func (i *Identity) Unlock(now time.Time) {
	i.LockedUntil = nil
	i.FailedLoginAttempts = 0
	i.UpdatedAt = now
}

// Revoke marca la identidad como revocada. Terminal: no hay vuelta atrás.
func (i *Identity) Revoke(now time.Time) {
	i.Status = IdentityRevoked
	i.UpdatedAt = now
}

// ConfirmEmail marca el email como confirmado.
func (i *Identity) ConfirmEmail(now time.Time) {
	i.EmailConfirmed = true
	i.UpdatedAt = now
}

// ConfirmPhone marca el teléfono como confirmado.
func (i *Identity) ConfirmPhone(now time.Time) {
	i.PhoneConfirmed = true
	i.UpdatedAt = now
}

// VerifyBiometric compara la muestra contra el template enrolado y, si la
// similitud alcanza el umbral, promueve la identidad a Verified.
// La captura y extracción del template es del microservicio biométrico
// externo; acá solo se consume la comparación.
func (i *Identity) VerifyBiometric(sample *BiometricData, threshold float64, now time.Time) (float64, error) {
	if i.Status == IdentityRevoked {
		return 0, ErrIdentityRevoked
	}
	if i.Biometric == nil || sample == nil {
		return 0, ErrBiometricMismatch
	}
	score := i.Biometric.Match(sample)
	if score < threshold {
		return score, ErrBiometricMismatch
	}
	i.Status = IdentityVerified
	i.UpdatedAt = now
	return score, nil
}

// UpdateBiometric enrola o re-enrola el template biométrico. El re-enroll de
// una identidad ya enrolada exige una verificación previa con el template
// vigente; el enroll inicial no.
func (i *Identity) UpdateBiometric(newData, verification *BiometricData, threshold float64, now time.Time) error {
	if i.Status == IdentityRevoked {
		return ErrIdentityRevoked
	}
	if i.Biometric != nil && len(i.Biometric.Template) > 0 {
		if verification == nil {
			return ErrBiometricMismatch
		}
		if _, err := i.VerifyBiometric(verification, threshold, now); err != nil {
			return err
		}
	}
	i.Biometric = newData
	i.UpdatedAt = now
	return nil
}

// EnableMFAMethod registra el método en la lista de habilitados (idempotente).
func (i *Identity) EnableMFAMethod(m MFAMethod, now time.Time) {
	for _, e := range i.EnabledMFAMethods {
		if e == m {
			return
		}
	}
	i.EnabledMFAMethods = append(i.EnabledMFAMethods, m)
	i.UpdatedAt = now
}

// DisableMFAMethod quita el método de la lista de habilitados.
func (i *Identity) DisableMFAMethod(m MFAMethod, now time.Time) {
	out := i.EnabledMFAMethods[:0]
	for _, e := range i.EnabledMFAMethods {
		if e != m {
			out = append(out, e)
		}
	}
	i.EnabledMFAMethods = out
	i.UpdatedAt = now
}

// NormalizeUsername aplica la normalización canónica de usernames.
func NormalizeUsername(u string) string {
	return strings.ToLower(strings.TrimSpace(u))
}
