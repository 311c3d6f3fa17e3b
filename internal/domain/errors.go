package domain

import "errors"

// Errores de negocio del core. Son resultados esperados y frecuentes:
// siempre se retornan como valores (nunca panics) para que la capa API
// pueda mapearlos a respuestas distinguibles.
var (
	// ErrInvalidCredentials indica username/password/DID/token inválido.
	// Deliberadamente no distingue "no existe" de "password incorrecto".
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrAccountLocked indica lockout activo (locked_until > now).
	ErrAccountLocked = errors.New("account locked")

	// ErrIdentityNotFound indica que la identidad no existe.
	ErrIdentityNotFound = errors.New("identity not found")

	// ErrIdentityNotActive indica que la identidad no está en estado Verified.
	ErrIdentityNotActive = errors.New("identity not active")

	// ErrIdentityExists indica un alta duplicada.
	ErrIdentityExists = errors.New("identity already exists")

	// ErrMFAAlreadyConfigured indica re-setup de un método ya habilitado.
	ErrMFAAlreadyConfigured = errors.New("mfa method already configured")

	// ErrMFANotConfigured indica operación sobre un método sin configuración
	// (o sin configuración habilitada, según la operación).
	ErrMFANotConfigured = errors.New("mfa method not configured")

	// ErrInvalidVerificationCode indica un código MFA rechazado.
	ErrInvalidVerificationCode = errors.New("invalid verification code")

	// ErrInvalidOrExpiredToken indica refresh token desconocido, expirado o revocado.
	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")

	// ErrInvalidName indica un nombre de permiso o rol con formato inválido.
	ErrInvalidName = errors.New("invalid name")

	// ErrPermissionNotFound indica que el permiso no existe.
	ErrPermissionNotFound = errors.New("permission not found")

	// ErrPermissionExists indica un alta de permiso con nombre duplicado.
	ErrPermissionExists = errors.New("permission already exists")

	// ErrRoleNotFound indica que el rol no existe.
	ErrRoleNotFound = errors.New("role not found")

	// ErrRoleExists indica un alta de rol con nombre duplicado.
	ErrRoleExists = errors.New("role already exists")

	// ErrAssignmentNotFound indica unassign de una asignación inexistente.
	ErrAssignmentNotFound = errors.New("assignment not found")

	// ErrAssignmentInUse bloquea el borrado de roles/permisos con asignaciones activas.
	ErrAssignmentInUse = errors.New("assignment in use")

	// ErrCircuitOpen indica fail-fast del circuit breaker de provisioning.
	ErrCircuitOpen = errors.New("circuit breaker open")

	// ErrProvisioningFailed indica agotamiento de reintentos de provisioning.
	// Nunca se propaga al caller de la creación de identidad; queda registrado
	// en la identidad para el retry sweep.
	ErrProvisioningFailed = errors.New("provisioning failed")

	// ErrEvidenceMalformed indica un token de evidencia que no tiene la forma
	// header.payload.signature con tres segmentos no vacíos.
	ErrEvidenceMalformed = errors.New("evidence token malformed")

	// ErrBiometricMismatch indica que la similitud quedó bajo el umbral.
	ErrBiometricMismatch = errors.New("biometric verification failed")

	// ErrIdentityRevoked indica operación sobre una identidad revocada.
	ErrIdentityRevoked = errors.New("identity revoked")
)
