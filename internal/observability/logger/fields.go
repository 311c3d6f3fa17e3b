package logger

import (
	"time"

	"go.uber.org/zap"
)

// Campos estándar del dominio. Usar siempre estos helpers en vez de
// zap.String directo para mantener nombres de campo consistentes.

// IdentityID crea un campo para el id de la identidad.
func IdentityID(v string) zap.Field {
	return zap.String("identity_id", v)
}

// SessionID crea un campo para el id de sesión.
func SessionID(v string) zap.Field {
	return zap.String("session_id", v)
}

// Username crea un campo para el username (nunca loguear passwords).
func Username(v string) zap.Field {
	return zap.String("username", v)
}

// MFAMethod crea un campo para el método MFA.
func MFAMethod(v string) zap.Field {
	return zap.String("mfa_method", v)
}

// Role crea un campo para un nombre de rol.
func Role(v string) zap.Field {
	return zap.String("role", v)
}

// Permission crea un campo para un nombre de permiso.
func Permission(v string) zap.Field {
	return zap.String("permission", v)
}

// Attempt crea un campo para el número de intento (retry/provisioning).
func Attempt(v int) zap.Field {
	return zap.Int("attempt", v)
}

// Address crea un campo para la dirección de cuenta externa.
func Address(v string) zap.Field {
	return zap.String("address", v)
}

// ─── HTTP ───

// RequestID crea un campo para el id del request.
func RequestID(v string) zap.Field {
	return zap.String("request_id", v)
}

// Method crea un campo para el método HTTP.
func Method(v string) zap.Field {
	return zap.String("method", v)
}

// Path crea un campo para el path del request.
func Path(v string) zap.Field {
	return zap.String("path", v)
}

// Status crea un campo para el status code HTTP.
func Status(v int) zap.Field {
	return zap.Int("status", v)
}

// Duration crea un campo para la duración de una operación.
func Duration(v time.Duration) zap.Field {
	return zap.Duration("duration", v)
}

// ClientIP crea un campo para la IP del cliente.
func ClientIP(v string) zap.Field {
	return zap.String("client_ip", v)
}

// ─── Sistema ───

// Component crea un campo para el componente/módulo.
func Component(v string) zap.Field {
	return zap.String("component", v)
}

// Op crea un campo para la operación actual.
func Op(v string) zap.Field {
	return zap.String("op", v)
}

// Layer crea un campo para la capa (handler, service, repository).
func Layer(v string) zap.Field {
	return zap.String("layer", v)
}

// Err crea un campo para un error.
func Err(err error) zap.Field {
	return zap.Error(err)
}

// Count crea un campo para un conteo.
func Count(v int) zap.Field {
	return zap.Int("count", v)
}

// String crea un campo string genérico.
func String(key, v string) zap.Field {
	return zap.String(key, v)
}

// Int crea un campo int genérico.
func Int(key string, v int) zap.Field {
	return zap.Int(key, v)
}

// Bool crea un campo bool genérico.
func Bool(key string, v bool) zap.Field {
	return zap.Bool(key, v)
}
