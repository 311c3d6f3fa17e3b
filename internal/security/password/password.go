// Package password define la policy de hashing de passwords. El algoritmo es
// pluggable: sha512-hex reproduce la semántica del sistema original
// (comparación case-insensitive de hex strings); argon2id es la policy
// recomendada para despliegues nuevos.
package password

import "strings"

// Policy abstrae el esquema de hashing de passwords.
type Policy interface {
	// Hash deriva el hash a persistir.
	Hash(plain string) (string, error)

	// Verify compara un password en claro contra el hash persistido.
	Verify(plain, stored string) bool

	// Scheme identifica la policy ("sha512" | "argon2id").
	Scheme() string
}

// ForScheme retorna la policy para el esquema configurado.
// Default: sha512 (semántica del sistema original).
func ForScheme(scheme string) Policy {
	switch strings.ToLower(strings.TrimSpace(scheme)) {
	case "argon2id":
		return Argon2id{Params: DefaultParams}
	default:
		return SHA512{}
	}
}
