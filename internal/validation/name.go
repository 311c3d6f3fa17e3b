// Package validation concentra las reglas de formato de nombres RBAC.
package validation

import "regexp"

// Reglas para nombres de permisos y roles:
//   - Minúsculas y dígitos; empieza y termina en [a-z0-9].
//   - Separadores internos permitidos: ":" "_" "." "-".
//   - Largo 1..64.
//
// Válidos: admin, ledger.read, session:revoke, backup_code. Inválidos:
// "Ledger.Read" sin normalizar, "bad name", ":leader", "trailer:", "".
var nameRe = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9:_\.-]{0,62}[a-z0-9])?$`)

// ValidName indica si name cumple el formato de nombres RBAC. Se asume
// que el llamador ya normalizó a minúsculas.
func ValidName(name string) bool {
	return nameRe.MatchString(name)
}
