package password

import (
	"crypto/sha512"
	"fmt"
	"strings"
)

// SHA512 es la policy de compatibilidad: hash hex sin salt, comparado
// case-insensitive. Los hex strings del sistema original podían venir en
// mayúsculas o minúsculas según el productor, de ahí el EqualFold.
type SHA512 struct{}

func (SHA512) Scheme() string { return "sha512" }

func (SHA512) Hash(plain string) (string, error) {
	if plain == "" {
		return "", fmt.Errorf("empty password")
	}
	sum := sha512.Sum512([]byte(plain))
	return fmt.Sprintf("%x", sum), nil
}

func (s SHA512) Verify(plain, stored string) bool {
	if stored == "" {
		return false
	}
	h, err := s.Hash(plain)
	if err != nil {
		return false
	}
	return strings.EqualFold(h, stored)
}
