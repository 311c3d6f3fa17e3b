// Package util agrupa helpers chicos sin dueño natural.
package util

import "strings"

// MaskEmail enmascara un email para logs: conserva la primera letra del
// usuario y del dominio. PII nunca va completa a los logs.
func MaskEmail(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	i := strings.IndexByte(s, '@')
	if i <= 0 {
		if s == "" {
			return ""
		}
		if len(s) <= 3 {
			return "***"
		}
		return s[:1] + "…" + s[len(s)-1:]
	}
	user, dom := s[:i], s[i+1:]
	if len(user) > 1 {
		user = user[:1] + "…"
	}
	dparts := strings.Split(dom, ".")
	if len(dparts) > 0 && len(dparts[0]) > 1 {
		dparts[0] = dparts[0][:1] + "…"
	}
	return user + "@" + strings.Join(dparts, ".")
}

// MaskPhone deja visibles solo los últimos tres dígitos.
func MaskPhone(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if len(s) <= 3 {
		return "***"
	}
	return strings.Repeat("*", len(s)-3) + s[len(s)-3:]
}
