// Package jwt emite los bearer access tokens del core y decodifica tokens
// federados presentados por IdPs externos.
package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// IssuedToken es el resultado del contrato createToken (§ external interfaces):
// un bearer firmado con expiración numérica.
type IssuedToken struct {
	AccessToken string
	ExpiresAt   int64 // unix seconds
}

// Issuer firma access tokens con una clave Ed25519 activa.
type Issuer struct {
	Iss       string
	AccessTTL time.Duration

	kid  string
	priv ed25519.PrivateKey
	pub  ed25519.PublicKey
}

// NewIssuer crea un issuer con una clave Ed25519 generada en memoria.
func NewIssuer(iss string, accessTTL time.Duration) (*Issuer, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	kid := base64.RawURLEncoding.EncodeToString(pub[:6])
	return &Issuer{Iss: iss, AccessTTL: accessTTL, kid: kid, priv: priv, pub: pub}, nil
}

// NewIssuerWithKey crea un issuer con una clave provista (tests, rotación externa).
func NewIssuerWithKey(iss string, accessTTL time.Duration, kid string, priv ed25519.PrivateKey) *Issuer {
	return &Issuer{
		Iss:       iss,
		AccessTTL: accessTTL,
		kid:       kid,
		priv:      priv,
		pub:       priv.Public().(ed25519.PublicKey),
	}
}

// CreateToken emite un bearer con sub y claims adicionales visibles para los
// resource servers downstream. ttl <= 0 usa el AccessTTL por defecto.
func (i *Issuer) CreateToken(subjectID, role, audience string, extra map[string]any, ttl time.Duration) (*IssuedToken, error) {
	if ttl <= 0 {
		ttl = i.AccessTTL
	}
	now := time.Now().UTC()
	exp := now.Add(ttl)

	// El jti garantiza unicidad por emisión: iat/exp tienen granularidad de
	// segundo y la firma Ed25519 es determinística, así que sin jti dos
	// tokens emitidos en el mismo segundo saldrían byte-idénticos.
	claims := jwtv5.MapClaims{
		"iss": i.Iss,
		"sub": subjectID,
		"jti": uuid.NewString(),
		"iat": now.Unix(),
		"nbf": now.Unix(),
		"exp": exp.Unix(),
	}
	if role != "" {
		claims["role"] = role
	}
	if audience != "" {
		claims["aud"] = audience
	}
	for k, v := range extra {
		claims[k] = v
	}

	tk := jwtv5.NewWithClaims(jwtv5.SigningMethodEdDSA, claims)
	tk.Header["kid"] = i.kid
	tk.Header["typ"] = "JWT"

	signed, err := tk.SignedString(i.priv)
	if err != nil {
		return nil, err
	}
	return &IssuedToken{AccessToken: signed, ExpiresAt: exp.Unix()}, nil
}

// Keyfunc retorna el jwtv5.Keyfunc para validar tokens emitidos por este issuer.
func (i *Issuer) Keyfunc() jwtv5.Keyfunc {
	return func(t *jwtv5.Token) (any, error) {
		return i.pub, nil
	}
}

// Verify valida firma y exp/nbf de un token propio y retorna sus claims.
func (i *Issuer) Verify(token string) (map[string]any, error) {
	tok, err := jwtv5.Parse(token, i.Keyfunc(), jwtv5.WithValidMethods([]string{"EdDSA"}))
	if err != nil || !tok.Valid {
		return nil, errors.New("invalid_jwt")
	}
	claims, ok := tok.Claims.(jwtv5.MapClaims)
	if !ok {
		return nil, errors.New("claims_type")
	}
	return claims, nil
}

// DecodeUnverified extrae las claims de un token SIN validar firma.
// Es el trust boundary interno para tokens federados (ver config
// auth.verify_federated_tokens); nunca usar para tokens propios.
func DecodeUnverified(token string) (map[string]any, error) {
	parser := jwtv5.NewParser()
	claims := jwtv5.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// StringClaim lee una claim string con fallback entre nombres alternativos
// (ej: "sub" / "oid" según el IdP).
func StringClaim(claims map[string]any, names ...string) string {
	for _, n := range names {
		if v, ok := claims[n].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
