// Package evidence construye y valida tokens de evidencia biométrica:
// JWS compacto (header.payload.signature, base64url sin padding) con firma
// ES256 detached sobre el payload canónico.
//
// La validez es deliberadamente no acotada en el tiempo: la evidencia tiene
// que poder auditarse indefinidamente, así que acá no se chequea lifetime.
// Revocación/retención son problema del almacén que guarda los tokens.
package evidence

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"os"
	"strings"
	"time"

	jose "github.com/go-jose/go-jose/v4"

	"github.com/halcyonlabs/idcore/internal/domain"
	"github.com/halcyonlabs/idcore/internal/observability/logger"
)

// Signer firma y valida tokens de evidencia con una clave P-256.
type Signer struct {
	issuer string
	kid    string
	priv   *ecdsa.PrivateKey
	signer jose.Signer
	now    func() time.Time
}

// NewSigner crea un Signer con la clave privada dada.
func NewSigner(issuer, kid string, priv *ecdsa.PrivateKey) (*Signer, error) {
	opts := (&jose.SignerOptions{}).WithType("JWT")
	opts = opts.WithHeader(jose.HeaderKey("kid"), kid)
	js, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.ES256, Key: priv}, opts)
	if err != nil {
		return nil, fmt.Errorf("evidence signer: %w", err)
	}
	return &Signer{issuer: issuer, kid: kid, priv: priv, signer: js, now: time.Now}, nil
}

// GenerateKey genera una clave P-256 nueva (dev, tests, keygen CLI).
func GenerateKey() (*ecdsa.PrivateKey, error) {
	return ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
}

// LoadPrivateKeyPEM carga una clave EC desde un archivo PEM (EC PRIVATE KEY
// o PKCS#8).
func LoadPrivateKeyPEM(path string) (*ecdsa.PrivateKey, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(b)
	if block == nil {
		return nil, fmt.Errorf("no PEM block in %s", path)
	}
	if key, err := x509.ParseECPrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	k, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse evidence key: %w", err)
	}
	ec, ok := k.(*ecdsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("evidence key is not EC")
	}
	return ec, nil
}

// MarshalPrivateKeyPEM serializa la clave en PEM (EC PRIVATE KEY).
func MarshalPrivateKeyPEM(priv *ecdsa.PrivateKey) ([]byte, error) {
	der, err := x509.MarshalECPrivateKey(priv)
	if err != nil {
		return nil, err
	}
	return pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der}), nil
}

// EnrollmentInput son los datos de un evento de enrolamiento.
type EnrollmentInput struct {
	SubjectID  string
	DID        string
	SessionID  string
	Liveness   Liveness
	Quality    Quality
	Policy     Policy
	Provenance Provenance
}

// VerificationInput son los datos de un evento de verificación.
type VerificationInput struct {
	SubjectID  string
	DID        string
	SessionID  string
	Liveness   Liveness
	Match      Match
	Quality    Quality
	Policy     Policy
	Provenance Provenance
}

// CreateEnrollmentEvidence firma la evidencia de un enrolamiento.
func (s *Signer) CreateEnrollmentEvidence(ctx context.Context, in EnrollmentInput) (string, error) {
	p := Payload{
		Issuer:     s.issuer,
		SubjectID:  in.SubjectID,
		DID:        in.DID,
		SessionID:  in.SessionID,
		IssuedAt:   s.now().UTC().Unix(),
		Type:       TypeEnroll,
		Liveness:   in.Liveness,
		Quality:    in.Quality,
		Policy:     in.Policy,
		Provenance: in.Provenance,
	}
	return s.sign(ctx, &p)
}

// CreateVerificationEvidence firma la evidencia de una verificación.
func (s *Signer) CreateVerificationEvidence(ctx context.Context, in VerificationInput) (string, error) {
	m := in.Match
	p := Payload{
		Issuer:     s.issuer,
		SubjectID:  in.SubjectID,
		DID:        in.DID,
		SessionID:  in.SessionID,
		IssuedAt:   s.now().UTC().Unix(),
		Type:       TypeVerify,
		Liveness:   in.Liveness,
		Match:      &m,
		Quality:    in.Quality,
		Policy:     in.Policy,
		Provenance: in.Provenance,
	}
	return s.sign(ctx, &p)
}

func (s *Signer) sign(ctx context.Context, p *Payload) (string, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("evidence"),
		logger.Op("sign"),
	)

	raw, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("marshal evidence payload: %w", err)
	}
	obj, err := s.signer.Sign(raw)
	if err != nil {
		log.Error("evidence signing failed", logger.Err(err))
		return "", fmt.Errorf("sign evidence: %w", err)
	}
	token, err := obj.CompactSerialize()
	if err != nil {
		return "", fmt.Errorf("serialize evidence: %w", err)
	}
	log.Debug("evidence signed", logger.IdentityID(p.SubjectID), logger.String("evidence_type", string(p.Type)))
	return token, nil
}

// ValidateEvidence verifica firma e issuer. Retorna (true, payload) solo si
// el token es válido; cualquier error o panic interno es "no válido", nunca
// se propaga: la evidencia la chequean callers best-effort o no confiables.
func (s *Signer) ValidateEvidence(ctx context.Context, token string) (valid bool, payload *Payload) {
	defer func() {
		if r := recover(); r != nil {
			valid, payload = false, nil
		}
	}()

	if err := checkShape(token); err != nil {
		return false, nil
	}

	obj, err := jose.ParseSigned(token, []jose.SignatureAlgorithm{jose.ES256})
	if err != nil {
		return false, nil
	}
	raw, err := obj.Verify(&s.priv.PublicKey)
	if err != nil {
		return false, nil
	}

	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return false, nil
	}
	if p.Issuer != s.issuer {
		return false, nil
	}
	return true, &p
}

// checkShape rechaza tokens que no sean exactamente tres segmentos
// base64url no vacíos unidos por '.'.
func checkShape(token string) error {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return domain.ErrEvidenceMalformed
	}
	for _, seg := range parts {
		if seg == "" {
			return domain.ErrEvidenceMalformed
		}
	}
	return nil
}
