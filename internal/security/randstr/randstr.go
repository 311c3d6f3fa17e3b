// Package randstr es el security/random provider del core: strings
// aleatorios de largo dado (opcionalmente solo alfanuméricos), códigos
// numéricos para challenges y un hash one-way genérico.
package randstr

import (
	"crypto/rand"
	"crypto/sha512"
	"fmt"
	"math/big"
)

const (
	alphanumeric = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	digits       = "0123456789"
)

// Provider implementa el contrato de security provider consumido por los
// servicios (random strings + hash genérico).
type Provider struct{}

// New crea un Provider.
func New() *Provider { return &Provider{} }

// RandomString genera un string aleatorio de n caracteres en mayúsculas
// alfanuméricas. Usa crypto/rand; nunca math/rand para material de seguridad.
func (p *Provider) RandomString(n int) (string, error) {
	return pick(alphanumeric, n)
}

// NumericCode genera un código numérico de n dígitos (challenges SMS/email).
func (p *Provider) NumericCode(n int) (string, error) {
	return pick(digits, n)
}

// Hash es el one-way hash genérico del provider: sha512 hex en minúsculas.
// El mismo esquema que usaba el sistema original para backup codes y
// comparación de password hashes.
func (p *Provider) Hash(s string) string {
	sum := sha512.Sum512([]byte(s))
	return fmt.Sprintf("%x", sum)
}

func pick(alphabet string, n int) (string, error) {
	out := make([]byte, n)
	max := big.NewInt(int64(len(alphabet)))
	for i := range out {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = alphabet[idx.Int64()]
	}
	return string(out), nil
}
