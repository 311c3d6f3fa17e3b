package auth

import (
	"context"
	"time"

	"github.com/halcyonlabs/idcore/internal/domain"
)

// Method identifica cada variante de sign-in. Es un set cerrado: el
// coordinator despacha por método a un handler independiente en vez de
// ramificar con switches sobre los datos de entrada.
type Method string

const (
	MethodPassword  Method = "password"
	MethodBiometric Method = "biometric"
	MethodDID       Method = "did"
	MethodFederated Method = "federated"
	MethodService   Method = "service"
)

// Credential es la credencial presentada por el principal. Cada variante
// tiene su tipo concreto; Method() decide el strategy que la procesa.
type Credential interface {
	Method() Method
}

// PasswordCredential autentica por username + password.
type PasswordCredential struct {
	Username  string
	Password  string
	IP        string
	UserAgent string
}

func (PasswordCredential) Method() Method { return MethodPassword }

// BiometricCredential autentica por comparación contra el template enrolado.
type BiometricCredential struct {
	IdentityID string
	Sample     *domain.BiometricData
	IP         string
	UserAgent  string
}

func (BiometricCredential) Method() Method { return MethodBiometric }

// DIDCredential autentica por decentralized identifier resuelto.
type DIDCredential struct {
	DID       string
	IP        string
	UserAgent string
}

func (DIDCredential) Method() Method { return MethodDID }

// FederatedCredential autentica con un token emitido por un IdP externo.
type FederatedCredential struct {
	Token     string
	IP        string
	UserAgent string
}

func (FederatedCredential) Method() Method { return MethodFederated }

// ServiceCredential autentica una cuenta de servicio (service-to-service).
type ServiceCredential struct {
	Token     string
	IP        string
	UserAgent string
}

func (ServiceCredential) Method() Method { return MethodService }

// strategy es el contrato interno de cada variante: valida la credencial y
// retorna la identidad autenticada junto con el TTL de sesión que le
// corresponde. La cola de emisión de sesión es común y vive en el coordinator.
type strategy interface {
	authenticate(ctx context.Context, cred Credential) (*domain.Identity, time.Duration, error)
}
