package evidence

// Tipos del payload de evidencia biométrica. El formato es interoperable:
// cualquier consumidor con la clave pública puede validar el token sin
// hablar con este servicio, así que los nombres de campo son contrato.

// Type distingue enrolamiento de verificación.
type Type string

const (
	TypeEnroll Type = "enroll"
	TypeVerify Type = "verify"
)

// Liveness es el resultado PAD del microservicio de captura.
type Liveness struct {
	Score     float64 `json:"score"`
	Decision  string  `json:"decision"` // "PASS" | "FAIL"
	Algorithm string  `json:"algorithm,omitempty"`
}

// Match es el resultado de comparación (solo verify).
type Match struct {
	Similarity float64 `json:"similarity"`
	Decision   string  `json:"decision"`
	Algorithm  string  `json:"algorithm,omitempty"`
}

// Quality describe la captura.
type Quality struct {
	Quality float64 `json:"quality"`
	Format  string  `json:"format,omitempty"`
}

// Policy son los umbrales vigentes al momento del evento.
type Policy struct {
	LivenessThreshold float64 `json:"liveness_threshold"`
	MatchThreshold    float64 `json:"match_threshold,omitempty"`
}

// Provenance identifica el origen del template.
type Provenance struct {
	Source           string `json:"source"`
	TemplateID       string `json:"template_id,omitempty"`
	AlgorithmVersion string `json:"algorithm_version,omitempty"`
}

// Payload es el cuerpo firmado del token de evidencia.
type Payload struct {
	Issuer     string     `json:"iss"`
	SubjectID  string     `json:"sub"`
	DID        string     `json:"did,omitempty"`
	SessionID  string     `json:"sid"`
	IssuedAt   int64      `json:"iat"`
	Type       Type       `json:"evidence_type"`
	Liveness   Liveness   `json:"liveness"`
	Match      *Match     `json:"match,omitempty"`
	Quality    Quality    `json:"quality"`
	Policy     Policy     `json:"policy"`
	Provenance Provenance `json:"provenance"`
}
