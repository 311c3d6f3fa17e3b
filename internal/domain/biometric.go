package domain

// BiometricType es la modalidad del template biométrico.
type BiometricType string

const (
	BiometricFacial      BiometricType = "facial"
	BiometricFingerprint BiometricType = "fingerprint"
	BiometricIris        BiometricType = "iris"
)

// BiometricData es un template ya extraído por el microservicio de captura
// externo. El core nunca procesa imágenes crudas; solo compara templates y
// consume scores de liveness ya calculados.
type BiometricData struct {
	Type          BiometricType
	Template      []byte
	Format        string
	LivenessScore float64
}

// DefaultMatchThreshold es el umbral de similitud por defecto.
const DefaultMatchThreshold = 0.85

// Match retorna la similitud [0,1] entre dos templates como la fracción de
// bytes coincidentes. Es un proxy determinístico del matcher externo: mismo
// template = 1.0, templates de largo distinto = 0.0.
func (b *BiometricData) Match(other *BiometricData) float64 {
	if other == nil || b.Type != other.Type {
		return 0
	}
	if len(b.Template) == 0 || len(b.Template) != len(other.Template) {
		return 0
	}
	equal := 0
	for i := range b.Template {
		if b.Template[i] == other.Template[i] {
			equal++
		}
	}
	return float64(equal) / float64(len(b.Template))
}
