package domain

import "time"

// MFAMethod es el conjunto cerrado de métodos de segundo factor.
type MFAMethod string

const (
	MFATOTP       MFAMethod = "totp"
	MFASMS        MFAMethod = "sms"
	MFAEmail      MFAMethod = "email"
	MFABiometric  MFAMethod = "biometric"
	MFABackupCode MFAMethod = "backup_code"
)

// MFAConfiguration es la configuración de un (identity, method). Ciclo de
// vida: ausente → creada-deshabilitada (setup) → habilitada (tras verificar
// un código) → deshabilitada (explícita). Un re-setup estando habilitada se
// rechaza en el engine.
type MFAConfiguration struct {
	ID         string
	IdentityID string
	Method     MFAMethod
	Enabled    bool

	// Secret depende del método: para TOTP es el secreto base32; para
	// sms/email no se usa.
	Secret string

	// BackupCodeHashes guarda solo los hashes de los backup codes vigentes.
	BackupCodeHashes []string

	LastUsedAt *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Enable habilita la configuración.
func (c *MFAConfiguration) Enable(now time.Time) {
	c.Enabled = true
	c.UpdatedAt = now
}

// Disable deshabilita la configuración.
func (c *MFAConfiguration) Disable(now time.Time) {
	c.Enabled = false
	c.UpdatedAt = now
}

// TouchUsed registra el último uso del método.
func (c *MFAConfiguration) TouchUsed(now time.Time) {
	t := now
	c.LastUsedAt = &t
	c.UpdatedAt = now
}

// SetBackupCodes reemplaza el set completo de hashes.
func (c *MFAConfiguration) SetBackupCodes(hashes []string, now time.Time) {
	c.BackupCodeHashes = hashes
	c.UpdatedAt = now
}

// ConsumeBackupCode busca el hash en el set vigente y, si existe, lo elimina.
// Cada código es de un solo uso.
func (c *MFAConfiguration) ConsumeBackupCode(hash string, now time.Time) bool {
	for idx, h := range c.BackupCodeHashes {
		if h == hash {
			c.BackupCodeHashes = append(c.BackupCodeHashes[:idx], c.BackupCodeHashes[idx+1:]...)
			c.TouchUsed(now)
			return true
		}
	}
	return false
}
