package domain

import "time"

// ProvisioningState registra el resultado del alta best-effort de la cuenta
// en el ledger externo. Reemplaza al mapa de metadata string/string del
// sistema anterior por una estructura explícita.
//
// Invariante: una vez registrada una Address, no se vuelve a intentar el
// provisioning para esa identidad.
type ProvisioningState struct {
	// Address es la dirección de cuenta externa, vacía hasta el primer éxito.
	Address   string
	Currency  string
	CreatedAt *time.Time

	// Failed marca agotamiento de reintentos; habilita el sweep out-of-band.
	Failed         bool
	LastError      string
	FailedAttempts int
	LastFailedAt   *time.Time
	LastRetryAt    *time.Time
}

// Provisioned indica si ya existe una cuenta externa registrada.
func (p *ProvisioningState) Provisioned() bool {
	return p != nil && p.Address != ""
}

// RecordSuccess registra la dirección creada y limpia el estado de fallo.
func (p *ProvisioningState) RecordSuccess(address, currency string, now time.Time) {
	p.Address = address
	p.Currency = currency
	t := now
	p.CreatedAt = &t
	p.Failed = false
	p.LastError = ""
}

// RecordFailure acumula un fallo de provisioning.
func (p *ProvisioningState) RecordFailure(errMsg string, now time.Time) {
	p.Failed = true
	p.LastError = errMsg
	p.FailedAttempts++
	t := now
	p.LastFailedAt = &t
}
