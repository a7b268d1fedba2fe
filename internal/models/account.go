package models

// Account represents a bank account ("conta") with its server-computed
// balance. The owning customer is embedded in API responses, matching the
// backend's serialization.
type Account struct {
	ID          int64    `json:"id"`
	NumeroConta string   `json:"numeroConta"`
	Saldo       Money    `json:"saldo"`
	Usuario     Customer `json:"usuario"`
}
