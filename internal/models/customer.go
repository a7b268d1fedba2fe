// Package models defines the wire-level entities of the banking admin API.
package models

// Customer represents a bank customer ("usuario") as returned by the API.
// CPF is stored canonically as 11 digits; display formatting is applied
// separately with FormatCPF.
type Customer struct {
	ID       int64  `json:"id"`
	Nome     string `json:"nome"`
	CPF      string `json:"cpf"`
	Endereco string `json:"endereco"`
	Email    string `json:"email,omitempty"`
}
