package api

import (
	"github.com/caixaops/bancli/internal/models"
	"github.com/oapi-codegen/runtime/types"
)

// LoginRequest is the body of POST /auth/login
type LoginRequest struct {
	Email string `json:"email"`
	Senha string `json:"senha"`
}

// RegisterRequest is the body of POST /auth/register
type RegisterRequest struct {
	Nome     string `json:"nome"`
	CPF      string `json:"cpf"`
	Endereco string `json:"endereco"`
	Email    string `json:"email"`
	Senha    string `json:"senha"`
}

// AuthResponse is returned by both auth endpoints
type AuthResponse struct {
	Token  string `json:"token"`
	Tipo   string `json:"tipo,omitempty"`
	UserID int64  `json:"userId"`
	Nome   string `json:"nome"`
	Email  string `json:"email,omitempty"`
}

// UsuarioRequest is the body for creating or updating a customer
type UsuarioRequest struct {
	Nome     string `json:"nome"`
	CPF      string `json:"cpf"`
	Endereco string `json:"endereco"`
	Email    string `json:"email,omitempty"`
}

// CreateContaRequest is the body of POST /contas. New accounts always start
// with a zero balance; the server owns the balance from then on.
type CreateContaRequest struct {
	UsuarioID   int64  `json:"usuarioId"`
	NumeroConta string `json:"numeroConta"`
}

// UpdateContaRequest is the body of PUT /contas/{id}. Only the account
// number is mutable; the owner is fixed at creation.
type UpdateContaRequest struct {
	NumeroConta string `json:"numeroConta"`
}

// CreateMovimentacaoRequest is the body of POST /movimentacoes
type CreateMovimentacaoRequest struct {
	ContaID int64               `json:"contaId"`
	Tipo    models.MovementKind `json:"tipo"`
	Valor   models.Money        `json:"valor"`
	Data    types.Date          `json:"data"`
}

// UpdateMovimentacaoRequest is the body of PUT /movimentacoes/{id}. Only the
// date is mutable after creation.
type UpdateMovimentacaoRequest struct {
	Data types.Date `json:"data"`
}
