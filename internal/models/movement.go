package models

import (
	"fmt"

	"github.com/oapi-codegen/runtime/types"
)

// MovementKind is the type of a financial movement.
type MovementKind string

const (
	MovementDeposit    MovementKind = "DEPOSITO"
	MovementWithdrawal MovementKind = "SAQUE"
)

// Valid reports whether the kind is one of the two canonical values.
func (k MovementKind) Valid() bool {
	return k == MovementDeposit || k == MovementWithdrawal
}

// Sign returns +1 for deposits and -1 for withdrawals.
func (k MovementKind) Sign() int64 {
	if k == MovementWithdrawal {
		return -1
	}
	return 1
}

// ParseMovementKind converts a string into a MovementKind.
func ParseMovementKind(s string) (MovementKind, error) {
	k := MovementKind(s)
	if !k.Valid() {
		return "", fmt.Errorf("invalid movement kind %q: must be %s or %s", s, MovementDeposit, MovementWithdrawal)
	}
	return k, nil
}

// Movement represents a single deposit or withdrawal ("movimentacao")
// against one account. The owning account is embedded in API responses.
type Movement struct {
	ID    int64        `json:"id"`
	Tipo  MovementKind `json:"tipo"`
	Valor Money        `json:"valor"`
	Data  types.Date   `json:"data"`
	Conta Account      `json:"conta"`
}
