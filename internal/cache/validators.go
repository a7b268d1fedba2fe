package cache

import (
	"strings"

	"github.com/caixaops/bancli/internal/models"
)

// Validation messages shown to the operator, matching the admin UI.
const (
	msgNameRequired        = "Nome é obrigatório"
	msgNameHasDigits       = "O nome não pode conter números"
	msgCPFLength           = "CPF deve conter 11 dígitos"
	msgAddressRequired     = "Endereço é obrigatório"
	msgCustomerRequired    = "Selecione um cliente"
	msgAccountRequired     = "Selecione uma conta"
	msgNumberRequired      = "Número da conta é obrigatório"
	msgNumberInUse         = "Este número de conta já está em uso"
	msgAmountPositive      = "Valor deve ser maior que zero"
	msgInsufficientBalance = "Saldo insuficiente para esta operação"
	msgKindInvalid         = "Tipo de movimentação inválido"
	msgDateRequired        = "Data é obrigatória"
)

// validateCustomer checks a customer submission. Inputs are expected to be
// normalized already (name formatted, CPF stripped to digits).
func validateCustomer(in CustomerInput) FieldErrors {
	errs := FieldErrors{}

	if strings.TrimSpace(in.Nome) == "" {
		errs["nome"] = msgNameRequired
	} else if models.ContainsDigit(in.Nome) {
		errs["nome"] = msgNameHasDigits
	}

	if len(in.CPF) != 11 {
		errs["cpf"] = msgCPFLength
	}

	if strings.TrimSpace(in.Endereco) == "" {
		errs["endereco"] = msgAddressRequired
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

// validateAccountNumber checks an account number against the currently
// cached accounts. excludeID skips the record under edit so an unchanged
// number does not collide with itself.
func validateAccountNumber(accounts []models.Account, numero string, excludeID int64) FieldErrors {
	errs := FieldErrors{}

	if numero == "" {
		errs["numeroConta"] = msgNumberRequired
	} else {
		for _, a := range accounts {
			if a.ID != excludeID && a.NumeroConta == numero {
				errs["numeroConta"] = msgNumberInUse
				break
			}
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

// validateMovement checks a movement submission against the selected
// account's last-known balance. The overdraft check is optimistic only; the
// server stays authoritative and may still reject a concurrent withdrawal.
func validateMovement(in MovementInput, account *models.Account) FieldErrors {
	errs := FieldErrors{}

	if account == nil {
		errs["contaId"] = msgAccountRequired
	}

	if !in.Tipo.Valid() {
		errs["tipo"] = msgKindInvalid
	}

	if in.Valor <= 0 {
		errs["valor"] = msgAmountPositive
	} else if in.Tipo == models.MovementWithdrawal && account != nil && in.Valor > account.Saldo {
		errs["valor"] = msgInsufficientBalance
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}
