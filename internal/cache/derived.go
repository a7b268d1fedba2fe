package cache

import (
	"sort"

	"github.com/caixaops/bancli/internal/models"
)

// Snapshot is an immutable view of the three collections as last fetched.
// Derived views are pure functions over a snapshot; they issue no network
// calls and never mutate it.
type Snapshot struct {
	Customers []models.Customer
	Accounts  []models.Account
	Movements []models.Movement
}

func (s Snapshot) accountByID(id int64) *models.Account {
	for i := range s.Accounts {
		if s.Accounts[i].ID == id {
			a := s.Accounts[i]
			return &a
		}
	}
	return nil
}

// CustomerByID returns the cached customer, or nil if unknown.
func (s Snapshot) CustomerByID(id int64) *models.Customer {
	for i := range s.Customers {
		if s.Customers[i].ID == id {
			c := s.Customers[i]
			return &c
		}
	}
	return nil
}

// AccountByID returns the cached account, or nil if unknown.
func (s Snapshot) AccountByID(id int64) *models.Account {
	return s.accountByID(id)
}

// AccountsForCustomer filters the account collection by owner.
func (s Snapshot) AccountsForCustomer(customerID int64) []models.Account {
	var out []models.Account
	for _, a := range s.Accounts {
		if a.Usuario.ID == customerID {
			out = append(out, a)
		}
	}
	return out
}

// Statement is the per-account view the extrato screen renders: movements
// newest-first plus the account's last server-reported balance. The balance
// is never recomputed by summing movements; the server owns it.
type Statement struct {
	Movements []models.Movement
	Saldo     models.Money
}

// StatementForAccount filters the movement collection by account and sorts
// it descending by date. The sort is stable, so same-day movements keep
// their arrival order. Returns models.ErrNotFound for an unknown account.
func (s Snapshot) StatementForAccount(accountID int64) (Statement, error) {
	account := s.accountByID(accountID)
	if account == nil {
		return Statement{}, models.ErrNotFound
	}

	var movements []models.Movement
	for _, m := range s.Movements {
		if m.Conta.ID == accountID {
			movements = append(movements, m)
		}
	}

	sort.SliceStable(movements, func(i, j int) bool {
		return movements[i].Data.Time.After(movements[j].Data.Time)
	})

	return Statement{Movements: movements, Saldo: account.Saldo}, nil
}
