// Package cache maintains in-memory snapshots of the server's customer,
// account and movement collections and mediates every mutation so the
// displayed state stays consistent with what the server last accepted.
//
// Mutations follow a fixed contract: validate locally, call the API, then
// re-fetch the affected collections in full. Server-computed fields (the
// account balance above all) are never patched locally.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/caixaops/bancli/internal/api"
	"github.com/caixaops/bancli/internal/models"
	"github.com/oapi-codegen/runtime/types"
)

// API is the slice of the transport client the cache depends on.
type API interface {
	ListUsuarios(ctx context.Context) ([]models.Customer, error)
	CreateUsuario(ctx context.Context, req api.UsuarioRequest) (*models.Customer, error)
	UpdateUsuario(ctx context.Context, id int64, req api.UsuarioRequest) (*models.Customer, error)
	DeleteUsuario(ctx context.Context, id int64) error

	ListContas(ctx context.Context) ([]models.Account, error)
	CreateConta(ctx context.Context, req api.CreateContaRequest) (*models.Account, error)
	UpdateConta(ctx context.Context, id int64, req api.UpdateContaRequest) (*models.Account, error)
	DeleteConta(ctx context.Context, id int64) error

	ListMovimentacoes(ctx context.Context) ([]models.Movement, error)
	CreateMovimentacao(ctx context.Context, req api.CreateMovimentacaoRequest) (*models.Movement, error)
	UpdateMovimentacao(ctx context.Context, id int64, req api.UpdateMovimentacaoRequest) (*models.Movement, error)
	DeleteMovimentacao(ctx context.Context, id int64) error
}

// Confirmer answers a yes/no question before a destructive operation. It
// blocks until answered.
type Confirmer func(prompt string) bool

// ConfirmAlways is a Confirmer for non-interactive use.
func ConfirmAlways(string) bool { return true }

type entityKind string

const (
	kindCustomer entityKind = "customer"
	kindAccount  entityKind = "account"
	kindMovement entityKind = "movement"
)

// Cache is safe for concurrent use. Collections are replaced wholesale,
// never merged: a load that loses the race against a newer one is discarded.
type Cache struct {
	api     API
	logger  *slog.Logger
	confirm Confirmer

	mu       sync.Mutex
	snap     Snapshot
	gen      map[entityKind]uint64 // latest started fetch per collection
	inFlight map[entityKind]bool
}

// New creates a Cache over the given API client. confirm guards removals;
// pass ConfirmAlways for non-interactive use.
func New(client API, confirm Confirmer, logger *slog.Logger) *Cache {
	if confirm == nil {
		confirm = ConfirmAlways
	}
	return &Cache{
		api:      client,
		logger:   logger,
		confirm:  confirm,
		gen:      map[entityKind]uint64{},
		inFlight: map[entityKind]bool{},
	}
}

// Snapshot returns the current immutable view of all three collections.
func (c *Cache) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap
}

// LoadAll fetches the three collections in full. On any failure the
// previous snapshot is preserved and the error is returned; nothing is
// cleared. Concurrent loads follow last-response-wins per collection.
func (c *Cache) LoadAll(ctx context.Context) error {
	if err := c.refresh(ctx, kindCustomer, kindAccount, kindMovement); err != nil {
		return fmt.Errorf("failed to load: %w", err)
	}
	return nil
}

// refresh re-fetches the named collections and applies each response only
// if no newer fetch of the same collection started meanwhile.
func (c *Cache) refresh(ctx context.Context, kinds ...entityKind) error {
	gens := make(map[entityKind]uint64, len(kinds))
	c.mu.Lock()
	for _, k := range kinds {
		c.gen[k]++
		gens[k] = c.gen[k]
	}
	c.mu.Unlock()

	for _, k := range kinds {
		switch k {
		case kindCustomer:
			customers, err := c.api.ListUsuarios(ctx)
			if err != nil {
				return err
			}
			c.apply(k, gens[k], func(s *Snapshot) { s.Customers = customers })
		case kindAccount:
			accounts, err := c.api.ListContas(ctx)
			if err != nil {
				return err
			}
			c.apply(k, gens[k], func(s *Snapshot) { s.Accounts = accounts })
		case kindMovement:
			movements, err := c.api.ListMovimentacoes(ctx)
			if err != nil {
				return err
			}
			c.apply(k, gens[k], func(s *Snapshot) { s.Movements = movements })
		}
	}
	return nil
}

func (c *Cache) apply(k entityKind, gen uint64, set func(*Snapshot)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen[k] != gen {
		c.logger.Debug("discarding stale collection response", "kind", string(k), "gen", gen)
		return
	}
	set(&c.snap)
}

// begin marks a mutation of the given kind as outstanding. A second
// mutation of the same kind fails fast instead of queueing, so a double
// submit cannot reach the server twice.
func (c *Cache) begin(k entityKind) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inFlight[k] {
		return fmt.Errorf("%s: %w", k, ErrOperationInFlight)
	}
	c.inFlight[k] = true
	return nil
}

func (c *Cache) end(k entityKind) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inFlight[k] = false
}

// CustomerInput is a customer submission before normalization.
type CustomerInput struct {
	Nome     string
	CPF      string
	Endereco string
	Email    string
}

func (in CustomerInput) normalized() CustomerInput {
	in.Nome = models.FormatName(strings.TrimSpace(in.Nome))
	in.CPF = models.NormalizeCPF(in.CPF)
	in.Endereco = strings.TrimSpace(in.Endereco)
	return in
}

// CreateCustomer validates and creates a customer, then reloads the
// customer collection.
func (c *Cache) CreateCustomer(ctx context.Context, in CustomerInput) error {
	if err := c.begin(kindCustomer); err != nil {
		return err
	}
	defer c.end(kindCustomer)

	in = in.normalized()
	if errs := validateCustomer(in); errs != nil {
		return errs
	}

	if _, err := c.api.CreateUsuario(ctx, api.UsuarioRequest{
		Nome: in.Nome, CPF: in.CPF, Endereco: in.Endereco, Email: in.Email,
	}); err != nil {
		return fmt.Errorf("failed to save customer: %w", err)
	}

	return c.refresh(ctx, kindCustomer)
}

// UpdateCustomer validates and updates a customer's mutable fields
// (nome, cpf, endereco), then reloads the customer collection.
func (c *Cache) UpdateCustomer(ctx context.Context, id int64, in CustomerInput) error {
	if err := c.begin(kindCustomer); err != nil {
		return err
	}
	defer c.end(kindCustomer)

	in = in.normalized()
	if errs := validateCustomer(in); errs != nil {
		return errs
	}

	if _, err := c.api.UpdateUsuario(ctx, id, api.UsuarioRequest{
		Nome: in.Nome, CPF: in.CPF, Endereco: in.Endereco, Email: in.Email,
	}); err != nil {
		return fmt.Errorf("failed to save customer: %w", err)
	}

	return c.refresh(ctx, kindCustomer)
}

// RemoveCustomer asks for confirmation, deletes the customer and reloads
// the customer collection.
func (c *Cache) RemoveCustomer(ctx context.Context, id int64) error {
	if err := c.begin(kindCustomer); err != nil {
		return err
	}
	defer c.end(kindCustomer)

	if !c.confirm("Tem certeza que deseja excluir este usuário?") {
		return ErrConfirmationDeclined
	}

	if err := c.api.DeleteUsuario(ctx, id); err != nil {
		return fmt.Errorf("failed to remove customer: %w", err)
	}

	return c.refresh(ctx, kindCustomer)
}

// AccountInput is an account submission before normalization. For updates
// the owner is ignored; it is immutable after creation.
type AccountInput struct {
	UsuarioID   int64
	NumeroConta string
}

// CreateAccount validates and creates an account (balance starts at zero,
// server-owned), then reloads customers and accounts.
func (c *Cache) CreateAccount(ctx context.Context, in AccountInput) error {
	if err := c.begin(kindAccount); err != nil {
		return err
	}
	defer c.end(kindAccount)

	numero := models.DigitsOnly(in.NumeroConta)

	errs := FieldErrors{}
	if in.UsuarioID == 0 {
		errs["usuarioId"] = msgCustomerRequired
	}
	if numErrs := validateAccountNumber(c.Snapshot().Accounts, numero, 0); numErrs != nil {
		errs["numeroConta"] = numErrs["numeroConta"]
	}
	if len(errs) > 0 {
		return errs
	}

	if _, err := c.api.CreateConta(ctx, api.CreateContaRequest{
		UsuarioID: in.UsuarioID, NumeroConta: numero,
	}); err != nil {
		return fmt.Errorf("failed to save account: %w", err)
	}

	return c.refresh(ctx, kindCustomer, kindAccount)
}

// UpdateAccount validates and updates an account's number (the only mutable
// field), then reloads customers and accounts.
func (c *Cache) UpdateAccount(ctx context.Context, id int64, numeroConta string) error {
	if err := c.begin(kindAccount); err != nil {
		return err
	}
	defer c.end(kindAccount)

	numero := models.DigitsOnly(numeroConta)
	if errs := validateAccountNumber(c.Snapshot().Accounts, numero, id); errs != nil {
		return errs
	}

	if _, err := c.api.UpdateConta(ctx, id, api.UpdateContaRequest{NumeroConta: numero}); err != nil {
		return fmt.Errorf("failed to save account: %w", err)
	}

	return c.refresh(ctx, kindCustomer, kindAccount)
}

// RemoveAccount asks for confirmation, deletes the account and reloads
// customers and accounts. Whether the account still has movements is the
// server's constraint to enforce.
func (c *Cache) RemoveAccount(ctx context.Context, id int64) error {
	if err := c.begin(kindAccount); err != nil {
		return err
	}
	defer c.end(kindAccount)

	if !c.confirm("Tem certeza que deseja excluir esta conta?") {
		return ErrConfirmationDeclined
	}

	if err := c.api.DeleteConta(ctx, id); err != nil {
		return fmt.Errorf("failed to remove account: %w", err)
	}

	return c.refresh(ctx, kindCustomer, kindAccount)
}

// MovementInput is a movement submission. A zero Data defaults to today.
type MovementInput struct {
	ContaID int64
	Tipo    models.MovementKind
	Valor   models.Money
	Data    types.Date
}

// CreateMovement validates a movement against the selected account's
// last-known balance, creates it and reloads accounts and movements (the
// server recomputes the balance).
func (c *Cache) CreateMovement(ctx context.Context, in MovementInput) error {
	if err := c.begin(kindMovement); err != nil {
		return err
	}
	defer c.end(kindMovement)

	account := c.Snapshot().accountByID(in.ContaID)
	if errs := validateMovement(in, account); errs != nil {
		return errs
	}

	if in.Data.IsZero() {
		in.Data = types.Date{Time: time.Now()}
	}

	if _, err := c.api.CreateMovimentacao(ctx, api.CreateMovimentacaoRequest{
		ContaID: in.ContaID, Tipo: in.Tipo, Valor: in.Valor, Data: in.Data,
	}); err != nil {
		return fmt.Errorf("failed to save movement: %w", err)
	}

	return c.refresh(ctx, kindAccount, kindMovement)
}

// UpdateMovementDate changes a movement's date, the only field mutable
// after creation, then reloads accounts and movements.
func (c *Cache) UpdateMovementDate(ctx context.Context, id int64, data types.Date) error {
	if err := c.begin(kindMovement); err != nil {
		return err
	}
	defer c.end(kindMovement)

	if data.IsZero() {
		return FieldErrors{"data": msgDateRequired}
	}

	if _, err := c.api.UpdateMovimentacao(ctx, id, api.UpdateMovimentacaoRequest{Data: data}); err != nil {
		return fmt.Errorf("failed to save movement: %w", err)
	}

	return c.refresh(ctx, kindAccount, kindMovement)
}

// RemoveMovement asks for confirmation (the removal changes the account
// balance), deletes the movement and reloads accounts and movements.
func (c *Cache) RemoveMovement(ctx context.Context, id int64) error {
	if err := c.begin(kindMovement); err != nil {
		return err
	}
	defer c.end(kindMovement)

	if !c.confirm("Tem certeza que deseja excluir esta movimentação? Isso afetará o saldo da conta.") {
		return ErrConfirmationDeclined
	}

	if err := c.api.DeleteMovimentacao(ctx, id); err != nil {
		return fmt.Errorf("failed to remove movement: %w", err)
	}

	return c.refresh(ctx, kindAccount, kindMovement)
}
