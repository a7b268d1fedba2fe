package cache

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/caixaops/bancli/internal/api"
	"github.com/caixaops/bancli/internal/models"
	"github.com/oapi-codegen/runtime/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAPI is an in-memory stand-in for the transport client. It counts
// calls so tests can assert that validation failures never reach the
// network, and applies the server-side balance rules on movements.
type fakeAPI struct {
	mu        sync.Mutex
	customers []models.Customer
	accounts  []models.Account
	movements []models.Movement
	nextID    int64
	calls     map[string]int

	// listUsuariosGate, when set, is received from before ListUsuarios
	// returns. Used to stage races between loads.
	listUsuariosGate chan struct{}
	failLists        bool
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{nextID: 100, calls: map[string]int{}}
}

func (f *fakeAPI) count(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[name]++
}

func (f *fakeAPI) callCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeAPI) mutationCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for name, n := range f.calls {
		if name != "list" {
			total += n
		}
	}
	return total
}

func (f *fakeAPI) id() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	return f.nextID
}

func (f *fakeAPI) ListUsuarios(context.Context) ([]models.Customer, error) {
	f.count("list")
	f.mu.Lock()
	if f.failLists {
		f.mu.Unlock()
		return nil, fmt.Errorf("boom")
	}
	out := append([]models.Customer(nil), f.customers...)
	gate := f.listUsuariosGate
	f.mu.Unlock()
	if gate != nil {
		// The response snapshot was taken before blocking, so a gated
		// call returns data as of the time it was issued.
		<-gate
	}
	return out, nil
}

func (f *fakeAPI) CreateUsuario(_ context.Context, req api.UsuarioRequest) (*models.Customer, error) {
	f.count("createUsuario")
	c := models.Customer{ID: f.id(), Nome: req.Nome, CPF: req.CPF, Endereco: req.Endereco, Email: req.Email}
	f.mu.Lock()
	f.customers = append(f.customers, c)
	f.mu.Unlock()
	return &c, nil
}

func (f *fakeAPI) UpdateUsuario(_ context.Context, id int64, req api.UsuarioRequest) (*models.Customer, error) {
	f.count("updateUsuario")
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.customers {
		if f.customers[i].ID == id {
			f.customers[i].Nome = req.Nome
			f.customers[i].CPF = req.CPF
			f.customers[i].Endereco = req.Endereco
			c := f.customers[i]
			return &c, nil
		}
	}
	return nil, models.ErrNotFound
}

func (f *fakeAPI) DeleteUsuario(_ context.Context, id int64) error {
	f.count("deleteUsuario")
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.customers {
		if f.customers[i].ID == id {
			f.customers = append(f.customers[:i], f.customers[i+1:]...)
			return nil
		}
	}
	return models.ErrNotFound
}

func (f *fakeAPI) ListContas(context.Context) ([]models.Account, error) {
	f.count("list")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failLists {
		return nil, fmt.Errorf("boom")
	}
	return append([]models.Account(nil), f.accounts...), nil
}

func (f *fakeAPI) CreateConta(_ context.Context, req api.CreateContaRequest) (*models.Account, error) {
	f.count("createConta")
	f.mu.Lock()
	defer f.mu.Unlock()
	var owner models.Customer
	for _, c := range f.customers {
		if c.ID == req.UsuarioID {
			owner = c
		}
	}
	a := models.Account{ID: f.nextID + 1, NumeroConta: req.NumeroConta, Saldo: 0, Usuario: owner}
	f.nextID++
	f.accounts = append(f.accounts, a)
	return &a, nil
}

func (f *fakeAPI) UpdateConta(_ context.Context, id int64, req api.UpdateContaRequest) (*models.Account, error) {
	f.count("updateConta")
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.accounts {
		if f.accounts[i].ID == id {
			f.accounts[i].NumeroConta = req.NumeroConta
			a := f.accounts[i]
			return &a, nil
		}
	}
	return nil, models.ErrNotFound
}

func (f *fakeAPI) DeleteConta(_ context.Context, id int64) error {
	f.count("deleteConta")
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.accounts {
		if f.accounts[i].ID == id {
			f.accounts = append(f.accounts[:i], f.accounts[i+1:]...)
			return nil
		}
	}
	return models.ErrNotFound
}

func (f *fakeAPI) ListMovimentacoes(context.Context) ([]models.Movement, error) {
	f.count("list")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failLists {
		return nil, fmt.Errorf("boom")
	}
	return append([]models.Movement(nil), f.movements...), nil
}

func (f *fakeAPI) CreateMovimentacao(_ context.Context, req api.CreateMovimentacaoRequest) (*models.Movement, error) {
	f.count("createMovimentacao")
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.accounts {
		if f.accounts[i].ID == req.ContaID {
			f.accounts[i].Saldo += models.Money(req.Tipo.Sign()) * req.Valor
			m := models.Movement{
				ID: f.nextID + 1, Tipo: req.Tipo, Valor: req.Valor, Data: req.Data, Conta: f.accounts[i],
			}
			f.nextID++
			f.movements = append(f.movements, m)
			return &m, nil
		}
	}
	return nil, models.ErrNotFound
}

func (f *fakeAPI) UpdateMovimentacao(_ context.Context, id int64, req api.UpdateMovimentacaoRequest) (*models.Movement, error) {
	f.count("updateMovimentacao")
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.movements {
		if f.movements[i].ID == id {
			f.movements[i].Data = req.Data
			m := f.movements[i]
			return &m, nil
		}
	}
	return nil, models.ErrNotFound
}

func (f *fakeAPI) DeleteMovimentacao(_ context.Context, id int64) error {
	f.count("deleteMovimentacao")
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.movements {
		if f.movements[i].ID == id {
			m := f.movements[i]
			for j := range f.accounts {
				if f.accounts[j].ID == m.Conta.ID {
					f.accounts[j].Saldo -= models.Money(m.Tipo.Sign()) * m.Valor
				}
			}
			f.movements = append(f.movements[:i], f.movements[i+1:]...)
			return nil
		}
	}
	return models.ErrNotFound
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func date(y int, m time.Month, d int) types.Date {
	return types.Date{Time: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

func seededCache(t *testing.T) (*Cache, *fakeAPI) {
	t.Helper()
	f := newFakeAPI()
	f.customers = []models.Customer{
		{ID: 1, Nome: "Ana Souza", CPF: "12345678901", Endereco: "Rua A, 1"},
		{ID: 2, Nome: "Bruno Lima", CPF: "98765432109", Endereco: "Rua B, 2"},
	}
	f.accounts = []models.Account{
		{ID: 10, NumeroConta: "123456", Saldo: 20000, Usuario: f.customers[0]},
		{ID: 11, NumeroConta: "654321", Saldo: 5000, Usuario: f.customers[1]},
	}

	c := New(f, ConfirmAlways, testLogger())
	require.NoError(t, c.LoadAll(context.Background()))
	return c, f
}

func TestCreateAccountDuplicateNumberIsLocalError(t *testing.T) {
	c, f := seededCache(t)

	err := c.CreateAccount(context.Background(), AccountInput{UsuarioID: 1, NumeroConta: "123456"})

	var fe FieldErrors
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "Este número de conta já está em uso", fe["numeroConta"])
	assert.Zero(t, f.mutationCalls(), "duplicate number must not reach the network")
}

func TestCreateAccountStripsNonDigits(t *testing.T) {
	c, f := seededCache(t)

	require.NoError(t, c.CreateAccount(context.Background(), AccountInput{UsuarioID: 1, NumeroConta: "77-88 99"}))

	assert.Equal(t, 1, f.callCount("createConta"))
	snap := c.Snapshot()
	var found bool
	for _, a := range snap.Accounts {
		if a.NumeroConta == "778899" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestUpdateAccountExcludesItselfFromDuplicateCheck(t *testing.T) {
	c, f := seededCache(t)

	// Re-submitting the account's own number is not a collision.
	require.NoError(t, c.UpdateAccount(context.Background(), 10, "123456"))
	assert.Equal(t, 1, f.callCount("updateConta"))

	// Another account's number is.
	err := c.UpdateAccount(context.Background(), 10, "654321")
	var fe FieldErrors
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "Este número de conta já está em uso", fe["numeroConta"])
	assert.Equal(t, 1, f.callCount("updateConta"))
}

func TestCreateMovementWithdrawalOverBalanceBlocked(t *testing.T) {
	c, f := seededCache(t)

	err := c.CreateMovement(context.Background(), MovementInput{
		ContaID: 11, Tipo: models.MovementWithdrawal, Valor: 5001, Data: date(2024, 1, 10),
	})

	var fe FieldErrors
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "Saldo insuficiente para esta operação", fe["valor"])
	assert.Zero(t, f.mutationCalls())
}

func TestCreateMovementWithdrawalAtBalanceAllowed(t *testing.T) {
	c, f := seededCache(t)

	require.NoError(t, c.CreateMovement(context.Background(), MovementInput{
		ContaID: 11, Tipo: models.MovementWithdrawal, Valor: 5000, Data: date(2024, 1, 10),
	}))

	assert.Equal(t, 1, f.callCount("createMovimentacao"))
	assert.Equal(t, models.Money(0), c.Snapshot().AccountByID(11).Saldo, "reload picks up the server-computed balance")
}

func TestCreateMovementValidation(t *testing.T) {
	tests := []struct {
		name      string
		input     MovementInput
		wantField string
	}{
		{
			name:      "unknown account",
			input:     MovementInput{ContaID: 999, Tipo: models.MovementDeposit, Valor: 100},
			wantField: "contaId",
		},
		{
			name:      "zero amount",
			input:     MovementInput{ContaID: 10, Tipo: models.MovementDeposit, Valor: 0},
			wantField: "valor",
		},
		{
			name:      "negative amount",
			input:     MovementInput{ContaID: 10, Tipo: models.MovementDeposit, Valor: -100},
			wantField: "valor",
		},
		{
			name:      "invalid kind",
			input:     MovementInput{ContaID: 10, Tipo: "CREDITO", Valor: 100},
			wantField: "tipo",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, f := seededCache(t)
			err := c.CreateMovement(context.Background(), tt.input)
			var fe FieldErrors
			require.ErrorAs(t, err, &fe)
			assert.Contains(t, fe, tt.wantField)
			assert.Zero(t, f.mutationCalls())
		})
	}
}

func TestCreateCustomerValidation(t *testing.T) {
	tests := []struct {
		name      string
		input     CustomerInput
		wantField string
		wantMsg   string
	}{
		{
			name:      "blank name",
			input:     CustomerInput{Nome: "   ", CPF: "12345678901", Endereco: "Rua A"},
			wantField: "nome",
			wantMsg:   "Nome é obrigatório",
		},
		{
			name:      "name with digits",
			input:     CustomerInput{Nome: "Jo4o Silva", CPF: "12345678901", Endereco: "Rua A"},
			wantField: "nome",
			wantMsg:   "O nome não pode conter números",
		},
		{
			name:      "short cpf",
			input:     CustomerInput{Nome: "Ana", CPF: "123.456.789", Endereco: "Rua A"},
			wantField: "cpf",
			wantMsg:   "CPF deve conter 11 dígitos",
		},
		{
			name:      "blank address",
			input:     CustomerInput{Nome: "Ana", CPF: "12345678901", Endereco: " "},
			wantField: "endereco",
			wantMsg:   "Endereço é obrigatório",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, f := seededCache(t)
			err := c.CreateCustomer(context.Background(), tt.input)
			var fe FieldErrors
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, tt.wantMsg, fe[tt.wantField])
			assert.Zero(t, f.mutationCalls())
		})
	}
}

func TestCreateCustomerNormalizesAndReloads(t *testing.T) {
	c, f := seededCache(t)

	require.NoError(t, c.CreateCustomer(context.Background(), CustomerInput{
		Nome: "carla DIAS", CPF: "111.222.333-44", Endereco: "Rua C, 3",
	}))

	assert.Equal(t, 1, f.callCount("createUsuario"))

	var matches []models.Customer
	for _, cu := range c.Snapshot().Customers {
		if cu.CPF == "11122233344" {
			matches = append(matches, cu)
		}
	}
	require.Len(t, matches, 1, "created customer appears exactly once after reload")
	assert.Equal(t, "Carla Dias", matches[0].Nome)
}

func TestLoadAllFailurePreservesSnapshot(t *testing.T) {
	c, f := seededCache(t)
	before := c.Snapshot()

	f.mu.Lock()
	f.failLists = true
	f.mu.Unlock()
	err := c.LoadAll(context.Background())
	require.Error(t, err)

	after := c.Snapshot()
	assert.Equal(t, before.Customers, after.Customers)
	assert.Equal(t, before.Accounts, after.Accounts)
}

func TestConcurrentLoadLastResponseWins(t *testing.T) {
	c, f := seededCache(t)

	gate := make(chan struct{})
	f.mu.Lock()
	f.listUsuariosGate = gate
	f.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		done <- c.LoadAll(context.Background()) // stale load, blocked on the gate
	}()

	// Give the stale load time to bump its generation and block.
	time.Sleep(20 * time.Millisecond)

	f.mu.Lock()
	f.customers = append(f.customers, models.Customer{ID: 3, Nome: "Novo Cliente", CPF: "55566677788", Endereco: "Rua N"})
	f.listUsuariosGate = nil
	f.mu.Unlock()
	require.NoError(t, c.LoadAll(context.Background())) // fresh load

	close(gate) // release the stale response
	require.NoError(t, <-done)

	assert.Len(t, c.Snapshot().Customers, 3, "stale response must not overwrite the fresh one")
}

func TestRemoveDeclinedMakesNoNetworkCall(t *testing.T) {
	f := newFakeAPI()
	f.accounts = []models.Account{{ID: 10, NumeroConta: "123456"}}
	c := New(f, func(string) bool { return false }, testLogger())
	require.NoError(t, c.LoadAll(context.Background()))

	assert.ErrorIs(t, c.RemoveAccount(context.Background(), 10), ErrConfirmationDeclined)
	assert.ErrorIs(t, c.RemoveCustomer(context.Background(), 1), ErrConfirmationDeclined)
	assert.ErrorIs(t, c.RemoveMovement(context.Background(), 1), ErrConfirmationDeclined)
	assert.Zero(t, f.mutationCalls())
}

func TestRemoveMovementReloadsBalance(t *testing.T) {
	c, f := seededCache(t)

	require.NoError(t, c.CreateMovement(context.Background(), MovementInput{
		ContaID: 10, Tipo: models.MovementDeposit, Valor: 10000, Data: date(2024, 1, 10),
	}))
	require.Len(t, c.Snapshot().Movements, 1)
	assert.Equal(t, models.Money(30000), c.Snapshot().AccountByID(10).Saldo)

	movID := c.Snapshot().Movements[0].ID
	require.NoError(t, c.RemoveMovement(context.Background(), movID))

	assert.Empty(t, c.Snapshot().Movements)
	assert.Equal(t, models.Money(20000), c.Snapshot().AccountByID(10).Saldo)
	assert.Equal(t, 1, f.callCount("deleteMovimentacao"))
}

func TestInFlightGuardRejectsSecondMutation(t *testing.T) {
	c, _ := seededCache(t)

	require.NoError(t, c.begin(kindMovement))
	defer c.end(kindMovement)

	err := c.CreateMovement(context.Background(), MovementInput{
		ContaID: 10, Tipo: models.MovementDeposit, Valor: 100,
	})
	assert.ErrorIs(t, err, ErrOperationInFlight)

	// Other entity kinds are independent.
	require.NoError(t, c.CreateCustomer(context.Background(), CustomerInput{
		Nome: "Davi Rocha", CPF: "22233344455", Endereco: "Rua D, 4",
	}))
}

func TestCreateMovementDefaultsDateToToday(t *testing.T) {
	c, f := seededCache(t)

	require.NoError(t, c.CreateMovement(context.Background(), MovementInput{
		ContaID: 10, Tipo: models.MovementDeposit, Valor: 100,
	}))

	require.Equal(t, 1, f.callCount("createMovimentacao"))
	got := c.Snapshot().Movements[0].Data
	assert.Equal(t, time.Now().Format("2006-01-02"), got.Format("2006-01-02"))
}
