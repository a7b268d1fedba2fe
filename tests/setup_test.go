package tests

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/caixaops/bancli/internal/api"
	"github.com/caixaops/bancli/internal/bankmock"
	"github.com/caixaops/bancli/internal/cache"
	"github.com/caixaops/bancli/internal/session"
	"github.com/stretchr/testify/require"
)

// TestEnv wires the full client stack (transport, session store, entity
// cache) against an in-memory bank, the way the binary wires it at startup.
type TestEnv struct {
	Bank    *bankmock.Server
	URL     string
	Client  *api.Client
	Storage *session.MemStorage
	Store   *session.Store
	Cache   *cache.Cache
	t       *testing.T
}

// SetupTest creates a fresh environment with one seeded operator
// (ana@example.com / secret123), one customer and one account.
func SetupTest(t *testing.T) *TestEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	bank := bankmock.New(logger, bankmock.Options{})
	bank.SeedUsuario("Ana Souza", "12345678901", "Rua A, 1", "ana@example.com", "secret123")
	customerID := bank.SeedUsuario("Bruno Lima", "98765432109", "Rua B, 2", "", "")
	bank.SeedConta(customerID, "123456", 10000)

	server := httptest.NewServer(bank.Handler())
	t.Cleanup(server.Close)

	client := api.NewClient(server.URL+"/api", 5*time.Second, logger)
	storage := session.NewMemStorage()
	store := session.NewStore(storage, client, logger)
	client.SetTokenSource(store.Token)
	client.OnUnauthorized(store.Teardown)

	return &TestEnv{
		Bank:    bank,
		URL:     server.URL + "/api",
		Client:  client,
		Storage: storage,
		Store:   store,
		Cache:   cache.New(client, cache.ConfirmAlways, logger),
		t:       t,
	}
}

// Login authenticates as the seeded operator.
func (env *TestEnv) Login(t *testing.T) {
	t.Helper()
	_, err := env.Store.Login(context.Background(), "ana@example.com", "secret123")
	require.NoError(t, err)
}

// Load logs in and fetches all collections.
func (env *TestEnv) Load(t *testing.T) {
	t.Helper()
	env.Login(t)
	require.NoError(t, env.Cache.LoadAll(context.Background()))
}
