// Package api implements the typed HTTP client for the banking admin REST API.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/caixaops/bancli/internal/models"
	"github.com/google/uuid"
)

// Client issues typed calls against the five resource collections. A bearer
// token from the registered token source is attached to every request except
// the auth endpoints; any 401 on an authenticated call fires the registered
// unauthorized hook (session teardown) and surfaces ErrUnauthorized.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger

	mu             sync.RWMutex
	tokenSource    func() string
	onUnauthorized func()
}

// NewClient creates a Client for the given base URL (e.g.
// "http://localhost:8080/api").
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// SetTokenSource registers the function supplying the current bearer token.
// An empty return value means "no session".
func (c *Client) SetTokenSource(fn func() string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokenSource = fn
}

// OnUnauthorized registers the hook invoked when an authenticated call
// answers 401. The hook runs before the call returns ErrUnauthorized.
func (c *Client) OnUnauthorized(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onUnauthorized = fn
}

func (c *Client) currentToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.tokenSource == nil {
		return ""
	}
	return c.tokenSource()
}

func (c *Client) fireUnauthorized() {
	c.mu.RLock()
	hook := c.onUnauthorized
	c.mu.RUnlock()
	if hook != nil {
		hook()
	}
}

// do issues one request and decodes a 2xx JSON response into out (when out
// is non-nil). Auth endpoints carry no bearer token and are exempt from the
// 401 teardown, mirroring the separate unauthenticated auth channel of the
// admin UI.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	requestID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-Id", requestID)

	isAuthPath := strings.HasPrefix(path, "/auth/")
	if !isAuthPath {
		if token := c.currentToken(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	c.logger.Debug("api request", "method", method, "path", path, "request_id", requestID)

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("api request failed", "method", method, "path", path, "request_id", requestID, "error", err)
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close() //nolint:errcheck // nothing useful to do with a close error

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	c.logger.Debug("api response", "method", method, "path", path, "request_id", requestID, "status", resp.StatusCode)

	if resp.StatusCode == http.StatusUnauthorized && !isAuthPath {
		c.fireUnauthorized()
		return ErrUnauthorized
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp.StatusCode, respBody)
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to decode response body: %w", err)
		}
	}

	return nil
}

// Login authenticates with email and password.
func (c *Client) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	var resp AuthResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Register creates a new operator profile and returns its session token.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	var resp AuthResponse
	if err := c.do(ctx, http.MethodPost, "/auth/register", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListUsuarios fetches the full customer collection.
func (c *Client) ListUsuarios(ctx context.Context) ([]models.Customer, error) {
	var out []models.Customer
	if err := c.do(ctx, http.MethodGet, "/usuarios", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetUsuario fetches one customer by id.
func (c *Client) GetUsuario(ctx context.Context, id int64) (*models.Customer, error) {
	var out models.Customer
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/usuarios/%d", id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateUsuario creates a customer.
func (c *Client) CreateUsuario(ctx context.Context, req UsuarioRequest) (*models.Customer, error) {
	var out models.Customer
	if err := c.do(ctx, http.MethodPost, "/usuarios", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateUsuario updates a customer's mutable fields (nome, cpf, endereco).
func (c *Client) UpdateUsuario(ctx context.Context, id int64, req UsuarioRequest) (*models.Customer, error) {
	var out models.Customer
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("/usuarios/%d", id), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteUsuario removes a customer.
func (c *Client) DeleteUsuario(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/usuarios/%d", id), nil, nil)
}

// ListContas fetches the full account collection.
func (c *Client) ListContas(ctx context.Context) ([]models.Account, error) {
	var out []models.Account
	if err := c.do(ctx, http.MethodGet, "/contas", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetConta fetches one account by id.
func (c *Client) GetConta(ctx context.Context, id int64) (*models.Account, error) {
	var out models.Account
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/contas/%d", id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ContasByUsuario fetches the accounts owned by one customer.
func (c *Client) ContasByUsuario(ctx context.Context, usuarioID int64) ([]models.Account, error) {
	var out []models.Account
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/contas/usuario/%d", usuarioID), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateConta creates an account for a customer.
func (c *Client) CreateConta(ctx context.Context, req CreateContaRequest) (*models.Account, error) {
	var out models.Account
	if err := c.do(ctx, http.MethodPost, "/contas", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateConta updates an account's number.
func (c *Client) UpdateConta(ctx context.Context, id int64, req UpdateContaRequest) (*models.Account, error) {
	var out models.Account
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("/contas/%d", id), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteConta removes an account.
func (c *Client) DeleteConta(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/contas/%d", id), nil, nil)
}

// ListMovimentacoes fetches the full movement collection.
func (c *Client) ListMovimentacoes(ctx context.Context) ([]models.Movement, error) {
	var out []models.Movement
	if err := c.do(ctx, http.MethodGet, "/movimentacoes", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// MovimentacoesByConta fetches the movements of one account.
func (c *Client) MovimentacoesByConta(ctx context.Context, contaID int64) ([]models.Movement, error) {
	var out []models.Movement
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/movimentacoes/conta/%d", contaID), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateMovimentacao registers a deposit or withdrawal. The server
// recomputes the account balance as a side effect.
func (c *Client) CreateMovimentacao(ctx context.Context, req CreateMovimentacaoRequest) (*models.Movement, error) {
	var out models.Movement
	if err := c.do(ctx, http.MethodPost, "/movimentacoes", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateMovimentacao updates a movement's date.
func (c *Client) UpdateMovimentacao(ctx context.Context, id int64, req UpdateMovimentacaoRequest) (*models.Movement, error) {
	var out models.Movement
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("/movimentacoes/%d", id), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteMovimentacao removes a movement; the server recomputes the account
// balance.
func (c *Client) DeleteMovimentacao(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/movimentacoes/%d", id), nil, nil)
}
