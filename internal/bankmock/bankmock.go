// Package bankmock is an in-memory implementation of the banking admin REST
// contract, used as the test double behind client and integration tests. It
// applies the same server-side rules the real backend owns: token issuance,
// bearer checks, balance recomputation on movements, and uniqueness
// constraints.
package bankmock

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/caixaops/bancli/internal/api"
	"github.com/caixaops/bancli/internal/models"
	"github.com/google/uuid"
)

// Options tunes failure behavior for error-path tests.
type Options struct {
	// Latency is added to every request before it is handled.
	Latency time.Duration
}

type usuarioRecord struct {
	models.Customer
	senha string
}

type contaRecord struct {
	id        int64
	numero    string
	saldo     models.Money
	usuarioID int64
}

type movRecord struct {
	id      int64
	tipo    models.MovementKind
	valor   models.Money
	data    string
	contaID int64
}

// Server holds the in-memory state. Safe for concurrent use.
type Server struct {
	logger *slog.Logger
	opts   Options

	mu       sync.Mutex
	usuarios map[int64]*usuarioRecord
	contas   map[int64]*contaRecord
	movs     map[int64]*movRecord
	order    []int64 // movement insertion order
	tokens   map[string]int64
	nextID   int64

	forcedStatus int // applied to the next non-auth request, then cleared
}

// New creates an empty mock bank.
func New(logger *slog.Logger, opts Options) *Server {
	return &Server{
		logger:   logger,
		opts:     opts,
		usuarios: map[int64]*usuarioRecord{},
		contas:   map[int64]*contaRecord{},
		movs:     map[int64]*movRecord{},
		tokens:   map[string]int64{},
	}
}

func (s *Server) id() int64 {
	s.nextID++
	return s.nextID
}

// SeedUsuario inserts a customer (who can also log in when senha is set).
func (s *Server) SeedUsuario(nome, cpf, endereco, email, senha string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.id()
	s.usuarios[id] = &usuarioRecord{
		Customer: models.Customer{ID: id, Nome: nome, CPF: cpf, Endereco: endereco, Email: email},
		senha:    senha,
	}
	return id
}

// SeedConta inserts an account with the given balance in cents.
func (s *Server) SeedConta(usuarioID int64, numero string, saldo models.Money) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.id()
	s.contas[id] = &contaRecord{id: id, numero: numero, saldo: saldo, usuarioID: usuarioID}
	return id
}

// IssueToken registers a valid bearer token for the given user.
func (s *Server) IssueToken(userID int64) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	token := uuid.NewString()
	s.tokens[token] = userID
	return token
}

// RevokeTokens invalidates every issued token, so the next authenticated
// call answers 401.
func (s *Server) RevokeTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = map[string]int64{}
}

// FailNextWith forces the given status on the next non-auth request.
func (s *Server) FailNextWith(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forcedStatus = status
}

// Saldo returns an account's current balance.
func (s *Server) Saldo(contaID int64) models.Money {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.contas[contaID]; ok {
		return c.saldo
	}
	return 0
}

// Handler returns the HTTP handler implementing the REST contract under
// the /api prefix.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	mux.HandleFunc("POST /api/auth/register", s.handleRegister)

	mux.HandleFunc("GET /api/usuarios", s.authed(s.handleListUsuarios))
	mux.HandleFunc("POST /api/usuarios", s.authed(s.handleCreateUsuario))
	mux.HandleFunc("GET /api/usuarios/{id}", s.authed(s.handleGetUsuario))
	mux.HandleFunc("PUT /api/usuarios/{id}", s.authed(s.handleUpdateUsuario))
	mux.HandleFunc("DELETE /api/usuarios/{id}", s.authed(s.handleDeleteUsuario))

	mux.HandleFunc("GET /api/contas", s.authed(s.handleListContas))
	mux.HandleFunc("POST /api/contas", s.authed(s.handleCreateConta))
	mux.HandleFunc("GET /api/contas/{id}", s.authed(s.handleGetConta))
	mux.HandleFunc("PUT /api/contas/{id}", s.authed(s.handleUpdateConta))
	mux.HandleFunc("DELETE /api/contas/{id}", s.authed(s.handleDeleteConta))
	mux.HandleFunc("GET /api/contas/usuario/{usuarioId}", s.authed(s.handleContasByUsuario))

	mux.HandleFunc("GET /api/movimentacoes", s.authed(s.handleListMovs))
	mux.HandleFunc("POST /api/movimentacoes", s.authed(s.handleCreateMov))
	mux.HandleFunc("GET /api/movimentacoes/{id}", s.authed(s.handleGetMov))
	mux.HandleFunc("PUT /api/movimentacoes/{id}", s.authed(s.handleUpdateMov))
	mux.HandleFunc("DELETE /api/movimentacoes/{id}", s.authed(s.handleDeleteMov))
	mux.HandleFunc("GET /api/movimentacoes/conta/{contaId}", s.authed(s.handleMovsByConta))

	return mux
}

// authed checks the bearer token and applies latency/forced failures
// before delegating.
func (s *Server) authed(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.opts.Latency > 0 {
			time.Sleep(s.opts.Latency)
		}

		s.mu.Lock()
		forced := s.forcedStatus
		s.forcedStatus = 0
		s.mu.Unlock()
		if forced != 0 {
			s.logger.Debug("injecting failure", "status", forced, "path", r.URL.Path)
			writeError(w, forced, "falha injetada")
			return
		}

		auth := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok {
			writeError(w, http.StatusUnauthorized, "Token ausente")
			return
		}
		s.mu.Lock()
		_, valid := s.tokens[token]
		s.mu.Unlock()
		if !valid {
			writeError(w, http.StatusUnauthorized, "Token inválido")
			return
		}

		next(w, r)
	}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req api.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Dados inválidos")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.usuarios {
		if u.Email == req.Email && u.senha != "" && u.senha == req.Senha {
			token := uuid.NewString()
			s.tokens[token] = u.ID
			writeJSON(w, http.StatusOK, api.AuthResponse{
				Token: token, Tipo: "Bearer", UserID: u.ID, Nome: u.Nome, Email: u.Email,
			})
			return
		}
	}
	writeError(w, http.StatusUnauthorized, "Email ou senha incorretos")
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req api.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Dados inválidos")
		return
	}
	if req.Nome == "" || req.CPF == "" || req.Endereco == "" || req.Email == "" || req.Senha == "" {
		writeError(w, http.StatusBadRequest, "Dados inválidos")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.usuarios {
		if u.Email == req.Email || u.CPF == req.CPF {
			writeError(w, http.StatusConflict, "Email ou CPF já estão em uso")
			return
		}
	}

	id := s.id()
	s.usuarios[id] = &usuarioRecord{
		Customer: models.Customer{ID: id, Nome: req.Nome, CPF: req.CPF, Endereco: req.Endereco, Email: req.Email},
		senha:    req.Senha,
	}
	token := uuid.NewString()
	s.tokens[token] = id
	writeJSON(w, http.StatusOK, api.AuthResponse{
		Token: token, Tipo: "Bearer", UserID: id, Nome: req.Nome, Email: req.Email,
	})
}

func (s *Server) handleListUsuarios(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Customer, 0, len(s.usuarios))
	for id := int64(1); id <= s.nextID; id++ {
		if u, ok := s.usuarios[id]; ok {
			out = append(out, u.Customer)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetUsuario(w http.ResponseWriter, r *http.Request) {
	id := pathID(r, "id")
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.usuarios[id]
	if !ok {
		writeError(w, http.StatusNotFound, "Usuário não encontrado")
		return
	}
	writeJSON(w, http.StatusOK, u.Customer)
}

func (s *Server) handleCreateUsuario(w http.ResponseWriter, r *http.Request) {
	var req api.UsuarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Dados inválidos")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.id()
	s.usuarios[id] = &usuarioRecord{
		Customer: models.Customer{ID: id, Nome: req.Nome, CPF: req.CPF, Endereco: req.Endereco, Email: req.Email},
	}
	writeJSON(w, http.StatusOK, s.usuarios[id].Customer)
}

func (s *Server) handleUpdateUsuario(w http.ResponseWriter, r *http.Request) {
	id := pathID(r, "id")
	var req api.UsuarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Dados inválidos")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.usuarios[id]
	if !ok {
		writeError(w, http.StatusNotFound, "Usuário não encontrado")
		return
	}
	u.Nome = req.Nome
	u.CPF = req.CPF
	u.Endereco = req.Endereco
	writeJSON(w, http.StatusOK, u.Customer)
}

func (s *Server) handleDeleteUsuario(w http.ResponseWriter, r *http.Request) {
	id := pathID(r, "id")
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.usuarios[id]; !ok {
		writeError(w, http.StatusNotFound, "Usuário não encontrado")
		return
	}
	for _, c := range s.contas {
		if c.usuarioID == id {
			writeError(w, http.StatusConflict, "Usuário possui contas")
			return
		}
	}
	delete(s.usuarios, id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) contaJSON(c *contaRecord) models.Account {
	owner := models.Customer{}
	if u, ok := s.usuarios[c.usuarioID]; ok {
		owner = u.Customer
	}
	return models.Account{ID: c.id, NumeroConta: c.numero, Saldo: c.saldo, Usuario: owner}
}

func (s *Server) movJSON(m *movRecord) map[string]any {
	out := map[string]any{
		"id":    m.id,
		"tipo":  m.tipo,
		"valor": m.valor,
		"data":  m.data,
	}
	if c, ok := s.contas[m.contaID]; ok {
		out["conta"] = s.contaJSON(c)
	}
	return out
}

func (s *Server) handleListContas(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Account, 0, len(s.contas))
	for id := int64(1); id <= s.nextID; id++ {
		if c, ok := s.contas[id]; ok {
			out = append(out, s.contaJSON(c))
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetConta(w http.ResponseWriter, r *http.Request) {
	id := pathID(r, "id")
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.contas[id]
	if !ok {
		writeError(w, http.StatusNotFound, "Conta não encontrada")
		return
	}
	writeJSON(w, http.StatusOK, s.contaJSON(c))
}

func (s *Server) handleContasByUsuario(w http.ResponseWriter, r *http.Request) {
	usuarioID := pathID(r, "usuarioId")
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Account{}
	for id := int64(1); id <= s.nextID; id++ {
		if c, ok := s.contas[id]; ok && c.usuarioID == usuarioID {
			out = append(out, s.contaJSON(c))
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateConta(w http.ResponseWriter, r *http.Request) {
	var req api.CreateContaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Dados inválidos")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.usuarios[req.UsuarioID]; !ok {
		writeError(w, http.StatusNotFound, "Usuário não encontrado")
		return
	}
	for _, c := range s.contas {
		if c.numero == req.NumeroConta {
			writeError(w, http.StatusConflict, "Número de conta já existe")
			return
		}
	}

	id := s.id()
	s.contas[id] = &contaRecord{id: id, numero: req.NumeroConta, saldo: 0, usuarioID: req.UsuarioID}
	writeJSON(w, http.StatusOK, s.contaJSON(s.contas[id]))
}

func (s *Server) handleUpdateConta(w http.ResponseWriter, r *http.Request) {
	id := pathID(r, "id")
	var req api.UpdateContaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Dados inválidos")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.contas[id]
	if !ok {
		writeError(w, http.StatusNotFound, "Conta não encontrada")
		return
	}
	for _, other := range s.contas {
		if other.id != id && other.numero == req.NumeroConta {
			writeError(w, http.StatusConflict, "Número de conta já existe")
			return
		}
	}
	c.numero = req.NumeroConta
	writeJSON(w, http.StatusOK, s.contaJSON(c))
}

func (s *Server) handleDeleteConta(w http.ResponseWriter, r *http.Request) {
	id := pathID(r, "id")
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.contas[id]; !ok {
		writeError(w, http.StatusNotFound, "Conta não encontrada")
		return
	}
	for _, m := range s.movs {
		if m.contaID == id {
			writeError(w, http.StatusConflict, "Conta possui movimentações")
			return
		}
	}
	delete(s.contas, id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListMovs(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]map[string]any, 0, len(s.movs))
	for _, id := range s.order {
		if m, ok := s.movs[id]; ok {
			out = append(out, s.movJSON(m))
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetMov(w http.ResponseWriter, r *http.Request) {
	id := pathID(r, "id")
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.movs[id]
	if !ok {
		writeError(w, http.StatusNotFound, "Movimentação não encontrada")
		return
	}
	writeJSON(w, http.StatusOK, s.movJSON(m))
}

func (s *Server) handleMovsByConta(w http.ResponseWriter, r *http.Request) {
	contaID := pathID(r, "contaId")
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []map[string]any{}
	for _, id := range s.order {
		if m, ok := s.movs[id]; ok && m.contaID == contaID {
			out = append(out, s.movJSON(m))
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateMov(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ContaID int64               `json:"contaId"`
		Tipo    models.MovementKind `json:"tipo"`
		Valor   models.Money        `json:"valor"`
		Data    string              `json:"data"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Dados inválidos")
		return
	}
	if !req.Tipo.Valid() || req.Valor <= 0 {
		writeError(w, http.StatusBadRequest, "Dados inválidos")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.contas[req.ContaID]
	if !ok {
		writeError(w, http.StatusNotFound, "Conta não encontrada")
		return
	}
	if req.Tipo == models.MovementWithdrawal && req.Valor > c.saldo {
		writeError(w, http.StatusUnprocessableEntity, "Saldo insuficiente")
		return
	}

	c.saldo += models.Money(req.Tipo.Sign()) * req.Valor
	id := s.id()
	s.movs[id] = &movRecord{id: id, tipo: req.Tipo, valor: req.Valor, data: req.Data, contaID: req.ContaID}
	s.order = append(s.order, id)
	writeJSON(w, http.StatusOK, s.movJSON(s.movs[id]))
}

func (s *Server) handleUpdateMov(w http.ResponseWriter, r *http.Request) {
	id := pathID(r, "id")
	var req struct {
		Data string `json:"data"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Data == "" {
		writeError(w, http.StatusBadRequest, "Dados inválidos")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.movs[id]
	if !ok {
		writeError(w, http.StatusNotFound, "Movimentação não encontrada")
		return
	}
	m.data = req.Data
	writeJSON(w, http.StatusOK, s.movJSON(m))
}

func (s *Server) handleDeleteMov(w http.ResponseWriter, r *http.Request) {
	id := pathID(r, "id")
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.movs[id]
	if !ok {
		writeError(w, http.StatusNotFound, "Movimentação não encontrada")
		return
	}
	if c, ok := s.contas[m.contaID]; ok {
		c.saldo -= models.Money(m.tipo.Sign()) * m.valor
	}
	delete(s.movs, id)
	w.WriteHeader(http.StatusNoContent)
}

func pathID(r *http.Request, name string) int64 {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil {
		return 0
	}
	return id
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best effort in a test double
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}
