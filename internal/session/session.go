package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/caixaops/bancli/internal/api"
	"github.com/caixaops/bancli/internal/models"
	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
)

// Storage keys, matching the admin UI's localStorage layout.
const (
	keyToken = "token"
	keyUser  = "user"
)

// User is the authenticated identity persisted between invocations.
type User struct {
	ID    int64  `json:"id"`
	Nome  string `json:"nome"`
	Email string `json:"email"`
}

// Profile is the input to Register, validated before any network call.
type Profile struct {
	Nome     string `validate:"required"`
	CPF      string `validate:"required,len=11,numeric"`
	Endereco string `validate:"required"`
	Email    string `validate:"required,email"`
	Senha    string `validate:"required,min=6"`
}

// AuthAPI is the slice of the transport client the session store needs.
type AuthAPI interface {
	Login(ctx context.Context, req api.LoginRequest) (*api.AuthResponse, error)
	Register(ctx context.Context, req api.RegisterRequest) (*api.AuthResponse, error)
}

// Store holds the current session in memory and mirrors it to Storage.
// Teardown is the single write path for clearing state; both Logout and the
// transport client's 401 hook go through it.
type Store struct {
	storage  Storage
	auth     AuthAPI
	logger   *slog.Logger
	validate *validator.Validate

	mu    sync.RWMutex
	user  *User
	token string
}

// NewStore restores any persisted session from storage. A corrupt persisted
// user is discarded together with its token.
func NewStore(storage Storage, auth AuthAPI, logger *slog.Logger) *Store {
	s := &Store{
		storage:  storage,
		auth:     auth,
		logger:   logger,
		validate: validator.New(),
	}

	token, hasToken := storage.Get(keyToken)
	rawUser, hasUser := storage.Get(keyUser)
	if hasToken && hasUser {
		var u User
		if err := json.Unmarshal([]byte(rawUser), &u); err != nil {
			logger.Warn("discarding corrupt persisted session", "error", err)
			if err := storage.Delete(keyToken, keyUser); err != nil {
				logger.Error("failed to clear corrupt session", "error", err)
			}
		} else {
			s.user = &u
			s.token = token
		}
	}

	return s
}

// Login authenticates and persists {token, id, nome, email} as one unit.
// Stored state is untouched on failure.
func (s *Store) Login(ctx context.Context, email, senha string) (*User, error) {
	resp, err := s.auth.Login(ctx, api.LoginRequest{Email: email, Senha: senha})
	if err != nil {
		return nil, err
	}
	return s.establish(resp, email)
}

// Register validates the profile locally, creates the operator account and
// persists the returned session.
func (s *Store) Register(ctx context.Context, profile Profile) (*User, error) {
	profile.Nome = models.FormatName(profile.Nome)
	profile.CPF = models.NormalizeCPF(profile.CPF)

	if err := s.validate.Struct(profile); err != nil {
		return nil, fmt.Errorf("invalid profile: %w", err)
	}

	resp, err := s.auth.Register(ctx, api.RegisterRequest{
		Nome:     profile.Nome,
		CPF:      profile.CPF,
		Endereco: profile.Endereco,
		Email:    profile.Email,
		Senha:    profile.Senha,
	})
	if err != nil {
		return nil, err
	}

	email := resp.Email
	if email == "" {
		email = profile.Email
	}
	return s.establish(resp, email)
}

func (s *Store) establish(resp *api.AuthResponse, email string) (*User, error) {
	u := User{ID: resp.UserID, Nome: resp.Nome, Email: email}

	rawUser, err := json.Marshal(u)
	if err != nil {
		return nil, fmt.Errorf("failed to encode user: %w", err)
	}
	if err := s.storage.SetAll(map[string]string{
		keyToken: resp.Token,
		keyUser:  string(rawUser),
	}); err != nil {
		return nil, fmt.Errorf("failed to persist session: %w", err)
	}

	s.mu.Lock()
	s.user = &u
	s.token = resp.Token
	s.mu.Unlock()

	s.logger.Info("session established", "user_id", u.ID, "nome", u.Nome)
	return &u, nil
}

// Logout clears the session. Idempotent: logging out twice leaves the same
// cleared state.
func (s *Store) Logout() {
	s.Teardown()
	s.logger.Info("logged out")
}

// Teardown unconditionally clears persisted and in-memory state. It is the
// hook the transport client fires on 401.
func (s *Store) Teardown() {
	if err := s.storage.Delete(keyToken, keyUser); err != nil {
		s.logger.Error("failed to clear persisted session", "error", err)
	}
	s.mu.Lock()
	s.user = nil
	s.token = ""
	s.mu.Unlock()
}

// Current returns the authenticated user, or nil when logged out.
func (s *Store) Current() *User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// Token returns the bearer token, or "" when logged out. It is the token
// source registered on the transport client.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// ExpiresAt reports the token's exp claim without verifying the signature
// (verification is the server's job). ok is false for opaque or claimless
// tokens.
func (s *Store) ExpiresAt() (expiry time.Time, ok bool) {
	token := s.Token()
	if token == "" {
		return time.Time{}, false
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// AuthErrorMessage maps authentication failures to the operator-facing
// messages the admin UI shows.
func AuthErrorMessage(err error) string {
	var apiErr *api.Error
	switch {
	case errors.As(err, &apiErr):
		if apiErr.Message != "" {
			return apiErr.Message
		}
		switch apiErr.StatusCode {
		case http.StatusBadRequest:
			return "Dados inválidos. Verifique os campos e tente novamente."
		case http.StatusConflict:
			return "Email ou CPF já estão em uso."
		case http.StatusUnauthorized:
			return "Email ou senha incorretos."
		}
		return "Erro ao autenticar"
	case errors.Is(err, api.ErrUnreachable):
		return "Erro de conexão. Verifique se o servidor está rodando."
	default:
		return err.Error()
	}
}
