// Package authpw provides email/password registration, sign-in and password
// reset for inspectors.
package authpw

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"safetycheck/api/internal/auth"
	"safetycheck/api/internal/rbac"
	"safetycheck/api/internal/store"
	"safetycheck/api/internal/util"
)

const (
	bcryptCost    = 12
	resetTokenTTL = time.Hour
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidResetToken  = errors.New("invalid or expired reset token")
)

// InputError is a rejected request field. Message is shown to the user.
type InputError struct {
	Message string
}

func (e *InputError) Error() string {
	return e.Message
}

// Service provides email/password authentication
type Service struct {
	store      UserStore
	adminEmail string
	cost       int
	now        func() time.Time
}

// UserStore defines the storage interface for auth
type UserStore interface {
	GetUserByEmail(ctx context.Context, email string) (store.User, error)
	GetUserByID(ctx context.Context, id string) (store.User, error)
	CreateUser(ctx context.Context, user store.User) error
	UpdateUserPassword(ctx context.Context, userID, passwordHash string) error
	TouchLastLogin(ctx context.Context, userID string) error
	DeletePasswordResets(ctx context.Context, userID string) error
	CreatePasswordReset(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error
	GetPasswordReset(ctx context.Context, tokenHash string) (string, error)
	MarkPasswordResetUsed(ctx context.Context, tokenHash string) error
}

// NewService creates a new auth service. Registrations from adminEmail are
// approved as administrators right away.
func NewService(userStore UserStore, adminEmail string) *Service {
	return &Service{
		store:      userStore,
		adminEmail: strings.ToLower(strings.TrimSpace(adminEmail)),
		cost:       bcryptCost,
		now:        time.Now,
	}
}

type RegisterRequest struct {
	Name            string
	Email           string
	Password        string
	ConfirmPassword string
}

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Register creates a PENDING account that an administrator must approve.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (store.User, error) {
	name := strings.TrimSpace(req.Name)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if name == "" || email == "" || req.Password == "" || req.ConfirmPassword == "" {
		return store.User{}, &InputError{Message: "Todos os campos são obrigatórios"}
	}
	if !emailPattern.MatchString(email) {
		return store.User{}, &InputError{Message: "Email inválido"}
	}
	if req.Password != req.ConfirmPassword {
		return store.User{}, &InputError{Message: "As senhas não coincidem"}
	}
	if msg := CheckPasswordStrength(req.Password); msg != "" {
		return store.User{}, &InputError{Message: msg}
	}

	if _, err := s.store.GetUserByEmail(ctx, email); err == nil {
		return store.User{}, ErrEmailTaken
	} else if !errors.Is(err, sql.ErrNoRows) {
		return store.User{}, fmt.Errorf("lookup user: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return store.User{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	user := store.User{
		ID:           util.NewID("usr"),
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		Role:         string(rbac.RolePending),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if s.adminEmail != "" && email == s.adminEmail {
		user.Role = string(rbac.RoleAdmin)
		user.ApprovedAt = &now
	}

	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return store.User{}, ErrEmailTaken
		}
		return store.User{}, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// CheckPasswordStrength returns a user-facing message for a weak password,
// or "" when the password is acceptable.
func CheckPasswordStrength(password string) string {
	switch {
	case password == "":
		return "Senha é obrigatória"
	case len(password) < 8:
		return "A senha deve ter pelo menos 8 caracteres"
	case !strings.ContainsAny(password, "ABCDEFGHIJKLMNOPQRSTUVWXYZ"):
		return "A senha deve conter pelo menos uma letra maiúscula"
	case !strings.ContainsAny(password, "abcdefghijklmnopqrstuvwxyz"):
		return "A senha deve conter pelo menos uma letra minúscula"
	case !strings.ContainsAny(password, "0123456789"):
		return "A senha deve conter pelo menos um número"
	case !strings.ContainsAny(password, `!@#$%^&*(),.?":{}|<>`):
		return "A senha deve conter pelo menos um caractere especial"
	}
	return ""
}

// SignIn authenticates a user. Pending users sign in too; route guards keep
// them out of inspection endpoints.
func (s *Service) SignIn(ctx context.Context, email, password string) (store.User, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return store.User{}, &InputError{Message: "Email e senha são obrigatórios"}
	}
	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.User{}, ErrInvalidCredentials
		}
		return store.User{}, fmt.Errorf("lookup user: %w", err)
	}
	if user.PasswordHash == "" {
		return store.User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return store.User{}, ErrInvalidCredentials
	}
	if err := s.store.TouchLastLogin(ctx, user.ID); err != nil {
		return store.User{}, fmt.Errorf("touch last login: %w", err)
	}
	return user, nil
}

// RequestPasswordReset replaces any outstanding reset token for the account
// and returns the new raw token with its owner. Unknown emails return an
// empty token and no error so callers cannot probe for accounts.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) (string, store.User, error) {
	if strings.TrimSpace(email) == "" {
		return "", store.User{}, &InputError{Message: "Email é obrigatório"}
	}
	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", store.User{}, nil
		}
		return "", store.User{}, fmt.Errorf("lookup user: %w", err)
	}
	if user.PasswordHash == "" {
		return "", store.User{}, nil
	}

	if err := s.store.DeletePasswordResets(ctx, user.ID); err != nil {
		return "", store.User{}, err
	}
	token := util.NewToken()
	if err := s.store.CreatePasswordReset(ctx, user.ID, auth.HashToken(token), s.now().Add(resetTokenTTL)); err != nil {
		return "", store.User{}, err
	}
	return token, user, nil
}

type ResetPasswordRequest struct {
	Token           string
	Password        string
	ConfirmPassword string
}

// ResetPassword sets a new password using a reset token. Tokens are single use.
func (s *Service) ResetPassword(ctx context.Context, req ResetPasswordRequest) error {
	if req.Token == "" || req.Password == "" {
		return &InputError{Message: "Token e nova senha são obrigatórios"}
	}
	if req.ConfirmPassword != "" && req.Password != req.ConfirmPassword {
		return &InputError{Message: "As senhas não coincidem"}
	}
	if msg := CheckPasswordStrength(req.Password); msg != "" {
		return &InputError{Message: msg}
	}

	tokenHash := auth.HashToken(req.Token)
	userID, err := s.store.GetPasswordReset(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrInvalidResetToken
		}
		return fmt.Errorf("lookup reset token: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.store.UpdateUserPassword(ctx, userID, string(hash)); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if err := s.store.MarkPasswordResetUsed(ctx, tokenHash); err != nil {
		return fmt.Errorf("mark reset used: %w", err)
	}
	return nil
}
