package app

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"safetycheck/api/internal/authpw"
	"safetycheck/api/internal/log"
	"safetycheck/api/internal/rbac"
	"safetycheck/api/internal/store"
)

const defaultRejectionReason = "Acesso negado pelo administrador"

func authError(err error) error {
	var input *authpw.InputError
	switch {
	case errors.As(err, &input):
		return badRequest("INVALID_INPUT", input.Message)
	case errors.Is(err, authpw.ErrEmailTaken):
		return domainError(http.StatusConflict, "EMAIL_TAKEN", "Este email já está cadastrado", nil)
	case errors.Is(err, authpw.ErrInvalidCredentials):
		return domainError(http.StatusUnauthorized, "INVALID_CREDENTIALS", "Email ou senha inválidos", nil)
	case errors.Is(err, authpw.ErrInvalidResetToken):
		return badRequest("INVALID_TOKEN", "Token inválido ou expirado")
	}
	return err
}

// Register creates a pending account and tells the administrator about it.
func (s *Service) Register(ctx context.Context, req authpw.RegisterRequest) (store.User, error) {
	user, err := s.auth.Register(ctx, req)
	if err != nil {
		return store.User{}, authError(err)
	}
	log.WithFields(log.Fields{"user_id": user.ID, "role": user.Role}).Info("user registered")

	if user.Role == string(rbac.RolePending) && s.notifier != nil {
		name, email := user.Name, user.Email
		s.async(func() {
			if err := s.notifier.NewUserRegistered(context.Background(), name, email); err != nil {
				log.Warnf("notify: new user %s: %v", email, err)
			}
		})
	}
	return user, nil
}

func (s *Service) SignIn(ctx context.Context, email, password string) (Session, error) {
	user, err := s.auth.SignIn(ctx, email, password)
	if err != nil {
		return Session{}, authError(err)
	}
	if user.RejectedAt != nil && user.Role == string(rbac.RolePending) {
		return Session{}, domainError(http.StatusForbidden, "ACCOUNT_REJECTED", "Seu acesso foi negado pelo administrador", map[string]any{
			"reason": user.RejectionReason,
		})
	}
	return s.issueSession(ctx, user)
}

// ForgotPassword emails a reset link. Without SMTP the raw token is returned
// so a developer can finish the flow by hand.
func (s *Service) ForgotPassword(ctx context.Context, email string) (string, error) {
	token, user, err := s.auth.RequestPasswordReset(ctx, email)
	if err != nil {
		return "", authError(err)
	}
	if token == "" {
		return "", nil
	}

	resetURL := s.cfg.AppURL + "/reset-password?token=" + url.QueryEscape(token)
	if s.mailer == nil || !s.mailer.IsConfigured() {
		log.Warnf("email not configured; returning reset token for %s", user.ID)
		return token, nil
	}
	if err := s.mailer.SendPasswordResetEmail(user.Email, user.Name, resetURL); err != nil {
		log.Errorf("send password reset to %s: %v", user.ID, err)
	}
	return "", nil
}

func (s *Service) ResetPassword(ctx context.Context, req authpw.ResetPasswordRequest) error {
	if err := s.auth.ResetPassword(ctx, req); err != nil {
		return authError(err)
	}
	return nil
}

func (s *Service) ListUsers(ctx context.Context, role string) ([]store.User, error) {
	role = strings.ToUpper(strings.TrimSpace(role))
	if role != "" && role != "ALL" && rbac.Normalize(role) != rbac.Role(role) {
		return nil, badRequest("INVALID_FILTER", "Filtro de perfil inválido")
	}
	if role == "ALL" {
		role = ""
	}
	users, err := s.store.ListUsers(ctx, role)
	if err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Service) loadUser(ctx context.Context, id string) (store.User, error) {
	user, err := s.store.GetUserByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return store.User{}, notFound("Usuário não encontrado")
	}
	return user, err
}

func (s *Service) ApproveUser(ctx context.Context, actor Session, id string) (store.User, error) {
	if _, err := s.loadUser(ctx, id); err != nil {
		return store.User{}, err
	}
	if err := s.store.ApproveUser(ctx, id, actor.UserID); err != nil {
		return store.User{}, err
	}
	user, err := s.loadUser(ctx, id)
	if err != nil {
		return store.User{}, err
	}
	log.WithFields(log.Fields{"user_id": id, "approved_by": actor.UserID}).Info("user approved")

	if s.mailer != nil && s.mailer.IsConfigured() {
		loginURL := s.cfg.AppURL + "/login"
		s.async(func() {
			if err := s.mailer.SendAccountApprovedEmail(user.Email, user.Name, loginURL); err != nil {
				log.Warnf("send approval email to %s: %v", user.ID, err)
			}
		})
	}
	return user, nil
}

func (s *Service) RejectUser(ctx context.Context, actor Session, id, reason string) (store.User, error) {
	if id == actor.UserID {
		return store.User{}, badRequest("INVALID_OPERATION", "Você não pode rejeitar sua própria conta")
	}
	if _, err := s.loadUser(ctx, id); err != nil {
		return store.User{}, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = defaultRejectionReason
	}
	if err := s.store.RejectUser(ctx, id, actor.UserID, reason); err != nil {
		return store.User{}, err
	}
	user, err := s.loadUser(ctx, id)
	if err != nil {
		return store.User{}, err
	}
	log.WithFields(log.Fields{"user_id": id, "rejected_by": actor.UserID}).Info("user rejected")

	if s.mailer != nil && s.mailer.IsConfigured() {
		s.async(func() {
			if err := s.mailer.SendAccountRejectedEmail(user.Email, user.Name, reason); err != nil {
				log.Warnf("send rejection email to %s: %v", user.ID, err)
			}
		})
	}
	return user, nil
}

// ToggleRole flips an approved user between USER and ADMIN.
func (s *Service) ToggleRole(ctx context.Context, actor Session, id string) (store.User, error) {
	if id == actor.UserID {
		return store.User{}, badRequest("INVALID_OPERATION", "Você não pode alterar seu próprio perfil")
	}
	user, err := s.loadUser(ctx, id)
	if err != nil {
		return store.User{}, err
	}

	next := rbac.RoleAdmin
	switch rbac.Normalize(user.Role) {
	case rbac.RoleAdmin:
		next = rbac.RoleUser
	case rbac.RolePending:
		return store.User{}, stateError("Usuário ainda não foi aprovado", map[string]any{"role": user.Role})
	}
	if err := s.store.SetUserRole(ctx, id, string(next)); err != nil {
		return store.User{}, err
	}
	user.Role = string(next)
	log.WithFields(log.Fields{"user_id": id, "role": user.Role, "changed_by": actor.UserID}).Info("user role changed")
	return user, nil
}
