package app

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"safetycheck/api/internal/auth"
	"safetycheck/api/internal/authpw"
	"safetycheck/api/internal/blob"
	"safetycheck/api/internal/checklist"
	"safetycheck/api/internal/config"
	"safetycheck/api/internal/export"
	"safetycheck/api/internal/notify"
	"safetycheck/api/internal/rbac"
	"safetycheck/api/internal/search"
	"safetycheck/api/internal/session"
	"safetycheck/api/internal/store"
	"safetycheck/api/internal/util"
)

const (
	statusDraft     = "DRAFT"
	statusSubmitted = "SUBMITTED"
)

type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	UserName     string
	Email        string
	Role         string
	JTI          string
	ExpiresAt    time.Time
}

func (s Session) isAdmin() bool {
	return rbac.Normalize(s.Role) == rbac.RoleAdmin
}

type dataStore interface {
	Ping(context.Context) error
	GetUserByID(context.Context, string) (store.User, error)
	ListUsers(context.Context, string) ([]store.User, error)
	ApproveUser(context.Context, string, string) error
	RejectUser(context.Context, string, string, string) error
	SetUserRole(context.Context, string, string) error
	GetInspection(context.Context, string) (store.Inspection, error)
	ListInspections(context.Context, store.InspectionFilter) ([]store.Inspection, int, error)
	ListResponses(context.Context, string) ([]store.Response, error)
	ListImages(context.Context, string) ([]store.Image, error)
	ListAuditLog(context.Context, string) ([]store.AuditLogEntry, error)
	PatchInspection(context.Context, string, store.InspectionPatch) error
	DeleteInspection(context.Context, string) error
	CountUsers(context.Context) (int, error)
	CountImages(context.Context) (int, error)
	CountInspections(context.Context, time.Time) (int, error)
	InspectionsByStatus(context.Context) ([]store.StatusCount, error)
	TopInspectors(context.Context, int) ([]store.InspectorCount, error)
	WithinTx(context.Context, store.TxBounds, func(context.Context, store.Writer) error) error
}

// sessionStore is satisfied by both the Postgres store and the Redis store.
type sessionStore interface {
	SaveRefreshSession(context.Context, string, string, time.Time) error
	LookupRefreshSession(context.Context, string) (store.User, error)
	RevokeRefreshSession(context.Context, string) error
	RevokeAccessToken(context.Context, string, time.Time) error
	IsAccessTokenRevoked(context.Context, string) (bool, error)
}

type authenticator interface {
	Register(context.Context, authpw.RegisterRequest) (store.User, error)
	SignIn(context.Context, string, string) (store.User, error)
	RequestPasswordReset(context.Context, string) (string, store.User, error)
	ResetPassword(context.Context, authpw.ResetPasswordRequest) error
}

type searcher interface {
	Search(context.Context, search.Query) search.Response
	IndexInspection(search.InspectionRecord)
	DeleteInspection(string)
}

type pdfRenderer interface {
	InspectionPDF(context.Context, export.Report) (*export.Result, error)
}

type mailer interface {
	IsConfigured() bool
	SendPasswordResetEmail(to, userName, resetURL string) error
	SendAccountApprovedEmail(to, userName, loginURL string) error
	SendAccountRejectedEmail(to, userName, reason string) error
}

type notifier interface {
	InspectionSubmitted(context.Context, notify.InspectionEvent) error
	InspectionEditedAfterSubmit(context.Context, notify.InspectionEvent, []string) error
	NewUserRegistered(context.Context, string, string) error
}

// Deps are the process-wide collaborators. Search, PDF, Mailer and Notifier
// may be nil; the features they back are then skipped or reported as
// unavailable.
type Deps struct {
	Store    dataStore
	Sessions sessionStore
	Auth     authenticator
	Blob     blob.Uploader
	Search   searcher
	PDF      pdfRenderer
	Mailer   mailer
	Notifier notifier
}

type Service struct {
	cfg      config.Config
	store    dataStore
	sessions sessionStore
	auth     authenticator
	blob     blob.Uploader
	search   searcher
	pdf      pdfRenderer
	mailer   mailer
	notifier notifier
	catalog  *checklist.Catalog
	now      func() time.Time
	// async runs post-commit side effects.
	async func(func())
}

func New(cfg config.Config, deps Deps) *Service {
	sessions := deps.Sessions
	if sessions == nil {
		if fallback, ok := deps.Store.(sessionStore); ok {
			sessions = fallback
		}
	}
	return &Service{
		cfg:      cfg,
		store:    deps.Store,
		sessions: sessions,
		auth:     deps.Auth,
		blob:     deps.Blob,
		search:   deps.Search,
		pdf:      deps.PDF,
		mailer:   deps.Mailer,
		notifier: deps.Notifier,
		catalog:  checklist.Default,
		now:      time.Now,
		async:    func(fn func()) { go fn() },
	}
}

func (s *Service) txBounds() store.TxBounds {
	return store.TxBounds{MaxWait: s.cfg.TxMaxWait, Timeout: s.cfg.TxTimeout}
}

func (s *Service) Catalog() *checklist.Catalog {
	return s.catalog
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	if refreshToken == "" {
		return Session{}, auth.ErrInvalidToken
	}
	tokenHash := auth.HashToken(refreshToken)
	owner, err := s.sessions.LookupRefreshSession(ctx, tokenHash)
	if errors.Is(err, sql.ErrNoRows) || errors.Is(err, session.ErrNotFound) {
		return Session{}, auth.ErrInvalidToken
	}
	if err != nil {
		return Session{}, err
	}
	if err := s.sessions.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	// The Redis store only knows the owner's ID.
	user, err := s.store.GetUserByID(ctx, owner.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, auth.ErrInvalidToken
	}
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	now := s.now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")

	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), auth.Claims{
		Sub:   user.ID,
		Name:  user.Name,
		Email: user.Email,
		Role:  user.Role,
		JTI:   jti,
		Exp:   expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewToken()
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), user.ID, now.Add(s.cfg.RefreshTTL)); err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		UserName:     user.Name,
		Email:        user.Email,
		Role:         user.Role,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

// SessionFromToken re-reads the user so role changes apply on the next
// request rather than at token expiry.
func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	revoked, err := s.sessions.IsAccessTokenRevoked(ctx, claims.JTI)
	if err != nil {
		return Session{}, err
	}
	if revoked {
		return Session{}, auth.ErrInvalidToken
	}

	user, err := s.store.GetUserByID(ctx, claims.Sub)
	if err != nil {
		return Session{}, err
	}

	return Session{
		Token:     token,
		UserID:    user.ID,
		UserName:  user.Name,
		Email:     user.Email,
		Role:      user.Role,
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

func (s *Service) Logout(ctx context.Context, session Session, refreshToken string) error {
	if session.JTI != "" {
		_ = s.sessions.RevokeAccessToken(ctx, session.JTI, session.ExpiresAt)
	}
	if refreshToken != "" {
		_ = s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken))
	}
	return nil
}

func (s *Service) Can(role string, action rbac.Action) bool {
	return rbac.Can(rbac.Normalize(role), action)
}
