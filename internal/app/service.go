package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"sitecms/api/internal/auth"
	"sitecms/api/internal/config"
	"sitecms/api/internal/content"
	"sitecms/api/internal/contentsync"
	"sitecms/api/internal/rbac"
	"sitecms/api/internal/search"
	"sitecms/api/internal/session"
	"sitecms/api/internal/store"
	"sitecms/api/internal/util"
)

type Session struct {
	Token        string
	RefreshToken string
	OperatorID   string
	Email        string
	DisplayName  string
	Role         string
	JTI          string
	ExpiresAt    time.Time
}

// Actor is the identity the content store records for edits made under this
// session.
func (s Session) Actor() auth.Actor {
	return auth.Actor{ID: s.OperatorID, Email: s.Email, Name: s.DisplayName, Role: s.Role}
}

type operatorStore interface {
	GetOperatorByID(context.Context, string) (store.Operator, error)
}

type passwordAuth interface {
	SignIn(ctx context.Context, email, password string) (store.Operator, error)
}

type sessionStore interface {
	SaveRefreshSession(context.Context, string, session.Session, time.Time) error
	LookupRefreshSession(context.Context, string) (session.Session, error)
	RevokeRefreshSession(context.Context, string) error
	RevokeAccessToken(context.Context, string, time.Time) error
	IsAccessTokenRevoked(context.Context, string) (bool, error)
	Ping(context.Context) error
}

type mediaUploader interface {
	Upload(ctx context.Context, filename, contentType string, body io.Reader, size int64) (string, error)
	Ping(context.Context) error
}

type activityLog interface {
	ListAuditEntries(context.Context, int) ([]store.AuditEntry, error)
}

type pinger interface {
	Ping(context.Context) error
}

// Deps are the collaborators a Service is wired from. Media and Versions may
// be left nil when the backing service is not configured.
type Deps struct {
	Content   *contentsync.Store
	Database  pinger
	Operators operatorStore
	Passwords passwordAuth
	Sessions  sessionStore
	Activity  activityLog
	Versions  VersionHistory
	Media     mediaUploader
	Search    *search.Service
}

type Service struct {
	cfg       config.Config
	content   *contentsync.Store
	database  pinger
	operators operatorStore
	passwords passwordAuth
	sessions  sessionStore
	activity  activityLog
	versions  VersionHistory
	media     mediaUploader
	search    *search.Service
	now       func() time.Time

	indexMu sync.Mutex
}

func New(cfg config.Config, deps Deps) *Service {
	searchService := deps.Search
	if searchService == nil {
		searchService = search.NewService(nil)
	}
	return &Service{
		cfg:       cfg,
		content:   deps.Content,
		database:  deps.Database,
		operators: deps.Operators,
		passwords: deps.Passwords,
		sessions:  deps.Sessions,
		activity:  deps.Activity,
		versions:  deps.Versions,
		media:     deps.Media,
		search:    searchService,
		now:       time.Now,
	}
}

// Bootstrap loads the stored document and keeps the search index following
// the served content. A failed load is logged and the baseline content is
// served.
func (s *Service) Bootstrap(ctx context.Context) error {
	s.content.OnPersisted(func(content.WebsiteContent, contentsync.Outcome) {
		s.reindex()
	})

	if _, err := s.content.Load(ctx); err != nil {
		log.Printf("app: serving baseline content: %v", err)
	}
	s.reindex()
	return nil
}

// reindex feeds the search index the content currently served. Reading
// Current under indexMu keeps a slow caller from overwriting a newer index.
func (s *Service) reindex() {
	s.indexMu.Lock()
	defer s.indexMu.Unlock()
	s.search.Refresh(s.content.Current())
}

func (s *Service) Ping(ctx context.Context) error {
	if s.database == nil {
		return nil
	}
	return s.database.Ping(ctx)
}

// ReadinessChecks pings every configured backend. The map is keyed by
// backend name; a nil value means healthy.
func (s *Service) ReadinessChecks(ctx context.Context) map[string]error {
	checks := map[string]error{"database": s.Ping(ctx)}
	if s.sessions != nil {
		checks["sessions"] = s.sessions.Ping(ctx)
	}
	if s.media != nil {
		checks["media"] = s.media.Ping(ctx)
	}
	return checks
}

func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	operator, err := s.passwords.SignIn(ctx, strings.TrimSpace(email), password)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, operator)
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return Session{}, auth.ErrInvalidToken
	}
	tokenHash := auth.HashToken(refreshToken)
	stored, err := s.sessions.LookupRefreshSession(ctx, tokenHash)
	if errors.Is(err, session.ErrNotFound) {
		return Session{}, auth.ErrInvalidToken
	}
	if err != nil {
		return Session{}, err
	}
	if err := s.sessions.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Session{}, err
	}

	operator, err := s.activeOperator(ctx, stored.OperatorID)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, operator)
}

func (s *Service) issueSession(ctx context.Context, operator store.Operator) (Session, error) {
	now := s.now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")
	role := string(rbac.Normalize(operator.Role))

	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), auth.Claims{
		Sub:   operator.ID,
		Email: operator.Email,
		Name:  operator.DisplayName,
		Role:  role,
		JTI:   jti,
		Exp:   expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewID("rft") + util.NewID("")
	refreshExpires := now.Add(s.cfg.RefreshTTL)
	err = s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), session.Session{
		OperatorID:  operator.ID,
		Email:       operator.Email,
		DisplayName: operator.DisplayName,
		Role:        role,
	}, refreshExpires)
	if err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		OperatorID:   operator.ID,
		Email:        operator.Email,
		DisplayName:  operator.DisplayName,
		Role:         role,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

// SessionFromToken resolves an access token. Revoked tokens and tokens of
// operators that have since been deactivated are rejected as invalid.
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

	operator, err := s.activeOperator(ctx, claims.Sub)
	if err != nil {
		return Session{}, err
	}

	return Session{
		Token:       token,
		OperatorID:  operator.ID,
		Email:       operator.Email,
		DisplayName: operator.DisplayName,
		Role:        string(rbac.Normalize(operator.Role)),
		JTI:         claims.JTI,
		ExpiresAt:   time.Unix(claims.Exp, 0),
	}, nil
}

func (s *Service) activeOperator(ctx context.Context, id string) (store.Operator, error) {
	operator, err := s.operators.GetOperatorByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return store.Operator{}, auth.ErrInvalidToken
	}
	if err != nil {
		return store.Operator{}, fmt.Errorf("load operator: %w", err)
	}
	if operator.DeactivatedAt != nil {
		return store.Operator{}, auth.ErrInvalidToken
	}
	return operator, nil
}

func (s *Service) Logout(ctx context.Context, sess Session, refreshToken string) error {
	if sess.JTI != "" {
		_ = s.sessions.RevokeAccessToken(ctx, sess.JTI, sess.ExpiresAt)
	}
	if refreshToken != "" {
		_ = s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken))
	}
	return nil
}

func (s *Service) Can(role string, action rbac.Action) bool {
	return rbac.Can(rbac.Normalize(role), action)
}

// AllowAnonymousEdits reports whether unauthenticated callers may apply
// in-memory edits. Such edits are never written to the shared document.
func (s *Service) AllowAnonymousEdits() bool {
	return s.cfg.AllowAnonymousEdits
}

func (s *Service) MaxUploadBytes() int64 {
	return s.cfg.MaxUploadBytes
}

func (s *Service) Search(q search.Query) search.Response {
	return s.search.Search(q)
}

func (s *Service) ListActivity(ctx context.Context, limit int) ([]store.AuditEntry, error) {
	if s.activity == nil {
		return []store.AuditEntry{}, nil
	}
	return s.activity.ListAuditEntries(ctx, limit)
}

func (s *Service) UploadMedia(ctx context.Context, filename, contentType string, body io.Reader, size int64) (string, error) {
	if s.media == nil {
		return "", errMediaUnavailable
	}
	return s.media.Upload(ctx, filename, contentType, body, size)
}
