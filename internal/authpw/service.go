// Package authpw verifies operator email/password credentials.
package authpw

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"sitecms/api/internal/rbac"
	"sitecms/api/internal/store"
	"sitecms/api/internal/util"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
)

const minPasswordLength = 8

// OperatorStore is the slice of the Postgres store this package needs.
type OperatorStore interface {
	GetOperatorByEmail(ctx context.Context, email string) (store.Operator, error)
	GetOperatorByID(ctx context.Context, id string) (store.Operator, error)
	CreateOperator(ctx context.Context, op store.Operator) error
	UpdateOperatorPassword(ctx context.Context, id, passwordHash string) error
}

type Service struct {
	store OperatorStore
	cost  int
}

func NewService(store OperatorStore) *Service {
	return &Service{store: store, cost: bcrypt.DefaultCost}
}

type CreateOperatorRequest struct {
	Email       string
	Password    string
	DisplayName string
	Role        string
}

func (s *Service) CreateOperator(ctx context.Context, req CreateOperatorRequest) (store.Operator, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	name := strings.TrimSpace(req.DisplayName)
	if email == "" || req.Password == "" || name == "" {
		return store.Operator{}, errors.New("email, password, and display name are required")
	}
	if len(req.Password) < minPasswordLength {
		return store.Operator{}, ErrWeakPassword
	}
	roleName := req.Role
	if roleName == "" {
		roleName = string(rbac.RoleEditor)
	}
	role, err := rbac.Parse(roleName)
	if err != nil {
		return store.Operator{}, err
	}

	if _, err := s.store.GetOperatorByEmail(ctx, email); err == nil {
		return store.Operator{}, ErrEmailTaken
	} else if !errors.Is(err, store.ErrNotFound) {
		return store.Operator{}, fmt.Errorf("lookup operator: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return store.Operator{}, fmt.Errorf("hash password: %w", err)
	}
	op := store.Operator{
		ID:           util.NewID("op"),
		Email:        email,
		DisplayName:  name,
		PasswordHash: string(hash),
		Role:         string(role),
	}
	if err := s.store.CreateOperator(ctx, op); err != nil {
		return store.Operator{}, fmt.Errorf("create operator: %w", err)
	}
	return op, nil
}

// SignIn returns the operator for a matching, active account. Unknown
// emails, wrong passwords and deactivated accounts all yield
// ErrInvalidCredentials.
func (s *Service) SignIn(ctx context.Context, email, password string) (store.Operator, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return store.Operator{}, ErrInvalidCredentials
	}
	op, err := s.store.GetOperatorByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, store.ErrNotFound) {
		return store.Operator{}, ErrInvalidCredentials
	}
	if err != nil {
		return store.Operator{}, fmt.Errorf("lookup operator: %w", err)
	}
	if op.DeactivatedAt != nil {
		return store.Operator{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(op.PasswordHash), []byte(password)); err != nil {
		return store.Operator{}, ErrInvalidCredentials
	}
	return op, nil
}

func (s *Service) ChangePassword(ctx context.Context, operatorID, current, next string) error {
	if len(next) < minPasswordLength {
		return ErrWeakPassword
	}
	op, err := s.store.GetOperatorByID(ctx, operatorID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrInvalidCredentials
	}
	if err != nil {
		return fmt.Errorf("lookup operator: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(op.PasswordHash), []byte(current)); err != nil {
		return ErrInvalidCredentials
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(next), s.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.store.UpdateOperatorPassword(ctx, operatorID, string(hash)); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}
