package store

import (
	"encoding/json"
	"errors"
	"time"
)

var ErrNotFound = errors.New("not found")

type Operator struct {
	ID            string
	Email         string
	DisplayName   string
	PasswordHash  string
	Role          string
	DeactivatedAt *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type ContentVersion struct {
	ID         int64
	Body       json.RawMessage
	ArchivedAt time.Time
}

type AuditEntry struct {
	ID     int64
	Action string
	Actor  string
	At     time.Time
}
