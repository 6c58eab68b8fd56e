/*
store.go - Persistence contract for the ledger documents

PURPOSE:
  The ledger persists four JSON documents, each holding a whole collection:
  leave requests, users, holidays and the audit trail. Readers load a
  document whole; writers replace it whole.

ATOMIC LEDGER UPDATES:
  Requests and users form one consistency domain. Every mutation runs inside
  Update(): the callback reads the documents it needs, stages new bodies with
  Put, and the store commits all staged writes together or none of them.
  Deducting a balance and stamping the request as applied therefore land in
  the same commit.

RE-ENTRANCY:
  Optimistic stores (Redis) may run the callback more than once when a
  concurrent writer wins. Callbacks must derive everything from what they read
  through the DocumentTx and must not mutate outside state.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: single-writer SQLite (default)
  - store/redis/redis.go:   optimistic WATCH/MULTI on Redis
  - generic/store/memory.go: in-memory for tests and dev

SEE ALSO:
  - timeoff/ledger.go: the only writer
  - errors.go: ErrPersistence, ErrConcurrentModification
*/
package generic

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// =============================================================================
// DOCUMENT NAMES
// =============================================================================

const (
	DocRequests = "leave_requests"
	DocUsers    = "users"
	DocHolidays = "holidays"
	DocAudit    = "audit"
)

// LedgerDocuments lists every document a ledger update may touch.
// Optimistic stores watch all of them.
var LedgerDocuments = []string{DocRequests, DocUsers, DocHolidays, DocAudit}

// =============================================================================
// DOCUMENT STORE - Whole-document reads, atomic multi-document writes
// =============================================================================

// DocumentStore persists named JSON documents.
type DocumentStore interface {
	// Load returns the current body of a document, or nil if it was never written.
	Load(ctx context.Context, name string) ([]byte, error)

	// Update runs fn and atomically commits every document it staged.
	// If fn returns an error nothing is written.
	Update(ctx context.Context, fn func(tx DocumentTx) error) error
}

// DocumentTx is the view of the store inside Update.
type DocumentTx interface {
	// Get returns the body as seen by this update, including earlier Puts.
	Get(name string) ([]byte, error)

	// Put stages a new body for commit.
	Put(name string, body []byte)
}

// GetJSON decodes a document into v. A missing document leaves v untouched.
func GetJSON(tx DocumentTx, name string, v any) error {
	raw, err := tx.Get(name)
	if err != nil {
		return Persistence("read "+name, err)
	}
	return decodeDocument(name, raw, v)
}

// PutJSON encodes v and stages it.
func PutJSON(tx DocumentTx, name string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	tx.Put(name, body)
	return nil
}

// LoadJSON is GetJSON outside an update.
func LoadJSON(ctx context.Context, store DocumentStore, name string, v any) error {
	raw, err := store.Load(ctx, name)
	if err != nil {
		return Persistence("read "+name, err)
	}
	return decodeDocument(name, raw, v)
}

func decodeDocument(name string, raw []byte, v any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}

// =============================================================================
// AUDIT LOG - Separate from balances, tracks who did what when
// =============================================================================

// AuditEntry records who did what when.
type AuditEntry struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	ActorID   string         `json:"actorId,omitempty"`
	Action    AuditAction    `json:"action"`
	UserID    string         `json:"userId,omitempty"`
	RequestID string         `json:"requestId,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
}

type AuditAction string

const (
	AuditRequestCreated   AuditAction = "request_created"
	AuditRequestApproved  AuditAction = "request_approved"
	AuditRequestDenied    AuditAction = "request_denied"
	AuditRequestEdited    AuditAction = "request_edited"
	AuditRequestCancelled AuditAction = "request_cancelled"
	AuditBalanceOverride  AuditAction = "balance_override"
)

// AuditFilter narrows an audit query. Empty fields match everything.
type AuditFilter struct {
	UserID    string
	RequestID string
	Action    AuditAction
}

// Match reports whether e passes the filter.
func (f AuditFilter) Match(e AuditEntry) bool {
	if f.UserID != "" && e.UserID != f.UserID {
		return false
	}
	if f.RequestID != "" && e.RequestID != f.RequestID {
		return false
	}
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	return true
}
