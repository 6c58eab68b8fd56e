/*
ledger.go - The request ledger: state machine over requests and balances

PURPOSE:
  Owns every write to the leave_requests and users documents. Requests and
  user balances are one consistency domain, so each operation reads both,
  mutates them in memory and commits them together with its audit entry in a
  single DocumentStore.Update.

STATE MACHINE:
  pending  -> approved | denied   (Decide, only from pending)
  approved -> approved            (Modify edit)
  approved -> cancelled           (Modify cancel, terminal)

IDEMPOTENCY:
  Approval deducts once. The deduction and the Applied stamp commit in the
  same update, so a retried approval always sees the stamp and the
  ApprovalEngine guard returns the recorded amounts untouched.

SIDE EFFECTS:
  Metrics and log lines are emitted only after a successful commit. The
  update callbacks are re-entrant: optimistic stores may run them twice.

SEE ALSO:
  - approval.go: ApprovalEngine
  - modify.go:   ModificationEngine
  - generic/store.go: DocumentStore contract
*/
package timeoff

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/warp/leave-ledger/generic"
)

// =============================================================================
// INPUTS
// =============================================================================

// ListFilter narrows List. Empty fields match everything. Mine matches a
// case-insensitive substring of userName.
type ListFilter struct {
	Status RequestStatus
	UserID string
	Mine   string
}

// Decision is an admin verdict on a pending request.
type Decision struct {
	Status       RequestStatus
	DecidedBy    string
	ApproverID   string
	ApproverName string
	DecisionNote string
	Patch        ApprovalPatch
}

type ModifyMode string

const (
	ModeEdit   ModifyMode = "edit"
	ModeCancel ModifyMode = "cancel"
)

// Modification is an edit or a cancellation of an approved request.
type Modification struct {
	Mode   ModifyMode
	Edit   EditPatch
	Cancel CancelPatch
}

// BalanceOverride sets balances directly. Nil fields keep the current value.
type BalanceOverride struct {
	AnnualLeave *float64
	OffDays     *float64
	ActorID     string
}

// DecideResult is the decided request plus, for approvals, what was charged.
type DecideResult struct {
	Request  *LeaveRequest
	Approval *ApprovalResult
}

// =============================================================================
// LEDGER
// =============================================================================

type Ledger struct {
	store    generic.DocumentStore
	holidays HolidayProvider
	builder  *Builder
	logger   *zap.Logger

	// Balances holds the default and ceiling for annual leave.
	Balances BalanceStore

	// Now is the clock. Tests replace it.
	Now func() time.Time
}

func NewLedger(store generic.DocumentStore, holidays HolidayProvider, logger *zap.Logger) *Ledger {
	if holidays == nil {
		holidays = StoreHolidays{Store: store}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{
		store:    store,
		holidays: holidays,
		builder:  NewBuilder(),
		logger:   logger,
		Balances: NewBalanceStore(),
		Now:      time.Now,
	}
}

// =============================================================================
// QUERIES
// =============================================================================

// List returns the stored requests that pass f, in stored order.
func (l *Ledger) List(ctx context.Context, f ListFilter) ([]*LeaveRequest, error) {
	var all []*LeaveRequest
	if err := generic.LoadJSON(ctx, l.store, generic.DocRequests, &all); err != nil {
		return nil, err
	}
	mine := strings.ToLower(strings.TrimSpace(f.Mine))
	out := make([]*LeaveRequest, 0, len(all))
	for _, r := range all {
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		if f.UserID != "" && r.UserID != f.UserID {
			continue
		}
		if mine != "" && !strings.Contains(strings.ToLower(r.UserName), mine) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (l *Ledger) Get(ctx context.Context, id string) (*LeaveRequest, error) {
	var all []*LeaveRequest
	if err := generic.LoadJSON(ctx, l.store, generic.DocRequests, &all); err != nil {
		return nil, err
	}
	if i := requestIndex(all, id); i >= 0 {
		return all[i], nil
	}
	return nil, generic.NotFound("leave request %s not found", id)
}

// Balance resolves key with FindUserIndex and returns that user's balances.
func (l *Ledger) Balance(ctx context.Context, key string) (BalanceView, error) {
	var users []*User
	if err := generic.LoadJSON(ctx, l.store, generic.DocUsers, &users); err != nil {
		return BalanceView{}, err
	}
	i := FindUserIndex(users, key)
	if i < 0 {
		return BalanceView{}, generic.NotFound("user %s not found", key)
	}
	return l.Balances.View(users[i]), nil
}

// AllBalances lists balances for every user except administrators.
func (l *Ledger) AllBalances(ctx context.Context) ([]BalanceView, error) {
	var users []*User
	if err := generic.LoadJSON(ctx, l.store, generic.DocUsers, &users); err != nil {
		return nil, err
	}
	out := make([]BalanceView, 0, len(users))
	for _, u := range users {
		if u.IsAdmin() {
			continue
		}
		out = append(out, l.Balances.View(u))
	}
	return out, nil
}

// Audit returns the audit entries that pass f, oldest first.
func (l *Ledger) Audit(ctx context.Context, f generic.AuditFilter) ([]generic.AuditEntry, error) {
	var all []generic.AuditEntry
	if err := generic.LoadJSON(ctx, l.store, generic.DocAudit, &all); err != nil {
		return nil, err
	}
	out := make([]generic.AuditEntry, 0, len(all))
	for _, e := range all {
		if f.Match(e) {
			out = append(out, e)
		}
	}
	return out, nil
}

// HolidayDates returns the normalized holiday list, sorted.
func (l *Ledger) HolidayDates(ctx context.Context) ([]string, error) {
	set, err := l.holidays.Holidays(ctx)
	if err != nil {
		return nil, err
	}
	return set.Dates(), nil
}

// =============================================================================
// CREATE
// =============================================================================

// Create builds a pending request from in and stores it. A client-supplied id
// that already exists is a conflict; otherwise the id derives from the clock.
func (l *Ledger) Create(ctx context.Context, in RequestInput) (*LeaveRequest, error) {
	holidays, err := l.holidays.Holidays(ctx)
	if err != nil {
		return nil, err
	}
	now := l.Now()

	var created *LeaveRequest
	err = l.store.Update(ctx, func(tx generic.DocumentTx) error {
		req, err := l.builder.Build(in, holidays, now)
		if err != nil {
			return err
		}

		var all []*LeaveRequest
		if err := generic.GetJSON(tx, generic.DocRequests, &all); err != nil {
			return err
		}
		taken := func(id string) bool { return requestIndex(all, id) >= 0 }
		if req.ID == "" {
			req.ID = nextRequestID(now, taken)
		} else if taken(req.ID) {
			return generic.Conflict("leave request %s already exists", req.ID)
		}

		all = append(all, req)
		if err := generic.PutJSON(tx, generic.DocRequests, all); err != nil {
			return err
		}
		created = req
		return appendAudit(tx, generic.AuditEntry{
			Timestamp: now,
			ActorID:   req.UserID,
			Action:    generic.AuditRequestCreated,
			UserID:    req.UserID,
			RequestID: req.ID,
			Payload: map[string]any{
				"type": req.Type,
				"days": req.Days,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	requestsCreated.Inc()
	l.logger.Info("leave request created",
		zap.String("request_id", created.ID),
		zap.String("user_id", created.UserID),
		zap.String("type", string(created.Type)),
		zap.Stringer("days", created.Days),
	)
	return created, nil
}

// =============================================================================
// DECIDE
// =============================================================================

// Decide approves or denies a pending request. Approval charges the owner's
// balances and stamps the request applied in the same commit.
func (l *Ledger) Decide(ctx context.Context, id string, d Decision) (DecideResult, error) {
	if d.Status != StatusApproved && d.Status != StatusDenied {
		return DecideResult{}, generic.Validation("status must be 'approved' or 'denied'")
	}
	now := l.Now()
	engine := ApprovalEngine{Balances: l.Balances}

	var out DecideResult
	err := l.store.Update(ctx, func(tx generic.DocumentTx) error {
		out = DecideResult{}

		var all []*LeaveRequest
		if err := generic.GetJSON(tx, generic.DocRequests, &all); err != nil {
			return err
		}
		i := requestIndex(all, id)
		if i < 0 {
			return generic.NotFound("leave request %s not found", id)
		}
		req := all[i]
		if req.Status != StatusPending {
			return generic.Conflict("leave request %s is %s, only pending requests can be decided", id, req.Status)
		}

		action := generic.AuditRequestDenied
		payload := map[string]any{"decisionNote": d.DecisionNote}

		if d.Status == StatusApproved {
			action = generic.AuditRequestApproved

			var users []*User
			if err := generic.GetJSON(tx, generic.DocUsers, &users); err != nil {
				return err
			}
			res, err := engine.ApproveAndDeduct(req, users, d.Patch)
			if err != nil {
				return err
			}
			if !res.AlreadyApplied {
				if err := generic.PutJSON(tx, generic.DocUsers, users); err != nil {
					return err
				}
				req.MarkApplied(res, now, d.DecidedBy, d.ApproverID)
			}
			out.Approval = &res
			payload["appliedAnnual"] = res.AppliedAnnual
			payload["appliedOff"] = res.AppliedOff
			payload["alreadyApplied"] = res.AlreadyApplied
		}

		req.Status = d.Status
		req.DecidedAt = now
		req.DecidedBy = d.DecidedBy
		req.ApproverID = d.ApproverID
		req.ApproverName = d.ApproverName
		req.DecisionNote = d.DecisionNote

		if err := generic.PutJSON(tx, generic.DocRequests, all); err != nil {
			return err
		}
		out.Request = req
		return appendAudit(tx, generic.AuditEntry{
			Timestamp: now,
			ActorID:   firstNonEmpty(d.ApproverID, d.DecidedBy),
			Action:    action,
			UserID:    req.UserID,
			RequestID: req.ID,
			Payload:   payload,
		})
	})
	if err != nil {
		return DecideResult{}, err
	}

	decisionsTotal.WithLabelValues(string(d.Status)).Inc()
	fields := []zap.Field{
		zap.String("request_id", id),
		zap.String("status", string(d.Status)),
		zap.String("approver_id", d.ApproverID),
	}
	if a := out.Approval; a != nil {
		if !a.AlreadyApplied {
			daysDeducted.WithLabelValues(string(TypeAnnual)).Add(a.AppliedAnnual.Float64())
			daysDeducted.WithLabelValues(string(TypeOffDay)).Add(a.AppliedOff.Float64())
		}
		fields = append(fields,
			zap.Stringer("applied_annual", a.AppliedAnnual),
			zap.Stringer("applied_off", a.AppliedOff),
			zap.Bool("already_applied", a.AlreadyApplied),
		)
	}
	l.logger.Info("leave request decided", fields...)
	return out, nil
}

// =============================================================================
// MODIFY
// =============================================================================

// Modify edits or cancels an approved request, moving the balance difference
// in the same commit.
func (l *Ledger) Modify(ctx context.Context, id string, m Modification) (*LeaveRequest, error) {
	if m.Mode != ModeEdit && m.Mode != ModeCancel {
		return nil, generic.Validation("mode must be 'edit' or 'cancel'")
	}
	holidays, err := l.holidays.Holidays(ctx)
	if err != nil {
		return nil, err
	}
	now := l.Now()
	engine := ModificationEngine{Balances: l.Balances}

	var (
		updated *LeaveRequest
		edit    EditResult
		cancel  CancelResult
	)
	err = l.store.Update(ctx, func(tx generic.DocumentTx) error {
		var all []*LeaveRequest
		if err := generic.GetJSON(tx, generic.DocRequests, &all); err != nil {
			return err
		}
		i := requestIndex(all, id)
		if i < 0 {
			return generic.NotFound("leave request %s not found", id)
		}
		req := all[i]

		var users []*User
		if err := generic.GetJSON(tx, generic.DocUsers, &users); err != nil {
			return err
		}
		var user *User
		if ui := findRequester(users, req); ui >= 0 {
			user = users[ui]
		}

		entry := generic.AuditEntry{
			Timestamp: now,
			UserID:    req.UserID,
			RequestID: req.ID,
		}
		switch m.Mode {
		case ModeEdit:
			res, err := engine.Edit(req, user, m.Edit, holidays, now)
			if err != nil {
				return err
			}
			edit = res
			entry.ActorID = m.Edit.EditedByID
			entry.Action = generic.AuditRequestEdited
			entry.Payload = map[string]any{
				"oldAnnual": res.OldAnnual,
				"oldOff":    res.OldOff,
				"newAnnual": res.NewAnnual,
				"newOff":    res.NewOff,
				"editNote":  m.Edit.EditNote,
			}
		case ModeCancel:
			res, err := engine.Cancel(req, user, m.Cancel, holidays, now)
			if err != nil {
				return err
			}
			cancel = res
			entry.ActorID = m.Cancel.EditedByID
			entry.Action = generic.AuditRequestCancelled
			entry.Payload = map[string]any{
				"refundAnnual":        res.RefundAnnual,
				"refundOff":           res.RefundOff,
				"cancelledReturnDate": req.CancelledReturnDate,
				"editNote":            m.Cancel.EditNote,
			}
		}

		if user != nil {
			if err := generic.PutJSON(tx, generic.DocUsers, users); err != nil {
				return err
			}
		}
		if err := generic.PutJSON(tx, generic.DocRequests, all); err != nil {
			return err
		}
		updated = req
		return appendAudit(tx, entry)
	})
	if err != nil {
		if IsRefundRejection(err) {
			refundsRejected.Inc()
		}
		return nil, err
	}

	switch m.Mode {
	case ModeEdit:
		editsTotal.Inc()
		delta := edit.Delta()
		l.logger.Info("leave request edited",
			zap.String("request_id", id),
			zap.Stringer("annual_delta", delta.AnnualLeave),
			zap.Stringer("off_delta", delta.OffDays),
		)
	case ModeCancel:
		daysRefunded.WithLabelValues(string(TypeAnnual)).Add(cancel.RefundAnnual.Float64())
		daysRefunded.WithLabelValues(string(TypeOffDay)).Add(cancel.RefundOff.Float64())
		l.logger.Info("leave request cancelled",
			zap.String("request_id", id),
			zap.Stringer("refund_annual", cancel.RefundAnnual),
			zap.Stringer("refund_off", cancel.RefundOff),
		)
	}
	return updated, nil
}

// =============================================================================
// BALANCE OVERRIDE
// =============================================================================

// OverrideBalance sets a user's balances directly, outside any request.
// The usual clamps still apply.
func (l *Ledger) OverrideBalance(ctx context.Context, key string, o BalanceOverride) (BalanceView, error) {
	if o.AnnualLeave == nil && o.OffDays == nil {
		return BalanceView{}, generic.Validation("annualLeave or offDays is required")
	}
	now := l.Now()

	var view BalanceView
	err := l.store.Update(ctx, func(tx generic.DocumentTx) error {
		var users []*User
		if err := generic.GetJSON(tx, generic.DocUsers, &users); err != nil {
			return err
		}
		i := FindUserIndex(users, key)
		if i < 0 {
			return generic.NotFound("user %s not found", key)
		}
		user := users[i]

		before := l.Balances.GetBalances(user)
		next := before
		if o.AnnualLeave != nil {
			next.AnnualLeave = generic.RoundHalfDay(*o.AnnualLeave)
		}
		if o.OffDays != nil {
			next.OffDays = generic.RoundHalfDay(*o.OffDays)
		}
		l.Balances.SetBalances(user, next)

		if err := generic.PutJSON(tx, generic.DocUsers, users); err != nil {
			return err
		}
		view = l.Balances.View(user)
		return appendAudit(tx, generic.AuditEntry{
			Timestamp: now,
			ActorID:   o.ActorID,
			Action:    generic.AuditBalanceOverride,
			UserID:    user.ID(),
			Payload: map[string]any{
				"before": before,
				"after":  Balances{AnnualLeave: view.AnnualLeave, OffDays: view.OffDays},
			},
		})
	})
	if err != nil {
		return BalanceView{}, err
	}

	l.logger.Info("balance overridden",
		zap.String("user_id", view.UserID),
		zap.String("actor_id", o.ActorID),
		zap.Stringer("annual_leave", view.AnnualLeave),
		zap.Stringer("off_days", view.OffDays),
	)
	return view, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func requestIndex(all []*LeaveRequest, id string) int {
	for i, r := range all {
		if r.ID == id {
			return i
		}
	}
	return -1
}

func appendAudit(tx generic.DocumentTx, e generic.AuditEntry) error {
	var entries []generic.AuditEntry
	if err := generic.GetJSON(tx, generic.DocAudit, &entries); err != nil {
		return err
	}
	e.ID = uuid.NewString()
	entries = append(entries, e)
	return generic.PutJSON(tx, generic.DocAudit, entries)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// IsRefundRejection reports whether err is a cancellation refused for
// refunding more than was applied.
func IsRefundRejection(err error) bool {
	var e *generic.Error
	return errors.As(err, &e) && e.Message == MsgRefundExceeded
}
