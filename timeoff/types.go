// Package timeoff implements the leave-request lifecycle and the balance ledger
// it drives: request construction, approval deduction, edits and cancellations.
package timeoff

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/warp/leave-ledger/generic"
)

// =============================================================================
// ENUMS
// =============================================================================

// LeaveType selects the bucket a request draws from.
type LeaveType string

const (
	TypeAnnual LeaveType = "annual"
	TypeOffDay LeaveType = "offDay"
)

// Scope is informational: where the leave is spent.
type Scope string

const (
	ScopeLocal    Scope = "local"
	ScopeOverseas Scope = "overseas"
)

type RequestStatus string

const (
	StatusPending   RequestStatus = "pending"
	StatusApproved  RequestStatus = "approved"
	StatusDenied    RequestStatus = "denied"
	StatusCancelled RequestStatus = "cancelled"
)

// =============================================================================
// ALLOCATIONS & APPLICATION STATE
// =============================================================================

// Allocations splits a request across the two buckets.
type Allocations struct {
	Annual generic.Days `json:"annual"`
	Off    generic.Days `json:"off"`
}

func (a Allocations) Total() generic.Days { return a.Annual.Add(a.Off) }

// IsSplit reports whether the client chose an explicit split.
func (a Allocations) IsSplit() bool { return a.Annual.IsPositive() || a.Off.IsPositive() }

type ApplyState int

const (
	Unapplied ApplyState = iota
	Applied
)

// Application is the idempotency witness of the approval deduction.
// Once State is Applied the deduction must never run again; Annual and Off
// are what was actually charged to each bucket.
type Application struct {
	State  ApplyState
	Annual generic.Days
	Off    generic.Days
	At     time.Time
	By     string
	ByID   string
}

func (a Application) IsApplied() bool     { return a.State == Applied }
func (a Application) Total() generic.Days { return a.Annual.Add(a.Off) }

// =============================================================================
// LEAVE REQUEST
// =============================================================================

// LeaveRequest is one record of the leave_requests document.
type LeaveRequest struct {
	ID              string
	UserID          string
	UserName        string
	Section         string
	Type            LeaveType
	LocalOrOverseas Scope
	StartDate       string
	EndDate         string
	ResumeOn        string
	Days            generic.Days
	RequestedDays   generic.Days
	Allocations     Allocations
	HalfDayStart    bool
	HalfDayEnd      bool
	UseOffDays      bool
	Reason          string
	Status          RequestStatus
	CreatedAt       time.Time

	DecidedAt    time.Time
	DecidedBy    string
	ApproverID   string
	ApproverName string
	DecisionNote string

	Application Application

	LastEditedAt     time.Time
	LastEditedByID   string
	LastEditedByName string
	EditNote         string

	CancelledAt         time.Time
	CancelledReturnDate string
	RefundedAnnual      generic.Days
	RefundedOff         generic.Days
}

// MarkApplied records a completed deduction.
func (r *LeaveRequest) MarkApplied(res ApprovalResult, at time.Time, by, byID string) {
	r.Application = Application{
		State:  Applied,
		Annual: res.AppliedAnnual,
		Off:    res.AppliedOff,
		At:     at,
		By:     by,
		ByID:   byID,
	}
}

// requestJSON is the stored shape. The application state is flattened into
// the applied* fields existing readers expect.
type requestJSON struct {
	ID              wireKey         `json:"id"`
	UserID          wireKey         `json:"userId"`
	UserName        string          `json:"userName"`
	Section         string          `json:"section"`
	Type            LeaveType       `json:"type"`
	LocalOrOverseas Scope           `json:"localOrOverseas"`
	StartDate       string          `json:"startDate"`
	EndDate         string          `json:"endDate"`
	ResumeOn        string          `json:"resumeOn,omitempty"`
	Days            generic.Days    `json:"days"`
	RequestedDays   *generic.Days   `json:"requestedDays,omitempty"`
	Allocations     *Allocations    `json:"allocations,omitempty"`
	HalfDayStart    bool            `json:"halfDayStart,omitempty"`
	HalfDayEnd      bool            `json:"halfDayEnd,omitempty"`
	UseOffDays      bool            `json:"useOffDays"`
	Reason          string          `json:"reason"`
	Status          RequestStatus   `json:"status"`
	CreatedAt       *wireKey        `json:"createdAt"`

	DecidedAt    *wireKey `json:"decidedAt"`
	DecidedBy    *wireKey `json:"decidedBy"`
	ApproverID   wireKey  `json:"approverId,omitempty"`
	ApproverName string   `json:"approverName,omitempty"`
	DecisionNote string   `json:"decisionNote,omitempty"`

	Applied       bool          `json:"applied"`
	AppliedAt     *wireKey      `json:"appliedAt"`
	AppliedBy     string        `json:"appliedBy,omitempty"`
	AppliedByID   wireKey       `json:"appliedById,omitempty"`
	AppliedAnnual *generic.Days `json:"appliedAnnual,omitempty"`
	AppliedOff    *generic.Days `json:"appliedOff,omitempty"`

	LastEditedAt     *wireKey `json:"lastEditedAt,omitempty"`
	LastEditedByID   wireKey  `json:"lastEditedById,omitempty"`
	LastEditedByName string   `json:"lastEditedByName,omitempty"`
	EditNote         string   `json:"editNote,omitempty"`

	CancelledAt         *wireKey      `json:"cancelledAt,omitempty"`
	CancelledReturnDate string        `json:"cancelledReturnDate,omitempty"`
	RefundedAnnual      *generic.Days `json:"refundedAnnual,omitempty"`
	RefundedOff         *generic.Days `json:"refundedOff,omitempty"`
}

func (r LeaveRequest) MarshalJSON() ([]byte, error) {
	w := requestJSON{
		ID:              wireKey(r.ID),
		UserID:          wireKey(r.UserID),
		UserName:        r.UserName,
		Section:         r.Section,
		Type:            r.Type,
		LocalOrOverseas: r.LocalOrOverseas,
		StartDate:       r.StartDate,
		EndDate:         r.EndDate,
		ResumeOn:        r.ResumeOn,
		Days:            r.Days,
		HalfDayStart:    r.HalfDayStart,
		HalfDayEnd:      r.HalfDayEnd,
		UseOffDays:      r.UseOffDays,
		Reason:          r.Reason,
		Status:          r.Status,
		CreatedAt:       timestampPtr(r.CreatedAt),
		DecidedAt:       timestampPtr(r.DecidedAt),
		ApproverID:      wireKey(r.ApproverID),
		ApproverName:    r.ApproverName,
		DecisionNote:    r.DecisionNote,

		LastEditedAt:     timestampPtr(r.LastEditedAt),
		LastEditedByID:   wireKey(r.LastEditedByID),
		LastEditedByName: r.LastEditedByName,
		EditNote:         r.EditNote,

		CancelledAt:         timestampPtr(r.CancelledAt),
		CancelledReturnDate: r.CancelledReturnDate,
	}
	if r.DecidedBy != "" {
		by := wireKey(r.DecidedBy)
		w.DecidedBy = &by
	}
	if !r.RequestedDays.IsZero() {
		w.RequestedDays = &r.RequestedDays
	}
	if r.Allocations.IsSplit() {
		w.Allocations = &r.Allocations
	}
	if r.Application.IsApplied() {
		a := r.Application
		w.Applied = true
		w.AppliedAt = timestampPtr(a.At)
		w.AppliedBy = a.By
		w.AppliedByID = wireKey(a.ByID)
		w.AppliedAnnual = &a.Annual
		w.AppliedOff = &a.Off
	}
	if r.Status == StatusCancelled {
		w.RefundedAnnual = &r.RefundedAnnual
		w.RefundedOff = &r.RefundedOff
	}
	return json.Marshal(w)
}

func (r *LeaveRequest) UnmarshalJSON(b []byte) error {
	var w requestJSON
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*r = LeaveRequest{
		ID:                  string(w.ID),
		UserID:              string(w.UserID),
		UserName:            w.UserName,
		Section:             w.Section,
		Type:                w.Type,
		LocalOrOverseas:     w.LocalOrOverseas,
		StartDate:           w.StartDate,
		EndDate:             w.EndDate,
		ResumeOn:            w.ResumeOn,
		Days:                w.Days,
		HalfDayStart:        w.HalfDayStart,
		HalfDayEnd:          w.HalfDayEnd,
		UseOffDays:          w.UseOffDays,
		Reason:              w.Reason,
		Status:              w.Status,
		CreatedAt:           parseTimestamp(w.CreatedAt),
		DecidedAt:           parseTimestamp(w.DecidedAt),
		DecidedBy:           deref(w.DecidedBy),
		ApproverID:          string(w.ApproverID),
		ApproverName:        w.ApproverName,
		DecisionNote:        w.DecisionNote,
		LastEditedAt:        parseTimestamp(w.LastEditedAt),
		LastEditedByID:      string(w.LastEditedByID),
		LastEditedByName:    w.LastEditedByName,
		EditNote:            w.EditNote,
		CancelledAt:         parseTimestamp(w.CancelledAt),
		CancelledReturnDate: w.CancelledReturnDate,
	}
	if w.RequestedDays != nil {
		r.RequestedDays = *w.RequestedDays
	}
	if w.Allocations != nil {
		r.Allocations = *w.Allocations
	}
	if w.RefundedAnnual != nil {
		r.RefundedAnnual = *w.RefundedAnnual
	}
	if w.RefundedOff != nil {
		r.RefundedOff = *w.RefundedOff
	}
	if w.Applied || deref(w.AppliedAt) != "" {
		r.Application = Application{
			State: Applied,
			At:    parseTimestamp(w.AppliedAt),
			By:    w.AppliedBy,
			ByID:  string(w.AppliedByID),
		}
		if w.AppliedAnnual != nil {
			r.Application.Annual = *w.AppliedAnnual
		}
		if w.AppliedOff != nil {
			r.Application.Off = *w.AppliedOff
		}
	}
	return nil
}

// =============================================================================
// WIRE HELPERS
// =============================================================================

func timestampPtr(t time.Time) *wireKey {
	if t.IsZero() {
		return nil
	}
	s := wireKey(t.Format(time.RFC3339Nano))
	return &s
}

// parseTimestamp accepts RFC 3339, a bare date, or epoch milliseconds.
// Anything else reads as the zero time.
func parseTimestamp(s *wireKey) time.Time {
	v := strings.TrimSpace(deref(s))
	if v == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
		return t
	}
	if t, ok := generic.ParseLocalDate(v); ok {
		return t
	}
	if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.UnixMilli(ms)
	}
	return time.Time{}
}

func deref(s *wireKey) string {
	if s == nil {
		return ""
	}
	return string(*s)
}

// wireKey is a stored string field that legacy documents may hold as a JSON
// number, such as a numeric user id or an epoch-millisecond timestamp.
type wireKey string

func (k *wireKey) UnmarshalJSON(b []byte) error {
	*k = wireKey(rawKey(b))
	return nil
}

// rawKey reads an identifier that legacy documents store as either a JSON
// string or a JSON number.
func rawKey(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}
