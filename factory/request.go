/*
Package factory converts raw JSON request bodies into canonical ledger inputs.

PURPOSE:
  Clients written over several years send the same concept under different
  field names (annualAlloc, annualLeaveAlloc, annualLeaveUsed, ...). All of
  that is resolved here, once, so the timeoff package only ever sees
  timeoff.RequestInput, timeoff.Decision and timeoff.Modification.

ALIAS PRECEDENCE:
  Each concept has an ordered key table below. The first key present in the
  body wins; later keys are never consulted. Dotted keys address nested
  objects ("allocations.annual").

LENIENCY:
  Numbers may arrive as JSON numbers or numeric strings; ids may arrive as
  strings or numbers; booleans as true/false, "true"/"false" or 1/0. A value
  that is present but cannot be read as the expected kind is a validation
  error naming the key.

USAGE:
  in, err := factory.ParseRequestInput(body)
  req, err := ledger.Create(ctx, in)

  patch, err := factory.ParseLeavePatch(body)
  switch patch.Kind {
  case factory.PatchDecision: ledger.Decide(ctx, id, patch.Decision)
  case factory.PatchModify:   ledger.Modify(ctx, id, patch.Modification)
  }

SEE ALSO:
  - timeoff/builder.go: what happens to the canonical input
  - api/handlers.go: the only caller
*/
package factory

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/warp/leave-ledger/generic"
	"github.com/warp/leave-ledger/timeoff"
)

// =============================================================================
// ALIAS TABLES - first present key wins
// =============================================================================

var (
	annualAllocationKeys = []string{"allocations.annual", "annualAlloc", "annualLeaveAlloc", "annualLeaveUsed"}
	offAllocationKeys    = []string{"allocations.off", "offAlloc", "offDaysAlloc", "offDaysUsed"}
	resumeKeys           = []string{"resumeWorkOn", "resumeOn"}

	editorIDKeys   = []string{"editedById", "lastEditedById", "actorId"}
	editorNameKeys = []string{"editedByName", "lastEditedByName", "actorName"}

	annualBalanceKeys = []string{"annualLeave", "leaveBalance"}
	offBalanceKeys    = []string{"offDays", "offDayBalance"}
)

// =============================================================================
// NEW REQUEST
// =============================================================================

// ParseRequestInput reads a create-request body.
func ParseRequestInput(body []byte) (timeoff.RequestInput, error) {
	f, err := decodeFields(body)
	if err != nil {
		return timeoff.RequestInput{}, err
	}

	in := timeoff.RequestInput{
		ID:              f.str("id"),
		UserID:          f.str("userId"),
		UserName:        f.str("userName"),
		Section:         f.str("section"),
		Type:            timeoff.LeaveType(f.str("type")),
		LocalOrOverseas: timeoff.Scope(f.str("localOrOverseas")),
		StartDate:       f.date("startDate"),
		EndDate:         f.date("endDate"),
		ResumeOn:        f.date(resumeKeys...),
		HalfDayStart:    f.boolean("halfDayStart"),
		HalfDayEnd:      f.boolean("halfDayEnd"),
		UseOffDays:      f.boolean("useOffDays"),
		Reason:          f.str("reason"),
	}

	in.AnnualAlloc = f.days(annualAllocationKeys...)
	in.OffAlloc = f.days(offAllocationKeys...)
	in.Days = f.days("days")
	in.TotalWeekdays = f.days("totalWeekdays")
	in.RequestedDays = f.days("requestedDays")

	if err := f.err(); err != nil {
		return timeoff.RequestInput{}, err
	}
	return in, nil
}

// =============================================================================
// PATCH
// =============================================================================

type PatchKind int

const (
	PatchDecision PatchKind = iota
	PatchModify
)

// LeavePatch is a parsed PATCH /leave-requests/{id} body. Exactly one of
// Decision and Modification is meaningful, selected by Kind.
type LeavePatch struct {
	Kind         PatchKind
	Decision     timeoff.Decision
	Modification timeoff.Modification
}

// ParseLeavePatch reads a decision body ({status, ...}) or a modification
// body ({action: "modify", mode, ...}).
func ParseLeavePatch(body []byte) (LeavePatch, error) {
	f, err := decodeFields(body)
	if err != nil {
		return LeavePatch{}, err
	}

	action := f.str("action")
	switch {
	case action == "modify":
		m, err := parseModification(f)
		return LeavePatch{Kind: PatchModify, Modification: m}, err
	case action != "":
		return LeavePatch{}, generic.Validation("action must be 'modify'")
	case f.has("status"):
		d, err := parseDecision(f)
		return LeavePatch{Kind: PatchDecision, Decision: d}, err
	default:
		return LeavePatch{}, generic.Validation("status or action is required")
	}
}

func parseDecision(f *fields) (timeoff.Decision, error) {
	d := timeoff.Decision{
		Status:       timeoff.RequestStatus(f.str("status")),
		DecidedBy:    f.str("decidedBy"),
		ApproverID:   f.str("approverId"),
		ApproverName: f.str("approverName"),
		DecisionNote: f.str("decisionNote"),
		Patch: timeoff.ApprovalPatch{
			AppliedAnnual: f.number("appliedAnnual"),
			AppliedOff:    f.number("appliedOff"),
		},
	}
	return d, f.err()
}

func parseModification(f *fields) (timeoff.Modification, error) {
	m := timeoff.Modification{Mode: timeoff.ModifyMode(f.str("mode"))}
	editNote := f.str("editNote")
	byID := f.str(editorIDKeys...)
	byName := f.str(editorNameKeys...)

	switch m.Mode {
	case timeoff.ModeEdit:
		m.Edit = timeoff.EditPatch{
			NewAppliedAnnual: f.number("newAppliedAnnual"),
			NewAppliedOff:    f.number("newAppliedOff"),
			StartDate:        f.date("startDate"),
			EndDate:          f.date("endDate"),
			Type:             timeoff.LeaveType(f.str("type")),
			LocalOrOverseas:  timeoff.Scope(f.str("localOrOverseas")),
			EditNote:         editNote,
			EditedByID:       byID,
			EditedByName:     byName,
		}
		if f.has("reason") {
			reason := f.str("reason")
			m.Edit.Reason = &reason
		}
	case timeoff.ModeCancel:
		m.Cancel = timeoff.CancelPatch{
			RefundAnnual:        f.number("refundAnnual"),
			RefundOff:           f.number("refundOff"),
			CancelledReturnDate: f.date("cancelledReturnDate"),
			EffectiveDate:       f.date("effectiveDate"),
			EditNote:            editNote,
			EditedByID:          byID,
			EditedByName:        byName,
		}
	default:
		return m, generic.Validation("mode must be 'edit' or 'cancel'")
	}
	return m, f.err()
}

// =============================================================================
// BALANCE OVERRIDE
// =============================================================================

// ParseBalanceOverride reads a PATCH /balances/{userId} body. Canonical and
// legacy field names are both accepted.
func ParseBalanceOverride(body []byte) (timeoff.BalanceOverride, error) {
	f, err := decodeFields(body)
	if err != nil {
		return timeoff.BalanceOverride{}, err
	}
	o := timeoff.BalanceOverride{
		AnnualLeave: f.number(annualBalanceKeys...),
		OffDays:     f.number(offBalanceKeys...),
		ActorID:     f.str("actorId"),
	}
	return o, f.err()
}

// =============================================================================
// FIELD ACCESS
// =============================================================================

// fields is a decoded JSON object with alias-aware, lenient accessors.
// Conversion failures accumulate and are reported together by err.
type fields struct {
	raw     map[string]json.RawMessage
	details []string
}

func decodeFields(body []byte) (*fields, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, generic.Validation("request body is required")
	}
	raw := make(map[string]json.RawMessage)
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, generic.Validation("request body must be a JSON object")
	}
	return &fields{raw: raw}, nil
}

func (f *fields) err() error {
	if len(f.details) == 0 {
		return nil
	}
	return generic.Validation("invalid request body", f.details...)
}

// lookup returns the value of the first present, non-null key.
func (f *fields) lookup(keys ...string) (string, json.RawMessage, bool) {
	for _, k := range keys {
		if v, ok := f.path(k); ok && !isNull(v) {
			return k, v, true
		}
	}
	return "", nil, false
}

func (f *fields) path(key string) (json.RawMessage, bool) {
	parts := strings.Split(key, ".")
	cur := f.raw
	for i, p := range parts {
		v, ok := cur[p]
		if !ok {
			return nil, false
		}
		if i == len(parts)-1 {
			return v, true
		}
		next := make(map[string]json.RawMessage)
		if err := json.Unmarshal(v, &next); err != nil {
			return nil, false
		}
		cur = next
	}
	return nil, false
}

func (f *fields) has(keys ...string) bool {
	_, _, ok := f.lookup(keys...)
	return ok
}

// str reads a string. Numbers are accepted and rendered verbatim.
func (f *fields) str(keys ...string) string {
	_, v, ok := f.lookup(keys...)
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(v, &n); err == nil {
		return n.String()
	}
	return ""
}

// date reads any date-like value and normalizes it to a local ISO date.
// An unreadable string is kept as-is: the builder rejects it as a start or end
// date and recomputes it as a resume date.
func (f *fields) date(keys ...string) string {
	_, v, ok := f.lookup(keys...)
	if !ok {
		return ""
	}
	var decoded any
	dec := json.NewDecoder(bytes.NewReader(v))
	dec.UseNumber()
	if err := dec.Decode(&decoded); err != nil {
		return ""
	}
	if iso := generic.NormalizeToISO(decoded); iso != "" {
		return iso
	}
	if s, ok := decoded.(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

// number reads a finite number; nil when absent or blank.
func (f *fields) number(keys ...string) *float64 {
	key, v, ok := f.lookup(keys...)
	if !ok {
		return nil
	}
	var n float64
	if err := json.Unmarshal(v, &n); err == nil {
		return &n
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		s = strings.TrimSpace(s)
		if s == "" {
			return nil
		}
		if n, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(n) && !math.IsInf(n, 0) {
			return &n
		}
	}
	f.details = append(f.details, key+" must be a number")
	return nil
}

// days reads a number rounded to the half day; zero when absent.
func (f *fields) days(keys ...string) generic.Days {
	n := f.number(keys...)
	if n == nil {
		return generic.Days{}
	}
	return generic.RoundHalfDay(*n)
}

func (f *fields) boolean(key string) bool {
	_, v, ok := f.lookup(key)
	if !ok {
		return false
	}
	var b bool
	if err := json.Unmarshal(v, &b); err == nil {
		return b
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		b, _ := strconv.ParseBool(strings.TrimSpace(s))
		return b
	}
	var n float64
	if err := json.Unmarshal(v, &n); err == nil {
		return n != 0
	}
	return false
}

func isNull(v json.RawMessage) bool {
	return len(bytes.TrimSpace(v)) == 0 || string(bytes.TrimSpace(v)) == "null"
}
