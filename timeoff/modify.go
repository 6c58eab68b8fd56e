package timeoff

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/warp/leave-ledger/generic"
)

// =============================================================================
// MODIFICATION ENGINE - Edits and cancellations of approved requests
// =============================================================================
//
// An edit reverses the amounts originally applied and charges the new ones,
// so the net balance change is exactly (old - new) per bucket. A cancellation
// refunds at most what was applied, bucket by bucket.

// EditPatch changes an approved request. Nil amounts keep the applied values;
// empty strings keep the current field.
type EditPatch struct {
	NewAppliedAnnual *float64
	NewAppliedOff    *float64
	StartDate        string
	EndDate          string
	Type             LeaveType
	LocalOrOverseas  Scope
	Reason           *string
	EditNote         string
	EditedByID       string
	EditedByName     string
}

// CancelPatch cancels an approved request. Nil refunds return everything
// applied to that bucket.
type CancelPatch struct {
	RefundAnnual        *float64
	RefundOff           *float64
	CancelledReturnDate string
	EffectiveDate       string
	EditNote            string
	EditedByID          string
	EditedByName        string
}

// EditResult is the per-bucket change an edit made to the balance.
type EditResult struct {
	OldAnnual generic.Days
	OldOff    generic.Days
	NewAnnual generic.Days
	NewOff    generic.Days
}

// Delta is what the edit returned to the balance (negative when it charged more).
func (r EditResult) Delta() Balances {
	return Balances{
		AnnualLeave: r.OldAnnual.Sub(r.NewAnnual),
		OffDays:     r.OldOff.Sub(r.NewOff),
	}
}

// CancelResult is what a cancellation refunded.
type CancelResult struct {
	RefundAnnual generic.Days
	RefundOff    generic.Days
}

// MsgRefundExceeded is the message of a cancellation refused for refunding
// more than was applied.
const MsgRefundExceeded = "refund exceeds original deduction"

type ModificationEngine struct {
	Balances BalanceStore
}

// Edit applies p to req and moves the difference through user's balances.
// user may be nil only when the applied amounts do not change.
func (e ModificationEngine) Edit(req *LeaveRequest, user *User, p EditPatch, holidays generic.HolidaySet, now time.Time) (EditResult, error) {
	if req.Status != StatusApproved {
		return EditResult{}, generic.Conflict("only approved requests can be edited (status is %s)", req.Status)
	}
	if strings.TrimSpace(p.EditNote) == "" {
		return EditResult{}, generic.Validation("editNote is required")
	}

	res := EditResult{OldAnnual: req.Application.Annual, OldOff: req.Application.Off}
	var details []string
	res.NewAnnual, details = editAmount("newAppliedAnnual", p.NewAppliedAnnual, res.OldAnnual, details)
	res.NewOff, details = editAmount("newAppliedOff", p.NewAppliedOff, res.OldOff, details)

	start, end := req.StartDate, req.EndDate
	if p.StartDate != "" {
		if start = generic.NormalizeToISO(p.StartDate); start == "" {
			details = append(details, fmt.Sprintf("startDate %q is not a valid date", p.StartDate))
		}
	}
	if p.EndDate != "" {
		if end = generic.NormalizeToISO(p.EndDate); end == "" {
			details = append(details, fmt.Sprintf("endDate %q is not a valid date", p.EndDate))
		}
	}
	if start != "" && end != "" && end < start {
		details = append(details, "endDate must not be before startDate")
	}
	if p.Type != "" && p.Type != TypeAnnual && p.Type != TypeOffDay {
		details = append(details, "type must be 'annual' or 'offDay'")
	}
	if p.LocalOrOverseas != "" && p.LocalOrOverseas != ScopeLocal && p.LocalOrOverseas != ScopeOverseas {
		details = append(details, "localOrOverseas must be 'local' or 'overseas'")
	}
	total := res.NewAnnual.Add(res.NewOff)
	if len(details) == 0 && !total.IsPositive() {
		details = append(details, "edited request must keep a positive number of days")
	}
	if len(details) > 0 {
		return EditResult{}, generic.Validation("invalid edit", details...)
	}

	delta := res.Delta()
	if !delta.AnnualLeave.IsZero() || !delta.OffDays.IsZero() {
		if user == nil {
			return EditResult{}, generic.NotFound("user %s not found for balance adjustment", req.UserID)
		}
		cur := e.Balances.GetBalances(user)
		e.Balances.SetBalances(user, Balances{
			AnnualLeave: cur.AnnualLeave.Add(delta.AnnualLeave),
			OffDays:     cur.OffDays.Add(delta.OffDays),
		})
	}

	req.StartDate, req.EndDate = start, end
	if p.Type != "" {
		req.Type = p.Type
	}
	if p.LocalOrOverseas != "" {
		req.LocalOrOverseas = p.LocalOrOverseas
	}
	if p.Reason != nil {
		req.Reason = *p.Reason
	}
	req.Days = total
	req.RequestedDays = total
	req.Allocations = Allocations{Annual: res.NewAnnual, Off: res.NewOff}
	if req.EndDate != "" {
		req.ResumeOn = generic.NextWorkdayAfter(req.EndDate, holidays)
	}

	app := req.Application
	if !app.IsApplied() {
		app = Application{State: Applied, At: now, By: p.EditedByName, ByID: p.EditedByID}
	}
	app.Annual, app.Off = res.NewAnnual, res.NewOff
	req.Application = app

	req.LastEditedAt = now
	req.LastEditedByID = p.EditedByID
	req.LastEditedByName = p.EditedByName
	req.EditNote = p.EditNote
	return res, nil
}

func editAmount(field string, v *float64, orig generic.Days, details []string) (generic.Days, []string) {
	if v == nil {
		return orig, details
	}
	if math.IsNaN(*v) || math.IsInf(*v, 0) {
		return orig, append(details, field+" must be a finite number")
	}
	d := generic.RoundHalfDay(*v)
	if d.IsNegative() {
		return orig, append(details, fmt.Sprintf("%s (%s) must not be negative", field, d))
	}
	return d, details
}

// Cancel refunds up to the applied amounts and closes the request. Every
// violated bound is reported in the error details and nothing is mutated.
func (e ModificationEngine) Cancel(req *LeaveRequest, user *User, p CancelPatch, holidays generic.HolidaySet, now time.Time) (CancelResult, error) {
	if req.Status == StatusCancelled {
		return CancelResult{}, generic.Conflict("request %s is already cancelled", req.ID)
	}
	if req.Status != StatusApproved {
		return CancelResult{}, generic.Conflict("only approved requests can be cancelled (status is %s)", req.Status)
	}
	if strings.TrimSpace(p.EditNote) == "" {
		return CancelResult{}, generic.Validation("editNote is required")
	}

	applied := req.Application
	res := CancelResult{
		RefundAnnual: refundAmount(p.RefundAnnual, applied.Annual),
		RefundOff:    refundAmount(p.RefundOff, applied.Off),
	}

	var details []string
	if res.RefundAnnual.IsNegative() {
		details = append(details, fmt.Sprintf("refundAnnual (%s) must not be negative", res.RefundAnnual))
	}
	if res.RefundOff.IsNegative() {
		details = append(details, fmt.Sprintf("refundOff (%s) must not be negative", res.RefundOff))
	}
	if res.RefundAnnual.GreaterThan(applied.Annual) {
		details = append(details, fmt.Sprintf("refundAnnual (%s) exceeds appliedAnnual (%s)", res.RefundAnnual, applied.Annual))
	}
	if res.RefundOff.GreaterThan(applied.Off) {
		details = append(details, fmt.Sprintf("refundOff (%s) exceeds appliedOff (%s)", res.RefundOff, applied.Off))
	}
	total := res.RefundAnnual.Add(res.RefundOff)
	if total.GreaterThan(applied.Total()) {
		details = append(details, fmt.Sprintf("total refund (%s) exceeds total applied (%s)", total, applied.Total()))
	}
	if len(details) > 0 {
		return CancelResult{}, generic.Validation(MsgRefundExceeded, details...)
	}

	if total.IsPositive() {
		if user == nil {
			return CancelResult{}, generic.NotFound("user %s not found for refund", req.UserID)
		}
		cur := e.Balances.GetBalances(user)
		e.Balances.SetBalances(user, Balances{
			AnnualLeave: cur.AnnualLeave.Add(res.RefundAnnual),
			OffDays:     cur.OffDays.Add(res.RefundOff),
		})
	}

	returnDate := generic.NormalizeToISO(p.CancelledReturnDate)
	if returnDate == "" {
		from := generic.NormalizeToISO(p.EffectiveDate)
		if from == "" {
			from = generic.ToLocalISO(now)
		}
		returnDate = generic.NextWorkdayAfter(from, holidays)
	}

	req.Status = StatusCancelled
	req.RefundedAnnual = res.RefundAnnual
	req.RefundedOff = res.RefundOff
	req.CancelledAt = now
	req.CancelledReturnDate = returnDate
	req.LastEditedAt = now
	req.LastEditedByID = p.EditedByID
	req.LastEditedByName = p.EditedByName
	req.EditNote = p.EditNote
	return res, nil
}

func refundAmount(v *float64, applied generic.Days) generic.Days {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return applied
	}
	return generic.RoundHalfDay(*v)
}
