package timeoff

import (
	"math"

	"github.com/warp/leave-ledger/generic"
)

// =============================================================================
// APPROVAL ENGINE - One deduction per request, never more
// =============================================================================

// ApprovalPatch carries optional explicit deduction amounts from the approver.
// A nil field means "derive from the request".
type ApprovalPatch struct {
	AppliedAnnual *float64
	AppliedOff    *float64
}

// ApprovalResult reports what was charged. AlreadyApplied means the request
// had been charged before and nothing changed this time.
type ApprovalResult struct {
	AppliedAnnual  generic.Days `json:"appliedAnnual"`
	AppliedOff     generic.Days `json:"appliedOff"`
	AlreadyApplied bool         `json:"alreadyApplied"`
}

type ApprovalEngine struct {
	Balances BalanceStore
}

// ApproveAndDeduct charges the request's days against its owner's balances.
// The idempotency guard runs before anything else, so a request that is
// already applied returns its recorded amounts and touches no user.
// The caller persists users and stamps the request with MarkApplied.
func (e ApprovalEngine) ApproveAndDeduct(req *LeaveRequest, users []*User, patch ApprovalPatch) (ApprovalResult, error) {
	if req.Application.IsApplied() {
		return ApprovalResult{
			AppliedAnnual:  req.Application.Annual,
			AppliedOff:     req.Application.Off,
			AlreadyApplied: true,
		}, nil
	}

	idx := findRequester(users, req)
	if idx < 0 {
		return ApprovalResult{}, generic.Conflict("user not found for balance deduction")
	}
	user := users[idx]

	annual := deductionFor(patch.AppliedAnnual, req.Allocations.Annual, req, TypeAnnual)
	off := deductionFor(patch.AppliedOff, req.Allocations.Off, req, TypeOffDay)

	cur := e.Balances.GetBalances(user)
	e.Balances.SetBalances(user, Balances{
		AnnualLeave: cur.AnnualLeave.Sub(annual),
		OffDays:     cur.OffDays.Sub(off),
	})

	return ApprovalResult{AppliedAnnual: annual, AppliedOff: off}, nil
}

// deductionFor resolves one bucket: explicit patch value, then a positive
// allocation, then the whole request if its type draws from this bucket.
// A split request only ever charges its allocations, so the buckets never
// sum to more than the request.
func deductionFor(explicit *float64, alloc generic.Days, req *LeaveRequest, bucket LeaveType) generic.Days {
	if explicit != nil && !math.IsNaN(*explicit) && !math.IsInf(*explicit, 0) {
		return generic.RoundHalfDay(*explicit).Max(generic.Days{})
	}
	if alloc.IsPositive() {
		return alloc
	}
	if req.Type == bucket && !req.Allocations.IsSplit() {
		return req.Days
	}
	return generic.Days{}
}
