package timeoff_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/leave-ledger/generic"
	"github.com/warp/leave-ledger/timeoff"
)

func amyWith(annual, off int) *timeoff.User {
	return timeoff.NewBalanceStore().SetBalances(timeoff.NewUser("u1", "Amy", "staff"), timeoff.Balances{
		AnnualLeave: generic.NewDays(annual),
		OffDays:     generic.NewDays(off),
	})
}

func newModEngine() timeoff.ModificationEngine {
	return timeoff.ModificationEngine{Balances: timeoff.NewBalanceStore()}
}

// =============================================================================
// EDIT
// =============================================================================

func TestEdit_NetBalanceChange(t *testing.T) {
	// GIVEN: Balance 10 after an approval that applied 3 annual days
	req := approvedRequest(3, 0)
	user := amyWith(10, 0)
	engine := newModEngine()

	// WHEN: The request is edited down to 1 day
	res, err := engine.Edit(req, user, timeoff.EditPatch{
		NewAppliedAnnual: f64(1),
		EndDate:          "2024-06-03",
		Reason:           str("shorter trip"),
		EditNote:         "came back early",
		EditedByID:       "admin",
		EditedByName:     "Dana",
	}, holidays2024, testNow)

	// THEN: The balance moves by old - new: 10 + 3 - 1 = 12
	require.NoError(t, err)
	assert.Equal(t, "2", days(t, res.Delta().AnnualLeave))
	assert.Equal(t, "12", days(t, engine.Balances.GetBalances(user).AnnualLeave))

	// AND: The request reflects the new amounts
	assert.Equal(t, timeoff.StatusApproved, req.Status)
	assert.Equal(t, "1", days(t, req.Days))
	assert.Equal(t, "1", days(t, req.Application.Annual))
	assert.Equal(t, "2024-06-03", req.EndDate)
	assert.Equal(t, "2024-06-04", req.ResumeOn)
	assert.Equal(t, "shorter trip", req.Reason)
	assert.Equal(t, "came back early", req.EditNote)
	assert.Equal(t, "admin", req.LastEditedByID)
	assert.Equal(t, testNow, req.LastEditedAt)
}

func TestEdit_MovesDaysBetweenBuckets(t *testing.T) {
	req := approvedRequest(3, 0)
	user := amyWith(10, 2)
	engine := newModEngine()

	_, err := engine.Edit(req, user, timeoff.EditPatch{
		NewAppliedAnnual: f64(2),
		NewAppliedOff:    f64(1),
		EditNote:         "one day was an off day",
	}, holidays2024, testNow)

	require.NoError(t, err)
	bal := engine.Balances.GetBalances(user)
	assert.Equal(t, "11", days(t, bal.AnnualLeave))
	assert.Equal(t, "1", days(t, bal.OffDays))
	assert.True(t, req.Allocations.IsSplit())
}

func TestEdit_Rejections(t *testing.T) {
	tests := []struct {
		name         string
		status       timeoff.RequestStatus
		patch        timeoff.EditPatch
		wantConflict bool
		wantMessage  string
		wantDetails  []string
	}{
		{
			name:         "pending request",
			status:       timeoff.StatusPending,
			patch:        timeoff.EditPatch{EditNote: "x"},
			wantConflict: true,
		},
		{
			name:        "missing note",
			status:      timeoff.StatusApproved,
			patch:       timeoff.EditPatch{NewAppliedAnnual: f64(1)},
			wantMessage: "editNote is required",
		},
		{
			name:   "every bad field reported",
			status: timeoff.StatusApproved,
			patch: timeoff.EditPatch{
				NewAppliedAnnual: f64(-2),
				StartDate:        "2024-06-10",
				EndDate:          "2024-06-05",
				Type:             "sick",
				EditNote:         "fix",
			},
			wantMessage: "invalid edit",
			wantDetails: []string{
				"newAppliedAnnual (-2) must not be negative",
				"endDate must not be before startDate",
				"type must be 'annual' or 'offDay'",
			},
		},
		{
			name:        "zero total",
			status:      timeoff.StatusApproved,
			patch:       timeoff.EditPatch{NewAppliedAnnual: f64(0), EditNote: "fix"},
			wantMessage: "invalid edit",
			wantDetails: []string{"edited request must keep a positive number of days"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := approvedRequest(3, 0)
			req.Status = tt.status
			user := amyWith(10, 0)
			engine := newModEngine()

			_, err := engine.Edit(req, user, tt.patch, holidays2024, testNow)

			require.Error(t, err)
			if tt.wantConflict {
				assert.True(t, generic.IsConflict(err))
			} else {
				assert.True(t, generic.IsClientError(err))
				assert.Equal(t, tt.wantMessage, generic.Message(err))
				assert.Equal(t, tt.wantDetails, generic.Details(err))
			}
			assert.Equal(t, "10", days(t, engine.Balances.GetBalances(user).AnnualLeave))
			assert.Equal(t, "3", days(t, req.Application.Annual))
		})
	}
}

// =============================================================================
// CANCEL
// =============================================================================

func TestCancel_PartialRefund(t *testing.T) {
	// GIVEN: An approved 5-day request, balance 16
	req := approvedRequest(5, 0)
	user := amyWith(16, 0)
	engine := newModEngine()

	// WHEN: It is cancelled refunding 2 days, effective Wednesday
	res, err := engine.Cancel(req, user, timeoff.CancelPatch{
		RefundAnnual:  f64(2),
		RefundOff:     f64(0),
		EffectiveDate: "2024-06-05",
		EditNote:      "back early",
		EditedByID:    "admin",
	}, holidays2024, testNow)

	// THEN: Only 2 days return and the request is closed
	require.NoError(t, err)
	assert.Equal(t, "2", days(t, res.RefundAnnual))
	assert.Equal(t, "18", days(t, engine.Balances.GetBalances(user).AnnualLeave))
	assert.Equal(t, timeoff.StatusCancelled, req.Status)
	assert.Equal(t, "2", days(t, req.RefundedAnnual))
	assert.Equal(t, "2024-06-06", req.CancelledReturnDate)
	assert.Equal(t, testNow, req.CancelledAt)
}

func TestCancel_DefaultsToFullRefund(t *testing.T) {
	req := approvedRequest(2, 1)
	user := amyWith(16, 0)
	engine := newModEngine()

	res, err := engine.Cancel(req, user, timeoff.CancelPatch{
		CancelledReturnDate: "2024-06-04",
		EditNote:            "trip cancelled",
	}, holidays2024, testNow)

	require.NoError(t, err)
	assert.Equal(t, "2", days(t, res.RefundAnnual))
	assert.Equal(t, "1", days(t, res.RefundOff))
	bal := engine.Balances.GetBalances(user)
	assert.Equal(t, "18", days(t, bal.AnnualLeave))
	assert.Equal(t, "1", days(t, bal.OffDays))
	assert.Equal(t, "2024-06-04", req.CancelledReturnDate)
}

func TestCancel_RefundBeyondAppliedIsRejected(t *testing.T) {
	// GIVEN: A request that applied 2 annual days
	req := approvedRequest(2, 0)
	user := amyWith(16, 0)
	engine := newModEngine()

	// WHEN: The cancel asks for 3 annual and 1 off back
	_, err := engine.Cancel(req, user, timeoff.CancelPatch{
		RefundAnnual: f64(3),
		RefundOff:    f64(1),
		EditNote:     "oops",
	}, holidays2024, testNow)

	// THEN: Every violated bound is listed and nothing changes
	require.Error(t, err)
	assert.True(t, timeoff.IsRefundRejection(err))
	assert.Equal(t, timeoff.MsgRefundExceeded, generic.Message(err))
	assert.Equal(t, []string{
		"refundAnnual (3) exceeds appliedAnnual (2)",
		"refundOff (1) exceeds appliedOff (0)",
		"total refund (4) exceeds total applied (2)",
	}, generic.Details(err))
	assert.Equal(t, timeoff.StatusApproved, req.Status)
	assert.Equal(t, "16", days(t, engine.Balances.GetBalances(user).AnnualLeave))
}

func TestCancel_StateConflicts(t *testing.T) {
	for _, status := range []timeoff.RequestStatus{timeoff.StatusCancelled, timeoff.StatusPending, timeoff.StatusDenied} {
		t.Run(string(status), func(t *testing.T) {
			req := approvedRequest(2, 0)
			req.Status = status

			_, err := newModEngine().Cancel(req, amyWith(16, 0), timeoff.CancelPatch{EditNote: "x"}, holidays2024, testNow)

			require.Error(t, err)
			assert.True(t, generic.IsConflict(err))
		})
	}
}

func TestCancel_RequiresNote(t *testing.T) {
	_, err := newModEngine().Cancel(approvedRequest(2, 0), amyWith(16, 0), timeoff.CancelPatch{}, holidays2024, testNow)

	require.Error(t, err)
	assert.Equal(t, "editNote is required", generic.Message(err))
}

func TestCancel_ZeroRefundNeedsNoUser(t *testing.T) {
	req := approvedRequest(2, 0)

	_, err := newModEngine().Cancel(req, nil, timeoff.CancelPatch{
		RefundAnnual: f64(0),
		RefundOff:    f64(0),
		EditNote:     "kept the days",
	}, holidays2024, testNow)

	require.NoError(t, err)
	assert.Equal(t, timeoff.StatusCancelled, req.Status)
}
