package timeoff_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/warp/leave-ledger/generic"
	"github.com/warp/leave-ledger/generic/store"
	"github.com/warp/leave-ledger/timeoff"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

var holidays2024 = generic.NewHolidaySet("2024-01-01", "2024-03-29", "2024-04-01", "2024-12-25", "2024-12-26")

var testNow = time.Date(2024, time.May, 20, 9, 30, 0, 0, time.Local)

func f64(v float64) *float64 { return &v }

func str(v string) *string { return &v }

func days(t *testing.T, d generic.Days) string {
	t.Helper()
	return d.String()
}

func decodeUser(t *testing.T, raw string) *timeoff.User {
	t.Helper()
	var u timeoff.User
	require.NoError(t, json.Unmarshal([]byte(raw), &u))
	return &u
}

// newTestLedger returns a ledger over an in-memory store seeded with users
// and the 2024 holidays, with a fixed clock.
func newTestLedger(t *testing.T, users string) (*timeoff.Ledger, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	err := mem.Update(context.Background(), func(tx generic.DocumentTx) error {
		tx.Put(generic.DocUsers, []byte(users))
		tx.Put(generic.DocHolidays, []byte(`["2024-01-01","2024-03-29","2024-04-01","2024-12-25","2024-12-26"]`))
		tx.Put(generic.DocRequests, []byte(`[]`))
		return nil
	})
	require.NoError(t, err)

	ledger := timeoff.NewLedger(mem, nil, nil)
	ledger.Now = func() time.Time { return testNow }
	return ledger, mem
}

const newsroomUsers = `[
	{"id": "admin", "name": "Dana", "role": "Admin"},
	{"id": "u1", "name": "Amy", "role": "staff", "annualLeave": 21, "offDays": 0},
	{"id": "u2", "name": "Ben", "role": "staff", "annualLeave": 21, "offDays": 2}
]`

func amyInput() timeoff.RequestInput {
	return timeoff.RequestInput{
		UserID:          "u1",
		UserName:        "Amy",
		Section:         "News",
		Type:            timeoff.TypeAnnual,
		LocalOrOverseas: timeoff.ScopeLocal,
		StartDate:       "2024-06-03",
		EndDate:         "2024-06-07",
		Reason:          "Family trip",
	}
}

func approvedRequest(annual, off float64) *timeoff.LeaveRequest {
	return &timeoff.LeaveRequest{
		ID:              "r-1",
		UserID:          "u1",
		UserName:        "Amy",
		Section:         "News",
		Type:            timeoff.TypeAnnual,
		LocalOrOverseas: timeoff.ScopeLocal,
		StartDate:       "2024-06-03",
		EndDate:         "2024-06-07",
		Days:            generic.RoundHalfDay(annual + off),
		Status:          timeoff.StatusApproved,
		Application: timeoff.Application{
			State:  timeoff.Applied,
			Annual: generic.RoundHalfDay(annual),
			Off:    generic.RoundHalfDay(off),
		},
	}
}
