/*
scenarios_test.go - Tests for demo scenarios and the holiday refresher

PURPOSE:
	Each scenario must load through the store in one update and leave the
	ledger in the documented state. The legacy scenario doubles as an
	integration test of the tolerant readers.
*/
package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/leave-ledger/generic"
	"github.com/warp/leave-ledger/timeoff"
)

func TestScenario_AllLoadWithoutError(t *testing.T) {
	for _, s := range scenarios {
		t.Run(s.ID, func(t *testing.T) {
			h := setupTestHandler(t)
			require.NoError(t, h.loadScenario(context.Background(), s.ID))

			_, err := h.Ledger.List(context.Background(), timeoff.ListFilter{})
			require.NoError(t, err)
			entries, err := h.Ledger.Audit(context.Background(), generic.AuditFilter{})
			require.NoError(t, err)
			assert.Empty(t, entries)
		})
	}
}

func TestScenario_UnknownID(t *testing.T) {
	h := setupTestHandler(t)

	err := h.loadScenario(context.Background(), "nope")

	assert.True(t, generic.IsClientError(err))
}

func TestScenario_ApprovalsQueue(t *testing.T) {
	// GIVEN: The approvals-queue scenario
	h := setupTestHandler(t)
	ctx := context.Background()
	require.NoError(t, h.loadScenario(ctx, "approvals-queue"))

	// THEN: Two requests wait for a decision and Ben's approval is already charged
	pending, err := h.Ledger.List(ctx, timeoff.ListFilter{Status: timeoff.StatusPending})
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	approved, err := h.Ledger.Get(ctx, "r-1003")
	require.NoError(t, err)
	assert.True(t, approved.Application.IsApplied())

	ben, err := h.Ledger.Balance(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, "18", ben.AnnualLeave.String())
	assert.Equal(t, "2", ben.OffDays.String())
}

func TestScenario_LegacyRecords(t *testing.T) {
	// GIVEN: Documents in the older shapes
	h := setupTestHandler(t)
	ctx := context.Background()
	require.NoError(t, h.loadScenario(ctx, "legacy-records"))

	// THEN: Legacy balance fields and numeric ids read correctly
	views, err := h.Ledger.AllBalances(ctx)
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, "1", views[0].UserID)
	assert.Equal(t, "15", views[0].AnnualLeave.String())
	assert.Equal(t, "3", views[0].OffDays.String())
	assert.Equal(t, "12", views[1].AnnualLeave.String())

	// AND: Holiday objects are normalized and junk dropped
	dates, err := h.Ledger.HolidayDates(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-05-01", "2024-12-25"}, dates)

	// AND: The appliedAt-only record counts as applied, so it cannot be decided again
	_, err = h.Ledger.Decide(ctx, "1706781600000", timeoff.Decision{Status: timeoff.StatusApproved})
	assert.True(t, generic.IsConflict(err))

	// WHEN: It is cancelled without explicit refunds
	_, err = h.Ledger.Modify(ctx, "1706781600000", timeoff.Modification{
		Mode:   timeoff.ModeCancel,
		Cancel: timeoff.CancelPatch{EditNote: "migrated"},
	})

	// THEN: Exactly the recorded deduction comes back, and both field names move together
	require.NoError(t, err)
	carla, err := h.Ledger.Balance(ctx, "Carla")
	require.NoError(t, err)
	assert.Equal(t, "17", carla.AnnualLeave.String())
	assert.Equal(t, "17", carla.LeaveBalance.String())
}

func TestScenario_CurrentEndpoint(t *testing.T) {
	h := setupTestHandler(t)
	router := NewRouter(h, RouterOptions{})

	rec := doJSON(t, router, http.MethodGet, "/scenarios/current", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "null\n", rec.Body.String())

	rec = doJSON(t, router, http.MethodPost, "/scenarios/load", `{"scenario_id": "approvals-queue"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, router, http.MethodGet, "/scenarios/current", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "approvals-queue", decodeObject(t, rec)["id"])

	rec = doJSON(t, router, http.MethodGet, "/scenarios", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeList(t, rec), len(scenarios))

	rec = doJSON(t, router, http.MethodPost, "/scenarios/load", `{"scenario_id": "missing"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScenario_LoadRejectsOversizedBody(t *testing.T) {
	// GIVEN: A well-formed load body padded past the request size limit
	h := setupTestHandler(t)
	router := NewRouter(h, RouterOptions{})
	body := `{"scenario_id": "approvals-queue", "pad": "` + strings.Repeat("x", maxBodyBytes) + `"}`

	// WHEN: It is posted
	rec := doJSON(t, router, http.MethodPost, "/scenarios/load", body)

	// THEN: It is refused and no scenario is loaded
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = doJSON(t, router, http.MethodGet, "/scenarios/current", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "null\n", rec.Body.String())
}

// =============================================================================
// HOLIDAY REFRESHER
// =============================================================================

type flakyHolidays struct {
	set generic.HolidaySet
	err error
}

func (f *flakyHolidays) Holidays(context.Context) (generic.HolidaySet, error) {
	return f.set, f.err
}

func TestHolidayRefresher_RunNow(t *testing.T) {
	src := &flakyHolidays{set: generic.NewHolidaySet("2024-12-25")}
	cache := timeoff.NewHolidayCache(src)
	refresher := NewHolidayRefresher(cache, nil)

	require.NoError(t, refresher.RunNow())
	assert.False(t, cache.RefreshedAt().IsZero())

	src.err = errors.New("calendar service down")
	assert.Error(t, refresher.RunNow())

	set, err := cache.Holidays(context.Background())
	require.NoError(t, err)
	assert.True(t, set.Contains("2024-12-25"))
}

func TestHolidayRefresher_StartStop(t *testing.T) {
	cache := timeoff.NewHolidayCache(&flakyHolidays{set: generic.NewHolidaySet()})
	refresher := NewHolidayRefresher(cache, nil)

	refresher.Start()
	refresher.Start()
	refresher.Stop()
	refresher.Stop()

	disabled := NewHolidayRefresher(cache, nil)
	disabled.Enabled = false
	disabled.Start()
	disabled.Stop()
}
