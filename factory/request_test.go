package factory_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/leave-ledger/factory"
	"github.com/warp/leave-ledger/generic"
	"github.com/warp/leave-ledger/timeoff"
)

// =============================================================================
// CREATE BODIES
// =============================================================================

func TestParseRequestInput_Canonical(t *testing.T) {
	in, err := factory.ParseRequestInput([]byte(`{
		"userId": "u1", "userName": "Amy", "section": "News",
		"type": "annual", "localOrOverseas": "local",
		"startDate": "2024-06-03", "endDate": "2024-06-07",
		"halfDayStart": true, "reason": "Family trip"
	}`))

	require.NoError(t, err)
	assert.Equal(t, "u1", in.UserID)
	assert.Equal(t, timeoff.TypeAnnual, in.Type)
	assert.Equal(t, timeoff.ScopeLocal, in.LocalOrOverseas)
	assert.Equal(t, "2024-06-03", in.StartDate)
	assert.True(t, in.HalfDayStart)
	assert.False(t, in.HalfDayEnd)
	assert.True(t, in.Days.IsZero())
}

func TestParseRequestInput_AllocationAliases(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantAnnual string
		wantOff    string
	}{
		{"nested allocations", `{"allocations": {"annual": 2, "off": 1}}`, "2", "1"},
		{"short aliases", `{"annualAlloc": 3, "offAlloc": "1.5"}`, "3", "1.5"},
		{"long aliases", `{"annualLeaveAlloc": 4, "offDaysAlloc": 1}`, "4", "1"},
		{"used aliases", `{"annualLeaveUsed": 1, "offDaysUsed": 2}`, "1", "2"},
		{"first present key wins", `{"annualAlloc": 5, "annualLeaveUsed": 9, "allocations": {"annual": 2}}`, "2", "0"},
		{"null falls through to next alias", `{"annualAlloc": null, "annualLeaveAlloc": 6}`, "6", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, err := factory.ParseRequestInput([]byte(tt.body))

			require.NoError(t, err)
			assert.Equal(t, tt.wantAnnual, in.AnnualAlloc.String())
			assert.Equal(t, tt.wantOff, in.OffAlloc.String())
		})
	}
}

func TestParseRequestInput_LenientValues(t *testing.T) {
	in, err := factory.ParseRequestInput([]byte(`{
		"userId": 42, "days": "2.5", "totalWeekdays": 3,
		"resumeWorkOn": "2024-06-10T00:00:00Z", "resumeOn": "2024-06-11",
		"useOffDays": "true", "halfDayEnd": 1
	}`))

	require.NoError(t, err)
	assert.Equal(t, "42", in.UserID)
	assert.Equal(t, "2.5", in.Days.String())
	assert.Equal(t, "3", in.TotalWeekdays.String())
	assert.Equal(t, "2024-06-10", in.ResumeOn)
	assert.True(t, in.UseOffDays)
	assert.True(t, in.HalfDayEnd)
}

func TestParseRequestInput_UnreadableDateReachesBuilder(t *testing.T) {
	// GIVEN: A create body whose start date is a digit string
	in, err := factory.ParseRequestInput([]byte(`{
		"userId": "u1", "userName": "Amy", "section": "News",
		"type": "annual", "localOrOverseas": "local",
		"startDate": "20240603", "endDate": "2024-06-07"
	}`))
	require.NoError(t, err)

	// WHEN: The parsed input is built
	req, err := timeoff.NewBuilder().Build(in, nil, time.Date(2024, time.May, 20, 9, 30, 0, 0, time.Local))

	// THEN: The raw value was kept and the builder rejects it
	assert.Equal(t, "20240603", in.StartDate)
	require.Error(t, err)
	assert.Nil(t, req)
	assert.Equal(t, "invalid dates", generic.Message(err))
	assert.Equal(t, []string{`startDate "20240603" is not a valid date`}, generic.Details(err))
}

func TestParseRequestInput_BadBodies(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantMessage string
		wantDetails []string
	}{
		{"empty", ``, "request body is required", nil},
		{"array", `[1, 2]`, "request body must be a JSON object", nil},
		{"not json", `{oops`, "request body must be a JSON object", nil},
		{"every bad number reported", `{"days": "many", "annualAlloc": true}`, "invalid request body",
			[]string{"annualAlloc must be a number", "days must be a number"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := factory.ParseRequestInput([]byte(tt.body))

			require.Error(t, err)
			assert.True(t, generic.IsClientError(err))
			assert.Equal(t, tt.wantMessage, generic.Message(err))
			assert.Equal(t, tt.wantDetails, generic.Details(err))
		})
	}
}

// =============================================================================
// PATCH BODIES
// =============================================================================

func TestParseLeavePatch_Decision(t *testing.T) {
	patch, err := factory.ParseLeavePatch([]byte(`{
		"status": "approved", "decidedBy": "Dana", "approverId": "admin",
		"appliedAnnual": "2", "decisionNote": "enjoy"
	}`))

	require.NoError(t, err)
	assert.Equal(t, factory.PatchDecision, patch.Kind)
	assert.Equal(t, timeoff.StatusApproved, patch.Decision.Status)
	assert.Equal(t, "admin", patch.Decision.ApproverID)
	require.NotNil(t, patch.Decision.Patch.AppliedAnnual)
	assert.Equal(t, 2.0, *patch.Decision.Patch.AppliedAnnual)
	assert.Nil(t, patch.Decision.Patch.AppliedOff)
}

func TestParseLeavePatch_Edit(t *testing.T) {
	patch, err := factory.ParseLeavePatch([]byte(`{
		"action": "modify", "mode": "edit",
		"newAppliedAnnual": 1, "endDate": "2024-06-03",
		"reason": "", "editNote": "shorter", "lastEditedById": "admin", "actorName": "Dana"
	}`))

	require.NoError(t, err)
	assert.Equal(t, factory.PatchModify, patch.Kind)
	m := patch.Modification
	assert.Equal(t, timeoff.ModeEdit, m.Mode)
	require.NotNil(t, m.Edit.NewAppliedAnnual)
	assert.Equal(t, 1.0, *m.Edit.NewAppliedAnnual)
	assert.Nil(t, m.Edit.NewAppliedOff)
	require.NotNil(t, m.Edit.Reason)
	assert.Equal(t, "", *m.Edit.Reason)
	assert.Equal(t, "admin", m.Edit.EditedByID)
	assert.Equal(t, "Dana", m.Edit.EditedByName)
}

func TestParseLeavePatch_Cancel(t *testing.T) {
	patch, err := factory.ParseLeavePatch([]byte(`{
		"action": "modify", "mode": "cancel",
		"refundAnnual": 2, "effectiveDate": "2024-06-05",
		"editNote": "back early", "editedById": "admin", "actorId": "ignored"
	}`))

	require.NoError(t, err)
	c := patch.Modification.Cancel
	require.NotNil(t, c.RefundAnnual)
	assert.Equal(t, 2.0, *c.RefundAnnual)
	assert.Nil(t, c.RefundOff)
	assert.Equal(t, "2024-06-05", c.EffectiveDate)
	assert.Equal(t, "admin", c.EditedByID)
}

func TestParseLeavePatch_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"neither status nor action", `{"decidedBy": "Dana"}`, "status or action is required"},
		{"unknown action", `{"action": "archive"}`, "action must be 'modify'"},
		{"unknown mode", `{"action": "modify", "mode": "delete"}`, "mode must be 'edit' or 'cancel'"},
		{"bad refund", `{"action": "modify", "mode": "cancel", "refundAnnual": "lots"}`, "invalid request body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := factory.ParseLeavePatch([]byte(tt.body))

			require.Error(t, err)
			assert.Equal(t, tt.want, generic.Message(err))
		})
	}
}

// =============================================================================
// BALANCE OVERRIDE
// =============================================================================

func TestParseBalanceOverride(t *testing.T) {
	o, err := factory.ParseBalanceOverride([]byte(`{"leaveBalance": "18", "offDays": 2, "actorId": "admin"}`))

	require.NoError(t, err)
	require.NotNil(t, o.AnnualLeave)
	assert.Equal(t, 18.0, *o.AnnualLeave)
	require.NotNil(t, o.OffDays)
	assert.Equal(t, 2.0, *o.OffDays)
	assert.Equal(t, "admin", o.ActorID)

	o, err = factory.ParseBalanceOverride([]byte(`{"annualLeave": 10, "leaveBalance": 30}`))
	require.NoError(t, err)
	assert.Equal(t, 10.0, *o.AnnualLeave)
	assert.Nil(t, o.OffDays)
}
