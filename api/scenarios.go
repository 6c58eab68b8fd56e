/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built ledgers (users, holidays, requests) for demos and
	manual testing of the request lifecycle.

AVAILABLE SCENARIOS:

	newsroom:        Three users (one admin), a holiday calendar, no requests
	approvals-queue: Same users with pending and approved requests to act on
	legacy-records:  Documents in the older shapes (numeric ids, legacy
	                 balance fields, {date} holiday objects, appliedAt-only
	                 witnesses) to exercise the tolerant readers

HOW SCENARIOS WORK:
 1. Build the four ledger documents
 2. Replace them in a single store update (the audit trail is cleared)
 3. Drop the holiday cache so the new calendar is served

USAGE VIA API:

	POST /scenarios/load
	{"scenario_id": "approvals-queue"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Create a seed function returning the documents
 3. Register it in scenarioSeeds

NOTE:

	Scenarios overwrite the ledger. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Handler
  - timeoff/balance.go: SetBalances writes both field names
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/warp/leave-ledger/generic"
	"github.com/warp/leave-ledger/timeoff"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "newsroom",
		Name:        "Newsroom",
		Description: "Admin plus two staff with fresh balances and the 2024 holiday calendar",
	},
	{
		ID:          "approvals-queue",
		Name:        "Approvals Queue",
		Description: "Pending annual and off-day requests plus one approved request ready to edit or cancel",
	},
	{
		ID:          "legacy-records",
		Name:        "Legacy Records",
		Description: "Numeric user ids, legacy balance fields and appliedAt-only witnesses",
	},
}

// ledgerDocuments maps document name to its JSON body.
type ledgerDocuments map[string][]byte

var scenarioSeeds = map[string]func() (ledgerDocuments, error){
	"newsroom":        seedNewsroom,
	"approvals-queue": seedApprovalsQueue,
	"legacy-records":  seedLegacyRecords,
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	current := h.currentScenario
	h.mu.RUnlock()

	if current == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, ScenarioDTO{ID: current, Name: current})
}

// LoadScenario replaces the ledger with a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	body, ok := h.readBody(w, r)
	if !ok {
		return
	}
	var req LoadScenarioRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}

	if err := h.loadScenario(r.Context(), req.ScenarioID); err != nil {
		h.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

func (h *Handler) loadScenario(ctx context.Context, id string) error {
	seed, ok := scenarioSeeds[id]
	if !ok {
		return generic.Validation(fmt.Sprintf("unknown scenario %q", id))
	}
	docs, err := seed()
	if err != nil {
		return fmt.Errorf("build scenario %s: %w", id, err)
	}
	docs[generic.DocAudit] = []byte("[]")

	err = h.Store.Update(ctx, func(tx generic.DocumentTx) error {
		for _, name := range generic.LedgerDocuments {
			body, ok := docs[name]
			if !ok {
				body = []byte("[]")
			}
			tx.Put(name, body)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if h.Holidays != nil {
		h.Holidays.Invalidate()
	}
	h.mu.Lock()
	h.currentScenario = id
	h.mu.Unlock()
	return nil
}

// =============================================================================
// SCENARIO SEEDS
// =============================================================================

var holidays2024 = []string{"2024-01-01", "2024-03-29", "2024-04-01", "2024-12-25", "2024-12-26"}

func newsroomUsers(balances timeoff.BalanceStore) []*timeoff.User {
	admin := timeoff.NewUser("admin", "Dana", "Admin")
	amy := balances.SetBalances(timeoff.NewUser("u1", "Amy", "staff"), timeoff.Balances{
		AnnualLeave: generic.NewDays(21),
	})
	ben := balances.SetBalances(timeoff.NewUser("u2", "Ben", "staff"), timeoff.Balances{
		AnnualLeave: generic.NewDays(21),
		OffDays:     generic.NewDays(2),
	})
	return []*timeoff.User{admin, amy, ben}
}

func seedNewsroom() (ledgerDocuments, error) {
	return encodeDocuments(newsroomUsers(timeoff.NewBalanceStore()), holidays2024, []*timeoff.LeaveRequest{})
}

func seedApprovalsQueue() (ledgerDocuments, error) {
	balances := timeoff.NewBalanceStore()
	users := newsroomUsers(balances)

	// Ben's approved request is already charged against his balance.
	balances.SetBalances(users[2], timeoff.Balances{
		AnnualLeave: generic.NewDays(18),
		OffDays:     generic.NewDays(2),
	})

	created := time.Date(2024, time.May, 20, 9, 0, 0, 0, time.UTC)
	decided := created.Add(26 * time.Hour)
	holidays := generic.NewHolidaySet(toAny(holidays2024)...)

	requests := []*timeoff.LeaveRequest{
		{
			ID:              "r-1001",
			UserID:          "u1",
			UserName:        "Amy",
			Section:         "News",
			Type:            timeoff.TypeAnnual,
			LocalOrOverseas: timeoff.ScopeLocal,
			StartDate:       "2024-06-03",
			EndDate:         "2024-06-07",
			ResumeOn:        generic.NextWorkdayAfter("2024-06-07", holidays),
			Days:            generic.NewDays(5),
			Reason:          "Family trip",
			Status:          timeoff.StatusPending,
			CreatedAt:       created,
		},
		{
			ID:              "r-1002",
			UserID:          "u2",
			UserName:        "Ben",
			Section:         "Sports",
			Type:            timeoff.TypeOffDay,
			LocalOrOverseas: timeoff.ScopeLocal,
			StartDate:       "2024-07-01",
			EndDate:         "2024-07-01",
			ResumeOn:        generic.NextWorkdayAfter("2024-07-01", holidays),
			Days:            generic.NewDays(1),
			Reason:          "Worked the election night shift",
			Status:          timeoff.StatusPending,
			CreatedAt:       created,
		},
		{
			ID:              "r-1003",
			UserID:          "u2",
			UserName:        "Ben",
			Section:         "Sports",
			Type:            timeoff.TypeAnnual,
			LocalOrOverseas: timeoff.ScopeOverseas,
			StartDate:       "2024-08-14",
			EndDate:         "2024-08-16",
			ResumeOn:        generic.NextWorkdayAfter("2024-08-16", holidays),
			Days:            generic.NewDays(3),
			Reason:          "Wedding abroad",
			Status:          timeoff.StatusApproved,
			CreatedAt:       created,
			DecidedAt:       decided,
			DecidedBy:       "Dana",
			ApproverID:      "admin",
			ApproverName:    "Dana",
			Application: timeoff.Application{
				State:  timeoff.Applied,
				Annual: generic.NewDays(3),
				At:     decided,
				By:     "Dana",
				ByID:   "admin",
			},
		},
	}
	return encodeDocuments(users, holidays2024, requests)
}

// seedLegacyRecords writes the older document shapes verbatim.
func seedLegacyRecords() (ledgerDocuments, error) {
	return ledgerDocuments{
		generic.DocUsers: []byte(`[
			{"id": 1, "name": "Carla", "role": "staff", "email": "carla@example.com", "leaveBalance": 15, "offDayBalance": 3},
			{"id": 2, "name": "Omar", "role": "staff", "annualLeave": "12", "offDays": 0},
			{"id": 3, "name": "Root", "role": "ADMIN"}
		]`),
		generic.DocHolidays: []byte(`[{"date": "2024-05-01", "name": "Labour Day"}, "2024-12-25", "not-a-date"]`),
		generic.DocRequests: []byte(`[
			{
				"id": "1706781600000", "userId": 1, "userName": "Carla", "section": "Features",
				"type": "annual", "localOrOverseas": "local",
				"startDate": "2024-02-05", "endDate": "2024-02-06", "resumeOn": "2024-02-07",
				"days": 2, "status": "approved",
				"createdAt": "2024-02-01T08:00:00Z", "decidedAt": "2024-02-01T09:00:00Z", "decidedBy": "Root",
				"applied": false, "appliedAt": "2024-02-01T09:00:00Z", "appliedAnnual": 2, "appliedOff": 0
			},
			{
				"id": "1709290800000", "userId": "2", "userName": "Omar", "section": "Desk",
				"type": "offDay", "localOrOverseas": "overseas",
				"startDate": "2024-03-04", "endDate": "2024-03-04",
				"days": 1, "status": "pending",
				"createdAt": "2024-03-01T11:00:00Z", "decidedAt": null, "decidedBy": null
			}
		]`),
	}, nil
}

func encodeDocuments(users []*timeoff.User, holidays []string, requests []*timeoff.LeaveRequest) (ledgerDocuments, error) {
	docs := ledgerDocuments{}
	for name, v := range map[string]any{
		generic.DocUsers:    users,
		generic.DocHolidays: holidays,
		generic.DocRequests: requests,
	} {
		body, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", name, err)
		}
		docs[name] = body
	}
	return docs, nil
}

func toAny(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
