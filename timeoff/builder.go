package timeoff

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/warp/leave-ledger/generic"
)

// =============================================================================
// REQUEST BUILDER - Canonical input to a pending LeaveRequest
// =============================================================================

// RequestInput is the single canonical shape of a new request. Legacy field
// aliases are resolved before this point (see factory.ParseRequestInput).
type RequestInput struct {
	ID              string    `validate:"-"`
	UserID          string    `validate:"required"`
	UserName        string    `validate:"required"`
	Section         string    `validate:"required"`
	Type            LeaveType `validate:"oneof=annual offDay"`
	LocalOrOverseas Scope     `validate:"oneof=local overseas"`

	StartDate string
	EndDate   string
	ResumeOn  string

	AnnualAlloc   generic.Days
	OffAlloc      generic.Days
	Days          generic.Days
	TotalWeekdays generic.Days
	RequestedDays generic.Days

	HalfDayStart bool
	HalfDayEnd   bool
	UseOffDays   bool
	Reason       string
}

// Messages per failing field, in the order the checks run.
var inputFieldMessages = map[string]string{
	"UserID":          "userId, userName and section are required",
	"UserName":        "userId, userName and section are required",
	"Section":         "userId, userName and section are required",
	"Type":            "type must be 'annual' or 'offDay'",
	"LocalOrOverseas": "localOrOverseas must be 'local' or 'overseas'",
}

// Builder turns a RequestInput into a pending request.
type Builder struct {
	validate *validator.Validate
}

func NewBuilder() *Builder {
	return &Builder{validate: validator.New()}
}

// Build validates in and resolves the day count and resume date against
// holidays. The id is left for the caller to resolve when in.ID is empty.
func (b *Builder) Build(in RequestInput, holidays generic.HolidaySet, now time.Time) (*LeaveRequest, error) {
	in.UserID = strings.TrimSpace(in.UserID)
	in.UserName = strings.TrimSpace(in.UserName)
	in.Section = strings.TrimSpace(in.Section)

	if err := b.check(in); err != nil {
		return nil, err
	}

	start := generic.NormalizeToISO(in.StartDate)
	end := generic.NormalizeToISO(in.EndDate)
	if err := checkDates(in, start, end); err != nil {
		return nil, err
	}

	req := &LeaveRequest{
		ID:              strings.TrimSpace(in.ID),
		UserID:          in.UserID,
		UserName:        in.UserName,
		Section:         in.Section,
		Type:            in.Type,
		LocalOrOverseas: in.LocalOrOverseas,
		StartDate:       start,
		EndDate:         end,
		RequestedDays:   in.RequestedDays,
		HalfDayStart:    in.HalfDayStart,
		HalfDayEnd:      in.HalfDayEnd,
		UseOffDays:      in.UseOffDays,
		Reason:          in.Reason,
		Status:          StatusPending,
		CreatedAt:       now,
	}

	days, alloc := resolveDays(in, start, end, holidays)
	if !days.IsPositive() {
		return nil, generic.Validation("days must be a positive number (allocations, days, totalWeekdays, requestedDays or a valid date range)")
	}
	req.Days = days
	req.Allocations = alloc

	// An unreadable resumeOn is recomputed like a missing one.
	req.ResumeOn = generic.NormalizeToISO(in.ResumeOn)
	if req.ResumeOn == "" && end != "" {
		req.ResumeOn = generic.NextWorkdayAfter(end, holidays)
	}
	return req, nil
}

// checkDates rejects a start or end date that was supplied but cannot be read.
func checkDates(in RequestInput, start, end string) error {
	var details []string
	if strings.TrimSpace(in.StartDate) != "" && start == "" {
		details = append(details, "startDate "+strconv.Quote(in.StartDate)+" is not a valid date")
	}
	if strings.TrimSpace(in.EndDate) != "" && end == "" {
		details = append(details, "endDate "+strconv.Quote(in.EndDate)+" is not a valid date")
	}
	if len(details) > 0 {
		return generic.Validation("invalid dates", details...)
	}
	return nil
}

func (b *Builder) check(in RequestInput) error {
	err := b.validate.Struct(in)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		if msg, ok := inputFieldMessages[fieldErrs[0].StructField()]; ok {
			return generic.Validation(msg)
		}
		return generic.Validation(fieldErrs[0].Error())
	}
	return generic.Validation(err.Error())
}

// resolveDays applies the day-count priority: an explicit split, then the
// first non-zero of days, totalWeekdays and requestedDays, then the weekday
// count of the range less any half-day boundaries.
func resolveDays(in RequestInput, start, end string, holidays generic.HolidaySet) (generic.Days, Allocations) {
	alloc := Allocations{Annual: in.AnnualAlloc, Off: in.OffAlloc}
	if alloc.IsSplit() {
		return alloc.Total(), alloc
	}
	for _, d := range []generic.Days{in.Days, in.TotalWeekdays, in.RequestedDays} {
		if !d.IsZero() {
			return d, Allocations{}
		}
	}

	days := generic.NewDays(generic.WeekdayCountInclusive(start, end, holidays))
	if !days.IsPositive() {
		return days, Allocations{}
	}
	half := generic.RoundHalfDay(0.5)
	if in.HalfDayStart && generic.IsWorkday(start, holidays) {
		days = days.Sub(half)
	}
	if in.HalfDayEnd && end != start && generic.IsWorkday(end, holidays) {
		days = days.Sub(half)
	}
	return days, Allocations{}
}

// nextRequestID derives an id from the creation time, suffixed until it does
// not collide with taken.
func nextRequestID(now time.Time, taken func(string) bool) string {
	base := strconv.FormatInt(now.UnixMilli(), 10)
	id := base
	for n := 1; taken(id); n++ {
		id = base + "-" + strconv.Itoa(n)
	}
	return id
}
