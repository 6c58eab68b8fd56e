package timeoff

import "github.com/warp/leave-ledger/generic"

// =============================================================================
// BALANCE STORE - Reads and writes the balance fields of a user record
// =============================================================================

// Field names on user records. The legacy names mirror the canonical ones and
// are always written together.
const (
	fieldAnnualLeave   = "annualLeave"
	fieldLeaveBalance  = "leaveBalance"
	fieldOffDays       = "offDays"
	fieldOffDayBalance = "offDayBalance"
)

const (
	DefaultAnnualLeave = 21
	MaxAnnualLeave     = 42
)

// Balances are the two buckets of one user.
type Balances struct {
	AnnualLeave generic.Days `json:"annualLeave"`
	OffDays     generic.Days `json:"offDays"`
}

// BalanceStore applies the defaulting and clamping rules for user balances.
// It never persists anything; callers write the mutated user back.
type BalanceStore struct {
	DefaultAnnual generic.Days
	MaxAnnual     generic.Days
}

// NewBalanceStore returns the store with the standard 21-day default and
// 42-day ceiling.
func NewBalanceStore() BalanceStore {
	return BalanceStore{
		DefaultAnnual: generic.NewDays(DefaultAnnualLeave),
		MaxAnnual:     generic.NewDays(MaxAnnualLeave),
	}
}

// GetBalances reads a user's balances, falling back to the legacy field names
// and then to the defaults. Values are truncated down to the half-day step,
// not to whole days, so a stored 20.5 reads back as 20.5.
func (b BalanceStore) GetBalances(u *User) Balances {
	annual := b.DefaultAnnual
	if v, ok := u.number(fieldAnnualLeave); ok {
		annual = generic.TruncHalfDay(v)
	} else if v, ok := u.number(fieldLeaveBalance); ok {
		annual = generic.TruncHalfDay(v)
	}

	var off generic.Days
	if v, ok := u.number(fieldOffDays); ok {
		off = generic.TruncHalfDay(v)
	} else if v, ok := u.number(fieldOffDayBalance); ok {
		off = generic.TruncHalfDay(v)
	}

	return Balances{AnnualLeave: annual, OffDays: off}
}

// SetBalances clamps annual leave to [0, MaxAnnual] and off days to [0, inf),
// writes canonical and legacy fields, and returns u.
func (b BalanceStore) SetBalances(u *User, bal Balances) *User {
	annual := bal.AnnualLeave.Clamp(generic.Days{}, b.MaxAnnual)
	off := bal.OffDays.Max(generic.Days{})

	u.setRaw(fieldAnnualLeave, annual)
	u.setRaw(fieldLeaveBalance, annual)
	u.setRaw(fieldOffDays, off)
	u.setRaw(fieldOffDayBalance, off)
	return u
}

// BalanceView is the public rendering of a user's balances.
type BalanceView struct {
	UserID        string       `json:"userId"`
	UserName      string       `json:"userName,omitempty"`
	AnnualLeave   generic.Days `json:"annualLeave"`
	OffDays       generic.Days `json:"offDays"`
	LeaveBalance  generic.Days `json:"leaveBalance"`
	OffDayBalance generic.Days `json:"offDayBalance"`
}

func (b BalanceStore) View(u *User) BalanceView {
	bal := b.GetBalances(u)
	return BalanceView{
		UserID:        u.ID(),
		UserName:      u.Name(),
		AnnualLeave:   bal.AnnualLeave,
		OffDays:       bal.OffDays,
		LeaveBalance:  bal.AnnualLeave,
		OffDayBalance: bal.OffDays,
	}
}
