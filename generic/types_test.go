package generic_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/leave-ledger/generic"
)

// =============================================================================
// HALF-DAY ROUNDING
// =============================================================================

func TestRoundHalfDay(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0"},
		{1, "1"},
		{2.2, "2"},
		{2.25, "2.5"},
		{2.5, "2.5"},
		{2.74, "2.5"},
		{2.75, "3"},
		{-0.25, "0"},
		{-1.3, "-1.5"},
		{math.NaN(), "0"},
		{math.Inf(1), "0"},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.in), func(t *testing.T) {
			assert.Equal(t, tt.want, generic.RoundHalfDay(tt.in).String())
		})
	}
}

func TestTruncHalfDay(t *testing.T) {
	assert.Equal(t, "21", generic.TruncHalfDay(21).String())
	assert.Equal(t, "20.5", generic.TruncHalfDay(20.7).String())
	assert.Equal(t, "20", generic.TruncHalfDay(20.49).String())
	assert.Equal(t, "0", generic.TruncHalfDay(math.NaN()).String())
}

func TestDays_Arithmetic(t *testing.T) {
	ten := generic.NewDays(10)
	three := generic.NewDays(3)
	one := generic.NewDays(1)

	assert.True(t, ten.Add(three).Sub(one).Equal(generic.NewDays(12)))
	assert.True(t, one.Sub(three).IsNegative())
	assert.True(t, three.Neg().Add(three).IsZero())
	assert.True(t, generic.NewDays(50).Clamp(generic.Days{}, generic.NewDays(42)).Equal(generic.NewDays(42)))
	assert.True(t, generic.NewDays(-2).Clamp(generic.Days{}, generic.NewDays(42)).IsZero())
	assert.Equal(t, 2.5, generic.RoundHalfDay(2.5).Float64())
}

func TestDays_JSON(t *testing.T) {
	body, err := json.Marshal(struct {
		D generic.Days `json:"d"`
	}{generic.RoundHalfDay(1.5)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"d": 1.5}`, string(body))

	var got struct {
		A generic.Days `json:"a"`
		B generic.Days `json:"b"`
		C generic.Days `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a": 2.3, "b": "4", "c": null}`), &got))
	assert.Equal(t, "2.5", got.A.String())
	assert.Equal(t, "4", got.B.String())
	assert.True(t, got.C.IsZero())

	assert.Error(t, json.Unmarshal([]byte(`{"a": "four"}`), &got))
}

// =============================================================================
// ERRORS
// =============================================================================

func TestErrors_Classification(t *testing.T) {
	v := generic.Validation("refund exceeds original deduction", "refundAnnual (3) exceeds appliedAnnual (2)")
	assert.True(t, generic.IsClientError(v))
	assert.Equal(t, "refund exceeds original deduction", generic.Message(v))
	assert.Equal(t, []string{"refundAnnual (3) exceeds appliedAnnual (2)"}, generic.Details(v))

	nf := fmt.Errorf("decide: %w", generic.NotFound("leave request %s not found", "r-1"))
	assert.True(t, generic.IsNotFound(nf))
	assert.Equal(t, "leave request r-1 not found", generic.Message(nf))

	assert.True(t, generic.IsConflict(generic.Conflict("already cancelled")))

	cause := errors.New("disk full")
	p := generic.Persistence("write users", cause)
	assert.ErrorIs(t, p, generic.ErrPersistence)
	assert.ErrorIs(t, p, cause)
	assert.False(t, generic.IsClientError(p))
	assert.Nil(t, generic.Details(p))

	assert.True(t, generic.IsRetryable(generic.ErrConcurrentModification))
}
