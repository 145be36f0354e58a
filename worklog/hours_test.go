package worklog_test

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/worklog-engine/worklog"
)

// =============================================================================
// QUANTIZATION TESTS
// =============================================================================

func TestHours_QuarterSteps_Accepted(t *testing.T) {
	// GIVEN: Amounts on the 0.25 grid within the 24-hour day
	// WHEN: Constructing Hours
	// THEN: All are accepted and render exactly

	for _, v := range []float64{0.25, 0.5, 1, 7.75, 8, 23.75, 24} {
		h, err := worklog.NewHours(v)
		require.NoErrorf(t, err, "%v should be valid", v)
		assert.InDelta(t, v, h.Float64(), 0, "quarter steps are exact in binary")
	}
}

func TestHours_OffGridOrOutOfRange_Rejected(t *testing.T) {
	// GIVEN: Amounts that are zero, negative, over the cap, or off-grid
	// WHEN: Constructing Hours
	// THEN: Construction fails with ErrInvalidHours

	for _, v := range []float64{0, -1, -0.25, 24.25, 30, 8.1, 0.33, 7.749} {
		_, err := worklog.NewHours(v)
		assert.Errorf(t, err, "%v should be rejected", v)
		assert.ErrorIs(t, err, worklog.ErrInvalidHours)
	}
}

func TestHours_InvalidDetail_NamesTheRule(t *testing.T) {
	// GIVEN: An off-grid amount
	// WHEN: Construction fails
	// THEN: The structured error carries the offending value

	_, err := worklog.NewHours(8.1)
	var invalid *worklog.InvalidHoursError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "8.1", invalid.Value)
}

// =============================================================================
// TOTALS
// =============================================================================

func TestHours_DailyTotals_ExactAtTheCap(t *testing.T) {
	// GIVEN: Three 8-hour entries
	// WHEN: Summed
	// THEN: Exactly 24, not over; one more quarter tips it

	total := worklog.SumHours(worklog.MustHours(8), worklog.MustHours(8), worklog.MustHours(8))
	assert.False(t, total.ExceedsDailyCap(), "24.00 is allowed")
	assert.True(t, total.Equal(worklog.MustHours(24)))

	assert.True(t, total.Add(worklog.MustHours(0.25)).ExceedsDailyCap(), "24.25 is over")
}

func TestHours_QuarterAccumulation_NoDrift(t *testing.T) {
	// GIVEN: 96 quarter hours
	// WHEN: Accumulated one by one
	// THEN: The total is exactly 24.00 (float accumulation would drift)

	total := worklog.ZeroHours()
	for i := 0; i < 96; i++ {
		total = total.Add(worklog.MustHours(0.25))
	}
	assert.True(t, total.Equal(worklog.MustHours(24)))
	assert.False(t, total.ExceedsDailyCap())
}

func TestHours_FromDecimal_SharesValidation(t *testing.T) {
	h, err := worklog.HoursFromDecimal(decimal.RequireFromString("7.75"))
	require.NoError(t, err)
	assert.Equal(t, "7.75", h.String())

	_, err = worklog.HoursFromDecimal(decimal.RequireFromString("7.76"))
	assert.ErrorIs(t, err, worklog.ErrInvalidHours)
}

func TestHours_JSONRoundTrip_Exact(t *testing.T) {
	// GIVEN: A valid amount inside a payload struct
	// WHEN: Marshaled and unmarshaled
	// THEN: The decimal survives exactly

	type payload struct {
		Hours worklog.Hours `json:"hours"`
	}
	raw, err := json.Marshal(payload{Hours: worklog.MustHours(7.75)})
	require.NoError(t, err)

	var back payload
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.True(t, back.Hours.Equal(worklog.MustHours(7.75)))
}
