package schedule

import (
	"testing"
	"time"

	"github.com/openmfi/loancore/pkg/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var disbursed = time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)

func TestGenerate_FlatMonthly(t *testing.T) {
	items, err := Generate(decimal.NewFromInt(120000), decimal.NewFromInt(12), 12, models.FrequencyMonthly, models.InterestFlat, disbursed)
	require.NoError(t, err)
	require.Len(t, items, 12)

	for i, item := range items {
		assert.Equal(t, i+1, item.Sequence)
		assert.True(t, item.PrincipalDue.Equal(decimal.NewFromInt(10000)), "installment %d principal %s", i+1, item.PrincipalDue)
		assert.True(t, item.InterestDue.Equal(decimal.NewFromInt(1200)), "installment %d interest %s", i+1, item.InterestDue)
		assert.False(t, item.Paid)
	}

	// Due dates advance one calendar month per installment.
	assert.Equal(t, disbursed.AddDate(0, 1, 0), items[0].DueDate)
	assert.Equal(t, disbursed.AddDate(0, 12, 0), items[11].DueDate)
}

func TestGenerate_DecliningMonthly(t *testing.T) {
	items, err := Generate(decimal.NewFromInt(12000), decimal.NewFromInt(12), 2, models.FrequencyMonthly, models.InterestDeclining, disbursed)
	require.NoError(t, err)
	require.Len(t, items, 2)

	// Period 1: 12000 x 1% = 120. Period 2: 6000 x 1% = 60.
	assert.True(t, items[0].InterestDue.Equal(decimal.NewFromInt(120)), "got %s", items[0].InterestDue)
	assert.True(t, items[1].InterestDue.Equal(decimal.NewFromInt(60)), "got %s", items[1].InterestDue)
	assert.True(t, items[0].PrincipalDue.Equal(decimal.NewFromInt(6000)))
	assert.True(t, items[1].PrincipalDue.Equal(decimal.NewFromInt(6000)))
}

func TestGenerate_PrincipalSumsExactly(t *testing.T) {
	// 1000 across 3 installments does not divide evenly; the final
	// installment absorbs the remainder.
	principal := decimal.NewFromInt(1000)
	items, err := Generate(principal, decimal.NewFromInt(10), 3, models.FrequencyMonthly, models.InterestFlat, disbursed)
	require.NoError(t, err)
	require.Len(t, items, 3)

	sum := decimal.Zero
	for _, item := range items {
		sum = sum.Add(item.PrincipalDue)
	}
	assert.True(t, sum.Equal(principal), "principal column sums to %s", sum)
	assert.True(t, items[0].PrincipalDue.Equal(decimal.RequireFromString("333.33")))
	assert.True(t, items[2].PrincipalDue.Equal(decimal.RequireFromString("333.34")))
}

func TestGenerate_FrequencyCountsAndDates(t *testing.T) {
	tests := []struct {
		frequency models.RepaymentFrequency
		months    int
		count     int
		firstDue  time.Time
	}{
		{models.FrequencyDaily, 1, 30, disbursed.AddDate(0, 0, 1)},
		{models.FrequencyWeekly, 2, 8, disbursed.AddDate(0, 0, 7)},
		{models.FrequencyBiweekly, 3, 6, disbursed.AddDate(0, 0, 14)},
		{models.FrequencyMonthly, 6, 6, disbursed.AddDate(0, 1, 0)},
	}
	for _, tt := range tests {
		t.Run(string(tt.frequency), func(t *testing.T) {
			items, err := Generate(decimal.NewFromInt(9000), decimal.NewFromInt(18), tt.months, tt.frequency, models.InterestFlat, disbursed)
			require.NoError(t, err)
			assert.Len(t, items, tt.count)
			assert.Equal(t, tt.firstDue, items[0].DueDate)
		})
	}
}

func TestGenerate_DecliningInterestDecreases(t *testing.T) {
	items, err := Generate(decimal.NewFromInt(50000), decimal.NewFromInt(24), 10, models.FrequencyMonthly, models.InterestDeclining, disbursed)
	require.NoError(t, err)

	for i := 1; i < len(items); i++ {
		assert.True(t, items[i].InterestDue.LessThan(items[i-1].InterestDue),
			"interest should decline: installment %d charges %s after %s", i+1, items[i].InterestDue, items[i-1].InterestDue)
	}
}

func TestGenerate_RejectsUnsupportedFrequency(t *testing.T) {
	_, err := Generate(decimal.NewFromInt(1000), decimal.NewFromInt(10), 6, models.RepaymentFrequency("quarterly"), models.InterestFlat, disbursed)
	require.ErrorIs(t, err, models.ErrUnsupportedFrequency)
}

func TestGenerate_RejectsUnsupportedInterestMethod(t *testing.T) {
	_, err := Generate(decimal.NewFromInt(1000), decimal.NewFromInt(10), 6, models.FrequencyMonthly, models.InterestMethod("compound"), disbursed)
	require.ErrorIs(t, err, models.ErrUnsupportedInterestMethod)
}

func TestGenerate_RejectsInvalidTerms(t *testing.T) {
	tests := []struct {
		name      string
		principal decimal.Decimal
		rate      decimal.Decimal
		months    int
	}{
		{"zero principal", decimal.Zero, decimal.NewFromInt(10), 6},
		{"negative principal", decimal.NewFromInt(-100), decimal.NewFromInt(10), 6},
		{"negative rate", decimal.NewFromInt(1000), decimal.NewFromInt(-1), 6},
		{"zero term", decimal.NewFromInt(1000), decimal.NewFromInt(10), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Generate(tt.principal, tt.rate, tt.months, models.FrequencyMonthly, models.InterestFlat, disbursed)
			require.ErrorIs(t, err, models.ErrInvalidAmount)
		})
	}
}

func TestGenerate_DenseDailyScheduleStaysNonNegative(t *testing.T) {
	// 1000 at 10% over 12 months daily yields 360 installments whose even
	// shares do not divide cleanly; no column may ever go negative.
	principal := decimal.NewFromInt(1000)
	items, err := Generate(principal, decimal.NewFromInt(10), 12, models.FrequencyDaily, models.InterestFlat, disbursed)
	require.NoError(t, err)
	require.Len(t, items, 360)

	principalSum, interestSum := decimal.Zero, decimal.Zero
	for _, item := range items {
		require.False(t, item.InterestDue.IsNegative(), "installment %d has negative interest %s", item.Sequence, item.InterestDue)
		require.False(t, item.PrincipalDue.IsNegative(), "installment %d has negative principal %s", item.Sequence, item.PrincipalDue)
		principalSum = principalSum.Add(item.PrincipalDue)
		interestSum = interestSum.Add(item.InterestDue)
	}
	assert.True(t, principalSum.Equal(principal), "principal column sums to %s", principalSum)
	// Flat: 1000 x 10% x 1yr = 100 total interest.
	assert.True(t, interestSum.Equal(decimal.NewFromInt(100)), "interest column sums to %s", interestSum)
}

func TestGenerate_SmallPrincipalDenseSchedule(t *testing.T) {
	// 100 across 360 daily installments: valid input, remainder lands on
	// the final installment.
	principal := decimal.NewFromInt(100)
	items, err := Generate(principal, decimal.NewFromInt(12), 12, models.FrequencyDaily, models.InterestFlat, disbursed)
	require.NoError(t, err)
	require.Len(t, items, 360)

	sum := decimal.Zero
	for _, item := range items {
		require.False(t, item.PrincipalDue.IsNegative())
		sum = sum.Add(item.PrincipalDue)
	}
	assert.True(t, sum.Equal(principal), "principal column sums to %s", sum)
	assert.True(t, items[359].PrincipalDue.GreaterThanOrEqual(items[0].PrincipalDue),
		"final installment absorbs the remainder, got %s vs %s", items[359].PrincipalDue, items[0].PrincipalDue)
}

func TestGenerate_ZeroRateHasNoInterest(t *testing.T) {
	items, err := Generate(decimal.NewFromInt(600), decimal.Zero, 2, models.FrequencyMonthly, models.InterestDeclining, disbursed)
	require.NoError(t, err)
	for _, item := range items {
		assert.True(t, item.InterestDue.IsZero())
	}
}
