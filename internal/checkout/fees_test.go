package checkout

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFeeCharge(t *testing.T) {
	require.Equal(t, int64(2000), Fee{Type: FeeFlat, Amount: pct("2000")}.Charge(50000))
	require.Equal(t, int64(5000), Fee{Type: FeePercentage, Amount: pct("10")}.Charge(50000))
	// 12345 * 10% = 1234.5 rounds up.
	require.Equal(t, int64(1235), Fee{Type: FeePercentage, Amount: pct("10")}.Charge(12345))
	// 999 * 2.5% = 24.975
	require.Equal(t, int64(25), Fee{Type: FeePercentage, Amount: pct("2.5")}.Charge(999))
	require.Zero(t, Fee{Type: FeeType("bogus"), Amount: pct("10")}.Charge(1000))
}

func TestApplyFees_NoCompounding(t *testing.T) {
	fees := []Fee{
		{Name: "Service", Type: FeePercentage, Amount: pct("10")},
		{Name: "Tax", Type: FeePercentage, Amount: pct("11")},
		{Name: "Bag", Type: FeeFlat, Amount: pct("500")},
	}
	applied, total := ApplyFees(100000, fees)
	require.Len(t, applied, 3)
	require.Equal(t, int64(10000), applied[0].Charge)
	require.Equal(t, int64(11000), applied[1].Charge)
	require.Equal(t, int64(121500), total)

	applied, total = ApplyFees(100000, nil)
	require.Empty(t, applied)
	require.Equal(t, int64(100000), total)
}
