package auction

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestMinimumIncrement(t *testing.T) {
	cases := []struct {
		price string
		want  string
	}{
		{"-1", "0.01"},
		{"0", "0.01"},
		{"0.01", "0.05"},
		{"0.99", "0.05"},
		{"1.00", "0.10"},
		{"2.49", "0.10"},
		{"2.50", "0.25"},
		{"4.99", "0.25"},
		{"5.00", "0.50"},
		{"9.99", "0.50"},
		{"10.00", "1.00"},
		{"24.99", "1.00"},
		{"25.00", "2.50"},
		{"49.99", "2.50"},
		{"50.00", "5.00"},
		{"99.99", "5.00"},
		{"100.00", "7.50"},
		{"249.99", "7.50"},
		{"250.00", "10.00"},
		{"499.99", "10.00"},
		{"500.00", "25.00"},
		{"999.99", "25.00"},
		{"1000.00", "50.00"},
		{"2499.99", "50.00"},
		{"2500.00", "75.00"},
		{"4999.99", "75.00"},
		{"5000.00", "100.00"},
		{"9999.99", "100.00"},
		{"10000.00", "250.00"},
		{"24999.99", "250.00"},
		{"25000.00", "500.00"},
		{"1000000", "500.00"},
		// sub-cent prices land in the tier a <= comparison picks
		{"0.995", "0.10"},
	}

	for _, c := range cases {
		t.Run(c.price, func(t *testing.T) {
			got := MinimumIncrement(d(c.price))
			assert.True(t, got.Equal(d(c.want)), "price %s: want %s, got %s", c.price, c.want, got)
		})
	}
}

func TestMinimumBid(t *testing.T) {
	assert.Equal(t, "102.50", FormatCents(MinimumBid(d("100"))))
	assert.Equal(t, "1.04", FormatCents(MinimumBid(d("0.99"))))
	assert.Equal(t, "0.01", FormatCents(MinimumBid(d("0"))))

	reserve := d("200")
	assert.Equal(t, "200.00", FormatReserve(&reserve))
	assert.Equal(t, "", FormatReserve(nil))
}

func TestValidPrice(t *testing.T) {
	assert.True(t, ValidPrice(d("0.01")))
	assert.True(t, ValidPrice(d("9999999999.99")))
	assert.False(t, ValidPrice(d("10000000000")))
	assert.False(t, ValidPrice(d("0")))
	assert.False(t, ValidPrice(d("1.001")))
}

func TestHasSubCentPrecision(t *testing.T) {
	assert.False(t, HasSubCentPrecision(d("10")))
	assert.False(t, HasSubCentPrecision(d("10.5")))
	assert.False(t, HasSubCentPrecision(d("10.50")))
	assert.True(t, HasSubCentPrecision(d("10.505")))
}
