package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculate(t *testing.T) {
	tests := []struct {
		name         string
		lines        []Line
		taxRateBps   int64
		deliveryCost int64
		want         Prices
	}{
		{
			// 2x shoe at 100.00 with offer 80.00, 1x shoe at 50.00,
			// 21% tax, 5.00 delivery.
			name: "offer and regular mix",
			lines: []Line{
				{UnitPrice: 8000, RegularPrice: 10000, Quantity: 2},
				{UnitPrice: 5000, RegularPrice: 5000, Quantity: 1},
			},
			taxRateBps:   2100,
			deliveryCost: 500,
			want: Prices{
				Subtotal:     21000,
				Discount:     4000,
				Tax:          4515,
				DeliveryCost: 500,
				Total:        26015,
			},
		},
		{
			name:         "single unit no offer",
			lines:        []Line{{UnitPrice: 9999, RegularPrice: 9999, Quantity: 1}},
			taxRateBps:   2100,
			deliveryCost: 500,
			want: Prices{
				Subtotal:     9999,
				Discount:     0,
				Tax:          2205, // 10499 * 0.21 = 2204.79, rounds up
				DeliveryCost: 500,
				Total:        12704,
			},
		},
		{
			name:         "zero tax rate",
			lines:        []Line{{UnitPrice: 1000, RegularPrice: 1000, Quantity: 3}},
			taxRateBps:   0,
			deliveryCost: 500,
			want: Prices{
				Subtotal:     3000,
				DeliveryCost: 500,
				Total:        3500,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Calculate(tt.lines, tt.taxRateBps, tt.deliveryCost)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCalculate_DiscountNeverNegative(t *testing.T) {
	// A regular price below the unit price must not produce a negative
	// discount.
	got := Calculate([]Line{{UnitPrice: 2000, RegularPrice: 1000, Quantity: 1}}, 2100, 0)
	assert.Equal(t, int64(0), got.Discount)
	assert.Equal(t, int64(2000), got.Subtotal)
}
