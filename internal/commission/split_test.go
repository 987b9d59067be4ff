package commission

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		name           string
		amount         int64
		rateBps        int64
		wantPlatform   int64
		wantInstructor int64
	}{
		{"twenty percent even", 10000, 2000, 2000, 8000},
		{"rounds platform down", 9999, 2000, 1999, 8000},
		{"one cent", 1, 2000, 0, 1},
		{"zero amount", 0, 2000, 0, 0},
		{"zero rate", 14900, 0, 0, 14900},
		{"full rate", 14900, 10000, 14900, 0},
		{"odd rate", 14900, 1250, 1862, 13038},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			platform, instructor := Split(tt.amount, tt.rateBps)
			assert.Equal(t, tt.wantPlatform, platform)
			assert.Equal(t, tt.wantInstructor, instructor)
		})
	}
}

func TestSplitAlwaysSumsBack(t *testing.T) {
	for amount := int64(0); amount < 500; amount++ {
		for _, rate := range []int64{0, 1, 333, 1250, 2000, 9999, 10000} {
			platform, instructor := Split(amount, rate)
			assert.Equal(t, amount, platform+instructor)
			assert.GreaterOrEqual(t, platform, int64(0))
			assert.GreaterOrEqual(t, instructor, int64(0))
		}
	}
}

func TestAllocateDiscount(t *testing.T) {
	tests := []struct {
		name     string
		prices   []int64
		discount int64
		want     []int64
	}{
		{"no discount", []int64{10000, 5000}, 0, []int64{10000, 5000}},
		{"single item takes it all", []int64{10000}, 2000, []int64{8000}},
		{"even spread", []int64{10000, 10000}, 2000, []int64{9000, 9000}},
		{"pro-rata by price", []int64{10000, 5000}, 3000, []int64{8000, 4000}},
		{"rounding remainder rolls forward", []int64{10000, 5000}, 1000, []int64{9334, 4666}},
		{"discount covering the subtotal", []int64{10000, 5000}, 15000, []int64{0, 0}},
		{"discount beyond the subtotal clamps", []int64{10000, 5000}, 20000, []int64{0, 0}},
		{"free item collects nothing", []int64{10000, 0}, 1000, []int64{9000, 0}},
		{"negative discount ignored", []int64{10000}, -500, []int64{10000}},
		{"empty order", nil, 1000, []int64{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AllocateDiscount(tt.prices, tt.discount))
		})
	}
}

func TestAllocateDiscountAlwaysSumsToCollected(t *testing.T) {
	prices := []int64{101, 333, 9999, 1, 14900}
	var subtotal int64
	for _, p := range prices {
		subtotal += p
	}
	for discount := int64(0); discount <= subtotal; discount += 97 {
		net := AllocateDiscount(prices, discount)
		var sum int64
		for i, n := range net {
			assert.GreaterOrEqual(t, n, int64(0))
			assert.LessOrEqual(t, n, prices[i])
			sum += n
		}
		assert.Equal(t, subtotal-discount, sum, discount)
	}
}
