package commission

// Split divides an item price between the platform and the instructor.
// rateBps is the platform take in basis points (2000 = 20%). The platform
// fee rounds down, the instructor keeps the remainder, so the parts always
// sum back to amount exactly.
func Split(amount int64, rateBps int64) (platform int64, instructor int64) {
	platform = amount * rateBps / 10000
	instructor = amount - platform
	return platform, instructor
}

// AllocateDiscount spreads an order-level discount across item prices
// pro-rata and returns what each item actually collected. Shares round
// down and the rounding remainder rolls forward onto later items, so
// every share stays within its item's price and the results always sum
// to the total the buyer paid.
func AllocateDiscount(prices []int64, discount int64) []int64 {
	net := make([]int64, len(prices))
	copy(net, prices)

	var subtotal int64
	for _, p := range prices {
		subtotal += p
	}
	if discount <= 0 || subtotal <= 0 {
		return net
	}
	if discount > subtotal {
		discount = subtotal
	}

	remaining, left := discount, subtotal
	for i, p := range prices {
		if left <= 0 || p <= 0 {
			continue
		}
		share := remaining * p / left
		remaining -= share
		left -= p
		net[i] = p - share
	}
	return net
}
