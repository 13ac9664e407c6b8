package models

import (
	"crypto/rand"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ComputeTotals returns copies of items with Subtotal = Price * Quantity and the order total
// as the sum of subtotals. Amounts are rounded to 2 decimal places.
func ComputeTotals(items []OrderItem) ([]OrderItem, float64) {
	out := make([]OrderItem, len(items))
	total := decimal.Zero
	for i, item := range items {
		subtotal := decimal.NewFromFloat(item.Price).
			Mul(decimal.NewFromInt(int64(item.Quantity))).
			Round(2)
		item.Subtotal = subtotal.InexactFloat64()
		out[i] = item
		total = total.Add(subtotal)
	}
	return out, total.Round(2).InexactFloat64()
}

var orderSuffixMax = new(big.Int).Exp(big.NewInt(36), big.NewInt(8), nil)

// NewOrderNumber returns "ORD-<base36 unix millis>-<base36 random>" in upper case.
// Uniqueness is statistical; the unique index on the column is the final guard.
func NewOrderNumber(now time.Time) string {
	n, err := rand.Int(rand.Reader, orderSuffixMax)
	if err != nil {
		n = big.NewInt(now.UnixNano())
	}
	ts := strconv.FormatInt(now.UnixMilli(), 36)
	return "ORD-" + strings.ToUpper(ts) + "-" + strings.ToUpper(n.Text(36))
}
