// Package display formats prices, dates and payment codes the way the
// storefront shows them to customers.
package display

import (
	"math"
	"regexp"
	"strconv"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.MustParse("en-IN"))

// FormatPrice renders an amount in rupees with two decimals and Indian
// digit grouping.
func FormatPrice(amount float64) string {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		amount = 0
	}
	return printer.Sprintf("₹%.2f", amount)
}

// FormatPriceCompact drops the paise for whole amounts.
func FormatPriceCompact(amount float64) string {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		amount = 0
	}
	if amount == math.Trunc(amount) {
		return printer.Sprintf("₹%d", int64(amount))
	}
	return FormatPrice(amount)
}

var nonNumeric = regexp.MustCompile(`[^0-9.-]+`)

// ParsePrice reads back a formatted price. Anything unparseable is zero.
func ParsePrice(s string) float64 {
	v, err := strconv.ParseFloat(nonNumeric.ReplaceAllString(s, ""), 64)
	if err != nil {
		return 0
	}
	return v
}
