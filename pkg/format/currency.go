// Package format renders amounts, dates and durations for quotation previews,
// share messages and PDF exports.
package format

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

type Currency string

const (
	INR Currency = "INR"
	AED Currency = "AED"
	USD Currency = "USD"

	DefaultCurrency = INR
)

var symbols = map[Currency]string{
	INR: "₹",
	AED: "AED",
	USD: "$",
}

// Amounts are grouped the way Indian agents read them (1,23,456.00).
var printer = message.NewPrinter(language.MustParse("en-IN"))

// Symbol returns the display symbol for a currency code, falling back to ₹.
func Symbol(code Currency) string {
	if s, ok := symbols[Currency(strings.ToUpper(string(code)))]; ok {
		return s
	}
	return symbols[DefaultCurrency]
}

// FormatCurrency renders "<symbol> <grouped amount>" with exactly two decimals.
// NaN, infinities and zero render as "<symbol> 0.00".
func FormatCurrency(amount float64, code Currency) string {
	symbol := Symbol(code)
	if !finite(amount) || amount == 0 {
		return symbol + " 0.00"
	}
	rounded := decimal.NewFromFloat(amount).Round(2).InexactFloat64()
	return fmt.Sprintf("%s %s", symbol, printer.Sprint(number.Decimal(rounded, number.Scale(2))))
}

// FormatNumber groups a number without forcing decimals. Invalid input renders "0".
func FormatNumber(v float64) string {
	if !finite(v) || v == 0 {
		return "0"
	}
	return printer.Sprint(number.Decimal(v, number.MaxFractionDigits(3)))
}

// Round2 rounds half away from zero to two decimals.
func Round2(v float64) float64 {
	if !finite(v) {
		return 0
	}
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
