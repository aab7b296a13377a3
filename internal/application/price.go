package application

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Cents is a fixed-point money amount with two decimal places.
type Cents int64

// MaxPricePerHour mirrors a DECIMAL(6,2) column: 9999.99.
const MaxPricePerHour Cents = 999999

var errInvalidPrice = errors.New("price must be a decimal with at most two fractional digits")

// ParseCents parses values such as "12", "12.5" or "12.50".
func ParseCents(value string) (Cents, error) {
	value = strings.TrimSpace(value)
	if value == "" || strings.HasPrefix(value, "+") {
		return 0, errInvalidPrice
	}

	negative := strings.HasPrefix(value, "-")
	value = strings.TrimPrefix(value, "-")

	whole, frac, hasFrac := strings.Cut(value, ".")
	if whole == "" || (hasFrac && (frac == "" || len(frac) > 2)) {
		return 0, errInvalidPrice
	}
	for len(frac) < 2 {
		frac += "0"
	}

	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, errInvalidPrice
	}
	cents, err := strconv.ParseInt(frac, 10, 64)
	if err != nil || strings.ContainsAny(frac, "+-") {
		return 0, errInvalidPrice
	}
	if units > (1<<62)/100 {
		return 0, errInvalidPrice
	}

	total := Cents(units*100 + cents)
	if negative {
		total = -total
	}
	return total, nil
}

// String renders the amount with exactly two decimals.
func (c Cents) String() string {
	sign := ""
	value := int64(c)
	if value < 0 {
		sign = "-"
		value = -value
	}
	return fmt.Sprintf("%s%d.%02d", sign, value/100, value%100)
}

func validatePrice(price Cents) string {
	if price < 0 {
		return "price must not be negative"
	}
	if price > MaxPricePerHour {
		return "price must not exceed 9999.99"
	}
	return ""
}
