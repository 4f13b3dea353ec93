package common

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	// Default separator widths
	DefaultWidth = 80
	WideWidth    = 100
)

// PrintSeparator prints a separator line with the specified character and width
func PrintSeparator(char string, width int) {
	fmt.Println(strings.Repeat(char, width))
}

// PrintSeparatorNewline prints a separator with a newline before it
func PrintSeparatorNewline(char string, width int) {
	fmt.Println("\n" + strings.Repeat(char, width))
}

// PrintHeader prints a formatted header with title and separators
func PrintHeader(title string, width int) {
	PrintSeparatorNewline("=", width)
	fmt.Println(title)
	PrintSeparator("=", width)
}

// PrintFooter prints a formatted footer with message and separators
func PrintFooter(message string, width int) {
	PrintSeparatorNewline("=", width)
	fmt.Println(message)
	fmt.Println(strings.Repeat("=", width) + "\n")
}

// PrintBoxSeparator prints a box-drawing separator line (for sub-sections)
func PrintBoxSeparator(width int) {
	fmt.Println("├" + strings.Repeat("─", width))
}

// BoxPrefix returns the appropriate box-drawing prefix for list items
func BoxPrefix(isLast bool) string {
	if isLast {
		return "└  "
	}
	return "│  "
}

// BoxDetailPrefix returns the prefix for detail lines under list items
func BoxDetailPrefix(isLast bool) string {
	if isLast {
		return "   "
	}
	return "│  "
}

// FormatAmount renders a base-unit amount with the given number of decimals.
// Trailing zeros are dropped; an unparsable amount is returned unchanged.
func FormatAmount(baseUnits string, precision int32) string {
	d, err := decimal.NewFromString(baseUnits)
	if err != nil {
		return baseUnits
	}
	return d.Shift(-precision).String()
}

// ParseAmount converts a display amount into base units, rejecting values with
// more decimals than precision allows.
func ParseAmount(display string, precision int32) (string, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(display))
	if err != nil {
		return "", fmt.Errorf("invalid amount %q: %w", display, err)
	}
	if d.IsNegative() {
		return "", fmt.Errorf("amount %q cannot be negative", display)
	}
	base := d.Shift(precision)
	if !base.IsInteger() {
		return "", fmt.Errorf("amount %q has more than %d decimals", display, precision)
	}
	return base.String(), nil
}
