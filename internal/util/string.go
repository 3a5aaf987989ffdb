// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"fmt"
	"math"
	"strings"

	"github.com/mattn/go-runewidth"
)

// TruncateWidth truncates s to a maximum display width in terminal cells,
// appending an ellipsis when something was cut. Double-width (CJK and
// Ethiopic-adjacent) characters count as their real cell width.
func TruncateWidth(s string, maxWidth int) string {
	if maxWidth <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= maxWidth {
		return s
	}
	if maxWidth <= 3 {
		return runewidth.Truncate(s, maxWidth, "")
	}
	return runewidth.Truncate(s, maxWidth, "...")
}

// PadCell pads or truncates s to exactly width terminal cells. Table
// columns rely on this being width-exact for mixed-script names.
func PadCell(s string, width int) string {
	s = TruncateWidth(s, width)
	return s + strings.Repeat(" ", width-runewidth.StringWidth(s))
}

// FormatAmount renders a monetary amount with two decimal places, rounding
// half away from zero. Rounding happens here and nowhere earlier, so
// intermediate math keeps full precision.
func FormatAmount(v float64) string {
	return fmt.Sprintf("%.2f", RoundMoney(v))
}

// RoundMoney rounds to two decimal places, half away from zero.
func RoundMoney(v float64) float64 {
	return math.Round(v*100) / 100
}
