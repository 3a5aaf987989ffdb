// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package directory

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// normalizeName canonicalizes a display name for matching: NFC
// normalization, lower-casing, and whitespace collapse. Amharic names
// typed with composed vs decomposed forms must compare equal.
func normalizeName(s string) string {
	s = norm.NFC.String(s)
	s = strings.ToLower(s)
	return strings.Join(strings.Fields(s), " ")
}
