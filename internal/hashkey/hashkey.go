// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Package hashkey hashes the long string identifiers the reservation
// engine uses as B+-tree keys — usernames and station names — down to
// 64-bit integers, so that index nodes stay small (§9, GLOSSARY).
//
// Collisions are not detected or resolved: two distinct strings that
// hash to the same 64-bit value are treated as the same key. This
// mirrors the source system's behavior and is preserved deliberately
// (§9); callers should not construct adversarial fixtures that rely on
// collision handling.
package hashkey

import (
	"hash/fnv"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/width"
)

var fold = cases.Fold()

// widthNormalizer folds fullwidth/halfwidth rune variants to their
// canonical narrow form first — so a station name typed through a
// fullwidth IME ("Ｂｅｉｊｉｎｇ") lands on the same key as "Beijing" —
// then strips Unicode format characters (zero-width joiners, BOMs) that
// can ride along with a pasted name but carry no visible meaning.
var widthNormalizer = transform.Chain(width.Fold, runes.Remove(runes.In(unicode.Cf)))

func foldWidth(s string) string {
	out, _, err := transform.String(widthNormalizer, s)
	if err != nil {
		return s
	}
	return out
}

// Hash returns the deterministic 64-bit hash of s, used as the B+-tree
// key for a username or station name.
//
// s is width-folded and case-folded first so that "Beijing",
// "beijing", and a fullwidth-typed "Ｂｅｉｊｉｎｇ" all hash to the same
// key. Callers still compare the stored names exactly after the lookup,
// so those variants remain distinct identifiers.
func Hash(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(fold.String(foldWidth(s))))
	return h.Sum64()
}

// Normalize folds s the same way Hash does, for callers that need to
// compare or display a canonical form without hashing it.
func Normalize(s string) string {
	return fold.String(foldWidth(s))
}
