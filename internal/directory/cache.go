// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package directory resolves free-text counterparty names to stable ids.
//
// The cache is an in-memory snapshot of the active customer directory,
// built once per transfer attempt and immutable for its lifetime. Lookup
// is typo-tolerant only at the suggestion stage; resolution to an id is
// always an exact match on a name the operator explicitly picked, so a
// party id is never submitted from raw typed text. A customer added after
// load is invisible until the next wizard instance; accepted limitation.
package directory

import (
	"context"
	"sort"
	"strings"

	"github.com/jeranaias/birrwire-tui/internal/api"
)

// Kind marks which side of a transfer a party is on.
type Kind int

const (
	// KindSender is the paying side.
	KindSender Kind = iota
	// KindReceiver is the payout side.
	KindReceiver
)

// String returns a readable kind name.
func (k Kind) String() string {
	if k == KindSender {
		return "sender"
	}
	return "receiver"
}

// Party is a resolved counterparty.
type Party struct {
	ID          int64
	DisplayName string
}

// Loader fetches the customer directory. Implemented by the API client.
type Loader interface {
	FetchParties(ctx context.Context) ([]api.User, error)
}

// Cache is the immutable name→id snapshot.
type Cache struct {
	parties []Party
	byName  map[string]Party
}

// Load fetches the full active customer list once and builds the
// normalized name→id mapping keyed by "first last".
func Load(ctx context.Context, loader Loader) (*Cache, error) {
	users, err := loader.FetchParties(ctx)
	if err != nil {
		return nil, err
	}
	return Build(users), nil
}

// Build constructs a cache from already-fetched directory entries.
func Build(users []api.User) *Cache {
	c := &Cache{
		parties: make([]Party, 0, len(users)),
		byName:  make(map[string]Party, len(users)),
	}
	for _, u := range users {
		name := strings.TrimSpace(u.FirstName + " " + u.LastName)
		if name == "" {
			continue
		}
		p := Party{ID: u.ID, DisplayName: name}
		c.parties = append(c.parties, p)
		// Duplicate display names: last entry wins, matching the backend's
		// own directory ordering.
		c.byName[normalizeName(name)] = p
	}
	sort.Slice(c.parties, func(i, j int) bool {
		return c.parties[i].DisplayName < c.parties[j].DisplayName
	})
	return c
}

// Len returns the number of cached parties.
func (c *Cache) Len() int {
	return len(c.parties)
}

// Suggest returns parties whose display name contains the input,
// case-insensitively, ordered by match position then name. Empty input
// yields no suggestions: an empty field must not disclose the whole
// directory.
func (c *Cache) Suggest(input string) []Party {
	query := normalizeName(input)
	if query == "" {
		return nil
	}

	type scored struct {
		party Party
		pos   int
	}
	var matches []scored
	for _, p := range c.parties {
		pos := strings.Index(normalizeName(p.DisplayName), query)
		if pos < 0 {
			continue
		}
		matches = append(matches, scored{party: p, pos: pos})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].pos < matches[j].pos
	})

	out := make([]Party, len(matches))
	for i, m := range matches {
		out[i] = m.party
	}
	return out
}

// Resolve maps a display name to its party, exact match only. The ok
// result gates submission: false means the operator has not picked an
// entry from the suggestions yet.
func (c *Cache) Resolve(displayName string) (Party, bool) {
	p, ok := c.byName[normalizeName(displayName)]
	return p, ok
}
