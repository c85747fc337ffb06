package domain

import (
	"errors"
	"sort"
	"strings"
)

// Account is a chain address in its string form. Equality is exact string match.
type Account string

// TrackedAccountSet is the set of accounts whose transaction history is being
// reported. It is both the fetch scope and the membership test for the
// internal-transfer exclusion rule. Immutable once constructed.
type TrackedAccountSet struct {
	members map[Account]struct{}
}

// NewTrackedAccountSet builds a tracked set from the given addresses. Blank
// addresses are rejected and duplicates collapse into a single member. The set
// must end up non-empty.
func NewTrackedAccountSet(accounts ...Account) (TrackedAccountSet, error) {
	members := make(map[Account]struct{}, len(accounts))
	for _, acc := range accounts {
		trimmed := Account(strings.TrimSpace(string(acc)))
		if trimmed == "" {
			return TrackedAccountSet{}, errors.New("tracked account address must not be blank")
		}
		members[trimmed] = struct{}{}
	}

	if len(members) == 0 {
		return TrackedAccountSet{}, errors.New("tracked account set must not be empty")
	}

	return TrackedAccountSet{members: members}, nil
}

// Contains reports whether the account is part of the tracked set.
func (s TrackedAccountSet) Contains(acc Account) bool {
	_, ok := s.members[acc]
	return ok
}

// ContainsAll reports whether every given account is tracked. An empty input
// yields false: a transaction without participants is never "internal".
func (s TrackedAccountSet) ContainsAll(accounts []Account) bool {
	if len(accounts) == 0 {
		return false
	}

	for _, acc := range accounts {
		if !s.Contains(acc) {
			return false
		}
	}
	return true
}

// Len returns the number of tracked accounts.
func (s TrackedAccountSet) Len() int {
	return len(s.members)
}

// Accounts returns the members in lexical order, so every iteration over the
// set is deterministic.
func (s TrackedAccountSet) Accounts() []Account {
	accounts := make([]Account, 0, len(s.members))
	for acc := range s.members {
		accounts = append(accounts, acc)
	}

	sort.Slice(accounts, func(i, j int) bool { return accounts[i] < accounts[j] })
	return accounts
}
