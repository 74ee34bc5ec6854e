// Package credentials provides a pool of interchangeable API credentials
// with uniform random selection and monotonic quarantine.
package credentials

import (
	"math/rand/v2"
	"slices"
	"strings"
	"sync/atomic"
	"unicode"
)

// Credential is an opaque API key.
type Credential string

// String masks all but the last four characters so credentials can be logged.
func (c Credential) String() string {
	r := []rune(string(c))
	if len(r) <= 4 {
		return strings.Repeat("*", len(r))
	}
	return strings.Repeat("*", len(r)-4) + string(r[len(r)-4:])
}

// Pool holds the live credential set for a single run.
// Safe for concurrent use. The live set only shrinks.
type Pool struct {
	live        atomic.Pointer[[]Credential]
	quarantined atomic.Pointer[[]Credential]
}

// New creates a pool from raw credential strings. Each entry may itself hold
// several keys separated by commas, whitespace, or newlines. Blank and
// duplicate entries are dropped; order of first appearance is kept.
func New(raw ...string) *Pool {
	creds := Normalize(raw...)
	p := &Pool{}
	p.live.Store(&creds)
	p.quarantined.Store(&[]Credential{})
	return p
}

// Normalize splits, trims, and deduplicates raw credential input.
func Normalize(raw ...string) []Credential {
	seen := make(map[string]struct{})
	creds := make([]Credential, 0)

	for _, entry := range raw {
		fields := strings.FieldsFunc(entry, func(r rune) bool {
			return r == ',' || unicode.IsSpace(r)
		})
		for _, f := range fields {
			if _, ok := seen[f]; ok {
				continue
			}
			seen[f] = struct{}{}
			creds = append(creds, Credential(f))
		}
	}

	return creds
}

// Pick returns a credential drawn uniformly at random from the live set.
// Returns ErrPoolExhausted when no live credentials remain.
func (p *Pool) Pick() (Credential, error) {
	live := *p.live.Load()
	if len(live) == 0 {
		return "", ErrPoolExhausted
	}
	return live[rand.IntN(len(live))], nil
}

// Quarantine removes c from the live set. It reports whether this call
// removed it; quarantining an absent credential is a no-op.
func (p *Pool) Quarantine(c Credential) bool {
	for {
		current := p.live.Load()
		idx := slices.Index(*current, c)
		if idx < 0 {
			return false
		}

		next := make([]Credential, 0, len(*current)-1)
		next = append(next, (*current)[:idx]...)
		next = append(next, (*current)[idx+1:]...)

		if p.live.CompareAndSwap(current, &next) {
			p.recordQuarantine(c)
			return true
		}
	}
}

// Live returns the number of credentials still eligible for selection.
func (p *Pool) Live() int {
	return len(*p.live.Load())
}

// Exhausted reports whether the live set is empty.
func (p *Pool) Exhausted() bool {
	return p.Live() == 0
}

// Quarantined returns the credentials removed so far, in removal order.
func (p *Pool) Quarantined() []Credential {
	return slices.Clone(*p.quarantined.Load())
}

func (p *Pool) recordQuarantine(c Credential) {
	for {
		current := p.quarantined.Load()
		next := append(slices.Clone(*current), c)
		if p.quarantined.CompareAndSwap(current, &next) {
			return
		}
	}
}
