package mail

import "strings"

// Allowlist matches sender addresses against exact entries and "*@domain" wildcards.
type Allowlist struct {
	senders map[string]struct{}
	domains map[string]struct{}
}

// NewAllowlist builds a matcher from patterns. An empty list allows nobody.
func NewAllowlist(patterns []string) *Allowlist {
	a := &Allowlist{senders: map[string]struct{}{}, domains: map[string]struct{}{}}
	for _, p := range patterns {
		p = strings.ToLower(strings.TrimSpace(p))
		switch {
		case strings.HasPrefix(p, "*@"):
			a.domains[p[2:]] = struct{}{}
		case strings.HasPrefix(p, "@"):
			a.domains[p[1:]] = struct{}{}
		case p != "":
			a.senders[p] = struct{}{}
		}
	}
	return a
}

// Allowed reports whether address is an allowed sender.
func (a *Allowlist) Allowed(address string) bool {
	address = strings.ToLower(strings.TrimSpace(address))
	if _, ok := a.senders[address]; ok {
		return true
	}
	at := strings.LastIndexByte(address, '@')
	if at < 0 {
		return false
	}
	_, ok := a.domains[address[at+1:]]
	return ok
}

// Len returns the number of patterns.
func (a *Allowlist) Len() int { return len(a.senders) + len(a.domains) }
