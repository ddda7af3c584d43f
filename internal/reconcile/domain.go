package reconcile

import (
	"context"
	"regexp"
	"strings"

	"github.com/memberdesk/memberdesk/internal/store"
)

// domainRe accepts dotted labels of letters, digits and inner hyphens, with an
// alphabetic top-level label of at least two characters.
var domainRe = regexp.MustCompile(`^([a-z0-9]([a-z0-9-]*[a-z0-9])?\.)+[a-z]{2,}$`)

// NormalizeDomain canonicalizes a domain string: trim, lowercase, strip one
// leading "www." label. Returns a KindInvalidDomainFormat error for anything
// that doesn't look like a domain afterwards.
func NormalizeDomain(raw string) (string, error) {
	domain := strings.ToLower(strings.TrimSpace(raw))
	domain = strings.TrimPrefix(domain, "www.")

	if !domainRe.MatchString(domain) {
		return "", newError(KindInvalidDomainFormat, "invalid domain %q", raw)
	}

	return domain, nil
}

// RootDomain returns the last two label segments of a domain, grouping
// subdomains under one parent brand: advertising.yahoo.com -> yahoo.com.
// Domains with fewer than two labels are returned unchanged.
func RootDomain(domain string) string {
	labels := strings.Split(domain, ".")
	if len(labels) <= 2 {
		return domain
	}
	return strings.Join(labels[len(labels)-2:], ".")
}

// freeEmailProviders is the hard-coded consumer mail provider set shared by
// every reconciliation sub-report. Admin-managed excluded_domains rows extend
// it at query time.
var freeEmailProviders = map[string]struct{}{
	"gmail.com":      {},
	"googlemail.com": {},
	"yahoo.com":      {},
	"ymail.com":      {},
	"hotmail.com":    {},
	"outlook.com":    {},
	"live.com":       {},
	"msn.com":        {},
	"aol.com":        {},
	"icloud.com":     {},
	"me.com":         {},
	"mac.com":        {},
	"protonmail.com": {},
	"proton.me":      {},
	"pm.me":          {},
	"gmx.com":        {},
	"gmx.net":        {},
	"mail.com":       {},
	"zoho.com":       {},
	"yandex.com":     {},
	"yandex.ru":      {},
	"fastmail.com":   {},
	"hey.com":        {},
	"comcast.net":    {},
	"verizon.net":    {},
	"att.net":        {},
	"qq.com":         {},
	"163.com":        {},
	"126.com":        {},
	"web.de":         {},
	"t-online.de":    {},
	"orange.fr":      {},
	"free.fr":        {},
}

// ExclusionSet is the merged set of hard-coded free-email providers and
// admin-managed personal-domain entries.
type ExclusionSet map[string]struct{}

// Excluded reports whether a domain, or its root domain, is in the set.
func (s ExclusionSet) Excluded(domain string) bool {
	domain = strings.ToLower(domain)
	if _, ok := s[domain]; ok {
		return true
	}
	_, ok := s[RootDomain(domain)]
	return ok
}

// loadExclusions builds the shared exclusion set from the static provider list
// plus the admin-managed store entries.
func loadExclusions(ctx context.Context, excluded store.ExcludedDomainStore) (ExclusionSet, error) {
	set := make(ExclusionSet, len(freeEmailProviders))
	for d := range freeEmailProviders {
		set[d] = struct{}{}
	}

	entries, err := excluded.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		set[strings.ToLower(e.Domain)] = struct{}{}
	}

	return set, nil
}
