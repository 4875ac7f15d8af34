package web_fetch

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/mohammad-safakhou/learncatalog/tools/web_fetch/models"
)

// ErrHostNotAllowed is returned without contacting the network when a URL
// falls outside the configured host policy.
var ErrHostNotAllowed = errors.New("host not allowed by scraper policy")

// HostPolicy limits fetches to a set of hosts. An entry matches the host
// itself and any subdomain. Disallow wins over Allow; an empty Allow list
// permits every host not disallowed.
type HostPolicy struct {
	Allow    []string
	Disallow []string
}

func (p HostPolicy) empty() bool {
	return len(p.Allow) == 0 && len(p.Disallow) == 0
}

// Permits reports whether host may be fetched.
func (p HostPolicy) Permits(host string) bool {
	host = strings.TrimPrefix(strings.ToLower(strings.TrimSuffix(host, ".")), "www.")
	if host == "" {
		return false
	}
	for _, d := range p.Disallow {
		if matchesDomain(host, d) {
			return false
		}
	}
	if len(p.Allow) == 0 {
		return true
	}
	for _, a := range p.Allow {
		if matchesDomain(host, a) {
			return true
		}
	}
	return false
}

func matchesDomain(host, domain string) bool {
	domain = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(domain)), "www.")
	if domain == "" {
		return false
	}
	return host == domain || strings.HasSuffix(host, "."+domain)
}

type policyFetcher struct {
	policy HostPolicy
	next   WebFetcher
}

// WithHostPolicy wraps next so that URLs outside policy are refused.
func WithHostPolicy(next WebFetcher, policy HostPolicy) WebFetcher {
	if policy.empty() {
		return next
	}
	return &policyFetcher{policy: policy, next: next}
}

func (f *policyFetcher) Fetch(ctx context.Context, raw string) (*models.Page, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, &models.FetchError{URL: raw, Reason: models.ReasonScheme, Err: err}
	}
	if !f.policy.Permits(u.Hostname()) {
		return nil, &models.FetchError{URL: raw, Reason: models.ReasonHostPolicy, Err: fmt.Errorf("%w: %s", ErrHostNotAllowed, u.Hostname())}
	}
	return f.next.Fetch(ctx, raw)
}
