// Copyright 2025 ZapAuth Authors
// SPDX-License-Identifier: Apache-2.0

package directory

import (
	"context"
	"strings"

	"github.com/go-ldap/ldap/v3"
)

// LocatedUser is the outcome of a successful locate: the DN of the entry
// that matched the requested username, which attribute matched it, and the
// username the rest of the system should use from here on.
type LocatedUser struct {
	DN          string
	MatchedAttr string

	// Username is the resolved local username: the entry's value for the
	// first configured attribute, falling back to the matched value when
	// that attribute is absent from the entry.
	Username string
}

// Locate searches the configured base for entries passing the user filter
// and returns the first one whose username attributes contain the requested
// username. conn must already be bound (service account); creds is the
// credential source for any referral the search produces.
//
// A completed search with no match returns ErrUserNotFound. That is the
// normal miss outcome, distinct from transport failures.
func (cn *Connector) Locate(ctx context.Context, conn Conn, creds CredentialSource, username string) (*LocatedUser, error) {
	cfg := cn.Config

	filter := cfg.Filter
	if strings.Contains(filter, "{0}") {
		filter = strings.ReplaceAll(filter, "{0}", ldap.EscapeFilter(username))
	}

	// Project only the attributes we match against.
	req := ldap.NewSearchRequest(
		cfg.BaseDN,
		ldap.ScopeWholeSubtree,
		ldap.NeverDerefAliases,
		0, 0, false,
		filter,
		cfg.UsernameAttrs,
		nil,
	)

	searchesTotal.WithLabelValues("locate").Inc()
	result, err := cn.SearchWithReferrals(ctx, conn, req, creds)
	if err != nil {
		return nil, err
	}

	// First match wins, scanning entries in server order and attributes
	// in configured priority order. The scan stops only on an actual
	// match, never after merely finishing one entry.
	for _, entry := range result.Entries {
		for _, attr := range cfg.UsernameAttrs {
			for _, value := range entry.GetAttributeValues(attr) {
				if !usernameEqual(value, username, cfg.CaseSensitive) {
					continue
				}
				resolved := entry.GetAttributeValue(cfg.UsernameAttrs[0])
				if resolved == "" {
					resolved = value
				}
				return &LocatedUser{
					DN:          entry.DN,
					MatchedAttr: attr,
					Username:    resolved,
				}, nil
			}
		}
	}

	return nil, ErrUserNotFound
}

func usernameEqual(a, b string, caseSensitive bool) bool {
	if caseSensitive {
		return a == b
	}
	return strings.EqualFold(a, b)
}
