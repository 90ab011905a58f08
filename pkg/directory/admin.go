// Copyright 2025 ZapAuth Authors
// SPDX-License-Identifier: Apache-2.0

package directory

import (
	"context"

	"github.com/go-ldap/ldap/v3"
)

// IsAdmin evaluates the configured admin filter base-scoped against the
// user's own DN. conn must be bound as that user, never as the service
// account; creds carries the user's own credentials for referrals.
//
// The filter's semantics are the directory server's business: a single
// returned entry grants the admin flag, no attribute values are inspected.
// Callers must not invoke this when AdminCheckEnabled is false.
func (cn *Connector) IsAdmin(ctx context.Context, conn Conn, creds CredentialSource, userDN string) (bool, error) {
	req := ldap.NewSearchRequest(
		userDN,
		ldap.ScopeBaseObject,
		ldap.NeverDerefAliases,
		1, 0, false,
		cn.Config.AdminFilter,
		[]string{"dn"},
		nil,
	)

	searchesTotal.WithLabelValues("admin").Inc()
	result, err := cn.SearchWithReferrals(ctx, conn, req, creds)
	if err != nil {
		// A base-scope search for an entry the filter excludes comes
		// back as an empty result set, but some servers answer with
		// noSuchObject instead. Both mean "not admin".
		if code, ok := resultCode(err); ok && code == ldap.LDAPResultNoSuchObject {
			return false, nil
		}
		return false, err
	}
	return len(result.Entries) > 0, nil
}
