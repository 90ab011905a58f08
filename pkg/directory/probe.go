// Copyright 2025 ZapAuth Authors
// SPDX-License-Identifier: Apache-2.0

package directory

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-ldap/ldap/v3"
)

const probePageSize = 100

// Probe exercises connect, optional StartTLS, service-account bind, and an
// unrestricted subtree search, and renders a step-by-step report for
// configuration verification. It always returns a string and never an
// error: the first failing step embeds the error text and ends the report.
//
// The probe is independent of the authentication path and opens its own
// connection, released before returning.
func (cn *Connector) Probe(ctx context.Context) string {
	cfg := cn.Config
	ep := cfg.Endpoint()

	var b strings.Builder
	fmt.Fprintf(&b, "connecting to %s... ", ep.Address())

	conn, err := cn.dialer().Dial(ctx, cfg, ep)
	if err != nil {
		fmt.Fprintf(&b, "FAILED (%v)", err)
		return b.String()
	}
	defer conn.Close()
	b.WriteString("ok\n")

	if ep.TLSMode == TLSModeStartTLS {
		b.WriteString("negotiating StartTLS... ")
		if err := conn.StartTLS(tlsConfig(cfg, ep.Host)); err != nil {
			fmt.Fprintf(&b, "FAILED (%v)", err)
			return b.String()
		}
		b.WriteString("ok\n")
	}

	if cfg.BindDN == "" {
		// Anonymous bind succeeding is worth calling out on its own:
		// the search below runs without a service identity.
		b.WriteString("binding anonymously (no service account configured)... ")
	} else {
		fmt.Fprintf(&b, "binding as %s... ", cfg.BindDN)
	}
	if err := cn.Bind(conn, cfg.BindDN, cfg.BindPassword); err != nil {
		fmt.Fprintf(&b, "FAILED (%v)", err)
		return b.String()
	}
	b.WriteString("ok\n")

	fmt.Fprintf(&b, "searching under %s... ", cfg.BaseDN)
	req := ldap.NewSearchRequest(
		cfg.BaseDN,
		ldap.ScopeWholeSubtree,
		ldap.NeverDerefAliases,
		0, 0, false,
		"(objectClass=*)",
		[]string{"dn"},
		nil,
	)
	// Enumerate pages and count entries ourselves rather than trusting a
	// server-reported count.
	result, err := conn.SearchWithPaging(req, probePageSize)
	if err != nil {
		fmt.Fprintf(&b, "FAILED (%v)", err)
		return b.String()
	}
	fmt.Fprintf(&b, "ok, %d entries found\n", len(result.Entries))

	return b.String()
}
