// Copyright 2025 ZapAuth Authors
// SPDX-License-Identifier: Apache-2.0

package directory

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-ldap/ldap/v3"

	"github.com/LeeDigitalWorks/zapauth/pkg/logger"
)

// maxReferralHops bounds referral chasing so a referral loop between
// servers cannot hang an authentication attempt.
const maxReferralHops = 10

// CredentialSource supplies the bind identity to use when a search is
// referred to another server. It always carries the credentials captured at
// the start of the current phase (service account or the authenticated
// user), so referral chasing never downgrades to anonymous access.
type CredentialSource interface {
	ReferralCredentials() (dn, password string)
}

// StaticCredentials is the usual CredentialSource: a fixed DN/secret pair.
type StaticCredentials struct {
	DN       string
	Password string
}

func (c StaticCredentials) ReferralCredentials() (string, string) {
	return c.DN, c.Password
}

// SearchWithReferrals runs req on conn and chases any referrals the server
// returns, re-binding at each referred server with the credentials from
// creds. Follower connections are closed on every path.
func (cn *Connector) SearchWithReferrals(ctx context.Context, conn Conn, req *ldap.SearchRequest, creds CredentialSource) (*ldap.SearchResult, error) {
	return cn.searchReferral(ctx, conn, req, creds, 0)
}

func (cn *Connector) searchReferral(ctx context.Context, conn Conn, req *ldap.SearchRequest, creds CredentialSource, depth int) (*ldap.SearchResult, error) {
	result, err := conn.Search(req)
	if err != nil {
		return nil, connErr("search "+req.BaseDN, err)
	}
	if len(result.Entries) > 0 || len(result.Referrals) == 0 {
		return result, nil
	}
	if depth >= maxReferralHops {
		return nil, connErr("search "+req.BaseDN, errReferralLoop)
	}

	// The server answered with references instead of entries: follow them
	// in order and return the first one that yields a result.
	var lastErr error
	for _, ref := range result.Referrals {
		res, err := cn.followReferral(ctx, ref, req, creds, depth+1)
		if err != nil {
			lastErr = err
			continue
		}
		return res, nil
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return result, nil
}

// followReferral dials the referred server, binds with the phase
// credentials, and re-issues the search there.
func (cn *Connector) followReferral(ctx context.Context, ref string, req *ldap.SearchRequest, creds CredentialSource, depth int) (*ldap.SearchResult, error) {
	ep, base, err := parseReferralURL(ref, cn.Config)
	if err != nil {
		return nil, connErr("referral "+ref, err)
	}

	referralsFollowed.Inc()
	logger.Debug().Str("referral", ref).Str("server", ep.Address()).Msg("following directory referral")

	conn, err := cn.connectTo(ctx, ep)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	dn, password := creds.ReferralCredentials()
	if err := cn.Bind(conn, dn, password); err != nil {
		return nil, err
	}

	refReq := *req
	if base != "" {
		refReq.BaseDN = base
	}
	return cn.searchReferral(ctx, conn, &refReq, creds, depth)
}

// parseReferralURL extracts the endpoint and optional base DN from an LDAP
// referral URL such as ldap://other.example.com:389/dc=example,dc=com.
// An ldaps scheme forces implicit TLS regardless of the configured mode;
// otherwise the configured mode carries over to the referred server.
func parseReferralURL(ref string, cfg *Config) (Endpoint, string, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return Endpoint{}, "", err
	}
	ep := Endpoint{Host: u.Hostname(), TLSMode: cfg.TLSMode}
	if ep.Host == "" {
		return Endpoint{}, "", errBadReferral
	}
	if u.Scheme == "ldaps" {
		ep.TLSMode = TLSModeLDAPS
	}
	if p := u.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return Endpoint{}, "", err
		}
		ep.Port = port
	}
	base := strings.TrimPrefix(u.Path, "/")
	if base, err = url.PathUnescape(base); err != nil {
		return Endpoint{}, "", err
	}
	return ep, base, nil
}
