// Copyright 2025 ZapAuth Authors
// SPDX-License-Identifier: Apache-2.0

package directory

import (
	"context"
	"errors"
	"testing"

	"github.com/go-ldap/ldap/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const adminUserDN = "uid=alice,dc=example,dc=com"

func adminConfig() *Config {
	cfg := testConfig()
	cfg.AdminFilter = "(memberOf=cn=admins,dc=example,dc=com)"
	return cfg
}

func TestIsAdmin_MatchGrantsFlag(t *testing.T) {
	t.Parallel()

	var gotReq *ldap.SearchRequest
	conn := &fakeConn{searchFn: func(req *ldap.SearchRequest) (*ldap.SearchResult, error) {
		gotReq = req
		return &ldap.SearchResult{Entries: []*ldap.Entry{
			ldap.NewEntry(adminUserDN, nil),
		}}, nil
	}}
	cn := &Connector{Config: adminConfig()}

	admin, err := cn.IsAdmin(context.Background(), conn, StaticCredentials{DN: adminUserDN, Password: "pw"}, adminUserDN)
	require.NoError(t, err)
	assert.True(t, admin)

	require.NotNil(t, gotReq)
	assert.Equal(t, adminUserDN, gotReq.BaseDN, "the probe is scoped to exactly the user DN")
	assert.Equal(t, ldap.ScopeBaseObject, gotReq.Scope, "base scope, not subtree")
	assert.Equal(t, "(memberOf=cn=admins,dc=example,dc=com)", gotReq.Filter)
}

func TestIsAdmin_NoMatch(t *testing.T) {
	t.Parallel()

	conn := &fakeConn{searchFn: searchReturning()}
	cn := &Connector{Config: adminConfig()}

	admin, err := cn.IsAdmin(context.Background(), conn, StaticCredentials{DN: adminUserDN, Password: "pw"}, adminUserDN)
	require.NoError(t, err)
	assert.False(t, admin)
}

func TestIsAdmin_NoSuchObjectMeansNotAdmin(t *testing.T) {
	t.Parallel()

	conn := &fakeConn{searchFn: func(*ldap.SearchRequest) (*ldap.SearchResult, error) {
		return nil, &ldap.Error{ResultCode: ldap.LDAPResultNoSuchObject, Err: errors.New("no such object")}
	}}
	cn := &Connector{Config: adminConfig()}

	admin, err := cn.IsAdmin(context.Background(), conn, StaticCredentials{DN: adminUserDN, Password: "pw"}, adminUserDN)
	require.NoError(t, err)
	assert.False(t, admin)
}

func TestIsAdmin_TransportError(t *testing.T) {
	t.Parallel()

	conn := &fakeConn{searchFn: func(*ldap.SearchRequest) (*ldap.SearchResult, error) {
		return nil, errors.New("connection reset")
	}}
	cn := &Connector{Config: adminConfig()}

	_, err := cn.IsAdmin(context.Background(), conn, StaticCredentials{DN: adminUserDN, Password: "pw"}, adminUserDN)
	assert.ErrorIs(t, err, ErrConnection)
}
