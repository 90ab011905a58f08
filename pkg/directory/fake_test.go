// Copyright 2025 ZapAuth Authors
// SPDX-License-Identifier: Apache-2.0

package directory

import (
	"context"
	"crypto/tls"
	"errors"

	"github.com/go-ldap/ldap/v3"
)

// fakeConn scripts one directory connection for tests.
type fakeConn struct {
	passwords   map[string]string // dn -> accepted password
	allowAnon   bool
	searchFn    func(*ldap.SearchRequest) (*ldap.SearchResult, error)
	startTLSErr error

	binds          []string
	boundDN        string
	startTLSCalled bool
	closed         bool
}

func (c *fakeConn) Bind(dn, password string) error {
	c.binds = append(c.binds, dn)
	if want, ok := c.passwords[dn]; ok && want == password {
		c.boundDN = dn
		return nil
	}
	return &ldap.Error{ResultCode: ldap.LDAPResultInvalidCredentials, Err: errors.New("invalid credentials")}
}

func (c *fakeConn) UnauthenticatedBind(dn string) error {
	c.binds = append(c.binds, "")
	if !c.allowAnon {
		return &ldap.Error{ResultCode: ldap.LDAPResultInappropriateAuthentication, Err: errors.New("anonymous bind refused")}
	}
	c.boundDN = ""
	return nil
}

func (c *fakeConn) Search(req *ldap.SearchRequest) (*ldap.SearchResult, error) {
	if c.searchFn != nil {
		return c.searchFn(req)
	}
	return &ldap.SearchResult{}, nil
}

func (c *fakeConn) SearchWithPaging(req *ldap.SearchRequest, pagingSize uint32) (*ldap.SearchResult, error) {
	return c.Search(req)
}

func (c *fakeConn) StartTLS(config *tls.Config) error {
	c.startTLSCalled = true
	return c.startTLSErr
}

func (c *fakeConn) IsClosing() bool { return false }

func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

// fakeDialer hands out scripted connections by endpoint address.
type fakeDialer struct {
	conns   map[string]func() *fakeConn
	dialErr error

	dialed []string
	opened []*fakeConn
}

func (d *fakeDialer) Dial(ctx context.Context, cfg *Config, ep Endpoint) (Conn, error) {
	d.dialed = append(d.dialed, ep.Address())
	if d.dialErr != nil {
		return nil, d.dialErr
	}
	mk, ok := d.conns[ep.Address()]
	if !ok {
		return nil, errors.New("no route to " + ep.Address())
	}
	conn := mk()
	d.opened = append(d.opened, conn)
	return conn, nil
}

func (d *fakeDialer) allClosed() bool {
	for _, c := range d.opened {
		if !c.closed {
			return false
		}
	}
	return true
}

func testConfig() *Config {
	return &Config{
		Host:          "ldap.example.com",
		BaseDN:        "dc=example,dc=com",
		BindDN:        "cn=service,dc=example,dc=com",
		BindPassword:  "service-pw",
		Filter:        "(uid=*)",
		UsernameAttrs: []string{"uid"},
	}
}
