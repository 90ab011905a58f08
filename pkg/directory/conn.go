// Copyright 2025 ZapAuth Authors
// SPDX-License-Identifier: Apache-2.0

package directory

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"

	"github.com/go-ldap/ldap/v3"
)

// Conn is the subset of *ldap.Conn this package uses. It exists so tests
// can inject a fake transport instead of a live directory server.
type Conn interface {
	Bind(username, password string) error
	UnauthenticatedBind(username string) error
	Search(req *ldap.SearchRequest) (*ldap.SearchResult, error)
	SearchWithPaging(req *ldap.SearchRequest, pagingSize uint32) (*ldap.SearchResult, error)
	StartTLS(config *tls.Config) error
	IsClosing() bool
	Close() error
}

var _ Conn = (*ldap.Conn)(nil)

// Endpoint names one directory server and the transport security to use
// when reaching it. Referral chasing produces endpoints that differ from
// the configured one.
type Endpoint struct {
	Host    string
	Port    int
	TLSMode string
}

// Address returns host:port with the default LDAP port for the TLS mode
// filled in when the port is unset.
func (e Endpoint) Address() string {
	port := e.Port
	if port == 0 {
		if e.TLSMode == TLSModeLDAPS {
			port = 636
		} else {
			port = 389
		}
	}
	return net.JoinHostPort(e.Host, fmt.Sprintf("%d", port))
}

// URL returns the ldap:// or ldaps:// URL for the endpoint.
func (e Endpoint) URL() string {
	scheme := "ldap"
	if e.TLSMode == TLSModeLDAPS {
		scheme = "ldaps"
	}
	return scheme + "://" + e.Address()
}

// Endpoint returns the configured server endpoint.
func (c *Config) Endpoint() Endpoint {
	return Endpoint{Host: c.Host, Port: c.Port, TLSMode: c.TLSMode}
}

// Dialer opens a transport to a directory endpoint. The default dialer
// speaks real LDAP; tests substitute a fake.
type Dialer interface {
	Dial(ctx context.Context, cfg *Config, ep Endpoint) (Conn, error)
}

// DialerFunc adapts a func to the Dialer interface.
type DialerFunc func(ctx context.Context, cfg *Config, ep Endpoint) (Conn, error)

func (f DialerFunc) Dial(ctx context.Context, cfg *Config, ep Endpoint) (Conn, error) {
	return f(ctx, cfg, ep)
}

// netDialer is the production Dialer: TCP (optionally implicit TLS) with an
// explicit connect and read timeout.
type netDialer struct{}

func (netDialer) Dial(ctx context.Context, cfg *Config, ep Endpoint) (Conn, error) {
	opts := []ldap.DialOpt{
		ldap.DialWithDialer(&net.Dialer{Timeout: cfg.timeout()}),
	}
	if ep.TLSMode == TLSModeLDAPS {
		opts = append(opts, ldap.DialWithTLSConfig(tlsConfig(cfg, ep.Host)))
	}
	conn, err := ldap.DialURL(ep.URL(), opts...)
	if err != nil {
		return nil, err
	}
	conn.SetTimeout(cfg.timeout())
	return conn, nil
}

// tlsConfig builds the client TLS config for a given server host, honoring
// the operator's certificate-verification policy.
func tlsConfig(cfg *Config, host string) *tls.Config {
	return &tls.Config{
		ServerName:         host,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	}
}

// Connector opens, secures, and binds directory connections for one
// configuration snapshot. Zero value is not usable; Config is required,
// Dialer defaults to the real network dialer.
type Connector struct {
	Config *Config
	Dialer Dialer
}

func (cn *Connector) dialer() Dialer {
	if cn.Dialer != nil {
		return cn.Dialer
	}
	return netDialer{}
}

// Connect opens a connection to the configured server, upgrading with
// StartTLS when configured. On any failure the transport is closed before
// the error is returned.
func (cn *Connector) Connect(ctx context.Context) (Conn, error) {
	return cn.connectTo(ctx, cn.Config.Endpoint())
}

func (cn *Connector) connectTo(ctx context.Context, ep Endpoint) (Conn, error) {
	conn, err := cn.dialer().Dial(ctx, cn.Config, ep)
	if err != nil {
		return nil, connErr("dial "+ep.Address(), err)
	}
	if ep.TLSMode == TLSModeStartTLS {
		if err := conn.StartTLS(tlsConfig(cn.Config, ep.Host)); err != nil {
			conn.Close()
			return nil, connErr("starttls "+ep.Address(), err)
		}
	}
	return conn, nil
}

// Bind authenticates an open connection as the given DN. An empty DN is an
// anonymous bind. Rejected credentials classify as ErrBind; anything else
// on the wire classifies as ErrConnection.
func (cn *Connector) Bind(conn Conn, dn, password string) error {
	var err error
	if dn == "" {
		err = conn.UnauthenticatedBind("")
	} else {
		err = conn.Bind(dn, password)
	}
	if err == nil {
		return nil
	}
	// Any LDAP-level answer is the server rejecting the bind; everything
	// else means the conversation itself broke down.
	if _, ok := resultCode(err); ok {
		return bindErr(dn, err)
	}
	return connErr("bind", err)
}

// ConnectAs opens a connection and binds it as dn in one step. The
// connection is closed before any error propagates; callers never receive
// both a connection and an error.
func (cn *Connector) ConnectAs(ctx context.Context, dn, password string) (Conn, error) {
	conn, err := cn.Connect(ctx)
	if err != nil {
		return nil, err
	}
	if err := cn.Bind(conn, dn, password); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}
