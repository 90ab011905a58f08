// Copyright 2025 ZapAuth Authors
// SPDX-License-Identifier: Apache-2.0

// Package directory implements the LDAP client core of zapauth: connecting
// and binding to a directory server, locating user entries under a
// configured filter, referral-aware searching, admin determination, and a
// human-readable connection probe.
package directory

import (
	"errors"
	"strings"
	"time"
)

// TLS modes for the directory connection.
const (
	TLSModeNone     = "none"     // plain ldap://
	TLSModeLDAPS    = "ldaps"    // implicit TLS on connect
	TLSModeStartTLS = "starttls" // plain connect, then StartTLS upgrade
)

// AdminFilterDisabled is the reserved admin-filter value that turns the
// admin determination off entirely.
const AdminFilterDisabled = "none"

// DefaultTimeout bounds dialing and reads when the config does not set one.
// The directory being unreachable must surface as an error, not a hang.
const DefaultTimeout = 10 * time.Second

// Config describes one directory server and how to search it. It is loaded
// once per authentication attempt and treated as immutable for the duration
// of that attempt.
type Config struct {
	// Server settings
	Host    string
	Port    int
	TLSMode string // none, ldaps, or starttls

	// InsecureSkipVerify disables certificate chain and hostname
	// validation. Explicitly insecure, operator-opted.
	InsecureSkipVerify bool

	// Service account used for the locate phase. Empty BindDN means
	// anonymous bind.
	BindDN       string
	BindPassword string

	// Search settings
	BaseDN string
	// Filter is the user search filter. An optional {0} placeholder is
	// replaced with the escaped username.
	Filter string
	// UsernameAttrs are scanned in order when matching entries against
	// the requested username; the first attribute is also the source of
	// the resolved username.
	UsernameAttrs []string
	// AdminFilter, when non-empty and not AdminFilterDisabled, is
	// evaluated base-scoped against the authenticated user's DN.
	AdminFilter string
	// CaseSensitive selects byte-exact username comparison; otherwise
	// values are compared case-folded.
	CaseSensitive bool

	Timeout time.Duration
}

// ParseAttrList splits a comma-separated attribute list, trimming
// whitespace and dropping empty items.
func ParseAttrList(s string) []string {
	var attrs []string
	for _, a := range strings.Split(s, ",") {
		if a = strings.TrimSpace(a); a != "" {
			attrs = append(attrs, a)
		}
	}
	return attrs
}

// AdminCheckEnabled reports whether the admin determination should run.
func (c *Config) AdminCheckEnabled() bool {
	return c.AdminFilter != "" && !strings.EqualFold(c.AdminFilter, AdminFilterDisabled)
}

func (c *Config) timeout() time.Duration {
	if c.Timeout <= 0 {
		return DefaultTimeout
	}
	return c.Timeout
}

// Validate checks the fields every phase depends on.
func (c *Config) Validate() error {
	if c.Host == "" {
		return errors.New("directory host is required")
	}
	if c.BaseDN == "" {
		return errors.New("directory base DN is required")
	}
	if c.Filter == "" {
		return errors.New("directory search filter is required")
	}
	if len(c.UsernameAttrs) == 0 {
		return errors.New("at least one username attribute is required")
	}
	switch c.TLSMode {
	case "", TLSModeNone, TLSModeLDAPS, TLSModeStartTLS:
	default:
		return errors.New("unknown TLS mode: " + c.TLSMode)
	}
	return nil
}
