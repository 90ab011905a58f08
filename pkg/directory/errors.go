// Copyright 2025 ZapAuth Authors
// SPDX-License-Identifier: Apache-2.0

package directory

import (
	"errors"
	"fmt"

	"github.com/go-ldap/ldap/v3"
)

var (
	// ErrConnection covers transport and TLS-level failures: DNS, TCP,
	// handshake, StartTLS negotiation, or an unresponsive server.
	ErrConnection = errors.New("directory connection failed")

	// ErrBind is returned when the directory rejects a bind, including
	// binds against referred servers.
	ErrBind = errors.New("directory bind rejected")

	// ErrUserNotFound is the locator's normal miss outcome: the search
	// completed but no entry matched the requested username.
	ErrUserNotFound = errors.New("user not found in directory")

	errReferralLoop = errors.New("referral limit exceeded")
	errBadReferral  = errors.New("referral URL has no host")
)

// connErr classifies a raw transport error. The cause stays wrapped so
// callers can still inspect the underlying result code, but raw go-ldap
// errors never leave this package as the top-level classification.
func connErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrConnection, op, err)
}

// bindErr classifies a bind rejection, keeping the target DN for logging.
func bindErr(dn string, err error) error {
	who := dn
	if who == "" {
		who = "(anonymous)"
	}
	return fmt.Errorf("%w: as %s: %w", ErrBind, who, err)
}

// resultCode digs the LDAP result code out of a possibly wrapped error.
func resultCode(err error) (uint16, bool) {
	var lerr *ldap.Error
	if errors.As(err, &lerr) {
		return lerr.ResultCode, true
	}
	return 0, false
}
