// Copyright 2025 ZapAuth Authors
// SPDX-License-Identifier: Apache-2.0

// Package auth sequences directory authentication: service-account bind,
// user location, credential verification via user bind, admin
// determination, and reconciliation with the local identity store.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	zapcontext "github.com/LeeDigitalWorks/zapauth/pkg/context"
	"github.com/LeeDigitalWorks/zapauth/pkg/directory"
	"github.com/LeeDigitalWorks/zapauth/pkg/identity"
	"github.com/LeeDigitalWorks/zapauth/pkg/logger"
)

var (
	// ErrInvalidCredentials is the single external answer for both "no
	// such user" and "wrong password". The two are logged distinctly but
	// deliberately indistinguishable to callers, so failed logins cannot
	// be used to enumerate usernames.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrProvisioningDisabled is returned when the directory verified
	// the user but no local record exists and automatic creation is
	// turned off.
	ErrProvisioningDisabled = errors.New("no local identity and auto-provisioning is disabled")

	// ErrPasswordChangeUnsupported: the directory owns the credential
	// lifecycle, passwords are never stored or changed here.
	ErrPasswordChangeUnsupported = errors.New("password change is not supported for directory users")
)

// Config is one immutable configuration snapshot for an authentication
// attempt.
type Config struct {
	Directory directory.Config

	// AutoCreate provisions a local identity on first successful login.
	AutoCreate bool

	// Folder access granted to newly provisioned identities.
	DefaultAllFolders bool
	DefaultFolders    []string
}

// Outcome is the terminal result of a successful authentication attempt.
// It is only ever fully populated; failures return a classified error
// instead.
type Outcome struct {
	Username   string
	Admin      bool
	AllFolders bool
	Folders    []string
}

// Provider authenticates username/password pairs against a directory
// server and keeps the local identity record in sync with the result.
type Provider struct {
	cfg   Config
	store identity.Store

	// Dialer overrides the directory transport; nil means real LDAP.
	// Exists so tests inject a fake directory.
	Dialer directory.Dialer
}

// New creates a Provider over one configuration snapshot and the identity
// store collaborator.
func New(cfg Config, store identity.Store) *Provider {
	return &Provider{cfg: cfg, store: store}
}

// Authenticate verifies the username/password pair against the directory
// and returns the reconciled outcome. Every connection it opens is closed
// before it returns, on success and on every failure path.
func (p *Provider) Authenticate(ctx context.Context, username, password string) (*Outcome, error) {
	ctx, _ = zapcontext.WithUUID(ctx)
	start := time.Now()
	outcome, err := p.authenticate(ctx, username, password)
	observeAttempt(time.Since(start), err)
	return outcome, err
}

func (p *Provider) authenticate(ctx context.Context, username, password string) (*Outcome, error) {
	cfg := &p.cfg.Directory
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", directory.ErrConnection, err)
	}

	connector := &directory.Connector{Config: cfg, Dialer: p.Dialer}
	serviceCreds := directory.StaticCredentials{DN: cfg.BindDN, Password: cfg.BindPassword}

	// Phase 1: service-account bind + locate. Failures here are either
	// operator misconfiguration (connection/bind classified) or a
	// genuine miss (merged into the invalid-credentials answer).
	conn, err := connector.ConnectAs(ctx, cfg.BindDN, cfg.BindPassword)
	if err != nil {
		logger.Error().Err(err).
			Str("server", cfg.Endpoint().Address()).
			Str("bind_dn", cfg.BindDN).
			Msg("directory service bind failed")
		return nil, err
	}
	defer conn.Close()

	located, err := connector.Locate(ctx, conn, serviceCreds, username)
	if err != nil {
		if errors.Is(err, directory.ErrUserNotFound) {
			logger.Info().Str("attempt_id", zapcontext.ID(ctx)).Str("username", username).Msg("directory login failed: user not found")
			return nil, ErrInvalidCredentials
		}
		logger.Error().Err(err).Str("username", username).Msg("directory user search failed")
		return nil, err
	}

	// Phase 2: verify the caller's password by binding a fresh
	// connection as the located DN. The directory only ever sees the
	// password against an entry we located first.
	userConn, err := connector.ConnectAs(ctx, located.DN, password)
	if err != nil {
		if errors.Is(err, directory.ErrBind) {
			logger.Info().Str("attempt_id", zapcontext.ID(ctx)).Str("username", username).Str("dn", located.DN).
				Msg("directory login failed: password rejected")
			return nil, ErrInvalidCredentials
		}
		logger.Error().Err(err).Str("dn", located.DN).Msg("directory user bind failed")
		return nil, err
	}
	defer userConn.Close()

	// Phase 3: admin determination on the user's own bind.
	adminActive := cfg.AdminCheckEnabled()
	admin := false
	if adminActive {
		userCreds := directory.StaticCredentials{DN: located.DN, Password: password}
		admin, err = connector.IsAdmin(ctx, userConn, userCreds, located.DN)
		if err != nil {
			logger.Error().Err(err).Str("dn", located.DN).Msg("admin determination failed")
			return nil, err
		}
	}

	// Phase 4: reconcile with the local identity record.
	record, err := p.reconcile(ctx, located.Username, admin, adminActive)
	if err != nil {
		return nil, err
	}

	logger.Debug().
		Str("attempt_id", zapcontext.ID(ctx)).
		Str("username", record.Name).
		Bool("admin", record.Admin).
		Msg("directory login succeeded")

	return &Outcome{
		Username:   record.Name,
		Admin:      record.Admin,
		AllFolders: record.AllFolders,
		Folders:    record.Folders,
	}, nil
}

// reconcile looks up the local identity, provisioning it when allowed and
// syncing the admin flag when the admin check is active.
func (p *Provider) reconcile(ctx context.Context, username string, admin, adminActive bool) (*identity.Identity, error) {
	record, err := p.store.FindByUsername(ctx, username)
	if errors.Is(err, identity.ErrNotFound) {
		if !p.cfg.AutoCreate {
			return nil, ErrProvisioningDisabled
		}
		record = &identity.Identity{
			ID:         uuid.NewString(),
			Name:       username,
			Admin:      admin,
			AllFolders: p.cfg.DefaultAllFolders,
			Folders:    append([]string(nil), p.cfg.DefaultFolders...),
		}
		err = p.store.Create(ctx, record)
		if err == nil {
			logger.Info().Str("username", username).Msg("provisioned local identity from directory login")
			return record, nil
		}
		if !errors.Is(err, identity.ErrAlreadyExists) {
			return nil, fmt.Errorf("provision identity %q: %w", username, err)
		}
		// Lost a race with a concurrent login provisioning the same
		// username; the existing record wins.
		record, err = p.store.FindByUsername(ctx, username)
	}
	if err != nil {
		return nil, fmt.Errorf("lookup identity %q: %w", username, err)
	}

	// The directory is only authoritative for the admin flag while the
	// admin check is configured; otherwise the stored flag stands.
	if adminActive && record.Admin != admin {
		record.Admin = admin
		if err := p.store.Update(ctx, record); err != nil {
			return nil, fmt.Errorf("sync admin flag for %q: %w", username, err)
		}
		logger.Info().Str("username", username).Bool("admin", admin).Msg("synced admin flag from directory")
	}

	return record, nil
}

// HasStoredPassword reports whether this provider can verify a password
// for the identity. Always true: the directory holds the credential, no
// local password record is required.
func (p *Provider) HasStoredPassword(*identity.Identity) bool {
	return true
}

// ChangePassword always refuses: the directory owns the credential
// lifecycle.
func (p *Provider) ChangePassword(ctx context.Context, username, oldPassword, newPassword string) error {
	return ErrPasswordChangeUnsupported
}
