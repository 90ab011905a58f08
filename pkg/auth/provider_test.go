// Copyright 2025 ZapAuth Authors
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"context"
	"crypto/tls"
	"errors"
	"testing"

	"github.com/go-ldap/ldap/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeeDigitalWorks/zapauth/pkg/directory"
	"github.com/LeeDigitalWorks/zapauth/pkg/identity"
)

// fakeDirectory behaves like a small LDAP server: it accepts binds for the
// DNs in passwords, answers subtree searches with its entries, and answers
// the base-scoped admin probe for DNs in adminDNs. Every Dial hands out a
// fresh connection, and the fake counts opens and closes so tests can
// assert that no connection leaks on any path.
type fakeDirectory struct {
	passwords map[string]string
	entries   []*ldap.Entry
	adminDNs  map[string]bool

	dials  int
	closes int
}

func (d *fakeDirectory) Dial(ctx context.Context, cfg *directory.Config, ep directory.Endpoint) (directory.Conn, error) {
	d.dials++
	return &fakeDirConn{dir: d}, nil
}

type fakeDirConn struct {
	dir     *fakeDirectory
	boundDN string
	bound   bool
}

func (c *fakeDirConn) Bind(dn, password string) error {
	if want, ok := c.dir.passwords[dn]; ok && want == password {
		c.boundDN = dn
		c.bound = true
		return nil
	}
	return &ldap.Error{ResultCode: ldap.LDAPResultInvalidCredentials, Err: errors.New("invalid credentials")}
}

func (c *fakeDirConn) UnauthenticatedBind(dn string) error {
	c.boundDN = ""
	c.bound = true
	return nil
}

func (c *fakeDirConn) Search(req *ldap.SearchRequest) (*ldap.SearchResult, error) {
	if !c.bound {
		return nil, &ldap.Error{ResultCode: ldap.LDAPResultInsufficientAccessRights, Err: errors.New("not bound")}
	}
	if req.Scope == ldap.ScopeBaseObject {
		// Admin probe: the filter matches iff the DN is in adminDNs.
		if c.dir.adminDNs[req.BaseDN] {
			return &ldap.SearchResult{Entries: []*ldap.Entry{ldap.NewEntry(req.BaseDN, nil)}}, nil
		}
		return &ldap.SearchResult{}, nil
	}
	return &ldap.SearchResult{Entries: c.dir.entries}, nil
}

func (c *fakeDirConn) SearchWithPaging(req *ldap.SearchRequest, pagingSize uint32) (*ldap.SearchResult, error) {
	return c.Search(req)
}

func (c *fakeDirConn) StartTLS(config *tls.Config) error { return nil }
func (c *fakeDirConn) IsClosing() bool                   { return false }

func (c *fakeDirConn) Close() error {
	c.dir.closes++
	return nil
}

const (
	serviceDN = "cn=service,dc=example,dc=com"
	aliceDN   = "uid=alice,dc=example,dc=com"
)

func exampleDirectory() *fakeDirectory {
	return &fakeDirectory{
		passwords: map[string]string{
			serviceDN: "service-pw",
			aliceDN:   "correct-pw",
		},
		entries: []*ldap.Entry{
			ldap.NewEntry(aliceDN, map[string][]string{"uid": {"alice"}}),
		},
		adminDNs: map[string]bool{},
	}
}

func exampleConfig() Config {
	return Config{
		Directory: directory.Config{
			Host:          "ldap.example.com",
			BaseDN:        "dc=example,dc=com",
			BindDN:        serviceDN,
			BindPassword:  "service-pw",
			Filter:        "(uid=*)",
			UsernameAttrs: []string{"uid"},
		},
		AutoCreate: true,
	}
}

func newTestProvider(cfg Config, dir *fakeDirectory, store identity.Store) *Provider {
	p := New(cfg, store)
	p.Dialer = dir
	return p
}

func TestAuthenticate_Success(t *testing.T) {
	t.Parallel()

	dir := exampleDirectory()
	store := identity.NewMemoryStore()
	p := newTestProvider(exampleConfig(), dir, store)

	outcome, err := p.Authenticate(context.Background(), "alice", "correct-pw")
	require.NoError(t, err)
	assert.Equal(t, "alice", outcome.Username)
	assert.False(t, outcome.Admin)

	// A local identity was provisioned from the directory login.
	record, err := store.FindByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.False(t, record.Admin)
	assert.NotEmpty(t, record.ID)

	assert.Equal(t, dir.dials, dir.closes, "every opened connection must be released")
	assert.Equal(t, 2, dir.dials, "service search plus user bind")
}

func TestAuthenticate_WrongPassword(t *testing.T) {
	t.Parallel()

	dir := exampleDirectory()
	store := identity.NewMemoryStore()
	p := newTestProvider(exampleConfig(), dir, store)

	_, err := p.Authenticate(context.Background(), "alice", "wrong-pw")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	// No identity mutation on a failed attempt.
	_, err = store.FindByUsername(context.Background(), "alice")
	assert.ErrorIs(t, err, identity.ErrNotFound)

	assert.Equal(t, dir.dials, dir.closes)
}

func TestAuthenticate_UnknownUser(t *testing.T) {
	t.Parallel()

	dir := exampleDirectory()
	p := newTestProvider(exampleConfig(), dir, identity.NewMemoryStore())

	_, err := p.Authenticate(context.Background(), "mallory", "whatever")
	assert.ErrorIs(t, err, ErrInvalidCredentials,
		"unknown user and wrong password must be externally indistinguishable")
	assert.Equal(t, dir.dials, dir.closes)
}

func TestAuthenticate_ServiceBindFailureIsDistinguishable(t *testing.T) {
	t.Parallel()

	dir := exampleDirectory()
	cfg := exampleConfig()
	cfg.Directory.BindPassword = "rotated-away"
	p := newTestProvider(cfg, dir, identity.NewMemoryStore())

	_, err := p.Authenticate(context.Background(), "alice", "correct-pw")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidCredentials,
		"service misconfiguration must not look like a bad user login")
	assert.ErrorIs(t, err, directory.ErrBind)
	assert.Equal(t, dir.dials, dir.closes)
}

func TestAuthenticate_ProvisioningDisabled(t *testing.T) {
	t.Parallel()

	dir := exampleDirectory()
	store := identity.NewMemoryStore()
	cfg := exampleConfig()
	cfg.AutoCreate = false
	p := newTestProvider(cfg, dir, store)

	_, err := p.Authenticate(context.Background(), "alice", "correct-pw")
	assert.ErrorIs(t, err, ErrProvisioningDisabled)

	_, err = store.FindByUsername(context.Background(), "alice")
	assert.ErrorIs(t, err, identity.ErrNotFound, "no record may be created when provisioning is off")
}

func TestAuthenticate_ProvisioningIsIdempotent(t *testing.T) {
	t.Parallel()

	dir := exampleDirectory()
	store := identity.NewMemoryStore()
	cfg := exampleConfig()
	cfg.DefaultAllFolders = true
	cfg.DefaultFolders = []string{"music"}
	p := newTestProvider(cfg, dir, store)

	first, err := p.Authenticate(context.Background(), "alice", "correct-pw")
	require.NoError(t, err)
	assert.True(t, first.AllFolders)
	assert.Equal(t, []string{"music"}, first.Folders)

	firstRecord, err := store.FindByUsername(context.Background(), "alice")
	require.NoError(t, err)

	second, err := p.Authenticate(context.Background(), "alice", "correct-pw")
	require.NoError(t, err)
	assert.Equal(t, first.Username, second.Username)

	secondRecord, err := store.FindByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, firstRecord.ID, secondRecord.ID, "repeated logins must not provision twice")
}

// racingStore simulates losing a provisioning race: the first lookup misses,
// Create collides with a record a concurrent login inserted, and the
// re-fetch sees that record.
type racingStore struct {
	winner  *identity.Identity
	lookups int
	creates int
}

func (s *racingStore) FindByUsername(ctx context.Context, username string) (*identity.Identity, error) {
	s.lookups++
	if s.lookups == 1 {
		return nil, identity.ErrNotFound
	}
	return s.winner.Clone(), nil
}

func (s *racingStore) Create(ctx context.Context, id *identity.Identity) error {
	s.creates++
	return identity.ErrAlreadyExists
}

func (s *racingStore) Update(ctx context.Context, id *identity.Identity) error {
	return nil
}

func TestAuthenticate_ProvisioningRaceReusesWinner(t *testing.T) {
	t.Parallel()

	dir := exampleDirectory()
	store := &racingStore{
		winner: &identity.Identity{ID: "winner-id", Name: "alice"},
	}
	p := newTestProvider(exampleConfig(), dir, store)

	outcome, err := p.Authenticate(context.Background(), "alice", "correct-pw")
	require.NoError(t, err, "losing the provisioning race must still log the user in")
	assert.Equal(t, "alice", outcome.Username)
	assert.Equal(t, 1, store.creates)
	assert.Equal(t, 2, store.lookups, "the existing record is re-fetched after the collision")
	assert.Equal(t, dir.dials, dir.closes)
}

func TestAuthenticate_AdminFilterActive(t *testing.T) {
	t.Parallel()

	dir := exampleDirectory()
	dir.adminDNs[aliceDN] = true
	store := identity.NewMemoryStore()
	cfg := exampleConfig()
	cfg.Directory.AdminFilter = "(memberOf=cn=admins,dc=example,dc=com)"
	p := newTestProvider(cfg, dir, store)

	outcome, err := p.Authenticate(context.Background(), "alice", "correct-pw")
	require.NoError(t, err)
	assert.True(t, outcome.Admin)

	record, err := store.FindByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.True(t, record.Admin)
}

func TestAuthenticate_AdminFlagSyncedOnMismatch(t *testing.T) {
	t.Parallel()

	dir := exampleDirectory() // alice is not in adminDNs
	store := identity.NewMemoryStore()
	require.NoError(t, store.Create(context.Background(), &identity.Identity{
		ID: "id-1", Name: "alice", Admin: true,
	}))

	cfg := exampleConfig()
	cfg.Directory.AdminFilter = "(memberOf=cn=admins,dc=example,dc=com)"
	p := newTestProvider(cfg, dir, store)

	outcome, err := p.Authenticate(context.Background(), "alice", "correct-pw")
	require.NoError(t, err)
	assert.False(t, outcome.Admin)

	record, err := store.FindByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.False(t, record.Admin, "stored flag must follow the directory while the filter is active")
}

func TestAuthenticate_AdminSentinelLeavesFlagUntouched(t *testing.T) {
	t.Parallel()

	dir := exampleDirectory() // directory would say "not admin"
	store := identity.NewMemoryStore()
	require.NoError(t, store.Create(context.Background(), &identity.Identity{
		ID: "id-1", Name: "alice", Admin: true,
	}))

	cfg := exampleConfig()
	cfg.Directory.AdminFilter = "none"
	p := newTestProvider(cfg, dir, store)

	outcome, err := p.Authenticate(context.Background(), "alice", "correct-pw")
	require.NoError(t, err)
	assert.True(t, outcome.Admin, "outcome reflects the untouched local flag")

	record, err := store.FindByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.True(t, record.Admin, "the stored flag is not directory-authoritative in this mode")
}

func TestChangePassword_Unsupported(t *testing.T) {
	t.Parallel()

	p := New(exampleConfig(), identity.NewMemoryStore())
	err := p.ChangePassword(context.Background(), "alice", "old", "new")
	assert.ErrorIs(t, err, ErrPasswordChangeUnsupported)
}

func TestHasStoredPassword(t *testing.T) {
	t.Parallel()

	p := New(exampleConfig(), identity.NewMemoryStore())
	assert.True(t, p.HasStoredPassword(&identity.Identity{Name: "alice"}))
}

func TestAuthenticate_InvalidConfiguration(t *testing.T) {
	t.Parallel()

	cfg := exampleConfig()
	cfg.Directory.Host = ""
	p := newTestProvider(cfg, exampleDirectory(), identity.NewMemoryStore())

	_, err := p.Authenticate(context.Background(), "alice", "correct-pw")
	assert.ErrorIs(t, err, directory.ErrConnection)
}
