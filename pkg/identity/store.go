// Copyright 2025 ZapAuth Authors
// SPDX-License-Identifier: Apache-2.0

// Package identity persists the local user records that directory
// authentication reconciles against: who exists locally, whether they are
// an administrator, and which folders they may access.
package identity

import (
	"context"
	"errors"
)

var (
	ErrNotFound      = errors.New("identity not found")
	ErrAlreadyExists = errors.New("identity already exists")
)

// Store is the narrow create/read/update contract the authentication core
// consults. Deletion and enumeration are administrative concerns handled
// elsewhere.
type Store interface {
	// FindByUsername retrieves an identity by its local username.
	FindByUsername(ctx context.Context, username string) (*Identity, error)

	// Create persists a new identity. ErrAlreadyExists when the username
	// is taken; callers racing on the same username re-fetch on that.
	Create(ctx context.Context, identity *Identity) error

	// Update persists changes to an existing identity.
	Update(ctx context.Context, identity *Identity) error
}
