// Copyright 2025 ZapAuth Authors
// SPDX-License-Identifier: Apache-2.0

// Package context carries a per-attempt correlation ID so the log lines
// of one authentication attempt can be tied together.
package context

import (
	"context"

	"github.com/google/uuid"
)

type AttemptID struct{}

// WithUUID attaches a fresh attempt ID to the context, reusing one that is
// already present.
func WithUUID(c context.Context) (context.Context, string) {
	if id := c.Value(AttemptID{}); id != nil {
		return c, id.(string)
	}
	newID := uuid.New().String()
	c = context.WithValue(c, AttemptID{}, newID)
	return c, newID
}

// ID returns the attempt ID carried by the context, or empty when none
// was attached.
func ID(c context.Context) string {
	if id := c.Value(AttemptID{}); id != nil {
		return id.(string)
	}
	return ""
}
