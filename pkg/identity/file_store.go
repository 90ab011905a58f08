// Copyright 2025 ZapAuth Authors
// SPDX-License-Identifier: Apache-2.0

package identity

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// FileStore stores identities in JSON files on disk
// Layout:
//
//	<basePath>/
//	  users/
//	    alice.json
//	    bob.json
type FileStore struct {
	basePath string
	mu       sync.RWMutex
}

type userFile struct {
	Identity *Identity `json:"identity"`
}

// NewFileStore creates a new file-based identity store
func NewFileStore(basePath string) (*FileStore, error) {
	store := &FileStore{basePath: basePath}

	if err := os.MkdirAll(filepath.Join(basePath, "users"), 0700); err != nil {
		return nil, err
	}

	return store, nil
}

func (s *FileStore) FindByUsername(ctx context.Context, username string) (*Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.readUserFile(username)
}

func (s *FileStore) Create(ctx context.Context, identity *Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	userPath := s.userFilePath(identity.Name)

	if _, err := os.Stat(userPath); err == nil {
		return ErrAlreadyExists
	}

	now := time.Now()
	if identity.CreatedAt.IsZero() {
		identity.CreatedAt = now
	}
	identity.UpdatedAt = now

	return s.writeUserFile(identity)
}

func (s *FileStore) Update(ctx context.Context, identity *Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.userFilePath(identity.Name)); err != nil {
		return ErrNotFound
	}

	identity.UpdatedAt = time.Now()
	return s.writeUserFile(identity)
}

func (s *FileStore) userFilePath(username string) string {
	// Usernames come from directory attributes; keep them from escaping
	// the users directory.
	safe := strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(username)
	return filepath.Join(s.basePath, "users", safe+".json")
}

func (s *FileStore) readUserFile(username string) (*Identity, error) {
	data, err := os.ReadFile(s.userFilePath(username))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var uf userFile
	if err := json.Unmarshal(data, &uf); err != nil {
		return nil, err
	}
	if uf.Identity == nil {
		return nil, ErrNotFound
	}

	return uf.Identity, nil
}

func (s *FileStore) writeUserFile(identity *Identity) error {
	data, err := json.MarshalIndent(userFile{Identity: identity}, "", "  ")
	if err != nil {
		return err
	}

	// Write to temp file then rename for atomicity
	path := s.userFilePath(identity.Name)
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}
