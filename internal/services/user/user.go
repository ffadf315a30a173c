// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Package user implements the user registry (U, §4.6): a hash-indexed
// user store plus a transient in-memory login table.
package user

import (
	"fmt"
	"math"
	"path/filepath"
	"sync"

	"github.com/jontk/ticketd/internal/hashkey"
	"github.com/jontk/ticketd/internal/storage/bptree"
	"github.com/jontk/ticketd/pkg/logging"
	"github.com/jontk/ticketd/pkg/ticketerr"
)

// Options configures a Service's backing files and storage tuning.
type Options struct {
	DataDir       string
	NodeFanout    int
	BlockCapacity int
	CacheK        int
	CacheCapacity int
	Logger        logging.Logger
}

// Service is the user registry: persistent user records plus the
// transient login table (§3 Login entry, §4.6).
type Service struct {
	mu    sync.Mutex
	tree  *bptree.Tree[uint64, Record]
	login map[string]int32
	log   logging.Logger
}

// Open opens or creates the backing B+-tree files under opts.DataDir.
func Open(opts Options) (*Service, error) {
	log := opts.Logger
	if log == nil {
		log = logging.NoOpLogger{}
	}
	tree, err := bptree.Open[uint64, Record](
		filepath.Join(opts.DataDir, "users_user_node"),
		filepath.Join(opts.DataDir, "users_user_data"),
		bptree.Options[uint64, Record]{
			NodeFanout:    opts.NodeFanout,
			BlockCapacity: opts.BlockCapacity,
			KeyCodec:      bptree.Uint64Codec{},
			ValueCodec:    recordCodec{},
			KeyLess:       bptree.LessUint64,
			ValueLess:     recordLess,
			MaxKey:        math.MaxUint64,
			CacheK:        opts.CacheK,
			CacheCapacity: opts.CacheCapacity,
			Logger:        log,
		})
	if err != nil {
		return nil, fmt.Errorf("user: open store: %w", err)
	}
	return &Service{tree: tree, login: make(map[string]int32), log: log}, nil
}

// Close flushes and closes the backing store.
func (s *Service) Close() error { return s.tree.Close() }

func (s *Service) lookup(username string) (Record, bool, error) {
	matches, err := s.tree.Find(hashkey.Hash(username))
	if err != nil {
		return Record{}, false, fmt.Errorf("user: lookup %q: %w", username, err)
	}
	for _, m := range matches {
		if m.Username == username {
			return m, true, nil
		}
	}
	return Record{}, false, nil
}

// AddUser registers a new user (§4.6 addUser). If the store is empty,
// the request succeeds unconditionally and privilege is forced to 10 —
// the bootstrap root account. Otherwise cur must be logged in with
// strictly greater privilege than the requested one, and username must
// be free.
func (s *Service) AddUser(cur, username, password, name, mail string, privilege int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	empty, err := s.tree.IsEmpty()
	if err != nil {
		return fmt.Errorf("user: check empty: %w", err)
	}

	if empty {
		privilege = 10
	} else {
		curPriv, ok := s.login[cur]
		if !ok {
			return ticketerr.New(ticketerr.CodeNotLoggedIn, "addUser requires an active session")
		}
		if curPriv <= privilege {
			return ticketerr.New(ticketerr.CodePermissionDenied, "cannot grant privilege ≥ your own")
		}
		if _, exists, err := s.lookup(username); err != nil {
			return err
		} else if exists {
			return ticketerr.New(ticketerr.CodeDuplicateUser, "username already exists")
		}
	}

	rec := Record{
		Username:     username,
		PasswordHash: hashkey.Hash(password),
		Name:         name,
		Mail:         mail,
		Privilege:    privilege,
	}
	if err := s.tree.Insert(hashkey.Hash(username), rec); err != nil {
		return fmt.Errorf("user: insert: %w", err)
	}
	s.log.Debug("user added", "username", username, "privilege", privilege)
	return nil
}

// Login requires an exact password-hash match and that username is not
// already logged in (§4.6 login).
func (s *Service) Login(username, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.login[username]; ok {
		return ticketerr.New(ticketerr.CodeAlreadyLoggedIn, "user already logged in")
	}
	rec, ok, err := s.lookup(username)
	if err != nil {
		return err
	}
	if !ok {
		return ticketerr.New(ticketerr.CodeUserNotFound, "no such user")
	}
	if rec.PasswordHash != hashkey.Hash(password) {
		return ticketerr.New(ticketerr.CodeInvalidCredential, "wrong password")
	}
	s.login[username] = rec.Privilege
	return nil
}

// Logout requires that username is currently logged in (§4.6 logout).
func (s *Service) Logout(username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.login[username]; !ok {
		return ticketerr.New(ticketerr.CodeNotLoggedIn, "user is not logged in")
	}
	delete(s.login, username)
	return nil
}

// QueryProfile requires cur to be logged in; allowed iff cur==username
// or cur's privilege strictly exceeds the stored user's (§4.6).
func (s *Service) QueryProfile(cur, username string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	curPriv, ok := s.login[cur]
	if !ok {
		return Record{}, ticketerr.New(ticketerr.CodeNotLoggedIn, "queryProfile requires an active session")
	}
	rec, ok, err := s.lookup(username)
	if err != nil {
		return Record{}, err
	}
	if !ok {
		return Record{}, ticketerr.New(ticketerr.CodeUserNotFound, "no such user")
	}
	if cur != username && curPriv <= rec.Privilege {
		return Record{}, ticketerr.New(ticketerr.CodePermissionDenied, "insufficient privilege to view this profile")
	}
	return rec, nil
}

// ProfileUpdate carries the optional fields of a modifyProfile request;
// a nil field is left unchanged.
type ProfileUpdate struct {
	Password  *string
	Name      *string
	Mail      *string
	Privilege *int32
}

// ModifyProfile applies the same ACL as QueryProfile, plus — when a new
// privilege is requested — cur's privilege must strictly exceed it
// (§4.6 modifyProfile).
func (s *Service) ModifyProfile(cur, username string, upd ProfileUpdate) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	curPriv, ok := s.login[cur]
	if !ok {
		return Record{}, ticketerr.New(ticketerr.CodeNotLoggedIn, "modifyProfile requires an active session")
	}
	rec, ok, err := s.lookup(username)
	if err != nil {
		return Record{}, err
	}
	if !ok {
		return Record{}, ticketerr.New(ticketerr.CodeUserNotFound, "no such user")
	}
	if cur != username && curPriv <= rec.Privilege {
		return Record{}, ticketerr.New(ticketerr.CodePermissionDenied, "insufficient privilege to modify this profile")
	}
	if upd.Privilege != nil && curPriv <= *upd.Privilege {
		return Record{}, ticketerr.New(ticketerr.CodePermissionDenied, "cannot grant privilege ≥ your own")
	}

	updated := rec
	if upd.Password != nil {
		updated.PasswordHash = hashkey.Hash(*upd.Password)
	}
	if upd.Name != nil {
		updated.Name = *upd.Name
	}
	if upd.Mail != nil {
		updated.Mail = *upd.Mail
	}
	if upd.Privilege != nil {
		updated.Privilege = *upd.Privilege
	}

	key := hashkey.Hash(username)
	if err := s.tree.Remove(key, rec); err != nil {
		return Record{}, fmt.Errorf("user: remove old record: %w", err)
	}
	if err := s.tree.Insert(key, updated); err != nil {
		return Record{}, fmt.Errorf("user: insert updated record: %w", err)
	}
	if _, loggedIn := s.login[username]; loggedIn {
		s.login[username] = updated.Privilege
	}
	return updated, nil
}

// Clean wipes the login table and the user store (§4.6 clean).
func (s *Service) Clean() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.login = make(map[string]int32)
	if err := s.tree.Clear(); err != nil {
		return fmt.Errorf("user: clear store: %w", err)
	}
	return nil
}
