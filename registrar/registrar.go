/*
# Software Name : SIP Decoy Endpoint (SDE)
# SPDX-FileCopyrightText: Copyright (c) Orange Business - OINIS/Services/NSF
# SPDX-License-Identifier: Apache-2.0
#
# This software is distributed under the Apache-2.0
# See the "LICENSES" directory for more details.
#
# Authors:
# - Moatassem Talaat <moatassem.talaat@orange.com>

---
*/

// Package registrar keeps the append-only record of registered identities.
// Re-registration appends a new binding, expiry is recorded but never
// enforced.
package registrar

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"sdego/global"
)

type Binding struct {
	User      string
	Branch    string
	Expires   int
	CreatedAt time.Time
}

func (b *Binding) String() string {
	return fmt.Sprintf("User: %s, Branch: %s, Expires: %d, At: %s", b.User, b.Branch, b.Expires, b.CreatedAt.Format(time.RFC3339))
}

type Directory struct {
	mu       sync.RWMutex
	bindings []*Binding
	byUser   map[string][]*Binding
	db       *sql.DB
}

func NewDirectory() *Directory {
	return &Directory{byUser: make(map[string][]*Binding)}
}

// OpenJournal mirrors every accepted registration into a sqlite table.
func (dir *Directory) OpenJournal(path string) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return err
	}
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS registrations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user TEXT NOT NULL,
		branch TEXT,
		expires INTEGER,
		created_at TEXT NOT NULL)`)
	if err != nil {
		db.Close()
		return err
	}
	dir.mu.Lock()
	dir.db = db
	dir.mu.Unlock()
	return nil
}

func (dir *Directory) Register(user, branch string, expires int) *Binding {
	bnd := &Binding{User: user, Branch: branch, Expires: expires, CreatedAt: time.Now()}

	dir.mu.Lock()
	dir.bindings = append(dir.bindings, bnd)
	dir.byUser[user] = append(dir.byUser[user], bnd)
	db := dir.db
	dir.mu.Unlock()

	if db != nil {
		_, err := db.Exec("INSERT INTO registrations (user, branch, expires, created_at) VALUES (?, ?, ?, ?)",
			bnd.User, bnd.Branch, bnd.Expires, bnd.CreatedAt.Format(time.RFC3339Nano))
		if err != nil {
			global.LogError(global.LTRegistrar, "Journal insert failed: "+err.Error())
		}
	}

	global.LogInfo(global.LTRegistrar, fmt.Sprintf("Registered identity [%s] branch [%s] expires [%d]", user, branch, expires))
	return bnd
}

func (dir *Directory) Exists(user string) bool {
	dir.mu.RLock()
	defer dir.mu.RUnlock()
	return len(dir.byUser[user]) > 0
}

func (dir *Directory) Lookup(user string) []*Binding {
	dir.mu.RLock()
	defer dir.mu.RUnlock()
	lst := make([]*Binding, len(dir.byUser[user]))
	copy(lst, dir.byUser[user])
	return lst
}

// Snapshot returns all bindings in registration order.
func (dir *Directory) Snapshot() []*Binding {
	dir.mu.RLock()
	defer dir.mu.RUnlock()
	lst := make([]*Binding, len(dir.bindings))
	copy(lst, dir.bindings)
	return lst
}

func (dir *Directory) Close() {
	dir.mu.Lock()
	defer dir.mu.Unlock()
	if dir.db != nil {
		dir.db.Close()
		dir.db = nil
	}
}
