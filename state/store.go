// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package state stores contract slots and native balances in a luxfi
// database and groups writes into atomic transactions.
package state

import (
	"errors"
	"fmt"
	"sync"

	"github.com/holiman/uint256"
	"github.com/luxfi/database"
	"github.com/luxfi/database/memdb"
	"github.com/luxfi/database/versiondb"
	"github.com/luxfi/geth/common"

	"github.com/luxfi/twap/errs"
	"github.com/luxfi/twap/event"
)

// StateDB is the view every pair, oracle, queue and token operation runs
// against.
type StateDB interface {
	GetState(addr common.Address, key common.Hash) common.Hash
	SetState(addr common.Address, key common.Hash, value common.Hash)
	GetBalance(addr common.Address) *uint256.Int
	AddBalance(addr common.Address, amount *uint256.Int)
	SubBalance(addr common.Address, amount *uint256.Int)
	Emit(ev event.Event)
	Snapshot() int
	RevertToSnapshot(id int)
}

var (
	slotPrefix    = []byte{'s'}
	balancePrefix = []byte{'b'}

	// ErrTxClosed is returned when a finished transaction is reused.
	ErrTxClosed = errors.New("transaction already closed")
)

// Store owns the backing database and the event sinks.
type Store struct {
	db database.Database

	mu    sync.RWMutex
	sinks []event.Sink
}

// New wraps db.
func New(db database.Database, sinks ...event.Sink) *Store {
	return &Store{db: db, sinks: sinks}
}

// NewMemory returns a store backed by an in-memory database.
func NewMemory(sinks ...event.Sink) *Store {
	return New(memdb.New(), sinks...)
}

// AddSink registers a sink for committed events.
func (s *Store) AddSink(sink event.Sink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sinks = append(s.sinks, sink)
}

// Begin opens a transaction layered over the store.
func (s *Store) Begin() *Tx {
	return &Tx{store: s, db: versiondb.New(s.db)}
}

// Update runs fn in a transaction, committing when fn returns nil.
func (s *Store) Update(fn func(tx *Tx) error) error {
	tx := s.Begin()
	if err := fn(tx); err != nil {
		tx.Abort()
		return err
	}
	return tx.Commit()
}

// View runs fn against a transaction that is always discarded.
func (s *Store) View(fn func(st StateDB) error) error {
	tx := s.Begin()
	defer tx.Abort()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Err()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) deliver(events []event.Event) {
	s.mu.RLock()
	sinks := s.sinks
	s.mu.RUnlock()
	for _, ev := range events {
		for _, sink := range sinks {
			sink.Handle(ev)
		}
	}
}

type journalEntry struct {
	key  []byte
	prev []byte // nil when the key was absent
}

type snapshot struct {
	journal int
	events  int
}

// Tx is a journaled transaction. Database errors are latched and reported
// by Err and Commit.
type Tx struct {
	store *Store
	db    *versiondb.Database

	journal   []journalEntry
	snapshots []snapshot
	events    []event.Event

	err    error
	closed bool
}

var _ StateDB = (*Tx)(nil)

func slotKey(addr common.Address, key common.Hash) []byte {
	k := make([]byte, 0, 1+common.AddressLength+common.HashLength)
	k = append(k, slotPrefix...)
	k = append(k, addr.Bytes()...)
	return append(k, key.Bytes()...)
}

func balanceKey(addr common.Address) []byte {
	k := make([]byte, 0, 1+common.AddressLength)
	k = append(k, balancePrefix...)
	return append(k, addr.Bytes()...)
}

func (t *Tx) setErr(err error) {
	if t.err == nil {
		t.err = err
	}
}

func (t *Tx) get(key []byte) []byte {
	v, err := t.db.Get(key)
	if err != nil {
		if !errors.Is(err, database.ErrNotFound) {
			t.setErr(err)
		}
		return nil
	}
	return v
}

func (t *Tx) put(key, value []byte) {
	if t.closed {
		t.setErr(ErrTxClosed)
		return
	}
	t.journal = append(t.journal, journalEntry{key: key, prev: t.get(key)})
	t.write(key, value)
}

func (t *Tx) write(key, value []byte) {
	var err error
	if value == nil {
		err = t.db.Delete(key)
	} else {
		err = t.db.Put(key, value)
	}
	if err != nil {
		t.setErr(err)
	}
}

// GetState reads a slot; missing slots are zero.
func (t *Tx) GetState(addr common.Address, key common.Hash) common.Hash {
	return common.BytesToHash(t.get(slotKey(addr, key)))
}

// SetState writes a slot; zero values delete it.
func (t *Tx) SetState(addr common.Address, key common.Hash, value common.Hash) {
	if value == (common.Hash{}) {
		t.put(slotKey(addr, key), nil)
		return
	}
	t.put(slotKey(addr, key), value.Bytes())
}

// GetBalance reads the native balance of addr.
func (t *Tx) GetBalance(addr common.Address) *uint256.Int {
	return new(uint256.Int).SetBytes(t.get(balanceKey(addr)))
}

func (t *Tx) setBalance(addr common.Address, v *uint256.Int) {
	if v.IsZero() {
		t.put(balanceKey(addr), nil)
		return
	}
	b := v.Bytes32()
	t.put(balanceKey(addr), b[:])
}

// AddBalance credits native value.
func (t *Tx) AddBalance(addr common.Address, amount *uint256.Int) {
	bal, overflow := new(uint256.Int).AddOverflow(t.GetBalance(addr), amount)
	if overflow {
		t.setErr(fmt.Errorf("balance of %s: %w", addr.Hex(), errs.ErrOverflow))
		return
	}
	t.setBalance(addr, bal)
}

// SubBalance debits native value. Callers check the balance first; an
// underflow poisons the transaction.
func (t *Tx) SubBalance(addr common.Address, amount *uint256.Int) {
	bal := t.GetBalance(addr)
	if bal.Lt(amount) {
		t.setErr(fmt.Errorf("balance of %s: %w", addr.Hex(), errs.ErrUnderflow))
		return
	}
	t.setBalance(addr, bal.Sub(bal, amount))
}

// Emit buffers an event until commit.
func (t *Tx) Emit(ev event.Event) {
	t.events = append(t.events, ev)
}

// Events returns the events buffered so far.
func (t *Tx) Events() []event.Event {
	out := make([]event.Event, len(t.events))
	copy(out, t.events)
	return out
}

// Snapshot marks the current point of the journal.
func (t *Tx) Snapshot() int {
	t.snapshots = append(t.snapshots, snapshot{journal: len(t.journal), events: len(t.events)})
	return len(t.snapshots) - 1
}

// RevertToSnapshot undoes every write and event after snapshot id.
func (t *Tx) RevertToSnapshot(id int) {
	if id < 0 || id >= len(t.snapshots) {
		t.setErr(fmt.Errorf("invalid snapshot %d", id))
		return
	}
	snap := t.snapshots[id]
	for i := len(t.journal) - 1; i >= snap.journal; i-- {
		entry := t.journal[i]
		t.write(entry.key, entry.prev)
	}
	t.journal = t.journal[:snap.journal]
	t.events = t.events[:snap.events]
	t.snapshots = t.snapshots[:id]
}

// Err returns the first database error seen by the transaction.
func (t *Tx) Err() error {
	return t.err
}

// Commit writes the transaction atomically and delivers its events.
func (t *Tx) Commit() error {
	if t.closed {
		return ErrTxClosed
	}
	if t.err != nil {
		t.Abort()
		return t.err
	}
	t.closed = true
	if err := t.db.Commit(); err != nil {
		t.db.Abort()
		return err
	}
	t.store.deliver(t.events)
	return nil
}

// Abort discards the transaction.
func (t *Tx) Abort() {
	if t.closed {
		return
	}
	t.closed = true
	t.db.Abort()
}
