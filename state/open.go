// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package state

import (
	"fmt"

	"github.com/luxfi/database"
	"github.com/luxfi/database/badgerdb"
	"github.com/luxfi/database/memdb"

	"github.com/luxfi/twap/errs"
	"github.com/luxfi/twap/event"
)

// Database backends accepted by Open.
const (
	Memory = "memory"
	Badger = "badger"
)

// Open returns a store on the named backend. Badger keeps its files under
// path.
func Open(kind, path string, sinks ...event.Sink) (*Store, error) {
	var (
		db  database.Database
		err error
	)
	switch kind {
	case "", Memory:
		db = memdb.New()
	case Badger:
		if path == "" {
			return nil, fmt.Errorf("%w: badger needs a path", errs.ErrInvalidConfig)
		}
		db, err = badgerdb.New(path, nil, "", nil)
		if err != nil {
			return nil, fmt.Errorf("open badger at %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("%w: unknown database %q", errs.ErrInvalidConfig, kind)
	}
	return New(db, sinks...), nil
}
