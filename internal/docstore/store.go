// Copyright (C) 2026 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package docstore

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/cardinalhq/ontime/internal/transform"
)

// ErrDatabase marks a failure talking to the document store.
var ErrDatabase = errors.New("database error")

// IndexFields are the ascending indexes every collection carries.
var IndexFields = []string{
	"flight_info.airline",
	"airport_info.origin",
	"flight_info.date",
}

// Store is one open connection to a document store.
type Store interface {
	InsertMany(ctx context.Context, collection string, docs []transform.FlightDocument) error
	// EnsureIndex creates an ascending index on a dotted field path. It is a
	// no-op when the index already exists.
	EnsureIndex(ctx context.Context, collection, field string) error
	Close(ctx context.Context) error
}

// Opener connects to a store. Each Load call opens its own connection.
type Opener func(ctx context.Context) (Store, error)

// NewOpener picks a backend from the URI scheme. database is used by
// backends whose URI does not name one.
func NewOpener(uri, database string) (Opener, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("parse docstore uri: %w", err)
	}
	switch u.Scheme {
	case "mongodb", "mongodb+srv":
		return func(ctx context.Context) (Store, error) {
			return OpenMongo(ctx, uri, database)
		}, nil
	case "postgres", "postgresql":
		return func(ctx context.Context) (Store, error) {
			return OpenPostgres(ctx, uri)
		}, nil
	case "":
		return nil, errors.New("docstore uri is required")
	default:
		return nil, fmt.Errorf("unsupported docstore scheme %q", u.Scheme)
	}
}
