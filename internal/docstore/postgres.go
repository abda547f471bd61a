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
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/pgx-contrib/pgxotel"

	"github.com/cardinalhq/ontime/internal/transform"
)

// PostgresStore keeps each collection as a table of JSONB documents.
type PostgresStore struct {
	conn   *pgx.Conn
	tables map[string]bool
}

var _ Store = (*PostgresStore)(nil)

// OpenPostgres connects using a postgres:// URI; the database comes from the URI.
func OpenPostgres(ctx context.Context, uri string) (*PostgresStore, error) {
	cfg, err := pgx.ParseConfig(uri)
	if err != nil {
		return nil, err
	}
	cfg.Tracer = &pgxotel.QueryTracer{
		Name: "docstore",
	}
	conn, err := pgx.ConnectConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &PostgresStore{conn: conn, tables: map[string]bool{}}, nil
}

func (s *PostgresStore) ensureTable(ctx context.Context, collection string) error {
	if s.tables[collection] {
		return nil
	}
	sql := fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (id bigserial PRIMARY KEY, doc jsonb NOT NULL)",
		pgx.Identifier{collection}.Sanitize())
	if _, err := s.conn.Exec(ctx, sql); err != nil {
		return fmt.Errorf("create table %s: %w", collection, err)
	}
	s.tables[collection] = true
	return nil
}

func (s *PostgresStore) InsertMany(ctx context.Context, collection string, docs []transform.FlightDocument) error {
	if err := s.ensureTable(ctx, collection); err != nil {
		return err
	}
	_, err := s.conn.CopyFrom(ctx,
		pgx.Identifier{collection},
		[]string{"doc"},
		pgx.CopyFromSlice(len(docs), func(i int) ([]any, error) {
			b, err := json.Marshal(docs[i])
			if err != nil {
				return nil, err
			}
			return []any{string(b)}, nil
		}),
	)
	return err
}

// EnsureIndex indexes the text value at a dotted JSON path.
func (s *PostgresStore) EnsureIndex(ctx context.Context, collection, field string) error {
	if err := s.ensureTable(ctx, collection); err != nil {
		return err
	}
	sql := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s ((doc #>> '%s'))",
		pgx.Identifier{indexName(collection, field)}.Sanitize(),
		pgx.Identifier{collection}.Sanitize(),
		jsonPath(field))
	_, err := s.conn.Exec(ctx, sql)
	return err
}

func (s *PostgresStore) Close(ctx context.Context) error {
	return s.conn.Close(ctx)
}

// jsonPath turns "a.b" into the text array literal {a,b}.
func jsonPath(field string) string {
	parts := strings.Split(field, ".")
	for i, p := range parts {
		parts[i] = strings.ReplaceAll(p, "'", "''")
	}
	return "{" + strings.Join(parts, ",") + "}"
}

func indexName(collection, field string) string {
	return collection + "_" + strings.ReplaceAll(field, ".", "_") + "_idx"
}
