package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/roach88/vacatrack/internal/ir"
)

// OpenSnapshot creates the named snapshot if it does not exist.
// Uses ON CONFLICT DO NOTHING, so opening an existing snapshot is a no-op.
func (s *Store) OpenSnapshot(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cache_snapshots (name) VALUES (?)
		ON CONFLICT(name) DO NOTHING
	`, name)
	if err != nil {
		return ir.NewPersistenceError("open snapshot "+name, err)
	}
	return nil
}

// SnapshotNames lists every stored snapshot name in lexical order.
func (s *Store) SnapshotNames(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name FROM cache_snapshots ORDER BY name ASC`)
	if err != nil {
		return nil, ir.NewPersistenceError("list snapshots", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, ir.NewPersistenceError("list snapshots", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, ir.NewPersistenceError("list snapshots", err)
	}
	return names, nil
}

// Snapshots lists every snapshot together with its entry count.
func (s *Store) Snapshots(ctx context.Context) ([]ir.SnapshotInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.name, COUNT(e.key)
		FROM cache_snapshots s
		LEFT JOIN cache_entries e ON e.snapshot = s.name
		GROUP BY s.name
		ORDER BY s.name ASC
	`)
	if err != nil {
		return nil, ir.NewPersistenceError("describe snapshots", err)
	}
	defer rows.Close()

	var infos []ir.SnapshotInfo
	for rows.Next() {
		var info ir.SnapshotInfo
		if err := rows.Scan(&info.Name, &info.Entries); err != nil {
			return nil, ir.NewPersistenceError("describe snapshots", err)
		}
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, ir.NewPersistenceError("describe snapshots", err)
	}
	return infos, nil
}

// DeleteSnapshot removes a snapshot and all of its entries.
// Returns false if the snapshot did not exist.
func (s *Store) DeleteSnapshot(ctx context.Context, name string) (bool, error) {
	var deleted bool
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		// Entries are removed explicitly as well as by the cascade, so the
		// delete stays correct on connections opened without foreign_keys.
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM cache_entries WHERE snapshot = ?`, name); err != nil {
			return fmt.Errorf("delete entries: %w", err)
		}
		result, err := tx.ExecContext(ctx,
			`DELETE FROM cache_snapshots WHERE name = ?`, name)
		if err != nil {
			return fmt.Errorf("delete snapshot: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		deleted = n > 0
		return nil
	})
	if err != nil {
		return false, ir.NewPersistenceError("delete snapshot "+name, err)
	}
	return deleted, nil
}

// Put stores resp under key in the named snapshot, replacing any previous
// entry. The snapshot must already exist; Put never resurrects a snapshot
// that activation removed.
func (s *Store) Put(ctx context.Context, snapshot, key string, resp *ir.Response) error {
	if resp == nil {
		return fmt.Errorf("put %s: nil response", key)
	}
	headers := resp.Header
	if headers == nil {
		headers = http.Header{}
	}
	headersJSON, err := json.Marshal(headers)
	if err != nil {
		return fmt.Errorf("put %s: marshal headers: %w", key, err)
	}
	body := resp.Body
	if body == nil {
		body = []byte{}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO cache_entries (snapshot, key, status, headers, body, content_hash)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(snapshot, key) DO UPDATE SET
			status = excluded.status,
			headers = excluded.headers,
			body = excluded.body,
			content_hash = excluded.content_hash
	`, snapshot, key, resp.Status, string(headersJSON), body, ir.ContentHash(body))
	if err != nil {
		return ir.NewPersistenceError(fmt.Sprintf("put %s in %s", key, snapshot), err)
	}
	return nil
}

// Match returns the cached response for key in the named snapshot.
// An absent entry yields an ir CacheMiss error, which callers treat as the
// signal to go to the network rather than as a failure.
func (s *Store) Match(ctx context.Context, snapshot, key string) (*ir.Response, error) {
	var (
		resp        ir.Response
		headersJSON string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT status, headers, body FROM cache_entries
		WHERE snapshot = ? AND key = ?
	`, snapshot, key).Scan(&resp.Status, &headersJSON, &resp.Body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ir.NewCacheMiss(snapshot, key)
	}
	if err != nil {
		return nil, ir.NewPersistenceError(fmt.Sprintf("match %s in %s", key, snapshot), err)
	}

	if err := json.Unmarshal([]byte(headersJSON), &resp.Header); err != nil {
		return nil, fmt.Errorf("match %s: unmarshal headers: %w", key, err)
	}
	if resp.Body == nil {
		resp.Body = []byte{}
	}
	return &resp, nil
}

// Keys lists the cached keys of a snapshot in lexical order.
func (s *Store) Keys(ctx context.Context, snapshot string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key FROM cache_entries WHERE snapshot = ? ORDER BY key ASC`, snapshot)
	if err != nil {
		return nil, ir.NewPersistenceError("list keys "+snapshot, err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, ir.NewPersistenceError("list keys "+snapshot, err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, ir.NewPersistenceError("list keys "+snapshot, err)
	}
	return keys, nil
}
