// ─────────────────────────────────────────────────────────────────────────────
// [Filename]: topology.go - SQLite graph description for the simulator
//
// Purpose:
//   - Loads nodes, edges, params and modulation edges from a SQLite file.
//   - Seeds an in-memory demo graph when no file is given.
//
// Schema:
//   nodes(id INTEGER PRIMARY KEY, kind TEXT)          kind: processing|source
//   edges(from_id INTEGER, to_id INTEGER)
//   params(id INTEGER PRIMARY KEY, owner_id INTEGER)
//   param_edges(from_id INTEGER, param_id INTEGER)
//
// ⚠️ Loading happens once, before the render goroutine starts.
// ─────────────────────────────────────────────────────────────────────────────

package main

import (
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const (
	kindProcessing = "processing"
	kindSource     = "source"
)

var errTopology = errors.New("topology")

type nodeRow struct {
	id   int64
	kind string
}

type edgeRow struct {
	from int64
	to   int64
}

type paramRow struct {
	id    int64
	owner int64
}

// topology is the static graph description, ordered by id.
type topology struct {
	nodes      []nodeRow
	edges      []edgeRow
	params     []paramRow
	paramEdges []edgeRow
}

const schema = `
CREATE TABLE IF NOT EXISTS nodes (id INTEGER PRIMARY KEY, kind TEXT NOT NULL);
CREATE TABLE IF NOT EXISTS edges (from_id INTEGER NOT NULL, to_id INTEGER NOT NULL);
CREATE TABLE IF NOT EXISTS params (id INTEGER PRIMARY KEY, owner_id INTEGER NOT NULL);
CREATE TABLE IF NOT EXISTS param_edges (from_id INTEGER NOT NULL, param_id INTEGER NOT NULL);
`

// demo is two voices (oscillator → filter) mixed into a gain stage, with an
// LFO modulating both filter cutoffs.
const demo = `
INSERT INTO nodes (id, kind) VALUES
  (1, 'source'), (2, 'source'), (3, 'processing'), (4, 'processing'),
  (5, 'processing'), (6, 'processing'), (7, 'source');
INSERT INTO edges (from_id, to_id) VALUES (1, 3), (2, 4), (3, 5), (4, 5), (5, 6);
INSERT INTO params (id, owner_id) VALUES (1, 3), (2, 4), (3, 6);
INSERT INTO param_edges (from_id, param_id) VALUES (7, 1), (7, 2);
`

// openTopology opens path, or a seeded in-memory database when path is "".
func openTopology(path string) (*sql.DB, error) {
	if path != "" {
		db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
		if err != nil {
			return nil, fmt.Errorf("%w: open %s: %w", errTopology, path, err)
		}
		return db, nil
	}
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("%w: open memory: %w", errTopology, err)
	}
	db.SetMaxOpenConns(1) // each connection gets its own :memory: database
	if err := seed(db, demo); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// seed creates the schema and runs rows against it.
func seed(db *sql.DB, rows string) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("%w: schema: %w", errTopology, err)
	}
	if rows == "" {
		return nil
	}
	if _, err := db.Exec(rows); err != nil {
		return fmt.Errorf("%w: seed: %w", errTopology, err)
	}
	return nil
}

// loadTopology reads every table and checks that all references resolve.
func loadTopology(db *sql.DB) (topology, error) {
	var t topology
	var err error

	t.nodes, err = query(db, "SELECT id, kind FROM nodes ORDER BY id", func(r *sql.Rows) (nodeRow, error) {
		var n nodeRow
		err := r.Scan(&n.id, &n.kind)
		return n, err
	})
	if err != nil {
		return t, err
	}
	t.edges, err = query(db, "SELECT from_id, to_id FROM edges ORDER BY rowid", scanEdge)
	if err != nil {
		return t, err
	}
	t.params, err = query(db, "SELECT id, owner_id FROM params ORDER BY id", func(r *sql.Rows) (paramRow, error) {
		var p paramRow
		err := r.Scan(&p.id, &p.owner)
		return p, err
	})
	if err != nil {
		return t, err
	}
	t.paramEdges, err = query(db, "SELECT from_id, param_id FROM param_edges ORDER BY rowid", scanEdge)
	if err != nil {
		return t, err
	}
	return t, t.validate()
}

func scanEdge(r *sql.Rows) (edgeRow, error) {
	var e edgeRow
	err := r.Scan(&e.from, &e.to)
	return e, err
}

// query runs q and scans every row with scan.
func query[T any](db *sql.DB, q string, scan func(*sql.Rows) (T, error)) ([]T, error) {
	rows, err := db.Query(q)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", errTopology, q, err)
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan: %w", errTopology, err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", errTopology, q, err)
	}
	return out, nil
}

func (t topology) validate() error {
	nodes := make(map[int64]bool, len(t.nodes))
	for _, n := range t.nodes {
		if n.kind != kindProcessing && n.kind != kindSource {
			return fmt.Errorf("%w: node %d has unknown kind %q", errTopology, n.id, n.kind)
		}
		nodes[n.id] = true
	}
	params := make(map[int64]bool, len(t.params))
	for _, p := range t.params {
		if !nodes[p.owner] {
			return fmt.Errorf("%w: param %d owned by missing node %d", errTopology, p.id, p.owner)
		}
		params[p.id] = true
	}
	for _, e := range t.edges {
		if !nodes[e.from] || !nodes[e.to] {
			return fmt.Errorf("%w: edge %d→%d references a missing node", errTopology, e.from, e.to)
		}
	}
	for _, e := range t.paramEdges {
		if !nodes[e.from] || !params[e.to] {
			return fmt.Errorf("%w: param edge %d→%d references a missing node or param", errTopology, e.from, e.to)
		}
	}
	return nil
}
