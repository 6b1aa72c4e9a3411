package main

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDemoTopology(t *testing.T) {
	db, err := openTopology("")
	require.NoError(t, err)
	defer db.Close()

	topo, err := loadTopology(db)
	require.NoError(t, err)
	assert.Len(t, topo.nodes, 7)
	assert.Len(t, topo.edges, 5)
	assert.Len(t, topo.params, 3)
	assert.Len(t, topo.paramEdges, 2)
	assert.Equal(t, nodeRow{id: 1, kind: kindSource}, topo.nodes[0])
	assert.Equal(t, edgeRow{from: 1, to: 3}, topo.edges[0])
}

// writeTopology creates a SQLite file in a temp dir with rows applied.
func writeTopology(t *testing.T, rows string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "graph.db")
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	require.NoError(t, seed(db, rows))
	require.NoError(t, db.Close())
	return path
}

func TestLoadTopologyFromFile(t *testing.T) {
	path := writeTopology(t, `
INSERT INTO nodes (id, kind) VALUES (10, 'processing'), (11, 'processing');
INSERT INTO edges (from_id, to_id) VALUES (10, 11), (11, 10);
`)
	db, err := openTopology(path)
	require.NoError(t, err)
	defer db.Close()

	topo, err := loadTopology(db)
	require.NoError(t, err)
	assert.Len(t, topo.nodes, 2)
	assert.Equal(t, []edgeRow{{10, 11}, {11, 10}}, topo.edges)
	assert.Empty(t, topo.params)
}

func TestLoadTopologyRejects(t *testing.T) {
	cases := map[string]string{
		"unknown kind":   `INSERT INTO nodes (id, kind) VALUES (1, 'mixer');`,
		"dangling edge":  `INSERT INTO nodes (id, kind) VALUES (1, 'source'); INSERT INTO edges VALUES (1, 2);`,
		"orphan param":   `INSERT INTO params (id, owner_id) VALUES (1, 9);`,
		"dangling param": `INSERT INTO nodes (id, kind) VALUES (1, 'source'); INSERT INTO param_edges VALUES (1, 4);`,
	}
	for name, rows := range cases {
		t.Run(name, func(t *testing.T) {
			db, err := openTopology(writeTopology(t, rows))
			require.NoError(t, err)
			defer db.Close()
			_, err = loadTopology(db)
			assert.ErrorIs(t, err, errTopology)
		})
	}
}

func TestLoadTopologyMissingTables(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.db")
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = db.Exec("CREATE TABLE unrelated (x INTEGER)")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = openTopology(path)
	require.NoError(t, err)
	defer db.Close()
	_, err = loadTopology(db)
	assert.ErrorIs(t, err, errTopology)
}
