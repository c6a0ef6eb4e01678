package database

// Schema is the PostgreSQL DDL for the node table. parent_id references
// tree_nodes without ON DELETE CASCADE; subtree removal is driven by the
// hierarchy service so it can count what it removes.
const Schema = `
CREATE TABLE IF NOT EXISTS tree_nodes (
    id         uuid PRIMARY KEY,
    label      text NOT NULL CHECK (label <> ''),
    parent_id  uuid REFERENCES tree_nodes (id),
    created_at timestamptz NOT NULL DEFAULT now(),
    updated_at timestamptz NOT NULL DEFAULT now(),
    CONSTRAINT tree_nodes_no_self_parent CHECK (parent_id IS NULL OR parent_id <> id)
);

CREATE INDEX IF NOT EXISTS idx_tree_nodes_parent_id ON tree_nodes (parent_id);
CREATE INDEX IF NOT EXISTS idx_tree_nodes_created_at ON tree_nodes (created_at, id);
`

// TreeLockKey is the advisory lock every structural transaction and schema
// migration takes
const TreeLockKey int64 = 0x74726565
