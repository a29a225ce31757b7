// ABOUTME: SQLite database schema for the local vector store
// ABOUTME: One registry row per collection, one row per point with a JSON payload
package sqlite

// Schema contains all SQL statements for database initialization
const Schema = `
-- Collections registry
CREATE TABLE IF NOT EXISTS collections (
    name TEXT PRIMARY KEY,
    vector_size INTEGER NOT NULL CHECK (vector_size > 0),
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Points table (chunk vectors with payload)
CREATE TABLE IF NOT EXISTS points (
    collection TEXT NOT NULL REFERENCES collections(name) ON DELETE CASCADE,
    id INTEGER NOT NULL,
    vector BLOB NOT NULL,
    payload TEXT NOT NULL,
    PRIMARY KEY (collection, id)
);

-- Episode lookups drive summaries and filtered search
CREATE INDEX IF NOT EXISTS idx_points_episode
    ON points(collection, json_extract(payload, '$.episode_number'));
`
