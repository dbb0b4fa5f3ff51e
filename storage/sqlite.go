package storage

import _ "modernc.org/sqlite"

// SQLiteStore persists records in a SQLite file.
type SQLiteStore struct {
	sqlStore
}

func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{sqlStore{
		dsn: path,
		dialect: dialect{
			driver: "sqlite",
			schema: []string{
				`CREATE TABLE IF NOT EXISTS runs (
					id TEXT PRIMARY KEY,
					schema_version INTEGER NOT NULL,
					codec_version INTEGER NOT NULL,
					started_at INTEGER NOT NULL,
					payload BLOB NOT NULL
				)`,
				`CREATE TABLE IF NOT EXISTS snapshots (
					run_id TEXT NOT NULL,
					substeps INTEGER NOT NULL,
					payload BLOB NOT NULL,
					PRIMARY KEY (run_id, substeps)
				)`,
			},
			upsertRun: `
				INSERT INTO runs (id, schema_version, codec_version, started_at, payload)
				VALUES (?, ?, ?, ?, ?)
				ON CONFLICT(id) DO UPDATE SET
					schema_version = excluded.schema_version,
					codec_version = excluded.codec_version,
					started_at = excluded.started_at,
					payload = excluded.payload
			`,
			upsertSnap: `
				INSERT INTO snapshots (run_id, substeps, payload)
				VALUES (?, ?, ?)
				ON CONFLICT(run_id, substeps) DO UPDATE SET
					payload = excluded.payload
			`,
		},
	}}
}
