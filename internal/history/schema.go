package history

import "database/sql"

const SchemaVersion = 1

const schema = `
CREATE TABLE IF NOT EXISTS runs (
  id              TEXT PRIMARY KEY,
  schema_version  INTEGER NOT NULL,
  ts_utc          TEXT NOT NULL,
  scanned         INTEGER NOT NULL,
  changed         INTEGER NOT NULL,
  deleted         INTEGER NOT NULL,
  impacted        INTEGER NOT NULL,
  built           INTEGER NOT NULL,
  success         INTEGER NOT NULL,
  duration_ms     INTEGER NOT NULL,
  diagnostics     TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_runs_ts ON runs(ts_utc);
`

func EnsureSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
