package storage

import (
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
)

// ErrPayloadTooLarge reports a record larger than the server accepts.
var ErrPayloadTooLarge = errors.New("payload exceeds server packet limit")

// mysqlErrPacketTooLarge is ER_NET_PACKET_TOO_LARGE.
const mysqlErrPacketTooLarge = 1153

// MySQLStore persists records in a MySQL database.
type MySQLStore struct {
	sqlStore
}

// NewMySQLStore validates dsn and returns an uninitialized store. Time
// parsing is forced on.
func NewMySQLStore(dsn string) (*MySQLStore, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse mysql dsn: %w", err)
	}
	cfg.ParseTime = true

	return &MySQLStore{sqlStore{
		dsn: cfg.FormatDSN(),
		dialect: dialect{
			driver: "mysql",
			schema: []string{
				`CREATE TABLE IF NOT EXISTS runs (
					id VARCHAR(64) PRIMARY KEY,
					schema_version INT NOT NULL,
					codec_version INT NOT NULL,
					started_at BIGINT NOT NULL,
					payload LONGBLOB NOT NULL
				)`,
				`CREATE TABLE IF NOT EXISTS snapshots (
					run_id VARCHAR(64) NOT NULL,
					substeps BIGINT NOT NULL,
					payload LONGBLOB NOT NULL,
					PRIMARY KEY (run_id, substeps)
				)`,
			},
			upsertRun: `
				INSERT INTO runs (id, schema_version, codec_version, started_at, payload)
				VALUES (?, ?, ?, ?, ?)
				ON DUPLICATE KEY UPDATE
					schema_version = VALUES(schema_version),
					codec_version = VALUES(codec_version),
					started_at = VALUES(started_at),
					payload = VALUES(payload)
			`,
			upsertSnap: `
				INSERT INTO snapshots (run_id, substeps, payload)
				VALUES (?, ?, ?)
				ON DUPLICATE KEY UPDATE
					payload = VALUES(payload)
			`,
			translateErr: translateMySQLError,
		},
	}}, nil
}

func translateMySQLError(err error) error {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlErrPacketTooLarge {
		return fmt.Errorf("%w: %s", ErrPayloadTooLarge, mysqlErr.Message)
	}
	return err
}
