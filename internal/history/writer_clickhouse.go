// Package history persists finished battles to ClickHouse and reads them
// back for the /history endpoint.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/sirupsen/logrus"

	"CombatSpectra/internal/config"
	"CombatSpectra/internal/engine/statistic"
)

const createTableStatement = `
CREATE TABLE IF NOT EXISTS battle_characters (
    BattleTime      DateTime,
    DurationMs      UInt64,
    EntityID        UInt64,
    Name            String,
    Profession      String,
    TotalDamage     UInt64,
    NormalDamage    UInt64,
    CriticalDamage  UInt64,
    LuckyDamage     UInt64,
    CritLuckyDamage UInt64,
    HPLessen        UInt64,
    HitCount        UInt64,
    TotalHealing    UInt64,
    TakenDamage     UInt64,
    MaxRealtimeDPS  UInt64
) ENGINE = MergeTree()
PARTITION BY toYYYYMM(BattleTime)
ORDER BY (BattleTime, EntityID);
`

// ClickHouseWriter records one row per character per finished battle.
type ClickHouseWriter struct {
	conn driver.Conn
}

// NewClickHouseWriter connects and ensures the battle table exists.
func NewClickHouseWriter(cfg config.ClickHouseConfig) (*ClickHouseWriter, error) {
	conn, err := connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}
	if err := conn.Exec(context.Background(), createTableStatement); err != nil {
		return nil, fmt.Errorf("failed to create table: %w", err)
	}
	logrus.Info("history: connected to ClickHouse and ensured battle table exists")
	return &ClickHouseWriter{conn: conn}, nil
}

func connect(cfg config.ClickHouseConfig) (driver.Conn, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, err
	}
	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping clickhouse: %w", err)
	}
	return conn, nil
}

// RecordBattle implements the battle sink: it batch-inserts every character
// of the finished battle. Failures are logged, never surfaced; persistence
// must not interfere with the pipeline.
func (w *ClickHouseWriter) RecordBattle(snap statistic.Snapshot) {
	if len(snap.Characters) == 0 {
		return
	}

	battleTime := snap.TakenAt.Add(-snap.Elapsed)
	durationMs := uint64(snap.Elapsed / time.Millisecond)

	batch, err := w.conn.PrepareBatch(context.Background(), "INSERT INTO battle_characters")
	if err != nil {
		logrus.Warnf("history: failed to prepare batch: %v", err)
		return
	}

	for id, c := range snap.Characters {
		err = batch.Append(
			battleTime,
			durationMs,
			id,
			c.Name,
			c.Profession,
			c.TotalDamage.Total,
			c.TotalDamage.Normal,
			c.TotalDamage.Critical,
			c.TotalDamage.Lucky,
			c.TotalDamage.CritLucky,
			c.TotalDamage.HPLessen,
			c.TotalCount.Total,
			c.TotalHealing.Total,
			c.TakenDamage,
			c.MaxRealtimeDPS,
		)
		if err != nil {
			logrus.Warnf("history: failed to append character %d: %v", id, err)
			return
		}
	}

	if err := batch.Send(); err != nil {
		logrus.Warnf("history: failed to send batch: %v", err)
		return
	}
	logrus.Infof("history: persisted battle of %d characters (%.1fs)", len(snap.Characters), snap.Elapsed.Seconds())
}
