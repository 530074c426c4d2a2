package history

import (
	"context"
	"fmt"
	"time"
)

// BattleSummary is one persisted battle, rolled up across its characters.
type BattleSummary struct {
	BattleTime  time.Time `json:"battle_time"`
	DurationMs  uint64    `json:"duration_ms"`
	TotalDamage uint64    `json:"total_damage"`
	Characters  uint64    `json:"characters"`
}

// RecentBattles returns the latest persisted battles, newest first.
func (w *ClickHouseWriter) RecentBattles(ctx context.Context, limit int) ([]BattleSummary, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := w.conn.Query(ctx, `
		SELECT
			BattleTime,
			max(DurationMs)  AS DurationMs,
			sum(TotalDamage) AS TotalDamage,
			count()          AS Characters
		FROM battle_characters
		GROUP BY BattleTime
		ORDER BY BattleTime DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query battles: %w", err)
	}
	defer rows.Close()

	var battles []BattleSummary
	for rows.Next() {
		var b BattleSummary
		if err := rows.Scan(&b.BattleTime, &b.DurationMs, &b.TotalDamage, &b.Characters); err != nil {
			return nil, fmt.Errorf("failed to scan battle row: %w", err)
		}
		battles = append(battles, b)
	}
	return battles, rows.Err()
}
