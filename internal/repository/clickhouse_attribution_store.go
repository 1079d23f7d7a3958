package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/sjn96/solana-ai-trading-bot-sub002/internal/domain/models"
	domrepo "github.com/sjn96/solana-ai-trading-bot-sub002/internal/domain/repository"
	pkgch "github.com/sjn96/solana-ai-trading-bot-sub002/pkg/clickhouse"
)

// CHAttributionStore persists closed-trade performance reports. The full
// report is kept as JSON next to the columns queries filter on.
type CHAttributionStore struct {
	db *sql.DB
}

var _ domrepo.AttributionStore = (*CHAttributionStore)(nil)

func NewCHAttributionStore(ch *pkgch.Client) *CHAttributionStore {
	return &CHAttributionStore{db: ch.DB()}
}

func (s *CHAttributionStore) StoreReport(ctx context.Context, r *models.PerformanceReport) error {
	raw, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	const q = "INSERT INTO perf_reports (ts, symbol, pnl, quality, report) VALUES (?, ?, ?, ?, ?)"
	if _, err := s.db.ExecContext(ctx, q, r.ClosedAt, r.Symbol, r.RealizedPnL, r.Quality, string(raw)); err != nil {
		return fmt.Errorf("store report: %w", err)
	}
	return nil
}

func (s *CHAttributionStore) RecentReports(ctx context.Context, n int) ([]models.PerformanceReport, error) {
	const q = "SELECT report FROM perf_reports ORDER BY ts DESC LIMIT ?"
	rows, err := s.db.QueryContext(ctx, q, n)
	if err != nil {
		return nil, fmt.Errorf("recent reports: %w", err)
	}
	defer rows.Close()

	out := make([]models.PerformanceReport, 0, n)
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		var r models.PerformanceReport
		if err := json.Unmarshal([]byte(raw), &r); err != nil {
			continue // a malformed row should not poison the window
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
