package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/sjn96/solana-ai-trading-bot-sub002/internal/domain/models"
	domrepo "github.com/sjn96/solana-ai-trading-bot-sub002/internal/domain/repository"
	pkgch "github.com/sjn96/solana-ai-trading-bot-sub002/pkg/clickhouse"
	applogger "github.com/sjn96/solana-ai-trading-bot-sub002/pkg/logger"
)

// snapshot table schema; candles are aggregated at read time
var schemaStmts = []string{
	`CREATE TABLE IF NOT EXISTS md_snapshots (
        ts DateTime64(3),
        symbol LowCardinality(String),
        price Float64,
        bid Float64,
        ask Float64,
        bid_depth Float64,
        ask_depth Float64,
        vol_1m Float64,
        vol_1h Float64,
        funding Float64
    ) ENGINE = MergeTree()
    PARTITION BY toYYYYMMDD(ts)
    ORDER BY (symbol, ts)
    TTL toDateTime(ts) + INTERVAL 30 DAY`,
	`CREATE TABLE IF NOT EXISTS perf_reports (
        ts DateTime64(3),
        symbol LowCardinality(String),
        pnl Float64,
        quality Float64,
        report String
    ) ENGINE = MergeTree()
    PARTITION BY toYYYYMM(ts)
    ORDER BY (ts)`,
}

// CHSnapshotStore implements SnapshotStore backed by ClickHouse. Snapshots
// land in a raw MergeTree table; candle reads aggregate on the fly.
type CHSnapshotStore struct {
	client *pkgch.Client
	db     *sql.DB
	l      *applogger.Logger
}

var _ domrepo.SnapshotStore = (*CHSnapshotStore)(nil)

func NewCHSnapshotStore(ch *pkgch.Client) *CHSnapshotStore {
	return &CHSnapshotStore{client: ch, db: ch.DB()}
}

// SetLogger injects a structured logger.
func (s *CHSnapshotStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHSnapshotStore) Init(ctx context.Context) error {
	return s.client.InitSchema(ctx, schemaStmts)
}

func (s *CHSnapshotStore) Store(ctx context.Context, snap *models.MarketSnapshot) error {
	return s.StoreBatch(ctx, []*models.MarketSnapshot{snap})
}

func (s *CHSnapshotStore) StoreBatch(ctx context.Context, snaps []*models.MarketSnapshot) error {
	if len(snaps) == 0 {
		return nil
	}
	// chunked multi-row VALUES to keep round-trips down
	const chunkSize = 2000
	for start := 0; start < len(snaps); start += chunkSize {
		end := start + chunkSize
		if end > len(snaps) {
			end = len(snaps)
		}

		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*10)
		for _, sn := range snaps[start:end] {
			if sn == nil || sn.Symbol == "" || sn.Timestamp.IsZero() {
				continue
			}
			values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
			args = append(args,
				sn.Timestamp,
				sn.Symbol,
				sn.Price,
				sn.Bid,
				sn.Ask,
				sn.BidDepth(),
				sn.AskDepth(),
				sn.Volume1m,
				sn.Volume1h,
				sn.FundingRate,
			)
		}
		if len(values) == 0 {
			continue
		}
		q := "INSERT INTO md_snapshots (ts, symbol, price, bid, ask, bid_depth, ask_depth, vol_1m, vol_1h, funding) VALUES " + strings.Join(values, ",")
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			if s.l != nil {
				s.l.Error("clickhouse snapshot batch insert error",
					applogger.Int("rows", len(values)),
					applogger.Error(err),
				)
			}
			return fmt.Errorf("store snapshots: %w", err)
		}
	}
	return nil
}

func (s *CHSnapshotStore) GetLatestNCandles(ctx context.Context, symbol string, n int, tf domrepo.Timeframe) ([]models.Candle, error) {
	start := time.Now()
	interval, err := intervalForTF(tf)
	if err != nil {
		return nil, err
	}
	const qtpl = `
        SELECT
            toStartOfInterval(ts, INTERVAL %s) AS bucket,
            symbol,
            argMin(price, ts) AS open,
            max(price) AS high,
            min(price) AS low,
            argMax(price, ts) AS close,
            argMax(vol_1m, ts) AS vol
        FROM md_snapshots
        WHERE symbol = ?
        GROUP BY bucket, symbol
        ORDER BY bucket DESC
        LIMIT ?
    `
	q := fmt.Sprintf(qtpl, interval)
	rows, err := s.db.QueryContext(ctx, q, symbol, n)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse latest_candles query error",
				applogger.String("symbol", symbol),
				applogger.String("tf", string(tf)),
				applogger.Int("limit", n),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("get latest candles: %w", err)
	}
	defer rows.Close()

	tmp := make([]models.Candle, 0, n)
	for rows.Next() {
		var c models.Candle
		if err := rows.Scan(&c.Bucket, &c.Symbol, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("scan candle: %w", err)
		}
		tmp = append(tmp, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	// reverse to ASC
	for i, j := 0, len(tmp)-1; i < j; i, j = i+1, j-1 {
		tmp[i], tmp[j] = tmp[j], tmp[i]
	}
	if s.l != nil {
		s.l.Debug("clickhouse latest_candles ok",
			applogger.String("symbol", symbol),
			applogger.String("tf", string(tf)),
			applogger.Int("rows", len(tmp)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return tmp, nil
}

func (s *CHSnapshotStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *CHSnapshotStore) Close() error {
	return s.client.Close()
}

func intervalForTF(tf domrepo.Timeframe) (string, error) {
	switch tf {
	case domrepo.TF1s:
		return "1 second", nil
	case domrepo.TF1m:
		return "1 minute", nil
	case domrepo.TF5m:
		return "5 minute", nil
	default:
		return "", fmt.Errorf("unsupported timeframe: %s", tf)
	}
}
