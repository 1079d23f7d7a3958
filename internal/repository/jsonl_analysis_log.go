package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	domrepo "github.com/sjn96/solana-ai-trading-bot-sub002/internal/domain/repository"
)

// JSONLAnalysisLog appends analysis records to a newline-delimited JSON
// file. One line per record; the file is the agent's human-auditable trail
// of decisions, risk verdicts, plans, and reports.
type JSONLAnalysisLog struct {
	mu   sync.Mutex
	f    *os.File
	enc  *json.Encoder
	path string
}

var _ domrepo.AnalysisLog = (*JSONLAnalysisLog)(nil)

type analysisLine struct {
	Timestamp time.Time `json:"ts"`
	Kind      string    `json:"kind"`
	Record    any       `json:"record"`
}

func NewJSONLAnalysisLog(path string) (*JSONLAnalysisLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open analysis log: %w", err)
	}
	return &JSONLAnalysisLog{f: f, enc: json.NewEncoder(f), path: path}, nil
}

func (l *JSONLAnalysisLog) Append(ctx context.Context, kind string, record any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return fmt.Errorf("analysis log closed")
	}
	if err := l.enc.Encode(analysisLine{Timestamp: time.Now().UTC(), Kind: kind, Record: record}); err != nil {
		return fmt.Errorf("append analysis record: %w", err)
	}
	return nil
}

func (l *JSONLAnalysisLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return nil
	}
	err := l.f.Close()
	l.f = nil
	return err
}
