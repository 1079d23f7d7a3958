package feeds

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sjn96/solana-ai-trading-bot-sub002/internal/domain/models"
	drepo "github.com/sjn96/solana-ai-trading-bot-sub002/internal/domain/repository"
	xhttp "github.com/sjn96/solana-ai-trading-bot-sub002/pkg/http"
	"github.com/sjn96/solana-ai-trading-bot-sub002/pkg/logger"
)

// SocialPoll implements SocialFeed by polling an aggregation endpoint per
// source and symbol. A failing source is skipped; its absence only absents
// the downstream text domains.
type SocialPoll struct {
	client   *xhttp.Client
	baseURL  string
	sources  []string
	symbols  []string
	interval time.Duration
	log      *logger.Logger

	mu      sync.Mutex
	since   map[string]time.Time // source/symbol -> last sample ts
	samples chan *models.SocialSample
	errs    chan error
	cancel  context.CancelFunc
}

// NewSocialPoll creates a polling social feed.
func NewSocialPoll(client *xhttp.Client, baseURL string, sources, symbols []string, interval time.Duration, log *logger.Logger) *SocialPoll {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &SocialPoll{
		client:   client,
		baseURL:  baseURL,
		sources:  append([]string(nil), sources...),
		symbols:  append([]string(nil), symbols...),
		interval: interval,
		log:      log,
		since:    make(map[string]time.Time),
		samples:  make(chan *models.SocialSample, 512),
		errs:     make(chan error, 1),
	}
}

// Start launches the polling loop.
func (p *SocialPoll) Start(ctx context.Context) error {
	if p.baseURL == "" {
		return fmt.Errorf("social feed: base_url required")
	}
	ctx, p.cancel = context.WithCancel(ctx)
	go p.loop(ctx)
	return nil
}

// Read returns the sample and error streams.
func (p *SocialPoll) Read(ctx context.Context) (<-chan *models.SocialSample, <-chan error) {
	return p.samples, p.errs
}

func (p *SocialPoll) loop(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	defer close(p.samples)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, source := range p.sources {
				if !models.KnownSource(source) {
					continue
				}
				for _, symbol := range p.symbols {
					p.poll(ctx, source, symbol)
				}
			}
		}
	}
}

// wire format returned by the aggregation endpoint
type socialRecord struct {
	T            int64   `json:"t"` // ms
	Text         string  `json:"text"`
	Reach        float64 `json:"reach"`
	AuthorWeight float64 `json:"author_weight"`
}

func (p *SocialPoll) poll(ctx context.Context, source, symbol string) {
	key := source + "/" + symbol
	p.mu.Lock()
	since := p.since[key]
	p.mu.Unlock()

	var records []socialRecord
	err := p.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    fmt.Sprintf("%s/v1/%s/%s", p.baseURL, source, symbol),
		QueryParams: map[string][]string{
			"since": {fmt.Sprintf("%d", since.UnixMilli())},
		},
	}, &records)
	if err != nil {
		// tolerated: the source is simply absent this round
		if p.log != nil {
			p.log.Debug("social poll failed",
				logger.String("source", source),
				logger.String("symbol", symbol),
				logger.Error(err))
		}
		select {
		case p.errs <- err:
		default:
		}
		return
	}

	var latest time.Time
	for _, r := range records {
		ts := time.UnixMilli(r.T)
		if ts.After(latest) {
			latest = ts
		}
		sample := &models.SocialSample{
			Source:       source,
			Symbol:       symbol,
			Timestamp:    ts,
			Text:         r.Text,
			Reach:        r.Reach,
			AuthorWeight: r.AuthorWeight,
		}
		select {
		case p.samples <- sample:
		default:
			// drop on backpressure
		}
	}
	if !latest.IsZero() {
		p.mu.Lock()
		p.since[key] = latest
		p.mu.Unlock()
	}
}

// Close stops polling.
func (p *SocialPoll) Close() error {
	if p.cancel != nil {
		p.cancel()
	}
	return nil
}

var _ drepo.SocialFeed = (*SocialPoll)(nil)
