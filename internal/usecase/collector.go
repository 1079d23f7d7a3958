package usecase

import (
	"context"

	"github.com/sjn96/solana-ai-trading-bot-sub002/internal/domain/models"
	drepo "github.com/sjn96/solana-ai-trading-bot-sub002/internal/domain/repository"
	mid "github.com/sjn96/solana-ai-trading-bot-sub002/internal/middleware"
	"github.com/sjn96/solana-ai-trading-bot-sub002/internal/services/history"
	"github.com/sjn96/solana-ai-trading-bot-sub002/pkg/logger"
)

// MarketCollector consumes the market feed and drives snapshots through the
// realtime pipeline into history and persistence.
type MarketCollector struct {
	feed    drepo.MarketFeed
	proc    *SnapshotProcessor
	pipe    *mid.RealtimePipeline
	symbols []string
	metrics drepo.Metrics
	log     *logger.Logger
}

// NewMarketCollector creates a market collector.
func NewMarketCollector(feed drepo.MarketFeed, proc *SnapshotProcessor, pipe *mid.RealtimePipeline, symbols []string, metrics drepo.Metrics, log *logger.Logger) *MarketCollector {
	return &MarketCollector{
		feed:    feed,
		proc:    proc,
		pipe:    pipe,
		symbols: append([]string(nil), symbols...),
		metrics: metrics,
		log:     log,
	}
}

// IsConnected reports feed connectivity.
func (c *MarketCollector) IsConnected() bool {
	return c.feed.IsConnected()
}

// Start connects, subscribes, and begins consuming.
func (c *MarketCollector) Start(ctx context.Context) error {
	if err := c.feed.Connect(ctx); err != nil {
		return err
	}
	if err := c.feed.Subscribe(ctx, c.symbols); err != nil {
		return err
	}
	if c.pipe != nil {
		c.pipe.Start(ctx)
	}
	snapCh, errCh := c.feed.Read(ctx)
	go c.consume(ctx, snapCh, errCh)
	return nil
}

func (c *MarketCollector) consume(ctx context.Context, snapCh <-chan *models.MarketSnapshot, errCh <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-errCh:
			if err != nil {
				c.metrics.RecordError("market_feed")
				if c.log != nil {
					c.log.Warn("market feed error, reconnecting", logger.Error(err))
				}
				_ = c.feed.Reconnect(ctx)
			}
		case s := <-snapCh:
			if s == nil {
				continue
			}
			if c.pipe != nil {
				_ = c.pipe.Process(ctx, s)
			} else {
				_ = c.proc.Process(ctx, s)
			}
		}
	}
}

// Shutdown stops the pipeline and closes the feed.
func (c *MarketCollector) Shutdown(ctx context.Context) error {
	if c.pipe != nil {
		c.pipe.Stop()
	}
	c.proc.Close()
	return c.feed.Close()
}

// SocialCollector consumes the social feed into the rolling history. A dead
// source only absents the downstream domains; it never fails the process.
type SocialCollector struct {
	feed    drepo.SocialFeed
	history *history.Store
	metrics drepo.Metrics
	log     *logger.Logger
}

// NewSocialCollector creates a social collector.
func NewSocialCollector(feed drepo.SocialFeed, hist *history.Store, metrics drepo.Metrics, log *logger.Logger) *SocialCollector {
	return &SocialCollector{feed: feed, history: hist, metrics: metrics, log: log}
}

// Start begins consuming; a nil feed is tolerated.
func (c *SocialCollector) Start(ctx context.Context) error {
	if c.feed == nil {
		return nil
	}
	if err := c.feed.Start(ctx); err != nil {
		return err
	}
	sampleCh, errCh := c.feed.Read(ctx)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case err := <-errCh:
				if err != nil {
					c.metrics.RecordError("social_feed")
				}
			case s := <-sampleCh:
				if s == nil {
					continue
				}
				if !c.history.AddSocial(s) {
					c.metrics.RecordDataDrop("social_invalid")
				}
			}
		}
	}()
	return nil
}

// Close stops the feed.
func (c *SocialCollector) Close() error {
	if c.feed == nil {
		return nil
	}
	return c.feed.Close()
}
