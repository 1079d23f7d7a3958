package analyzers

import (
	"context"
	"sort"

	"github.com/sjn96/solana-ai-trading-bot-sub002/internal/domain/models"
	domsvc "github.com/sjn96/solana-ai-trading-bot-sub002/internal/domain/service"
	"github.com/sjn96/solana-ai-trading-bot-sub002/pkg/config"
)

// BuyingPressure fuses three signal groups from tape and book:
// order flow (signed volume on price ticks), passive book pressure (depth
// imbalance) and institutional pressure (share of volume carried by the
// largest prints). Domain weights follow the usual aggressive/passive/
// positioning split: executed flow counts most, standing orders least.
type BuyingPressure struct {
	base
}

const (
	pressureFlowWeight  = 0.45
	pressureDepthWeight = 0.30
	pressureInstWeight  = 0.25
)

// NewBuyingPressure creates the buying-pressure / smart-money analyzer.
func NewBuyingPressure(cfg config.AnalyzerConfig) *BuyingPressure {
	return &BuyingPressure{
		base: newBase(models.DomainBuyingPressure, cfg, []string{
			"institutional_pressure", "order_flow_score", "accumulation_score", "distribution_score",
		}),
	}
}

func (p *BuyingPressure) Assess(ctx context.Context, in domsvc.AnalyzerInputs) (*models.Assessment, error) {
	snaps := in.Snapshots
	if len(snaps) < p.minSamples || len(snaps) < 3 {
		return nil, nil
	}

	flow := orderFlowScore(snaps)
	depth := depthImbalance(snaps[len(snaps)-1])
	inst := institutionalPressure(snaps)

	net := pressureFlowWeight*flow + pressureDepthWeight*depth + pressureInstWeight*inst
	score := clamp01((net + 1) / 2)

	accum := clamp01((flow+depth)/2 + 0.5)
	dist := clamp01(0.5 - (flow+depth)/2)

	// Confidence grows with sample count and depth visibility.
	conf := clamp01(0.3 + 0.5*float64(len(snaps))/50)
	if len(snaps[len(snaps)-1].Bids) > 0 || len(snaps[len(snaps)-1].Asks) > 0 {
		conf = clamp01(conf + 0.2)
	}

	return p.emit(in.Symbol, in.Now, score, conf, map[string]float64{
		"institutional_pressure": inst,
		"order_flow_score":       flow,
		"accumulation_score":     accum,
		"distribution_score":     dist,
	}, ""), nil
}

// orderFlowScore is the volume-weighted sign of consecutive price changes,
// normalized to [-1,1].
func orderFlowScore(snaps []models.MarketSnapshot) float64 {
	var signed, total float64
	for i := 1; i < len(snaps); i++ {
		v := snaps[i].Volume1m
		if v <= 0 {
			v = 1
		}
		switch {
		case snaps[i].Price > snaps[i-1].Price:
			signed += v
		case snaps[i].Price < snaps[i-1].Price:
			signed -= v
		}
		total += v
	}
	if total == 0 {
		return 0
	}
	return signed / total
}

// depthImbalance is (bidDepth - askDepth) / (bidDepth + askDepth) of the
// latest book, 0 when the book is empty.
func depthImbalance(s models.MarketSnapshot) float64 {
	b, a := s.BidDepth(), s.AskDepth()
	if b+a == 0 {
		return 0
	}
	return (b - a) / (b + a)
}

// institutionalPressure measures whether the largest decile of prints leans
// with or against the tape direction.
func institutionalPressure(snaps []models.MarketSnapshot) float64 {
	type print struct {
		vol  float64
		sign float64
	}
	prints := make([]print, 0, len(snaps)-1)
	for i := 1; i < len(snaps); i++ {
		sign := 0.0
		if snaps[i].Price > snaps[i-1].Price {
			sign = 1
		} else if snaps[i].Price < snaps[i-1].Price {
			sign = -1
		}
		prints = append(prints, print{vol: snaps[i].Volume1m, sign: sign})
	}
	if len(prints) == 0 {
		return 0
	}
	sort.Slice(prints, func(i, j int) bool { return prints[i].vol > prints[j].vol })
	top := len(prints) / 10
	if top < 1 {
		top = 1
	}
	var signed, total float64
	for _, pr := range prints[:top] {
		signed += pr.sign * pr.vol
		total += pr.vol
	}
	if total == 0 {
		return 0
	}
	return signed / total
}

var _ domsvc.Analyzer = (*BuyingPressure)(nil)
