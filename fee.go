package dataanchor

import (
	"context"
	"fmt"
	"math"
	"slices"

	"github.com/meigma/dataanchor/internal/contracts"
)

// Default fee policy bounds, in micro-lamports per compute unit.
const (
	DefaultFeeFloor uint64 = 1_000
	DefaultFeeCap   uint64 = 1_000_000
	// DefaultFeePercentile is the market percentile DefaultFee pays.
	DefaultFeePercentile = 75
)

// FeeSource samples the priority fees recently paid on the ledger.
type FeeSource = contracts.FeeSource

// FeeContext is the information a FeeStrategy may use to price an operation.
type FeeContext struct {
	// Source samples recent market fees.
	Source FeeSource
	// Accounts are the writable accounts the operation locks.
	Accounts []Pubkey
}

// FeeStrategy prices the transactions of one logical operation. It is
// consulted once per upload, initialize or close, and the result applies to
// every transaction of that operation.
type FeeStrategy interface {
	ComputePrice(ctx context.Context, fc FeeContext) (FeeParams, error)
}

// FeeFunc adapts a function to FeeStrategy.
type FeeFunc func(ctx context.Context, fc FeeContext) (FeeParams, error)

// ComputePrice implements FeeStrategy.
func (f FeeFunc) ComputePrice(ctx context.Context, fc FeeContext) (FeeParams, error) {
	return f(ctx, fc)
}

// FixedFee always pays microLamports per compute unit.
func FixedFee(microLamports uint64) FeeStrategy {
	return FeeFunc(func(context.Context, FeeContext) (FeeParams, error) {
		return FeeParams{ComputeUnitPrice: microLamports}, nil
	})
}

// PercentileFee pays the p-th percentile (0-100) of recently paid fees on the
// operation's accounts. With no samples it pays nothing.
func PercentileFee(p float64) FeeStrategy {
	return percentileFee{percentile: p}
}

// CappedFee limits the price chosen by inner to limit.
func CappedFee(inner FeeStrategy, limit uint64) FeeStrategy {
	return FeeFunc(func(ctx context.Context, fc FeeContext) (FeeParams, error) {
		fp, err := inner.ComputePrice(ctx, fc)
		if err != nil {
			return FeeParams{}, err
		}
		fp.ComputeUnitPrice = min(fp.ComputeUnitPrice, limit)
		return fp, nil
	})
}

// DefaultFee pays the 75th percentile of recent fees, never less than
// DefaultFeeFloor and never more than DefaultFeeCap.
func DefaultFee() FeeStrategy {
	return CappedFee(percentileFee{percentile: DefaultFeePercentile, floor: DefaultFeeFloor}, DefaultFeeCap)
}

type percentileFee struct {
	percentile float64
	floor      uint64
}

func (p percentileFee) ComputePrice(ctx context.Context, fc FeeContext) (FeeParams, error) {
	if math.IsNaN(p.percentile) || p.percentile < 0 || p.percentile > 100 {
		return FeeParams{}, fmt.Errorf("fee percentile %v out of range (0-100)", p.percentile)
	}
	if fc.Source == nil {
		return FeeParams{ComputeUnitPrice: p.floor}, nil
	}
	samples, err := fc.Source.RecentPrioritizationFees(ctx, fc.Accounts)
	if err != nil {
		return FeeParams{}, fmt.Errorf("sample priority fees: %w", err)
	}
	return FeeParams{ComputeUnitPrice: max(percentile(samples, p.percentile), p.floor)}, nil
}

// percentile returns the nearest-rank percentile of samples, or 0 if empty.
func percentile(samples []uint64, p float64) uint64 {
	if len(samples) == 0 {
		return 0
	}
	sorted := slices.Clone(samples)
	slices.Sort(sorted)
	rank := int(math.Ceil(p / 100 * float64(len(sorted))))
	rank = min(max(rank, 1), len(sorted))
	return sorted[rank-1]
}
