package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/meigma/dataanchor"
)

// feeFlags selects the fee strategy of a command that submits transactions.
type feeFlags struct {
	price      uint64
	percentile float64
	limit      uint64
}

func (f *feeFlags) register(cmd *cobra.Command) {
	cmd.Flags().Uint64Var(&f.price, "fee-price", 0, "Fixed priority fee in micro-lamports per compute unit")
	cmd.Flags().Float64Var(&f.percentile, "fee-percentile", 0, "Pay this percentile (0-100) of recent priority fees")
	cmd.Flags().Uint64Var(&f.limit, "fee-cap", dataanchor.DefaultFeeCap, "Maximum priority fee in micro-lamports per compute unit")
	cmd.MarkFlagsMutuallyExclusive("fee-price", "fee-percentile")
}

// strategy returns the selected strategy. With no fee flags it is
// dataanchor.DefaultFee, capped at --fee-cap when that is changed.
func (f *feeFlags) strategy(cmd *cobra.Command) (dataanchor.FeeStrategy, error) {
	flags := cmd.Flags()
	switch {
	case flags.Changed("fee-price"):
		return dataanchor.CappedFee(dataanchor.FixedFee(f.price), f.limit), nil
	case flags.Changed("fee-percentile"):
		if f.percentile < 0 || f.percentile > 100 {
			return nil, errors.New("--fee-percentile must be between 0 and 100")
		}
		return dataanchor.CappedFee(dataanchor.PercentileFee(f.percentile), f.limit), nil
	case flags.Changed("fee-cap"):
		return dataanchor.CappedFee(dataanchor.DefaultFee(), f.limit), nil
	default:
		return dataanchor.DefaultFee(), nil
	}
}
