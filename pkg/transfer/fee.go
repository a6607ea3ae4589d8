package transfer

import (
	"github.com/gagliardetto/solana-go"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"

	"github.com/sigweihq/walletbridge/pkg/constants"
)

// FeeStrategy controls the compute-budget instructions prepended to a
// transfer. Disabled by default.
type FeeStrategy struct {
	Enabled                bool   `yaml:"enabled"`
	UnitLimit              uint32 `yaml:"unit_limit"`
	UnitPriceMicroLamports uint64 `yaml:"unit_price_micro_lamports"`
}

// DefaultFeeStrategy returns the disabled strategy with the stock limit and price
func DefaultFeeStrategy() FeeStrategy {
	return FeeStrategy{
		Enabled:                false,
		UnitLimit:              constants.ComputeUnitLimit,
		UnitPriceMicroLamports: constants.ComputeUnitPriceMicroLamports,
	}
}

// Instructions returns the compute-budget instructions, or nil when disabled
func (f FeeStrategy) Instructions() []solana.Instruction {
	if !f.Enabled {
		return nil
	}

	var ixs []solana.Instruction
	if f.UnitLimit > 0 {
		ixs = append(ixs, computebudget.NewSetComputeUnitLimitInstruction(f.UnitLimit).Build())
	}
	if f.UnitPriceMicroLamports > 0 {
		ixs = append(ixs, computebudget.NewSetComputeUnitPriceInstruction(f.UnitPriceMicroLamports).Build())
	}
	return ixs
}
