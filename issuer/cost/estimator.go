package cost

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/smartpassport/passport-node/issuer/constant"
	"github.com/smartpassport/passport-node/issuer/errors"
)

// RentQuerier reads rent-exempt minimums from the network.
type RentQuerier interface {
	MinimumBalanceForRentExemption(ctx context.Context, size uint64) (uint64, error)
}

// PriceReference reports the SOL/USD display rate. It never fails.
type PriceReference interface {
	Rate(ctx context.Context) float64
}

// Estimator quotes the cost of a passport mint from live rent figures.
type Estimator struct {
	rent         RentQuerier
	price        PriceReference
	feeRate      decimal.Decimal
	networkFee   uint64
	feeRecipient solana.PublicKey
	logger       zerolog.Logger
}

// NewEstimator creates an Estimator. feeRate is a fraction (0.2 is 20%) and
// feeRecipient is the treasury address shown in quotes.
func NewEstimator(rent RentQuerier, price PriceReference, feeRate float64, networkFee uint64, feeRecipient solana.PublicKey, logger zerolog.Logger) *Estimator {
	return &Estimator{
		rent:         rent,
		price:        price,
		feeRate:      decimal.NewFromFloat(feeRate),
		networkFee:   networkFee,
		feeRecipient: feeRecipient,
		logger:       logger.With().Str("component", "cost_estimator").Logger(),
	}
}

// FeeRate returns the configured service fee rate.
func (e *Estimator) FeeRate() decimal.Decimal {
	return e.feeRate
}

// Estimate queries the rent minimum for the mint, holding and metadata
// accounts concurrently and returns the resulting breakdown. Any failed query
// fails the estimate; no figure is substituted.
func (e *Estimator) Estimate(ctx context.Context) (CostBreakdown, error) {
	sizes := [3]uint64{constant.MintAccountSize, constant.TokenAccountSize, constant.MetadataAccountSize}
	var rents [3]uint64

	g, gctx := errgroup.WithContext(ctx)
	for i, size := range sizes {
		i, size := i, size
		g.Go(func() error {
			lamports, err := e.rent.MinimumBalanceForRentExemption(gctx, size)
			if err != nil {
				return err
			}
			rents[i] = lamports
			return nil
		})
	}

	var solPrice float64
	g.Go(func() error {
		solPrice = e.price.Rate(gctx)
		return nil
	})

	if err := g.Wait(); err != nil {
		return CostBreakdown{}, errors.WrapKind(err, errors.KindNetwork, "estimate_cost", "failed to query rent exemption")
	}

	breakdown, err := NewBreakdown(rents[0], rents[1], rents[2], e.networkFee, e.feeRate)
	if err != nil {
		return CostBreakdown{}, errors.NewInternalError("estimate_cost", "failed to compute cost", err)
	}
	breakdown.SolPrice = solPrice
	breakdown.FeeRecipient = e.feeRecipient.String()

	e.logger.Debug().
		Uint64("mint_account", breakdown.MintAccount).
		Uint64("token_account", breakdown.TokenAccount).
		Uint64("metadata_account", breakdown.MetadataAccount).
		Uint64("total_cost", breakdown.TotalCost).
		Uint64("service_fee", breakdown.ServiceFee).
		Msg("cost estimated")

	return breakdown, nil
}
