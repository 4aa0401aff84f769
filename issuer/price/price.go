// Package price supplies the SOL/USD reference rate used to display costs.
// Nothing in the mint path depends on it being available.
package price

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Source reports the current SOL/USD exchange rate.
type Source interface {
	CurrentExchangeRate(ctx context.Context) (float64, error)
}

// Fixed always reports the same rate.
type Fixed float64

// CurrentExchangeRate returns the fixed rate.
func (f Fixed) CurrentExchangeRate(context.Context) (float64, error) {
	return float64(f), nil
}

// Reference wraps a Source and degrades to a fallback rate on any failure.
type Reference struct {
	source   Source
	fallback float64
	timeout  time.Duration
	logger   zerolog.Logger
}

// NewReference creates a Reference. A zero timeout leaves the caller's
// deadline in charge.
func NewReference(source Source, fallback float64, timeout time.Duration, logger zerolog.Logger) *Reference {
	return &Reference{
		source:   source,
		fallback: fallback,
		timeout:  timeout,
		logger:   logger.With().Str("component", "price_reference").Logger(),
	}
}

// Rate returns the source's rate, or the fallback when the source fails or
// reports a non-positive value.
func (r *Reference) Rate(ctx context.Context) float64 {
	if r.source == nil {
		return r.fallback
	}
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	rate, err := r.source.CurrentExchangeRate(ctx)
	if err != nil {
		r.logger.Warn().Err(err).Float64("fallback", r.fallback).Msg("price lookup failed, using fallback")
		return r.fallback
	}
	if rate <= 0 {
		r.logger.Warn().Float64("rate", rate).Float64("fallback", r.fallback).Msg("invalid price, using fallback")
		return r.fallback
	}
	return rate
}
