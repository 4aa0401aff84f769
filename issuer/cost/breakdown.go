package cost

import (
	"fmt"
	"math"
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/smartpassport/passport-node/issuer/constant"
)

var lamportsPerSOL = decimal.NewFromBigInt(new(big.Int).SetUint64(constant.LamportsPerSOL), 0)

// CostBreakdown is the cost of minting one passport, in lamports.
type CostBreakdown struct {
	MintAccount     uint64          `json:"mint_account"`
	TokenAccount    uint64          `json:"token_account"`
	MetadataAccount uint64          `json:"metadata_account"`
	TransactionFee  uint64          `json:"transaction_fee"`
	TotalCost       uint64          `json:"total_cost"`
	ServiceFee      uint64          `json:"service_fee"`
	TotalWithFee    uint64          `json:"total_with_fee"`
	FeeRate         decimal.Decimal `json:"fee_rate"`
	SolPrice        float64         `json:"sol_price"`
	FeeRecipient    string          `json:"fee_recipient"`
}

// NewBreakdown sums the per-account rent minimums and the network fee and
// derives the service fee from that subtotal.
func NewBreakdown(mintAccount, tokenAccount, metadataAccount, networkFee uint64, rate decimal.Decimal) (CostBreakdown, error) {
	total, err := addAll(mintAccount, tokenAccount, metadataAccount, networkFee)
	if err != nil {
		return CostBreakdown{}, err
	}
	fee, err := ServiceFee(total, rate)
	if err != nil {
		return CostBreakdown{}, err
	}
	withFee, err := addAll(total, fee)
	if err != nil {
		return CostBreakdown{}, err
	}

	return CostBreakdown{
		MintAccount:     mintAccount,
		TokenAccount:    tokenAccount,
		MetadataAccount: metadataAccount,
		TransactionFee:  networkFee,
		TotalCost:       total,
		ServiceFee:      fee,
		TotalWithFee:    withFee,
		FeeRate:         rate,
	}, nil
}

// ServiceFee returns ceil(total * rate). Exact decimal arithmetic is used so a
// rate such as 0.2 never rounds a whole-lamport product up by one.
func ServiceFee(total uint64, rate decimal.Decimal) (uint64, error) {
	if rate.IsNegative() {
		return 0, fmt.Errorf("fee rate must not be negative: %s", rate)
	}
	fee := decimal.NewFromBigInt(new(big.Int).SetUint64(total), 0).Mul(rate).Ceil()
	bi := fee.BigInt()
	if !bi.IsUint64() {
		return 0, fmt.Errorf("service fee overflows: %s", fee)
	}
	return bi.Uint64(), nil
}

func addAll(values ...uint64) (uint64, error) {
	var sum uint64
	for _, v := range values {
		if v > math.MaxUint64-sum {
			return 0, fmt.Errorf("cost overflows uint64")
		}
		sum += v
	}
	return sum, nil
}

// LamportsToSOL converts lamports to SOL.
func LamportsToSOL(lamports uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(lamports), 0).Div(lamportsPerSOL)
}

// Quote is the display form of a CostBreakdown with SOL and USD figures.
type Quote struct {
	CostBreakdown

	MintAccountSOL     float64 `json:"mint_account_sol"`
	TokenAccountSOL    float64 `json:"token_account_sol"`
	MetadataAccountSOL float64 `json:"metadata_account_sol"`
	TransactionFeeSOL  float64 `json:"transaction_fee_sol"`
	TotalSOL           float64 `json:"total_sol"`
	TotalUSD           float64 `json:"total_usd"`
	ServiceFeeSOL      float64 `json:"service_fee_sol"`
	TotalWithFeeSOL    float64 `json:"total_with_fee_sol"`
	TotalWithFeeUSD    float64 `json:"total_with_fee_usd"`
}

// Quote returns the SOL/USD view of c using its reference price.
func (c CostBreakdown) Quote() Quote {
	price := decimal.NewFromFloat(c.SolPrice)
	sol := func(l uint64) float64 {
		f, _ := LamportsToSOL(l).Float64()
		return f
	}
	usd := func(l uint64) float64 {
		f, _ := LamportsToSOL(l).Mul(price).Round(2).Float64()
		return f
	}

	return Quote{
		CostBreakdown:      c,
		MintAccountSOL:     sol(c.MintAccount),
		TokenAccountSOL:    sol(c.TokenAccount),
		MetadataAccountSOL: sol(c.MetadataAccount),
		TransactionFeeSOL:  sol(c.TransactionFee),
		TotalSOL:           sol(c.TotalCost),
		TotalUSD:           usd(c.TotalCost),
		ServiceFeeSOL:      sol(c.ServiceFee),
		TotalWithFeeSOL:    sol(c.TotalWithFee),
		TotalWithFeeUSD:    usd(c.TotalWithFee),
	}
}
