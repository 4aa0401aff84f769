package price

import (
	"context"
	"fmt"
	"time"

	"github.com/tidwall/gjson"
	"gopkg.in/h2non/gentleman.v2"
	"gopkg.in/h2non/gentleman.v2/plugins/timeout"
)

const simplePricePath = "/api/v3/simple/price"

// CoinGecko reads the SOL/USD rate from the CoinGecko simple price API.
type CoinGecko struct {
	cli *gentleman.Client
}

// NewCoinGecko creates a CoinGecko source for the given API base URL.
func NewCoinGecko(baseURL string, requestTimeout time.Duration) *CoinGecko {
	cli := gentleman.New().URL(baseURL)
	if requestTimeout > 0 {
		cli.Use(timeout.Request(requestTimeout))
	}
	return &CoinGecko{cli: cli}
}

// CurrentExchangeRate returns USD per SOL. ctx is bound to the outgoing
// request so cancellation aborts it.
func (c *CoinGecko) CurrentExchangeRate(ctx context.Context) (float64, error) {
	req := c.cli.Get()
	req.Context.SetCancelContext(ctx)
	req.Path(simplePricePath)
	req.AddQuery("ids", "solana")
	req.AddQuery("vs_currencies", "usd")

	resp, err := req.Send()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, ctxErr
		}
		return 0, err
	}
	defer resp.Close()
	if !resp.Ok {
		return 0, fmt.Errorf("price request failed; http code: %d, errMsg: %s", resp.StatusCode, resp.String())
	}

	usd := gjson.GetBytes(resp.Bytes(), "solana.usd")
	if !usd.Exists() {
		return 0, fmt.Errorf("price response has no solana.usd field: %s", resp.String())
	}
	return usd.Float(), nil
}
