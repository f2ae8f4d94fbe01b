package restclient

import (
	"context"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"hyperdrift-taker/pkg/domain"
)

// clearinghouseStateRequest is the {"type":"clearinghouseState","user":
// ...,"dex":...} info request of §6; `dex` is mandatory for HIP-3.
type clearinghouseStateRequest struct {
	Type string `json:"type"`
	User string `json:"user"`
	Dex  string `json:"dex"`
}

type assetPositionWire struct {
	Position struct {
		Coin     string `json:"coin"`
		Szi      string `json:"szi"`
		EntryPx  string `json:"entryPx"`
	} `json:"position"`
}

type clearinghouseStateResponse struct {
	AssetPositions []assetPositionWire `json:"assetPositions"`
}

// SeedPosition is one resting position as reported by clearinghouseState,
// written directly into the position tracker (position.Tracker.SeedPosition)
// at startup and on each reconnect so the tracker's state matches the
// exchange's before the WS stream delivers live fills (§4.11's
// REST-snapshot seed, READY flag d).
type SeedPosition struct {
	Coin       string
	Side       domain.Side
	Size       decimal.Decimal
	EntryPrice decimal.Decimal
}

// ClearinghouseState fetches the user's resting positions on the
// configured dex.
func (c *Client) ClearinghouseState(ctx context.Context, userAddress string) ([]SeedPosition, error) {
	var result clearinghouseStateResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(clearinghouseStateRequest{Type: "clearinghouseState", User: userAddress, Dex: c.dex}).
		SetResult(&result).
		Post("/info")
	if err != nil {
		return nil, fmt.Errorf("clearinghouseState: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("clearinghouseState: status %d: %s", resp.StatusCode(), resp.String())
	}

	out := make([]SeedPosition, 0, len(result.AssetPositions))
	for _, ap := range result.AssetPositions {
		szi := parseDecimalOrZero(ap.Position.Szi)
		if szi.IsZero() {
			continue
		}
		side := domain.Buy
		if szi.IsNegative() {
			side = domain.Sell
		}
		out = append(out, SeedPosition{
			Coin:       ap.Position.Coin,
			Side:       side,
			Size:       szi.Abs(),
			EntryPrice: parseDecimalOrZero(ap.Position.EntryPx),
		})
	}
	return out, nil
}
