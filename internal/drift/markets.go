package drift

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"driftbook/models"
)

// ErrMarketNotFound reports that no on-chain market matched the configured
// symbol or index. This is a fatal startup condition for the service.
var ErrMarketNotFound = errors.New("perp market not found")

// ResolveMarket scans the program's market accounts and returns the
// MarketRef plus the decoded account for the configured symbol or numeric
// index. Symbol matching is case-insensitive; when only an index is given
// the symbol is resolved in reverse from the on-chain name.
func ResolveMarket(ctx context.Context, client *Client, programID, symbol string, index int) (models.MarketRef, PerpMarketAccount, error) {
	accounts, err := client.GetProgramAccounts(ctx, programID, perpMarketAccountSize)
	if err != nil {
		return models.MarketRef{}, PerpMarketAccount{}, fmt.Errorf("fetch perp markets: %w", err)
	}

	for _, acct := range accounts {
		market, err := decodePerpMarket(acct.Data)
		if err != nil {
			continue
		}
		if symbol != "" {
			if strings.EqualFold(market.Name, symbol) {
				return marketRef(market), market, nil
			}
			continue
		}
		if int(market.MarketIndex) == index {
			return marketRef(market), market, nil
		}
	}

	if symbol != "" {
		return models.MarketRef{}, PerpMarketAccount{}, fmt.Errorf("symbol %s: %w", symbol, ErrMarketNotFound)
	}
	return models.MarketRef{}, PerpMarketAccount{}, fmt.Errorf("index %d: %w", index, ErrMarketNotFound)
}

func marketRef(market PerpMarketAccount) models.MarketRef {
	ref := models.MarketRef{
		Symbol:      market.Name,
		MarketIndex: int(market.MarketIndex),
	}
	if ref.Symbol == "" {
		ref.Symbol = fmt.Sprintf("PERP-%d", market.MarketIndex)
	}
	return ref
}
