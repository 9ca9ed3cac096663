package polymarket

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/alejandrodnm/polycopy/internal/domain"
)

// mapPositions convierte los DTOs de la Data API a entradas de snapshot.
// Un campo numérico ilegible invalida el snapshot completo: mejor "sin
// snapshot" que uno parcial.
func mapPositions(raw []dataPosition) ([]domain.PositionSnapshotEntry, error) {
	entries := make([]domain.PositionSnapshotEntry, 0, len(raw))
	for i, r := range raw {
		e, err := mapPosition(r)
		if err != nil {
			return nil, fmt.Errorf("position %d (%s): %w", i, r.ConditionID, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// mapPosition convierte un dataPosition. Un outcomeIndex fuera de {0,1} deja
// Side vacío y el tracker descarta la entrada.
func mapPosition(r dataPosition) (domain.PositionSnapshotEntry, error) {
	shares, err := num(r.Size, "size")
	if err != nil {
		return domain.PositionSnapshotEntry{}, err
	}
	avg, err := num(r.AvgPrice, "avgPrice")
	if err != nil {
		return domain.PositionSnapshotEntry{}, err
	}
	cur, err := num(r.CurPrice, "curPrice")
	if err != nil {
		return domain.PositionSnapshotEntry{}, err
	}
	pnl, err := num(r.CashPnl, "cashPnl")
	if err != nil {
		return domain.PositionSnapshotEntry{}, err
	}

	side, _ := domain.SideFromIndex(r.OutcomeIndex)
	return domain.PositionSnapshotEntry{
		MarketID:      strings.ToLower(r.ConditionID),
		Title:         r.Title,
		Outcome:       r.Outcome,
		Side:          side,
		Shares:        shares,
		EntryPrice:    avg,
		CurrentPrice:  cur,
		UnrealizedPnL: pnl,
	}, nil
}

// mapReputation convierte el perfil de Gamma. accuracy se escala ×100.
func mapReputation(u gammaUser) (domain.Reputation, error) {
	acc, err := num(u.Accuracy, "accuracy")
	if err != nil {
		return domain.Reputation{}, err
	}
	trades, err := num(u.Trades, "trades")
	if err != nil {
		return domain.Reputation{}, err
	}
	profit, err := num(u.ProfitLoss, "profit_loss")
	if err != nil {
		return domain.Reputation{}, err
	}
	return domain.Reputation{
		AccuracyPct: acc * 100,
		TotalTrades: int(trades),
		NetProfit:   profit,
	}, nil
}

// mapQuote convierte un mercado de Gamma a domain.MarketQuote.
func mapQuote(gm gammaMarket, at time.Time) (domain.MarketQuote, error) {
	vol, err := num(gm.Volume, "volume")
	if err != nil {
		return domain.MarketQuote{}, err
	}
	liq, err := num(gm.Liquidity, "liquidity")
	if err != nil {
		return domain.MarketQuote{}, err
	}
	ask, err := num(gm.BestAsk, "bestAsk")
	if err != nil {
		return domain.MarketQuote{}, err
	}
	return domain.MarketQuote{
		MarketID:  strings.ToLower(gm.ConditionID),
		Question:  gm.Question,
		Volume:    vol,
		Liquidity: liq,
		BestAsk:   ask,
		FetchedAt: at,
	}, nil
}

// num parsea un json.Number; ausente cuenta como 0.
func num(n json.Number, field string) (float64, error) {
	if n == "" {
		return 0, nil
	}
	v, err := n.Float64()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}
	return v, nil
}
