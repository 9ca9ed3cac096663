package polymarket

import "encoding/json"

// DTOs raw de la API de Polymarket. Solo se usan dentro de este paquete.
// La conversión a domain entities se hace en mapping.go.
// Algunos campos numéricos llegan como strings JSON, usamos json.Number.

// --- Data API ---

// dataPosition es un item de GET /positions?user=...
type dataPosition struct {
	ProxyWallet  string      `json:"proxyWallet"`
	Asset        string      `json:"asset"`
	ConditionID  string      `json:"conditionId"`
	Title        string      `json:"title"`
	Outcome      string      `json:"outcome"`
	OutcomeIndex int         `json:"outcomeIndex"`
	Size         json.Number `json:"size"`
	AvgPrice     json.Number `json:"avgPrice"`
	CurPrice     json.Number `json:"curPrice"`
	CashPnl      json.Number `json:"cashPnl"`
	Redeemable   bool        `json:"redeemable"`
}

// --- Gamma API ---

// gammaUser es la respuesta de GET /users/{address}.
// accuracy llega como fracción (0.74 = 74%).
type gammaUser struct {
	Username      string      `json:"username"`
	Accuracy      json.Number `json:"accuracy"`
	Trades        json.Number `json:"trades"`
	ProfitLoss    json.Number `json:"profit_loss"`
	Volume        json.Number `json:"volume"`
	MarketsTraded json.Number `json:"markets_traded"`
}

// gammaMarketsResponse es la respuesta de GET /markets de Gamma.
type gammaMarketsResponse []gammaMarket

// gammaMarket contiene la metadata de un mercado usada para la quote.
type gammaMarket struct {
	ConditionID string      `json:"conditionId"`
	Question    string      `json:"question"`
	Volume      json.Number `json:"volume"`
	Liquidity   json.Number `json:"liquidity"`
	BestAsk     json.Number `json:"bestAsk"`
	Active      bool        `json:"active"`
	Closed      bool        `json:"closed"`
}
