package domain

// OrderIntent is the order derived from an accepted signal, handed to the
// live execution path.
type OrderIntent struct {
	SignalID string
	MarketID string
	Outcome  string
	Side     Side
	Price    float64
	Shares   float64
	Capital  float64
}

// OrderAck is the venue response after placing an order.
type OrderAck struct {
	OrderID      string
	Status       string
	FilledPrice  float64
	FilledShares float64
}

// IntentFor builds the order intent of a signal.
func IntentFor(s CopySignal) OrderIntent {
	return OrderIntent{
		SignalID: s.ID,
		MarketID: s.MarketID,
		Outcome:  s.Outcome,
		Side:     s.Side,
		Price:    s.CurrentPrice,
		Shares:   s.Shares(),
		Capital:  s.Capital(),
	}
}
