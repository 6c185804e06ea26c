package model

import "time"

// Chaves canônicas de outcome no mercado h2h
const (
	OutcomeHome = "home"
	OutcomeAway = "away"
	OutcomeDraw = "draw"
)

// Quote é o preço de um bookmaker para um outcome de um mercado
// Imutável depois de produzida por um ciclo de coleta
type Quote struct {
	Bookmaker string   `json:"bookmaker"`
	Market    string   `json:"market"` // "h2h", "spreads", "totals"
	Outcome   string   `json:"outcome"`
	Price     float64  `json:"price"`
	Point     *float64 `json:"point,omitempty"` // só para spreads/totals
}

// BestPrice é o maior preço encontrado para um outcome no mercado h2h
// Probability = 100/price (não remove o vig, não soma 100%)
type BestPrice struct {
	Price       float64 `json:"price"`
	Bookmaker   string  `json:"bookmaker"`
	Probability float64 `json:"probability"`
}

// Record agrega as quotes de um evento do provedor em um ciclo
// Chave de persistência: (ProviderEventID, Sport, CommenceTime)
type Record struct {
	ProviderEventID string               `json:"provider_event_id"`
	Sport           string               `json:"sport"`
	CommenceTime    time.Time            `json:"commence_time"`
	HomeTeam        string               `json:"home_team"`
	AwayTeam        string               `json:"away_team"`
	Participants    []string             `json:"participants"`
	Quotes          []Quote              `json:"quotes"`
	BestPrices      map[string]BestPrice `json:"best_prices"`
	BookmakerCount  int                  `json:"bookmaker_count"`
	ObservedAt      time.Time            `json:"observed_at"`
}
