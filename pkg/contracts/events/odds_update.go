package events

import "time"

// Melhor preço por outcome ("home", "away", "draw") no mercado h2h
type BestPrice struct {
	Price       float64 `json:"price"`
	Bookmaker   string  `json:"bookmaker"`
	Probability float64 `json:"probability"` // 100/price arredondado em 2 casas
}

// Evento publicado no tópico "odds_updates" após cada upsert
type OddsUpdate struct {
	ProviderEventID string               `json:"provider_event_id"`
	Sport           string               `json:"sport"`
	CommenceTime    time.Time            `json:"commence_time"`
	HomeTeam        string               `json:"home_team"`
	AwayTeam        string               `json:"away_team"`
	BestPrices      map[string]BestPrice `json:"best_prices"`
	BookmakerCount  int                  `json:"bookmaker_count"`
	ObservedAt      time.Time            `json:"observed_at"`
	Source          string               `json:"source"` // "odds-collector"
}
