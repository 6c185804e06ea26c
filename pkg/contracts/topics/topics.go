package topics

const (
	// Odds
	OddsUpdates = "odds_updates"
)
