package normalizer

import (
	"encoding/json"
	"math"
	"testing"

	"go.uber.org/zap"

	"github.com/gamewatcher/odds-collector/internal/odds/model"
)

const twoBookmakersPayload = `[{
	"id": "evt-1",
	"commence_time": "2026-11-01T19:00:00Z",
	"home_team": "Team A",
	"away_team": "Team B",
	"bookmakers": [
		{"title": "B1", "markets": [{"key": "h2h", "outcomes": [
			{"name": "Team A", "price": 2.5},
			{"name": "Team B", "price": 2.8}
		]}]},
		{"title": "B2", "markets": [{"key": "h2h", "outcomes": [
			{"name": "Team A", "price": 2.7},
			{"name": "Team B", "price": 2.6}
		]}]}
	]
}]`

func TestBestPriceSelection(t *testing.T) {
	n := New(zap.NewNop())

	records := n.ParseSport("nfl", json.RawMessage(twoBookmakersPayload))
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}

	rec := records[0]
	home := rec.BestPrices[model.OutcomeHome]
	if home.Price != 2.7 || home.Bookmaker != "B2" {
		t.Errorf("best home = %+v, want price 2.7 from B2", home)
	}

	away := rec.BestPrices[model.OutcomeAway]
	if away.Price != 2.8 || away.Bookmaker != "B1" {
		t.Errorf("best away = %+v, want price 2.8 from B1", away)
	}

	draw := rec.BestPrices[model.OutcomeDraw]
	if draw.Price != 0 || draw.Bookmaker != "" {
		t.Errorf("best draw = %+v, want zero default without bookmaker", draw)
	}

	if rec.BookmakerCount != 2 {
		t.Errorf("bookmaker count = %d, want 2", rec.BookmakerCount)
	}
	if len(rec.Quotes) != 4 {
		t.Errorf("quotes = %d, want 4", len(rec.Quotes))
	}
}

func TestBestPriceTieKeepsFirstSeen(t *testing.T) {
	payload := `[{
		"id": "evt-tie",
		"commence_time": "2026-11-01T19:00:00Z",
		"home_team": "Team A",
		"away_team": "Team B",
		"bookmakers": [
			{"title": "First", "markets": [{"key": "h2h", "outcomes": [{"name": "Team A", "price": 2.5}]}]},
			{"title": "Second", "markets": [{"key": "h2h", "outcomes": [{"name": "Team A", "price": 2.5}]}]}
		]
	}]`

	records := New(zap.NewNop()).ParseSport("nba", json.RawMessage(payload))
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}

	home := records[0].BestPrices[model.OutcomeHome]
	if home.Bookmaker != "First" {
		t.Errorf("tie winner = %q, want first-seen bookmaker", home.Bookmaker)
	}
}

func TestOutcomeKeyMapping(t *testing.T) {
	payload := `[{
		"id": "evt-draw",
		"commence_time": "2026-11-01T19:00:00Z",
		"home_team": "Team A",
		"away_team": "Team B",
		"bookmakers": [
			{"title": "B1", "markets": [{"key": "h2h", "outcomes": [
				{"name": "DRAW", "price": 3.1},
				{"name": "Someone Else", "price": 9.9}
			]}]}
		]
	}]`

	records := New(zap.NewNop()).ParseSport("futbol", json.RawMessage(payload))
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	rec := records[0]

	if rec.BestPrices[model.OutcomeDraw].Price != 3.1 {
		t.Errorf("draw price = %v, want 3.1 (case-insensitive match)", rec.BestPrices[model.OutcomeDraw].Price)
	}

	// outcome desconhecido fica fora do resumo mas permanece nas quotes
	if rec.BestPrices[model.OutcomeHome].Price != 0 {
		t.Errorf("home price = %v, want 0", rec.BestPrices[model.OutcomeHome].Price)
	}
	if len(rec.Quotes) != 2 {
		t.Errorf("quotes = %d, want 2", len(rec.Quotes))
	}
}

func TestNonH2HMarketsIgnoredForBestPrices(t *testing.T) {
	payload := `[{
		"id": "evt-spread",
		"commence_time": "2026-11-01T19:00:00Z",
		"home_team": "Team A",
		"away_team": "Team B",
		"bookmakers": [
			{"title": "B1", "markets": [{"key": "spreads", "outcomes": [
				{"name": "Team A", "price": 1.9, "point": -3.5}
			]}]}
		]
	}]`

	records := New(zap.NewNop()).ParseSport("nfl", json.RawMessage(payload))
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	rec := records[0]

	if rec.BestPrices[model.OutcomeHome].Price != 0 {
		t.Errorf("home price = %v, want 0 (spreads fora do resumo)", rec.BestPrices[model.OutcomeHome].Price)
	}
	if len(rec.Quotes) != 1 || rec.Quotes[0].Point == nil || *rec.Quotes[0].Point != -3.5 {
		t.Errorf("spread quote not preserved: %+v", rec.Quotes)
	}
}

func TestImpliedProbability(t *testing.T) {
	tests := []struct {
		price float64
		want  float64
	}{
		{2.5, 40.00},
		{2.0, 50.00},
		{3.0, 33.33},
		{0, 0},
		{-1, 0},
	}

	for _, tt := range tests {
		got := ImpliedProbability(tt.price)
		if math.Abs(got-tt.want) > 0.01 {
			t.Errorf("ImpliedProbability(%v) = %v, want %v", tt.price, got, tt.want)
		}
	}
}

func TestMalformedEventEntrySkipped(t *testing.T) {
	payload := `[
		{
			"id": "evt-good",
			"commence_time": "2026-11-01T19:00:00Z",
			"home_team": "Team A",
			"away_team": "Team B",
			"bookmakers": []
		},
		{
			"id": 12345,
			"commence_time": "not-a-timestamp"
		}
	]`

	records := New(zap.NewNop()).ParseSport("mma", json.RawMessage(payload))
	if len(records) != 1 {
		t.Fatalf("expected exactly 1 record after skipping malformed entry, got %d", len(records))
	}
	if records[0].ProviderEventID != "evt-good" {
		t.Errorf("kept record = %q, want evt-good", records[0].ProviderEventID)
	}
}

func TestInvalidSportPayloadYieldsNothing(t *testing.T) {
	records := New(zap.NewNop()).ParseSport("nba", json.RawMessage(`{"not": "an array"}`))
	if records != nil {
		t.Errorf("expected nil records for invalid payload, got %v", records)
	}
}

func TestParseAllFlattensSports(t *testing.T) {
	payloads := map[string]json.RawMessage{
		"nfl": json.RawMessage(twoBookmakersPayload),
		"nba": json.RawMessage(twoBookmakersPayload),
	}

	records := New(zap.NewNop()).ParseAll(payloads)
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	sports := map[string]bool{}
	for _, rec := range records {
		sports[rec.Sport] = true
	}
	if !sports["nfl"] || !sports["nba"] {
		t.Errorf("sports = %v, want nfl and nba", sports)
	}
}
