package normalizer

import (
	"encoding/json"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/gamewatcher/odds-collector/internal/odds/model"
)

// Tipos do payload do provedor (The Odds API, formato decimal)
type providerOutcome struct {
	Name  string   `json:"name"`
	Price float64  `json:"price"`
	Point *float64 `json:"point"` // só para spreads/totals
}

type providerMarket struct {
	Key      string            `json:"key"`
	Outcomes []providerOutcome `json:"outcomes"`
}

type providerBookmaker struct {
	Title   string           `json:"title"`
	Markets []providerMarket `json:"markets"`
}

type providerEvent struct {
	ID           string              `json:"id"`
	CommenceTime time.Time           `json:"commence_time"`
	HomeTeam     string              `json:"home_team"`
	AwayTeam     string              `json:"away_team"`
	Bookmakers   []providerBookmaker `json:"bookmakers"`
}

// Normalizer transforma payloads brutos do provedor em Records canônicos
// com o resumo de melhores preços por outcome
type Normalizer struct {
	Log *zap.Logger
	Now func() time.Time // substituível em teste
}

func New(log *zap.Logger) *Normalizer {
	return &Normalizer{Log: log, Now: time.Now}
}

// ParseAll normaliza os payloads de todos os esportes do ciclo em uma lista única
func (n *Normalizer) ParseAll(payloads map[string]json.RawMessage) []model.Record {
	var out []model.Record
	for sport, payload := range payloads {
		out = append(out, n.ParseSport(sport, payload)...)
	}
	n.Log.Info("parsed betting odds entries", zap.Int("records", len(out)))
	return out
}

// ParseSport normaliza o payload de um esporte.
// Entrada malformada é pulada com warning; nunca aborta o restante do payload.
func (n *Normalizer) ParseSport(sport string, payload json.RawMessage) []model.Record {
	var entries []json.RawMessage
	if err := json.Unmarshal(payload, &entries); err != nil {
		n.Log.Warn("invalid sport payload", zap.String("sport", sport), zap.Error(err))
		return nil
	}

	observedAt := n.Now()

	var out []model.Record
	for _, entry := range entries {
		var ev providerEvent
		if err := json.Unmarshal(entry, &ev); err != nil {
			n.Log.Warn("skipping malformed event entry",
				zap.String("sport", sport),
				zap.Error(err),
			)
			continue
		}

		quotes := flattenQuotes(ev.Bookmakers)

		out = append(out, model.Record{
			ProviderEventID: ev.ID,
			Sport:           sport,
			CommenceTime:    ev.CommenceTime,
			HomeTeam:        ev.HomeTeam,
			AwayTeam:        ev.AwayTeam,
			Participants:    []string{ev.HomeTeam, ev.AwayTeam},
			Quotes:          quotes,
			BestPrices:      bestPrices(quotes, ev.HomeTeam, ev.AwayTeam),
			BookmakerCount:  distinctBookmakers(quotes),
			ObservedAt:      observedAt,
		})
	}
	return out
}

// flattenQuotes abre o produto (bookmaker, mercado, outcome) presente no payload
func flattenQuotes(bookmakers []providerBookmaker) []model.Quote {
	var quotes []model.Quote
	for _, b := range bookmakers {
		for _, m := range b.Markets {
			for _, o := range m.Outcomes {
				quotes = append(quotes, model.Quote{
					Bookmaker: b.Title,
					Market:    m.Key,
					Outcome:   o.Name,
					Price:     o.Price,
					Point:     o.Point,
				})
			}
		}
	}
	return quotes
}

// bestPrices seleciona, por outcome, a quote de maior preço no mercado h2h.
// Empate mantém a primeira quote vista (comparação estritamente maior).
// Outcome sem quote h2h fica com o zero default, sem bookmaker atribuído.
func bestPrices(quotes []model.Quote, homeTeam, awayTeam string) map[string]model.BestPrice {
	best := map[string]model.BestPrice{
		model.OutcomeHome: {},
		model.OutcomeAway: {},
		model.OutcomeDraw: {},
	}

	for _, q := range quotes {
		if q.Market != "h2h" {
			continue
		}
		key := outcomeKey(q.Outcome, homeTeam, awayTeam)
		if key == "" {
			continue
		}
		if q.Price > best[key].Price {
			best[key] = model.BestPrice{
				Price:       q.Price,
				Bookmaker:   q.Bookmaker,
				Probability: ImpliedProbability(q.Price),
			}
		}
	}

	return best
}

// outcomeKey resolve o nome do outcome para a chave canônica.
// Nome igual ao time da casa -> home; ao visitante -> away; "draw" (case
// insensitive) -> draw; qualquer outro é ignorado no resumo de melhores preços.
func outcomeKey(name, homeTeam, awayTeam string) string {
	switch {
	case name == homeTeam:
		return model.OutcomeHome
	case name == awayTeam:
		return model.OutcomeAway
	case strings.EqualFold(name, "draw"):
		return model.OutcomeDraw
	}
	return ""
}

// ImpliedProbability converte preço decimal em probabilidade implícita (%).
// Não remove o vig: a soma dos outcomes pode passar de 100.
func ImpliedProbability(price float64) float64 {
	if price <= 0 {
		return 0
	}
	return math.Round(100/price*100) / 100
}

// distinctBookmakers conta bookmakers distintos entre as quotes
func distinctBookmakers(quotes []model.Quote) int {
	seen := make(map[string]struct{}, len(quotes))
	for _, q := range quotes {
		seen[q.Bookmaker] = struct{}{}
	}
	return len(seen)
}
