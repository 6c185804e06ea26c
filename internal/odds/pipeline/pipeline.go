package pipeline

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/gamewatcher/odds-collector/internal/odds/model"
	"github.com/gamewatcher/odds-collector/internal/odds/normalizer"
	"github.com/gamewatcher/odds-collector/internal/webhook"
	"github.com/gamewatcher/odds-collector/pkg/contracts/events"
)

// Fetcher busca os payloads brutos do provedor por esporte
type Fetcher interface {
	Enabled() bool
	FetchAll(ctx context.Context) map[string]json.RawMessage
}

// Store persiste e consulta as odds do ciclo
type Store interface {
	UpsertBatch(ctx context.Context, records []model.Record) int
	ListCurrent(ctx context.Context, sport string) ([]model.Record, error)
	EnabledWebhooks(ctx context.Context) ([]webhook.Subscription, error)
}

// Cache atualiza a listagem corrente por esporte
type Cache interface {
	SetCurrent(ctx context.Context, sport string, records []model.Record) error
}

// Publisher envia cada odd persistida para o bus
type Publisher interface {
	Publish(ctx context.Context, e events.OddsUpdate) error
}

// Notifier faz o fan-out de webhooks do resumo do ciclo
type Notifier interface {
	Send(ctx context.Context, payload webhook.Payload, subs []webhook.Subscription) webhook.Summary
}

// Result resume um ciclo de coleta
type Result struct {
	Collected int           `json:"collected"`
	Inserted  int           `json:"inserted"`
	Sports    []string      `json:"sports"`
	Duration  time.Duration `json:"duration"`
}

// Pipeline executa um ciclo completo: fetch -> normalize -> upsert ->
// cache/bus -> webhooks. Toda falha de estágio é logada e degrada o
// resultado; nada aqui derruba o loop do scheduler.
type Pipeline struct {
	Log        *zap.Logger
	Client     Fetcher
	Normalizer *normalizer.Normalizer
	Store      Store
	Cache      Cache     // opcional
	Publisher  Publisher // opcional
	Notifier   Notifier

	OnCycle    func()      // métricas (counter++)
	OnUpserted func(n int) // métricas
}

// RunCycle roda um ciclo de ponta a ponta
func (p *Pipeline) RunCycle(ctx context.Context) (Result, error) {
	start := time.Now()
	if p.OnCycle != nil {
		p.OnCycle()
	}

	var res Result

	raw := p.Client.FetchAll(ctx)
	if len(raw) == 0 {
		p.Log.Warn("no odds data available in collection cycle")
		res.Duration = time.Since(start)
		return res, nil
	}

	res.Sports = sortedSports(raw)

	records := p.Normalizer.ParseAll(raw)
	res.Collected = len(records)
	if len(records) == 0 {
		p.Log.Warn("no odds parsed in collection cycle")
		res.Duration = time.Since(start)
		return res, nil
	}

	res.Inserted = p.Store.UpsertBatch(ctx, records)
	if p.OnUpserted != nil {
		p.OnUpserted(res.Inserted)
	}

	p.refreshCache(ctx, res.Sports)
	p.publishUpdates(ctx, records)

	if res.Inserted > 0 {
		p.notify(ctx, res.Inserted, res.Sports)
	}

	res.Duration = time.Since(start)
	p.Log.Info("collection cycle finished",
		zap.Int("collected", res.Collected),
		zap.Int("inserted", res.Inserted),
		zap.Duration("duration", res.Duration),
	)
	return res, nil
}

// refreshCache regrava a listagem corrente dos esportes tocados pelo ciclo
func (p *Pipeline) refreshCache(ctx context.Context, sports []string) {
	if p.Cache == nil {
		return
	}
	for _, sport := range sports {
		rows, err := p.Store.ListCurrent(ctx, sport)
		if err != nil {
			p.Log.Warn("cache refresh read failed", zap.String("sport", sport), zap.Error(err))
			continue
		}
		if err := p.Cache.SetCurrent(ctx, sport, rows); err != nil {
			p.Log.Warn("cache refresh write failed", zap.String("sport", sport), zap.Error(err))
		}
	}
}

// publishUpdates envia cada record do ciclo para o tópico de odds
func (p *Pipeline) publishUpdates(ctx context.Context, records []model.Record) {
	if p.Publisher == nil {
		return
	}
	for _, rec := range records {
		// erro já logado pelo publisher; segue para o próximo record
		_ = p.Publisher.Publish(ctx, toUpdateEvent(rec))
	}
}

// notify dispara o fan-out de webhooks com o resumo do ciclo
func (p *Pipeline) notify(ctx context.Context, inserted int, sports []string) {
	if p.Notifier == nil {
		return
	}

	subs, err := p.Store.EnabledWebhooks(ctx)
	if err != nil {
		p.Log.Warn("load webhook subscriptions failed", zap.Error(err))
		return
	}
	if len(subs) == 0 {
		return
	}

	p.Log.Info("sending odds update to webhooks", zap.Int("webhooks", len(subs)))
	payload := webhook.NewOddsUpdatePayload(inserted, sports)
	p.Notifier.Send(ctx, payload, subs)
}

// toUpdateEvent projeta o record no contrato do tópico odds_updates
func toUpdateEvent(rec model.Record) events.OddsUpdate {
	best := make(map[string]events.BestPrice, len(rec.BestPrices))
	for k, v := range rec.BestPrices {
		best[k] = events.BestPrice{
			Price:       v.Price,
			Bookmaker:   v.Bookmaker,
			Probability: v.Probability,
		}
	}
	return events.OddsUpdate{
		ProviderEventID: rec.ProviderEventID,
		Sport:           rec.Sport,
		CommenceTime:    rec.CommenceTime,
		HomeTeam:        rec.HomeTeam,
		AwayTeam:        rec.AwayTeam,
		BestPrices:      best,
		BookmakerCount:  rec.BookmakerCount,
		ObservedAt:      rec.ObservedAt,
		Source:          "odds-collector",
	}
}

func sortedSports(raw map[string]json.RawMessage) []string {
	sports := make([]string, 0, len(raw))
	for sport := range raw {
		sports = append(sports, sport)
	}
	sort.Strings(sports)
	return sports
}
