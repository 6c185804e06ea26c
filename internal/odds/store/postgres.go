package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"go.uber.org/zap"

	"github.com/gamewatcher/odds-collector/internal/odds/model"
	"github.com/gamewatcher/odds-collector/internal/webhook"
)

// ErrNotFound indica que nenhuma linha casou com a busca
var ErrNotFound = errors.New("odds not found")

// lookupScanLimit limita o scan da busca por participantes às linhas mais recentes
const lookupScanLimit = 100

// Repo implementa a persistência de odds em Postgres.
// A chave de idempotência é (provider_event_id, sport, commence_time):
// reingestão da mesma chave substitui a linha inteira (last-write-wins).
type Repo struct {
	DB  *sql.DB
	Log *zap.Logger
}

func NewRepo(db *sql.DB, log *zap.Logger) *Repo {
	return &Repo{DB: db, Log: log}
}

// EnsureSchema cria as tabelas do pipeline quando não existem
func (r *Repo) EnsureSchema(ctx context.Context) error {
	const q = `
		CREATE TABLE IF NOT EXISTS odds_current (
		  provider_event_id TEXT        NOT NULL,
		  sport             TEXT        NOT NULL,
		  commence_time     TIMESTAMPTZ NOT NULL,
		  home_team         TEXT        NOT NULL DEFAULT '',
		  away_team         TEXT        NOT NULL DEFAULT '',
		  participants      JSONB       NOT NULL DEFAULT '[]',
		  quotes            JSONB       NOT NULL DEFAULT '[]',
		  best_prices       JSONB       NOT NULL DEFAULT '{}',
		  bookmaker_count   INT         NOT NULL DEFAULT 0,
		  observed_at       TIMESTAMPTZ NOT NULL,
		  PRIMARY KEY (provider_event_id, sport, commence_time)
		);
		CREATE INDEX IF NOT EXISTS idx_odds_current_sport_observed
		  ON odds_current (sport, observed_at DESC);

		CREATE TABLE IF NOT EXISTS webhook_subscriptions (
		  name    TEXT PRIMARY KEY,
		  url     TEXT NOT NULL,
		  enabled BOOLEAN NOT NULL DEFAULT TRUE
		);
	`
	_, err := r.DB.ExecContext(ctx, q)
	return err
}

// UpsertBatch grava os records do ciclo e devolve quantas linhas foram escritas.
// Falha em uma linha é logada e pulada, nunca derruba o lote.
func (r *Repo) UpsertBatch(ctx context.Context, records []model.Record) int {
	written := 0
	for _, rec := range records {
		if err := r.upsertOne(ctx, rec); err != nil {
			r.Log.Warn("odds upsert failed",
				zap.String("provider_event_id", rec.ProviderEventID),
				zap.String("sport", rec.Sport),
				zap.Error(err),
			)
			continue
		}
		written++
	}
	return written
}

// upsertOne insere ou substitui a linha da chave via ON CONFLICT.
// O DO UPDATE troca quotes/best_prices/contagem/observed_at por inteiro,
// sem acumular nem versionar.
func (r *Repo) upsertOne(ctx context.Context, rec model.Record) error {
	participants, err := json.Marshal(rec.Participants)
	if err != nil {
		return err
	}
	quotes, err := json.Marshal(rec.Quotes)
	if err != nil {
		return err
	}
	bestPrices, err := json.Marshal(rec.BestPrices)
	if err != nil {
		return err
	}

	const q = `
		INSERT INTO odds_current
		  (provider_event_id, sport, commence_time, home_team, away_team,
		   participants, quotes, best_prices, bookmaker_count, observed_at)
		VALUES
		  ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (provider_event_id, sport, commence_time) DO UPDATE SET
		  home_team       = EXCLUDED.home_team,
		  away_team       = EXCLUDED.away_team,
		  participants    = EXCLUDED.participants,
		  quotes          = EXCLUDED.quotes,
		  best_prices     = EXCLUDED.best_prices,
		  bookmaker_count = EXCLUDED.bookmaker_count,
		  observed_at     = EXCLUDED.observed_at
	`
	_, err = r.DB.ExecContext(ctx, q,
		rec.ProviderEventID, rec.Sport, rec.CommenceTime,
		rec.HomeTeam, rec.AwayTeam,
		participants, quotes, bestPrices,
		rec.BookmakerCount, rec.ObservedAt,
	)
	return err
}

// ListCurrent devolve as linhas com commence_time no futuro, em ordem
// crescente de início; sport vazio lista todos os esportes
func (r *Repo) ListCurrent(ctx context.Context, sport string) ([]model.Record, error) {
	const base = `
		SELECT provider_event_id, sport, commence_time, home_team, away_team,
		       participants, quotes, best_prices, bookmaker_count, observed_at
		FROM odds_current
		WHERE commence_time > NOW()
	`

	var (
		rows *sql.Rows
		err  error
	)
	if sport != "" {
		rows, err = r.DB.QueryContext(ctx, base+` AND sport = $1 ORDER BY commence_time ASC`, sport)
	} else {
		rows, err = r.DB.QueryContext(ctx, base+` ORDER BY commence_time ASC`)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.scanRecords(rows)
}

// FindByParticipants procura odds de um evento pelo nome dos participantes.
// Varre as linhas futuras mais recentes do esporte (observed_at desc, até 100)
// e devolve a primeira cujo participante case com os fragmentos informados.
func (r *Repo) FindByParticipants(ctx context.Context, sport string, fragments []string) (*model.Record, error) {
	const q = `
		SELECT provider_event_id, sport, commence_time, home_team, away_team,
		       participants, quotes, best_prices, bookmaker_count, observed_at
		FROM odds_current
		WHERE sport = $1 AND commence_time > NOW()
		ORDER BY observed_at DESC
		LIMIT $2
	`
	rows, err := r.DB.QueryContext(ctx, q, sport, lookupScanLimit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records, err := r.scanRecords(rows)
	if err != nil {
		return nil, err
	}

	for i := range records {
		if matchParticipants(records[i].Participants, fragments) {
			return &records[i], nil
		}
	}
	return nil, ErrNotFound
}

// EnabledWebhooks lê as assinaturas habilitadas para o fan-out de notificação
func (r *Repo) EnabledWebhooks(ctx context.Context) ([]webhook.Subscription, error) {
	const q = `
		SELECT name, url, enabled
		FROM webhook_subscriptions
		WHERE enabled = TRUE
		ORDER BY name
	`
	rows, err := r.DB.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []webhook.Subscription
	for rows.Next() {
		var s webhook.Subscription
		if err := rows.Scan(&s.Name, &s.URL, &s.Enabled); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// scanRecords materializa as linhas, decodificando os campos JSONB.
// Linha com JSON malformado é logada e pulada, sem abortar o resto.
func (r *Repo) scanRecords(rows *sql.Rows) ([]model.Record, error) {
	var out []model.Record
	for rows.Next() {
		var (
			rec          model.Record
			participants []byte
			quotes       []byte
			bestPrices   []byte
		)
		if err := rows.Scan(
			&rec.ProviderEventID, &rec.Sport, &rec.CommenceTime,
			&rec.HomeTeam, &rec.AwayTeam,
			&participants, &quotes, &bestPrices,
			&rec.BookmakerCount, &rec.ObservedAt,
		); err != nil {
			return nil, err
		}

		if err := json.Unmarshal(participants, &rec.Participants); err != nil {
			r.Log.Warn("invalid participants json",
				zap.String("provider_event_id", rec.ProviderEventID),
				zap.Error(err),
			)
			continue
		}
		if err := json.Unmarshal(quotes, &rec.Quotes); err != nil {
			r.Log.Warn("invalid quotes json",
				zap.String("provider_event_id", rec.ProviderEventID),
				zap.Error(err),
			)
			continue
		}
		if err := json.Unmarshal(bestPrices, &rec.BestPrices); err != nil {
			r.Log.Warn("invalid best prices json",
				zap.String("provider_event_id", rec.ProviderEventID),
				zap.Error(err),
			)
			continue
		}

		out = append(out, rec)
	}
	return out, rows.Err()
}
