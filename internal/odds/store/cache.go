package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gamewatcher/odds-collector/internal/odds/model"
)

// Cache guarda no Redis a listagem corrente de odds por esporte
type Cache struct {
	R   *redis.Client
	TTL time.Duration
}

func NewCache(r *redis.Client, ttl time.Duration) *Cache {
	return &Cache{R: r, TTL: ttl}
}

// keySport gera a chave Redis da listagem de um esporte ("" = todos)
func keySport(sport string) string {
	if sport == "" {
		return "odds:current:all"
	}
	return "odds:current:" + sport
}

// GetCurrent busca a listagem no cache; false quando não há entrada
func (c *Cache) GetCurrent(ctx context.Context, sport string) ([]model.Record, bool, error) {
	b, err := c.R.Get(ctx, keySport(sport)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var out []model.Record
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, false, err
	}
	return out, true, nil
}

// SetCurrent grava a listagem de um esporte com o TTL configurado
func (c *Cache) SetCurrent(ctx context.Context, sport string, records []model.Record) error {
	b, err := json.Marshal(records)
	if err != nil {
		return err
	}
	return c.R.Set(ctx, keySport(sport), b, c.TTL).Err()
}

// Invalidate remove as entradas dos esportes tocados pelo ciclo (e a global)
func (c *Cache) Invalidate(ctx context.Context, sports []string) error {
	keys := []string{keySport("")}
	for _, s := range sports {
		keys = append(keys, keySport(s))
	}
	return c.R.Del(ctx, keys...).Err()
}
