package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	defaultMinInterval = 2 * time.Second
	defaultMaxJitter   = 500 * time.Millisecond
	defaultTimeout     = 15 * time.Second
	maxAttempts        = 3

	userAgent = "odds-collector/1.0"
)

// DefaultSports mapeia o identificador interno de esporte para a chave do provedor
var DefaultSports = map[string]string{
	"futbol": "soccer_epl",
	"nfl":    "americanfootball_nfl",
	"nba":    "basketball_nba",
	"mma":    "mma_mixed_martial_arts",
	"boxing": "boxing_boxing",
	"f1":     "motorsport_racing", // F1 pode não estar disponível no provedor
}

// Options parametriza o Client; campos zerados caem nos defaults
type Options struct {
	APIKey      string
	BaseURL     string
	Sports      map[string]string
	Proxies     []string
	MinInterval time.Duration
	MaxJitter   time.Duration
	Timeout     time.Duration
}

// Client acessa a API do provedor de odds com rate limit global,
// rotação de proxies e retry por requisição.
// Sem ODDS_API_KEY o client fica desabilitado e FetchAll devolve vazio.
type Client struct {
	apiKey  string
	baseURL string
	sports  map[string]string
	ring    *proxyRing
	httpc   *http.Client
	log     *zap.Logger

	// OnFetchError é chamado a cada esporte que falhou no ciclo (métricas)
	OnFetchError func(sport string)

	sleep func(time.Duration) // substituível em teste

	mu          sync.Mutex
	lastRequest time.Time
	minInterval time.Duration
	maxJitter   time.Duration
}

// New cria o client do provedor aplicando defaults nas opções omitidas
func New(opts Options, log *zap.Logger) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.the-odds-api.com/v4"
	}
	if opts.Sports == nil {
		opts.Sports = DefaultSports
	}
	if opts.MinInterval == 0 {
		opts.MinInterval = defaultMinInterval
	}
	if opts.MaxJitter == 0 {
		opts.MaxJitter = defaultMaxJitter
	}
	if opts.Timeout == 0 {
		opts.Timeout = defaultTimeout
	}

	return &Client{
		apiKey:      opts.APIKey,
		baseURL:     opts.BaseURL,
		sports:      opts.Sports,
		ring:        newProxyRing(opts.Proxies, opts.Timeout),
		httpc:       &http.Client{Timeout: opts.Timeout},
		log:         log,
		sleep:       time.Sleep,
		minInterval: opts.MinInterval,
		maxJitter:   opts.MaxJitter,
	}
}

// Enabled indica se a credencial do provedor está configurada
func (c *Client) Enabled() bool {
	return c.apiKey != ""
}

// FetchAll busca o payload bruto de cada esporte configurado.
// Falha em um esporte não interrompe os demais; esportes sem dados ficam fora do mapa.
func (c *Client) FetchAll(ctx context.Context) map[string]json.RawMessage {
	out := make(map[string]json.RawMessage)

	if !c.Enabled() {
		c.log.Warn("ODDS_API_KEY not configured, betting odds collection disabled")
		return out
	}

	for sport, providerKey := range c.sports {
		c.log.Info("fetching odds",
			zap.String("sport", sport),
			zap.String("provider_key", providerKey),
		)

		body, remaining := c.fetchSport(ctx, providerKey)
		if body == nil {
			c.log.Warn("failed to fetch odds", zap.String("sport", sport))
			if c.OnFetchError != nil {
				c.OnFetchError(sport)
			}
			continue
		}

		var entries []json.RawMessage
		if err := json.Unmarshal(body, &entries); err != nil {
			c.log.Warn("invalid provider payload", zap.String("sport", sport), zap.Error(err))
			if c.OnFetchError != nil {
				c.OnFetchError(sport)
			}
			continue
		}
		if len(entries) == 0 {
			c.log.Info("no events returned", zap.String("sport", sport))
			continue
		}

		out[sport] = json.RawMessage(body)
		c.log.Info("retrieved odds",
			zap.String("sport", sport),
			zap.Int("events", len(entries)),
		)
		if remaining != "" {
			c.log.Info("api requests remaining", zap.String("remaining", remaining))
		}
	}

	return out
}

// fetchSport monta a URL de odds do provedor e executa a requisição
func (c *Client) fetchSport(ctx context.Context, providerKey string) ([]byte, string) {
	q := url.Values{}
	q.Set("apiKey", c.apiKey)
	q.Set("regions", "us,uk")
	q.Set("markets", "h2h,spreads,totals")
	q.Set("oddsFormat", "decimal")
	q.Set("dateFormat", "iso")

	endpoint := fmt.Sprintf("%s/sports/%s/odds?%s", c.baseURL, providerKey, q.Encode())
	return c.doRequest(ctx, endpoint)
}

// doRequest executa a requisição com até 3 tentativas:
// 429 espera (tentativa+1)*5s; outros status rotacionam proxy quando há pool;
// erro de transporte usa backoff exponencial 2^tentativa e rotaciona proxy.
// Esgotadas as tentativas devolve nil (soft-fail).
func (c *Client) doRequest(ctx context.Context, endpoint string) ([]byte, string) {
	c.waitTurn()

	httpc, proxy := c.nextClient()

	for attempt := 0; attempt < maxAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			c.log.Error("build request failed", zap.Error(err))
			return nil, ""
		}
		req.Header.Set("User-Agent", userAgent)

		resp, err := httpc.Do(req)
		if err != nil {
			c.log.Error("request error",
				zap.Int("attempt", attempt+1),
				zap.String("proxy", proxy),
				zap.Error(err),
			)
			if attempt < maxAttempts-1 {
				c.sleep(time.Duration(1<<attempt) * time.Second)
				httpc, proxy = c.nextClient()
				continue
			}
			return nil, ""
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK:
			if readErr != nil {
				c.log.Error("read response failed", zap.Error(readErr))
				return nil, ""
			}
			return body, resp.Header.Get("x-requests-remaining")

		case resp.StatusCode == http.StatusTooManyRequests:
			wait := time.Duration(attempt+1) * 5 * time.Second
			c.log.Warn("rate limited by provider",
				zap.Duration("wait", wait),
				zap.Int("attempt", attempt+1),
			)
			c.sleep(wait)

		default:
			c.log.Warn("request failed",
				zap.Int("status", resp.StatusCode),
				zap.Int("attempt", attempt+1),
			)
			if !c.ring.empty() && attempt < maxAttempts-1 {
				httpc, proxy = c.nextClient()
				continue
			}
			return nil, ""
		}
	}

	return nil, ""
}

// nextClient devolve o client HTTP da vez: proxy em rotação ou o default
func (c *Client) nextClient() (*http.Client, string) {
	if c.ring.empty() {
		return c.httpc, ""
	}
	return c.ring.next()
}

// waitTurn bloqueia até passar o intervalo mínimo desde a última requisição,
// somando um jitter aleatório pra evitar rajadas sincronizadas.
// O mutex faz do intervalo um recurso compartilhado entre chamadores.
func (c *Client) waitTurn() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.lastRequest.IsZero() {
		if elapsed := time.Since(c.lastRequest); elapsed < c.minInterval {
			wait := c.minInterval - elapsed
			if c.maxJitter > 0 {
				wait += time.Duration(rand.Int63n(int64(c.maxJitter)))
			}
			time.Sleep(wait)
		}
	}
	c.lastRequest = time.Now()
}
