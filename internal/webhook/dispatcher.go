package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	defaultTimeout  = 10 * time.Second
	defaultAttempts = 3

	userAgent = "odds-collector/1.0"
)

// Subscription é um endpoint assinante registrado externamente
type Subscription struct {
	Name    string `json:"name"`
	URL     string `json:"url"`
	Enabled bool   `json:"enabled"`
}

// Payload é o corpo enviado aos assinantes após um ciclo com novas linhas
type Payload struct {
	EventType   string    `json:"event_type"`
	Timestamp   time.Time `json:"timestamp"`
	OddsUpdated int       `json:"odds_updated"`
	Sports      []string  `json:"sports"`
}

// NewOddsUpdatePayload monta o resumo do ciclo para o fan-out
func NewOddsUpdatePayload(oddsUpdated int, sports []string) Payload {
	return Payload{
		EventType:   "betting_odds_update",
		Timestamp:   time.Now(),
		OddsUpdated: oddsUpdated,
		Sports:      sports,
	}
}

// DeliveryResult é o resultado da entrega para um assinante
type DeliveryResult struct {
	Webhook    string `json:"webhook"`
	URL        string `json:"url"`
	Success    bool   `json:"success"`
	StatusCode int    `json:"status_code,omitempty"`
	Error      string `json:"error,omitempty"`
	Attempts   int    `json:"attempts"`
}

// Summary agrega o resultado do fan-out de um ciclo.
// Success = true quando pelo menos um assinante recebeu a entrega.
type Summary struct {
	Success          bool             `json:"success"`
	EventsSent       int              `json:"events_sent"`
	WebhooksNotified int              `json:"webhooks_notified"`
	TotalWebhooks    int              `json:"total_webhooks"`
	Results          []DeliveryResult `json:"results"`
}

// Dispatcher entrega notificações aos assinantes com retry independente
// por endpoint e validação anti-SSRF antes de qualquer requisição
type Dispatcher struct {
	Log      *zap.Logger
	Client   *http.Client
	Attempts int

	// OnDelivery é chamado por entrega concluída (métricas)
	OnDelivery func(success bool)
}

func NewDispatcher(log *zap.Logger) *Dispatcher {
	return &Dispatcher{
		Log:      log,
		Client:   &http.Client{Timeout: defaultTimeout},
		Attempts: defaultAttempts,
	}
}

// Send entrega o payload a todos os assinantes, em paralelo.
// Falha de um assinante nunca bloqueia nem aborta os demais.
func (d *Dispatcher) Send(ctx context.Context, payload Payload, subs []Subscription) Summary {
	summary := Summary{
		EventsSent:    payload.OddsUpdated,
		TotalWebhooks: len(subs),
		Results:       make([]DeliveryResult, len(subs)),
	}
	if len(subs) == 0 {
		d.Log.Warn("no webhook endpoints configured")
		return summary
	}

	body, err := json.Marshal(payload)
	if err != nil {
		d.Log.Error("marshal webhook payload failed", zap.Error(err))
		return summary
	}

	var wg sync.WaitGroup
	for i, sub := range subs {
		wg.Add(1)
		go func(i int, sub Subscription) {
			defer wg.Done()
			summary.Results[i] = d.deliver(ctx, sub, body)
		}(i, sub)
	}
	wg.Wait()

	for _, res := range summary.Results {
		if res.Success {
			summary.WebhooksNotified++
		}
	}
	summary.Success = summary.WebhooksNotified > 0

	d.Log.Info("webhook fan-out finished",
		zap.Int("notified", summary.WebhooksNotified),
		zap.Int("total", summary.TotalWebhooks),
		zap.Bool("success", summary.Success),
	)
	return summary
}

// deliver entrega o corpo a um assinante com até Attempts tentativas.
// Sucesso = status 200/201/202/204; falha ou timeout reenviam na hora,
// sem backoff; esgotadas as tentativas fica registrado o último erro.
func (d *Dispatcher) deliver(ctx context.Context, sub Subscription, body []byte) DeliveryResult {
	result := DeliveryResult{Webhook: sub.Name, URL: sub.URL}

	if err := SafeURL(sub.URL); err != nil {
		d.Log.Warn("unsafe webhook url rejected",
			zap.String("webhook", sub.Name),
			zap.String("url", sub.URL),
			zap.Error(err),
		)
		result.Error = "invalid or unsafe webhook URL"
		if d.OnDelivery != nil {
			d.OnDelivery(false)
		}
		return result
	}

	for attempt := 1; attempt <= d.Attempts; attempt++ {
		result.Attempts = attempt

		status, err := d.post(ctx, sub.URL, body)
		if err != nil {
			d.Log.Warn("webhook delivery error",
				zap.String("webhook", sub.Name),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			result.Error = err.Error()
			continue
		}

		result.StatusCode = status
		if deliveredStatus(status) {
			d.Log.Info("webhook delivered",
				zap.String("webhook", sub.Name),
				zap.Int("status", status),
				zap.Int("attempt", attempt),
			)
			result.Success = true
			result.Error = ""
			if d.OnDelivery != nil {
				d.OnDelivery(true)
			}
			return result
		}

		d.Log.Warn("webhook returned non-success status",
			zap.String("webhook", sub.Name),
			zap.Int("status", status),
			zap.Int("attempt", attempt),
		)
		result.Error = fmt.Sprintf("HTTP %d", status)
	}

	if d.OnDelivery != nil {
		d.OnDelivery(false)
	}
	return result
}

// Test faz um ping de conectividade em uma URL: mesma validação anti-SSRF,
// uma única tentativa, sem retry
func (d *Dispatcher) Test(ctx context.Context, rawurl string) bool {
	if err := SafeURL(rawurl); err != nil {
		d.Log.Warn("unsafe webhook url rejected", zap.String("url", rawurl), zap.Error(err))
		return false
	}

	ping := map[string]any{
		"event_type": "test",
		"timestamp":  time.Now(),
		"message":    "webhook connectivity test from odds-collector",
	}
	body, _ := json.Marshal(ping)

	status, err := d.post(ctx, rawurl, body)
	if err != nil {
		d.Log.Warn("webhook test failed", zap.String("url", rawurl), zap.Error(err))
		return false
	}
	return deliveredStatus(status)
}

// post envia o corpo JSON e devolve o status HTTP
func (d *Dispatcher) post(ctx context.Context, rawurl string, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawurl, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := d.Client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	return resp.StatusCode, nil
}

// deliveredStatus diz se o status conta como entrega aceita
func deliveredStatus(status int) bool {
	switch status {
	case http.StatusOK, http.StatusCreated, http.StatusAccepted, http.StatusNoContent:
		return true
	}
	return false
}
