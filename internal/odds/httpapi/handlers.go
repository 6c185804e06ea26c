package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/gamewatcher/odds-collector/internal/odds/store"
	"github.com/gamewatcher/odds-collector/internal/scheduler"
	"github.com/gamewatcher/odds-collector/internal/webhook"
)

// API expõe os endpoints REST de consulta de odds e controle do scheduler
// Utiliza um repositório de leitura (Postgres) e cache (Redis)
type API struct {
	Log   *zap.Logger
	Repo  *store.Repo          // acesso ao banco de dados
	Cache *store.Cache         // cache da listagem corrente
	Sched *scheduler.Scheduler // scheduler de coleta
	Hooks *webhook.Dispatcher  // teste de conectividade de webhook
}

// Router retorna o roteador HTTP com os endpoints REST
func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/v1/odds", a.listOdds)               // Lista odds correntes (futuras)
	r.Get("/v1/odds/lookup", a.lookupOdds)      // Busca odds por participantes
	r.Post("/v1/collect", a.collectNow)         // Dispara um ciclo de coleta
	r.Post("/v1/scheduler/start", a.startSched) // Liga o scheduler
	r.Post("/v1/scheduler/stop", a.stopSched)   // Desliga o scheduler
	r.Get("/v1/scheduler/status", a.schedStatus)
	r.Post("/v1/webhooks/test", a.testWebhook) // Ping de conectividade
	return r
}

// writeJSON serializa a resposta em JSON e define o status HTTP
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// listOdds retorna as odds de eventos futuros, preferencialmente do cache
func (a *API) listOdds(w http.ResponseWriter, r *http.Request) {
	sport := r.URL.Query().Get("sport")

	if rows, ok, _ := a.Cache.GetCurrent(r.Context(), sport); ok {
		writeJSON(w, http.StatusOK, map[string]any{"odds": rows, "total": len(rows)})
		return
	}

	rows, err := a.Repo.ListCurrent(r.Context(), sport)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	if err := a.Cache.SetCurrent(r.Context(), sport, rows); err != nil {
		a.Log.Warn("cache write failed", zap.String("sport", sport), zap.Error(err))
	}
	writeJSON(w, http.StatusOK, map[string]any{"odds": rows, "total": len(rows)})
}

// lookupOdds resolve as odds de um evento pelos fragmentos de nome dos
// participantes (?sport=nfl&participant=Kansas+City&participant=Bills)
func (a *API) lookupOdds(w http.ResponseWriter, r *http.Request) {
	sport := r.URL.Query().Get("sport")
	fragments := r.URL.Query()["participant"]
	if sport == "" || len(fragments) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "sport and participant are required"})
		return
	}

	rec, err := a.Repo.FindByParticipants(r.Context(), sport, fragments)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// collectNow dispara um ciclo sob demanda; 409 se já houver ciclo rodando
func (a *API) collectNow(w http.ResponseWriter, r *http.Request) {
	res, err := a.Sched.CollectNow(r.Context())
	if err != nil {
		if errors.Is(err, scheduler.ErrCycleRunning) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"collected":        res.Collected,
		"inserted":         res.Inserted,
		"sports":           res.Sports,
		"duration_seconds": res.Duration.Seconds(),
	})
}

func (a *API) startSched(w http.ResponseWriter, r *http.Request) {
	a.Sched.Start()
	writeJSON(w, http.StatusOK, a.Sched.Status())
}

func (a *API) stopSched(w http.ResponseWriter, r *http.Request) {
	a.Sched.Stop()
	writeJSON(w, http.StatusOK, a.Sched.Status())
}

func (a *API) schedStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.Sched.Status())
}

// testWebhook valida e pinga uma URL de webhook com uma única tentativa
func (a *API) testWebhook(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "url is required"})
		return
	}

	reachable := a.Hooks.Test(r.Context(), req.URL)
	writeJSON(w, http.StatusOK, map[string]any{"url": req.URL, "reachable": reachable})
}
