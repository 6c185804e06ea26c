package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/gamewatcher/odds-collector/internal/odds/pipeline"
)

// ErrCycleRunning indica que já existe um ciclo em andamento
var ErrCycleRunning = errors.New("a collection cycle is already running")

// Runner é o ciclo de coleta executado a cada disparo
type Runner interface {
	RunCycle(ctx context.Context) (pipeline.Result, error)
}

// Status expõe o estado corrente do scheduler
type Status struct {
	Running  bool       `json:"running"`
	Interval string     `json:"interval"`
	NextRun  *time.Time `json:"next_run,omitempty"`
}

// Scheduler dispara o ciclo de coleta em intervalo fixo.
// Garantias: start idempotente, primeira execução síncrona e imediata,
// no máximo um ciclo em andamento (disparo sobreposto é pulado, não
// enfileirado) e stop que cancela só os próximos disparos, deixando o
// ciclo em andamento terminar.
type Scheduler struct {
	log      *zap.Logger
	runner   Runner
	interval time.Duration
	enabled  bool // credencial do provedor presente

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	nextRun time.Time

	inFlight atomic.Bool
}

func New(runner Runner, interval time.Duration, enabled bool, log *zap.Logger) *Scheduler {
	return &Scheduler{
		log:      log,
		runner:   runner,
		interval: interval,
		enabled:  enabled,
	}
}

// Start liga o scheduler: roda um ciclo na hora e agenda os seguintes.
// Sem credencial do provedor o start é recusado com log, sem erro:
// a coleta de odds é uma feature opcional.
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.running {
		s.log.Warn("betting odds scheduler is already running")
		s.mu.Unlock()
		return
	}
	if !s.enabled {
		s.log.Warn("ODDS_API_KEY not configured, betting odds scheduler disabled")
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	stopCh := s.stopCh
	s.mu.Unlock()

	// primeira execução síncrona e imediata
	s.runCycle()

	go s.loop(stopCh)
	s.log.Info("betting odds scheduler started", zap.Duration("interval", s.interval))
}

// Stop cancela os próximos disparos; ciclo em andamento termina sozinho
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	close(s.stopCh)
	s.running = false
	s.log.Info("betting odds scheduler stopped")
}

// CollectNow roda um ciclo sob demanda, compartilhando a trava de
// single-flight com o loop agendado
func (s *Scheduler) CollectNow(ctx context.Context) (pipeline.Result, error) {
	if !s.inFlight.CompareAndSwap(false, true) {
		return pipeline.Result{}, ErrCycleRunning
	}
	defer s.inFlight.Store(false)

	return s.runner.RunCycle(ctx)
}

// Status devolve o estado corrente, com o próximo disparo quando ativo
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		Running:  s.running,
		Interval: s.interval.String(),
	}
	if s.running && !s.nextRun.IsZero() {
		next := s.nextRun
		st.NextRun = &next
	}
	return st
}

// loop aguarda os ticks do intervalo até o stop
func (s *Scheduler) loop(stopCh chan struct{}) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.setNextRun(time.Now().Add(s.interval))

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			s.setNextRun(time.Now().Add(s.interval))
			s.runCycle()
		}
	}
}

// runCycle executa o ciclo respeitando o single-flight: disparo com ciclo
// ainda em andamento é pulado. Falha do ciclo é logada e não interrompe
// os disparos seguintes.
func (s *Scheduler) runCycle() {
	if !s.inFlight.CompareAndSwap(false, true) {
		s.log.Warn("previous collection cycle still running, skipping trigger")
		return
	}
	defer s.inFlight.Store(false)

	// o contexto não deriva do Stop: ciclo em andamento nunca é cancelado
	if _, err := s.runner.RunCycle(context.Background()); err != nil {
		s.log.Error("collection cycle failed", zap.Error(err))
	}
}

func (s *Scheduler) setNextRun(t time.Time) {
	s.mu.Lock()
	s.nextRun = t
	s.mu.Unlock()
}
