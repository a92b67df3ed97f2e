package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bissquit/promo-garden/internal/notify"
	"github.com/bissquit/promo-garden/internal/routing"
)

// Announcer sends operational notices, best effort.
type Announcer interface {
	Announce(ctx context.Context, text string, decision routing.Decision)
}

// Loop ties the scheduler to the runner: it polls the schedule and
// executes runs when one is due. Run failures are announced to the
// default chat targets and never stop the loop.
type Loop struct {
	scheduler *Scheduler
	runner    *Runner
	announcer Announcer
	router    *routing.Router

	stopCh chan struct{}
	wg     sync.WaitGroup
}

func NewLoop(scheduler *Scheduler, runner *Runner, announcer Announcer, router *routing.Router) *Loop {
	return &Loop{
		scheduler: scheduler,
		runner:    runner,
		announcer: announcer,
		router:    router,
		stopCh:    make(chan struct{}),
	}
}

// Start launches the scheduler loop goroutine.
func (l *Loop) Start(ctx context.Context) {
	slog.Info("starting pipeline loop", "tick", l.scheduler.Tick())
	l.announce(ctx, "✅ Pipeline de ofertas iniciado")
	l.wg.Add(1)
	go l.run(ctx)
}

// Stop gracefully stops the loop.
func (l *Loop) Stop() {
	close(l.stopCh)
	l.wg.Wait()
	l.announce(context.Background(), "🛑 Pipeline de ofertas encerrado")
	slog.Info("pipeline loop stopped")
}

// announce posts an operational notice to the default targets, best
// effort.
func (l *Loop) announce(ctx context.Context, text string) {
	if l.announcer == nil {
		return
	}
	l.announcer.Announce(ctx, text, l.router.Decide(""))
}

func (l *Loop) run(ctx context.Context) {
	defer l.wg.Done()

	ticker := time.NewTicker(l.scheduler.Tick())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-l.stopCh:
			return
		case <-ticker.C:
			if l.scheduler.ShouldRun() {
				l.runOnce(ctx)
			}
		}
	}
}

// runOnce executes a single run. The run timestamp advances whether the
// run succeeded or not, so a persistently failing run does not spin on
// every tick.
func (l *Loop) runOnce(ctx context.Context) {
	slog.Info("pipeline run starting")

	report, err := l.runner.Run(ctx)
	l.scheduler.MarkRun()

	if err != nil {
		slog.Error("pipeline run failed", "error", err)
		l.announce(ctx, fmt.Sprintf("⚠️ Falha na execução do pipeline: %s", notify.EscapeMarkdown(err.Error())))
		return
	}

	slog.Info("pipeline run completed", "sent", report.Sent, "duplicates", report.Duplicates)
}
