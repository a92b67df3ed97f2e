package pipeline

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bissquit/promo-garden/internal/routing"
)

type fakeAnnouncer struct {
	mu        sync.Mutex
	texts     []string
	decisions []routing.Decision
}

func (f *fakeAnnouncer) Announce(_ context.Context, text string, decision routing.Decision) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	f.decisions = append(f.decisions, decision)
}

func TestLoop_StartStopAnnouncements(t *testing.T) {
	runner, _, _ := newTestRunner(t, Config{}, &fakeFetcher{})
	scheduler := NewScheduler(filepath.Join(t.TempDir(), "schedule.json"))
	announcer := &fakeAnnouncer{}

	loop := NewLoop(scheduler, runner, announcer, testRouter(t))
	loop.Start(context.Background())
	loop.Stop()

	require.Len(t, announcer.texts, 2)
	assert.Contains(t, announcer.texts[0], "iniciado")
	assert.Contains(t, announcer.texts[1], "encerrado")
	assert.Equal(t, []string{"-100"}, announcer.decisions[0].TelegramChats)
}

func TestLoop_NilAnnouncer(t *testing.T) {
	runner, _, _ := newTestRunner(t, Config{}, &fakeFetcher{})
	scheduler := NewScheduler(filepath.Join(t.TempDir(), "schedule.json"))

	loop := NewLoop(scheduler, runner, nil, testRouter(t))
	loop.Start(context.Background())
	loop.Stop()
}
