package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bissquit/promo-garden/internal/domain"
	"github.com/bissquit/promo-garden/internal/fetch"
)

const productHTML = `<html><body>
	<h1 class="ui-pdp-title">Console PlayStation 5 Slim</h1>
	<div class="ui-pdp-price"><span class="andes-money-amount__fraction">3.799</span></div>
</body></html>`

type memRepo struct {
	mu sync.Mutex

	jobs     []*Job
	links    map[string]*Link
	runs     map[string]*domain.ScrapeRun
	products map[string]*domain.Product
	versions []*domain.ProductVersion

	upsertErr error
}

func newMemRepo() *memRepo {
	return &memRepo{
		links:    make(map[string]*Link),
		runs:     make(map[string]*domain.ScrapeRun),
		products: make(map[string]*domain.Product),
	}
}

func (m *memRepo) CreateLink(_ context.Context, url, marketplace string) (*Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	link := &Link{ID: url, URL: url, Marketplace: marketplace, CreatedAt: time.Now()}
	m.links[link.ID] = link
	return link, nil
}

func (m *memRepo) Enqueue(_ context.Context, affiliateLinkID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs = append(m.jobs, &Job{ID: affiliateLinkID, AffiliateLinkID: affiliateLinkID})
	return nil
}

func (m *memRepo) ClaimJob(context.Context) (*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.jobs) == 0 {
		return nil, ErrNoJobs
	}
	job := m.jobs[0]
	m.jobs = m.jobs[1:]
	return job, nil
}

func (m *memRepo) GetLink(_ context.Context, id string) (*Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	link, ok := m.links[id]
	if !ok {
		return nil, ErrLinkNotFound
	}
	return link, nil
}

func (m *memRepo) CreateRun(_ context.Context, run *domain.ScrapeRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run.ID = run.AffiliateLinkID + "-run"
	run.StartedAt = time.Now()
	m.runs[run.ID] = run
	return nil
}

func (m *memRepo) FinishRun(_ context.Context, runID string, status domain.RunStatus, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[runID]
	if !ok || run.Status != domain.RunStatusRunning {
		return errors.New("not running")
	}
	now := time.Now()
	run.Status = status
	run.Error = errMsg
	run.FinishedAt = &now
	return nil
}

func (m *memRepo) ListRuns(context.Context, RunFilter) ([]domain.ScrapeRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.ScrapeRun
	for _, run := range m.runs {
		out = append(out, *run)
	}
	return out, nil
}

func (m *memRepo) SweepOrphanRuns(_ context.Context, maxAge time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	swept := 0
	for _, run := range m.runs {
		if run.Status == domain.RunStatusRunning && time.Since(run.StartedAt) > maxAge {
			now := time.Now()
			run.Status = domain.RunStatusError
			run.Error = "orphaned: worker never finished"
			run.FinishedAt = &now
			swept++
		}
	}
	return swept, nil
}

func (m *memRepo) UpsertProduct(_ context.Context, product *domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upsertErr != nil {
		return m.upsertErr
	}
	product.ID = product.Marketplace + ":" + product.CanonicalProductID
	m.products[product.ID] = product
	return nil
}

func (m *memRepo) AppendVersion(_ context.Context, version *domain.ProductVersion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.versions = append(m.versions, version)
	return nil
}

func (m *memRepo) SetLinkProduct(_ context.Context, linkID, productID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	link, ok := m.links[linkID]
	if !ok {
		return ErrLinkNotFound
	}
	link.ProductID = &productID
	return nil
}

type stubSession struct {
	pages map[string]string
}

func (s *stubSession) Fetch(_ context.Context, url string) (string, error) {
	html, ok := s.pages[url]
	if !ok {
		return "", errors.New("unreachable")
	}
	return html, nil
}

func (s *stubSession) Close() error { return nil }

type stubFetcher struct {
	session *stubSession
}

func (s *stubFetcher) NewSession(context.Context) (fetch.Session, error) {
	return s.session, nil
}

func enqueueLink(t *testing.T, repo *memRepo, url string) *Link {
	t.Helper()
	link, err := repo.CreateLink(context.Background(), url, "mercado_livre")
	require.NoError(t, err)
	require.NoError(t, repo.Enqueue(context.Background(), link.ID))
	return link
}

func runByLink(repo *memRepo, linkID string) *domain.ScrapeRun {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	return repo.runs[linkID+"-run"]
}

func TestWorker_ProcessJob_Success(t *testing.T) {
	repo := newMemRepo()
	url := "https://www.mercadolivre.com.br/console/p/MLB34001234"
	link := enqueueLink(t, repo, url)

	w := NewWorker(DefaultWorkerConfig(), repo, &stubFetcher{session: &stubSession{
		pages: map[string]string{url: productHTML},
	}})

	job, err := repo.ClaimJob(context.Background())
	require.NoError(t, err)
	require.NoError(t, w.processJob(context.Background(), job))

	run := runByLink(repo, link.ID)
	require.NotNil(t, run)
	assert.Equal(t, domain.RunStatusSuccess, run.Status)
	assert.True(t, run.Status.Terminal())
	assert.NotNil(t, run.FinishedAt)

	require.Len(t, repo.products, 1)
	product := repo.products["mercado_livre:MLB34001234"]
	require.NotNil(t, product)
	assert.Equal(t, 379900, product.PriceCents)
	assert.Equal(t, url, product.URLAffiliate)

	require.Len(t, repo.versions, 1)
	assert.Equal(t, product.ID, repo.versions[0].ProductID)
	assert.Contains(t, string(repo.versions[0].Snapshot), "PlayStation 5")

	require.NotNil(t, repo.links[link.ID].ProductID)
	assert.Equal(t, product.ID, *repo.links[link.ID].ProductID)
}

func TestWorker_ProcessJob_FetchFailureEndsRunInError(t *testing.T) {
	repo := newMemRepo()
	url := "https://www.mercadolivre.com.br/console/p/MLB1"
	link := enqueueLink(t, repo, url)

	w := NewWorker(DefaultWorkerConfig(), repo, &stubFetcher{session: &stubSession{}})

	job, err := repo.ClaimJob(context.Background())
	require.NoError(t, err)
	assert.Error(t, w.processJob(context.Background(), job))

	run := runByLink(repo, link.ID)
	require.NotNil(t, run)
	assert.Equal(t, domain.RunStatusError, run.Status)
	assert.Contains(t, run.Error, "fetch product page")
	assert.Empty(t, repo.products)
}

func TestWorker_ProcessJob_UnsupportedMarketplace(t *testing.T) {
	repo := newMemRepo()
	url := "https://example.com/produto/1"
	link := enqueueLink(t, repo, url)

	w := NewWorker(DefaultWorkerConfig(), repo, &stubFetcher{session: &stubSession{}})

	job, err := repo.ClaimJob(context.Background())
	require.NoError(t, err)
	assert.Error(t, w.processJob(context.Background(), job))

	run := runByLink(repo, link.ID)
	assert.Equal(t, domain.RunStatusError, run.Status)
	assert.Contains(t, run.Error, "detect marketplace")
}

func TestWorker_DrainConsumesWholeQueueAndSurvivesFailures(t *testing.T) {
	repo := newMemRepo()
	good := "https://www.mercadolivre.com.br/a/p/MLB1"
	bad := "https://www.mercadolivre.com.br/b/p/MLB2"
	enqueueLink(t, repo, bad)
	goodLink := enqueueLink(t, repo, good)

	w := NewWorker(DefaultWorkerConfig(), repo, &stubFetcher{session: &stubSession{
		pages: map[string]string{good: productHTML},
	}})

	w.drain(context.Background(), 0)

	assert.Empty(t, repo.jobs, "queue fully drained")
	assert.Equal(t, domain.RunStatusSuccess, runByLink(repo, goodLink.ID).Status)
}

func TestWorker_StartStop(t *testing.T) {
	repo := newMemRepo()
	cfg := DefaultWorkerConfig()
	cfg.PollInterval = 10 * time.Millisecond
	cfg.SweepInterval = 10 * time.Millisecond

	w := NewWorker(cfg, repo, &stubFetcher{session: &stubSession{}})
	w.Start(context.Background())
	time.Sleep(30 * time.Millisecond)
	w.Stop()
}

func TestWorker_SweepFailsOrphanedRuns(t *testing.T) {
	repo := newMemRepo()
	run := &domain.ScrapeRun{AffiliateLinkID: "x", Status: domain.RunStatusRunning}
	require.NoError(t, repo.CreateRun(context.Background(), run))
	repo.runs[run.ID].StartedAt = time.Now().Add(-time.Hour)

	swept, err := repo.SweepOrphanRuns(context.Background(), 15*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, swept)
	assert.Equal(t, domain.RunStatusError, repo.runs[run.ID].Status)
}
