package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bissquit/promo-garden/internal/affiliate"
	"github.com/bissquit/promo-garden/internal/fetch"
)

const listingHTML = `<ol class="ui-search-layout">
	<li class="ui-search-layout__item">
		<a class="ui-search-link" href="https://www.mercadolivre.com.br/produto/p/MLB111"></a>
		<h2 class="ui-search-item__title">Fone Bluetooth JBL</h2>
		<div class="ui-search-price__second-line"><span class="andes-money-amount__fraction">199</span></div>
	</li>
	<li class="ui-search-layout__item">
		<a class="ui-search-link" href="https://www.mercadolivre.com.br/produto/p/MLB222"></a>
		<h2 class="ui-search-item__title">Smart TV Samsung 50</h2>
		<div class="ui-search-price__second-line"><span class="andes-money-amount__fraction">2.199</span></div>
	</li>
</ol>`

type fakeSession struct {
	pages   map[string]string
	err     error
	fetched []string
	closed  bool
}

func (f *fakeSession) Fetch(_ context.Context, url string) (string, error) {
	f.fetched = append(f.fetched, url)
	if f.err != nil {
		return "", f.err
	}
	return f.pages[url], nil
}

func (f *fakeSession) Close() error {
	f.closed = true
	return nil
}

type fakeFetcher struct {
	session *fakeSession
}

func (f *fakeFetcher) NewSession(context.Context) (fetch.Session, error) {
	return f.session, nil
}

func newTestRunner(t *testing.T, cfg Config, fetcher fetch.Fetcher) (*Runner, *fakeDealsRepo, *fakeDispatcher) {
	t.Helper()
	repo := newFakeDealsRepo()
	dispatcher := &fakeDispatcher{}
	processor := NewProcessor(repo, affiliate.NewBuilder(affiliate.Config{}), nil, testRouter(t), dispatcher)
	return NewRunner(cfg, fetcher, processor), repo, dispatcher
}

func TestRunner_Run(t *testing.T) {
	url := "https://lista.mercadolivre.com.br/ofertas"
	session := &fakeSession{pages: map[string]string{url: listingHTML}}
	runner, repo, _ := newTestRunner(t, Config{MonitorURLs: []string{url}}, &fakeFetcher{session: session})

	report, err := runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.URLsScanned)
	assert.Equal(t, 2, report.Candidates)
	assert.Equal(t, 2, report.Sent)
	assert.Len(t, repo.saved, 2)
	assert.True(t, session.closed, "session is closed when the run ends")
}

func TestRunner_Run_SecondRunDeduplicates(t *testing.T) {
	url := "https://lista.mercadolivre.com.br/ofertas"
	session := &fakeSession{pages: map[string]string{url: listingHTML}}
	runner, repo, _ := newTestRunner(t, Config{MonitorURLs: []string{url}}, &fakeFetcher{session: session})

	_, err := runner.Run(context.Background())
	require.NoError(t, err)

	report, err := runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, report.Sent)
	assert.Equal(t, 2, report.Duplicates)
	assert.Len(t, repo.saved, 2)
}

func TestRunner_Run_FetchFailureIsIsolated(t *testing.T) {
	good := "https://lista.mercadolivre.com.br/ofertas"
	bad := "https://www.mercadolivre.com.br/pagina-quebrada"
	session := &fakeSession{pages: map[string]string{good: listingHTML}}
	runner, _, _ := newTestRunner(t, Config{MonitorURLs: []string{bad, good}}, &fakeFetcher{session: session})

	// The broken URL returns empty HTML, which extracts zero candidates.
	report, err := runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Sent, "good url is processed after the broken one")
}

func TestRunner_Run_UnsupportedURLIsSkipped(t *testing.T) {
	session := &fakeSession{pages: map[string]string{}}
	runner, _, _ := newTestRunner(t, Config{MonitorURLs: []string{"https://example.com/promo"}}, &fakeFetcher{session: session})

	report, err := runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, report.URLsScanned)
	assert.Equal(t, 1, report.Errors)
	assert.Empty(t, session.fetched, "unsupported urls are never fetched")
}

func TestRunner_Run_DealCap(t *testing.T) {
	url := "https://lista.mercadolivre.com.br/ofertas"
	session := &fakeSession{pages: map[string]string{url: listingHTML}}
	runner, _, _ := newTestRunner(t, Config{MonitorURLs: []string{url}, MaxDealsPerRun: 1}, &fakeFetcher{session: session})

	report, err := runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Sent)
}

func TestRunner_Run_SessionFailure(t *testing.T) {
	runner, _, _ := newTestRunner(t, Config{}, failingFetcher{})

	_, err := runner.Run(context.Background())
	assert.Error(t, err)
}

type failingFetcher struct{}

func (failingFetcher) NewSession(context.Context) (fetch.Session, error) {
	return nil, errors.New("no browser")
}
