package coordinator

import (
	"context"
	"encoding/json"
	"io/ioutil"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chrisvdg/tourneyfilter/cache"
	"github.com/chrisvdg/tourneyfilter/criteria"
	"github.com/chrisvdg/tourneyfilter/scheduler"
	"github.com/chrisvdg/tourneyfilter/synchronizer"
	"github.com/chrisvdg/tourneyfilter/tournament"
)

const (
	testDebounce = 50 * time.Millisecond
	waitFor      = time.Second
	tick         = 5 * time.Millisecond
)

// countingProvider wraps the fixture collection and records every lookup
type countingProvider struct {
	m     sync.Mutex
	inner *tournament.MemoryProvider
	keys  []string
	fail  error
}

func (p *countingProvider) Lookup(ctx context.Context, c criteria.Criteria) (*cache.ResultSet, error) {
	p.m.Lock()
	p.keys = append(p.keys, c.Key())
	fail := p.fail
	p.m.Unlock()
	if fail != nil {
		return nil, fail
	}
	return p.inner.Lookup(ctx, c)
}

func (p *countingProvider) calls() []string {
	p.m.Lock()
	defer p.m.Unlock()
	return append([]string(nil), p.keys...)
}

type view struct {
	m       sync.Mutex
	renders []string
	totals  []int
	errs    []error
}

func (v *view) onResults(rs *cache.ResultSet, c criteria.Criteria) {
	v.m.Lock()
	defer v.m.Unlock()
	v.renders = append(v.renders, c.Key())
	v.totals = append(v.totals, rs.Total())
}

func (v *view) onError(err error, c criteria.Criteria) {
	v.m.Lock()
	defer v.m.Unlock()
	v.errs = append(v.errs, err)
}

func (v *view) rendered() []string {
	v.m.Lock()
	defer v.m.Unlock()
	return append([]string(nil), v.renders...)
}

func (v *view) failures() []error {
	v.m.Lock()
	defer v.m.Unlock()
	return append([]error(nil), v.errs...)
}

type fixture struct {
	co       *Coordinator
	provider *countingProvider
	view     *view
	loc      *synchronizer.Location
	storage  *synchronizer.MemoryStorage
}

func newFixture(t *testing.T, rawURL string, storage *synchronizer.MemoryStorage) *fixture {
	t.Helper()
	data, err := ioutil.ReadFile("../tournament/testdata/tournaments.json")
	require.NoError(t, err)
	ts, err := tournament.Decode(data)
	require.NoError(t, err)

	if storage == nil {
		storage = synchronizer.NewMemoryStorage()
	}
	loc, err := synchronizer.NewLocation(rawURL)
	require.NoError(t, err)
	p := &countingProvider{inner: tournament.NewMemoryProvider(ts, 0)}
	v := &view{}
	co, err := New(&Config{Debounce: testDebounce, OnResults: v.onResults, OnError: v.onError}, p, loc, storage)
	require.NoError(t, err)
	t.Cleanup(co.Close)

	return &fixture{co: co, provider: p, view: v, loc: loc, storage: storage}
}

func TestNewRequiresCollaborators(t *testing.T) {
	loc, _ := synchronizer.NewLocation("https://example.org/")
	_, err := New(nil, nil, loc, synchronizer.NewMemoryStorage())
	assert.Error(t, err)
	_, err = New(nil, &countingProvider{}, nil, synchronizer.NewMemoryStorage())
	assert.Error(t, err)
}

func TestBurstOfChangesDispatchesOneLookup(t *testing.T) {
	assert := assert.New(t)
	f := newFixture(t, "https://example.org/tournaments", nil)

	c := f.co.Load()
	assert.True(c.IsDefault())
	_, err := f.co.SetField(criteria.FieldCategory, "Blitz")
	assert.NoError(err)
	time.Sleep(testDebounce / 5)
	_, err = f.co.SetField(criteria.FieldLocation, "Moscow")
	assert.NoError(err)

	assert.Eventually(func() bool { return len(f.view.rendered()) == 1 }, waitFor, tick)
	assert.Never(func() bool { return len(f.provider.calls()) > 1 }, 3*testDebounce, tick)

	assert.Equal([]string{"category=Blitz&location=Moscow"}, f.provider.calls())
	assert.Equal("start_date", f.co.Criteria().Get(criteria.FieldSortBy))
	assert.Equal("https://example.org/tournaments?category=Blitz&location=Moscow", f.loc.String())
	assert.Equal(1, f.loc.HistoryLen())
}

func TestCachedCriteriaRenderWithoutProvider(t *testing.T) {
	assert := assert.New(t)
	f := newFixture(t, "https://example.org/", nil)

	cached := cache.NewResultSet([]json.RawMessage{json.RawMessage(`{"id":"cached"}`)}, 1, false)
	f.co.cache.Put("category=Blitz", cached)

	_, err := f.co.SetField(criteria.FieldCategory, "Blitz")
	require.NoError(t, err)
	assert.True(f.co.Flush())

	assert.Equal([]string{"category=Blitz"}, f.view.rendered())
	assert.Empty(f.provider.calls())
}

func TestSameCriteriaTwiceIsOneLookup(t *testing.T) {
	assert := assert.New(t)
	f := newFixture(t, "https://example.org/", nil)

	f.co.SetField(criteria.FieldStatus, "upcoming")
	f.co.Flush()
	assert.Eventually(func() bool { return len(f.view.rendered()) == 1 }, waitFor, tick)

	f.co.SetField(criteria.FieldStatus, "Upcoming")
	assert.False(f.co.Flush())
	assert.Never(func() bool { return len(f.view.rendered()) > 1 }, 3*testDebounce, tick)
	assert.Len(f.provider.calls(), 1)
	assert.Equal(1, f.co.cache.Len())
}

func TestInvalidFieldKeepsState(t *testing.T) {
	assert := assert.New(t)
	f := newFixture(t, "https://example.org/", nil)
	f.co.SetField(criteria.FieldView, "list")
	f.co.Flush()
	assert.Eventually(func() bool { return len(f.view.rendered()) == 1 }, waitFor, tick)

	c, err := f.co.SetField(criteria.FieldDateFrom, "yesterday")
	var verr *criteria.ValidationError
	if assert.True(errors.As(err, &verr)) {
		assert.Equal(criteria.FieldDateFrom, verr.Field)
	}
	assert.Equal("view=list", c.Key())
	assert.Equal(scheduler.StateIdle, f.co.State())
	assert.Equal("https://example.org/?view=list", f.loc.String())
	assert.Len(f.provider.calls(), 1)
}

func TestProviderFailureKeepsLastResults(t *testing.T) {
	assert := assert.New(t)
	f := newFixture(t, "https://example.org/", nil)

	f.co.SetField(criteria.FieldCategory, "Rapid")
	f.co.Flush()
	assert.Eventually(func() bool { return len(f.view.rendered()) == 1 }, waitFor, tick)

	f.provider.m.Lock()
	f.provider.fail = errors.New("503 service unavailable")
	f.provider.m.Unlock()

	f.co.SetField(criteria.FieldCategory, "Blitz")
	f.co.Flush()
	assert.Eventually(func() bool { return len(f.view.failures()) == 1 }, waitFor, tick)

	var perr *scheduler.ProviderError
	assert.True(errors.As(f.view.failures()[0], &perr))
	assert.Equal([]string{"category=Rapid"}, f.view.rendered())
	_, ok := f.co.cache.Get("category=Blitz")
	assert.False(ok)

	// retry is user initiated
	f.provider.m.Lock()
	f.provider.fail = nil
	f.provider.m.Unlock()
	f.co.Refresh()
	assert.Eventually(func() bool { return len(f.view.rendered()) == 2 }, waitFor, tick)
	assert.Equal("category=Blitz", f.view.rendered()[1])
}

func TestRefreshInvalidatesCache(t *testing.T) {
	assert := assert.New(t)
	f := newFixture(t, "https://example.org/", nil)

	f.co.SetField(criteria.FieldCategory, "Rapid")
	f.co.Flush()
	assert.Eventually(func() bool { return len(f.view.rendered()) == 1 }, waitFor, tick)
	f.co.SetField(criteria.FieldCategory, "Blitz")
	f.co.Flush()
	assert.Eventually(func() bool { return len(f.view.rendered()) == 2 }, waitFor, tick)
	assert.Equal(2, f.co.cache.Len())

	f.co.Refresh()
	assert.Eventually(func() bool { return len(f.view.rendered()) == 3 }, waitFor, tick)
	assert.Equal(1, f.co.cache.Len())
	assert.Equal([]string{"category=Rapid", "category=Blitz", "category=Blitz"}, f.provider.calls())
}

func TestLoadRestoresPersistedCriteria(t *testing.T) {
	assert := assert.New(t)
	storage := synchronizer.NewMemoryStorage()

	first := newFixture(t, "https://example.org/tournaments", storage)
	first.co.SetField(criteria.FieldCategory, "Classical")
	first.co.SetField(criteria.FieldSortDir, "desc")
	first.co.SetField(criteria.FieldView, "list")
	want := first.co.Criteria()
	first.co.Close()

	second := newFixture(t, "https://example.org/tournaments", storage)
	got := second.co.Load()
	assert.True(want.Equal(got), "want %s, got %s", want, got)
	assert.Eventually(func() bool { return len(second.view.rendered()) == 1 }, waitFor, tick)
	assert.Equal([]string{want.Key()}, second.provider.calls())
	assert.Equal("https://example.org/tournaments?"+want.Key(), second.loc.String())
}

func TestLoadPrefersAddressOverStorage(t *testing.T) {
	assert := assert.New(t)
	storage := synchronizer.NewMemoryStorage()
	storage.Set("tourneyfilter.criteria", []byte(`{"version":1,"criteria":{"category":"Classical","view":"list"}}`))

	f := newFixture(t, "https://example.org/?category=Bullet&page=-1", storage)
	c := f.co.Load()
	assert.Equal("Bullet", c.Get(criteria.FieldCategory))
	assert.Equal("list", c.Get(criteria.FieldView))
	assert.Equal("1", c.Get(criteria.FieldPage))
	assert.Equal("https://example.org/?category=Bullet&view=list", f.loc.String())
}

func TestLoadDefaultsStillLooksUp(t *testing.T) {
	assert := assert.New(t)
	f := newFixture(t, "https://example.org/", nil)

	f.co.Load()
	assert.Eventually(func() bool { return len(f.view.rendered()) == 1 }, waitFor, tick)
	assert.Equal([]string{""}, f.provider.calls())
}

func TestPresets(t *testing.T) {
	assert := assert.New(t)
	f := newFixture(t, "https://example.org/", nil)

	f.co.SetField(criteria.FieldCategory, "Blitz")
	f.co.SetField(criteria.FieldLocation, "Moscow")
	assert.NoError(f.co.SavePreset("moscow blitz"))
	f.co.Reset()
	f.co.Flush()

	c, err := f.co.LoadPreset("moscow blitz")
	assert.NoError(err)
	assert.Equal("category=Blitz&location=Moscow", c.Key())
	assert.Equal(scheduler.StateDebouncing, f.co.State())
	f.co.Flush()
	assert.Eventually(func() bool {
		r := f.view.rendered()
		return len(r) > 0 && r[len(r)-1] == "category=Blitz&location=Moscow"
	}, waitFor, tick)

	_, err = f.co.LoadPreset("nope")
	assert.IsType(&synchronizer.NotFoundError{}, err)
	assert.Equal("category=Blitz&location=Moscow", f.co.Criteria().Key())

	assert.Equal([]string{"moscow blitz"}, f.co.Presets())
	assert.NoError(f.co.DeletePreset("moscow blitz"))
	assert.Empty(f.co.Presets())
}

func TestCancelSilencesPendingLookup(t *testing.T) {
	assert := assert.New(t)
	f := newFixture(t, "https://example.org/", nil)

	f.co.SetField(criteria.FieldCategory, "Rapid")
	f.co.Cancel()
	assert.Equal(scheduler.StateIdle, f.co.State())
	assert.Never(func() bool { return len(f.provider.calls()) > 0 }, 3*testDebounce, tick)
	// state and address still reflect the change
	assert.Equal("category=Rapid", f.co.Criteria().Key())
	assert.Equal("https://example.org/?category=Rapid", f.loc.String())
	assert.NotEmpty(f.co.ID())
}

func TestRenderCallbackMayReadCriteriaDuringChange(t *testing.T) {
	assert := assert.New(t)
	data, err := ioutil.ReadFile("../tournament/testdata/tournaments.json")
	require.NoError(t, err)
	ts, err := tournament.Decode(data)
	require.NoError(t, err)
	loc, err := synchronizer.NewLocation("https://example.org/")
	require.NoError(t, err)

	entered := make(chan struct{})
	release := make(chan struct{})
	seen := make(chan string, 4)
	var once sync.Once
	var co *Coordinator
	onResults := func(rs *cache.ResultSet, c criteria.Criteria) {
		once.Do(func() {
			close(entered)
			<-release
		})
		seen <- co.Criteria().Key()
	}
	co, err = New(&Config{Debounce: testDebounce, OnResults: onResults}, tournament.NewMemoryProvider(ts, 0), loc, synchronizer.NewMemoryStorage())
	require.NoError(t, err)
	defer co.Close()

	co.SetField(criteria.FieldCategory, "Blitz")
	co.Flush()
	select {
	case <-entered:
	case <-time.After(waitFor):
		t.Fatal("no results delivered")
	}

	changed := make(chan struct{})
	go func() {
		co.SetField(criteria.FieldCategory, "Rapid")
		close(changed)
	}()
	select {
	case <-changed:
	case <-time.After(waitFor):
		t.Fatal("SetField blocked by a running render callback")
	}
	close(release)

	select {
	case key := <-seen:
		assert.Equal("category=Rapid", key)
	case <-time.After(waitFor):
		t.Fatal("render callback blocked reading criteria")
	}
	assert.Eventually(func() bool { return co.Criteria().Key() == "category=Rapid" && co.State() != scheduler.StateDispatched }, waitFor, tick)
}
