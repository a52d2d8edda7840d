package discovery

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/JakeFAU/business-discovery/internal/business"
	"github.com/JakeFAU/business-discovery/internal/progress"
	"github.com/JakeFAU/business-discovery/internal/scraper"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeClock struct{ now time.Time }

func (c fakeClock) Now() time.Time { return c.now }

type fakeIDs struct {
	id  string
	err error
}

func (f fakeIDs) NewID() (string, error) { return f.id, f.err }

type fakeProvider struct {
	name  string
	res   scraper.Result
	err   error
	panic any
	calls int
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) Scrape(context.Context, string) (scraper.Result, error) {
	p.calls++
	if p.panic != nil {
		panic(p.panic)
	}
	return p.res, p.err
}

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newOrchestrator(t *testing.T, browser, actor scraper.Provider) *Orchestrator {
	t.Helper()
	o, err := New(Config{Browser: browser, Actor: actor, Clock: fakeClock{now: fixedNow}, IDs: fakeIDs{id: "biz_test"}})
	require.NoError(t, err)
	return o
}

func TestNewRequiresCollaborators(t *testing.T) {
	t.Parallel()

	_, err := New(Config{})
	require.Error(t, err)
}

func TestDiscoverNeverFailsForAnyInput(t *testing.T) {
	t.Parallel()

	inputs := []string{"", "not a url at all", "https://maps.example/place/test-cafe", "\x00\x01"}
	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			t.Parallel()

			browser := &fakeProvider{name: scraper.NameBrowser, err: errors.New("no chrome")}
			actor := &fakeProvider{name: scraper.NameActor, err: scraper.ErrEmptyDataset}
			res := newOrchestrator(t, browser, actor).Discover(context.Background(), input)

			require.Equal(t, scraper.NameMock, res.Provider)
			require.NotEmpty(t, res.Business.Name)
			require.Equal(t, input, res.Business.SourceURL)
			require.NotNil(t, res.Business.Reviews)
		})
	}
}

func TestDiscoverScenarioNoCredentialsReturnsFixture(t *testing.T) {
	t.Parallel()

	const url = "https://maps.example/place/test-cafe"
	res := newOrchestrator(t, nil, nil).Discover(context.Background(), url)

	require.Equal(t, business.MockName, res.Business.Name)
	require.Len(t, res.Business.Reviews, business.MockReviewCount())
	require.Equal(t, url, res.Business.SourceURL)
	require.Equal(t, "biz_test", res.Business.ID)
	require.Equal(t, fixedNow, res.Business.ScrapedAt)
	require.False(t, res.Business.ReviewsAreSynthetic)
	require.Empty(t, res.RemoteSessionID)
}

func TestDiscoverScenarioBrowserFailsAfterSession(t *testing.T) {
	t.Parallel()

	browser := &fakeProvider{name: scraper.NameBrowser, err: &scraper.ProviderError{
		Provider:   scraper.NameBrowser,
		SessionID:  "sess_123",
		SessionURL: "https://replay.example/sess_123",
		Err:        errors.New("navigation timeout"),
	}}
	actor := &fakeProvider{name: scraper.NameActor}
	const url = "https://maps.example/place/x"

	res := newOrchestrator(t, browser, actor).Discover(context.Background(), url)

	require.Equal(t, "sess_123", res.RemoteSessionID)
	require.Equal(t, "https://replay.example/sess_123", res.RemoteSessionURL)
	require.Equal(t, scraper.NameMock, res.Provider)
	require.Zero(t, actor.calls, "actor must not run once a browser session was opened")

	want := business.Normalize(business.MockRecord())
	ignore := cmpopts.IgnoreFields(business.Record{}, "ID", "SourceURL", "ScrapedAt")
	if diff := cmp.Diff(want, res.Business, ignore); diff != "" {
		t.Fatalf("business mismatch (-want +got):\n%s", diff)
	}
}

func TestDiscoverFallsThroughChain(t *testing.T) {
	t.Parallel()

	actorRecord := business.Record{Name: "Actor Diner", Rating: 4.4, ReviewCount: 2, Reviews: []business.Review{
		business.NewReview("Ann", 5, "today", "great"),
		business.NewReview("Bob", 1, "today", "bad"),
	}}

	tests := []struct {
		name         string
		browser      *fakeProvider
		actor        *fakeProvider
		wantProvider string
		wantName     string
	}{
		{
			name:         "browser success",
			browser:      &fakeProvider{name: scraper.NameBrowser, res: scraper.Result{Business: business.Record{Name: "Browser Bistro"}, SessionID: "s1"}},
			actor:        &fakeProvider{name: scraper.NameActor, res: scraper.Result{Business: actorRecord}},
			wantProvider: scraper.NameBrowser,
			wantName:     "Browser Bistro",
		},
		{
			name:         "browser fails before session",
			browser:      &fakeProvider{name: scraper.NameBrowser, err: errors.New("create session: 401")},
			actor:        &fakeProvider{name: scraper.NameActor, res: scraper.Result{Business: actorRecord}},
			wantProvider: scraper.NameActor,
			wantName:     "Actor Diner",
		},
		{
			name:         "browser panics",
			browser:      &fakeProvider{name: scraper.NameBrowser, panic: "boom"},
			actor:        &fakeProvider{name: scraper.NameActor, res: scraper.Result{Business: actorRecord}},
			wantProvider: scraper.NameActor,
			wantName:     "Actor Diner",
		},
		{
			name:         "actor empty",
			browser:      &fakeProvider{name: scraper.NameBrowser, err: errors.New("down")},
			actor:        &fakeProvider{name: scraper.NameActor, err: scraper.ErrEmptyDataset},
			wantProvider: scraper.NameMock,
			wantName:     business.MockName,
		},
		{
			name:         "actor panics",
			actor:        &fakeProvider{name: scraper.NameActor, panic: errors.New("nil map")},
			wantProvider: scraper.NameMock,
			wantName:     business.MockName,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var browser, actor scraper.Provider
			if tt.browser != nil {
				browser = tt.browser
			}
			if tt.actor != nil {
				actor = tt.actor
			}
			res := newOrchestrator(t, browser, actor).Discover(context.Background(), "u")
			require.Equal(t, tt.wantProvider, res.Provider)
			require.Equal(t, tt.wantName, res.Business.Name)
		})
	}
}

func TestDiscoverSupplementsMissingReviews(t *testing.T) {
	t.Parallel()

	actor := &fakeProvider{name: scraper.NameActor, res: scraper.Result{Business: business.Record{
		Name:        "Quiet Place",
		ReviewCount: 87,
	}}}
	res := newOrchestrator(t, nil, actor).Discover(context.Background(), "u")

	require.NotEmpty(t, res.Business.Reviews)
	require.True(t, res.Business.ReviewsAreSynthetic)
	require.Equal(t, 87, res.Business.ReviewCount)
}

func TestDiscoverLeavesEmptyListingAlone(t *testing.T) {
	t.Parallel()

	actor := &fakeProvider{name: scraper.NameActor, res: scraper.Result{Business: business.Record{Name: "Brand New"}}}
	res := newOrchestrator(t, nil, actor).Discover(context.Background(), "u")

	require.Empty(t, res.Business.Reviews)
	require.False(t, res.Business.ReviewsAreSynthetic)
	require.Zero(t, res.Business.ReviewCount)
}

func TestDiscoverFallsBackWhenIDGenerationFails(t *testing.T) {
	t.Parallel()

	o, err := New(Config{Clock: fakeClock{now: fixedNow}, IDs: fakeIDs{err: errors.New("entropy")}})
	require.NoError(t, err)

	res := o.Discover(context.Background(), "u")
	require.True(t, strings.HasPrefix(res.Business.ID, business.IDPrefix))
}

func TestDiscoverEmitsSteps(t *testing.T) {
	t.Parallel()

	rec := &progress.Recorder{}
	ctx := progress.WithRunID(progress.WithEmitter(context.Background(), rec), "run-7")
	newOrchestrator(t, nil, nil).Discover(ctx, "u")

	events := rec.Events()
	require.Len(t, events, 2)
	require.Equal(t, progress.StepConnecting, events[0].Data.(progress.StepData).Step)
	require.Equal(t, progress.StepExtractingInfo, events[1].Data.(progress.StepData).Step)
	require.Equal(t, "run-7", events[1].RunID)
}
