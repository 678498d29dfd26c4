package processor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pauljones0/dealiem-scraper/internal/config"
	"github.com/pauljones0/dealiem-scraper/internal/models"
	"github.com/pauljones0/dealiem-scraper/internal/publisher"
	"github.com/pauljones0/dealiem-scraper/internal/validator"
)

// --- Mock implementations ---

type mockSession struct {
	urls         []string
	discoverErrs []error // returned by successive discovery calls before succeeding
	results      map[string]*models.ExtractionResult
	errs         map[string]error
	onExtract    func(url string)
	extractTime  time.Duration

	discoverCalls int
	starts, ends  []time.Time
	extracted     []string
	closed        bool
}

func (m *mockSession) DiscoverBusinessURLs(ctx context.Context) ([]string, error) {
	m.discoverCalls++
	if len(m.discoverErrs) > 0 {
		err := m.discoverErrs[0]
		m.discoverErrs = m.discoverErrs[1:]
		return nil, err
	}
	return m.urls, nil
}

func (m *mockSession) Extract(ctx context.Context, url string) (*models.ExtractionResult, error) {
	m.extracted = append(m.extracted, url)
	m.starts = append(m.starts, time.Now())
	defer func() { m.ends = append(m.ends, time.Now()) }()
	if m.onExtract != nil {
		m.onExtract(url)
	}
	time.Sleep(m.extractTime)
	if err, ok := m.errs[url]; ok {
		return nil, err
	}
	if res, ok := m.results[url]; ok {
		return res, nil
	}
	return nil, errors.New("unexpected url " + url)
}

func (m *mockSession) Close() error {
	m.closed = true
	return nil
}

type memoryStore struct {
	mu      sync.Mutex
	docs    map[string]models.WeeklyDealDocument
	creates int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{docs: make(map[string]models.WeeklyDealDocument)}
}

func (m *memoryStore) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.docs[key]
	return ok, nil
}

func (m *memoryStore) Get(_ context.Context, key string) (*models.WeeklyDealDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[key]
	if !ok {
		return nil, nil
	}
	return &doc, nil
}

func (m *memoryStore) Create(_ context.Context, key string, doc models.WeeklyDealDocument) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[key]; ok {
		return models.ErrDocumentExists
	}
	m.docs[key] = doc
	m.creates++
	return nil
}

type mockNotifier struct {
	announced []models.WeeklyDealDocument
	err       error
}

func (m *mockNotifier) Announce(_ context.Context, doc models.WeeklyDealDocument) error {
	m.announced = append(m.announced, doc)
	return m.err
}

// --- Helpers ---

const (
	tacosURL  = "https://dealiem.com/business/joes-tacos"
	pubURL    = "https://dealiem.com/business/blue-door-pub"
	closedURL = "https://dealiem.com/business/closed-cafe"
)

func result(name string, days map[string]models.DaySchedule) *models.ExtractionResult {
	res := models.NewExtractionResult()
	res.Name = name
	for label, deals := range days {
		res.Days[label] = deals
	}
	return res
}

func testConfig() *config.Config {
	return &config.Config{DiscoveryRetries: 2, SkipRecorded: true}
}

func newTestProcessor(session *mockSession, store *memoryStore, n *mockNotifier, cfg *config.Config) *DealProcessor {
	open := func(ctx context.Context) (Session, error) { return session, nil }
	p := New(open, publisher.New(store, validator.New(), ""), n, cfg)
	p.retryBase = time.Millisecond
	return p
}

// --- Tests ---

func TestRun_Summary(t *testing.T) {
	session := &mockSession{
		urls: []string{pubURL, closedURL, tacosURL},
		results: map[string]*models.ExtractionResult{
			tacosURL: result("Joe's Tacos", map[string]models.DaySchedule{
				"Mon": {"11am-2pm: $10 - Lunch Special"},
				"Tue": {},
			}),
		},
		errs: map[string]error{
			closedURL: models.ErrSkipped,
			pubURL:    errors.New("navigation timeout"),
		},
	}
	store := newMemoryStore()
	notifier := &mockNotifier{}

	summary, err := newTestProcessor(session, store, notifier, testConfig()).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := Summary{Discovered: 3, Written: 1, Skipped: 1, Failed: 1}
	if summary != want {
		t.Errorf("Run() summary = %+v, want %+v", summary, want)
	}
	if !session.closed {
		t.Error("Session should be closed after the run")
	}

	doc, ok := store.docs["joes-tacos"]
	if !ok {
		t.Fatal("Expected document under key joes-tacos")
	}
	if doc.Name != "Joe's Tacos" || doc.URL != tacosURL {
		t.Errorf("Stored document = %+v", doc)
	}
	if len(doc.Monday.Description) != 1 || doc.Tuesday.Description == nil || len(doc.Tuesday.Description) != 0 {
		t.Errorf("Unexpected day mapping: Monday %v, Tuesday %v", doc.Monday.Description, doc.Tuesday.Description)
	}
	if len(notifier.announced) != 1 || notifier.announced[0].Name != "Joe's Tacos" {
		t.Errorf("Expected one announcement for Joe's Tacos, got %+v", notifier.announced)
	}
}

func TestRun_IsIdempotent(t *testing.T) {
	for _, skipRecorded := range []bool{true, false} {
		t.Run(map[bool]string{true: "early check", false: "publish check"}[skipRecorded], func(t *testing.T) {
			session := &mockSession{
				urls: []string{tacosURL},
				results: map[string]*models.ExtractionResult{
					tacosURL: result("Joe's Tacos", map[string]models.DaySchedule{"Fri": {"$5 - Wings"}}),
				},
			}
			store := newMemoryStore()
			notifier := &mockNotifier{}
			cfg := testConfig()
			cfg.SkipRecorded = skipRecorded
			p := newTestProcessor(session, store, notifier, cfg)

			if _, err := p.Run(context.Background()); err != nil {
				t.Fatalf("first Run() error = %v", err)
			}
			session.results[tacosURL] = result("Joe's Tacos (new name)", nil)

			summary, err := p.Run(context.Background())
			if err != nil {
				t.Fatalf("second Run() error = %v", err)
			}
			if summary.Written != 0 || summary.AlreadyRecorded != 1 {
				t.Errorf("second Run() summary = %+v, want 0 written and 1 already recorded", summary)
			}
			if store.creates != 1 {
				t.Errorf("Expected exactly one write, got %d", store.creates)
			}
			if store.docs["joes-tacos"].Name != "Joe's Tacos" {
				t.Errorf("Existing document was modified: %+v", store.docs["joes-tacos"])
			}
			if len(notifier.announced) != 1 {
				t.Errorf("Expected one announcement across both runs, got %d", len(notifier.announced))
			}

			wantExtracts := 2
			if skipRecorded {
				wantExtracts = 1
			}
			if len(session.extracted) != wantExtracts {
				t.Errorf("Extract called %d times, want %d", len(session.extracted), wantExtracts)
			}
		})
	}
}

func TestRun_RendererUnavailableAborts(t *testing.T) {
	session := &mockSession{
		urls: []string{pubURL, closedURL, tacosURL},
		results: map[string]*models.ExtractionResult{
			pubURL:   result("Blue Door Pub", nil),
			tacosURL: result("Joe's Tacos", nil),
		},
		errs: map[string]error{
			closedURL: models.ErrRendererUnavailable,
		},
	}
	store := newMemoryStore()

	summary, err := newTestProcessor(session, store, &mockNotifier{}, testConfig()).Run(context.Background())
	if !errors.Is(err, models.ErrRendererUnavailable) {
		t.Fatalf("Run() error = %v, want ErrRendererUnavailable", err)
	}
	if summary.Written != 1 {
		t.Errorf("Businesses before the failure should be kept, summary = %+v", summary)
	}
	if len(session.extracted) != 2 {
		t.Errorf("Run should stop after the renderer failure, extracted %v", session.extracted)
	}
	if !session.closed {
		t.Error("Session should be closed on abort")
	}
}

func TestRun_DiscoveryRetries(t *testing.T) {
	session := &mockSession{
		urls:         []string{tacosURL},
		discoverErrs: []error{models.ErrPageNotReady, models.ErrPageNotReady},
		results: map[string]*models.ExtractionResult{
			tacosURL: result("Joe's Tacos", nil),
		},
	}

	summary, err := newTestProcessor(session, newMemoryStore(), &mockNotifier{}, testConfig()).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if session.discoverCalls != 3 {
		t.Errorf("DiscoverBusinessURLs called %d times, want 3", session.discoverCalls)
	}
	if summary.Written != 1 {
		t.Errorf("summary = %+v, want 1 written", summary)
	}
}

func TestRun_DiscoveryFailure(t *testing.T) {
	tests := []struct {
		name      string
		errs      []error
		wantCalls int
		wantErr   error
	}{
		{
			name:      "Retries exhausted",
			errs:      []error{models.ErrPageNotReady, models.ErrPageNotReady, models.ErrPageNotReady},
			wantCalls: 3,
			wantErr:   models.ErrPageNotReady,
		},
		{
			name:      "Renderer unavailable is not retried",
			errs:      []error{models.ErrRendererUnavailable},
			wantCalls: 1,
			wantErr:   models.ErrRendererUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session := &mockSession{discoverErrs: tt.errs}
			_, err := newTestProcessor(session, newMemoryStore(), &mockNotifier{}, testConfig()).Run(context.Background())
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Run() error = %v, want %v", err, tt.wantErr)
			}
			if session.discoverCalls != tt.wantCalls {
				t.Errorf("DiscoverBusinessURLs called %d times, want %d", session.discoverCalls, tt.wantCalls)
			}
			if !session.closed {
				t.Error("Session should be closed after a failed discovery")
			}
		})
	}
}

func TestRun_OpenFailure(t *testing.T) {
	open := func(ctx context.Context) (Session, error) { return nil, models.ErrRendererUnavailable }
	p := New(open, publisher.New(newMemoryStore(), nil, ""), nil, testConfig())

	if _, err := p.Run(context.Background()); !errors.Is(err, models.ErrRendererUnavailable) {
		t.Errorf("Run() error = %v, want ErrRendererUnavailable", err)
	}
}

func TestRun_MalformedURLIsFailedWithoutRendering(t *testing.T) {
	session := &mockSession{urls: []string{"https://dealiem.com/business/"}}

	summary, err := newTestProcessor(session, newMemoryStore(), &mockNotifier{}, testConfig()).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if summary.Failed != 1 {
		t.Errorf("summary = %+v, want 1 failed", summary)
	}
	if len(session.extracted) != 0 {
		t.Errorf("Malformed URL should not be rendered, extracted %v", session.extracted)
	}
}

func TestRun_NotifierFailureDoesNotAffectStore(t *testing.T) {
	session := &mockSession{
		urls: []string{tacosURL},
		results: map[string]*models.ExtractionResult{
			tacosURL: result("Joe's Tacos", nil),
		},
	}
	store := newMemoryStore()
	notifier := &mockNotifier{err: errors.New("discord status: 500")}

	summary, err := newTestProcessor(session, store, notifier, testConfig()).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if summary.Written != 1 || store.creates != 1 {
		t.Errorf("summary = %+v, creates = %d", summary, store.creates)
	}
}

func TestRun_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	session := &mockSession{
		urls: []string{pubURL, tacosURL},
		results: map[string]*models.ExtractionResult{
			pubURL:   result("Blue Door Pub", nil),
			tacosURL: result("Joe's Tacos", nil),
		},
		onExtract: func(string) { cancel() },
	}

	_, err := newTestProcessor(session, newMemoryStore(), &mockNotifier{}, testConfig()).Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
	if len(session.extracted) != 1 {
		t.Errorf("No business should start after cancellation, extracted %v", session.extracted)
	}
}

func TestRun_PausesAfterEachBusiness(t *testing.T) {
	session := &mockSession{
		urls: []string{pubURL, tacosURL},
		results: map[string]*models.ExtractionResult{
			pubURL:   result("Blue Door Pub", nil),
			tacosURL: result("Joe's Tacos", nil),
		},
		// Extraction outlasts the delay.
		extractTime: 150 * time.Millisecond,
	}
	cfg := testConfig()
	cfg.BusinessDelay = 100 * time.Millisecond

	if _, err := newTestProcessor(session, newMemoryStore(), &mockNotifier{}, cfg).Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(session.starts) != 2 || len(session.ends) != 2 {
		t.Fatalf("Expected 2 extractions, got %d starts and %d ends", len(session.starts), len(session.ends))
	}
	if gap := session.starts[1].Sub(session.ends[0]); gap < cfg.BusinessDelay {
		t.Errorf("gap between businesses = %s, want at least %s", gap, cfg.BusinessDelay)
	}
}

func TestRun_NoPauseAfterLastBusiness(t *testing.T) {
	session := &mockSession{
		urls: []string{tacosURL},
		results: map[string]*models.ExtractionResult{
			tacosURL: result("Joe's Tacos", nil),
		},
	}
	cfg := testConfig()
	cfg.BusinessDelay = time.Hour

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := newTestProcessor(session, newMemoryStore(), &mockNotifier{}, cfg).Run(ctx); err != nil {
		t.Fatalf("Run() error = %v, want no wait after the last business", err)
	}
}
