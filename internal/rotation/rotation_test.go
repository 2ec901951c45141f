package rotation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"neurotutor/internal/content"
	"neurotutor/internal/eventbus"
	"neurotutor/internal/i18n"
	"neurotutor/internal/remote"
	"neurotutor/internal/session"
	"neurotutor/internal/storage"
	kit "neurotutor/internal/transport"
)

type fakeGate struct {
	mu      sync.Mutex
	allowed map[string]bool
}

func (g *fakeGate) IsAuthorized(h string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return h != "" && g.allowed[h]
}

func (g *fakeGate) set(h string, v bool) {
	g.mu.Lock()
	g.allowed[h] = v
	g.mu.Unlock()
}

type resolveCall struct {
	lang  i18n.Lang
	index int
}

type flakyResolver struct {
	inner *content.Resolver
	fail  map[i18n.Lang]bool

	mu    sync.Mutex
	calls []resolveCall
}

func (r *flakyResolver) Resolve(lang i18n.Lang, index int) (content.Location, error) {
	r.mu.Lock()
	r.calls = append(r.calls, resolveCall{lang, index})
	r.mu.Unlock()
	if r.fail[lang] {
		return content.Location{}, errors.New("resolver exploded")
	}
	return r.inner.Resolve(lang, index)
}

type memStorage struct {
	folders map[string][]remote.File
	blobs   map[string][]byte
	docs    map[string]string
}

func (m *memStorage) ListFiles(ctx context.Context, id string) ([]remote.File, error) {
	f, ok := m.folders[id]
	if !ok {
		return nil, remote.ErrNotFound
	}
	return f, nil
}

func (m *memStorage) Download(ctx context.Context, id string) ([]byte, error) {
	b, ok := m.blobs[id]
	if !ok {
		return nil, remote.ErrNotFound
	}
	return b, nil
}

func (m *memStorage) ExportText(ctx context.Context, id string) (string, error) {
	d, ok := m.docs[id]
	if !ok {
		return "", remote.ErrNotFound
	}
	return d, nil
}

type sent struct {
	userID  int64
	name    string
	caption string
	photo   bool
}

type recordingSender struct {
	mu    sync.Mutex
	sends []sent
	fail  map[string]bool
	// entered and release, when set, block every send until release is closed.
	entered chan struct{}
	release chan struct{}
}

func (r *recordingSender) record(to kit.ChatTarget, m kit.Media, caption string, photo bool) (kit.MessageRef, error) {
	if r.entered != nil {
		r.entered <- struct{}{}
		<-r.release
	}
	if r.fail[m.Name] {
		return kit.MessageRef{}, errors.New("telegram said no")
	}
	r.mu.Lock()
	r.sends = append(r.sends, sent{to.ChatID, m.Name, caption, photo})
	r.mu.Unlock()
	return kit.MessageRef{ChatID: to.ChatID}, nil
}

func (r *recordingSender) SendPhoto(ctx context.Context, to kit.ChatTarget, m kit.Media, caption string) (kit.MessageRef, error) {
	return r.record(to, m, caption, true)
}

func (r *recordingSender) SendDocument(ctx context.Context, to kit.ChatTarget, m kit.Media) (kit.MessageRef, error) {
	return r.record(to, m, "", false)
}

func (r *recordingSender) snapshot() []sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]sent(nil), r.sends...)
}

type memAudit struct {
	mu         sync.Mutex
	deliveries []storage.DeliveryRecord
	ticks      []storage.TickRecord
}

func (a *memAudit) AppendDelivery(ctx context.Context, r storage.DeliveryRecord) error {
	a.mu.Lock()
	a.deliveries = append(a.deliveries, r)
	a.mu.Unlock()
	return nil
}

func (a *memAudit) AppendTick(ctx context.Context, r storage.TickRecord) error {
	a.mu.Lock()
	a.ticks = append(a.ticks, r)
	a.mu.Unlock()
	return nil
}

type fixture struct {
	sessions *session.Store
	gate     *fakeGate
	resolver *flakyResolver
	storage  *memStorage
	sender   *recordingSender
	audit    *memAudit
	bus      eventbus.Bus
}

// newFixture serves ru batches 1..8 (one jpg and one pdf each) and uz
// batches from separate folders.
func newFixture() *fixture {
	st := &memStorage{
		folders: map[string][]remote.File{},
		blobs:   map[string][]byte{},
		docs: map[string]string{
			"ru-cap": "1) Первая памятка 2) Вторая 3) Третья",
			"uz-cap": "1) Birinchi",
		},
	}
	for _, f := range []string{"ru-img", "ru-doc", "uz-img", "uz-doc"} {
		st.folders[f] = nil
	}
	add := func(folder, name string) {
		id := folder + "/" + name
		st.folders[folder] = append(st.folders[folder], remote.File{ID: id, Name: name})
		st.blobs[id] = []byte(name)
	}
	for i := 1; i <= 8; i++ {
		add("ru-img", itoa(i)+"_card.jpg")
		add("ru-doc", itoa(i)+"_guide.pdf")
	}
	add("uz-img", "1_karta.jpg")

	return &fixture{
		sessions: session.NewStore(),
		gate:     &fakeGate{allowed: map[string]bool{}},
		resolver: &flakyResolver{
			inner: content.NewResolver(map[i18n.Lang]content.Location{
				i18n.RU: {ImageFolder: "ru-img", DocumentFolder: "ru-doc", CaptionDoc: "ru-cap"},
				i18n.UZ: {ImageFolder: "uz-img", DocumentFolder: "uz-doc", CaptionDoc: "uz-cap"},
			}),
			fail: map[i18n.Lang]bool{},
		},
		storage: st,
		sender:  &recordingSender{fail: map[string]bool{}},
		audit:   &memAudit{},
		bus:     eventbus.New(),
	}
}

func itoa(i int) string { return string(rune('0' + i)) }

func (f *fixture) user(id int64, handle string, lang i18n.Lang) {
	f.sessions.MarkActive(id, handle)
	if lang != "" {
		f.sessions.SetLanguage(id, lang)
	}
	f.gate.set(handle, true)
}

func (f *fixture) scheduler(t *testing.T, mutate func(o *Options)) *Scheduler {
	t.Helper()
	o := Options{
		Sessions: f.sessions, Gate: f.gate, Resolver: f.resolver, Storage: f.storage, Sender: f.sender,
		DefaultLanguage: i18n.RU, Bound: 8, Policy: PolicyStop, Concurrency: 4,
		Audit: f.audit, Bus: f.bus,
	}
	if mutate != nil {
		mutate(&o)
	}
	s, err := New(o)
	require.NoError(t, err)
	return s
}

func TestTickIsolatesFailuresAndAdvancesOnce(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.user(1, "a", i18n.UZ)
	f.user(2, "b", i18n.RU)
	f.resolver.fail[i18n.UZ] = true
	f.sender.fail["1_guide.pdf"] = true
	events, unsub := f.bus.Subscribe(16)
	defer unsub()

	s := f.scheduler(t, nil)
	sum := s.Tick(context.Background())

	require.Equal(t, 1, sum.Index)
	require.Equal(t, 2, sum.Users)
	require.Equal(t, 1, sum.Errored)
	require.Equal(t, 1, sum.Partial)
	require.Equal(t, 1, sum.Delivered)
	require.Equal(t, 1, sum.Failed)
	require.True(t, sum.Advanced)
	require.Equal(t, State{Index: 2, Bound: 8}, s.State())

	sends := f.sender.snapshot()
	require.Len(t, sends, 1)
	require.Equal(t, sent{userID: 2, name: "1_card.jpg", caption: "Первая памятка", photo: true}, sends[0])

	require.Len(t, f.audit.deliveries, 2)
	require.Len(t, f.audit.ticks, 1)
	require.Equal(t, 2, f.audit.ticks[0].NextIndex)

	var sawFailure, sawDone bool
	for len(events) > 0 {
		e := <-events
		switch e.Type {
		case eventbus.TypeDeliveryFail:
			sawFailure = e.Data.(DeliveryFailure).File == "1_guide.pdf"
		case eventbus.TypeTickDone:
			sawDone = true
		}
	}
	require.True(t, sawFailure)
	require.True(t, sawDone)

	// A is retried on the next tick with the advanced index.
	f.resolver.fail[i18n.UZ] = false
	s.Tick(context.Background())
	f.resolver.mu.Lock()
	defer f.resolver.mu.Unlock()
	require.Contains(t, f.resolver.calls, resolveCall{i18n.UZ, 2})
}

func TestStopPolicyExhaustsAtBound(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.user(7, "c", "")
	s := f.scheduler(t, nil)

	for i := 1; i <= 8; i++ {
		sum := s.Tick(context.Background())
		require.Equal(t, i, sum.Index)
		require.Equal(t, 2, sum.Delivered)
		require.LessOrEqual(t, s.State().Index, 8)
	}
	require.Equal(t, State{Index: 8, Bound: 8, Exhausted: true}, s.State())

	before := len(f.sender.snapshot())
	for i := 0; i < 3; i++ {
		sum := s.Tick(context.Background())
		require.False(t, sum.Advanced)
	}
	require.Equal(t, before, len(f.sender.snapshot()))
	require.Equal(t, 8, s.State().Index)
}

func TestWrapPolicyFollowsCaptionCount(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.user(7, "c", i18n.RU)
	s := f.scheduler(t, func(o *Options) { o.Policy = PolicyWrap })

	var got []int
	for i := 0; i < 5; i++ {
		got = append(got, s.Tick(context.Background()).Index)
	}
	// ru captions define three sections.
	require.Equal(t, []int{1, 2, 3, 1, 2}, got)
	require.False(t, s.State().Exhausted)
}

func TestWrapIgnoresTrailingEmptyCaptionMarker(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.storage.docs["ru-cap"] = "1) a 2) b 3)\n"
	f.user(7, "c", i18n.RU)
	s := f.scheduler(t, func(o *Options) { o.Policy = PolicyWrap })

	var got []int
	for i := 0; i < 4; i++ {
		got = append(got, s.Tick(context.Background()).Index)
	}
	require.Equal(t, []int{1, 2, 1, 2}, got)
	photos := 0
	for _, m := range f.sender.snapshot() {
		if m.photo {
			photos++
			require.NotEmpty(t, m.caption, m.name)
		}
	}
	require.Equal(t, 4, photos)
}

func TestAuthorizationRecheckedEveryTick(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.user(1, "a", i18n.RU)
	s := f.scheduler(t, nil)

	f.gate.set("a", false)
	sum := s.Tick(context.Background())
	require.Equal(t, 1, sum.Skipped)
	require.Empty(t, f.sender.snapshot())
	require.Equal(t, 1, f.sessions.Len(), "skipped users stay active")

	f.gate.set("a", true)
	sum = s.Tick(context.Background())
	require.Equal(t, 2, sum.Index)
	require.Equal(t, 2, sum.Delivered)
}

func TestMissingCaptionUsesSentinel(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.user(1, "a", i18n.RU)
	s := f.scheduler(t, func(o *Options) { o.StartIndex = 5 })

	s.Tick(context.Background())
	sends := f.sender.snapshot()
	require.Equal(t, "5_card.jpg", sends[0].name)
	require.Equal(t, "Текст не найден", sends[0].caption)
}

func TestCaptionFetchFailureSkipsUser(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.user(1, "a", i18n.RU)
	delete(f.storage.docs, "ru-cap")
	s := f.scheduler(t, nil)

	sum := s.Tick(context.Background())
	require.Equal(t, 1, sum.Errored)
	require.Zero(t, sum.Delivered)
	require.Equal(t, 2, s.State().Index)
}

func TestOverlappingTicksDoNotInterleave(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.storage.folders["ru-doc"] = nil // one file per batch
	f.user(1, "a", i18n.RU)
	f.sender.entered = make(chan struct{})
	f.sender.release = make(chan struct{})
	s := f.scheduler(t, nil)

	results := make(chan TickSummary, 2)
	go func() { results <- s.Tick(context.Background()) }()
	<-f.sender.entered // first tick is mid-delivery

	go func() { results <- s.Tick(context.Background()) }()
	select {
	case <-f.sender.entered:
		t.Fatalf("second tick started delivering while the first was running")
	case <-time.After(50 * time.Millisecond):
	}
	require.Equal(t, 1, s.State().Index)

	close(f.sender.release)
	<-f.sender.entered // second tick, after the first advanced
	require.Equal(t, 2, s.State().Index)

	first, second := <-results, <-results
	if first.Index > second.Index {
		first, second = second, first
	}
	require.Equal(t, 1, first.Index)
	require.Equal(t, 2, second.Index)
	require.Equal(t, 3, s.State().Index)

	sends := f.sender.snapshot()
	require.Equal(t, []string{"1_card.jpg", "2_card.jpg"}, []string{sends[0].name, sends[1].name})
}

func TestNewValidates(t *testing.T) {
	t.Parallel()

	f := newFixture()
	base := Options{Sessions: f.sessions, Gate: f.gate, Resolver: f.resolver, Storage: f.storage, Sender: f.sender, Bound: 8}

	o := base
	o.Storage = nil
	_, err := New(o)
	require.ErrorIs(t, err, ErrNoStorage)

	o = base
	o.Sender = nil
	_, err = New(o)
	require.ErrorIs(t, err, ErrNoSender)

	o = base
	o.StartIndex = 9
	_, err = New(o)
	require.Error(t, err)

	o = base
	o.Policy = "loop"
	_, err = New(o)
	require.Error(t, err)

	p, err := ParsePolicy(" Wrap ")
	require.NoError(t, err)
	require.Equal(t, PolicyWrap, p)
}

func TestAdvance(t *testing.T) {
	t.Parallel()

	require.Equal(t, State{Index: 3, Bound: 8}, advance(State{Index: 2, Bound: 8}, PolicyStop, 0))
	require.Equal(t, State{Index: 8, Bound: 8, Exhausted: true}, advance(State{Index: 8, Bound: 8}, PolicyStop, 0))
	require.Equal(t, State{Index: 1, Bound: 8}, advance(State{Index: 8, Bound: 8}, PolicyWrap, 0))
	require.Equal(t, State{Index: 1, Bound: 8}, advance(State{Index: 3, Bound: 8}, PolicyWrap, 3))
}

// failOnceStorage fails the first read of each listed id and serves every
// later read from the wrapped storage.
type failOnceStorage struct {
	*memStorage
	mu    sync.Mutex
	fails map[string]bool
	calls map[string]int
}

func (s *failOnceStorage) first(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.calls == nil {
		s.calls = map[string]int{}
	}
	s.calls[id]++
	return s.fails[id] && s.calls[id] == 1
}

func (s *failOnceStorage) Download(ctx context.Context, id string) ([]byte, error) {
	if s.first(id) {
		return nil, errors.New("drive hiccup")
	}
	return s.memStorage.Download(ctx, id)
}

func (s *failOnceStorage) ExportText(ctx context.Context, id string) (string, error) {
	if s.first(id) {
		return "", errors.New("drive hiccup")
	}
	return s.memStorage.ExportText(ctx, id)
}

func TestTickFailedDownloadIsNotSharedAcrossUsers(t *testing.T) {
	t.Parallel()

	for _, conc := range []int{1, 4} {
		f := newFixture()
		f.user(1, "a", i18n.RU)
		f.user(2, "b", i18n.RU)
		f.user(3, "c", i18n.RU)
		st := &failOnceStorage{memStorage: f.storage, fails: map[string]bool{"ru-img/1_card.jpg": true}}

		s := f.scheduler(t, func(o *Options) {
			o.Storage = st
			o.Concurrency = conc
		})
		sum := s.Tick(context.Background())

		require.Equal(t, 1, sum.Failed, "concurrency %d", conc)
		require.Equal(t, 5, sum.Delivered, "concurrency %d", conc)
		require.Equal(t, 2, sum.Full, "concurrency %d", conc)
		require.Equal(t, 1, sum.Partial, "concurrency %d", conc)
	}
}

func TestTickFailedCaptionDocIsNotSharedAcrossUsers(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.user(1, "a", i18n.RU)
	f.user(2, "b", i18n.RU)
	st := &failOnceStorage{memStorage: f.storage, fails: map[string]bool{"ru-cap": true}}

	s := f.scheduler(t, func(o *Options) { o.Storage = st })
	sum := s.Tick(context.Background())

	require.Equal(t, 1, sum.Errored)
	require.Equal(t, 1, sum.Full)
	require.Equal(t, 2, sum.Delivered)
	require.True(t, sum.Advanced)
}

func TestTickCacheRecoversPanickingLoad(t *testing.T) {
	t.Parallel()

	c := newTickCache(&memStorage{}, 0)
	calls := 0
	load := func(ctx context.Context) ([]byte, error) {
		calls++
		if calls == 1 {
			panic("boom")
		}
		return []byte("ok"), nil
	}
	_, err := memo(context.Background(), c, c.downloads, "download", "x", load)
	require.Error(t, err)

	b, err := memo(context.Background(), c, c.downloads, "download", "x", load)
	require.NoError(t, err)
	require.Equal(t, []byte("ok"), b)

	// Cached now; load is not called again.
	_, err = memo(context.Background(), c, c.downloads, "download", "x", load)
	require.NoError(t, err)
	require.Equal(t, 2, calls)
}
