package assistant

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"neurotutor/internal/conversation"
	"neurotutor/internal/eventbus"
	"neurotutor/internal/i18n"
	"neurotutor/internal/rotation"
	"neurotutor/internal/session"
	kit "neurotutor/internal/transport"
	"neurotutor/internal/transport/telegram/router"
	logx "neurotutor/pkg/logx"
)

type sent struct {
	to   kit.ChatTarget
	text string
	opt  *kit.SendOptions
}

type fakeSender struct {
	mu      sync.Mutex
	sent    []sent
	edits   []string
	editErr error
}

func (f *fakeSender) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sent{to: to, text: text, opt: opt})
	return kit.MessageRef{ChatID: to.ChatID}, nil
}

func (f *fakeSender) EditText(ctx context.Context, ref kit.MessageRef, text string, opt *kit.SendOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.editErr != nil {
		return f.editErr
	}
	f.edits = append(f.edits, text)
	return nil
}

type allow map[string]bool

func (a allow) IsAuthorized(h string) bool { return a[h] }

type fakeRegistrar struct{ calls []string }

func (r *fakeRegistrar) Register(ctx context.Context, handle string, chatID int64) (bool, error) {
	r.calls = append(r.calls, handle)
	return true, nil
}

type fakeDocs map[string]string

func (d fakeDocs) ExportText(ctx context.Context, id string) (string, error) {
	if t, ok := d[id]; ok {
		return t, nil
	}
	return "", errors.New("not found")
}

type fakeChat struct{ msgs []string }

func (c *fakeChat) Handle(ctx context.Context, msg *kit.Message) (conversation.Decision, error) {
	c.msgs = append(c.msgs, msg.Text)
	return conversation.Decision{Kind: conversation.Admit}, nil
}

type fakeRotation struct{}

func (fakeRotation) State() rotation.State { return rotation.State{Index: 3, Bound: 8} }
func (fakeRotation) LastSummary() (rotation.TickSummary, bool) {
	return rotation.TickSummary{At: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), Index: 2, Delivered: 5, Failed: 1, Users: 2}, true
}
func (fakeRotation) Policy() rotation.Policy { return rotation.PolicyStop }

type fixture struct {
	h        *Handlers
	sessions *session.Store
	sender   *fakeSender
	reg      *fakeRegistrar
	chat     *fakeChat
	bus      eventbus.Bus
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		sessions: session.NewStore(),
		sender:   &fakeSender{},
		reg:      &fakeRegistrar{},
		chat:     &fakeChat{},
		bus:      eventbus.New(),
	}
	f.h = New(Options{
		Sessions:        f.sessions,
		Access:          allow{"@alice": true},
		Registrar:       f.reg,
		Sender:          f.sender,
		Docs:            fakeDocs{"course-ru": strings.Repeat("я", 5000)},
		CourseDocs:      map[i18n.Lang]string{i18n.RU: "course-ru", i18n.UZ: "course-uz"},
		Chat:            f.chat,
		Rotation:        fakeRotation{},
		DefaultLanguage: i18n.RU,
		Bus:             f.bus,
	})
	return f
}

func request(from int64, handle string) *router.Request {
	return &router.Request{
		Update:       kit.Update{Kind: kit.UpdateMessage, Message: &kit.Message{ChatID: from, FromID: from, FromUsername: handle}},
		Chat:         kit.UserTarget(from),
		FromID:       from,
		FromUsername: handle,
		MessageID:    9,
		Logger:       logx.Nop(),
	}
}

func TestStartGreetsAuthorizedUser(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	events, unsub := f.bus.Subscribe(4)
	defer unsub()

	require.NoError(t, f.h.start(context.Background(), request(1, "alice")))

	require.Len(t, f.sender.sent, 1)
	cat := i18n.Default()
	require.Equal(t, cat.T(i18n.RU, i18n.KeyGreeting), f.sender.sent[0].text)
	rm, ok := f.sender.sent[0].opt.ReplyMarkupAdapter.(*tele.ReplyMarkup)
	require.True(t, ok)
	require.Len(t, rm.InlineKeyboard, len(i18n.Supported))
	require.Equal(t, "lang:select:uz", rm.InlineKeyboard[1][0].Data)

	require.Equal(t, []string{"alice"}, f.reg.calls)
	require.Equal(t, 1, f.sessions.Len())

	ev := <-events
	require.Equal(t, eventbus.TypeUserGreeted, ev.Type)
	require.Equal(t, Greeted{UserID: 1, Handle: "alice", First: true, Authorized: true}, ev.Data)
}

func TestStartRefusesButActivates(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	require.NoError(t, f.h.start(context.Background(), request(2, "mallory")))

	require.Len(t, f.sender.sent, 1)
	require.Equal(t, i18n.Default().T(i18n.RU, i18n.KeyDisallowed), f.sender.sent[0].text)
	require.Empty(t, f.reg.calls)
	// activation is unconditional; the broadcast re-checks the gate every tick
	require.Equal(t, 1, f.sessions.Len())
}

func TestSelectLanguageEditsWelcome(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	req := request(1, "alice")
	req.Payload = "uz"

	require.NoError(t, f.h.selectLanguage(context.Background(), req))
	require.Equal(t, i18n.UZ, f.sessions.Language(1, i18n.RU))
	require.Equal(t, []string{i18n.Default().T(i18n.UZ, i18n.KeyWelcome)}, f.sender.edits)

	req.Payload = "en"
	require.Error(t, f.h.selectLanguage(context.Background(), req))
	require.Equal(t, i18n.UZ, f.sessions.Language(1, i18n.RU))
}

func TestSelectLanguageFallsBackToSend(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.sender.editErr = errors.New("message is not modified")
	req := request(1, "alice")
	req.Payload = "ru"

	require.NoError(t, f.h.selectLanguage(context.Background(), req))
	require.Len(t, f.sender.sent, 1)
	require.Equal(t, i18n.Default().T(i18n.RU, i18n.KeyWelcome), f.sender.sent[0].text)
}

func TestCourseContent(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	cat := i18n.Default()

	require.NoError(t, f.h.course(ctx, request(1, "alice")))
	require.Equal(t, 4096, len([]rune(f.sender.sent[0].text)))

	f.sessions.SetLanguage(1, i18n.UZ)
	require.NoError(t, f.h.course(ctx, request(1, "alice")))
	require.Equal(t, cat.T(i18n.UZ, i18n.KeyCourseMissing), f.sender.sent[1].text)

	require.NoError(t, f.h.course(ctx, request(2, "mallory")))
	require.Equal(t, cat.T(i18n.RU, i18n.KeyDisallowed), f.sender.sent[2].text)
}

func TestHelpRequiresAuthorization(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	cat := i18n.Default()

	require.NoError(t, f.h.help(ctx, request(1, "alice")))
	require.Equal(t, cat.T(i18n.RU, i18n.KeyHelp), f.sender.sent[0].text)

	require.NoError(t, f.h.help(ctx, request(2, "mallory")))
	require.Equal(t, cat.T(i18n.RU, i18n.KeyDisallowed), f.sender.sent[1].text)
}

func TestStatus(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.sessions.MarkActive(1, "alice")

	require.NoError(t, f.h.status(context.Background(), request(1, "alice")))
	text := f.sender.sent[0].text
	require.Contains(t, text, "3 из 8")
	require.Contains(t, text, "stop")
	require.Contains(t, text, "2026-01-02 03:04:05 #2, 5/6 files, 2 users")
}

func TestTextGoesToChat(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	req := request(1, "alice")
	req.Update.Message.Text = "что такое таргет?"

	require.NoError(t, f.h.text(context.Background(), req))
	require.Equal(t, []string{"что такое таргет?"}, f.chat.msgs)

	req.Update.Message.IsGroup = true
	require.NoError(t, f.h.text(context.Background(), req))
	require.Len(t, f.chat.msgs, 1)
}

func TestRegistryRoutes(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	reg := f.h.Registry()
	names := make([]string, 0, len(reg.Commands))
	for _, c := range reg.Commands {
		names = append(names, c.Name)
		if c.Name == "status" {
			require.Equal(t, router.AccessOwnerOnly, c.Access)
		}
	}
	require.Equal(t, []string{"start", "help", "course_content", "status"}, names)
	require.Len(t, reg.Callbacks, 1)
	require.NotNil(t, reg.Text)
	require.NotNil(t, reg.Denied)

	f.h.opts.Rotation = nil
	require.Len(t, f.h.Registry().Commands, 3)
}
