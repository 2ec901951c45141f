package conversation

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"

	"neurotutor/internal/i18n"
	"neurotutor/internal/session"
	kit "neurotutor/internal/transport"
)

type allowAll map[string]bool

func (a allowAll) IsAuthorized(h string) bool { return h != "" && a[h] }

type fixedDetector struct {
	lang i18n.Lang
	err  error
}

func (d fixedDetector) Detect(ctx context.Context, text string) (i18n.Lang, error) {
	return d.lang, d.err
}

type countingEngine struct {
	calls  int
	answer string
	err    error
}

func (e *countingEngine) Answer(ctx context.Context, q string) (string, error) {
	e.calls++
	return e.answer, e.err
}

type chatSender struct {
	mu       sync.Mutex
	texts    []string
	stickers []string
}

func (s *chatSender) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	s.mu.Lock()
	s.texts = append(s.texts, text)
	s.mu.Unlock()
	return kit.MessageRef{ChatID: to.ChatID}, nil
}

func (s *chatSender) SendSticker(ctx context.Context, to kit.ChatTarget, id string) (kit.MessageRef, error) {
	s.mu.Lock()
	s.stickers = append(s.stickers, id)
	s.mu.Unlock()
	return kit.MessageRef{ChatID: to.ChatID}, nil
}

func newGate(det fixedDetector) (*Gate, *session.Store) {
	st := session.NewStore()
	st.MarkActive(1, "alice")
	st.SetLanguage(1, i18n.RU)
	return &Gate{Access: allowAll{"alice": true}, Sessions: st, Detector: det, DefaultLanguage: i18n.RU}, st
}

func TestAdmitDecisions(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	g, _ := newGate(fixedDetector{lang: i18n.UZ})
	dec, err := g.Admit(ctx, 1, "alice", "savol")
	require.NoError(t, err)
	require.Equal(t, Decision{Kind: DetectMismatch, Reason: "language mismatch", Expected: i18n.RU, Detected: i18n.UZ}, dec)

	dec, err = g.Admit(ctx, 2, "", "вопрос")
	require.NoError(t, err)
	require.Equal(t, Reject, dec.Kind)

	dec, err = g.Admit(ctx, 3, "mallory", "вопрос")
	require.NoError(t, err)
	require.Equal(t, Reject, dec.Kind)

	g, _ = newGate(fixedDetector{lang: i18n.RU})
	dec, err = g.Admit(ctx, 1, "alice", "вопрос")
	require.NoError(t, err)
	require.Equal(t, Admit, dec.Kind)

	g, _ = newGate(fixedDetector{err: errors.New("model missing")})
	_, err = g.Admit(ctx, 1, "alice", "вопрос")
	require.ErrorIs(t, err, ErrDetection)
}

func msg(text string) *kit.Message {
	return &kit.Message{ChatID: 1, FromID: 1, FromUsername: "alice", Text: text}
}

func TestMismatchNeverCallsEngine(t *testing.T) {
	t.Parallel()

	g, _ := newGate(fixedDetector{lang: i18n.UZ})
	eng := &countingEngine{answer: "x"}
	snd := &chatSender{}
	c := &Chat{Gate: g, Engine: eng, Sender: snd}

	dec, err := c.Handle(context.Background(), msg("Bu savol"))
	require.NoError(t, err)
	require.Equal(t, DetectMismatch, dec.Kind)
	require.Zero(t, eng.calls)
	require.Equal(t, []string{"Пожалуйста, задавайте вопросы на русском языке."}, snd.texts)
}

func TestRejectAndDetectionErrorReplies(t *testing.T) {
	t.Parallel()

	cat := i18n.Default()

	g, _ := newGate(fixedDetector{lang: i18n.RU})
	eng := &countingEngine{}
	snd := &chatSender{}
	c := &Chat{Gate: g, Engine: eng, Sender: snd}
	m := msg("вопрос")
	m.FromUsername = "stranger"
	dec, err := c.Handle(context.Background(), m)
	require.NoError(t, err)
	require.Equal(t, Reject, dec.Kind)
	require.Equal(t, []string{cat.T(i18n.RU, i18n.KeyDisallowed)}, snd.texts)

	g, _ = newGate(fixedDetector{err: errors.New("boom")})
	snd = &chatSender{}
	c = &Chat{Gate: g, Engine: eng, Sender: snd}
	_, err = c.Handle(context.Background(), msg("вопрос"))
	require.ErrorIs(t, err, ErrDetection)
	require.Equal(t, []string{"Ошибка при определении языка сообщения."}, snd.texts)
	require.Zero(t, eng.calls)
}

func TestAdmitFlowTruncatesAnswer(t *testing.T) {
	t.Parallel()

	g, _ := newGate(fixedDetector{lang: i18n.RU})
	eng := &countingEngine{answer: strings.Repeat("я", 5000)}
	snd := &chatSender{}
	c := &Chat{Gate: g, Engine: eng, Sender: snd, Stickers: []string{"s1", "s2"}, pick: func(n int) int { return n - 1 }}

	dec, err := c.Handle(context.Background(), msg("Что такое таргет?"))
	require.NoError(t, err)
	require.Equal(t, Admit, dec.Kind)
	require.Equal(t, 1, eng.calls)
	require.Equal(t, []string{"s2"}, snd.stickers)
	require.Len(t, snd.texts, 2)
	require.Equal(t, "Пока ваш запрос обрабатывается, ловите котика", snd.texts[0])
	require.Equal(t, 4096, utf8.RuneCountInString(snd.texts[1]))
}

func TestEngineFailureRepliesGenericError(t *testing.T) {
	t.Parallel()

	g, _ := newGate(fixedDetector{lang: i18n.RU})
	snd := &chatSender{}
	c := &Chat{Gate: g, Engine: &countingEngine{err: errors.New("rate limited")}, Sender: snd}

	_, err := c.Handle(context.Background(), msg("вопрос"))
	require.NoError(t, err)
	require.Equal(t, "Произошла ошибка при обработке вашего запроса.", snd.texts[len(snd.texts)-1])
	require.Empty(t, snd.stickers)
}

func TestLoadStickers(t *testing.T) {
	t.Parallel()

	ids, err := LoadStickers("")
	require.NoError(t, err)
	require.Empty(t, ids)

	p := filepath.Join(t.TempDir(), "stickers.txt")
	require.NoError(t, os.WriteFile(p, []byte("CAAC1\n\nCAAC2\n"), 0o600))
	ids, err = LoadStickers(p)
	require.NoError(t, err)
	require.Equal(t, []string{"CAAC1", "CAAC2"}, ids)

	_, err = LoadStickers(p + ".nope")
	require.Error(t, err)
}
