package conversation

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"

	"neurotutor/internal/access"
	"neurotutor/internal/answer"
	"neurotutor/internal/eventbus"
	"neurotutor/internal/i18n"
	kit "neurotutor/internal/transport"
	logx "neurotutor/pkg/logx"
	"neurotutor/pkg/tgui"
)

// Sender is the transport surface of the chat flow.
type Sender interface {
	kit.TextSender
	kit.StickerSender
}

// Chat turns an inbound text message into replies.
type Chat struct {
	Gate    *Gate
	Engine  answer.Engine
	Sender  Sender
	Catalog *i18n.Catalog
	// Stickers are file ids; one is sent while the answer is generated.
	Stickers []string
	Bus      eventbus.Bus
	Log      logx.Logger

	// pick chooses a sticker index; nil means math/rand.
	pick func(n int) int
}

// Handle runs the whole flow for msg and returns the gate decision.
func (c *Chat) Handle(ctx context.Context, msg *kit.Message) (Decision, error) {
	log := c.logger().With(logx.Int64("user_id", msg.FromID))
	to := kit.ChatTarget{ChatID: msg.ChatID, ThreadID: msg.ThreadID}
	cat := c.catalog()

	dec, err := c.Gate.Admit(ctx, msg.FromID, msg.FromUsername, msg.Text)
	lang := dec.Expected
	if lang == "" {
		lang = c.Gate.Sessions.Language(msg.FromID, c.Gate.DefaultLanguage)
	}
	if err != nil {
		log.Warn("language detection failed", logx.Err(err))
		c.reply(ctx, log, to, cat.T(lang, i18n.KeyDetectError))
		return dec, err
	}

	switch dec.Kind {
	case Reject:
		log.Info("message rejected", logx.String("reason", dec.Reason))
		c.reply(ctx, log, to, cat.T(lang, i18n.KeyDisallowed))
		return dec, nil
	case DetectMismatch:
		log.Info("language mismatch", logx.String("expected", dec.Expected.String()), logx.String("detected", dec.Detected.String()))
		c.reply(ctx, log, to, cat.T(dec.Expected, i18n.KeyMismatch))
		return dec, nil
	}

	if c.Bus != nil {
		c.Bus.Publish(eventbus.Event{Type: eventbus.TypeQuestionAsked, Data: msg.FromID})
	}
	c.reply(ctx, log, to, cat.T(lang, i18n.KeyProcessing))
	if id := c.sticker(); id != "" {
		if _, err := c.Sender.SendSticker(ctx, to, id); err != nil {
			log.Debug("sticker send failed", logx.Err(err))
		}
	}

	text, err := c.Engine.Answer(ctx, msg.Text)
	if err != nil {
		log.Error("answer failed", logx.Err(err))
		c.reply(ctx, log, to, cat.T(lang, i18n.KeyGenericError))
		return dec, nil
	}
	if text == "" {
		text = cat.T(lang, i18n.KeyNoAnswer)
	}
	c.reply(ctx, log, to, tgui.TruncRunes(text, tgui.MaxMessageRunes))
	return dec, nil
}

func (c *Chat) reply(ctx context.Context, log logx.Logger, to kit.ChatTarget, text string) {
	if _, err := c.Sender.SendText(ctx, to, text, &kit.SendOptions{DisablePreview: true}); err != nil {
		log.Warn("reply failed", logx.Err(err))
	}
}

func (c *Chat) sticker() string {
	if len(c.Stickers) == 0 {
		return ""
	}
	pick := c.pick
	if pick == nil {
		pick = rand.IntN
	}
	return c.Stickers[pick(len(c.Stickers))]
}

func (c *Chat) catalog() *i18n.Catalog {
	if c.Catalog == nil {
		return i18n.Default()
	}
	return c.Catalog
}

func (c *Chat) logger() logx.Logger {
	if c.Log.IsZero() {
		return logx.Nop()
	}
	return c.Log
}

// LoadStickers reads sticker file ids, one per line. An empty path yields no
// stickers.
func LoadStickers(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("stickers: %w", err)
	}
	return access.ParseLines(string(b)), nil
}
