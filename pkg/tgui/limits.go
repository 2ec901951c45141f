package tgui

import "errors"

// MaxCallbackDataLen is Telegram's callback_data size limit in bytes.
// NOTE: This is the length of the full string: "scope:action:payload".
const MaxCallbackDataLen = 64

// MaxMessageRunes is the longest text Telegram accepts in a single message.
const MaxMessageRunes = 4096

var ErrCallbackDataTooLong = errors.New("tgui: callback_data too long")
