package config

// Config is the whole on-disk configuration.
//
// Every recognized option is listed here; unknown keys are rejected at decode
// time and required keys are checked by Validate before anything starts.
type Config struct {
	Telegram  TelegramConfig  `json:"telegram"`
	Logging   LoggingConfig   `json:"logging"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Broadcast BroadcastConfig `json:"broadcast"`
	Content   ContentConfig   `json:"content"`
	Access    AccessConfig    `json:"access"`
	Remote    RemoteConfig    `json:"remote"`
	Answer    AnswerConfig    `json:"answer"`
	Detector  DetectorConfig  `json:"detector"`
	Chat      ChatConfig      `json:"chat"`
	Ops       OpsConfig       `json:"ops"`
	Storage   *StorageConfig  `json:"storage,omitempty"`
}

type TelegramConfig struct {
	Token        string  `json:"token" validate:"required"`
	OwnerUserIDs []int64 `json:"owner_user_ids"`
	GroupLog     string  `json:"group_log"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout" validate:"omitempty,duration"`
	// Workers is the size of the update handler pool. 0 means NumCPU (min 2).
	Workers int `json:"workers" validate:"gte=0"`
	// HandlerTimeout bounds a single command/message handler.
	HandlerTimeout string `json:"handler_timeout" validate:"omitempty,duration"`
}

type LoggingConfig struct {
	Level    string          `json:"level" validate:"omitempty,loglevel"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	ThreadID   int    `json:"thread_id"`
	MinLevel   string `json:"min_level" validate:"omitempty,loglevel"`
	RatePerSec int    `json:"rate_per_sec" validate:"gte=0"`
}

// SchedulerConfig controls the trigger service.
type SchedulerConfig struct {
	// Timezone is an IANA zone used for cron schedules, e.g. "Asia/Tashkent".
	Timezone string `json:"timezone,omitempty" validate:"omitempty,timezone"`
}

// BroadcastConfig controls the rotating checklist broadcast.
type BroadcastConfig struct {
	Enabled bool `json:"enabled"`
	// Schedule accepts anything ParseSchedule does: "20s", "00:30", "*/5 * * * *".
	// It is read once at startup.
	Schedule string `json:"schedule" validate:"required"`
	// Bound is the highest batch number.
	Bound int `json:"bound" validate:"gte=1"`
	// Policy is "stop" (finite campaign) or "wrap" (repeat by caption count).
	Policy string `json:"policy" validate:"oneof=stop wrap"`
	// StartIndex lets an operator resume a campaign by hand after a restart.
	StartIndex int `json:"start_index" validate:"gte=1,ltefield=Bound"`
	// Concurrency is the number of users served in parallel inside one tick.
	Concurrency int `json:"concurrency" validate:"gte=1,lte=64"`
	// RatePerSec caps outgoing media sends across all users.
	RatePerSec int `json:"rate_per_sec" validate:"gte=1"`
	// FetchTimeout bounds a single remote list/download call.
	FetchTimeout string `json:"fetch_timeout" validate:"omitempty,duration"`
	// SendTimeout bounds a single transport call.
	SendTimeout string `json:"send_timeout" validate:"omitempty,duration"`
}

// ContentConfig holds the per-language remote identifiers.
type ContentConfig struct {
	// DefaultLanguage is used for users who have not picked one.
	DefaultLanguage string          `json:"default_language" validate:"oneof=ru uz"`
	RU              LanguageContent `json:"ru"`
	UZ              LanguageContent `json:"uz"`
}

type LanguageContent struct {
	ImageFolder    string `json:"image_folder" validate:"required"`
	DocumentFolder string `json:"document_folder" validate:"required"`
	CaptionDoc     string `json:"caption_doc" validate:"required"`
	// CourseDoc backs /course_content. Optional.
	CourseDoc string `json:"course_doc"`
}

// AccessConfig selects where the allow-list comes from.
//
// Source values:
//   - "doc": remote plain-text document (DocID), one handle per line
//   - "file": local file (File), same format
//   - "sheet": spreadsheet range (SheetID, SheetRange), handles in the first column
type AccessConfig struct {
	Source     string `json:"source" validate:"oneof=doc file sheet"`
	DocID      string `json:"doc_id" validate:"required_if=Source doc"`
	File       string `json:"file" validate:"required_if=Source file"`
	SheetID    string `json:"sheet_id" validate:"required_if=Source sheet"`
	SheetRange string `json:"sheet_range"`
	HeaderRow  bool   `json:"header_row"`
	// RegisterColumn, when set with Source=sheet, receives the chat id of a
	// user the first time they greet the bot (e.g. "B").
	RegisterColumn string `json:"register_column" validate:"omitempty,alpha,uppercase"`
}

// RemoteConfig selects the remote storage backend.
type RemoteConfig struct {
	// Driver is "gdrive" or "localfs".
	Driver          string `json:"driver" validate:"oneof=gdrive localfs"`
	CredentialsFile string `json:"credentials_file" validate:"required_if=Driver gdrive"`
	// Root is the base directory for localfs; folder and file ids are relative paths.
	Root string `json:"root" validate:"required_if=Driver localfs"`
}

// AnswerConfig configures the question answering pipeline.
type AnswerConfig struct {
	APIKey         string   `json:"api_key" validate:"required"`
	BaseURL        string   `json:"base_url" validate:"omitempty,url"`
	Model          string   `json:"model" validate:"required"`
	EmbeddingModel string   `json:"embedding_model" validate:"required"`
	Temperature    *float64 `json:"temperature,omitempty" validate:"omitempty,gte=0,lte=2"`
	// CorpusFolder holds the course material used as answer context.
	CorpusFolder string `json:"corpus_folder" validate:"required"`
	TopK         int    `json:"top_k" validate:"gte=1,lte=50"`
	ChunkSize    int    `json:"chunk_size" validate:"gte=50"`
	Timeout      string `json:"timeout" validate:"omitempty,duration"`
	// Refresh re-reads the corpus folder on this cadence. Empty disables refresh.
	Refresh string `json:"refresh" validate:"omitempty,duration"`
}

// DetectorConfig tunes free-text language detection.
type DetectorConfig struct {
	// Candidates restricts detection to these languages (ISO 639-1). Empty means all.
	Candidates []string `json:"candidates" validate:"dive,len=2"`
}

// ChatConfig tunes the question flow.
type ChatConfig struct {
	// StickersFile lists sticker file ids, one per line.
	StickersFile string `json:"stickers_file"`
}

// OpsConfig controls the operator HTTP endpoint (/healthz, /status,
// /debug/pprof/). It is applied live.
type OpsConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr" validate:"omitempty,hostname_port"`
	// Token is required when Addr is not a loopback address.
	Token string `json:"token"`
}

// StorageConfig controls the delivery audit log.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./data/audit.db" }
type StorageConfig struct {
	Driver      string `json:"driver" validate:"omitempty,oneof=none file sqlite sqlite3"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty" validate:"omitempty,duration"` // sqlite only
}
