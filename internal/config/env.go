package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// envOverrides lists the environment variables that win over file values.
// Names match the deployment environment of the bot.
type envOverrides struct {
	TelegramToken  string   `env:"TELEGRAM_BOT_TOKEN"`
	OpenAIKey      string   `env:"OPENAI_API_KEY"`
	OpenAIModel    string   `env:"OPENAI_MODEL"`
	OpenAIBaseURL  string   `env:"OPENAI_BASE_URL"`
	Temperature    *float64 `env:"TEMPERATURE"`
	CorpusFolder   string   `env:"EMBEDDINGS_FOLDER_ID"`
	ServiceAccount string   `env:"SERVICE_ACCOUNT_FILE"`
	CourseDocRU    string   `env:"CONTENT_FOLDER_ID_RU"`
	CourseDocUZ    string   `env:"CONTENT_FOLDER_ID_UZ"`
	UsersDoc       string   `env:"FILE_ID_USERS"`
	Language       string   `env:"BOT_LANGUAGE"`
	StickersFile   string   `env:"STICKERS_IDS"`
	ImagesRU       string   `env:"CHECKLISTS_FOLDER_JPG_RUS"`
	ImagesUZ       string   `env:"CHECKLISTS_FOLDER_JPG_UZ"`
	DocumentsRU    string   `env:"CHECKLISTS_FOLDER_PDF_RUS"`
	DocumentsUZ    string   `env:"CHECKLISTS_FOLDER_PDF_UZ"`
	CaptionsRU     string   `env:"CHECKLISTS_FILE_ID_TEXT_RUS"`
	CaptionsUZ     string   `env:"CHECKLISTS_FILE_ID_TEXT_UZ"`
}

// ApplyEnv overlays non-empty environment values onto cfg.
func ApplyEnv(cfg *Config) error {
	return applyEnv(cfg, env.Options{})
}

func applyEnv(cfg *Config, opts env.Options) error {
	var o envOverrides
	if err := env.ParseWithOptions(&o, opts); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}

	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&cfg.Telegram.Token, o.TelegramToken)
	set(&cfg.Answer.APIKey, o.OpenAIKey)
	set(&cfg.Answer.Model, o.OpenAIModel)
	set(&cfg.Answer.BaseURL, o.OpenAIBaseURL)
	if o.Temperature != nil {
		t := *o.Temperature
		cfg.Answer.Temperature = &t
	}
	set(&cfg.Answer.CorpusFolder, o.CorpusFolder)
	set(&cfg.Remote.CredentialsFile, o.ServiceAccount)
	set(&cfg.Content.RU.CourseDoc, o.CourseDocRU)
	set(&cfg.Content.UZ.CourseDoc, o.CourseDocUZ)
	set(&cfg.Access.DocID, o.UsersDoc)
	set(&cfg.Content.DefaultLanguage, o.Language)
	set(&cfg.Chat.StickersFile, o.StickersFile)
	set(&cfg.Content.RU.ImageFolder, o.ImagesRU)
	set(&cfg.Content.UZ.ImageFolder, o.ImagesUZ)
	set(&cfg.Content.RU.DocumentFolder, o.DocumentsRU)
	set(&cfg.Content.UZ.DocumentFolder, o.DocumentsUZ)
	set(&cfg.Content.RU.CaptionDoc, o.CaptionsRU)
	set(&cfg.Content.UZ.CaptionDoc, o.CaptionsUZ)
	return nil
}
