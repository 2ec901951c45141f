// Package answer answers course questions from a retrieved corpus.
package answer

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"sync"
	"text/template"
	"time"

	"neurotutor/internal/remote"
	logx "neurotutor/pkg/logx"
)

// Engine answers a free-text question.
type Engine interface {
	Answer(ctx context.Context, question string) (string, error)
}

// Completer runs a single prompt through a chat model.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// CorpusReader lists and reads the corpus folder.
type CorpusReader interface {
	ListFiles(ctx context.Context, folderID string) ([]remote.File, error)
	Download(ctx context.Context, fileID string) ([]byte, error)
	ExportText(ctx context.Context, fileID string) (string, error)
}

var ErrEmptyCorpus = errors.New("answer: corpus is empty")

//go:embed prompt.tmpl
var promptText string

var promptTmpl = template.Must(template.New("prompt").Parse(promptText))

type Options struct {
	Corpus    CorpusReader
	Folder    string
	Embedder  Embedder
	Completer Completer
	TopK      int
	ChunkSize int
	// Refresh rebuilds the index when it is older than this. 0 builds once.
	Refresh time.Duration
	// Fallback is the reply the model is told to give when the corpus has nothing.
	Fallback string
	Log      logx.Logger
}

// Service is a retrieval augmented Engine. The index is built on first use.
type Service struct {
	opts Options
	log  logx.Logger
	now  func() time.Time

	mu      sync.Mutex
	idx     *Index
	builtAt time.Time
}

var _ Engine = (*Service)(nil)

func New(opts Options) (*Service, error) {
	if opts.Corpus == nil || opts.Embedder == nil || opts.Completer == nil {
		return nil, errors.New("answer: corpus, embedder and completer are required")
	}
	if opts.TopK <= 0 {
		opts.TopK = 4
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = 250
	}
	log := opts.Log
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{opts: opts, log: log.With(logx.String("comp", "answer")), now: time.Now}, nil
}

// Warm builds the index ahead of the first question.
func (s *Service) Warm(ctx context.Context) error {
	_, err := s.index(ctx)
	return err
}

func (s *Service) Answer(ctx context.Context, question string) (string, error) {
	idx, err := s.index(ctx)
	if err != nil {
		return "", err
	}
	chunks, err := idx.Search(ctx, s.opts.Embedder, question, s.opts.TopK)
	if err != nil {
		return "", err
	}
	prompt, err := renderPrompt(question, chunks, s.opts.Fallback)
	if err != nil {
		return "", err
	}
	out, err := s.opts.Completer.Complete(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("complete: %w", err)
	}
	return strings.TrimSpace(out), nil
}

func (s *Service) index(ctx context.Context) (*Index, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stale := s.idx == nil || (s.opts.Refresh > 0 && s.now().Sub(s.builtAt) >= s.opts.Refresh)
	if !stale {
		return s.idx, nil
	}
	start := s.now()
	idx, err := s.build(ctx)
	if err != nil {
		if s.idx != nil {
			s.log.Warn("corpus refresh failed; keeping previous index", logx.Err(err))
			s.builtAt = s.now()
			return s.idx, nil
		}
		return nil, err
	}
	s.idx, s.builtAt = idx, s.now()
	s.log.Info("corpus indexed", logx.Int("chunks", idx.Len()), logx.Duration("took", s.now().Sub(start)))
	return idx, nil
}

func (s *Service) build(ctx context.Context) (*Index, error) {
	files, err := s.opts.Corpus.ListFiles(ctx, s.opts.Folder)
	if err != nil {
		return nil, fmt.Errorf("list corpus: %w", err)
	}
	var chunks []Chunk
	for _, f := range files {
		text, err := s.readText(ctx, f)
		if err != nil {
			s.log.Warn("corpus file skipped", logx.String("file", f.Name), logx.Err(err))
			continue
		}
		chunks = append(chunks, Split(f.Name, text, s.opts.ChunkSize)...)
	}
	if len(chunks) == 0 {
		return nil, ErrEmptyCorpus
	}
	return BuildIndex(ctx, s.opts.Embedder, chunks)
}

// readText exports native documents and downloads everything else.
func (s *Service) readText(ctx context.Context, f remote.File) (string, error) {
	if strings.HasPrefix(f.MimeType, "application/vnd.google-apps.") {
		return s.opts.Corpus.ExportText(ctx, f.ID)
	}
	b, err := s.opts.Corpus.Download(ctx, f.ID)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func renderPrompt(question string, chunks []Chunk, fallback string) (string, error) {
	var buf bytes.Buffer
	err := promptTmpl.Execute(&buf, struct {
		Question string
		Chunks   []Chunk
		Fallback string
	}{question, chunks, fallback})
	if err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	return buf.String(), nil
}
