package i18n

import (
	"embed"
	"fmt"
	"path"
	"strings"
	"sync"

	"go.yaml.in/yaml/v3"
)

// Message keys.
const (
	KeyDisallowed      = "disallowed"
	KeyGreeting        = "greeting"
	KeyWelcome         = "welcome"
	KeyHelp            = "help_text"
	KeyMismatch        = "mismatch"
	KeyProcessing      = "processing"
	KeyDetectError     = "detect_error"
	KeyGenericError    = "generic_error"
	KeyCaptionNotFound = "caption_not_found"
	KeyCourseMissing   = "course_missing"
	KeyNoAnswer        = "no_answer"
	KeyLanguageName    = "language_name"
	KeyStatus          = "status"
	KeyOwnerOnly       = "owner_only"

	KeyCmdStart  = "cmd_start"
	KeyCmdHelp   = "cmd_help"
	KeyCmdCourse = "cmd_course_content"
	KeyCmdStatus = "cmd_status"
)

//go:embed locales/*.yaml
var localeFS embed.FS

// Catalog maps language to key to text. Missing keys fall back to RU, then to
// the key itself.
type Catalog struct {
	msgs map[Lang]map[string]string
}

var (
	defaultOnce sync.Once
	defaultCat  *Catalog
	defaultErr  error
)

// Default returns the catalog built from the embedded locale files.
func Default() *Catalog {
	defaultOnce.Do(func() {
		defaultCat, defaultErr = Load(localeFS, "locales")
	})
	if defaultErr != nil {
		panic(defaultErr)
	}
	return defaultCat
}

// Load reads <dir>/<lang>.yaml for every supported language.
func Load(fsys embed.FS, dir string) (*Catalog, error) {
	c := &Catalog{msgs: make(map[Lang]map[string]string, len(Supported))}
	for _, l := range Supported {
		b, err := fsys.ReadFile(path.Join(dir, string(l)+".yaml"))
		if err != nil {
			return nil, fmt.Errorf("read locale %s: %w", l, err)
		}
		m := map[string]string{}
		if err := yaml.Unmarshal(b, &m); err != nil {
			return nil, fmt.Errorf("parse locale %s: %w", l, err)
		}
		for k, v := range m {
			m[k] = strings.TrimRight(v, "\n")
		}
		c.msgs[l] = m
	}
	return c, nil
}

// T returns the text for key in l.
func (c *Catalog) T(l Lang, key string) string {
	if v, ok := c.msgs[l][key]; ok {
		return v
	}
	if v, ok := c.msgs[RU][key]; ok {
		return v
	}
	return key
}

// Tf formats the text for key with args.
func (c *Catalog) Tf(l Lang, key string, args ...any) string {
	return fmt.Sprintf(c.T(l, key), args...)
}

// Keys returns the keys defined for l.
func (c *Catalog) Keys(l Lang) []string {
	out := make([]string, 0, len(c.msgs[l]))
	for k := range c.msgs[l] {
		out = append(out, k)
	}
	return out
}
