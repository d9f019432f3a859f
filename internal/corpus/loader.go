package corpus

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/phuslu/log"

	"iacrag/internal/domain"
	"iacrag/internal/logging"
)

const (
	FileTypeTerraform = "terraform"
	FileTypeText      = "text"

	// DefaultMaxFileBytes skips files larger than this.
	DefaultMaxFileBytes = 2 << 20
)

// DefaultInclude lists the patterns loaded when none are configured.
var DefaultInclude = []string{"**/*.tf", "**/*.tfvars", "**/*.hcl", "**/*.md", "**/*.txt"}

// DefaultExclude lists the patterns skipped when none are configured.
var DefaultExclude = []string{"**/.terraform/**", "**/.git/**"}

// Options selects which files under the corpus root become documents.
// Patterns are doublestar globs matched against slash-separated paths
// relative to the root.
type Options struct {
	Include      []string
	Exclude      []string
	MaxFileBytes int64
	Logger       *log.Logger
}

func (o Options) withDefaults() Options {
	if len(o.Include) == 0 {
		o.Include = DefaultInclude
	}
	if o.Exclude == nil {
		o.Exclude = DefaultExclude
	}
	if o.MaxFileBytes <= 0 {
		o.MaxFileBytes = DefaultMaxFileBytes
	}
	o.Logger = logging.OrNop(o.Logger)
	return o
}

// Load walks dir and returns one document per matching UTF-8 file, sorted by
// source. Unreadable, oversized and non-UTF-8 files are skipped with a warning.
func Load(dir string, opts Options) ([]domain.Document, error) {
	opts = opts.withDefaults()
	for _, p := range append(append([]string{}, opts.Include...), opts.Exclude...) {
		if !doublestar.ValidatePattern(p) {
			return nil, domain.NewConfigurationError("corpus.include", "invalid pattern %q", p)
		}
	}

	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("corpus directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("corpus directory: %s is not a directory", dir)
	}

	var docs []domain.Document
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			opts.Logger.Warn().Str("path", path).Err(walkErr).Msg("Skipping unreadable path")
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if rel == "." {
			return nil
		}

		if d.IsDir() {
			if matchAny(opts.Exclude, rel) || matchAny(opts.Exclude, rel+"/") {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || matchAny(opts.Exclude, rel) || !matchAny(opts.Include, rel) {
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			opts.Logger.Warn().Str("path", rel).Err(err).Msg("Skipping file")
			return nil
		}
		if fi.Size() > opts.MaxFileBytes {
			opts.Logger.Warn().Str("path", rel).Int64("bytes", fi.Size()).Msg("Skipping oversized file")
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			opts.Logger.Warn().Str("path", rel).Err(err).Msg("Skipping unreadable file")
			return nil
		}
		if !utf8.Valid(data) {
			opts.Logger.Warn().Str("path", rel).Msg("Skipping non UTF-8 file")
			return nil
		}

		docs = append(docs, domain.NewDocument(rel, string(data), map[string]string{
			domain.MetaPath:     path,
			domain.MetaFileType: FileType(rel),
		}))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk corpus: %w", err)
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].Source < docs[j].Source })
	opts.Logger.Debug().Str("dir", dir).Int("documents", len(docs)).Msg("Corpus loaded")
	return docs, nil
}

// FileType classifies a path as terraform or text.
func FileType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".tf", ".tfvars", ".hcl":
		return FileTypeTerraform
	}
	return FileTypeText
}

func matchAny(patterns []string, rel string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}
