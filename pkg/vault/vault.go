// Package vault writes rendered meeting notes and their audio into a
// Markdown knowledge base, honouring a duplicate strategy.
package vault

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/adrg/frontmatter"

	kerrors "github.com/otherjamesbrown/krisp-import/pkg/errors"
	"github.com/otherjamesbrown/krisp-import/pkg/logging"
)

// Default folder layout inside the vault root.
const (
	DefaultNotesFolder       = "Meetings"
	DefaultAttachmentsFolder = "Meetings/attachments"
)

// DuplicateStrategy decides what happens when a note for the same Krisp
// recording already exists.
type DuplicateStrategy string

const (
	DuplicateSkip      DuplicateStrategy = "skip"
	DuplicateOverwrite DuplicateStrategy = "overwrite"
	DuplicateSuffix    DuplicateStrategy = "suffix"
)

// ParseDuplicateStrategy validates a strategy name. Empty means skip.
func ParseDuplicateStrategy(s string) (DuplicateStrategy, error) {
	switch DuplicateStrategy(strings.ToLower(strings.TrimSpace(s))) {
	case "", DuplicateSkip:
		return DuplicateSkip, nil
	case DuplicateOverwrite:
		return DuplicateOverwrite, nil
	case DuplicateSuffix:
		return DuplicateSuffix, nil
	}
	return "", fmt.Errorf("duplicate strategy %q (want skip, overwrite or suffix): %w", s, kerrors.ErrValidation)
}

// Action is what Resolve decided to do with a note.
type Action string

const (
	ActionCreate    Action = "create"
	ActionOverwrite Action = "overwrite"
	ActionSuffix    Action = "suffix"
	ActionSkip      Action = "skip"
)

// Config locates the vault.
type Config struct {
	Root              string
	NotesFolder       string
	AttachmentsFolder string
	Duplicates        DuplicateStrategy
}

// Placement is where a note goes.
type Placement struct {
	Action   Action
	Source   string
	NotePath string

	// Existing is the path of the note already imported from Source, if any.
	Existing string
}

// noteMeta is the part of a note's frontmatter duplicate detection reads.
type noteMeta struct {
	KrispSource string `yaml:"krisp_source"`
}

// Vault is a notes folder plus an attachments folder under one root.
type Vault struct {
	cfg    Config
	logger logging.Logger

	mu       sync.Mutex
	indexed  bool
	sources  map[string]string // krisp_source -> note path
	reserved map[string]string // note path -> krisp_source, handed out by Resolve
}

// New validates cfg and returns a vault. Folders are created on first write.
func New(cfg Config, logger logging.Logger) (*Vault, error) {
	if strings.TrimSpace(cfg.Root) == "" {
		return nil, fmt.Errorf("vault root is required: %w", kerrors.ErrValidation)
	}
	if cfg.NotesFolder == "" {
		cfg.NotesFolder = DefaultNotesFolder
	}
	if cfg.AttachmentsFolder == "" {
		cfg.AttachmentsFolder = DefaultAttachmentsFolder
	}
	for _, rel := range []string{cfg.NotesFolder, cfg.AttachmentsFolder} {
		if filepath.IsAbs(rel) || strings.HasPrefix(filepath.Clean(rel), "..") {
			return nil, fmt.Errorf("folder %q must be inside the vault: %w", rel, kerrors.ErrValidation)
		}
	}
	strategy, err := ParseDuplicateStrategy(string(cfg.Duplicates))
	if err != nil {
		return nil, err
	}
	cfg.Duplicates = strategy
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Vault{
		cfg:      cfg,
		logger:   logger,
		sources:  make(map[string]string),
		reserved: make(map[string]string),
	}, nil
}

// NotesDir is the absolute notes folder.
func (v *Vault) NotesDir() string {
	return filepath.Join(v.cfg.Root, v.cfg.NotesFolder)
}

// AttachmentsDir is the absolute attachments folder.
func (v *Vault) AttachmentsDir() string {
	return filepath.Join(v.cfg.Root, v.cfg.AttachmentsFolder)
}

// Strategy returns the configured duplicate strategy.
func (v *Vault) Strategy() DuplicateStrategy {
	return v.cfg.Duplicates
}

// FindBySource returns the note previously imported from source.
func (v *Vault) FindBySource(ctx context.Context, source string) (string, bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.ensureIndex(ctx); err != nil {
		return "", false, err
	}
	path, ok := v.sources[source]
	return path, ok, nil
}

// Resolve decides where the note for source should be written. fileName
// is the preferred note file name, see NoteFileName.
//
// A created or suffixed path is reserved until the vault is discarded, and
// a new source is claimed immediately, so concurrent callers never receive
// the same path. Call Release if the placement is abandoned before
// WriteNote succeeds.
func (v *Vault) Resolve(ctx context.Context, source, fileName string) (*Placement, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.ensureIndex(ctx); err != nil {
		return nil, err
	}

	p := &Placement{Source: source}
	preferred := filepath.Join(v.NotesDir(), fileName)

	existing, dup := v.sources[source]
	if dup {
		p.Existing = existing
		switch v.cfg.Duplicates {
		case DuplicateSkip:
			p.Action = ActionSkip
			p.NotePath = existing
			return p, nil
		case DuplicateOverwrite:
			p.Action = ActionOverwrite
			p.NotePath = existing
			return p, nil
		default:
			p.Action = ActionSuffix
			p.NotePath = uniquePath(preferred, v.reserved)
			v.reserved[p.NotePath] = source
			return p, nil
		}
	}

	// Never clobber a note that came from somewhere else.
	p.Action = ActionCreate
	p.NotePath = uniquePath(preferred, v.reserved)
	v.reserved[p.NotePath] = source
	v.sources[source] = p.NotePath
	return p, nil
}

// Release gives back the path and source claim of a placement that was
// never written.
func (v *Vault) Release(p *Placement) {
	if p == nil {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	switch p.Action {
	case ActionCreate:
		if v.sources[p.Source] == p.NotePath {
			delete(v.sources, p.Source)
		}
		fallthrough
	case ActionSuffix:
		if v.reserved[p.NotePath] == p.Source {
			delete(v.reserved, p.NotePath)
		}
	}
}

// WriteNote writes content at p.NotePath. Skip placements write nothing.
func (v *Vault) WriteNote(ctx context.Context, p *Placement, content string) error {
	if p == nil || p.Action == ActionSkip {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p.NotePath), 0o755); err != nil {
		v.Release(p)
		return fmt.Errorf("create notes folder: %w", err)
	}
	if err := writeFileAtomic(p.NotePath, []byte(content)); err != nil {
		v.Release(p)
		return fmt.Errorf("write note: %w", err)
	}

	v.mu.Lock()
	// Overwrite makes this path the canonical note; create claimed it in
	// Resolve and a suffixed copy leaves the first import as the match.
	if _, ok := v.sources[p.Source]; !ok || p.Action == ActionOverwrite {
		v.sources[p.Source] = p.NotePath
	}
	v.mu.Unlock()

	v.logger.Debug("Note written",
		logging.F("path", p.NotePath),
		logging.F("action", string(p.Action)))
	return nil
}

// CopyAttachment copies the file at src into the attachments folder and
// returns the name it was stored under. A file of the same name and size
// is assumed to be the same recording and reused.
func (v *Vault) CopyAttachment(ctx context.Context, src string) (string, error) {
	if src == "" {
		return "", nil
	}
	info, err := os.Stat(src)
	if err != nil {
		return "", fmt.Errorf("stat attachment: %w", err)
	}
	if err := os.MkdirAll(v.AttachmentsDir(), 0o755); err != nil {
		return "", fmt.Errorf("create attachments folder: %w", err)
	}

	name := SanitizeFileName(filepath.Base(src))
	dest := filepath.Join(v.AttachmentsDir(), name)
	if existing, err := os.Stat(dest); err == nil {
		if existing.Size() == info.Size() {
			return name, nil
		}
		dest = uniquePath(dest, nil)
		name = filepath.Base(dest)
	}

	if err := copyFile(ctx, src, dest); err != nil {
		return "", fmt.Errorf("copy attachment: %w", err)
	}
	return name, nil
}

// ensureIndex reads krisp_source from every note under the notes folder
// once. Notes that fail to parse are skipped with a warning.
func (v *Vault) ensureIndex(ctx context.Context) error {
	if v.indexed {
		return nil
	}
	root := v.NotesDir()
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root && os.IsNotExist(err) {
				return filepath.SkipDir
			}
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".md") {
			return nil
		}
		source, err := readSource(path)
		if err != nil {
			v.logger.Warn("Skipping unreadable note", logging.F("path", path), logging.Err(err))
			return nil
		}
		if source != "" {
			if _, seen := v.sources[source]; !seen {
				v.sources[source] = path
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("index vault notes: %w", err)
	}
	v.indexed = true
	return nil
}

func readSource(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var meta noteMeta
	if _, err := frontmatter.Parse(f, &meta); err != nil {
		return "", err
	}
	return strings.TrimSpace(meta.KrispSource), nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".krisp-*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func copyFile(ctx context.Context, src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".krisp-*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, &ctxReader{ctx: ctx, r: in}); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dest)
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
