// Package unify merges every stored file into one plain-text artifact and
// relays it to an external webhook.
//
// Each file is turned into a Section by the handler for its Format. A file
// that cannot be read produces an error annotation in its own section and
// never aborts the run; only a missing store, a failed write of the artifact
// or a failed relay fail the whole operation.
package unify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"secure-file-hub/internal/storage"
)

var (
	ErrNoStore      = errors.New("storage directory does not exist")
	ErrWrite        = errors.New("failed to write unified file")
	ErrRelay        = errors.New("failed to relay unified content")
	ErrHandlerPanic = errors.New("handler panic")
)

// Section is the outcome for one file: either Text or Err is meaningful.
type Section struct {
	Name   string
	Format Format
	Text   string
	Err    error
}

// Render returns the section with its "--- name ---" header.
func (s Section) Render() string {
	header := "\n--- " + s.Name + " ---\n"
	if s.Err != nil {
		return header + fmt.Sprintf("[Error reading %s: %v]", s.Format, s.Err)
	}
	return header + s.Text
}

// Artifact is the merged file written into the store.
type Artifact struct {
	Name     string
	Path     string
	Text     string
	Sections []Section
	// ArchiveKey is set when a copy was archived.
	ArchiveKey string
}

type Option func(*Aggregator)

// WithArchiver keeps a copy of every artifact. Archive failures are logged.
func WithArchiver(a Archiver) Option {
	return func(ag *Aggregator) {
		ag.archiver = a
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(ag *Aggregator) {
		ag.logger = l
	}
}

// WithHandler overrides the extractor for one format.
func WithHandler(f Format, h Handler) Option {
	return func(ag *Aggregator) {
		ag.handlers[f] = h
	}
}

type Aggregator struct {
	store    *storage.Store
	name     string
	relay    Relay
	archiver Archiver
	handlers map[Format]Handler
	logger   *slog.Logger
}

// New returns an Aggregator that writes its artifact as name inside store.
func New(store *storage.Store, name string, relay Relay, opts ...Option) *Aggregator {
	ag := &Aggregator{
		store:    store,
		name:     name,
		relay:    relay,
		handlers: DefaultHandlers(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(ag)
	}
	return ag
}

// ArtifactName is the reserved file name of the merged output.
func (ag *Aggregator) ArtifactName() string {
	return ag.name
}

// Unify builds the artifact from the current contents of the store, writes
// it, relays it and returns it.
func (ag *Aggregator) Unify(ctx context.Context) (*Artifact, error) {
	ok, err := ag.store.RootExists()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNoStore
	}

	files, err := ag.store.List(ctx)
	if err != nil {
		return nil, err
	}

	sections := make([]Section, 0, len(files))
	for _, f := range files {
		if f.Name == ag.name {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		sections = append(sections, ag.process(f.Name, f.Path))
	}

	rendered := make([]string, len(sections))
	for i, s := range sections {
		rendered[i] = s.Render()
	}

	info, err := ag.store.Replace(ctx, ag.name, []byte(strings.Join(rendered, "\n")))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrWrite, err)
	}

	// Relay what is on disk, not what was rendered.
	content, err := os.ReadFile(info.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: read back: %w", ErrWrite, err)
	}

	if err := ag.relay.Send(ctx, string(content)); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRelay, err)
	}

	art := &Artifact{
		Name:     ag.name,
		Path:     info.Path,
		Text:     string(content),
		Sections: sections,
	}

	if ag.archiver != nil {
		key, err := ag.archiver.Archive(ctx, ag.name, content)
		if err != nil {
			ag.logger.Warn("archive unified file failed", "file", ag.name, "error", err)
		} else {
			art.ArchiveKey = key
			ag.logger.Info("unified file archived", "file", ag.name, "key", key)
		}
	}

	return art, nil
}

// process extracts one file. It never fails; errors end up in the section.
func (ag *Aggregator) process(name, path string) (sec Section) {
	format := Classify(name)
	sec = Section{Name: name, Format: format}

	defer func() {
		if r := recover(); r != nil {
			sec.Text = ""
			sec.Err = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
			ag.logger.Error("handler panicked", "file", name, "format", format.String(), "panic", r)
		}
	}()

	h, ok := ag.handlers[format]
	if !ok {
		sec.Text = fmt.Sprintf("[Unsupported format: %s]", strings.ToLower(filepath.Ext(name)))
		return sec
	}

	text, err := h(path)
	if err != nil {
		ag.logger.Warn("could not read file", "file", name, "format", format.String(), "error", err)
		sec.Err = err
		return sec
	}
	sec.Text = text
	return sec
}
