package fm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/mazongYY/FileMover/internal/filter"
)

// State is a stage of a classification run.
type State int

const (
	Idle State = iota
	Extracting
	Classifying
	Finalizing
	Done
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Extracting:
		return "extracting"
	case Classifying:
		return "classifying"
	case Finalizing:
		return "finalizing"
	case Done:
		return "done"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// EntryMatcher selects archive entries by their slash-separated name.
type EntryMatcher interface {
	Match(entryName string) bool
}

// Workspace names the directories a pipeline owns.
type Workspace struct {
	// MatchedDir and UnmatchedDir are cleared at the start of every run.
	MatchedDir   string
	UnmatchedDir string
	// ScratchDir holds one transient extraction directory per run.
	ScratchDir string
	// Ignore, when set, drops archive metadata entries before filtering.
	// Ignored entries count as excluded.
	Ignore EntryMatcher
}

// ClassifyRequest describes one classification run.
type ClassifyRequest struct {
	ArchivePath string
	Keywords    []string
	Filter      filter.Config
	Mode        OperationMode
	// Password is tried first for protected archives. When it is empty or
	// wrong the pipeline falls back to its PasswordSource.
	Password string
	// Progress, when set, is called after each file with the number of files
	// processed so far and the number of files extracted.
	Progress func(done, total int)
	// OnState, when set, is called on every state transition.
	OnState func(State)
}

// ClassifyResult lists the files that reached each bucket, in archive order.
type ClassifyResult struct {
	Matched      []string
	Unmatched    []string
	MatchedDir   string
	UnmatchedDir string
	// Total counts every extracted file. Excluded files failed a filter;
	// Skipped files were included but could not be placed.
	Total    int
	Excluded int
	Skipped  int
}

// PreviewResult holds the counts a classification would produce.
type PreviewResult struct {
	Matched   int
	Unmatched int
	Excluded  int
	Total     int
}

// Outcome is delivered by ClassifyAsync.
type Outcome struct {
	Result *ClassifyResult
	Err    error
}

// Pipeline extracts an archive, filters its files and routes them into the
// matched and unmatched directories. Runs are serialised: one run owns the
// scratch and destination directories at a time.
type Pipeline struct {
	reader    ArchiveReader
	fsmgr     FilesystemManager
	executor  *Executor
	recorder  Recorder
	passwords PasswordSource
	logger    Logger
	clock     Clock
	idgen     IDGenerator
	workspace Workspace
	mu        sync.Mutex
}

// NewPipeline creates a Pipeline. recorder and passwords may be nil: without
// a recorder nothing is journaled, without a password source protected
// archives need ClassifyRequest.Password.
func NewPipeline(reader ArchiveReader, fsmgr FilesystemManager, recorder Recorder, passwords PasswordSource, ws Workspace, logger Logger, clock Clock, idgen IDGenerator) *Pipeline {
	return &Pipeline{
		reader:    reader,
		fsmgr:     fsmgr,
		executor:  NewExecutor(fsmgr, logger),
		recorder:  recorder,
		passwords: passwords,
		logger:    logger,
		clock:     clock,
		idgen:     idgen,
		workspace: ws,
	}
}

// Classify runs the full pipeline. On any pipeline-level failure the scratch
// directory is removed and the error wraps one of ErrInvalidInput,
// ErrUnsupportedFormat, ErrPasswordRequired, ErrExtraction or ErrCancelled.
func (p *Pipeline) Classify(ctx context.Context, req ClassifyRequest) (*ClassifyResult, error) {
	keywords, err := p.validate(req)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	run := &run{p: p, req: req}
	result, err := run.classify(ctx, keywords)
	if err != nil {
		run.transition(Failed)
		p.logger.Error("classification failed", "archive", req.ArchivePath, "error", err)
		return nil, err
	}
	run.transition(Done)
	p.logger.Info("classification finished",
		"archive", req.ArchivePath,
		"matched", len(result.Matched),
		"unmatched", len(result.Unmatched),
		"excluded", result.Excluded,
		"skipped", result.Skipped,
	)
	return result, nil
}

// ClassifyAsync runs Classify on its own goroutine. The channel receives
// exactly one Outcome and is then closed.
func (p *Pipeline) ClassifyAsync(ctx context.Context, req ClassifyRequest) <-chan Outcome {
	out := make(chan Outcome, 1)
	go func() {
		defer close(out)
		result, err := p.Classify(ctx, req)
		out <- Outcome{Result: result, Err: err}
	}()
	return out
}

// Preview extracts and filters exactly like Classify but only counts.
// Destination directories are not touched.
func (p *Pipeline) Preview(ctx context.Context, req ClassifyRequest) (*PreviewResult, error) {
	keywords, err := p.validate(req)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	run := &run{p: p, req: req}
	result, err := run.preview(ctx, keywords)
	if err != nil {
		run.transition(Failed)
		return nil, err
	}
	run.transition(Done)
	return result, nil
}

// validate rejects a request before any I/O beyond a stat of the archive.
func (p *Pipeline) validate(req ClassifyRequest) (*filter.KeywordMatcher, error) {
	if req.ArchivePath == "" {
		return nil, fmt.Errorf("%w: archive path is empty", ErrInvalidInput)
	}
	info, err := p.fsmgr.Stat(req.ArchivePath)
	if err != nil {
		return nil, fmt.Errorf("%w: archive %s: %w", ErrInvalidInput, req.ArchivePath, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: archive %s is a directory", ErrInvalidInput, req.ArchivePath)
	}

	keywords := filter.NewKeywordMatcher(req.Keywords, req.Filter.UseRegex)
	if keywords.Empty() {
		return nil, fmt.Errorf("%w: no keywords given", ErrInvalidInput)
	}
	if _, err := req.Mode.MarshalText(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	if !p.reader.Supports(req.ArchivePath) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(req.ArchivePath))
	}
	return keywords, nil
}

// run carries the state of one classification call.
type run struct {
	p       *Pipeline
	req     ClassifyRequest
	state   State
	scratch string
}

func (r *run) transition(s State) {
	r.state = s
	r.p.logger.Debug("pipeline state", "state", s.String(), "archive", r.req.ArchivePath)
	if r.req.OnState != nil {
		r.req.OnState(s)
	}
}

// extract resolves the password and extracts into a fresh scratch directory.
// The caller must call cleanup even when extract fails.
func (r *run) extract(ctx context.Context) ([]ArchiveEntry, error) {
	r.transition(Extracting)

	password, err := r.resolvePassword()
	if err != nil {
		return nil, err
	}

	now := r.p.clock.Now()
	r.scratch = filepath.Join(r.p.workspace.ScratchDir, fmt.Sprintf("extract_%s_%s", now.Format("20060102_150405"), r.p.idgen.New()))

	entries, err := r.p.reader.Extract(ctx, r.req.ArchivePath, r.scratch, password)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%w: %w", ErrCancelled, ctxErr)
		}
		return nil, NewExtractionError(r.req.ArchivePath, err)
	}

	files := Files(entries)
	r.p.logger.Info("archive extracted", "archive", r.req.ArchivePath, "files", len(files), "scratch", r.scratch)
	return files, nil
}

func (r *run) resolvePassword() (string, error) {
	archive := r.req.ArchivePath
	if !r.p.reader.IsPasswordProtected(archive) {
		return "", nil
	}
	if r.req.Password != "" && r.p.reader.VerifyPassword(archive, r.req.Password) {
		return r.req.Password, nil
	}
	if r.p.passwords != nil {
		if pw, ok := r.p.passwords.GetPassword(archive); ok {
			return pw, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrPasswordRequired, archive)
}

// cleanup removes the scratch directory. Failures are logged only.
func (r *run) cleanup() {
	if r.scratch == "" {
		return
	}
	if err := r.p.fsmgr.RemoveAll(r.scratch); err != nil {
		r.p.logger.Warn("removing scratch directory", "path", r.scratch, "error", err)
		return
	}
	r.p.logger.Debug("scratch directory removed", "path", r.scratch)
}

func (r *run) classify(ctx context.Context, keywords *filter.KeywordMatcher) (*ClassifyResult, error) {
	defer r.cleanup()

	files, err := r.extract(ctx)
	if err != nil {
		return nil, err
	}

	r.transition(Classifying)
	ws := r.p.workspace
	for _, dir := range []string{ws.MatchedDir, ws.UnmatchedDir} {
		if err := r.resetDir(dir); err != nil {
			return nil, err
		}
	}
	for _, kw := range keywords.Degraded() {
		r.p.logger.Warn("invalid regular expression, matching literally", "keyword", kw)
	}

	result := &ClassifyResult{
		Matched:      []string{},
		Unmatched:    []string{},
		MatchedDir:   ws.MatchedDir,
		UnmatchedDir: ws.UnmatchedDir,
		Total:        len(files),
	}

	for i, entry := range files {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCancelled, err)
		}

		src := filepath.Join(r.scratch, filepath.FromSlash(entry.Name))
		name := filepath.Base(src)

		decision := r.decide(entry, src, keywords)
		switch decision {
		case filter.Excluded:
			result.Excluded++
			r.p.logger.Debug("file excluded by filters", "name", entry.Name)
		case filter.Matched, filter.Unmatched:
			dir := ws.UnmatchedDir
			if decision == filter.Matched {
				dir = ws.MatchedDir
			}
			target := UniqueDestination(r.p.fsmgr, filepath.Join(dir, name))
			if !r.p.executor.Perform(src, target, r.req.Mode, r.p.recorder) {
				result.Skipped++
				break
			}
			if decision == filter.Matched {
				result.Matched = append(result.Matched, name)
			} else {
				result.Unmatched = append(result.Unmatched, name)
			}
		}

		if r.req.Progress != nil {
			r.req.Progress(i+1, len(files))
		}
	}

	r.transition(Finalizing)
	return result, nil
}

func (r *run) preview(ctx context.Context, keywords *filter.KeywordMatcher) (*PreviewResult, error) {
	defer r.cleanup()

	files, err := r.extract(ctx)
	if err != nil {
		return nil, err
	}

	r.transition(Classifying)
	result := &PreviewResult{Total: len(files)}
	for i, entry := range files {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCancelled, err)
		}
		src := filepath.Join(r.scratch, filepath.FromSlash(entry.Name))
		switch r.decide(entry, src, keywords) {
		case filter.Matched:
			result.Matched++
		case filter.Unmatched:
			result.Unmatched++
		default:
			result.Excluded++
		}
		if r.req.Progress != nil {
			r.req.Progress(i+1, len(files))
		}
	}

	r.transition(Finalizing)
	return result, nil
}

// decide classifies one extracted file. Ignored entries are excluded.
func (r *run) decide(entry ArchiveEntry, src string, keywords *filter.KeywordMatcher) filter.Decision {
	if ignore := r.p.workspace.Ignore; ignore != nil && ignore.Match(entry.Name) {
		r.p.logger.Debug("entry ignored", "name", entry.Name)
		return filter.Excluded
	}
	return filter.Classify(filepath.Base(src), src, keywords, r.req.Filter)
}

// resetDir recreates dir empty.
func (r *run) resetDir(dir string) error {
	if err := r.p.fsmgr.RemoveAll(dir); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("clearing %s: %w", dir, err)
	}
	if err := r.p.fsmgr.MkdirAll(dir); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	return nil
}
