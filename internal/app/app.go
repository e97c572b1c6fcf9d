package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/mazongYY/FileMover/internal/archive"
	"github.com/mazongYY/FileMover/internal/backup"
	"github.com/mazongYY/FileMover/internal/config"
	"github.com/mazongYY/FileMover/internal/encryption"
	"github.com/mazongYY/FileMover/internal/filter"
	"github.com/mazongYY/FileMover/internal/fm"
	"github.com/mazongYY/FileMover/internal/fs"
	"github.com/mazongYY/FileMover/internal/journal"
	"github.com/mazongYY/FileMover/internal/ledger"
	"github.com/mazongYY/FileMover/internal/password"
)

// DateLayout is the format of the --after and --before flags.
const DateLayout = "2006-01-02"

// Options adjusts how NewFMApp talks to the user. The zero value prompts on
// the terminal and logs warnings to stderr.
type Options struct {
	Verbose bool
	// Prompter answers archive password prompts. Defaults to the terminal.
	Prompter password.Prompter
	// Passphrase unlocks the backup key when backups are encrypted.
	// Defaults to FM_PASSPHRASE, then a terminal prompt.
	Passphrase backup.PassphraseFunc
	Stderr     io.Writer
}

// FilterOptions are the filter settings as the user typed them.
type FilterOptions struct {
	UseRegex bool
	Types    []string
	Presets  []string
	MinSize  string // human-readable, e.g. "500KB"
	MaxSize  string
	After    string // DateLayout
	Before   string
}

// ClassifyOptions describe one classify or preview run.
type ClassifyOptions struct {
	Archive  string
	Keywords []string
	Filter   FilterOptions
	Mode     string
	Password string
	Progress func(done, total int)
}

// FMApp is the application layer between the CLI and FMService.
// It constructs all dependencies from config, translates raw flag values
// into domain requests, and closes the journal and log file on Close.
type FMApp struct {
	cfg       *config.Config
	journal   fm.Journal
	passwords *password.Manager
	service   *fm.FMService
	run       *Run
	logger    fm.Logger
	logFile   *os.File
}

// NewFMApp creates a fully wired FMApp from the given config.
// command identifies the CLI command being run (e.g. "classify", "undo").
// The caller must call Close when done.
func NewFMApp(cfg *config.Config, command string, args []string, opts Options) (*FMApp, error) {
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.Prompter == nil {
		opts.Prompter = password.NewTerminalPrompter()
	}
	if opts.Passphrase == nil {
		opts.Passphrase = defaultPassphrase
	}

	run := NewRun(command, args, time.Now())
	slogger, logFile, err := newLogger(cfg.LogDir, run.ID, opts.Stderr, opts.Verbose)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: slogger}

	a, err := wire(cfg, opts, logger)
	if err != nil {
		logFile.Close()
		return nil, err
	}
	a.run = run
	a.logFile = logFile
	logger.Debug("run started", "command", command, "args", run.Args)
	return a, nil
}

func wire(cfg *config.Config, opts Options, logger fm.Logger) (*FMApp, error) {
	fsmgr := fs.NewOSFilesystemManager()
	reader := archive.NewReader(logger)
	passwords := password.NewManager(reader, opts.Prompter, logger)

	var enc fm.Encryptor
	if cfg.Backup.Encrypt {
		var err error
		enc, err = encryption.NewEncryptorFromConfig(cfg.Encryption)
		if err != nil {
			return nil, fmt.Errorf("creating encryptor: %w", err)
		}
		if !enc.IsConfigured() {
			return nil, fmt.Errorf("backup encryption is enabled but no key pair exists: run 'fm config init --encrypt'")
		}
	}

	store, err := backup.NewStoreFromConfig(context.Background(), cfg.Backup, enc, opts.Passphrase)
	if err != nil {
		return nil, fmt.Errorf("creating backup store: %w", err)
	}
	if err := store.ValidateSetup(); err != nil {
		return nil, fmt.Errorf("backup store not ready: %w", err)
	}

	j, err := journal.NewJournalFromConfig(cfg.Journal, logger)
	if err != nil {
		return nil, fmt.Errorf("creating journal: %w", err)
	}

	clock := fm.RealClock{}
	l, err := ledger.New(ledger.Options{
		Capacity:   cfg.Ledger.Capacity,
		Journal:    j,
		Backups:    store,
		Filesystem: fsmgr,
		Logger:     logger,
		Clock:      clock,
		IDs:        fm.OperationIDGenerator{Clock: clock},
	})
	if err != nil {
		j.Close()
		return nil, fmt.Errorf("loading undo ledger: %w", err)
	}

	ignore, err := ignorePatterns(cfg)
	if err != nil {
		j.Close()
		return nil, err
	}
	ws := fm.Workspace{
		MatchedDir:   cfg.Workspace.MatchedDir,
		UnmatchedDir: cfg.Workspace.UnmatchedDir,
		ScratchDir:   cfg.Workspace.ScratchDir,
		Ignore:       fs.NewIgnoreMatcher(ignore),
	}

	svc := fm.NewFMService(reader, fsmgr, l, passwords, cfg.Workspace.OutputDir, ws, logger, clock, fm.UUIDGenerator{})
	return &FMApp{
		cfg:       cfg,
		journal:   j,
		passwords: passwords,
		service:   svc,
		logger:    logger,
	}, nil
}

// ignorePatterns combines the built-in patterns, the config list and the
// .fmignore file in the base directory.
func ignorePatterns(cfg *config.Config) ([]string, error) {
	patterns := append([]string{}, fs.DefaultIgnorePatterns...)
	patterns = append(patterns, cfg.Filesystem.Ignore...)
	fromFile, err := fs.ParseIgnoreFile(filepath.Join(cfg.BaseDir, fs.IgnoreFileName))
	if err != nil {
		return nil, err
	}
	return append(patterns, fromFile...), nil
}

func defaultPassphrase() (string, error) {
	if pw := os.Getenv("FM_PASSPHRASE"); pw != "" {
		return pw, nil
	}
	return password.ReadPassphrase("Backup key passphrase: ")
}

// DefaultClassifyOptions returns the mode and filter settings from the
// [defaults] section of the config.
func DefaultClassifyOptions(cfg *config.Config) ClassifyOptions {
	d := cfg.Defaults
	opts := ClassifyOptions{
		Mode: d.OperationMode,
		Filter: FilterOptions{
			UseRegex: d.RegexMode,
			Types:    append([]string{}, d.FileTypes...),
		},
	}
	if d.Size.Enabled {
		opts.Filter.MinSize = d.Size.MinSize
		opts.Filter.MaxSize = d.Size.MaxSize
	}
	if d.Date.Enabled {
		opts.Filter.After = d.Date.After
		opts.Filter.Before = d.Date.Before
	}
	return opts
}

// BuildFilter turns user-facing filter options into a filter.Config.
// Presets expand to their extension lists and are unioned with Types.
// Before is inclusive of the whole day.
func BuildFilter(opts FilterOptions, presets map[string][]string) (filter.Config, error) {
	cfg := filter.Config{UseRegex: opts.UseRegex}

	seen := make(map[string]bool)
	addType := func(ext string) {
		if ext = filter.NormalizeExtension(ext); ext != "" && !seen[ext] {
			seen[ext] = true
			cfg.FileTypes = append(cfg.FileTypes, ext)
		}
	}
	for _, t := range opts.Types {
		for _, part := range strings.Split(t, ",") {
			addType(part)
		}
	}
	for _, name := range opts.Presets {
		exts, ok := presets[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return filter.Config{}, fmt.Errorf("%w: unknown preset %q (have %s)", fm.ErrInvalidInput, name, strings.Join(filter.PresetNames(presets), ", "))
		}
		for _, ext := range exts {
			addType(ext)
		}
	}

	if opts.MinSize != "" || opts.MaxSize != "" {
		cfg.Size.Enabled = true
		if opts.MinSize != "" {
			n, err := humanize.ParseBytes(opts.MinSize)
			if err != nil {
				return filter.Config{}, fmt.Errorf("%w: min size %q: %v", fm.ErrInvalidInput, opts.MinSize, err)
			}
			cfg.Size.MinBytes = int64(n)
		}
		if opts.MaxSize != "" {
			n, err := humanize.ParseBytes(opts.MaxSize)
			if err != nil {
				return filter.Config{}, fmt.Errorf("%w: max size %q: %v", fm.ErrInvalidInput, opts.MaxSize, err)
			}
			cfg.Size.MaxBytes = int64(n)
		}
		if cfg.Size.MaxBytes > 0 && cfg.Size.MinBytes > cfg.Size.MaxBytes {
			return filter.Config{}, fmt.Errorf("%w: min size %s exceeds max size %s", fm.ErrInvalidInput, opts.MinSize, opts.MaxSize)
		}
	}

	if opts.After != "" || opts.Before != "" {
		cfg.Date.Enabled = true
		if opts.After != "" {
			t, err := time.ParseInLocation(DateLayout, opts.After, time.Local)
			if err != nil {
				return filter.Config{}, fmt.Errorf("%w: after date %q: want YYYY-MM-DD", fm.ErrInvalidInput, opts.After)
			}
			cfg.Date.Start = &t
		}
		if opts.Before != "" {
			t, err := time.ParseInLocation(DateLayout, opts.Before, time.Local)
			if err != nil {
				return filter.Config{}, fmt.Errorf("%w: before date %q: want YYYY-MM-DD", fm.ErrInvalidInput, opts.Before)
			}
			end := t.Add(24*time.Hour - time.Nanosecond)
			cfg.Date.End = &end
		}
		if cfg.Date.Start != nil && cfg.Date.End != nil && cfg.Date.Start.After(*cfg.Date.End) {
			return filter.Config{}, fmt.Errorf("%w: after date %s is later than before date %s", fm.ErrInvalidInput, opts.After, opts.Before)
		}
	}
	return cfg, nil
}

func (a *FMApp) request(opts ClassifyOptions) (fm.ClassifyRequest, error) {
	mode, err := fm.ParseOperationMode(opts.Mode)
	if err != nil {
		return fm.ClassifyRequest{}, err
	}
	f, err := BuildFilter(opts.Filter, a.Presets())
	if err != nil {
		return fm.ClassifyRequest{}, err
	}
	archivePath := opts.Archive
	if abs, err := filepath.Abs(archivePath); err == nil {
		archivePath = abs
	}
	return fm.ClassifyRequest{
		ArchivePath: archivePath,
		Keywords:    opts.Keywords,
		Filter:      f,
		Mode:        mode,
		Password:    opts.Password,
		Progress:    opts.Progress,
		OnState: func(s fm.State) {
			a.logger.Debug("pipeline state", "state", s.String())
		},
	}, nil
}

// Classify runs the full pipeline and records the keywords in the history.
func (a *FMApp) Classify(ctx context.Context, opts ClassifyOptions) (*fm.ClassifyResult, error) {
	req, err := a.request(opts)
	if err != nil {
		return nil, a.run.Fail(err)
	}
	res, err := a.service.Classify(ctx, req)
	if err != nil {
		return nil, a.run.Fail(err)
	}
	if err := a.pushKeywords(opts.Keywords); err != nil {
		a.logger.Warn("saving keyword history failed", "error", err)
	}
	return res, nil
}

// Preview counts what Classify would do.
func (a *FMApp) Preview(ctx context.Context, opts ClassifyOptions) (*fm.PreviewResult, error) {
	req, err := a.request(opts)
	if err != nil {
		return nil, a.run.Fail(err)
	}
	res, err := a.service.Preview(ctx, req)
	return res, a.run.Fail(err)
}

// ListFiles returns the file entries of an archive.
func (a *FMApp) ListFiles(archivePath string) ([]fm.ArchiveEntry, error) {
	entries, err := a.service.ListFiles(archivePath)
	return entries, a.run.Fail(err)
}

// Undo reverses the given operations and returns the per-id outcome.
func (a *FMApp) Undo(ids []string) map[string]bool {
	return a.trackUndo(a.service.Undo(ids))
}

// UndoLast reverses the n most recent undoable operations.
func (a *FMApp) UndoLast(n int) map[string]bool {
	return a.trackUndo(a.service.UndoLast(n))
}

func (a *FMApp) trackUndo(results map[string]bool) map[string]bool {
	for id, ok := range results {
		if !ok {
			a.run.Fail(fmt.Errorf("undo %s failed", id))
		}
	}
	return results
}

// CanUndo reports whether id can still be reversed.
func (a *FMApp) CanUndo(id string) bool {
	return a.service.CanUndo(id)
}

// History returns up to limit operations, newest first.
func (a *FMApp) History(limit int) []*fm.FileOperation {
	if limit <= 0 {
		limit = ledger.DefaultRecentLimit
	}
	return a.service.History(limit)
}

func (a *FMApp) Statistics() fm.Statistics {
	return a.service.Statistics()
}

// ClearHistory deletes every backup and empties the journal.
func (a *FMApp) ClearHistory() error {
	return a.run.Fail(a.service.ClearHistory())
}

// CleanupOutput empties the output and scratch directories.
func (a *FMApp) CleanupOutput() (int, error) {
	n, err := a.service.CleanupOutput()
	return n, a.run.Fail(err)
}

// Keywords returns the keyword history, newest first.
func (a *FMApp) Keywords() ([]string, error) {
	h, err := config.LoadKeywordHistory(a.cfg.History.Path)
	if err != nil {
		return nil, err
	}
	return h.Keywords, nil
}

func (a *FMApp) pushKeywords(keywords []string) error {
	h, err := config.LoadKeywordHistory(a.cfg.History.Path)
	if err != nil {
		return err
	}
	h.Push(keywords, a.cfg.History.Max)
	return config.SaveKeywordHistory(a.cfg.History.Path, h)
}

// Config returns the configuration the app was built from.
func (a *FMApp) Config() *config.Config {
	return a.cfg
}

// Presets returns the built-in presets overlaid with the configured ones.
func (a *FMApp) Presets() map[string][]string {
	return filter.MergePresets(a.cfg.Presets)
}

// Close logs the end of the run and releases the journal and log file.
func (a *FMApp) Close() error {
	a.passwords.ClearCache()
	a.logger.Info("run finished", "command", a.run.Command, "status", a.run.Status,
		"duration", time.Since(a.run.Started).Truncate(time.Millisecond).String())

	var firstErr error
	if err := a.journal.Close(); err != nil {
		firstErr = fmt.Errorf("closing journal: %w", err)
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
	return firstErr
}

// SetupEncryption creates the age key pair backups are encrypted with.
func SetupEncryption(cfg *config.Config, passphrase string) error {
	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		return err
	}
	return enc.Setup(passphrase)
}
