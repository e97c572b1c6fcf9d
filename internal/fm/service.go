package fm

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// FMService is the orchestration layer the CLI talks to. It wires the
// classification pipeline to the undo ledger.
type FMService struct {
	pipeline  *Pipeline
	ledger    Ledger
	reader    ArchiveReader
	fsmgr     FilesystemManager
	logger    Logger
	outputDir string
	workspace Workspace
}

// NewFMService creates an FMService. outputDir is the root that holds the
// matched and unmatched trees; CleanupOutput empties it.
func NewFMService(reader ArchiveReader, fsmgr FilesystemManager, ledger Ledger, passwords PasswordSource, outputDir string, ws Workspace, logger Logger, clock Clock, idgen IDGenerator) *FMService {
	return &FMService{
		pipeline:  NewPipeline(reader, fsmgr, ledger, passwords, ws, logger, clock, idgen),
		ledger:    ledger,
		reader:    reader,
		fsmgr:     fsmgr,
		logger:    logger,
		outputDir: outputDir,
		workspace: ws,
	}
}

// Classify extracts, filters and routes the archive's files.
func (s *FMService) Classify(ctx context.Context, req ClassifyRequest) (*ClassifyResult, error) {
	return s.pipeline.Classify(ctx, req)
}

// ClassifyAsync runs Classify on a separate goroutine.
func (s *FMService) ClassifyAsync(ctx context.Context, req ClassifyRequest) <-chan Outcome {
	return s.pipeline.ClassifyAsync(ctx, req)
}

// Preview counts what Classify would do without touching any destination.
func (s *FMService) Preview(ctx context.Context, req ClassifyRequest) (*PreviewResult, error) {
	return s.pipeline.Preview(ctx, req)
}

// ListFiles returns the archive's file entries, directories omitted.
func (s *FMService) ListFiles(archivePath string) ([]ArchiveEntry, error) {
	if !s.fsmgr.Exists(archivePath) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, archivePath)
	}
	entries, err := s.reader.List(archivePath)
	if err != nil {
		return nil, err
	}
	return Files(entries), nil
}

// Undo reverses each id independently and returns the per-id outcome.
func (s *FMService) Undo(ids []string) map[string]bool {
	return s.ledger.UndoBatch(ids)
}

// UndoLast reverses the n most recent operations that can still be undone.
// The returned map is keyed by operation id.
func (s *FMService) UndoLast(n int) map[string]bool {
	var ids []string
	for _, op := range s.ledger.Recent(0) {
		if len(ids) == n {
			break
		}
		if s.ledger.CanUndo(op.ID) {
			ids = append(ids, op.ID)
		}
	}
	return s.ledger.UndoBatch(ids)
}

// History returns up to limit operations, newest first.
func (s *FMService) History(limit int) []*FileOperation {
	return s.ledger.Recent(limit)
}

// CanUndo reports whether id can still be reversed.
func (s *FMService) CanUndo(id string) bool {
	return s.ledger.CanUndo(id)
}

// Statistics summarises the undo ledger.
func (s *FMService) Statistics() Statistics {
	return s.ledger.Statistics()
}

// ClearHistory deletes every backup and empties the journal.
func (s *FMService) ClearHistory() error {
	return s.ledger.Clear()
}

// CleanupOutput removes everything under the output root and any scratch
// directories left behind by an interrupted process. It returns the number
// of top-level entries removed.
func (s *FMService) CleanupOutput() (int, error) {
	removed := 0
	for _, root := range []string{s.outputDir, s.workspace.ScratchDir} {
		if root == "" {
			continue
		}
		entries, err := os.ReadDir(root)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return removed, fmt.Errorf("reading %s: %w", root, err)
		}
		for _, e := range entries {
			path := filepath.Join(root, e.Name())
			if err := s.fsmgr.RemoveAll(path); err != nil {
				return removed, fmt.Errorf("removing %s: %w", path, err)
			}
			removed++
		}
	}
	s.logger.Info("output cleaned", "dir", s.outputDir, "removed", removed)
	return removed, nil
}

// Files returns the non-directory entries, preserving order.
func Files(entries []ArchiveEntry) []ArchiveEntry {
	files := make([]ArchiveEntry, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir {
			files = append(files, e)
		}
	}
	return files
}
