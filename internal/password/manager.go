// Package password supplies verified passwords for protected archives.
package password

import (
	"path/filepath"
	"sync"

	"github.com/mazongYY/FileMover/internal/fm"
)

// DefaultMaxAttempts is how many times GetPassword prompts before giving up.
const DefaultMaxAttempts = 3

// Prompter asks the user for an archive password. attempt starts at 1.
// ok is false when the user declines.
type Prompter interface {
	Prompt(archivePath string, attempt, maxAttempts int) (password string, ok bool)
}

// Manager caches verified passwords per archive and drives the
// prompt-verify loop. It implements fm.PasswordSource.
type Manager struct {
	reader      fm.ArchiveReader
	prompter    Prompter
	logger      fm.Logger
	maxAttempts int

	mu    sync.Mutex
	cache map[string]string
}

// NewManager creates a Manager. prompter may be nil, in which case only
// remembered passwords are served.
func NewManager(reader fm.ArchiveReader, prompter Prompter, logger fm.Logger) *Manager {
	return &Manager{
		reader:      reader,
		prompter:    prompter,
		logger:      logger,
		maxAttempts: DefaultMaxAttempts,
		cache:       make(map[string]string),
	}
}

func cacheKey(archivePath string) string {
	if abs, err := filepath.Abs(archivePath); err == nil {
		return abs
	}
	return archivePath
}

func (m *Manager) IsPasswordProtected(archivePath string) bool {
	return m.reader.IsPasswordProtected(archivePath)
}

func (m *Manager) VerifyPassword(archivePath, password string) bool {
	return m.reader.VerifyPassword(archivePath, password)
}

// GetPassword returns a cached password that still verifies, or prompts up
// to the attempt limit. A verified password is cached.
func (m *Manager) GetPassword(archivePath string) (string, bool) {
	key := cacheKey(archivePath)

	m.mu.Lock()
	cached, ok := m.cache[key]
	m.mu.Unlock()
	if ok {
		if m.reader.VerifyPassword(archivePath, cached) {
			return cached, true
		}
		m.forget(key)
	}

	if m.prompter == nil {
		return "", false
	}
	for attempt := 1; attempt <= m.maxAttempts; attempt++ {
		pw, ok := m.prompter.Prompt(archivePath, attempt, m.maxAttempts)
		if !ok {
			m.logger.Info("password prompt declined", "archive", archivePath)
			return "", false
		}
		if m.reader.VerifyPassword(archivePath, pw) {
			m.Remember(archivePath, pw)
			return pw, true
		}
		m.logger.Warn("incorrect password", "archive", archivePath, "attempt", attempt)
	}
	return "", false
}

// Remember caches password for archivePath without verifying it.
func (m *Manager) Remember(archivePath, password string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache[cacheKey(archivePath)] = password
}

// ClearCache forgets every cached password.
func (m *Manager) ClearCache() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache = make(map[string]string)
}

func (m *Manager) forget(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cache, key)
}

var _ fm.PasswordSource = (*Manager)(nil)
