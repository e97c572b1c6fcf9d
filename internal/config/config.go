package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// DefaultLedgerCapacity is the number of operations the undo ledger retains.
const DefaultLedgerCapacity = 100

// Config represents the main configuration for fm.
type Config struct {
	BaseDir    string              `toml:"base_dir"`
	LogDir     string              `toml:"log_dir"`
	Workspace  WorkspaceConfig     `toml:"workspace"`
	Ledger     LedgerConfig        `toml:"ledger"`
	Journal    JournalConfig       `toml:"journal"`
	Backup     BackupConfig        `toml:"backup"`
	Encryption EncryptionConfig    `toml:"encryption"`
	Defaults   DefaultsConfig      `toml:"defaults"`
	Presets    map[string][]string `toml:"presets,omitempty"`
	History    HistoryConfig       `toml:"history"`
	Filesystem FilesystemConfig    `toml:"filesystem"`
}

// WorkspaceConfig names the directories a classification run writes to.
type WorkspaceConfig struct {
	OutputDir    string `toml:"output_dir"`
	MatchedDir   string `toml:"matched_dir"`
	UnmatchedDir string `toml:"unmatched_dir"`
	ScratchDir   string `toml:"scratch_dir"`
}

// LedgerConfig bounds the undo history.
type LedgerConfig struct {
	Capacity int `toml:"capacity"` // must be positive, defaults to 100
}

// JournalConfig represents configuration for the undo journal.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type JournalConfig struct {
	Type    string `toml:"type"`               // "json" (default), "sqlite" or "memory"
	Path    string `toml:"path,omitempty"`     // only used for type=json
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// BackupConfig represents configuration for the store holding pre-move backups.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type BackupConfig struct {
	Type string `toml:"type"` // "filesystem" (default), "memory" or "s3"

	// FileSystem-specific fields (only used when Type == "filesystem")
	Root string `toml:"root,omitempty"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket          string `toml:"s3_bucket,omitempty"`
	S3Prefix          string `toml:"s3_prefix,omitempty"`
	S3Region          string `toml:"s3_region,omitempty"`
	S3Endpoint        string `toml:"s3_endpoint,omitempty"`
	S3AccessKeyID     string `toml:"s3_access_key_id,omitempty"`
	S3SecretAccessKey string `toml:"s3_secret_access_key,omitempty"`
	S3UsePathStyle    bool   `toml:"s3_use_path_style,omitempty"`

	// Compress stores backups zstd-compressed.
	Compress bool `toml:"compress"`
	// Encrypt stores backups age-encrypted with the configured key pair.
	Encrypt bool `toml:"encrypt"`
}

// EncryptionConfig holds paths to the age key pair used for backup encryption.
type EncryptionConfig struct {
	Type           string `toml:"type"` // "age" (default) or "test"
	PublicKeyPath  string `toml:"public_key_path"`
	PrivateKeyPath string `toml:"private_key_path"`
}

// DefaultsConfig holds the filter and mode defaults the CLI starts from.
type DefaultsConfig struct {
	OperationMode string     `toml:"operation_mode"` // "move", "copy" or "link"
	RegexMode     bool       `toml:"regex_mode"`
	FileTypes     []string   `toml:"file_types,omitempty"`
	Size          SizeConfig `toml:"size"`
	Date          DateConfig `toml:"date"`
}

// SizeConfig bounds file sizes. Sizes are human-readable ("500KB", "2 MiB").
// An empty MaxSize means no upper bound.
type SizeConfig struct {
	Enabled bool   `toml:"enabled"`
	MinSize string `toml:"min_size,omitempty"`
	MaxSize string `toml:"max_size,omitempty"`
}

// DateConfig bounds modification dates, formatted as 2006-01-02.
type DateConfig struct {
	Enabled bool   `toml:"enabled"`
	After   string `toml:"after,omitempty"`
	Before  string `toml:"before,omitempty"`
}

// HistoryConfig locates the keyword history file.
type HistoryConfig struct {
	Path string `toml:"path"`
	Max  int    `toml:"max"`
}

// FilesystemConfig holds filesystem-related settings.
type FilesystemConfig struct {
	// Ignore lists archive entry patterns dropped before filtering, in
	// addition to the built-in metadata patterns.
	Ignore []string `toml:"ignore"`
}

// NewConfig creates a new Config with every path below baseDir.
func NewConfig(baseDir string) *Config {
	output := filepath.Join(baseDir, "extracted_files")
	return &Config{
		BaseDir: baseDir,
		LogDir:  filepath.Join(baseDir, "log"),
		Workspace: WorkspaceConfig{
			OutputDir:    output,
			MatchedDir:   filepath.Join(output, "matched"),
			UnmatchedDir: filepath.Join(output, "unmatched"),
			ScratchDir:   filepath.Join(baseDir, "temp_extract"),
		},
		Ledger: LedgerConfig{Capacity: DefaultLedgerCapacity},
		Journal: JournalConfig{
			Type:    "json",
			Path:    filepath.Join(baseDir, "undo_history.json"),
			DataDir: filepath.Join(baseDir, "db"),
		},
		Backup: BackupConfig{
			Type: "filesystem",
			Root: filepath.Join(baseDir, "backup"),
		},
		Encryption: EncryptionConfig{
			PublicKeyPath:  filepath.Join(baseDir, "keys", "fm.pub"),
			PrivateKeyPath: filepath.Join(baseDir, "keys", "fm.key"),
		},
		Defaults: DefaultsConfig{OperationMode: "move"},
		History: HistoryConfig{
			Path: filepath.Join(baseDir, "keyword_history.toml"),
			Max:  DefaultHistoryMax,
		},
	}
}

// fillDefaults sets every empty field of cfg from NewConfig(cfg.BaseDir),
// so that a config file only needs the settings it changes.
func (cfg *Config) fillDefaults(baseDir string) {
	if cfg.BaseDir == "" {
		cfg.BaseDir = baseDir
	}
	d := NewConfig(cfg.BaseDir)

	setString(&cfg.LogDir, d.LogDir)
	if cfg.Workspace.OutputDir == "" {
		cfg.Workspace.OutputDir = d.Workspace.OutputDir
	}
	setString(&cfg.Workspace.MatchedDir, filepath.Join(cfg.Workspace.OutputDir, "matched"))
	setString(&cfg.Workspace.UnmatchedDir, filepath.Join(cfg.Workspace.OutputDir, "unmatched"))
	setString(&cfg.Workspace.ScratchDir, d.Workspace.ScratchDir)
	if cfg.Ledger.Capacity == 0 {
		cfg.Ledger.Capacity = d.Ledger.Capacity
	}
	setString(&cfg.Journal.Type, d.Journal.Type)
	setString(&cfg.Journal.Path, d.Journal.Path)
	setString(&cfg.Journal.DataDir, d.Journal.DataDir)
	setString(&cfg.Backup.Type, d.Backup.Type)
	setString(&cfg.Backup.Root, d.Backup.Root)
	setString(&cfg.Encryption.PublicKeyPath, d.Encryption.PublicKeyPath)
	setString(&cfg.Encryption.PrivateKeyPath, d.Encryption.PrivateKeyPath)
	setString(&cfg.Defaults.OperationMode, d.Defaults.OperationMode)
	setString(&cfg.History.Path, d.History.Path)
	if cfg.History.Max == 0 {
		cfg.History.Max = d.History.Max
	}
}

func setString(dst *string, def string) {
	if *dst == "" {
		*dst = def
	}
}

// Validate rejects settings no component can work with.
func (cfg *Config) Validate() error {
	if cfg.Ledger.Capacity <= 0 {
		return fmt.Errorf("ledger capacity must be positive, got %d", cfg.Ledger.Capacity)
	}
	if cfg.History.Max <= 0 {
		return fmt.Errorf("history max must be positive, got %d", cfg.History.Max)
	}
	ws := cfg.Workspace
	if ws.MatchedDir == ws.UnmatchedDir {
		return fmt.Errorf("matched and unmatched directories must differ: %s", ws.MatchedDir)
	}
	return nil
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// Load reads the config at path and fills unset fields with defaults below
// baseDir. A missing file yields the defaults.
func Load(path, baseDir string) (*Config, error) {
	cfg, err := ReadFromFile(path)
	if errors.Is(err, os.ErrNotExist) {
		cfg = &Config{}
	} else if err != nil {
		return nil, err
	}
	cfg.fillDefaults(baseDir)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
