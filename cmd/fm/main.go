package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/mazongYY/FileMover/internal/app"
	"github.com/mazongYY/FileMover/internal/config"
	"github.com/mazongYY/FileMover/internal/filter"
	"github.com/mazongYY/FileMover/internal/fm"
	"github.com/mazongYY/FileMover/internal/password"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the config file named by the defaults, falling back to
// built-in settings when it does not exist.
func loadConfig() (*config.Config, map[string]string, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, nil, fmt.Errorf("getting defaults: %w", err)
	}
	cfg, err := config.Load(defaults["config_path"], defaults["base_dir"])
	if err != nil {
		return nil, nil, fmt.Errorf("reading config: %w", err)
	}
	return cfg, defaults, nil
}

// newApp reads the config and creates an FMApp. The caller must defer a.Close().
func newApp(cmd *cobra.Command, args []string) (*app.FMApp, error) {
	cfg, _, err := loadConfig()
	if err != nil {
		return nil, err
	}
	verbose, _ := cmd.Flags().GetBool("verbose")
	pw, _ := cmd.Flags().GetString("password")

	a, err := app.NewFMApp(cfg, cmd.Name(), args, app.Options{
		Verbose:  verbose,
		Prompter: password.ChainPrompter{password.StaticPrompter{Password: pw}, password.NewTerminalPrompter()},
	})
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

var rootCmd = &cobra.Command{
	Use:          "fm",
	Short:        "Extract archives and sort their files by keyword",
	SilenceUsage: true,
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}
		encrypt, _ := cmd.Flags().GetBool("encrypt")

		cfg := config.NewConfig(defaults["base_dir"])
		cfg.Backup.Encrypt = encrypt
		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}
		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Base Dir: %s\n", cfg.BaseDir)

		if !encrypt {
			return nil
		}
		passphrase, err := password.ReadPassphrase("New backup key passphrase: ")
		if err != nil {
			return err
		}
		confirm, err := password.ReadPassphrase("Repeat passphrase: ")
		if err != nil {
			return err
		}
		if passphrase != confirm {
			return fmt.Errorf("passphrases do not match")
		}
		if err := app.SetupEncryption(cfg, passphrase); err != nil {
			return fmt.Errorf("setting up encryption: %w", err)
		}
		fmt.Printf("Backup key pair written to %s\n", cfg.Encryption.PublicKeyPath)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, defaults, err := loadConfig()
		if err != nil {
			return err
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Base Dir:     %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:      %s\n", cfg.LogDir)
		fmt.Printf("Matched:      %s\n", cfg.Workspace.MatchedDir)
		fmt.Printf("Unmatched:    %s\n", cfg.Workspace.UnmatchedDir)
		fmt.Printf("Journal:      %s\n", describeJournal(cfg.Journal))
		fmt.Printf("Backups:      %s\n", describeBackup(cfg.Backup))
		fmt.Printf("Capacity:     %d operations\n", cfg.Ledger.Capacity)
		fmt.Printf("Default mode: %s\n", cfg.Defaults.OperationMode)
		return nil
	},
}

func describeJournal(j config.JournalConfig) string {
	switch j.Type {
	case "sqlite":
		return "sqlite in " + j.DataDir
	case "memory":
		return "memory"
	default:
		return "json at " + j.Path
	}
}

func describeBackup(b config.BackupConfig) string {
	var desc string
	switch b.Type {
	case "s3":
		desc = fmt.Sprintf("s3://%s/%s", b.S3Bucket, b.S3Prefix)
	case "memory":
		desc = "memory"
	default:
		desc = b.Root
	}
	if b.Compress {
		desc += " (zstd)"
	}
	if b.Encrypt {
		desc += " (age)"
	}
	return desc
}

var configPresetsCmd = &cobra.Command{
	Use:   "presets",
	Short: "List file type presets",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		presets := filter.MergePresets(cfg.Presets)
		for _, name := range filter.PresetNames(presets) {
			fmt.Printf("%-14s %s\n", cyan(name), strings.Join(presets[name], " "))
		}
		return nil
	},
}

// classifyOptions merges the config defaults with the flags the user set.
func classifyOptions(cmd *cobra.Command, cfg *config.Config, archivePath string) (app.ClassifyOptions, error) {
	opts := app.DefaultClassifyOptions(cfg)
	opts.Archive = archivePath

	flags := cmd.Flags()
	opts.Keywords, _ = flags.GetStringSlice("keyword")
	if len(opts.Keywords) == 0 {
		return opts, fmt.Errorf("at least one keyword is required (-k)")
	}
	if flags.Changed("regex") {
		opts.Filter.UseRegex, _ = flags.GetBool("regex")
	}
	if flags.Changed("types") {
		opts.Filter.Types, _ = flags.GetStringSlice("types")
	}
	opts.Filter.Presets, _ = flags.GetStringSlice("preset")
	if flags.Changed("min-size") {
		opts.Filter.MinSize, _ = flags.GetString("min-size")
	}
	if flags.Changed("max-size") {
		opts.Filter.MaxSize, _ = flags.GetString("max-size")
	}
	if flags.Changed("after") {
		opts.Filter.After, _ = flags.GetString("after")
	}
	if flags.Changed("before") {
		opts.Filter.Before, _ = flags.GetString("before")
	}
	if flags.Changed("mode") {
		opts.Mode, _ = flags.GetString("mode")
	}
	opts.Password, _ = flags.GetString("password")
	return opts, nil
}

// progressFunc draws a bar on stderr, created once the total is known.
func progressFunc(description string) (func(done, total int), func()) {
	var bar *progressbar.ProgressBar
	update := func(done, total int) {
		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionSetDescription(description),
				progressbar.OptionSetPredictTime(true),
				progressbar.OptionShowCount(),
				progressbar.OptionSetTheme(progressbar.Theme{
					Saucer: "█", SaucerHead: "█", SaucerPadding: "░",
					BarStart: "[", BarEnd: "]",
				}),
			)
		}
		bar.Set(done)
	}
	finish := func() {
		if bar != nil {
			bar.Finish()
			fmt.Fprintln(os.Stderr)
		}
	}
	return update, finish
}

// classify command
var classifyCmd = &cobra.Command{
	Use:   "classify ARCHIVE",
	Short: "Extract an archive and sort its files into matched and unmatched",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, args)
		if err != nil {
			return err
		}
		defer a.Close()

		opts, err := classifyOptions(cmd, a.Config(), args[0])
		if err != nil {
			return err
		}
		finish := func() {}
		if noProgress, _ := cmd.Flags().GetBool("no-progress"); !noProgress {
			opts.Progress, finish = progressFunc("Classifying")
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		res, err := a.Classify(ctx, opts)
		finish()
		if err != nil {
			return fmt.Errorf("classify failed: %w", err)
		}

		fmt.Printf("%s %d file(s) -> %s\n", green("matched"), len(res.Matched), res.MatchedDir)
		for _, name := range res.Matched {
			fmt.Printf("  %s\n", name)
		}
		fmt.Printf("%s %d file(s) -> %s\n", yellow("unmatched"), len(res.Unmatched), res.UnmatchedDir)
		if res.Excluded > 0 {
			fmt.Printf("excluded by filters: %d\n", res.Excluded)
		}
		if res.Skipped > 0 {
			fmt.Printf("%s %d file(s), see %s\n", red("failed"), res.Skipped, app.LogFileName)
		}
		return nil
	},
}

// preview command
var previewCmd = &cobra.Command{
	Use:   "preview ARCHIVE",
	Short: "Show how an archive would be sorted without writing anything",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, args)
		if err != nil {
			return err
		}
		defer a.Close()

		opts, err := classifyOptions(cmd, a.Config(), args[0])
		if err != nil {
			return err
		}

		res, err := a.Preview(cmd.Context(), opts)
		if err != nil {
			return fmt.Errorf("preview failed: %w", err)
		}
		fmt.Printf("total:     %d\n", res.Total)
		fmt.Printf("%s   %d\n", green("matched:"), res.Matched)
		fmt.Printf("%s %d\n", yellow("unmatched:"), res.Unmatched)
		fmt.Printf("excluded:  %d\n", res.Excluded)
		return nil
	},
}

// list command
var listCmd = &cobra.Command{
	Use:   "list ARCHIVE",
	Short: "List the files in an archive",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, args)
		if err != nil {
			return err
		}
		defer a.Close()

		entries, err := a.ListFiles(args[0])
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("Archive contains no files.")
			return nil
		}
		for _, e := range entries {
			modified := "-"
			if e.HasModTime {
				modified = e.Modified.Format("2006-01-02 15:04")
			}
			fmt.Printf("%10s  %s  %s\n", humanize.Bytes(uint64(e.Size)), modified, e.Name)
		}
		return nil
	},
}

// undo command
var undoCmd = &cobra.Command{
	Use:   "undo [ID...]",
	Short: "Reverse recorded file operations",
	RunE: func(cmd *cobra.Command, args []string) error {
		last, _ := cmd.Flags().GetInt("last")
		if len(args) == 0 && last <= 0 {
			last = 1
		}

		a, err := newApp(cmd, args)
		if err != nil {
			return err
		}
		defer a.Close()

		var results map[string]bool
		if len(args) > 0 {
			results = a.Undo(args)
		} else {
			results = a.UndoLast(last)
		}
		if len(results) == 0 {
			fmt.Println("Nothing to undo.")
			return nil
		}

		ids := make([]string, 0, len(results))
		for id := range results {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		failed := 0
		for _, id := range ids {
			if results[id] {
				fmt.Printf("%s %s\n", green("undone"), id)
			} else {
				fmt.Printf("%s %s\n", red("failed"), id)
				failed++
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d undo(s) failed", failed, len(results))
		}
		return nil
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View recorded file operations",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp(cmd, args)
		if err != nil {
			return err
		}
		defer a.Close()

		ops := a.History(limit)
		if len(ops) == 0 {
			fmt.Println("No operations recorded.")
			return nil
		}
		for _, op := range ops {
			state := green("undoable")
			switch {
			case op.Undone:
				state = "undone"
			case !a.CanUndo(op.ID):
				state = yellow("stale")
			}
			fmt.Printf("%s  %-4s  %-9s  %8s  %s  %s -> %s\n",
				op.ID,
				op.Type,
				state,
				humanize.Bytes(uint64(op.FileSize)),
				humanize.Time(op.Timestamp),
				op.SourcePath,
				op.TargetPath,
			)
		}
		return nil
	},
}

// stats command
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarise the undo history",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, args)
		if err != nil {
			return err
		}
		defer a.Close()

		s := a.Statistics()
		fmt.Printf("Operations: %d\n", s.Total)
		for _, mode := range []fm.OperationMode{fm.Move, fm.Copy, fm.Link} {
			fmt.Printf("  %-5s %d\n", mode, s.ByType[mode])
		}
		fmt.Printf("Total size: %s\n", humanize.Bytes(uint64(s.TotalSize)))
		if s.Total > 0 {
			fmt.Printf("Oldest:     %s\n", humanize.Time(s.Oldest))
			fmt.Printf("Newest:     %s\n", humanize.Time(s.Newest))
		}
		return nil
	},
}

// clear command
var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the undo history and every backup",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, args)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.ClearHistory(); err != nil {
			return fmt.Errorf("clearing history: %w", err)
		}
		fmt.Println("Undo history cleared.")
		return nil
	},
}

// cleanup command
var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Empty the output directory and leftover scratch directories",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, args)
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.CleanupOutput()
		if err != nil {
			return fmt.Errorf("cleanup failed: %w", err)
		}
		fmt.Printf("Removed %d item(s)\n", n)
		return nil
	},
}

// keywords command
var keywordsCmd = &cobra.Command{
	Use:   "keywords",
	Short: "Show recently used keywords",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, args)
		if err != nil {
			return err
		}
		defer a.Close()

		keywords, err := a.Keywords()
		if err != nil {
			return err
		}
		if len(keywords) == 0 {
			fmt.Println("No keywords used yet.")
			return nil
		}
		for _, kw := range keywords {
			fmt.Println(kw)
		}
		return nil
	},
}

func addFilterFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringSliceP("keyword", "k", nil, "Keyword to match in file names (repeatable)")
	f.Bool("regex", false, "Treat keywords as regular expressions")
	f.StringSlice("types", nil, "Only include these extensions, e.g. pdf,docx")
	f.StringSlice("preset", nil, "Only include a named extension group (see 'fm config presets')")
	f.String("min-size", "", "Minimum file size, e.g. 10KB")
	f.String("max-size", "", "Maximum file size, e.g. 2MB")
	f.String("after", "", "Only files modified on or after this date (YYYY-MM-DD)")
	f.String("before", "", "Only files modified on or before this date (YYYY-MM-DD)")
	f.String("mode", "", "Operation mode: move, copy or link")
	f.String("password", "", "Archive password")
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log debug output to stderr")

	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configInitCmd.Flags().Bool("encrypt", false, "Encrypt backups and create an age key pair")
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configPresetsCmd)

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(classifyCmd)
	addFilterFlags(classifyCmd)
	classifyCmd.Flags().Bool("no-progress", false, "Do not draw a progress bar")
	rootCmd.AddCommand(previewCmd)
	addFilterFlags(previewCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(undoCmd)
	undoCmd.Flags().IntP("last", "l", 0, "Undo the N most recent operations")
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 20, "Maximum number of operations to show")
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(cleanupCmd)
	rootCmd.AddCommand(keywordsCmd)
}
