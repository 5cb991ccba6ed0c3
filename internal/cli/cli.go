// Package cli provides the command-line interface with injectable io.Writer
// and ports for testing.
package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/mcdonaldj/datezip/internal/adapters/osfs"
	"github.com/mcdonaldj/datezip/internal/adapters/ziparchiver"
	"github.com/mcdonaldj/datezip/internal/archive"
	"github.com/mcdonaldj/datezip/internal/backup"
	"github.com/mcdonaldj/datezip/internal/config"
	"github.com/mcdonaldj/datezip/internal/gitroot"
	"github.com/mcdonaldj/datezip/internal/history"
	"github.com/mcdonaldj/datezip/internal/ports"
	"github.com/mcdonaldj/datezip/internal/restore"
	"github.com/mcdonaldj/datezip/internal/retention"
	"github.com/mcdonaldj/datezip/internal/tui"
)

// CLI represents the command-line interface with injectable dependencies.
type CLI struct {
	Out     io.Writer // informational output, suppressed by --quiet
	Err     io.Writer // error output, never suppressed
	In      io.Reader // for the one-time scope prompt
	Version string
	Args    []string // command arguments (like os.Args)

	// Exit function for testability (defaults to os.Exit)
	Exit func(code int)

	// Injectable collaborators (defaults set in New)
	FS       ports.FileSystem
	Archiver ports.Archiver

	// WorkDir is the invocation directory; empty means os.Getwd.
	WorkDir string
	// Interactive enables the one-time scope prompt and the TUI fallback.
	Interactive bool

	quiet bool
	local bool

	// Color functions (can be disabled for testing)
	green  func(a ...interface{}) string
	yellow func(a ...interface{}) string
	cyan   func(a ...interface{}) string
	gray   func(a ...interface{}) string
	red    func(a ...interface{}) string
}

// New creates a new CLI with default settings.
func New(version string) *CLI {
	return &CLI{
		Out:         os.Stdout,
		Err:         os.Stderr,
		In:          os.Stdin,
		Version:     version,
		Args:        os.Args,
		Exit:        os.Exit,
		FS:          osfs.New(),
		Archiver:    ziparchiver.New(),
		Interactive: isatty.IsTerminal(os.Stdin.Fd()),
		green:       color.New(color.FgGreen, color.Bold).SprintFunc(),
		yellow:      color.New(color.FgYellow).SprintFunc(),
		cyan:        color.New(color.FgCyan).SprintFunc(),
		gray:        color.New(color.FgHiBlack).SprintFunc(),
		red:         color.New(color.FgRed).SprintFunc(),
	}
}

// NewForTesting creates a CLI configured for testing (no colors, captured output).
func NewForTesting(out, errOut io.Writer, args []string) *CLI {
	noColor := func(a ...interface{}) string { return fmt.Sprint(a...) }
	return &CLI{
		Out:      out,
		Err:      errOut,
		In:       strings.NewReader(""),
		Version:  "test",
		Args:     args,
		Exit:     func(code int) {},
		FS:       osfs.New(),
		Archiver: ziparchiver.New(),
		green:    noColor,
		yellow:   noColor,
		cyan:     noColor,
		gray:     noColor,
		red:      noColor,
	}
}

// Run executes the CLI with the configured arguments.
func (c *CLI) Run() {
	args := c.globalFlags(c.Args[1:])

	cmd := "backup"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd = args[0]
		args = args[1:]
	}

	switch cmd {
	case "backup":
		c.RunBackup(args)
	case "list":
		c.RunList(args)
	case "history":
		c.RunHistory(args)
	case "restore":
		c.RunRestore(args)
	case "reindex":
		c.RunReindex(args)
	case "cleanup":
		c.RunCleanup(args)
	case "ui":
		c.RunUI()
	case "version", "-v", "--version":
		fmt.Fprintf(c.Out, "datezip v%s\n", c.Version)
	case "help", "-h", "--help":
		c.PrintUsage()
	default:
		fmt.Fprintf(c.Err, "Unknown command: %s\n", cmd)
		c.PrintUsage()
		c.Exit(1)
	}
}

// globalFlags strips --quiet and --local from the argument list.
func (c *CLI) globalFlags(args []string) []string {
	var rest []string
	for _, a := range args {
		switch a {
		case "--quiet", "-q":
			c.quiet = true
		case "--local":
			c.local = true
		default:
			rest = append(rest, a)
		}
	}
	return rest
}

// PrintUsage prints the help message.
func (c *CLI) PrintUsage() {
	fmt.Fprintln(c.Out, `datezip - Point-in-time incremental backups for a working tree

Usage:
  datezip [backup] [--full|--inc]          Create a backup (auto FULL/INC)
  datezip list                             List archives, oldest first
  datezip history [--files a,b] [--from TS] [--to TS]
                                           Show per-file change history
  datezip restore --index N | --time TS [--type e|j] [--files a,b] [--dest DIR]
                                           Restore a point-in-time state
  datezip reindex                          Rebuild the history index
  datezip cleanup [--keep-full N] [--keep-days D]
                                           Prune obsolete archives
  datezip ui                               Launch interactive browser
  datezip version, -v                      Show version
  datezip help, -h                         Show this help

Global flags:
  --quiet, -q    Suppress informational output
  --local        Back up the current directory, ignoring the git root

Timestamps use the archive format YYYYMMDD_HHMMSS.
Config: ~/.datezip/config.yaml`)
}

func (c *CLI) infof(format string, args ...interface{}) {
	if !c.quiet {
		fmt.Fprintf(c.Out, format, args...)
	}
}

func (c *CLI) fatalf(format string, args ...interface{}) {
	fmt.Fprintf(c.Err, "%s %s\n", c.red("Error:"), fmt.Sprintf(format, args...))
	c.Exit(1)
}

// loadConfig builds the immutable run configuration: global settings, git
// root resolution, and the per-project scope preference.
func (c *CLI) loadConfig() (config.Config, error) {
	settings, err := config.LoadSettings()
	if err != nil {
		return config.Config{}, err
	}

	wd := c.WorkDir
	if wd == "" {
		wd, err = os.Getwd()
		if err != nil {
			return config.Config{}, err
		}
	}

	root := wd
	if !c.local {
		if gr, ok := gitroot.Find(wd); ok && gr != wd {
			scope, err := c.resolveScope(gr)
			if err != nil {
				return config.Config{}, err
			}
			if scope == config.ScopeRoot {
				root = gr
			}
		}
	}

	return config.Config{
		Root:     root,
		Prefix:   settings.Prefix,
		Quiet:    c.quiet,
		Exclude:  settings.Exclude,
		KeepFull: settings.Retention.KeepFull,
		KeepDays: settings.Retention.KeepDays,
	}, nil
}

// resolveScope reads the project preference, prompting once when it does not
// exist yet and the session is interactive.
func (c *CLI) resolveScope(gitRoot string) (config.Scope, error) {
	pref, err := config.LoadPreference(gitRoot)
	if err != nil {
		return "", err
	}
	if pref != nil {
		return pref.Scope, nil
	}
	if !c.Interactive {
		return config.ScopeRoot, nil
	}

	fmt.Fprintf(c.Out, "This directory is inside a git repository (%s).\n", gitRoot)
	fmt.Fprint(c.Out, "Back up at the repository [r]oot or this [s]ubdirectory? [r/s] ")
	reader := bufio.NewReader(c.In)
	answer, _ := reader.ReadString('\n')

	scope := config.ScopeRoot
	if strings.HasPrefix(strings.TrimSpace(strings.ToLower(answer)), "s") {
		scope = config.ScopeSubdir
	}
	pref = &config.Preference{Scope: scope}
	if err := pref.Save(gitRoot); err != nil {
		return "", fmt.Errorf("saving preference: %w", err)
	}
	c.infof("Saved choice to %s\n", config.PreferenceFileName)
	return scope, nil
}

// RunBackup runs the backup command.
func (c *CLI) RunBackup(args []string) {
	var forced *archive.Kind
	for _, a := range args {
		switch a {
		case "--full":
			k := archive.Full
			forced = &k
		case "--inc":
			k := archive.Incremental
			forced = &k
		default:
			c.fatalf("unknown backup flag: %s", a)
			return
		}
	}

	cfg, err := c.loadConfig()
	if err != nil {
		c.fatalf("loading config: %v", err)
		return
	}

	engine := backup.NewEngine(c.FS, c.Archiver)
	result, err := engine.Run(cfg, forced)
	if err != nil {
		c.fatalf("backup failed: %v", err)
		return
	}
	if result.Skipped {
		c.infof("%s %s\n", c.gray("-"), c.gray(result.Reason))
		return
	}
	c.infof("%s Created %s %s (%d files)\n",
		c.green("*"),
		result.Path,
		c.yellow(backup.FormatSize(result.Size)),
		result.FileCount)
}

// RunList lists all archives, oldest first, with indices usable by restore.
func (c *CLI) RunList(args []string) {
	cfg, err := c.loadConfig()
	if err != nil {
		c.fatalf("loading config: %v", err)
		return
	}

	set, err := archive.List(c.FS, cfg.BackupDir(), cfg.Prefix)
	if err != nil {
		c.fatalf("%v", err)
		return
	}
	if len(set) == 0 {
		c.fatalf("no backups found in %s", cfg.BackupDir())
		return
	}

	for i, a := range set {
		size := ""
		if info, err := c.FS.Stat(a.Path); err == nil {
			size = backup.FormatSize(info.Size())
		}
		kind := c.cyan(a.Kind.String())
		if a.Kind == archive.Full {
			kind = c.green(a.Kind.String())
		}
		fmt.Fprintf(c.Out, "[%d] %s %s %s\n", i, a.Name(), kind, c.gray(size))
	}
}

// RunHistory shows the change history, grouped by archive or scoped to files.
func (c *CLI) RunHistory(args []string) {
	var filter history.QueryFilter
	var err error
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--files":
			if filter.Paths, err = takeList(args, &i); err != nil {
				c.fatalf("%v", err)
				return
			}
		case "--from":
			if filter.From, err = takeTimestamp(args, &i); err != nil {
				c.fatalf("%v", err)
				return
			}
		case "--to":
			if filter.To, err = takeTimestamp(args, &i); err != nil {
				c.fatalf("%v", err)
				return
			}
		default:
			c.fatalf("unknown history flag: %s", args[i])
			return
		}
	}

	cfg, err := c.loadConfig()
	if err != nil {
		c.fatalf("loading config: %v", err)
		return
	}
	index := history.NewIndex(c.FS, c.Archiver)

	if len(filter.Paths) > 0 {
		// File-scoped view: all matching records, most recent first.
		records, err := index.Query(cfg.BackupDir(), cfg.Prefix, filter)
		if err != nil {
			c.fatalf("%v", err)
			return
		}
		for i := len(records) - 1; i >= 0; i-- {
			fmt.Fprintln(c.Out, history.Describe(records[i]))
		}
		return
	}

	groups, err := index.Grouped(cfg.BackupDir(), cfg.Prefix, filter)
	if err != nil {
		c.fatalf("%v", err)
		return
	}
	for _, g := range groups {
		c.infof("%s\n", c.cyan(fmt.Sprintf("== %s (%s)", g.Timestamp, g.Kind)))
		if len(g.Records) == 0 {
			c.infof("%s\n", c.gray("   (no changes)"))
			continue
		}
		for _, r := range g.Records {
			fmt.Fprintln(c.Out, history.Describe(r))
		}
	}
}

// RunRestore restores a point-in-time state.
func (c *CLI) RunRestore(args []string) {
	opts := restore.Options{Index: -1, Mode: restore.Everything}
	var err error
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--index":
			v, e := takeValue(args, &i)
			if e != nil {
				c.fatalf("%v", e)
				return
			}
			if _, e := fmt.Sscanf(v, "%d", &opts.Index); e != nil || opts.Index < 0 {
				c.fatalf("invalid index %q", v)
				return
			}
		case "--time":
			if opts.Time, err = takeTimestamp(args, &i); err != nil {
				c.fatalf("%v", err)
				return
			}
		case "--type":
			v, e := takeValue(args, &i)
			if e != nil {
				c.fatalf("%v", e)
				return
			}
			switch v {
			case "e":
				opts.Mode = restore.Everything
			case "j":
				opts.Mode = restore.Just
			default:
				c.fatalf("invalid restore type %q (want e or j)", v)
				return
			}
		case "--files":
			if opts.Files, err = takeList(args, &i); err != nil {
				c.fatalf("%v", err)
				return
			}
		case "--dest":
			if opts.Dest, err = takeValue(args, &i); err != nil {
				c.fatalf("%v", err)
				return
			}
		default:
			c.fatalf("unknown restore flag: %s", args[i])
			return
		}
	}

	cfg, err := c.loadConfig()
	if err != nil {
		c.fatalf("loading config: %v", err)
		return
	}

	if opts.Index < 0 && opts.Time == "" {
		if c.Interactive {
			c.RunUI()
			return
		}
		c.fatalf("specify --index or --time (or run 'datezip ui')")
		return
	}

	engine := restore.NewEngine(c.FS, c.Archiver)
	engine.Warn = func(format string, args ...interface{}) {
		fmt.Fprintf(c.Err, "%s %s\n", c.yellow("Warning:"), fmt.Sprintf(format, args...))
	}
	result, err := engine.Run(cfg, opts)
	if err != nil {
		c.fatalf("restore failed: %v", err)
		return
	}

	for _, a := range result.Applied {
		c.infof("%s Applied %s\n", c.green("*"), a.Name())
	}
	c.infof("Restored state as of %s (%d of %d archives applied)\n",
		result.Target.Timestamp, len(result.Applied), len(result.Applied)+len(result.Failed))
}

// RunReindex rebuilds the history cache from the archives on disk.
func (c *CLI) RunReindex(args []string) {
	cfg, err := c.loadConfig()
	if err != nil {
		c.fatalf("loading config: %v", err)
		return
	}
	index := history.NewIndex(c.FS, c.Archiver)
	if err := index.Reindex(cfg.BackupDir(), cfg.Prefix); err != nil {
		c.fatalf("reindex failed: %v", err)
		return
	}
	c.infof("%s Rebuilt history index\n", c.green("*"))
}

// RunCleanup prunes archives under the dual-threshold retention policy.
func (c *CLI) RunCleanup(args []string) {
	cfg, err := c.loadConfig()
	if err != nil {
		c.fatalf("loading config: %v", err)
		return
	}

	policy := retention.Policy{KeepCount: cfg.KeepFull, KeepDays: cfg.KeepDays}
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--keep-full":
			v, e := takeValue(args, &i)
			if e != nil {
				c.fatalf("%v", e)
				return
			}
			if _, e := fmt.Sscanf(v, "%d", &policy.KeepCount); e != nil || policy.KeepCount < 0 {
				c.fatalf("invalid --keep-full %q", v)
				return
			}
		case "--keep-days":
			v, e := takeValue(args, &i)
			if e != nil {
				c.fatalf("%v", e)
				return
			}
			if _, e := fmt.Sscanf(v, "%d", &policy.KeepDays); e != nil || policy.KeepDays < 0 {
				c.fatalf("invalid --keep-days %q", v)
				return
			}
		default:
			c.fatalf("unknown cleanup flag: %s", args[i])
			return
		}
	}

	engine := retention.NewEngine(c.FS)
	report, err := engine.Cleanup(cfg.BackupDir(), cfg.Prefix, policy)
	if err != nil {
		c.fatalf("cleanup failed: %v", err)
		return
	}

	for _, name := range report.Orphans {
		c.infof("%s Deleted orphan increment %s\n", c.yellow("-"), name)
	}
	for _, name := range report.Expired {
		c.infof("%s Deleted expired %s\n", c.yellow("-"), name)
	}
	deleted := len(report.Orphans) + len(report.Expired)
	if deleted == 0 {
		c.infof("Nothing to clean up\n")
		return
	}

	// Deletions invalidated the history cache; rebuild now rather than on
	// the next query so list/history stay consistent immediately.
	index := history.NewIndex(c.FS, c.Archiver)
	if err := index.Reindex(cfg.BackupDir(), cfg.Prefix); err != nil {
		c.fatalf("reindex after cleanup failed: %v", err)
		return
	}
	c.infof("Deleted %d archives, history index rebuilt\n", deleted)
}

// RunUI launches the interactive browser.
func (c *CLI) RunUI() {
	cfg, err := c.loadConfig()
	if err != nil {
		c.fatalf("loading config: %v", err)
		return
	}
	if err := tui.Run(cfg, c.FS, c.Archiver); err != nil {
		c.fatalf("%v", err)
		return
	}
}

// takeValue returns the value following args[*i], advancing the cursor.
func takeValue(args []string, i *int) (string, error) {
	if *i+1 >= len(args) {
		return "", fmt.Errorf("%s requires a value", args[*i])
	}
	*i++
	return args[*i], nil
}

// takeList parses a comma-separated value list.
func takeList(args []string, i *int) ([]string, error) {
	v, err := takeValue(args, i)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil, errors.New("empty file list")
	}
	return out, nil
}

// takeTimestamp parses a value that must be a valid archive timestamp.
func takeTimestamp(args []string, i *int) (string, error) {
	v, err := takeValue(args, i)
	if err != nil {
		return "", err
	}
	if !archive.ValidTimestamp(v) {
		return "", fmt.Errorf("invalid timestamp %q (want YYYYMMDD_HHMMSS)", v)
	}
	return v, nil
}
