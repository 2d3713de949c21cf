package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"officeapp/internal/config"
	"officeapp/internal/debug"
	"officeapp/internal/settings"
	"officeapp/internal/update"

	"github.com/atotto/clipboard"
)

// Process exit codes.
const (
	exitOK        = 0
	exitFailure   = 1
	exitUsage     = 2
	exitSecurity  = 3
	exitCancelled = 130
)

const summaryWidth = 80

func main() {
	if err := config.Initialize(); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing config: %v\n", err)
		os.Exit(exitFailure)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("officeapp-update", flag.ContinueOnError)
	fs.SetOutput(stderr)
	flags := registerFlags(fs)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}

	if *flags.version {
		printVersion(stdout)
		return exitOK
	}

	opts := computeRuntimeOptions(fs, flags)
	if opts.publishSHA256 != "" && opts.publish == "" {
		_, _ = fmt.Fprintln(stderr, "Error: -publish-sha256 requires -publish VERSION")
		return exitUsage
	}

	if err := debug.Init(opts.debug); err != nil {
		_, _ = fmt.Fprintf(stderr, "Warning: debug log unavailable: %v\n", err)
	}
	defer debug.Close()

	storePath := opts.dbPath
	if storePath == "" {
		p, err := config.StorePath()
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitFailure
		}
		storePath = p
	}
	store, err := settings.Open(ctx, storePath)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}
	defer func() { _ = store.Close() }()

	if opts.publish != "" {
		if err := publishRelease(ctx, store, opts.publish, opts.publishSHA256); err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitUsage
		}
		_, _ = fmt.Fprintf(stdout, "Published %s as the current release in %s\n", strings.TrimSpace(opts.publish), store.Path())
		return exitOK
	}

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	var reporter progressReporter = nopReporter{}
	updater := update.NewUpdater(
		update.NewResolver(Version, store),
		store,
		update.WithDownloader(update.NewDownloader(
			update.WithMaxBytes(opts.maxBytes),
			update.WithDownloadTimeout(opts.timeout),
		)),
		update.WithDigestSource(update.DigestSources{
			store,
			update.ChecksumFileSource{Path: opts.checksumFile},
		}),
		update.WithBaseURL(opts.baseURL),
		update.WithTempDir(opts.tempDir),
		update.WithStageHook(func(s update.Stage) { reporter.Stage(s) }),
	)

	check := updater.Check(runCtx)
	if !check.Success {
		_, _ = fmt.Fprintln(stderr, check.ErrorMessage)
		return exitCancelled
	}
	printCheckSummary(stdout, check, opts.outputFormat, summaryWidth)
	if opts.checkOnly || !check.HasUpdate {
		return exitOK
	}

	confirmed := opts.assumeYes
	if !confirmed {
		confirmed = promptYesNo(stdin, stdout, fmt.Sprintf("Download OfficeApp %s now?", check.AvailableVersion))
	}
	if confirmed {
		reporter = newReporter(stderr, opts.outputFormat, check.AvailableVersion, opts.maxBytes, cancelRun)
	}

	started := time.Now()
	out := updater.Apply(runCtx, check, confirmed, reporter.Progress)
	reporter.Stop()

	code := handleOutcome(stdout, out, time.Since(started))
	if out.Succeeded() && opts.copyPath {
		copyArtifactPath(stdout, out.ArtifactPath)
	}
	return code
}

func copyArtifactPath(w io.Writer, path string) {
	if err := clipboard.WriteAll(path); err != nil {
		debug.Warn("clipboard write failed", "err", err)
		_, _ = fmt.Fprintf(w, "Could not copy path to clipboard: %v\n", err)
		return
	}
	_, _ = fmt.Fprintln(w, "Copied artifact path to clipboard.")
}

type runtimeFlags struct {
	version       *bool
	checkOnly     *bool
	assumeYes     *bool
	dbPath        *string
	baseURL       *string
	tempDir       *string
	outputFormat  *string
	debug         *bool
	publish       *string
	publishSHA256 *string
	copyPath      *bool
}

type runtimeOptions struct {
	checkOnly     bool
	assumeYes     bool
	dbPath        string
	baseURL       string
	tempDir       string
	outputFormat  string
	debug         bool
	publish       string
	publishSHA256 string
	copyPath      bool

	maxBytes     int64
	timeout      time.Duration
	checksumFile string
}

func registerFlags(fs *flag.FlagSet) runtimeFlags {
	return runtimeFlags{
		version:       fs.Bool("version", false, "Print version information and exit"),
		checkOnly:     fs.Bool("check", false, "Only report whether an update is available"),
		assumeYes:     fs.Bool("yes", config.GetBool(config.KeyUpdateAssumeYes), "Download without asking for confirmation"),
		dbPath:        fs.String("db-path", config.GetString(config.KeyStorePath), "Path to the settings database"),
		baseURL:       fs.String("base-url", config.GetString(config.KeyUpdateBaseURL), "Update server base URL (https only)"),
		tempDir:       fs.String("temp-dir", config.GetString(config.KeyUpdateTempDir), "Directory update artifacts are downloaded into"),
		outputFormat:  fs.String("output-format", config.GetString(config.KeyOutputFormat), "Output style (rich, light, plain)"),
		debug:         fs.Bool("debug", config.GetBool(config.KeyDebug), "Write a debug log to ~/.officeapp/debug.log"),
		publish:       fs.String("publish", "", "Record VERSION as the current release and exit"),
		publishSHA256: fs.String("publish-sha256", "", "SHA-256 of the published artifact (with -publish)"),
		copyPath:      fs.Bool("copy-path", false, "Copy the downloaded artifact path to the clipboard"),
	}
}

// computeRuntimeOptions merges parsed flags over configuration. A flag only
// wins when it was set explicitly on the command line.
func computeRuntimeOptions(fs *flag.FlagSet, flags runtimeFlags) runtimeOptions {
	visited := map[string]struct{}{}
	fs.Visit(func(f *flag.Flag) {
		visited[f.Name] = struct{}{}
	})

	defaults := config.Update()
	opts := runtimeOptions{
		checkOnly:     *flags.checkOnly,
		assumeYes:     config.GetBool(config.KeyUpdateAssumeYes),
		dbPath:        strings.TrimSpace(config.GetString(config.KeyStorePath)),
		baseURL:       defaults.BaseURL,
		tempDir:       defaults.TempDir,
		outputFormat:  strings.TrimSpace(config.GetString(config.KeyOutputFormat)),
		debug:         config.GetBool(config.KeyDebug),
		publish:       strings.TrimSpace(*flags.publish),
		publishSHA256: strings.TrimSpace(*flags.publishSHA256),
		copyPath:      *flags.copyPath,
		maxBytes:      defaults.MaxBytes,
		timeout:       defaults.Timeout,
		checksumFile:  defaults.ChecksumFile,
	}

	if flagWasExplicitlySet(fs, "yes", visited) {
		opts.assumeYes = *flags.assumeYes
	}
	if flagWasExplicitlySet(fs, "db-path", visited) {
		opts.dbPath = strings.TrimSpace(*flags.dbPath)
	}
	if flagWasExplicitlySet(fs, "base-url", visited) {
		if s := strings.TrimSpace(*flags.baseURL); s != "" {
			opts.baseURL = s
		}
	}
	if flagWasExplicitlySet(fs, "temp-dir", visited) {
		if s := strings.TrimSpace(*flags.tempDir); s != "" {
			opts.tempDir = s
		}
	}
	if flagWasExplicitlySet(fs, "output-format", visited) {
		opts.outputFormat = strings.TrimSpace(*flags.outputFormat)
	}
	if flagWasExplicitlySet(fs, "debug", visited) {
		opts.debug = *flags.debug
	}
	return opts
}

func flagWasExplicitlySet(fs *flag.FlagSet, name string, visited map[string]struct{}) bool {
	if _, ok := visited[name]; ok {
		return true
	}
	f := fs.Lookup(name)
	if f == nil {
		return false
	}
	return f.Value.String() != f.DefValue
}
