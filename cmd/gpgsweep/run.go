package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/gookit/color"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/gpgsweep/gpgsweep/config"
	"github.com/gpgsweep/gpgsweep/search"
	"github.com/gpgsweep/gpgsweep/session"
	"github.com/gpgsweep/gpgsweep/space"
	"github.com/gpgsweep/gpgsweep/verify"
)

var (
	configPath     string
	targetFile     string
	alphabetFlag   string
	minLength      int
	maxLength      int
	jobsFlag       int
	chunkFlag      int
	flushFlag      int
	reportInterval float64
	verifierFlag   string
	gpgPath        string
	sessionPath    string
)

var runCmd = &cobra.Command{
	Use:   "run [FILE]",
	Short: "Search for the passphrase of an encrypted file",
	Long: "Search for the passphrase of a symmetrically encrypted file.\n\n" +
		"On success the passphrase is printed alone on the last line of stdout.\n" +
		"Exit status: 0 found, 1 not found, 2 bad input or missing file, 130 interrupted.",
	Args: cobra.MaximumNArgs(1),
	RunE: runCommand,
}

func init() {
	d := config.Default()
	f := runCmd.Flags()
	f.StringVarP(&configPath, "config", "c", "", "TOML job file; flags given explicitly override it")
	f.StringVarP(&targetFile, "file", "f", "", "Path to the encrypted .gpg/.pgp file")
	f.StringVarP(&alphabetFlag, "alphabet", "a", d.Space.Alphabet, fmt.Sprintf("Alphabet preset %v or literal symbols", space.Presets()))
	f.IntVar(&minLength, "min", d.Space.Min, "Minimum passphrase length")
	f.IntVar(&maxLength, "max", d.Space.Max, "Maximum passphrase length")
	f.IntVarP(&jobsFlag, "jobs", "j", d.Search.Jobs, "Worker count (0 = number of CPUs)")
	f.IntVar(&chunkFlag, "chunk", d.Search.Chunk, "Candidates per batch handed to a worker")
	f.IntVar(&flushFlag, "flush", d.Search.Flush, "Attempts a worker accumulates before updating the shared counter")
	f.Float64Var(&reportInterval, "report-interval", d.Search.ReportInterval, "Seconds between throughput reports")
	f.StringVar(&verifierFlag, "verifier", d.Verify.Method, "How candidates are checked: gpg or openpgp")
	f.StringVar(&gpgPath, "gpg", d.Verify.GPG, "gpg binary used by the gpg verifier")
	f.StringVar(&sessionPath, "session", "", "Checkpoint file; an existing matching session is resumed")
}

// loadJob layers explicitly set flags over the job file, or over the
// defaults when there is no job file.
func loadJob(cmd *cobra.Command, args []string) (*config.Job, error) {
	job := config.Default()
	if configPath != "" {
		var err error
		job, err = config.LoadJobFromFile(configPath)
		if err != nil {
			return nil, err
		}
	}

	flags := cmd.Flags()
	set := func(name string, apply func()) {
		if configPath == "" || flags.Changed(name) {
			apply()
		}
	}
	set("file", func() {
		if targetFile != "" {
			job.Target.File = targetFile
		}
	})
	if len(args) == 1 {
		job.Target.File = args[0]
	}
	set("alphabet", func() { job.Space.Alphabet = alphabetFlag })
	set("min", func() { job.Space.Min = minLength })
	set("max", func() { job.Space.Max = maxLength })
	set("jobs", func() { job.Search.Jobs = jobsFlag })
	set("chunk", func() { job.Search.Chunk = chunkFlag })
	set("flush", func() { job.Search.Flush = flushFlag })
	set("report-interval", func() { job.Search.ReportInterval = reportInterval })
	set("verifier", func() { job.Verify.Method = verifierFlag })
	set("gpg", func() { job.Verify.GPG = gpgPath })
	set("session", func() {
		if sessionPath != "" {
			job.Session.File = sessionPath
		}
	})
	return job, nil
}

func runCommand(cmd *cobra.Command, args []string) error {
	job, err := loadJob(cmd, args)
	if err != nil {
		return &exitError{code: exitBadInput, err: err}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runJob(ctx, job, cmd.OutOrStdout(), cmd.ErrOrStderr())
}

// newVerifier is replaced in tests.
var newVerifier = buildVerifier

func buildVerifier(job *config.Job, data []byte) (search.Verifier, error) {
	switch job.Verify.Method {
	case config.MethodOpenPGP:
		return verify.NewOpenPGPFromBytes(data)
	default:
		return verify.NewGPG(job.Verify.GPG, job.Target.File), nil
	}
}

// runJob validates the job, runs the search and reports the outcome. The
// returned error carries the exit code.
func runJob(ctx context.Context, job *config.Job, stdout, stderr io.Writer) error {
	sp, err := job.Validate()
	if err != nil {
		return &exitError{code: exitBadInput, err: err}
	}

	data, err := os.ReadFile(job.Target.File)
	if errors.Is(err, os.ErrNotExist) {
		return &exitError{code: exitBadInput, err: fmt.Errorf("file does not exist: %s", job.Target.File)}
	}
	if err != nil {
		return &exitError{code: exitBadInput, err: fmt.Errorf("cannot read %s: %w", job.Target.File, err)}
	}

	verifier, err := newVerifier(job, data)
	if err != nil {
		return &exitError{code: exitBadInput, err: fmt.Errorf("loading %s: %w", job.Target.File, err)}
	}

	coordOpts := []search.Option{
		search.WithJobs(job.Search.Jobs),
		search.WithChunkSize(job.Search.Chunk),
		search.WithFlushThreshold(job.Search.Flush),
		search.WithReportInterval(job.ReportEvery()),
		search.WithReporter(&search.ColorReporter{Writer: stderr}),
		search.WithLogger(log.Logger),
	}

	var sess *session.Session
	if job.Session.File != "" {
		var resumed bool
		sess, resumed, err = session.Open(job.Session.File, job.Target.File, session.Fingerprint(data, sp), sp)
		if err != nil {
			return &exitError{code: exitBadInput, err: err}
		}
		if resumed && sess.Found != "" {
			fmt.Fprintln(stderr, color.Green.Sprintf("[+] Session %s already found the passphrase", sess.ID))
			fmt.Fprintln(stdout, sess.Found)
			return nil
		}
		if resumed {
			log.Info().Str("session", sess.ID).Uint64("offset", sess.Offset).Uint64("attempts", sess.Attempts).Msg("Resuming session")
		}
		coordOpts = append(coordOpts, search.WithCheckpointer(sess), search.WithResumeOffset(sess.Offset))
	}

	coord, err := search.New(sp, verifier, coordOpts...)
	if err != nil {
		return &exitError{code: exitBadInput, err: err}
	}

	fmt.Fprintf(stderr, "[i] File: %s\n", job.Target.File)
	fmt.Fprintf(stderr, "[i] Charset: '%s'  Length: %d..%d  Candidates: %s\n",
		sp.Alphabet, sp.MinLength, sp.MaxLength, sp.Size().String())
	fmt.Fprintf(stderr, "[i] jobs=%d  chunk=%d  verifier=%s  report-interval=%gs\n",
		coord.Jobs(), job.Search.Chunk, job.Verify.Method, job.Search.ReportInterval)

	res, err := coord.Run(ctx)
	if err != nil {
		return &exitError{code: exitBadInput, err: err}
	}
	fmt.Fprint(stderr, search.FormatResult(res))

	switch res.State {
	case search.Found:
		finishSession(sess, string(res.Match), true)
		// Last line of stdout, for callers capturing the result.
		fmt.Fprintln(stdout, res.Match)
		return nil
	case search.Exhausted:
		finishSession(sess, "", false)
		return &exitError{code: exitExhausted}
	default:
		if sess != nil {
			fmt.Fprintf(stderr, "[i] Progress saved to %s\n", sess.Path())
		}
		return &exitError{code: exitInterrupted}
	}
}

func finishSession(sess *session.Session, match string, found bool) {
	if sess == nil {
		return
	}
	if err := sess.Finish(match, found); err != nil {
		log.Warn().Err(err).Str("session", sess.Path()).Msg("Failed to save session")
	}
}
