package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	logLevel string
)

// Process exit codes.
const (
	exitFound       = 0
	exitExhausted   = 1
	exitBadInput    = 2
	exitInterrupted = 130
)

// exitError carries a process exit code out of a command. A nil err means
// the outcome was already reported and nothing more should be printed.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

func exitCode(err error) int {
	if err == nil {
		return exitFound
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	// Flag parsing and other cobra errors are usage errors.
	return exitBadInput
}

var rootCmd = &cobra.Command{
	Use:   "gpgsweep",
	Short: "Parallel passphrase search for symmetrically encrypted OpenPGP files",
	Long: "gpgsweep enumerates every passphrase over an alphabet within a length range,\n" +
		"tries them on a pool of workers and stops at the first one that decrypts the target.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging(cmd.ErrOrStderr(), logLevel)
	},
}

// setupLogging routes the global zerolog logger to a console writer on w.
// An unknown level falls back to info.
func setupLogging(w io.Writer, name string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: w})

	level, err := zerolog.ParseLevel(name)
	if err != nil || name == "" {
		fmt.Fprintf(w, "Invalid log level '%s', using 'info'\n", name)
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Set log level (trace, debug, info, warn, error)")
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runCmd)
}

func main() {
	err := rootCmd.Execute()
	var ee *exitError
	if err != nil && !(errors.As(err, &ee) && ee.err == nil) {
		fmt.Fprintln(os.Stderr, "ERROR:", err)
	}
	os.Exit(exitCode(err))
}
