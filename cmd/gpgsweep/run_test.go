package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gpgsweep/gpgsweep/config"
	"github.com/gpgsweep/gpgsweep/search"
	"github.com/gpgsweep/gpgsweep/session"
)

func writeTarget(t *testing.T, dir, passphrase string) string {
	t.Helper()
	var buf bytes.Buffer
	pt, err := openpgp.SymmetricallyEncrypt(&buf, []byte(passphrase), nil, nil)
	require.NoError(t, err)
	_, err = pt.Write([]byte("hello\n"))
	require.NoError(t, err)
	require.NoError(t, pt.Close())
	path := filepath.Join(dir, "msg.gpg")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
	return path
}

func smallJob(target string) *config.Job {
	job := config.Default()
	job.Target.File = target
	job.Space.Alphabet = "ab"
	job.Space.Min = 1
	job.Space.Max = 2
	job.Search.Jobs = 2
	job.Search.Chunk = 2
	job.Search.ReportInterval = 0
	job.Verify.Method = config.MethodOpenPGP
	return job
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	return lines[len(lines)-1]
}

func restoreLogging(t *testing.T) {
	logger, level := log.Logger, zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = logger
		zerolog.SetGlobalLevel(level)
	})
}

func TestSetupLogging(t *testing.T) {
	restoreLogging(t)

	var buf bytes.Buffer
	setupLogging(&buf, "debug")
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())
	log.Debug().Msg("visible")
	assert.Contains(t, buf.String(), "visible")

	buf.Reset()
	setupLogging(&buf, "loud")
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
	assert.Contains(t, buf.String(), "Invalid log level 'loud'")
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, exitCode(nil))
	assert.Equal(t, 1, exitCode(&exitError{code: exitExhausted}))
	assert.Equal(t, 130, exitCode(&exitError{code: exitInterrupted}))
	assert.Equal(t, 2, exitCode(errors.New("unknown flag: --bogus")))
	assert.Equal(t, "exit status 1", (&exitError{code: 1}).Error())

	inner := errors.New("boom")
	ee := &exitError{code: exitBadInput, err: inner}
	assert.ErrorIs(t, ee, inner)
	assert.Equal(t, "boom", ee.Error())
}

func TestRunJobFound(t *testing.T) {
	target := writeTarget(t, t.TempDir(), "ab")
	var stdout, stderr bytes.Buffer
	err := runJob(context.Background(), smallJob(target), &stdout, &stderr)
	require.NoError(t, err)
	assert.Equal(t, "ab", lastLine(stdout.String()))
	assert.Contains(t, stderr.String(), "[+] FOUND:")
	assert.Contains(t, stderr.String(), "'ab'")
	assert.Contains(t, stderr.String(), "[i] File: "+target)
}

func TestRunJobExhausted(t *testing.T) {
	target := writeTarget(t, t.TempDir(), "zz")
	var stdout, stderr bytes.Buffer
	err := runJob(context.Background(), smallJob(target), &stdout, &stderr)
	assert.Equal(t, exitExhausted, exitCode(err))
	assert.Empty(t, stdout.String())
	assert.Contains(t, stderr.String(), "[-] Not found")
}

func TestRunJobMissingTarget(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.gpg")
	var stdout, stderr bytes.Buffer
	err := runJob(context.Background(), smallJob(missing), &stdout, &stderr)
	assert.Equal(t, exitBadInput, exitCode(err))
	assert.ErrorContains(t, err, "does not exist")
	assert.Empty(t, stdout.String())
}

func TestRunJobInvalid(t *testing.T) {
	target := writeTarget(t, t.TempDir(), "ab")
	job := smallJob(target)
	job.Space.Min = 3
	err := runJob(context.Background(), job, &bytes.Buffer{}, &bytes.Buffer{})
	assert.Equal(t, exitBadInput, exitCode(err))

	job = smallJob("")
	err = runJob(context.Background(), job, &bytes.Buffer{}, &bytes.Buffer{})
	assert.ErrorIs(t, err, config.ErrNoTarget)
}

func TestRunJobInterrupted(t *testing.T) {
	target := writeTarget(t, t.TempDir(), "ab")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := runJob(ctx, smallJob(target), &bytes.Buffer{}, &bytes.Buffer{})
	assert.Equal(t, exitInterrupted, exitCode(err))
}

func TestRunJobSession(t *testing.T) {
	dir := t.TempDir()
	target := writeTarget(t, dir, "ba")
	job := smallJob(target)
	job.Session.File = filepath.Join(dir, "run.session")

	var stdout bytes.Buffer
	require.NoError(t, runJob(context.Background(), job, &stdout, &bytes.Buffer{}))
	assert.Equal(t, "ba", lastLine(stdout.String()))

	s, err := session.Load(job.Session.File)
	require.NoError(t, err)
	assert.True(t, s.Done)
	assert.Equal(t, "ba", s.Found)

	// A finished session answers without searching again.
	stdout.Reset()
	var stderr bytes.Buffer
	require.NoError(t, runJob(context.Background(), job, &stdout, &stderr))
	assert.Equal(t, "ba", lastLine(stdout.String()))
	assert.Contains(t, stderr.String(), "already found")
}

func TestRunJobResumeRetriesCutShortCandidate(t *testing.T) {
	dir := t.TempDir()
	target := writeTarget(t, dir, "b")
	job := smallJob(target)
	job.Search.Jobs = 1
	job.Session.File = filepath.Join(dir, "run.session")

	// First run: the process is told to stop while "b" is being verified,
	// so that verification never gets to answer.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	newVerifier = func(job *config.Job, data []byte) (search.Verifier, error) {
		inner, err := buildVerifier(job, data)
		if err != nil {
			return nil, err
		}
		return search.VerifierFunc(func(vctx context.Context, c string) bool {
			if c == "b" {
				cancel()
				return false
			}
			return inner.Verify(vctx, c)
		}), nil
	}
	t.Cleanup(func() { newVerifier = buildVerifier })

	var stdout bytes.Buffer
	err := runJob(ctx, job, &stdout, &bytes.Buffer{})
	assert.Equal(t, exitInterrupted, exitCode(err))
	assert.Empty(t, stdout.String())

	s, err := session.Load(job.Session.File)
	require.NoError(t, err)
	assert.False(t, s.Done)
	assert.Equal(t, uint64(0), s.Offset, "\"b\" was never answered and must not be skipped")

	// Second run resumes the session and tries "b" again.
	newVerifier = buildVerifier
	require.NoError(t, runJob(context.Background(), job, &stdout, &bytes.Buffer{}))
	assert.Equal(t, "b", lastLine(stdout.String()))
}

func TestRunCommandWithJobFile(t *testing.T) {
	dir := t.TempDir()
	writeTarget(t, dir, "ba")
	jobFile := filepath.Join(dir, "job.toml")
	require.NoError(t, os.WriteFile(jobFile, []byte(`
[target]
file = "msg.gpg"

[space]
alphabet = "ab"
min = 1
max = 1

[search]
jobs = 2
chunk = 1
report_interval = 0

[verify]
method = "openpgp"
`), 0o600))

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs([]string{"run", "--config", jobFile, "--max", "2"})
	restoreLogging(t)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	require.NoError(t, rootCmd.Execute())
	assert.Equal(t, "ba", lastLine(stdout.String()))
	assert.Contains(t, stderr.String(), "Length: 1..2")
}
