package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/gpgsweep/gpgsweep/search"
	"github.com/gpgsweep/gpgsweep/space"
)

const (
	MethodGPG     = "gpg"
	MethodOpenPGP = "openpgp"
)

// Job describes one search. It is read from a TOML job file and then
// overridden by command-line flags.
type Job struct {
	Target  TargetDetails  `toml:"target"`
	Space   SpaceDetails   `toml:"space"`
	Search  SearchDetails  `toml:"search"`
	Verify  VerifyDetails  `toml:"verify"`
	Session SessionDetails `toml:"session"`
}

type TargetDetails struct {
	File string `toml:"file,omitempty"`
}

type SpaceDetails struct {
	Alphabet string `toml:"alphabet,omitempty"`
	Min      int    `toml:"min"`
	Max      int    `toml:"max"`
}

type SearchDetails struct {
	Jobs           int     `toml:"jobs"`
	Chunk          int     `toml:"chunk"`
	Flush          int     `toml:"flush"`
	ReportInterval float64 `toml:"report_interval"` // seconds
}

type VerifyDetails struct {
	Method string `toml:"method,omitempty"`
	GPG    string `toml:"gpg,omitempty"`
}

type SessionDetails struct {
	File string `toml:"file,omitempty"`
}

// Default returns the job used when neither a job file nor flags say
// otherwise.
func Default() *Job {
	return &Job{
		Space: SpaceDetails{
			Alphabet: "lower",
			Min:      1,
			Max:      6,
		},
		Search: SearchDetails{
			Jobs:           0,
			Chunk:          search.DefaultChunkSize,
			Flush:          search.DefaultFlushThreshold,
			ReportInterval: search.DefaultReportInterval.Seconds(),
		},
		Verify: VerifyDetails{
			Method: MethodGPG,
			GPG:    "gpg",
		},
	}
}

func parseJob(f io.Reader) (*Job, error) {
	out := Default()
	_, err := toml.NewDecoder(f).Decode(out)
	return out, err
}

// LoadJobFromFile reads a job file. Relative target and session paths are
// resolved against the directory holding the job file.
func LoadJobFromFile(path string) (*Job, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	j, err := parseJob(f)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	dir := filepath.Dir(path)
	j.Target.File = resolve(dir, j.Target.File)
	j.Session.File = resolve(dir, j.Session.File)
	return j, nil
}

func resolve(dir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(dir, p))
}

var ErrNoTarget = errors.New("no target file given")

// Validate checks the job and returns the candidate space it describes.
func (j *Job) Validate() (space.Space, error) {
	if j.Target.File == "" {
		return space.Space{}, ErrNoTarget
	}
	a, err := space.ParseAlphabet(j.Space.Alphabet)
	if err != nil {
		return space.Space{}, err
	}
	sp, err := space.New(a, j.Space.Min, j.Space.Max)
	if err != nil {
		return space.Space{}, err
	}
	if j.Search.Jobs < 0 {
		return space.Space{}, fmt.Errorf("jobs must not be negative, got %d", j.Search.Jobs)
	}
	if j.Search.Chunk < 1 {
		return space.Space{}, fmt.Errorf("chunk must be at least 1, got %d", j.Search.Chunk)
	}
	if j.Search.Flush < 1 {
		return space.Space{}, fmt.Errorf("flush must be at least 1, got %d", j.Search.Flush)
	}
	if j.Search.ReportInterval < 0 {
		return space.Space{}, fmt.Errorf("report interval must not be negative, got %g", j.Search.ReportInterval)
	}
	switch j.Verify.Method {
	case MethodGPG, MethodOpenPGP:
	default:
		return space.Space{}, fmt.Errorf("unknown verify method %q (want %s or %s)", j.Verify.Method, MethodGPG, MethodOpenPGP)
	}
	return sp, nil
}

// ReportEvery converts the report interval to a duration.
func (j *Job) ReportEvery() time.Duration {
	return time.Duration(j.Search.ReportInterval * float64(time.Second))
}
