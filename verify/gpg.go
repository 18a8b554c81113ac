// Package verify holds the collaborators that test one candidate passphrase
// against an encrypted target. Every failure mode, from a missing binary to
// a corrupt file, is reported as a plain negative result.
package verify

import (
	"context"
	"io"
	"os/exec"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// GPG verifies candidates by running the gpg binary in batch mode against
// the target and checking for a zero exit status.
type GPG struct {
	Path   string // gpg binary, looked up on PATH when bare
	Target string
	log    zerolog.Logger
}

func NewGPG(path, target string) *GPG {
	if path == "" {
		path = "gpg"
	}
	return &GPG{
		Path:   path,
		Target: target,
		log:    log.With().Str("verifier", "gpg").Logger(),
	}
}

func (g *GPG) args(candidate string) []string {
	return []string{
		"--batch", "--yes", "--no-tty",
		"--pinentry-mode", "loopback",
		"--passphrase", candidate,
		"--decrypt", g.Target,
	}
}

func (g *GPG) Verify(ctx context.Context, candidate string) bool {
	cmd := exec.CommandContext(ctx, g.Path, g.args(candidate)...)
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard
	if err := cmd.Run(); err != nil {
		if _, ok := err.(*exec.ExitError); !ok {
			g.log.Trace().Err(err).Msg("gpg did not run")
		}
		return false
	}
	return true
}
