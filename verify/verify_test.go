package verify

import (
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/armor"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gpgsweep/gpgsweep/search"
	"github.com/gpgsweep/gpgsweep/space"
)

func encrypt(t *testing.T, passphrase string, armored bool) []byte {
	t.Helper()
	var buf bytes.Buffer
	var out io.WriteCloser = nopCloser{&buf}
	if armored {
		w, err := armor.Encode(&buf, "PGP MESSAGE", nil)
		require.NoError(t, err)
		out = w
	}
	pt, err := openpgp.SymmetricallyEncrypt(out, []byte(passphrase), nil, nil)
	require.NoError(t, err)
	_, err = pt.Write([]byte("attack at dawn\n"))
	require.NoError(t, err)
	require.NoError(t, pt.Close())
	require.NoError(t, out.Close())
	return buf.Bytes()
}

type nopCloser struct{ *bytes.Buffer }

func (nopCloser) Close() error { return nil }

func TestOpenPGPVerify(t *testing.T) {
	for _, armored := range []bool{false, true} {
		name := "binary"
		if armored {
			name = "armored"
		}
		t.Run(name, func(t *testing.T) {
			v, err := NewOpenPGPFromBytes(encrypt(t, "ab", armored))
			require.NoError(t, err)

			ctx := context.Background()
			assert.True(t, v.Verify(ctx, "ab"))
			assert.False(t, v.Verify(ctx, "ba"))
			assert.False(t, v.Verify(ctx, ""))
			// Still works after failed attempts.
			assert.True(t, v.Verify(ctx, "ab"))
		})
	}
}

func TestOpenPGPRejectsGarbage(t *testing.T) {
	_, err := NewOpenPGPFromBytes(nil)
	assert.Error(t, err)

	v, err := NewOpenPGPFromBytes([]byte("not an openpgp message"))
	require.NoError(t, err)
	assert.False(t, v.Verify(context.Background(), "anything"))
}

func TestOpenPGPCancelledContext(t *testing.T) {
	v, err := NewOpenPGPFromBytes(encrypt(t, "ab", false))
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, v.Verify(ctx, "ab"))
}

func TestOpenPGPFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secret.gpg")
	require.NoError(t, os.WriteFile(path, encrypt(t, "ab", false), 0o600))
	v, err := NewOpenPGP(path)
	require.NoError(t, err)
	assert.True(t, v.Verify(context.Background(), "ab"))

	_, err = NewOpenPGP(filepath.Join(t.TempDir(), "missing.gpg"))
	assert.Error(t, err)
}

func TestGPGMissingBinary(t *testing.T) {
	g := NewGPG(filepath.Join(t.TempDir(), "no-such-gpg"), "target.gpg")
	assert.False(t, g.Verify(context.Background(), "ab"))
}

func TestGPGArgs(t *testing.T) {
	g := NewGPG("", "secret.gpg")
	assert.Equal(t, "gpg", g.Path)
	assert.Equal(t, []string{
		"--batch", "--yes", "--no-tty",
		"--pinentry-mode", "loopback",
		"--passphrase", "hunter2",
		"--decrypt", "secret.gpg",
	}, g.args("hunter2"))
}

func TestGPGVerify(t *testing.T) {
	bin, err := exec.LookPath("gpg")
	if err != nil {
		t.Skip("gpg not installed")
	}
	t.Setenv("GNUPGHOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "secret.gpg")
	require.NoError(t, os.WriteFile(path, encrypt(t, "ab", false), 0o600))

	g := NewGPG(bin, path)
	assert.False(t, g.Verify(context.Background(), "ba"))
	assert.True(t, g.Verify(context.Background(), "ab"))
}

// The concrete scenarios: space {a,b} with lengths 1..2 against a real
// encrypted message.
func TestSearchAgainstEncryptedMessage(t *testing.T) {
	alphabet, err := space.NewAlphabet("ab")
	require.NoError(t, err)
	sp, err := space.New(alphabet, 1, 2)
	require.NoError(t, err)

	t.Run("passphrase in space", func(t *testing.T) {
		v, err := NewOpenPGPFromBytes(encrypt(t, "ab", false))
		require.NoError(t, err)
		c, err := search.New(sp, v, search.WithJobs(2), search.WithLogger(zerolog.Nop()))
		require.NoError(t, err)
		res, err := c.Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, search.Found, res.State)
		assert.Equal(t, space.Candidate("ab"), res.Match)
		assert.LessOrEqual(t, res.Attempts, uint64(6))
	})

	t.Run("passphrase outside space", func(t *testing.T) {
		v, err := NewOpenPGPFromBytes(encrypt(t, "zz", false))
		require.NoError(t, err)
		c, err := search.New(sp, v, search.WithJobs(2), search.WithLogger(zerolog.Nop()))
		require.NoError(t, err)
		res, err := c.Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, search.Exhausted, res.State)
		assert.Equal(t, uint64(6), res.Attempts)
	})
}
