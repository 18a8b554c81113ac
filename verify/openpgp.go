package verify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/armor"
	"github.com/ProtonMail/go-crypto/openpgp/packet"
)

var errWrongPassphrase = errors.New("passphrase rejected")

var armorHeader = []byte("-----BEGIN PGP MESSAGE-----")

// OpenPGP verifies candidates in-process against a symmetrically encrypted
// OpenPGP message. The message is read once and kept in memory.
type OpenPGP struct {
	data   []byte
	config *packet.Config
}

// NewOpenPGP loads the target message from path.
func NewOpenPGP(path string) (*OpenPGP, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return NewOpenPGPFromBytes(data)
}

// NewOpenPGPFromBytes accepts a binary or ASCII-armored message.
func NewOpenPGPFromBytes(data []byte) (*OpenPGP, error) {
	if bytes.Contains(data, armorHeader) {
		block, err := armor.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decoding armor: %w", err)
		}
		data, err = io.ReadAll(block.Body)
		if err != nil {
			return nil, fmt.Errorf("reading armored body: %w", err)
		}
	}
	if len(data) == 0 {
		return nil, errors.New("empty OpenPGP message")
	}
	return &OpenPGP{data: data}, nil
}

func (o *OpenPGP) Verify(ctx context.Context, candidate string) bool {
	if ctx.Err() != nil {
		return false
	}

	// ReadMessage keeps prompting until a key works, so answer only once.
	asked := false
	prompt := func(keys []openpgp.Key, symmetric bool) ([]byte, error) {
		if asked || !symmetric {
			return nil, errWrongPassphrase
		}
		asked = true
		return []byte(candidate), nil
	}

	md, err := openpgp.ReadMessage(bytes.NewReader(o.data), openpgp.EntityList{}, prompt, o.config)
	if err != nil {
		return false
	}
	// The integrity check only runs once the plaintext is fully consumed.
	if _, err := io.Copy(io.Discard, md.UnverifiedBody); err != nil {
		return false
	}
	return true
}
