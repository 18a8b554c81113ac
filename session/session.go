// Package session persists search progress so an interrupted run can pick up
// where it stopped. A session is tied to one target and one candidate space
// through a fingerprint; it is never reused for anything else.
package session

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/dgryski/go-farm"
	"github.com/google/uuid"
	"github.com/shamaton/msgpack/v2"

	"github.com/gpgsweep/gpgsweep/space"
)

// Record is the part of a session written to disk.
type Record struct {
	ID          string
	Fingerprint uint64
	Target      string
	Alphabet    string
	MinLength   int
	MaxLength   int
	Offset      uint64 // every candidate below this has been verified
	Attempts    uint64 // cumulative over every run of this session
	Found       string
	Done        bool
	UpdatedAt   int64
}

// Session is a Record bound to its file.
type Session struct {
	Record
	path string
	base uint64 // Attempts when this run started
}

func (s *Session) Serialize(w io.Writer) error {
	return msgpack.MarshalWrite(w, &s.Record)
}

func (s *Session) Deserialize(r io.Reader) error {
	return msgpack.UnmarshalRead(r, &s.Record)
}

// Fingerprint identifies a target and the space searched over it. Chunk
// size and pool size are left out: offsets do not depend on them.
func Fingerprint(target []byte, sp space.Space) uint64 {
	var b bytes.Buffer
	b.Write(target)
	b.WriteByte(0)
	b.WriteString(sp.Alphabet.String())
	b.WriteByte(0)
	b.WriteString(strconv.Itoa(sp.MinLength))
	b.WriteByte(':')
	b.WriteString(strconv.Itoa(sp.MaxLength))
	return farm.Fingerprint64(b.Bytes())
}

// New starts a fresh session that will be written to path.
func New(path, target string, fp uint64, sp space.Space) *Session {
	return &Session{
		Record: Record{
			ID:          uuid.NewString(),
			Fingerprint: fp,
			Target:      target,
			Alphabet:    sp.Alphabet.String(),
			MinLength:   sp.MinLength,
			MaxLength:   sp.MaxLength,
		},
		path: path,
	}
}

// Load reads a session file.
func Load(path string) (*Session, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	s := &Session{}
	if err := s.Deserialize(f); err != nil {
		return nil, fmt.Errorf("decoding session %s: %w", path, err)
	}
	s.path = path
	s.base = s.Attempts
	return s, nil
}

// Open resumes the session at path when it exists and carries the same
// fingerprint, and otherwise starts a new one. resumed reports which
// happened.
func Open(path, target string, fp uint64, sp space.Space) (s *Session, resumed bool, err error) {
	s, err = Load(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return New(path, target, fp, sp), false, nil
	case err != nil:
		return nil, false, err
	case s.Fingerprint != fp:
		return New(path, target, fp, sp), false, nil
	}
	return s, true, nil
}

func (s *Session) Path() string {
	return s.path
}

// Save writes the session atomically: a temp file in the same directory is
// renamed over the old one.
func (s *Session) Save() error {
	s.UpdatedAt = time.Now().Unix()
	var buf bytes.Buffer
	if err := s.Serialize(&buf); err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

// Checkpoint records progress of the current run. attempts counts this run
// only; earlier runs are already in the session.
func (s *Session) Checkpoint(offset, attempts uint64) error {
	if offset > s.Offset {
		s.Offset = offset
	}
	s.Attempts = s.base + attempts
	return s.Save()
}

// Finish marks the session as done, with the match if there was one.
func (s *Session) Finish(match string, found bool) error {
	s.Done = true
	if found {
		s.Found = match
	}
	return s.Save()
}
