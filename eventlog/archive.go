// eventlog/archive.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package eventlog

import (
	"errors"
	"io"
	"os"
	"sync"

	"github.com/mmp/airspace/sim"

	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"
)

// Archive writes events as a zstd-compressed stream of msgpack-encoded
// sim.Events, for replay and offline analysis.
type Archive struct {
	mu  sync.Mutex
	w   io.WriteCloser
	zw  *zstd.Encoder
	enc *msgpack.Encoder
	n   int
}

func NewArchive(w io.WriteCloser) (*Archive, error) {
	zw, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedBetterCompression), zstd.WithEncoderConcurrency(1))
	if err != nil {
		return nil, err
	}
	return &Archive{w: w, zw: zw, enc: msgpack.NewEncoder(zw)}, nil
}

func CreateArchive(filename string) (*Archive, error) {
	f, err := os.Create(filename)
	if err != nil {
		return nil, err
	}
	a, err := NewArchive(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return a, nil
}

func (a *Archive) Write(events []sim.Event) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	for i := range events {
		if err := a.enc.Encode(&events[i]); err != nil {
			return err
		}
		a.n++
	}
	return nil
}

// Len returns the number of events written so far.
func (a *Archive) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.n
}

func (a *Archive) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	err := a.zw.Close()
	if cerr := a.w.Close(); err == nil {
		err = cerr
	}
	return err
}

// ReadArchive returns all of the events stored in an archive.
func ReadArchive(r io.Reader) ([]sim.Event, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	dec := msgpack.NewDecoder(zr)
	var events []sim.Event
	for {
		var e sim.Event
		if err := dec.Decode(&e); errors.Is(err, io.EOF) {
			return events, nil
		} else if err != nil {
			return events, err
		}
		events = append(events, e)
	}
}
