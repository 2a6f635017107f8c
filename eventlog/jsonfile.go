// eventlog/jsonfile.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package eventlog

import (
	"bufio"
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"

	"github.com/mmp/airspace/sim"
)

// Record is the JSON form of an event: who did what, and the details.
type Record struct {
	Time     time.Time `json:"time"`
	Actor    string    `json:"actor"`
	Action   string    `json:"action"`
	Callsign string    `json:"callsign,omitempty"`
	Details  string    `json:"details"`
}

func MakeRecord(e sim.Event) Record {
	return Record{
		Time:     e.Time,
		Actor:    e.Actor,
		Action:   e.Type.String(),
		Callsign: e.Callsign,
		Details:  e.Detail,
	}
}

// JSONFile writes events as a JSON array of Records. The array is only
// terminated by Close, so the file is complete once the sink is closed.
type JSONFile struct {
	mu    sync.Mutex
	w     io.WriteCloser
	bw    *bufio.Writer
	first bool
}

func NewJSONFile(w io.WriteCloser) (*JSONFile, error) {
	j := &JSONFile{w: w, bw: bufio.NewWriter(w), first: true}
	if _, err := j.bw.WriteString("[\n"); err != nil {
		return nil, err
	}
	return j, nil
}

// CreateJSONFile creates (or truncates) the named file and returns a
// JSONFile writing to it.
func CreateJSONFile(filename string) (*JSONFile, error) {
	f, err := os.Create(filename)
	if err != nil {
		return nil, err
	}
	j, err := NewJSONFile(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return j, nil
}

func (j *JSONFile) Write(events []sim.Event) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	for _, e := range events {
		b, err := json.MarshalIndent(MakeRecord(e), "  ", "  ")
		if err != nil {
			return err
		}
		if !j.first {
			j.bw.WriteString(",\n")
		}
		j.first = false
		j.bw.WriteString("  ")
		j.bw.Write(b)
	}
	// bufio.Writer errors are sticky, so checking the flush is enough.
	return j.bw.Flush()
}

func (j *JSONFile) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.bw.WriteString("\n]\n")
	err := j.bw.Flush()
	if cerr := j.w.Close(); err == nil {
		err = cerr
	}
	return err
}
