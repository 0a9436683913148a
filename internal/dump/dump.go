// Package dump writes observed frames and decoded packets to disk for
// protocol debugging. Components accept an Observer and run unchanged
// without one.
package dump

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/1ureka/soegate/internal/protocol"
	"github.com/1ureka/soegate/internal/util"
)

type Direction string

const (
	In  Direction = "in"
	Out Direction = "out"
)

// Observer sees raw frames and decoded packets as they pass a component.
type Observer interface {
	Frame(component string, dir Direction, data []byte)
	Packet(component string, dir Direction, msg protocol.Message)
}

// Nop discards everything.
type Nop struct{}

func (Nop) Frame(string, Direction, []byte)            {}
func (Nop) Packet(string, Direction, protocol.Message) {}

// OrNop returns o, or Nop when o is nil.
func OrNop(o Observer) Observer {
	if o == nil {
		return Nop{}
	}
	return o
}

// Dir writes each frame to <component>_<dir>_<n>.dat and each decoded
// packet to <component>_<dir>_<n>_<name>.json inside one directory.
type Dir struct {
	path string
	seq  atomic.Uint64
}

// NewDir creates path if needed.
func NewDir(path string) (*Dir, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("dump: create %s: %w", path, err)
	}
	return &Dir{path: path}, nil
}

func (d *Dir) Frame(component string, dir Direction, data []byte) {
	n := d.seq.Add(1)
	name := filepath.Join(d.path, fmt.Sprintf("%s_%s_%d.dat", component, dir, n))
	if err := os.WriteFile(name, data, 0o644); err != nil {
		util.LogWarning("dump: %v", err)
	}
}

func (d *Dir) Packet(component string, dir Direction, msg protocol.Message) {
	data, err := json.MarshalIndent(msg, "", "  ")
	if err != nil {
		util.LogWarning("dump: marshal %s: %v", msg.Name(), err)
		return
	}
	n := d.seq.Add(1)
	name := filepath.Join(d.path, fmt.Sprintf("%s_%s_%d_%s.json", component, dir, n, msg.Name()))
	if err := os.WriteFile(name, data, 0o644); err != nil {
		util.LogWarning("dump: %v", err)
	}
}
