// Package config loads the session configuration snapshot described in
// the external-interfaces table: mode, wildcard selection, flow idle
// timeout, default queue, port-name queue bindings, and the default-flows
// sequence sent verbatim at construction. Config files are authored in
// HCL, the same language and libraries the rest of this stack's family of
// tools use for their configuration.
package config

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/hashicorp/hcl/v2/hclsimple"
)

// Mode selects how the output-policy engine resolves an unknown destination.
type Mode string

const (
	ModeHub    Mode = "hub"
	ModeNormal Mode = "normal"
	ModeLearn  Mode = "learn"
)

// NeverInstall and PermanentFlow are the two sentinel values max_idle may
// take alongside an ordinary non-negative number of seconds.
const (
	NeverInstall  = -1
	PermanentFlow = 0x7fffffff
)

// PortQueue is one entry of the port_queues map: a port name bound to a
// queue id, resolved to a port number once a matching features-reply
// arrives.
type PortQueue struct {
	Name    string `hcl:"name,label"`
	QueueID uint32 `hcl:"queue_id"`
}

// DefaultFlow is one pre-serialized message from default_flows, given as a
// hex string in the config file and decoded at load time.
type DefaultFlow struct {
	Hex string `hcl:"message"`
}

// file is the on-disk HCL shape.
type file struct {
	Mode         string        `hcl:"mode"`
	ExactFlows   bool          `hcl:"exact_flows,optional"`
	MaxIdle      *int          `hcl:"max_idle,optional"`
	DefaultQueue *uint32       `hcl:"default_queue,optional"`
	PortQueues   []PortQueue   `hcl:"port_queue,block"`
	DefaultFlows []DefaultFlow `hcl:"default_flow,block"`
}

// Options is the decoded, validated configuration snapshot a session is
// constructed with.
type Options struct {
	Mode         Mode
	ExactFlows   bool
	MaxIdle      int
	DefaultQueue uint32
	PortQueues   map[string]uint32
	DefaultFlows [][]byte
}

// NoQueue is the "no binding" sentinel for DefaultQueue. It has the same
// value as ofp.QueueIDNone, so a port that resolves to it gets a plain
// OUTPUT action rather than ENQUEUE.
const NoQueue = 0xffffffff

// Load reads and validates a session configuration from an HCL file.
func Load(path string) (Options, error) {
	var f file
	if err := hclsimple.DecodeFile(path, nil, &f); err != nil {
		return Options{}, fmt.Errorf("config: decode %s: %w", path, err)
	}
	return fromFile(f)
}

// LoadBytes decodes a session configuration from HCL source held in
// memory, useful for tests and for the init wizard's preview step.
func LoadBytes(filename string, data []byte) (Options, error) {
	var f file
	if err := hclsimple.Decode(filename, data, nil, &f); err != nil {
		return Options{}, fmt.Errorf("config: decode %s: %w", filename, err)
	}
	return fromFile(f)
}

func fromFile(f file) (Options, error) {
	opts := Options{
		Mode:         Mode(f.Mode),
		ExactFlows:   f.ExactFlows,
		MaxIdle:      60,
		DefaultQueue: NoQueue,
		PortQueues:   make(map[string]uint32, len(f.PortQueues)),
	}

	switch opts.Mode {
	case ModeHub, ModeNormal, ModeLearn:
	default:
		return Options{}, fmt.Errorf("config: mode must be one of hub, normal, learn, got %q", f.Mode)
	}

	if f.MaxIdle != nil {
		opts.MaxIdle = *f.MaxIdle
	}
	if f.DefaultQueue != nil {
		opts.DefaultQueue = *f.DefaultQueue
	}

	for _, pq := range f.PortQueues {
		if len(pq.Name) == 0 || len(pq.Name) > 16 {
			return Options{}, fmt.Errorf("config: port_queue name %q must be 1-16 bytes", pq.Name)
		}
		opts.PortQueues[pq.Name] = pq.QueueID
	}

	for i, df := range f.DefaultFlows {
		raw, err := hex.DecodeString(df.Hex)
		if err != nil {
			return Options{}, fmt.Errorf("config: default_flow[%d]: %w", i, err)
		}
		opts.DefaultFlows = append(opts.DefaultFlows, raw)
	}

	return opts, nil
}

// HandshakeTimeout is the minimum interval between the features-request
// retries the session sends on inbound messages while the datapath id is
// still unknown.
const HandshakeTimeout = time.Second
