// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package config

// CurrentSchemaVersion defines the current schema version of the configuration.
const CurrentSchemaVersion = "1.0"

// Backends understood by the queue bridge.
const (
	BackendNetlink = "netlink"
	BackendNFQueue = "nfqueue"
)

// Defaults applied to omitted fields.
const (
	DefaultQueueMaxLen   = 1024
	DefaultCopyRange     = 0xffff
	DefaultTable         = "hostblock"
	DefaultHook          = "output"
	DefaultMetricsListen = "127.0.0.1:9641"
	DefaultMetricsPath   = "/metrics"
)

// Config is the top-level hostblock configuration. Every block is optional;
// the blocked host given on the command line is merged into Filter.Hosts.
type Config struct {
	// Schema version for backward compatibility.
	// @default: "1.0"
	SchemaVersion string `hcl:"schema_version,optional" json:"schema_version,omitempty"`

	Queue   *QueueConfig   `hcl:"queue,block" json:"queue,omitempty"`
	Filter  *FilterConfig  `hcl:"filter,block" json:"filter,omitempty"`
	Rule    *RuleConfig    `hcl:"rule,block" json:"rule,omitempty"`
	Metrics *MetricsConfig `hcl:"metrics,block" json:"metrics,omitempty"`
	Log     *LogConfig     `hcl:"log,block" json:"log,omitempty"`
}

// QueueConfig selects and tunes the NFQUEUE connection.
type QueueConfig struct {
	// Queue number, as used by `-j NFQUEUE --queue-num` or `queue num`.
	// @default: 0
	Number int `hcl:"number,optional" json:"number"`

	// Kernel connection implementation.
	// @enum: netlink, nfqueue
	// @default: "netlink"
	Backend string `hcl:"backend,optional" json:"backend,omitempty"`

	// Maximum number of packets the kernel holds for this queue.
	// @default: 1024
	MaxLen int `hcl:"max_len,optional" json:"max_len,omitempty"`

	// Bytes of each packet copied to user space.
	// @default: 65535
	CopyRange int `hcl:"copy_range,optional" json:"copy_range,omitempty"`

	// Let the kernel accept packets instead of dropping them when the queue is full.
	// @default: false
	FailOpen bool `hcl:"fail_open,optional" json:"fail_open,omitempty"`

	// Socket receive buffer in bytes; 0 keeps the system default.
	// @default: 0
	ReadBuffer int `hcl:"read_buffer,optional" json:"read_buffer,omitempty"`
}

// FilterConfig controls what is inspected and blocked.
type FilterConfig struct {
	// Additional hostnames to block.
	// @example: ["ads.example.net"]
	Hosts []string `hcl:"hosts,optional" json:"hosts,omitempty"`

	// TCP destination ports whose payload is inspected.
	// @default: [80]
	Ports []int `hcl:"ports,optional" json:"ports,omitempty"`

	// Verdict for frames whose headers claim more bytes than were delivered.
	// @enum: forward, discard
	// @default: "forward"
	OnTruncated string `hcl:"on_truncated,optional" json:"on_truncated,omitempty"`
}

// RuleConfig manages the nftables rule that steers traffic into the queue.
type RuleConfig struct {
	// @default: false
	Enabled bool `hcl:"enabled,optional" json:"enabled"`

	// nftables table name (family ip).
	// @default: "hostblock"
	Table string `hcl:"table,optional" json:"table,omitempty"`

	// Netfilter hook of the base chain.
	// @enum: input, output, forward
	// @default: "output"
	Hook string `hcl:"hook,optional" json:"hook,omitempty"`
}

// MetricsConfig controls the Prometheus exporter.
type MetricsConfig struct {
	// @default: false
	Enabled bool `hcl:"enabled,optional" json:"enabled"`

	// @default: "127.0.0.1:9641"
	Listen string `hcl:"listen,optional" json:"listen,omitempty"`

	// @default: "/metrics"
	Path string `hcl:"path,optional" json:"path,omitempty"`
}

// LogConfig controls logging.
type LogConfig struct {
	// @enum: debug, info, warn, error
	// @default: "info"
	Level string `hcl:"level,optional" json:"level,omitempty"`

	// @default: false
	JSON bool `hcl:"json,optional" json:"json,omitempty"`
}

// Default returns a fully populated configuration.
func Default() *Config {
	c := &Config{}
	c.ApplyDefaults()
	return c
}

// ApplyDefaults fills omitted blocks and zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.SchemaVersion == "" {
		c.SchemaVersion = CurrentSchemaVersion
	}
	if c.Queue == nil {
		c.Queue = &QueueConfig{}
	}
	if c.Queue.Backend == "" {
		c.Queue.Backend = BackendNetlink
	}
	if c.Queue.MaxLen == 0 {
		c.Queue.MaxLen = DefaultQueueMaxLen
	}
	if c.Queue.CopyRange == 0 {
		c.Queue.CopyRange = DefaultCopyRange
	}

	if c.Filter == nil {
		c.Filter = &FilterConfig{}
	}
	if len(c.Filter.Ports) == 0 {
		c.Filter.Ports = []int{80}
	}
	if c.Filter.OnTruncated == "" {
		c.Filter.OnTruncated = "forward"
	}

	if c.Rule == nil {
		c.Rule = &RuleConfig{}
	}
	if c.Rule.Table == "" {
		c.Rule.Table = DefaultTable
	}
	if c.Rule.Hook == "" {
		c.Rule.Hook = DefaultHook
	}

	if c.Metrics == nil {
		c.Metrics = &MetricsConfig{}
	}
	if c.Metrics.Listen == "" {
		c.Metrics.Listen = DefaultMetricsListen
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}

	if c.Log == nil {
		c.Log = &LogConfig{}
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Ports returns Filter.Ports as uint16. Call after Validate.
func (c *Config) Ports() []uint16 {
	out := make([]uint16, 0, len(c.Filter.Ports))
	for _, p := range c.Filter.Ports {
		out = append(out, uint16(p))
	}
	return out
}
