package kex

import (
	"fmt"
	"time"
)

// NoGroup is the sentinel consumer-group value meaning "this worker has no
// consumer group configured."
const NoGroup = "no group"

// clientID is the fixed string kex sends on every request, matching what a
// kafka_ex-style worker has always sent.
const clientID = "kafka_ex"

// Default config values (§6.3).
const (
	DefaultMetadataUpdateInterval = 30 * time.Second
	DefaultCoordinatorInterval    = 30 * time.Second
	DefaultSyncTimeout            = 1000 * time.Millisecond

	metadataRetryCount = 3
	metadataRetryDelay = 300 * time.Millisecond

	coordinatorRetryCount = 3
	coordinatorRetryDelay = 400 * time.Millisecond

	streamWaitTime = 900 * time.Millisecond
	streamMinBytes = 1
	streamMaxBytes = 1_000_000
)

// CompressionCodec selects the produce/fetch compression codec (expansion:
// §6.3 of SPEC_FULL.md).
type CompressionCodec uint8

const (
	CompressionNone CompressionCodec = iota
	CompressionGzip
	CompressionSnappy
	CompressionLZ4
	CompressionZstd
)

// SASLMechanism selects the authentication mechanism used when opening a
// broker connection (expansion: §6.3/§4 of SPEC_FULL.md).
type SASLMechanism uint8

const (
	SASLNone SASLMechanism = iota
	SASLPlain
	SASLScramSHA256
	SASLScramSHA512
)

// BrokerAddr is a seed (host, port) pair.
type BrokerAddr struct {
	Host string
	Port int32
}

func (a BrokerAddr) String() string {
	return fmt.Sprintf("%s:%d", a.Host, a.Port)
}

type cfg struct {
	seeds []BrokerAddr

	consumerGroup string

	metadataUpdateInterval time.Duration
	coordinatorInterval    time.Duration
	syncTimeout            time.Duration

	logger Logger

	compression CompressionCodec
	sasl        SASLMechanism
	saslUser    string
	saslPass    string

	dialer NetworkClient
}

func defaultCfg() cfg {
	return cfg{
		consumerGroup:          NoGroup,
		metadataUpdateInterval: DefaultMetadataUpdateInterval,
		coordinatorInterval:    DefaultCoordinatorInterval,
		syncTimeout:            DefaultSyncTimeout,
		logger:                 NopLogger{},
		compression:            CompressionNone,
		sasl:                   SASLNone,
	}
}

// Opt configures a Client at construction time, teacher-style functional
// options over a cfg struct.
type Opt func(*cfg)

// SeedBrokers sets the initial broker list the worker dials at startup.
func SeedBrokers(addrs ...BrokerAddr) Opt {
	return func(c *cfg) { c.seeds = addrs }
}

// ConsumerGroup configures the worker's consumer group. Pass NoGroup (or
// leave unset) to run without one.
func ConsumerGroup(group string) Opt {
	return func(c *cfg) {
		if group == "" {
			group = NoGroup
		}
		c.consumerGroup = group
	}
}

// MetadataRefreshInterval sets the metadata ticker period.
func MetadataRefreshInterval(d time.Duration) Opt {
	return func(c *cfg) { c.metadataUpdateInterval = d }
}

// CoordinatorRefreshInterval sets the coordinator ticker period.
func CoordinatorRefreshInterval(d time.Duration) Opt {
	return func(c *cfg) { c.coordinatorInterval = d }
}

// SyncTimeout sets the per-exchange synchronous request timeout.
func SyncTimeout(d time.Duration) Opt {
	return func(c *cfg) { c.syncTimeout = d }
}

// WithLogger installs a Logger; the default is NopLogger.
func WithLogger(l Logger) Opt {
	return func(c *cfg) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithCompression selects the produce/fetch compression codec.
func WithCompression(codec CompressionCodec) Opt {
	return func(c *cfg) { c.compression = codec }
}

// WithSASL configures SASL authentication for every broker connection.
func WithSASL(mechanism SASLMechanism, user, pass string) Opt {
	return func(c *cfg) {
		c.sasl = mechanism
		c.saslUser = user
		c.saslPass = pass
	}
}

// withNetworkClient overrides the NetworkClient collaborator (cfg.dialer)
// that startActor otherwise creates as a plain TCP client.
func withNetworkClient(nc NetworkClient) Opt {
	return func(c *cfg) { c.dialer = nc }
}

func (c cfg) validate() error {
	if len(c.seeds) == 0 {
		return fmt.Errorf("kex: at least one seed broker is required")
	}
	if c.metadataUpdateInterval <= 0 {
		return fmt.Errorf("kex: metadata_update_interval must be positive")
	}
	if c.coordinatorInterval <= 0 {
		return fmt.Errorf("kex: consumer_group_update_interval must be positive")
	}
	if c.syncTimeout <= 0 {
		return fmt.Errorf("kex: sync_timeout must be positive")
	}
	if c.consumerGroup == "" {
		return fmt.Errorf("kex: consumer_group must be set or NoGroup")
	}
	return nil
}

func (c cfg) hasGroup() bool {
	return c.consumerGroup != NoGroup
}
