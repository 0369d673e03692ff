package shard

import "github.com/faithful-data/shardcodec/codec"

// Name is the configuration identifier for this codec (spec §6: "The
// codec is identified by the name `sharding_indexed`").
const Name = "sharding_indexed"

// Config holds the recognized options of spec §6.
type Config struct {
	ChunkShape    []int
	Codecs        *codec.Pipeline
	IndexCodecs   *codec.Pipeline
	IndexLocation IndexLocation
}

// Option configures a Config, following the functional-options style the
// teacher codebase uses for its store (store.OpenStore's variadic
// Option list).
type Option func(*Config)

// WithChunkShape sets the inner sub-chunk shape (spec §6 `chunk_shape`).
func WithChunkShape(shape []int) Option {
	return func(c *Config) { c.ChunkShape = append([]int(nil), shape...) }
}

// WithCodecs sets the ordered codec list applied to sub-chunk bytes
// (spec §6 `codecs`, default `[bytes]`).
func WithCodecs(p *codec.Pipeline) Option {
	return func(c *Config) { c.Codecs = p }
}

// WithIndexCodecs sets the ordered codec list applied to the index
// (spec §6 `index_codecs`, default `[bytes, crc32c]`).
func WithIndexCodecs(p *codec.Pipeline) Option {
	return func(c *Config) { c.IndexCodecs = p }
}

// WithIndexLocation sets where the index is placed within the shard
// (spec §6 `index_location`, default `end`).
func WithIndexLocation(loc IndexLocation) Option {
	return func(c *Config) { c.IndexLocation = loc }
}

// defaultConfig returns the spec §6 defaults before options are applied.
func defaultConfig() Config {
	identity, _ := codec.NewPipeline(codec.Identity{})
	indexDefault, _ := codec.NewPipeline(codec.Identity{}, codec.CRC32C{})
	return Config{
		Codecs:        identity,
		IndexCodecs:   indexDefault,
		IndexLocation: IndexAtEnd,
	}
}

func (c Config) validate() error {
	if len(c.ChunkShape) == 0 {
		return newConfigurationError("chunk_shape must be set")
	}
	for i, n := range c.ChunkShape {
		if n <= 0 {
			return newConfigurationError("chunk_shape[%d] = %d must be positive", i, n)
		}
	}
	if c.Codecs == nil {
		return newConfigurationError("codecs must be set")
	}
	if c.IndexCodecs == nil {
		return newConfigurationError("index_codecs must be set")
	}
	if c.IndexLocation != IndexAtStart && c.IndexLocation != IndexAtEnd {
		return newConfigurationError("index_location must be start or end, got %d", c.IndexLocation)
	}
	// spec §9: the index codec pipeline must be fixed-size on fixed-size
	// input; this is validated eagerly at construction, never deferred to
	// first use (the open question in spec §9 is resolved this way).
	probe := productInts(c.ChunkShape) * entryWidth
	if probe <= 0 {
		probe = entryWidth
	}
	if !c.IndexCodecs.IsFixedSize(probe) {
		return newConfigurationError("index_codecs pipeline must be fixed-size on fixed-size input")
	}
	return nil
}
