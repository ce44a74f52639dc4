package journal

import "time"

// Config configures the emitted-event journal.
type Config struct {
	// Directory is the path where journal segment files are stored.
	Directory string `koanf:"directory"`

	// SegmentSize is the maximum size of a single segment file in bytes
	// before the journal rotates to a new one. Defaults to 16MB.
	SegmentSize int64 `koanf:"segment_size"`

	// MaxSegments is the maximum number of segments to retain. Older
	// segments beyond this limit are deleted on rotation. Defaults to 8.
	MaxSegments int `koanf:"max_segments"`

	// SyncInterval is the duration between forced file system syncs of
	// the current segment. Defaults to 100ms. 0 disables the sync loop;
	// the journal then syncs only on rotation and close.
	SyncInterval time.Duration `koanf:"sync_interval"`

	// Compression is the per-event compression to use.
	// Supported values: "none", "snappy", "zstd". Defaults to "none".
	Compression string `koanf:"compression"`

	// Enabled indicates whether the journal is active for the pipeline.
	Enabled bool `koanf:"enabled"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		Directory:    "data/journal",
		SegmentSize:  16 * 1024 * 1024,
		MaxSegments:  8,
		SyncInterval: 100 * time.Millisecond,
		Compression:  "none",
		Enabled:      true,
	}
}
