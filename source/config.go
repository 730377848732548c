package source

import (
	"time"

	"github.com/xaionaro-go/avfile/types"
)

const (
	DefaultFrameRate        = 25
	DefaultQueueSoftCap     = 25
	DefaultBackpressurePoll = 10 * time.Millisecond
	DefaultMaxFramesPerTick = 1
)

type Config struct {
	Path     string         `yaml:"path"`
	Geometry types.Geometry `yaml:"geometry"`

	// FrameRate is the pacing rate; zero means the rate of the stream.
	FrameRate float64 `yaml:"frame_rate"`

	// QueueSoftCap is the amount of decoded frames the decode loop keeps
	// ahead of the ticker.
	QueueSoftCap int `yaml:"queue_soft_cap"`

	// BackpressurePoll bounds how long the decode loop waits for the queue
	// before re-checking whether it should stop.
	BackpressurePoll time.Duration `yaml:"backpressure_poll"`

	// MaxFramesPerTick limits the catch-up after a starvation; negative
	// means no limit.
	MaxFramesPerTick int `yaml:"max_frames_per_tick"`
}

func DefaultConfig() Config {
	return Config{}.withDefaults()
}

func (cfg Config) withDefaults() Config {
	if cfg.Geometry.IsZero() {
		cfg.Geometry = types.GeometryCIF
	}
	if cfg.QueueSoftCap <= 0 {
		cfg.QueueSoftCap = DefaultQueueSoftCap
	}
	if cfg.BackpressurePoll <= 0 {
		cfg.BackpressurePoll = DefaultBackpressurePoll
	}
	if cfg.MaxFramesPerTick == 0 {
		cfg.MaxFramesPerTick = DefaultMaxFramesPerTick
	}
	return cfg
}
