package sink

import (
	"time"

	"github.com/xaionaro-go/avfile/types"
)

const (
	DefaultBaseName  = "outputvideo"
	DefaultExtension = "mp4"
	DefaultDirectory = "."
	DefaultFrameRate = 25
	DefaultQueuePoll = 10 * time.Millisecond
)

type Config struct {
	BaseName  string `yaml:"base_name"`
	Extension string `yaml:"extension"`
	Directory string `yaml:"directory"`

	// FormatHint is the container used if none can be deduced from the
	// extension.
	FormatHint string `yaml:"format_hint"`

	Geometry  types.Geometry `yaml:"geometry"`
	FrameRate float64        `yaml:"frame_rate"`
	AutoFit   bool           `yaml:"autofit"`

	// QueueLimit bounds the input queue dropping the oldest frames;
	// zero means unbounded.
	QueueLimit int `yaml:"queue_limit"`

	// ManualStart disables starting the sink when the pipeline initializes it.
	ManualStart bool `yaml:"manual_start"`

	QueuePoll time.Duration `yaml:"queue_poll"`
}

func DefaultConfig() Config {
	return Config{}.withDefaults()
}

func (cfg Config) withDefaults() Config {
	if cfg.BaseName == "" {
		cfg.BaseName = DefaultBaseName
	}
	if cfg.Extension == "" {
		cfg.Extension = DefaultExtension
	}
	if cfg.Directory == "" {
		cfg.Directory = DefaultDirectory
	}
	if cfg.FormatHint == "" {
		cfg.FormatHint = "mpeg"
	}
	if cfg.Geometry.IsZero() {
		cfg.Geometry = types.GeometryCIF
	}
	if cfg.FrameRate <= 0 {
		cfg.FrameRate = DefaultFrameRate
	}
	if cfg.QueuePoll <= 0 {
		cfg.QueuePoll = DefaultQueuePoll
	}
	return cfg
}
