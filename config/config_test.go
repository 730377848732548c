package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/avfile/logger"
	"github.com/xaionaro-go/avfile/types"
)

func writeFile(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, types.GeometryCIF, cfg.Source.Geometry)
	assert.Equal(t, "outputvideo", cfg.Sink.BaseName)
	assert.Equal(t, 10*time.Millisecond, cfg.Ticker.Interval)
}

func TestLoad(t *testing.T) {
	t.Setenv("AVFILE_TEST_INPUT", "/tmp/in.mp4")
	path := writeFile(t, `
source:
  path: ${AVFILE_TEST_INPUT}
  geometry: 640x480
  frame_rate: 30
sink:
  directory: /tmp/out
  geometry: 320x240
  autofit: true
  queue_limit: 50
ticker:
  interval: 20ms
  duration: 5s
logging:
  level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/in.mp4", cfg.Source.Path)
	assert.Equal(t, types.GeometryVGA, cfg.Source.Geometry)
	assert.Equal(t, 30.0, cfg.Source.FrameRate)
	assert.Equal(t, types.GeometryQVGA, cfg.Sink.Geometry)
	assert.True(t, cfg.Sink.AutoFit)
	assert.Equal(t, 50, cfg.Sink.QueueLimit)
	assert.Equal(t, "/tmp/out", cfg.Sink.Directory)
	assert.Equal(t, "outputvideo", cfg.Sink.BaseName, "unset fields keep the defaults")
	assert.Equal(t, 20*time.Millisecond, cfg.Ticker.Interval)
	assert.Equal(t, 5*time.Second, cfg.Ticker.Duration)

	level, err := ParseLogLevel(cfg.Logging.Level)
	require.NoError(t, err)
	assert.Equal(t, logger.LevelDebug, level)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)

	_, err = Load(writeFile(t, "source: [\n"))
	require.Error(t, err)

	_, err = Load(writeFile(t, "source:\n  geometry: 0x480\n"))
	require.Error(t, err)

	_, err = Load(writeFile(t, "ticker:\n  interval: -1s\n"))
	require.Error(t, err)

	_, err = Load(writeFile(t, "logging:\n  level: loud\n"))
	require.Error(t, err)
}

func TestBytesRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Source.Path = "input.mkv"
	b, err := cfg.Bytes()
	require.NoError(t, err)
	assert.Contains(t, string(b), "352x288")

	loaded, err := Load(writeFile(t, string(b)))
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}
