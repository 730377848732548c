// avfileloop plays a media file in a loop and records it into a sequence
// of MPEG-4 files, exercising the file source and the file sink together.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/pkg/runtime"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/facebookincubator/go-belt/tool/logger/implementation/logrus"
	"github.com/spf13/pflag"
	"github.com/xaionaro-go/avfile/codec/libav"
	"github.com/xaionaro-go/avfile/config"
	"github.com/xaionaro-go/avfile/control"
	"github.com/xaionaro-go/avfile/pipeline"
	"github.com/xaionaro-go/avfile/registry"
	"github.com/xaionaro-go/avfile/sink"
	"github.com/xaionaro-go/avfile/source"
	"github.com/xaionaro-go/avfile/types"
	"github.com/xaionaro-go/observability"
)

func main() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "syntax: %s [options] <input-file>\n", os.Args[0])
		pflag.PrintDefaults()
	}

	configPath := pflag.String("config", "", "path to a YAML config file")
	loggerLevel := logger.LevelWarning
	pflag.Var(&loggerLevel, "log-level", "Log level")
	duration := pflag.Duration("duration", 0, "stop after this time (0 means until interrupted)")
	size := types.GeometryCIF
	pflag.Var(&size, "size", "the geometry of the frames produced by the source")
	fps := pflag.Float64("fps", 0, "the pacing rate of the source (0 means the rate of the file)")
	outSize := types.GeometryCIF
	pflag.Var(&outSize, "out-size", "the geometry of the recorded video")
	outDir := pflag.String("out-dir", "", "the directory of the recorded files")
	autoFit := pflag.Bool("autofit", false, "restart the recording when the incoming geometry changes")
	switchSize := types.Geometry{}
	pflag.Var(&switchSize, "switch-size", "alternate the source geometry with this one every --switch-every")
	switchEvery := pflag.Duration("switch-every", 5*time.Second, "the period of --switch-size")
	pflag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
	}
	flags := pflag.CommandLine
	if flags.Changed("log-level") || *configPath == "" {
		cfg.Logging.Level = loggerLevel.String()
	}
	if flags.Changed("duration") {
		cfg.Ticker.Duration = *duration
	}
	if flags.Changed("size") {
		cfg.Source.Geometry = size
	}
	if flags.Changed("fps") {
		cfg.Source.FrameRate = *fps
	}
	if flags.Changed("out-size") {
		cfg.Sink.Geometry = outSize
	}
	if flags.Changed("out-dir") {
		cfg.Sink.Directory = *outDir
	}
	if flags.Changed("autofit") {
		cfg.Sink.AutoFit = *autoFit
	}
	switch pflag.NArg() {
	case 0:
	case 1:
		cfg.Source.Path = pflag.Arg(0)
	default:
		pflag.Usage()
		os.Exit(1)
	}
	if cfg.Source.Path == "" {
		pflag.Usage()
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	loggerLevel, _ = config.ParseLogLevel(cfg.Logging.Level)

	runtime.DefaultCallerPCFilter = observability.CallerPCFilter(runtime.DefaultCallerPCFilter)
	l := logrus.Default().WithLevel(loggerLevel)
	ctx := logger.CtxWithLogger(context.Background(), l)
	logger.Default = func() logger.Logger {
		return l
	}
	defer belt.Flush(ctx)
	libav.SetLogging(ctx, loggerLevel)

	ctx, cancelFn := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancelFn()
	if cfg.Ticker.Duration > 0 {
		var timeoutCancelFn context.CancelFunc
		ctx, timeoutCancelFn = context.WithTimeout(ctx, cfg.Ticker.Duration)
		defer timeoutCancelFn()
	}

	if b, err := cfg.Bytes(); err == nil {
		l.Debugf("config:\n%s", b)
	}

	if err := run(ctx, cfg, switchSize, *switchEvery); err != nil {
		l.Fatal(err)
	}
}

func run(
	ctx context.Context,
	cfg config.Config,
	switchSize types.Geometry,
	switchEvery time.Duration,
) (_err error) {
	reg := registry.New()
	adapter := libav.New()
	src := source.New(reg, adapter, cfg.Source)
	snk := sink.New(reg, adapter, cfg.Sink)

	g := pipeline.NewGraph()
	if _, err := g.Link(ctx, src, 0, snk, 0); err != nil {
		return fmt.Errorf("unable to link %s to %s: %w", src, snk, err)
	}

	ticker := pipeline.NewTicker(cfg.Ticker.Interval)
	if err := ticker.Attach(ctx, g, time.Now()); err != nil {
		return fmt.Errorf("unable to start the pipeline: %w", err)
	}
	defer func() {
		ctx := context.WithoutCancel(ctx)
		if err := ticker.Detach(ctx); err != nil {
			logger.Errorf(ctx, "unable to detach: %v", err)
		}
		if err := g.Uninit(ctx); err != nil {
			_err = errors.Join(_err, err)
		}
		for _, path := range snk.Paths(ctx) {
			fmt.Println(path)
		}
		logger.Infof(ctx, "final: %s -> %s", src.Stats(ctx), snk.Stats(ctx))
	}()
	if err := src.OpenError(ctx); err != nil {
		logger.Errorf(ctx, "the source is inert: %v", err)
	}

	observability.Go(ctx, func(ctx context.Context) {
		statsLoop(ctx, cfg.Ticker.StatsInterval, src, snk)
	})
	if !switchSize.IsZero() {
		observability.Go(ctx, func(ctx context.Context) {
			switchLoop(ctx, src, cfg.Source.Geometry, switchSize, switchEvery)
		})
	}

	err := ticker.Serve(ctx)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

func statsLoop(
	ctx context.Context,
	interval time.Duration,
	src *source.Source,
	snk *sink.Sink,
) {
	if interval <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			fmt.Printf("source:%s -> sink:%s\n", src.Stats(ctx), snk.Stats(ctx))
		}
	}
}

// switchLoop alternates the source geometry, which makes an auto-fitting
// sink restart its recording.
func switchLoop(
	ctx context.Context,
	src *source.Source,
	a, b types.Geometry,
	every time.Duration,
) {
	if every <= 0 {
		return
	}
	t := time.NewTicker(every)
	defer t.Stop()
	next := b
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := control.Call(ctx, src, control.SetGeometry{Geometry: next}); err != nil {
				logger.Errorf(ctx, "unable to switch the geometry to %s: %v", next, err)
			}
			if next == a {
				next = b
			} else {
				next = a
			}
		}
	}
}
