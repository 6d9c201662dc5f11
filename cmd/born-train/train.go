package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/born-ml/born-train/internal/checkpoint"
	"github.com/born-ml/born-train/internal/config"
	"github.com/born-ml/born-train/internal/data"
	"github.com/born-ml/born-train/internal/device"
	"github.com/born-ml/born-train/internal/logging"
	"github.com/born-ml/born-train/internal/metric"
	"github.com/born-ml/born-train/internal/model"
	"github.com/born-ml/born-train/internal/optim"
	"github.com/born-ml/born-train/internal/schedule"
	"github.com/born-ml/born-train/internal/train"
)

func newTrainCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train a reference model",
		Long: `Train a linear regression on synthetic data or a bigram language model
on a text file. Ctrl-C stops training at the next item boundary.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.configFile, cmd.Flags())
			if err != nil {
				return err
			}
			log, err := logging.New(cfg.Log.Level, cfg.Log.Development)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runTrain(ctx, cfg, log, cmd.OutOrStdout())
		},
	}

	f := cmd.Flags()
	f.Int("epochs", 1, "number of epochs")
	f.Int("grad-accumulation", 0, "items per optimizer step on each device (0 = every item)")
	f.Int("devices", 1, "number of CPU devices (0 = one per logical CPU)")
	f.String("optimizer", "sgd", "optimizer: sgd or adam")
	f.String("scheduler", "constant", "learning rate scheduler: constant, linear, exponential, cosine or noam")
	f.Float64("lr", 0.05, "initial learning rate")
	f.String("dataset", config.DatasetSynthetic, "dataset: synthetic or text")
	f.String("text-file", "", "training text for the text dataset")
	f.Int("batch-size", 16, "synthetic samples per batch")
	f.Int64("seed", 42, "data seed")
	f.String("log-level", "info", "log level: error, warn, info, debug or trace")
	f.String("metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")
	f.String("checkpoint-dir", "", "save a checkpoint into this directory after every epoch")
	f.String("resume", "", "resume from this checkpoint file")
	f.String("trace-file", "", "write OpenTelemetry spans of every epoch to this file")
	return cmd
}

// runTrain trains the configured model and prints the final epoch summaries
// to out. The metrics server, when enabled, lives exactly as long as
// training.
func runTrain(ctx context.Context, cfg config.Config, log logr.Logger, out io.Writer) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())

	g, gctx := errgroup.WithContext(ctx)

	var srv *http.Server
	if cfg.Metrics.Addr != "" {
		srv = &http.Server{
			Addr:              cfg.Metrics.Addr,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			log.Info("Serving metrics", "addr", cfg.Metrics.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		if srv != nil {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = srv.Shutdown(shutdownCtx)
			}()
		}

		tracer, shutdown, err := newTracer(cfg.Trace.File)
		if err != nil {
			return err
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				log.Error(err, "Flushing traces failed")
			}
		}()

		interrupter := train.NewInterrupter()
		release := interrupter.StopOnDone(gctx)
		defer release()

		env := runEnv{cfg: cfg, log: log, reg: reg, out: out, tracer: tracer, interrupter: interrupter}
		switch cfg.Data.Dataset {
		case config.DatasetText:
			return trainText(env)
		default:
			return trainSynthetic(env)
		}
	})

	return g.Wait()
}

type runEnv struct {
	cfg         config.Config
	log         logr.Logger
	reg         prometheus.Registerer
	out         io.Writer
	tracer      trace.Tracer
	interrupter *train.Interrupter
}

func trainSynthetic(env runEnv) error {
	d := env.cfg.Data
	samples, _, _ := model.SyntheticRegression(d.Samples, d.Features, d.Noise, d.Seed)
	trainSet, validSet := holdOut(samples, d.ValidFraction)

	trainLoader := data.NewBatchLoader[model.Sample](data.NewShuffledLoader(trainSet, d.Seed), d.BatchSize)
	var validLoader data.DataLoader[data.Batch[model.Sample]]
	if len(validSet) > 0 {
		validLoader = data.NewBatchLoader[model.Sample](data.NewSliceLoader(validSet), d.BatchSize)
	}

	return fit[data.Batch[model.Sample], model.RegressionOutput](env, trainLoader, validLoader, model.NewRegression(d.Features, device.NewCPU(0)))
}

func trainText(env runEnv) error {
	d := env.cfg.Data
	text, err := os.ReadFile(d.TextFile)
	if err != nil {
		return fmt.Errorf("read training text: %w", err)
	}
	enc, err := data.NewTikToken(d.Encoding)
	if err != nil {
		return err
	}
	windows, err := data.TokenWindows(enc, string(text), data.TextConfig{WindowSize: d.Window, VocabSize: d.Vocab})
	if err != nil {
		return err
	}
	trainSet, validSet := holdOut(windows, d.ValidFraction)

	var validLoader data.DataLoader[data.TokenWindow]
	if len(validSet) > 0 {
		validLoader = data.NewSliceLoader(validSet)
	}
	return fit[data.TokenWindow, model.ClassificationOutput](env, data.NewShuffledLoader(trainSet, d.Seed), validLoader,
		model.NewBigram(d.Vocab, device.NewCPU(0)))
}

// resume restores m and opt from the checkpoint at path and returns the
// epoch it was taken after.
func resume(path string, m any, opt optim.Optimizer) (int, error) {
	owner, ok := m.(checkpoint.ParamsOwner)
	if !ok {
		return 0, checkpoint.ErrNotParamsOwner
	}
	ckpt, err := checkpoint.Load(path, owner.Params().Device())
	if err != nil {
		return 0, err
	}
	if err := ckpt.Restore(owner.Params(), opt); err != nil {
		return 0, err
	}
	return ckpt.Epoch, nil
}

// holdOut keeps the leading fraction of items for validation.
func holdOut[T any](items []T, fraction float64) (trainSet, validSet []T) {
	n := int(float64(len(items)) * fraction)
	return items[n:], items[:n]
}

// fit trains m for the configured number of epochs, one training shard per
// device, and reports every epoch through the recorder, the log and
// Prometheus.
func fit[I, O any](env runEnv, trainLoader, validLoader data.DataLoader[I], m train.Model[I, O]) error {
	cfg := env.cfg
	devices := device.Discover(cfg.Devices)

	loaders := []data.DataLoader[I]{trainLoader}
	if len(devices) > 1 {
		var err error
		if loaders, err = data.Split(trainLoader, len(devices)); err != nil {
			return err
		}
	}

	opt, err := optim.FromConfig(cfg.Optimizer)
	if err != nil {
		return err
	}

	startEpoch := 1
	if cfg.Checkpoint.Resume != "" {
		epoch, err := resume(cfg.Checkpoint.Resume, m, opt)
		if err != nil {
			return err
		}
		startEpoch = epoch + 1
		env.log.Info("Resumed from checkpoint", "path", cfg.Checkpoint.Resume, "epoch", epoch)
	}

	// The scheduler steps once per item on every device, before accumulation.
	itemsPerEpoch := trainLoader.NumItems()
	scheduler, err := schedule.FromConfig(cfg.Scheduler, cfg.Epochs*max(itemsPerEpoch, 1))
	if err != nil {
		return err
	}
	for range (startEpoch - 1) * itemsPerEpoch {
		scheduler.Step()
	}

	rec := metric.NewRecorder[O, O]()
	prom, err := metric.NewPromProcessor[O, O](env.reg)
	if err != nil {
		return err
	}
	processor := metric.Multi[O, O]{rec, metric.NewLogProcessor[O, O](env.log, cfg.Metrics.LogEvery), prom}

	learner := train.NewLearner[I, O, I, O](train.LearnerConfig{
		EpochTotal:       cfg.Epochs,
		GradAccumulation: cfg.GradAccumulation,
		StartEpoch:       startEpoch,
		Devices:          devices,
		Logger:           env.log,
		Tracer:           env.tracer,
	}, loaders, validLoader, processor, env.interrupter)
	if cfg.Checkpoint.Dir != "" {
		learner.OnEpochEnd(checkpoint.EpochHook[I, O](cfg.Checkpoint.Dir, cfg.Data.Dataset, env.log))
	}

	env.log.Info("Starting training",
		"dataset", cfg.Data.Dataset, "devices", len(devices), "epochs", cfg.Epochs,
		"optimizer", cfg.Optimizer.Name, "scheduler", cfg.Scheduler.Name)

	if _, _, err := learner.Fit(m, opt, scheduler); err != nil {
		return err
	}
	if env.interrupter.ShouldStop() {
		env.log.Info("Training interrupted")
	}

	for _, split := range []metric.Split{metric.SplitTrain, metric.SplitValid} {
		if s, ok := rec.Last(split); ok {
			fmt.Fprintf(env.out, "%-5s epoch %d: items=%d loss=%.6f\n", s.Split, s.Epoch, s.Items, s.MeanLoss)
		}
	}
	return nil
}
