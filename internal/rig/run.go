package rig

import (
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Faultbox/nitro-rig/internal/config"
	"github.com/Faultbox/nitro-rig/internal/logger"
)

// Run processes every model file in paths, cfg.Build.Jobs at a time (at
// least one), and writes summaries to out in the order of paths. A model that
// fails doesn't stop the others; all failures are returned together.
func Run(paths []string, cfg *config.Config, out io.Writer) error {
	jobs := max(cfg.Build.Jobs, 1)

	runID := uuid.Must(uuid.NewV7()).String()
	log := logger.With(zap.String("run", runID))
	log.Info("processing models",
		zap.Int("count", len(paths)),
		zap.Int("jobs", jobs),
		zap.String("poly_type", cfg.Build.PolyType))

	reports := make([]*Report, len(paths))
	errs := make([]error, len(paths))

	sem := make(chan struct{}, jobs)
	var wg sync.WaitGroup
	for i, path := range paths {
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			reports[i], errs[i] = processOne(log, path, cfg, runID)
		}()
	}
	wg.Wait()

	var err error
	for i, r := range reports {
		if errs[i] != nil {
			err = multierr.Append(err, errs[i])
			continue
		}
		if i > 0 {
			fmt.Fprintln(out)
		}
		PrintSummary(out, r)
		if cfg.Output.PrintTree {
			PrintTree(out, r)
		}
	}

	failed := len(multierr.Errors(err))
	log.Info("done",
		zap.Int("ok", len(paths)-failed),
		zap.Int("failed", failed))
	return err
}

func processOne(log *zap.Logger, path string, cfg *config.Config, runID string) (*Report, error) {
	log = log.With(zap.String("path", path))

	res, err := Process(path, cfg.Build)
	if err != nil {
		log.Error("model failed", zap.Error(err))
		return nil, err
	}

	r := NewReport(res, runID)
	log.Debug("model built",
		zap.String("model", r.Model),
		zap.Int("joints", r.Joints),
		zap.Int("vertices", r.Vertices))

	if cfg.Output.DumpDir != "" {
		dumped, err := WriteReport(cfg.Output.DumpDir, r)
		if err != nil {
			log.Error("report failed", zap.Error(err))
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		log.Debug("report written", zap.String("file", dumped))
	}
	return r, nil
}
