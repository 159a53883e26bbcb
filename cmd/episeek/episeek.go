package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"text/tabwriter"
	"time"

	"github.com/epiworks/episeek/internal/cache"
	"github.com/epiworks/episeek/internal/conserve"
	"github.com/epiworks/episeek/internal/dispatch"
	"github.com/epiworks/episeek/internal/enrich"
	"github.com/epiworks/episeek/internal/log"
	"github.com/epiworks/episeek/internal/model"
	"github.com/epiworks/episeek/internal/pace"
	"github.com/epiworks/episeek/internal/peptide"
	"github.com/epiworks/episeek/internal/rank"
	"github.com/epiworks/episeek/internal/remote"
	"github.com/epiworks/episeek/internal/report"
	"github.com/epiworks/episeek/internal/store"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// Pipeline is a component which encapsulates one enrichment run: load the
// key set, enrich it service by service, derive the local columns and write
// the ranked report.
type Pipeline struct {
	input    string
	filter   peptide.Filter
	window   bool
	pool     *dispatch.Pool
	params   model.Params
	adapters []enrich.Adapter
	weights  rank.Weights
	archive  string
	closers  []io.Closer

	// enrichOnly skips the derived columns and ranking, leaving a report
	// with exactly the remote services' outcomes.
	enrichOnly bool
}

func NewPipeline(config model.Config) (*Pipeline, error) {
	if config.Version != 0 {
		return nil, fmt.Errorf("config version %d is not supported, expected 0", config.Version)
	}

	input := flagInput
	filter := peptide.DefaultFilter
	window := flagWindow
	if config.Input != nil {
		if input == "" && config.Input.Path != nil {
			input = *config.Input.Path
		}
		filter.Min = intOr(config.Input.MinLength, filter.Min)
		filter.Max = intOr(config.Input.MaxLength, filter.Max)
		window = window || boolOr(config.Input.Window, false)
	}
	if input == "" {
		return nil, fmt.Errorf("no peptide input: set input.path in %s or pass --input", configPath)
	}
	if filter.Min > filter.Max {
		return nil, fmt.Errorf("input.min_length %d exceeds input.max_length %d", filter.Min, filter.Max)
	}

	pool, timeout, retries := dispatchFromConfig(config.Dispatch)

	p := &Pipeline{
		input:   input,
		filter:  filter,
		window:  window,
		pool:    pool,
		weights: rank.DefaultWeights,
	}
	if config.Rank != nil {
		p.weights.Affinity = floatOr(config.Rank.AffinityWeight, p.weights.Affinity)
		p.weights.Immuno = floatOr(config.Rank.ImmunoWeight, p.weights.Immuno)
	}
	if config.Archive != nil && boolOr(config.Archive.Enabled, false) {
		p.archive = stringOr(config.Archive.Path, "episeek.db")
	}

	memo, err := p.cacheFromConfig(config.Cache)
	if err != nil {
		return nil, err
	}

	if err := p.addAdapters(config.Services, timeout, retries, memo); err != nil {
		return nil, err
	}
	return p, nil
}

// addAdapters builds the remote adapters in their run order. One shared
// http client keeps pooled connections across services.
func (p *Pipeline) addAdapters(services model.Services, timeout time.Duration, retries int, memo cache.Cache) error {
	hc := &http.Client{}

	add := func(a enrich.Adapter) {
		a = enrich.WithRetry(a, retries, time.Second)
		p.adapters = append(p.adapters, cache.Wrap(a, memo))
	}

	if s := services.Affinity; s != nil && boolOr(s.Enabled, true) {
		if s.Endpoint == nil {
			return fmt.Errorf("services.affinity.endpoint is required when the service is enabled")
		}
		p.params = model.Params{
			Allele: stringOr(s.Allele, "HLA-A*02:01"),
			Method: stringOr(s.Method, "nn_align"),
		}
		add(remote.NewAffinity(*s.Endpoint, timeout, hc))
	}
	if s := services.Immunogenicity; s != nil && boolOr(s.Enabled, false) {
		if s.Endpoint == nil {
			return fmt.Errorf("services.immunogenicity.endpoint is required when the service is enabled")
		}
		add(remote.NewImmuno(*s.Endpoint, timeout, hc))
	}
	if s := services.Annotation; s != nil && boolOr(s.Enabled, false) {
		if s.Endpoint == nil {
			return fmt.Errorf("services.annotation.endpoint is required when the service is enabled")
		}
		add(remote.NewAnnot(*s.Endpoint, timeout, hc))
	}
	return nil
}

func (p *Pipeline) cacheFromConfig(cfg *model.Cache) (cache.Cache, error) {
	if cfg == nil {
		return nil, nil
	}
	switch cfg.Backend {
	case model.CacheMemory:
		return cache.NewMemory(), nil
	case model.CacheRedis:
		r := cache.NewRedis(cfg.RedisAddr, cache.DefaultTTL)
		p.closers = append(p.closers, r)
		return r, nil
	}
	return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
}

func dispatchFromConfig(cfg *model.Dispatch) (*dispatch.Pool, time.Duration, int) {
	size := dispatch.DefaultPoolSize
	delay := 100 * time.Millisecond
	timeout := remote.DefaultTimeout
	retries := 1
	pacing := model.PacingSlot
	rps := 0.0

	if cfg != nil {
		size = intOr(cfg.Pool, size)
		if cfg.DelayMS != nil {
			delay = time.Duration(*cfg.DelayMS) * time.Millisecond
		}
		if cfg.TimeoutS != nil {
			timeout = time.Duration(*cfg.TimeoutS) * time.Second
		}
		pacing = stringOr(cfg.Pacing, pacing)
		rps = floatOr(cfg.RateRPS, rps)
		retries = intOr(cfg.RetryAttempts, retries)
	}

	var gate pace.Gate
	switch {
	case pacing == model.PacingGlobal && rps > 0:
		gate = pace.NewRateGate(rps, size)
	case delay > 0:
		gate = pace.NewSlotGate(delay)
	default:
		gate = pace.None{}
	}
	return dispatch.New(size, gate), timeout, retries
}

// Do executes the run against out. Remote failures end up in the report,
// not as an error; Do only fails on unusable input or an unwritable output.
func (p *Pipeline) Do(ctx context.Context, out string) error {
	defer func() {
		for _, c := range p.closers {
			_ = c.Close()
		}
	}()

	keys, err := peptide.Load(p.input, p.filter, p.window)
	if err != nil {
		return err
	}

	table := model.NewTable(keys)
	if !p.enrichOnly {
		table.Merge("properties", peptide.Outcomes(keys))
	}

	orch := enrich.New(p.pool, p.params)
	if err := orch.Run(ctx, table, p.adapters...); err != nil {
		return err
	}

	if !p.enrichOnly {
		table.Merge("conservation", conserve.Outcomes(keys))
		table.Merge(rank.ServiceName, rank.Outcomes(table, p.weights))
	}

	if err := report.Write(out, table, rank.Order(table)); err != nil {
		return err
	}

	if p.archive != "" {
		s, err := store.Open(p.archive)
		if err != nil {
			return err
		}
		defer func() {
			_ = s.Close()
		}()
		id, err := s.SaveRun(ctx, p.input, table)
		if err != nil {
			return err
		}
		slog.InfoContext(ctx, "run archived", "archive", p.archive, "id", id)
	}
	return nil
}

func doRun(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	attrs := slog.Group("episeek",
		slog.String("cmd", "run"),
		slog.String("run_id", uuid.New().String()),
		slog.Int("pid", os.Getpid()),
	)
	ctx = log.ContextAttrs(ctx, attrs)

	pipeline, err := NewPipeline(config)
	if err != nil {
		return err
	}
	return pipeline.Do(ctx, flagOutput)
}

func doEnrich(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	attrs := slog.Group("episeek",
		slog.String("cmd", "enrich"),
		slog.String("run_id", uuid.New().String()),
		slog.Int("pid", os.Getpid()),
	)
	ctx = log.ContextAttrs(ctx, attrs)

	pipeline, err := NewPipeline(config)
	if err != nil {
		return err
	}
	pipeline.enrichOnly = true
	return pipeline.Do(ctx, flagOutput)
}

func doRuns(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	path := "episeek.db"
	if config.Archive != nil {
		path = stringOr(config.Archive.Path, path)
	}
	if !exists(path) {
		return fmt.Errorf("no archive at %s", path)
	}

	s, err := store.Open(path)
	if err != nil {
		return err
	}
	defer func() {
		_ = s.Close()
	}()

	runs, err := s.ListRuns(ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tINPUT\tKEYS\tSERVICES")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
			r.ID, r.CreatedAt.Format(time.RFC3339), r.Input, r.Keys,
			fmt.Sprint(r.Services))
	}
	return tw.Flush()
}

func intOr(p *int, def int) int {
	if p != nil {
		return *p
	}
	return def
}

func boolOr(p *bool, def bool) bool {
	if p != nil {
		return *p
	}
	return def
}

func stringOr(p *string, def string) string {
	if p != nil {
		return *p
	}
	return def
}

func floatOr(p *float64, def float64) float64 {
	if p != nil {
		return *p
	}
	return def
}
