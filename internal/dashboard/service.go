package dashboard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/vinodismyname/salesdash/config"
	"github.com/vinodismyname/salesdash/internal/sales"
	"github.com/vinodismyname/salesdash/internal/source"
	"github.com/vinodismyname/salesdash/internal/tabular"
)

// Observer is notified after each pipeline run.
type Observer interface {
	OnDashboardBuilt(period string, records int, elapsed time.Duration, err error)
}

// Request overrides the configured sources and periods for one run.
type Request struct {
	SalesSource  string `json:"sales_source,omitempty" validate:"omitempty,source"`
	TargetSource string `json:"target_source,omitempty" validate:"omitempty,source"`
	Current      string `json:"current_period,omitempty" validate:"omitempty,period"`
	Previous     string `json:"previous_period,omitempty" validate:"omitempty,period"`
	TopAreas     int    `json:"top_areas,omitempty" validate:"omitempty,min=1,max=50"`
}

// Service runs Loader → Parser → Schema mapper → Builder.
type Service struct {
	Loader   *source.Loader
	Schema   sales.Schema
	Decode   sales.Options
	Parse    tabular.Options
	Defaults Options
	Sales    source.Spec
	Targets  source.Spec
	MaxRows  int
	Observer Observer
}

// NewService wires a Service from configuration.
func NewService(cfg *config.Config, loader *source.Loader) (*Service, error) {
	schema, err := sales.Lookup(cfg.Schema, cfg.Columns.Sales, cfg.Columns.Targets)
	if err != nil {
		return nil, err
	}
	return &Service{
		Loader: loader,
		Schema: schema,
		Decode: sales.Options{
			Strict:         cfg.Dashboard.StrictNumbers,
			KeepRawPeriods: cfg.Dashboard.KeepRawPeriods,
			Aliases:        cfg.Dashboard.ProductAliases,
		},
		Parse: tabular.Options{Delimiter: ',', Header: true, InferTypes: cfg.Dashboard.InferTypes},
		Defaults: Options{
			Current:    cfg.Dashboard.CurrentPeriod,
			Previous:   cfg.Dashboard.PreviousPeriod,
			TopAreas:   cfg.Dashboard.TopAreas,
			OtherLabel: cfg.Dashboard.OtherLabel,
		},
		Sales:   source.SpecFromConfig(cfg.Sources.Sales),
		Targets: source.SpecFromConfig(cfg.Sources.Targets),
		MaxRows: config.DefaultMaxRows,
	}, nil
}

// ErrTooManyRows is returned when a source exceeds MaxRows data rows.
var ErrTooManyRows = errors.New("dashboard: too many rows")

// Run executes the pipeline once.
func (s *Service) Run(ctx context.Context, req Request) (*Dashboard, error) {
	start := time.Now()
	d, records, err := s.run(ctx, req)
	if s.Observer != nil {
		period := req.Current
		if d != nil {
			period = d.Current
		}
		s.Observer.OnDashboardBuilt(period, records, time.Since(start), err)
	}
	return d, err
}

func (s *Service) run(ctx context.Context, req Request) (*Dashboard, int, error) {
	salesSpec, targetSpec := s.Sales, s.Targets
	if v := strings.TrimSpace(req.SalesSource); v != "" {
		salesSpec.Location = v
	}
	if v := strings.TrimSpace(req.TargetSource); v != "" {
		targetSpec.Location = v
	}

	in, err := s.Loader.LoadPair(ctx, salesSpec, targetSpec, s.Parse)
	if err != nil {
		return nil, 0, err
	}
	if err := s.checkRows("sales", in.Sales); err != nil {
		return nil, 0, err
	}
	if err := s.checkRows("targets", in.Targets); err != nil {
		return nil, 0, err
	}

	salesRecs, salesDiag, err := sales.DecodeSales(in.Sales, s.Schema, s.Decode)
	if err != nil {
		return nil, 0, fmt.Errorf("sales: %w", err)
	}
	targetRecs, targetDiag, err := sales.DecodeTargets(in.Targets, s.Schema, s.Decode)
	if err != nil {
		return nil, 0, fmt.Errorf("targets: %w", err)
	}
	salesDiag.Merge(targetDiag)

	if !salesDiag.Empty() {
		zerolog.Ctx(ctx).Warn().
			Int("coerced", len(salesDiag.Coerced)).
			Int("skipped", len(salesDiag.Skipped)).
			Msg("data issues while decoding sources")
	}

	opts := s.Defaults
	if req.Current != "" {
		opts.Current = req.Current
		opts.Previous = ""
	}
	if req.Previous != "" {
		opts.Previous = req.Previous
	}
	if req.TopAreas > 0 {
		opts.TopAreas = req.TopAreas
	}

	d := Build(ctx, Input{Sales: salesRecs, Targets: targetRecs, Diagnostics: salesDiag}, opts)
	return d, len(salesRecs) + len(targetRecs), nil
}

func (s *Service) checkRows(name string, ds *tabular.Dataset) error {
	if s.MaxRows > 0 && ds.Len() > s.MaxRows {
		return fmt.Errorf("%w: %s has %d rows (limit %d)", ErrTooManyRows, name, ds.Len(), s.MaxRows)
	}
	return nil
}
