/*
 * Copyright 2025 Google LLC
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *    https://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package profiler infers column properties of a dataset and turns them into a
// suite of expectations, steered by a user configuration.
package profiler

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/GoogleCloudPlatform/db-suite-profiler/internal/logger"
)

// DefaultSuiteName is used when no WithSuiteName option is given.
const DefaultSuiteName = "default"

// Describer produces a human readable description of a column. It is used to
// fill the column descriptions in the suite meta.
type Describer interface {
	DescribeColumn(ctx context.Context, column string, profile ColumnProfile) (string, error)
}

// Option configures a Profiler.
type Option func(*options)

type options struct {
	log         *zap.SugaredLogger
	concurrency int
	suiteName   string
	describer   Describer
}

// WithLogger sets the logger. Defaults to the global logger named "profiler".
func WithLogger(l *zap.SugaredLogger) Option {
	return func(o *options) { o.log = l }
}

// WithConcurrency bounds how many columns are profiled at once.
func WithConcurrency(n int) Option {
	return func(o *options) { o.concurrency = n }
}

func WithSuiteName(name string) Option {
	return func(o *options) { o.suiteName = name }
}

func WithDescriber(d Describer) Option {
	return func(o *options) { o.describer = d }
}

// Profiler owns the configuration, the latest column profiles and the suite of
// one dataset.
type Profiler struct {
	mu       sync.Mutex
	ds       Dataset
	opts     options
	cfg      Config
	plan     profilePlan
	profiles ColumnProfiles
	suite    *Suite
}

// profilePlan is the outcome of checking a configuration against the dataset:
// the columns to profile, in physical order, and their semantic tags.
type profilePlan struct {
	columns []string
	tags    map[string][]SemanticType
}

// New validates raw, checks it against the dataset columns and profiles every
// non-ignored column. Configuration problems are reported here, never later.
func New(ctx context.Context, ds Dataset, raw map[string]any, opts ...Option) (*Profiler, error) {
	o := options{concurrency: 1, suiteName: DefaultSuiteName}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = logger.Named("profiler")
	}

	cfg, err := ValidateConfig(raw)
	if err != nil {
		return nil, err
	}
	p := &Profiler{ds: ds, opts: o, suite: NewSuite(o.suiteName)}
	plan, err := p.planFor(ctx, cfg)
	if err != nil {
		return nil, err
	}
	profiles, err := p.profile(ctx, plan)
	if err != nil {
		return nil, err
	}
	p.cfg = cfg
	p.plan = plan
	p.profiles = profiles
	return p, nil
}

// planFor checks cfg against the dataset and decides which columns to profile.
// This is the only place where configuration references are validated.
func (p *Profiler) planFor(ctx context.Context, cfg Config) (profilePlan, error) {
	columns, err := p.ds.Columns(ctx)
	if err != nil {
		return profilePlan{}, &ProfilingError{Query: "columns", Err: err}
	}
	if err := validateKeyColumns(cfg, columns); err != nil {
		return profilePlan{}, err
	}
	checkIgnoredColumns(cfg, columns, p.opts.log)

	tags, err := resolveSemanticTypes(cfg, columns, p.opts.log)
	if err != nil {
		return profilePlan{}, err
	}
	if _, declared := cfg.SemanticTypes(); declared {
		if t, ok := cfg.ValueSetThreshold(); ok {
			p.opts.log.Infow("value_set_threshold is ignored when semantic_types are declared", "value_set_threshold", t.String())
		}
	}

	profileable := make([]string, 0, len(columns))
	for _, c := range columns {
		if !cfg.IsIgnored(c) {
			profileable = append(profileable, c)
		}
	}
	return profilePlan{columns: profileable, tags: tags}, nil
}

func (p *Profiler) profile(ctx context.Context, plan profilePlan) (ColumnProfiles, error) {
	profiles, err := profileColumns(ctx, p.ds, plan.columns, p.opts.concurrency, p.opts.log)
	if err != nil {
		return ColumnProfiles{}, err
	}
	return profiles.withSemanticTypes(plan.tags), nil
}

// checkColumnsPresent fails with a ProfilingError when a column the active plan
// relies on has left the dataset since the configuration was validated.
func (p *Profiler) checkColumnsPresent(ctx context.Context) error {
	columns, err := p.ds.Columns(ctx)
	if err != nil {
		return &ProfilingError{Query: "columns", Err: err}
	}
	exists := make(map[string]bool, len(columns))
	for _, c := range columns {
		exists[c] = true
	}
	required := make([]string, 0, len(p.plan.columns))
	required = append(required, p.plan.columns...)
	required = append(required, p.cfg.PrimaryOrCompoundKey()...)
	for _, c := range required {
		if !exists[c] {
			return &ProfilingError{
				Column: c,
				Query:  "columns",
				Err:    errors.Newf("column %s is no longer in the dataset", c),
			}
		}
	}
	return nil
}

// BuildSuite re-profiles the columns validated by New or Reconfigure,
// synthesizes the expectations and replaces the suite contents with them. It
// only fails with a ProfilingError. The returned suite is a copy. On error the
// previous profiles and suite are kept.
func (p *Profiler) BuildSuite(ctx context.Context) (*Suite, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	start := time.Now()
	if err := p.checkColumnsPresent(ctx); err != nil {
		return nil, err
	}
	profiles, err := p.profile(ctx, p.plan)
	if err != nil {
		return nil, err
	}
	exps, err := synthesize(ctx, p.ds, p.cfg, profiles, p.opts.log)
	if err != nil {
		return nil, err
	}

	p.profiles = profiles
	p.suite.replaceExpectations(exps)
	p.suite.Meta = p.buildMeta(ctx, profiles)

	p.opts.log.Infow("Built expectation suite",
		"suite", p.suite.Name,
		"count", len(exps),
		"duration_ms", time.Since(start).Milliseconds())
	return p.suite.Clone(), nil
}

func (p *Profiler) buildMeta(ctx context.Context, profiles ColumnProfiles) map[string]any {
	columns := make(map[string]any, profiles.Len())
	for _, name := range profiles.Names() {
		description := ""
		if p.opts.describer != nil {
			prof, _ := profiles.Get(name)
			d, err := p.opts.describer.DescribeColumn(ctx, name, prof)
			if err != nil {
				p.opts.log.Warnw("Failed to describe column", "column", name, "error", err)
			} else {
				description = d
			}
		}
		columns[name] = map[string]any{"description": description}
	}
	return map[string]any{
		"columns":         columns,
		"profiler_config": p.cfg.AsMap(),
	}
}

// Reconfigure validates raw and re-profiles the dataset with it. The new
// configuration only takes effect when every check passes.
func (p *Profiler) Reconfigure(ctx context.Context, raw map[string]any) error {
	cfg, err := ValidateConfig(raw)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	plan, err := p.planFor(ctx, cfg)
	if err != nil {
		return err
	}
	profiles, err := p.profile(ctx, plan)
	if err != nil {
		return err
	}
	p.cfg = cfg
	p.plan = plan
	p.profiles = profiles
	return nil
}

// Config returns the active configuration.
func (p *Profiler) Config() Config {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cfg
}

func (p *Profiler) PrimaryOrCompoundKey() []string {
	return p.Config().PrimaryOrCompoundKey()
}

func (p *Profiler) IgnoredColumns() []string {
	return p.Config().IgnoredColumns()
}

// ValueSetThreshold returns the effective threshold, MANY when none was configured.
func (p *Profiler) ValueSetThreshold() Cardinality {
	if t, ok := p.Config().ValueSetThreshold(); ok {
		return t
	}
	return CardinalityMany
}

func (p *Profiler) TableExpectationsOnly() bool {
	return p.Config().TableExpectationsOnly()
}

func (p *Profiler) ExcludedExpectations() []string {
	return p.Config().ExcludedExpectations()
}

func (p *Profiler) NotNullOnly() bool {
	return p.Config().NotNullOnly()
}

// ColumnInfo returns the profiles from the most recent profiling pass.
func (p *Profiler) ColumnInfo() ColumnProfiles {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.profiles
}

// Suite returns a copy of the current suite.
func (p *Profiler) Suite() *Suite {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.suite.Clone()
}
