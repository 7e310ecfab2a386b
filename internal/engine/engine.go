// Package engine executes directives: it parses, analyzes, consults the
// cache, evaluates and stores results, and routes the side effects of
// evaluation to the session manager and refresh scheduler.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/ast"
	"github.com/starford/ansuz/internal/cache"
	"github.com/starford/ansuz/internal/checksum"
	"github.com/starford/ansuz/internal/deps"
	"github.com/starford/ansuz/internal/eval"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/parser"
	"github.com/starford/ansuz/internal/refresh"
	"github.com/starford/ansuz/internal/session"
	"github.com/starford/ansuz/internal/value"
)

// Host is the note store directives run against.
type Host interface {
	eval.NoteOperations
	Snapshot(ctx context.Context) (*models.Collection, error)
}

// Options configures an Engine. Cache is required.
type Options struct {
	Cache     *cache.Manager
	Sessions  *session.Manager
	Scheduler *refresh.Scheduler
	Registry  *eval.Registry
	Logger    *slog.Logger
	Clock     func() time.Time
}

// Engine is safe for concurrent use.
type Engine struct {
	host      Host
	cache     *cache.Manager
	sessions  *session.Manager
	scheduler *refresh.Scheduler
	registry  *eval.Registry
	analyzer  deps.Analyzer
	instances *Instances
	logger    *slog.Logger
	clock     func() time.Time
}

// New returns an Engine over host.
func New(host Host, o Options) (*Engine, error) {
	if o.Cache == nil {
		return nil, fmt.Errorf("engine: cache manager is required")
	}
	if o.Registry == nil {
		o.Registry = eval.DefaultRegistry()
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	return &Engine{
		host:      host,
		cache:     o.Cache,
		sessions:  o.Sessions,
		scheduler: o.Scheduler,
		registry:  o.Registry,
		analyzer:  deps.Analyzer{IsStatic: o.Registry.IsStatic},
		instances: NewInstances(),
		logger:    o.Logger,
		clock:     o.Clock,
	}, nil
}

// Instances returns the directive instance registry.
func (e *Engine) Instances() *Instances { return e.instances }

// Request is one directive execution.
type Request struct {
	Source string
	// NoteID is the note hosting the directive; empty for free-standing
	// evaluation.
	NoteID string
	// Notes is the snapshot to evaluate against; nil loads one from the
	// host.
	Notes *models.Collection
}

// Outcome is the result of Execute. Exactly one of Value and Err is set.
type Outcome struct {
	Value     value.Value
	Err       *apperr.Error
	Key       string
	FromCache bool
	Mutations []models.NoteMutation
	Deps      *deps.Record
	// Views holds the rendered notes of a view value.
	Views []*Rendered
}

// Display returns the text shown in place of the directive.
func (o *Outcome) Display() string {
	if o.Err != nil {
		return o.Err.Error()
	}
	return o.Value.String()
}

// run is the state shared by a directive and the directives rendered
// inside its views.
type run struct {
	notes     *models.Collection
	collector *deps.Collector
	viewStack []string
}

// Execute runs one directive. Evaluation failures are reported in
// Outcome.Err; the returned error is reserved for host failures.
func (e *Engine) Execute(ctx context.Context, req Request) (*Outcome, error) {
	notes := req.Notes
	if notes == nil {
		var err error
		if notes, err = e.host.Snapshot(ctx); err != nil {
			return nil, fmt.Errorf("engine: snapshot: %w", err)
		}
	}
	r := &run{notes: notes, collector: deps.NewCollector()}
	if req.NoteID != "" {
		r.viewStack = []string{req.NoteID}
	}
	return e.execute(ctx, r, req.Source, req.NoteID), nil
}

func (e *Engine) execute(ctx context.Context, r *run, src, noteID string) *Outcome {
	d, err := parser.Parse(src)
	if err != nil {
		return e.syntaxError(ctx, src, err)
	}

	profile := e.analyzer.Analyze(d.Expr)
	key := ast.CacheKey(d.Expr)
	addr := cache.Address{Key: key, NoteID: noteID, SelfAccess: profile.UsesSelfAccess}
	note := r.notes.Get(noteID)

	if hit, ok := e.lookup(ctx, addr, r.notes); ok {
		r.collector.AddNestedViewDependencies(hit.Fingerprint.Deps)
		out := &Outcome{Value: hit.Value, Err: hit.Err, Key: key, FromCache: true, Deps: hit.Fingerprint.Deps}
		if view, ok := hit.Value.(*value.View); ok {
			views, err := e.renderViews(ctx, r, view)
			if err != nil {
				return &Outcome{Err: apperr.Classify(err), Key: key, Deps: out.Deps}
			}
			out.Views = views
		}
		return out
	}

	base := profile.Record(noteID)
	var resolver deps.Resolver
	for _, h := range resolver.ResolveAll(profile.Hierarchy, note, r.notes) {
		base.AddHierarchy(h)
	}

	rt := &eval.Runtime{
		Note:      note,
		Notes:     r.notes,
		Ops:       e.host,
		Once:      e.cache.Once(),
		Collector: r.collector,
		Registry:  e.registry,
		ViewStack: r.viewStack,
		Clock:     e.clock,
	}
	r.collector.StartDirective(key, base)
	v, evalErr := e.evaluate(ctx, d.Expr, rt)
	out := &Outcome{Key: key, Mutations: rt.Mutations}
	// A view cycle depends on which note is rendering, which the key does
	// not capture, so it is never stored.
	cyclic := false
	if evalErr == nil {
		if view, ok := v.(*value.View); ok {
			inner := &run{notes: rt.Notes, collector: r.collector, viewStack: rt.ViewStack}
			out.Views, evalErr = e.renderViews(ctx, inner, view)
			cyclic = evalErr != nil
		}
	}
	rec := r.collector.FinishDirective()

	if evalErr != nil {
		out.Err = apperr.Classify(evalErr)
	} else {
		out.Value = v
	}
	out.Deps = rec

	if len(rt.Mutations) > 0 {
		// Invalidate before storing so the fresh result survives.
		e.routeMutations(ctx, rt.Mutations)
		r.notes = rt.Notes
	}
	if !cyclic {
		e.store(addr, out, rt.Notes, rec)
	}
	e.registerRefreshes(addr, rt.Refreshes)
	return out
}

// evaluate recovers panics so no raw fault escapes a directive.
func (e *Engine) evaluate(ctx context.Context, expr ast.Expr, rt *eval.Runtime) (v value.Value, err error) {
	defer func() {
		if p := recover(); p != nil {
			e.logger.Error("engine: evaluation panicked", slog.String("panic", fmt.Sprint(p)))
			err = apperr.New(apperr.KindType, expr.Pos(), "internal error: %v", p)
		}
	}()
	return eval.Evaluate(ctx, expr, eval.NewEnv(rt))
}

func (e *Engine) lookup(ctx context.Context, addr cache.Address, notes *models.Collection) (*cache.Result, bool) {
	r, ok, err := e.cache.GetWithL2Fallback(ctx, addr)
	if err != nil {
		e.logger.Warn("engine: cache read failed",
			slog.String("key", addr.Key),
			slog.String("error", err.Error()))
		return nil, false
	}
	if !ok || e.cache.Checker().ShouldReExecute(r.Fingerprint, r.Err, notes) {
		return nil, false
	}
	return r, true
}

func (e *Engine) store(addr cache.Address, out *Outcome, notes *models.Collection, rec *deps.Record) {
	if out.Err != nil && !out.Err.Deterministic() {
		return
	}
	res := &cache.Result{
		Value:       out.Value,
		Err:         out.Err,
		Fingerprint: e.cache.Checker().ComputeHashes(notes, rec),
		CachedAt:    e.clock(),
	}
	if err := e.cache.PutWithL2(addr, res); err != nil {
		e.logger.Warn("engine: cache write failed",
			slog.String("key", addr.Key),
			slog.String("error", err.Error()))
	}
}

// syntaxError caches parse failures under a key derived from the source,
// since there is no tree to derive one from.
func (e *Engine) syntaxError(ctx context.Context, src string, err error) *Outcome {
	addr := cache.Address{Key: checksum.SumString("SYNTAX:" + src)}
	if hit, ok, _ := e.cache.GetWithL2Fallback(ctx, addr); ok && hit.Err != nil {
		return &Outcome{Err: hit.Err, Key: addr.Key, FromCache: true}
	}
	out := &Outcome{Err: apperr.Classify(err), Key: addr.Key}
	e.store(addr, out, nil, nil)
	return out
}

func (e *Engine) registerRefreshes(addr cache.Address, refreshes []eval.Refresh) {
	if e.scheduler == nil || len(refreshes) == 0 {
		return
	}
	var triggers []refresh.Trigger
	for _, r := range refreshes {
		if len(r.Triggers) == 0 {
			triggers = append(triggers, refresh.DefaultTriggers(r.Body)...)
			continue
		}
		for _, s := range r.Triggers {
			triggers = append(triggers, refresh.FromSchedule(s))
		}
	}
	reg := refresh.Registration{Key: addr.Key, Triggers: triggers}
	if addr.SelfAccess {
		reg.NoteID = addr.NoteID
	}
	e.scheduler.Register(reg)
}

func (e *Engine) routeMutations(ctx context.Context, muts []models.NoteMutation) {
	ids := make([]string, 0, len(muts))
	seen := make(map[string]bool, len(muts))
	for _, m := range muts {
		if !seen[m.NoteID] {
			seen[m.NoteID] = true
			ids = append(ids, m.NoteID)
		}
	}
	e.invalidate(ctx, ids)
}

// NotesChanged invalidates the notes edited outside directive evaluation,
// by the file watcher or the HTTP API. Deleted notes also lose their
// directive instances.
func (e *Engine) NotesChanged(ctx context.Context, deleted bool, ids ...string) {
	if deleted {
		for _, id := range ids {
			e.instances.Forget(id)
		}
	}
	e.invalidate(ctx, ids)
}

func (e *Engine) invalidate(ctx context.Context, ids []string) {
	if len(ids) == 0 {
		return
	}
	if e.sessions != nil {
		e.sessions.RequestInvalidation(ctx, ids...)
		return
	}
	e.cache.InvalidateForNotes(ctx, ids...)
}

// InvalidateRefresh drops the cached result of a fired refresh
// registration. It is the scheduler callback.
func (e *Engine) InvalidateRefresh(r refresh.Registration) {
	e.cache.InvalidateKey(context.Background(), r.Key, r.NoteID)
}
