package view

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/stage-tech/basestar-sub001/internal/expr"
	"github.com/stage-tech/basestar-sub001/internal/ir"
	"github.com/stage-tech/basestar-sub001/internal/store"
)

// ErrUnknownView is returned by Rows for a view that is not maintained.
var ErrUnknownView = errors.New("unknown view")

// Source reads the objects a group is recomputed from. *store.Store
// implements it.
type Source interface {
	Filter(ctx context.Context, schema string, where expr.Expr) ([]ir.Object, error)
}

// Option configures a Maintainer.
type Option func(*Maintainer)

// WithErrorHandler is called by Run when a change cannot be applied. The
// default logs the error; Run keeps going either way.
func WithErrorHandler(fn func(store.Change, error)) Option {
	return func(m *Maintainer) {
		m.onError = fn
	}
}

// Maintainer keeps a set of views up to date with store changes.
//
// Single-writer: state is only modified by Apply, which Run calls from
// one goroutine. Rows may be called concurrently.
type Maintainer struct {
	source  Source
	views   []*View
	byName  map[string]*View
	queue   *changeQueue
	onError func(store.Change, error)

	mu      sync.RWMutex
	groups  map[string]map[string]*group // view name -> group key -> state
	applied int64
}

// NewMaintainer creates a maintainer for views. Views start empty; call
// Rebuild to load existing objects.
func NewMaintainer(source Source, views []*View, opts ...Option) *Maintainer {
	m := &Maintainer{
		source: source,
		views:  views,
		byName: make(map[string]*View, len(views)),
		queue:  newChangeQueue(),
		groups: make(map[string]map[string]*group, len(views)),
	}
	m.onError = func(c store.Change, err error) {
		slog.Error("view maintenance failed", "seq", c.Seq, "schema", c.Schema, "id", c.ID(), "error", err)
	}
	for _, v := range views {
		m.byName[v.Name] = v
		m.groups[v.Name] = make(map[string]*group)
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Enqueue queues a change for Run. It has the store.ChangeHandler
// signature, so it can be passed to store.WithChangeHandler.
func (m *Maintainer) Enqueue(c store.Change) {
	if !m.queue.Enqueue(c) {
		slog.Warn("change dropped: maintainer closed", "seq", c.Seq)
	}
}

// Pending returns the number of queued changes.
func (m *Maintainer) Pending() int {
	return m.queue.Len()
}

// Close stops accepting changes. Run returns once the queue is drained.
func (m *Maintainer) Close() {
	m.queue.Close()
}

// Run applies queued changes in order until ctx is cancelled or the
// maintainer is closed and drained.
func (m *Maintainer) Run(ctx context.Context) error {
	slog.Info("view maintainer starting", "views", len(m.views))

	for {
		if batch := m.queue.Drain(); batch != nil {
			m.applyBatch(ctx, batch)
		}

		if m.queue.Closed() && m.queue.Len() == 0 {
			slog.Info("view maintainer stopping: queue closed")
			return nil
		}

		select {
		case <-ctx.Done():
			slog.Info("view maintainer stopping: context cancelled")
			return ctx.Err()
		case <-m.queue.Wait():
		}
	}
}

// Applied returns the sequence number of the last applied change.
func (m *Maintainer) Applied() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.applied
}

// applyBatch applies changes under a single lock so readers never see a
// batch half applied. Failures are reported once the lock is released.
func (m *Maintainer) applyBatch(ctx context.Context, batch []store.Change) {
	type failure struct {
		change store.Change
		err    error
	}
	var failed []failure

	m.mu.Lock()
	for _, c := range batch {
		if err := m.apply(ctx, c); err != nil {
			failed = append(failed, failure{c, err})
		}
	}
	m.mu.Unlock()

	slog.Debug("change batch applied", "changes", len(batch), "failed", len(failed))
	for _, f := range failed {
		m.onError(f.change, f.err)
	}
}

// Apply folds one change into every view over its schema.
func (m *Maintainer) Apply(ctx context.Context, c store.Change) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.apply(ctx, c)
}

func (m *Maintainer) apply(ctx context.Context, c store.Change) error {
	for _, v := range m.views {
		if v.Schema != c.Schema {
			continue
		}
		if err := m.applyView(ctx, v, c); err != nil {
			return fmt.Errorf("view %s: change %d: %w", v.Name, c.Seq, err)
		}
	}
	m.applied = max(m.applied, c.Seq)
	return nil
}

func (m *Maintainer) applyView(ctx context.Context, v *View, c store.Change) error {
	groups := m.groups[v.Name]
	dirty := make(map[string]ir.IRArray)

	if c.Before != nil {
		row := expr.NewContext(c.Before.Record())
		key, values, ok, err := v.classify(row)
		if err != nil {
			return err
		}
		g := groups[key]
		if ok && g != nil {
			if ver, member := g.members[c.Before.ID]; member && ver == c.Before.Version {
				if v.removable {
					if err := v.step(g, row, true); err != nil {
						return err
					}
					delete(g.members, c.Before.ID)
					if len(g.members) == 0 {
						delete(groups, key)
					}
				} else {
					dirty[key] = values
				}
			}
		}
	}

	if c.After != nil {
		row := expr.NewContext(c.After.Record())
		key, values, ok, err := v.classify(row)
		if err != nil {
			return err
		}
		if ok {
			g := groups[key]
			_, isDirty := dirty[key]
			switch {
			case g != nil && g.members[c.After.ID] == c.After.Version:
				// Already folded in by a recomputation.
			case isDirty:
			case !v.appendable:
				dirty[key] = values
			default:
				if g == nil {
					g = v.newGroup(values)
				}
				if err := v.step(g, row, false); err != nil {
					return err
				}
				g.members[c.After.ID] = c.After.Version
				groups[key] = g
			}
		}
	}

	keys := make([]string, 0, len(dirty))
	for key := range dirty {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	for _, key := range keys {
		if err := m.recompute(ctx, v, key, dirty[key]); err != nil {
			return err
		}
	}

	slog.Debug("change applied", "view", v.Name, "seq", c.Seq, "recomputed", len(keys))
	return nil
}

// recompute rebuilds one group from the source. Defined scalar group
// values are added to the filter so they can be pushed down; the group
// key is still checked per row.
func (m *Maintainer) recompute(ctx context.Context, v *View, key string, values ir.IRArray) error {
	var conjuncts []expr.Expr
	if v.Where != nil {
		conjuncts = append(conjuncts, v.Where)
	}
	for i, g := range v.GroupBy {
		switch values[i].(type) {
		case ir.IRString, ir.IRInt, ir.IRFloat, ir.IRBool:
			conjuncts = append(conjuncts, expr.NewBinary(expr.OpEq, g, expr.Const(values[i])))
		}
	}
	var filter expr.Expr
	switch len(conjuncts) {
	case 0:
		filter = expr.Const(ir.IRBool(true))
	case 1:
		filter = conjuncts[0]
	default:
		filter = expr.NewAnd(conjuncts...)
	}

	objs, err := m.source.Filter(ctx, v.Schema, filter)
	if err != nil {
		return fmt.Errorf("recompute: %w", err)
	}

	g := v.newGroup(values)
	var rows []expr.Context
	for _, obj := range objs {
		row := expr.NewContext(obj.Record())
		k, _, ok, err := v.classify(row)
		if err != nil {
			return fmt.Errorf("recompute %s: %w", obj.ID, err)
		}
		if ok && k == key {
			rows = append(rows, row)
			g.members[obj.ID] = obj.Version
		}
	}

	groups := m.groups[v.Name]
	if len(rows) == 0 {
		delete(groups, key)
		return nil
	}
	if err := v.fill(g, rows); err != nil {
		return fmt.Errorf("recompute: %w", err)
	}
	groups[key] = g
	return nil
}

// Rebuild discards the state of every view and recomputes it from the
// source.
func (m *Maintainer) Rebuild(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, v := range m.views {
		m.groups[v.Name] = make(map[string]*group)

		filter := v.Where
		if filter == nil {
			filter = expr.Const(ir.IRBool(true))
		}
		objs, err := m.source.Filter(ctx, v.Schema, filter)
		if err != nil {
			return fmt.Errorf("rebuild %s: %w", v.Name, err)
		}

		groups := m.groups[v.Name]
		members := make(map[string][]expr.Context)
		for _, obj := range objs {
			row := expr.NewContext(obj.Record())
			key, values, ok, err := v.classify(row)
			if err != nil {
				return fmt.Errorf("rebuild %s: %s: %w", v.Name, obj.ID, err)
			}
			if !ok {
				continue
			}
			g := groups[key]
			if g == nil {
				g = v.newGroup(values)
				groups[key] = g
			}
			g.members[obj.ID] = obj.Version
			members[key] = append(members[key], row)
		}
		for key, rows := range members {
			if err := v.fill(groups[key], rows); err != nil {
				return fmt.Errorf("rebuild %s: %w", v.Name, err)
			}
		}
		slog.Info("view rebuilt", "view", v.Name, "objects", len(objs), "groups", len(groups))
	}
	return nil
}

// Rows returns the finalised groups of a view ordered by their canonical
// group values.
func (m *Maintainer) Rows(name string) ([]ir.IRObject, error) {
	v, ok := m.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownView, name)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	type keyed struct {
		sortKey []byte
		row     ir.IRObject
	}
	out := make([]keyed, 0, len(m.groups[name]))
	for _, g := range m.groups[name] {
		row, err := v.row(g)
		if err != nil {
			return nil, fmt.Errorf("view %s: %w", name, err)
		}
		sortKey, err := ir.MarshalCanonical(g.values)
		if err != nil {
			return nil, fmt.Errorf("view %s: %w", name, err)
		}
		out = append(out, keyed{sortKey, row})
	}
	slices.SortFunc(out, func(a, b keyed) int { return bytes.Compare(a.sortKey, b.sortKey) })

	rows := make([]ir.IRObject, len(out))
	for i, k := range out {
		rows[i] = k.row
	}
	return rows, nil
}

// Views returns the maintained view names in declaration order.
func (m *Maintainer) Views() []string {
	names := make([]string, len(m.views))
	for i, v := range m.views {
		names[i] = v.Name
	}
	return names
}
