// Package cloner deep-copies type definitions, and everything they own,
// from one module into another. Every reference held by the copies is
// rewritten to be valid in the target module.
package cloner

import (
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/grafana/clrmeta/pkg/importer"
	"github.com/grafana/clrmeta/pkg/metadata"
	"github.com/grafana/clrmeta/pkg/util"
)

var (
	ErrTooManyTypes      = errors.New("too many types in a single clone operation")
	ErrBodyTooLarge      = errors.New("method body has too many instructions")
	ErrOperandOutOfRange = errors.New("operand index is out of range")
	ErrNotCloned         = errors.New("member has no clone")
	ErrAlreadyCloned     = errors.New("type was already cloned by this cloner")
)

// Cloner copies members into a single target module. The identity map is
// kept across operations, so later clones reference earlier ones and a
// type can be cloned only once per Cloner. Use a new Cloner to make a
// second copy. A Cloner must not be used concurrently.
type Cloner struct {
	logger  log.Logger
	cfg     Config
	metrics *metrics

	target *metadata.Module
	ids    *importer.IdentityMap
	imp    *importer.IdentityImporter
}

func New(logger log.Logger, cfg Config, reg prometheus.Registerer, target *metadata.Module) (*Cloner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if target == nil {
		return nil, errors.New("cloner requires a target module")
	}
	if logger == nil {
		logger = util.Logger
	}
	ids := importer.NewIdentityMap(metadata.SignatureComparer{IgnoreAssemblyVersion: cfg.IgnoreAssemblyVersion})
	return &Cloner{
		logger:  logger,
		cfg:     cfg,
		metrics: newMetrics(reg),
		target:  target,
		ids:     ids,
		imp:     importer.WithIdentityMap(target, ids),
	}, nil
}

func (c *Cloner) Target() *metadata.Module { return c.target }

// Importer returns the importer used for every reference of the clones.
// Members imported through it outside of a clone operation also prefer
// the clones.
func (c *Cloner) Importer() importer.Importer { return c.imp }

func (c *Cloner) IdentityMap() *importer.IdentityMap { return c.ids }

// Result describes a committed clone operation.
type Result struct {
	// Types are the clones of the root types, in the order they were
	// given.
	Types []*metadata.TypeDefinition

	ids *importer.IdentityMap
}

// ClonedMember returns the clone of original.
func (r *Result) ClonedMember(original metadata.Member) (metadata.Member, bool) {
	return r.ids.Get(original)
}

// ClonedType returns the clone of a type definition.
func (r *Result) ClonedType(original *metadata.TypeDefinition) (*metadata.TypeDefinition, bool) {
	m, ok := r.ids.Get(original)
	if !ok {
		return nil, false
	}
	t, ok := m.(*metadata.TypeDefinition)
	return t, ok
}

// CloneType clones a single type and its nested types.
func (c *Cloner) CloneType(t *metadata.TypeDefinition) (*metadata.TypeDefinition, error) {
	res, err := c.CloneTypes(t)
	if err != nil {
		return nil, err
	}
	return res.Types[0], nil
}

// CloneTypes clones types, their nested types and all their members into
// the target module. Types nested in another type of the list are cloned
// with it. Either every member is committed or, on error, the target and
// the identity map are restored to their state before the call.
//
// Types already cloned by c fail with ErrAlreadyCloned; their clones are
// available through IdentityMap.
func (c *Cloner) CloneTypes(types ...*metadata.TypeDefinition) (res *Result, err error) {
	start := time.Now()
	hits, misses := c.ids.Hits(), c.ids.Misses()
	cp := c.target.Checkpoint()
	mark := c.ids.Len()
	op := newOperation(c)

	defer func() {
		status := statusSuccess
		if err != nil {
			status = statusFailure
			c.target.Rollback(cp)
			c.ids.Truncate(mark)
			level.Warn(c.logger).Log("msg", "clone aborted, target rolled back", "types", len(types), "err", err)
		} else {
			for kind, n := range op.counts {
				c.metrics.membersCloned.WithLabelValues(kind).Add(float64(n))
			}
		}
		c.metrics.operations.WithLabelValues(status).Inc()
		c.metrics.duration.Observe(time.Since(start).Seconds())
		c.metrics.identityLookups.WithLabelValues("hit").Add(float64(c.ids.Hits() - hits))
		c.metrics.identityLookups.WithLabelValues("miss").Add(float64(c.ids.Misses() - misses))
	}()

	roots, err := op.collect(types)
	if err != nil {
		return nil, err
	}
	if err = op.stub(roots); err != nil {
		return nil, errors.Wrap(err, "stub pass")
	}
	level.Debug(c.logger).Log("msg", "stub pass complete", "roots", len(roots), "types", len(op.types))
	if err = op.declare(); err != nil {
		return nil, errors.Wrap(err, "declare pass")
	}
	level.Debug(c.logger).Log("msg", "declare pass complete", "fields", op.counts[kindField], "methods", op.counts[kindMethod])
	if err = op.finalize(); err != nil {
		return nil, errors.Wrap(err, "finalize pass")
	}
	level.Debug(c.logger).Log("msg", "finalize pass complete", "bodies", op.counts[kindBody], "custom_attributes", op.counts[kindCustomAttribute])

	res = &Result{ids: c.ids, Types: make([]*metadata.TypeDefinition, len(types))}
	for i, t := range types {
		clone, ok := res.ClonedType(t)
		if !ok {
			return nil, errors.Wrapf(ErrNotCloned, "type %s", t.FullName())
		}
		res.Types[i] = clone
	}
	return res, nil
}
