package importer

import (
	"bytes"

	"github.com/cespare/xxhash/v2"
	"github.com/dolthub/swiss"
	"github.com/pkg/errors"
	"go.uber.org/atomic"

	"github.com/grafana/clrmeta/pkg/metadata"
)

var ErrDuplicate = errors.New("member is already mapped to a different clone")

// IdentityMap maps original members to their clones. Originals are
// matched structurally, so two references to the same external member map
// to one entry.
type IdentityMap struct {
	cmp     metadata.SignatureComparer
	buckets *swiss.Map[uint64, []int]
	entries []identityEntry

	hits   atomic.Int64
	misses atomic.Int64
}

type identityEntry struct {
	key      []byte
	original metadata.Member
	clone    metadata.Member
}

func NewIdentityMap(cmp metadata.SignatureComparer) *IdentityMap {
	return &IdentityMap{
		cmp:     cmp,
		buckets: swiss.NewMap[uint64, []int](64),
	}
}

func (m *IdentityMap) index(key []byte) (int, bool) {
	bucket, ok := m.buckets.Get(hashKey(key))
	if !ok {
		return 0, false
	}
	for _, i := range bucket {
		if bytes.Equal(m.entries[i].key, key) {
			return i, true
		}
	}
	return 0, false
}

// Add maps original to clone. Adding the same pair twice is a no-op;
// mapping an original to a second clone fails with ErrDuplicate.
func (m *IdentityMap) Add(original, clone metadata.Member) error {
	key := m.cmp.Key(original)
	if i, ok := m.index(key); ok {
		if m.entries[i].clone == clone {
			return nil
		}
		return errors.Wrapf(ErrDuplicate, "%T %s", original, original.Token())
	}
	h := hashKey(key)
	bucket, _ := m.buckets.Get(h)
	m.buckets.Put(h, append(bucket, len(m.entries)))
	m.entries = append(m.entries, identityEntry{key: key, original: original, clone: clone})
	return nil
}

// Lookup returns the clone of original and records a hit or a miss.
func (m *IdentityMap) Lookup(original metadata.Member) (metadata.Member, bool) {
	clone, ok := m.Get(original)
	if ok {
		m.hits.Inc()
	} else {
		m.misses.Inc()
	}
	return clone, ok
}

// Get is like Lookup without recording statistics.
func (m *IdentityMap) Get(original metadata.Member) (metadata.Member, bool) {
	if original == nil {
		return nil, false
	}
	i, ok := m.index(m.cmp.Key(original))
	if !ok {
		return nil, false
	}
	return m.entries[i].clone, true
}

func (m *IdentityMap) Len() int { return len(m.entries) }

// Truncate removes every entry added after the first n.
func (m *IdentityMap) Truncate(n int) {
	if n < 0 {
		n = 0
	}
	for i := len(m.entries) - 1; i >= n; i-- {
		h := hashKey(m.entries[i].key)
		bucket, _ := m.buckets.Get(h)
		bucket = bucket[:len(bucket)-1]
		if len(bucket) == 0 {
			m.buckets.Delete(h)
		} else {
			m.buckets.Put(h, bucket)
		}
		m.entries[i] = identityEntry{}
	}
	if n < len(m.entries) {
		m.entries = m.entries[:n]
	}
}

// Range calls fn for every entry in insertion order until fn returns
// false.
func (m *IdentityMap) Range(fn func(original, clone metadata.Member) bool) {
	for _, e := range m.entries {
		if !fn(e.original, e.clone) {
			return
		}
	}
}

func (m *IdentityMap) Hits() int64 { return m.hits.Load() }

func (m *IdentityMap) Misses() int64 { return m.misses.Load() }

// IdentityImporter consults an identity map before falling back to a
// default importer. Nested imports performed by the default importer go
// through the identity map too.
type IdentityImporter struct {
	ids   *IdentityMap
	inner *ReferenceImporter
}

// WithIdentityMap returns an importer for target that prefers the clones
// recorded in ids.
func WithIdentityMap(target *metadata.Module, ids *IdentityMap) *IdentityImporter {
	inner := New(target)
	inner.cmp = ids.cmp
	imp := &IdentityImporter{ids: ids, inner: inner}
	inner.outer = imp
	return imp
}

func (i *IdentityImporter) Target() *metadata.Module { return i.inner.Target() }

func (i *IdentityImporter) IdentityMap() *IdentityMap { return i.ids }

func (i *IdentityImporter) ImportType(t metadata.TypeDefOrRef) (metadata.TypeDefOrRef, error) {
	if t == nil {
		return nil, nil
	}
	if clone, ok := i.ids.Lookup(t); ok {
		c, ok := clone.(metadata.TypeDefOrRef)
		if !ok {
			return nil, errors.Wrapf(ErrUnexpectedImport, "type %s mapped to %T", t.FullName(), clone)
		}
		return c, nil
	}
	return i.inner.ImportType(t)
}

func (i *IdentityImporter) ImportMethod(m metadata.MethodDefOrRef) (metadata.MethodDefOrRef, error) {
	if m == nil {
		return nil, nil
	}
	if clone, ok := i.ids.Lookup(m); ok {
		c, ok := clone.(metadata.MethodDefOrRef)
		if !ok {
			return nil, errors.Wrapf(ErrUnexpectedImport, "method %s mapped to %T", m.Name(), clone)
		}
		return c, nil
	}
	return i.inner.ImportMethod(m)
}

func (i *IdentityImporter) ImportField(f metadata.FieldDescriptor) (metadata.FieldDescriptor, error) {
	if f == nil {
		return nil, nil
	}
	if clone, ok := i.ids.Lookup(f); ok {
		c, ok := clone.(metadata.FieldDescriptor)
		if !ok {
			return nil, errors.Wrapf(ErrUnexpectedImport, "field %s mapped to %T", f.Name(), clone)
		}
		return c, nil
	}
	return i.inner.ImportField(f)
}

func (i *IdentityImporter) ImportMethodSpecification(s *metadata.MethodSpecification) (*metadata.MethodSpecification, error) {
	if s == nil {
		return nil, nil
	}
	if clone, ok := i.ids.Lookup(s); ok {
		c, ok := clone.(*metadata.MethodSpecification)
		if !ok {
			return nil, errors.Wrapf(ErrUnexpectedImport, "method specification %s mapped to %T", s.Name(), clone)
		}
		return c, nil
	}
	return i.inner.ImportMethodSpecification(s)
}

// ImportMember dispatches importable kinds to the typed methods. Other
// kinds, such as generic parameters, are only resolved through the
// identity map.
func (i *IdentityImporter) ImportMember(m metadata.Member) (metadata.Member, error) {
	switch m.(type) {
	case nil:
		return nil, nil
	case *metadata.MethodSpecification, *metadata.StandAloneSignature,
		metadata.TypeDefOrRef, metadata.MethodDefOrRef, metadata.FieldDescriptor:
		return importMember(i, i.importStandAloneSignature, m)
	case *metadata.ModuleReference:
		if clone, ok := i.ids.Lookup(m); ok {
			return clone, nil
		}
		return i.inner.ImportMember(m)
	}
	if clone, ok := i.ids.Lookup(m); ok {
		return clone, nil
	}
	return nil, errors.Wrapf(ErrUnsupportedMember, "%T", m)
}

func (i *IdentityImporter) importStandAloneSignature(s *metadata.StandAloneSignature) (*metadata.StandAloneSignature, error) {
	if clone, ok := i.ids.Lookup(s); ok {
		c, ok := clone.(*metadata.StandAloneSignature)
		if !ok {
			return nil, errors.Wrapf(ErrUnexpectedImport, "standalone signature mapped to %T", clone)
		}
		return c, nil
	}
	return i.inner.importStandAloneSignature(s)
}

func hashKey(key []byte) uint64 { return xxhash.Sum64(key) }
