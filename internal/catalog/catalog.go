// Package catalog loads the collection and record set descriptors that
// drive the row stores, the list managers and the HTTP API.
package catalog

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/jyl/universe/internal/domain"
)

//go:embed collections.yaml
var defaultCatalog []byte

type document struct {
	Collections []*domain.Collection `yaml:"collections"`
	Records     []*domain.RecordSet  `yaml:"records"`
}

// Catalog is an immutable, ordered set of collection and record set
// descriptors.
type Catalog struct {
	ordered []*domain.Collection
	byName  map[string]*domain.Collection

	records       []*domain.RecordSet
	recordsByName map[string]*domain.RecordSet
}

// Default returns the catalog embedded in the binary.
func Default() (*Catalog, error) {
	return Parse(bytes.NewReader(defaultCatalog))
}

// MustDefault is Default for package-level initialization in tests and tools.
func MustDefault() *Catalog {
	c, err := Default()
	if err != nil {
		panic(err)
	}
	return c
}

// Parse decodes and validates a YAML catalog. Unknown keys are rejected.
func Parse(r io.Reader) (*Catalog, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidCatalog, err)
	}

	return NewWithRecords(doc.Collections, doc.Records)
}

// New builds a catalog of collections only.
func New(collections ...*domain.Collection) (*Catalog, error) {
	return NewWithRecords(collections, nil)
}

// NewWithRecords builds a catalog from descriptors, validating each one.
// Collections and record sets share one table namespace.
func NewWithRecords(collections []*domain.Collection, records []*domain.RecordSet) (*Catalog, error) {
	c := &Catalog{
		byName:        make(map[string]*domain.Collection, len(collections)),
		recordsByName: make(map[string]*domain.RecordSet, len(records)),
	}
	tables := map[string]string{}

	for _, coll := range collections {
		if err := coll.Validate(); err != nil {
			return nil, err
		}
		if _, dup := c.byName[coll.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate collection %q", domain.ErrInvalidCatalog, coll.Name)
		}
		if other, dup := tables[coll.Table]; dup {
			return nil, fmt.Errorf("%w: collections %q and %q share table %q", domain.ErrInvalidCatalog, other, coll.Name, coll.Table)
		}
		tables[coll.Table] = coll.Name
		c.byName[coll.Name] = coll
		c.ordered = append(c.ordered, coll)
	}

	for _, set := range records {
		if err := set.Validate(); err != nil {
			return nil, err
		}
		if _, dup := c.recordsByName[set.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate record set %q", domain.ErrInvalidCatalog, set.Name)
		}
		if other, dup := tables[set.Table]; dup {
			return nil, fmt.Errorf("%w: %q and record set %q share table %q", domain.ErrInvalidCatalog, other, set.Name, set.Table)
		}
		tables[set.Table] = set.Name
		c.recordsByName[set.Name] = set
		c.records = append(c.records, set)
	}

	return c, nil
}

// Get returns the named collection or domain.ErrCollectionNotFound.
func (c *Catalog) Get(name string) (*domain.Collection, error) {
	coll, ok := c.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrCollectionNotFound, name)
	}
	return coll, nil
}

// All returns the collections in declaration order.
func (c *Catalog) All() []*domain.Collection {
	out := make([]*domain.Collection, len(c.ordered))
	copy(out, c.ordered)
	return out
}

// RecordSet returns the named record set or domain.ErrRecordSetNotFound.
func (c *Catalog) RecordSet(name string) (*domain.RecordSet, error) {
	set, ok := c.recordsByName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrRecordSetNotFound, name)
	}
	return set, nil
}

// RecordSets returns the record sets in declaration order.
func (c *Catalog) RecordSets() []*domain.RecordSet {
	out := make([]*domain.RecordSet, len(c.records))
	copy(out, c.records)
	return out
}

// Scopes returns every list scope of the collection: the scope values for a
// scoped collection, or a single empty scope.
func Scopes(coll *domain.Collection) []string {
	if coll.Scope == nil {
		return []string{""}
	}
	out := make([]string, len(coll.Scope.Values))
	copy(out, coll.Scope.Values)
	return out
}
