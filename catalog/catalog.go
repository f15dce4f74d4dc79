// Package catalog declares the lab-catalog entities and exposes one
// repository per entity over a shared transaction coordinator.
package catalog

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/mickamy/labcat/internal/naming"
	"github.com/mickamy/labcat/orm"
)

// Catalog holds a repository per entity kind. Repositories share one
// Coordinator, so Begin/Commit span calls across entities.
type Catalog struct {
	Program           *orm.Repo
	Project           *orm.Repo
	Grant             *orm.Repo
	Lab               *orm.Repo
	Contributor       *orm.Repo
	Cohort            *orm.Repo
	Subject           *orm.Repo
	Sample            *orm.Repo
	Library           *orm.Repo
	LibraryPool       *orm.Repo
	Event             *orm.Repo
	File              *orm.Repo
	Analysis          *orm.Repo
	Collection        *orm.Repo
	DataUseLimitation *orm.Repo
	Attribute         *orm.Repo
	Taxonomy          *orm.Repo
	Anatomy           *orm.Repo
	Technique         *orm.Repo
	Modality          *orm.Repo
	Assay             *orm.Repo
	SpecimenType      *orm.Repo
	DataType          *orm.Repo
	FileFormat        *orm.Repo
	InsCert           *orm.Repo
	CVList            *orm.Repo

	co    *orm.Coordinator
	byKey map[string]*orm.Repo
	kinds []string
}

type options struct {
	logger  *zap.Logger
	metrics *orm.Metrics
	timeout time.Duration
}

// Option configures New.
type Option func(*options)

// WithLogger sets the logger for transactions and failed operations.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics records repository operations in m.
func WithMetrics(m *orm.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithStatementTimeout bounds each repository call.
func WithStatementTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// New declares every entity over db.
func New(db *orm.DB, opts ...Option) (*Catalog, error) {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	co := orm.NewCoordinator(db, orm.WithLogger(o.logger), orm.WithStatementTimeout(o.timeout))
	c := &Catalog{co: co, byKey: map[string]*orm.Repo{}}

	repoOpts := []orm.RepoOption{orm.WithRepoLogger(o.logger)}
	if o.metrics != nil {
		repoOpts = append(repoOpts, orm.WithMetrics(o.metrics))
	}
	for _, e := range []struct {
		dst  **orm.Repo
		meta *orm.Meta
	}{
		{&c.Program, programMeta()},
		{&c.Project, projectMeta()},
		{&c.Grant, grantMeta()},
		{&c.Lab, labMeta()},
		{&c.Contributor, contributorMeta()},
		{&c.Cohort, cohortMeta()},
		{&c.Subject, subjectMeta()},
		{&c.Sample, sampleMeta()},
		{&c.Library, libraryMeta()},
		{&c.LibraryPool, libraryPoolMeta()},
		{&c.Event, eventMeta()},
		{&c.File, fileMeta()},
		{&c.Analysis, analysisMeta()},
		{&c.Collection, collectionMeta()},
		{&c.DataUseLimitation, dataUseLimitationMeta()},
		{&c.Attribute, attributeMeta()},
		{&c.Taxonomy, taxonomyMeta()},
		{&c.Anatomy, anatomyMeta()},
		{&c.Technique, techniqueMeta()},
		{&c.Modality, modalityMeta()},
		{&c.Assay, assayMeta()},
		{&c.SpecimenType, specimenTypeMeta()},
		{&c.DataType, dataTypeMeta()},
		{&c.FileFormat, fileFormatMeta()},
		{&c.InsCert, insCertMeta()},
		{&c.CVList, cvListMeta()},
	} {
		r, err := orm.NewRepo(e.meta, co, repoOpts...)
		if err != nil {
			return nil, errors.Wrapf(err, "declare %s", e.meta.Kind)
		}
		*e.dst = r
		c.byKey[naming.EntityKey(r.Kind())] = r
		c.kinds = append(c.kinds, r.Kind())
	}
	slices.Sort(c.kinds)
	return c, nil
}

// Kinds returns the declared entity kinds, sorted.
func (c *Catalog) Kinds() []string { return slices.Clone(c.kinds) }

// Repo finds the repository for name. Kind names, table names, and their
// plurals are accepted: "Subject", "subjects", "library_pools".
func (c *Catalog) Repo(name string) (*orm.Repo, error) {
	if r, ok := c.byKey[naming.EntityKey(name)]; ok {
		return r, nil
	}
	return nil, errors.WithHintf(
		errors.Wrapf(orm.ErrInvalidArgument, "unknown entity %q", name),
		"known entities: %s", strings.Join(c.kinds, ", "),
	)
}

// Coordinator returns the coordinator shared by every repository.
func (c *Catalog) Coordinator() *orm.Coordinator { return c.co }

// Begin starts a transaction spanning subsequent calls on any repository.
func (c *Catalog) Begin(ctx context.Context) error { return c.co.Begin(ctx) }

// Commit commits the transaction started by Begin.
func (c *Catalog) Commit() error { return c.co.Commit() }

// Rollback discards the transaction started by Begin.
func (c *Catalog) Rollback() error { return c.co.Rollback() }

// Transaction runs fn between Begin and Commit, rolling back if fn fails.
func (c *Catalog) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return c.co.Transaction(ctx, fn)
}
