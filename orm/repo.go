package orm

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// Repo performs the caller-facing operations for one entity kind. All
// statements go through the Coordinator, so repositories sharing a
// Coordinator take part in the same explicit transaction.
type Repo struct {
	meta    *Meta
	co      *Coordinator
	logger  *zap.Logger
	metrics *Metrics
}

// RepoOption configures a Repo.
type RepoOption func(*Repo)

// WithRepoLogger sets the logger for failed operations.
func WithRepoLogger(l *zap.Logger) RepoOption {
	return func(r *Repo) { r.logger = l }
}

// WithMetrics records every operation in m.
func WithMetrics(m *Metrics) RepoOption {
	return func(r *Repo) { r.metrics = m }
}

// NewRepo builds m and returns a repository for it.
func NewRepo(m *Meta, co *Coordinator, opts ...RepoOption) (*Repo, error) {
	if err := m.Build(); err != nil {
		return nil, err
	}
	r := &Repo{meta: m, co: co, logger: co.logger}
	for _, o := range opts {
		o(r)
	}
	return r, nil
}

// Meta returns the entity declaration.
func (r *Repo) Meta() *Meta { return r.meta }

// Kind returns the entity kind, e.g. "Subject".
func (r *Repo) Kind() string { return r.meta.Kind }

// List returns every record matching f, ordered by id, with the named
// associations resolved. Unknown filter keys or association names fail
// before any statement runs.
func (r *Repo) List(ctx context.Context, f Filter, assocs ...string) (recs []*Record, err error) {
	defer r.done("list", time.Now(), &err)

	if err := r.checkRead(f, assocs); err != nil {
		return nil, err
	}
	f = f.withDefaults(r.meta.Defaults)
	read := func(ctx context.Context, q Querier) error {
		var err error
		recs, err = fetch(ctx, q, r.meta, f, assocs)
		return err
	}
	// One query per association: more than one must share a snapshot.
	if len(distinct(assocs)) > 1 {
		err = r.co.snapshot(ctx, read)
	} else {
		err = r.co.run(ctx, false, read)
	}
	if err != nil {
		return nil, err
	}
	return recs, nil
}

// Get returns the single record matching f. It fails with ErrNotFound when
// nothing matches and with ErrAmbiguous when more than one record does.
func (r *Repo) Get(ctx context.Context, f Filter, assocs ...string) (*Record, error) {
	recs, err := r.List(ctx, f, assocs...)
	if err != nil {
		return nil, err
	}
	switch len(recs) {
	case 0:
		return nil, errors.Wrapf(ErrNotFound, "%s matching %v", r.meta.Kind, map[string]any(f))
	case 1:
		return recs[0], nil
	default:
		return nil, errors.WithHint(
			errors.Wrapf(ErrAmbiguous, "%d %s records match %v", len(recs), r.meta.Kind, map[string]any(f)),
			"use List when more than one result is expected",
		)
	}
}

// Add inserts a record and writes any association values it carries, then
// returns the stored record. References (e.g. "project") are resolved to ids
// first.
func (r *Repo) Add(ctx context.Context, v Values) (rec *Record, err error) {
	defer r.done("add", time.Now(), &err)

	m := r.meta
	if err := m.checkWrite(v, true); err != nil {
		return nil, err
	}
	fields, assocVals := r.split(v)
	for k, dv := range m.Defaults {
		if _, ok := fields[k]; !ok {
			fields[k] = dv
		}
	}
	stamp(ctx, m, fields)

	err = r.co.run(ctx, true, func(ctx context.Context, q Querier) error {
		if err := resolveRefs(ctx, q, m, fields); err != nil {
			return err
		}
		stmt, err := BuildInsert(q.dialect(), m, fields)
		if err != nil {
			return err
		}
		res, err := exec(ctx, q, stmt)
		if err != nil {
			return r.conflict(q, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return errors.Wrap(err, "last insert id")
		}
		if err := r.writeAssociations(ctx, q, id, assocVals, nil); err != nil {
			return err
		}
		recs, err := fetchPlain(ctx, q, m, Filter{"id": id})
		if err != nil {
			return err
		}
		if len(recs) != 1 {
			return errors.Wrapf(ErrNotFound, "%s %d after insert", m.Kind, id)
		}
		rec = recs[0]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Update changes the updatable fields present in v on the record identified
// by "id" or by the natural key. Association values are inserted; names in
// deleteBeforeInsert have their existing rows removed first.
func (r *Repo) Update(ctx context.Context, v Values, deleteBeforeInsert ...string) (err error) {
	defer r.done("update", time.Now(), &err)

	m := r.meta
	if err := m.checkWrite(v, false); err != nil {
		return err
	}
	idv, hasID := v["id"]
	var key any
	hasKey := false
	if m.NaturalKey != "" {
		key, hasKey = v[m.NaturalKey]
	}
	if !hasID && !hasKey {
		if m.NaturalKey == "" {
			return errors.Wrapf(ErrInvalidArgument, "%s update requires id", m.Kind)
		}
		return errors.Wrapf(ErrInvalidArgument, "%s update requires id or %s", m.Kind, m.NaturalKey)
	}
	replace := make(map[string]bool, len(deleteBeforeInsert))
	for _, name := range deleteBeforeInsert {
		if m.Association(name) == nil {
			return errors.Wrapf(ErrUnknownAssociation, "%s has no association %q", m.Kind, name)
		}
		if m.Loaders[name] == nil {
			return errors.Wrapf(ErrInvalidArgument, "%s: association %q cannot be written", m.Kind, name)
		}
		replace[name] = true
	}
	fields, assocVals := r.split(v)
	delete(fields, "id")

	return r.co.run(ctx, true, func(ctx context.Context, q Querier) error {
		id := toInt64(idv)
		if !hasID {
			recs, err := fetchPlain(ctx, q, m, Filter{m.NaturalKey: key}.withDefaults(m.Defaults))
			if err != nil {
				return err
			}
			switch len(recs) {
			case 0:
				return errors.Wrapf(ErrNotFound, "%s with %s %v", m.Kind, m.NaturalKey, key)
			case 1:
				id = recs[0].ID
			default:
				return errors.Wrapf(ErrAmbiguous, "%d %s records with %s %v", len(recs), m.Kind, m.NaturalKey, key)
			}
		}
		if err := resolveRefs(ctx, q, m, fields); err != nil {
			return err
		}
		if stmt, ok := BuildUpdate(q.dialect(), m, id, fields); ok {
			if _, err := exec(ctx, q, stmt); err != nil {
				return r.conflict(q, err)
			}
		}
		return r.writeAssociations(ctx, q, id, assocVals, replace)
	})
}

// Delete removes the record with id together with the association rows it
// owns.
func (r *Repo) Delete(ctx context.Context, id int64) (err error) {
	defer r.done("delete", time.Now(), &err)

	if id <= 0 {
		return errors.Wrapf(ErrInvalidArgument, "%s delete requires an id", r.meta.Kind)
	}
	return r.co.run(ctx, true, func(ctx context.Context, q Querier) error {
		done := make(map[[2]string]bool)
		for i := range r.meta.Associations {
			a := &r.meta.Associations[i]
			if !a.owned() || done[[2]string{a.Table, a.IDCol}] {
				continue
			}
			done[[2]string{a.Table, a.IDCol}] = true
			if _, err := exec(ctx, q, buildAssocDelete(q.dialect(), a, id)); err != nil {
				return err
			}
		}
		_, err := exec(ctx, q, BuildDelete(q.dialect(), r.meta, id))
		return err
	})
}

// Compare reads the record matching f, resolving any associations named in
// candidate, and reports how candidate differs from it.
func (r *Repo) Compare(ctx context.Context, f Filter, candidate Values) (Diff, error) {
	var assocs []string
	for _, a := range r.meta.Associations {
		if _, ok := candidate[a.Name]; ok {
			assocs = append(assocs, a.Name)
		}
	}
	rec, err := r.Get(ctx, f, assocs...)
	if err != nil {
		return nil, err
	}
	return rec.Compare(candidate), nil
}

// Ancestors walks the self-join upwards from id.
func (r *Repo) Ancestors(ctx context.Context, id int64) (Levels, error) {
	return r.Walk(ctx, id, Ancestors)
}

// Descendants walks the self-join downwards from id.
func (r *Repo) Descendants(ctx context.Context, id int64) (Levels, error) {
	return r.Walk(ctx, id, Descendants)
}

// Walk returns the ids reachable from id in direction dir, grouped by depth.
func (r *Repo) Walk(ctx context.Context, id int64, dir Direction) (levels Levels, err error) {
	defer r.done(dir.String(), time.Now(), &err)

	sj := r.meta.SelfJoin
	if sj == nil {
		return nil, errors.Wrapf(ErrNoSelfJoin, "%s", r.meta.Kind)
	}
	err = r.co.run(ctx, false, func(ctx context.Context, q Querier) error {
		var err error
		levels, err = walk(ctx, q, sj, id, dir)
		return err
	})
	if err != nil {
		return nil, err
	}
	return levels, nil
}

func (r *Repo) checkRead(f Filter, assocs []string) error {
	if err := r.meta.validateFilter(f); err != nil {
		return err
	}
	return r.meta.validateAssocs(assocs)
}

// split copies v into entity values and association values.
func (r *Repo) split(v Values) (fields Values, assocs Values) {
	fields, assocs = Values{}, Values{}
	for k, val := range v {
		if r.meta.ref(k) == nil && r.meta.Association(k) != nil {
			assocs[k] = val
			continue
		}
		fields[k] = val
	}
	return fields, assocs
}

// writeAssociations inserts the rows produced by each association's loader,
// in declaration order.
func (r *Repo) writeAssociations(ctx context.Context, q Querier, id int64, vals Values, replace map[string]bool) error {
	lk := querierLookup{q: q}
	for i := range r.meta.Associations {
		a := &r.meta.Associations[i]
		val, ok := vals[a.Name]
		if !ok {
			continue
		}
		if replace[a.Name] {
			if _, err := exec(ctx, q, buildAssocDelete(q.dialect(), a, id)); err != nil {
				return err
			}
		}
		if falsy(val) {
			continue
		}
		rows, err := r.meta.Loaders[a.Name](ctx, lk, id, val)
		if err != nil {
			return errors.Wrapf(err, "load %s.%s", r.meta.Kind, a.Name)
		}
		for _, row := range rows {
			stmt, err := buildAssocInsert(q.dialect(), a, row)
			if err != nil {
				return err
			}
			if _, err := exec(ctx, q, stmt); err != nil {
				return r.conflict(q, err)
			}
		}
	}
	return nil
}

func (r *Repo) conflict(q Querier, err error) error {
	if q.dialect().IsUniqueViolation(err) {
		return errors.Mark(err, ErrConflict)
	}
	return err
}

func (r *Repo) done(op string, start time.Time, errp *error) {
	err := *errp
	r.metrics.observe(r.meta.Kind, op, start, err)
	if err == nil || resultLabel(err) == "not_found" || resultLabel(err) == "invalid" {
		return
	}
	r.logger.Error("operation failed",
		zap.String("entity", r.meta.Kind),
		zap.String("op", op),
		zap.Error(err),
	)
}

// resolveRefs replaces reference keys in v with the ids they name. An
// explicit foreign key wins over its reference key.
func resolveRefs(ctx context.Context, q Querier, m *Meta, v Values) error {
	lk := querierLookup{q: q}
	for _, ref := range m.Refs {
		val, ok := v[ref.Key]
		if !ok {
			continue
		}
		delete(v, ref.Key)
		if _, explicit := v[ref.Field]; explicit {
			continue
		}
		if isNull(val) {
			v[ref.Field] = nil
			continue
		}
		id, err := lk.LookupID(ctx, ref.Table, ref.By, val)
		if err != nil {
			return err
		}
		v[ref.Field] = id
	}
	return nil
}

// querierLookup resolves references on the connection of the running call.
type querierLookup struct{ q Querier }

func (l querierLookup) LookupID(ctx context.Context, table, field string, value any) (int64, error) {
	if isNull(value) {
		return 0, errors.Wrapf(ErrLookup, "cannot find %s with empty %s", table, field)
	}
	rows, err := query(ctx, l.q, buildLookup(l.q.dialect(), table, field, value))
	if err != nil {
		return 0, err
	}
	var ids []int64
	err = eachRow(rows, func(vals []any) error {
		ids = append(ids, toInt64(vals[0]))
		return nil
	})
	if err != nil {
		return 0, err
	}
	switch len(ids) {
	case 0:
		return 0, errors.Wrapf(ErrLookup, "cannot find %s with %s %v", table, field, value)
	case 1:
		return ids[0], nil
	default:
		return 0, errors.Wrapf(ErrAmbiguous, "%d %s rows with %s %v", len(ids), table, field, value)
	}
}

// LookupID returns the id of the single row of table whose field equals
// value. table and field must be trusted identifiers.
func (c *Coordinator) LookupID(ctx context.Context, table, field string, value any) (id int64, err error) {
	err = c.run(ctx, false, func(ctx context.Context, q Querier) error {
		var err error
		id, err = querierLookup{q: q}.LookupID(ctx, table, field, value)
		return err
	})
	return id, err
}

// FieldValue returns field of the row of table with the given id.
// table and field must be trusted identifiers.
func (c *Coordinator) FieldValue(ctx context.Context, table, field string, id int64) (value any, err error) {
	err = c.run(ctx, false, func(ctx context.Context, q Querier) error {
		rows, err := query(ctx, q, buildFieldValue(q.dialect(), table, field, id))
		if err != nil {
			return err
		}
		found := false
		err = eachRow(rows, func(vals []any) error {
			value, found = vals[0], true
			return nil
		})
		if err != nil {
			return err
		}
		if !found {
			return errors.Wrapf(ErrNotFound, "%s %d", table, id)
		}
		return nil
	})
	return value, err
}

var _ Lookup = (*Coordinator)(nil)
