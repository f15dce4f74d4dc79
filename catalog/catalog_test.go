package catalog_test

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/mickamy/labcat/catalog"
	"github.com/mickamy/labcat/orm"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func setup(t *testing.T) (*catalog.Catalog, *sql.DB, context.Context) {
	t.Helper()

	sqlDB, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	// Every connection to ":memory:" is a separate database.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	schema, err := os.ReadFile("testdata/schema.sql")
	require.NoError(t, err)
	_, err = sqlDB.Exec(string(schema))
	require.NoError(t, err)

	c, err := catalog.New(orm.New(sqlDB, orm.SQLite))
	require.NoError(t, err)

	ctx := orm.WithClock(context.Background(), fixedClock{time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)})
	return c, sqlDB, ctx
}

// seed adds a program, a project "demo" and a cohort "c1".
func seed(t *testing.T, ctx context.Context, c *catalog.Catalog) (project, cohort *orm.Record) {
	t.Helper()

	_, err := c.Program.Add(ctx, orm.Values{"prg_id": "prg-001", "name": "brain"})
	require.NoError(t, err)
	project, err = c.Project.Add(ctx, orm.Values{
		"prj_id":       "prj-001",
		"project_type": "research",
		"program":      "brain",
		"short_name":   "demo",
	})
	require.NoError(t, err)
	cohort, err = c.Cohort.Add(ctx, orm.Values{"cohort_name": "c1", "coh_id": "coh-001", "project": "demo"})
	require.NoError(t, err)
	return project, cohort
}

func TestAddResolvesReferences(t *testing.T) {
	t.Parallel()
	c, _, ctx := setup(t)
	project, cohort := seed(t, ctx, c)

	sbj, err := c.Subject.Add(ctx, orm.Values{
		"sbj_id":       "sbj-001",
		"subject_name": "s1",
		"project":      "demo",
		"cohort":       "c1",
	})
	require.NoError(t, err)
	assert.Equal(t, project.ID, sbj.Fields["project_id"])
	assert.Equal(t, cohort.ID, sbj.Fields["cohort_id"])

	got, err := c.Subject.Get(ctx, orm.Filter{"sbj_id": "sbj-001"})
	require.NoError(t, err)
	assert.Equal(t, sbj.ID, got.ID)
	assert.Equal(t, "s1", got.Fields["subject_name"])

	coh, err := c.Cohort.Get(ctx, orm.Filter{"id": cohort.ID}, "project")
	require.NoError(t, err)
	assert.Equal(t, orm.Values{"short_name": "demo"}, coh.Assoc("project").One())
}

func TestAddUnknownReference(t *testing.T) {
	t.Parallel()
	c, _, ctx := setup(t)
	seed(t, ctx, c)

	_, err := c.Subject.Add(ctx, orm.Values{
		"sbj_id": "sbj-001", "subject_name": "s1", "project": "nope", "cohort": "c1",
	})
	require.ErrorIs(t, err, orm.ErrLookup)
	assert.Contains(t, err.Error(), "cannot find project with short_name nope")

	recs, err := c.Subject.List(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestProjectsAndGrantsShareTable(t *testing.T) {
	t.Parallel()
	c, _, ctx := setup(t)
	project, _ := seed(t, ctx, c)

	grant, err := c.Grant.Add(ctx, orm.Values{
		"prj_id": "grn-001", "project_type": "grant", "program": "brain", "short_name": "g1",
	})
	require.NoError(t, err)
	assert.EqualValues(t, 1, grant.Fields["is_grant"])

	projects, err := c.Project.List(ctx, nil)
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, project.ID, projects[0].ID)

	_, err = c.Grant.Get(ctx, orm.Filter{"prj_id": "prj-001"})
	require.ErrorIs(t, err, orm.ErrNotFound)
}

func TestSubjectAssociations(t *testing.T) {
	t.Parallel()
	c, _, ctx := setup(t)
	seed(t, ctx, c)

	human, err := c.Taxonomy.Add(ctx, orm.Values{"name": "human"})
	require.NoError(t, err)
	mouse, err := c.Taxonomy.Add(ctx, orm.Values{"name": "mouse"})
	require.NoError(t, err)
	age, err := c.Attribute.Add(ctx, orm.Values{"attr_name": "age", "attr_type": "number"})
	require.NoError(t, err)

	sbj, err := c.Subject.Add(ctx, orm.Values{
		"sbj_id": "sbj-001", "subject_name": "s1", "project": "demo", "cohort": "c1",
		"taxonomies": []string{"human"},
		"attributes": []map[string]any{{"attr_name": "age", "value": "42", "unit": "years"}},
	})
	require.NoError(t, err)

	got, err := c.Subject.Get(ctx, orm.Filter{"id": sbj.ID}, "taxonomies", "attributes")
	require.NoError(t, err)

	tax := got.Assoc("taxonomies")
	assert.Equal(t, []any{"human"}, tax.HumanReadable())
	assert.Equal(t, []any{orm.Values{"taxonomy_id": human.ID}}, tax.Raw())

	attrs := got.Assoc("attributes").Raw()
	require.Len(t, attrs, 1)
	row := attrs[0].(orm.Values)
	assert.Equal(t, age.ID, row["attributes_id"])
	assert.Equal(t, "42", row["value"])
	assert.Nil(t, row["source_value"])

	err = c.Subject.Update(ctx, orm.Values{"sbj_id": "sbj-001", "comment": "moved", "taxonomies": []string{"mouse"}}, "taxonomies")
	require.NoError(t, err)

	got, err = c.Subject.Get(ctx, orm.Filter{"sbj_id": "sbj-001"}, "taxonomies")
	require.NoError(t, err)
	assert.Equal(t, "moved", got.Fields["comment"])
	assert.Equal(t, []any{orm.Values{"taxonomy_id": mouse.ID}}, got.Assoc("taxonomies").Raw())
}

func TestSubjectWithoutAssociationRows(t *testing.T) {
	t.Parallel()
	c, _, ctx := setup(t)
	seed(t, ctx, c)

	_, err := c.Subject.Add(ctx, orm.Values{"sbj_id": "sbj-001", "subject_name": "s1", "project": "demo", "cohort": "c1"})
	require.NoError(t, err)

	got, err := c.Subject.Get(ctx, orm.Filter{"sbj_id": "sbj-001"}, "taxonomies")
	require.NoError(t, err)
	assert.True(t, got.Loaded("taxonomies"))
	assert.Zero(t, got.Assoc("taxonomies").Len())
	v, ok := got.Get("taxonomies")
	assert.True(t, ok)
	assert.Nil(t, v)
}

func TestCompare(t *testing.T) {
	t.Parallel()
	c, _, ctx := setup(t)
	seed(t, ctx, c)
	_, err := c.Taxonomy.Add(ctx, orm.Values{"name": "human"})
	require.NoError(t, err)
	_, err = c.Subject.Add(ctx, orm.Values{
		"sbj_id": "sbj-001", "subject_name": "s1", "project": "demo", "cohort": "c1",
		"taxonomies": []string{"human"},
	})
	require.NoError(t, err)

	f := orm.Filter{"sbj_id": "sbj-001"}

	diff, err := c.Subject.Compare(ctx, f, orm.Values{"subject_name": "s1", "comment": "", "taxonomies": []string{"human"}})
	require.NoError(t, err)
	assert.Nil(t, diff)

	diff, err = c.Subject.Compare(ctx, f, orm.Values{"subject_name": "s2", "taxonomies": []string{"mouse"}})
	require.NoError(t, err)
	require.Len(t, diff, 2)
	assert.Equal(t, "s2", diff["subject_name"].Arg)
	assert.Equal(t, "s1", diff["subject_name"].DB)
	assert.Equal(t, []any{"mouse"}, diff["taxonomies"].Arg)
	assert.Equal(t, []any{"human"}, diff["taxonomies"].DB)
}

func TestUpdateMovesToAnotherProject(t *testing.T) {
	t.Parallel()
	c, _, ctx := setup(t)
	project, _ := seed(t, ctx, c)

	other, err := c.Project.Add(ctx, orm.Values{
		"prj_id": "prj-002", "project_type": "research", "program": "brain", "short_name": "other",
	})
	require.NoError(t, err)

	_, err = c.Sample.Add(ctx, orm.Values{"smp_id": "smp-1", "project": "demo"})
	require.NoError(t, err)
	require.NoError(t, c.Sample.Update(ctx, orm.Values{"smp_id": "smp-1", "project": "other"}))
	smp, err := c.Sample.Get(ctx, orm.Filter{"smp_id": "smp-1"})
	require.NoError(t, err)
	assert.Equal(t, other.ID, smp.Fields["project_id"])

	_, err = c.DataType.Add(ctx, orm.Values{"data_type": "rna"})
	require.NoError(t, err)
	_, err = c.FileFormat.Add(ctx, orm.Values{"format": "fastq"})
	require.NoError(t, err)
	file, err := c.File.Add(ctx, orm.Values{
		"file_id": "fil-1", "file_name": "r1.fastq", "data_type": "rna", "file_format": "fastq", "project": "demo",
	})
	require.NoError(t, err)
	assert.Equal(t, project.ID, file.Fields["project_id"])

	require.NoError(t, c.File.Update(ctx, orm.Values{"file_id": "fil-1", "project_id": other.ID}))
	file, err = c.File.Get(ctx, orm.Filter{"file_id": "fil-1"})
	require.NoError(t, err)
	assert.Equal(t, other.ID, file.Fields["project_id"])

	err = c.File.Update(ctx, orm.Values{"file_id": "fil-1", "project": "nope"})
	require.ErrorIs(t, err, orm.ErrLookup)
}

func TestSampleHierarchy(t *testing.T) {
	t.Parallel()
	c, _, ctx := setup(t)
	seed(t, ctx, c)

	add := func(smpID string, parents ...int64) int64 {
		t.Helper()
		v := orm.Values{"smp_id": smpID, "project": "demo"}
		if len(parents) > 0 {
			var links []map[string]any
			for _, p := range parents {
				links = append(links, map[string]any{"parent_sample_id": p, "relationship": "derived"})
			}
			v["sample_assoc_sample_parent"] = links
		}
		rec, err := c.Sample.Add(ctx, v)
		require.NoError(t, err)
		return rec.ID
	}
	s1 := add("smp-1")
	s2 := add("smp-2", s1)
	s3 := add("smp-3", s1)
	s4 := add("smp-4", s2)
	s5 := add("smp-5", s3, s4)

	down, err := c.Sample.Descendants(ctx, s1)
	require.NoError(t, err)
	assert.Equal(t, orm.Levels{{s2, s3}, {s4, s5}}, down)

	up, err := c.Sample.Ancestors(ctx, s5)
	require.NoError(t, err)
	assert.Equal(t, orm.Levels{{s3, s4}, {s1, s2}}, up)
	assert.Equal(t, []int64{s3, s4, s1, s2}, up.Flatten())

	leaf, err := c.Sample.Descendants(ctx, s5)
	require.NoError(t, err)
	assert.Empty(t, leaf)

	_, err = c.Subject.Ancestors(ctx, 1)
	require.ErrorIs(t, err, orm.ErrNoSelfJoin)
}

func TestTransactionSpansRepositories(t *testing.T) {
	t.Parallel()
	c, _, ctx := setup(t)

	require.NoError(t, c.Begin(ctx))
	_, err := c.Program.Add(ctx, orm.Values{"prg_id": "prg-001", "name": "brain"})
	require.NoError(t, err)
	_, err = c.Project.Add(ctx, orm.Values{
		"prj_id": "prj-001", "project_type": "research", "program": "brain", "short_name": "demo",
	})
	require.NoError(t, err)

	require.ErrorIs(t, c.Begin(ctx), orm.ErrTxInProgress)
	require.NoError(t, c.Commit())

	recs, err := c.Project.List(ctx, nil, "program")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "brain", recs[0].Assoc("program").One()["name"])
}

func TestTransactionFailureRollsBackEverything(t *testing.T) {
	t.Parallel()
	c, _, ctx := setup(t)

	require.NoError(t, c.Begin(ctx))
	_, err := c.Program.Add(ctx, orm.Values{"prg_id": "prg-001", "name": "brain"})
	require.NoError(t, err)
	_, err = c.Project.Add(ctx, orm.Values{
		"prj_id": "prj-001", "project_type": "research", "program": "missing", "short_name": "demo",
	})
	require.ErrorIs(t, err, orm.ErrLookup)

	_, err = c.Program.List(ctx, nil)
	require.ErrorIs(t, err, orm.ErrTxAborted)
	require.ErrorIs(t, c.Commit(), orm.ErrTxAborted)

	recs, err := c.Program.List(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestTransactionHelper(t *testing.T) {
	t.Parallel()
	c, _, ctx := setup(t)

	boom := errors.New("boom")
	err := c.Transaction(ctx, func(ctx context.Context) error {
		if _, err := c.Program.Add(ctx, orm.Values{"prg_id": "prg-001", "name": "brain"}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.False(t, c.Coordinator().InTransaction())

	recs, err := c.Program.List(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestDeleteRemovesOwnedAssociations(t *testing.T) {
	t.Parallel()
	c, sqlDB, ctx := setup(t)
	seed(t, ctx, c)
	_, err := c.Taxonomy.Add(ctx, orm.Values{"name": "human"})
	require.NoError(t, err)
	sbj, err := c.Subject.Add(ctx, orm.Values{
		"sbj_id": "sbj-001", "subject_name": "s1", "project": "demo", "cohort": "c1",
		"taxonomies": []string{"human"},
	})
	require.NoError(t, err)

	require.NoError(t, c.Subject.Delete(ctx, sbj.ID))

	_, err = c.Subject.Get(ctx, orm.Filter{"id": sbj.ID})
	require.ErrorIs(t, err, orm.ErrNotFound)

	var n int
	require.NoError(t, sqlDB.QueryRow("SELECT COUNT(*) FROM subject_taxonomy").Scan(&n))
	assert.Zero(t, n)
	require.NoError(t, sqlDB.QueryRow("SELECT COUNT(*) FROM taxonomy").Scan(&n))
	assert.Equal(t, 1, n)
}

func TestValidation(t *testing.T) {
	t.Parallel()
	c, _, ctx := setup(t)
	seed(t, ctx, c)

	_, err := c.Subject.List(ctx, orm.Filter{"colour": "red"})
	require.ErrorIs(t, err, orm.ErrInvalidArgument)

	_, err = c.Subject.List(ctx, nil, "pets")
	require.ErrorIs(t, err, orm.ErrUnknownAssociation)

	_, err = c.Subject.Add(ctx, orm.Values{"sbj_id": "sbj-001"})
	require.ErrorIs(t, err, orm.ErrMissingField)

	_, err = c.Program.Add(ctx, orm.Values{"prg_id": "prg-001", "name": "again"})
	require.ErrorIs(t, err, orm.ErrConflict)

	_, err = c.Subject.Add(ctx, orm.Values{"sbj_id": "sbj-002", "subject_name": "s", "project": "demo", "cohort": "c1"})
	require.NoError(t, err)
	_, err = c.Subject.Add(ctx, orm.Values{"sbj_id": "sbj-003", "subject_name": "s", "project": "demo", "cohort": "c1"})
	require.NoError(t, err)
	_, err = c.Subject.Get(ctx, orm.Filter{"subject_name": "s"})
	require.ErrorIs(t, err, orm.ErrAmbiguous)
}

func TestRepoByName(t *testing.T) {
	t.Parallel()
	c, _, _ := setup(t)

	tests := []struct {
		name string
		want string
	}{
		{"Subject", "Subject"},
		{"subjects", "Subject"},
		{"LibraryPools", "LibraryPool"},
		{"library_pool", "LibraryPool"},
		{"analyses", "Analysis"},
		{"cv_list", "CVList"},
		{"taxonomies", "Taxonomy"},
	}
	for _, tt := range tests {
		r, err := c.Repo(tt.name)
		require.NoError(t, err, tt.name)
		assert.Equal(t, tt.want, r.Kind(), tt.name)
	}

	_, err := c.Repo("widgets")
	require.ErrorIs(t, err, orm.ErrInvalidArgument)
	assert.Contains(t, c.Kinds(), "Subject")
}
