package orm_test

import (
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/mickamy/labcat/orm"
)

var sampleLinks = &orm.SelfJoin{
	Table:       "sample_assoc_sample",
	ParentField: "parent_sample_id",
	ChildField:  "child_sample_id",
}

// openHierarchy stores 5 -> {6, 7}, 6 -> 8, 7 -> 9, {8, 9} -> 10 and a
// cycle 10 -> 5.
func openHierarchy(t *testing.T) *orm.DB {
	t.Helper()

	raw, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	raw.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = raw.Close() })

	_, err = raw.Exec(`
CREATE TABLE sample_assoc_sample (
	parent_sample_id INTEGER,
	child_sample_id INTEGER,
	relationship TEXT
);
INSERT INTO sample_assoc_sample (parent_sample_id, child_sample_id) VALUES
	(5, 6), (5, 7), (6, 8), (7, 9), (8, 10), (9, 10), (10, 5), (NULL, 11);`)
	require.NoError(t, err)
	return orm.New(raw, orm.SQLite)
}

func TestWalkDescendants(t *testing.T) {
	t.Parallel()

	db := openHierarchy(t)
	levels, err := orm.Walk(t.Context(), db, sampleLinks, 5, orm.Descendants)
	require.NoError(t, err)
	assert.Equal(t, orm.Levels{{6, 7}, {8, 9}, {10}}, levels)
	assert.Equal(t, []int64{6, 7, 8, 9, 10}, levels.Flatten())
}

func TestWalkAncestors(t *testing.T) {
	t.Parallel()

	db := openHierarchy(t)
	levels, err := orm.Walk(t.Context(), db, sampleLinks, 10, orm.Ancestors)
	require.NoError(t, err)
	assert.Equal(t, orm.Levels{{8, 9}, {6, 7}, {5}}, levels)
}

func TestWalkLeaf(t *testing.T) {
	t.Parallel()

	db := openHierarchy(t)
	levels, err := orm.Walk(t.Context(), db, sampleLinks, 11, orm.Descendants)
	require.NoError(t, err)
	assert.Empty(t, levels)
	assert.Empty(t, levels.Flatten())

	// The NULL parent row is not a link.
	levels, err = orm.Walk(t.Context(), db, sampleLinks, 11, orm.Ancestors)
	require.NoError(t, err)
	assert.Empty(t, levels)
}

func TestDirectionString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "ancestors", orm.Ancestors.String())
	assert.Equal(t, "descendants", orm.Descendants.String())
}

func TestQueryJoinTableSQL(t *testing.T) {
	t.Parallel()

	raw, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { _ = raw.Close() })

	mock.ExpectQuery("SELECT `child_sample_id`, `parent_sample_id` FROM `sample_assoc_sample` " +
		"WHERE `child_sample_id` IN (?, ?) AND `parent_sample_id` IS NOT NULL " +
		"ORDER BY `child_sample_id`, `parent_sample_id`").
		WithArgs(int64(3), int64(4)).
		WillReturnRows(sqlmock.NewRows([]string{"child_sample_id", "parent_sample_id"}).
			AddRow(int64(3), int64(1)).
			AddRow(int64(4), int64(1)).
			AddRow(int64(4), int64(2)))

	pairs, err := orm.QueryJoinTable[int64, int64](t.Context(), orm.New(raw, orm.MySQL),
		"sample_assoc_sample", "child_sample_id", "parent_sample_id", []int64{3, 4})
	require.NoError(t, err)
	assert.Equal(t, map[int64][]int64{3: {1}, 4: {1, 2}}, orm.GroupBySource(pairs))
	require.NoError(t, mock.ExpectationsWereMet())

	pairs, err = orm.QueryJoinTable[int64, int64](t.Context(), orm.New(raw, orm.MySQL),
		"sample_assoc_sample", "child_sample_id", "parent_sample_id", nil)
	require.NoError(t, err)
	assert.Nil(t, pairs)
}
