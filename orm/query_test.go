package orm_test

import (
	"errors"
	"reflect"
	"testing"

	"github.com/mickamy/labcat/orm"
	"github.com/mickamy/labcat/scope"
)

func subjectMeta(t *testing.T) *orm.Meta {
	t.Helper()

	m := &orm.Meta{
		Kind: "Subject",
		Fields: []orm.Field{
			{Name: "sbj_id", Required: true},
			{Name: "alt_id"},
			{Name: "project_id", Required: true},
			{Name: "comment"},
		},
		Associations: []orm.Association{
			{
				Name:    "taxonomies",
				Table:   "subject_taxonomy",
				Cols:    []string{"subject_id", "taxonomy_id"},
				IDCol:   "subject_id",
				RefJoin: &orm.RefJoin{Table: "taxonomy", Field: "taxonomy_id", ReadableField: "name"},
			},
			{
				Name:       "project",
				Table:      "project",
				Cols:       []string{"id", "short_name"},
				IDCol:      "id",
				AssocIDCol: "project_id",
				OneToOne:   true,
			},
		},
		Updatable: []string{"alt_id", "comment"},
		Refs:      []orm.Ref{{Key: "project", Field: "project_id", Table: "project", By: "short_name"}},
	}
	if err := m.Build(); err != nil {
		t.Fatalf("Build: %v", err)
	}
	return m
}

func bind(t *testing.T, s orm.Stmt) (string, []any) {
	t.Helper()

	query, args, err := s.Bind(orm.MySQL)
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	return query, args
}

// --- SELECT ---

func TestBuildSelectAll(t *testing.T) {
	t.Parallel()

	s, err := orm.BuildSelect(orm.MySQL, subjectMeta(t), nil)
	if err != nil {
		t.Fatal(err)
	}
	got, args := bind(t, s)
	want := "SELECT `subject`.`id`, `subject`.`sbj_id`, `subject`.`alt_id`, `subject`.`project_id`, `subject`.`comment` " +
		"FROM `subject` ORDER BY `subject`.`id`"
	if got != want {
		t.Errorf("SQL = %q, want %q", got, want)
	}
	if len(args) != 0 {
		t.Errorf("args = %v, want none", args)
	}
}

func TestBuildSelectFilter(t *testing.T) {
	t.Parallel()

	f := orm.Filter{"sbj_id": "sbj-001", "alt_id": nil, "project_id": []int64{1, 2}}
	s, err := orm.BuildSelect(orm.MySQL, subjectMeta(t), f)
	if err != nil {
		t.Fatal(err)
	}
	got, args := bind(t, s)
	want := "SELECT `subject`.`id`, `subject`.`sbj_id`, `subject`.`alt_id`, `subject`.`project_id`, `subject`.`comment` " +
		"FROM `subject` WHERE `subject`.`alt_id` IS NULL AND `subject`.`project_id` IN (?, ?) AND `subject`.`sbj_id` = ? " +
		"ORDER BY `subject`.`id`"
	if got != want {
		t.Errorf("SQL = %q, want %q", got, want)
	}
	wantArgs := []any{int64(1), int64(2), "sbj-001"}
	if !reflect.DeepEqual(args, wantArgs) {
		t.Errorf("args = %v, want %v", args, wantArgs)
	}
}

func TestBuildSelectEmptyList(t *testing.T) {
	t.Parallel()

	s, err := orm.BuildSelect(orm.MySQL, subjectMeta(t), orm.Filter{"project_id": []int64{}})
	if err != nil {
		t.Fatal(err)
	}
	got, _ := bind(t, s)
	want := "SELECT `subject`.`id`, `subject`.`sbj_id`, `subject`.`alt_id`, `subject`.`project_id`, `subject`.`comment` " +
		"FROM `subject` WHERE 1 = 0 ORDER BY `subject`.`id`"
	if got != want {
		t.Errorf("SQL = %q, want %q", got, want)
	}
}

func TestBuildSelectUnknownField(t *testing.T) {
	t.Parallel()

	_, err := orm.BuildSelect(orm.MySQL, subjectMeta(t), orm.Filter{"colour": "red"})
	if !errors.Is(err, orm.ErrInvalidArgument) {
		t.Errorf("err = %v, want ErrInvalidArgument", err)
	}
}

func TestBuildSelectWithScopes(t *testing.T) {
	t.Parallel()

	f := orm.Scopes(
		scope.Eq("sbj_id", "sbj-001"),
		scope.In("project_id", []int{7}),
		scope.IsNull("alt_id"),
	)
	s, err := orm.BuildSelect(orm.SQLite, subjectMeta(t), f)
	if err != nil {
		t.Fatal(err)
	}
	got, args, err := s.Bind(orm.SQLite)
	if err != nil {
		t.Fatal(err)
	}
	want := `SELECT "subject"."id", "subject"."sbj_id", "subject"."alt_id", "subject"."project_id", "subject"."comment" ` +
		`FROM "subject" WHERE "subject"."alt_id" IS NULL AND "subject"."project_id" IN (?) AND "subject"."sbj_id" = ? ` +
		`ORDER BY "subject"."id"`
	if got != want {
		t.Errorf("SQL = %q, want %q", got, want)
	}
	if !reflect.DeepEqual(args, []any{7, "sbj-001"}) {
		t.Errorf("args = %v", args)
	}
}

func TestBuildAssocSelectRefJoin(t *testing.T) {
	t.Parallel()

	s, err := orm.BuildAssocSelect(orm.MySQL, subjectMeta(t), "taxonomies", orm.Filter{"sbj_id": "sbj-001"})
	if err != nil {
		t.Fatal(err)
	}
	got, args := bind(t, s)
	want := "SELECT `subject`.`id`, `subject`.`sbj_id`, `subject`.`alt_id`, `subject`.`project_id`, `subject`.`comment`, " +
		"`subject_taxonomy`.`taxonomy_id`, `taxonomy`.`name` " +
		"FROM `subject` " +
		"LEFT JOIN `subject_taxonomy` ON `subject_taxonomy`.`subject_id` = `subject`.`id` " +
		"LEFT JOIN `taxonomy` ON `taxonomy`.`id` = `subject_taxonomy`.`taxonomy_id` " +
		"WHERE `subject`.`sbj_id` = ? ORDER BY `subject`.`id`"
	if got != want {
		t.Errorf("SQL = %q, want %q", got, want)
	}
	if !reflect.DeepEqual(args, []any{"sbj-001"}) {
		t.Errorf("args = %v", args)
	}
}

func TestBuildAssocSelectOneToOne(t *testing.T) {
	t.Parallel()

	s, err := orm.BuildAssocSelect(orm.MySQL, subjectMeta(t), "project", nil)
	if err != nil {
		t.Fatal(err)
	}
	got, _ := bind(t, s)
	want := "SELECT `subject`.`id`, `subject`.`sbj_id`, `subject`.`alt_id`, `subject`.`project_id`, `subject`.`comment`, " +
		"`project`.`short_name` FROM `subject` " +
		"LEFT JOIN `project` ON `project`.`id` = `subject`.`project_id` ORDER BY `subject`.`id`"
	if got != want {
		t.Errorf("SQL = %q, want %q", got, want)
	}
}

func TestBuildAssocSelectUnknown(t *testing.T) {
	t.Parallel()

	_, err := orm.BuildAssocSelect(orm.MySQL, subjectMeta(t), "pets", nil)
	if !errors.Is(err, orm.ErrUnknownAssociation) {
		t.Errorf("err = %v, want ErrUnknownAssociation", err)
	}
}

// --- INSERT ---

func TestBuildInsert(t *testing.T) {
	t.Parallel()

	s, err := orm.BuildInsert(orm.MySQL, subjectMeta(t), orm.Values{
		"comment":    "note",
		"project_id": int64(3),
		"sbj_id":     "sbj-001",
	})
	if err != nil {
		t.Fatal(err)
	}
	got, args := bind(t, s)
	want := "INSERT INTO `subject` (`sbj_id`, `project_id`, `comment`) VALUES (?, ?, ?)"
	if got != want {
		t.Errorf("SQL = %q, want %q", got, want)
	}
	wantArgs := []any{"sbj-001", int64(3), "note"}
	if !reflect.DeepEqual(args, wantArgs) {
		t.Errorf("args = %v, want %v", args, wantArgs)
	}
}

func TestBuildInsertMissingRequired(t *testing.T) {
	t.Parallel()

	_, err := orm.BuildInsert(orm.MySQL, subjectMeta(t), orm.Values{"sbj_id": "sbj-001"})
	if !errors.Is(err, orm.ErrMissingField) {
		t.Errorf("err = %v, want ErrMissingField", err)
	}
}

func TestBuildInsertUnknownField(t *testing.T) {
	t.Parallel()

	_, err := orm.BuildInsert(orm.MySQL, subjectMeta(t), orm.Values{"sbj_id": "s", "project_id": 1, "colour": "red"})
	if !errors.Is(err, orm.ErrInvalidArgument) {
		t.Errorf("err = %v, want ErrInvalidArgument", err)
	}
}

// --- UPDATE / DELETE ---

func TestBuildUpdate(t *testing.T) {
	t.Parallel()

	s, ok := orm.BuildUpdate(orm.MySQL, subjectMeta(t), 9, orm.Values{"comment": "x", "sbj_id": "ignored", "alt_id": "a"})
	if !ok {
		t.Fatal("ok = false")
	}
	got, args := bind(t, s)
	want := "UPDATE `subject` SET `alt_id` = ?, `comment` = ? WHERE `id` = ?"
	if got != want {
		t.Errorf("SQL = %q, want %q", got, want)
	}
	if !reflect.DeepEqual(args, []any{"a", "x", int64(9)}) {
		t.Errorf("args = %v", args)
	}
}

func TestBuildUpdateNothingToSet(t *testing.T) {
	t.Parallel()

	if _, ok := orm.BuildUpdate(orm.MySQL, subjectMeta(t), 9, orm.Values{"sbj_id": "s"}); ok {
		t.Error("ok = true, want false")
	}
}

func TestBuildDelete(t *testing.T) {
	t.Parallel()

	got, args := bind(t, orm.BuildDelete(orm.MySQL, subjectMeta(t), 4))
	if want := "DELETE FROM `subject` WHERE `id` = ?"; got != want {
		t.Errorf("SQL = %q, want %q", got, want)
	}
	if !reflect.DeepEqual(args, []any{int64(4)}) {
		t.Errorf("args = %v", args)
	}
}

func TestBuildAssocWrites(t *testing.T) {
	t.Parallel()

	m := subjectMeta(t)
	a := m.Association("taxonomies")

	s, err := orm.BuildAssocInsert(orm.MySQL, a, orm.Values{"taxonomy_id": int64(2), "subject_id": int64(5), "extra": 1})
	if err != nil {
		t.Fatal(err)
	}
	got, args := bind(t, s)
	if want := "INSERT INTO `subject_taxonomy` (`subject_id`, `taxonomy_id`) VALUES (?, ?)"; got != want {
		t.Errorf("SQL = %q, want %q", got, want)
	}
	if !reflect.DeepEqual(args, []any{int64(5), int64(2)}) {
		t.Errorf("args = %v", args)
	}

	if _, err := orm.BuildAssocInsert(orm.MySQL, a, orm.Values{"extra": 1}); !errors.Is(err, orm.ErrInvalidArgument) {
		t.Errorf("err = %v, want ErrInvalidArgument", err)
	}

	got, _ = bind(t, orm.BuildAssocDelete(orm.MySQL, a, 5))
	if want := "DELETE FROM `subject_taxonomy` WHERE `subject_id` = ?"; got != want {
		t.Errorf("SQL = %q, want %q", got, want)
	}
}

func TestBuildLookup(t *testing.T) {
	t.Parallel()

	got, args := bind(t, orm.BuildLookup(orm.MySQL, "taxonomy", "name", "human"))
	if want := "SELECT `id` FROM `taxonomy` WHERE `name` = ?"; got != want {
		t.Errorf("SQL = %q, want %q", got, want)
	}
	if !reflect.DeepEqual(args, []any{"human"}) {
		t.Errorf("args = %v", args)
	}
}

// --- Bind ---

func TestBindMissingName(t *testing.T) {
	t.Parallel()

	_, _, err := orm.Stmt{SQL: "SELECT 1 WHERE a = :a", Named: map[string]any{}}.Bind(orm.MySQL)
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestBindRepeatedName(t *testing.T) {
	t.Parallel()

	got, args, err := orm.Stmt{SQL: "a = :x OR b = :x", Named: map[string]any{"x": 1}}.Bind(orm.MySQL)
	if err != nil {
		t.Fatal(err)
	}
	if got != "a = ? OR b = ?" {
		t.Errorf("SQL = %q", got)
	}
	if !reflect.DeepEqual(args, []any{1, 1}) {
		t.Errorf("args = %v", args)
	}
}

func TestExecBindsThroughQuerier(t *testing.T) {
	t.Parallel()

	tq := orm.NewTestQuerier(orm.MySQL)
	_, err := orm.Exec(t.Context(), tq, orm.BuildDelete(orm.MySQL, subjectMeta(t), 1))
	if err != nil {
		t.Fatal(err)
	}
	got := tq.LastQuery()
	if got.SQL != "DELETE FROM `subject` WHERE `id` = ?" {
		t.Errorf("SQL = %q", got.SQL)
	}
	if !reflect.DeepEqual(got.Args, []any{int64(1)}) {
		t.Errorf("args = %v", got.Args)
	}
}

// --- Meta ---

func TestCheckWrite(t *testing.T) {
	t.Parallel()

	m := subjectMeta(t)
	tests := []struct {
		name   string
		v      orm.Values
		insert bool
		want   error
	}{
		{"insert with reference", orm.Values{"sbj_id": "s", "project": "demo"}, true, nil},
		{"insert missing", orm.Values{"sbj_id": "s"}, true, orm.ErrMissingField},
		{"insert with id", orm.Values{"id": 1, "sbj_id": "s", "project_id": 1}, true, orm.ErrInvalidArgument},
		{"unknown key", orm.Values{"colour": "red"}, false, orm.ErrInvalidArgument},
		{"association without loader", orm.Values{"taxonomies": []string{"human"}}, false, orm.ErrInvalidArgument},
		{"update by id", orm.Values{"id": 1, "comment": "x"}, false, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := orm.CheckWrite(m, tt.v, tt.insert)
			if tt.want == nil {
				if err != nil {
					t.Errorf("err = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestMetaBuildRejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		m    *orm.Meta
	}{
		{"no kind", &orm.Meta{}},
		{"id field", &orm.Meta{Kind: "X", Fields: []orm.Field{{Name: "id"}}}},
		{"duplicate field", &orm.Meta{Kind: "X", Fields: []orm.Field{{Name: "a"}, {Name: "a"}}}},
		{"updatable not a field", &orm.Meta{Kind: "X", Updatable: []string{"a"}}},
		{"association clash", &orm.Meta{
			Kind:         "X",
			Fields:       []orm.Field{{Name: "a"}},
			Associations: []orm.Association{{Name: "a", Table: "t", IDCol: "x_id"}},
		}},
		{"reference clash with many-valued association", &orm.Meta{
			Kind:         "X",
			Fields:       []orm.Field{{Name: "t_id"}},
			Associations: []orm.Association{{Name: "t", Table: "t", IDCol: "x_id"}},
			Refs:         []orm.Ref{{Key: "t", Field: "t_id", Table: "t", By: "name"}},
		}},
		{"loader without association", &orm.Meta{Kind: "X", Loaders: map[string]orm.LoaderFunc{"a": nil}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if err := tt.m.Build(); err == nil {
				t.Error("Build() = nil, want error")
			}
		})
	}
}

func TestMetaDefaultTable(t *testing.T) {
	t.Parallel()

	m := &orm.Meta{Kind: "LibraryPool", Fields: []orm.Field{{Name: "library_pool_id"}}}
	if err := m.Build(); err != nil {
		t.Fatal(err)
	}
	if m.Table != "library_pool" {
		t.Errorf("Table = %q, want library_pool", m.Table)
	}
	want := []string{"id", "library_pool_id"}
	if !reflect.DeepEqual(m.Attrs(), want) {
		t.Errorf("Attrs = %v, want %v", m.Attrs(), want)
	}
}
