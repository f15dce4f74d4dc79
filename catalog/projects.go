package catalog

import "github.com/mickamy/labcat/orm"

func programMeta() *orm.Meta {
	return &orm.Meta{
		Kind: "Program",
		Fields: []orm.Field{
			{Name: "prg_id", Required: true},
			{Name: "name", Required: true},
			{Name: "rrid"},
			{Name: "date_added"},
		},
		Updatable:  []string{"name", "rrid"},
		NaturalKey: "prg_id",
		Timestamp:  "date_added",
	}
}

func projectFields() []orm.Field {
	return []orm.Field{
		{Name: "prj_id", Required: true},
		{Name: "project_type", Required: true},
		{Name: "is_grant"},
		{Name: "program_id", Required: true},
		{Name: "short_name", Required: true},
		{Name: "title"},
		{Name: "description"},
		{Name: "url_knowledgebase"},
		{Name: "comment"},
		{Name: "date_added"},
	}
}

func projectAssociations() []orm.Association {
	return []orm.Association{
		{
			Name:       "program",
			Table:      "program",
			Cols:       []string{"id", "prg_id", "name", "rrid"},
			IDCol:      "id",
			AssocIDCol: "program_id",
			OneToOne:   true,
		},
		{
			Name:  "grant",
			Table: "grant_info",
			Cols: []string{
				"grant_number", "funding_agency", "description_url",
				"start_date", "end_date", "lead_pi_contributor_id", "project_id",
			},
			IDCol: "project_id",
		},
		{
			Name:    "labs",
			Table:   "project_assoc_lab",
			Cols:    []string{"lab_id", "project_id"},
			IDCol:   "project_id",
			RefJoin: &orm.RefJoin{Table: "lab", Field: "lab_id", ReadableField: "lab_name"},
		},
		{
			Name:  "attributes",
			Table: "project_attributes",
			Cols:  []string{"name", "value", "project_id"},
			IDCol: "project_id",
		},
		{
			Name:    "contributors",
			Table:   "project_has_contributor",
			Cols:    []string{"contrib_id", "project_id"},
			IDCol:   "project_id",
			RefJoin: &orm.RefJoin{Table: "contributor", Field: "contrib_id", ReadableField: "name"},
		},
	}
}

func projectLoaders() map[string]orm.LoaderFunc {
	return map[string]orm.LoaderFunc{
		"grant":        records("project_id", "grant_number"),
		"labs":         linkNames("project_id", "lab_id", "lab", "lab_name"),
		"attributes":   records("project_id", "name", "value"),
		"contributors": linkNames("project_id", "contrib_id", "contributor", "name"),
	}
}

// projectMeta and grantMeta share the project table; is_grant tells them
// apart on every read and insert.
func projectMeta() *orm.Meta {
	return &orm.Meta{
		Kind:         "Project",
		Fields:       projectFields(),
		Associations: projectAssociations(),
		SelfJoin: &orm.SelfJoin{
			Table:       "project_assoc_project",
			ParentField: "parent_project_id",
			ChildField:  "child_project_id",
		},
		Updatable:  []string{"project_type", "program_id", "short_name", "title", "description", "url_knowledgebase", "comment"},
		NaturalKey: "prj_id",
		Defaults:   orm.Values{"is_grant": 0},
		Timestamp:  "date_added",
		Refs:       []orm.Ref{{Key: "program", Field: "program_id", Table: "program", By: "name"}},
		Loaders:    projectLoaders(),
	}
}

func grantMeta() *orm.Meta {
	m := projectMeta()
	m.Kind = "Grant"
	m.Table = "project"
	m.Defaults = orm.Values{"is_grant": 1}
	return m
}

func labMeta() *orm.Meta {
	return &orm.Meta{
		Kind: "Lab",
		Fields: []orm.Field{
			{Name: "lab_name", Required: true},
			{Name: "lab_pi_contrib_id"},
			{Name: "date_added"},
		},
		Updatable:  []string{"lab_pi_contrib_id"},
		NaturalKey: "lab_name",
		Timestamp:  "date_added",
	}
}

func contributorMeta() *orm.Meta {
	return &orm.Meta{
		Kind: "Contributor",
		Fields: []orm.Field{
			{Name: "name", Required: true},
			{Name: "orcid_id"},
			{Name: "email"},
			{Name: "organization"},
			{Name: "aspera_uname"},
			{Name: "lab_lab_id"},
			{Name: "lname"},
			{Name: "date_added"},
		},
		Associations: []orm.Association{{
			Name:       "lab",
			Table:      "lab",
			Cols:       []string{"id", "lab_name"},
			IDCol:      "id",
			AssocIDCol: "lab_lab_id",
			OneToOne:   true,
		}},
		Updatable:  []string{"orcid_id", "email", "organization", "aspera_uname", "lab_lab_id", "lname"},
		NaturalKey: "name",
		Timestamp:  "date_added",
		Refs:       []orm.Ref{{Key: "lab", Field: "lab_lab_id", Table: "lab", By: "lab_name"}},
	}
}

func cohortMeta() *orm.Meta {
	return &orm.Meta{
		Kind: "Cohort",
		Fields: []orm.Field{
			{Name: "cohort_name", Required: true},
			{Name: "coh_id", Required: true},
			{Name: "project_id", Required: true},
			{Name: "ins_cert_id"},
			{Name: "description"},
			{Name: "embargoed"},
			{Name: "embargoed_until"},
			{Name: "embargo_duration"},
			{Name: "is_human"},
			{Name: "date_added"},
		},
		Associations: []orm.Association{
			{
				Name:       "project",
				Table:      "project",
				Cols:       []string{"id", "short_name"},
				IDCol:      "id",
				AssocIDCol: "project_id",
				OneToOne:   true,
			},
			{
				Name:       "ins_cert",
				Table:      "ins_cert",
				Cols:       []string{"id", "name"},
				IDCol:      "id",
				AssocIDCol: "ins_cert_id",
				OneToOne:   true,
			},
		},
		Updatable: []string{
			"cohort_name", "ins_cert_id", "description", "embargoed",
			"embargoed_until", "embargo_duration", "is_human",
		},
		NaturalKey: "coh_id",
		Timestamp:  "date_added",
		Refs: []orm.Ref{
			{Key: "project", Field: "project_id", Table: "project", By: "short_name"},
			{Key: "ins_cert", Field: "ins_cert_id", Table: "ins_cert", By: "ic_id"},
		},
	}
}
