package catalog

import "github.com/mickamy/labcat/orm"

// Controlled vocabularies. Most are keyed by a unique name and optionally
// point at a cv_list term.

func termMeta(kind, key string, extra ...string) *orm.Meta {
	fields := []orm.Field{{Name: key, Required: true}}
	for _, name := range extra {
		fields = append(fields, orm.Field{Name: name})
	}
	fields = append(fields, orm.Field{Name: "cv_list_id"}, orm.Field{Name: "date_added"})
	return &orm.Meta{
		Kind:       kind,
		Fields:     fields,
		Updatable:  append(append([]string{}, extra...), "cv_list_id"),
		NaturalKey: key,
		Timestamp:  "date_added",
	}
}

func assayMeta() *orm.Meta    { return termMeta("Assay", "name") }
func modalityMeta() *orm.Meta { return termMeta("Modality", "name") }
func fileFormatMeta() *orm.Meta {
	return termMeta("FileFormat", "format")
}

func dataTypeMeta() *orm.Meta {
	return termMeta("DataType", "data_type", "summary_file")
}

func techniqueMeta() *orm.Meta {
	m := termMeta("Technique", "short_name")
	m.Fields[0] = orm.Field{Name: "name", Required: true}
	m.Fields = append([]orm.Field{{Name: "short_name", Required: true}}, m.Fields...)
	m.Updatable = append(m.Updatable, "name")
	return m
}

func specimenTypeMeta() *orm.Meta {
	m := techniqueMeta()
	m.Kind = "SpecimenType"
	return m
}

func attributeMeta() *orm.Meta {
	return &orm.Meta{
		Kind:  "Attribute",
		Table: "attributes",
		Fields: []orm.Field{
			{Name: "attr_name", Required: true},
			{Name: "attr_type", Required: true},
			{Name: "category"},
			{Name: "cv_list_id"},
			{Name: "date_added"},
		},
		Updatable:  []string{"attr_type", "category", "cv_list_id"},
		NaturalKey: "attr_name",
		Timestamp:  "date_added",
	}
}

func taxonomyMeta() *orm.Meta {
	return &orm.Meta{
		Kind: "Taxonomy",
		Fields: []orm.Field{
			{Name: "name", Required: true},
			{Name: "cv_list_id"},
		},
		Updatable:  []string{"cv_list_id"},
		NaturalKey: "name",
	}
}

func anatomyMeta() *orm.Meta {
	return &orm.Meta{
		Kind: "Anatomy",
		Fields: []orm.Field{
			{Name: "name", Required: true},
			{Name: "short_name"},
			{Name: "cv_list_id"},
		},
		Updatable:  []string{"short_name", "cv_list_id"},
		NaturalKey: "name",
	}
}

func insCertMeta() *orm.Meta {
	return &orm.Meta{
		Kind: "InsCert",
		Fields: []orm.Field{
			{Name: "ic_id", Required: true},
			{Name: "name"},
		},
		Updatable:  []string{"name"},
		NaturalKey: "ic_id",
	}
}

func cvListMeta() *orm.Meta {
	return &orm.Meta{
		Kind: "CVList",
		Fields: []orm.Field{
			{Name: "short_name", Required: true},
			{Name: "ontology"},
			{Name: "term_id"},
			{Name: "term_name"},
			{Name: "term_definition"},
		},
		Associations: []orm.Association{{
			Name:   "anatomies",
			Table:  "anatomy",
			Cols:   []string{"id", "name"},
			IDCol:  "cv_list_id",
			Shared: true,
		}},
		Updatable:  []string{"ontology", "term_id", "term_name", "term_definition"},
		NaturalKey: "short_name",
	}
}
