package catalog

import "github.com/mickamy/labcat/orm"

// projectRef lets callers name the owning project by short name.
var projectRef = orm.Ref{Key: "project", Field: "project_id", Table: "project", By: "short_name"}

func subjectMeta() *orm.Meta {
	return &orm.Meta{
		Kind: "Subject",
		Fields: []orm.Field{
			{Name: "sbj_id", Required: true},
			{Name: "source_subject_id"},
			{Name: "subject_source"},
			{Name: "project_id", Required: true},
			{Name: "cohort_id", Required: true},
			{Name: "subject_type"},
			{Name: "comment"},
			{Name: "subject_name", Required: true},
			{Name: "alt_id"},
			{Name: "date_added"},
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
				Name:  "attributes",
				Table: "subject_attributes",
				Cols:  []string{"value", "unit", "attributes_id", "subject_id", "source_value"},
				IDCol: "subject_id",
			},
		},
		Updatable:  []string{"source_subject_id", "subject_source", "subject_type", "comment", "project_id", "cohort_id"},
		NaturalKey: "sbj_id",
		Timestamp:  "date_added",
		Refs: []orm.Ref{
			projectRef,
			{Key: "cohort", Field: "cohort_id", Table: "cohort", By: "cohort_name"},
		},
		Loaders: map[string]orm.LoaderFunc{
			"taxonomies": linkNames("subject_id", "taxonomy_id", "taxonomy", "name"),
			"attributes": attributes("subject_id"),
		},
	}
}

func sampleMeta() *orm.Meta {
	sampleLinkCols := []string{"child_sample_id", "parent_sample_id", "relationship", "root_sample_id"}
	return &orm.Meta{
		Kind: "Sample",
		Fields: []orm.Field{
			{Name: "smp_id", Required: true},
			{Name: "project_id", Required: true},
			{Name: "source_sample_id"},
			{Name: "sample_source"},
			{Name: "sample_type"},
			{Name: "event_id"},
			{Name: "comment"},
			{Name: "sample_name"},
			{Name: "alt_id"},
			{Name: "date_added"},
		},
		Associations: []orm.Association{
			{
				Name:  "sbj_ids",
				Table: "sample_assoc_subject",
				Cols:  []string{"sample_id", "subject_id"},
				IDCol: "sample_id",
			},
			{
				Name:  "attributes",
				Table: "sample_attributes",
				Cols:  []string{"value", "unit", "attributes_id", "sample_id", "source_value"},
				IDCol: "sample_id",
			},
			{
				Name:    "anatomies",
				Table:   "sample_assoc_anatomy",
				Cols:    []string{"sample_id", "anatomy_id"},
				IDCol:   "sample_id",
				RefJoin: &orm.RefJoin{Table: "anatomy", Field: "anatomy_id", ReadableField: "name"},
			},
			{
				Name:  "sample_assoc_sample_parent",
				Table: "sample_assoc_sample",
				Cols:  sampleLinkCols,
				IDCol: "child_sample_id",
			},
			{
				Name:  "sample_assoc_sample_child",
				Table: "sample_assoc_sample",
				Cols:  sampleLinkCols,
				IDCol: "parent_sample_id",
			},
		},
		SelfJoin: &orm.SelfJoin{
			Table:       "sample_assoc_sample",
			ParentField: "parent_sample_id",
			ChildField:  "child_sample_id",
		},
		Updatable: []string{
			"project_id", "source_sample_id", "sample_source", "sample_type", "event_id", "comment",
			"sample_name", "alt_id",
		},
		NaturalKey: "smp_id",
		Timestamp:  "date_added",
		Refs:       []orm.Ref{projectRef},
		Loaders: map[string]orm.LoaderFunc{
			"sbj_ids":                    linkIDs("sample_id", "subject_id"),
			"attributes":                 attributes("sample_id"),
			"anatomies":                  linkIDs("sample_id", "anatomy_id"),
			"sample_assoc_sample_parent": records("child_sample_id", "parent_sample_id", "relationship"),
		},
	}
}

func libraryFields() []orm.Field {
	return []orm.Field{
		{Name: "lib_id", Required: true},
		{Name: "sample_id"},
		{Name: "project_id", Required: true},
		{Name: "modality_id"},
		{Name: "assay_id"},
		{Name: "specimen_type_id"},
		{Name: "technique_id"},
		{Name: "library_name"},
		{Name: "batch_name"},
		{Name: "alt_id"},
		{Name: "comment"},
		{Name: "date_added"},
		{Name: "library_type"},
	}
}

// lookupAssoc reads a controlled-vocabulary row through a foreign key on the
// entity, e.g. library.technique_id -> technique.id.
func lookupAssoc(name, fk string, cols ...string) orm.Association {
	return orm.Association{
		Name:       name,
		Table:      name,
		Cols:       append([]string{"id"}, cols...),
		IDCol:      "id",
		AssocIDCol: fk,
		OneToOne:   true,
	}
}

func libraryMeta() *orm.Meta {
	libLinkCols := []string{"child_library_id", "parent_library_id"}
	return &orm.Meta{
		Kind:   "Library",
		Fields: libraryFields(),
		Associations: []orm.Association{
			{
				Name:  "lib_assoc_lib_child",
				Table: "library_assoc_library",
				Cols:  libLinkCols,
				IDCol: "parent_library_id",
			},
			{
				Name:  "lib_assoc_lib_parent",
				Table: "library_assoc_library",
				Cols:  libLinkCols,
				IDCol: "child_library_id",
			},
			{
				Name:  "lib_assoc_lib_pool",
				Table: "library_assoc_library_pool",
				Cols:  []string{"library_id", "library_pool_id"},
				IDCol: "library_id",
			},
			{
				Name:  "attributes",
				Table: "library_attributes",
				Cols:  []string{"value", "unit", "attributes_id", "library_id", "source_value"},
				IDCol: "library_id",
			},
			lookupAssoc("technique", "technique_id", "short_name"),
			lookupAssoc("modality", "modality_id", "name"),
			lookupAssoc("assay", "assay_id", "name"),
			lookupAssoc("specimen_type", "specimen_type_id", "short_name", "name"),
		},
		SelfJoin: &orm.SelfJoin{
			Table:       "library_assoc_library",
			ParentField: "parent_library_id",
			ChildField:  "child_library_id",
		},
		Updatable: []string{
			"sample_id", "modality_id", "assay_id", "specimen_type_id", "technique_id",
			"library_name", "batch_name", "alt_id", "comment", "library_type",
		},
		NaturalKey: "lib_id",
		Timestamp:  "date_added",
		Refs: []orm.Ref{
			projectRef,
			{Key: "technique", Field: "technique_id", Table: "technique", By: "short_name"},
			{Key: "modality", Field: "modality_id", Table: "modality", By: "name"},
			{Key: "assay", Field: "assay_id", Table: "assay", By: "name"},
			{Key: "specimen_type", Field: "specimen_type_id", Table: "specimen_type", By: "short_name"},
		},
		Loaders: map[string]orm.LoaderFunc{
			"lib_assoc_lib_child":  linkIDs("parent_library_id", "child_library_id"),
			"lib_assoc_lib_parent": linkIDs("child_library_id", "parent_library_id"),
			"lib_assoc_lib_pool":   linkIDs("library_id", "library_pool_id"),
			"attributes":           attributes("library_id"),
		},
	}
}

func libraryPoolMeta() *orm.Meta {
	return &orm.Meta{
		Kind: "LibraryPool",
		Fields: []orm.Field{
			{Name: "library_pool_id", Required: true},
			{Name: "date_added"},
		},
		NaturalKey: "library_pool_id",
		Timestamp:  "date_added",
	}
}

func eventMeta() *orm.Meta {
	return &orm.Meta{
		Kind: "Event",
		Fields: []orm.Field{
			{Name: "subject_id", Required: true},
			{Name: "event_name", Required: true},
			{Name: "event_type"},
			{Name: "event_date"},
			{Name: "event_info"},
			{Name: "date_added"},
		},
		Associations: []orm.Association{{
			Name:  "subject_attributes",
			Table: "event_subject_attributes",
			Cols:  []string{"value", "unit", "attributes_id", "event_id", "source_value"},
			IDCol: "event_id",
		}},
		Updatable: []string{"event_name", "event_type", "event_date", "event_info"},
		Timestamp: "date_added",
		Loaders: map[string]orm.LoaderFunc{
			"subject_attributes": attributes("event_id"),
		},
	}
}
