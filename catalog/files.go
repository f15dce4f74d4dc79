package catalog

import "github.com/mickamy/labcat/orm"

func fileMeta() *orm.Meta {
	libCols := make([]string, 0, len(libraryFields()))
	for _, f := range libraryFields() {
		libCols = append(libCols, f.Name)
	}
	return &orm.Meta{
		Kind: "File",
		Fields: []orm.Field{
			{Name: "file_id", Required: true},
			{Name: "data_type_id", Required: true},
			{Name: "file_format_id", Required: true},
			{Name: "project_id", Required: true},
			{Name: "submission_id"},
			{Name: "file_name", Required: true},
			{Name: "md5"},
			{Name: "sha256"},
			{Name: "size"},
			{Name: "mtime"},
			{Name: "latest_identifier"},
			{Name: "version"},
			{Name: "analysis_id"},
			{Name: "alt_id"},
			{Name: "comment"},
		},
		Associations: []orm.Association{
			{
				Name:  "data_use_limitations",
				Table: "file_has_data_use_limitation",
				Cols:  []string{"file_id", "data_use_limitation_id"},
				IDCol: "file_id",
			},
			{
				Name:  "file_attributes",
				Table: "file_attributes",
				Cols:  []string{"key", "value", "file_id", "cv_list_id"},
				IDCol: "file_id",
			},
			{
				Name:  "analysis_attributes",
				Table: "analysis_attributes",
				Cols:  []string{"name", "value", "analysis_id", "file_id"},
				IDCol: "file_id",
			},
			{
				Name:  "file_parents",
				Table: "file_assoc_file",
				Cols:  []string{"child_file_id", "parent_file_id", "relationship"},
				IDCol: "child_file_id",
			},
			{
				Name:  "libraries",
				Table: "library_assoc_file",
				Cols:  []string{"file_id", "library_id"},
				IDCol: "file_id",
				RefJoin: &orm.RefJoin{
					Table:         "library",
					Field:         "library_id",
					ReadableField: "library_name",
					Cols:          libCols,
				},
			},
			{
				Name:    "collections",
				Table:   "file_in_collection",
				Cols:    []string{"file_id", "collection_id"},
				IDCol:   "file_id",
				RefJoin: &orm.RefJoin{Table: "collection", Field: "collection_id", ReadableField: "short_name"},
			},
		},
		SelfJoin: &orm.SelfJoin{
			Table:       "file_assoc_file",
			ParentField: "parent_file_id",
			ChildField:  "child_file_id",
		},
		Updatable: []string{
			"data_type_id", "file_format_id", "project_id", "submission_id", "file_name", "md5",
			"sha256", "size", "mtime", "latest_identifier", "version", "analysis_id", "alt_id",
			"comment",
		},
		NaturalKey: "file_id",
		Refs: []orm.Ref{
			projectRef,
			{Key: "data_type", Field: "data_type_id", Table: "data_type", By: "data_type"},
			{Key: "file_format", Field: "file_format_id", Table: "file_format", By: "format"},
		},
		Loaders: map[string]orm.LoaderFunc{
			"data_use_limitations": linkIDs("file_id", "data_use_limitation_id"),
			"file_attributes":      records("file_id", "key", "value"),
			"analysis_attributes":  records("file_id", "name", "value", "analysis_id"),
			"file_parents":         records("child_file_id", "parent_file_id"),
			"libraries":            linkIDs("file_id", "library_id"),
			"collections":          linkNames("file_id", "collection_id", "collection", "short_name"),
		},
	}
}

func analysisMeta() *orm.Meta {
	return &orm.Meta{
		Kind: "Analysis",
		Fields: []orm.Field{
			{Name: "name", Required: true},
			{Name: "cv_list_id"},
			{Name: "sop_url"},
			{Name: "description"},
			{Name: "pipeline_version"},
			{Name: "pipeline_container_url"},
			{Name: "data_type_specific_tool"},
			{Name: "date_added"},
		},
		Updatable: []string{
			"cv_list_id", "sop_url", "description", "pipeline_version",
			"pipeline_container_url", "data_type_specific_tool",
		},
		NaturalKey: "name",
		Timestamp:  "date_added",
	}
}

func collectionMeta() *orm.Meta {
	return &orm.Meta{
		Kind: "Collection",
		Fields: []orm.Field{
			{Name: "col_id", Required: true},
			{Name: "col_type", Required: true},
			{Name: "is_static", Required: true},
			{Name: "short_name", Required: true},
			{Name: "name"},
			{Name: "description"},
			{Name: "access"},
			{Name: "is_published"},
			{Name: "license"},
			{Name: "doi"},
		},
		Associations: []orm.Association{
			{
				Name:    "anatomies",
				Table:   "collection_assoc_anatomy",
				Cols:    []string{"collection_id", "anatomy_id"},
				IDCol:   "collection_id",
				RefJoin: &orm.RefJoin{Table: "anatomy", Field: "anatomy_id", ReadableField: "name"},
			},
			{
				Name:    "species",
				Table:   "collection_assoc_species",
				Cols:    []string{"collection_id", "taxonomy_id"},
				IDCol:   "collection_id",
				RefJoin: &orm.RefJoin{Table: "taxonomy", Field: "taxonomy_id", ReadableField: "name"},
			},
			{
				Name:    "modalities",
				Table:   "collection_assoc_modality",
				Cols:    []string{"collection_id", "modality_id"},
				IDCol:   "collection_id",
				RefJoin: &orm.RefJoin{Table: "modality", Field: "modality_id", ReadableField: "name"},
			},
			{
				Name:  "subjects",
				Table: "subject_assoc_collection",
				Cols:  []string{"collection_id", "subject_id"},
				IDCol: "collection_id",
			},
			{
				Name:  "samples",
				Table: "sample_assoc_collection",
				Cols:  []string{"collection_id", "sample_id"},
				IDCol: "collection_id",
			},
		},
		Updatable:  []string{"name", "description", "access", "is_published", "license", "doi"},
		NaturalKey: "col_id",
		Loaders: map[string]orm.LoaderFunc{
			"anatomies":  linkNames("collection_id", "anatomy_id", "anatomy", "short_name"),
			"species":    linkNames("collection_id", "taxonomy_id", "taxonomy", "name"),
			"modalities": linkNames("collection_id", "modality_id", "modality", "name"),
			"subjects":   linkIDs("collection_id", "subject_id"),
			"samples":    linkIDs("collection_id", "sample_id"),
		},
	}
}

func dataUseLimitationMeta() *orm.Meta {
	return &orm.Meta{
		Kind: "DataUseLimitation",
		Fields: []orm.Field{
			{Name: "cohort_id", Required: true},
			{Name: "summary_files"},
			{Name: "access"},
			{Name: "dul_cv_list_id"},
			{Name: "data_use_limit_name"},
			{Name: "specific_limit_cv_list_id"},
			{Name: "specific_limit"},
			{Name: "comment"},
			{Name: "date_added"},
		},
		Updatable: []string{
			"summary_files", "access", "dul_cv_list_id", "data_use_limit_name",
			"specific_limit_cv_list_id", "specific_limit", "comment",
		},
		Timestamp: "date_added",
	}
}
