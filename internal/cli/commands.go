package cli

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/mickamy/labcat/orm"
)

func (a *app) entitiesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "entities",
		Short: "List the entity kinds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := make([]map[string]any, 0, len(a.cat.Kinds()))
			for _, kind := range a.cat.Kinds() {
				r, err := a.repo(kind)
				if err != nil {
					return err
				}
				m := r.Meta()
				assocs := make([]string, 0, len(m.Associations))
				for _, as := range m.Associations {
					assocs = append(assocs, as.Name)
				}
				out = append(out, map[string]any{
					"kind":         m.Kind,
					"table":        m.Table,
					"attributes":   m.Attrs(),
					"associations": assocs,
					"hierarchy":    m.SelfJoin != nil,
				})
			}
			return writeJSON(cmd.OutOrStdout(), out)
		},
	}
}

func (a *app) getCommand() *cobra.Command {
	var with []string
	cmd := &cobra.Command{
		Use:   "get <entity> <field=value>...",
		Short: "Print the single record matching the filter",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.repo(args[0])
			if err != nil {
				return err
			}
			f, err := parseFilter(args[1:])
			if err != nil {
				return err
			}
			rec, err := r.Get(cmd.Context(), f, with...)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), rec)
		},
	}
	cmd.Flags().StringSliceVarP(&with, "with", "w", nil, "associations to resolve")
	return cmd
}

func (a *app) listCommand() *cobra.Command {
	var with []string
	cmd := &cobra.Command{
		Use:   "list <entity> [field=value]...",
		Short: "Print every record matching the filter",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.repo(args[0])
			if err != nil {
				return err
			}
			f, err := parseFilter(args[1:])
			if err != nil {
				return err
			}
			recs, err := r.List(cmd.Context(), f, with...)
			if err != nil {
				return err
			}
			if recs == nil {
				recs = []*orm.Record{}
			}
			return writeJSON(cmd.OutOrStdout(), recs)
		},
	}
	cmd.Flags().StringSliceVarP(&with, "with", "w", nil, "associations to resolve")
	return cmd
}

func (a *app) addCommand() *cobra.Command {
	var values string
	cmd := &cobra.Command{
		Use:   "add <entity> --values '{...}'",
		Short: "Insert a record and its association values",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.repo(args[0])
			if err != nil {
				return err
			}
			v, err := decodeValues(values)
			if err != nil {
				return err
			}
			rec, err := r.Add(cmd.Context(), v)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), rec)
		},
	}
	cmd.Flags().StringVar(&values, "values", "", "JSON object of field and association values")
	_ = cmd.MarkFlagRequired("values")
	return cmd
}

func (a *app) updateCommand() *cobra.Command {
	var (
		values  string
		replace []string
	)
	cmd := &cobra.Command{
		Use:   "update <entity> --values '{...}'",
		Short: "Update a record identified by id or natural key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.repo(args[0])
			if err != nil {
				return err
			}
			v, err := decodeValues(values)
			if err != nil {
				return err
			}
			return r.Update(cmd.Context(), v, replace...)
		},
	}
	cmd.Flags().StringVar(&values, "values", "", "JSON object with id or natural key and the new values")
	cmd.Flags().StringSliceVar(&replace, "replace", nil, "associations whose rows are deleted before inserting")
	_ = cmd.MarkFlagRequired("values")
	return cmd
}

func (a *app) deleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <entity> <id>",
		Short: "Delete a record and the association rows it owns",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.repo(args[0])
			if err != nil {
				return err
			}
			id, err := parseID(args[1])
			if err != nil {
				return err
			}
			return r.Delete(cmd.Context(), id)
		},
	}
}

func (a *app) compareCommand() *cobra.Command {
	var values string
	cmd := &cobra.Command{
		Use:   "compare <entity> <field=value>... --values '{...}'",
		Short: "Report how the given values differ from the stored record",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.repo(args[0])
			if err != nil {
				return err
			}
			f, err := parseFilter(args[1:])
			if err != nil {
				return err
			}
			v, err := decodeValues(values)
			if err != nil {
				return err
			}
			diff, err := r.Compare(cmd.Context(), f, v)
			if err != nil {
				return err
			}
			if diff == nil {
				diff = orm.Diff{}
			}
			return writeJSON(cmd.OutOrStdout(), diff)
		},
	}
	cmd.Flags().StringVar(&values, "values", "", "JSON object of expected values")
	_ = cmd.MarkFlagRequired("values")
	return cmd
}

func (a *app) walkCommand(dir orm.Direction) *cobra.Command {
	var flat bool
	cmd := &cobra.Command{
		Use:   dir.String() + " <entity> <id>",
		Short: "Print the " + dir.String() + " of a record, grouped by depth",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.repo(args[0])
			if err != nil {
				return err
			}
			id, err := parseID(args[1])
			if err != nil {
				return err
			}
			levels, err := r.Walk(cmd.Context(), id, dir)
			if err != nil {
				return err
			}
			if flat {
				ids := levels.Flatten()
				if ids == nil {
					ids = []int64{}
				}
				return writeJSON(cmd.OutOrStdout(), ids)
			}
			if levels == nil {
				levels = orm.Levels{}
			}
			return writeJSON(cmd.OutOrStdout(), levels)
		},
	}
	cmd.Flags().BoolVar(&flat, "flat", false, "print one list in depth order")
	return cmd
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.Wrapf(orm.ErrInvalidArgument, "invalid id %q", s)
	}
	return id, nil
}

// parseFilter reads field=value arguments. "null" matches NULL and a
// comma-separated value matches any of its parts.
func parseFilter(args []string) (orm.Filter, error) {
	f := orm.Filter{}
	for _, arg := range args {
		k, v, ok := strings.Cut(arg, "=")
		if !ok || k == "" {
			return nil, errors.WithHint(
				errors.Wrapf(orm.ErrInvalidArgument, "filter %q", arg),
				"filters look like field=value",
			)
		}
		switch {
		case v == "null":
			f[k] = nil
		case strings.Contains(v, ","):
			parts := strings.Split(v, ",")
			vals := make([]any, len(parts))
			for i, p := range parts {
				vals[i] = scalar(p)
			}
			f[k] = vals
		default:
			f[k] = scalar(v)
		}
	}
	return f, nil
}

func scalar(s string) any {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	return s
}

// decodeValues parses a JSON object. Integral numbers become int64.
func decodeValues(s string) (orm.Values, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, errors.Wrapf(orm.ErrInvalidArgument, "values are not a JSON object: %v", err)
	}
	v := make(orm.Values, len(raw))
	for k, x := range raw {
		v[k] = fromJSON(x)
	}
	return v, nil
}

func fromJSON(x any) any {
	switch t := x.(type) {
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n
		}
		f, _ := t.Float64()
		return f
	case []any:
		for i := range t {
			t[i] = fromJSON(t[i])
		}
		return t
	case map[string]any:
		for k := range t {
			t[k] = fromJSON(t[k])
		}
		return t
	}
	return x
}
