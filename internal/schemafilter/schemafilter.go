// Package schemafilter decides stored-procedure visibility and read-only
// classification from model metadata regexes.
package schemafilter

import (
	"fmt"
	"regexp"
	"strings"

	"bifrost-graphql/internal/metadata"
)

// ProcedureFilter evaluates the sp-include, sp-exclude and sp-readonly
// model metadata keys. Patterns are compiled once, match case-insensitively,
// and are tried against both the bare procedure name and "schema.name".
// When include and exclude both match, exclude wins.
type ProcedureFilter struct {
	include  *regexp.Regexp
	exclude  *regexp.Regexp
	readonly *regexp.Regexp
}

// NewProcedureFilter compiles the filter from model-scope metadata.
func NewProcedureFilter(meta metadata.Map) (*ProcedureFilter, error) {
	f := &ProcedureFilter{}
	var err error
	if f.include, err = compile(meta, metadata.KeySPInclude); err != nil {
		return nil, err
	}
	if f.exclude, err = compile(meta, metadata.KeySPExclude); err != nil {
		return nil, err
	}
	if f.readonly, err = compile(meta, metadata.KeySPReadonly); err != nil {
		return nil, err
	}
	return f, nil
}

func compile(meta metadata.Map, key string) (*regexp.Regexp, error) {
	pattern, ok := meta.Value(key)
	if !ok || strings.TrimSpace(pattern) == "" {
		return nil, nil
	}
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid %s pattern %q: %w", key, pattern, err)
	}
	return re, nil
}

// Include reports whether a procedure should appear in the schema. With no
// include pattern everything is included; the exclude pattern always wins.
func (f *ProcedureFilter) Include(schema, name string) bool {
	if f.exclude != nil && f.matches(f.exclude, schema, name) {
		return false
	}
	if f.include == nil {
		return true
	}
	return f.matches(f.include, schema, name)
}

// ReadOnly reports whether a procedure belongs on the query root instead of
// the mutation root. Without a pattern every procedure is treated as
// mutating.
func (f *ProcedureFilter) ReadOnly(schema, name string) bool {
	return f.readonly != nil && f.matches(f.readonly, schema, name)
}

func (f *ProcedureFilter) matches(re *regexp.Regexp, schema, name string) bool {
	if re.MatchString(name) {
		return true
	}
	return schema != "" && re.MatchString(schema+"."+name)
}
