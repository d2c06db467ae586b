package schemarefresh

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"bifrost-graphql/internal/schemareader"
)

// Fingerprint component names. The catalog component covers everything the
// schema reader reports; the annotations component covers the merged
// metadata bundle.
const (
	componentCatalog     = "catalog"
	componentAnnotations = "annotations"
)

// hashSchemaData produces a stable hash of a catalog read. Readers emit
// tables, columns and procedures in deterministic order; constraints live in
// a map and are sorted here before hashing.
func hashSchemaData(data *schemareader.SchemaData) string {
	hash := sha256.New()

	for _, t := range data.Tables {
		fmt.Fprintf(hash, "table|%s|%s|%s|%s\n", t.Catalog, t.Schema, t.Name, t.Type)
	}
	for _, c := range data.Columns {
		fmt.Fprintf(hash, "column|%s|%s|%s|%s|%d|%s|%t|%t\n",
			c.Catalog, c.Schema, c.Table, c.Name, c.Ordinal, c.DataType, c.IsNullable, c.IsIdentity)
	}

	refs := make([]schemareader.ColumnRef, 0, len(data.Constraints))
	for ref := range data.Constraints {
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool {
		a, b := refs[i], refs[j]
		if a.Schema != b.Schema {
			return a.Schema < b.Schema
		}
		if a.Table != b.Table {
			return a.Table < b.Table
		}
		return a.Column < b.Column
	})
	for _, ref := range refs {
		constraints := append([]schemareader.Constraint(nil), data.Constraints[ref]...)
		sort.Slice(constraints, func(i, j int) bool {
			if constraints[i].Type != constraints[j].Type {
				return constraints[i].Type < constraints[j].Type
			}
			return constraints[i].Name < constraints[j].Name
		})
		for _, c := range constraints {
			target := ""
			if c.References != nil {
				target = c.References.Schema + "." + c.References.Table + "." + c.References.Column
			}
			fmt.Fprintf(hash, "constraint|%s|%s|%s|%s|%s|%s\n",
				ref.Schema, ref.Table, ref.Column, c.Name, c.Type, target)
		}
	}

	for _, p := range data.Procedures {
		fmt.Fprintf(hash, "procedure|%s|%s|%s\n", p.Catalog, p.Schema, p.Name)
		for _, param := range p.Params {
			fmt.Fprintf(hash, "param|%s|%d|%s|%s|%t\n",
				param.Name, param.Ordinal, param.DataType, param.Direction, param.IsNullable)
		}
	}

	return hex.EncodeToString(hash.Sum(nil))
}

// combineComponentHashes folds named component hashes into one fingerprint.
func combineComponentHashes(componentHashes map[string]string) string {
	keys := make([]string, 0, len(componentHashes))
	for key := range componentHashes {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	hash := sha256.New()
	for _, key := range keys {
		fmt.Fprintf(hash, "%s=%s\n", key, componentHashes[key])
	}
	return hex.EncodeToString(hash.Sum(nil))
}

// changedFingerprintComponents lists the component names whose hashes differ
// between two fingerprint reads. Compared over the union of keys so added or
// removed components surface too.
func changedFingerprintComponents(previous, current map[string]string) []string {
	keySet := make(map[string]struct{}, len(previous)+len(current))
	for key := range previous {
		keySet[key] = struct{}{}
	}
	for key := range current {
		keySet[key] = struct{}{}
	}
	keys := make([]string, 0, len(keySet))
	for key := range keySet {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	changed := make([]string, 0, len(keys))
	for _, key := range keys {
		if previous[key] != current[key] {
			changed = append(changed, key)
		}
	}
	return changed
}
