package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/graphql-go/graphql/language/ast"
	"github.com/graphql-go/graphql/language/parser"
	"github.com/graphql-go/graphql/language/source"
)

type graphQLRequest struct {
	Query         string `json:"query"`
	OperationName string `json:"operationName"`
}

// queryMetadata summarizes a parsed operation for metrics and tracing labels.
type queryMetadata struct {
	operationType  string
	fieldCount     int
	selectionDepth int
	variableCount  int
}

// extractGraphQLRequest pulls the query text and operation name out of a
// request without consuming it: POST bodies are restored so the GraphQL
// handler downstream can read them again.
func extractGraphQLRequest(r *http.Request) (string, string) {
	switch r.Method {
	case http.MethodGet:
		q := r.URL.Query()
		return q.Get("query"), q.Get("operationName")
	case http.MethodPost:
		return extractPostRequest(r)
	default:
		return "", ""
	}
}

func extractPostRequest(r *http.Request) (string, string) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return "", ""
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	if strings.Contains(r.Header.Get("Content-Type"), "application/graphql") {
		return string(body), ""
	}

	var payload graphQLRequest
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", ""
	}
	return payload.Query, payload.OperationName
}

// extractQueryMetadata parses the query and summarizes the selected
// operation. A nil metadata with nil error means there was nothing to
// measure (empty query, or no matching operation).
func extractQueryMetadata(query, operationName string) (*queryMetadata, error) {
	if query == "" {
		return nil, nil
	}

	doc, err := parser.Parse(parser.ParseParams{
		Source: source.NewSource(&source.Source{
			Body: []byte(query),
			Name: "graphql",
		}),
	})
	if err != nil {
		return nil, err
	}

	fragments := make(map[string]*ast.FragmentDefinition)
	for _, def := range doc.Definitions {
		if frag, ok := def.(*ast.FragmentDefinition); ok {
			fragments[frag.Name.Value] = frag
		}
	}

	op := selectOperation(doc, operationName)
	if op == nil {
		return nil, nil
	}

	md := &queryMetadata{
		operationType: string(op.Operation),
		variableCount: len(op.VariableDefinitions),
	}
	if op.SelectionSet != nil {
		walker := &selectionWalker{
			fragments: fragments,
			visited:   map[string]bool{},
			inFlight:  map[string]bool{},
		}
		md.fieldCount, md.selectionDepth = walker.walk(op.SelectionSet, 1)
	}
	return md, nil
}

// selectOperation returns the operation matching operationName, or the
// document's first operation when no name was given.
func selectOperation(doc *ast.Document, operationName string) *ast.OperationDefinition {
	var first *ast.OperationDefinition
	for _, def := range doc.Definitions {
		op, ok := def.(*ast.OperationDefinition)
		if !ok {
			continue
		}
		if first == nil {
			first = op
		}
		if operationName != "" && op.Name != nil && op.Name.Value == operationName {
			return op
		}
	}
	if operationName == "" {
		return first
	}
	return nil
}

// selectionWalker counts fields and selection depth across a selection set,
// expanding fragment spreads at most once each.
type selectionWalker struct {
	fragments map[string]*ast.FragmentDefinition
	// visited keeps a fragment from being counted twice anywhere in the
	// document; inFlight breaks spread cycles during a single expansion.
	visited  map[string]bool
	inFlight map[string]bool
}

func (w *selectionWalker) walk(selectionSet *ast.SelectionSet, depth int) (fields, maxDepth int) {
	if selectionSet == nil {
		return 0, depth - 1
	}

	maxDepth = depth
	for _, selection := range selectionSet.Selections {
		var nestedFields, nestedDepth int

		switch sel := selection.(type) {
		case *ast.Field:
			fields++
			if sel.SelectionSet == nil {
				continue
			}
			nestedFields, nestedDepth = w.walk(sel.SelectionSet, depth+1)

		case *ast.InlineFragment:
			if sel.SelectionSet == nil {
				continue
			}
			nestedFields, nestedDepth = w.walk(sel.SelectionSet, depth)

		case *ast.FragmentSpread:
			name := sel.Name.Value
			if w.inFlight[name] || w.visited[name] {
				continue
			}
			frag, ok := w.fragments[name]
			w.visited[name] = true
			if !ok || frag.SelectionSet == nil {
				continue
			}
			w.inFlight[name] = true
			nestedFields, nestedDepth = w.walk(frag.SelectionSet, depth)
			delete(w.inFlight, name)
		}

		fields += nestedFields
		if nestedDepth > maxDepth {
			maxDepth = nestedDepth
		}
	}

	return fields, maxDepth
}
