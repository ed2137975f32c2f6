package docstore

import (
	"context"
	"encoding/json"
	"fmt"
)

// Query describes a single-field equality filter over one collection with an
// ordered, fully materialized result. A non-empty Fields list restricts which
// document fields appear in the returned documents.
//
// Ordering is lexical over the order field's JSON text in both
// implementations. Timestamp fields must therefore be rendered fixed-width
// (see contracts.Timestamp) for the order to be chronological.
type Query struct {
	Collection  string
	FilterField string
	FilterValue string
	OrderField  string
	Descending  bool
	Fields      []string
}

// Store is the gateway to the document collections. Documents are keyed JSON
// objects; there is no separate create step, SetFields has create-or-merge
// semantics.
//
// SetFields writes exactly the listed fields of doc. Fields not listed are
// never touched on an existing document; this guarantee is load-bearing for
// every partial update in the service and is covered by the contract tests.
type Store interface {
	// Get unmarshals the document into out. An absent document is
	// (false, nil), not an error.
	Get(ctx context.Context, collection, id string, out any) (bool, error)

	// List runs the query and returns the matching documents as raw JSON,
	// already ordered. No matches is an empty slice.
	List(ctx context.Context, q Query) ([][]byte, error)

	// SetFields upserts the listed fields of doc at the given key.
	SetFields(ctx context.Context, collection, id string, doc any, fields []string) error
}

// partialDoc marshals doc and keeps only the listed fields. Listing a field
// the document does not carry is a programming error and is reported.
func partialDoc(doc any, fields []string) (map[string]json.RawMessage, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	var full map[string]json.RawMessage
	if err := json.Unmarshal(raw, &full); err != nil {
		return nil, fmt.Errorf("document is not a JSON object: %w", err)
	}
	partial := make(map[string]json.RawMessage, len(fields))
	for _, field := range fields {
		value, ok := full[field]
		if !ok {
			return nil, fmt.Errorf("field %q is not part of the document", field)
		}
		partial[field] = value
	}
	return partial, nil
}

// trimFields drops every field of the raw document that is not listed.
// An empty list keeps the document as is.
func trimFields(raw []byte, fields []string) ([]byte, error) {
	if len(fields) == 0 {
		return raw, nil
	}
	var full map[string]json.RawMessage
	if err := json.Unmarshal(raw, &full); err != nil {
		return nil, fmt.Errorf("document is not a JSON object: %w", err)
	}
	trimmed := make(map[string]json.RawMessage, len(fields))
	for _, field := range fields {
		if value, ok := full[field]; ok {
			trimmed[field] = value
		}
	}
	return json.Marshal(trimmed)
}
