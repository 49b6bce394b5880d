// Package params defines the query-parameter model shared by the cache,
// the fetch coordinator, and the statistics-service client, together with
// the canonical cache-key codec.
package params

import (
	"fmt"
	"sort"
	"strings"
)

// Mode selects the logical query category.
type Mode string

const (
	// ModeGeneNoise requests per-gene per-site noise aggregates.
	ModeGeneNoise Mode = "gene-noise"

	// ModeEnrichment requests pathway-enrichment results.
	ModeEnrichment Mode = "enrichment"
)

// Method is the expression normalization method.
type Method string

const (
	MethodTPM    Method = "tpm"
	MethodFPKM   Method = "fpkm"
	MethodFPKMUQ Method = "fpkm_uq"
)

// Transform is the normalization transform applied to expression values.
type Transform string

const (
	TransformRaw  Transform = "raw"
	TransformLog2 Transform = "log2"
)

// Query holds the parameters of one statistics request.
//
// Sites and Genes are set-semantic: their order is irrelevant for cache-key
// equality and the codec sorts them. SortBy is an explicit sort directive
// and therefore order-sensitive: it is encoded as given.
type Query struct {
	// Mode is the logical query category (required).
	Mode Mode

	// Sites are the selected cancer sites (required, set-semantic).
	Sites []string

	// Genes are the selected gene symbols (required for gene-noise,
	// set-semantic).
	Genes []string

	// Pathway restricts enrichment to a single pathway id (optional).
	Pathway string

	// Method is the expression normalization method (required).
	Method Method

	// Transform selects raw or log2 values. Empty means raw.
	Transform Transform

	// SortBy is an ordered list of sort columns (optional,
	// order-sensitive).
	SortBy []string

	// LogFCThreshold is the absolute log2 fold-change cutoff used by
	// threshold-dependent queries.
	LogFCThreshold float64
}

// ValidationError reports a query rejected before any network activity.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid query: %s: %s", e.Field, e.Message)
}

// Validate checks that all required fields for the query's mode are present.
// It returns a *ValidationError describing the first missing field.
func (q Query) Validate() error {
	switch q.Mode {
	case ModeGeneNoise, ModeEnrichment:
	default:
		return &ValidationError{Field: "mode", Message: fmt.Sprintf("unknown mode %q", string(q.Mode))}
	}

	if len(q.Sites) == 0 {
		return &ValidationError{Field: "sites", Message: "at least one site must be selected"}
	}

	if q.Mode == ModeGeneNoise && len(q.Genes) == 0 {
		return &ValidationError{Field: "genes", Message: "at least one gene must be selected"}
	}

	switch q.Method {
	case MethodTPM, MethodFPKM, MethodFPKMUQ:
	default:
		return &ValidationError{Field: "method", Message: fmt.Sprintf("unknown normalization method %q", string(q.Method))}
	}

	switch q.Transform {
	case "", TransformRaw, TransformLog2:
	default:
		return &ValidationError{Field: "transform", Message: fmt.Sprintf("unknown transform %q", string(q.Transform))}
	}

	return nil
}

// normalized returns a copy of q with set-semantic fields sorted and
// deduplicated and defaults applied. The receiver is not modified.
func (q Query) normalized() Query {
	n := q
	n.Sites = sortedSet(q.Sites)
	n.Genes = sortedSet(q.Genes)
	if n.Transform == "" {
		n.Transform = TransformRaw
	}
	// SortBy is order-sensitive: copy without sorting.
	if len(q.SortBy) > 0 {
		n.SortBy = append([]string(nil), q.SortBy...)
	}
	return n
}

// sortedSet returns a sorted copy of values with duplicates removed.
func sortedSet(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := append([]string(nil), values...)
	sort.Strings(out)
	j := 0
	for i, v := range out {
		if i > 0 && v == out[j-1] {
			continue
		}
		out[j] = v
		j++
	}
	return out[:j]
}

// String returns a human-readable summary for logging.
func (q Query) String() string {
	return fmt.Sprintf("%s[%s/%s sites=%s genes=%d]",
		q.Mode, q.Method, q.Transform,
		strings.Join(q.Sites, ","), len(q.Genes))
}
