package statsapi

import (
	"testing"

	"github.com/depthlab/noisecache/pkg/params"
)

const validGeneNoiseBody = `{
	"raw": {
		"tpm": {
			"gene_stats": {
				"TP53": {
					"lung":  {"mean_tumor": 12.5, "mean_normal": 9.1, "cv_tumor": 0.55, "cv_normal": 0.31, "logfc": 0.74},
					"liver": {"mean_tumor": 8.2,  "mean_normal": 7.9, "cv_tumor": 0.40, "cv_normal": 0.28, "logfc": 0.52}
				}
			}
		}
	},
	"log2": {
		"tpm": {
			"gene_stats": {
				"TP53": {
					"lung": {"mean_tumor": 3.6, "mean_normal": 3.2, "cv_tumor": 0.21, "cv_normal": 0.18, "logfc": 0.17}
				}
			}
		}
	},
	"sample_counts": {"lung": {"tumor": 50, "normal": 12}, "liver": {"tumor": 40, "normal": 0}},
	"available_sites": ["lung", "liver"]
}`

func TestDecodeGeneNoise_Valid(t *testing.T) {
	result, err := decodeGeneNoise([]byte(validGeneNoiseBody))
	if err != nil {
		t.Fatalf("decodeGeneNoise failed: %v", err)
	}

	stats, ok := result.StatsFor(params.TransformRaw, params.MethodTPM)
	if !ok {
		t.Fatal("raw/tpm block missing")
	}
	lung, ok := stats["TP53"]["lung"]
	if !ok {
		t.Fatal("TP53/lung stats missing")
	}
	if lung.LogFC != 0.74 {
		t.Errorf("logfc = %v, want 0.74", lung.LogFC)
	}

	if _, ok := result.StatsFor(params.TransformLog2, params.MethodTPM); !ok {
		t.Error("log2/tpm block missing")
	}
	if _, ok := result.StatsFor(params.TransformLog2, params.MethodFPKM); ok {
		t.Error("log2/fpkm block should not exist")
	}

	if counts := result.SampleCounts["liver"]; counts.Normal != 0 || counts.Tumor != 40 {
		t.Errorf("liver sample counts = %+v", counts)
	}
	if len(result.AvailableSites) != 2 {
		t.Errorf("available sites = %v", result.AvailableSites)
	}
}

func TestDecodeGeneNoise_ShapeErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{
			name: "not an object",
			body: `[1, 2, 3]`,
		},
		{
			name: "no transform blocks",
			body: `{"sample_counts": {}, "available_sites": []}`,
		},
		{
			name: "missing sample_counts",
			body: `{"raw": {"tpm": {"gene_stats": {}}}, "available_sites": []}`,
		},
		{
			name: "missing available_sites",
			body: `{"raw": {"tpm": {"gene_stats": {}}}, "sample_counts": {}}`,
		},
		{
			name: "unexpected top-level field",
			body: `{"raw": {"tpm": {"gene_stats": {}}}, "sample_counts": {}, "available_sites": [], "log10": {}}`,
		},
		{
			name: "unknown normalization method",
			body: `{"raw": {"rpkm": {"gene_stats": {}}}, "sample_counts": {}, "available_sites": []}`,
		},
		{
			name: "method block without gene_stats",
			body: `{"raw": {"tpm": {}}, "sample_counts": {}, "available_sites": []}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decodeGeneNoise([]byte(tt.body))
			if err == nil {
				t.Fatal("expected a data-shape error")
			}
			if KindOf(err) != ErrorKindDataShape {
				t.Errorf("error kind = %s, want %s", KindOf(err), ErrorKindDataShape)
			}
		})
	}
}

func TestDecodeEnrichment_Valid(t *testing.T) {
	body := `{
		"enrichment": [
			{"Term": "Cell cycle", "Database": "KEGG", "FDR": 0.013, "MatchingGenes": ["TP53", "CDK1"], "Description": "hsa04110", "GeneCount": 2, "EnrichmentScore": 3.4},
			{"Term": "p53 signaling", "Database": "KEGG", "FDR": 0.0, "MatchingGenes": []}
		],
		"warning": "few genes passed threshold"
	}`

	result, err := decodeEnrichment([]byte(body))
	if err != nil {
		t.Fatalf("decodeEnrichment failed: %v", err)
	}

	if len(result.Enrichment) != 2 {
		t.Fatalf("terms = %d, want 2", len(result.Enrichment))
	}
	first := result.Enrichment[0]
	if first.Term != "Cell cycle" || first.Database != "KEGG" || first.FDR != 0.013 {
		t.Errorf("first term = %+v", first)
	}
	// FDR of zero is a value, not a missing field.
	if result.Enrichment[1].FDR != 0 {
		t.Errorf("second FDR = %v, want 0", result.Enrichment[1].FDR)
	}
	if result.Warning == "" {
		t.Error("warning dropped")
	}
}

func TestDecodeEnrichment_EmptyResultSet(t *testing.T) {
	result, err := decodeEnrichment([]byte(`{"enrichment": []}`))
	if err != nil {
		t.Fatalf("decodeEnrichment failed: %v", err)
	}
	if len(result.Enrichment) != 0 {
		t.Errorf("terms = %v, want empty", result.Enrichment)
	}
}

func TestDecodeEnrichment_ShapeErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{
			name: "missing enrichment array",
			body: `{"warning": "oops"}`,
		},
		{
			name: "term without Term",
			body: `{"enrichment": [{"Database": "KEGG", "FDR": 0.1, "MatchingGenes": []}]}`,
		},
		{
			name: "term without Database",
			body: `{"enrichment": [{"Term": "x", "FDR": 0.1, "MatchingGenes": []}]}`,
		},
		{
			name: "term without FDR",
			body: `{"enrichment": [{"Term": "x", "Database": "KEGG", "MatchingGenes": []}]}`,
		},
		{
			name: "term without MatchingGenes",
			body: `{"enrichment": [{"Term": "x", "Database": "KEGG", "FDR": 0.1}]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decodeEnrichment([]byte(tt.body))
			if err == nil {
				t.Fatal("expected a data-shape error")
			}
			if KindOf(err) != ErrorKindDataShape {
				t.Errorf("error kind = %s, want %s", KindOf(err), ErrorKindDataShape)
			}
		})
	}
}
