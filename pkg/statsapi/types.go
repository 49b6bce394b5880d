package statsapi

import (
	"encoding/json"
	"fmt"

	"github.com/depthlab/noisecache/pkg/params"
)

// statsRequest is the wire shape sent to the statistics service.
type statsRequest struct {
	Sites               []string `json:"sites"`
	Genes               []string `json:"genes,omitempty"`
	NormalizationMethod string   `json:"normalizationMethod"`
	Pathway             string   `json:"pathway,omitempty"`
	Mode                string   `json:"mode"`
}

func requestFromQuery(q params.Query) statsRequest {
	return statsRequest{
		Sites:               q.Sites,
		Genes:               q.Genes,
		NormalizationMethod: string(q.Method),
		Pathway:             q.Pathway,
		Mode:                string(q.Mode),
	}
}

// SiteStats holds the per-gene per-site noise aggregates. Site names are
// lowercase on the wire.
type SiteStats struct {
	MeanTumor  float64 `json:"mean_tumor"`
	MeanNormal float64 `json:"mean_normal"`
	CVTumor    float64 `json:"cv_tumor"`
	CVNormal   float64 `json:"cv_normal"`
	LogFC      float64 `json:"logfc"`
}

// SampleCounts holds tumor/normal sample counts for one site.
type SampleCounts struct {
	Tumor  int `json:"tumor"`
	Normal int `json:"normal"`
}

// GeneStats maps gene symbol -> lowercase site name -> aggregates.
type GeneStats map[string]map[string]SiteStats

// MethodStats is the per-normalization-method block of a gene-noise
// response.
type MethodStats struct {
	GeneStats GeneStats `json:"gene_stats"`
}

// GeneNoiseResult is the decoded gene-noise response for one query.
type GeneNoiseResult struct {
	// Transforms maps transform ("raw"/"log2") -> method -> stats.
	Transforms map[params.Transform]map[params.Method]MethodStats

	// SampleCounts maps lowercase site name -> tumor/normal counts.
	SampleCounts map[string]SampleCounts

	// AvailableSites lists the sites the service has data for.
	AvailableSites []string
}

// StatsFor returns the gene stats for a transform/method pair.
func (r *GeneNoiseResult) StatsFor(transform params.Transform, method params.Method) (GeneStats, bool) {
	methods, ok := r.Transforms[transform]
	if !ok {
		return nil, false
	}
	ms, ok := methods[method]
	if !ok {
		return nil, false
	}
	return ms.GeneStats, true
}

// EnrichmentTerm is one pathway-enrichment hit.
type EnrichmentTerm struct {
	Term            string   `json:"Term"`
	Database        string   `json:"Database"`
	FDR             float64  `json:"FDR"`
	MatchingGenes   []string `json:"MatchingGenes"`
	Description     string   `json:"Description,omitempty"`
	GeneCount       int      `json:"GeneCount,omitempty"`
	EnrichmentScore float64  `json:"EnrichmentScore,omitempty"`
}

// EnrichmentResult is the decoded enrichment response for one query.
type EnrichmentResult struct {
	Enrichment []EnrichmentTerm `json:"enrichment"`
	Warning    string           `json:"warning,omitempty"`
}

// decodeGeneNoise parses and validates a raw gene-noise response body.
// The response is decoded exactly once at this boundary; missing required
// fields surface as data-shape errors instead of defaulting deep inside
// view logic.
func decodeGeneNoise(data []byte) (*GeneNoiseResult, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, shapeErr("gene-noise response is not a JSON object", err)
	}

	result := &GeneNoiseResult{
		Transforms: make(map[params.Transform]map[params.Method]MethodStats),
	}

	for key, raw := range top {
		switch key {
		case "sample_counts":
			if err := json.Unmarshal(raw, &result.SampleCounts); err != nil {
				return nil, shapeErr("invalid sample_counts", err)
			}
		case "available_sites":
			if err := json.Unmarshal(raw, &result.AvailableSites); err != nil {
				return nil, shapeErr("invalid available_sites", err)
			}
		case string(params.TransformRaw), string(params.TransformLog2):
			var methods map[params.Method]MethodStats
			if err := json.Unmarshal(raw, &methods); err != nil {
				return nil, shapeErr(fmt.Sprintf("invalid %s transform block", key), err)
			}
			for method, block := range methods {
				switch method {
				case params.MethodTPM, params.MethodFPKM, params.MethodFPKMUQ:
				default:
					return nil, shapeErr(fmt.Sprintf("unknown normalization method %q in %s block", method, key), nil)
				}
				if block.GeneStats == nil {
					return nil, shapeErr(fmt.Sprintf("missing gene_stats for %s/%s", key, method), nil)
				}
			}
			result.Transforms[params.Transform(key)] = methods
		default:
			return nil, shapeErr(fmt.Sprintf("unexpected field %q in gene-noise response", key), nil)
		}
	}

	if len(result.Transforms) == 0 {
		return nil, shapeErr("gene-noise response has no transform blocks", nil)
	}
	if result.SampleCounts == nil {
		return nil, shapeErr("gene-noise response missing sample_counts", nil)
	}
	if result.AvailableSites == nil {
		return nil, shapeErr("gene-noise response missing available_sites", nil)
	}

	return result, nil
}

// decodeEnrichment parses and validates a raw enrichment response body.
func decodeEnrichment(data []byte) (*EnrichmentResult, error) {
	var envelope struct {
		Enrichment []struct {
			Term            *string  `json:"Term"`
			Database        *string  `json:"Database"`
			FDR             *float64 `json:"FDR"`
			MatchingGenes   []string `json:"MatchingGenes"`
			Description     string   `json:"Description"`
			GeneCount       int      `json:"GeneCount"`
			EnrichmentScore float64  `json:"EnrichmentScore"`
		} `json:"enrichment"`
		Warning string `json:"warning"`
	}

	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, shapeErr("enrichment response is not a JSON object", err)
	}
	if envelope.Enrichment == nil {
		return nil, shapeErr("enrichment response missing enrichment array", nil)
	}

	result := &EnrichmentResult{
		Enrichment: make([]EnrichmentTerm, 0, len(envelope.Enrichment)),
		Warning:    envelope.Warning,
	}

	for i, raw := range envelope.Enrichment {
		switch {
		case raw.Term == nil || *raw.Term == "":
			return nil, shapeErr(fmt.Sprintf("enrichment[%d] missing Term", i), nil)
		case raw.Database == nil || *raw.Database == "":
			return nil, shapeErr(fmt.Sprintf("enrichment[%d] missing Database", i), nil)
		case raw.FDR == nil:
			return nil, shapeErr(fmt.Sprintf("enrichment[%d] missing FDR", i), nil)
		case raw.MatchingGenes == nil:
			return nil, shapeErr(fmt.Sprintf("enrichment[%d] missing MatchingGenes", i), nil)
		}

		result.Enrichment = append(result.Enrichment, EnrichmentTerm{
			Term:            *raw.Term,
			Database:        *raw.Database,
			FDR:             *raw.FDR,
			MatchingGenes:   raw.MatchingGenes,
			Description:     raw.Description,
			GeneCount:       raw.GeneCount,
			EnrichmentScore: raw.EnrichmentScore,
		})
	}

	return result, nil
}

func shapeErr(message string, err error) *QueryError {
	return &QueryError{
		Kind:    ErrorKindDataShape,
		Message: message,
		Err:     err,
	}
}
