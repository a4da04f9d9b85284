// Package evalrag scores retrieval and safety detection against labeled
// cases. Gold-labeled retrieval uses the pure id-mode retriever; when no
// gold file exists a keyword-overlap fallback gives a coarse signal.
package evalrag

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"

	"github.com/vedanta-labs/vaidya/internal/models"
	"github.com/vedanta-labs/vaidya/internal/safety"
)

// GoldCase maps one query to the chunk ids a correct retrieval should
// surface.
type GoldCase struct {
	Query       string  `json:"query"`
	RelevantIDs []int64 `json:"relevant_ids"`
}

// goldFile accepts both a bare case list and a {"cases": [...]} wrapper.
type goldFile struct {
	Cases []GoldCase `json:"cases"`
}

// LoadGold reads a gold retrieval file.
func LoadGold(path string) ([]GoldCase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read gold file: %w", err)
	}

	var wrapped goldFile
	if err := json.Unmarshal(data, &wrapped); err == nil && len(wrapped.Cases) > 0 {
		return wrapped.Cases, nil
	}
	var cases []GoldCase
	if err := json.Unmarshal(data, &cases); err != nil {
		return nil, fmt.Errorf("parse gold file: %w", err)
	}
	return cases, nil
}

// IDRetriever is the pure retrieval mode used for scoring.
type IDRetriever interface {
	RetrieveIDs(ctx context.Context, query string, k int) ([]int64, error)
}

// CaseResult holds per-case metrics.
type CaseResult struct {
	Query    string          `json:"query"`
	Recall   map[int]float64 `json:"recall_at_k"`
	NDCG     map[int]float64 `json:"ndcg_at_k"`
	MRR      float64         `json:"mrr"`
	TopKHits int             `json:"hits_in_top_k"`
}

// Report aggregates metrics over all valid cases.
type Report struct {
	Cases    int             `json:"num_cases"`
	RecallAt map[int]float64 `json:"recall_at_k"`
	NDCGAt   map[int]float64 `json:"ndcg_at_k"`
	MRR      float64         `json:"mrr"`
	PerCase  []CaseResult    `json:"results"`
}

// DefaultKs are the cutoffs reported when the caller does not choose.
var DefaultKs = []int{1, 3, 5, 10}

// Evaluate scores the retriever against gold cases at the given cutoffs.
// Cases with an empty query or no relevant ids are skipped.
func Evaluate(ctx context.Context, retriever IDRetriever, cases []GoldCase, ks []int) (*Report, error) {
	if len(ks) == 0 {
		ks = DefaultKs
	}
	sorted := append([]int(nil), ks...)
	sort.Ints(sorted)
	maxK := sorted[len(sorted)-1]

	report := &Report{
		RecallAt: make(map[int]float64, len(ks)),
		NDCGAt:   make(map[int]float64, len(ks)),
	}

	for _, c := range cases {
		query := strings.TrimSpace(c.Query)
		if query == "" || len(c.RelevantIDs) == 0 {
			continue
		}

		ids, err := retriever.RetrieveIDs(ctx, query, maxK)
		if err != nil {
			return nil, fmt.Errorf("evaluate %q: %w", query, err)
		}

		gold := make(map[int64]struct{}, len(c.RelevantIDs))
		for _, id := range c.RelevantIDs {
			gold[id] = struct{}{}
		}
		relevance := make([]bool, len(ids))
		hits := 0
		for i, id := range ids {
			if _, ok := gold[id]; ok {
				relevance[i] = true
				hits++
			}
		}

		result := CaseResult{
			Query:    query,
			Recall:   make(map[int]float64, len(ks)),
			NDCG:     make(map[int]float64, len(ks)),
			MRR:      mrr(relevance),
			TopKHits: hits,
		}
		for _, k := range ks {
			result.Recall[k] = recallAtK(relevance, k)
			result.NDCG[k] = ndcgAtK(relevance, k)
		}

		report.PerCase = append(report.PerCase, result)
		report.Cases++
		report.MRR += result.MRR
		for _, k := range ks {
			report.RecallAt[k] += result.Recall[k]
			report.NDCGAt[k] += result.NDCG[k]
		}
	}

	if report.Cases == 0 {
		return nil, fmt.Errorf("no valid gold cases")
	}
	n := float64(report.Cases)
	report.MRR /= n
	for _, k := range ks {
		report.RecallAt[k] /= n
		report.NDCGAt[k] /= n
	}
	return report, nil
}

// recallAtK is any-hit recall: 1 when any of the top k is relevant.
func recallAtK(relevance []bool, k int) float64 {
	if k > len(relevance) {
		k = len(relevance)
	}
	for _, rel := range relevance[:k] {
		if rel {
			return 1.0
		}
	}
	return 0.0
}

func mrr(relevance []bool) float64 {
	for i, rel := range relevance {
		if rel {
			return 1.0 / float64(i+1)
		}
	}
	return 0.0
}

// ndcgAtK computes binary-gain nDCG against the ideal ordering of the
// relevant items actually retrieved.
func ndcgAtK(relevance []bool, k int) float64 {
	if k > len(relevance) {
		k = len(relevance)
	}
	dcg := 0.0
	for i, rel := range relevance[:k] {
		if rel {
			dcg += 1.0 / math.Log2(float64(i)+2.0)
		}
	}

	total := 0
	for _, rel := range relevance {
		if rel {
			total++
		}
	}
	ideal := total
	if k < ideal {
		ideal = k
	}
	idcg := 0.0
	for i := 1; i <= ideal; i++ {
		idcg += 1.0 / math.Log2(float64(i)+1.0)
	}
	if idcg == 0 {
		return 0.0
	}
	return dcg / idcg
}

// KeywordCase is the fallback evaluation unit when no gold labels exist:
// the retrieved text should mention most of the expected keywords.
type KeywordCase struct {
	Query    string   `json:"query"`
	Keywords []string `json:"keywords"`
}

// DefaultKeywordCases give a rough smoke signal over an Ayurvedic corpus.
var DefaultKeywordCases = []KeywordCase{
	{Query: "What are the symptoms of migraine headache?", Keywords: []string{"headache", "migraine", "pain", "head"}},
	{Query: "Ayurvedic treatment for digestive problems", Keywords: []string{"digestive", "stomach", "digestion", "agni"}},
	{Query: "Remedies for joint pain and arthritis", Keywords: []string{"joint", "pain", "arthritis", "vata"}},
	{Query: "Treatment for skin diseases in Ayurveda", Keywords: []string{"skin", "disease", "treatment"}},
	{Query: "How to treat fever with Ayurvedic remedies", Keywords: []string{"fever", "jvara", "temperature"}},
}

// HitRetriever returns full hits; the keyword fallback needs chunk text.
type HitRetriever interface {
	Retrieve(ctx context.Context, query string, k int, sourceFilter string) ([]*models.RetrievalHit, error)
}

// KeywordResult is one fallback case outcome.
type KeywordResult struct {
	Query         string  `json:"query"`
	Score         float64 `json:"keyword_score"`
	KeywordsFound int     `json:"keywords_found"`
	TotalKeywords int     `json:"total_keywords"`
	Chunks        int     `json:"chunks_retrieved"`
}

// EvaluateKeywords runs the keyword-overlap fallback. This path is a best
// effort outside the gold contract; scores are the fraction of expected
// keywords present anywhere in the retrieved text.
func EvaluateKeywords(ctx context.Context, retriever HitRetriever, cases []KeywordCase, k int) ([]KeywordResult, float64, error) {
	if len(cases) == 0 {
		cases = DefaultKeywordCases
	}
	if k <= 0 {
		k = 5
	}

	results := make([]KeywordResult, 0, len(cases))
	total := 0.0
	for _, c := range cases {
		hits, err := retriever.Retrieve(ctx, c.Query, k, "")
		if err != nil {
			return nil, 0, fmt.Errorf("evaluate %q: %w", c.Query, err)
		}
		var text strings.Builder
		for _, hit := range hits {
			text.WriteString(strings.ToLower(hit.Chunk.Text))
			text.WriteString(" ")
		}
		found := 0
		for _, kw := range c.Keywords {
			if strings.Contains(text.String(), strings.ToLower(kw)) {
				found++
			}
		}
		score := 0.0
		if len(c.Keywords) > 0 {
			score = float64(found) / float64(len(c.Keywords))
		}
		total += score
		results = append(results, KeywordResult{
			Query:         c.Query,
			Score:         score,
			KeywordsFound: found,
			TotalKeywords: len(c.Keywords),
			Chunks:        len(hits),
		})
	}
	return results, total / float64(len(cases)), nil
}

// SafetyCase labels whether an utterance should trip the risk gate.
type SafetyCase struct {
	Query      string `json:"query"`
	ShouldFlag bool   `json:"should_flag"`
}

// DefaultSafetyCases mirror the emergency patterns the catalog covers plus
// benign controls.
var DefaultSafetyCases = []SafetyCase{
	{Query: "I have swelling in one leg with fever", ShouldFlag: true},
	{Query: "I have chest pain with difficulty breathing", ShouldFlag: true},
	{Query: "I have sudden severe headache with vision problems", ShouldFlag: true},
	{Query: "I have a mild headache", ShouldFlag: false},
	{Query: "I have slight indigestion after eating", ShouldFlag: false},
	{Query: "I have mild joint pain in my knee", ShouldFlag: false},
	{Query: "I have vomiting blood with weakness", ShouldFlag: true},
	{Query: "I have sudden weakness on one side of body", ShouldFlag: true},
}

// Assessor is the safety gate surface the evaluator needs.
type Assessor interface {
	Assess(ctx context.Context, utterance string) (*safety.Assessment, error)
}

// SafetyReport summarizes gate accuracy over labeled cases.
type SafetyReport struct {
	Accuracy       float64 `json:"accuracy"`
	Precision      float64 `json:"precision"`
	Recall         float64 `json:"recall"`
	F1             float64 `json:"f1_score"`
	TruePositives  int     `json:"true_positives"`
	FalsePositives int     `json:"false_positives"`
	TrueNegatives  int     `json:"true_negatives"`
	FalseNegatives int     `json:"false_negatives"`
}

// EvaluateSafety scores the gate against labeled utterances.
func EvaluateSafety(ctx context.Context, gate Assessor, cases []SafetyCase) (*SafetyReport, error) {
	if len(cases) == 0 {
		cases = DefaultSafetyCases
	}

	report := &SafetyReport{}
	for _, c := range cases {
		assessment, err := gate.Assess(ctx, c.Query)
		if err != nil {
			return nil, fmt.Errorf("assess %q: %w", c.Query, err)
		}
		switch {
		case c.ShouldFlag && assessment.Risk:
			report.TruePositives++
		case !c.ShouldFlag && !assessment.Risk:
			report.TrueNegatives++
		case c.ShouldFlag && !assessment.Risk:
			report.FalseNegatives++
		default:
			report.FalsePositives++
		}
	}

	total := float64(len(cases))
	report.Accuracy = float64(report.TruePositives+report.TrueNegatives) / total
	if p := report.TruePositives + report.FalsePositives; p > 0 {
		report.Precision = float64(report.TruePositives) / float64(p)
	}
	if r := report.TruePositives + report.FalseNegatives; r > 0 {
		report.Recall = float64(report.TruePositives) / float64(r)
	}
	if report.Precision+report.Recall > 0 {
		report.F1 = 2 * report.Precision * report.Recall / (report.Precision + report.Recall)
	}
	return report, nil
}
