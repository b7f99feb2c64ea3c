package search

import "github.com/meridiansearch/meridian/domain/document"

// Explain is the per-document score breakdown returned when explain=true.
type Explain struct {
	vectorScore      float64
	textScore        float64
	boosts           float64
	pluginAdjustment float64
}

// NewExplain creates an Explain breakdown.
func NewExplain(vectorScore, textScore, boosts, pluginAdjustment float64) Explain {
	return Explain{
		vectorScore:      vectorScore,
		textScore:        textScore,
		boosts:           boosts,
		pluginAdjustment: pluginAdjustment,
	}
}

// VectorScore returns the normalized vector contribution.
func (e Explain) VectorScore() float64 { return e.vectorScore }

// TextScore returns the normalized lexical contribution.
func (e Explain) TextScore() float64 { return e.textScore }

// Boosts returns the trigger boost delta applied to the fused score.
func (e Explain) Boosts() float64 { return e.boosts }

// PluginAdjustment returns the plugin pipeline delta.
func (e Explain) PluginAdjustment() float64 { return e.pluginAdjustment }

// Result is one scored document in a search response.
type Result struct {
	doc     document.Document
	score   float64
	explain *Explain
}

// NewResult creates a Result.
func NewResult(doc document.Document, score float64) Result {
	return Result{doc: doc, score: score}
}

// Document returns the hydrated document.
func (r Result) Document() document.Document { return r.doc }

// Score returns the final ranking score.
func (r Result) Score() float64 { return r.score }

// Explain returns the score breakdown, or nil when not requested.
func (r Result) Explain() *Explain { return r.explain }

// WithExplain returns a copy carrying the score breakdown.
func (r Result) WithExplain(e Explain) Result {
	r.explain = &e
	return r
}

// Facets summarizes the pre-truncation candidate pool.
type Facets struct {
	documentTypes map[string]int
	tags          map[string]int
	authors       map[string]int
	sources       map[string]int
}

// NewFacets creates an empty Facets accumulator.
func NewFacets() *Facets {
	return &Facets{
		documentTypes: map[string]int{},
		tags:          map[string]int{},
		authors:       map[string]int{},
		sources:       map[string]int{},
	}
}

// Add counts one candidate document into the facets.
func (f *Facets) Add(doc document.Document) {
	if t := string(doc.DocumentType()); t != "" {
		f.documentTypes[t]++
	}
	if src := doc.SourceID(); src != "" {
		f.sources[src]++
	}
	if author := doc.Attributes().GetString(document.AttrPubkey); author != "" {
		f.authors[author]++
	}
	if tags, ok := doc.Attributes().Get(document.AttrTags); ok {
		if list, ok := tags.([]any); ok {
			for _, t := range list {
				if s, ok := t.(string); ok {
					f.tags[s]++
				}
			}
		}
		if list, ok := tags.([]string); ok {
			for _, s := range list {
				f.tags[s]++
			}
		}
	}
}

// DocumentTypes returns counts by document type.
func (f *Facets) DocumentTypes() map[string]int { return copyCounts(f.documentTypes) }

// Tags returns counts by tag.
func (f *Facets) Tags() map[string]int { return copyCounts(f.tags) }

// Authors returns counts by author pubkey.
func (f *Facets) Authors() map[string]int { return copyCounts(f.authors) }

// Sources returns counts by source connector.
func (f *Facets) Sources() map[string]int { return copyCounts(f.sources) }

func copyCounts(in map[string]int) map[string]int {
	out := make(map[string]int, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// Response is a complete search response.
type Response struct {
	query   string
	mode    Mode
	results []Result
	total   int
	facets  *Facets
}

// NewResponse creates a Response.
func NewResponse(query string, mode Mode, results []Result, total int, facets *Facets) Response {
	cp := make([]Result, len(results))
	copy(cp, results)
	return Response{query: query, mode: mode, results: cp, total: total, facets: facets}
}

// Query returns the original query text.
func (r Response) Query() string { return r.query }

// Mode returns the search mode.
func (r Response) Mode() Mode { return r.mode }

// Results returns the scored documents.
func (r Response) Results() []Result {
	cp := make([]Result, len(r.results))
	copy(cp, r.results)
	return cp
}

// Count returns the number of returned results.
func (r Response) Count() int { return len(r.results) }

// Total returns the pre-truncation candidate count.
func (r Response) Total() int { return r.total }

// Facets returns the candidate pool facets, or nil.
func (r Response) Facets() *Facets { return r.facets }
