package frpei

import (
	"context"

	domfrpei "github.com/meridiansearch/meridian/domain/frpei"
	"github.com/meridiansearch/meridian/domain/search"
)

// localSnippetRunes bounds the snippet taken from document content.
const localSnippetRunes = 280

// Searcher is the slice of the search service the local provider drives.
type Searcher interface {
	Search(ctx context.Context, req search.Request) (search.Response, error)
}

// LocalProvider exposes the node's own index as a federated provider, so
// local documents compete with external results under the same ranking.
type LocalProvider struct {
	search Searcher
	tier   int
}

// NewLocalProvider creates a LocalProvider. The local index is the most
// trusted source by default.
func NewLocalProvider(search Searcher, tier int) *LocalProvider {
	if tier <= 0 {
		tier = 3
	}
	return &LocalProvider{search: search, tier: tier}
}

// Name implements frpei.Provider.
func (p *LocalProvider) Name() string { return "local" }

// TrustTier implements frpei.Provider.
func (p *LocalProvider) TrustTier() int { return p.tier }

// Fetch implements frpei.Provider by running a hybrid search over the
// local index.
func (p *LocalProvider) Fetch(ctx context.Context, query string, limit int) ([]domfrpei.RawCandidate, error) {
	resp, err := p.search.Search(ctx, search.NewRequest(query, search.ModeHybrid, limit))
	if err != nil {
		return nil, err
	}

	results := resp.Results()
	out := make([]domfrpei.RawCandidate, 0, len(results))
	for _, r := range results {
		doc := r.Document()
		url := doc.URL()
		if url == "" {
			// Candidates dedupe on canonical URL; documents without one
			// cannot participate.
			continue
		}
		out = append(out, domfrpei.RawCandidate{
			URL:         url,
			Title:       doc.Title(),
			Snippet:     snippet(doc.Content()),
			ContentType: string(doc.DocumentType()),
			PublishedAt: doc.LastModified(),
			Relevance:   r.Score(),
			Popularity:  doc.QualityScore(),
		})
	}
	return out, nil
}

func snippet(content string) string {
	runes := []rune(content)
	if len(runes) <= localSnippetRunes {
		return content
	}
	return string(runes[:localSnippetRunes])
}
