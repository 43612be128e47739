package knowledge

import (
	"strings"

	"github.com/blevesearch/bleve/v2"
)

// Prefilter narrows the candidate set for very large knowledge bases using
// an in-memory bleve full-text index. It never ranks: the exact scorer owns
// ordering and the 0.3 threshold, so small corpora skip the prefilter
// entirely and large ones only avoid scoring obviously unrelated items.
type Prefilter struct {
	index     bleve.Index
	threshold int
}

// prefilterDoc is the shape indexed per knowledge item.
type prefilterDoc struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	Keywords string `json:"keywords"`
}

// NewPrefilter creates a memory-only bleve index. The prefilter activates
// once the owning Index holds at least threshold items.
func NewPrefilter(threshold int) (*Prefilter, error) {
	if threshold < 1 {
		threshold = 1
	}
	idx, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, err
	}
	return &Prefilter{index: idx, threshold: threshold}, nil
}

// Index adds or replaces one item in the prefilter.
func (p *Prefilter) Index(item Item) error {
	return p.index.Index(item.ID, prefilterDoc{
		Title:    item.Title,
		Content:  item.Content,
		Keywords: strings.Join(item.Keywords, " "),
	})
}

// Delete removes an item from the prefilter.
func (p *Prefilter) Delete(id string) {
	_ = p.index.Delete(id)
}

// Candidates returns up to size item IDs matching the query. A nil return
// tells the caller to fall back to scoring the full corpus.
func (p *Prefilter) Candidates(query string, size int) []string {
	if size < 1 {
		size = 1
	}
	req := bleve.NewSearchRequest(bleve.NewMatchQuery(query))
	req.Size = size
	res, err := p.index.Search(req)
	if err != nil || len(res.Hits) == 0 {
		return nil
	}
	ids := make([]string, 0, len(res.Hits))
	for _, hit := range res.Hits {
		ids = append(ids, hit.ID)
	}
	return ids
}

// Close releases the underlying index.
func (p *Prefilter) Close() error {
	return p.index.Close()
}
