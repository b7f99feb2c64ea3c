package nlp

// Annotator attaches entities and topics to short candidate text during
// federated enrichment. It reuses the document NLP pipeline without the
// per-version bookkeeping.
type Annotator struct{}

// NewAnnotator creates an Annotator.
func NewAnnotator() Annotator { return Annotator{} }

// Annotate extracts entity surface forms and topic tags from text.
func (Annotator) Annotate(text string) (entities, topics []string) {
	for _, e := range Entities(text) {
		entities = append(entities, e.Value())
	}
	return entities, Topics(text)
}
