package repositories

import "context"

// KnowledgeRetriever abstracts a streaming knowledge-retrieval service used
// to short-circuit the completion call when a specialized answer exists. The
// returned channel delivers answer text in arrival order and is closed by
// the adapter once the stream ends.
type KnowledgeRetriever interface {
	StreamQuery(ctx context.Context, query string) (<-chan string, error)
}
