// Package papers defines the port for reading stored paper content.
package papers

import "context"

// Translation is the stored translation of one paper.
type Translation struct {
	PaperID int64
	Lang    string
	Text    string
	URL     string
}

// Source looks up paper translations. Implementations return an error
// wrapping domain.ErrNotFound when no translation exists.
type Source interface {
	Translation(ctx context.Context, paperID int64, lang string) (*Translation, error)
}
