// Package extraction pulls structured ATC content out of raw
// transcripts via the language-model collaborator.
package extraction

import "context"

// Extraction is the structured content of one transmission.
type Extraction struct {
	Callsigns    []string `json:"callsigns"`
	Instructions []string `json:"instructions"`
	Runways      []string `json:"runways"`
	Summary      string   `json:"summary"`
}

// Empty reports whether the extraction carried no usable content.
func (e *Extraction) Empty() bool {
	return len(e.Callsigns) == 0 && len(e.Instructions) == 0 &&
		len(e.Runways) == 0 && e.Summary == ""
}

// Extractor extracts structured content from transcript text.
type Extractor interface {
	Extract(ctx context.Context, transcript string) (*Extraction, error)
}
