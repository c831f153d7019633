package chunker

// Split cuts text into contiguous overlapping segments of at most
// sizeChars characters. Each segment after the first starts
// overlapChars before the end of the previous one so no boundary loses
// context. An overlap that is not strictly smaller than the size is
// clamped to size/5. Splitting is deterministic: identical input and
// parameters always produce identical segments.
func Split(text string, sizeChars, overlapChars int) []string {
	if sizeChars <= 0 {
		return nil
	}
	if overlapChars < 0 || overlapChars >= sizeChars {
		overlapChars = sizeChars / 5
	}
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	step := sizeChars - overlapChars
	segments := make([]string, 0, len(runes)/step+1)
	for start := 0; start < len(runes); start += step {
		end := start + sizeChars
		if end > len(runes) {
			end = len(runes)
		}
		segments = append(segments, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return segments
}

// Params are the adaptive chunking knobs picked per document. Token
// counts convert to characters through the same chars-per-token ratio
// used to estimate document size.
type Params struct {
	ChunkTokens   int
	OverlapTokens int
	BatchSize     int
}

const DefaultCharsPerToken = 4

// ParamsFor picks chunk size, overlap and embedding batch size from a
// tiered table keyed by the document's estimated token count. Long
// documents get larger chunks with less overlap to bound total segment
// count; short documents get small fast batches to cut latency.
func ParamsFor(charCount, charsPerToken int) Params {
	if charsPerToken <= 0 {
		charsPerToken = DefaultCharsPerToken
	}
	tokens := charCount / charsPerToken
	switch {
	case tokens <= 4_000:
		return Params{ChunkTokens: 300, OverlapTokens: 60, BatchSize: 8}
	case tokens <= 20_000:
		return Params{ChunkTokens: 400, OverlapTokens: 80, BatchSize: 16}
	case tokens <= 80_000:
		return Params{ChunkTokens: 512, OverlapTokens: 64, BatchSize: 24}
	default:
		return Params{ChunkTokens: 768, OverlapTokens: 48, BatchSize: 32}
	}
}

// SizeChars converts the token-denominated params into character
// counts for Split.
func (p Params) SizeChars(charsPerToken int) (size, overlap int) {
	if charsPerToken <= 0 {
		charsPerToken = DefaultCharsPerToken
	}
	return p.ChunkTokens * charsPerToken, p.OverlapTokens * charsPerToken
}
