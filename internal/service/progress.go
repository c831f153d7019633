package service

// Progress stages use a fixed vocabulary so clients can render them.
const (
	StageParsing    = "parsing"
	StageChunking   = "chunking"
	StageEmbedding  = "embedding"
	StageRetrieving = "retrieving"
	StageGenerating = "generating"
)

// ProgressFunc receives (stage, percent). Orchestrators emit
// non-decreasing percentages within one run.
type ProgressFunc func(stage string, percent int)

func report(fn ProgressFunc, stage string, percent int) {
	if fn == nil {
		return
	}
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	fn(stage, percent)
}
