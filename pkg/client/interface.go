package client

import (
	"image"

	"github.com/menta2k/ssimdiff/pkg/types"
)

// Comparer runs one reference/suspect comparison. gt may be nil.
// Implementations must be safe for concurrent use.
type Comparer interface {
	Analyze(ref, sus, gt image.Image) (*types.AnalysisResult, error)
}
