package recovery

import (
	"context"
	"strings"
)

// FaceMatcher scores a captured artifact against the enrolled reference.
// Scores are in [0, 1].
type FaceMatcher interface {
	Match(ctx context.Context, reference, artifact string) (float64, error)
}

// PlaceholderMatcher performs no comparison. Any non-empty artifact scores
// 1.0. Swap in a real matcher before relying on the biometric channel.
type PlaceholderMatcher struct{}

func (PlaceholderMatcher) Match(_ context.Context, _, artifact string) (float64, error) {
	if strings.TrimSpace(artifact) == "" {
		return 0, nil
	}
	return 1, nil
}
