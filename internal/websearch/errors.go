package websearch

import "fmt"

// SearchProviderError reports a search backend failure or timeout. The
// caller decides whether to degrade gracefully (answer without
// augmentation).
type SearchProviderError struct {
	Err error
}

func (e *SearchProviderError) Error() string {
	return fmt.Sprintf("search provider call failed: %v", e.Err)
}

func (e *SearchProviderError) Unwrap() error { return e.Err }

// SearchRefinementError reports a failed LLM query refinement. Never
// propagated past the searcher: search proceeds with the unrefined query.
type SearchRefinementError struct {
	Err error
}

func (e *SearchRefinementError) Error() string {
	return fmt.Sprintf("search query refinement failed: %v", e.Err)
}

func (e *SearchRefinementError) Unwrap() error { return e.Err }
