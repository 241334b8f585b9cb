package assistant

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// EstimateTokens returns a local token-count estimate for text. The Invoker
// does not call it: a result whose JSON omits modelUsage keeps a nil
// ModelUsage. The encoding is loaded once, on the first call, and cached;
// if it cannot be loaded a crude 4-chars-per-token heuristic is used
// instead.
func EstimateTokens(text string) int {
	enc := encodingOnce()
	if enc == nil {
		return (len(text) + 3) / 4
	}
	return len(enc.Encode(text, nil, nil))
}

var (
	encMu    sync.Mutex
	encoding *tiktoken.Tiktoken
	encTried bool
)

func encodingOnce() *tiktoken.Tiktoken {
	encMu.Lock()
	defer encMu.Unlock()
	if encTried {
		return encoding
	}
	encTried = true
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err == nil {
		encoding = enc
	}
	return encoding
}
