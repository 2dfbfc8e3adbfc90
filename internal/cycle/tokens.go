package cycle

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/sentinel-cycle/engine/internal/logging"
)

// contextEncoding is the byte-pair encoding curation's token-budget
// estimate is computed against (the same cl100k_base family the LLM port's
// model family assumes). Resolved once per process.
var contextEncoding = sync.OnceValues(func() (*tiktoken.Tiktoken, error) {
	return tiktoken.GetEncoding("cl100k_base")
})

// estimateTokens returns a best-effort token count for text, shown to an
// approver alongside a curated context bundle so they can judge its size
// before it is sent to the model. An unavailable encoding degrades to a
// zero estimate rather than failing curation over it.
func estimateTokens(logger logging.Logger, text string) int {
	enc, err := contextEncoding()
	if err != nil {
		logger.Warn("token encoding unavailable, context token estimate will read 0: %v", err)
		return 0
	}
	return len(enc.Encode(text, nil, nil))
}
