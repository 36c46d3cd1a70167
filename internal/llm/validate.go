package llm

import (
	"errors"
	"fmt"
)

// ErrInvalidArgument marks a request rejected before dispatch.
var ErrInvalidArgument = errors.New("invalid argument")

const minCompletionTokens = 1

// ValidateMaxTokens rejects a token budget outside the acceptable
// range. ceiling is the serving model's configured limit; zero means
// no upper bound is known.
func ValidateMaxTokens(maxTokens, ceiling int) error {
	if maxTokens < minCompletionTokens {
		return fmt.Errorf("%w: max_tokens must be at least %d, got %d", ErrInvalidArgument, minCompletionTokens, maxTokens)
	}
	if ceiling > 0 && maxTokens > ceiling {
		return fmt.Errorf("%w: max_tokens %d exceeds model limit %d", ErrInvalidArgument, maxTokens, ceiling)
	}
	return nil
}
