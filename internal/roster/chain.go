package roster

import (
	"context"

	"go.uber.org/zap"
)

// Step is one source in a fallback chain. Errors from an Optional step are logged
// and the chain moves on; errors from other steps stop the chain.
type Step[T any] struct {
	Name     string
	Optional bool
	Load     func(ctx context.Context) ([]T, error)
}

// FirstNonEmpty runs steps in order and returns the first non-empty result together
// with the name of the step that produced it. Exhausting every step is not an error.
func FirstNonEmpty[T any](ctx context.Context, log *zap.Logger, steps ...Step[T]) ([]T, string, error) {
	for _, s := range steps {
		items, err := s.Load(ctx)
		if err != nil {
			if !s.Optional {
				return nil, s.Name, err
			}
			log.Warn("roster source failed, falling through", zap.String("source", s.Name), zap.Error(err))
			continue
		}
		if len(items) > 0 {
			return items, s.Name, nil
		}
	}
	return []T{}, "", nil
}
