package config

import "context"

// SecretProvider resolves secret references to plaintext values. The
// loader uses it for every NAME_SECRET_ENV pointer in the environment.
type SecretProvider interface {
	// GetParametersBatch resolves keys and returns key -> value for every
	// key it found. Missing keys are omitted rather than reported as errors.
	GetParametersBatch(ctx context.Context, keys []string) (map[string]string, error)
}
