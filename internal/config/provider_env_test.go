package config

import (
	"context"
	"testing"
)

func TestEnvVarProviderSatisfiesSecretProvider(t *testing.T) {
	var _ SecretProvider = (*EnvVarProvider)(nil)
	var _ SecretProvider = NewEnvVarProvider()
}

func TestEnvVarProviderResolves(t *testing.T) {
	t.Setenv("REGIONWATCH_TEST_SECRET_A", "value-alpha")

	result, err := NewEnvVarProvider().GetParametersBatch(context.Background(),
		[]string{"REGIONWATCH_TEST_SECRET_A", "REGIONWATCH_TEST_DEFINITELY_NOT_SET"})
	if err != nil {
		t.Fatalf("GetParametersBatch returned unexpected error: %v", err)
	}
	if len(result) != 1 {
		t.Fatalf("expected 1 result, got %v", result)
	}
	if got := result["REGIONWATCH_TEST_SECRET_A"]; got != "value-alpha" {
		t.Errorf("result = %q, want value-alpha", got)
	}
}

func TestEnvVarProviderZeroValueUsesProcessEnv(t *testing.T) {
	t.Setenv("REGIONWATCH_TEST_SECRET_B", "beta")

	var p EnvVarProvider
	result, err := p.GetParametersBatch(context.Background(), []string{"REGIONWATCH_TEST_SECRET_B"})
	if err != nil {
		t.Fatalf("GetParametersBatch returned unexpected error: %v", err)
	}
	if result["REGIONWATCH_TEST_SECRET_B"] != "beta" {
		t.Errorf("result = %v", result)
	}
}
