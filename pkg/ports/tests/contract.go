package tests

import (
	"context"
	"testing"

	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/ports"
)

// RuleLoaderContractTest is a reusable test suite that verifies if an adapter complies with ports.RuleLoader.
// The loader must be backed by a document declaring at least one rule and enabling dynamic context.
func RuleLoaderContractTest(t *testing.T, loader ports.RuleLoader) {
	t.Helper()

	t.Run("LoadRules_Success", func(t *testing.T) {
		set, warns, err := loader.LoadRules(context.Background())
		if err != nil {
			t.Fatalf("unexpected error loading rules: %v", err)
		}
		if set == nil {
			t.Fatal("expected a rule set, got nil")
		}
		if len(set.Rules) == 0 {
			t.Error("expected at least one rule")
		}
		if !set.Global.EnableDynamicContext {
			t.Error("expected dynamic context to be enabled")
		}
		for _, w := range warns {
			t.Logf("warning: %v", w)
		}
	})

	t.Run("LoadRules_Sanitized", func(t *testing.T) {
		set, _, err := loader.LoadRules(context.Background())
		if err != nil {
			t.Fatalf("unexpected error loading rules: %v", err)
		}
		for _, r := range set.Rules {
			if r.Primary.Category != domain.Sanitize(r.Primary.Category) || r.Primary.Value != domain.Sanitize(r.Primary.Value) {
				t.Errorf("rule primary %s is not sanitized", r.Primary)
			}
		}
	})

	t.Run("LoadRules_Cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if _, _, err := loader.LoadRules(ctx); err == nil {
			t.Error("expected error for cancelled context, got nil")
		}
	})
}
