package config

import "testing"

func TestDirectiveFlags(t *testing.T) {
	cfg := NewConfig()
	cfg.ProcessDirectiveFlags("-Wno-overflow -Fno-union-narrowing -Wredundant-check")
	if cfg.IsWarningEnabled(WarnOverflow) {
		t.Error("expected overflow warnings to be disabled")
	}
	if cfg.IsFeatureEnabled(FeatUnionNarrowing) {
		t.Error("expected union narrowing to be disabled")
	}
	if !cfg.IsWarningEnabled(WarnRedundantCheck) {
		t.Error("expected redundant-check warnings to be enabled")
	}
}

func TestWallOrdering(t *testing.T) {
	cfg := NewConfig()
	// -Wall is applied before the specific flag regardless of order
	cfg.ProcessDirectiveFlags("-Wno-type -Wall")
	if cfg.IsWarningEnabled(WarnType) {
		t.Error("expected -Wno-type to override -Wall")
	}
	if cfg.IsWarningEnabled(WarnPedantic) {
		t.Error("expected -Wall not to enable pedantic")
	}
}

func TestSetTarget(t *testing.T) {
	cfg := NewConfig()
	cfg.SetTarget("linux", "arm", "rv32")
	if cfg.WordSize != 4 {
		t.Errorf("expected word size 4, got %d", cfg.WordSize)
	}
	lo, hi := cfg.WordRange()
	if lo != -2147483648 || hi != 2147483647 {
		t.Errorf("expected 32-bit range, got [%d, %d]", lo, hi)
	}

	cfg.SetTarget("linux", "amd64", "")
	if cfg.QbeTarget == "" || cfg.WordSize != 8 {
		t.Errorf("expected a default 64-bit target, got %q with word size %d", cfg.QbeTarget, cfg.WordSize)
	}
}

func TestLoad(t *testing.T) {
	data := []byte(`
target: rv32
profile: strict
features:
  predicate-store: false
warnings:
  extra: false
flags: ["-Wno-overflow"]
`)
	cfg, err := Load(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.WordSize != 4 {
		t.Errorf("expected word size 4, got %d", cfg.WordSize)
	}
	if cfg.IsFeatureEnabled(FeatPredicateStore) {
		t.Error("expected predicate-store to be disabled")
	}
	if cfg.IsWarningEnabled(WarnExtra) || cfg.IsWarningEnabled(WarnOverflow) {
		t.Error("expected extra and overflow warnings to be disabled")
	}
	if !cfg.IsWarningEnabled(WarnPedantic) {
		t.Error("expected the strict profile to enable pedantic warnings")
	}
}

func TestLoadErrors(t *testing.T) {
	for _, data := range []string{
		"features:\n  no-such-feature: true\n",
		"warnings:\n  no-such-warning: true\n",
		"profile: lax\n",
		"features: [\n",
	} {
		if _, err := Load([]byte(data)); err == nil {
			t.Errorf("expected an error for %q", data)
		}
	}
}
