package engine

import (
	"errors"
	"testing"

	"github.com/warp/workforce-engine/decimal"
)

func testResolver() Resolver {
	return Resolver{
		Seeds: ParameterSeeds{Rates: map[string]decimal.Rate{
			ParamCOLA:            decimal.NewRate(0.02),
			ParamTerminationRate: decimal.NewRate(0.12),
		}},
		Overrides: map[ScenarioID]ScenarioOverrides{
			"scn-override": {Rates: map[string]decimal.Rate{
				ParamCOLA: decimal.NewRate(0.03),
			}},
		},
		Levers: Levers{Rows: map[LeverKey]decimal.Rate{
			{ScenarioID: "scn-override", FiscalYear: 2026, EventType: EventMerit, ParameterName: ParamCOLA}:              decimal.NewRate(0.05),
			{ScenarioID: "scn-override", FiscalYear: 2027, EventType: EventMerit, ParameterName: ParamCOLA, JobLevel: 3}: decimal.NewRate(0.07),
		}},
	}
}

func TestResolve_SeedDefaultAppliesWhenNothingOverrides(t *testing.T) {
	r := testResolver()

	got, err := r.Resolve("scn-plain", 2025, 0).Get(ParamCOLA)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Decimal().Equal(decimal.NewRate(0.02).Decimal()) {
		t.Errorf("cola = %s, want seed default 0.02", got)
	}
}

func TestResolve_ScenarioOverrideBeatsSeed(t *testing.T) {
	r := testResolver()

	got, err := r.Resolve("scn-override", 2025, 0).Get(ParamCOLA)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Decimal().Equal(decimal.NewRate(0.03).Decimal()) {
		t.Errorf("cola = %s, want override 0.03", got)
	}
}

func TestResolve_LeverBeatsOverrideForItsYear(t *testing.T) {
	r := testResolver()

	// The 2026 lever wins in 2026...
	got, err := r.Resolve("scn-override", 2026, 0).Get(ParamCOLA)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Decimal().Equal(decimal.NewRate(0.05).Decimal()) {
		t.Errorf("cola 2026 = %s, want lever 0.05", got)
	}

	// ...and the override still wins in 2025
	got, err = r.Resolve("scn-override", 2025, 0).Get(ParamCOLA)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Decimal().Equal(decimal.NewRate(0.03).Decimal()) {
		t.Errorf("cola 2025 = %s, want override 0.03", got)
	}
}

func TestResolve_LevelScopedLeverAppliesOnlyToItsLevel(t *testing.T) {
	r := testResolver()

	atLevel3, err := r.Resolve("scn-override", 2027, 3).Get(ParamCOLA)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !atLevel3.Decimal().Equal(decimal.NewRate(0.07).Decimal()) {
		t.Errorf("cola level 3 = %s, want level lever 0.07", atLevel3)
	}

	atLevel5, err := r.Resolve("scn-override", 2027, 5).Get(ParamCOLA)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !atLevel5.Decimal().Equal(decimal.NewRate(0.03).Decimal()) {
		t.Errorf("cola level 5 = %s, want override 0.03", atLevel5)
	}
}

func TestGet_MissingParameterIsConfigError(t *testing.T) {
	r := testResolver()

	_, err := r.Resolve("scn-plain", 2025, 0).Get("no_such_parameter")
	if !errors.Is(err, ErrConfig) {
		t.Fatalf("expected ErrConfig, got %v", err)
	}
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) || cfgErr.Field != "no_such_parameter" {
		t.Errorf("expected *ConfigError naming the field, got %v", err)
	}
}
