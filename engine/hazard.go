/*
hazard.go - Hazard Tables (§4.D)

PURPOSE:
  Termination and promotion hazard rates banded by job level, age
  band, and tenure band. Lookup is O(1) via a dense map keyed by the
  band tuple. Rates are validated to be in [0,1] once, at load time,
  not on every lookup.

HAZARD-MISS POLICY (§9):
  A lookup for a band with no configured rate returns HazardMissError
  rather than imputing a default - the source's ambiguity around
  missing bands is an explicit open question the spec resolves in
  favor of failing loudly (§4.E "Hazard-table misses are fatal").
*/
package engine

import "fmt"

// AgeBand and TenureBand are coarse buckets; the engine does not
// prescribe their boundaries, only that the tables are keyed by them.
type AgeBand string
type TenureBand string

type hazardKey struct {
	JobLevel   int
	AgeBand    AgeBand
	TenureBand TenureBand
}

// HazardTable holds one kind of hazard (termination or promotion) at
// a given parameter version.
type HazardTable struct {
	name    string
	version int
	rates   map[hazardKey]float64
}

// NewHazardTable validates every rate is in [0,1] and returns an
// error immediately if not - this is the only validation pass; after
// construction, lookups never re-validate.
func NewHazardTable(name string, version int, rows map[hazardKey]float64) (*HazardTable, error) {
	for k, v := range rows {
		if v < 0 || v > 1 {
			return nil, fmt.Errorf("hazard table %s: rate %v for %+v out of [0,1]", name, v, k)
		}
	}
	cp := make(map[hazardKey]float64, len(rows))
	for k, v := range rows {
		cp[k] = v
	}
	return &HazardTable{name: name, version: version, rates: cp}, nil
}

// HazardRow is one (level, age band, tenure band) -> rate entry, the
// shape a config loader deserializes from YAML; hazardKey itself is
// unexported so construction outside this package goes through this
// type and NewHazardTableFromRows rather than a bare map literal.
type HazardRow struct {
	JobLevel   int
	AgeBand    AgeBand
	TenureBand TenureBand
	Rate       float64
}

// NewHazardTableFromRows is the config-package-facing constructor:
// it builds the internal dense map from a flat row list (as decoded
// from a scenario YAML hazard table) and delegates to NewHazardTable
// for the [0,1] validation pass.
func NewHazardTableFromRows(name string, version int, rows []HazardRow) (*HazardTable, error) {
	m := make(map[hazardKey]float64, len(rows))
	for _, r := range rows {
		m[HazardBand(r.JobLevel, r.AgeBand, r.TenureBand)] = r.Rate
	}
	return NewHazardTable(name, version, m)
}

// HazardBand builds a lookup key from the raw band values.
func HazardBand(jobLevel int, ageBand AgeBand, tenureBand TenureBand) hazardKey {
	return hazardKey{JobLevel: jobLevel, AgeBand: ageBand, TenureBand: tenureBand}
}

// Lookup returns the hazard rate for the given band, or a
// HazardMissError if no rate was configured for it.
func (t *HazardTable) Lookup(jobLevel int, ageBand AgeBand, tenureBand TenureBand) (float64, error) {
	k := HazardBand(jobLevel, ageBand, tenureBand)
	rate, ok := t.rates[k]
	if !ok {
		return 0, &HazardMissError{
			JobLevel:   jobLevel,
			AgeBand:    string(ageBand),
			TenureBand: string(tenureBand),
			Table:      t.name,
		}
	}
	return rate, nil
}

func (t *HazardTable) Version() int { return t.version }

// AgeBandFor and TenureBandFor implement the standard banding used by
// the reference hazard tables: decade age bands, and
// new/early/established/senior tenure bands. Scenario configs may
// substitute their own banding function; these are the defaults.
func AgeBandFor(age int) AgeBand {
	switch {
	case age < 25:
		return "under_25"
	case age < 35:
		return "25_34"
	case age < 45:
		return "35_44"
	case age < 55:
		return "45_54"
	case age < 65:
		return "55_64"
	default:
		return "65_plus"
	}
}

func TenureBandFor(years int) TenureBand {
	switch {
	case years < 1:
		return "new"
	case years < 3:
		return "early"
	case years < 7:
		return "established"
	default:
		return "senior"
	}
}
