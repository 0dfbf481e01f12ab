package tidal

import (
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
)

// tableFile is the TOML layout for a constituent table: the harmonic
// analysis results for one location.
type tableFile struct {
	MSL           float64    `toml:"msl"`
	ReferenceTime string     `toml:"reference_time"`
	NodalCorr     bool       `toml:"nodal_corrections"`
	Constituents  []tableRow `toml:"constituent"`
}

type tableRow struct {
	Name       string  `toml:"name"`
	AmplitudeM float64 `toml:"amplitude_m"`
	PhaseDeg   float64 `toml:"phase_deg"`
}

// LoadTable reads a TOML constituent table into a Prediction. Every
// constituent must be in the speed catalog; the reference time accepts
// RFC 3339 or a bare date.
func LoadTable(path string) (Prediction, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Prediction{}, errors.Wrapf(err, "read constituent table %s", path)
	}
	var tf tableFile
	if err := toml.Unmarshal(data, &tf); err != nil {
		return Prediction{}, errors.Wrapf(err, "parse constituent table %s", path)
	}
	if len(tf.Constituents) == 0 {
		return Prediction{}, errors.Errorf("constituent table %s lists no constituents", path)
	}

	ref := time.Time{}
	if tf.ReferenceTime != "" {
		ref, err = parseTableTime(tf.ReferenceTime)
		if err != nil {
			return Prediction{}, errors.Wrapf(err, "constituent table %s", path)
		}
	}

	pred := Prediction{
		MSL:           tf.MSL,
		ReferenceTime: ref,
		ApplyNodal:    tf.NodalCorr,
	}
	for _, row := range tf.Constituents {
		speed, ok := Speed(row.Name)
		if !ok {
			return Prediction{}, errors.Errorf(
				"constituent table %s: unknown constituent %s", path, row.Name)
		}
		pred.Constituents = append(pred.Constituents, Param{
			Name:          row.Name,
			AmplitudeM:    row.AmplitudeM,
			PhaseDeg:      row.PhaseDeg,
			SpeedDegPerHr: speed,
		})
	}
	return pred, nil
}

func parseTableTime(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, errors.Errorf("unparseable reference_time %q", s)
}
