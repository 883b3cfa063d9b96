package live2d

import "math"

// MouthSyncParameters derives mouth parameters from an audio frequency
// spectrum. Magnitudes are byte-scaled bins (0..255, as produced by a web
// audio analyser); t is seconds since the sync session started.
//
// Mouth openness follows the overall level with a small sinusoidal variance
// so held notes still look alive; mouth form follows the high-frequency
// share of the spectrum.
func MouthSyncParameters(magnitudes []float64, t float64) map[string]float64 {
	if len(magnitudes) == 0 {
		return map[string]float64{
			ParamMouthOpenY: 0,
			ParamMouthForm:  0,
		}
	}

	var sum float64
	for _, m := range magnitudes {
		sum += m
	}
	level := sum / float64(len(magnitudes)) / 128
	if level > 1 {
		level = 1
	}

	// Upper 30% of the spectrum drives the mouth shape.
	upperStart := int(float64(len(magnitudes)) * 0.7)
	var upperSum float64
	for _, m := range magnitudes[upperStart:] {
		upperSum += m
	}
	var upper float64
	if n := len(magnitudes) - upperStart; n > 0 {
		upper = upperSum / float64(n) / 128
	}

	open := level + 0.1*math.Sin(t*12)*level
	form := upper * 0.3

	return map[string]float64{
		ParamMouthOpenY: Clamp(ParamMouthOpenY, open),
		ParamMouthForm:  Clamp(ParamMouthForm, form),
	}
}
