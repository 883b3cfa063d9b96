// Package live2d maps expressions to model parameters and evolves them
// over time: bounds clamping, easing, keyframe generation, smoothing and
// audio-driven mouth sync.
package live2d

// Standard model parameter IDs.
const (
	ParamAngleX     = "ParamAngleX"
	ParamAngleY     = "ParamAngleY"
	ParamAngleZ     = "ParamAngleZ"
	ParamEyeLOpen   = "ParamEyeLOpen"
	ParamEyeROpen   = "ParamEyeROpen"
	ParamEyeBallX   = "ParamEyeBallX"
	ParamEyeBallY   = "ParamEyeBallY"
	ParamBrowLY     = "ParamBrowLY"
	ParamBrowRY     = "ParamBrowRY"
	ParamMouthForm  = "ParamMouthForm"
	ParamMouthOpenY = "ParamMouthOpenY"
	ParamBodyAngleX = "ParamBodyAngleX"
	ParamBodyAngleY = "ParamBodyAngleY"
	ParamBodyAngleZ = "ParamBodyAngleZ"
	ParamBreath     = "ParamBreath"
)

// Bounds describes the valid range and rest value of one parameter.
type Bounds struct {
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Default float64 `json:"default"`
}

// parameterBounds is the authoritative range table. Values written to the
// model always pass through it.
var parameterBounds = map[string]Bounds{
	ParamAngleX:     {Min: -30, Max: 30, Default: 0},
	ParamAngleY:     {Min: -30, Max: 30, Default: 0},
	ParamAngleZ:     {Min: -30, Max: 30, Default: 0},
	ParamEyeLOpen:   {Min: 0, Max: 1, Default: 1},
	ParamEyeROpen:   {Min: 0, Max: 1, Default: 1},
	ParamEyeBallX:   {Min: -1, Max: 1, Default: 0},
	ParamEyeBallY:   {Min: -1, Max: 1, Default: 0},
	ParamBrowLY:     {Min: -1, Max: 1, Default: 0},
	ParamBrowRY:     {Min: -1, Max: 1, Default: 0},
	ParamMouthForm:  {Min: -1, Max: 1, Default: 0},
	ParamMouthOpenY: {Min: 0, Max: 1, Default: 0},
	ParamBodyAngleX: {Min: -10, Max: 10, Default: 0},
	ParamBodyAngleY: {Min: -10, Max: 10, Default: 0},
	ParamBodyAngleZ: {Min: -10, Max: 10, Default: 0},
	ParamBreath:     {Min: 0, Max: 1, Default: 0},
}

// ParameterBounds returns the bounds for a parameter ID. Unknown IDs get a
// permissive unit range so foreign parameters pass through untouched.
func ParameterBounds(id string) Bounds {
	if b, ok := parameterBounds[id]; ok {
		return b
	}
	return Bounds{Min: -1, Max: 1, Default: 0}
}

// ParameterIDs returns the standard parameter set.
func ParameterIDs() []string {
	ids := make([]string, 0, len(parameterBounds))
	for id := range parameterBounds {
		ids = append(ids, id)
	}
	return ids
}

// Clamp bounds a value to the parameter's valid range.
func Clamp(id string, value float64) float64 {
	b := ParameterBounds(id)
	if value < b.Min {
		return b.Min
	}
	if value > b.Max {
		return b.Max
	}
	return value
}

// DefaultParameters returns a fresh map of every standard parameter at its
// rest value.
func DefaultParameters() map[string]float64 {
	params := make(map[string]float64, len(parameterBounds))
	for id, b := range parameterBounds {
		params[id] = b.Default
	}
	return params
}
