package live2d

// Easing names an interpolation curve.
type Easing string

const (
	EaseLinear    Easing = "linear"
	EaseIn        Easing = "easeIn"
	EaseOut       Easing = "easeOut"
	EaseInOut     Easing = "easeInOut"
	EaseBounce    Easing = "bounce"
	defaultEasing        = EaseLinear
)

// ease evaluates the named curve at t in [0,1].
func ease(e Easing, t float64) float64 {
	switch e {
	case EaseIn:
		return t * t
	case EaseOut:
		return t * (2 - t)
	case EaseInOut:
		if t < 0.5 {
			return 2 * t * t
		}
		u := -2*t + 2
		return 1 - u*u/2
	case EaseBounce:
		return bounce(t)
	default:
		return t
	}
}

// bounce is the standard four-segment bounce-out curve.
func bounce(t float64) float64 {
	const n1 = 7.5625
	const d1 = 2.75

	switch {
	case t < 1/d1:
		return n1 * t * t
	case t < 2/d1:
		t -= 1.5 / d1
		return n1*t*t + 0.75
	case t < 2.5/d1:
		t -= 2.25 / d1
		return n1*t*t + 0.9375
	default:
		t -= 2.625 / d1
		return n1*t*t + 0.984375
	}
}

// Interpolate blends two parameter maps at the given progress through the
// easing curve. Progress is clamped to [0,1]; keys missing on either side
// contribute zero for that side. The inputs are never mutated.
func Interpolate(from, to map[string]float64, progress float64, easing Easing) map[string]float64 {
	if progress < 0 {
		progress = 0
	}
	if progress > 1 {
		progress = 1
	}
	t := ease(easing, progress)

	out := make(map[string]float64, len(to))
	for id, b := range to {
		a := from[id]
		out[id] = a + (b-a)*t
	}
	for id, a := range from {
		if _, ok := to[id]; !ok {
			out[id] = a + (0-a)*t
		}
	}
	return out
}
