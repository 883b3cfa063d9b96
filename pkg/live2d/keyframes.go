package live2d

// KeyframeFPS is the keyframe sampling rate.
const KeyframeFPS = 60

// Keyframe is one sampled parameter state within a generated animation.
type Keyframe struct {
	Time       float64            `json:"time"` // seconds from animation start
	Parameters map[string]float64 `json:"parameters"`
}

// Keyframes samples an expression animation at 60 fps: ease out from
// neutral to the target over the first quarter, hold for half, ease back in
// over the final quarter.
func (r *Registry) Keyframes(expression string, duration, intensity float64) []Keyframe {
	if duration <= 0 {
		return nil
	}

	neutral := r.ExpressionParameters(ExpressionNeutral, 1)
	target := r.ExpressionParameters(expression, intensity)

	riseEnd := duration * 0.25
	holdEnd := duration * 0.75

	total := int(duration*KeyframeFPS) + 1
	frames := make([]Keyframe, 0, total)

	for i := 0; i < total; i++ {
		t := float64(i) / KeyframeFPS
		if t > duration {
			t = duration
		}

		var params map[string]float64
		switch {
		case t < riseEnd:
			params = Interpolate(neutral, target, t/riseEnd, EaseOut)
		case t < holdEnd:
			params = cloneParams(target)
		default:
			params = Interpolate(target, neutral, (t-holdEnd)/(duration-holdEnd), EaseIn)
		}

		frames = append(frames, Keyframe{Time: t, Parameters: params})
	}
	return frames
}
