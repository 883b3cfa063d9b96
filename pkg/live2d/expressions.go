package live2d

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Standard expression names.
const (
	ExpressionNeutral   = "neutral"
	ExpressionHappy     = "happy"
	ExpressionSad       = "sad"
	ExpressionAngry     = "angry"
	ExpressionSurprised = "surprised"
	ExpressionSpeak     = "speak"
)

// Expression is a named set of parameter targets.
type Expression struct {
	Name       string             `json:"name"`
	Parameters map[string]float64 `json:"parameters"`
}

// Registry holds the expression table. Seeded with the standard set;
// expressions can be created at runtime and shared as JSON.
type Registry struct {
	mu          sync.RWMutex
	expressions map[string]Expression
	logger      *slog.Logger
}

// NewRegistry creates a registry seeded with the standard expressions.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		expressions: make(map[string]Expression),
		logger:      logger.With("component", "live2d"),
	}
	for name, params := range standardExpressions {
		r.expressions[name] = Expression{Name: name, Parameters: cloneParams(params)}
	}
	return r
}

var standardExpressions = map[string]map[string]float64{
	ExpressionNeutral: {
		ParamEyeLOpen: 1, ParamEyeROpen: 1,
		ParamMouthForm: 0, ParamMouthOpenY: 0,
		ParamBrowLY: 0, ParamBrowRY: 0,
		ParamAngleX: 0, ParamAngleY: 0, ParamAngleZ: 0,
	},
	ExpressionHappy: {
		ParamEyeLOpen: 0.8, ParamEyeROpen: 0.8,
		ParamMouthForm: 1, ParamMouthOpenY: 0.3,
		ParamBrowLY: 0.3, ParamBrowRY: 0.3,
		ParamAngleZ: 2,
	},
	ExpressionSad: {
		ParamEyeLOpen: 0.6, ParamEyeROpen: 0.6,
		ParamMouthForm: -0.8, ParamMouthOpenY: 0,
		ParamBrowLY: -0.5, ParamBrowRY: -0.5,
		ParamAngleZ: -5, ParamBodyAngleZ: -2,
	},
	ExpressionAngry: {
		ParamEyeLOpen: 0.7, ParamEyeROpen: 0.7,
		ParamMouthForm: -1, ParamMouthOpenY: 0.2,
		ParamBrowLY: -0.8, ParamBrowRY: -0.8,
		ParamAngleZ: 3,
	},
	ExpressionSurprised: {
		ParamEyeLOpen: 1, ParamEyeROpen: 1,
		ParamMouthForm: 0, ParamMouthOpenY: 0.8,
		ParamBrowLY: 0.8, ParamBrowRY: 0.8,
		ParamAngleY: -3,
	},
	ExpressionSpeak: {
		ParamEyeLOpen: 0.9, ParamEyeROpen: 0.9,
		ParamMouthForm: 0.2, ParamMouthOpenY: 0.5,
	},
}

func cloneParams(src map[string]float64) map[string]float64 {
	dst := make(map[string]float64, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// Names returns the registered expression names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.expressions))
	for name := range r.expressions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has reports whether an expression is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.expressions[name]
	return ok
}

// CreateExpression registers or replaces a named expression. Parameter
// values are clamped to their bounds at registration time.
func (r *Registry) CreateExpression(name string, parameters map[string]float64) {
	params := make(map[string]float64, len(parameters))
	for id, v := range parameters {
		params[id] = Clamp(id, v)
	}
	r.mu.Lock()
	r.expressions[name] = Expression{Name: name, Parameters: params}
	r.mu.Unlock()
	r.logger.Info("expression registered", "name", name, "parameters", len(params))
}

// ExportExpression serializes an expression to JSON.
func (r *Registry) ExportExpression(name string) ([]byte, error) {
	r.mu.RLock()
	expr, ok := r.expressions[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("live2d: unknown expression %q", name)
	}
	return json.Marshal(expr)
}

// ImportExpression registers an expression from its JSON form. Round-trips
// with ExportExpression exactly.
func (r *Registry) ImportExpression(data []byte) (string, error) {
	var expr Expression
	if err := json.Unmarshal(data, &expr); err != nil {
		return "", fmt.Errorf("live2d: malformed expression: %w", err)
	}
	if expr.Name == "" {
		return "", fmt.Errorf("live2d: expression missing name")
	}
	r.CreateExpression(expr.Name, expr.Parameters)
	return expr.Name, nil
}

// ExpressionParameters computes the clamped parameter targets for an
// expression at the given intensity. Each target value is scaled by the
// intensity and clamped to its bounds. Unknown names fall back to neutral
// with a warning. The returned map is freshly allocated; callers may
// mutate it.
func (r *Registry) ExpressionParameters(name string, intensity float64) map[string]float64 {
	r.mu.RLock()
	expr, ok := r.expressions[name]
	if !ok {
		r.mu.RUnlock()
		r.logger.Warn("unknown expression, falling back to neutral", "name", name)
		return r.ExpressionParameters(ExpressionNeutral, intensity)
	}
	defer r.mu.RUnlock()

	params := make(map[string]float64, len(expr.Parameters))
	for id, target := range expr.Parameters {
		params[id] = Clamp(id, target*intensity)
	}
	return params
}
