package design

// Outputs holds merged oracle results keyed by output name. Values are
// scalars, per-chain maps, or matrices; they may arrive as native Go types
// or in their JSON-decoded form.
type Outputs map[string]any

// Float returns a scalar output.
func (o Outputs) Float(key string) (float64, bool) {
	v, ok := o[key]
	if !ok || v == nil {
		return 0, false
	}
	return toFloat(v)
}

// ChainFloats returns a per-chain scalar output such as pLDDT.
func (o Outputs) ChainFloats(key string) (map[string]float64, bool) {
	v, ok := o[key]
	if !ok || v == nil {
		return nil, false
	}

	switch m := v.(type) {
	case map[string]float64:
		return m, true
	case map[string]any:
		out := make(map[string]float64, len(m))
		for name, raw := range m {
			f, ok := toFloat(raw)
			if !ok {
				return nil, false
			}
			out[name] = f
		}
		return out, true
	default:
		return nil, false
	}
}

// Matrix returns a 2D output such as PAE. Ragged rows are allowed.
func (o Outputs) Matrix(key string) ([][]float64, bool) {
	v, ok := o[key]
	if !ok || v == nil {
		return nil, false
	}

	switch m := v.(type) {
	case [][]float64:
		return m, true
	case []any:
		out := make([][]float64, 0, len(m))
		for _, rawRow := range m {
			switch row := rawRow.(type) {
			case []float64:
				out = append(out, row)
			case []any:
				vals := make([]float64, 0, len(row))
				for _, cell := range row {
					f, ok := toFloat(cell)
					if !ok {
						return nil, false
					}
					vals = append(vals, f)
				}
				out = append(out, vals)
			default:
				return nil, false
			}
		}
		return out, true
	default:
		return nil, false
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	default:
		return 0, false
	}
}
