package actions

// FunctionSchema describes one callable exposed to the model's
// function-calling mechanism.
type FunctionSchema struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// FunctionSchemas returns one schema per catalog action, in catalog order.
// Every parameter is optional; required is always empty.
func (c *Catalog) FunctionSchemas() []FunctionSchema {
	out := make([]FunctionSchema, 0, len(c.actions))
	for _, a := range c.actions {
		out = append(out, FunctionSchema{
			Name:        a.Name,
			Description: a.Description,
			Parameters:  parametersFor(a),
		})
	}
	return out
}

func parametersFor(a Action) map[string]any {
	props := map[string]any{
		"speed": map[string]any{
			"type":        "integer",
			"description": "Movement speed (1-100, default 80)",
			"minimum":     MinSpeed,
			"maximum":     MaxSpeed,
		},
	}
	if a.Directional {
		props["steps"] = map[string]any{
			"type":        "integer",
			"description": "Number of steps (1-10, default 3)",
			"minimum":     MinSteps,
			"maximum":     MaxSteps,
		}
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   []string{},
	}
}
