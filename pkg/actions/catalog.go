// Package actions defines the PiDog action catalog: the symbolic actions the
// conversational layer may trigger, their parameter bounds, and the function
// schemas handed to the model for function calling.
package actions

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when an action name is not in the catalog.
var ErrNotFound = errors.New("actions: unknown action")

// Parameter bounds shared by every action.
const (
	MinSpeed     = 1
	MaxSpeed     = 100
	DefaultSpeed = 80

	MinSteps     = 1
	MaxSteps     = 10
	DefaultSteps = 3
)

// Action is one catalog entry. Name is the unique key.
type Action struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`

	// Directional actions walk or turn and accept a step count.
	Directional bool `json:"directional"`
}

// Category groups actions for listings.
type Category struct {
	Name    string
	Actions []Action
}

// Catalog categories, in display order.
const (
	CategoryBasic       = "Basic Movement"
	CategoryWalking     = "Walking"
	CategoryExpressions = "Expressions & Sounds"
	CategoryTricks      = "Tricks"
	CategoryHead        = "Head Movements"
	CategoryEmotions    = "Emotions"
)

var defaultActions = []Action{
	{Name: "sit", Description: "Sit down on the ground", Category: CategoryBasic},
	{Name: "stand", Description: "Stand up on all four legs", Category: CategoryBasic},
	{Name: "lie", Description: "Lie down flat on the ground", Category: CategoryBasic},

	{Name: "forward", Description: "Walk forward", Category: CategoryWalking, Directional: true},
	{Name: "backward", Description: "Walk backward", Category: CategoryWalking, Directional: true},
	{Name: "turn_left", Description: "Turn to the left", Category: CategoryWalking, Directional: true},
	{Name: "turn_right", Description: "Turn to the right", Category: CategoryWalking, Directional: true},

	{Name: "bark", Description: "Bark once (normal volume)", Category: CategoryExpressions},
	{Name: "bark_harder", Description: "Bark loudly and aggressively", Category: CategoryExpressions},
	{Name: "wag_tail", Description: "Wag tail happily", Category: CategoryExpressions},
	{Name: "pant", Description: "Pant like a dog (breathing)", Category: CategoryExpressions},
	{Name: "howling", Description: "Howl like a wolf", Category: CategoryExpressions},

	{Name: "high_five", Description: "Raise paw for high five", Category: CategoryTricks},
	{Name: "handshake", Description: "Offer paw for handshake", Category: CategoryTricks},
	{Name: "push_up", Description: "Do a push-up exercise", Category: CategoryTricks},
	{Name: "stretch", Description: "Stretch body forward", Category: CategoryTricks},
	{Name: "scratch", Description: "Scratch with back leg", Category: CategoryTricks},
	{Name: "lick_hand", Description: "Lick hand gesture", Category: CategoryTricks},

	{Name: "nod", Description: "Nod head up and down (yes)", Category: CategoryHead},
	{Name: "shake_head", Description: "Shake head left and right (no)", Category: CategoryHead},
	{Name: "relax_neck", Description: "Relax neck to comfortable position", Category: CategoryHead},

	{Name: "think", Description: "Thinking pose (head tilted)", Category: CategoryEmotions},
	{Name: "waiting", Description: "Waiting/alert posture", Category: CategoryEmotions},
}

var categoryOrder = []string{
	CategoryBasic,
	CategoryWalking,
	CategoryExpressions,
	CategoryTricks,
	CategoryHead,
	CategoryEmotions,
}

// Catalog is an immutable, ordered set of actions. It is safe for
// concurrent use.
type Catalog struct {
	actions []Action
	index   map[string]int
}

var defaultCatalog = mustNew(defaultActions)

// Default returns the process-wide PiDog catalog.
func Default() *Catalog {
	return defaultCatalog
}

// New builds a catalog from the given actions. Names must be unique and
// non-empty.
func New(list []Action) (*Catalog, error) {
	c := &Catalog{
		actions: make([]Action, len(list)),
		index:   make(map[string]int, len(list)),
	}
	copy(c.actions, list)
	for i, a := range c.actions {
		if a.Name == "" {
			return nil, fmt.Errorf("actions: entry %d has no name", i)
		}
		if _, dup := c.index[a.Name]; dup {
			return nil, fmt.Errorf("actions: duplicate action %q", a.Name)
		}
		c.index[a.Name] = i
	}
	return c, nil
}

func mustNew(list []Action) *Catalog {
	c, err := New(list)
	if err != nil {
		panic(err)
	}
	return c
}

// List returns all actions in catalog order. The slice is a copy.
func (c *Catalog) List() []Action {
	out := make([]Action, len(c.actions))
	copy(out, c.actions)
	return out
}

// Len returns the number of actions.
func (c *Catalog) Len() int {
	return len(c.actions)
}

// Describe returns the action with the given name.
func (c *Catalog) Describe(name string) (Action, error) {
	i, ok := c.index[name]
	if !ok {
		return Action{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return c.actions[i], nil
}

// Has reports whether name is a catalog action.
func (c *Catalog) Has(name string) bool {
	_, ok := c.index[name]
	return ok
}

// IsDirectional reports whether name is a walking/turning action.
func (c *Catalog) IsDirectional(name string) bool {
	a, err := c.Describe(name)
	return err == nil && a.Directional
}

// Categories returns the actions grouped by category in display order.
// Actions with a category outside the known set are grouped last.
func (c *Catalog) Categories() []Category {
	byName := make(map[string][]Action)
	var extra []string
	for _, a := range c.actions {
		if _, seen := byName[a.Category]; !seen && !knownCategory(a.Category) {
			extra = append(extra, a.Category)
		}
		byName[a.Category] = append(byName[a.Category], a)
	}

	var out []Category
	for _, name := range append(append([]string{}, categoryOrder...), extra...) {
		if list := byName[name]; len(list) > 0 {
			out = append(out, Category{Name: name, Actions: list})
		}
	}
	return out
}

func knownCategory(name string) bool {
	for _, c := range categoryOrder {
		if c == name {
			return true
		}
	}
	return false
}
