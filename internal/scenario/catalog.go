package scenario

import (
	"errors"
	"fmt"
	"strings"

	"servicechat/internal/models"
)

// ErrUnknownScenario is returned for identifiers outside the catalog.
var ErrUnknownScenario = errors.New("unknown scenario")

// Catalog is the fixed set of scenarios and the seed every conversation starts from.
// It is read-only after construction.
type Catalog struct {
	names []string
	known map[string]struct{}
	seed  models.Turn
}

// NewCatalog builds a catalog. names keeps its order; Match scans in that order.
func NewCatalog(names []string, prompt string) (*Catalog, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, errors.New("seed prompt must not be empty")
	}
	if len(names) == 0 {
		return nil, errors.New("at least one scenario is required")
	}
	c := &Catalog{
		names: make([]string, 0, len(names)),
		known: make(map[string]struct{}, len(names)),
		seed:  models.Turn{Role: models.RoleSystem, Text: prompt},
	}
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, errors.New("scenario name must not be empty")
		}
		if _, dup := c.known[name]; dup {
			return nil, fmt.Errorf("duplicate scenario %q", name)
		}
		c.known[name] = struct{}{}
		c.names = append(c.names, name)
	}
	return c, nil
}

// Seed returns a fresh one-turn conversation for scenarioID.
func (c *Catalog) Seed(scenarioID string) ([]models.Turn, error) {
	if !c.Has(scenarioID) {
		return nil, fmt.Errorf("seed %q: %w", scenarioID, ErrUnknownScenario)
	}
	return []models.Turn{c.seed}, nil
}

// SeedTurn is the shared system instruction.
func (c *Catalog) SeedTurn() models.Turn {
	return c.seed
}

func (c *Catalog) Has(scenarioID string) bool {
	_, ok := c.known[scenarioID]
	return ok
}

// Names returns the scenario identifiers in scan order.
func (c *Catalog) Names() []string {
	return append([]string(nil), c.names...)
}

// Match returns the first scenario whose identifier occurs in text.
func (c *Catalog) Match(text string) (string, bool) {
	for _, name := range c.names {
		if strings.Contains(text, name) {
			return name, true
		}
	}
	return "", false
}
