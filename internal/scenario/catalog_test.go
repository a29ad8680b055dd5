package scenario

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"servicechat/internal/models"
)

var testNames = []string{"new-arrival", "new-baby", "storm-damage", "change-address", "business-registration"}

func TestSeedReturnsIndependentCopies(t *testing.T) {
	c, err := NewCatalog(testNames, DefaultPrompt)
	require.NoError(t, err)

	first, err := c.Seed("new-baby")
	require.NoError(t, err)
	require.Len(t, first, 1)
	require.Equal(t, models.RoleSystem, first[0].Role)

	first[0].Text = "mutated"

	second, err := c.Seed("new-baby")
	require.NoError(t, err)
	require.Len(t, second, 1)
	require.NotEqual(t, "mutated", second[0].Text)
	require.Equal(t, c.SeedTurn(), second[0])
}

func TestSeedUnknownScenario(t *testing.T) {
	c, err := NewCatalog(testNames, DefaultPrompt)
	require.NoError(t, err)

	_, err = c.Seed("lost-pet")
	require.True(t, errors.Is(err, ErrUnknownScenario))
}

func TestMatchUsesDeclaredOrder(t *testing.T) {
	c, err := NewCatalog([]string{"baby", "new-baby"}, "prompt")
	require.NoError(t, err)

	got, ok := c.Match("Scenario: new-baby")
	require.True(t, ok)
	require.Equal(t, "baby", got)

	_, ok = c.Match("Scenario: nothing here")
	require.False(t, ok)
}

func TestNewCatalogValidation(t *testing.T) {
	_, err := NewCatalog(testNames, "  ")
	require.Error(t, err)
	_, err = NewCatalog(nil, "prompt")
	require.Error(t, err)
	_, err = NewCatalog([]string{"a", "a"}, "prompt")
	require.Error(t, err)
}

func TestNamesIsACopy(t *testing.T) {
	c, err := NewCatalog(testNames, "prompt")
	require.NoError(t, err)
	names := c.Names()
	names[0] = "changed"
	require.Equal(t, "new-arrival", c.Names()[0])
}

func TestLoadPromptFromTextFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompt.txt")
	require.NoError(t, os.WriteFile(path, []byte("\n  Be brief.  \n"), 0o600))

	got, err := LoadPrompt(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, "Be brief.", got)
}

func TestLoadPromptEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.txt")
	require.NoError(t, os.WriteFile(path, []byte("   "), 0o600))

	_, err := LoadPrompt(context.Background(), path)
	require.Error(t, err)
}
