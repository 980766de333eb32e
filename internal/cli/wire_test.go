package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andywolf/twentyq/internal/decision"
	"github.com/andywolf/twentyq/internal/grader"
)

func TestGateCategories_IncludeMacroClasses(t *testing.T) {
	table, err := grader.NewMacroTable(map[string][]string{"gizmo": {"widget", "sprocket"}})
	require.NoError(t, err)

	cats := gateCategories([]string{"mineral"}, table)
	assert.ElementsMatch(t, []string{"mineral", "gizmo"}, cats)

	g := decision.NewGate(decision.Config{}, cats...)
	assert.False(t, g.IsCanonicalShortName("gizmo", true), "custom macro class is a category")
	assert.False(t, g.IsCanonicalShortName("mineral", true))
	assert.True(t, g.IsCanonicalShortName("widget", true))
}
