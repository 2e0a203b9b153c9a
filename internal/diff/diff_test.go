package diff

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompareScalars(t *testing.T) {
	assert.Equal(t, map[string]any{"from": "a", "to": "b"}, Compare("a", "b"))
	assert.Empty(t, Compare("same", "same"))
	assert.Empty(t, Compare(42, 42))
}

func TestCompareMapChange(t *testing.T) {
	before := map[string]any{"blogname": "Old Site", "show_on_front": "posts"}
	after := map[string]any{"blogname": "New Site", "show_on_front": "posts"}

	got := Compare(before, after)

	assert.Equal(t, map[string]any{
		"blogname": map[string]any{"from": "Old Site", "to": "New Site"},
	}, got)
}

func TestCompareAddedAndRemoved(t *testing.T) {
	before := map[string]any{"gone": "x"}
	after := map[string]any{"added": "y"}

	got := Compare(before, after)

	assert.Equal(t, map[string]any{"from": "x", "to": nil}, got["gone"])
	assert.Equal(t, map[string]any{"from": nil, "to": "y"}, got["added"])
}

func TestCompareNested(t *testing.T) {
	before := map[string]any{
		"meta": map[string]any{"chroma_seo_title": "Old", "keep": "v"},
	}
	after := map[string]any{
		"meta": map[string]any{"chroma_seo_title": "New", "keep": "v"},
	}

	got := Compare(before, after)

	assert.Equal(t, map[string]any{
		"meta": map[string]any{
			"chroma_seo_title": map[string]any{"from": "Old", "to": "New"},
		},
	}, got)
}

func TestCompareMapAgainstScalar(t *testing.T) {
	before := map[string]any{"a": 1}
	got := Compare(before, "flat")

	assert.Equal(t, map[string]any{"from": before, "to": "flat"}, got)
}

func TestCompareEqualMaps(t *testing.T) {
	m := map[string]any{"a": 1, "b": map[string]any{"c": true}}
	assert.Empty(t, Compare(m, map[string]any{"a": 1, "b": map[string]any{"c": true}}))
}
