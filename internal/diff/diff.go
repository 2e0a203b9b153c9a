package diff

import "reflect"

// Compare produces a change map between two values. Map inputs recurse over
// the union of keys; everything else is a leaf. Leaf changes are reported as
// {"from": old, "to": new}, additions as {"from": nil, "to": v}, removals as
// {"from": v, "to": nil}. Equal values are omitted, so an empty result means
// no change.
func Compare(before, after any) map[string]any {
	beforeMap, beforeOK := asMap(before)
	afterMap, afterOK := asMap(after)

	if beforeOK && afterOK {
		return compareMaps(beforeMap, afterMap)
	}

	if reflect.DeepEqual(before, after) {
		return map[string]any{}
	}
	return map[string]any{"from": before, "to": after}
}

func compareMaps(before, after map[string]any) map[string]any {
	out := map[string]any{}

	for key, oldVal := range before {
		newVal, exists := after[key]
		if !exists {
			out[key] = map[string]any{"from": oldVal, "to": nil}
			continue
		}
		if child := Compare(oldVal, newVal); len(child) > 0 {
			out[key] = child
		}
	}

	for key, newVal := range after {
		if _, exists := before[key]; !exists {
			out[key] = map[string]any{"from": nil, "to": newVal}
		}
	}

	return out
}

func asMap(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}
