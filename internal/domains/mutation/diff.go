package mutation

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
)

// Diff returns assign mutations that turn before into after. Both values are
// normalized first and must have object roots. Keys missing from after are
// assigned null; sequences whose length changed are reassigned whole.
func Diff(before, after any) ([]Mutation, error) {
	b, err := Normalize(before)
	if err != nil {
		return nil, err
	}
	a, err := Normalize(after)
	if err != nil {
		return nil, err
	}
	bm, ok := b.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("diff: before is %T, expected an object", b)
	}
	am, ok := a.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("diff: after is %T, expected an object", a)
	}
	var out []Mutation
	diffObjects(nil, bm, am, &out)
	return out, nil
}

func diffObjects(path []string, before, after map[string]any, out *[]Mutation) {
	keys := make([]string, 0, len(after)+len(before))
	for k := range after {
		keys = append(keys, k)
	}
	for k := range before {
		if _, ok := after[k]; !ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		diffValue(path, k, before[k], after[k], out)
	}
}

func diffValue(path []string, key string, before, after any, out *[]Mutation) {
	if reflect.DeepEqual(before, after) {
		return
	}
	childPath := append(append([]string{}, path...), key)
	switch a := after.(type) {
	case map[string]any:
		if b, ok := before.(map[string]any); ok {
			diffObjects(childPath, b, a, out)
			return
		}
	case []any:
		if b, ok := before.([]any); ok && len(b) == len(a) {
			for i := range a {
				diffValue(childPath, strconv.Itoa(i), b[i], a[i], out)
			}
			return
		}
	}
	*out = append(*out, Assign(path, key, after))
}
