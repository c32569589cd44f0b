package mutation

import (
	"reflect"
	"testing"
)

type home struct {
	Address   string `json:"address"`
	Available bool   `json:"available"`
}

type person struct {
	Name string   `json:"name"`
	Home home     `json:"home"`
	Tags []string `json:"tags"`
}

func TestDiffProducesMinimalAssigns(t *testing.T) {
	before := person{Name: "Foo", Home: home{Address: "there"}, Tags: []string{"a", "b"}}
	after := person{Name: "Foo", Home: home{Address: "here"}, Tags: []string{"a", "c"}}

	got, err := Diff(before, after)
	if err != nil {
		t.Fatalf("diff: %v", err)
	}
	want := []Mutation{
		Assign([]string{"home"}, "address", "here"),
		Assign([]string{"tags"}, "1", "c"),
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected mutations: %#v", got)
	}
}

func TestDiffThenApplyConverges(t *testing.T) {
	before := map[string]any{
		"people": map[string]any{"foo": map[string]any{"name": "foo", "exists": false}},
		"list":   []any{1.0, 2.0},
		"gone":   "x",
	}
	after := map[string]any{
		"people": map[string]any{
			"foo": map[string]any{"name": "foo", "exists": true},
			"bar": map[string]any{"name": "bar", "exists": false},
		},
		"list": []any{1.0, 2.0, 3.0},
	}
	mutations, err := Diff(before, after)
	if err != nil {
		t.Fatalf("diff: %v", err)
	}
	target, err := Normalize(before)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if err := ApplyAll(target, mutations); err != nil {
		t.Fatalf("apply: %v", err)
	}
	want, _ := Normalize(after)
	want.(map[string]any)["gone"] = nil
	if !reflect.DeepEqual(target, want) {
		t.Fatalf("diff did not converge: %#v", target)
	}
}

func TestDiffRequiresObjects(t *testing.T) {
	if _, err := Diff([]int{1}, []int{2}); err == nil {
		t.Fatal("expected error for non-object roots")
	}
}

func TestDiffEqualValuesIsEmpty(t *testing.T) {
	v := person{Name: "x"}
	got, err := Diff(v, v)
	if err != nil {
		t.Fatalf("diff: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no mutations, got %#v", got)
	}
}
