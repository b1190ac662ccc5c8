package tags

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"#Soccer", "soccer"},
		{"  ##GOAL ", "goal"},
		{"nba", "nba"},
		{"", ""},
		{"#", ""},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestExtract(t *testing.T) {
	tests := []struct {
		name    string
		caption string
		want    []string
	}{
		{"none", "what a goal", []string{}},
		{"basic", "what a #Goal by #messi", []string{"goal", "messi"}},
		{"dedup case-insensitive", "#goal #GOAL #Goal", []string{"goal"}},
		{"punctuation ends tag", "#top10! and #world_cup.", []string{"top10", "world_cup"}},
		{"bare hash ignored", "# nothing", []string{}},
		{"unicode", "#fútbol", []string{"fútbol"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Extract(tt.caption)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Extract(%q) = %v, want %v", tt.caption, got, tt.want)
			}
		})
	}
}

func TestExtract_Cap(t *testing.T) {
	var b strings.Builder
	for i := 0; i < MaxCaptionTags+5; i++ {
		fmt.Fprintf(&b, "#tag%d ", i)
	}
	got := Extract(b.String())
	if len(got) != MaxCaptionTags {
		t.Fatalf("Extract() returned %d tags, want %d", len(got), MaxCaptionTags)
	}
	if got[0] != "tag0" || got[MaxCaptionTags-1] != fmt.Sprintf("tag%d", MaxCaptionTags-1) {
		t.Errorf("unexpected order: %v", got)
	}
}

func TestRequest_Tags(t *testing.T) {
	req := Request{PostID: "p1", Caption: "#goal #soccer", Sport: "Soccer", Team: " #Arsenal "}
	want := []string{"goal", "soccer", "arsenal"}
	if got := req.Tags(); !reflect.DeepEqual(got, want) {
		t.Errorf("Tags() = %v, want %v", got, want)
	}
}

func TestExtractor_Dispatch(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	ex := NewExtractor(store, nil)

	if err := ex.Dispatch(ctx, Request{PostID: "p1", Caption: "#goal", Sport: "soccer"}); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if err := ex.Dispatch(ctx, Request{PostID: "p2", Caption: "#Goal #save"}); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}

	id, found, err := store.Resolve(ctx, "goal")
	if err != nil || !found {
		t.Fatalf("Resolve(goal) = %d, %v, %v", id, found, err)
	}
	posts, _ := store.PostIDs(ctx, id, 10)
	if !reflect.DeepEqual(posts, []string{"p1", "p2"}) {
		t.Errorf("PostIDs(goal) = %v, want [p1 p2]", posts)
	}

	// Re-dispatching replaces the tag set.
	if err := ex.Dispatch(ctx, Request{PostID: "p1", Caption: "#save"}); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	posts, _ = store.PostIDs(ctx, id, 10)
	if !reflect.DeepEqual(posts, []string{"p2"}) {
		t.Errorf("PostIDs(goal) after edit = %v, want [p2]", posts)
	}

	if _, found, _ := store.Resolve(ctx, "unknown"); found {
		t.Error("Resolve(unknown) should not be found")
	}

	saveID, _, _ := store.Resolve(ctx, "save")
	posts, _ = store.PostIDs(ctx, saveID, 1)
	if len(posts) != 1 {
		t.Errorf("PostIDs limit not applied: %v", posts)
	}
}
