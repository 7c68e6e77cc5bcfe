package main

import (
	"context"
	"strings"
	"testing"

	"github.com/njoerd114/bookmarkrelay/internal/native"
)

func TestReadOps(t *testing.T) {
	input := `
# seed
{"op":"create","ref":"news","parent":"other","title":"News"}

{"op":"visit","url":"https://go.dev"}
`
	ops, err := readOps(strings.NewReader(input))
	if err != nil {
		t.Fatalf("readOps: %v", err)
	}
	if len(ops) != 2 {
		t.Fatalf("len(ops) = %d, want 2", len(ops))
	}
	if ops[0].Ref != "news" || ops[0].Parent != "other" || *ops[0].Title != "News" {
		t.Errorf("ops[0] = %+v", ops[0])
	}
	if ops[1].Op != "visit" || *ops[1].URL != "https://go.dev" {
		t.Errorf("ops[1] = %+v", ops[1])
	}
}

func TestReadOps_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"unknown op", `{"op":"rename"}`, `ops line 1: unknown op "rename"`},
		{"unknown field", "\n{\"op\":\"create\",\"name\":\"x\"}", "ops line 2"},
		{"bad json", `{"op":`, "ops line 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := readOps(strings.NewReader(tt.input))
			if err == nil {
				t.Fatal("readOps: want error, got nil")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want it to contain %q", err, tt.want)
			}
		})
	}
}

func TestReplayer_Apply(t *testing.T) {
	ctx := context.Background()
	tree := native.NewTree()
	var visited []string
	r := newReplayer(tree, func(url string) { visited = append(visited, url) })

	ops, err := readOps(strings.NewReader(`
{"op":"create","ref":"f","parent":"other","title":"Folder"}
{"op":"create","ref":"a","parent":"@f","title":"A","url":"https://a.example"}
{"op":"create","ref":"b","parent":"toolbar","title":"B","url":"https://b.example"}
{"op":"visit","url":"https://b.example"}
{"op":"move","id":"@b","parent":"@f","index":0}
{"op":"update","id":"@a","title":"A2"}
`))
	if err != nil {
		t.Fatalf("readOps: %v", err)
	}
	for _, o := range ops {
		if err := r.apply(ctx, o); err != nil {
			t.Fatalf("apply %s: %v", o.Op, err)
		}
	}

	folder, err := tree.GetSubTree(ctx, r.refs["f"])
	if err != nil {
		t.Fatalf("GetSubTree: %v", err)
	}
	if folder.ParentID != native.OtherID {
		t.Errorf("folder parent = %q, want %q", folder.ParentID, native.OtherID)
	}
	var titles []string
	for _, c := range folder.Children {
		titles = append(titles, c.Title)
	}
	if got := strings.Join(titles, ","); got != "B,A2" {
		t.Errorf("folder children = %q, want %q", got, "B,A2")
	}
	if len(visited) != 1 || visited[0] != "https://b.example" {
		t.Errorf("visited = %v, want [https://b.example]", visited)
	}

	if err := r.apply(ctx, op{Op: "remove", ID: "@f"}); err != nil {
		t.Fatalf("remove: %v", err)
	}
	children, err := tree.GetChildren(ctx, native.OtherID)
	if err != nil {
		t.Fatalf("GetChildren: %v", err)
	}
	if len(children) != 0 {
		t.Errorf("other children = %d, want 0", len(children))
	}
}

func TestReplayer_UnknownRef(t *testing.T) {
	r := newReplayer(native.NewTree(), func(string) {})
	err := r.apply(context.Background(), op{Op: "remove", ID: "@missing"})
	if err == nil || !strings.Contains(err.Error(), `unknown ref "@missing"`) {
		t.Errorf("apply = %v, want unknown ref error", err)
	}
}

func TestHumanSize(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{512, "512 B"},
		{2048, "2.0 KB"},
		{5 * 1024 * 1024, "5.0 MB"},
	}
	for _, tt := range tests {
		if got := humanSize(tt.in); got != tt.want {
			t.Errorf("humanSize(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
