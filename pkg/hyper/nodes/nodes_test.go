package nodes

import "testing"

func TestAppendPartsMergesLiterals(t *testing.T) {
	parts := AppendParts(nil, Literal("a"), Literal("b"), Slot(0), Literal(""), Literal("c"), Literal("d"))
	if len(parts) != 3 {
		t.Fatalf("len = %d, want 3: %v", len(parts), parts)
	}
	if parts[0] != Literal("ab") || parts[1] != Slot(0) || parts[2] != Literal("cd") {
		t.Errorf("parts = %v", parts)
	}
}

func TestIsWhitespace(t *testing.T) {
	tests := []struct {
		text *Text
		want bool
	}{
		{&Text{Parts: []Part{Literal("  \n\t")}}, true},
		{&Text{}, true},
		{&Text{Parts: []Part{Literal(" x ")}}, false},
		{&Text{Parts: []Part{Slot(1)}}, false},
	}
	for _, tt := range tests {
		if got := tt.text.IsWhitespace(); got != tt.want {
			t.Errorf("IsWhitespace(%v) = %v, want %v", tt.text.Parts, got, tt.want)
		}
	}
}

func TestIsVoid(t *testing.T) {
	for _, tag := range []string{"br", "IMG", "input"} {
		if !IsVoid(tag) {
			t.Errorf("IsVoid(%q) = false", tag)
		}
	}
	if IsVoid("div") {
		t.Error("IsVoid(div) = true")
	}
}

func TestDump(t *testing.T) {
	cond := Slot(0)
	tree := &Fragment{Children: []Node{
		&Element{Tag: "p", Attrs: []Attr{
			&StaticAttr{Name: "id", Value: "x", HasValue: true},
			&StaticAttr{Name: "hidden"},
			&InterpolatedAttr{Name: "title", Slot: 1},
			&SpreadAttr{Slot: 2},
		}, Children: []Node{&Text{Parts: []Part{Literal("hi "), Slot(3)}}}},
		&Conditional{Branches: []Branch{
			{Condition: &cond, Children: []Node{&Text{Parts: []Part{Literal("yes")}}}},
			{Children: nil},
		}},
	}}
	want := `Fragment
  Element p id="x" hidden title=#1 ...#2
    Text "hi " #3
  Conditional
    if #0
      Text "yes"
    else
`
	if got := Dump(tree); got != want {
		t.Errorf("Dump() =\n%s\nwant\n%s", got, want)
	}
}
