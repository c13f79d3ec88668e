package ingest

import "testing"

func TestCoerceValue(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		want     interface{}
		wantKind columnKind
		wantOK   bool
	}{
		{"float", "12.5", 12.5, kindFloat, true},
		{"integer becomes float", "42", 42.0, kindFloat, true},
		{"negative", "-3.2", -3.2, kindFloat, true},
		{"scientific notation", "1e3", 1000.0, kindFloat, true},
		{"bool true", "true", true, kindBool, true},
		{"bool false", "false", false, kindBool, true},
		{"bool mixed case", "True", true, kindBool, true},
		{"string", "running", "running", kindString, true},
		{"whitespace trimmed", "  7 ", 7.0, kindFloat, true},
		{"empty", "", nil, kindUnknown, false},
		{"whitespace only", "   ", nil, kindUnknown, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, kind, ok := coerceValue(tt.raw)
			if ok != tt.wantOK {
				t.Fatalf("coerceValue(%q) ok = %v, want %v", tt.raw, ok, tt.wantOK)
			}
			if kind != tt.wantKind {
				t.Errorf("coerceValue(%q) kind = %v, want %v", tt.raw, kind, tt.wantKind)
			}
			if tt.wantOK && got != tt.want {
				t.Errorf("coerceValue(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestSchema_FirstSeenWins(t *testing.T) {
	s := make(schema)

	// First cell fixes the column as float.
	if _, kind, ok := s.coerce("value", "1.5"); !ok || kind != kindFloat {
		t.Fatalf("first coerce = (%v, %v), want (float, true)", kind, ok)
	}

	// A later text cell conflicts and is rejected with the decided kind.
	_, decided, ok := s.coerce("value", "oops")
	if ok {
		t.Error("text cell in float column should not coerce")
	}
	if decided != kindFloat {
		t.Errorf("decided kind = %v, want float", decided)
	}

	// The column stays float afterwards; numbers still work.
	if v, _, ok := s.coerce("value", "2.5"); !ok || v != 2.5 {
		t.Errorf("later numeric cell = (%v, %v), want (2.5, true)", v, ok)
	}
}

func TestSchema_StringColumnAcceptsAnything(t *testing.T) {
	s := make(schema)

	if _, kind, _ := s.coerce("status", "running"); kind != kindString {
		t.Fatalf("first coerce kind = %v, want string", kind)
	}

	// Numeric-looking cells become strings in a string column.
	v, kind, ok := s.coerce("status", "42")
	if !ok || kind != kindString {
		t.Fatalf("numeric cell in string column = (%v, %v), want (string, true)", kind, ok)
	}
	if v != "42" {
		t.Errorf("value = %v, want \"42\"", v)
	}
}

func TestSchema_BoolColumnRejectsNumbers(t *testing.T) {
	s := make(schema)

	if _, kind, _ := s.coerce("enabled", "true"); kind != kindBool {
		t.Fatalf("first coerce kind = %v, want bool", kind)
	}

	_, decided, ok := s.coerce("enabled", "0.5")
	if ok {
		t.Error("numeric cell in bool column should not coerce")
	}
	if decided != kindBool {
		t.Errorf("decided kind = %v, want bool", decided)
	}
}

func TestSchema_IndependentColumns(t *testing.T) {
	s := make(schema)

	s.coerce("a", "1.0")
	s.coerce("b", "text")

	if s["a"] != kindFloat {
		t.Errorf("column a kind = %v, want float", s["a"])
	}
	if s["b"] != kindString {
		t.Errorf("column b kind = %v, want string", s["b"])
	}
}
