package params

import "testing"

func TestValuesInt(t *testing.T) {
	v := Values{
		"int":      7,
		"float":    1024.0,
		"fraction": 7.5,
		"string":   " 42 ",
		"bad":      "x",
		"bool":     true,
	}
	tests := []struct {
		key    string
		want   int
		wantOK bool
	}{
		{"int", 7, true},
		{"float", 1024, true},
		{"fraction", 0, false},
		{"string", 42, true},
		{"bad", 0, false},
		{"bool", 0, false},
		{"missing", 0, false},
	}
	for _, tt := range tests {
		got, ok := v.Int(tt.key)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("Int(%q) = %d, %v; want %d, %v", tt.key, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestMergeLaterWins(t *testing.T) {
	got := Merge(Values{"a": 1, "b": 1}, nil, Values{"b": 2, "c": 2}, Values{"c": 3})
	if got["a"] != 1 || got["b"] != 2 || got["c"] != 3 {
		t.Errorf("Merge = %v", got)
	}
}

func TestDecode(t *testing.T) {
	for _, raw := range []string{"", "null", "  "} {
		v, err := Decode([]byte(raw))
		if err != nil || v == nil || len(v) != 0 {
			t.Errorf("Decode(%q) = %v, %v", raw, v, err)
		}
	}

	v, err := Decode([]byte(`{"width": 768, "aspect_ratio": "4:3"}`))
	if err != nil {
		t.Fatal(err)
	}
	if w, _ := v.Width(); w != 768 {
		t.Errorf("width = %d", w)
	}
	if ar, _ := v.AspectRatio(); ar != "4:3" {
		t.Errorf("aspect_ratio = %q", ar)
	}

	if _, err := Decode([]byte(`[1,2]`)); err == nil {
		t.Error("expected error for JSON array")
	}
}
