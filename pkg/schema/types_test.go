package schema

import (
	"testing"
)

func TestIntType(t *testing.T) {
	typ := Int()

	if typ.Name() != "int" {
		t.Errorf("Name() = %q, want %q", typ.Name(), "int")
	}

	tests := []struct {
		value   any
		want    int64
		wantErr bool
	}{
		{42, 42, false},
		{int64(7), 7, false},
		{float64(42), 42, false},
		{"0x5000", 0x5000, false},
		{"512", 512, false},
		{float64(42.5), 0, true},
		{"many", 0, true},
		{true, 0, true},
	}

	for _, tt := range tests {
		got, err := typ.Coerce(tt.value)
		if (err != nil) != tt.wantErr {
			t.Errorf("Coerce(%v) error = %v, wantErr %v", tt.value, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("Coerce(%v) = %v, want %v", tt.value, got, tt.want)
		}
	}
}

func TestBoolType(t *testing.T) {
	typ := Bool()

	tests := []struct {
		value   any
		want    bool
		wantErr bool
	}{
		{true, true, false},
		{"true", true, false},
		{"0", false, false},
		{"", false, true},
		{1, false, true},
	}

	for _, tt := range tests {
		got, err := typ.Coerce(tt.value)
		if (err != nil) != tt.wantErr {
			t.Errorf("Coerce(%v) error = %v, wantErr %v", tt.value, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("Coerce(%v) = %v, want %v", tt.value, got, tt.want)
		}
	}
}

func TestSliceType(t *testing.T) {
	typ := Slice(String())

	if typ.Name() != "[string]" {
		t.Errorf("Name() = %q, want %q", typ.Name(), "[string]")
	}

	got, err := typ.Coerce("smp, acpi")
	if err != nil {
		t.Fatalf("Coerce() error = %v", err)
	}
	want := []any{"smp", "acpi"}
	if len(got.([]any)) != 2 || got.([]any)[0] != want[0] || got.([]any)[1] != want[1] {
		t.Errorf("Coerce() = %v, want %v", got, want)
	}

	got, err = typ.Coerce([]string{"a"})
	if err != nil || len(got.([]any)) != 1 {
		t.Errorf("Coerce([]string) = %v, %v", got, err)
	}

	got, err = typ.Coerce("")
	if err != nil || len(got.([]any)) != 0 {
		t.Errorf("Coerce(\"\") = %v, %v, want empty list", got, err)
	}

	if _, err := Slice(Int()).Coerce([]any{1, "x"}); err == nil {
		t.Error("Coerce() should fail on a bad element")
	}
}

func TestEnumType(t *testing.T) {
	typ := Enum("x86_64", "aarch64")

	if typ.Name() != "x86_64|aarch64" {
		t.Errorf("Name() = %q", typ.Name())
	}
	if _, err := typ.Coerce("aarch64"); err != nil {
		t.Errorf("Coerce(aarch64) error = %v", err)
	}
	if _, err := typ.Coerce("riscv64"); err == nil {
		t.Error("Coerce(riscv64) should fail")
	}
}

func TestParseType(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"string", "string", false},
		{"int", "int", false},
		{"float", "float", false},
		{"bool", "bool", false},
		{"[int]", "[int]", false},
		{"[[string]]", "[[string]]", false},
		{"debug | release", "debug|release", false},
		{"a||b", "", true},
		{"uint", "", true},
		{"[]", "", true},
	}

	for _, tt := range tests {
		typ, err := ParseType(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseType(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && typ.Name() != tt.want {
			t.Errorf("ParseType(%q).Name() = %q, want %q", tt.input, typ.Name(), tt.want)
		}
	}
}

func TestCustomType(t *testing.T) {
	sectors := Custom("sectors", func(v any) (any, error) {
		n, err := Int().Coerce(v)
		if err != nil {
			return nil, err
		}
		return n.(int64) * 512, nil
	})

	got, err := sectors.Coerce("2")
	if err != nil || got != int64(1024) {
		t.Errorf("Coerce(2) = %v, %v, want 1024", got, err)
	}
}
