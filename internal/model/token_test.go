package model

import (
	"database/sql"
	"database/sql/driver"
	"testing"
)

// The store binds StringList fields directly as query parameters, so the
// value side must satisfy driver.Valuer exactly; database/sql rejects the
// raw slice otherwise.
var (
	_ driver.Valuer = StringList{}
	_ sql.Scanner   = (*StringList)(nil)
)

func TestStringListDatabaseRoundTrip(t *testing.T) {
	in := StringList{"read:machines", "write:machines"}

	v, err := in.Value()
	if err != nil {
		t.Fatalf("Value() error: %v", err)
	}
	s, ok := v.(string)
	if !ok {
		t.Fatalf("Value() returned %T, want string", v)
	}
	if s != `["read:machines","write:machines"]` {
		t.Errorf("Value() = %q", s)
	}

	var out StringList
	if err := out.Scan(s); err != nil {
		t.Fatalf("Scan() error: %v", err)
	}
	if len(out) != 2 || out[0] != "read:machines" || out[1] != "write:machines" {
		t.Errorf("Scan() = %v", out)
	}

	var nilList StringList
	v, err = nilList.Value()
	if err != nil {
		t.Fatalf("Value() on nil list error: %v", err)
	}
	if v != "[]" {
		t.Errorf("nil list Value() = %v, want []", v)
	}
}
