package main

import "testing"

func TestParseMemoryLimitUnlimited(t *testing.T) {
	v, err := parseMemoryLimit("-1")
	if err != nil {
		t.Fatalf("parseMemoryLimit(-1): %v", err)
	}
	if v != -1 {
		t.Errorf("parseMemoryLimit(-1) = %d, want -1", v)
	}
}

func TestParseMemoryLimitHumanReadable(t *testing.T) {
	v, err := parseMemoryLimit("300M")
	if err != nil {
		t.Fatalf("parseMemoryLimit(300M): %v", err)
	}
	if v != 300*1024*1024 {
		t.Errorf("parseMemoryLimit(300M) = %d, want %d", v, 300*1024*1024)
	}
}

func TestParseMemoryLimitInvalid(t *testing.T) {
	if _, err := parseMemoryLimit("not-a-size"); err == nil {
		t.Fatal("expected an error for a malformed size string")
	}
}
