package fs2

import (
	"testing"
)

func TestKeyedValues(t *testing.T) {
	data := "usage_usec 12345\nnr_periods 10\nnr_throttled 2\nmalformed-line\n"
	kv := keyedValues(data)
	if kv["usage_usec"] != 12345 {
		t.Errorf("usage_usec = %d, want 12345", kv["usage_usec"])
	}
	if kv["nr_throttled"] != 2 {
		t.Errorf("nr_throttled = %d, want 2", kv["nr_throttled"])
	}
	if _, ok := kv["malformed-line"]; ok {
		t.Error("expected a malformed line with no value to be skipped")
	}
}

func TestSplitDeviceID(t *testing.T) {
	major, minor, ok := splitDeviceID("8:0")
	if !ok || major != 8 || minor != 0 {
		t.Errorf("splitDeviceID(8:0) = %d, %d, %v, want 8, 0, true", major, minor, ok)
	}
	if _, _, ok := splitDeviceID("garbage"); ok {
		t.Error("expected splitDeviceID to reject a string with no colon")
	}
	if _, _, ok := splitDeviceID("a:b"); ok {
		t.Error("expected splitDeviceID to reject non-numeric components")
	}
}

func TestParsePSI(t *testing.T) {
	data := "some avg10=1.50 avg60=2.25 avg300=0.00 total=1000\n" +
		"full avg10=0.00 avg60=0.10 avg300=0.05 total=500\n"
	psi := parsePSI(data)
	if psi.Some.Avg10 != 1.50 || psi.Some.Total != 1000 {
		t.Errorf("Some = %+v, want Avg10=1.50 Total=1000", psi.Some)
	}
	if psi.Full.Avg60 != 0.10 || psi.Full.Total != 500 {
		t.Errorf("Full = %+v, want Avg60=0.10 Total=500", psi.Full)
	}
}

func TestParsePSIIgnoresUnknownLine(t *testing.T) {
	psi := parsePSI("unexpected avg10=9.99 total=1\n")
	if psi.Some.Avg10 != 0 || psi.Full.Avg10 != 0 {
		t.Errorf("expected an unrecognized PSI line prefix to be ignored, got %+v", psi)
	}
}
