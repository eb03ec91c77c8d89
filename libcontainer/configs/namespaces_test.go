package configs

import "testing"

func TestNamespacesContainsAndPathOf(t *testing.T) {
	ns := Namespaces{
		{Type: NEWPID},
		{Type: NEWNET, Path: "/proc/123/ns/net"},
	}
	if !ns.Contains(NEWPID) {
		t.Error("expected Contains(NEWPID) to be true")
	}
	if ns.Contains(NEWUSER) {
		t.Error("expected Contains(NEWUSER) to be false")
	}
	if got := ns.PathOf(NEWNET); got != "/proc/123/ns/net" {
		t.Errorf("PathOf(NEWNET) = %q, want /proc/123/ns/net", got)
	}
	if got := ns.PathOf(NEWPID); got != "" {
		t.Errorf("PathOf(NEWPID) = %q, want empty path for a created namespace", got)
	}
}

func TestNamespacesOrdered(t *testing.T) {
	ns := Namespaces{
		{Type: NEWNS},
		{Type: NEWCGROUP},
		{Type: NEWNET},
		{Type: NEWPID},
		{Type: NEWUSER},
	}
	ordered := ns.Ordered()
	want := []NamespaceType{NEWUSER, NEWPID, NEWNET, NEWCGROUP, NEWNS}
	if len(ordered) != len(want) {
		t.Fatalf("Ordered() = %v, want %v", ordered, want)
	}
	for i, t2 := range want {
		if ordered[i].Type != t2 {
			t.Errorf("Ordered()[%d] = %s, want %s", i, ordered[i].Type, t2)
		}
	}
}

func TestNamespacesOrderedOmitsAbsent(t *testing.T) {
	ns := Namespaces{{Type: NEWNS}, {Type: NEWUSER}}
	ordered := ns.Ordered()
	if len(ordered) != 2 {
		t.Fatalf("Ordered() = %v, want 2 entries", ordered)
	}
	if ordered[0].Type != NEWUSER || ordered[1].Type != NEWNS {
		t.Errorf("Ordered() = %v, want [user mnt]", ordered)
	}
}
