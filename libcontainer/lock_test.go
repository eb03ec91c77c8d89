package libcontainer

import "testing"

func TestFlockSharedLocksDoNotExclude(t *testing.T) {
	root := t.TempDir()
	a, err := openFlock(root, "c1")
	if err != nil {
		t.Fatalf("openFlock a: %v", err)
	}
	defer a.Close()
	b, err := openFlock(root, "c1")
	if err != nil {
		t.Fatalf("openFlock b: %v", err)
	}
	defer b.Close()

	if err := a.lock(false); err != nil {
		t.Fatalf("a.lock(shared): %v", err)
	}
	defer a.unlock()
	if err := b.tryLock(false); err != nil {
		t.Fatalf("expected a second shared lock to succeed concurrently, got %v", err)
	}
	defer b.unlock()
}

func TestFlockExclusiveBlocksOthers(t *testing.T) {
	root := t.TempDir()
	a, err := openFlock(root, "c2")
	if err != nil {
		t.Fatalf("openFlock a: %v", err)
	}
	defer a.Close()
	b, err := openFlock(root, "c2")
	if err != nil {
		t.Fatalf("openFlock b: %v", err)
	}
	defer b.Close()

	if err := a.lock(true); err != nil {
		t.Fatalf("a.lock(exclusive): %v", err)
	}
	defer a.unlock()

	if err := b.tryLock(false); err == nil {
		t.Fatal("expected tryLock to fail while an exclusive lock is held")
	} else if !IsKind(err, StateBusy) {
		t.Errorf("expected a StateBusy error, got %v", err)
	}
}

func TestFlockUnlockAllowsSubsequentExclusive(t *testing.T) {
	root := t.TempDir()
	a, err := openFlock(root, "c3")
	if err != nil {
		t.Fatalf("openFlock a: %v", err)
	}
	defer a.Close()
	b, err := openFlock(root, "c3")
	if err != nil {
		t.Fatalf("openFlock b: %v", err)
	}
	defer b.Close()

	if err := a.lock(true); err != nil {
		t.Fatalf("a.lock(exclusive): %v", err)
	}
	if err := a.unlock(); err != nil {
		t.Fatalf("a.unlock: %v", err)
	}
	if err := b.tryLock(true); err != nil {
		t.Fatalf("expected b to acquire the lock after a released it, got %v", err)
	}
	b.unlock()
}
