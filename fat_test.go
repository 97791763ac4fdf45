package fsfs

import "testing"

// TestFATFirstFit checks that allocation always picks the lowest-numbered
// free block, so the same operation sequence always produces the same
// chain (spec §4.2).
func TestFATFirstFit(t *testing.T) {
	var fat fatTable
	fat.freeBlocks = DataBlocks

	head, err := fat.allocateChainHead()
	if err != nil {
		t.Fatalf("allocateChainHead: %v", err)
	}
	if head != 0 {
		t.Fatalf("first allocation = %d, want 0", head)
	}

	second, err := fat.extendChain(head)
	if err != nil {
		t.Fatalf("extendChain: %v", err)
	}
	if second != 1 {
		t.Fatalf("second allocation = %d, want 1", second)
	}

	// Free block 0 and allocate again: first-fit must reuse it, not
	// continue from the high-water mark.
	fat.freeChain(head)
	third, err := fat.allocateChainHead()
	if err != nil {
		t.Fatalf("allocateChainHead: %v", err)
	}
	if third != 0 {
		t.Fatalf("reused allocation = %d, want 0 (first-fit)", third)
	}
}

// TestFATFreeChainWalksLinks checks that freeing a multi-block chain
// releases every block in it, not just the head.
func TestFATFreeChainWalksLinks(t *testing.T) {
	var fat fatTable
	fat.freeBlocks = DataBlocks

	head, _ := fat.allocateChainHead()
	b1, _ := fat.extendChain(head)
	b2, _ := fat.extendChain(b1)

	before := fat.freeBlocks
	fat.freeChain(head)
	if got := fat.freeBlocks - before; got != 3 {
		t.Fatalf("freed %d blocks, want 3", got)
	}
	for _, b := range []uint32{head, b1, b2} {
		if fat.entries[b] != 0 {
			t.Fatalf("block %d entry = %d after free, want 0", b, fat.entries[b])
		}
	}
}

// TestFATExhaustion checks that allocation fails once every block is
// taken, and that the failure is ErrNoSpace.
func TestFATExhaustion(t *testing.T) {
	var fat fatTable
	fat.freeBlocks = DataBlocks

	prev, err := fat.allocateChainHead()
	if err != nil {
		t.Fatalf("allocateChainHead: %v", err)
	}
	for i := 1; i < DataBlocks; i++ {
		prev, err = fat.extendChain(prev)
		if err != nil {
			t.Fatalf("extendChain at %d: %v", i, err)
		}
	}
	if fat.freeBlocks != 0 {
		t.Fatalf("freeBlocks = %d after filling the volume, want 0", fat.freeBlocks)
	}
	if _, err := fat.extendChain(prev); err != ErrNoSpace {
		t.Fatalf("extendChain on full volume = %v, want ErrNoSpace", err)
	}
}

// TestDirectoryFindByName checks exact, case-sensitive name lookup.
func TestDirectoryFindByName(t *testing.T) {
	var dir directoryTable
	dir.entries[3].used = true
	dir.entries[3].setName("report")

	slot, ok := dir.findByName("report")
	if !ok || slot != 3 {
		t.Fatalf("findByName(report) = (%d, %v), want (3, true)", slot, ok)
	}
	if _, ok := dir.findByName("Report"); ok {
		t.Fatalf("findByName matched on case, want exact match only")
	}
	if _, ok := dir.findByName("missing"); ok {
		t.Fatalf("findByName matched a name that was never set")
	}
}
