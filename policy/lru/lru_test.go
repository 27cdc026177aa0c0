package lru

import (
	"testing"

	"github.com/IvanBrykalov/ringcache/policy"
)

// --- test doubles ---

type testEntry struct{ k string }

func (e *testEntry) Key() string { return e.k }

type mockHooks struct {
	pushFrontCnt   int
	moveToFrontCnt int

	lastPush policy.Entry
	lastMove policy.Entry

	lenVal  int
	backVal policy.Entry
}

func (h *mockHooks) PushFront(e policy.Entry)   { h.pushFrontCnt++; h.lastPush = e }
func (h *mockHooks) MoveToFront(e policy.Entry) { h.moveToFrontCnt++; h.lastMove = e }
func (h *mockHooks) Back() policy.Entry         { return h.backVal }
func (h *mockHooks) Len() int                   { return h.lenVal }

// --- tests ---

func TestLRU_Admit_PushFront(t *testing.T) {
	t.Parallel()

	h := &mockHooks{}
	p := New().New(h)

	e := &testEntry{k: "k1"}
	p.Admit(e)

	if h.pushFrontCnt != 1 || h.lastPush != e {
		t.Fatalf("Admit must call PushFront exactly once with the entry")
	}
	if h.moveToFrontCnt != 0 {
		t.Fatalf("Admit must not call MoveToFront")
	}
}

func TestLRU_Touch_MoveToFront(t *testing.T) {
	t.Parallel()

	h := &mockHooks{}
	p := New().New(h)

	e := &testEntry{k: "k2"}
	p.Touch(e)

	if h.moveToFrontCnt != 1 || h.lastMove != e {
		t.Fatalf("Touch must call MoveToFront exactly once with the entry")
	}
	if h.pushFrontCnt != 0 {
		t.Fatalf("Touch must not call PushFront")
	}
}

func TestLRU_Victim_IsTail(t *testing.T) {
	t.Parallel()

	tail := &testEntry{k: "oldest"}
	h := &mockHooks{backVal: tail, lenVal: 3}
	p := New().New(h)

	if got := p.Victim(); got != tail {
		t.Fatalf("Victim must be the list tail, got %v", got)
	}
}

func TestLRU_Victim_EmptyList(t *testing.T) {
	t.Parallel()

	p := New().New(&mockHooks{})
	if got := p.Victim(); got != nil {
		t.Fatalf("Victim on empty list must be nil, got %v", got)
	}
}

func TestLRU_Forget_NoOp(t *testing.T) {
	t.Parallel()

	h := &mockHooks{}
	p := New().New(h)
	p.Forget(&testEntry{k: "k4"})

	if h.pushFrontCnt != 0 || h.moveToFrontCnt != 0 {
		t.Fatalf("Forget for LRU must be no-op (no hooks should be called)")
	}
}
