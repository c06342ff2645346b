package rollback

import (
	"testing"

	"quickstep.gg/internal/sim/simtest"
)

func stick(x, y int16, buttons uint16) simtest.StickInput {
	return simtest.StickInput{X: x, Y: y, Buttons: buttons}
}

func TestInputBuffer_ConfirmedWinsOverPredicted(t *testing.T) {
	b := NewInputBuffer[simtest.StickInput](32, 2)

	a := stick(1, 0, 0)
	p := stick(0, 1, 0)

	b.StoreInput(5, 0, a)
	b.StorePredictedInput(5, 0, p)

	got, ok := b.GetInput(5, 0)
	if !ok || got != a {
		t.Fatalf("GetInput(5,0) = %v ok=%v, want %v", got, ok, a)
	}
	if !b.HasInput(5, 0) {
		t.Fatalf("HasInput(5,0) = false after confirmed store")
	}
}

func TestInputBuffer_PredictionDoesNotConfirm(t *testing.T) {
	b := NewInputBuffer[simtest.StickInput](32, 2)
	b.StorePredictedInput(3, 1, stick(2, 2, 0))

	if b.HasInput(3, 1) {
		t.Fatalf("predicted input reported as confirmed")
	}
	got, ok := b.GetInput(3, 1)
	if !ok || got != stick(2, 2, 0) {
		t.Fatalf("predicted value not stored: %v ok=%v", got, ok)
	}
}

func TestInputBuffer_OldestUnconfirmedFrame(t *testing.T) {
	b := NewInputBuffer[simtest.StickInput](32, 2)
	for f := int32(0); f <= 10; f++ {
		b.StoreInput(f, 0, stick(1, 0, 0))
	}
	for f := int32(0); f <= 14; f++ {
		b.StoreInput(f, 1, stick(0, 1, 0))
	}
	if got := b.GetOldestUnconfirmedFrame(2); got != 11 {
		t.Fatalf("GetOldestUnconfirmedFrame(2) = %d, want 11", got)
	}
}

func TestInputBuffer_OldestUnconfirmedStartsAtZero(t *testing.T) {
	b := NewInputBuffer[simtest.StickInput](32, 3)
	if got := b.GetOldestUnconfirmedFrame(3); got != 0 {
		t.Fatalf("fresh buffer oldest unconfirmed = %d, want 0", got)
	}
}

func TestInputBuffer_PredictInputReturnsLastConfirmed(t *testing.T) {
	b := NewInputBuffer[simtest.StickInput](32, 2)

	if got := b.PredictInput(0); !got.IsEmpty() {
		t.Fatalf("prediction before any confirm = %v, want empty", got)
	}

	b.StoreInput(4, 0, stick(7, 0, 1))
	b.StoreInput(2, 0, stick(9, 9, 9)) // older frame, must not win
	if got := b.PredictInput(0); got != stick(7, 0, 1) {
		t.Fatalf("PredictInput(0) = %v, want input at frame 4", got)
	}
}

func TestInputBuffer_RingReuseDropsStaleFrame(t *testing.T) {
	b := NewInputBuffer[simtest.StickInput](8, 1)
	b.StoreInput(2, 0, stick(1, 0, 0))
	b.StoreInput(10, 0, stick(2, 0, 0)) // same slot as frame 2

	if b.HasInput(2, 0) {
		t.Fatalf("frame 2 still confirmed after slot reuse")
	}
	if _, ok := b.GetInput(2, 0); ok {
		t.Fatalf("frame 2 still readable after slot reuse")
	}
	if got, ok := b.GetInput(10, 0); !ok || got != stick(2, 0, 0) {
		t.Fatalf("frame 10 = %v ok=%v", got, ok)
	}
}

func TestInputBuffer_HasAllInputs(t *testing.T) {
	b := NewInputBuffer[simtest.StickInput](32, 3)
	b.StoreInput(6, 0, stick(1, 0, 0))
	b.StoreInput(6, 1, stick(0, 1, 0))
	if b.HasAllInputs(6, 3) {
		t.Fatalf("HasAllInputs true with player 2 missing")
	}
	b.StoreInput(6, 2, stick(0, 0, 1))
	if !b.HasAllInputs(6, 3) {
		t.Fatalf("HasAllInputs false with all players confirmed")
	}
}

func TestInputBuffer_ClearFrameAndClear(t *testing.T) {
	b := NewInputBuffer[simtest.StickInput](32, 2)
	b.StoreInput(5, 0, stick(1, 0, 0))
	b.ClearFrame(5)
	if b.HasInput(5, 0) {
		t.Fatalf("frame 5 confirmed after ClearFrame")
	}

	b.StoreInput(8, 1, stick(3, 0, 0))
	b.Clear()
	if b.LastConfirmedFrame(1) != -1 {
		t.Fatalf("last confirmed survived Clear")
	}
	if got := b.PredictInput(1); !got.IsEmpty() {
		t.Fatalf("prediction survived Clear: %v", got)
	}
}

func TestPendingQueue_OverflowDropsSilently(t *testing.T) {
	q := NewPendingQueue[simtest.StickInput](4)
	for i := 0; i < 6; i++ {
		q.Enqueue(int32(i), 0, stick(int16(i), 0, 0))
	}
	if q.Len() != 4 {
		t.Fatalf("Len = %d, want 4", q.Len())
	}
	if q.Dropped() != 2 {
		t.Fatalf("Dropped = %d, want 2", q.Dropped())
	}
	q.Clear()
	if q.Len() != 0 {
		t.Fatalf("Len after Clear = %d", q.Len())
	}
}
