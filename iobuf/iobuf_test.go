package iobuf_test

import (
	"bytes"
	"testing"

	"github.com/zenoh-go/zenoh-lite/cmn/cos"
	"github.com/zenoh-go/zenoh-lite/iobuf"
)

func TestRBufTruncated(t *testing.T) {
	r := iobuf.NewRBuf([]byte{1, 2, 3})
	if _, err := r.ReadN(4); !cos.IsCodecErr(err, cos.Truncated) {
		t.Fatalf("expected Truncated, got %v", err)
	}
}

func TestRBufReadAdvancesCursor(t *testing.T) {
	r := iobuf.NewRBuf([]byte{1, 2, 3, 4})
	b, err := r.ReadN(2)
	if err != nil || !bytes.Equal(b, []byte{1, 2}) {
		t.Fatalf("unexpected: %v %v", b, err)
	}
	if r.Remaining() != 2 {
		t.Fatalf("expected 2 remaining, got %d", r.Remaining())
	}
}

func TestWBufReserveWriteAt(t *testing.T) {
	w := iobuf.NewWBuf(16)
	slot := w.Reserve(2)
	w.Write([]byte("hello"))
	if err := w.WriteAt(slot, []byte{0x05, 0x00}); err != nil {
		t.Fatal(err)
	}
	got := w.Bytes()
	if !bytes.Equal(got, []byte{0x05, 0x00, 'h', 'e', 'l', 'l', 'o'}) {
		t.Fatalf("unexpected: %v", got)
	}
}

func TestChainedBoundedOverflow(t *testing.T) {
	c := iobuf.NewChained(4, true)
	if _, err := c.Write([]byte("abcd")); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Write([]byte("e")); !cos.IsCodecErr(err, cos.OutOfSpace) {
		t.Fatalf("expected OutOfSpace, got %v", err)
	}
}

func TestChainedUnboundedSplitsOnBoundary(t *testing.T) {
	c := iobuf.NewChained(4, false)
	c.Write([]byte("abcdef"))
	if !c.Boundary {
		t.Fatal("expected boundary to be crossed")
	}
	if c.Len() != 6 {
		t.Fatalf("expected 6 bytes total, got %d", c.Len())
	}
}

func TestDefragOverflowResets(t *testing.T) {
	d := iobuf.NewDefrag(4)
	if err := d.Append([]byte("abcde")); !cos.IsCodecErr(err, cos.OutOfSpace) {
		t.Fatalf("expected OutOfSpace, got %v", err)
	}
	if d.Len() != 0 {
		t.Fatalf("expected reset buffer, got len %d", d.Len())
	}
}

func TestDefragAccumulatesUntilTake(t *testing.T) {
	d := iobuf.NewDefrag(1024)
	d.Append([]byte("ab"))
	d.Append([]byte("cd"))
	got := d.Take()
	if !bytes.Equal(got, []byte("abcd")) {
		t.Fatalf("unexpected: %v", got)
	}
	if d.Len() != 0 {
		t.Fatal("expected buffer reset after Take")
	}
}
