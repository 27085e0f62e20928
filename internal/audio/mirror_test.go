package audio

import (
	"bytes"
	"context"
	"io"
	"testing"
)

func TestMirrorListenerReadsSubsequentWrites(t *testing.T) {
	mb := NewMirrorBuffer(context.Background(), testLogger(t))
	defer mb.Close()

	l := mb.Listen("client-1")
	defer l.Close()

	data := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	if _, err := mb.Write(data); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	buf := make([]byte, 32)
	n, err := l.Read(buf)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if !bytes.Equal(buf[:n], data) {
		t.Errorf("Expected %v, got %v", data, buf[:n])
	}
}

func TestMirrorListenerStartsAtLivePosition(t *testing.T) {
	mb := NewMirrorBuffer(context.Background(), testLogger(t))
	defer mb.Close()

	if _, err := mb.Write([]byte{1, 2, 3}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	// A listener attached now must not see the earlier bytes.
	l := mb.Listen("late-client")
	defer l.Close()

	if _, err := mb.Write([]byte{4, 5, 6}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	buf := make([]byte, 32)
	n, err := l.Read(buf)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if !bytes.Equal(buf[:n], []byte{4, 5, 6}) {
		t.Errorf("Expected only post-attach bytes, got %v", buf[:n])
	}
}

func TestMirrorIndependentListeners(t *testing.T) {
	mb := NewMirrorBuffer(context.Background(), testLogger(t))
	defer mb.Close()

	a := mb.Listen("a")
	defer a.Close()
	b := mb.Listen("b")
	defer b.Close()

	if _, err := mb.Write([]byte{9, 9, 9}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	buf := make([]byte, 8)
	if n, err := a.Read(buf); err != nil || n != 3 {
		t.Errorf("Listener a read %d bytes, err %v", n, err)
	}
	// Listener b's position is unaffected by a's read.
	if n, err := b.Read(buf); err != nil || n != 3 {
		t.Errorf("Listener b read %d bytes, err %v", n, err)
	}
}

func TestMirrorClosedListenerReturnsEOF(t *testing.T) {
	mb := NewMirrorBuffer(context.Background(), testLogger(t))
	defer mb.Close()

	l := mb.Listen("gone")
	l.Close()

	if _, err := l.Read(make([]byte, 8)); err != io.EOF {
		t.Errorf("Expected EOF from detached listener, got %v", err)
	}
}

func TestMirrorWriteAfterCloseFails(t *testing.T) {
	mb := NewMirrorBuffer(context.Background(), testLogger(t))
	mb.Close()

	if _, err := mb.Write([]byte{1}); err != io.ErrClosedPipe {
		t.Errorf("Expected ErrClosedPipe after close, got %v", err)
	}
}
