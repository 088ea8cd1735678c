package audio

import (
	"bytes"
	"testing"
)

func TestCaptureBuffer_AppendAndBytes(t *testing.T) {
	b := NewCaptureBuffer(64)

	n := b.Append([]byte("hello"))
	if n != 5 {
		t.Errorf("Expected 5 bytes accepted, got %d", n)
	}

	n = b.Append([]byte(" world"))
	if n != 6 {
		t.Errorf("Expected 6 bytes accepted, got %d", n)
	}

	if got := b.Bytes(); !bytes.Equal(got, []byte("hello world")) {
		t.Errorf("Expected 'hello world', got %q", got)
	}

	if b.Len() != 11 {
		t.Errorf("Expected Len 11, got %d", b.Len())
	}
}

func TestCaptureBuffer_CapTruncates(t *testing.T) {
	b := NewCaptureBuffer(8)

	n := b.Append([]byte("0123456789"))
	if n != 8 {
		t.Errorf("Expected 8 bytes accepted at cap, got %d", n)
	}
	if !b.IsFull() {
		t.Error("Expected buffer to be full")
	}

	n = b.Append([]byte("more"))
	if n != 0 {
		t.Errorf("Expected 0 bytes accepted past cap, got %d", n)
	}

	if got := b.Bytes(); !bytes.Equal(got, []byte("01234567")) {
		t.Errorf("Expected truncated capture, got %q", got)
	}
}

func TestCaptureBuffer_Reset(t *testing.T) {
	b := NewCaptureBuffer(16)
	b.Append([]byte("data"))
	b.Reset()

	if b.Len() != 0 {
		t.Errorf("Expected empty buffer after Reset, got %d bytes", b.Len())
	}
	if b.IsFull() {
		t.Error("Expected buffer not full after Reset")
	}

	b.Append([]byte("fresh"))
	if got := b.Bytes(); !bytes.Equal(got, []byte("fresh")) {
		t.Errorf("Expected 'fresh' after reuse, got %q", got)
	}
}

func TestCaptureBuffer_BytesIsCopy(t *testing.T) {
	b := NewCaptureBuffer(16)
	b.Append([]byte("abc"))

	got := b.Bytes()
	got[0] = 'X'

	if b.Bytes()[0] != 'a' {
		t.Error("Bytes() must return a copy, not the backing slice")
	}
}

func TestContentType(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"empty", nil, "application/octet-stream"},
		{"wav header", append([]byte("RIFF\x24\x08\x00\x00WAVE"), make([]byte, 32)...), "audio/wav"},
		{"unknown bytes", []byte{0x01, 0x02, 0x03, 0x04}, "application/octet-stream"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ContentType(tt.data); got != tt.want {
				t.Errorf("ContentType() = %q, want %q", got, tt.want)
			}
		})
	}
}
