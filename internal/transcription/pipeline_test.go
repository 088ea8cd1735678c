package transcription

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/careloop/voicechat/internal/recorder"
	"github.com/gorilla/websocket"
)

func testConfig(baseURL string) Config {
	return Config{
		BaseURL:            baseURL,
		Timeout:            2 * time.Second,
		StreamDialAttempts: 1,
		StreamDialBackoff:  time.Millisecond,
	}
}

func testArtifact() recorder.Artifact {
	return recorder.Artifact{Data: []byte("fake-audio-bytes"), ContentType: "audio/mp4"}
}

func TestTranscribe_MultipartSuccess(t *testing.T) {
	var gotLanguage, gotModel, gotDuration string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/transcriptions" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("Failed to parse multipart form: %v", err)
		}
		gotLanguage = r.FormValue("language")
		gotModel = r.FormValue("model")
		gotDuration = r.FormValue("durationSec")

		file, header, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("Missing file part: %v", err)
		}
		file.Close()
		if header.Header.Get("Content-Type") != "audio/mp4" {
			t.Errorf("Expected audio/mp4 part, got %s", header.Header.Get("Content-Type"))
		}

		json.NewEncoder(w).Encode(map[string]string{"text": "  xin chào bác sĩ  "})
	}))
	defer srv.Close()

	p := NewPipeline(testConfig(srv.URL))
	text, err := p.Transcribe(context.Background(), testArtifact(), Options{Language: "vi", Model: "whisper-1", DurationSec: 12})
	if err != nil {
		t.Fatalf("Transcribe() failed: %v", err)
	}

	if text != "xin chào bác sĩ" {
		t.Errorf("Expected trimmed transcript, got %q", text)
	}
	if gotLanguage != "vi" || gotModel != "whisper-1" || gotDuration != "12" {
		t.Errorf("Form fields not forwarded: language=%s model=%s durationSec=%s", gotLanguage, gotModel, gotDuration)
	}
}

func TestTranscribe_EmptyResultIsDistinct(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"text": "   "})
	}))
	defer srv.Close()

	p := NewPipeline(testConfig(srv.URL))
	_, err := p.Transcribe(context.Background(), testArtifact(), Options{})
	if !errors.Is(err, ErrEmptyTranscription) {
		t.Errorf("Expected ErrEmptyTranscription, got %v", err)
	}
	if errors.Is(err, ErrTransport) {
		t.Error("Empty transcription must not be a transport failure")
	}
}

func TestTranscribe_EmptyArtifact(t *testing.T) {
	p := NewPipeline(testConfig("http://unused.test"))
	_, err := p.Transcribe(context.Background(), recorder.Artifact{}, Options{})
	if !errors.Is(err, ErrEmptyTranscription) {
		t.Errorf("Expected ErrEmptyTranscription for empty artifact, got %v", err)
	}
}

func TestTranscribe_ServerErrorDoesNotRetryOnStream(t *testing.T) {
	streamDialed := false
	mux := http.NewServeMux()
	mux.HandleFunc("/transcriptions", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	mux.HandleFunc("/transcriptions/stream", func(w http.ResponseWriter, r *http.Request) {
		streamDialed = true
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p := NewPipeline(testConfig(srv.URL))
	_, err := p.Transcribe(context.Background(), testArtifact(), Options{})
	if !errors.Is(err, ErrTransport) {
		t.Errorf("Expected ErrTransport, got %v", err)
	}
	if streamDialed {
		t.Error("A 5xx response must not trigger the stream fallback; the service already answered")
	}
}

func TestTranscribe_TransportFailureFallsBackToStream(t *testing.T) {
	upgrader := websocket.Upgrader{}

	mux := http.NewServeMux()
	mux.HandleFunc("/transcriptions", func(w http.ResponseWriter, r *http.Request) {
		// Kill the connection mid-request so the client sees a transport
		// failure rather than an HTTP response
		hj, ok := w.(http.Hijacker)
		if !ok {
			t.Fatal("Server does not support hijacking")
		}
		conn, _, err := hj.Hijack()
		if err != nil {
			t.Fatalf("Hijack failed: %v", err)
		}
		conn.Close()
	})
	mux.HandleFunc("/transcriptions/stream", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("Upgrade failed: %v", err)
			return
		}
		defer conn.Close()

		var header streamHeader
		if err := conn.ReadJSON(&header); err != nil {
			t.Errorf("Failed to read header frame: %v", err)
			return
		}
		if header.ContentType != "audio/mp4" {
			t.Errorf("Expected content type forwarded, got %s", header.ContentType)
		}

		var received []byte
		for {
			msgType, data, err := conn.ReadMessage()
			if err != nil {
				t.Errorf("Read failed: %v", err)
				return
			}
			if msgType == websocket.BinaryMessage {
				received = append(received, data...)
				continue
			}
			break // end frame
		}

		if string(received) != "fake-audio-bytes" {
			t.Errorf("Stream payload mismatch: %q", received)
		}
		conn.WriteJSON(streamResult{Text: "toi bi dau dau"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p := NewPipeline(testConfig(srv.URL))
	text, err := p.Transcribe(context.Background(), testArtifact(), Options{Language: "vi"})
	if err != nil {
		t.Fatalf("Transcribe() failed: %v", err)
	}
	if text != "toi bi dau dau" {
		t.Errorf("Expected stream transcript, got %q", text)
	}
}

func TestTranscribe_BothTransportsDown(t *testing.T) {
	p := NewPipeline(testConfig("http://127.0.0.1:1"))
	_, err := p.Transcribe(context.Background(), testArtifact(), Options{})
	if !errors.Is(err, ErrTransport) {
		t.Errorf("Expected ErrTransport when both transports fail, got %v", err)
	}
}

func TestStreamURL(t *testing.T) {
	tests := []struct {
		base string
		want string
		ok   bool
	}{
		{"https://api.example.test", "wss://api.example.test/transcriptions/stream", true},
		{"http://localhost:8080", "ws://localhost:8080/transcriptions/stream", true},
		{"ftp://bad", "", false},
	}

	for _, tt := range tests {
		got, err := streamURL(tt.base)
		if tt.ok && (err != nil || got != tt.want) {
			t.Errorf("streamURL(%s) = %s, %v; want %s", tt.base, got, err, tt.want)
		}
		if !tt.ok && err == nil {
			t.Errorf("streamURL(%s) expected error", tt.base)
		}
	}
}
