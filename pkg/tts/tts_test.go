package tts

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestCartesia_SynthesizeRequest(t *testing.T) {
	fakeAudio := []byte("RIFFfakewav")

	var gotPayload map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tts/bytes" {
			t.Errorf("path = %s, want /tts/bytes", r.URL.Path)
		}
		if r.Header.Get("X-API-Key") != "test-key" {
			t.Errorf("missing API key header")
		}
		if r.Header.Get("Cartesia-Version") != cartesiaVersion {
			t.Errorf("version header = %s, want %s", r.Header.Get("Cartesia-Version"), cartesiaVersion)
		}
		json.NewDecoder(r.Body).Decode(&gotPayload)
		w.Write(fakeAudio)
	}))
	defer server.Close()

	provider, err := NewCartesia(
		WithAPIKey("test-key"),
		WithVoice("voice-1"),
		WithBaseURL(server.URL),
	)
	if err != nil {
		t.Fatal(err)
	}
	defer provider.Close()

	result, err := provider.Synthesize(context.Background(), "stand up and stretch")
	if err != nil {
		t.Fatal(err)
	}

	if string(result.Audio) != string(fakeAudio) {
		t.Error("audio bytes do not match server response")
	}
	if result.CharCount != len("stand up and stretch") {
		t.Errorf("char count = %d", result.CharCount)
	}

	if gotPayload["transcript"] != "stand up and stretch" {
		t.Errorf("transcript = %v", gotPayload["transcript"])
	}
	voice, _ := gotPayload["voice"].(map[string]interface{})
	if voice["mode"] != "id" || voice["id"] != "voice-1" {
		t.Errorf("voice = %v", voice)
	}
	format, _ := gotPayload["output_format"].(map[string]interface{})
	if format["container"] != "wav" || format["encoding"] != "pcm_s16le" {
		t.Errorf("output_format = %v", format)
	}
}

func TestCartesia_RetriesServerErrors(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("audio"))
	}))
	defer server.Close()

	provider, err := NewCartesia(
		WithAPIKey("test-key"),
		WithVoice("voice-1"),
		WithBaseURL(server.URL),
		WithRetry(3, time.Millisecond),
	)
	if err != nil {
		t.Fatal(err)
	}
	defer provider.Close()

	result, err := provider.Synthesize(context.Background(), "hello")
	if err != nil {
		t.Fatal(err)
	}
	if string(result.Audio) != "audio" {
		t.Error("unexpected audio")
	}
	if attempts.Load() != 3 {
		t.Errorf("attempts = %d, want 3", attempts.Load())
	}
}

func TestCartesia_SurfacesAPIErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"invalid api key"}`))
	}))
	defer server.Close()

	provider, err := NewCartesia(
		WithAPIKey("bad-key"),
		WithVoice("voice-1"),
		WithBaseURL(server.URL),
	)
	if err != nil {
		t.Fatal(err)
	}
	defer provider.Close()

	_, err = provider.Synthesize(context.Background(), "hello")

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if !apiErr.IsUnauthorized() {
		t.Errorf("status = %d, want 401", apiErr.StatusCode)
	}
	if apiErr.Message != "invalid api key" {
		t.Errorf("message = %q", apiErr.Message)
	}
	if apiErr.IsRetryable() {
		t.Error("401 must not be retryable")
	}
}

func TestCartesia_ConfigValidation(t *testing.T) {
	if _, err := NewCartesia(WithVoice("v")); !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("err = %v, want ErrNoAPIKey", err)
	}
	if _, err := NewCartesia(WithAPIKey("k")); !errors.Is(err, ErrNoVoiceID) {
		t.Errorf("err = %v, want ErrNoVoiceID", err)
	}
}

func TestChain_FallsBackInOrder(t *testing.T) {
	failing := WithFailure(errors.New("api down"))
	working := NewMock()

	chain, err := NewChain(nil, failing, working)
	if err != nil {
		t.Fatal(err)
	}

	result, err := chain.Synthesize(context.Background(), "take a break")
	if err != nil {
		t.Fatal(err)
	}
	if result == nil || len(result.Audio) == 0 {
		t.Fatal("fallback produced no audio")
	}
	if working.CallCount("Synthesize") != 1 {
		t.Errorf("fallback calls = %d, want 1", working.CallCount("Synthesize"))
	}
}

func TestChain_AllFailed(t *testing.T) {
	chain, err := NewChain(nil, WithFailure(errors.New("a")), WithFailure(errors.New("b")))
	if err != nil {
		t.Fatal(err)
	}

	_, err = chain.Synthesize(context.Background(), "hello")

	var chainErr *ChainError
	if !errors.As(err, &chainErr) {
		t.Fatalf("err = %v, want *ChainError", err)
	}
	if len(chainErr.Errors) != 2 {
		t.Errorf("aggregated errors = %d, want 2", len(chainErr.Errors))
	}
}

func TestChain_RequiresProviders(t *testing.T) {
	if _, err := NewChain(nil); !errors.Is(err, ErrProviderUnavailable) {
		t.Errorf("err = %v, want ErrProviderUnavailable", err)
	}
}

func TestBufferStream_ReadsToCompletion(t *testing.T) {
	data := make([]byte, 10000)
	stream := &bufferStream{data: data, format: AudioFormat{SampleRate: 24000}}

	total := 0
	for {
		chunk, err := stream.Read()
		if err != nil {
			t.Fatal(err)
		}
		if chunk == nil {
			break
		}
		total += len(chunk)
	}
	if total != len(data) {
		t.Errorf("read %d bytes, want %d", total, len(data))
	}
}
