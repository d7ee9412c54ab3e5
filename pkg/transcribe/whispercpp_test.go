package transcribe

import (
	"context"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestResolve_ExplicitPaths(t *testing.T) {
	dir := t.TempDir()
	bin := filepath.Join(dir, "whisper-cli")
	model := filepath.Join(dir, "ggml-base.en.bin")
	os.WriteFile(bin, []byte("#!/bin/sh\n"), 0o755)
	os.WriteFile(model, []byte("ggml"), 0o644)

	w := NewWhisperCpp(Config{BinaryPath: bin, ModelPath: model}, nil)

	status := w.Status()
	if !status.Available {
		t.Fatalf("not available: %s", status.Reason)
	}
	if status.Binary != bin || status.Model != model {
		t.Errorf("resolved %q / %q", status.Binary, status.Model)
	}
}

func TestResolve_MissingModelReported(t *testing.T) {
	dir := t.TempDir()
	bin := filepath.Join(dir, "whisper-cli")
	os.WriteFile(bin, []byte("#!/bin/sh\n"), 0o755)

	w := NewWhisperCpp(Config{
		BinaryPath: bin,
		ModelPath:  filepath.Join(dir, "missing.bin"),
	}, nil)

	status := w.Status()
	if status.Available {
		t.Fatal("should not be available without a model")
	}

	_, err := w.Transcribe(context.Background(), []byte{0, 0}, 16000)
	if !errors.Is(err, ErrNotAvailable) {
		t.Errorf("err = %v, want ErrNotAvailable", err)
	}
}

func TestResolve_EnvOverride(t *testing.T) {
	dir := t.TempDir()
	bin := filepath.Join(dir, "whisper")
	model := filepath.Join(dir, "ggml-tiny.en.bin")
	os.WriteFile(bin, []byte("#!/bin/sh\n"), 0o755)
	os.WriteFile(model, []byte("ggml"), 0o644)

	t.Setenv(envBinary, bin)
	t.Setenv(envModel, model)

	w := NewWhisperCpp(DefaultConfig(), nil)
	if status := w.Status(); !status.Available {
		t.Fatalf("env-resolved install not available: %s", status.Reason)
	}
}

func TestWAVBytes_Header(t *testing.T) {
	pcm := make([]byte, 640)
	wav := wavBytes(pcm, 16000)

	if string(wav[:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		t.Fatal("bad RIFF header")
	}
	if rate := binary.LittleEndian.Uint32(wav[24:28]); rate != 16000 {
		t.Errorf("sample rate = %d, want 16000", rate)
	}
	if size := binary.LittleEndian.Uint32(wav[40:44]); size != 640 {
		t.Errorf("data size = %d, want 640", size)
	}
	if len(wav) != 44+640 {
		t.Errorf("total size = %d, want %d", len(wav), 44+640)
	}
}

func TestCleanTranscript(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"  hello world  \n", "hello world"},
		{"[BLANK_AUDIO]\n", ""},
		{"(wind blowing)\nstand up\n", "stand up"},
		{"first line\nsecond line\n", "first line second line"},
	}

	for _, tc := range cases {
		if got := cleanTranscript(tc.in); got != tc.want {
			t.Errorf("cleanTranscript(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestMock_RecordsCalls(t *testing.T) {
	m := &Mock{Text: "hi"}

	text, err := m.Transcribe(context.Background(), []byte{1, 2, 3, 4}, 16000)
	if err != nil || text != "hi" {
		t.Fatalf("got %q, %v", text, err)
	}
	if m.Calls() != 1 {
		t.Errorf("calls = %d, want 1", m.Calls())
	}
	pcm, rate := m.LastSegment()
	if len(pcm) != 4 || rate != 16000 {
		t.Errorf("last segment = %d bytes @ %d", len(pcm), rate)
	}
}
