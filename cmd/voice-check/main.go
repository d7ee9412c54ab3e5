// Command voice-check exercises the voice path end to end without the
// daemon: it reports which audio devices and transcription binaries are
// usable, optionally speaks a test sentence through the playback
// queue, and optionally runs one push-to-talk capture round trip.
//
// Usage:
//
//	go run ./cmd/voice-check
//	go run ./cmd/voice-check --say "queue check"
//	go run ./cmd/voice-check --listen
//
// CARTESIA_API_KEY and CARTESIA_VOICE_ID select the hosted voice;
// without them the OS synthesizer is used.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/holoself/go-ambient/internal/config"
	"github.com/holoself/go-ambient/internal/log"
	"github.com/holoself/go-ambient/pkg/audioio"
	"github.com/holoself/go-ambient/pkg/speech"
	"github.com/holoself/go-ambient/pkg/transcribe"
	"github.com/holoself/go-ambient/pkg/tts"
	"github.com/holoself/go-ambient/pkg/voicecap"
)

func main() {
	godotenv.Load()

	say := flag.String("say", "", "speak this sentence and exit")
	listen := flag.Bool("listen", false, "run one capture round trip")
	flag.Parse()

	log.Init("info")
	logger := log.L()

	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	fmt.Println("voice path check")
	fmt.Println("----------------")

	src, err := audioio.NewSource(cfg.Voice.Audio, logger)
	if err != nil {
		fmt.Printf("capture:       unavailable (%v)\n", err)
	} else {
		fmt.Printf("capture:       %s\n", src.Name())
		src.Close()
	}

	sink, err := audioio.NewSink(cfg.Speech.Audio, logger)
	if err != nil {
		fmt.Printf("playback:      unavailable (%v)\n", err)
	} else {
		fmt.Printf("playback:      %s\n", sink.Name())
		sink.Close()
	}

	transcriber := transcribe.NewWhisperCpp(cfg.Transcribe, logger)
	status := transcriber.Status()
	if status.Available {
		fmt.Printf("transcription: %s (%s)\n", status.Binary, status.Model)
	} else {
		fmt.Printf("transcription: unavailable (%s)\n", status.Reason)
	}

	ctx := context.Background()

	if *say != "" {
		speak(ctx, cfg, *say)
	}

	if *listen {
		capture(ctx, cfg, transcriber)
	}
}

func speak(ctx context.Context, cfg config.Config, text string) {
	l := log.Component("voice-check")

	var providers []tts.Provider
	if cfg.TTS.APIKey != "" {
		cart, err := tts.NewCartesia(
			tts.WithAPIKey(cfg.TTS.APIKey),
			tts.WithVoice(cfg.TTS.VoiceID),
			tts.WithLogger(l),
		)
		if err != nil {
			fmt.Printf("hosted voice:  unavailable (%v)\n", err)
		} else {
			providers = append(providers, cart)
		}
	}
	if native, err := tts.NewNative(tts.WithLogger(l)); err == nil {
		providers = append(providers, native)
	}
	if len(providers) == 0 {
		fmt.Println("speak:         no synthesizer available")
		return
	}
	chain, err := tts.NewChain(l, providers...)
	if err != nil {
		fmt.Printf("speak:         %v\n", err)
		return
	}
	defer chain.Close()

	queue := speech.New(cfg.Speech, l)
	done := make(chan error, 1)
	queue.SetCallbacks(speech.Callbacks{
		OnPlaybackEnd: func(_ speech.Task, err error) { done <- err },
	})
	queue.Start(ctx)
	defer queue.Stop()

	queue.Enqueue("check", func(ctx context.Context) ([]byte, error) {
		res, err := chain.Synthesize(ctx, text)
		if err != nil {
			return nil, err
		}
		return res.Audio, nil
	})

	select {
	case err := <-done:
		if err != nil {
			fmt.Printf("speak:         failed (%v)\n", err)
		} else {
			fmt.Println("speak:         ok")
		}
	case <-time.After(30 * time.Second):
		fmt.Println("speak:         timed out")
	}
}

func capture(ctx context.Context, cfg config.Config, transcriber *transcribe.WhisperCpp) {
	l := log.Component("voice-check")

	done := make(chan struct{}, 1)
	controller := voicecap.New(cfg.Voice, transcriber, l)
	controller.SetCallbacks(voicecap.Callbacks{
		OnStateChange: func(s voicecap.State) {
			fmt.Printf("state:         %s\n", s)
			if s == voicecap.StateReady {
				select {
				case done <- struct{}{}:
				default:
				}
			}
		},
		OnTranscript: func(text string) {
			fmt.Printf("transcript:    %q\n", text)
		},
		OnError: func(err error) {
			fmt.Printf("capture error: %v\n", err)
		},
	})
	defer controller.Close()

	fmt.Println("listening... speak now")
	if err := controller.Activate(ctx); err != nil {
		fmt.Printf("activate:      %v\n", err)
		return
	}

	select {
	case <-done:
	case <-time.After(cfg.Voice.ListenTimeout + 90*time.Second):
		fmt.Println("capture:       timed out")
	}
}
