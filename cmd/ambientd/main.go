// ambientd is the local wellness engine daemon. It watches presence,
// posture, blink rate and typing cadence, runs the proactive alert
// rules, handles push-to-talk voice capture, and speaks alerts and the
// daily recap through a serialized playback queue. A small local HTTP
// server exposes the live state to the dashboard.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/holoself/go-ambient/internal/config"
	"github.com/holoself/go-ambient/internal/log"
	"github.com/holoself/go-ambient/pkg/agent"
	"github.com/holoself/go-ambient/pkg/blink"
	"github.com/holoself/go-ambient/pkg/cadence"
	"github.com/holoself/go-ambient/pkg/health"
	"github.com/holoself/go-ambient/pkg/hotkey"
	"github.com/holoself/go-ambient/pkg/hub"
	"github.com/holoself/go-ambient/pkg/posture"
	"github.com/holoself/go-ambient/pkg/presence"
	"github.com/holoself/go-ambient/pkg/speech"
	"github.com/holoself/go-ambient/pkg/summary"
	"github.com/holoself/go-ambient/pkg/transcribe"
	"github.com/holoself/go-ambient/pkg/tts"
	"github.com/holoself/go-ambient/pkg/vision"
	"github.com/holoself/go-ambient/pkg/voicecap"
	"github.com/holoself/go-ambient/pkg/web"
)

func main() {
	godotenv.Load()

	configPath := flag.String("config", "ambient.yaml", "path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Init("info")
		log.Error("configuration failed", "error", err)
		os.Exit(1)
	}

	log.Init(cfg.LogLevel)
	logger := log.L()
	logger.Info("ambientd starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	events := hub.New(logger)
	go events.Run(ctx)

	tracker := newTracker()

	// Camera estimators. The daemon keeps running without a camera;
	// presence is then assumed and posture and blink report nothing.
	var (
		presenceDet *presence.Detector
		postureEst  *posture.Estimator
		blinkEst    *blink.Estimator
	)
	camSrc, err := vision.Open(cfg.Vision)
	if err != nil {
		logger.Warn("camera unavailable, visual estimators disabled", "error", err)
	} else {
		presenceDet = presence.New(camSrc, cfg.Presence, logger)
		presenceDet.SetCallbacks(presence.Callbacks{
			OnLeave: func() {
				tracker.setPresent(false, 0)
				events.Publish(hub.EventPresence, map[string]any{"present": false})
			},
			OnReturn: func(away time.Duration) {
				tracker.setPresent(true, away)
				events.Publish(hub.EventPresence, map[string]any{
					"present":      true,
					"away_minutes": away.Minutes(),
				})
			},
		})
		presenceDet.Start(ctx)

		postureEst = posture.New(camSrc, cfg.Posture, logger)
		postureEst.SetCallbacks(posture.Callbacks{
			OnBadPosture: func(d time.Duration) {
				events.Publish(hub.EventPosture, map[string]any{
					"bad_for_minutes": d.Minutes(),
				})
			},
		})
		postureEst.Start(ctx)

		// Blink sampling runs much faster than the shared session's
		// estimators, so it opens its own.
		blinkEst = blink.New(func() (vision.Source, error) {
			return vision.Open(cfg.Vision)
		}, cfg.Blink, logger)
		if err := blinkEst.Start(ctx); err != nil {
			logger.Warn("blink estimator disabled", "error", err)
			blinkEst = nil
		}
	}

	monitor := cadence.New(cfg.Cadence, logger)
	monitor.Start(ctx)

	synth := buildSynthesizer(cfg, logger)

	queue := speech.New(cfg.Speech, logger)
	queue.SetCallbacks(speech.Callbacks{
		OnPlaybackStart: func(task speech.Task) {
			events.Publish(hub.EventVoice, map[string]any{"speaking": true, "label": task.Label})
		},
		OnPlaybackEnd: func(task speech.Task, err error) {
			events.Publish(hub.EventVoice, map[string]any{"speaking": false, "label": task.Label})
		},
	})
	queue.Start(ctx)

	speak := func(label, text string) error {
		if synth == nil {
			logger.Warn("no synthesizer available, dropping utterance", "label", label)
			return nil
		}
		_, err := queue.Enqueue(label, func(ctx context.Context) ([]byte, error) {
			res, err := synth.Synthesize(ctx, text)
			if err != nil {
				return nil, err
			}
			return res.Audio, nil
		})
		return err
	}

	transcriber := transcribe.NewWhisperCpp(cfg.Transcribe, logger)
	if status := transcriber.Status(); !status.Available {
		logger.Warn("transcription unavailable", "reason", status.Reason)
	}

	voice := voicecap.New(cfg.Voice, transcriber, logger)
	voice.SetCallbacks(voicecap.Callbacks{
		OnStateChange: func(s voicecap.State) {
			events.Publish(hub.EventVoice, map[string]any{"state": s.String()})
		},
		OnTranscript: func(text string) {
			tracker.noteVoiceCommand()
			logger.Info("voice command", "text", text)
			events.Publish(hub.EventVoice, map[string]any{"transcript": text})
		},
		OnError: func(err error) {
			logger.Warn("voice capture error", "error", err)
		},
	})
	defer voice.Close()

	toggleVoice := func() error {
		if voice.State() == voicecap.StateListening {
			return voice.Deactivate()
		}
		return voice.Activate(ctx)
	}

	keys := hotkey.NewKeyListener()
	defer keys.Close()
	if err := keys.Bind(cfg.Hotkey, func() {
		if err := toggleVoice(); err != nil {
			logger.Debug("hotkey toggle ignored", "error", err)
		}
	}); err != nil {
		logger.Warn("hotkey binding failed", "chord", cfg.Hotkey, "error", err)
	}

	metrics := func() health.Metrics {
		m := health.Metrics{
			Present:      true,
			FocusMinutes: tracker.focusMinutes(),
			BreaksTaken:  tracker.breaksTaken(),
		}
		if presenceDet != nil {
			m.Present = presenceDet.State().IsPresent
		}
		if postureEst != nil {
			score := postureEst.State().Score
			m.PostureScore = score
			tracker.observePosture(score)
		}
		if blinkEst != nil {
			m.BlinksPerMinute = blinkEst.Stats().BlinksPerMinute
		}
		snap := monitor.Snapshot()
		m.WPM = snap.WPM
		m.WPMTrend = snap.Trend
		m.Fatigue = snap.Fatigue
		return m
	}

	engine := health.New(cfg.Health, metrics, logger)
	engine.SetCallbacks(health.Callbacks{
		OnAlert: func(a health.Alert) {
			tracker.noteAlert()
			events.Publish(hub.EventAlert, a)
			if cfg.AutoSpeak && a.Priority == 1 {
				if err := speak("alert", a.Message); err != nil {
					logger.Warn("alert speech dropped", "error", err)
				}
			}
		},
	})
	engine.Start(ctx)

	recap := summary.New(cfg.Summary, tracker.dayStats, func(text string) {
		events.Publish(hub.EventSummary, map[string]string{"text": text})
		if err := speak("summary", text); err != nil {
			logger.Warn("recap speech dropped", "error", err)
		}
	}, logger)
	recap.Start(ctx)

	agentOK := startAgentPolling(ctx, cfg, logger, events, metrics, speak)

	server := web.NewServer(cfg.Web, events, logger)
	server.SetProviders(web.Providers{
		State: func() web.State {
			return collectState(metrics(), presenceDet, postureEst, voice, queue, agentOK)
		},
		Alerts: engine.History,
		Stats:  tracker.dayStats,
	})
	server.SetCallbacks(web.Callbacks{
		OnSpeak:       func(text string) error { return speak("manual", text) },
		OnVoiceToggle: toggleVoice,
		OnKeys: func(presses []web.KeyPress) {
			feedKeys(monitor, keys, events, presses)
		},
	})
	if cfg.Web.Enabled {
		go func() {
			if err := server.Start(); err != nil {
				logger.Error("dashboard server stopped", "error", err)
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	server.Shutdown(shutdownCtx)

	recap.Stop()
	engine.Stop()
	monitor.Stop()
	queue.Stop()
	if blinkEst != nil {
		blinkEst.Stop()
	}
	if postureEst != nil {
		postureEst.Stop()
	}
	if presenceDet != nil {
		presenceDet.Stop()
	}
	if camSrc != nil {
		camSrc.Close()
	}
	if synth != nil {
		synth.Close()
	}
	logger.Info("ambientd stopped")
}

// buildSynthesizer assembles the synthesis fallback chain: the hosted
// voice first when configured, the OS synthesizer after it.
func buildSynthesizer(cfg config.Config, logger *slog.Logger) tts.Provider {
	var providers []tts.Provider

	if cfg.TTS.APIKey != "" {
		opts := []tts.Option{
			tts.WithAPIKey(cfg.TTS.APIKey),
			tts.WithVoice(cfg.TTS.VoiceID),
			tts.WithLogger(logger),
		}
		if cfg.TTS.ModelID != "" {
			opts = append(opts, tts.WithModel(cfg.TTS.ModelID))
		}
		if cfg.TTS.Language != "" {
			opts = append(opts, tts.WithLanguage(cfg.TTS.Language))
		}
		if cfg.TTS.Speed != 0 {
			opts = append(opts, tts.WithVoiceControls(tts.VoiceControls{Speed: cfg.TTS.Speed}))
		}
		cart, err := tts.NewCartesia(opts...)
		if err != nil {
			logger.Warn("hosted synthesis unavailable", "error", err)
		} else {
			providers = append(providers, cart)
		}
	}

	native, err := tts.NewNative(tts.WithLogger(logger))
	if err != nil {
		logger.Warn("native synthesis unavailable", "error", err)
	} else {
		providers = append(providers, native)
	}

	if len(providers) == 0 {
		return nil
	}
	chain, err := tts.NewChain(logger, providers...)
	if err != nil {
		return nil
	}
	return chain
}

// startAgentPolling polls the reasoning service when configured.
// Returns whether polling is active.
func startAgentPolling(
	ctx context.Context,
	cfg config.Config,
	logger *slog.Logger,
	events *hub.Hub,
	metrics func() health.Metrics,
	speak func(label, text string) error,
) bool {
	if cfg.Agent.BaseURL == "" {
		return false
	}

	opts := []agent.Option{agent.WithBaseURL(cfg.Agent.BaseURL)}
	if cfg.Agent.APIKey != "" {
		opts = append(opts, agent.WithAPIKey(cfg.Agent.APIKey))
	}
	client, err := agent.NewClient(opts...)
	if err != nil {
		logger.Warn("agent client disabled", "error", err)
		return false
	}

	interval := cfg.Agent.PollInterval
	if interval <= 0 {
		interval = 15 * time.Minute
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m := metrics()
				state := map[string]interface{}{
					"present":       m.Present,
					"focus_minutes": m.FocusMinutes,
					"breaks_taken":  m.BreaksTaken,
					"posture_score": m.PostureScore,
					"wpm":           m.WPM,
					"wpm_trend":     string(m.WPMTrend),
					"fatigue":       string(m.Fatigue),
				}
				msg, err := client.NextMessage(ctx, state)
				if err != nil {
					logger.Warn("agent poll failed", "error", err)
					continue
				}
				if msg == nil {
					continue
				}
				logger.Info("agent message", "category", msg.Category, "priority", msg.Priority)
				events.Publish(hub.EventAgent, msg)
				if cfg.AutoSpeak && msg.Text != "" {
					if err := speak("agent", msg.Text); err != nil {
						logger.Warn("agent speech dropped", "error", err)
					}
				}
			}
		}
	}()
	return true
}

// collectState builds the dashboard snapshot.
func collectState(
	m health.Metrics,
	presenceDet *presence.Detector,
	postureEst *posture.Estimator,
	voice *voicecap.Controller,
	queue *speech.Queue,
	agentOK bool,
) web.State {
	st := web.State{
		Present:         m.Present,
		PostureScore:    m.PostureScore,
		BlinksPerMinute: m.BlinksPerMinute,
		WPM:             m.WPM,
		WPMTrend:        string(m.WPMTrend),
		Fatigue:         string(m.Fatigue),
		FocusMin:        int(m.FocusMinutes),
		BreakCount:      m.BreaksTaken,
		VoiceState:      voice.State().String(),
		Speaking:        queue.Speaking(),
		QueueDepth:      queue.Pending(),
		AgentConnected:  agentOK,
	}
	if presenceDet != nil {
		ps := presenceDet.State()
		st.CameraAvailable = ps.DeviceAvailable
		st.AwayMinutes = ps.AwayDuration.Minutes()
	}
	if postureEst != nil {
		st.BadPostureMinutes = postureEst.State().BadDuration.Minutes()
	}
	return st
}

// feedKeys fans incoming keystrokes out to the cadence monitor and the
// hotkey listener.
func feedKeys(monitor *cadence.Monitor, keys *hotkey.KeyListener, events *hub.Hub, presses []web.KeyPress) {
	now := time.Now()
	for _, p := range presses {
		var r rune
		if p.Rune != "" {
			r = []rune(p.Rune)[0]
		}
		monitor.Record(cadence.KeyEvent{Rune: r, Name: p.Name, Time: now})

		key := p.Name
		if key == "" {
			key = p.Rune
		}
		keys.Feed(hotkey.Event{
			Key:   key,
			Ctrl:  p.Ctrl,
			Shift: p.Shift,
			Alt:   p.Alt,
			Meta:  p.Meta,
			Time:  now,
		})
	}

	snap := monitor.Snapshot()
	events.Publish(hub.EventCadence, snap)
}
