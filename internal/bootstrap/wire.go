package bootstrap

import (
	"fmt"

	"go.uber.org/zap"

	"supportchat/internal/audio"
	"supportchat/internal/config"
	"supportchat/internal/logging"
	"supportchat/internal/ports"
	"supportchat/internal/providers/backend"
	"supportchat/internal/providers/deepgram"
	"supportchat/internal/rules"
	"supportchat/internal/usecase"
)

// Services is the assembled runtime graph.
type Services struct {
	Controller *usecase.ConversationController
	Config     config.Config
	Logger     *zap.Logger
}

// Shutdown closes the controller and flushes the logger.
func (s Services) Shutdown() error {
	var err error
	if s.Controller != nil {
		err = s.Controller.Close()
	}
	if s.Logger != nil {
		_ = s.Logger.Sync()
	}
	return err
}

// Build loads configuration and wires every dependency around view.
func Build(view ports.View, opts config.Options) (Services, error) {
	cfg, err := config.LoadWithOptions(opts)
	if err != nil {
		return Services{}, err
	}

	logger, err := logging.New(cfg.Debug)
	if err != nil {
		return Services{}, err
	}
	return BuildWithLogger(view, cfg, logger)
}

// BuildWithLogger wires an already loaded configuration.
func BuildWithLogger(view ports.View, cfg config.Config, logger *zap.Logger) (Services, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	rulesEngine, err := rules.NewEngine(rules.Source{Path: cfg.Rules.Path, Lines: cfg.Rules.Lines}, cfg.Rules.IterationLimit)
	if err != nil {
		return Services{}, err
	}

	client, err := backend.NewClient(backend.Config{
		BaseURL: cfg.Backend.BaseURL,
		Timeout: cfg.Backend.Timeout,
	}, logger.Named("backend"))
	if err != nil {
		return Services{}, fmt.Errorf("backend client: %w", err)
	}

	streamingLanguage := cfg.Deepgram.Language
	if streamingLanguage == "" {
		streamingLanguage = cfg.Speech.Language
	}

	controller := usecase.NewConversationController(
		client,
		view,
		usecase.CaptureDeps{
			Audio: audio.NewFFMPEGCapture(cfg.Audio.RecorderCommand, logger.Named("audio")),
			Provider: deepgram.NewProvider(deepgram.Config{
				APIKey:       cfg.Deepgram.APIKey,
				APIBaseURL:   cfg.Deepgram.APIBaseURL,
				Model:        cfg.Deepgram.Model,
				Language:     cfg.Deepgram.Language,
				SmartFormat:  cfg.Deepgram.SmartFormat,
				Endpointing:  cfg.Deepgram.Endpointing,
				UtteranceEnd: cfg.Deepgram.UtteranceEnd,
			}, logger.Named("deepgram")),
			Transcriber: client,
			Rules:       rulesEngine,
		},
		logger.Named("conversation"),
		usecase.ControllerConfig{
			TopK:          cfg.Backend.TopK,
			KnowledgeID:   cfg.Backend.KnowledgeID,
			FeedbackDelay: cfg.Feedback.IdleDelay,
			Capture: usecase.CaptureConfig{
				Audio: ports.AudioConfig{
					SampleRate:  cfg.Audio.SampleRate,
					Channels:    cfg.Audio.Channels,
					InputFormat: cfg.Audio.InputFormat,
					InputDevice: cfg.Audio.InputDevice,
				},
				Streaming: ports.StreamingConfig{
					SampleRate:     cfg.Audio.SampleRate,
					Channels:       cfg.Audio.Channels,
					Encoding:       "linear16",
					Language:       streamingLanguage,
					InterimResults: true,
				},
				Language:           cfg.Speech.Language,
				ChunkSize:          cfg.Session.ChunkSize,
				StreamingGrace:     cfg.Session.StreamingGrace,
				SilenceThresholdDB: cfg.Speech.SilenceThresholdDB,
				SilenceWindow:      cfg.Speech.SilenceWindow,
			},
		},
	)

	logger.Info("services wired",
		zap.String("backend", cfg.Backend.BaseURL),
		zap.String("config", cfg.Source),
		zap.Int("rules", rulesEngine.Len()),
	)
	return Services{Controller: controller, Config: cfg, Logger: logger}, nil
}
