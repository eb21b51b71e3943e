package config

import (
	"strconv"
	"strings"
	"time"
)

// apply overlays every variable that is set. Unparsable values keep the
// value from the lower layers.
func (e environment) apply(cfg *Config) {
	e.setString("SUPPORTCHAT_API_URL", &cfg.Backend.BaseURL)
	e.setMillis("SUPPORTCHAT_API_TIMEOUT_MS", &cfg.Backend.Timeout)
	e.setInt("SUPPORTCHAT_TOP_K", &cfg.Backend.TopK)
	if value := e.get("SUPPORTCHAT_KNOWLEDGE_ID"); value != "" {
		if id, err := strconv.Atoi(value); err == nil {
			cfg.Backend.KnowledgeID = &id
		}
	}

	e.setString("SUPPORTCHAT_LANGUAGE", &cfg.Speech.Language)
	e.setFloat("SUPPORTCHAT_SILENCE_THRESHOLD_DB", &cfg.Speech.SilenceThresholdDB)
	e.setMillis("SUPPORTCHAT_SILENCE_WINDOW_MS", &cfg.Speech.SilenceWindow)

	e.setString("DEEPGRAM_API_KEY", &cfg.Deepgram.APIKey)
	e.setString("DEEPGRAM_API_BASE", &cfg.Deepgram.APIBaseURL)
	e.setString("DEEPGRAM_MODEL", &cfg.Deepgram.Model)
	e.setString("DEEPGRAM_LANGUAGE", &cfg.Deepgram.Language)
	e.setBool("DEEPGRAM_SMART_FORMAT", &cfg.Deepgram.SmartFormat)
	e.setMillis("DEEPGRAM_ENDPOINTING_MS", &cfg.Deepgram.Endpointing)
	e.setMillis("DEEPGRAM_UTTERANCE_END_MS", &cfg.Deepgram.UtteranceEnd)

	e.setString("SUPPORTCHAT_FFMPEG_COMMAND", &cfg.Audio.RecorderCommand)
	e.setString("SUPPORTCHAT_AUDIO_INPUT_FORMAT", &cfg.Audio.InputFormat)
	e.setString("SUPPORTCHAT_AUDIO_INPUT_DEVICE", &cfg.Audio.InputDevice)
	e.setInt("SUPPORTCHAT_SAMPLE_RATE", &cfg.Audio.SampleRate)
	e.setInt("SUPPORTCHAT_CHANNELS", &cfg.Audio.Channels)

	e.setString("SUPPORTCHAT_RULES_FILE", &cfg.Rules.Path)
	e.setInt("SUPPORTCHAT_RULE_ITERATION_LIMIT", &cfg.Rules.IterationLimit)

	e.setInt("SUPPORTCHAT_AUDIO_CHUNK_SIZE", &cfg.Session.ChunkSize)
	e.setMillis("SUPPORTCHAT_STREAMING_GRACE_MS", &cfg.Session.StreamingGrace)

	e.setMillis("SUPPORTCHAT_FEEDBACK_DELAY_MS", &cfg.Feedback.IdleDelay)
	e.setBool("SUPPORTCHAT_DEBUG", &cfg.Debug)
}

func (e environment) setString(key string, dst *string) {
	if value := e.get(key); value != "" {
		*dst = value
	}
}

func (e environment) setInt(key string, dst *int) {
	value := e.get(key)
	if value == "" {
		return
	}
	if parsed, err := strconv.Atoi(value); err == nil {
		*dst = parsed
	}
}

func (e environment) setFloat(key string, dst *float64) {
	value := e.get(key)
	if value == "" {
		return
	}
	if parsed, err := strconv.ParseFloat(value, 64); err == nil {
		*dst = parsed
	}
}

func (e environment) setMillis(key string, dst *time.Duration) {
	value := e.get(key)
	if value == "" {
		return
	}
	if parsed, err := strconv.Atoi(value); err == nil && parsed >= 0 {
		*dst = time.Duration(parsed) * time.Millisecond
	}
}

func (e environment) setBool(key string, dst *bool) {
	switch strings.ToLower(e.get(key)) {
	case "1", "true", "yes", "on":
		*dst = true
	case "0", "false", "no", "off":
		*dst = false
	}
}
