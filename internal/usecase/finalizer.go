package usecase

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"supportchat/internal/domain"
	"supportchat/internal/ports"
)

// RecognitionHandler receives recognized speech. Typed and spoken input share it.
type RecognitionHandler func(ctx context.Context, rec domain.Recognition)

type recognitionFinalizer struct {
	rules   ports.RulesEngine
	sink    ports.NoticeSink
	handler RecognitionHandler
	logger  *zap.Logger
}

func newRecognitionFinalizer(rules ports.RulesEngine, sink ports.NoticeSink, handler RecognitionHandler, logger *zap.Logger) recognitionFinalizer {
	return recognitionFinalizer{rules: rules, sink: sink, handler: handler, logger: logger}
}

// Finalize normalizes rec and hands it to the handler. A failing rule set is
// reported and the raw text is delivered instead.
func (f recognitionFinalizer) Finalize(ctx context.Context, rec domain.Recognition) domain.Recognition {
	rec.Text = f.normalize(rec.Text)
	rec.Question = f.normalize(rec.Question)
	rec.Answer = strings.TrimSpace(rec.Answer)

	if f.handler != nil {
		f.handler(ctx, rec)
	}
	return rec
}

func (f recognitionFinalizer) normalize(text string) string {
	text = strings.TrimSpace(text)
	if text == "" || f.rules == nil {
		return text
	}
	out, err := f.rules.Apply(text)
	if err != nil {
		f.logger.Warn("speech rules failed", zap.Error(err))
		f.sink.Notice(domain.ErrorCodeRules, err.Error())
		return text
	}
	return strings.TrimSpace(out)
}
