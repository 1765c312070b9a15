package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/Strob0t/taskbridge/internal/domain"
	"github.com/Strob0t/taskbridge/internal/domain/task"
	"github.com/Strob0t/taskbridge/internal/port/papers"
)

const defaultTargetLang = "zh-CN"

// TranslatorTool serves stored paper translations in-process instead of
// delegating the "translator" tool to a remote agent.
type TranslatorTool struct {
	source  papers.Source
	timeout time.Duration
}

// NewTranslatorTool creates the local translator backed by source.
func NewTranslatorTool(source papers.Source, timeout time.Duration) *TranslatorTool {
	return &TranslatorTool{source: source, timeout: timeout}
}

func (t *TranslatorTool) Name() string           { return "translator" }
func (t *TranslatorTool) Timeout() time.Duration { return t.timeout }

type translationCard struct {
	Type    string `json:"type"`
	ID      string `json:"id"`
	Text    string `json:"text"`
	PaperID int64  `json:"paper_id"`
	Lang    string `json:"lang"`
	URL     string `json:"url,omitempty"`
}

// Run looks up the translation for args.paper_id in args.target_lang.
func (t *TranslatorTool) Run(ctx context.Context, args task.Args) (json.RawMessage, error) {
	paperID, err := paperIDArg(args)
	if err != nil {
		return nil, err
	}
	lang := args.String("target_lang", defaultTargetLang)

	tr, err := t.source.Translation(ctx, paperID, lang)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("no %s translation for paper %d", lang, paperID)
		}
		return nil, fmt.Errorf("lookup translation: %w", err)
	}

	card := translationCard{
		Type:    "translation_result",
		ID:      hexID("translation_"),
		Text:    tr.Text,
		PaperID: tr.PaperID,
		Lang:    tr.Lang,
		URL:     tr.URL,
	}
	return json.Marshal([]translationCard{card})
}

func paperIDArg(args task.Args) (int64, error) {
	raw := args.String("paper_id", "")
	if raw == "" {
		return 0, fmt.Errorf("missing required argument paper_id: %w", domain.ErrValidation)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid paper_id %q: %w", raw, domain.ErrValidation)
	}
	return id, nil
}
