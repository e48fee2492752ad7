// Package tesseract recognizes message text with the Tesseract OCR library.
package tesseract

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"smishguard/internal/ocr"
	"smishguard/pkg/logger"
)

// Engine recognizes text with the Tesseract OCR library
type Engine struct {
	languages []string
	logger    *logger.Logger
}

// NewEngine creates a new engine. Language defaults to "eng".
func NewEngine(languages []string, log *logger.Logger) *Engine {
	if len(languages) == 0 {
		languages = []string{"eng"}
	}
	return &Engine{
		languages: languages,
		logger:    log.WithComponent("ocr"),
	}
}

// Recognize preprocesses the image and returns its trimmed text
func (e *Engine) Recognize(ctx context.Context, data []byte) (string, error) {
	if _, err := ocr.DetectImage(data); err != nil {
		return "", err
	}

	prepared, err := ocr.Preprocess(data)
	if err != nil {
		return "", err
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}

	// gosseract clients are not safe for concurrent use; one per call.
	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(e.languages...); err != nil {
		return "", fmt.Errorf("failed to set OCR language: %w", err)
	}
	if err := client.SetImageFromBytes(prepared); err != nil {
		return "", fmt.Errorf("failed to load image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("failed to recognize text: %w", err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", ocr.ErrNoText
	}

	e.logger.Debug().Int("chars", len(text)).Msg("text recognized")
	return text, nil
}
