// Command smishctl scans messages for phishing from the command line.
//
// Usage:
//
//	smishctl extract <text>
//	smishctl scan --image screenshot.png
//	smishctl explain <scan_id>
package main

import (
	"smishguard/internal/cli"
	"smishguard/internal/domain/services"
	"smishguard/internal/ocr/tesseract"
	"smishguard/pkg/logger"
)

func main() {
	cli.Execute(func(languages []string, log *logger.Logger) services.TextRecognizer {
		return tesseract.NewEngine(languages, log)
	})
}
