// MODUL: ocr/main
// ZWECK: Standalone CLI-Einstiegspunkt fuer DeepSeek-OCR-Inferenz
// ABHAENGIGKEITEN: cobra (ocr.go), model/models/deepseekocr und
// ml/backend/cpu (Registrierung via init)

package main

import (
	"fmt"
	"log/slog"
	"os"

	"ocr-go-infer/envconfig"
	"ocr-go-infer/logutil"

	_ "ocr-go-infer/ml/backend/cpu"
	_ "ocr-go-infer/model/models/deepseekocr"
)

func main() {
	slog.SetDefault(logutil.NewLogger(os.Stderr, envconfig.LogLevel()))

	if err := NewCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
