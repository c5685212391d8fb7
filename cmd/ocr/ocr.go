// Command ocr wires model loading, prompt construction, generation and
// post-processing together: point it at a model file and an image, get
// back markdown with grounded crops saved alongside it.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"ocr-go-infer/generate"
	"ocr-go-infer/internal/debugpolicy"
	"ocr-go-infer/internal/ocrerr"
	"ocr-go-infer/ml"
	"ocr-go-infer/model"
	"ocr-go-infer/model/input"
	"ocr-go-infer/postprocess"
	"ocr-go-infer/vision"
)

// Options are the flags the ocr subcommand accepts.
type Options struct {
	ModelPath string
	ImagePath string
	Prompt    string
	OutDir    string

	MaxTokens int
	Temp      float32
	TopK      int
	TopP      float32
	Seed      uint32

	DisableRoutedExperts bool
	RopeScaleOverride    float32
}

// NewCommand builds the `ocr` cobra command.
func NewCommand() *cobra.Command {
	opts := Options{
		Prompt:    "<image>\nFree OCR.",
		OutDir:    "ocr-output",
		MaxTokens: 2048,
	}

	cmd := &cobra.Command{
		Use:   "ocr MODEL IMAGE",
		Short: "Run DeepSeek-OCR inference on a single image",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ModelPath = args[0]
			opts.ImagePath = args[1]
			return Run(opts)
		},
	}

	cmd.Flags().StringVar(&opts.Prompt, "prompt", opts.Prompt, "prompt text; the image is inserted at its <image> placeholder, or after the text if it has none")
	cmd.Flags().StringVar(&opts.OutDir, "out", opts.OutDir, "output directory for markdown and cropped images")
	cmd.Flags().IntVar(&opts.MaxTokens, "max-tokens", opts.MaxTokens, "maximum number of tokens to generate")
	cmd.Flags().Float32Var(&opts.Temp, "temp", 0, "sampling temperature (0 = greedy)")
	cmd.Flags().IntVar(&opts.TopK, "top-k", 0, "top-k sampling cutoff")
	cmd.Flags().Float32Var(&opts.TopP, "top-p", 0, "top-p (nucleus) sampling cutoff")
	cmd.Flags().Uint32Var(&opts.Seed, "seed", 1, "sampling RNG seed")
	cmd.Flags().BoolVar(&opts.DisableRoutedExperts, "debug-disable-routed-experts", false, "run MoE layers with shared experts only")
	cmd.Flags().Float32Var(&opts.RopeScaleOverride, "debug-rope-scale", 0, "override the configured RoPE scaling factor (0 = use model default)")

	return cmd
}

// Run loads the model, encodes the image and prompt, generates a
// response, and writes the rendered markdown and any grounded crops to
// opts.OutDir.
func Run(opts Options) error {
	if opts.DisableRoutedExperts || opts.RopeScaleOverride != 0 {
		debugpolicy.Set(debugpolicy.Policy{
			DisableRoutedExperts: opts.DisableRoutedExperts,
			RopeScaleOverride:    opts.RopeScaleOverride,
		})
	}

	m, err := model.New(opts.ModelPath, ml.BackendParams{AllocMemory: true})
	if err != nil {
		return ocrerr.New(ocrerr.Resource, "ocr.Run", err)
	}
	if err := m.Backend().Load(context.Background(), func(float32) {}); err != nil {
		return ocrerr.New(ocrerr.Resource, "ocr.Run", err)
	}

	mmProcessor, ok := m.(model.MultimodalProcessor)
	if !ok {
		return ocrerr.New(ocrerr.Configuration, "ocr.Run", fmt.Errorf("model does not support image input"))
	}
	textProcessor, ok := m.(model.TextProcessor)
	if !ok {
		return ocrerr.New(ocrerr.Configuration, "ocr.Run", fmt.Errorf("model does not support text input"))
	}
	eosSource, ok := m.(interface{ EOS() []int32 })
	if !ok {
		return ocrerr.New(ocrerr.Configuration, "ocr.Run", fmt.Errorf("model does not expose end-of-sequence tokens"))
	}

	imageBytes, err := os.ReadFile(opts.ImagePath)
	if err != nil {
		return ocrerr.New(ocrerr.Input, "ocr.Run", err)
	}

	prompt, err := buildPrompt(m, mmProcessor, textProcessor, opts.Prompt, imageBytes)
	if err != nil {
		return err
	}

	result, err := generate.Run(m, prompt, generate.Options{
		MaxTokens: opts.MaxTokens,
		Stop:      eosSource.EOS(),
		Sampling: generate.SamplingParams{
			Temp: opts.Temp,
			TopK: opts.TopK,
			TopP: opts.TopP,
			Seed: opts.Seed,
		},
	})
	if err != nil {
		return ocrerr.New(ocrerr.Arithmetic, "ocr.Run", err)
	}

	text, err := textProcessor.Decode(result.Tokens)
	if err != nil {
		return ocrerr.New(ocrerr.Input, "ocr.Run", err)
	}

	src, err := vision.LoadImageFromBytes(imageBytes)
	if err != nil {
		return ocrerr.New(ocrerr.Input, "ocr.Run", err)
	}

	side := src.Width
	if src.Height > side {
		side = src.Height
	}
	detections := postprocess.ParseDetections(text, side)

	imagesDir := filepath.Join(opts.OutDir, "images")
	markdown, _, err := postprocess.RenderMarkdown(text, detections, src, imagesDir, 0)
	if err != nil {
		return ocrerr.New(ocrerr.Resource, "ocr.Run", err)
	}

	if err := os.MkdirAll(opts.OutDir, 0o755); err != nil {
		return ocrerr.New(ocrerr.Resource, "ocr.Run", err)
	}
	return os.WriteFile(filepath.Join(opts.OutDir, "output.md"), []byte(markdown), 0o644)
}

// buildPrompt tokenizes the prompt text, encodes the image, and splices
// the two together at the "<image>" placeholder via PostTokenize.
func buildPrompt(m model.Model, mmProcessor model.MultimodalProcessor, textProcessor model.TextProcessor, promptText string, imageBytes []byte) ([]*input.Input, error) {
	ctx := m.Backend().NewContext()
	defer ctx.Close()

	mm, err := mmProcessor.EncodeMultimodal(ctx, imageBytes)
	if err != nil {
		return nil, ocrerr.New(ocrerr.Input, "ocr.buildPrompt", err)
	}

	before, after, found := strings.Cut(promptText, "<image>")
	if !found {
		before, after = promptText, ""
	}

	var inputs []*input.Input
	inputs = append(inputs, textTokens(textProcessor, before, true)...)

	imageInput := &input.Input{Multimodal: mm}
	inputs = append(inputs, imageInput)

	inputs = append(inputs, textTokens(textProcessor, after, false)...)

	return mmProcessor.PostTokenize(inputs)
}

func textTokens(tp model.TextProcessor, text string, addSpecial bool) []*input.Input {
	ids, err := tp.Encode(text, addSpecial)
	if err != nil {
		return nil
	}
	out := make([]*input.Input, len(ids))
	for i, id := range ids {
		out[i] = &input.Input{Token: id}
	}
	return out
}

