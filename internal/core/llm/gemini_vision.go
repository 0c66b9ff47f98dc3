package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"

	"github.com/tobiadeyemi/Resolva/internal/core"
	"github.com/tobiadeyemi/Resolva/internal/models"
)

const visionInstructions = `You describe appliance-related photos in neutral, observational language.
For EACH image, in the order given, return one object with keys:
description (short clause of what is visible), confidence (0-1 float),
label (concise subject name), details (array of brief factual observations).
Do not provide troubleshooting advice, next steps, or instructions.
Respond with a JSON array only, one entry per image.`

type GeminiVision struct {
	client    *genai.Client
	modelName string
}

func NewGeminiVision(ctx context.Context, apiKey, modelName string) (*GeminiVision, error) {
	cl, err := newClient(ctx, apiKey)
	if err != nil {
		return nil, err
	}
	if modelName == "" {
		modelName = "gemini-1.5-flash"
	}
	return &GeminiVision{client: cl, modelName: modelName}, nil
}

func (g *GeminiVision) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

func (g *GeminiVision) Describe(ctx context.Context, images []core.ImagePayload, userNote, locale string) ([]core.ImageSummary, *models.TokenUsage, error) {
	if len(images) == 0 {
		return nil, nil, nil
	}

	m := g.client.GenerativeModel(g.modelName)
	m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(visionInstructions)}}
	m.ResponseMIMEType = "application/json"
	m.SetTemperature(0.2)

	parts := make([]genai.Part, 0, len(images)+1)
	for _, img := range images {
		parts = append(parts, genai.ImageData(imageFormat(img.Mime), img.Data))
	}
	note := userNote
	if note == "" {
		note = "Summarize what you see and highlight anything unusual."
	}
	prompt := fmt.Sprintf("Images: %d. User note: %s", len(images), note)
	if locale != "" {
		prompt += fmt.Sprintf(" Locale: %s.", locale)
	}
	parts = append(parts, genai.Text(prompt))

	resp, err := m.GenerateContent(ctx, parts...)
	if err != nil {
		return nil, nil, fmt.Errorf("gemini vision: %w", err)
	}
	usage := usageFrom(resp, g.modelName)

	var payload []core.ImageSummary
	if err := coerceJSONArray(responseText(resp), &payload); err != nil {
		return nil, usage, fmt.Errorf("vision returned unparsable output: %w", err)
	}

	// One summary per image, padded or truncated to input length so
	// callers can rely on positional pairing.
	out := make([]core.ImageSummary, len(images))
	for i := range out {
		if i < len(payload) {
			out[i] = payload[i]
		}
		out[i].Description = strings.TrimSpace(out[i].Description)
		if out[i].Confidence < 0 {
			out[i].Confidence = 0
		}
		if out[i].Confidence > 1 {
			out[i].Confidence = 1
		}
	}
	return out, usage, nil
}

// imageFormat converts a mime type like image/jpeg into the bare format
// name the genai SDK expects.
func imageFormat(mime string) string {
	if f, ok := strings.CutPrefix(mime, "image/"); ok && f != "" {
		return f
	}
	return "png"
}

var _ core.VisionClient = (*GeminiVision)(nil)
