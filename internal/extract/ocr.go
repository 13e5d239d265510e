package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/gabriel-vasile/mimetype"
	"github.com/tmc/langchaingo/llms"
	"google.golang.org/api/option"
)

// OCREngine recognises the text in a whole image.
type OCREngine interface {
	Recognize(ctx context.Context, img []byte, mimeType string) (string, error)
}

// OCR is the image extractor.
type OCR struct {
	Engine OCREngine
}

func (o OCR) Extract(ctx context.Context, data []byte) (string, error) {
	if len(data) == 0 {
		return "", errors.New("empty image")
	}
	return o.Engine.Recognize(ctx, data, mimetype.Detect(data).String())
}

const transcribeInstruction = `Transcribe all of the text visible in this image exactly as written, keeping the reading order and line breaks. Output only the transcribed text, without commentary. If the image contains no text, output nothing.`

// ModelOCR asks a local multimodal model (llava, llama3.2-vision, ...) to
// transcribe the image.
type ModelOCR struct {
	Model llms.Model
}

func (o ModelOCR) Recognize(ctx context.Context, img []byte, mimeType string) (string, error) {
	msgContent := []llms.MessageContent{
		{
			Role: llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{
				llms.BinaryPart(mimeType, img),
				llms.TextContent{Text: transcribeInstruction},
			},
		},
	}
	res, err := o.Model.GenerateContent(ctx, msgContent, llms.WithTemperature(0))
	if err != nil {
		return "", fmt.Errorf("vision model: %w", err)
	}
	if len(res.Choices) == 0 {
		return "", errors.New("vision model returned no choices")
	}
	return strings.TrimSpace(res.Choices[0].Content), nil
}

// VisionOCR uses Google Cloud Vision document text detection.
type VisionOCR struct {
	client *vision.ImageAnnotatorClient
}

func NewVisionOCR(ctx context.Context, credentialsFile string) (*VisionOCR, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := vision.NewImageAnnotatorClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("vision client: %w", err)
	}
	return &VisionOCR{client: client}, nil
}

func (v *VisionOCR) Recognize(ctx context.Context, img []byte, _ string) (string, error) {
	req := &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{{
			Image:    &visionpb.Image{Content: img},
			Features: []*visionpb.Feature{{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION}},
		}},
	}
	resp, err := v.client.BatchAnnotateImages(ctx, req)
	if err != nil {
		return "", fmt.Errorf("vision BatchAnnotateImages: %w", err)
	}
	if resp == nil || len(resp.Responses) == 0 || resp.Responses[0] == nil {
		return "", nil
	}
	r0 := resp.Responses[0]
	if r0.Error != nil && r0.Error.Message != "" {
		return "", fmt.Errorf("vision annotate error: %s", r0.Error.Message)
	}
	if r0.FullTextAnnotation == nil {
		return "", nil
	}
	return strings.TrimSpace(r0.FullTextAnnotation.Text), nil
}

func (v *VisionOCR) Close() error {
	if v == nil || v.client == nil {
		return nil
	}
	return v.client.Close()
}
