package llm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"podscrub/internal/analysis"
)

const audioAnalysisSystemPrompt = `You are an expert podcast editor. You will receive a podcast episode as audio.
Transcribe it and identify every advertisement: pre-roll and post-roll spots, mid-roll breaks, and host-read sponsor segments embedded in the conversation.
Respond with JSON only, in this shape:
{"transcript":"full transcript text","ads":[{"start":0.0,"end":0.0,"confidence":0.0,"type":"pre-roll|mid-roll|post-roll|embedded","description":"what is being advertised"}]}
Times are seconds from the start. Confidence is 0.0-1.0. Report an empty ads array when the episode has no advertisements.`

const refineSystemPrompt = `You are an expert podcast editor reviewing advertisement detections against the episode transcript.
Tighten each ad's boundaries to the actual sponsor content, drop detections that are not really advertisements, add any host-read sponsor segments the first pass missed, and segment the remaining content into titled chapters.
Respond with JSON only, in this shape:
{"ads":[{"start":0.0,"end":0.0,"confidence":0.0,"type":"pre-roll|mid-roll|post-roll|embedded","description":"..."}],"chapters":[{"title":"...","start":0.0,"end":0.0,"description":"..."}]}`

// AudioAnalysis is the result of the first-pass audio inspection.
type AudioAnalysis struct {
	Transcript string
	Detections []analysis.AdDetection
	Usage      Usage
}

// Refinement is the result of the transcript-based second pass.
type Refinement struct {
	Detections []analysis.AdDetection
	Chapters   []analysis.Chapter
	Usage      Usage
}

type wireDetection struct {
	Start       float64 `json:"start"`
	End         float64 `json:"end"`
	Confidence  float64 `json:"confidence"`
	Type        string  `json:"type"`
	Description string  `json:"description"`
}

type wireChapter struct {
	Title       string  `json:"title"`
	Start       float64 `json:"start"`
	End         float64 `json:"end"`
	Description string  `json:"description"`
}

// AnalyzeAudio sends the audio file to the audio-capable model and returns
// the transcript plus first-pass ad detections.
func (c *Client) AnalyzeAudio(ctx context.Context, audioPath string) (AudioAnalysis, error) {
	var empty AudioAnalysis
	if c.cfg.APIKey == "" {
		return empty, errors.New("llm analyze: api key required")
	}
	if c.cfg.AudioModel == "" {
		return empty, errors.New("llm analyze: audio model required")
	}

	data, err := os.ReadFile(audioPath)
	if err != nil {
		return empty, fmt.Errorf("llm analyze: read audio: %w", err)
	}

	payload := chatCompletionRequest{
		Model: c.cfg.AudioModel,
		Messages: []chatMessage{
			{Role: "system", Content: audioAnalysisSystemPrompt},
			{Role: "user", Parts: []messagePart{
				{Type: "text", Text: "Transcribe this episode and identify all advertisements."},
				{Type: "input_audio", InputAudio: &inputAudio{
					Data:   base64.StdEncoding.EncodeToString(data),
					Format: audioFormat(audioPath),
				}},
			}},
		},
		Temperature:    0,
		ResponseFormat: map[string]string{"type": jsonResponseType},
		Usage:          usageRequest{Include: true},
	}

	content, usage, err := c.completionWithRetry(ctx, payload, "llm analyze")
	if err != nil {
		return empty, err
	}

	var parsed struct {
		Transcript string          `json:"transcript"`
		Ads        []wireDetection `json:"ads"`
	}
	if err := DecodeLLMJSON(content, &parsed); err != nil {
		return empty, fmt.Errorf("llm analyze: parse payload: %w", err)
	}

	return AudioAnalysis{
		Transcript: strings.TrimSpace(parsed.Transcript),
		Detections: toDetections(parsed.Ads, analysis.SourceAudio),
		Usage:      usage,
	}, nil
}

// Refine sends the transcript and the first-pass detections to the text
// model for boundary refinement, a second detection sweep, and chaptering.
func (c *Client) Refine(ctx context.Context, transcript string, detections []analysis.AdDetection) (Refinement, error) {
	var empty Refinement
	if c.cfg.APIKey == "" {
		return empty, errors.New("llm refine: api key required")
	}
	if c.cfg.TextModel == "" {
		return empty, errors.New("llm refine: text model required")
	}
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return empty, errors.New("llm refine: transcript required")
	}

	userPrompt, err := buildRefinePrompt(transcript, detections)
	if err != nil {
		return empty, err
	}

	payload := chatCompletionRequest{
		Model: c.cfg.TextModel,
		Messages: []chatMessage{
			{Role: "system", Content: refineSystemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature:    0,
		ResponseFormat: map[string]string{"type": jsonResponseType},
		Usage:          usageRequest{Include: true},
	}

	content, usage, err := c.completionWithRetry(ctx, payload, "llm refine")
	if err != nil {
		return empty, err
	}

	var parsed struct {
		Ads      []wireDetection `json:"ads"`
		Chapters []wireChapter   `json:"chapters"`
	}
	if err := DecodeLLMJSON(content, &parsed); err != nil {
		return empty, fmt.Errorf("llm refine: parse payload: %w", err)
	}

	chapters := make([]analysis.Chapter, 0, len(parsed.Chapters))
	for _, ch := range parsed.Chapters {
		if ch.End <= ch.Start {
			continue
		}
		chapters = append(chapters, analysis.Chapter{
			Title:       strings.TrimSpace(ch.Title),
			StartTime:   ch.Start,
			EndTime:     ch.End,
			Description: strings.TrimSpace(ch.Description),
		})
	}

	return Refinement{
		Detections: toDetections(parsed.Ads, analysis.SourceText),
		Chapters:   chapters,
		Usage:      usage,
	}, nil
}

func buildRefinePrompt(transcript string, detections []analysis.AdDetection) (string, error) {
	candidates := make([]wireDetection, 0, len(detections))
	for _, d := range detections {
		candidates = append(candidates, wireDetection{
			Start:       d.StartTime,
			End:         d.EndTime,
			Confidence:  d.Confidence,
			Type:        string(d.AdType),
			Description: d.Description,
		})
	}
	encoded, err := json.Marshal(candidates)
	if err != nil {
		return "", fmt.Errorf("llm refine: encode detections: %w", err)
	}
	var sb strings.Builder
	sb.WriteString("First-pass ad detections:\n")
	sb.Write(encoded)
	sb.WriteString("\n\nTranscript:\n")
	sb.WriteString(transcript)
	return sb.String(), nil
}

func toDetections(wires []wireDetection, source analysis.DetectionSource) []analysis.AdDetection {
	detections := make([]analysis.AdDetection, 0, len(wires))
	for _, w := range wires {
		if w.End <= w.Start {
			continue
		}
		confidence := w.Confidence
		if confidence < 0 {
			confidence = 0
		}
		if confidence > 1 {
			confidence = 1
		}
		detections = append(detections, analysis.AdDetection{
			StartTime:   w.Start,
			EndTime:     w.End,
			Confidence:  confidence,
			AdType:      analysis.ParseAdType(w.Type),
			Description: strings.TrimSpace(w.Description),
			Source:      source,
		})
	}
	return detections
}

func audioFormat(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		return "wav"
	case ".m4a", ".mp4", ".aac":
		return "aac"
	case ".ogg", ".opus":
		return "ogg"
	case ".flac":
		return "flac"
	default:
		return "mp3"
	}
}
