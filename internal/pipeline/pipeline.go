package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"time"

	"podscrub/internal/analysis"
	"podscrub/internal/audioedit"
	"podscrub/internal/config"
	"podscrub/internal/fileutil"
	"podscrub/internal/logging"
	"podscrub/internal/media/ffmpeg"
	"podscrub/internal/media/ffprobe"
	"podscrub/internal/queue"
	"podscrub/internal/services"
	"podscrub/internal/services/llm"
	"podscrub/internal/storage"
)

// ProgressFunc receives (percent, label) updates as stages complete their
// work. Implementations must tolerate being called from the worker goroutine.
type ProgressFunc func(percent int, label string)

// Analyzer is the model-provider surface the orchestrator needs.
type Analyzer interface {
	AnalyzeAudio(ctx context.Context, audioPath string) (llm.AudioAnalysis, error)
	Refine(ctx context.Context, transcript string, detections []analysis.AdDetection) (llm.Refinement, error)
}

// Editor performs the physical audio edits.
type Editor interface {
	RemoveAds(ctx context.Context, input, output string, ads []analysis.AdDetection, totalDuration float64) error
	ExtractAdSegments(ctx context.Context, input, dir string, ads []analysis.AdDetection) ([]string, error)
}

// Downloader fetches the episode's source audio.
type Downloader interface {
	Download(ctx context.Context, sourceURL, dest string) error
}

// Prober reads container metadata from a local audio file.
type Prober func(ctx context.Context, path string) (ffprobe.Result, error)

// ResultStore is the queue subset the orchestrator writes to.
type ResultStore interface {
	SaveResult(ctx context.Context, result *queue.ProcessingResult) error
	AppendUsage(ctx context.Context, rec queue.UsageRecord) error
	JobCost(ctx context.Context, jobID int64) (float64, error)
}

// Orchestrator runs the fixed stage sequence for one claimed job.
type Orchestrator struct {
	cfg        *config.Config
	store      ResultStore
	downloader Downloader
	analyzer   Analyzer
	editor     Editor
	uploader   storage.Uploader
	probe      Prober
	logger     *slog.Logger
}

// Dependencies carries the orchestrator's collaborators for injection.
type Dependencies struct {
	Downloader Downloader
	Analyzer   Analyzer
	Editor     Editor
	Uploader   storage.Uploader
	Probe      Prober
}

// New wires an orchestrator with production collaborators built from the
// configuration.
func New(cfg *config.Config, store ResultStore, logger *slog.Logger) *Orchestrator {
	timeout := time.Duration(cfg.FFmpeg.TimeoutSeconds) * time.Second
	cutter := ffmpeg.New(ffmpeg.WithBinary(cfg.FFmpeg.Binary), ffmpeg.WithTimeout(timeout))
	client := llm.NewClient(llm.Config{
		APIKey:         cfg.LLM.APIKey,
		BaseURL:        cfg.LLM.BaseURL,
		AudioModel:     cfg.LLM.AudioModel,
		TextModel:      cfg.LLM.TextModel,
		TimeoutSeconds: cfg.LLM.TimeoutSeconds,
	})
	return NewWithDependencies(cfg, store, Dependencies{
		Downloader: NewHTTPDownloader(0),
		Analyzer:   client,
		Editor:     audioedit.NewEditor(cutter, logging.NewComponentLogger(logger, "audioedit")),
		Uploader:   storage.New(cfg.Storage),
		Probe: func(ctx context.Context, path string) (ffprobe.Result, error) {
			return ffprobe.Inspect(ctx, cfg.FFmpeg.ProbeBinary, path)
		},
	}, logger)
}

// NewWithDependencies wires an orchestrator with explicit collaborators.
func NewWithDependencies(cfg *config.Config, store ResultStore, deps Dependencies, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Orchestrator{
		cfg:        cfg,
		store:      store,
		downloader: deps.Downloader,
		analyzer:   deps.Analyzer,
		editor:     deps.Editor,
		uploader:   deps.Uploader,
		probe:      deps.Probe,
		logger:     logging.NewComponentLogger(logger, "pipeline"),
	}
}

// Process runs every stage for the job. A returned error means the job
// failed terminally; already-uploaded artifacts from earlier stages are left
// in place. Local temp files are removed on both paths.
func (o *Orchestrator) Process(ctx context.Context, job *queue.Job, progress ProgressFunc) error {
	ctx = services.WithJobID(ctx, job.ID)
	ctx = services.WithEpisode(ctx, job.EpisodeGUID)
	logger := o.logger.With(logging.Args(logging.Int64(logging.FieldJobID, job.ID), logging.String(logging.FieldEpisode, job.EpisodeGUID))...)

	workDir := filepath.Join(o.cfg.Paths.WorkDir, fmt.Sprintf("job-%d", job.ID))
	if err := fileutil.EnsureDir(workDir); err != nil {
		return fmt.Errorf("create work dir: %w", err)
	}
	defer func() {
		if err := fileutil.RemoveAll(workDir); err != nil {
			logger.Warn("temp cleanup failed", logging.Error(err))
		}
	}()

	timings := newStageTimings()

	// Stage 1: download.
	report(progress, 10, "downloading audio")
	ext := audioExtension(job.AudioURL)
	originalPath := filepath.Join(workDir, "original"+ext)
	done := timings.begin("download")
	if err := o.downloader.Download(ctx, job.AudioURL, originalPath); err != nil {
		return fmt.Errorf("download audio: %w", err)
	}
	probed, err := o.probe(ctx, originalPath)
	if err != nil {
		return fmt.Errorf("probe downloaded audio: %w", err)
	}
	originalDuration := probed.DurationSeconds()
	if originalDuration <= 0 {
		return fmt.Errorf("%w: downloaded audio has no duration", services.ErrValidation)
	}
	done()

	// Stage 2: audio-native analysis.
	report(progress, 30, "analyzing audio")
	done = timings.begin("analyze")
	audioResult, err := o.analyzer.AnalyzeAudio(ctx, originalPath)
	if err != nil {
		return fmt.Errorf("analyze audio: %w", err)
	}
	o.recordUsage(ctx, job.ID, "analyze", audioResult.Usage, logger)
	done()
	logger.Info("audio analysis complete",
		logging.Int("detections", len(audioResult.Detections)),
		logging.Int("transcript_chars", len(audioResult.Transcript)))

	// Stage 3: text refinement. Provider failures fall back to the audio
	// detections unmodified.
	report(progress, 50, "refining detections")
	done = timings.begin("refine")
	detections := audioResult.Detections
	var chapterCandidates []analysis.Chapter
	refinement, err := o.analyzer.Refine(ctx, audioResult.Transcript, audioResult.Detections)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("refine detections: %w", ctx.Err())
		}
		logger.Warn("text refinement unavailable, continuing with audio detections",
			logging.Error(services.Wrap(services.ErrProviderDegraded, "refine", "llm", "provider error", err)))
	} else {
		detections = analysis.MergeDetections(audioResult.Detections, refinement.Detections)
		chapterCandidates = refinement.Chapters
		o.recordUsage(ctx, job.ID, "refine", refinement.Usage, logger)
	}
	done()
	o.checkCostCeiling(ctx, job.ID, logger)

	// Stage 4: chapters.
	report(progress, 60, "generating chapters")
	done = timings.begin("chapters")
	chapters := buildChapters(chapterCandidates, detections, originalDuration)
	done()

	// Stage 5: audio edit plus individual ad-segment uploads.
	report(progress, 70, "editing audio")
	done = timings.begin("edit")
	cleanPath := filepath.Join(workDir, "clean"+ext)
	if err := o.editor.RemoveAds(ctx, originalPath, cleanPath, detections, originalDuration); err != nil {
		return fmt.Errorf("edit audio: %w", err)
	}
	o.uploadAdSegments(ctx, job, originalPath, filepath.Join(workDir, "ads"), detections, logger)
	done()

	// Stage 6: upload processed audio.
	report(progress, 85, "uploading processed audio")
	done = timings.begin("upload_audio")
	processedURL, err := o.uploader.UploadFromFile(ctx, storage.ObjectKey(job.PodcastID, job.EpisodeGUID, "clean"+ext), cleanPath)
	if err != nil {
		return fmt.Errorf("upload processed audio: %w", err)
	}
	done()

	// Stage 7: upload processing artifacts.
	report(progress, 95, "uploading artifacts")
	done = timings.begin("upload_artifacts")
	if err := o.uploadArtifacts(ctx, job, workDir, audioResult.Transcript, detections, chapters, timings); err != nil {
		return fmt.Errorf("upload artifacts: %w", err)
	}
	done()

	// Stage 8: persist the result.
	report(progress, 100, "persisting result")
	processedProbe, err := o.probe(ctx, cleanPath)
	if err != nil {
		return fmt.Errorf("probe processed audio: %w", err)
	}
	cost, err := o.store.JobCost(ctx, job.ID)
	if err != nil {
		return fmt.Errorf("sum job cost: %w", err)
	}
	result := &queue.ProcessingResult{
		JobID:             job.ID,
		PodcastID:         job.PodcastID,
		EpisodeID:         job.EpisodeGUID,
		OriginalURL:       job.AudioURL,
		ProcessedURL:      processedURL,
		OriginalDuration:  originalDuration,
		ProcessedDuration: processedProbe.DurationSeconds(),
		AdsRemoved:        len(detections),
		Chapters:          chapters,
		ProcessingCost:    cost,
		ProcessedAt:       time.Now().UTC(),
	}
	if err := o.store.SaveResult(ctx, result); err != nil {
		return fmt.Errorf("persist result: %w", err)
	}

	logger.Info("episode processed",
		logging.Int("ads_removed", result.AdsRemoved),
		logging.Float64("original_duration", result.OriginalDuration),
		logging.Float64("processed_duration", result.ProcessedDuration),
		logging.Float64("cost", result.ProcessingCost))
	return nil
}

func (o *Orchestrator) recordUsage(ctx context.Context, jobID int64, operation string, usage llm.Usage, logger *slog.Logger) {
	rec := queue.UsageRecord{
		JobID:        jobID,
		Model:        usage.Model,
		Operation:    operation,
		InputTokens:  usage.PromptTokens,
		OutputTokens: usage.CompletionTokens,
		Cost:         usage.Cost,
		DurationMS:   usage.Duration.Milliseconds(),
	}
	if err := o.store.AppendUsage(ctx, rec); err != nil {
		logger.Warn("usage record not persisted", logging.String("operation", operation), logging.Error(err))
	}
}

// checkCostCeiling warns when accumulated model spend exceeds the configured
// ceiling. The ceiling is advisory; processing always continues.
func (o *Orchestrator) checkCostCeiling(ctx context.Context, jobID int64, logger *slog.Logger) {
	ceiling := o.cfg.LLM.CostCeiling
	if ceiling <= 0 {
		return
	}
	total, err := o.store.JobCost(ctx, jobID)
	if err != nil {
		logger.Warn("cost ceiling check skipped", logging.Error(err))
		return
	}
	if total > ceiling {
		logger.Warn("llm spend exceeded cost ceiling",
			logging.Float64("cost", total),
			logging.Float64("ceiling", ceiling))
	}
}

func (o *Orchestrator) uploadAdSegments(ctx context.Context, job *queue.Job, originalPath, adDir string, detections []analysis.AdDetection, logger *slog.Logger) {
	if len(detections) == 0 {
		return
	}
	paths, err := o.editor.ExtractAdSegments(ctx, originalPath, adDir, detections)
	if err != nil {
		logger.Warn("ad segment extraction aborted", logging.Error(err))
		return
	}
	for _, p := range paths {
		key := storage.ObjectKey(job.PodcastID, job.EpisodeGUID, "ads/"+filepath.Base(p))
		if _, err := o.uploader.UploadFromFile(ctx, key, p); err != nil {
			logger.Warn("skipping ad segment that failed to upload",
				logging.String("segment", filepath.Base(p)),
				logging.Error(err))
		}
	}
}

// buildChapters normalizes the refinement pass's chapter candidates, drops
// any chapter that lies entirely inside a removed ad interval, and falls back
// to a single full-episode chapter when nothing usable remains.
func buildChapters(candidates []analysis.Chapter, ads []analysis.AdDetection, totalDuration float64) []analysis.Chapter {
	merged := analysis.MergeChapters(candidates)
	kept := merged[:0]
	for _, ch := range merged {
		if ch.EndTime > totalDuration {
			ch.EndTime = totalDuration
		}
		if ch.StartTime >= ch.EndTime {
			continue
		}
		if insideAd(ch, ads) {
			continue
		}
		kept = append(kept, ch)
	}
	if len(kept) == 0 {
		return []analysis.Chapter{{Title: "Full Episode", StartTime: 0, EndTime: totalDuration}}
	}
	return kept
}

func insideAd(ch analysis.Chapter, ads []analysis.AdDetection) bool {
	for _, ad := range ads {
		if ch.StartTime >= ad.StartTime && ch.EndTime <= ad.EndTime {
			return true
		}
	}
	return false
}

func report(progress ProgressFunc, percent int, label string) {
	if progress != nil {
		progress(percent, label)
	}
}

func audioExtension(audioURL string) string {
	parsed, err := url.Parse(audioURL)
	if err != nil {
		return ".mp3"
	}
	ext := strings.ToLower(path.Ext(parsed.Path))
	switch ext {
	case ".mp3", ".m4a", ".aac", ".ogg", ".opus", ".wav", ".flac":
		return ext
	default:
		return ".mp3"
	}
}
