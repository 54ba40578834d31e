package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fairyhunter13/docqueue/internal/dispatch"
	"github.com/fairyhunter13/docqueue/internal/domain"
)

// SenseVoice wraps the sensevoice transcription runner. The runner writes a
// markdown transcript and a result.json with timing and language metadata.
type SenseVoice struct {
	run Runner
	bin string
}

// NewSenseVoice constructs the engine.
func NewSenseVoice(run Runner) *SenseVoice {
	return &SenseVoice{run: run, bin: "sensevoice"}
}

// Info implements domain.Engine.
func (e *SenseVoice) Info() domain.EngineInfo {
	return domain.EngineInfo{
		Name:        dispatch.EngineSenseVoice,
		DisplayName: "SenseVoice",
		Description: "Speech transcription with language and emotion detection",
		Category:    "audio",
		Extensions:  []string{".mp3", ".wav", ".m4a", ".flac", ".ogg", ".aac", ".wma", ".opus"},
	}
}

// Available implements domain.Engine.
func (e *SenseVoice) Available() error {
	return binaryAvailable("sensevoice", e.bin)
}

// Parse implements domain.Engine.
func (e *SenseVoice) Parse(ctx context.Context, req domain.ParseRequest) error {
	lang := dispatch.NormalizeLang(req.Options.String("lang", ""))
	err := e.run.Run(ctx, e.bin,
		"--input", req.FilePath,
		"--output", req.OutputDir,
		"--language", lang,
		"--itn",
	)
	if err != nil {
		return fmt.Errorf("op=engine.sensevoice: %w", err)
	}
	return nil
}

// Video demuxes the audio track with ffmpeg and feeds it to the sensevoice
// runner. keep_audio retains the intermediate wav next to the transcript.
type Video struct {
	run       Runner
	ffmpeg    string
	transcrib *SenseVoice
}

// NewVideo constructs the engine; ffmpegBin is configurable because some
// deployments ship a patched build.
func NewVideo(run Runner, ffmpegBin string) *Video {
	if ffmpegBin == "" {
		ffmpegBin = "ffmpeg"
	}
	return &Video{run: run, ffmpeg: ffmpegBin, transcrib: NewSenseVoice(run)}
}

// Info implements domain.Engine.
func (e *Video) Info() domain.EngineInfo {
	return domain.EngineInfo{
		Name:        dispatch.EngineVideo,
		DisplayName: "Video",
		Description: "Video audio-track extraction and transcription",
		Category:    "video",
		Extensions:  []string{".mp4", ".avi", ".mkv", ".mov", ".flv", ".webm", ".m4v", ".wmv", ".mpeg", ".mpg"},
	}
}

// Available implements domain.Engine. Needs both ffmpeg and the
// transcription runner.
func (e *Video) Available() error {
	if err := binaryAvailable("video", e.ffmpeg); err != nil {
		return err
	}
	return e.transcrib.Available()
}

// Parse implements domain.Engine.
func (e *Video) Parse(ctx context.Context, req domain.ParseRequest) error {
	stem := strings.TrimSuffix(req.FileName, filepath.Ext(req.FileName))
	wav := filepath.Join(req.OutputDir, stem+".wav")
	// 16 kHz mono pcm is what the transcription model expects.
	err := e.run.Run(ctx, e.ffmpeg,
		"-y", "-i", req.FilePath,
		"-vn", "-acodec", "pcm_s16le", "-ar", "16000", "-ac", "1",
		wav,
	)
	if err != nil {
		return fmt.Errorf("op=engine.video: demux: %w", err)
	}
	audioReq := req
	audioReq.FilePath = wav
	audioReq.FileName = stem + ".wav"
	if err := e.transcrib.Parse(ctx, audioReq); err != nil {
		return fmt.Errorf("op=engine.video: %w", err)
	}
	if !req.Options.Bool("keep_audio", false) {
		if err := os.Remove(wav); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("op=engine.video: remove wav: %w", err)
		}
	}
	return nil
}
