// Package dispatch maps a task's file type and requested backend to the
// engine that should process it. The mapping is a pure function so both the
// worker (execution) and the API (validation, engine listing) agree on it.
package dispatch

import (
	"path/filepath"
	"strings"
)

// Engine names. These are registry keys, not binary paths.
const (
	EngineMinerU      = "mineru"
	EngineDeepSeekOCR = "deepseek-ocr"
	EnginePaddleOCRVL = "paddleocr-vl"
	EngineSenseVoice  = "sensevoice"
	EngineVideo       = "video"
	EngineMarkItDown  = "markitdown"
	EngineFASTA       = "fasta"
	EngineGenBank     = "genbank"
)

var pdfImageExts = map[string]bool{
	".pdf": true, ".png": true, ".jpg": true, ".jpeg": true,
	".bmp": true, ".tiff": true, ".tif": true, ".webp": true,
}

var audioExts = map[string]bool{
	".mp3": true, ".wav": true, ".m4a": true, ".flac": true,
	".ogg": true, ".aac": true, ".wma": true, ".opus": true,
}

var videoExts = map[string]bool{
	".mp4": true, ".avi": true, ".mkv": true, ".mov": true, ".flv": true,
	".webm": true, ".m4v": true, ".wmv": true, ".mpeg": true, ".mpg": true,
}

var fastaExts = map[string]bool{
	".fasta": true, ".fa": true, ".fna": true, ".ffn": true,
	".faa": true, ".frn": true, ".fas": true,
}

var genbankExts = map[string]bool{
	".gb": true, ".gbk": true, ".genbank": true, ".gbff": true,
}

// ChooseEngine resolves the engine for fileName processed with backend.
// An explicit backend wins where it applies; for pdf/image files the OCR
// backends select their engine and anything else falls through to MinerU.
// Unmatched file types go to the generic markitdown converter.
func ChooseEngine(fileName, backend string) string {
	ext := strings.ToLower(filepath.Ext(fileName))
	switch backend {
	case EngineSenseVoice:
		return EngineSenseVoice
	case EngineVideo:
		return EngineVideo
	case EngineFASTA:
		return EngineFASTA
	case EngineGenBank:
		return EngineGenBank
	}
	switch {
	case pdfImageExts[ext]:
		switch backend {
		case EngineDeepSeekOCR:
			return EngineDeepSeekOCR
		case EnginePaddleOCRVL:
			return EnginePaddleOCRVL
		default:
			return EngineMinerU
		}
	case audioExts[ext]:
		return EngineSenseVoice
	case videoExts[ext]:
		return EngineVideo
	case fastaExts[ext]:
		return EngineFASTA
	case genbankExts[ext]:
		return EngineGenBank
	default:
		return EngineMarkItDown
	}
}

// langMap translates document-pipeline language codes into the codes the
// speech engines expect.
var langMap = map[string]string{
	"ch":     "zh",
	"en":     "en",
	"korean": "ko",
	"japan":  "ja",
}

// NormalizeLang maps a submission lang code for the audio/video engines.
// Unknown codes pass through unchanged; empty means auto-detect.
func NormalizeLang(lang string) string {
	if lang == "" {
		return "auto"
	}
	if mapped, ok := langMap[lang]; ok {
		return mapped
	}
	return lang
}
