package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChooseEngine(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name     string
		fileName string
		backend  string
		want     string
	}{
		{"pdf default", "report.pdf", "", EngineMinerU},
		{"pdf auto", "report.pdf", "auto", EngineMinerU},
		{"pdf pipeline", "report.PDF", "pipeline", EngineMinerU},
		{"image deepseek", "scan.jpg", "deepseek-ocr", EngineDeepSeekOCR},
		{"image paddle", "scan.png", "paddleocr-vl", EnginePaddleOCRVL},
		{"ocr backend on non-image falls through", "notes.txt", "deepseek-ocr", EngineMarkItDown},
		{"audio by extension", "meeting.mp3", "", EngineSenseVoice},
		{"audio explicit overrides extension", "clip.mp4", "sensevoice", EngineSenseVoice},
		{"video by extension", "clip.mkv", "", EngineVideo},
		{"video explicit", "track.wav", "video", EngineVideo},
		{"fasta by extension", "genome.fna", "", EngineFASTA},
		{"fasta explicit", "seqs.txt", "fasta", EngineFASTA},
		{"genbank by extension", "plasmid.gbk", "", EngineGenBank},
		{"office doc", "slides.pptx", "", EngineMarkItDown},
		{"no extension", "README", "", EngineMarkItDown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, ChooseEngine(tc.fileName, tc.backend))
		})
	}
}

func TestNormalizeLang(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "auto", NormalizeLang(""))
	assert.Equal(t, "zh", NormalizeLang("ch"))
	assert.Equal(t, "ko", NormalizeLang("korean"))
	assert.Equal(t, "ja", NormalizeLang("japan"))
	assert.Equal(t, "en", NormalizeLang("en"))
	assert.Equal(t, "fr", NormalizeLang("fr"))
}
