package transcribe

import (
	"fmt"
	"math"
	"path/filepath"

	"github.com/alnah/transcribe-long/internal/audio"
	"github.com/alnah/transcribe-long/internal/workdir"
)

// Store caches per-chunk results across runs.
type Store interface {
	// Load returns a stored result for chunk, if one was produced with the
	// same request options.
	Load(chunk audio.Chunk, opts Options) (Result, bool)
	// Save persists r for chunk and the options that produced it. It must
	// not leave a partial file behind.
	Save(chunk audio.Chunk, opts Options, r Result) error
}

// Record is the on-disk form of a chunk result, also emitted as one line of
// transcript.jsonl.
type Record struct {
	Index     int               `json:"index"`
	ChunkFile string            `json:"chunk_file"`
	Mode      string            `json:"mode"`
	Start     float64           `json:"start"`
	End       float64           `json:"end"`
	Text      string            `json:"text"`
	Words     []TimedWord       `json:"words,omitempty"`
	Segments  []DiarizedSegment `json:"segments,omitempty"`

	// Request options, kept only in the per-chunk cache files.
	Model    string `json:"model,omitempty"`
	Language string `json:"language,omitempty"`
	Prompt   string `json:"prompt,omitempty"`
}

// NewRecord builds the record for chunk and r.
func NewRecord(chunk audio.Chunk, r Result) Record {
	rec := Record{
		Index:     chunk.Index,
		ChunkFile: filepath.Base(chunk.Path),
		Mode:      r.Mode().String(),
		Start:     chunk.StartTime.Seconds(),
		End:       chunk.EndTime.Seconds(),
		Text:      r.Text(),
	}
	switch v := r.(type) {
	case TimedWords:
		rec.Words = v.Words
	case Diarized:
		rec.Segments = v.Segments
	}
	return rec
}

// Result rebuilds the result variant named by the record's mode.
func (rec Record) Result() (Result, error) {
	mode, err := ParseMode(rec.Mode)
	if err != nil {
		return nil, err
	}
	switch mode {
	case ModeWords:
		return TimedWords{Content: rec.Text, Words: rec.Words}, nil
	case ModeDiarize:
		return Diarized{Segments: rec.Segments}, nil
	default:
		return PlainText{Content: rec.Text}, nil
	}
}

// DirStore keeps results in the working directory: transcripts/chunk_NNN.json
// for text and word results, transcripts/chunk_NNN_diarized.json for
// diarized ones.
type DirStore struct {
	dir workdir.Dir
}

var _ Store = DirStore{}

// NewDirStore returns a Store backed by dir.
func NewDirStore(dir workdir.Dir) DirStore {
	return DirStore{dir: dir}
}

func (s DirStore) path(index int, mode Mode) string {
	if mode == ModeDiarize {
		return s.dir.DiarizedTranscriptPath(index)
	}
	return s.dir.ChunkTranscriptPath(index)
}

// spanTolerance absorbs float rounding of chunk bounds, in seconds.
const spanTolerance = 1e-3

// Load returns the cached result when it was produced for the same chunk
// file and span, with the same mode, model, language and prompt.
func (s DirStore) Load(chunk audio.Chunk, opts Options) (Result, bool) {
	var rec Record
	if err := workdir.ReadJSON(s.path(chunk.Index, opts.Mode), &rec); err != nil {
		return nil, false
	}
	if rec.Index != chunk.Index || rec.Mode != opts.Mode.String() || rec.ChunkFile != filepath.Base(chunk.Path) {
		return nil, false
	}
	if math.Abs(rec.Start-chunk.StartTime.Seconds()) > spanTolerance ||
		math.Abs(rec.End-chunk.EndTime.Seconds()) > spanTolerance {
		return nil, false
	}
	if rec.Model != effectiveModel(opts) || rec.Language != opts.Language || rec.Prompt != opts.Prompt {
		return nil, false
	}
	r, err := rec.Result()
	if err != nil {
		return nil, false
	}
	return r, true
}

// Save writes the result atomically.
func (s DirStore) Save(chunk audio.Chunk, opts Options, r Result) error {
	rec := NewRecord(chunk, r)
	rec.Model = effectiveModel(opts)
	rec.Language = opts.Language
	rec.Prompt = opts.Prompt
	if err := workdir.WriteJSON(s.path(chunk.Index, r.Mode()), rec); err != nil {
		return fmt.Errorf("persist chunk %d: %w", chunk.Index, err)
	}
	return nil
}

// effectiveModel resolves an empty model to the mode default, so that an
// explicit default and an omitted one share cache entries.
func effectiveModel(opts Options) string {
	if opts.Model != "" {
		return opts.Model
	}
	return DefaultModel(opts.Mode)
}
