// Package pipeline runs the whole transcription of one recording: segment,
// transcribe chunks, attribute speakers, assemble and write artifacts.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/alnah/transcribe-long/internal/assemble"
	"github.com/alnah/transcribe-long/internal/audio"
	"github.com/alnah/transcribe-long/internal/diarize"
	"github.com/alnah/transcribe-long/internal/format"
	"github.com/alnah/transcribe-long/internal/reformat"
	"github.com/alnah/transcribe-long/internal/silence"
	"github.com/alnah/transcribe-long/internal/speaker"
	"github.com/alnah/transcribe-long/internal/transcribe"
	"github.com/alnah/transcribe-long/internal/workdir"
)

// segmenter is satisfied by *audio.Segmenter.
type segmenter interface {
	Segment(ctx context.Context, input string, dir workdir.Dir) (audio.Segmentation, error)
}

var _ segmenter = (*audio.Segmenter)(nil)

// Output summarizes a run.
type Output struct {
	Workdir      workdir.Dir
	Manifest     workdir.Manifest
	Segmentation audio.Segmentation
	Transcript   assemble.Transcript
	Artifacts    assemble.Artifacts
	// Cached counts chunks whose transcript came from a previous run.
	Cached int
	// Speakers counts distinct speakers in the final transcript.
	Speakers int
}

// Runner wires the pipeline components for one configuration.
type Runner struct {
	segmenter   segmenter
	service     transcribe.Service
	opts        transcribe.Options
	parallel    int
	root        string
	diarizer    diarize.Diarizer
	reformatter reformat.Reformatter
	progress    transcribe.Progress
	status      func(string)
	now         func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithParallel sets the number of chunks transcribed concurrently.
func WithParallel(n int) Option {
	return func(r *Runner) { r.parallel = n }
}

// WithRoot sets the directory under which working directories are derived.
func WithRoot(root string) Option {
	return func(r *Runner) { r.root = root }
}

// WithDiarizer enables recording-wide speaker alignment in ModeWords.
func WithDiarizer(d diarize.Diarizer) Option {
	return func(r *Runner) { r.diarizer = d }
}

// WithReformatter enables reformatting of the assembled transcript.
func WithReformatter(f reformat.Reformatter) Option {
	return func(r *Runner) { r.reformatter = f }
}

// WithProgress sets the per-chunk progress callback.
func WithProgress(fn transcribe.Progress) Option {
	return func(r *Runner) { r.progress = fn }
}

// WithStatus sets a callback receiving stage and warning messages.
func WithStatus(fn func(string)) Option {
	return func(r *Runner) { r.status = fn }
}

// WithNow sets the clock used for the manifest.
func WithNow(fn func() time.Time) Option {
	return func(r *Runner) { r.now = fn }
}

// NewRunner creates a Runner. seg is normally an *audio.Segmenter.
func NewRunner(seg segmenter, svc transcribe.Service, opts transcribe.Options, options ...Option) *Runner {
	r := &Runner{
		segmenter: seg,
		service:   svc,
		opts:      opts,
		parallel:  2,
		root:      workdir.DefaultRoot,
		status:    func(string) {},
		now:       time.Now,
	}
	for _, o := range options {
		o(r)
	}
	return r
}

// Run derives the working directory of input and processes it.
func (r *Runner) Run(ctx context.Context, input string) (Output, error) {
	dir, err := workdir.Derive(input, r.root)
	if err != nil {
		return Output{}, err
	}
	return r.RunIn(ctx, dir)
}

// RunIn processes dir.Input inside dir. When some chunks fail the error is
// a *transcribe.AggregateError; their siblings' transcripts are cached so a
// rerun only retries the failures.
func (r *Runner) RunIn(ctx context.Context, dir workdir.Dir) (Output, error) {
	out := Output{Workdir: dir}

	if err := dir.Ensure(); err != nil {
		return out, err
	}
	r.status("Preparing audio in " + dir.Path)
	seg, err := r.segmenter.Segment(ctx, dir.Input, dir)
	if err != nil {
		return out, err
	}
	out.Segmentation = seg
	r.status(fmt.Sprintf("Audio %s, %d silences, %d chunks", format.Duration(seg.Duration), seg.Silences, len(seg.Chunks)))

	model := r.opts.Model
	if model == "" {
		model = transcribe.DefaultModel(r.opts.Mode)
	}
	out.Manifest = dir.NewManifest(r.opts.Mode.String(), model, r.now())
	out.Manifest.Duration = format.Seconds(seg.Duration)
	out.Manifest.Cuts = silence.Chosen(seg.Cuts)
	for _, c := range seg.Chunks {
		out.Manifest.Chunks = append(out.Manifest.Chunks, workdir.ChunkSpan{
			Index: c.Index,
			File:  filepath.Base(c.Path),
			Start: format.Seconds(c.StartTime),
			End:   format.Seconds(c.EndTime),
		})
	}
	if err := dir.WriteManifest(out.Manifest); err != nil {
		return out, err
	}

	r.status(fmt.Sprintf("Transcribing %d chunks (%s, %s, %d parallel)...", len(seg.Chunks), r.opts.Mode, model, r.parallel))
	results, err := transcribe.TranscribeAll(ctx, seg.Chunks, r.service, r.opts, transcribe.NewDirStore(dir), r.parallel,
		transcribe.WithProgress(r.progress))
	for _, res := range results {
		if res.Cached {
			out.Cached++
		}
	}
	if err != nil {
		return out, fmt.Errorf("transcribe: %w", err)
	}

	parts, turns, roster, err := r.attribute(ctx, dir, results)
	if err != nil {
		return out, err
	}
	out.Speakers = countSpeakers(turns)

	assembler := assemble.NewAssembler(assemble.WithReformatter(r.reformatter))
	if r.reformatter != nil {
		r.status("Reformatting transcript...")
	}
	transcript, err := assembler.Assemble(ctx, parts)
	if err != nil {
		return out, err
	}
	for _, w := range transcript.Warnings {
		r.status("Warning: " + w)
	}
	out.Transcript = transcript

	records := make([]transcribe.Record, len(results))
	for i, res := range results {
		records[i] = transcribe.NewRecord(res.Chunk, res.Result)
	}
	arts, err := assemble.WriteArtifacts(dir, transcript, records, roster)
	if err != nil {
		return out, err
	}
	out.Artifacts = arts
	return out, nil
}

// attribute turns chunk results into assembler parts. Speaker-attributed
// modes render one part for the whole recording; roster is non-empty only
// for per-chunk diarization.
func (r *Runner) attribute(ctx context.Context, dir workdir.Dir, results []transcribe.ChunkResult) ([]assemble.Part, []speaker.Turn, []speaker.ID, error) {
	switch {
	case r.opts.Mode == transcribe.ModeDiarize:
		chunks := make([]speaker.ChunkSegments, 0, len(results))
		for _, res := range results {
			d, _ := res.Result.(transcribe.Diarized)
			chunks = append(chunks, speaker.ChunkSegments{Index: res.Chunk.Index, Segments: d.Segments})
		}
		turns := speaker.StitchDiarized(chunks)
		return []assemble.Part{{Index: 0, Text: speaker.RenderTurns(turns)}}, turns, speaker.Roster(turns), nil

	case r.opts.Mode == transcribe.ModeWords && r.diarizer != nil:
		r.status("Diarizing speakers...")
		segments, err := r.diarizer.Diarize(ctx, dir.AudioPath())
		if err != nil {
			return nil, nil, nil, fmt.Errorf("diarize: %w", err)
		}
		chunks := make([]speaker.ChunkWords, 0, len(results))
		for _, res := range results {
			w, _ := res.Result.(transcribe.TimedWords)
			chunks = append(chunks, speaker.ChunkWords{
				Index: res.Chunk.Index,
				Start: res.Chunk.StartTime.Seconds(),
				Words: w.Words,
			})
		}
		turns := speaker.AlignWords(chunks, segments)
		return []assemble.Part{{Index: 0, Text: speaker.RenderTurns(turns)}}, turns, nil, nil

	default:
		parts := make([]assemble.Part, len(results))
		for i, res := range results {
			parts[i] = assemble.Part{Index: res.Chunk.Index, Text: res.Result.Text()}
		}
		return parts, nil, nil, nil
	}
}

func countSpeakers(turns []speaker.Turn) int {
	seen := make(map[speaker.ID]bool)
	for _, t := range turns {
		if t.Speaker.Kind() != speaker.KindUnknown {
			seen[t.Speaker] = true
		}
	}
	return len(seen)
}
