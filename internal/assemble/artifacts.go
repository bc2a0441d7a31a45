package assemble

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/alnah/transcribe-long/internal/speaker"
	"github.com/alnah/transcribe-long/internal/transcribe"
	"github.com/alnah/transcribe-long/internal/workdir"
)

// Artifacts lists the files written by WriteArtifacts. Speakers is empty
// when no roster was written.
type Artifacts struct {
	Transcript string
	Records    string
	Speakers   string
}

// WriteArtifacts writes transcript.txt, transcript.jsonl (one record per
// chunk, in index order) and, when roster is non-empty, speakers.yaml.
func WriteArtifacts(dir workdir.Dir, t Transcript, records []transcribe.Record, roster []speaker.ID) (Artifacts, error) {
	out := Artifacts{
		Transcript: dir.TranscriptPath(),
		Records:    dir.RecordsPath(),
	}

	if err := workdir.WriteFileAtomic(out.Transcript, []byte(t.Text+"\n")); err != nil {
		return Artifacts{}, fmt.Errorf("write transcript: %w", err)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for _, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return Artifacts{}, fmt.Errorf("encode record %d: %w", rec.Index, err)
		}
	}
	if err := workdir.WriteFileAtomic(out.Records, buf.Bytes()); err != nil {
		return Artifacts{}, fmt.Errorf("write records: %w", err)
	}

	if len(roster) > 0 {
		var sb bytes.Buffer
		if err := speaker.WriteRoster(&sb, roster); err != nil {
			return Artifacts{}, err
		}
		out.Speakers = dir.SpeakersPath()
		if err := workdir.WriteFileAtomic(out.Speakers, sb.Bytes()); err != nil {
			return Artifacts{}, fmt.Errorf("write speakers: %w", err)
		}
	}
	return out, nil
}
