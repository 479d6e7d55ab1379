// Package dataimport reads already-embedded issue and pull-request records
// from newline-delimited JSON.
package dataimport

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

// Kind distinguishes pull requests from issues. The zero value means the
// record did not say.
type Kind string

const (
	KindUnknown     Kind = ""
	KindPullRequest Kind = "pr"
	KindIssue       Kind = "issue"
)

// State is the open/closed status of a record. The zero value means absent.
type State string

const (
	StateUnknown State = ""
	StateOpen    State = "open"
	StateClosed  State = "closed"
)

// Record is one embedded issue or pull request. Optional attributes are
// explicit: Number is nil, Kind/State are their Unknown values and Files is
// nil when the source line omitted them.
type Record struct {
	URL       string
	Title     string
	Body      string
	Number    *int
	State     State
	Kind      Kind
	Files     []string
	Embedding []float32
}

// LoadResult summarises one ingestion pass.
type LoadResult struct {
	Records []Record
	Skipped int // malformed or embedding-less lines
}

// recordLine mirrors the on-disk JSON shape. Field aliases cover the
// spellings different exporters use.
type recordLine struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Number    *int      `json:"number"`
	State     string    `json:"state"`
	Type      string    `json:"type"`
	Files     []string  `json:"files"`
	Embedding []float32 `json:"embedding"`
}

// maxLineBytes bounds a single record; large embeddings serialise to tens of KB.
var maxLineBytes = 16 << 20

// LoadFile opens path and reads records from it.
func LoadFile(path string) (LoadResult, error) {
	file, err := os.Open(path)
	if err != nil {
		return LoadResult{}, fmt.Errorf("opening dataset: %w", err)
	}
	defer file.Close()

	return Load(file)
}

// Load reads one record per line. Blank lines are ignored; lines that fail to
// parse, carry no embedding or exceed maxLineBytes are skipped and counted,
// never fatal.
func Load(reader io.Reader) (LoadResult, error) {
	var result LoadResult

	buffered := bufio.NewReaderSize(reader, 64*1024)
	for {
		raw, tooLong, err := readLine(buffered)
		if err == io.EOF {
			break
		}
		if err != nil {
			return result, fmt.Errorf("reading dataset: %w", err)
		}
		if tooLong {
			result.Skipped++
			continue
		}

		line := strings.TrimSpace(string(raw))
		if line == "" {
			continue
		}

		record, ok := parseLine(line)
		if !ok {
			result.Skipped++
			continue
		}
		result.Records = append(result.Records, record)
	}

	return result, nil
}

// readLine returns the next line without its terminator. A line longer than
// maxLineBytes is consumed and reported as tooLong with no content.
func readLine(reader *bufio.Reader) (line []byte, tooLong bool, err error) {
	var buf []byte
	for {
		fragment, isPrefix, err := reader.ReadLine()
		if err != nil {
			if err == io.EOF && (len(buf) > 0 || tooLong) {
				return buf, tooLong, nil
			}
			return nil, false, err
		}

		if !tooLong {
			if len(buf)+len(fragment) > maxLineBytes {
				tooLong = true
				buf = nil
			} else {
				buf = append(buf, fragment...)
			}
		}
		if !isPrefix {
			return buf, tooLong, nil
		}
	}
}

func parseLine(line string) (Record, bool) {
	var raw recordLine
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return Record{}, false
	}
	if len(raw.Embedding) == 0 {
		return Record{}, false
	}

	url := raw.URL
	if url == "" {
		url = raw.ID
	}

	return Record{
		URL:       url,
		Title:     raw.Title,
		Body:      raw.Body,
		Number:    raw.Number,
		State:     ParseState(raw.State),
		Kind:      ParseKind(raw.Type),
		Files:     raw.Files,
		Embedding: raw.Embedding,
	}, true
}

// ParseKind normalises the type spellings seen in exports.
func ParseKind(value string) Kind {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "pr", "pull", "pull_request", "pullrequest", "pull-request":
		return KindPullRequest
	case "issue":
		return KindIssue
	default:
		return KindUnknown
	}
}

// ParseState normalises open/closed, treating "merged" as closed.
func ParseState(value string) State {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "open":
		return StateOpen
	case "closed", "merged":
		return StateClosed
	default:
		return StateUnknown
	}
}

// Vectors returns the embedding of every record, index-aligned.
func Vectors(records []Record) [][]float32 {
	vectors := make([][]float32, len(records))
	for i := range records {
		vectors[i] = records[i].Embedding
	}
	return vectors
}
