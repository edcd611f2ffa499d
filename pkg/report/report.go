package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/getmockd/expectd/pkg/expect"
	"github.com/getmockd/expectd/pkg/fingerprint"
)

// Request is the report form of a fingerprint.
type Request struct {
	Method  string            `json:"method"`
	Path    string            `json:"path"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    string            `json:"body,omitempty"`
}

// Chunk is one changed span in a near-miss diff.
type Chunk struct {
	Type    string `json:"type"` // "added" or "removed"
	Content string `json:"content"`
}

// NearMiss pairs an unexpected request with the missing expectation it most
// resembles. It is a diagnostic only; matching stays exact.
type NearMiss struct {
	Received Request `json:"received"`
	Expected Request `json:"expected"`
	Distance int     `json:"distance"`
	Chunks   []Chunk `json:"chunks"`
}

// Report is the outcome of one verification.
type Report struct {
	Passed     bool       `json:"passed"`
	SetupError string     `json:"setupError,omitempty"`
	Missing    []Request  `json:"missing"`
	Unexpected []Request  `json:"unexpected"`
	NearMisses []NearMiss `json:"nearMisses,omitempty"`
}

// Build turns the result of expect.Provider.Verify into a Report. A nil
// error is a passing report.
func Build(err error) *Report {
	r := &Report{
		Passed:     err == nil,
		Missing:    []Request{},
		Unexpected: []Request{},
	}
	if err == nil {
		return r
	}

	var ue *expect.UnsatisfiedExpectationError
	if !errors.As(err, &ue) {
		r.SetupError = err.Error()
		return r
	}

	for _, f := range ue.Missing {
		r.Missing = append(r.Missing, toRequest(f))
	}
	for _, f := range ue.Unexpected {
		r.Unexpected = append(r.Unexpected, toRequest(f))
	}
	r.NearMisses = nearMisses(ue.Missing, ue.Unexpected)
	return r
}

func toRequest(f fingerprint.Fingerprint) Request {
	return Request{
		Method:  string(f.Method()),
		Path:    f.Path(),
		Headers: f.Headers(),
		Body:    string(f.Body()),
	}
}

// nearMisses pairs each unexpected request with the closest missing one by
// Levenshtein distance over their rendered form.
func nearMisses(missing, unexpected []fingerprint.Fingerprint) []NearMiss {
	if len(missing) == 0 || len(unexpected) == 0 {
		return nil
	}

	dmp := diffmatchpatch.New()
	out := make([]NearMiss, 0, len(unexpected))
	for _, u := range unexpected {
		received := u.String()

		best := -1
		var bestDiffs []diffmatchpatch.Diff
		bestDist := 0
		for i, m := range missing {
			diffs := dmp.DiffMain(m.String(), received, false)
			dist := dmp.DiffLevenshtein(diffs)
			if best < 0 || dist < bestDist {
				best, bestDist, bestDiffs = i, dist, diffs
			}
		}

		bestDiffs = dmp.DiffCleanupSemantic(bestDiffs)
		out = append(out, NearMiss{
			Received: toRequest(u),
			Expected: toRequest(missing[best]),
			Distance: bestDist,
			Chunks:   toChunks(bestDiffs),
		})
	}
	return out
}

func toChunks(diffs []diffmatchpatch.Diff) []Chunk {
	chunks := make([]Chunk, 0)
	for _, d := range diffs {
		var typ string
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			typ = "added"
		case diffmatchpatch.DiffDelete:
			typ = "removed"
		default:
			continue
		}
		chunks = append(chunks, Chunk{Type: typ, Content: d.Text})
	}
	return chunks
}

// WriteJSON writes r as indented JSON.
func WriteJSON(w io.Writer, r *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// WriteText writes a human-readable report.
func WriteText(w io.Writer, r *Report) error {
	var b strings.Builder
	switch {
	case r.Passed:
		b.WriteString("verification passed\n")
	case r.SetupError != "":
		fmt.Fprintf(&b, "verification failed: %s\n", r.SetupError)
	default:
		fmt.Fprintf(&b, "verification failed: %d missing, %d unexpected\n", len(r.Missing), len(r.Unexpected))
		if len(r.Missing) > 0 {
			b.WriteString("\nmissing (expected but never received):\n")
			for _, req := range r.Missing {
				fmt.Fprintf(&b, "  - %s\n", req)
			}
		}
		if len(r.Unexpected) > 0 {
			b.WriteString("\nunexpected (received but never expected):\n")
			for _, req := range r.Unexpected {
				fmt.Fprintf(&b, "  - %s\n", req)
			}
		}
		if len(r.NearMisses) > 0 {
			b.WriteString("\nnear misses:\n")
			for _, nm := range r.NearMisses {
				fmt.Fprintf(&b, "  %s %s\n    closest: %s %s\n    diff:    %s\n",
					nm.Received.Method, nm.Received.Path,
					nm.Expected.Method, nm.Expected.Path,
					renderChunks(nm.Chunks))
			}
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func renderChunks(chunks []Chunk) string {
	if len(chunks) == 0 {
		return "(none)"
	}
	parts := make([]string, len(chunks))
	for i, c := range chunks {
		if c.Type == "added" {
			parts[i] = "{+" + c.Content + "+}"
		} else {
			parts[i] = "[-" + c.Content + "-]"
		}
	}
	return strings.Join(parts, " ")
}

// String renders req the same way fingerprint.Fingerprint does.
func (req Request) String() string {
	return fingerprint.New(fingerprint.Method(req.Method), req.Path, req.Headers, []byte(req.Body)).String()
}
