package analyzer

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
)

const codegenTool = "echoprint-codegen"

// Record is the first element echoprint-codegen reports for a file.
type Record struct {
	Artist   *string
	Title    *string
	Genre    *string
	Release  *string
	Year     *int    // only known from embedded tags
	Duration float64 // seconds
	Bitrate  int
	Code     string
}

// Codegen runs echoprint-codegen.
type Codegen struct {
	Binary string
}

type codegenElement struct {
	Metadata struct {
		Artist   string  `json:"artist"`
		Title    string  `json:"title"`
		Genre    string  `json:"genre"`
		Release  string  `json:"release"`
		Duration float64 `json:"duration"`
		Bitrate  float64 `json:"bitrate"`
	} `json:"metadata"`
	Code  string `json:"code"`
	Error string `json:"error"`
}

// Run analyzes path and returns its record.
func (c Codegen) Run(ctx context.Context, path string) (*Record, error) {
	out, err := run(ctx, codegenTool, path, c.Binary, path)
	if err != nil {
		return nil, err
	}
	return ParseCodegen(out)
}

// ParseCodegen decodes echoprint-codegen output. An empty array, an element
// carrying an error, or one without a code yields ErrNoRecord.
func ParseCodegen(out []byte) (*Record, error) {
	var elems []codegenElement
	if err := json.Unmarshal(out, &elems); err != nil {
		return nil, &ParseError{Tool: codegenTool, Output: truncate(string(out), maxStderr), Err: err}
	}
	if len(elems) == 0 {
		return nil, ErrNoRecord
	}

	e := elems[0]
	if e.Error != "" {
		return nil, &ParseError{Tool: codegenTool, Output: e.Error, Err: ErrNoRecord}
	}
	if strings.TrimSpace(e.Code) == "" {
		return nil, ErrNoRecord
	}
	if e.Metadata.Duration < 0 || e.Metadata.Bitrate < 0 {
		return nil, &ParseError{Tool: codegenTool, Output: truncate(string(out), maxStderr),
			Err: errors.New("negative duration or bitrate")}
	}

	return &Record{
		Artist:   optional(e.Metadata.Artist),
		Title:    optional(e.Metadata.Title),
		Genre:    optional(e.Metadata.Genre),
		Release:  optional(e.Metadata.Release),
		Duration: e.Metadata.Duration,
		Bitrate:  int(e.Metadata.Bitrate),
		Code:     e.Code,
	}, nil
}

// optional maps blank tag values to nil.
func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
