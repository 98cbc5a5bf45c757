// Package parser dispatches raw scan files to the format parsers and
// detects the format of files whose type is not given.
package parser

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/heartmarshall/grc-backend/internal/domain"
	"github.com/heartmarshall/grc-backend/internal/parser/ckl"
	"github.com/heartmarshall/grc-backend/internal/parser/nessus"
	"github.com/heartmarshall/grc-backend/internal/parser/scap"
)

// Metrics receives parse outcomes. Implemented by internal/metrics.
type Metrics interface {
	FileParsed(format domain.SourceFormat, ok bool)
}

// Parse parses raw with the parser for format.
func Parse(format domain.SourceFormat, raw []byte) (*domain.NormalizedScan, error) {
	switch format {
	case domain.FormatCKL:
		return ckl.Parse(raw)
	case domain.FormatNessus:
		return nessus.Parse(raw)
	case domain.FormatSCAP:
		return scap.Parse(raw)
	}
	return nil, &domain.FormatError{Format: format, Reason: "unsupported format"}
}

// Detect determines the format from the document's root element.
func Detect(raw []byte) (domain.SourceFormat, error) {
	dec := xml.NewDecoder(bytes.NewReader(raw))
	dec.Strict = false
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return "", &domain.FormatError{Reason: "no root element"}
		}
		if err != nil {
			return "", &domain.FormatError{Reason: "unparseable XML", Err: err}
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch start.Name.Local {
		case "CHECKLIST":
			return domain.FormatCKL, nil
		case "NessusClientData_v2":
			return domain.FormatNessus, nil
		case "Benchmark", "TestResult", "asset-report-collection", "data-stream-collection":
			return domain.FormatSCAP, nil
		}
		return "", &domain.FormatError{
			Element: start.Name.Local,
			Reason:  fmt.Sprintf("unrecognised root element <%s>", start.Name.Local),
		}
	}
}

// FormatFromPath maps a file extension to a format. It returns "" when the
// extension is ambiguous, e.g. plain .xml.
func FormatFromPath(path string) domain.SourceFormat {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ckl":
		return domain.FormatCKL
	case ".nessus":
		return domain.FormatNessus
	}
	return ""
}

// File is one input of ParseAll. An empty Format is detected.
type File struct {
	Path   string
	Format domain.SourceFormat
	Raw    []byte
}

// Result pairs a File with its parse outcome.
type Result struct {
	File File
	Scan *domain.NormalizedScan
	Err  error
}

// ParseAll parses files concurrently with at most workers goroutines.
// Results keep the input order and per-file errors are reported in
// Result.Err; the returned error is only set when ctx is cancelled.
func ParseAll(ctx context.Context, files []File, workers int, m Metrics) ([]Result, error) {
	results := make([]Result, len(files))
	if workers <= 0 {
		workers = 1
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, f := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = parseOne(f, m)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func parseOne(f File, m Metrics) Result {
	res := Result{File: f}
	if f.Format == "" {
		f.Format = FormatFromPath(f.Path)
	}
	if f.Format == "" {
		format, err := Detect(f.Raw)
		if err != nil {
			res.Err = fmt.Errorf("detect %s: %w", f.Path, err)
			return res
		}
		f.Format = format
	}
	res.File = f

	res.Scan, res.Err = Parse(f.Format, f.Raw)
	if m != nil {
		m.FileParsed(f.Format, res.Err == nil)
	}
	return res
}
