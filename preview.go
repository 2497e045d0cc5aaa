package delimtext

import (
	"math"
	"sync"
	"unicode/utf8"

	"github.com/nao1215/delimtext/domain/model"
)

const (
	// PreviewFieldLimit is the longest field, in runes, a preview window carries
	PreviewFieldLimit = 250
	// PreviewTrimMarker is appended to fields cut at PreviewFieldLimit
	PreviewTrimMarker = "###UI_TRIMMED###"
)

// PreviewContext is the per-document state of an interactive preview.
//
// Sample calls on one context are serialized: a call made while another is in
// progress returns ErrSampleInFlight instead of racing on RecordMap. Contexts of
// different documents are independent.
type PreviewContext struct {
	// Source is the previewed document
	Source TextSource
	// Dialect splits records into fields
	Dialect model.Dialect
	// RFC enables records spanning several lines
	RFC bool
	// CommentPrefix marks lines that are not records in RFC mode
	CommentPrefix string
	// RecordMap is the RFC record index built so far
	RecordMap []model.RecordSpan
	// RequestedStart is the 0-based record the next window starts at
	RequestedStart int

	inFlight sync.Mutex
}

// NewPreviewContext creates a preview context. RFC mode follows the dialect.
func NewPreviewContext(src TextSource, d model.Dialect, commentPrefix string) *PreviewContext {
	return &PreviewContext{
		Source:        src,
		Dialect:       d,
		RFC:           d.IsRFC(),
		CommentPrefix: commentPrefix,
	}
}

// PreviewWindow is a bounded run of decoded records.
type PreviewWindow struct {
	// Records are the decoded records of the window
	Records []model.Record
	// StartIndex is the 0-based index of the first record
	StartIndex int
}

// Navigate sets the record the next window starts at. Values out of range are
// clamped by Sample.
func (c *PreviewContext) Navigate(start int) {
	c.inFlight.Lock()
	defer c.inFlight.Unlock()
	c.RequestedStart = start
}

// Sample decodes windowSize records starting at RequestedStart.
//
// RequestedStart is clamped so the window stays inside the document; it saturates
// at either end instead of failing. If any record of the window has inconsistent
// quotes the whole sample fails with a *model.QuoteError naming that record and
// its first line. Fields longer than PreviewFieldLimit runes are cut and marked
// with PreviewTrimMarker.
func (c *PreviewContext) Sample(windowSize int) (*PreviewWindow, error) {
	if !c.inFlight.TryLock() {
		return nil, ErrSampleInFlight
	}
	defer c.inFlight.Unlock()

	if windowSize < 0 {
		windowSize = 0
	}
	if c.RequestedStart < 0 {
		c.RequestedStart = 0
	}

	if c.RFC {
		return c.sampleRFC(windowSize)
	}
	return c.sampleLines(windowSize)
}

func (c *PreviewContext) sampleRFC(windowSize int) (*PreviewWindow, error) {
	target := math.MaxInt
	if c.RequestedStart <= math.MaxInt-windowSize {
		target = c.RequestedStart + windowSize
	}
	ExtendRecordMap(c.Source, target, &c.RecordMap, c.CommentPrefix)
	start := clampStart(c.RequestedStart, len(c.RecordMap), windowSize)
	c.RequestedStart = start
	end := min(start+windowSize, len(c.RecordMap))

	window := &PreviewWindow{StartIndex: start, Records: make([]model.Record, 0, end-start)}
	for i := start; i < end; i++ {
		span := c.RecordMap[i]
		fields, quoteWarning := Split(RecordText(c.Source, span), c.Dialect, false)
		if quoteWarning {
			return nil, &model.QuoteError{Record: i + 1, Line: span.StartLine + 1}
		}
		window.Records = append(window.Records, trimFields(fields))
	}
	return window, nil
}

func (c *PreviewContext) sampleLines(windowSize int) (*PreviewWindow, error) {
	total := c.Source.LineCount()
	if total > 0 && c.Source.LineAt(total-1) == "" {
		total--
	}
	start := clampStart(c.RequestedStart, total, windowSize)
	c.RequestedStart = start
	end := min(start+windowSize, total)

	window := &PreviewWindow{StartIndex: start, Records: make([]model.Record, 0, end-start)}
	for i := start; i < end; i++ {
		line := c.Source.LineAt(i)
		if isComment(line, c.CommentPrefix) {
			window.Records = append(window.Records, trimFields([]string{line}))
			continue
		}
		fields, quoteWarning := Split(line, c.Dialect, false)
		if quoteWarning {
			return nil, &model.QuoteError{Record: i + 1, Line: i + 1}
		}
		window.Records = append(window.Records, trimFields(fields))
	}
	return window, nil
}

// clampStart keeps [start, start+windowSize) inside [0, total), flooring at 0.
func clampStart(start, total, windowSize int) int {
	return max(0, min(start, total-windowSize))
}

func trimFields(fields []string) model.Record {
	for i, f := range fields {
		if utf8.RuneCountInString(f) <= PreviewFieldLimit {
			continue
		}
		fields[i] = string([]rune(f)[:PreviewFieldLimit]) + PreviewTrimMarker
	}
	return model.NewRecord(fields)
}
