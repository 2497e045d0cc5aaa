package delimtext

import (
	"os"
	"strings"
	"sync"
)

// scratchScheme prefixes paths of unsaved editor buffers
const scratchScheme = "untitled:"

// ResultProvenance maps result tables to the source tables that produced them.
// Keys are case-insensitive paths. Safe for concurrent use.
type ResultProvenance struct {
	mu      sync.RWMutex
	sources map[string]string
}

// NewResultProvenance creates an empty provenance map.
func NewResultProvenance() *ResultProvenance {
	return &ResultProvenance{sources: make(map[string]string)}
}

func provenanceKey(path string) string {
	return strings.ToLower(path)
}

// Record remembers that output was produced from input, replacing any earlier
// entry for output.
func (p *ResultProvenance) Record(output, input string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sources[provenanceKey(output)] = input
}

// SourceOf returns the source table of output.
func (p *ResultProvenance) SourceOf(output string) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	input, ok := p.sources[provenanceKey(output)]
	return input, ok
}

// IsResult reports whether path is a known result table.
func (p *ResultProvenance) IsResult(path string) bool {
	_, ok := p.SourceOf(path)
	return ok
}

// Snapshot returns a copy of the map keyed by lower-cased result path.
func (p *ResultProvenance) Snapshot() map[string]string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[string]string, len(p.sources))
	for k, v := range p.sources {
		out[k] = v
	}
	return out
}

// CopyBackTarget returns the source a result may be copied back to. It reports
// false when there is no source, the source is a scratch buffer, or the source
// file no longer exists.
func (p *ResultProvenance) CopyBackTarget(output string) (string, bool) {
	input, ok := p.SourceOf(output)
	if !ok || IsScratchPath(input) {
		return "", false
	}
	if _, err := os.Stat(input); err != nil {
		return "", false
	}
	return input, true
}

// IsScratchPath reports whether path names an unsaved buffer rather than a file.
func IsScratchPath(path string) bool {
	return strings.TrimSpace(path) == "" || strings.HasPrefix(strings.ToLower(path), scratchScheme)
}
