package inject

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// ErrInvalidRules is returned by Rules.Validate
var ErrInvalidRules = errors.New("invalid rules")

// Rules holds the literal markers and lookback windows used by the engine
type Rules struct {
	TriggerMarkers  []string // All must appear on a line for it to be a trigger
	CreatedMarker   string   // Trigger always counts as a mutation
	OKMarker        string   // Trigger counts as a mutation only in a mutation context
	GuardMarkers    []string // Any of these in the guard window means the block is already there
	MutationMarkers []string // Request verbs that create, update or delete
	ReadMarker      string   // Read verb that cancels an earlier mutation marker
	GuardWindow     int
	MutationWindow  int
	Block           []string // Inserted before the trigger, one entry per line
}

// DefaultRules returns the rules for Express-style API handlers
func DefaultRules() Rules {
	return Rules{
		TriggerMarkers: []string{"return res.status(20", ".json("},
		CreatedMarker:  "res.status(201)",
		OKMarker:       "res.status(200)",
		GuardMarkers:   []string{"Cache-Control", "CACHE BUSTING"},
		MutationMarkers: []string{
			"req.method === 'PUT'",
			"req.method === 'POST'",
			"req.method === 'DELETE'",
			"req.method === 'PATCH'",
		},
		ReadMarker:     "req.method === 'GET'",
		GuardWindow:    5,
		MutationWindow: 30,
		Block: []string{
			"// 🚫 CACHE BUSTING",
			"res.setHeader('Cache-Control', 'no-cache, no-store, must-revalidate');",
			"res.setHeader('Pragma', 'no-cache');",
			"res.setHeader('Expires', '0');",
		},
	}
}

// Validate reports rules the engine cannot run with
func (r Rules) Validate() error {
	switch {
	case len(r.TriggerMarkers) == 0:
		return fmt.Errorf("%w: no trigger markers", ErrInvalidRules)
	case len(r.Block) == 0:
		return fmt.Errorf("%w: empty block", ErrInvalidRules)
	case r.GuardWindow < 0 || r.MutationWindow < 0:
		return fmt.Errorf("%w: negative lookback window", ErrInvalidRules)
	}
	for _, m := range r.TriggerMarkers {
		if m == "" {
			return fmt.Errorf("%w: empty trigger marker", ErrInvalidRules)
		}
	}
	return nil
}

// Engine inserts the cache-busting block before mutation responses.
// It holds no state between calls.
type Engine struct {
	rules Rules
}

// NewEngine creates an engine after validating its rules
func NewEngine(rules Rules) (*Engine, error) {
	if err := rules.Validate(); err != nil {
		return nil, err
	}
	return &Engine{rules: rules}, nil
}

var defaultEngine = &Engine{rules: DefaultRules()}

// Process runs the default engine over lines
func Process(lines []string) ([]string, int) {
	return defaultEngine.Process(lines)
}

// BlockLen is the number of lines added per insertion, blank separator included
func (e *Engine) BlockLen() int {
	return len(e.rules.Block) + 1
}

// Process scans lines top to bottom and returns a new slice with the block
// inserted before every trigger line in a mutation context, plus the number
// of insertions. The input is never modified.
func (e *Engine) Process(lines []string) ([]string, int) {
	out := make([]string, 0, len(lines))
	inserted := 0

	for i, line := range lines {
		if e.isTrigger(line) && !e.alreadyHandled(lines, i) && e.isMutation(lines, i) {
			indent := leadingSpace(line)
			eol := ""
			if strings.HasSuffix(line, "\r") {
				eol = "\r"
			}
			for _, b := range e.rules.Block {
				out = append(out, indent+b+eol)
			}
			out = append(out, eol)
			inserted++
		}
		out = append(out, line)
	}

	return out, inserted
}

// ProcessText is Process over text split on "\n". A trailing newline is
// kept, and inserted lines follow the trigger line's CRLF ending.
func (e *Engine) ProcessText(text string) (string, int) {
	if text == "" {
		return text, 0
	}
	lines, n := e.Process(strings.Split(text, "\n"))
	if n == 0 {
		return text, 0
	}
	return strings.Join(lines, "\n"), n
}

func (e *Engine) isTrigger(line string) bool {
	for _, m := range e.rules.TriggerMarkers {
		if !strings.Contains(line, m) {
			return false
		}
	}
	return true
}

func (e *Engine) alreadyHandled(lines []string, i int) bool {
	for _, l := range window(lines, i, e.rules.GuardWindow) {
		if containsAny(l, e.rules.GuardMarkers) {
			return true
		}
	}
	return false
}

func (e *Engine) isMutation(lines []string, i int) bool {
	line := lines[i]
	switch {
	case e.rules.CreatedMarker != "" && strings.Contains(line, e.rules.CreatedMarker):
		return true
	case e.rules.OKMarker != "" && strings.Contains(line, e.rules.OKMarker):
		return e.inMutationContext(window(lines, i, e.rules.MutationWindow))
	default:
		return false
	}
}

// inMutationContext looks for a mutation verb marker that is not followed
// by a read marker later in the window. A read marker before the verb does
// not count.
func (e *Engine) inMutationContext(w []string) bool {
	for j, l := range w {
		if !containsAny(l, e.rules.MutationMarkers) {
			continue
		}
		if !e.readAfter(w[j+1:]) {
			return true
		}
	}
	return false
}

func (e *Engine) readAfter(w []string) bool {
	if e.rules.ReadMarker == "" {
		return false
	}
	for _, l := range w {
		if strings.Contains(l, e.rules.ReadMarker) {
			return true
		}
	}
	return false
}

// window returns up to n lines before index i
func window(lines []string, i, n int) []string {
	return lines[max(0, i-n):i]
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if m != "" && strings.Contains(s, m) {
			return true
		}
	}
	return false
}

func leadingSpace(line string) string {
	return line[:len(line)-len(strings.TrimLeftFunc(line, unicode.IsSpace))]
}
