// Package emitter is the developer-facing surface: named topics with stable
// colors, wildcard allow/deny filtering for console output, and optional
// forwarding of every record to a relay instance.
package emitter

import (
	"fmt"
	"hash/fnv"
	"io"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"

	"github.com/Chichichkin/LogRelay/internal/shipper"
)

// ANSI 256-color palette for topic names, picked by hash so a topic keeps its
// color across runs.
var palette = []int{
	33, 39, 45, 51, 69, 75, 81, 87, 105, 111,
	117, 123, 141, 147, 153, 159, 178, 184, 190, 208,
	214, 220, 226, 35, 41, 47, 77, 83, 119, 155,
	161, 167, 173, 197, 203, 209,
}

// Options configures one emitter. The zero value writes uncolored output for
// every topic to stderr and forwards nothing.
type Options struct {
	// Patterns is a comma-separated allow/deny list for console output, e.g.
	// "app:*,-app:sql". A leading '-' denies; deny wins over allow. Empty
	// enables every topic.
	Patterns string
	// Writer receives pretty console lines. Defaults to os.Stderr.
	Writer io.Writer
	// Relay, when set, receives every record regardless of console filtering.
	Relay *shipper.Shipper
	// NoColor disables ANSI colors even on a terminal.
	NoColor bool
}

type Emitter struct {
	mu     sync.Mutex
	writer io.Writer
	color  bool
	allow  []*regexp.Regexp
	deny   []*regexp.Regexp
	relay  *shipper.Shipper
	now    func() time.Time
}

func New(opts Options) *Emitter {
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}

	allow, deny := compilePatterns(opts.Patterns)

	return &Emitter{
		writer: w,
		color:  !opts.NoColor && isTerminal(w),
		allow:  allow,
		deny:   deny,
		relay:  opts.Relay,
		now:    time.Now,
	}
}

// Topic returns a handle for one named topic. The console-enabled decision
// and the color are fixed at creation.
func (e *Emitter) Topic(name string) *Topic {
	return &Topic{
		emitter: e,
		name:    name,
		enabled: e.enabled(name),
		color:   palette[hashTopic(name)%uint32(len(palette))],
	}
}

func (e *Emitter) enabled(name string) bool {
	for _, re := range e.deny {
		if re.MatchString(name) {
			return false
		}
	}
	if len(e.allow) == 0 {
		return true
	}
	for _, re := range e.allow {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}

type Topic struct {
	emitter *Emitter
	name    string
	enabled bool
	color   int
}

func (t *Topic) Enabled() bool {
	return t.enabled
}

// Log prints the arguments space-separated and forwards them to the relay.
func (t *Topic) Log(args ...any) {
	t.emit(strings.TrimRight(fmt.Sprintln(args...), "\n"), args)
}

// Logf prints a formatted message and forwards it to the relay.
func (t *Topic) Logf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	t.emit(msg, []any{msg})
}

func (t *Topic) emit(msg string, args []any) {
	e := t.emitter

	if t.enabled {
		ts := e.now().Format("15:04:05.000")
		e.mu.Lock()
		if e.color {
			fmt.Fprintf(e.writer, "%s \x1b[38;5;%dm%s\x1b[0m %s\n", ts, t.color, t.name, msg)
		} else {
			fmt.Fprintf(e.writer, "%s %s %s\n", ts, t.name, msg)
		}
		e.mu.Unlock()
	}

	// Console filtering is a display concern only; the relay sees everything.
	if e.relay != nil {
		e.relay.Send(map[string]any{
			"ts":    e.now().UnixMilli(),
			"topic": t.name,
			"args":  args,
		})
	}
}

// compilePatterns turns "app:*,-app:sql" into allow and deny matchers. '*'
// matches any run of characters; everything else is literal.
func compilePatterns(patterns string) (allow, deny []*regexp.Regexp) {
	for _, raw := range strings.Split(patterns, ",") {
		p := strings.TrimSpace(raw)
		if p == "" {
			continue
		}
		negate := strings.HasPrefix(p, "-")
		if negate {
			p = p[1:]
		}
		re, err := compilePattern(p)
		if err != nil {
			continue
		}
		if negate {
			deny = append(deny, re)
		} else {
			allow = append(allow, re)
		}
	}
	return allow, deny
}

func compilePattern(p string) (*regexp.Regexp, error) {
	parts := strings.Split(p, "*")
	for i, part := range parts {
		parts[i] = regexp.QuoteMeta(part)
	}
	return regexp.Compile("^" + strings.Join(parts, ".*") + "$")
}

func hashTopic(name string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(name))
	return h.Sum32()
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}
