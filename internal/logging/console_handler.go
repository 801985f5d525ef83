package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// consoleOutput is shared by a console handler and every handler derived
// from it with WithAttrs or WithGroup.
type consoleOutput struct {
	mu sync.Mutex
	w  io.Writer
	// shown remembers the last value printed per subject and field label so
	// repeated info fields for the same job are not printed again.
	shown map[string]map[string]string
}

// consoleHandler renders records for people watching the daemon: a header
// line naming the job, stage and scene, followed by the notable fields.
type consoleHandler struct {
	out    *consoleOutput
	level  *slog.LevelVar
	source bool
	prefix string
	preset []kv
}

type kv struct {
	key   string
	value slog.Value
}

func newPrettyHandler(w io.Writer, lvl *slog.LevelVar, addSource bool) slog.Handler {
	return &consoleHandler{
		out:    &consoleOutput{w: w, shown: make(map[string]map[string]string)},
		level:  lvl,
		source: addSource,
	}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.preset = append([]kv(nil), h.preset...)
	for _, a := range attrs {
		next.preset = appendAttr(next.preset, h.prefix, a)
	}
	return &next
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.prefix = h.prefix + name + "."
	return &next
}

func (h *consoleHandler) Handle(_ context.Context, record slog.Record) error {
	if !h.Enabled(context.Background(), record.Level) {
		return nil
	}
	ts := record.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	fields := append(make([]kv, 0, len(h.preset)+record.NumAttrs()), h.preset...)
	record.Attrs(func(a slog.Attr) bool {
		fields = appendAttr(fields, h.prefix, a)
		return true
	})
	fields = lastValueWins(fields)
	subj := subjectOf(fields)

	message := strings.TrimSpace(record.Message)
	if message == "" {
		message = "(no message)"
	}
	var src *slog.Source
	if h.source {
		src = record.Source()
	}

	h.out.mu.Lock()
	defer h.out.mu.Unlock()
	var b strings.Builder
	if record.Level < slog.LevelInfo {
		writeHeader(&b, ts, record.Level, subj, message, src)
		for _, f := range fields {
			fmt.Fprintf(&b, "    %s: %s\n", f.key, formatValue(f.value))
		}
	} else {
		progress, rest := splitProgress(fields)
		if progress != "" {
			message += " " + progress
		}
		writeHeader(&b, ts, record.Level, subj, message, src)
		shown, hidden := selectInfoFields(withoutKey(rest, FieldComponent), 0, true)
		shown = h.out.novel(infoSummaryKey(subj), shown, record.Level)
		for _, f := range shown {
			fmt.Fprintf(&b, "    - %s: %s\n", f.label, f.value)
		}
		if hidden > 0 {
			fmt.Fprintf(&b, "    + %d more %s hidden\n", hidden, plural(hidden, "field"))
		}
	}
	_, err := io.WriteString(h.out.w, b.String())
	return err
}

// novel drops info fields whose value matches what was last printed for the
// same subject. Warnings and errors always print every field and refresh the
// remembered values. Caller holds o.mu.
func (o *consoleOutput) novel(key string, fields []infoField, level slog.Level) []infoField {
	if key == "" || len(fields) == 0 {
		return fields
	}
	seen := o.shown[key]
	if seen == nil {
		seen = make(map[string]string)
		o.shown[key] = seen
	}
	out := fields[:0:0]
	for _, f := range fields {
		if prev, ok := seen[f.label]; ok && prev == f.value && level <= slog.LevelInfo {
			continue
		}
		seen[f.label] = f.value
		out = append(out, f)
	}
	return out
}

// subject identifies what a log line is about: the emitting component and,
// when present, the job, stage and scene it concerns.
type subject struct {
	component string
	jobID     string
	stage     string
	scene     string
}

func subjectOf(fields []kv) subject {
	var s subject
	for _, f := range fields {
		switch f.key {
		case FieldComponent:
			s.component = attrString(f.value)
		case FieldJobID:
			s.jobID = attrString(f.value)
		case FieldStage:
			s.stage = attrString(f.value)
		case FieldSceneIndex:
			s.scene = attrString(f.value)
		}
	}
	return s
}

func writeHeader(b *strings.Builder, ts time.Time, level slog.Level, subj subject, message string, src *slog.Source) {
	b.WriteString(formatTimestamp(ts))
	b.WriteString(" ")
	b.WriteString(levelLabel(level))
	if subj.component != "" {
		b.WriteString(" [" + subj.component + "]")
	}
	if text := composeSubject(subj); text != "" {
		b.WriteString(" " + text)
	}
	b.WriteString(" - " + message)
	if src != nil {
		fmt.Fprintf(b, " [%s:%d]", filepath.Base(src.File), src.Line)
	}
	b.WriteString("\n")
}

// composeSubject renders "Job <id> (stage) · Scene N". Scene numbers are shown
// one-based to match how users count scenes.
func composeSubject(subj subject) string {
	jobID := strings.TrimSpace(subj.jobID)
	stage := strings.TrimSpace(subj.stage)
	if len(jobID) > 8 {
		jobID = jobID[:8]
	}
	parts := make([]string, 0, 2)
	switch {
	case jobID != "" && stage != "":
		parts = append(parts, "Job "+jobID+" ("+stage+")")
	case jobID != "":
		parts = append(parts, "Job "+jobID)
	case stage != "":
		parts = append(parts, stage)
	}
	if scene := strings.TrimSpace(subj.scene); scene != "" {
		if n, err := strconv.Atoi(scene); err == nil {
			scene = strconv.Itoa(n + 1)
		}
		parts = append(parts, "Scene "+scene)
	}
	return strings.Join(parts, " · ")
}

// splitProgress pulls encoder progress fields out of fields and renders them
// as a compact suffix such as "(pass 1: 42.0%, frame 10/20, ETA 1m5s)", so
// progress records stay on one console line.
func splitProgress(fields []kv) (string, []kv) {
	var (
		percent, eta  float64
		hasPercent    bool
		stage, detail string
	)
	rest := make([]kv, 0, len(fields))
	for _, f := range fields {
		switch {
		case f.key == FieldProgressPercent && f.value.Kind() == slog.KindFloat64:
			percent, hasPercent = f.value.Float64(), true
		case f.key == FieldProgressETA && f.value.Kind() == slog.KindFloat64:
			eta = f.value.Float64()
		case f.key == FieldProgressStage:
			stage = attrString(f.value)
		case f.key == FieldProgressMessage:
			detail = attrString(f.value)
		default:
			rest = append(rest, f)
		}
	}
	if !hasPercent {
		return "", fields
	}
	text := fmt.Sprintf("%.1f%%", percent)
	if stage != "" {
		text = stage + ": " + text
	}
	if detail != "" {
		text += ", " + detail
	}
	if eta > 0 {
		text += ", ETA " + formatDurationHuman(time.Duration(eta*float64(time.Second)))
	}
	return "(" + text + ")", rest
}

// appendAttr flattens a onto dst, qualifying keys with the group prefix.
func appendAttr(dst []kv, prefix string, a slog.Attr) []kv {
	if a.Equal(slog.Attr{}) {
		return dst
	}
	v := a.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		inner := prefix
		if a.Key != "" {
			inner += a.Key + "."
		}
		for _, g := range v.Group() {
			dst = appendAttr(dst, inner, g)
		}
		return dst
	}
	key := prefix + a.Key
	if a.Key == "" {
		key = strings.TrimSuffix(prefix, ".")
	}
	return append(dst, kv{key: key, value: v})
}

// lastValueWins collapses repeated keys: the first occurrence keeps its
// position and takes the last value logged for the key.
func lastValueWins(fields []kv) []kv {
	index := make(map[string]int, len(fields))
	out := make([]kv, 0, len(fields))
	for _, f := range fields {
		if f.key == "" {
			continue
		}
		if i, ok := index[f.key]; ok {
			out[i].value = f.value
			continue
		}
		index[f.key] = len(out)
		out = append(out, f)
	}
	return out
}

func withoutKey(fields []kv, key string) []kv {
	out := make([]kv, 0, len(fields))
	for _, f := range fields {
		if f.key != key {
			out = append(out, f)
		}
	}
	return out
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}

func levelLabel(level slog.Level) string {
	for _, l := range []slog.Level{slog.LevelError, slog.LevelWarn, slog.LevelInfo} {
		if level >= l {
			return l.String()
		}
	}
	return slog.LevelDebug.String()
}
