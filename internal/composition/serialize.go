package composition

import (
	"strings"
)

// Serialize renders the graph in the encoder's filter-graph syntax. Option
// values are escaped twice: once for the filter option parser and once for the
// graph parser.
func Serialize(g Graph) string {
	var sb strings.Builder
	for i, op := range g.Operations {
		if i > 0 {
			sb.WriteByte(';')
		}
		for _, in := range op.Inputs {
			sb.WriteByte('[')
			sb.WriteString(in)
			sb.WriteByte(']')
		}
		for j, f := range op.Filters {
			if j > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString(serializeFilter(f))
		}
		sb.WriteByte('[')
		sb.WriteString(op.Output)
		sb.WriteByte(']')
	}
	return sb.String()
}

// SerializeChain renders filters as a plain comma-separated chain for
// single-input passes (-vf).
func SerializeChain(filters []Filter) string {
	parts := make([]string, 0, len(filters))
	for _, f := range filters {
		parts = append(parts, serializeFilter(f))
	}
	return strings.Join(parts, ",")
}

func serializeFilter(f Filter) string {
	if f.Raw != "" {
		return f.Raw
	}
	if len(f.Args) == 0 {
		return f.Name
	}
	args := make([]string, 0, len(f.Args))
	for _, a := range f.Args {
		value := escapeGraph(escapeOption(a.Value))
		if a.Key == "" {
			args = append(args, value)
			continue
		}
		args = append(args, a.Key+"="+value)
	}
	return f.Name + "=" + strings.Join(args, ":")
}

var optionEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`, `:`, `\:`)

var graphEscaper = strings.NewReplacer(
	`\`, `\\`,
	`'`, `\'`,
	`[`, `\[`,
	`]`, `\]`,
	`,`, `\,`,
	`;`, `\;`,
)

func escapeOption(v string) string { return optionEscaper.Replace(v) }

func escapeGraph(v string) string { return graphEscaper.Replace(v) }
