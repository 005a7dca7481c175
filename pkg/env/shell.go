package env

import "strings"

// Export is one variable assignment to hand to a shell
type Export struct {
	Name  string
	Value string
}

// ShellExports renders POSIX export statements, one per line, in order.
func ShellExports(exports []Export) string {
	var b strings.Builder
	for _, e := range exports {
		b.WriteString("export ")
		b.WriteString(e.Name)
		b.WriteByte('=')
		b.WriteString(quote(e.Value))
		b.WriteByte('\n')
	}
	return b.String()
}

// quote wraps s in single quotes, closing and reopening around embedded quotes
func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
