package archive

import (
	"path"
	"strings"
)

// SanitizePath normalizes an archive member name and reports whether it is
// safe to write below a destination directory. Backslashes count as
// separators. Absolute names and names that climb above the root are unsafe.
func SanitizePath(name string) (string, bool) {
	name = strings.ReplaceAll(name, `\`, "/")
	if name == "" || path.IsAbs(name) || hasDriveLetter(name) {
		return "", false
	}

	clean := path.Clean(name)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", false
	}
	return clean, true
}

func hasDriveLetter(name string) bool {
	if len(name) < 2 || name[1] != ':' {
		return false
	}
	c := name[0]
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

// Filter wraps src so that only members with safe names are yielded, each
// renamed to its normalized form. onReject, if set, sees the original name of
// every dropped member.
func Filter(src Source, onReject func(name string)) Source {
	return &safeSource{src: src, onReject: onReject}
}

type safeSource struct {
	src      Source
	onReject func(name string)
}

func (s *safeSource) Next() (*Member, error) {
	for {
		m, err := s.src.Next()
		if err != nil {
			return nil, err
		}

		clean, ok := SanitizePath(m.Name)
		if !ok {
			if !isRoot(m.Name) && s.onReject != nil {
				s.onReject(m.Name)
			}
			continue
		}
		m.Name = clean
		return m, nil
	}
}

// isRoot reports names like "./" that refer to the destination itself
func isRoot(name string) bool {
	name = strings.ReplaceAll(name, `\`, "/")
	return name != "" && !path.IsAbs(name) && path.Clean(name) == "."
}
