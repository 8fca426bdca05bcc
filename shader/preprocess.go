package shader

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

const maxIncludeDepth = 32

const headerPart = "HEADER"

// lineInfo marks where a run of output lines starts: output line start
// corresponds to line local of file.
type lineInfo struct {
	start int
	file  string
	local int
}

type lineTracker []lineInfo

// resolve maps an output line number to "file:line".
func (t lineTracker) resolve(n int) string {
	for i := len(t) - 1; i >= 0; i-- {
		if t[i].start <= n {
			return fmt.Sprintf("%s:%d", t[i].file, t[i].local+n-t[i].start)
		}
	}
	return strconv.Itoa(n)
}

type preprocessor struct {
	loader *Loader
	out    strings.Builder
	line   int
	lines  lineTracker
	stack  []string
}

// preprocess expands includes in src (read from file) and inserts header
// after the leading #version/#extension block.
func preprocess(loader *Loader, file, src, header string) (string, lineTracker, error) {
	p := &preprocessor{loader: loader, line: 1, stack: []string{file}}

	at := headerInsertOffset(src)
	if err := p.part(file, src[:at], 1); err != nil {
		return "", nil, err
	}
	if header != "" {
		if at > 0 && !strings.HasSuffix(src[:at], "\n") {
			p.write("\n")
		}
		p.lines = append(p.lines, lineInfo{start: p.line, file: headerPart, local: 1})
		p.write(header)
	}
	if err := p.part(file, src[at:], strings.Count(src[:at], "\n")+1); err != nil {
		return "", nil, err
	}
	return p.out.String(), p.lines, nil
}

func (p *preprocessor) write(s string) {
	p.out.WriteString(s)
	p.line += strings.Count(s, "\n")
}

func (p *preprocessor) part(file, src string, firstLine int) error {
	if src == "" {
		return nil
	}
	p.lines = append(p.lines, lineInfo{start: p.line, file: file, local: firstLine})

	local := firstLine
	for _, line := range strings.SplitAfter(src, "\n") {
		if line == "" {
			continue
		}
		name, ok, err := parseInclude(line)
		if err != nil {
			return fmt.Errorf("%s:%d: %w", file, local, err)
		}
		if !ok {
			p.write(line)
			local++
			continue
		}

		full, found := p.loader.resolveInclude(file, name)
		if !found {
			return fmt.Errorf("%s:%d: cannot open include %q", file, local, name)
		}
		if slices.Contains(p.stack, full) {
			return fmt.Errorf("%s:%d: %s: %w", file, local, strings.Join(append(p.stack, full), " -> "), ErrIncludeCycle)
		}
		if len(p.stack) > maxIncludeDepth {
			return fmt.Errorf("%s:%d: %w (%d)", file, local, ErrIncludeDepth, maxIncludeDepth)
		}
		_, content, err := p.loader.ReadFile(full)
		if err != nil {
			return fmt.Errorf("%s:%d: %w", file, local, err)
		}
		if content != "" && !strings.HasSuffix(content, "\n") {
			content += "\n"
		}

		p.stack = append(p.stack, full)
		err = p.part(full, content, 1)
		p.stack = p.stack[:len(p.stack)-1]
		if err != nil {
			return err
		}

		local++
		p.lines = append(p.lines, lineInfo{start: p.line, file: file, local: local})
	}
	return nil
}

// parseInclude recognizes `#include "name"` and `#include <name>`. A
// directive behind a line comment or block comment opener is ignored.
func parseInclude(line string) (string, bool, error) {
	pos := strings.Index(line, "#include")
	if pos < 0 {
		return "", false, nil
	}
	for _, c := range []string{"//", "/*"} {
		if i := strings.Index(line, c); i >= 0 && i < pos {
			return "", false, nil
		}
	}

	rest := strings.TrimLeft(line[pos+len("#include"):], " \t")
	if rest == "" {
		return "", false, fmt.Errorf("malformed #include")
	}
	closing := byte('"')
	switch rest[0] {
	case '"':
	case '<':
		closing = '>'
	default:
		return "", false, fmt.Errorf("malformed #include: expected '\"' or '<'")
	}
	end := strings.IndexByte(rest[1:], closing)
	if end < 0 {
		return "", false, fmt.Errorf("malformed #include: missing closing %q", closing)
	}
	name := rest[1 : end+1]
	if name == "" {
		return "", false, fmt.Errorf("malformed #include: empty file name")
	}
	return name, true, nil
}

// headerInsertOffset returns the byte offset just past the last #version or
// #extension line of the leading block. Blank lines, line comments and
// block comments may appear in that block.
func headerInsertOffset(src string) int {
	offset, insert := 0, 0
	inComment := false
	for _, line := range strings.SplitAfter(src, "\n") {
		if line == "" {
			break
		}
		t := strings.TrimSpace(line)
		if inComment || strings.HasPrefix(t, "/*") {
			if !inComment {
				t = t[2:]
			}
			end := strings.Index(t, "*/")
			if end < 0 {
				inComment = true
				offset += len(line)
				continue
			}
			inComment = false
			// Code after the comment on the same line ends the block.
			if tail := strings.TrimSpace(t[end+2:]); tail != "" && !strings.HasPrefix(tail, "//") {
				break
			}
			offset += len(line)
			continue
		}
		switch {
		case strings.HasPrefix(t, "#version"), strings.HasPrefix(t, "#extension"):
			offset += len(line)
			insert = offset
			if !strings.HasSuffix(line, "\n") {
				return insert
			}
			continue
		case t == "", strings.HasPrefix(t, "//"):
			offset += len(line)
			continue
		}
		break
	}
	return insert
}

// BuildHeader turns a header into source text. With process set, every
// whitespace-separated token becomes a "#define TOKEN" line; otherwise the
// header is used as given.
func BuildHeader(header string, process bool) string {
	if process {
		var b strings.Builder
		for _, tok := range strings.Fields(header) {
			b.WriteString("#define ")
			b.WriteString(tok)
			b.WriteByte('\n')
		}
		return b.String()
	}
	if header != "" && !strings.HasSuffix(header, "\n") {
		header += "\n"
	}
	return header
}

var (
	nvidiaLogLine = regexp.MustCompile(`^\s*\d+\((\d+)\)`)
	atiLogLine    = regexp.MustCompile(`^\s*(?:ERROR|WARNING):\s*\d+:(\d+):`)
	mesaLogLine   = regexp.MustCompile(`^\s*\d+:(\d+)\(\d+\):`)
)

func logLineNumber(msg string) int {
	for _, re := range []*regexp.Regexp{nvidiaLogLine, atiLogLine, mesaLogLine} {
		if m := re.FindStringSubmatch(msg); m != nil {
			n, err := strconv.Atoi(m[1])
			if err == nil && n > 0 {
				return n
			}
		}
	}
	return 0
}

// annotateLog appends " [file:line]" to every log line that names a line
// of the processed source.
func annotateLog(log string, lines lineTracker) string {
	if log == "" {
		return ""
	}
	var b strings.Builder
	for _, line := range strings.Split(strings.TrimRight(log, "\n"), "\n") {
		b.WriteString(line)
		if n := logLineNumber(line); n > 0 && len(lines) > 0 {
			b.WriteString(" [")
			b.WriteString(lines.resolve(n))
			b.WriteByte(']')
		}
		b.WriteByte('\n')
	}
	return b.String()
}
