package dsl

import (
	"bufio"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/cockroachdb/errors"
)

var (
	moduleRe      = regexp.MustCompile(`^module\s+([A-Za-z0-9_.-]+)$`)
	entityRe      = regexp.MustCompile(`^entity\s+(\w+)(?:\s+"([^"]*)")?\s*:$`)
	fieldRe       = regexp.MustCompile(`^([\w_]+):\s*([^\s#]+)(.*)$`)
	enumRe        = regexp.MustCompile(`^enum\[(.*)\]$`)
	refRe         = regexp.MustCompile(`^ref\[([A-Za-z0-9_.]+)\]$`)
	arrayRe       = regexp.MustCompile(`^array\[(.+)\]$`)
	constraintsRe = regexp.MustCompile(`^constraints\s*:$`)
	uniqueRe      = regexp.MustCompile(`^unique\s*\(\s*([^)]+)\s*\)$`)
)

// parser держит состояние построчного разбора одного файла.
type parser struct {
	module        string
	current       *Entity
	entities      []*Entity
	inConstraints bool
}

// Parse читает DSL из r. path нужен только для сообщений об ошибках.
func Parse(r io.Reader, path string) ([]*Entity, error) {
	p := &parser{}
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if err := p.line(line); err != nil {
			return nil, errors.Wrapf(err, "%s:%d", path, lineNo)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	p.closeEntity()
	return p.entities, nil
}

func (p *parser) closeEntity() {
	if p.current != nil {
		p.entities = append(p.entities, p.current)
		p.current = nil
	}
}

func (p *parser) line(line string) error {
	if m := moduleRe.FindStringSubmatch(line); m != nil {
		p.closeEntity()
		p.module = m[1]
		p.inConstraints = false
		return nil
	}
	if m := entityRe.FindStringSubmatch(line); m != nil {
		p.closeEntity()
		p.current = &Entity{Module: p.module, Name: m[1], Label: m[2]}
		p.inConstraints = false
		return nil
	}
	if p.current == nil {
		// всё вне сущности игнорируем
		return nil
	}
	if constraintsRe.MatchString(line) {
		p.inConstraints = true
		return nil
	}
	if p.inConstraints {
		if m := uniqueRe.FindStringSubmatch(line); m != nil {
			if set := splitList(m[1]); len(set) > 0 {
				p.current.Constraints.Unique = append(p.current.Constraints.Unique, set)
			}
			return nil
		}
		// любая другая строка закрывает блок constraints
		p.inConstraints = false
	}
	m := fieldRe.FindStringSubmatch(line)
	if m == nil {
		return errors.Newf("cannot parse line %q", line)
	}
	f, err := parseField(m[1], m[2], m[3])
	if err != nil {
		return err
	}
	p.current.Fields = append(p.current.Fields, f)
	return nil
}

func parseField(name, rawType, tail string) (Field, error) {
	// enum[a, b] и array[...] с пробелами внутри рвутся регэкспом, склеиваем обратно
	if strings.Count(rawType, "[") > strings.Count(rawType, "]") {
		missing := strings.Count(rawType, "[") - strings.Count(rawType, "]")
		idx := -1
		for i := 0; i < len(tail) && missing > 0; i++ {
			switch tail[i] {
			case '[':
				missing++
			case ']':
				missing--
				idx = i
			}
		}
		if missing > 0 {
			return Field{}, errors.Newf("field %q: unbalanced brackets in type", name)
		}
		rawType += tail[:idx+1]
		tail = tail[idx+1:]
	}

	f := Field{Name: name, Type: rawType, Options: map[string]string{}}
	if err := f.applyType(rawType); err != nil {
		return Field{}, errors.Wrapf(err, "field %q", name)
	}
	for k, v := range parseOptions(tail) {
		f.Options[k] = v
	}
	return f, nil
}

func (f *Field) applyType(rawType string) error {
	if m := enumRe.FindStringSubmatch(rawType); m != nil {
		f.Type = "enum"
		f.Enum = unquoteList(m[1])
		return nil
	}
	if m := refRe.FindStringSubmatch(rawType); m != nil {
		f.Type = "ref"
		f.RefTarget = strings.TrimSpace(m[1])
		return nil
	}
	if m := arrayRe.FindStringSubmatch(rawType); m != nil {
		f.Type = "array"
		elem := strings.TrimSpace(m[1])
		switch {
		case enumRe.MatchString(elem):
			f.ElemType = "enum"
			f.Enum = unquoteList(enumRe.FindStringSubmatch(elem)[1])
		case refRe.MatchString(elem):
			f.ElemType = "ref"
			f.RefTarget = strings.TrimSpace(refRe.FindStringSubmatch(elem)[1])
		default:
			f.ElemType = strings.ToLower(elem)
		}
		return nil
	}
	switch t := strings.ToLower(rawType); t {
	case "string", "text", "int", "float", "money", "bool", "date", "datetime":
		f.Type = t
		return nil
	}
	return errors.Newf("unknown type %q", rawType)
}

// parseOptions разбирает хвост строки поля: "required label='Full name' pattern=^[A-Z]+$".
func parseOptions(tail string) map[string]string {
	raw := strings.TrimSpace(tail)
	if i := strings.IndexByte(raw, '#'); i >= 0 {
		raw = strings.TrimSpace(raw[:i])
	}
	if strings.HasPrefix(strings.ToLower(raw), "options:") {
		raw = strings.TrimSpace(raw[len("options:"):])
	}
	raw = strings.ReplaceAll(raw, ",", " ")

	out := map[string]string{}
	for _, tok := range splitOptionTokens(raw) {
		k, v, hasValue := strings.Cut(tok, "=")
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" {
			continue
		}
		if !hasValue {
			// флаг без значения
			out[k] = "true"
			continue
		}
		out[k] = unquote(strings.TrimSpace(v))
	}
	return out
}

// splitOptionTokens режет по пробелам, но не внутри кавычек и [...].
func splitOptionTokens(s string) []string {
	var out []string
	var buf []rune
	inSingle, inDouble := false, false
	depth := 0

	flush := func() {
		if len(buf) > 0 {
			out = append(out, string(buf))
			buf = buf[:0]
		}
	}
	for _, r := range s {
		switch {
		case r == '\'' && !inDouble && depth == 0:
			inSingle = !inSingle
		case r == '"' && !inSingle && depth == 0:
			inDouble = !inDouble
		case r == '[' && !inSingle && !inDouble:
			depth++
		case r == ']' && !inSingle && !inDouble && depth > 0:
			depth--
		case (r == ' ' || r == '\t') && !inSingle && !inDouble && depth == 0:
			flush()
			continue
		}
		buf = append(buf, r)
	}
	flush()
	return out
}

func unquote(v string) string {
	if len(v) >= 2 && (v[0] == '"' || v[0] == '\'') && v[len(v)-1] == v[0] {
		return v[1 : len(v)-1]
	}
	return v
}

func unquoteList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if v := strings.Trim(strings.TrimSpace(p), `"'`); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// LoadEntities читает один .dsl файл.
func LoadEntities(path string) ([]*Entity, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return Parse(file, path)
}

// LoadAllEntities обходит root и возвращает FQN -> Entity.
func LoadAllEntities(root string) (map[string]*Entity, error) {
	result := make(map[string]*Entity)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(d.Name()), ".dsl") {
			return nil
		}
		ents, err := LoadEntities(path)
		if err != nil {
			return errors.Wrapf(err, "parse %s", path)
		}
		for _, e := range ents {
			if e.Module == "" {
				return errors.Newf("entity %q in %s has no module; add `module <name>` at the top", e.Name, path)
			}
			if _, exists := result[e.FQN()]; exists {
				return errors.Newf("duplicate entity %q in module %q (file: %s)", e.Name, e.Module, path)
			}
			result[e.FQN()] = e
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
