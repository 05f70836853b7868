// Package notetext extracts structure from sticky-note content: an optional
// YAML header, #tags, [[element]] mentions and a short display title.
package notetext

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// MaxTitleRunes bounds derived titles.
const MaxTitleRunes = 48

var (
	mentionRe = regexp.MustCompile(`\[\[([^\[\]]+?)\]\]`)
	tagRe     = regexp.MustCompile(`(?:^|\s)#([A-Za-z][A-Za-z0-9_/-]*)`)
)

// Header is the optional YAML block at the top of a note.
type Header struct {
	Title   string   `yaml:"title"`
	Tags    []string `yaml:"tags"`
	Element string   `yaml:"element"`
}

// Text is parsed note content.
type Text struct {
	Header   *Header
	Body     string
	Title    string
	Tags     []string
	Mentions []string
}

// Parse splits content into header and body and collects tags and mentions.
// Content with a malformed header is treated as plain body.
func Parse(content string) Text {
	hdr, body := splitHeader(content)
	return Text{
		Header:   hdr,
		Body:     body,
		Title:    title(hdr, body),
		Tags:     tags(hdr, body),
		Mentions: mentions(hdr, body),
	}
}

// Title is shorthand for Parse(content).Title.
func Title(content string) string {
	hdr, body := splitHeader(content)
	return title(hdr, body)
}

func splitHeader(content string) (*Header, string) {
	const delim = "---"
	trimmed := strings.TrimLeft(content, "\r\n")
	if !strings.HasPrefix(trimmed, delim) {
		return nil, content
	}
	rest := trimmed[len(delim):]
	end := strings.Index(rest, "\n"+delim)
	if end < 0 {
		return nil, content
	}
	var hdr Header
	if err := yaml.Unmarshal([]byte(rest[:end]), &hdr); err != nil {
		return nil, content
	}
	body := strings.TrimLeft(rest[end+1+len(delim):], "\r\n")
	return &hdr, body
}

func title(hdr *Header, body string) string {
	if hdr != nil && strings.TrimSpace(hdr.Title) != "" {
		return truncate(strings.TrimSpace(hdr.Title))
	}
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		line = strings.TrimSpace(strings.TrimLeft(line, "#"))
		if line != "" {
			return truncate(line)
		}
	}
	return ""
}

func truncate(s string) string {
	if utf8.RuneCountInString(s) <= MaxTitleRunes {
		return s
	}
	r := []rune(s)
	return string(r[:MaxTitleRunes-1]) + "…"
}

type dedup struct {
	seen map[string]struct{}
	out  []string
}

func (d *dedup) add(s string) {
	s = strings.TrimSpace(s)
	if s == "" {
		return
	}
	if d.seen == nil {
		d.seen = make(map[string]struct{})
	}
	if _, ok := d.seen[s]; ok {
		return
	}
	d.seen[s] = struct{}{}
	d.out = append(d.out, s)
}

func tags(hdr *Header, body string) []string {
	var d dedup
	if hdr != nil {
		for _, t := range hdr.Tags {
			d.add(t)
		}
	}
	for _, m := range tagRe.FindAllStringSubmatch(body, -1) {
		d.add(m[1])
	}
	return d.out
}

// mentions returns referenced element ids; [[id|label]] yields id.
func mentions(hdr *Header, body string) []string {
	var d dedup
	if hdr != nil {
		d.add(hdr.Element)
	}
	for _, m := range mentionRe.FindAllStringSubmatch(body, -1) {
		target, _, _ := strings.Cut(m[1], "|")
		d.add(target)
	}
	return d.out
}
