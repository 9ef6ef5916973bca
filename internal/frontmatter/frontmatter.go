// Package frontmatter parses and rewrites the YAML front matter of synced
// publication files. The original front-matter text is carried verbatim;
// rewriting only appends the attribution block and, when configured,
// substitutes the publish date. Everything else stays byte-for-byte intact
// so diffs stay reviewable.
package frontmatter

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	apperrors "github.com/mcpherson-lab/pubsync/internal/errors"
)

const delimiter = "---"

// StringList decodes a YAML value that may be a scalar or a sequence.
// Member sites write `author: Alice` and `author: [Alice, Bob]`
// interchangeably.
type StringList []string

// UnmarshalYAML implements yaml.Unmarshaler
func (s *StringList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		*s = StringList{value.Value}
		return nil
	case yaml.SequenceNode:
		var items []string
		if err := value.Decode(&items); err != nil {
			return err
		}
		*s = StringList(items)
		return nil
	default:
		return fmt.Errorf("unsupported YAML kind %d for string list", value.Kind)
	}
}

// Fields are the recognized front-matter fields. Anything not listed here
// survives untouched inside Document.Raw.
type Fields struct {
	Title       string     `yaml:"title"`
	Author      StringList `yaml:"author"`
	Date        string     `yaml:"date"`
	DOI         string     `yaml:"doi"`
	Publication string     `yaml:"publication"`
	Image       string     `yaml:"image"`
	Categories  StringList `yaml:"categories"`
}

// Document is a parsed content file: the verbatim front-matter text, the
// body exactly as found after the closing delimiter, and the recognized
// fields decoded from the front matter.
type Document struct {
	Raw    string // front-matter text between the delimiters, verbatim
	Body   string // everything after the closing delimiter line, verbatim
	Fields Fields
}

// Parse splits and decodes a content file. A missing, unterminated, or
// syntactically invalid front-matter block is a ParseError; the caller
// records the entry as failed and moves on.
func Parse(content []byte) (*Document, error) {
	text := string(content)
	if !strings.HasPrefix(text, delimiter+"\n") {
		return nil, apperrors.NewParseError("content has no front-matter block", nil)
	}

	rest := text[len(delimiter)+1:]
	end := strings.Index(rest, "\n"+delimiter)
	if end < 0 {
		return nil, apperrors.NewParseError("front-matter block is not terminated", nil)
	}
	raw := rest[:end+1] // keep the trailing newline

	body := rest[end+1+len(delimiter):]
	body = strings.TrimPrefix(body, "\n")

	var fields Fields
	if err := yaml.Unmarshal([]byte(raw), &fields); err != nil {
		return nil, apperrors.NewParseError("invalid front-matter YAML", err)
	}

	return &Document{Raw: raw, Body: body, Fields: fields}, nil
}

// Attribution names the origin of a synced entry
type Attribution struct {
	MemberName  string
	Username    string
	ProfileURL  string
	OriginalURL string
	Directory   string
}

// Options control what the rewrite injects
type Options struct {
	AddAttribution bool
	PreserveDates  bool
	SyncDate       time.Time
}

var dateLine = regexp.MustCompile(`(?m)^date:[^\n]*$`)

// Rewrite renders the document back to file content with the configured
// injections applied. The original front-matter text is reproduced verbatim
// except for the date line when dates are not preserved.
func Rewrite(doc *Document, attr Attribution, opts Options) []byte {
	raw := doc.Raw
	if raw != "" && !strings.HasSuffix(raw, "\n") {
		raw += "\n"
	}

	if !opts.PreserveDates {
		stamp := "date: " + opts.SyncDate.Format("2006-01-02")
		// Only the first date line is the entry's publish date; any later
		// match belongs to content that must stay untouched
		if loc := dateLine.FindStringIndex(raw); loc != nil {
			raw = raw[:loc[0]] + stamp + raw[loc[1]:]
		} else {
			raw += stamp + "\n"
		}
	}

	if opts.AddAttribution {
		var b strings.Builder
		b.WriteString("source:\n")
		fmt.Fprintf(&b, "  member: %s\n", attr.MemberName)
		fmt.Fprintf(&b, "  username: %s\n", attr.Username)
		fmt.Fprintf(&b, "  original_url: %s\n", attr.OriginalURL)
		fmt.Fprintf(&b, "  directory: %s\n", attr.Directory)
		raw += b.String()
	}

	var out strings.Builder
	out.WriteString(delimiter + "\n")
	out.WriteString(raw)
	out.WriteString(delimiter + "\n")
	out.WriteString(doc.Body)

	if opts.AddAttribution {
		if !strings.HasSuffix(out.String(), "\n") {
			out.WriteString("\n")
		}
		fmt.Fprintf(&out,
			"\n---\n\n*This publication was originally published by [%s](%s) and automatically synced to the lab website.*\n",
			attr.MemberName, attr.ProfileURL)
	}

	return []byte(out.String())
}
