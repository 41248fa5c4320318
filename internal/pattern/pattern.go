// Package pattern parses resource path templates and renders them or turns
// them into regular expressions.
//
// A template mixes literal text with placeholders:
//
//	{timeslot.<part>[:<format>]}   a calendar component, e.g. {timeslot.month:02d}
//	{parameters[<name>]}           a resource parameter
//	{timeslot_string}              the 12-digit YYYYMMDDHHMM form
//	{<field>}                      any other named field, e.g. {name}
//
// A leading "0." inside the braces is accepted, so "{0.timeslot.year}" and
// "{timeslot.year}" are equivalent.
package pattern

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/msageha/conductor/internal/timeslot"
)

type Kind int

const (
	KindLiteral Kind = iota
	KindTemporal
	KindParameter
	KindTimeslotString
	KindField
)

func (k Kind) String() string {
	switch k {
	case KindTemporal:
		return "temporal"
	case KindParameter:
		return "parameter"
	case KindTimeslotString:
		return "timeslot_string"
	case KindField:
		return "field"
	default:
		return "literal"
	}
}

// Segment is one piece of a parsed template.
type Segment struct {
	Kind   Kind
	Text   string // literal text, or the raw placeholder including braces
	Part   timeslot.Part
	Format string
	Name   string
}

// Context supplies the live values placeholders are rendered from.
type Context interface {
	Timeslot() time.Time
	Parameter(name string) (string, bool)
}

// FieldContext is optionally implemented by a Context to resolve {<field>} placeholders.
type FieldContext interface {
	Field(name string) (string, bool)
}

var (
	placeholderRe = regexp.MustCompile(`\{[^{}]+\}`)
	parameterRe   = regexp.MustCompile(`^parameters\[['"]?([^\]'"]+)['"]?\]$`)
	fieldRe       = regexp.MustCompile(`^[A-Za-z_]\w*(\.[A-Za-z_]\w*)*$`)
)

// Parse splits template into literal and placeholder segments.
func Parse(template string) []Segment {
	var segs []Segment
	last := 0
	for _, loc := range placeholderRe.FindAllStringIndex(template, -1) {
		if loc[0] > last {
			segs = append(segs, Segment{Kind: KindLiteral, Text: template[last:loc[0]]})
		}
		segs = append(segs, parsePlaceholder(template[loc[0]:loc[1]]))
		last = loc[1]
	}
	if last < len(template) {
		segs = append(segs, Segment{Kind: KindLiteral, Text: template[last:]})
	}
	return segs
}

func parsePlaceholder(raw string) Segment {
	body := strings.TrimPrefix(raw[1:len(raw)-1], "0.")
	seg := Segment{Kind: KindLiteral, Text: raw}

	if m := parameterRe.FindStringSubmatch(body); m != nil {
		seg.Kind = KindParameter
		seg.Name = m[1]
		return seg
	}
	name, format, _ := strings.Cut(body, ":")
	if name == "timeslot_string" {
		seg.Kind = KindTimeslotString
		return seg
	}
	partName, isTimeslot := strings.CutPrefix(name, "timeslot.")
	if !isTimeslot && (name == string(timeslot.PartDekade) || name == string(timeslot.PartYearDay)) {
		partName, isTimeslot = name, true
	}
	if isTimeslot {
		part, err := timeslot.ParsePart(partName)
		if err != nil {
			return seg
		}
		seg.Kind = KindTemporal
		seg.Part = part
		seg.Format = format
		return seg
	}
	if fieldRe.MatchString(name) {
		seg.Kind = KindField
		seg.Name = name
		seg.Format = format
	}
	return seg
}

// Regex returns the capture name and expression matching a rendered segment.
// Fixed-width integer formats ("02d", "04d") become \d{N}; a bare "d" becomes
// \d+; anything else matches lazily.
func (s Segment) Regex() (string, string) {
	switch s.Kind {
	case KindTemporal:
		return string(s.Part), formatRegex(s.Format)
	case KindTimeslotString:
		return "timeslot_string", `\d{12}`
	case KindParameter, KindField:
		return s.Name, `.*?`
	default:
		return "", regexp.QuoteMeta(s.Text)
	}
}

func formatRegex(format string) string {
	width, ok := strings.CutSuffix(format, "d")
	if !ok {
		return `.*?`
	}
	if width == "" {
		return `\d+`
	}
	n, err := strconv.Atoi(width)
	if err != nil || n <= 0 {
		return `.*?`
	}
	if strings.HasPrefix(width, "0") {
		return fmt.Sprintf(`\d{%d}`, n)
	}
	return fmt.Sprintf(`[ \d]{%d}`, n)
}

// Render substitutes every placeholder ctx can resolve. Unresolvable
// placeholders are left verbatim.
func Render(template string, ctx Context) string {
	var sb strings.Builder
	for _, seg := range Parse(template) {
		if v, ok := seg.Value(ctx); ok {
			sb.WriteString(v)
		} else {
			sb.WriteString(seg.Text)
		}
	}
	return sb.String()
}

// Value renders a single segment. Literals always resolve.
func (s Segment) Value(ctx Context) (string, bool) {
	if s.Kind == KindLiteral {
		return s.Text, true
	}
	if ctx == nil {
		return "", false
	}
	switch s.Kind {
	case KindTemporal:
		ts := ctx.Timeslot()
		if ts.IsZero() {
			return "", false
		}
		return formatInt(s.Part.Value(ts), s.Format), true
	case KindTimeslotString:
		ts := ctx.Timeslot()
		if ts.IsZero() {
			return "", false
		}
		return timeslot.String(ts), true
	case KindParameter:
		return ctx.Parameter(s.Name)
	case KindField:
		fc, ok := ctx.(FieldContext)
		if !ok {
			return "", false
		}
		return fc.Field(s.Name)
	}
	return "", false
}

func (s Segment) lockedBy(locked []timeslot.Part) bool {
	switch s.Kind {
	case KindTemporal:
		return slices.Contains(locked, s.Part)
	case KindTimeslotString:
		for _, p := range timeslotStringParts {
			if !slices.Contains(locked, p) {
				return false
			}
		}
		return true
	}
	return false
}

func formatInt(v int, format string) string {
	if strings.HasSuffix(format, "d") {
		return fmt.Sprintf("%"+format, v)
	}
	return strconv.Itoa(v)
}

// RegexOptions controls ToRegex.
type RegexOptions struct {
	// Keep names the parameter captured as a named group.
	Keep string
	// RenderKnown renders parameter and field placeholders ctx can resolve.
	RenderKnown bool
	// QuoteLiterals escapes literal text; otherwise it is used as regex text.
	QuoteLiterals bool
	// Anchor wraps the result in ^...$.
	Anchor bool
	// Locked lists timeslot parts rendered from ctx instead of matched.
	Locked []timeslot.Part
}

// ToRegex converts template into a regular expression source. Temporal
// placeholders become their digit patterns; parameters other than
// opts.Keep become .*? unless rendered.
func ToRegex(template string, ctx Context, opts RegexOptions) string {
	var sb strings.Builder
	if opts.Anchor {
		sb.WriteString("^")
	}
	kept := false
	for _, seg := range Parse(template) {
		name, expr := seg.Regex()
		switch seg.Kind {
		case KindLiteral:
			if opts.QuoteLiterals {
				sb.WriteString(expr)
			} else {
				sb.WriteString(seg.Text)
			}
			continue
		case KindParameter, KindField:
			if opts.Keep != "" && name == opts.Keep && seg.Kind == KindParameter {
				if kept {
					sb.WriteString("(?:" + expr + ")")
				} else {
					sb.WriteString("(?P<" + GroupName(name) + ">" + expr + ")")
					kept = true
				}
				continue
			}
			if opts.RenderKnown {
				if v, ok := seg.Value(ctx); ok {
					sb.WriteString(regexp.QuoteMeta(v))
					continue
				}
			}
		case KindTemporal, KindTimeslotString:
			if seg.lockedBy(opts.Locked) {
				if v, ok := seg.Value(ctx); ok {
					sb.WriteString(regexp.QuoteMeta(v))
					continue
				}
			}
		}
		sb.WriteString("(?:" + expr + ")")
	}
	if opts.Anchor {
		sb.WriteString("$")
	}
	return sb.String()
}

var invalidGroupChar = regexp.MustCompile(`[^A-Za-z0-9_]`)

// GroupName maps a parameter name to a valid regexp group name.
func GroupName(name string) string {
	return invalidGroupChar.ReplaceAllString(name, "_")
}

// Extract matches name against the template with the given parameter
// captured and returns the captured value. An anchored match is tried first,
// then a prefix match.
func Extract(template, param, name string) (string, bool) {
	base := ToRegex(template, nil, RegexOptions{Keep: param})
	for _, src := range []string{"^" + base + "$", "^" + base} {
		re, err := regexp.Compile(src)
		if err != nil {
			return "", false
		}
		m := re.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		idx := re.SubexpIndex(GroupName(param))
		if idx < 0 {
			return "", false
		}
		return m[idx], true
	}
	return "", false
}

// Parameters lists the distinct parameter names referenced by template, in order.
func Parameters(template string) []string {
	var names []string
	seen := make(map[string]bool)
	for _, seg := range Parse(template) {
		if seg.Kind == KindParameter && !seen[seg.Name] {
			seen[seg.Name] = true
			names = append(names, seg.Name)
		}
	}
	return names
}
