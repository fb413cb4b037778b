package brief

import "strings"

// Section header aliases, matched case-insensitively after trimming a
// trailing colon. Authors are inconsistent about plurals and abbreviations,
// so each canonical section accepts several spellings.
var (
	productHeaders      = []string{"product", "product name", "offer"}
	categoryHeaders     = []string{"category", "vertical"}
	summaryHeaders      = []string{"summary", "description", "about"}
	audienceHeaders     = []string{"audience", "audiences", "target audience", "who it's for"}
	valuePropHeaders    = []string{"value props", "value propositions", "value proposition", "benefits"}
	proofPointHeaders   = []string{"proof points", "proof", "evidence", "results"}
	primaryCTAHeaders   = []string{"primary cta", "cta", "call to action"}
	secondaryCTAHeaders = []string{"secondary cta", "alternate cta"}

	voiceHeaders = []string{"voice", "brand voice"}
	toneHeaders  = []string{"tone", "tone words"}
	doNotHeaders = []string{"do not", "don't", "avoid", "never say"}
)

// knownHeaders is the union of all aliases. Only lines whose name appears
// here open a section; any other "foo: bar" line is ordinary content.
var knownHeaders = func() map[string]bool {
	m := make(map[string]bool)
	for _, group := range [][]string{
		productHeaders, categoryHeaders, summaryHeaders, audienceHeaders,
		valuePropHeaders, proofPointHeaders, primaryCTAHeaders, secondaryCTAHeaders,
		voiceHeaders, toneHeaders, doNotHeaders,
	} {
		for _, h := range group {
			m[h] = true
		}
	}
	return m
}()

// ParseBrief normalizes raw brief text. Unrecognized lines outside any
// section are ignored; a section that never appears yields its zero value.
func ParseBrief(raw string) Brief {
	b := Brief{Raw: raw}
	sections := splitSections(raw)

	b.Product = firstScalar(sections, productHeaders)
	b.Category = firstScalar(sections, categoryHeaders)
	b.Summary = firstScalar(sections, summaryHeaders)
	b.Audience = firstList(sections, audienceHeaders)
	b.ValueProps = firstList(sections, valuePropHeaders)
	b.ProofPoints = firstList(sections, proofPointHeaders)
	b.PrimaryCTA = firstScalar(sections, primaryCTAHeaders)
	b.SecondaryCTA = firstScalar(sections, secondaryCTAHeaders)

	return b
}

// ParseBrand normalizes raw brand-guide text.
func ParseBrand(raw string) Brand {
	g := Brand{Raw: raw}
	sections := splitSections(raw)

	g.Voice = firstScalar(sections, voiceHeaders)
	g.ToneWords = firstList(sections, toneHeaders)
	g.DoNot = firstList(sections, doNotHeaders)

	return g
}

// ParseDenylist normalizes raw denylist text: one phrase per line, blank
// lines and #-comments skipped.
func ParseDenylist(raw string) Denylist {
	d := Denylist{Raw: raw}
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "-"))
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		d.Phrases = append(d.Phrases, line)
	}
	return d
}

// ParseInputs normalizes all three raw inputs in one call.
func ParseInputs(briefText, brandText, denylistText string) Inputs {
	return Inputs{
		Brief:    ParseBrief(briefText),
		Brand:    ParseBrand(brandText),
		Denylist: ParseDenylist(denylistText),
	}
}

// section holds the lines collected under one header.
type section struct {
	header string
	inline string
	lines  []string
}

// splitSections walks the text line by line. A line of the form
// "Header: value" opens a section with an inline value; "Header:" alone
// opens a block section whose subsequent non-header lines belong to it.
func splitSections(raw string) []section {
	var sections []section
	var current *section

	for _, line := range strings.Split(raw, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		if header, inline, ok := parseHeaderLine(trimmed); ok {
			sections = append(sections, section{header: header, inline: inline})
			current = &sections[len(sections)-1]
			continue
		}

		if current != nil {
			current.lines = append(current.lines, trimmed)
		}
	}

	return sections
}

// parseHeaderLine recognizes "Header:" and "Header: value" lines for known
// headers only. Bullet lines and colon-bearing content lines stay content.
func parseHeaderLine(line string) (header, inline string, ok bool) {
	if strings.HasPrefix(line, "-") || strings.HasPrefix(line, "*") {
		return "", "", false
	}
	idx := strings.Index(line, ":")
	if idx <= 0 {
		return "", "", false
	}
	header = strings.ToLower(strings.TrimSpace(line[:idx]))
	if !knownHeaders[header] {
		return "", "", false
	}
	inline = strings.TrimSpace(line[idx+1:])
	return header, inline, true
}

// firstScalar returns the inline value (or first content line) of the first
// section matching any alias, or "".
func firstScalar(sections []section, aliases []string) string {
	for _, s := range sections {
		if !matchesAlias(s.header, aliases) {
			continue
		}
		if s.inline != "" {
			return s.inline
		}
		for _, line := range s.lines {
			if v := stripBullet(line); v != "" {
				return v
			}
		}
	}
	return ""
}

// firstList returns the items of the first section matching any alias.
// An inline value is split on ";" or "," so one-line lists still work.
func firstList(sections []section, aliases []string) []string {
	for _, s := range sections {
		if !matchesAlias(s.header, aliases) {
			continue
		}

		var items []string
		if s.inline != "" {
			sep := ";"
			if !strings.Contains(s.inline, ";") {
				sep = ","
			}
			for _, part := range strings.Split(s.inline, sep) {
				if v := strings.TrimSpace(part); v != "" {
					items = append(items, v)
				}
			}
		}
		for _, line := range s.lines {
			if v := stripBullet(line); v != "" {
				items = append(items, v)
			}
		}
		return items
	}
	return nil
}

func matchesAlias(header string, aliases []string) bool {
	for _, a := range aliases {
		if header == a {
			return true
		}
	}
	return false
}

func stripBullet(line string) string {
	line = strings.TrimSpace(line)
	for _, prefix := range []string{"-", "*", "•"} {
		if strings.HasPrefix(line, prefix) {
			return strings.TrimSpace(strings.TrimPrefix(line, prefix))
		}
	}
	return line
}
