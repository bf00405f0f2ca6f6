package extraction

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// EntityKind names an entity block.
type EntityKind string

const (
	EntityProjects  EntityKind = "projects"
	EntityCompanies EntityKind = "companies"
	EntityDates     EntityKind = "dates"
)

var entityHeadings = map[EntityKind]string{
	EntityProjects:  "Projects",
	EntityCompanies: "Companies",
	EntityDates:     "Dates",
}

// Entity patterns
var (
	// "project Apollo", "проект Альфа Бета"
	projectRegex = regexp.MustCompile(`(?i)(?:^|[^\p{L}])((?:проект|project|система|платформа|сервис|приложение|продукт)[ \t]+[\p{L}\p{N}][\p{L}\p{N}_-]*(?:[ \t]+[\p{L}\p{N}][\p{L}\p{N}_-]*){0,2})`)

	// Tokens considered for company names.
	tokenRegex = regexp.MustCompile(`[\p{L}\p{N}][\p{L}\p{N}&_-]*`)

	// 2024-05-14, 14.05.2024, 14/05/24
	numericDateRegex = regexp.MustCompile(`(?:^|\D)(\d{4}-\d{2}-\d{2}|\d{1,2}[./]\d{1,2}[./]\d{2,4})(?:\D|$)`)
)

// companyMarkers introduce a company name as the next word.
var companyMarkers = map[string]bool{"компания": true, "компании": true, "company": true}

// companySuffixes mark a word as a company name when it ends with one.
var companySuffixes = []string{"нефть", "банк", "групп", "холдинг", "корп"}

// EntityBlock is one rendered group of extracted entities.
type EntityBlock struct {
	Kind    EntityKind `json:"kind" yaml:"kind"`
	Heading string     `json:"heading" yaml:"heading"`
	Items   []string   `json:"items" yaml:"items"`
}

// Markdown renders the block as a heading followed by a bullet list.
func (b EntityBlock) Markdown() string {
	var sb strings.Builder
	sb.WriteString("### ")
	sb.WriteString(b.Heading)
	for _, item := range b.Items {
		sb.WriteString("\n- ")
		sb.WriteString(item)
	}
	return sb.String()
}

// RenderBlocks joins block markdown with blank lines.
func RenderBlocks(blocks []EntityBlock) string {
	parts := make([]string, 0, len(blocks))
	for _, b := range blocks {
		parts = append(parts, b.Markdown())
	}
	return strings.Join(parts, "\n\n")
}

// ExtractEntities scans the bounded analysis text for projects, companies
// and dates. Only non-empty blocks are returned, in that order.
func (e *Extractor) ExtractEntities(notes, transcript string) []EntityBlock {
	text := AnalysisText(notes, transcript, e.analysisLimit)
	blocks := make([]EntityBlock, 0, 3)

	add := func(kind EntityKind, candidates []string) {
		items := dedupe(candidates, e.maxPerKind)
		if len(items) > 0 {
			blocks = append(blocks, EntityBlock{Kind: kind, Heading: entityHeadings[kind], Items: items})
		}
	}

	add(EntityProjects, submatches(projectRegex, text))
	add(EntityCompanies, findCompanies(text))
	add(EntityDates, submatches(numericDateRegex, text))

	return blocks
}

func submatches(re *regexp.Regexp, text string) []string {
	var out []string
	for _, m := range re.FindAllStringSubmatch(text, -1) {
		out = append(out, strings.TrimSpace(m[1]))
	}
	return out
}

func findCompanies(text string) []string {
	var out []string
	tokens := tokenRegex.FindAllString(text, -1)
	for i, tok := range tokens {
		lower := strings.ToLower(tok)
		if companyMarkers[lower] {
			if i+1 < len(tokens) {
				out = append(out, tokens[i+1])
			}
			continue
		}
		for _, suffix := range companySuffixes {
			if strings.HasSuffix(lower, suffix) && utf8.RuneCountInString(lower) > utf8.RuneCountInString(suffix) {
				out = append(out, tok)
				break
			}
		}
	}
	return out
}

// dedupe keeps the first spelling of each case-insensitive value, up to
// limit values.
func dedupe(values []string, limit int) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, limit)
	for _, v := range values {
		key := strings.ToLower(v)
		if v == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, v)
		if len(out) == limit {
			break
		}
	}
	return out
}
