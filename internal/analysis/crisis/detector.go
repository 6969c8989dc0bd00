// Package crisis flags messages that suggest the writer may be at risk.
package crisis

import (
	"sort"
	"strings"
)

// Severity grades a detection.
type Severity string

const (
	None     Severity = ""
	Elevated Severity = "elevated"
	High     Severity = "high"
)

// Resource is a place the user can reach out to.
type Resource struct {
	Name    string `json:"name"`
	Contact string `json:"contact"`
	Note    string `json:"note,omitempty"`
}

// Contact is the user's own trusted person from settings.
type Contact struct {
	Name  string
	Phone string
}

// Result is the outcome of Detect.
type Result struct {
	Detected  bool       `json:"detected"`
	Severity  Severity   `json:"severity,omitempty"`
	Matched   []string   `json:"matched,omitempty"`
	Resources []Resource `json:"resources,omitempty"`
}

var highPhrases = []string{
	"kill myself",
	"killing myself",
	"end my life",
	"ending my life",
	"take my own life",
	"want to die",
	"wanna die",
	"suicide",
	"suicidal",
	"hurt myself",
	"harm myself",
	"self harm",
	"cut myself",
	"cutting myself",
	"overdose",
	"better off dead",
	"don't want to be alive",
	"dont want to be alive",
	"no reason to live",
}

var elevatedPhrases = []string{
	"hopeless",
	"no way out",
	"can't go on",
	"cant go on",
	"give up on everything",
	"giving up on everything",
	"nobody would care",
	"no one would care",
	"nobody would miss me",
	"no one would miss me",
	"i'm a burden",
	"im a burden",
	"worthless",
	"can't take it anymore",
	"cant take it anymore",
	"disappear forever",
	"what's the point of living",
	"whats the point of living",
}

// negations cancel a phrase only when they govern it: nothing but
// auxiliary words may sit between the negation and the phrase, and a
// clause boundary always ends the search.
var negations = map[string]bool{
	"not": true, "never": true, "don't": true, "dont": true, "won't": true, "wont": true,
	"wouldn't": true, "wouldnt": true, "didn't": true, "didnt": true,
}

var auxiliaries = map[string]bool{
	"i": true, "i'm": true, "im": true, "am": true, "was": true, "is": true,
	"would": true, "will": true, "could": true, "should": true, "do": true,
	"ever": true, "really": true, "actually": true, "even": true, "definitely": true,
	"going": true, "gonna": true, "to": true, "want": true, "wanna": true,
	"try": true, "trying": true,
}

// boundary is the token normalize emits for sentence and clause breaks.
const boundary = "."

const negationWindow = 5

var defaultResources = []Resource{
	{Name: "988 Suicide & Crisis Lifeline (US)", Contact: "Call or text 988", Note: "Free, confidential, 24/7"},
	{Name: "Crisis Text Line", Contact: "Text HOME to 741741", Note: "24/7 text support"},
	{Name: "International Association for Suicide Prevention", Contact: "https://www.iasp.info/resources/Crisis_Centres/"},
	{Name: "Emergency services", Contact: "Call your local emergency number if you are in immediate danger"},
}

// DefaultResources returns a copy of the built-in hotline list.
func DefaultResources() []Resource {
	out := make([]Resource, len(defaultResources))
	copy(out, defaultResources)
	return out
}

// Detect scans text for risk phrases. A non-empty contact is listed first
// in the resources of a positive result.
func Detect(text string, contact Contact) Result {
	normalized := normalize(text)
	if normalized == "" {
		return Result{}
	}

	high := match(normalized, highPhrases)
	elevated := match(normalized, elevatedPhrases)
	if len(high) == 0 && len(elevated) == 0 {
		return Result{}
	}

	res := Result{Detected: true, Severity: Elevated}
	if len(high) > 0 {
		res.Severity = High
	}
	res.Matched = append(high, elevated...)
	sort.Strings(res.Matched)

	if strings.TrimSpace(contact.Phone) != "" {
		name := strings.TrimSpace(contact.Name)
		if name == "" {
			name = "Your trusted contact"
		}
		res.Resources = append(res.Resources, Resource{Name: name, Contact: strings.TrimSpace(contact.Phone), Note: "Your personal crisis contact"})
	}
	res.Resources = append(res.Resources, defaultResources...)
	return res
}

func match(text string, phrases []string) []string {
	var out []string
	for _, phrase := range phrases {
		if containsUnnegated(text, phrase) {
			out = append(out, phrase)
		}
	}
	return out
}

// containsUnnegated reports whether phrase occurs at least once without a
// negation in the preceding words.
func containsUnnegated(text, phrase string) bool {
	needle := " " + phrase + " "
	offset := 0
	for {
		idx := strings.Index(text[offset:], needle)
		if idx < 0 {
			return false
		}
		pos := offset + idx
		if !negated(text[:pos]) {
			return true
		}
		offset = pos + 1
	}
}

// negated walks back from the end of prefix over auxiliary words and
// reports whether it reaches a negation before anything else.
func negated(prefix string) bool {
	words := strings.Fields(prefix)
	for i, steps := len(words)-1, 0; i >= 0 && steps < negationWindow; i, steps = i-1, steps+1 {
		w := words[i]
		switch {
		case w == boundary:
			return false
		case negations[w]:
			return true
		case w == "longer" && i > 0 && words[i-1] == "no":
			return true
		case auxiliaries[w]:
			continue
		default:
			return false
		}
	}
	return false
}

// normalize lower-cases text, keeps letters, digits and apostrophes, and
// turns clause punctuation into a standalone boundary token so that
// phrases and negations never span sentences.
func normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text) + 2)
	b.WriteByte(' ')
	for _, r := range strings.ToLower(text) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '\'':
			b.WriteRune(r)
		case r == '’':
			b.WriteRune('\'')
		case strings.ContainsRune(".!?;:,\n", r):
			b.WriteString(" " + boundary + " ")
		default:
			b.WriteRune(' ')
		}
	}
	var fields []string
	for _, f := range strings.Fields(b.String()) {
		if f == boundary && (len(fields) == 0 || fields[len(fields)-1] == boundary) {
			continue
		}
		fields = append(fields, f)
	}
	if len(fields) > 0 && fields[len(fields)-1] == boundary {
		fields = fields[:len(fields)-1]
	}
	if len(fields) == 0 {
		return ""
	}
	return " " + strings.Join(fields, " ") + " "
}
