package profanity

import (
	"embed"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"
)

var (
	defaultFilter *Filter
	defaultErr    error
	once          sync.Once

	separators = regexp.MustCompile(`[\s_.\-*/\\|]+`)
)

//go:embed words.json
var wordsFS embed.FS

func loadBannedWords() ([]string, error) {
	data, err := wordsFS.ReadFile("words.json")
	if err != nil {
		return nil, fmt.Errorf("read embedded word list: %w", err)
	}

	var words []string
	if err := json.Unmarshal(data, &words); err != nil {
		return nil, fmt.Errorf("decode embedded word list: %w", err)
	}
	return words, nil
}

// Filter matches banned words after undoing common obfuscation (accents, leetspeak,
// separators inside words, doubled letters).
type Filter struct {
	regex *regexp.Regexp
}

// Default returns the shared filter built from the embedded word list.
func Default() (*Filter, error) {
	once.Do(func() {
		words, err := loadBannedWords()
		if err != nil {
			defaultErr = err
			return
		}
		defaultFilter = New(words)
	})
	return defaultFilter, defaultErr
}

func New(words []string) *Filter {
	patterns := make([]string, 0, len(words))
	for _, w := range words {
		w = normalizeText(w)
		if w == "" {
			continue
		}
		patterns = append(patterns, flexible(w))
	}
	if len(patterns) == 0 {
		return &Filter{}
	}
	return &Filter{
		regex: regexp.MustCompile(`(?:^|[^\p{L}])(` + strings.Join(patterns, "|") + `)(?:$|[^\p{L}])`),
	}
}

func (f *Filter) ContainsProfanity(text string) bool {
	if f == nil || f.regex == nil || text == "" {
		return false
	}
	return f.regex.MatchString(normalizeText(text))
}

// flexible lets every letter repeat and be followed by separators: "shit" also matches "s h i i t".
func flexible(word string) string {
	var sb strings.Builder
	runes := []rune(word)
	for i, r := range runes {
		sb.WriteString(regexp.QuoteMeta(string(r)))
		sb.WriteString("+")
		if i < len(runes)-1 {
			sb.WriteString(`[^\p{L}]*`)
		}
	}
	return sb.String()
}

var leet = strings.NewReplacer(
	"@", "a", "4", "a",
	"3", "e", "€", "e",
	"1", "i", "!", "i", "|", "i", "¡", "i",
	"0", "o", "()", "o", "[]", "o",
	"$", "s", "5", "s",
	"7", "t", "+", "t",
	"9", "g", "8", "b",
	"ph", "f",
)

func normalizeText(text string) string {
	s := strings.ToLower(text)
	s = strings.Map(func(r rune) rune {
		switch r {
		case 'á', 'à', 'â', 'ä', 'ã', 'å':
			return 'a'
		case 'é', 'è', 'ê', 'ë':
			return 'e'
		case 'í', 'ì', 'î', 'ï':
			return 'i'
		case 'ó', 'ò', 'ô', 'ö', 'õ':
			return 'o'
		case 'ú', 'ù', 'û', 'ü':
			return 'u'
		case 'ñ':
			return 'n'
		case 'ç':
			return 'c'
		default:
			return r
		}
	}, s)
	s = leet.Replace(s)
	return separators.ReplaceAllString(s, " ")
}
