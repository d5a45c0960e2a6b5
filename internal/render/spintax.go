package render

import (
	"math/rand"
	"regexp"
	"strings"
	"sync"
	"time"
)

// MaxSpinPasses bounds how many nesting levels Spin resolves.
const MaxSpinPasses = 10

var innermostGroup = regexp.MustCompile(`\{([^{}]+)\}`)

// Placeholders for braces that are not spintax so later passes skip them.
const (
	openMask  = "\x00"
	closeMask = "\x01"
)

// Spinner resolves {a|b|c} groups to one alternative per occurrence.
type Spinner struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewSpinner(rng *rand.Rand) *Spinner {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Spinner{rng: rng}
}

// Spin resolves groups innermost first. Braced text without a pipe is kept
// as written.
func (s *Spinner) Spin(text string) string {
	if text == "" {
		return text
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for pass := 0; pass < MaxSpinPasses; pass++ {
		if !innermostGroup.MatchString(text) {
			break
		}
		text = innermostGroup.ReplaceAllStringFunc(text, func(group string) string {
			inner := group[1 : len(group)-1]
			if !strings.Contains(inner, "|") {
				return openMask + inner + closeMask
			}
			options := strings.Split(inner, "|")
			return strings.TrimSpace(options[s.rng.Intn(len(options))])
		})
	}

	text = strings.ReplaceAll(text, openMask, "{")
	return strings.ReplaceAll(text, closeMask, "}")
}

// CountVariants returns the product of the option counts of every innermost
// group, or 1 when the text has none.
func CountVariants(text string) int {
	total := 1
	for _, m := range innermostGroup.FindAllStringSubmatch(text, -1) {
		if strings.Contains(m[1], "|") {
			total *= len(strings.Split(m[1], "|"))
		}
	}
	return total
}
