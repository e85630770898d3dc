package identity

import (
	"math/rand"
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

// Longest nickname kept, in runes
const MaxNicknameLength = 32

var palette = []string{
	"#FF6B6B", "#4ECDC4", "#45B7D1", "#96CEB4",
	"#FFEAA7", "#DDA0DD", "#98D8C8", "#F7DC6F",
	"#BB8FCE", "#85C1E9", "#F8B500", "#00CED1",
	"#FF69B4", "#32CD32", "#FF8C00", "#9370DB",
}

var adjectives = []string{
	"Happy", "Swift", "Brave", "Calm", "Clever",
	"Eager", "Fancy", "Gentle", "Jolly", "Kind",
	"Lucky", "Merry", "Noble", "Polite", "Quick",
}

var animals = []string{
	"Panda", "Tiger", "Eagle", "Dolphin", "Fox",
	"Koala", "Lion", "Owl", "Rabbit", "Wolf",
	"Bear", "Cat", "Dog", "Hawk", "Deer",
}

// Identity is the display identity handed to a participant on join
type Identity struct {
	ID    string
	Name  string
	Color string
}

// Generator derives identities from a random source
type Generator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewGenerator() *Generator {
	return NewGeneratorWithSource(rand.NewSource(time.Now().UnixNano()))
}

// Uses the given source, tests pass a fixed seed
func NewGeneratorWithSource(src rand.Source) *Generator {
	return &Generator{rng: rand.New(src)}
}

// Generate returns the identity for a connection. The nickname wins when it is
// non-blank; otherwise an "Adjective Animal" name is composed.
func (g *Generator) Generate(connectionID, nickname string) Identity {
	g.mu.Lock()
	defer g.mu.Unlock()

	name := NormalizeNickname(nickname)
	if name == "" {
		name = adjectives[g.rng.Intn(len(adjectives))] + " " + animals[g.rng.Intn(len(animals))]
	}

	return Identity{
		ID:    connectionID,
		Name:  name,
		Color: palette[g.rng.Intn(len(palette))],
	}
}

// Float64 exposes the generator's source for other server-chosen randomness
func (g *Generator) Float64() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rng.Float64()
}

// NormalizeNickname trims whitespace and caps the length
func NormalizeNickname(nickname string) string {
	name := strings.TrimSpace(nickname)
	if utf8.RuneCountInString(name) > MaxNicknameLength {
		name = string([]rune(name)[:MaxNicknameLength])
	}
	return name
}

