// Package bio maintains the numeric stat tokens embedded in a player's
// biography text.
//
// A biography is free prose that carries labeled integer fields such as
// "health 100" or "money 50". Player bios written in Chinese use the
// localized labels "生命值" and "金錢"; the codec matches either form.
// The numbers in the text are the rendered view of the authoritative
// stat values held in the session's world context, and the codec keeps
// the two in sync.
package bio

import (
	"fmt"
	"regexp"
	"strconv"
)

// Stat identifies a labeled numeric field in a biography.
type Stat string

// The two stats tracked in every biography.
const (
	StatHealth Stat = "health"
	StatMoney  Stat = "money"
)

// statAliases lists the labels recognized for each stat, canonical
// (English) form first. Seeding always writes the canonical label.
var statAliases = map[Stat][]string{
	StatHealth: {"health", "生命值"},
	StatMoney:  {"money", "金錢"},
}

// statPatterns holds one compiled "<label> <digits>" pattern per alias.
var statPatterns = map[Stat][]*regexp.Regexp{}

func init() {
	for stat, aliases := range statAliases {
		for _, alias := range aliases {
			statPatterns[stat] = append(statPatterns[stat],
				regexp.MustCompile(regexp.QuoteMeta(alias)+`\s*(\d+)`))
		}
	}
}

// Result describes the outcome of applying a delta to a biography stat.
type Result struct {
	// Bio is the biography text after the rewrite. Unchanged when the
	// stat's label was not found.
	Bio string

	// Value is the stat value after the delta, floored at zero.
	// Only meaningful when Applied is true.
	Value int

	// Applied reports whether a labeled field was found and rewritten.
	// A missing label makes the whole operation a no-op: the delta is
	// silently dropped. This mirrors the seeding contract — a bio that
	// was never initialized has no stats to update.
	Applied bool

	// ForcedZero reports that the delta drove the value to the zero
	// floor. For health this is authoritative: the caller must force
	// game over regardless of what the narrative model decided.
	ForcedZero bool
}

// Apply locates stat's labeled integer in bioText and replaces it with
// max(0, old+delta). The first matching alias wins; only its first
// occurrence is rewritten.
func Apply(bioText string, stat Stat, delta int) Result {
	for _, re := range statPatterns[stat] {
		loc := re.FindStringSubmatchIndex(bioText)
		if loc == nil {
			continue
		}

		old, err := strconv.Atoi(bioText[loc[2]:loc[3]])
		if err != nil {
			// \d+ guarantees digits; only overflow can land here.
			continue
		}

		value := old + delta
		forced := value <= 0
		if value < 0 {
			value = 0
		}

		newBio := bioText[:loc[2]] + strconv.Itoa(value) + bioText[loc[3]:]
		return Result{Bio: newBio, Value: value, Applied: true, ForcedZero: forced}
	}

	return Result{Bio: bioText}
}

// Value returns the current value of stat in bioText, if present.
func Value(bioText string, stat Stat) (int, bool) {
	r := Apply(bioText, stat, 0)
	return r.Value, r.Applied
}

// Has reports whether bioText already carries any recognized label for stat.
func Has(bioText string, stat Stat) bool {
	for _, re := range statPatterns[stat] {
		if re.MatchString(bioText) {
			return true
		}
	}
	return false
}

// Seed appends a canonical "<label> <value>" token to bioText unless the
// stat is already present under any alias. Called once at session
// initialization so that later deltas have a field to land on.
func Seed(bioText string, stat Stat, value int) string {
	if Has(bioText, stat) {
		return bioText
	}
	label := statAliases[stat][0]
	if bioText == "" {
		return fmt.Sprintf("%s %d", label, value)
	}
	return fmt.Sprintf("%s %s %d", bioText, label, value)
}
