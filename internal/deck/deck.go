// Package deck builds Odin decks and scores card combinations.
package deck

import (
	"math/rand"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tar-gezed/odin/internal/models"
)

// Colors in canonical deck-construction order.
var Colors = []models.Color{
	models.Red, models.Blue, models.Green,
	models.Yellow, models.Purple, models.Orange,
}

const (
	// MaxCardValue is the highest card value; every color carries 1..MaxCardValue.
	MaxCardValue = 9

	// Size is the full deck size: 6 colors x 9 values.
	Size = 54
)

// New builds a fresh 54-card deck, exactly one card per (color, value) pair,
// each with a unique id, shuffled with an unbiased Fisher-Yates permutation.
func New() []models.Card {
	cards := make([]models.Card, 0, Size)
	for _, color := range Colors {
		for v := 1; v <= MaxCardValue; v++ {
			cards = append(cards, models.Card{
				ID:    uuid.NewString(),
				Value: v,
				Color: color,
			})
		}
	}
	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	r.Shuffle(len(cards), func(i, j int) {
		cards[i], cards[j] = cards[j], cards[i]
	})
	return cards
}

// CombinationValue is the total ordering key for comparing plays: the card
// values sorted descending and concatenated as decimal digits. Values {2, 8}
// score 82, not 10. Empty input scores 0.
func CombinationValue(cards []models.Card) int {
	if len(cards) == 0 {
		return 0
	}
	values := make([]int, len(cards))
	for i, c := range cards {
		values[i] = c.Value
	}
	sort.Sort(sort.Reverse(sort.IntSlice(values)))

	var sb strings.Builder
	for _, v := range values {
		sb.WriteString(strconv.Itoa(v))
	}
	n, _ := strconv.Atoi(sb.String())
	return n
}

// IsValidCombination reports whether the cards form a playable set: a single
// card always does; multiple cards must all share a color or all share a
// value. An empty selection is not a play.
func IsValidCombination(cards []models.Card) bool {
	if len(cards) == 0 {
		return false
	}
	if len(cards) == 1 {
		return true
	}
	sameColor, sameValue := true, true
	for _, c := range cards[1:] {
		if c.Color != cards[0].Color {
			sameColor = false
		}
		if c.Value != cards[0].Value {
			sameValue = false
		}
	}
	return sameColor || sameValue
}

// SortDescending orders cards in place by value, highest first. Sets are
// stored on the center stack in this order.
func SortDescending(cards []models.Card) {
	sort.Slice(cards, func(i, j int) bool {
		return cards[i].Value > cards[j].Value
	})
}
