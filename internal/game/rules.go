// internal/game/rules.go
package game

import (
	"github.com/tar-gezed/odin/internal/deck"
	"github.com/tar-gezed/odin/internal/models"
)

// ReasonCode identifies why a proposed play was rejected. Carried in NACK-style
// results so the UI layer can render a localized message.
type ReasonCode string

const (
	ReasonSameColorOrValueRequired ReasonCode = "SAME_COLOR_OR_VALUE_REQUIRED"
	ReasonFirstPlaySingleOrWhole   ReasonCode = "FIRST_PLAY_SINGLE_OR_WHOLE_HAND"
	ReasonMustPlayNOrNPlusOne      ReasonCode = "MUST_PLAY_N_OR_N_PLUS_1"
	ReasonValueNotStrictlyHigher   ReasonCode = "VALUE_NOT_STRICTLY_HIGHER"
)

// PlayCheck is the outcome of validating a proposed play.
type PlayCheck struct {
	Valid  bool
	Reason ReasonCode

	// PlayedValue is the combination value of the play when it was computed.
	PlayedValue int
	// CenterValue accompanies ReasonValueNotStrictlyHigher.
	CenterValue int
	// WantCounts accompanies ReasonMustPlayNOrNPlusOne: the two legal play sizes.
	WantCounts [2]int
}

// ValidatePlay decides whether played is a legal answer to the current top
// set. handSize, when positive, enables the fresh-stack restriction: a
// multi-card opening play must use the player's entire hand. Pass handSize
// <= 0 to skip that check (the authoritative host does, matching the rule
// that the restriction is a client-side courtesy).
//
// The function is pure: identical on host and client, no side effects.
func ValidatePlay(played, centerTop []models.Card, handSize int) PlayCheck {
	if !deck.IsValidCombination(played) {
		return PlayCheck{Reason: ReasonSameColorOrValueRequired}
	}

	if len(centerTop) == 0 {
		if handSize > 0 && len(played) > 1 && len(played) != handSize {
			return PlayCheck{Reason: ReasonFirstPlaySingleOrWhole}
		}
		return PlayCheck{Valid: true, PlayedValue: deck.CombinationValue(played)}
	}

	countDiff := len(played) - len(centerTop)
	if countDiff != 0 && countDiff != 1 {
		return PlayCheck{
			Reason:     ReasonMustPlayNOrNPlusOne,
			WantCounts: [2]int{len(centerTop), len(centerTop) + 1},
		}
	}

	playedVal := deck.CombinationValue(played)
	if countDiff == 1 {
		// More cards always beats fewer, regardless of numeric value.
		return PlayCheck{Valid: true, PlayedValue: playedVal}
	}

	centerVal := deck.CombinationValue(centerTop)
	if playedVal <= centerVal {
		return PlayCheck{
			Reason:      ReasonValueNotStrictlyHigher,
			PlayedValue: playedVal,
			CenterValue: centerVal,
		}
	}
	return PlayCheck{Valid: true, PlayedValue: playedVal}
}
