package game

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tar-gezed/odin/internal/models"
)

func reds(values ...int) []models.Card {
	out := make([]models.Card, len(values))
	for i, v := range values {
		out[i] = models.Card{Value: v, Color: models.Red}
	}
	return out
}

func TestValidatePlayOpeningStack(t *testing.T) {
	// A single card always opens.
	check := ValidatePlay(reds(4), nil, 0)
	assert.True(t, check.Valid)
	assert.Equal(t, 4, check.PlayedValue)

	// A multi-card set opens too when no hand size is enforced.
	check = ValidatePlay(reds(4, 2), nil, 0)
	assert.True(t, check.Valid)
	assert.Equal(t, 42, check.PlayedValue)
}

func TestValidatePlayWholeHandRestriction(t *testing.T) {
	// With a hand of 3, a 2-card opening set is refused.
	check := ValidatePlay(reds(4, 2), nil, 3)
	assert.False(t, check.Valid)
	assert.Equal(t, ReasonFirstPlaySingleOrWhole, check.Reason)

	// The whole hand is fine.
	check = ValidatePlay(reds(4, 2, 1), nil, 3)
	assert.True(t, check.Valid)

	// Singles are always exempt.
	check = ValidatePlay(reds(4), nil, 3)
	assert.True(t, check.Valid)
}

func TestValidatePlayRejectsBadCombination(t *testing.T) {
	mixed := []models.Card{
		{Value: 4, Color: models.Red},
		{Value: 7, Color: models.Blue},
	}
	check := ValidatePlay(mixed, nil, 0)
	assert.False(t, check.Valid)
	assert.Equal(t, ReasonSameColorOrValueRequired, check.Reason)

	check = ValidatePlay(nil, nil, 0)
	assert.False(t, check.Valid)
	assert.Equal(t, ReasonSameColorOrValueRequired, check.Reason)
}

func TestValidatePlayCountWindow(t *testing.T) {
	top := reds(5, 3)

	// One card against a pair is too few.
	check := ValidatePlay(reds(9), top, 0)
	assert.False(t, check.Valid)
	assert.Equal(t, ReasonMustPlayNOrNPlusOne, check.Reason)
	assert.Equal(t, [2]int{2, 3}, check.WantCounts)

	// Four cards against a pair is too many.
	check = ValidatePlay(reds(9, 8, 7, 6), top, 0)
	assert.False(t, check.Valid)
	assert.Equal(t, ReasonMustPlayNOrNPlusOne, check.Reason)
}

func TestValidatePlayMoreCardsAlwaysWin(t *testing.T) {
	// 11 beats a lone 9 because count outranks value.
	check := ValidatePlay(reds(1, 1), reds(9), 0)
	assert.True(t, check.Valid)
	assert.Equal(t, 11, check.PlayedValue)
}

func TestValidatePlayEqualCountNeedsHigherValue(t *testing.T) {
	// 82 does not beat 83.
	check := ValidatePlay(reds(2, 8), reds(8, 3), 0)
	assert.False(t, check.Valid)
	assert.Equal(t, ReasonValueNotStrictlyHigher, check.Reason)
	assert.Equal(t, 82, check.PlayedValue)
	assert.Equal(t, 83, check.CenterValue)

	// Ties lose as well.
	check = ValidatePlay(reds(8), reds(8), 0)
	assert.False(t, check.Valid)
	assert.Equal(t, ReasonValueNotStrictlyHigher, check.Reason)

	// 91 beats 83.
	check = ValidatePlay(reds(9, 1), reds(8, 3), 0)
	assert.True(t, check.Valid)
	assert.Equal(t, 91, check.PlayedValue)
}
