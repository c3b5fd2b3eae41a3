package models

// Color is one of the six colors an Odin card can carry.
type Color string

const (
	Red    Color = "Red"
	Blue   Color = "Blue"
	Green  Color = "Green"
	Yellow Color = "Yellow"
	Purple Color = "Purple"
	Orange Color = "Orange"
)

// Card is an immutable card value. Identity is the ID; ids stay unique
// across redeals even though each deck holds one card per (color, value).
type Card struct {
	ID    string `json:"id"`
	Value int    `json:"value"`
	Color Color  `json:"color"`
}
