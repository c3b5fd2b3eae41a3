package models

// Player is the public view of one participant. HandCount is the only hand
// information ever replicated to non-owning peers; the cards themselves go
// out over PRIVATE_HAND and PLAY_RESULT only.
type Player struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	IsHost    bool   `json:"isHost"`
	HandCount int    `json:"handCount"`
	Score     int    `json:"score"`
	Connected bool   `json:"connected"`
}
