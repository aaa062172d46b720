package domain

// Player is a participant in one round of a game
type Player struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Score int    `json:"score"` // cumulative across linked rounds
}

// User is a registered account that can be invited to games
type User struct {
	ID         string `json:"id"`
	ExternalID string `json:"externalId"`
	Name       string `json:"name"`
	Email      string `json:"email,omitempty"`
}

// Entitlements are the purchase flags reported alongside a player's games
type Entitlements struct {
	Unlocked  bool `json:"unlocked"`
	PoemsLeft int  `json:"poemsLeft"`
}

// PlayersFromIDs builds a seat list for the given ids, looking names up in users
func PlayersFromIDs(ids []string, users map[string]User) []Player {
	players := make([]Player, 0, len(ids))
	for _, id := range ids {
		players = append(players, Player{ID: id, Name: users[id].Name})
	}
	return players
}
