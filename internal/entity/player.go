package entity

type Player struct {
	ID       string `json:"id"`
	Color    string `json:"color,omitempty"`
	GameID   string `json:"game_id,omitempty"`
	Unplaced int    `json:"unplaced"`
	InPlay   int    `json:"in_play"`
}
