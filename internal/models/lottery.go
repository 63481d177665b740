package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// PersonID identifies a participant. Imported records carry string ids while
// hand-entered ones may be numeric, so both JSON forms decode into a string.
type PersonID string

// UnmarshalJSON accepts either a JSON string or a JSON number.
func (id *PersonID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = PersonID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("person id must be a string or number: %w", err)
	}
	*id = PersonID(n.String())
	return nil
}

// Person represents a participant in the draw.
type Person struct {
	ID         PersonID `json:"id" validate:"required"`
	Name       string   `json:"name" validate:"required"`
	Department string   `json:"department"`
	Avatar     string   `json:"avatar,omitempty"`
}

// PrizeTier represents a single prize category.
// Count is the total quota, DrawCount how many winners one draw action picks.
type PrizeTier struct {
	ID        int    `json:"id" validate:"min=1"`
	Name      string `json:"name" validate:"required"`
	Count     int    `json:"count" validate:"min=1"`
	DrawCount int    `json:"drawCount" validate:"min=1,ltefield=Count"`
	Image     string `json:"image,omitempty"`
}

// WinnerRecord stores the outcome of a draw for one person.
// Records are append-only; WonAt is the commit time.
type WinnerRecord struct {
	PersonID   PersonID  `json:"id"`
	Name       string    `json:"name"`
	Department string    `json:"department"`
	Avatar     string    `json:"avatar,omitempty"`
	PrizeID    int       `json:"prizeId"`
	PrizeName  string    `json:"prizeName"`
	WonAt      time.Time `json:"winTime"`
}

// WinTimeString is the local wall-clock time of the win, as shown in exports.
func (r WinnerRecord) WinTimeString() string {
	return r.WonAt.Local().Format("15:04:05")
}

// WinDateString is the local date of the win, as shown in exports.
func (r WinnerRecord) WinDateString() string {
	return r.WonAt.Local().Format("2006/01/02")
}

// DesignatedList maps a prize id to the persons pre-committed to win it.
type DesignatedList struct {
	Prizes map[int][]Person `json:"designatedList"`
}

// MarshalJSON writes the prize keys as strings, matching the persisted layout.
func (d DesignatedList) MarshalJSON() ([]byte, error) {
	out := make(map[string][]Person, len(d.Prizes))
	for id, persons := range d.Prizes {
		out[strconv.Itoa(id)] = persons
	}
	return json.Marshal(struct {
		DesignatedList map[string][]Person `json:"designatedList"`
	}{out})
}

// UnmarshalJSON reads string prize keys back into ints.
func (d *DesignatedList) UnmarshalJSON(data []byte) error {
	var raw struct {
		DesignatedList map[string][]Person `json:"designatedList"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	d.Prizes = make(map[int][]Person, len(raw.DesignatedList))
	for key, persons := range raw.DesignatedList {
		id, err := strconv.Atoi(key)
		if err != nil {
			return fmt.Errorf("designated list key %q: %w", key, err)
		}
		d.Prizes[id] = persons
	}
	return nil
}

// Blacklist holds persons that are never eligible for any draw.
type Blacklist struct {
	Persons []Person `json:"blacklist"`
}

// DrawMode selects how a spinning session is stopped.
type DrawMode string

const (
	DrawModeAuto   DrawMode = "auto"
	DrawModeManual DrawMode = "manual"
)

// Settings is the persisted configuration edited from the settings panel.
type Settings struct {
	MainTitle          string      `json:"mainTitle"`
	SubTitle           string      `json:"subTitle"`
	FirstPrize         string      `json:"firstPrize"`
	Prizes             []PrizeTier `json:"prizes" validate:"dive"`
	CurrentPrizeID     int         `json:"currentPrizeId"`
	AllowRepeatWinners bool        `json:"allowRepeatWinners"`
	AutoPlayMusic      bool        `json:"autoPlayMusic"`
	DrawMode           DrawMode    `json:"drawMode" validate:"oneof=auto manual"`
	CountdownDuration  int         `json:"countdownDuration" validate:"min=1,max=60"`
}

// Prize returns the tier with the given id.
func (s Settings) Prize(id int) (PrizeTier, bool) {
	for _, p := range s.Prizes {
		if p.ID == id {
			return p, true
		}
	}
	return PrizeTier{}, false
}

// DefaultSettings returns the configuration used before anything is saved.
func DefaultSettings() Settings {
	return Settings{
		MainTitle:  "年度晚會",
		SubTitle:   "新春抽獎",
		FirstPrize: "iPhone 17 Pro Max",
		Prizes: []PrizeTier{
			{ID: 1, Name: "特等獎", Count: 1, DrawCount: 1},
			{ID: 2, Name: "一等獎", Count: 3, DrawCount: 1},
			{ID: 3, Name: "二等獎", Count: 10, DrawCount: 1},
			{ID: 4, Name: "三等獎", Count: 20, DrawCount: 5},
			{ID: 5, Name: "參與獎", Count: 50, DrawCount: 10},
		},
		CurrentPrizeID:     5,
		AllowRepeatWinners: false,
		AutoPlayMusic:      true,
		DrawMode:           DrawModeAuto,
		CountdownDuration:  5,
	}
}
