package tmdb

import "strconv"

type TV struct {
	ID              int    `json:"id"`
	Name            string `json:"name"`
	NumberOfSeasons int    `json:"number_of_seasons"`
}

type AggregateRole struct {
	CreditID     string `json:"credit_id"`
	Character    string `json:"character"`
	EpisodeCount int    `json:"episode_count"`
	// Season is only present on some payloads, 0 when absent.
	Season int `json:"season"`
}

type AggregateCast struct {
	ID                int             `json:"id"`
	Name              string          `json:"name"`
	OriginalName      string          `json:"original_name"`
	TotalEpisodeCount int             `json:"total_episode_count"`
	Roles             []AggregateRole `json:"roles"`
}

func (c AggregateCast) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	return c.OriginalName
}

type aggregateCredits struct {
	Cast []AggregateCast `json:"cast"`
}

type Credit struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	CreditID  string `json:"credit_id"`
	Character string `json:"character"`
}

type Episode struct {
	ID            int      `json:"id"`
	Name          string   `json:"name"`
	AirDate       string   `json:"air_date"`
	SeasonNumber  int      `json:"season_number"`
	EpisodeNumber int      `json:"episode_number"`
	GuestStars    []Credit `json:"guest_stars"`
}

type Season struct {
	ID           int       `json:"id"`
	SeasonNumber int       `json:"season_number"`
	Episodes     []Episode `json:"episodes"`
}

type EpisodeCredits struct {
	Cast       []Credit `json:"cast"`
	GuestStars []Credit `json:"guest_stars"`
}

type CreditDetails struct {
	ID     string `json:"id"`
	Person struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	} `json:"person"`
}

type ExternalIDs struct {
	// ID is the TMDb id of the resource the ids belong to.
	ID     int    `json:"id"`
	IMDbID string `json:"imdb_id"`
}

type Person struct {
	ID int `json:"id"`
	// Gender is 0 not set, 1 female, 2 male, 3 non-binary.
	Gender     int     `json:"gender"`
	Name       string  `json:"name"`
	Birthday   string  `json:"birthday"`
	Biography  string  `json:"biography"`
	IMDbID     string  `json:"imdb_id"`
	Popularity float64 `json:"popularity"`
}

type PersonSummary struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Gender int    `json:"gender"`
}

type findResult struct {
	PersonResults []PersonSummary `json:"person_results"`
}

type TVCredit struct {
	ID           int    `json:"id"`
	Name         string `json:"name"`
	Character    string `json:"character"`
	EpisodeCount int    `json:"episode_count"`
}

type PersonTVCredits struct {
	Cast []TVCredit `json:"cast"`
}

// ID formats a numeric TMDb id the way the sheets store it.
func ID(id int) string {
	if id == 0 {
		return ""
	}
	return strconv.Itoa(id)
}
