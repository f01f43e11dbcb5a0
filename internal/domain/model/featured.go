package model

// FeaturedApp is an entry of the curated featured-apps list.
type FeaturedApp struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Owner       string   `json:"owner"`
	Repo        string   `json:"repo"`
	IconURL     string   `json:"iconUrl"`
	Tags        []string `json:"tags"`
}
