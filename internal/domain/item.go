package domain

type ItemRecord struct {
	ExternalURL string `json:"external_url"`
	ImageURL    string `json:"image_url"`
	Name        string `json:"name"`
	Price       int    `json:"price"`
}
