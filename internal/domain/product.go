package domain

type Product struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Price     int64  `json:"price"`
	Available int    `json:"available"`
	Category  string `json:"category"`
}
