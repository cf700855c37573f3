package models

type (
	// Asset is a tradeable crypto asset.
	Asset struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		Type     string `json:"type"`
		Buyable  bool   `json:"buyable"`
		Sellable bool   `json:"sellable"`
	}

	// Fiat is a supported fiat currency.
	Fiat struct {
		ID      string `json:"id"`
		Name    string `json:"name"`
		Enabled bool   `json:"enable"`
	}

	// Country is a country of residence option.
	Country struct {
		ID      string `json:"id"`
		Symbol  string `json:"symbol"`
		Name    string `json:"name"`
		Enabled bool   `json:"enable"`
	}

	// Language is an interface language option.
	Language struct {
		ID      string `json:"id"`
		Symbol  string `json:"symbol"`
		Name    string `json:"name"`
		Enabled bool   `json:"enable"`
	}
)
