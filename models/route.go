package models

type (
	// BuyRoute is a payment route converting a fiat bank transfer into an
	// asset delivery to the user address.
	BuyRoute struct {
		ID        string  `json:"id"`
		Asset     *Asset  `json:"asset"`
		IBAN      string  `json:"iban"`
		BankUsage string  `json:"bankUsage"`
		Volume    float64 `json:"volume"`
		Active    bool    `json:"active"`
	}

	// SellRoute is a payment route converting an asset deposit into a fiat
	// payout on the given bank account.
	SellRoute struct {
		ID             string  `json:"id"`
		Fiat           *Fiat   `json:"fiat"`
		IBAN           string  `json:"iban"`
		DepositAddress string  `json:"deposit"`
		Volume         float64 `json:"volume"`
		Active         bool    `json:"active"`
	}

	// StakingRoute is a route locking deposits into the staking service.
	StakingRoute struct {
		ID             string     `json:"id"`
		DepositAddress string     `json:"deposit"`
		RewardType     PayoutType `json:"rewardType"`
		PaybackType    PayoutType `json:"paybackType"`
		Balance        float64    `json:"balance"`
		RewardVolume   float64    `json:"rewardVolume"`
		Active         bool       `json:"active"`
	}

	// PayoutType tells where staking rewards or paybacks are delivered.
	PayoutType string
)

const (
	PayoutTypeWallet      PayoutType = "Wallet"
	PayoutTypeBankAccount PayoutType = "BankAccount"
	PayoutTypeReinvest    PayoutType = "Reinvest"
)
