package models

type (
	// User is the DFX account as returned by the backend.
	User struct {
		// Address is the blockchain address the account is keyed on.
		Address string `json:"address"`

		// Mail is the contact e-mail address.
		Mail string `json:"mail"`

		// Mobile is the phone number used for the SMS-gated KYC session.
		Mobile string `json:"mobileNumber"`

		// Language is the preferred interface language of the user.
		Language *Language `json:"language"`

		// Country is the country of residence.
		Country *Country `json:"country"`

		// KycStatus is the current state of the identity verification.
		KycStatus KycStatus `json:"kycStatus"`

		// KycState qualifies the status (ex: pending, failed).
		KycState KycState `json:"kycState"`

		// KycHash identifies the KYC case on the verification provider.
		KycHash string `json:"kycHash"`

		// Ref is the referral code of the user.
		Ref string `json:"ref"`

		// RefFeePercent is the commission earned on referred volume.
		RefFeePercent float64 `json:"refFeePercent"`

		// RefCount is the number of users recruited with the referral code.
		RefCount int `json:"refCount"`

		// RefVolume is the accumulated referred volume in EUR.
		RefVolume float64 `json:"refVolume"`

		// UsedRef is the referral code entered at sign-up, if any.
		UsedRef string `json:"usedRef"`
	}

	// KycStatus is the coarse state of the identity verification.
	KycStatus string

	// KycState qualifies a KycStatus.
	KycState string

	// KycResult is returned when a KYC step is started or resumed. It carries
	// the credentials the chatbot session client needs.
	KycResult struct {
		Status        KycStatus    `json:"kycStatus"`
		State         KycState     `json:"kycState"`
		SessionURL    string       `json:"sessionUrl"`
		SetupURL      string       `json:"setupUrl"`
		SessionID     string       `json:"sessionId"`
		ChatbotExport *ChatbotInfo `json:"chatbotExport"`
	}

	// ChatbotInfo carries the remote chatbot session coordinates.
	ChatbotInfo struct {
		ID    string `json:"id"`
		Token string `json:"token"`
		URL   string `json:"url"`
	}
)

const (
	KycStatusNA        KycStatus = "NA"
	KycStatusChatbot   KycStatus = "Chatbot"
	KycStatusOnlineID  KycStatus = "OnlineId"
	KycStatusVideoID   KycStatus = "VideoId"
	KycStatusCheck     KycStatus = "Check"
	KycStatusCompleted KycStatus = "Completed"
)

const (
	KycStateNA       KycState = "NA"
	KycStateFailed   KycState = "Failed"
	KycStateReminded KycState = "Reminded"
	KycStateReview   KycState = "Review"
)
