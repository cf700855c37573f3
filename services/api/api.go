// Package api is the client of the DFX REST backend. It covers
// authentication, the user profile, payment routes, reference data and the
// KYC endpoints the chatbot interview is started from.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/DFXswiss/payment-sub000/models"
	"github.com/DFXswiss/payment-sub000/services/auth"
	"github.com/juju/errors"
	log "github.com/sirupsen/logrus"
)

type (
	// API is the DFX backend client. The access token is read from the auth
	// service on every request, so a re-login is picked up transparently.
	API struct {
		client *http.Client
		url    string
		auth   *auth.Service
	}

	// Config is the structured client configuration.
	Config struct {
		// URL is the backend base URL (ex: https://api.dfx.swiss/v1).
		URL string `json:"url" yaml:"url"`

		// Timeout bounds every HTTP round trip.
		Timeout time.Duration `json:"timeout" yaml:"timeout"`
	}

	// SignInRequest carries the address/signature credentials.
	SignInRequest struct {
		Address   string `json:"address"`
		Signature string `json:"signature"`
	}

	// SignUpRequest additionally carries the optional referral code and the
	// wallet identifier of the client.
	SignUpRequest struct {
		Address   string `json:"address"`
		Signature string `json:"signature"`
		WalletID  int    `json:"walletId"`
		UsedRef   string `json:"usedRef,omitempty"`
	}

	// tokenResponse is the backend reply to a sign-in or sign-up.
	tokenResponse struct {
		AccessToken string `json:"accessToken"`
	}
)

const defaultTimeout = 30 * time.Second

var (
	// logger is a global logger of the package
	logger = log.WithField("package", "api")
)

// New initializes a DFX backend client.
func New(config *Config, authService *auth.Service) (*API, error) {
	if config == nil || config.URL == "" {
		return nil, errors.NotValidf("backend URL")
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &API{
		client: &http.Client{Timeout: timeout},
		url:    config.URL,
		auth:   authService,
	}, nil
}

// SignIn authenticates the given address/signature pair and publishes the
// issued access token on the auth service.
func (a *API) SignIn(ctx context.Context, address, signature string) error {
	request := SignInRequest{Address: address, Signature: signature}

	response := tokenResponse{}
	if err := a.do(ctx, http.MethodPost, "auth/signIn", request, &response); err != nil {
		return errors.Annotate(err, "signing in")
	}

	a.auth.Update(auth.Credentials{
		Address:     address,
		Signature:   signature,
		AccessToken: response.AccessToken,
	})

	return nil
}

// SignUp registers a new account and publishes the issued access token on the
// auth service.
func (a *API) SignUp(ctx context.Context, request *SignUpRequest) error {
	response := tokenResponse{}
	if err := a.do(ctx, http.MethodPost, "auth/signUp", request, &response); err != nil {
		return errors.Annotate(err, "signing up")
	}

	a.auth.Update(auth.Credentials{
		Address:     request.Address,
		Signature:   request.Signature,
		AccessToken: response.AccessToken,
	})

	return nil
}

// GetUser fetches the account of the signed-in user.
func (a *API) GetUser(ctx context.Context) (*models.User, error) {
	user := &models.User{}
	if err := a.do(ctx, http.MethodGet, "user", nil, user); err != nil {
		return nil, errors.Annotate(err, "fetching user")
	}

	return user, nil
}

// UpdateUser submits the edited account.
func (a *API) UpdateUser(ctx context.Context, user *models.User) (*models.User, error) {
	updated := &models.User{}
	if err := a.do(ctx, http.MethodPut, "user", user, updated); err != nil {
		return nil, errors.Annotate(err, "updating user")
	}

	return updated, nil
}

// GetBuyRoutes lists the buy routes of the user.
func (a *API) GetBuyRoutes(ctx context.Context) ([]*models.BuyRoute, error) {
	routes := []*models.BuyRoute{}
	if err := a.do(ctx, http.MethodGet, "buy", nil, &routes); err != nil {
		return nil, errors.Annotate(err, "fetching buy routes")
	}

	return routes, nil
}

// CreateBuyRoute registers a new buy route.
func (a *API) CreateBuyRoute(ctx context.Context, route *models.BuyRoute) (*models.BuyRoute, error) {
	created := &models.BuyRoute{}
	if err := a.do(ctx, http.MethodPost, "buy", route, created); err != nil {
		return nil, errors.Annotate(err, "creating buy route")
	}

	return created, nil
}

// UpdateBuyRoute activates or deactivates a buy route.
func (a *API) UpdateBuyRoute(ctx context.Context, route *models.BuyRoute) (*models.BuyRoute, error) {
	updated := &models.BuyRoute{}
	endpoint := fmt.Sprintf("buy/%s", route.ID)
	if err := a.do(ctx, http.MethodPut, endpoint, route, updated); err != nil {
		return nil, errors.Annotate(err, "updating buy route")
	}

	return updated, nil
}

// GetSellRoutes lists the sell routes of the user.
func (a *API) GetSellRoutes(ctx context.Context) ([]*models.SellRoute, error) {
	routes := []*models.SellRoute{}
	if err := a.do(ctx, http.MethodGet, "sell", nil, &routes); err != nil {
		return nil, errors.Annotate(err, "fetching sell routes")
	}

	return routes, nil
}

// CreateSellRoute registers a new sell route.
func (a *API) CreateSellRoute(ctx context.Context, route *models.SellRoute) (*models.SellRoute, error) {
	created := &models.SellRoute{}
	if err := a.do(ctx, http.MethodPost, "sell", route, created); err != nil {
		return nil, errors.Annotate(err, "creating sell route")
	}

	return created, nil
}

// GetStakingRoutes lists the staking routes of the user.
func (a *API) GetStakingRoutes(ctx context.Context) ([]*models.StakingRoute, error) {
	routes := []*models.StakingRoute{}
	if err := a.do(ctx, http.MethodGet, "staking", nil, &routes); err != nil {
		return nil, errors.Annotate(err, "fetching staking routes")
	}

	return routes, nil
}

// CreateStakingRoute registers a new staking route.
func (a *API) CreateStakingRoute(ctx context.Context, route *models.StakingRoute) (*models.StakingRoute, error) {
	created := &models.StakingRoute{}
	if err := a.do(ctx, http.MethodPost, "staking", route, created); err != nil {
		return nil, errors.Annotate(err, "creating staking route")
	}

	return created, nil
}

// GetAssets lists the tradeable assets.
func (a *API) GetAssets(ctx context.Context) ([]*models.Asset, error) {
	assets := []*models.Asset{}
	if err := a.do(ctx, http.MethodGet, "asset", nil, &assets); err != nil {
		return nil, errors.Annotate(err, "fetching assets")
	}

	return assets, nil
}

// GetFiats lists the supported fiat currencies.
func (a *API) GetFiats(ctx context.Context) ([]*models.Fiat, error) {
	fiats := []*models.Fiat{}
	if err := a.do(ctx, http.MethodGet, "fiat", nil, &fiats); err != nil {
		return nil, errors.Annotate(err, "fetching fiats")
	}

	return fiats, nil
}

// GetCountries lists the selectable countries of residence.
func (a *API) GetCountries(ctx context.Context) ([]*models.Country, error) {
	countries := []*models.Country{}
	if err := a.do(ctx, http.MethodGet, "country", nil, &countries); err != nil {
		return nil, errors.Annotate(err, "fetching countries")
	}

	return countries, nil
}

// GetLanguages lists the selectable interface languages.
func (a *API) GetLanguages(ctx context.Context) ([]*models.Language, error) {
	languages := []*models.Language{}
	if err := a.do(ctx, http.MethodGet, "language", nil, &languages); err != nil {
		return nil, errors.Annotate(err, "fetching languages")
	}

	return languages, nil
}

// RequestKyc starts or resumes the identity verification and returns the
// remote chatbot session coordinates.
func (a *API) RequestKyc(ctx context.Context) (*models.KycResult, error) {
	result := &models.KycResult{}
	if err := a.do(ctx, http.MethodPost, "kyc", nil, result); err != nil {
		return nil, errors.Annotate(err, "requesting KYC")
	}

	return result, nil
}

// UploadFounderCertificate uploads an incorporation document for business
// accounts as a multipart form.
func (a *API) UploadFounderCertificate(ctx context.Context, filename string, content io.Reader) error {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("files", filename)
	if err != nil {
		return errors.Annotate(err, "uploading founder certificate")
	}

	if _, err := io.Copy(part, content); err != nil {
		return errors.Annotate(err, "uploading founder certificate")
	}

	if err := writer.Close(); err != nil {
		return errors.Annotate(err, "uploading founder certificate")
	}

	url := fmt.Sprintf("%s/user/founderCertificate", a.url)
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return errors.Annotate(err, "uploading founder certificate")
	}

	request.Header.Set("Content-Type", writer.FormDataContentType())
	a.authorize(request)

	response, err := a.client.Do(request)
	if err != nil {
		return errors.Annotate(err, "uploading founder certificate")
	}
	defer response.Body.Close()

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		return errors.Errorf("backend returned %d", response.StatusCode)
	}

	return nil
}

// do performs one request/response round trip against the backend.
func (a *API) do(ctx context.Context, method, endpoint string, body interface{}, result interface{}) error {
	url := fmt.Sprintf("%s/%s", a.url, endpoint)

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return errors.Annotate(err, "encoding request body")
		}

		reader = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return errors.Annotate(err, "building request")
	}

	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}

	a.authorize(request)

	logger.WithFields(log.Fields{"method": method, "endpoint": endpoint}).Debug("Calling DFX backend")

	response, err := a.client.Do(request)
	if err != nil {
		return errors.Annotate(err, "calling backend")
	}
	defer response.Body.Close()

	data, err := io.ReadAll(response.Body)
	if err != nil {
		return errors.Annotate(err, "reading response")
	}

	if response.StatusCode == http.StatusUnauthorized {
		return errors.Unauthorizedf("backend rejected the access token")
	}

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		return errors.Errorf("backend returned %d: %s", response.StatusCode, string(data))
	}

	if result == nil || len(data) == 0 {
		return nil
	}

	if err := json.Unmarshal(data, result); err != nil {
		return errors.Annotate(err, "decoding response")
	}

	return nil
}

// authorize attaches the current access token, if any.
func (a *API) authorize(request *http.Request) {
	if a.auth == nil {
		return
	}

	if token := a.auth.Credentials().AccessToken; token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}
}
