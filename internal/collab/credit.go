package collab

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"go.uber.org/zap"
)

// CreditClient implements CreditLedger against the frontend /api/credit route.
type CreditClient struct {
	baseClient
	frontendURL string
	adminSecret string
}

func NewCreditClient(logger *zap.Logger, frontendURL, adminSecret string, opts ...Option) *CreditClient {
	return &CreditClient{
		baseClient:  newBaseClient(logger, opts),
		frontendURL: frontendURL,
		adminSecret: adminSecret,
	}
}

type balanceResponse struct {
	Kisses int64 `json:"kisses"`
}

// Balance returns the credit held by address. A response without a balance
// counts as zero.
func (c *CreditClient) Balance(ctx context.Context, address string) (int64, error) {
	endpoint := c.frontendURL + "/api/credit?user_id=" + url.QueryEscape(address)

	body, err := c.retryHTTPRequest(ctx, "Querying credit balance...", func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to get credit info: %w", err)
	}

	var resp balanceResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("failed to parse credit response: %w", err)
	}
	c.logger.Sugar().Debugw("Credit balance", "address", address, "kisses", resp.Kisses)
	return resp.Kisses, nil
}

type chargeRequest struct {
	AdminSecret  string `json:"admin_secret"`
	ModelCreator string `json:"model_creator"`
	ModelName    string `json:"model_name"`
	UserAddress  string `json:"user_address"`
}

// Charge deducts one generation from the user and credits the model creator.
// It is sent once: a retried deduction could be applied twice.
func (c *CreditClient) Charge(ctx context.Context, charge Charge) error {
	reqBody, err := json.Marshal(chargeRequest{
		AdminSecret:  c.adminSecret,
		ModelCreator: charge.ModelCreator,
		ModelName:    charge.ModelName,
		UserAddress:  charge.UserAddress,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal credit request: %w", err)
	}

	c.logger.Sugar().Infow("Deducting credit",
		"address", charge.UserAddress,
		"model_creator", charge.ModelCreator,
		"model_name", charge.ModelName,
	)
	_, err = c.once(func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.frontendURL+"/api/credit", bytes.NewReader(reqBody))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return fmt.Errorf("credit deduction failed: %w", err)
	}
	return nil
}
