package auth

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
)

const otpGrantType = "http://auth0.com/oauth/grant-type/passwordless/otp"

// PasswordlessIssuer implements TokenIssuer against Auth0's passwordless
// email flow: RequestCode mails a one-time code, ExchangeCode trades it for
// an access token.
type PasswordlessIssuer struct {
	client   *http.Client
	baseURL  string
	clientID string
	audience string
}

// NewPasswordlessIssuer creates an issuer for the given Auth0 tenant domain.
func NewPasswordlessIssuer(domain, clientID, audience string) *PasswordlessIssuer {
	return &PasswordlessIssuer{
		client:   &http.Client{Timeout: 10 * time.Second},
		baseURL:  "https://" + domain,
		clientID: clientID,
		audience: audience,
	}
}

type startRequest struct {
	ClientID   string `json:"client_id"`
	Connection string `json:"connection"`
	Email      string `json:"email"`
	Send       string `json:"send"`
}

type tokenRequest struct {
	GrantType string `json:"grant_type"`
	ClientID  string `json:"client_id"`
	Username  string `json:"username"`
	OTP       string `json:"otp"`
	Realm     string `json:"realm"`
	Audience  string `json:"audience,omitempty"`
	Scope     string `json:"scope"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
}

// RequestCode asks the issuer to mail a one-time code to the address.
func (p *PasswordlessIssuer) RequestCode(ctx context.Context, email string) error {
	body := startRequest{
		ClientID:   p.clientID,
		Connection: "email",
		Email:      email,
		Send:       "code",
	}
	return p.post(ctx, "/passwordless/start", body, nil)
}

// ExchangeCode trades the mailed code for a session token.
func (p *PasswordlessIssuer) ExchangeCode(ctx context.Context, email, code string) (string, error) {
	body := tokenRequest{
		GrantType: otpGrantType,
		ClientID:  p.clientID,
		Username:  email,
		OTP:       code,
		Realm:     "email",
		Audience:  p.audience,
		Scope:     "openid profile email",
	}
	var resp tokenResponse
	if err := p.post(ctx, "/oauth/token", body, &resp); err != nil {
		return "", err
	}
	if resp.AccessToken == "" {
		return "", errors.New("issuer returned no access token")
	}
	return resp.AccessToken, nil
}

func (p *PasswordlessIssuer) post(ctx context.Context, path string, body any, out any) error {
	payload, err := sonic.ConfigStd.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("issuer %s: status %d: %s", path, resp.StatusCode, data)
	}
	if out == nil {
		return nil
	}
	return sonic.ConfigStd.NewDecoder(resp.Body).Decode(out)
}
