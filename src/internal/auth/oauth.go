package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"

	"github.com/appcraft/showcase-service/src/internal/api/apiErrors"
)

// Profile is the identity returned by the OAuth provider after a completed
// handshake.
type Profile struct {
	GitHubID  int64
	Username  string
	Email     string
	AvatarURL string
}

// GitHubProvider runs the GitHub authorization-code flow. The code-for-token
// exchange happens server side; the access token never reaches the browser.
type GitHubProvider struct {
	config *oauth2.Config
}

func NewGitHubProvider(clientID, clientSecret, callbackURL string) *GitHubProvider {
	return &GitHubProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     github.Endpoint,
		},
	}
}

// AuthURL returns the provider URL to redirect the user to. The state value
// is echoed back on the callback and must be verified by the caller.
func (p *GitHubProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange trades an authorization code for the user's profile, reading both
// /user and /user/emails. The email must be a verified primary address.
func (p *GitHubProvider) Exchange(ctx context.Context, code string) (*Profile, error) {
	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("auth: exchanging OAuth code: %w", err)
	}

	client := p.config.Client(ctx, token)

	var userData struct {
		ID        int64  `json:"id"`
		Login     string `json:"login"`
		AvatarURL string `json:"avatar_url"`
	}
	if err := getJSON(client, "https://api.github.com/user", &userData); err != nil {
		return nil, err
	}
	if userData.ID == 0 {
		return nil, fmt.Errorf("auth: GitHub returned an invalid user")
	}

	var emails []struct {
		Email    string `json:"email"`
		Primary  bool   `json:"primary"`
		Verified bool   `json:"verified"`
	}
	if err := getJSON(client, "https://api.github.com/user/emails", &emails); err != nil {
		return nil, err
	}

	var email string
	for _, e := range emails {
		if e.Primary && e.Verified {
			email = e.Email
			break
		}
	}
	if email == "" {
		return nil, apiErrors.APIError{
			Code:    apiErrors.Unauthorized,
			Message: "Couldn't get your email address from GitHub. Please make sure you have a verified primary address in your GitHub account.",
		}
	}

	return &Profile{
		GitHubID:  userData.ID,
		Username:  userData.Login,
		Email:     email,
		AvatarURL: userData.AvatarURL,
	}, nil
}

func getJSON(client *http.Client, url string, out any) error {
	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("auth: calling %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("auth: %s returned status %d", url, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("auth: decoding %s response: %w", url, err)
	}
	return nil
}
