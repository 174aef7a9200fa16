// Package passport implements the two-step Passport 1.4 ("Tweener")
// authentication handshake the notification server's USR command delegates
// to: a Nexus redirect lookup followed by a Login-SRF ticket fetch.
package passport

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/msnp11/msnp11go/msnp"
)

// Authenticator performs the Passport handshake against a configurable
// HTTP client, so tests can substitute a fake RoundTripper instead of
// reaching a real Passport server. This mirrors the teacher's pattern of
// accepting a pluggable transaction requester on Client for the same
// reason.
type Authenticator struct {
	HTTPClient *http.Client
}

func NewAuthenticator() *Authenticator {
	return &Authenticator{HTTPClient: http.DefaultClient}
}

// Token runs the full handshake: it resolves nexusURL's DALogin redirect,
// then issues the Login-SRF GET with email/password embedded in the
// Passport1.4 Authorization header, returning the from-PP ticket the
// notification server expects as USR's second TWN S argument.
func (a *Authenticator) Token(nexusURL, email, password, authString string) (string, error) {
	loginSRF, err := a.loginSRF(nexusURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", msnp.ErrCouldNotGetAuthString, err)
	}

	req, err := http.NewRequest(http.MethodGet, loginSRF, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", msnp.ErrCouldNotGetAuthString, err)
	}

	auth := fmt.Sprintf(
		"Passport1.4 OrgVerb=GET,OrgURL=http%%3A%%2F%%2Fmessenger%%2Emsn%%2Ecom,sign-in=%s,pwd=%s,%s",
		email, password, authString,
	)
	req.Header.Set("Authorization", auth)

	resp, err := a.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", msnp.ErrReceiving, err)
	}
	defer resp.Body.Close()

	info := resp.Header.Get("Authentication-Info")
	if info == "" {
		return "", msnp.ErrAuthenticationHeaderNotFound
	}

	return extractTicket(info)
}

func (a *Authenticator) loginSRF(nexusURL string) (string, error) {
	resp, err := a.HTTPClient.Get(nexusURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", msnp.ErrCouldNotConnect, err)
	}
	defer resp.Body.Close()

	urls := resp.Header.Get("Passporturls")
	if urls == "" {
		return "", msnp.ErrAuthenticationHeaderNotFound
	}

	url := ""
	for _, part := range strings.Split(urls, ",") {
		if strings.HasPrefix(part, "DALogin=") {
			url = strings.TrimPrefix(part, "DALogin=")
			break
		}
	}
	if url == "" {
		return "", msnp.ErrAuthenticationHeaderNotFound
	}
	if !strings.HasPrefix(url, "http") {
		url = "https://" + url
	}
	return url, nil
}

// extractTicket pulls the ticket out of an Authentication-Info header of
// the form `...,from-PP='<ticket>'`.
func extractTicket(info string) (string, error) {
	const marker = "from-PP='"
	idx := strings.Index(info, marker)
	if idx < 0 {
		return "", msnp.ErrCouldNotGetAuthString
	}
	rest := info[idx+len(marker):]
	end := strings.IndexByte(rest, '\'')
	if end < 0 {
		return "", msnp.ErrCouldNotGetAuthString
	}
	return rest[:end], nil
}
