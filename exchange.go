package pcgcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// CodeExchanger trades an authorization code for an access token.
// *oauth2.Config satisfies it.
type CodeExchanger interface {
	Exchange(ctx context.Context, code string, opts ...oauth2.AuthCodeOption) (*oauth2.Token, error)
}

var _ CodeExchanger = (*oauth2.Config)(nil)

// DevExchanger accepts codes minted by the development provider
type DevExchanger struct {
	Prefix string
}

func (d DevExchanger) Exchange(ctx context.Context, code string, opts ...oauth2.AuthCodeOption) (*oauth2.Token, error) {
	prefix := d.Prefix
	if prefix == "" {
		prefix = "dev-"
	}
	if !strings.HasPrefix(code, prefix) {
		return nil, fmt.Errorf("oauth2: unknown authorization code")
	}
	return &oauth2.Token{
		AccessToken: "dev-access-" + strings.TrimPrefix(code, prefix),
		TokenType:   "Bearer",
		Expiry:      time.Now().Add(time.Hour),
	}, nil
}
