package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/airbusgeo/s2-indices/common"
	"github.com/airbusgeo/s2-indices/service"
	"github.com/airbusgeo/s2-indices/service/log"
	"github.com/cavaliercoder/grab"
	"golang.org/x/oauth2"
)

const (
	CopernicusDownloadURL = "https://catalogue.dataspace.copernicus.eu/odata/v1"
	CopernicusAuthURL     = "https://identity.dataspace.copernicus.eu/auth/realms/CDSE/protocol/openid-connect/token"
	copernicusClientID    = "cdse-public"
	tokenTimeout          = 30 * time.Second
	tokenTries            = 3
)

// CopernicusImageProvider implements ImageProvider for the Copernicus Data Space
type CopernicusImageProvider struct {
	user        string
	pword       string
	authURL     string
	downloadURL string
	client      *http.Client

	tokenRetryDelay time.Duration
}

// CopernicusOption configures a CopernicusImageProvider
type CopernicusOption func(*CopernicusImageProvider)

// WithCopernicusEndpoints overrides the identity service and the download service
func WithCopernicusEndpoints(authURL, downloadURL string) CopernicusOption {
	return func(ip *CopernicusImageProvider) {
		if authURL != "" {
			ip.authURL = authURL
		}
		if downloadURL != "" {
			ip.downloadURL = strings.TrimSuffix(downloadURL, "/")
		}
	}
}

// WithHTTPClient sets the http client used to get the token and to download the products
func WithHTTPClient(client *http.Client) CopernicusOption {
	return func(ip *CopernicusImageProvider) {
		ip.client = client
	}
}

// NewCopernicusImageProvider creates a new ImageProvider from Copernicus
func NewCopernicusImageProvider(user, pword string, options ...CopernicusOption) *CopernicusImageProvider {
	ip := &CopernicusImageProvider{
		user:        user,
		pword:       pword,
		authURL:     CopernicusAuthURL,
		downloadURL:     CopernicusDownloadURL,
		tokenRetryDelay: 2 * time.Second,
	}
	for _, o := range options {
		o(ip)
	}
	return ip
}

// Name implements ImageProvider
func (ip *CopernicusImageProvider) Name() string {
	return "Copernicus"
}

// LoadToken exchanges the credentials for a bearer token (password grant)
// Network and server failures of the identity service are retried, rejected credentials are not.
// Raise service.ErrAuthFailed (temporary if the identity service is unreachable)
func (ip *CopernicusImageProvider) LoadToken(ctx context.Context) (*oauth2.Token, error) {
	conf := oauth2.Config{
		ClientID: copernicusClientID,
		Endpoint: oauth2.Endpoint{TokenURL: ip.authURL, AuthStyle: oauth2.AuthStyleInParams},
	}
	if ip.client != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, ip.client)
	}
	var token *oauth2.Token
	err := service.Retriable(ctx, func() error {
		ctx, cancel := context.WithTimeout(ctx, tokenTimeout)
		defer cancel()
		var err error
		if token, err = conf.PasswordCredentialsToken(ctx, ip.user, ip.pword); err != nil {
			var rerr *oauth2.RetrieveError
			if errors.As(err, &rerr) && rerr.Response != nil && rerr.Response.StatusCode < 500 {
				// invalid_grant, invalid_client...
				return service.MakeFatal(err)
			}
			log.Logger(ctx).Sugar().Debugf("LoadToken: %v", err)
		}
		return err
	}, ip.tokenRetryDelay, tokenTries)
	if err != nil {
		fatal := service.Fatal(err)
		err = fmt.Errorf("LoadToken: %w: %v", service.ErrAuthFailed, err)
		if !fatal {
			err = service.MakeTemporary(err)
		}
		return nil, err
	}
	if token.AccessToken == "" {
		return nil, fmt.Errorf("LoadToken: %w: empty access token", service.ErrAuthFailed)
	}
	return token, nil
}

// Download implements ImageProvider
// A new token is requested for each download
func (ip *CopernicusImageProvider) Download(ctx context.Context, tile common.Tile, localDir string) (string, error) {
	if tile.Product.ID == "" {
		return "", fmt.Errorf("CopernicusImageProvider: missing product id of %s", tile.ID)
	}

	token, err := ip.LoadToken(ctx)
	if err != nil {
		return "", fmt.Errorf("CopernicusImageProvider.Download.%w", err)
	}

	url := fmt.Sprintf("%s/Products(%s)/$value", ip.downloadURL, tile.Product.ID)
	archive, partial := archivePath(localDir, tile)
	req, err := grab.NewRequest(partial, url)
	if err != nil {
		return "", fmt.Errorf("CopernicusImageProvider.NewRequest: %w", err)
	}
	token.SetAuthHeader(req.HTTPRequest)

	log.Logger(ctx).Sugar().Infof("downloading %s from %s", tile.ID, ip.Name())
	if err := downloadArchive(ctx, newDownloadClient(ip.client), req, partial, archive, ip.Name()+":"+string(tile.ID)); err != nil {
		return "", fmt.Errorf("CopernicusImageProvider.%w", err)
	}
	return archive, nil
}
