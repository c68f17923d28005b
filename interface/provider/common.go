package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/airbusgeo/s2-indices/service"
	"github.com/airbusgeo/s2-indices/service/log"
	"github.com/cavaliercoder/grab"
)

// MaxRedirects is the maximum number of redirections followed by a download
const MaxRedirects = 5

// ErrProductNotFound is an error returned when a product is not found or available
type ErrProductNotFound struct {
	Product string
}

func (e ErrProductNotFound) Error() string {
	return fmt.Sprintf("Product not found or unavailable: %s", e.Product)
}

func fmtBytes(bytes int64) string {
	v := float64(bytes)
	switch {
	case v > 1<<30:
		return fmt.Sprintf("%.2fGo", v/(1<<30))
	case v > 1<<20:
		return fmt.Sprintf("%.2fMo", v/(1<<20))
	case v > 1<<10:
		return fmt.Sprintf("%.2fko", v/(1<<10))
	default:
		return fmt.Sprintf("%.2fo", v)
	}
}

func displayProgress(ctx context.Context, prefix string, resp *grab.Response, progressPeriod float64) {
	t := time.NewTicker(time.Second)
	defer t.Stop()

	progress, lastBytes, seconds := 0.0, int64(0), int64(0)
	for {
		select {
		case <-t.C:
			seconds++
			if resp.Progress() > progress {
				log.Logger(ctx).Sugar().Debugf("%s: %.2f%% %s/%s (%s/s)", prefix, 100*resp.Progress(), fmtBytes(resp.BytesComplete()), fmtBytes(resp.Size), fmtBytes((resp.BytesComplete()-lastBytes)/seconds))
				seconds = 0
				progress += progressPeriod
				lastBytes = resp.BytesComplete()
			}

		case <-resp.Done:
			return
		}
	}
}

// checkRedirectAndCopyAuth follows at most MaxRedirects redirections, copying the authorization of the first request.
// Beyond, the last redirection is returned as the response.
func checkRedirectAndCopyAuth(req *http.Request, via []*http.Request) error {
	if len(via) > MaxRedirects {
		return http.ErrUseLastResponse
	}
	if auth, ok := via[0].Header["Authorization"]; ok {
		req.Header.Set("Authorization", auth[0])
	}
	return nil
}

// newDownloadClient returns a grab client using httpClient (if not nil) and following at most MaxRedirects redirections
func newDownloadClient(httpClient *http.Client) *grab.Client {
	client := grab.NewClient()
	if httpClient != nil {
		c := *httpClient
		client.HTTPClient = &c
	}
	client.HTTPClient.CheckRedirect = checkRedirectAndCopyAuth
	return client
}

// download the file of req.URL() to req.Filename, with a display every 5%
// Raise service.ErrDownloadFailed if the final response is not a 200, service.ErrTransport if the connection fails
func download(ctx context.Context, client *grab.Client, req *grab.Request, displayPrefix string) error {
	req = req.WithContext(ctx)
	req.NoResume = true
	resp := client.Do(req)

	displayProgress(ctx, displayPrefix, resp, 0.05)

	err := resp.Err()
	if err == nil && resp.HTTPResponse.StatusCode != 200 {
		err = fmt.Errorf("unexpected status %s", resp.HTTPResponse.Status)
	}
	if err == nil {
		log.Logger(ctx).Sugar().Debugf("%s: %s downloaded in %v", displayPrefix, fmtBytes(resp.BytesComplete()), resp.Duration())
		return nil
	}

	status := 0
	if resp.HTTPResponse != nil {
		status = resp.HTTPResponse.StatusCode
	}
	if status == 0 || status == 200 || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		// Connection failed or body interrupted
		return fmt.Errorf("download[%s]: %w: %v", req.URL(), service.ErrTransport, err)
	}
	err = fmt.Errorf("download[%s]: %w (status %d): %v", req.URL(), service.ErrDownloadFailed, status, err)
	switch status {
	case 408, 429, 500, 501, 502, 503, 504:
		return service.MakeTemporary(err)
	default:
		return err
	}
}

// downloadArchive downloads url to <localDir>/<TileID>.zip using a partial file
func downloadArchive(ctx context.Context, client *grab.Client, req *grab.Request, partial, archive, displayPrefix string) error {
	os.Remove(partial)
	return commitArchive(partial, archive, download(ctx, client, req, displayPrefix))
}
