package provider

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/airbusgeo/s2-indices/common"
	"github.com/airbusgeo/s2-indices/service"
	"github.com/jlaffaye/ftp"
)

// FTPImageProvider implements ImageProvider for connection to FTP
type FTPImageProvider struct {
	hote        string
	pathPattern string
	user        string
	pword       string
	tls         bool
}

// Name implements ImageProvider
func (ip *FTPImageProvider) Name() string {
	return "FTP"
}

// NewFTPImageProvider creates a new ImageProvider for ftp download link
// Example:
// pathPattern: full ftp path, including hote, port and folder tree. i.e: ftp://ftp.example.org:21/Images/{SCENE}.zip  (See common.FormatBrackets)
func NewFTPImageProvider(pathPattern, user, pword string) *FTPImageProvider {
	pathPattern = strings.TrimPrefix(pathPattern, "ftp://")
	splits := strings.SplitN(pathPattern, "/", 2)
	if len(splits) == 1 {
		splits = append(splits, "{SCENE}.zip")
	}
	splitHote := strings.SplitN(splits[0], ":", 2)
	tls := len(splitHote) == 2 && splitHote[1] == "990"

	return &FTPImageProvider{
		hote:        splits[0],
		tls:         tls,
		pathPattern: splits[1],
		user:        user,
		pword:       pword,
	}
}

// Download implements ImageProvider
func (ip *FTPImageProvider) Download(ctx context.Context, tile common.Tile, localDir string) (string, error) {
	format, err := common.Info(tile.Product.Name)
	if err != nil {
		return "", fmt.Errorf("FTPImageProvider: %w", err)
	}

	path := common.FormatBrackets(ip.pathPattern, format)

	// Connection to FTP
	ftpOption := []ftp.DialOption{ftp.DialWithTimeout(5 * time.Second), ftp.DialWithContext(ctx)}
	if ip.tls {
		ftpOption = append(ftpOption, ftp.DialWithTLS(&tls.Config{InsecureSkipVerify: true}))
	}
	c, err := ftp.Dial(ip.hote, ftpOption...)
	if err != nil {
		return "", service.MakeTemporary(fmt.Errorf("FTPImageProvider.Dial: %w: %v", service.ErrTransport, err))
	}

	if err = c.Login(ip.user, ip.pword); err != nil {
		return "", fmt.Errorf("FTPImageProvider.Login: %w: %v", service.ErrAuthFailed, err)
	}
	defer c.Quit()

	// Get file size
	s, _ := c.FileSize(path)

	// Get file stream
	r, err := c.Retr(path)
	if err != nil {
		return "", ErrProductNotFound{ip.hote + "/" + path}
	}
	defer r.Close()

	archive, partial := archivePath(localDir, tile)
	err = fileCopy(io.TeeReader(r, &WriteCounter{Progress: NewProgress(ctx, "Ftp:"+string(tile.ID), s, 5)}), partial)
	if err != nil {
		err = service.MakeTemporary(fmt.Errorf("%w: %v", service.ErrTransport, err))
	}
	if err := commitArchive(partial, archive, err); err != nil {
		return "", fmt.Errorf("FTPImageProvider.%w", err)
	}
	return archive, nil
}
