// Package media downloads remote images into the uploads directory and
// registers them as attachment posts.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/sirupsen/logrus"

	"github.com/adcommander/adcmdr-tools/internal/bundle"
	"github.com/adcommander/adcmdr-tools/internal/models"
)

// DefaultMaxBytes caps a single downloaded image.
const DefaultMaxBytes int64 = 10 << 20

// Sideload errors.
var (
	ErrUnsupportedURL = errors.New("image url must be http or https")
	ErrNotImage       = errors.New("downloaded file is not an image")
	ErrImageTooLarge  = errors.New("image exceeds the size limit")
	ErrBlockedAddress = errors.New("image host resolves to a local or private address")
)

const maxRedirects = 5

// attachmentStore is the minimal store interface consumed by Sideloader.
type attachmentStore interface {
	CreatePost(ctx context.Context, req models.CreatePostRequest, meta models.Meta) (*models.Post, error)
}

// Sideloader fetches images and stores them as attachments.
type Sideloader struct {
	store     attachmentStore
	client    *http.Client
	dir       string
	publicURL string
	maxBytes  int64
	log       *logrus.Logger
	now       func() time.Time
}

// NewSideloader creates a Sideloader writing under uploadsDir. publicURL is
// the URL prefix uploadsDir is served from.
func NewSideloader(store attachmentStore, uploadsDir, publicURL string, log *logrus.Logger) *Sideloader {
	return &Sideloader{
		store:     store,
		client:    publicClient(),
		dir:       uploadsDir,
		publicURL: strings.TrimRight(publicURL, "/"),
		maxBytes:  DefaultMaxBytes,
		log:       log,
		now:       time.Now,
	}
}

// publicClient returns an HTTP client that only connects to public
// addresses. The check runs on the resolved address of every dial, so it
// covers DNS names and each redirect hop.
func publicClient() *http.Client {
	dialer := &net.Dialer{
		Timeout: 10 * time.Second,
		Control: func(_, address string, _ syscall.RawConn) error {
			return checkPublic(address)
		},
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = nil
	transport.DialContext = dialer.DialContext

	return &http.Client{
		Timeout:   30 * time.Second,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}

			if req.URL.Scheme != "http" && req.URL.Scheme != "https" {
				return ErrUnsupportedURL
			}

			if ip, err := netip.ParseAddr(req.URL.Hostname()); err == nil && !isPublic(ip) {
				return ErrBlockedAddress
			}

			return nil
		},
	}
}

// checkPublic rejects a dial target ("ip:port") outside public unicast space.
func checkPublic(address string) error {
	ap, err := netip.ParseAddrPort(address)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrBlockedAddress, address)
	}

	if !isPublic(ap.Addr()) {
		return fmt.Errorf("%w: %s", ErrBlockedAddress, ap.Addr())
	}

	return nil
}

var sharedAddressSpace = netip.MustParsePrefix("100.64.0.0/10")

func isPublic(ip netip.Addr) bool {
	ip = ip.Unmap()

	return ip.IsGlobalUnicast() &&
		!ip.IsPrivate() &&
		!ip.IsLoopback() &&
		!ip.IsLinkLocalUnicast() &&
		!sharedAddressSpace.Contains(ip)
}

// WithHTTPClient replaces the download client and with it the public
// address check.
func (s *Sideloader) WithHTTPClient(c *http.Client) *Sideloader {
	s.client = c

	return s
}

// Sideload downloads rawURL, stores it under uploads/YYYY/MM and creates an
// attachment post titled after the file. It returns the attachment id.
func (s *Sideloader) Sideload(ctx context.Context, rawURL string) (int64, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return 0, ErrUnsupportedURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return 0, fmt.Errorf("building image request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("downloading image: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("downloading image: unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBytes+1))
	if err != nil {
		return 0, fmt.Errorf("reading image: %w", err)
	}

	if int64(len(data)) > s.maxBytes {
		return 0, ErrImageTooLarge
	}

	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return 0, ErrNotImage
	}

	rel, err := s.write(u, mt, data)
	if err != nil {
		return 0, err
	}

	title := strings.TrimSuffix(path.Base(rel), path.Ext(rel))

	post, err := s.store.CreatePost(ctx, models.CreatePostRequest{
		Type:     models.PostTypeAttachment,
		Status:   models.StatusInherit,
		Title:    title,
		Name:     models.Slugify(title),
		GUID:     s.publicURL + "/" + rel,
		MimeType: mt.String(),
	}, models.Meta{models.MetaKeyAttachedFile: rel})
	if err != nil {
		os.Remove(filepath.Join(s.dir, filepath.FromSlash(rel))) //nolint:errcheck

		return 0, fmt.Errorf("creating attachment: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"attachment_id": post.ID,
		"file":          rel,
		"mime":          mt.String(),
	}).Debug("image sideloaded")

	return post.ID, nil
}

// write stores data under a dated subdirectory and returns the slash
// separated path relative to the uploads dir.
func (s *Sideloader) write(u *url.URL, mt *mimetype.MIME, data []byte) (string, error) {
	sub := s.now().Format("2006/01")
	dir := filepath.Join(s.dir, filepath.FromSlash(sub))

	if err := bundle.EnsureDir(dir); err != nil {
		return "", fmt.Errorf("creating image dir: %w", err)
	}

	name := bundle.Basename(path.Base(u.Path))
	if name == "upload" {
		name = "image"
	}

	ext := mt.Extension()

	f, err := os.CreateTemp(dir, name+"-*"+ext)
	if err != nil {
		return "", fmt.Errorf("creating image file: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()           //nolint:errcheck
		os.Remove(f.Name()) //nolint:errcheck

		return "", fmt.Errorf("writing image: %w", err)
	}

	if err := f.Close(); err != nil {
		return "", fmt.Errorf("closing image: %w", err)
	}

	return sub + "/" + filepath.Base(f.Name()), nil
}
