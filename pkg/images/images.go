// Package images keeps copies of icons and screenshots so the catalog does not
// depend on remote hosts staying up. Files live either on the local disk or in
// a MinIO bucket and are always addressed by their public path,
// /images/packages/<namespace>/<file>.
package images

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/appshelf/appshelf/pkg/config"
	"github.com/gabriel-vasile/mimetype"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
)

const (
	PublicPrefix = "/images/packages"

	maxImageBytes = 10 << 20
)

var (
	ErrNotFound    = errors.New("image not found")
	ErrNotAnImage  = errors.New("content is not an image")
	namespaceChars = regexp.MustCompile(`[^a-z0-9._-]+`)
)

// backend stores raw bytes under namespace/name.
type backend interface {
	put(ctx context.Context, key string, data []byte, contentType string) error
	exists(ctx context.Context, key string) (bool, error)
	open(ctx context.Context, key string) (io.ReadCloser, error)
	remove(ctx context.Context, key string) error
}

type Service struct {
	backend   backend
	client    *http.Client
	userAgent string
	now       func() time.Time
}

// New builds the image service for the backend selected in cfg.
func New(ctx context.Context, cfg *config.Config, client *http.Client) (*Service, error) {
	var b backend
	var err error
	switch cfg.ImagesBackend {
	case config.ImagesBackendMinio:
		b, err = newMinioBackend(ctx, cfg)
	default:
		b, err = newLocalBackend(cfg.ImagesDir())
	}
	if err != nil {
		return nil, err
	}
	return newService(b, client, cfg.MetadataUserAgent), nil
}

func newService(b backend, client *http.Client, userAgent string) *Service {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if userAgent == "" {
		userAgent = "Mozilla/5.0"
	}
	return &Service{backend: b, client: client, userAgent: userAgent, now: time.Now}
}

// Namespace turns a package identifier into a safe directory name.
func Namespace(packageID string) string {
	ns := strings.Trim(namespaceChars.ReplaceAllString(strings.ToLower(packageID), "-"), "-.")
	if ns == "" {
		return "unknown"
	}
	return ns
}

// SaveRemote stores a local copy of remoteURL and returns its public path.
// Non-http inputs are returned unchanged, as is remoteURL itself when the
// download fails, so callers can always store the result.
func (s *Service) SaveRemote(ctx context.Context, remoteURL, namespace, prefix string) string {
	if !strings.HasPrefix(remoteURL, "http://") && !strings.HasPrefix(remoteURL, "https://") {
		return remoteURL
	}
	log := logger.FromContext(ctx).Data(logger.Data{"url": remoteURL, "namespace": namespace})

	ns := Namespace(namespace)
	sum := md5.Sum([]byte(remoteURL))
	base := prefix + "_" + strings.ToUpper(hex.EncodeToString(sum[:]))

	// A URL with a usable extension can be checked before downloading.
	if ext := urlExtension(remoteURL); ext != "" {
		key := ns + "/" + base + ext
		if ok, err := s.backend.exists(ctx, key); err == nil && ok {
			return PublicPrefix + "/" + key
		}
	}

	data, err := s.download(ctx, remoteURL)
	if err != nil {
		log.Err(err).Warn("image download failed")
		return remoteURL
	}
	mtype := mimetype.Detect(data)
	if !isImage(mtype) {
		log.Warn("downloaded file is not an image", logger.Data{"mime": mtype.String()})
		return remoteURL
	}

	ext := urlExtension(remoteURL)
	if ext == "" {
		ext = mtype.Extension()
	}
	key := ns + "/" + base + ext
	if err := s.backend.put(ctx, key, data, mtype.String()); err != nil {
		log.Err(err).Warn("image store failed")
		return remoteURL
	}
	return PublicPrefix + "/" + key
}

// SaveUpload stores user-supplied image bytes and returns the public path.
// The file name is derived from prefix and the current time, so repeated
// uploads never overwrite each other.
func (s *Service) SaveUpload(ctx context.Context, data []byte, namespace, prefix string) (string, error) {
	if len(data) == 0 {
		return "", errors.WithStack(ErrNotAnImage)
	}
	if len(data) > maxImageBytes {
		return "", errors.Errorf("image is larger than %d bytes", maxImageBytes)
	}
	mtype := mimetype.Detect(data)
	if !isImage(mtype) {
		return "", errors.WithStack(ErrNotAnImage)
	}

	key := Namespace(namespace) + "/" + prefix + "_" + strconv.FormatInt(s.now().UnixNano(), 10) + mtype.Extension()
	if err := s.backend.put(ctx, key, data, mtype.String()); err != nil {
		return "", err
	}
	return PublicPrefix + "/" + key, nil
}

// Open returns the stored image at a public path along with its content type.
func (s *Service) Open(ctx context.Context, publicPath string) (io.ReadCloser, string, error) {
	key, ok := keyFromPublicPath(publicPath)
	if !ok {
		return nil, "", errors.WithStack(ErrNotFound)
	}
	rc, err := s.backend.open(ctx, key)
	if err != nil {
		return nil, "", err
	}
	return rc, contentTypeForKey(key), nil
}

// Delete removes a locally stored image. Remote URLs and missing files are
// ignored.
func (s *Service) Delete(ctx context.Context, publicPath string) error {
	key, ok := keyFromPublicPath(publicPath)
	if !ok {
		return nil
	}
	err := s.backend.remove(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

// IsLocal reports whether publicPath points at an image this service stores.
func IsLocal(publicPath string) bool {
	_, ok := keyFromPublicPath(publicPath)
	return ok
}

func (s *Service) download(ctx context.Context, remoteURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, remoteURL, nil)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("unexpected status %d", resp.StatusCode)
	}

	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if n > maxImageBytes {
		return nil, errors.Errorf("image is larger than %d bytes", maxImageBytes)
	}
	return buf.Bytes(), nil
}

// urlExtension returns the lower-cased extension of the URL's path, or "" when
// it is missing or implausibly long.
func urlExtension(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	ext := strings.ToLower(path.Ext(u.Path))
	if ext == "" || len(ext) > 5 {
		return ""
	}
	return ext
}

func keyFromPublicPath(publicPath string) (string, bool) {
	rest, ok := strings.CutPrefix(publicPath, PublicPrefix+"/")
	if !ok {
		return "", false
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 2 {
		return "", false
	}
	for _, p := range parts {
		if p == "" || p == "." || p == ".." || strings.ContainsAny(p, `\`) {
			return "", false
		}
	}
	return rest, true
}

func isImage(mtype *mimetype.MIME) bool {
	for m := mtype; m != nil; m = m.Parent() {
		if strings.HasPrefix(m.String(), "image/") {
			return true
		}
	}
	return false
}

func contentTypeForKey(key string) string {
	if ct := mime.TypeByExtension(path.Ext(key)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
