package profiles

import (
	"bytes"
	"context"
	"database/sql"
	"image"
	"image/png"
	"mime/multipart"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/appshelf/appshelf/pkg/binder"
	"github.com/appshelf/appshelf/pkg/catalog"
	"github.com/appshelf/appshelf/pkg/config"
	"github.com/appshelf/appshelf/pkg/enrich"
	"github.com/appshelf/appshelf/pkg/errcodes"
	"github.com/appshelf/appshelf/pkg/images"
	"github.com/appshelf/appshelf/pkg/metadata"
	"github.com/appshelf/appshelf/pkg/migrations"
	"github.com/appshelf/appshelf/pkg/models"
	"github.com/labstack/echo/v4"
	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	_, err = db.Exec("PRAGMA foreign_keys = ON")
	require.NoError(t, err)

	_, err = migrations.BringUpToDate(context.Background(), db)
	require.NoError(t, err)

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

type fakeSearcher struct {
	mu      sync.Mutex
	result  *metadata.Result
	err     error
	queries []string
	sources []metadata.Source
}

func (f *fakeSearcher) Search(_ context.Context, name string, source metadata.Source) (*metadata.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, name)
	f.sources = append(f.sources, source)
	return f.result, f.err
}

func newTestHandler(t *testing.T, searcher *fakeSearcher) *handler {
	t.Helper()

	cfg := config.NewForTest()
	cfg.DataDir = t.TempDir()
	imageService, err := images.New(context.Background(), cfg, nil)
	require.NoError(t, err)

	var s enrich.Searcher
	if searcher != nil {
		s = searcher
	}
	return &handler{
		catalogService: catalog.NewService(newTestDB(t)),
		enricher:       enrich.New(s, nil, imageService),
		imageService:   imageService,
	}
}

func (h *handler) seed(t *testing.T, p *models.Profile, filepaths ...string) *models.Profile {
	t.Helper()
	sess := h.catalogService.NewSession()
	sess.AddProfile(p)
	for _, fp := range filepaths {
		sess.AddInstaller(&models.Installer{
			Profile:   p,
			Filename:  fp[strings.LastIndex(fp, "/")+1:],
			Filepath:  fp,
			Extension: "exe",
		})
	}
	require.NoError(t, sess.Commit(context.Background()))
	return p
}

func newProfilesTestContext(t *testing.T, method, target, body, mime string, id int) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()

	e := echo.New()
	b, err := binder.New()
	require.NoError(t, err)
	e.Binder = b
	e.HTTPErrorHandler = errcodes.NewHandler().Handle

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if mime != "" {
		req.Header.Set(echo.HeaderContentType, mime)
	}
	rr := httptest.NewRecorder()
	c := e.NewContext(req, rr)
	if id != 0 {
		c.SetParamNames("id")
		c.SetParamValues(strconv.Itoa(id))
	}
	return c, rr
}

// multipartBody builds a form with one file per field.
func multipartBody(t *testing.T, files map[string][]byte) (string, string) {
	t.Helper()

	keys := make([]string, 0, len(files))
	for k := range files {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, k := range keys {
		fw, err := w.CreateFormFile(k, k+".png")
		require.NoError(t, err)
		_, err = fw.Write(files[k])
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.String(), w.FormDataContentType()
}

func pngBytes(t *testing.T, width, height int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, width, height))))
	return buf.Bytes()
}

func decodeProfile(t *testing.T, rr *httptest.ResponseRecorder) *models.Profile {
	t.Helper()
	p := &models.Profile{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), p))
	return p
}
