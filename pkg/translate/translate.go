// Package translate renders remote descriptions in the catalog's language
// through Google's public gtx endpoint.
package translate

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/segmentio/encoding/json"
	"golang.org/x/text/language"
)

const (
	defaultEndpoint  = "https://translate.googleapis.com"
	maxResponseBytes = 1 << 20
)

// scriptRanges lists the non-Latin scripts we can recognise. Text already
// written in the target's script is returned unchanged.
var scriptRanges = map[string][]*unicode.RangeTable{
	"Cyrl": {unicode.Cyrillic},
	"Grek": {unicode.Greek},
	"Arab": {unicode.Arabic},
	"Hebr": {unicode.Hebrew},
	"Thai": {unicode.Thai},
	"Hans": {unicode.Han},
	"Hant": {unicode.Han},
	"Jpan": {unicode.Hiragana, unicode.Katakana, unicode.Han},
	"Kore": {unicode.Hangul},
}

type Options struct {
	HTTPClient *http.Client
	// Endpoint overrides the translate host, for tests.
	Endpoint string
	// Target is a BCP 47 tag such as "ru" or "de".
	Target string
}

type Translator struct {
	client   *http.Client
	endpoint string
	target   language.Tag
	script   []*unicode.RangeTable
}

func New(opts Options) (*Translator, error) {
	target, err := language.Parse(opts.Target)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid translate target %q", opts.Target)
	}
	t := &Translator{
		client:   opts.HTTPClient,
		endpoint: opts.Endpoint,
		target:   target,
	}
	if t.client == nil {
		t.client = &http.Client{Timeout: 20 * time.Second}
	}
	if t.endpoint == "" {
		t.endpoint = defaultEndpoint
	}
	if script, conf := target.Script(); conf != language.No {
		t.script = scriptRanges[script.String()]
	}
	return t, nil
}

func (t *Translator) Target() language.Tag {
	return t.target
}

// Translate returns text in the target language. Blank text, text already in
// the target's script and every failure return the input unchanged.
func (t *Translator) Translate(ctx context.Context, text string) string {
	if strings.TrimSpace(text) == "" || t.alreadyTranslated(text) {
		return text
	}

	out, err := t.translate(ctx, text)
	if err != nil {
		logger.FromContext(ctx).Err(err).Warn("translation failed", logger.Data{"target": t.target.String()})
		return text
	}
	if out == "" {
		return text
	}
	return out
}

func (t *Translator) alreadyTranslated(text string) bool {
	if len(t.script) == 0 {
		return false
	}
	for _, r := range text {
		if unicode.In(r, t.script...) {
			return true
		}
	}
	return false
}

func (t *Translator) translate(ctx context.Context, text string) (string, error) {
	params := url.Values{
		"client": {"gtx"},
		"sl":     {"auto"},
		"tl":     {t.target.String()},
		"dt":     {"t"},
		"q":      {text},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.endpoint+"/translate_a/single?"+params.Encode(), nil)
	if err != nil {
		return "", errors.WithStack(err)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return "", errors.WithStack(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", errors.Errorf("translate returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", errors.WithStack(err)
	}
	return parseSentences(body)
}

// parseSentences joins the translated chunks of a gtx response, which looks
// like [[["Привет мир","Hello world",null,null,1], ...], null, "en", ...].
func parseSentences(body []byte) (string, error) {
	var root []json.RawMessage
	if err := json.Unmarshal(body, &root); err != nil {
		return "", errors.Wrap(err, "decode translate response")
	}
	if len(root) == 0 {
		return "", nil
	}

	var sentences [][]interface{}
	if err := json.Unmarshal(root[0], &sentences); err != nil {
		return "", errors.Wrap(err, "decode translate sentences")
	}

	var b strings.Builder
	for _, sentence := range sentences {
		if len(sentence) == 0 {
			continue
		}
		if s, ok := sentence[0].(string); ok {
			b.WriteString(s)
		}
	}
	return b.String(), nil
}
