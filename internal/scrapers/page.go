package scrapers

import (
	"bytes"
	"context"
	"realitease/internal/bio"
	"realitease/internal/webcache"
	"realitease/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
)

// BioTextLimit bounds how much page prose a result carries into gender analysis.
const BioTextLimit = 1000

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// PageResult reads a generic person page: infobox birthday and gender first, then
// gender scoring over the article prose.
func PageResult(doc *goquery.Document, name string) bio.Result {
	root := doc.Selection
	text := bio.ArticleText(root)

	gender := bio.ExtractInfoboxGender(root)
	if gender == bio.GenderUnknown {
		gender, _ = bio.ScoreGender(text, name)
	}
	return bio.Result{
		Gender:   gender,
		Birthday: bio.ExtractBirthday(root),
		BioText:  Truncate(htmlutil.CleanText(text), BioTextLimit),
	}
}

// FetchDocument gets a page through the cache and parses it.
func FetchDocument(ctx context.Context, client *resty.Client, cache *webcache.Cache, namespace, url string) (*goquery.Document, error) {
	body, err := Get(ctx, client, cache, namespace, url)
	if err != nil {
		return nil, err
	}
	return goquery.NewDocumentFromReader(bytes.NewReader(body))
}

// Empty reports whether a result has nothing worth merging.
func Empty(res bio.Result) bool {
	return res.Gender == bio.GenderUnknown && res.Birthday == ""
}
