package export

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dsas-mobility/fleet-migration/internal/models"
)

type fixtureItem struct {
	title    string
	postType string
	postID   string
	url      string
	brand    string
	category string
	meta     [][2]string
}

func (f fixtureItem) xml() string {
	var b strings.Builder
	b.WriteString("<item>\n")
	fmt.Fprintf(&b, "\t<title><![CDATA[%s]]></title>\n", f.title)
	fmt.Fprintf(&b, "\t<link>https://legacy.example/%s/</link>\n", strings.ToLower(strings.ReplaceAll(f.title, " ", "-")))
	if f.brand != "" {
		fmt.Fprintf(&b, "\t<category domain=\"marca\" nicename=\"%s\"><![CDATA[%s]]></category>\n", strings.ToLower(f.brand), f.brand)
	}
	if f.category != "" {
		fmt.Fprintf(&b, "\t<category domain=\"categoria\" nicename=\"x\"><![CDATA[%s]]></category>\n", f.category)
	}
	if f.postID != "" {
		fmt.Fprintf(&b, "\t<wp:post_id>%s</wp:post_id>\n", f.postID)
	}
	fmt.Fprintf(&b, "\t<wp:post_type><![CDATA[%s]]></wp:post_type>\n", f.postType)
	if f.url != "" {
		fmt.Fprintf(&b, "\t<wp:attachment_url><![CDATA[%s]]></wp:attachment_url>\n", f.url)
	}
	for _, kv := range f.meta {
		fmt.Fprintf(&b, "\t<wp:postmeta>\n\t\t<wp:meta_key><![CDATA[%s]]></wp:meta_key>\n\t\t<wp:meta_value><![CDATA[%s]]></wp:meta_value>\n\t</wp:postmeta>\n", kv[0], kv[1])
	}
	b.WriteString("</item>\n")
	return b.String()
}

func document(items ...fixtureItem) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8" ?><rss><channel><title>Legacy</title>`)
	for _, it := range items {
		b.WriteString(it.xml())
	}
	b.WriteString("</channel></rss>")
	return b.String()
}

func TestExtractItems(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want int
	}{
		{name: "empty", doc: "", want: 0},
		{name: "no markers", doc: "<rss><channel></channel></rss>", want: 0},
		{name: "three complete", doc: "head<item>a</item><item>b</item><item>c</item>tail", want: 3},
		{name: "truncated tail dropped", doc: "<item>a</item><item>b</item><item>c</item><item>trunc", want: 3},
		{name: "only truncated", doc: "<rss><item>trunc", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Len(t, ExtractItems(tt.doc), tt.want)
		})
	}
}

func TestItems_Restartable(t *testing.T) {
	seq := Items("<item>a</item><item>b</item><item>c")

	var first, second []string
	for it := range seq {
		first = append(first, CutItem(it))
	}
	for it := range seq {
		second = append(second, CutItem(it))
	}
	assert.Equal(t, []string{"a", "b"}, first)
	assert.Equal(t, first, second)

	for it := range seq {
		assert.Equal(t, "a", CutItem(it))
		break
	}
}

func TestCutItem(t *testing.T) {
	items := ExtractItems("<item><title>x</title></item>\n</channel>")
	require.Len(t, items, 1)
	assert.Equal(t, "<title>x</title>", CutItem(items[0]))
	assert.Equal(t, "no end", CutItem("no end"))
}

func TestDecodeItem(t *testing.T) {
	body := CutItem(ExtractItems(fixtureItem{
		title:    "Toyota Yaris 1.5 Hybrid",
		postType: "noleggiolungotermine",
		postID:   "42",
		brand:    "TOYOTA",
		category: "City Car",
		meta:     [][2]string{{"sku", "YAR-01"}, {"modello", "Yaris"}},
	}.xml())[0])

	item := DecodeItem(body)
	assert.Equal(t, "Toyota Yaris 1.5 Hybrid", item.Title)
	assert.Equal(t, "https://legacy.example/toyota-yaris-1.5-hybrid/", item.Link)
	assert.Equal(t, "TOYOTA", item.Brand)
	assert.Equal(t, "City Car", item.Category)
	assert.Equal(t, "noleggiolungotermine", item.PostType)
	require.NotNil(t, item.PostID)
	assert.Equal(t, "42", *item.PostID)
	assert.Nil(t, item.AttachmentURL)
	assert.Equal(t, []MetaPair{{"sku", "YAR-01"}, {"modello", "Yaris"}}, item.MetaPairs)
}

func TestDecodeItem_MissingFields(t *testing.T) {
	item := DecodeItem("<wp:post_id>abc</wp:post_id><title>not cdata</title>")
	assert.Empty(t, item.Title)
	assert.Empty(t, item.Link)
	assert.Empty(t, item.PostType)
	assert.Nil(t, item.PostID)
	assert.Nil(t, item.AttachmentURL)
	assert.Empty(t, item.MetaPairs)
	assert.Empty(t, item.Meta())
}

func TestDecodeItem_MetaLastWins(t *testing.T) {
	body := fixtureItem{meta: [][2]string{{"canone_mensile", "299"}, {"promo", "true"}, {"canone_mensile", "349"}}}.xml()

	item := DecodeItem(body)
	assert.Len(t, item.MetaPairs, 3)
	assert.Equal(t, "349", item.Meta()["canone_mensile"])
}

func TestDecodeItem_MultilineAndSpecialCharacters(t *testing.T) {
	value := "Prima riga (a+b)*\nseconda riga [x]? $1 ^ | \\d"
	body := fixtureItem{title: "Fiat 500 (1.0) [Hybrid]*", meta: [][2]string{{"descrizione", value}}}.xml()

	item := DecodeItem(body)
	assert.Equal(t, "Fiat 500 (1.0) [Hybrid]*", item.Title)
	assert.Equal(t, value, item.Meta()["descrizione"])
}

func TestDecodeItem_BrokenFieldDoesNotBlockOthers(t *testing.T) {
	body := `<title><![CDATA[Broken` + "\n" + `]]></title>
<wp:post_type><![CDATA[noleggiolungotermine]]></wp:post_type>
<wp:meta_key><![CDATA[sku]]></wp:meta_key><wp:meta_value><![CDATA[SKU-9]]></wp:meta_value>`

	item := DecodeItem(body)
	assert.Empty(t, item.Title)
	assert.Equal(t, "noleggiolungotermine", item.PostType)
	assert.Equal(t, "SKU-9", item.Meta()["sku"])
}

func TestBuildMediaIndex(t *testing.T) {
	doc := document(
		fixtureItem{title: "img1", postType: "attachment", postID: "5", url: "http://x/y.jpg"},
		fixtureItem{title: "page", postType: "page", postID: "6", url: "http://x/page.jpg"},
		fixtureItem{title: "no url", postType: "attachment", postID: "7"},
		fixtureItem{title: "no id", postType: "attachment", url: "http://x/noid.jpg"},
		fixtureItem{title: "dup", postType: "attachment", postID: "5", url: "http://x/z.jpg"},
	) + "<item><wp:post_type><![CDATA[attachment]]></wp:post_type>"

	index, stats := BuildMediaIndex(doc)

	assert.Equal(t, models.MediaIndex{"5": "http://x/z.jpg"}, index)
	assert.Equal(t, MediaStats{Items: 5, Attachments: 2}, stats)
}

func TestNormalizeVehicles_ResolvesThumbnail(t *testing.T) {
	media := models.MediaIndex{"5": "http://x/y.jpg"}
	doc := document(
		fixtureItem{title: "With image", postType: "noleggiolungotermine", postID: "10", meta: [][2]string{{"_thumbnail_id", "5"}}},
		fixtureItem{title: "Unresolved", postType: "noleggiolungotermine", postID: "11", meta: [][2]string{{"_thumbnail_id", "6"}}},
	)

	res := NormalizeVehicles(doc, media, DefaultOptions)

	require.Len(t, res.Records, 2)
	assert.Equal(t, "http://x/y.jpg", res.Records[0][models.FieldImageURL])
	_, ok := res.Records[1][models.FieldImageURL]
	assert.False(t, ok)
	assert.True(t, res.Columns.Has(models.FieldImageURL))
	assert.Equal(t, 1, res.Stats.ImagesResolved)
}

func TestNormalizeVehicles_FiltersPostType(t *testing.T) {
	doc := document(
		fixtureItem{title: "A", postType: "noleggiolungotermine", meta: [][2]string{{"sku", "A1"}}},
		fixtureItem{title: "Page", postType: "page", meta: [][2]string{{"page_only", "x"}}},
		fixtureItem{title: "Img", postType: "attachment", postID: "3", url: "http://x/a.jpg"},
		fixtureItem{title: "B", postType: "noleggiolungotermine"},
	)

	res := NormalizeVehicles(doc, nil, DefaultOptions)

	require.Len(t, res.Records, 2)
	for _, rec := range res.Records {
		assert.Equal(t, "noleggiolungotermine", rec[models.FieldPostType])
	}
	assert.Equal(t, NormalizeStats{Scanned: 4, Retained: 2}, res.Stats)
	// columns come from every scanned item
	assert.True(t, res.Columns.Has("page_only"))
	assert.False(t, res.Columns.Has(models.FieldImageURL))
}

func TestNormalizeVehicles_NullPostIDAndNoMeta(t *testing.T) {
	doc := document(fixtureItem{title: "Bare", postType: "noleggiolungotermine"})

	res := NormalizeVehicles(doc, models.MediaIndex{}, DefaultOptions)

	require.Len(t, res.Records, 1)
	rec := res.Records[0]
	_, ok := rec.PostID()
	assert.False(t, ok)
	assert.Equal(t, "Bare", rec[models.FieldTitle])
	assert.Equal(t, models.BaseColumns, res.Columns.Columns())
}

func TestNormalizeVehicles_MetaShadowsScalar(t *testing.T) {
	doc := document(fixtureItem{title: "Scalar", postType: "noleggiolungotermine", meta: [][2]string{{"Title", "From meta"}}})

	res := NormalizeVehicles(doc, nil, DefaultOptions)

	require.Len(t, res.Records, 1)
	assert.Equal(t, "From meta", res.Records[0][models.FieldTitle])
}
