package export

import "regexp"

var (
	titleRe         = regexp.MustCompile(`<title><!\[CDATA\[(.*?)\]\]></title>`)
	linkRe          = regexp.MustCompile(`<link>(.*?)</link>`)
	brandRe         = regexp.MustCompile(`<category domain="marca".*?><!\[CDATA\[(.*?)\]\]></category>`)
	categoryRe      = regexp.MustCompile(`<category domain="categoria".*?><!\[CDATA\[(.*?)\]\]></category>`)
	postTypeRe      = regexp.MustCompile(`<wp:post_type><!\[CDATA\[(.*?)\]\]></wp:post_type>`)
	postIDRe        = regexp.MustCompile(`<wp:post_id>(\d+)</wp:post_id>`)
	attachmentURLRe = regexp.MustCompile(`<wp:attachment_url><!\[CDATA\[(.*?)\]\]></wp:attachment_url>`)

	// meta values may span lines
	metaRe = regexp.MustCompile(`(?s)<wp:meta_key><!\[CDATA\[(.*?)\]\]></wp:meta_key>\s*<wp:meta_value><!\[CDATA\[(.*?)\]\]></wp:meta_value>`)
)

// MetaPair is one wp:postmeta key/value entry.
type MetaPair struct {
	Key   string
	Value string
}

// Item holds the fields recovered from one item body. Optional scalars are
// nil when their pattern did not match.
type Item struct {
	Title         string
	Link          string
	Brand         string
	Category      string
	PostType      string
	PostID        *string
	AttachmentURL *string
	MetaPairs     []MetaPair
}

// Meta folds the pairs into a map; a repeated key keeps its last value.
func (it Item) Meta() map[string]string {
	meta := make(map[string]string, len(it.MetaPairs))
	for _, p := range it.MetaPairs {
		meta[p.Key] = p.Value
	}
	return meta
}

// DecodeItem runs every field lookup over body. A field that is missing or
// malformed does not affect the others.
func DecodeItem(body string) Item {
	return Item{
		Title:         findString(titleRe, body),
		Link:          findString(linkRe, body),
		Brand:         findString(brandRe, body),
		Category:      findString(categoryRe, body),
		PostType:      PostType(body),
		PostID:        PostID(body),
		AttachmentURL: AttachmentURL(body),
		MetaPairs:     MetaPairs(body),
	}
}

// PostType returns the item's wp:post_type, or "" when absent.
func PostType(body string) string {
	return findString(postTypeRe, body)
}

// PostID returns the numeric wp:post_id, or nil when absent.
func PostID(body string) *string {
	return findOptional(postIDRe, body)
}

// AttachmentURL returns the wp:attachment_url, or nil when absent.
func AttachmentURL(body string) *string {
	return findOptional(attachmentURLRe, body)
}

// MetaPairs returns every key/value pair in document order.
func MetaPairs(body string) []MetaPair {
	matches := metaRe.FindAllStringSubmatch(body, -1)
	if len(matches) == 0 {
		return nil
	}
	pairs := make([]MetaPair, 0, len(matches))
	for _, m := range matches {
		pairs = append(pairs, MetaPair{Key: m[1], Value: m[2]})
	}
	return pairs
}

func findString(re *regexp.Regexp, s string) string {
	if v := findOptional(re, s); v != nil {
		return *v
	}
	return ""
}

func findOptional(re *regexp.Regexp, s string) *string {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return nil
	}
	v := m[1]
	return &v
}
