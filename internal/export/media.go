package export

import (
	"log/slog"

	"github.com/dsas-mobility/fleet-migration/internal/models"
)

// AttachmentPostType marks media items in the export.
const AttachmentPostType = "attachment"

// MediaStats are informational counters from BuildMediaIndex.
type MediaStats struct {
	Items       int
	Attachments int
}

// BuildMediaIndex maps attachment post ids to their URLs. Items that are
// not attachments, or lack an id or URL, are skipped. A repeated id keeps
// the last URL seen.
func BuildMediaIndex(doc string) (models.MediaIndex, MediaStats) {
	index := make(models.MediaIndex)
	var stats MediaStats

	for raw := range Items(doc) {
		stats.Items++
		body := CutItem(raw)
		if PostType(body) != AttachmentPostType {
			continue
		}
		id, url := PostID(body), AttachmentURL(body)
		if id == nil || url == nil {
			continue
		}
		index[*id] = *url
		stats.Attachments++
	}

	slog.Info("built media index",
		"items", stats.Items,
		"attachments", stats.Attachments,
		"distinct_ids", len(index),
	)
	return index, stats
}
