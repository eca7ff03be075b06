package export

import (
	"log/slog"

	"github.com/dsas-mobility/fleet-migration/internal/models"
)

// Options control which records NormalizeVehicles keeps and how their lead
// image is found.
type Options struct {
	TargetPostType string
	ThumbnailKey   string
}

// DefaultOptions match the legacy long-term rental export.
var DefaultOptions = Options{
	TargetPostType: "noleggiolungotermine",
	ThumbnailKey:   "_thumbnail_id",
}

// NormalizeStats are informational counters from NormalizeVehicles.
type NormalizeStats struct {
	Scanned        int
	Retained       int
	ImagesResolved int
}

// Result is the output of the first conversion pass. Columns holds every
// field name seen across all scanned items, not only the retained ones.
type Result struct {
	Records []models.VehicleRecord
	Columns *models.ColumnSet
	Stats   NormalizeStats
}

// NormalizeVehicles decodes every item in doc, keeps those of the target
// post type and resolves their thumbnail reference through media.
func NormalizeVehicles(doc string, media models.MediaIndex, opts Options) Result {
	columns := models.NewColumnSet(models.BaseColumns...)
	items := ExtractItems(doc)

	all := make([]models.VehicleRecord, 0, len(items))
	for _, raw := range items {
		item := DecodeItem(CutItem(raw))
		all = append(all, assemble(item, columns))
	}

	res := Result{Columns: columns, Stats: NormalizeStats{Scanned: len(all)}}
	for _, rec := range all {
		if rec[models.FieldPostType] != opts.TargetPostType {
			continue
		}
		if ref := rec[opts.ThumbnailKey]; ref != "" {
			if url, ok := media[ref]; ok {
				rec[models.FieldImageURL] = url
				columns.Add(models.FieldImageURL)
				res.Stats.ImagesResolved++
			}
		}
		res.Records = append(res.Records, rec)
	}
	res.Stats.Retained = len(res.Records)

	slog.Info("normalized vehicle export",
		"scanned", res.Stats.Scanned,
		"retained", res.Stats.Retained,
		"images_resolved", res.Stats.ImagesResolved,
		"post_type", opts.TargetPostType,
	)
	return res
}

// assemble merges scalar fields and metadata into one record. Metadata is
// applied last, so a metadata key that shadows a scalar field wins.
func assemble(item Item, columns *models.ColumnSet) models.VehicleRecord {
	rec := models.VehicleRecord{
		models.FieldTitle:    item.Title,
		models.FieldLink:     item.Link,
		models.FieldBrand:    item.Brand,
		models.FieldCategory: item.Category,
		models.FieldPostType: item.PostType,
	}
	if item.PostID != nil {
		rec[models.FieldPostID] = *item.PostID
	}
	if item.AttachmentURL != nil {
		rec[models.FieldAttachmentURL] = *item.AttachmentURL
	}
	for _, p := range item.MetaPairs {
		rec[p.Key] = p.Value
		columns.Add(p.Key)
	}
	return rec
}
