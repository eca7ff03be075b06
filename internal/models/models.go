package models

import "time"

// Field names every decoded vehicle record carries (or may carry).
const (
	FieldPostID        = "PostId"
	FieldTitle         = "Title"
	FieldLink          = "Link"
	FieldBrand         = "Brand"
	FieldCategory      = "Category"
	FieldPostType      = "PostType"
	FieldAttachmentURL = "AttachmentUrl"
	FieldImageURL      = "Image URL"
)

// BaseColumns seeds every ColumnSet.
var BaseColumns = []string{FieldTitle, FieldLink, FieldBrand, FieldCategory, FieldPostType}

// MediaIndex maps an attachment post id to its public URL
type MediaIndex map[string]string

// VehicleRecord is one normalized export item. Nullable fields (PostId,
// AttachmentUrl) are absent from the map when the export did not carry them.
type VehicleRecord map[string]string

// PostID returns the numeric post id, if the export had one.
func (r VehicleRecord) PostID() (string, bool) {
	v, ok := r[FieldPostID]
	return v, ok
}

// PersistedVehicle is the row shape of the destination table. SKU is the
// upsert key.
type PersistedVehicle struct {
	SKU          string `json:"sku" bson:"sku" dynamodbav:"sku" firestore:"sku" validate:"required"`
	Title        string `json:"titolo" bson:"titolo" dynamodbav:"titolo" firestore:"titolo"`
	Make         string `json:"marca" bson:"marca" dynamodbav:"marca" firestore:"marca"`
	Model        string `json:"modello" bson:"modello" dynamodbav:"modello" firestore:"modello"`
	Version      string `json:"versione" bson:"versione" dynamodbav:"versione" firestore:"versione"`
	Category     string `json:"categoria" bson:"categoria" dynamodbav:"categoria" firestore:"categoria"`
	Slug         string `json:"slug" bson:"slug" dynamodbav:"slug" firestore:"slug"`
	ImageURL     string `json:"immagine_url" bson:"immagine_url" dynamodbav:"immagine_url" firestore:"immagine_url"`
	FuelType     string `json:"alimentazione" bson:"alimentazione" dynamodbav:"alimentazione" firestore:"alimentazione"`
	Transmission string `json:"cambio" bson:"cambio" dynamodbav:"cambio" firestore:"cambio"`

	// Long term
	MonthlyFee     *float64 `json:"canone_mensile" bson:"canone_mensile" dynamodbav:"canone_mensile" firestore:"canone_mensile"`
	DownPayment    *float64 `json:"anticipo" bson:"anticipo" dynamodbav:"anticipo" firestore:"anticipo"`
	DurationMonths int      `json:"durata_mesi" bson:"durata_mesi" dynamodbav:"durata_mesi" firestore:"durata_mesi" validate:"gte=0"`
	AnnualKm       int      `json:"km_annui" bson:"km_annui" dynamodbav:"km_annui" firestore:"km_annui" validate:"gte=0"`

	// Short term
	ShortTermEnabled bool     `json:"noleggio_breve" bson:"noleggio_breve" dynamodbav:"noleggio_breve" firestore:"noleggio_breve"`
	DailyPrice       *float64 `json:"prezzo_giornaliero" bson:"prezzo_giornaliero" dynamodbav:"prezzo_giornaliero" firestore:"prezzo_giornaliero"`
	DailyKm          *int     `json:"km_giornaliero" bson:"km_giornaliero" dynamodbav:"km_giornaliero" firestore:"km_giornaliero"`
	WeeklyPrice      *float64 `json:"prezzo_settimanale" bson:"prezzo_settimanale" dynamodbav:"prezzo_settimanale" firestore:"prezzo_settimanale"`
	WeeklyKm         *int     `json:"km_settimanale" bson:"km_settimanale" dynamodbav:"km_settimanale" firestore:"km_settimanale"`
	MonthlyPrice     *float64 `json:"prezzo_mensile_breve" bson:"prezzo_mensile_breve" dynamodbav:"prezzo_mensile_breve" firestore:"prezzo_mensile_breve"`
	MonthlyKm        *int     `json:"km_mensile_breve" bson:"km_mensile_breve" dynamodbav:"km_mensile_breve" firestore:"km_mensile_breve"`
	Deposit          *float64 `json:"cauzione_richiesta" bson:"cauzione_richiesta" dynamodbav:"cauzione_richiesta" firestore:"cauzione_richiesta"`
	CostPerKm        *float64 `json:"costo_per_km" bson:"costo_per_km" dynamodbav:"costo_per_km" firestore:"costo_per_km"`

	Promo        bool   `json:"promo" bson:"promo" dynamodbav:"promo" firestore:"promo"`
	DeliveryTime string `json:"tempo_consegna" bson:"tempo_consegna" dynamodbav:"tempo_consegna" firestore:"tempo_consegna"`
}

// MigrationStatus tracks the outcome of the last run of a pipeline stage
type MigrationStatus struct {
	RunID        string    `json:"run_id" bson:"run_id" dynamodbav:"run_id" firestore:"run_id"`
	Stage        string    `json:"stage" bson:"stage" dynamodbav:"stage" firestore:"stage"`   // "convert", "upload", "reset"
	Status       string    `json:"status" bson:"status" dynamodbav:"status" firestore:"status"` // "running", "success", "failure", "never_run"
	StartedAt    time.Time `json:"started_at" bson:"started_at" dynamodbav:"started_at" firestore:"started_at"`
	FinishedAt   time.Time `json:"finished_at,omitempty" bson:"finished_at" dynamodbav:"finished_at" firestore:"finished_at"`
	Processed    int       `json:"processed" bson:"processed" dynamodbav:"processed" firestore:"processed"`
	Succeeded    int       `json:"succeeded" bson:"succeeded" dynamodbav:"succeeded" firestore:"succeeded"`
	Failed       int       `json:"failed" bson:"failed" dynamodbav:"failed" firestore:"failed"`
	Relocated    int       `json:"relocated" bson:"relocated" dynamodbav:"relocated" firestore:"relocated"`
	ErrorMessage string    `json:"error_message,omitempty" bson:"error_message,omitempty" dynamodbav:"error_message,omitempty" firestore:"error_message,omitempty"`
}
