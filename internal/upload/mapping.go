package upload

import (
	"strings"

	"github.com/dsas-mobility/fleet-migration/internal/models"
)

// Source column names. The *_giornalero_* spelling is what the legacy
// exports carry.
const (
	colModel        = "modello"
	colVersion      = "versione"
	colSlug         = "slug_id"
	colSKU          = "sku"
	colFuel         = "combustibile"
	colTransmission = "cambio"
	colMonthlyFee   = "canone_mensile"
	colDownPayment  = "anticipo"
	colDuration     = "durata_mesi"
	colAnnualKm     = "km_annui"
	colShortTerm    = "breve"
	colDailyPrice   = "prezzo_giornalero_breve"
	colDailyKm      = "km_giornalero_breve"
	colWeeklyPrice  = "prezzo_settimanale_breve"
	colWeeklyKm     = "km_settimanale_breve"
	colMonthlyPrice = "prezzo_mensile_breve"
	colMonthlyKm    = "km_mensile_breve"
	colDeposit      = "cauzione_breve"
	colCostPerKm    = "costo_chilometro_breve"
	colPromo        = "promo"
	colDeliveryTime = "tempo_consegna"
	defaultDuration = 48
	defaultAnnualKm = 10000
	legacyHybrid    = "Ibrida"
	mappedHybrid    = "Ibrida-Benzina"
	legacyGuarantee = "garanzia_mobilita"
	mappedGuarantee = "Garanzia di Mobilità"
)

// MapVehicle turns one intermediate row into the destination shape. imageURL
// is the (possibly relocated) image to store.
func MapVehicle(row models.VehicleRecord, imageURL string) models.PersistedVehicle {
	slug := row[colSlug]
	if slug == "" {
		slug = Slugify(row[models.FieldTitle])
	}

	return models.PersistedVehicle{
		SKU:          row[colSKU],
		Title:        joinNonEmpty(row[models.FieldBrand], row[colModel], row[colVersion]),
		Make:         row[models.FieldBrand],
		Model:        row[colModel],
		Version:      row[colVersion],
		Category:     row[models.FieldCategory],
		Slug:         slug,
		ImageURL:     imageURL,
		FuelType:     translate(row[colFuel], legacyHybrid, mappedHybrid),
		Transmission: row[colTransmission],

		MonthlyFee:     ParsePrice(row[colMonthlyFee]),
		DownPayment:    ParsePrice(row[colDownPayment]),
		DurationMonths: ParseIntDefault(row[colDuration], defaultDuration),
		AnnualKm:       ParseIntDefault(row[colAnnualKm], defaultAnnualKm),

		// mapped regardless of the breve flag
		ShortTermEnabled: ParseBool(row[colShortTerm]),
		DailyPrice:       ParsePrice(row[colDailyPrice]),
		DailyKm:          ParseIntOrNil(row[colDailyKm]),
		WeeklyPrice:      ParsePrice(row[colWeeklyPrice]),
		WeeklyKm:         ParseIntOrNil(row[colWeeklyKm]),
		MonthlyPrice:     ParsePrice(row[colMonthlyPrice]),
		MonthlyKm:        ParseIntOrNil(row[colMonthlyKm]),
		Deposit:          ParsePrice(row[colDeposit]),
		CostPerKm:        ParsePrice(row[colCostPerKm]),

		Promo:        ParseBool(row[colPromo]),
		DeliveryTime: translate(row[colDeliveryTime], legacyGuarantee, mappedGuarantee),
	}
}

// RelocationName is the object name for a record's image: the SKU, or the
// title made filesystem safe.
func RelocationName(row models.VehicleRecord) string {
	if sku := row[colSKU]; sku != "" {
		return sku
	}
	return SafeName(row[models.FieldTitle])
}

func translate(v, from, to string) string {
	if v == from {
		return to
	}
	return v
}

func joinNonEmpty(parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}
