package upload

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dsas-mobility/fleet-migration/internal/models"
)

func TestParsePrice(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"299,90", 299.90},
		{"1.234,56", 1234.56},
		{"350", 350},
		{"350.5", 350.5},
		{" 99,00 € ", 99},
		{"-10,5", -10.5},
	}
	for _, tt := range tests {
		got := ParsePrice(tt.in)
		require.NotNil(t, got, tt.in)
		assert.InDelta(t, tt.want, *got, 1e-9, tt.in)
	}

	assert.Nil(t, ParsePrice(""))
	assert.Nil(t, ParsePrice("su richiesta"))
}

func TestParseIntDefault(t *testing.T) {
	assert.Equal(t, 36, ParseIntDefault("36", 48))
	assert.Equal(t, 36, ParseIntDefault("36 mesi", 48))
	assert.Equal(t, 48, ParseIntDefault("", 48))
	assert.Equal(t, 48, ParseIntDefault("abc", 48))
	assert.Equal(t, 10000, ParseIntDefault("0", 10000))
	assert.Equal(t, 15, ParseIntDefault("15.000", 10000))
}

func TestParseIntOrNil(t *testing.T) {
	v := ParseIntOrNil("150")
	require.NotNil(t, v)
	assert.Equal(t, 150, *v)
	assert.Nil(t, ParseIntOrNil(""))
	assert.Nil(t, ParseIntOrNil("0"))
}

func TestParseBool(t *testing.T) {
	assert.True(t, ParseBool("true"))
	assert.False(t, ParseBool("TRUE"))
	assert.False(t, ParseBool("1"))
	assert.False(t, ParseBool(""))
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "fiat-500-hybrid-dolcevita", Slugify("Fiat 500 Hybrid (Dolcevita)"))
	assert.Equal(t, "citro-n-c3", Slugify("Citroën C3"))
	assert.Equal(t, "", Slugify("---"))
}

func TestSafeName(t *testing.T) {
	assert.Equal(t, "Fiat_500_1_0", SafeName("Fiat 500 1.0"))
	assert.Equal(t, "Citro_n", SafeName("Citroën"))
}

func TestMapVehicle_Defaults(t *testing.T) {
	v := MapVehicle(models.VehicleRecord{"Title": "Panda", "Brand": "Fiat", "sku": "P-1"}, "")

	assert.Equal(t, "Fiat", v.Title)
	assert.Equal(t, "panda", v.Slug)
	assert.Equal(t, 48, v.DurationMonths)
	assert.Equal(t, 10000, v.AnnualKm)
	assert.Nil(t, v.MonthlyFee)
	assert.Nil(t, v.DailyKm)
	assert.False(t, v.Promo)
	assert.Empty(t, v.FuelType)
}

func TestMapVehicle_KeepsSlugAndUnknownValues(t *testing.T) {
	v := MapVehicle(models.VehicleRecord{
		"slug_id":        "panda-cross",
		"combustibile":   "Benzina",
		"tempo_consegna": "30 giorni",
		"promo":          "true",
		"breve":          "true",
	}, "")

	assert.Equal(t, "panda-cross", v.Slug)
	assert.Equal(t, "Benzina", v.FuelType)
	assert.Equal(t, "30 giorni", v.DeliveryTime)
	assert.True(t, v.Promo)
	assert.True(t, v.ShortTermEnabled)
}

func TestRelocationName(t *testing.T) {
	assert.Equal(t, "SKU-9", RelocationName(models.VehicleRecord{"sku": "SKU-9", "Title": "x"}))
	assert.Equal(t, "Jeep_Avenger", RelocationName(models.VehicleRecord{"Title": "Jeep Avenger"}))
}
