package testutil

import (
	"time"

	"github.com/Veraticus/card-purpose/internal/model"
)

// FixtureTime is the timestamp carried by fixture entries.
var FixtureTime = time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)

// FixtureEntries returns a small reference set covering several categories.
func FixtureEntries() []model.ReferenceEntry {
	entry := func(key, category string) model.ReferenceEntry {
		return model.ReferenceEntry{
			Key:        key,
			Category:   category,
			Provenance: model.ProvenanceManual,
			UpdatedAt:  FixtureTime,
		}
	}
	return []model.ReferenceEntry{
		entry("와와식당", "중식대"),
		entry("스타벅스 강남역", "중식대"),
		entry("GS칼텍스 역삼", "차량유지비(주유)"),
		entry("온누리약국", "복리후생비(의료)"),
		entry("다이소 안산", "소모품비"),
		entry("한국도로공사", "차량유지비(기타)"),
	}
}
