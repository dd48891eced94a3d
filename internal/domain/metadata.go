package domain

import (
	"encoding/json"
	"strings"
)

// AssetMetadata is the structured form of the opaque metadata string embedded
// in a pool account. All fields are optional on-chain; a pool with malformed
// or absent metadata still syncs, it just cannot be auto-resolved.
type AssetMetadata struct {
	Symbol        string `json:"symbol"`
	Category      string `json:"category"`
	PythFeedID    string `json:"pyth_feed_id"`
	AssetDecimals *int   `json:"asset_decimals"`
	Image         string `json:"image"`
}

// ParseAssetMetadata decodes the embedded metadata JSON. A missing or
// unparseable payload is not an error for the caller: the bool result is
// false and the market keeps null asset fields.
func ParseAssetMetadata(raw string) (AssetMetadata, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return AssetMetadata{}, false
	}
	var meta AssetMetadata
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		return AssetMetadata{}, false
	}
	return meta, true
}

// ApplyTo copies the parsed fields onto a market, leaving fields the payload
// did not carry untouched. Category defaults to "custom" elsewhere.
func (m AssetMetadata) ApplyTo(market *Market) {
	if m.Symbol != "" {
		s := m.Symbol
		market.AssetSymbol = &s
	}
	if m.Category != "" {
		market.Category = m.Category
	}
	if m.PythFeedID != "" {
		id := m.PythFeedID
		market.PythFeedID = &id
	}
	if m.AssetDecimals != nil {
		d := *m.AssetDecimals
		market.AssetDecimals = &d
	}
	if m.Image != "" {
		u := m.Image
		market.ImageURL = &u
	}
}
