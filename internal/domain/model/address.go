package model

import "strings"

// 注文時点の住所スナップショット（テーブルではなく注文にJSONで埋め込む）
type AddressSnapshot struct {
	Name       string `json:"name"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	Region     string `json:"region,omitempty"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
	Phone      string `json:"phone,omitempty"`
}

// MissingFields は必須項目のうち空のものを返す。
func (a AddressSnapshot) MissingFields() []string {
	var missing []string
	check := func(name, v string) {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	check("name", a.Name)
	check("line1", a.Line1)
	check("city", a.City)
	check("postal_code", a.PostalCode)
	check("country", a.Country)
	return missing
}

func (a AddressSnapshot) IsZero() bool {
	return a == AddressSnapshot{}
}
