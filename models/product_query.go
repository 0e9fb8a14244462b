package models

import (
	"encoding/json"
	"net/url"
)

// ProductQuery is the parameter set of GET /api/products exactly as it
// travels on the wire. Empty fields are unset.
type ProductQuery struct {
	CategoryID string `json:"categoryId" form:"categoryId"`
	Category   string `json:"category" form:"category"`
	Search     string `json:"search" form:"search"`
	Sort       string `json:"sort" form:"sort"`
	Order      string `json:"order" form:"order"`
	Limit      string `json:"limit" form:"limit"`
}

// WithDefaults fills sort and order the way the listing endpoint does.
func (q ProductQuery) WithDefaults() ProductQuery {
	if q.Sort == "" {
		q.Sort = "name"
	}
	if q.Order == "" {
		q.Order = "asc"
	}
	return q
}

// Key serializes the query into a cache key. Field order is fixed so equal
// queries always produce equal keys.
func (q ProductQuery) Key() string {
	b, _ := json.Marshal(q)
	return string(b)
}

// Values encodes the set fields as URL query parameters.
func (q ProductQuery) Values() url.Values {
	v := url.Values{}
	set := func(k, val string) {
		if val != "" {
			v.Set(k, val)
		}
	}
	set("categoryId", q.CategoryID)
	set("category", q.Category)
	set("search", q.Search)
	set("sort", q.Sort)
	set("order", q.Order)
	set("limit", q.Limit)
	return v
}
