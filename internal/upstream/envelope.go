package upstream

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Item is one product record as returned by the upstream catalog API.
type Item struct {
	ProductID    FlexString `json:"PRODUCT_ID"`
	Name         string     `json:"NAME"`
	GenericName  string     `json:"GENERIC_NAME"`
	InternalName string     `json:"INTERNAL_NAME"`
	Manufacturer string     `json:"MANUFACTURER"`
	Ingredients  string     `json:"INGREDIENTS"`
	Description  string     `json:"DESCRIPTION"`
	CategoryCode FlexInt    `json:"CATEGORY_CODE"`
	BasePrice    FlexFloat  `json:"BASE_PRICE"`
	Active       FlexString `json:"ACTIVE"`
	Stocks       []Stock    `json:"STOCKS"`
}

// Stock is the per-facility stock sub-object. Only STOCKS[0] is meaningful.
type Stock struct {
	Available    FlexInt    `json:"AVAILABLE"`
	OnHand       FlexInt    `json:"ONHAND"`
	Promise      FlexInt    `json:"PROMISE"`
	FacilityName FlexString `json:"FACILITY_NAME"`
}

// IsActive reports whether the upstream marks the product as active.
func (it *Item) IsActive() bool {
	return string(it.Active) == "1"
}

// PrimaryStock returns STOCKS[0], or a zero Stock when the array is absent.
func (it *Item) PrimaryStock() Stock {
	if len(it.Stocks) == 0 {
		return Stock{}
	}
	return it.Stocks[0]
}

// Page is a decoded upstream response page.
type Page struct {
	Items      []Item
	TotalPages int
}

// The upstream has been observed to change its JSON nesting between
// deployments. Each shape below is a typed decode attempt; DecodePage tries
// them in order and the first one that both decodes and yields items wins.

type nestedTwiceEnvelope struct {
	Data struct {
		Data struct {
			Items      []Item  `json:"items"`
			TotalPages FlexInt `json:"totalPages"`
		} `json:"data"`
	} `json:"data"`
}

type nestedOnceEnvelope struct {
	Data struct {
		Items      []Item  `json:"items"`
		TotalPages FlexInt `json:"totalPages"`
	} `json:"data"`
}

type flatEnvelope struct {
	Items      []Item  `json:"items"`
	TotalPages FlexInt `json:"totalPages"`
}

// DecodePage decodes an upstream response body, probing the known envelope
// shapes in order: data.data.items, data.items, items, bare array.
func DecodePage(body []byte) (*Page, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty response body")
	}

	if trimmed[0] == '[' {
		var items []Item
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("decoding bare array envelope: %w", err)
		}
		return &Page{Items: items}, nil
	}

	var twice nestedTwiceEnvelope
	if err := json.Unmarshal(trimmed, &twice); err == nil && len(twice.Data.Data.Items) > 0 {
		return &Page{Items: twice.Data.Data.Items, TotalPages: int(twice.Data.Data.TotalPages)}, nil
	}
	var once nestedOnceEnvelope
	if err := json.Unmarshal(trimmed, &once); err == nil && len(once.Data.Items) > 0 {
		return &Page{Items: once.Data.Items, TotalPages: int(once.Data.TotalPages)}, nil
	}
	var flat flatEnvelope
	if err := json.Unmarshal(trimmed, &flat); err != nil {
		return nil, fmt.Errorf("decoding envelope: %w", err)
	}
	return &Page{Items: flat.Items, TotalPages: int(flat.TotalPages)}, nil
}

// FlexString decodes from either a JSON string or a JSON number. The
// upstream is not consistent about quoting identifiers and flags.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	*f = FlexString(strings.TrimSpace(string(data)))
	return nil
}

// FlexInt decodes from a JSON number or a numeric string, defaulting to 0
// for null/empty values.
type FlexInt int

func (f *FlexInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	// Some numeric fields arrive as floats ("12.0").
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("parsing %q as int: %w", s, err)
	}
	*f = FlexInt(int(v))
	return nil
}

// FlexFloat decodes from a JSON number or a numeric string, defaulting to 0
// for null/empty values.
type FlexFloat float64

func (f *FlexFloat) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("parsing %q as float: %w", s, err)
	}
	*f = FlexFloat(v)
	return nil
}
