package upstream

import (
	"encoding/json"
	"testing"
)

const sampleItem = `{"PRODUCT_ID": "12345", "NAME": "Парацетамол 500мг", "ACTIVE": "1",
	"CATEGORY_CODE": 1, "BASE_PRICE": 45.5,
	"STOCKS": [{"AVAILABLE": 10, "ONHAND": 12, "PROMISE": 2, "FACILITY_NAME": "Main"}]}`

func TestDecodePageEnvelopes(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantTotal int
	}{
		{"double nested", `{"data": {"data": {"items": [` + sampleItem + `], "totalPages": 7}}}`, 7},
		{"single nested", `{"data": {"items": [` + sampleItem + `], "totalPages": 3}}`, 3},
		{"flat", `{"items": [` + sampleItem + `], "totalPages": 2}`, 2},
		{"bare array", `[` + sampleItem + `]`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := DecodePage([]byte(tt.body))
			if err != nil {
				t.Fatalf("DecodePage: %v", err)
			}
			if len(page.Items) != 1 {
				t.Fatalf("got %d items, want 1", len(page.Items))
			}
			if page.TotalPages != tt.wantTotal {
				t.Errorf("TotalPages = %d, want %d", page.TotalPages, tt.wantTotal)
			}
			item := page.Items[0]
			if string(item.ProductID) != "12345" {
				t.Errorf("ProductID = %q", item.ProductID)
			}
			if !item.IsActive() {
				t.Error("item should be active")
			}
			stock := item.PrimaryStock()
			if int(stock.Available) != 10 || string(stock.FacilityName) != "Main" {
				t.Errorf("PrimaryStock = %+v", stock)
			}
		})
	}
}

func TestDecodePageErrors(t *testing.T) {
	if _, err := DecodePage([]byte("")); err == nil {
		t.Error("empty body should fail")
	}
	if _, err := DecodePage([]byte("not json at all")); err == nil {
		t.Error("garbage body should fail")
	}
	// A valid envelope with no items is an empty page, not an error.
	page, err := DecodePage([]byte(`{"items": [], "totalPages": 0}`))
	if err != nil {
		t.Fatalf("DecodePage: %v", err)
	}
	if len(page.Items) != 0 {
		t.Errorf("got %d items, want 0", len(page.Items))
	}
}

func TestFlexTypes(t *testing.T) {
	var item Item
	body := `{"PRODUCT_ID": 98765, "ACTIVE": 1, "CATEGORY_CODE": "4", "BASE_PRICE": "12.50",
		"STOCKS": [{"AVAILABLE": "7", "ONHAND": 8.0, "PROMISE": null}]}`
	if err := json.Unmarshal([]byte(body), &item); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if string(item.ProductID) != "98765" {
		t.Errorf("numeric PRODUCT_ID = %q", item.ProductID)
	}
	if !item.IsActive() {
		t.Error("numeric ACTIVE=1 should read as active")
	}
	if int(item.CategoryCode) != 4 {
		t.Errorf("CategoryCode = %d", item.CategoryCode)
	}
	if float64(item.BasePrice) != 12.5 {
		t.Errorf("BasePrice = %v", item.BasePrice)
	}
	st := item.PrimaryStock()
	if int(st.Available) != 7 || int(st.OnHand) != 8 || int(st.Promise) != 0 {
		t.Errorf("stock = %+v", st)
	}
}

func TestPrimaryStockAbsent(t *testing.T) {
	var item Item
	if err := json.Unmarshal([]byte(`{"PRODUCT_ID": "1"}`), &item); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	st := item.PrimaryStock()
	if int(st.Available) != 0 {
		t.Errorf("zero stock expected, got %+v", st)
	}
}
