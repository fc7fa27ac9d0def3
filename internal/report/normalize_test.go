package report

import (
	"encoding/json"
	"testing"
)

func TestNormalizeNegativeSum(t *testing.T) {
	raw := []RawSeries{{Key: "sms", Points: []Point{{0, -3}, {60000, -2}}}}
	res := Normalize(raw, KindFor("sms-chart"), "")

	if len(res.Series) != 1 {
		t.Fatalf("expected 1 series, got %d", len(res.Series))
	}
	if res.Series[0].Key != "sms" || res.Series[0].Total != 5 {
		t.Errorf("unexpected series %+v", res.Series[0])
	}
	if len(res.Table) != 1 || res.Table[0].Label != "sms" || res.Table[0].Value != 5.0 {
		t.Errorf("unexpected table %+v", res.Table)
	}
	if res.Flat {
		t.Error("series with values must not be flat")
	}
}

func TestNormalizeKeepsPointOrder(t *testing.T) {
	raw := []RawSeries{{Key: "call", Points: []Point{{2000, 1}, {1000, 2}}}}
	res := Normalize(raw, KindFor("call-chart"), "")
	got := res.Series[0].Values
	if len(got) != 2 || got[0].Timestamp != 2000 || got[1].Timestamp != 1000 {
		t.Errorf("points reordered: %+v", got)
	}
}

func TestNormalizeScalar(t *testing.T) {
	raw := []RawSeries{ScalarSeries("outside_sms", 7), ScalarSeries("local_sms", -4)}
	res := Normalize(raw, KindFor(""), "")
	if res.Series[0].Total != 7 || res.Series[1].Total != 4 {
		t.Errorf("unexpected totals %+v", res.Series)
	}
	if res.Series[0].Values != nil {
		t.Error("scalar series must not carry values")
	}
}

func TestNormalizeCurrency(t *testing.T) {
	raw := []RawSeries{{Key: "call", Points: []Point{{0, 1.25}, {1, 1.756}}}}
	res := Normalize(raw, KindFor("call-billing-chart"), "USD")
	if res.Table[0].Value != "3.01" {
		t.Errorf("expected 3.01, got %v", res.Table[0].Value)
	}
	if res.Series[0].Total != 3.01 {
		t.Errorf("expected rounded total, got %v", res.Series[0].Total)
	}
	if res.Columns[1].Title != "Amount in (USD)" {
		t.Errorf("unexpected columns %+v", res.Columns)
	}
}

func TestNormalizeRetailer(t *testing.T) {
	raw := []RawSeries{
		{Key: "transfer", Scalar: floatPtr(30), Retailer: map[string]float64{"b-imsi": 10, "a-imsi": 20}},
		{Key: "add-money", Scalar: floatPtr(0)},
	}
	res := Normalize(raw, KindFor("load-transfer-chart"), "")

	if len(res.Series) != 2 {
		t.Fatalf("retailer expansion must not drop series, got %d", len(res.Series))
	}
	want := []TableRow{{"a-imsi", 20.0}, {"b-imsi", 10.0}, {NoData, NoData}}
	if len(res.Table) != len(want) {
		t.Fatalf("expected %d rows, got %+v", len(want), res.Table)
	}
	for i := range want {
		if res.Table[i] != want[i] {
			t.Errorf("row %d: got %+v want %+v", i, res.Table[i], want[i])
		}
	}
}

func TestNormalizeEmpty(t *testing.T) {
	res := Normalize(nil, KindFor("sms-chart"), "")
	if !res.Flat {
		t.Error("empty input must be flat")
	}
	if len(res.Table) != 0 || len(res.Series) != 0 {
		t.Errorf("expected empty output, got %+v", res)
	}
}

func TestIsFlat(t *testing.T) {
	zero := []RawSeries{{Key: "a", Points: []Point{{0, 0}, {1, 0}}}, ScalarSeries("b", 0)}
	if !IsFlat(zero) {
		t.Error("all-zero series must be flat")
	}
	if IsFlat(append(zero, ScalarSeries("c", 0.5))) {
		t.Error("non-zero scalar must not be flat")
	}
}

func TestRawSeriesJSON(t *testing.T) {
	payload := `{"results":[
		{"key":"sms","values":[[0,-3],[60000,-2]]},
		{"key":"call","values":12.5},
		{"key":"transfer","values":3,"retailer_table_data":{"001":3}},
		{"key":"waterfall","values":{"header":[],"data":[]}},
		{"key":"broken","values":[[1,2,3]]}
	]}`
	var body struct {
		Results []RawSeries `json:"results"`
	}
	if err := json.Unmarshal([]byte(payload), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	r := body.Results
	if len(r) != 5 {
		t.Fatalf("expected 5 series, got %d", len(r))
	}
	if len(r[0].Points) != 2 || r[0].Points[1].Timestamp != 60000 {
		t.Errorf("pairs not decoded: %+v", r[0])
	}
	if r[1].Scalar == nil || *r[1].Scalar != 12.5 {
		t.Errorf("scalar not decoded: %+v", r[1])
	}
	if r[2].Retailer["001"] != 3 {
		t.Errorf("retailer breakdown not decoded: %+v", r[2])
	}
	if r[3].Scalar != nil || r[3].Points != nil || r[4].Points != nil {
		t.Error("malformed values must decode as empty series")
	}

	out, err := json.Marshal(r[0])
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if string(out) != `{"key":"sms","values":[[0,-3],[60000,-2]]}` {
		t.Errorf("unexpected encoding %s", out)
	}
}

func TestTableRowJSON(t *testing.T) {
	out, _ := json.Marshal([]TableRow{{"sms", 5.0}, {NoData, NoData}})
	if string(out) != `[["sms",5],["No data","No data"]]` {
		t.Errorf("unexpected encoding %s", out)
	}
}

func TestYAxisFormatFor(t *testing.T) {
	if got := YAxisFormatFor(KindFor("other"), "total_data,uploaded_data,downloaded_data"); got != ".1f" {
		t.Errorf("got %q", got)
	}
	if got := YAxisFormatFor(KindFor("data-chart"), "total_data,uploaded_data,downloaded_data"); got != ".2f" {
		t.Errorf("got %q", got)
	}
	if got := YAxisFormatFor(KindFor("sms-chart"), "sms"); got != "" {
		t.Errorf("got %q", got)
	}
}

func floatPtr(v float64) *float64 { return &v }
