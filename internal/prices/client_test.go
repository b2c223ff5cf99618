package prices

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestFetchLatest_SkipsIncompleteEntries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/latest" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(`{"data":{
			"4151":{"high":1200000,"low":1180000},
			"2":{"high":null,"low":150},
			"3":{"high":200,"low":null},
			"notanid":{"high":1,"low":1}
		}}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, srv.URL, "test-agent", time.Second)
	prices, err := client.FetchLatest(context.Background())
	if err != nil {
		t.Fatalf("FetchLatest failed: %v", err)
	}

	if len(prices) != 1 {
		t.Fatalf("Expected 1 usable price, got %d: %v", len(prices), prices)
	}
	if prices[4151] != 1190000 {
		t.Errorf("Expected midpoint 1190000 for item 4151, got %d", prices[4151])
	}
}

func TestFetchAveraged_SendsBucketAndTimestamp(t *testing.T) {
	var gotPath, gotTimestamp, gotAgent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotTimestamp = r.URL.Query().Get("timestamp")
		gotAgent = r.Header.Get("User-Agent")
		w.Write([]byte(`{"data":{"4151":{"avgHighPrice":1000,"avgLowPrice":800}}}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, srv.URL, "test-agent", time.Second)
	prices, err := client.FetchAveraged(context.Background(), "24h", 1700000000)
	if err != nil {
		t.Fatalf("FetchAveraged failed: %v", err)
	}

	if gotPath != "/24h" {
		t.Errorf("Expected path /24h, got %s", gotPath)
	}
	if gotTimestamp != "1700000000" {
		t.Errorf("Expected timestamp 1700000000, got %s", gotTimestamp)
	}
	if gotAgent != "test-agent" {
		t.Errorf("Expected User-Agent test-agent, got %s", gotAgent)
	}
	if prices[4151] != 900 {
		t.Errorf("Expected midpoint 900, got %d", prices[4151])
	}
}

func TestFetchItemMeta_SkipsNonItemKeys(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"%JAGEX_TIMESTAMP%":1700000000,
			"4151":{"name":"Abyssal whip","icon":"Abyssal whip.png"},
			"560":{"name":"Death rune","icon":""}
		}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, srv.URL, "", time.Second)
	meta, err := client.FetchItemMeta(context.Background())
	if err != nil {
		t.Fatalf("FetchItemMeta failed: %v", err)
	}

	if len(meta) != 2 {
		t.Fatalf("Expected 2 items, got %d", len(meta))
	}
	whip := meta[4151]
	if whip.Name != "Abyssal whip" {
		t.Errorf("Expected name Abyssal whip, got %s", whip.Name)
	}
	if whip.IconURL != "https://oldschool.runescape.wiki/images/c/c0/Abyssal_whip.png" {
		t.Errorf("Unexpected icon URL: %s", whip.IconURL)
	}
	if meta[560].IconURL != "" {
		t.Errorf("Expected empty icon URL for item without icon, got %s", meta[560].IconURL)
	}
}

func TestGetJSON_RejectsNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, srv.URL, "", time.Second)
	if _, err := client.FetchLatest(context.Background()); err == nil {
		t.Fatal("Expected error on 502 response")
	}
}

func TestWindowTimestamp_AlignsToBucket(t *testing.T) {
	now := time.Unix(1700000123, 0)
	got := WindowTimestamp(now, time.Hour, 5*time.Minute)

	want := int64(1700000123 - 3600)
	want -= want % 300
	if got != want {
		t.Errorf("Expected aligned timestamp %d, got %d", want, got)
	}
	if got%300 != 0 {
		t.Errorf("Timestamp %d is not aligned to the 5m bucket", got)
	}
}

func TestComputeMovers_SortsAndFilters(t *testing.T) {
	baseline := map[int]int{1: 150, 2: 90, 3: 120, 4: 500}
	snapshot := map[int]int{1: 100, 2: 100, 3: 100, 4: 0}
	meta := map[int]ItemMeta{
		1: {ID: 1, Name: "One"},
		2: {ID: 2, Name: "Two"},
		3: {ID: 3, Name: "Three"},
		4: {ID: 4, Name: "Four"},
	}

	top := ComputeMovers(baseline, snapshot, meta, MoverFilter{Direction: TopPerformers})
	if len(top) != 2 {
		t.Fatalf("Expected 2 top performers, got %d", len(top))
	}
	if top[0].ItemID != 1 || top[1].ItemID != 3 {
		t.Errorf("Expected order [1 3], got [%d %d]", top[0].ItemID, top[1].ItemID)
	}
	if top[0].ChangePct != 50.0 {
		t.Errorf("Expected 50%% change for item 1, got %f", top[0].ChangePct)
	}
	if top[0].ChangeAbs != 50 {
		t.Errorf("Expected absolute change 50, got %d", top[0].ChangeAbs)
	}

	under := ComputeMovers(baseline, snapshot, meta, MoverFilter{Direction: Underperformers})
	if len(under) != 1 || under[0].ItemID != 2 {
		t.Fatalf("Expected only item 2 as underperformer, got %v", under)
	}
}

func TestComputeMovers_PriceBounds(t *testing.T) {
	baseline := map[int]int{1: 200, 2: 2000}
	snapshot := map[int]int{1: 100, 2: 1000}
	meta := map[int]ItemMeta{1: {ID: 1, Name: "One"}, 2: {ID: 2, Name: "Two"}}

	got := ComputeMovers(baseline, snapshot, meta, MoverFilter{MinPrice: 500})
	if len(got) != 1 || got[0].ItemID != 2 {
		t.Fatalf("Expected only item 2 above min price, got %v", got)
	}

	got = ComputeMovers(baseline, snapshot, meta, MoverFilter{MaxPrice: 500})
	if len(got) != 1 || got[0].ItemID != 1 {
		t.Fatalf("Expected only item 1 below max price, got %v", got)
	}
}

func TestComputeMovers_SkipsItemsWithoutMeta(t *testing.T) {
	baseline := map[int]int{1: 200}
	snapshot := map[int]int{1: 100}

	got := ComputeMovers(baseline, snapshot, map[int]ItemMeta{}, MoverFilter{})
	if len(got) != 0 {
		t.Fatalf("Expected no movers without metadata, got %v", got)
	}
}
