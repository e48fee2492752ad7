package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"smishguard/internal/domain/models"
	"smishguard/pkg/logger"
)

func TestPhoneReputationClient_Lookup(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus models.EnrichmentStatus
		wantScam   *bool
	}{
		{name: "valid scam number", status: http.StatusOK, body: `{"valid":true,"scam":true}`, wantStatus: models.EnrichmentStatusOK, wantScam: boolPtr(true)},
		{name: "valid clean number", status: http.StatusOK, body: `{"valid":true,"scam":false}`, wantStatus: models.EnrichmentStatusOK, wantScam: boolPtr(false)},
		{name: "invalid number flagged scam", status: http.StatusOK, body: `{"valid":false,"scam":true}`, wantStatus: models.EnrichmentStatusOK, wantScam: boolPtr(false)},
		{name: "upstream error", status: http.StatusInternalServerError, body: `oops`, wantStatus: models.EnrichmentStatusUnknown},
		{name: "quota exceeded", status: http.StatusTooManyRequests, body: `{}`, wantStatus: models.EnrichmentStatusUnknown},
		{name: "garbage body", status: http.StatusOK, body: `not json`, wantStatus: models.EnrichmentStatusUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if got := r.URL.Query().Get("country_code"); got != "GB" {
					t.Errorf("country_code = %q, want GB", got)
				}
				if got := r.URL.Query().Get("number"); got != "+447426948477" {
					t.Errorf("number = %q, want normalized +447426948477", got)
				}
				if got := r.URL.Query().Get("api_key"); got != "secret" {
					t.Errorf("api_key = %q", got)
				}
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := NewPhoneReputationClient(PhoneReputationConfig{
				APIURL: server.URL,
				APIKey: "secret",
			}, logger.NewNop())

			got := client.Lookup(context.Background(), "+44 7426 948477")

			if got.Number != "+44 7426 948477" {
				t.Errorf("Number = %q, want original input", got.Number)
			}
			if got.Status != tt.wantStatus {
				t.Fatalf("Status = %q, want %q (err=%q)", got.Status, tt.wantStatus, got.Error)
			}
			if tt.wantScam == nil {
				if got.IsScam != nil {
					t.Errorf("IsScam = %v, want nil", *got.IsScam)
				}
				if got.Error == "" {
					t.Error("unknown verdict should carry an error detail")
				}
				return
			}
			if got.IsScam == nil || *got.IsScam != *tt.wantScam {
				t.Errorf("IsScam = %v, want %v", got.IsScam, *tt.wantScam)
			}
		})
	}
}

func TestPhoneReputationClient_ConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	addr := server.URL
	server.Close()

	client := NewPhoneReputationClient(PhoneReputationConfig{APIURL: addr, Timeout: time.Second}, logger.NewNop())
	got := client.Lookup(context.Background(), "07826514174")
	if got.Status != models.EnrichmentStatusUnknown {
		t.Errorf("Status = %q, want unknown", got.Status)
	}
}

func TestNormalizePhoneNumber(t *testing.T) {
	tests := map[string]string{
		"+44 7426 948477": "+447426948477",
		"(07826) 514 174": "07826514174",
		"07826514174":     "07826514174",
		"44+1":            "441",
	}
	for in, want := range tests {
		if got := NormalizePhoneNumber(in); got != want {
			t.Errorf("NormalizePhoneNumber(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSafeBrowsingClient_Lookup(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		body          string
		wantStatus    models.EnrichmentStatus
		wantMalicious bool
		wantMatches   int
	}{
		{name: "no matches", status: http.StatusOK, body: `{}`, wantStatus: models.EnrichmentStatusOK},
		{name: "empty matches", status: http.StatusOK, body: `{"matches":[]}`, wantStatus: models.EnrichmentStatusOK},
		{
			name:          "one match",
			status:        http.StatusOK,
			body:          `{"matches":[{"threatType":"SOCIAL_ENGINEERING","platformType":"ANY_PLATFORM","threat":{"url":"http://evil.test/"},"cacheDuration":"300s"}]}`,
			wantStatus:    models.EnrichmentStatusOK,
			wantMalicious: true,
			wantMatches:   1,
		},
		{name: "bad request", status: http.StatusBadRequest, body: `{"error":{"code":400}}`, wantStatus: models.EnrichmentStatusError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("method = %s, want POST", r.Method)
				}
				if r.URL.Query().Get("key") != "k" {
					t.Errorf("key = %q", r.URL.Query().Get("key"))
				}

				var req safeBrowsingRequest
				if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
					t.Errorf("decode request: %v", err)
					w.WriteHeader(http.StatusInternalServerError)
					return
				}
				if req.Client.ClientID == "" {
					t.Error("clientId must be set")
				}
				if strings.Join(req.ThreatInfo.ThreatTypes, ",") != "MALWARE,SOCIAL_ENGINEERING,UNWANTED_SOFTWARE" {
					t.Errorf("threatTypes = %v", req.ThreatInfo.ThreatTypes)
				}
				if len(req.ThreatInfo.PlatformTypes) != 1 || req.ThreatInfo.PlatformTypes[0] != "ANY_PLATFORM" {
					t.Errorf("platformTypes = %v", req.ThreatInfo.PlatformTypes)
				}
				if len(req.ThreatInfo.ThreatEntryTypes) != 1 || req.ThreatInfo.ThreatEntryTypes[0] != "URL" {
					t.Errorf("threatEntryTypes = %v", req.ThreatInfo.ThreatEntryTypes)
				}
				if len(req.ThreatInfo.ThreatEntries) != 1 || req.ThreatInfo.ThreatEntries[0].URL != "http://evil.test/" {
					t.Errorf("threatEntries = %v", req.ThreatInfo.ThreatEntries)
				}

				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := NewSafeBrowsingClient(SafeBrowsingConfig{APIURL: server.URL, APIKey: "k"}, logger.NewNop())
			got := client.Lookup(context.Background(), "http://evil.test/")

			if got.URL != "http://evil.test/" {
				t.Errorf("URL = %q", got.URL)
			}
			if got.Status != tt.wantStatus {
				t.Fatalf("Status = %q, want %q", got.Status, tt.wantStatus)
			}
			if got.IsMalicious != tt.wantMalicious {
				t.Errorf("IsMalicious = %v, want %v", got.IsMalicious, tt.wantMalicious)
			}
			if len(got.Matches) != tt.wantMatches {
				t.Errorf("len(Matches) = %d, want %d", len(got.Matches), tt.wantMatches)
			}
			if tt.wantStatus == models.EnrichmentStatusError && !strings.Contains(got.Error, "400") {
				t.Errorf("Error = %q, want status detail", got.Error)
			}
		})
	}
}

func TestRegistrableDomain(t *testing.T) {
	tests := map[string]string{
		"https://login.example.co.uk/path": "example.co.uk",
		"www.royalmail-parcel.com/pay":     "royalmail-parcel.com",
		"bit.ly/abc":                       "bit.ly",
	}
	for in, want := range tests {
		if got := RegistrableDomain(in); got != want {
			t.Errorf("RegistrableDomain(%q) = %q, want %q", in, got, want)
		}
	}
}

type stubPhoneLookup struct {
	calls atomic.Int32
	fn    func(number string) models.PhoneEnrichment
}

func (s *stubPhoneLookup) Lookup(_ context.Context, number string) models.PhoneEnrichment {
	s.calls.Add(1)
	return s.fn(number)
}

type stubURLLookup struct {
	calls atomic.Int32
	fn    func(u string) models.URLEnrichment
}

func (s *stubURLLookup) Lookup(_ context.Context, u string) models.URLEnrichment {
	s.calls.Add(1)
	return s.fn(u)
}

type mapCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMapCache() *mapCache { return &mapCache{data: map[string][]byte{}} }

func (c *mapCache) GetJSON(_ context.Context, key string, dest any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.data[key]
	if !ok {
		return errors.New("miss")
	}
	return json.Unmarshal(b, dest)
}

func (c *mapCache) SetJSON(_ context.Context, key string, value any, _ time.Duration) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = b
	return nil
}

func TestEnricher_PreservesOrderAndLength(t *testing.T) {
	phones := []string{"07000000001", "07000000002", "07000000003", "07000000004", "07000000005"}
	urls := []string{"a.com", "b.com", "c.com"}

	phoneStub := &stubPhoneLookup{fn: func(n string) models.PhoneEnrichment {
		// Later inputs finish first.
		time.Sleep(time.Duration(10-int(n[len(n)-1]-'0')) * time.Millisecond)
		v := true
		return models.PhoneEnrichment{Number: n, Status: models.EnrichmentStatusOK, Valid: &v, IsScam: &v}
	}}
	urlStub := &stubURLLookup{fn: func(u string) models.URLEnrichment {
		return models.URLEnrichment{URL: u, Status: models.EnrichmentStatusOK, Matches: []models.ThreatMatch{}}
	}}

	e := NewEnricher(phoneStub, urlStub, nil, EnricherConfig{Concurrency: 3}, logger.NewNop())
	got := e.Enrich(context.Background(), phones, urls)

	if len(got.Phones) != len(phones) || len(got.URLs) != len(urls) {
		t.Fatalf("lengths = %d/%d, want %d/%d", len(got.Phones), len(got.URLs), len(phones), len(urls))
	}
	for i, p := range phones {
		if got.Phones[i].Number != p {
			t.Errorf("Phones[%d].Number = %q, want %q", i, got.Phones[i].Number, p)
		}
	}
	for i, u := range urls {
		if got.URLs[i].URL != u {
			t.Errorf("URLs[%d].URL = %q, want %q", i, got.URLs[i].URL, u)
		}
	}
}

func TestEnricher_AllLookupsFail(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer failing.Close()

	phoneClient := NewPhoneReputationClient(PhoneReputationConfig{APIURL: failing.URL}, logger.NewNop())
	urlClient := NewSafeBrowsingClient(SafeBrowsingConfig{APIURL: failing.URL}, logger.NewNop())
	e := NewEnricher(phoneClient, urlClient, nil, EnricherConfig{}, logger.NewNop())

	phones := []string{"+447426948477", "07826514174"}
	urls := []string{"https://example.com/path", "bit.ly/x", "evil.io"}
	got := e.Enrich(context.Background(), phones, urls)

	if len(got.Phones) != len(phones) {
		t.Fatalf("len(Phones) = %d, want %d", len(got.Phones), len(phones))
	}
	if len(got.URLs) != len(urls) {
		t.Fatalf("len(URLs) = %d, want %d", len(got.URLs), len(urls))
	}
	for i, p := range got.Phones {
		if p.Status != models.EnrichmentStatusUnknown || p.IsScam != nil || p.Number != phones[i] {
			t.Errorf("Phones[%d] = %+v, want unknown verdict for %q", i, p, phones[i])
		}
	}
	for i, u := range got.URLs {
		if u.Status != models.EnrichmentStatusError || u.URL != urls[i] || u.Error == "" {
			t.Errorf("URLs[%d] = %+v, want error-tagged verdict for %q", i, u, urls[i])
		}
	}
}

func TestEnricher_NilLookupsAndEmptyInput(t *testing.T) {
	e := NewEnricher(nil, nil, nil, EnricherConfig{}, logger.NewNop())

	got := e.Enrich(context.Background(), nil, nil)
	if got.Phones == nil || got.URLs == nil || len(got.Phones) != 0 || len(got.URLs) != 0 {
		t.Fatalf("empty input should give empty slices, got %+v", got)
	}

	got = e.Enrich(context.Background(), []string{"07826514174"}, []string{"a.com"})
	if got.Phones[0].Status != models.EnrichmentStatusUnknown {
		t.Errorf("phone status = %q, want unknown", got.Phones[0].Status)
	}
	if got.URLs[0].Status != models.EnrichmentStatusError {
		t.Errorf("url status = %q, want error", got.URLs[0].Status)
	}
}

func TestEnricher_CachesOnlySuccessfulVerdicts(t *testing.T) {
	cache := newMapCache()
	phoneStub := &stubPhoneLookup{fn: func(n string) models.PhoneEnrichment {
		v := false
		return models.PhoneEnrichment{Number: n, Status: models.EnrichmentStatusOK, Valid: &v, IsScam: &v}
	}}
	urlStub := &stubURLLookup{fn: func(u string) models.URLEnrichment {
		return models.FailedURL(u, "boom")
	}}

	e := NewEnricher(phoneStub, urlStub, cache, EnricherConfig{}, logger.NewNop())

	for i := 0; i < 3; i++ {
		got := e.Enrich(context.Background(), []string{"07826 514 174"}, []string{"evil.io"})
		if got.Phones[0].Number != "07826 514 174" {
			t.Errorf("cached verdict should keep the requested number, got %q", got.Phones[0].Number)
		}
	}

	if n := phoneStub.calls.Load(); n != 1 {
		t.Errorf("phone lookups = %d, want 1 (cached after first)", n)
	}
	if n := urlStub.calls.Load(); n != 3 {
		t.Errorf("url lookups = %d, want 3 (failures are not cached)", n)
	}
}

func boolPtr(b bool) *bool { return &b }
