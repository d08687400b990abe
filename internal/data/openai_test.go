package data

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"reviewsync/internal/biz"
	"reviewsync/internal/conf"
)

const completionContent = `{"analyses":[{"review_id":"r1","language":"es","sentiment":"negative","overall_score":0.2,` +
	`"overall_sentiment_confidence":0.9,"gap_to_five":false,"gap_reasons":["faster service"],"critical_flags":[],` +
	`"executive_summary":"Slow service","action_items":["add staff"],` +
	`"staff_mentions":[{"detected_name":"Marta","role":"waiter","sentiment":"negative","evidence_span":"Marta ignored us"}],` +
	`"aspects":[{"aspect":"service","sub_aspect":"speed","sentiment":"negative","evidence_spans":["slow"],"severity":2.6,"gap_to_five_contrib":0.4}]}]}`

func newTestAnnotator(t *testing.T, h http.HandlerFunc) *openaiAnnotator {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	a := newOpenAIAnnotator(&conf.OpenAI{
		BaseUrl:    srv.URL,
		ApiKey:     "sk-test",
		Model:      "test-model",
		MaxRetries: 2,
	}, testLogger)
	a.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return a
}

func writeCompletion(w http.ResponseWriter, content string) {
	raw, _ := json.Marshal(content)
	fmt.Fprintf(w, `{"choices":[{"message":{"role":"assistant","content":%s}}]}`, raw)
}

func TestOpenAIAnnotateRetriesRateLimit(t *testing.T) {
	var calls int32
	var captured chatRequest
	a := newTestAnnotator(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("missing bearer token")
		}
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		writeCompletion(w, completionContent)
	})

	out, err := a.Annotate(context.Background(), []biz.AnnotationInput{
		{ReviewID: "r1", Provider: biz.ProviderGoogle, Text: "Slow\nservice,\tMarta ignored us"},
	})
	if err != nil {
		t.Fatalf("Annotate: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected one retry, got %d calls", calls)
	}
	got := out["r1"]
	if got == nil || got.Sentiment != biz.SentimentNegative || got.Language != "es" {
		t.Fatalf("unexpected analysis: %+v", got)
	}
	if len(got.Aspects) != 1 || got.Aspects[0].Severity != 3 || got.Aspects[0].SubAspect != "speed" {
		t.Fatalf("aspects not decoded: %+v", got.Aspects)
	}
	if len(got.StaffMentions) != 1 || got.StaffMentions[0].DetectedName != "Marta" {
		t.Fatalf("staff mentions not decoded: %+v", got.StaffMentions)
	}

	if captured.Model != "test-model" || captured.ResponseFormat["type"] != "json_schema" {
		t.Fatalf("unexpected request: model=%s format=%v", captured.Model, captured.ResponseFormat["type"])
	}
	user := captured.Messages[1].Content
	if !strings.Contains(user, `"text":"Slow service, Marta ignored us"`) {
		t.Fatalf("review text not sanitized: %s", user)
	}
}

func TestOpenAIAnnotateGivesUpAfterRetries(t *testing.T) {
	var calls int32
	a := newTestAnnotator(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	if _, err := a.Annotate(context.Background(), []biz.AnnotationInput{{ReviewID: "r1", Text: "x"}}); err == nil {
		t.Fatal("expected error")
	}
	if calls != 3 {
		t.Fatalf("expected 1 call plus 2 retries, got %d", calls)
	}
}

func TestOpenAIAnnotateDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	a := newTestAnnotator(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"message":"bad schema"}}`)
	})
	_, err := a.Annotate(context.Background(), []biz.AnnotationInput{{ReviewID: "r1", Text: "x"}})
	if err == nil || !strings.Contains(err.Error(), "400") {
		t.Fatalf("expected 400 error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("client errors must not be retried, got %d calls", calls)
	}
}

func TestOpenAIBackoff(t *testing.T) {
	a := newOpenAIAnnotator(&conf.OpenAI{
		ApiKey:      "k",
		BackoffBase: conf.NewDuration(100 * time.Millisecond),
		BackoffMax:  conf.NewDuration(time.Second),
	}, testLogger)

	if got := a.backoff(0, "3"); got != time.Second {
		t.Fatalf("Retry-After must be capped at max, got %s", got)
	}
	if got := a.backoff(0, "0.5"); got != 500*time.Millisecond {
		t.Fatalf("Retry-After not honoured, got %s", got)
	}
	if got := a.backoff(1, ""); got < 200*time.Millisecond || got > 450*time.Millisecond {
		t.Fatalf("unexpected exponential backoff %s", got)
	}
	if got := a.backoff(10, ""); got != time.Second {
		t.Fatalf("backoff must be capped, got %s", got)
	}
}

func TestPrepareTextTruncates(t *testing.T) {
	a := newOpenAIAnnotator(&conf.OpenAI{ApiKey: "k", MaxReviewChars: 5}, testLogger)
	if got := a.prepareText("  ñandú\x00 rojo  "); got != "ñandú..." {
		t.Fatalf("unexpected text %q", got)
	}
	if got := a.prepareText("a\nb"); got != "a b" {
		t.Fatalf("unexpected text %q", got)
	}
}

func TestNewAnnotatorSelection(t *testing.T) {
	a, err := NewAnnotator(&conf.Source{Mode: "fixture"}, nil, testLogger)
	if err != nil {
		t.Fatalf("fixture annotator: %v", err)
	}
	if _, ok := a.(*fixtureAnnotator); !ok {
		t.Fatalf("expected fixture annotator, got %T", a)
	}
	if _, err := NewAnnotator(&conf.Source{Mode: "live"}, &conf.OpenAI{}, testLogger); err == nil {
		t.Fatal("live mode without api key must fail")
	}
}
