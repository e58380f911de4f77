package fanbox_test

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"sort"
	"testing"
	"time"

	"fanboxed/internal/config"
	"fanboxed/internal/fanbox"
	"fanboxed/internal/services"
	"fanboxed/internal/testsupport"
	"fanboxed/internal/transport"
)

func newClient(api *testsupport.FakeAPI, includeFiles bool) *fanbox.Client {
	getter := transport.New(api.Client(), transport.Options{UserAgent: "fanboxed/test"})
	return fanbox.NewClient(getter, fanbox.Options{
		BaseURL:      api.URL(),
		Origin:       "https://www.fanbox.cc",
		SessionID:    "secret",
		IncludeFiles: includeFiles,
		Location:     time.UTC,
	})
}

func TestRequestInfoImagePost(t *testing.T) {
	api := testsupport.NewFakeAPI(t)
	api.AddPost("100", testsupport.PostFixture{
		Type:      "image",
		Title:     "Sketches",
		Author:    "Alice",
		Published: "2021-02-03T04:05:00+00:00",
		Cover:     "cover.jpeg",
		Text:      "  hello\n\n\n\nworld  ",
		Images:    []string{"one.png", "two.jpg"},
	})

	post, err := newClient(api, true).RequestInfo(context.Background(), "100")
	if err != nil {
		t.Fatalf("RequestInfo returned error: %v", err)
	}
	if post.Author != "Alice" || post.Title != "Sketches" {
		t.Fatalf("unexpected identity %q/%q", post.Author, post.Title)
	}
	if post.Year != 2021 || post.Month != 2 || post.Day != 3 || post.Hour != 4 || post.Minute != 5 {
		t.Fatalf("unexpected publish decomposition %+v", post)
	}
	if post.Description != "hello\n\nworld" {
		t.Fatalf("unexpected description %q", post.Description)
	}
	want := []string{api.AssetURL("one.png"), api.AssetURL("two.jpg")}
	if !reflect.DeepEqual(post.Assets, want) {
		t.Fatalf("assets = %v, want %v", post.Assets, want)
	}
	if post.Cover != api.AssetURL("cover.jpeg") || post.TotalFetches() != 3 {
		t.Fatalf("unexpected cover %q total %d", post.Cover, post.TotalFetches())
	}

	reqs := api.Requests()
	if len(reqs) != 1 || reqs[0] != "/post.info?postId=100" {
		t.Fatalf("unexpected requests %v", reqs)
	}
}

func TestRequestInfoArticleNormalization(t *testing.T) {
	api := testsupport.NewFakeAPI(t)
	api.AddPost("200", testsupport.PostFixture{
		Type: "article",
		Blocks: []map[string]string{
			{"type": "header", "text": "H"},
			{"type": "p", "text": "P"},
			{"type": "image", "imageId": "x"},
		},
		ImageMap: map[string]string{"x": "x.png"},
	})

	post, err := newClient(api, true).RequestInfo(context.Background(), "200")
	if err != nil {
		t.Fatalf("RequestInfo returned error: %v", err)
	}
	if post.Description != "H\nP" {
		t.Fatalf("description = %q, want %q", post.Description, "H\nP")
	}
	if !reflect.DeepEqual(post.Assets, []string{api.AssetURL("x.png")}) {
		t.Fatalf("unexpected assets %v", post.Assets)
	}
	if post.HasCover() {
		t.Fatal("expected no cover")
	}
}

func TestRequestInfoArticleBlocks(t *testing.T) {
	blocks := []map[string]string{
		{"type": "p", "text": "intro"},
		{"type": "header", "text": "Chapter"},
		{"type": "p", "text": ""},
		{"type": "p", "text": ""},
		{"type": "p", "text": ""},
		{"type": "file", "fileId": "f1"},
		{"type": "url_embed", "urlEmbedId": "u1"},
		{"type": "image", "imageId": "i2"},
		{"type": "image", "imageId": "i1"},
	}
	tests := []struct {
		name         string
		includeFiles bool
		wantAssets   []string
	}{
		{"images only", false, []string{"b.png", "a.png"}},
		{"with files", true, []string{"doc.pdf", "b.png", "a.png"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := testsupport.NewFakeAPI(t)
			api.AddPost("300", testsupport.PostFixture{
				Type:     "article",
				Blocks:   blocks,
				ImageMap: map[string]string{"i1": "a.png", "i2": "b.png"},
				FileMap:  map[string]string{"f1": "doc.pdf"},
			})
			post, err := newClient(api, tt.includeFiles).RequestInfo(context.Background(), "300")
			if err != nil {
				t.Fatalf("RequestInfo returned error: %v", err)
			}
			if post.Description != "intro\n\nChapter" {
				t.Fatalf("unexpected description %q", post.Description)
			}
			var want []string
			for _, name := range tt.wantAssets {
				want = append(want, api.AssetURL(name))
			}
			if !reflect.DeepEqual(post.Assets, want) {
				t.Fatalf("assets = %v, want %v", post.Assets, want)
			}
		})
	}
}

func TestRequestInfoFileToggle(t *testing.T) {
	api := testsupport.NewFakeAPI(t)
	api.AddPost("400", testsupport.PostFixture{Type: "file", Text: "files", Files: []string{"a.zip", "b.psd"}})

	withFiles, err := newClient(api, true).RequestInfo(context.Background(), "400")
	if err != nil {
		t.Fatalf("RequestInfo returned error: %v", err)
	}
	if len(withFiles.Assets) != 2 {
		t.Fatalf("expected file assets, got %v", withFiles.Assets)
	}
	without, err := newClient(api, false).RequestInfo(context.Background(), "400")
	if err != nil {
		t.Fatalf("RequestInfo returned error: %v", err)
	}
	if len(without.Assets) != 0 || without.Description != "files" {
		t.Fatalf("expected no assets when files excluded, got %+v", without)
	}
}

func TestRequestInfoErrors(t *testing.T) {
	api := testsupport.NewFakeAPI(t)
	api.AddPost("1", testsupport.PostFixture{Error: "general_error"})
	api.AddPost("2", testsupport.PostFixture{Restricted: true})
	api.SetRawPost("3", `{"body":null}`)
	api.SetRawPost("4", `{"body":{"title":"x","publishedDatetime":"2024-01-01T00:00:00Z","isRestricted":false,"user":{"name":"a"},"type":"image","body":null}}`)
	api.SetRawPost("5", `{"body":{"title":"x","publishedDatetime":"2024-01-01T00:00:00Z","user":{"name":"a"},"type":"article","body":{"blocks":[{"type":"image","imageId":"gone"}],"imageMap":{}}}}`)
	api.SetRawPost("6", `{"body":{"title":"x","publishedDatetime":"2024-01-01T00:00:00Z","user":{"name":"a"},"type":"video","body":{"text":""}}}`)
	api.SetRawPost("7", `not json`)
	api.SetRawPost("8", `{"error":"general_error"}`)
	api.SetPostStatus("8", http.StatusBadRequest)
	api.SetRawPost("9", `<html>bad gateway</html>`)
	api.SetPostStatus("9", http.StatusBadGateway)

	tests := []struct {
		id     fanbox.PostID
		marker error
	}{
		{"1", services.ErrAPI},
		{"2", services.ErrRestricted},
		{"3", services.ErrAPI},
		{"4", services.ErrRestricted},
		{"5", services.ErrAPI},
		{"6", services.ErrAPI},
		{"7", services.ErrAPI},
		{"8", services.ErrAPI},
		{"9", services.ErrTransport},
	}
	client := newClient(api, true)
	for _, tt := range tests {
		t.Run(string(tt.id), func(t *testing.T) {
			_, err := client.RequestInfo(context.Background(), tt.id)
			if !errors.Is(err, tt.marker) {
				t.Fatalf("expected %v, got %v", tt.marker, err)
			}
		})
	}

	for _, id := range []fanbox.PostID{"1", "8"} {
		_, err := client.RequestInfo(context.Background(), id)
		if err == nil || err.Error() != "failed to call an API: general_error" {
			t.Fatalf("post %s: expected server error text, got %v", id, err)
		}
	}
}

func TestRequestInfoTransportFailure(t *testing.T) {
	getter := transport.New(&http.Client{Timeout: time.Second}, transport.Options{})
	client := fanbox.NewClient(getter, fanbox.Options{BaseURL: "http://127.0.0.1:1", Origin: "https://www.fanbox.cc"})
	_, err := client.RequestInfo(context.Background(), "1")
	if !errors.Is(err, services.ErrTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}
}

func TestPublishTimeUsesLocation(t *testing.T) {
	api := testsupport.NewFakeAPI(t)
	api.AddPost("9", testsupport.PostFixture{Published: "2024-12-31T23:30:00+00:00"})

	tokyo := time.FixedZone("JST", 9*60*60)
	getter := transport.New(api.Client(), transport.Options{})
	client := fanbox.NewClient(getter, fanbox.Options{BaseURL: api.URL(), Origin: "https://www.fanbox.cc", Location: tokyo})
	post, err := client.RequestInfo(context.Background(), "9")
	if err != nil {
		t.Fatalf("RequestInfo returned error: %v", err)
	}
	if post.Year != 2025 || post.Month != 1 || post.Day != 1 || post.Hour != 8 || post.Minute != 30 {
		t.Fatalf("unexpected local decomposition %d-%d-%d %d:%d", post.Year, post.Month, post.Day, post.Hour, post.Minute)
	}
}

func TestParsePostID(t *testing.T) {
	tests := []struct {
		in      string
		want    fanbox.PostID
		wantErr bool
	}{
		{"123456", "123456", false},
		{" 42 ", "42", false},
		{"https://www.fanbox.cc/@creator/posts/987654", "987654", false},
		{"https://creator.fanbox.cc/posts/555?utm=x", "555", false},
		{"https://www.fanbox.cc/@creator", "", true},
		{"abc", "", true},
	}
	for _, tt := range tests {
		got, err := fanbox.ParsePostID(tt.in)
		if (err != nil) != tt.wantErr {
			t.Fatalf("ParsePostID(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Fatalf("ParsePostID(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDescriptorFieldsMatchConfigSample(t *testing.T) {
	post := &fanbox.PostDescriptor{ID: "1"}
	got := keys(post.Fields())
	want := keys(config.SamplePostFields())
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("descriptor fields %v differ from config sample %v", got, want)
	}
}

func keys[M ~map[string]V, V any](m M) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
