package testsupport

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// PostFixture describes a post served by FakeAPI. Image and file entries are
// asset names that resolve to FakeAPI.AssetURL.
type PostFixture struct {
	Type       string
	Title      string
	Author     string
	Published  string
	Cover      string
	Text       string
	Images     []string
	Files      []string
	Blocks     []map[string]string
	ImageMap   map[string]string
	FileMap    map[string]string
	Restricted bool
	Error      string
}

// FakeAPI serves post.info responses and asset bytes for tests.
type FakeAPI struct {
	server   *httptest.Server
	mu       sync.Mutex
	posts    map[string][]byte
	statuses map[string]int
	assets   map[string][]byte
	failing  map[string]int
	gates    map[string]chan struct{}
	requests []string
}

// NewFakeAPI starts a server that is closed when the test ends.
func NewFakeAPI(t testing.TB) *FakeAPI {
	t.Helper()
	f := &FakeAPI{
		posts:    make(map[string][]byte),
		statuses: make(map[string]int),
		assets:   make(map[string][]byte),
		failing:  make(map[string]int),
		gates:    make(map[string]chan struct{}),
	}
	f.server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.server.Close)
	return f
}

// URL is the API base URL.
func (f *FakeAPI) URL() string { return f.server.URL }

// Client returns an HTTP client that trusts the server.
func (f *FakeAPI) Client() *http.Client { return f.server.Client() }

// AssetURL is the URL an asset name is served from.
func (f *FakeAPI) AssetURL(name string) string {
	return f.server.URL + "/assets/" + name
}

// AddAsset registers asset bytes under name.
func (f *FakeAPI) AddAsset(name string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.assets[name] = data
}

// FailAsset makes name respond with the given status.
func (f *FakeAPI) FailAsset(name string, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing[name] = status
}

// BlockAsset holds requests for name until the returned release func runs.
func (f *FakeAPI) BlockAsset(name string) (release func()) {
	gate := make(chan struct{})
	f.mu.Lock()
	f.gates[name] = gate
	f.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

// Requests lists request paths (with query) in arrival order.
func (f *FakeAPI) Requests() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requests...)
}

// SetRawPost serves body verbatim for the post id.
func (f *FakeAPI) SetRawPost(id string, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posts[id] = []byte(body)
}

// SetPostStatus makes post.info for id answer with status. The body is
// whatever SetRawPost or AddPost registered.
func (f *FakeAPI) SetPostStatus(id string, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[id] = status
}

// AddPost encodes the fixture and serves it for the post id.
func (f *FakeAPI) AddPost(id string, post PostFixture) {
	data, err := json.Marshal(f.encode(id, post))
	if err != nil {
		panic(err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posts[id] = data
}

func (f *FakeAPI) encode(id string, post PostFixture) map[string]any {
	if post.Error != "" {
		return map[string]any{"error": post.Error}
	}
	if post.Type == "" {
		post.Type = "image"
	}
	if post.Published == "" {
		post.Published = "2024-03-14T09:26:00+00:00"
	}

	var cover any
	if post.Cover != "" {
		cover = f.AssetURL(post.Cover)
	}

	var body any
	if !post.Restricted {
		switch post.Type {
		case "image":
			images := make([]map[string]string, 0, len(post.Images))
			for i, name := range post.Images {
				images = append(images, map[string]string{"id": strings.Repeat("i", i+1), "originalUrl": f.AssetURL(name)})
			}
			body = map[string]any{"text": post.Text, "images": images}
		case "file":
			files := make([]map[string]string, 0, len(post.Files))
			for i, name := range post.Files {
				files = append(files, map[string]string{"id": strings.Repeat("f", i+1), "url": f.AssetURL(name)})
			}
			body = map[string]any{"text": post.Text, "files": files}
		case "article":
			imageMap := map[string]map[string]string{}
			for key, name := range post.ImageMap {
				imageMap[key] = map[string]string{"id": key, "originalUrl": f.AssetURL(name)}
			}
			fileMap := map[string]map[string]string{}
			for key, name := range post.FileMap {
				fileMap[key] = map[string]string{"id": key, "url": f.AssetURL(name)}
			}
			body = map[string]any{"blocks": post.Blocks, "imageMap": imageMap, "fileMap": fileMap, "urlEmbedMap": map[string]any{}}
		}
	}

	return map[string]any{
		"body": map[string]any{
			"id":                id,
			"title":             post.Title,
			"coverImageUrl":     cover,
			"publishedDatetime": post.Published,
			"isRestricted":      post.Restricted,
			"user":              map[string]string{"name": post.Author},
			"type":              post.Type,
			"body":              body,
		},
	}
}

func (f *FakeAPI) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.requests = append(f.requests, r.URL.RequestURI())
	f.mu.Unlock()

	switch {
	case r.URL.Path == "/post.info":
		id := r.URL.Query().Get("postId")
		f.mu.Lock()
		data, ok := f.posts[id]
		status := f.statuses[id]
		f.mu.Unlock()
		if !ok {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"error":"general_error"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if status != 0 {
			w.WriteHeader(status)
		}
		_, _ = w.Write(data)
	case strings.HasPrefix(r.URL.Path, "/assets/"):
		name := strings.TrimPrefix(r.URL.Path, "/assets/")
		f.mu.Lock()
		gate := f.gates[name]
		status := f.failing[name]
		data, ok := f.assets[name]
		f.mu.Unlock()
		if gate != nil {
			select {
			case <-gate:
			case <-r.Context().Done():
				return
			}
		}
		if status != 0 {
			http.Error(w, http.StatusText(status), status)
			return
		}
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(data)
	default:
		http.NotFound(w, r)
	}
}
