package gcs

import (
	"encoding/json"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// fakeGCS serves the subset of the JSON API used by FolderStore: bucket
// attributes, multipart uploads, object listing and media downloads.
type fakeGCS struct {
	bucket string

	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeGCS(t *testing.T, bucket string) (*fakeGCS, *httptest.Server) {
	t.Helper()
	f := &fakeGCS{bucket: bucket, objects: make(map[string][]byte)}
	srv := httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeGCS) put(name string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[name] = data
}

func (f *fakeGCS) names() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.objects))
	for name := range f.objects {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (f *fakeGCS) serve(w http.ResponseWriter, r *http.Request) {
	bucketPath := "/storage/v1/b/" + f.bucket
	uploadPath := "/upload/storage/v1/b/" + f.bucket + "/o"
	switch {
	case r.Method == http.MethodGet && r.URL.Path == bucketPath:
		writeJSON(w, map[string]any{"kind": "storage#bucket", "name": f.bucket})
	case r.Method == http.MethodPost && r.URL.Path == uploadPath:
		f.upload(w, r)
	case r.Method == http.MethodGet && r.URL.Path == bucketPath+"/o":
		f.list(w, r.URL.Query().Get("prefix"))
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, bucketPath+"/o/"):
		f.download(w, strings.TrimPrefix(r.URL.Path, bucketPath+"/o/"))
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/"+f.bucket+"/"):
		f.download(w, strings.TrimPrefix(r.URL.Path, "/"+f.bucket+"/"))
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

func (f *fakeGCS) upload(w http.ResponseWriter, r *http.Request) {
	mediaType, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") {
		http.Error(w, "expected multipart upload", http.StatusBadRequest)
		return
	}
	reader := multipart.NewReader(r.Body, params["boundary"])

	var meta struct {
		Name string `json:"name"`
	}
	metaPart, err := reader.NextPart()
	if err != nil || json.NewDecoder(metaPart).Decode(&meta) != nil {
		http.Error(w, "bad metadata part", http.StatusBadRequest)
		return
	}
	mediaPart, err := reader.NextPart()
	if err != nil {
		http.Error(w, "missing media part", http.StatusBadRequest)
		return
	}
	data, err := io.ReadAll(mediaPart)
	if err != nil {
		http.Error(w, "read media", http.StatusBadRequest)
		return
	}
	name := meta.Name
	if name == "" {
		name = r.URL.Query().Get("name")
	}
	f.put(name, data)
	writeJSON(w, f.resource(name, len(data)))
}

func (f *fakeGCS) list(w http.ResponseWriter, prefix string) {
	items := []map[string]any{}
	for _, name := range f.names() {
		if strings.HasPrefix(name, prefix) {
			f.mu.Lock()
			size := len(f.objects[name])
			f.mu.Unlock()
			items = append(items, f.resource(name, size))
		}
	}
	writeJSON(w, map[string]any{"kind": "storage#objects", "items": items})
}

func (f *fakeGCS) download(w http.ResponseWriter, name string) {
	f.mu.Lock()
	data, ok := f.objects[name]
	f.mu.Unlock()
	if !ok {
		http.Error(w, "no such object", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}

func (f *fakeGCS) resource(name string, size int) map[string]any {
	return map[string]any{
		"kind":        "storage#object",
		"bucket":      f.bucket,
		"name":        name,
		"size":        strconv.Itoa(size),
		"generation":  "1",
		"contentType": "application/json",
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
