package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/embedprep/internal/config"
	"github.com/dgallion1/embedprep/internal/dataset"
	"github.com/dgallion1/embedprep/internal/generate"
	"github.com/dgallion1/embedprep/internal/normalize"
	"github.com/dgallion1/embedprep/internal/pipeline"
	"github.com/dgallion1/embedprep/internal/storage"
)

const testKey = "secret"

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeGen struct{}

func (fakeGen) Generate(_ context.Context, req generate.Request) (string, error) {
	if strings.Contains(req.Prompt, "BOOM") {
		return "", errors.New("generation failed")
	}
	return `[{"anchor":"what does the section say","negative":"An unrelated passage about something else entirely."}]`, nil
}

type fakeProvider struct{}

func (fakeProvider) Generate(ctx context.Context, req generate.Request) (string, error) {
	return fakeGen{}.Generate(ctx, req)
}
func (fakeProvider) Name() string  { return "fake" }
func (fakeProvider) Model() string { return "fake-1" }
func (fakeProvider) Close() error  { return nil }

func testConfig() config.Config {
	cfg := config.Defaults()
	cfg.APIKey = testKey
	cfg.WorkerCount = 1
	cfg.MaxQueueSize = 4
	cfg.BatchSize = 2
	return cfg
}

// newSplitServer has no job pipeline.
func newSplitServer(t *testing.T) *Server {
	t.Helper()
	s := NewServer(nil, nil, quiet, testConfig())
	s.normalizer = normalize.New(nil)
	return s
}

func newJobServer(t *testing.T) (*Server, *storage.Local) {
	t.Helper()
	cfg := testConfig()
	bucket, err := storage.NewLocal(t.TempDir())
	require.NoError(t, err)

	b := dataset.NewBuilder(fakeGen{}, nil, dataset.WithLogger(quiet), dataset.WithConcurrency(2))
	orch := pipeline.NewOrchestrator(cfg, b, bucket, quiet)
	orch.Start(context.Background())
	t.Cleanup(orch.Stop)

	gen := generate.NewClient(fakeProvider{}, generate.WithLogger(quiet))
	return NewServer(orch, gen, quiet, cfg), bucket
}

func do(s *Server, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Authorization", "Bearer "+testKey)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func multipartBody(t *testing.T, field string, files map[string]string, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, content := range files {
		fw, err := mw.CreateFormFile(field, name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

const doc = "# Guide\nThis paragraph is long enough to be used for pair generation by the builder.\n\n## Setup\nInstall **it** first, then run the tool with defaults.\n\n```sh\n# not a header\n```\n"

func TestHealth_NoAuth(t *testing.T) {
	s := newSplitServer(t)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestAuth(t *testing.T) {
	s := newSplitServer(t)

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/split", strings.NewReader(doc)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/split", strings.NewReader(doc))
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuth_EmptyKeyRejectsEverything(t *testing.T) {
	cfg := testConfig()
	cfg.APIKey = ""
	s := NewServer(nil, nil, quiet, cfg)

	req := httptest.NewRequest(http.MethodPost, "/api/split", strings.NewReader(doc))
	req.Header.Set("Authorization", "Bearer ")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSplit_RawBody(t *testing.T) {
	s := newSplitServer(t)
	rec := do(s, http.MethodPost, "/api/split", strings.NewReader(doc), "text/markdown")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var out struct {
		Sections []struct {
			Header   string `json:"section_header"`
			Text     string `json:"section_text"`
			Level    int    `json:"header_level"`
			Metadata struct {
				Parents  map[string]string `json:"parents"`
				Siblings []string          `json:"siblings"`
			} `json:"metadata"`
		} `json:"sections"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out.Sections, 2)
	assert.Equal(t, "Guide", out.Sections[0].Header)
	assert.Equal(t, "Setup", out.Sections[1].Header)
	assert.Equal(t, map[string]string{"h1": "Guide"}, out.Sections[1].Metadata.Parents)
	assert.NotNil(t, out.Sections[0].Metadata.Siblings)
	assert.Contains(t, out.Sections[1].Text, "# not a header")
}

func TestSplit_NoHeadersIsEmptyArray(t *testing.T) {
	s := newSplitServer(t)
	rec := do(s, http.MethodPost, "/api/split", strings.NewReader("just text"), "text/plain")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"sections":[]}`, rec.Body.String())
}

func TestSplit_Multipart(t *testing.T) {
	s := newSplitServer(t)
	body, ct := multipartBody(t, "file", map[string]string{"notes.md": doc}, nil)
	rec := do(s, http.MethodPost, "/api/split", body, ct)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	sections := decode(t, rec)["sections"].([]any)
	assert.Len(t, sections, 2)
}

func TestSplit_MultipartHTML(t *testing.T) {
	s := newSplitServer(t)
	html := "<html><body><h2>Intro</h2><p>Hello there.</p></body></html>"
	body, ct := multipartBody(t, "file", map[string]string{"page.html": html}, nil)
	rec := do(s, http.MethodPost, "/api/split", body, ct)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	sections := decode(t, rec)["sections"].([]any)
	require.NotEmpty(t, sections)
	var headers []string
	for _, sec := range sections {
		headers = append(headers, sec.(map[string]any)["section_header"].(string))
	}
	assert.Contains(t, headers, "Intro")
}

func TestSplit_MultipartUnsupported(t *testing.T) {
	s := newSplitServer(t)
	body, ct := multipartBody(t, "file", map[string]string{"image.png": "binary"}, nil)
	rec := do(s, http.MethodPost, "/api/split", body, ct)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSplit_Normalize(t *testing.T) {
	s := newSplitServer(t)
	rec := do(s, http.MethodPost, "/api/split?normalize=true", strings.NewReader(doc), "text/markdown")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	sections := decode(t, rec)["sections"].([]any)
	setup := sections[1].(map[string]any)
	meta := setup["metadata"].(map[string]any)
	assert.Equal(t, true, meta["normalized"])
	assert.NotNil(t, meta["token_count"])
	assert.NotContains(t, setup["section_text"], "**")
	assert.NotNil(t, meta["original_content"])
}

func TestOutline(t *testing.T) {
	s := newSplitServer(t)
	rec := do(s, http.MethodPost, "/api/outline", strings.NewReader(doc), "text/markdown")
	require.Equal(t, http.StatusOK, rec.Code)

	outline := decode(t, rec)["outline"].([]any)
	require.Len(t, outline, 1)
	root := outline[0].(map[string]any)
	assert.Equal(t, "Guide", root["header"])
	children := root["children"].([]any)
	require.Len(t, children, 1)
	assert.Equal(t, "Setup", children[0].(map[string]any)["header"])

	rec = do(s, http.MethodPost, "/api/outline", strings.NewReader(""), "text/markdown")
	assert.JSONEq(t, `{"outline":[]}`, rec.Body.String())
}

func TestJobs_UnavailableWithoutPipeline(t *testing.T) {
	s := newSplitServer(t)
	rec := do(s, http.MethodGet, "/api/jobs/abc/status", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	rec = do(s, http.MethodGet, "/api/stats/llm", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func waitDone(t *testing.T, s *Server, pollURL string) map[string]any {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		rec := do(s, http.MethodGet, pollURL, nil, "")
		require.Equal(t, http.StatusOK, rec.Code)
		snap := decode(t, rec)
		switch snap["status"] {
		case string(pipeline.StatusCompleted), string(pipeline.StatusPartial),
			string(pipeline.StatusFailed), string(pipeline.StatusDupSkipped):
			return snap
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job at %s did not finish", pollURL)
	return nil
}

func TestCreateJob_CompletesAndDeduplicates(t *testing.T) {
	s, bucket := newJobServer(t)

	body, ct := multipartBody(t, "file", map[string]string{"guide.md": doc}, map[string]string{"kind": "triplets"})
	rec := do(s, http.MethodPost, "/api/jobs", body, ct)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	resp := decode(t, rec)
	assert.Equal(t, "triplets", resp["kind"])
	assert.Equal(t, "queued", resp["status"])
	poll := resp["poll_url"].(string)
	assert.Equal(t, "/api/jobs/"+resp["job_id"].(string)+"/status", poll)

	snap := waitDone(t, s, poll)
	assert.Equal(t, string(pipeline.StatusCompleted), snap["status"])
	hash := snap["content_hash"].(string)
	require.NotEmpty(t, hash)

	ok, err := bucket.Exists(context.Background(), pipeline.OutputObject(hash, pipeline.KindTriplets))
	require.NoError(t, err)
	assert.True(t, ok)

	// Same bytes again are skipped.
	body, ct = multipartBody(t, "file", map[string]string{"guide.md": doc}, map[string]string{"kind": "triplets"})
	rec = do(s, http.MethodPost, "/api/jobs", body, ct)
	require.Equal(t, http.StatusAccepted, rec.Code)
	snap = waitDone(t, s, decode(t, rec)["poll_url"].(string))
	assert.Equal(t, string(pipeline.StatusDupSkipped), snap["status"])

	// Listing and deleting the output.
	rec = do(s, http.MethodGet, "/api/outputs?prefix="+hash[:16], nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["outputs"].([]any), 1)

	rec = do(s, http.MethodDelete, "/api/outputs/"+hash[:16]+"/triplets", nil, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = do(s, http.MethodDelete, "/api/outputs/"+hash[:16]+"/triplets", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateJob_Validation(t *testing.T) {
	s, _ := newJobServer(t)

	body, ct := multipartBody(t, "file", map[string]string{"guide.md": doc}, map[string]string{"kind": "quads"})
	rec := do(s, http.MethodPost, "/api/jobs", body, ct)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	body, ct = multipartBody(t, "file", map[string]string{"photo.png": "x"}, nil)
	rec = do(s, http.MethodPost, "/api/jobs", body, ct)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	body, ct = multipartBody(t, "other", map[string]string{"guide.md": doc}, nil)
	rec = do(s, http.MethodPost, "/api/jobs", body, ct)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(s, http.MethodGet, "/api/jobs/missing/status", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBatchJobs(t *testing.T) {
	s, _ := newJobServer(t)

	files := map[string]string{
		"a.md":    "# A\nThe first document body has plenty of words to count as a chunk.\n",
		"b.png":   "nope",
		"c.jsonl": `{"section_header":"C","section_text":"A stored chunk that is long enough to generate pairs from."}` + "\n",
	}
	body, ct := multipartBody(t, "files", files, map[string]string{"kind": "pairs"})
	rec := do(s, http.MethodPost, "/api/jobs/batch", body, ct)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	jobs := decode(t, rec)["jobs"].([]any)
	require.Len(t, jobs, 3)

	var accepted, rejected int
	for _, j := range jobs {
		entry := j.(map[string]any)
		if _, bad := entry["error"]; bad {
			rejected++
			assert.Equal(t, "b.png", entry["filename"])
			continue
		}
		accepted++
		snap := waitDone(t, s, entry["poll_url"].(string))
		assert.Equal(t, string(pipeline.StatusCompleted), snap["status"], snap)
	}
	assert.Equal(t, 2, accepted)
	assert.Equal(t, 1, rejected)
}

func TestDeleteOutput_BadInput(t *testing.T) {
	s, _ := newJobServer(t)
	rec := do(s, http.MethodDelete, "/api/outputs/zzzz/pairs", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = do(s, http.MethodDelete, "/api/outputs/abcd/quads", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLLMStats(t *testing.T) {
	s, _ := newJobServer(t)
	rec := do(s, http.MethodGet, "/api/stats/llm", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode(t, rec)
	assert.Equal(t, "fake-1", resp["model"])
	assert.Equal(t, "fake", resp["provider"])
	assert.Contains(t, resp, "stats")
	assert.Contains(t, resp, "queue_depth")
}

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"../../etc/passwd": "passwd",
		"a..b.md":          "a_b.md",
		"":                 "unnamed",
		"dir/file.md":      "file.md",
	}
	for in, want := range cases {
		assert.Equal(t, want, sanitizeFilename(in), in)
	}
}
