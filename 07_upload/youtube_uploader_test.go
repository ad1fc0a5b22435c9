package upload

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"trendwave-pipeline/config"
	"trendwave-pipeline/types"

	"golang.org/x/oauth2"
	"google.golang.org/api/option"
)

func clearEnv(t *testing.T) {
	t.Setenv("YOUTUBE_CLIENT_ID", "")
	t.Setenv("YOUTUBE_CLIENT_SECRET", "")
	t.Setenv("YOUTUBE_REFRESH_TOKEN", "")
}

func writeSecrets(t *testing.T, dir, tokenURL string) string {
	t.Helper()
	path := filepath.Join(dir, "client_secrets.json")
	doc := fmt.Sprintf(`{"installed":{"client_id":"cid","client_secret":"csecret",
		"auth_uri":"https://accounts.example.com/auth","token_uri":%q,
		"redirect_uris":["http://localhost"]}}`, tokenURL)
	if err := os.WriteFile(path, []byte(doc), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func testUploader(t *testing.T) (*Uploader, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Upload.ClientSecrets = filepath.Join(dir, "client_secrets.json")
	cfg.Upload.TokenFile = filepath.Join(dir, "token", "youtube_token.json")
	return New(cfg), dir
}

func TestTokenSourceNoCredentials(t *testing.T) {
	clearEnv(t)
	u, _ := testUploader(t)
	if _, err := u.tokenSource(context.Background()); !errors.Is(err, ErrNoCredentials) {
		t.Errorf("err = %v, want ErrNoCredentials", err)
	}
}

func TestTokenSourceFromEnv(t *testing.T) {
	t.Setenv("YOUTUBE_CLIENT_ID", "id")
	t.Setenv("YOUTUBE_CLIENT_SECRET", "secret")
	t.Setenv("YOUTUBE_REFRESH_TOKEN", "refresh")
	u, _ := testUploader(t)
	ts, err := u.tokenSource(context.Background())
	if err != nil || ts == nil {
		t.Fatalf("tokenSource = %v, %v", ts, err)
	}
}

func TestTokenSourceCachedToken(t *testing.T) {
	clearEnv(t)
	u, dir := testUploader(t)
	writeSecrets(t, dir, "http://127.0.0.1:1/token")
	tok := &oauth2.Token{AccessToken: "cached", TokenType: "Bearer", Expiry: time.Now().Add(time.Hour)}
	if err := saveToken(u.cfg.Upload.TokenFile, tok); err != nil {
		t.Fatal(err)
	}
	u.notify = func(string) { t.Error("consent flow started despite cached token") }

	ts, err := u.tokenSource(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	got, err := ts.Token()
	if err != nil || got.AccessToken != "cached" {
		t.Errorf("token = %+v, %v", got, err)
	}
}

func TestTokenSourceConsentFlow(t *testing.T) {
	clearEnv(t)
	var exchanged string
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		exchanged = r.Form.Get("code")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"fresh","refresh_token":"rt","token_type":"Bearer","expires_in":3600}`)
	}))
	defer tokenSrv.Close()

	u, dir := testUploader(t)
	writeSecrets(t, dir, tokenSrv.URL+"/token")
	u.notify = func(authURL string) {
		parsed, err := url.Parse(authURL)
		if err != nil {
			t.Errorf("bad auth URL: %v", err)
			return
		}
		q := parsed.Query()
		redirect := q.Get("redirect_uri") + "?state=" + url.QueryEscape(q.Get("state")) + "&code=the-code"
		resp, err := http.Get(redirect)
		if err != nil {
			t.Errorf("redirect: %v", err)
			return
		}
		resp.Body.Close()
	}

	ts, err := u.tokenSource(context.Background())
	if err != nil {
		t.Fatalf("tokenSource: %v", err)
	}
	tok, err := ts.Token()
	if err != nil || tok.AccessToken != "fresh" {
		t.Fatalf("token = %+v, %v", tok, err)
	}
	if exchanged != "the-code" {
		t.Errorf("exchanged code = %q", exchanged)
	}
	saved, err := loadToken(u.cfg.Upload.TokenFile)
	if err != nil || saved.RefreshToken != "rt" {
		t.Errorf("saved token = %+v, %v", saved, err)
	}
}

func TestAuthorizeRejectsWrongState(t *testing.T) {
	clearEnv(t)
	u, dir := testUploader(t)
	writeSecrets(t, dir, "http://127.0.0.1:1/token")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var status int
	u.notify = func(authURL string) {
		parsed, _ := url.Parse(authURL)
		resp, err := http.Get(parsed.Query().Get("redirect_uri") + "?state=forged&code=x")
		if err == nil {
			status = resp.StatusCode
			resp.Body.Close()
		}
		cancel()
	}
	if _, err := u.tokenSource(ctx); err == nil {
		t.Error("expected error when consent never completes")
	}
	if status != http.StatusBadRequest {
		t.Errorf("forged state status = %d", status)
	}
}

func TestUploadSendsMetadata(t *testing.T) {
	clearEnv(t)
	var gotBody string
	var gotQuery url.Values
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/upload/youtube/v3/videos") {
			http.NotFound(w, r)
			return
		}
		gotQuery = r.URL.Query()
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"abc123"}`)
	}))
	defer api.Close()

	u, dir := testUploader(t)
	writeSecrets(t, dir, "http://127.0.0.1:1/token")
	tok := &oauth2.Token{AccessToken: "cached", TokenType: "Bearer", Expiry: time.Now().Add(time.Hour)}
	if err := saveToken(u.cfg.Upload.TokenFile, tok); err != nil {
		t.Fatal(err)
	}
	u.opts = []option.ClientOption{option.WithEndpoint(api.URL + "/")}

	video := filepath.Join(dir, "video.mp4")
	if err := os.WriteFile(video, []byte("fake video"), 0644); err != nil {
		t.Fatal(err)
	}
	meta := &types.UploadMetadata{Title: "Test", Description: "desc", Tags: []string{"Shorts"}, CategoryID: "27", Visibility: "public"}

	res, err := u.Upload(context.Background(), video, meta)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if res.ID != "abc123" || !strings.HasSuffix(res.URL, "abc123") {
		t.Errorf("result = %+v", res)
	}
	if !strings.Contains(gotQuery.Get("part"), "snippet") {
		t.Errorf("part = %q", gotQuery.Get("part"))
	}
	for _, want := range []string{`"title":"Test"`, `"categoryId":"27"`, `"privacyStatus":"public"`, `"selfDeclaredMadeForKids":false`, "fake video"} {
		if !strings.Contains(gotBody, want) {
			t.Errorf("request body missing %s", want)
		}
	}
}

func TestLogUpload(t *testing.T) {
	dir := t.TempDir()
	path, err := LogUpload(&Result{ID: "id1", URL: "https://youtu.be/id1"}, "/out/v.mp4", dir, &types.UploadMetadata{Title: "T"})
	if err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var entry map[string]string
	if err := json.Unmarshal(data, &entry); err != nil {
		t.Fatal(err)
	}
	if entry["video_id"] != "id1" || entry["title"] != "T" || entry["video_file"] != "/out/v.mp4" {
		t.Errorf("entry = %v", entry)
	}
}

func TestLogUploadReportsErrors(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "no", "such", "dir")
	path, err := LogUpload(&Result{ID: "id1"}, "v.mp4", missing, &types.UploadMetadata{Title: "T"})
	if err == nil || path != "" {
		t.Errorf("LogUpload into missing dir = %q, %v", path, err)
	}
}

func TestProgressLogger(t *testing.T) {
	p := progressLogger()
	p(0, 0)
	p(50, 100)
	p(100, 100)
}
