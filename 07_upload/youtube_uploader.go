package upload

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"trendwave-pipeline/config"
	"trendwave-pipeline/types"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

// ErrNoCredentials means neither env credentials nor a client secrets file were found
var ErrNoCredentials = errors.New("no YouTube credentials: set YOUTUBE_CLIENT_ID/SECRET/REFRESH_TOKEN or provide upload.client_secrets")

// Result identifies an uploaded video
type Result struct {
	ID  string
	URL string
}

// Uploader handles YouTube video upload via Data API v3
type Uploader struct {
	cfg *config.Config
	// notify receives the consent URL during the installed-app flow
	notify func(authURL string)
	opts   []option.ClientOption
}

// New creates a new Uploader
func New(cfg *config.Config) *Uploader {
	return &Uploader{
		cfg: cfg,
		notify: func(authURL string) {
			fmt.Printf("Open this URL in your browser to authorize uploads:\n\n%s\n\n", authURL)
		},
	}
}

// Upload sends videoFile with meta as a resumable insert and reports progress
func (u *Uploader) Upload(ctx context.Context, videoFile string, meta *types.UploadMetadata) (*Result, error) {
	log.Println("[upload] Authenticating with YouTube API...")

	ts, err := u.tokenSource(ctx)
	if err != nil {
		return nil, fmt.Errorf("youtube auth: %w", err)
	}

	opts := append([]option.ClientOption{option.WithHTTPClient(oauth2.NewClient(ctx, ts))}, u.opts...)
	svc, err := youtube.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("youtube service: %w", err)
	}

	f, err := os.Open(videoFile)
	if err != nil {
		return nil, fmt.Errorf("open video file: %w", err)
	}
	defer f.Close()

	if fi, err := f.Stat(); err == nil {
		log.Printf("[upload] Uploading %q (%.1f MB)", meta.Title, float64(fi.Size())/1024/1024)
	}

	chunk := u.cfg.Upload.ChunkSizeMB
	if chunk <= 0 {
		chunk = 8
	}
	call := svc.Videos.Insert([]string{"snippet", "status"}, toVideo(meta)).
		Media(f, googleapi.ChunkSize(chunk*1024*1024)).
		ProgressUpdater(progressLogger()).
		Context(ctx)

	uploaded, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("youtube upload: %w", err)
	}

	res := &Result{ID: uploaded.Id, URL: fmt.Sprintf("https://www.youtube.com/shorts/%s", uploaded.Id)}
	log.Printf("[upload] ✅ Uploaded! Video ID: %s", res.ID)
	log.Printf("[upload] Video URL: %s", res.URL)
	return res, nil
}

func toVideo(meta *types.UploadMetadata) *youtube.Video {
	return &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:       meta.Title,
			Description: meta.Description,
			Tags:        meta.Tags,
			CategoryId:  meta.CategoryID,
		},
		Status: &youtube.VideoStatus{
			PrivacyStatus:           meta.Visibility,
			SelfDeclaredMadeForKids: meta.MadeForKids,
			ForceSendFields:         []string{"SelfDeclaredMadeForKids"},
		},
	}
}

// progressLogger logs each new whole-percent step of an upload
func progressLogger() googleapi.ProgressUpdater {
	last := -1
	return func(current, total int64) {
		if total <= 0 {
			return
		}
		pct := int(current * 100 / total)
		if pct != last {
			last = pct
			log.Printf("[upload] 🔼 Uploading... %d%%", pct)
		}
	}
}

// tokenSource picks env refresh-token credentials first, then the client
// secrets file with its cached token, then an interactive consent.
func (u *Uploader) tokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	clientID := os.Getenv("YOUTUBE_CLIENT_ID")
	clientSecret := os.Getenv("YOUTUBE_CLIENT_SECRET")
	refreshToken := os.Getenv("YOUTUBE_REFRESH_TOKEN")
	if clientID != "" && clientSecret != "" && refreshToken != "" {
		conf := &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       []string{youtube.YoutubeUploadScope},
		}
		token := &oauth2.Token{
			RefreshToken: refreshToken,
			Expiry:       time.Now().Add(-time.Hour), // force refresh
		}
		return conf.TokenSource(ctx, token), nil
	}

	secrets, err := os.ReadFile(u.cfg.Upload.ClientSecrets)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoCredentials
		}
		return nil, err
	}
	conf, err := google.ConfigFromJSON(secrets, youtube.YoutubeUploadScope)
	if err != nil {
		return nil, fmt.Errorf("parse client secrets: %w", err)
	}

	if tok, err := loadToken(u.cfg.Upload.TokenFile); err == nil {
		return conf.TokenSource(ctx, tok), nil
	}

	tok, err := u.authorize(ctx, conf)
	if err != nil {
		return nil, err
	}
	if err := saveToken(u.cfg.Upload.TokenFile, tok); err != nil {
		log.Printf("[upload] Warning: could not cache token: %v", err)
	}
	return conf.TokenSource(ctx, tok), nil
}

// authorize runs the installed-app flow with a loopback redirect
func (u *Uploader) authorize(ctx context.Context, conf *oauth2.Config) (*oauth2.Token, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("loopback listener: %w", err)
	}
	defer ln.Close()

	conf.RedirectURL = fmt.Sprintf("http://%s/", ln.Addr().String())
	state := fmt.Sprintf("st%d", time.Now().UnixNano())

	codes := make(chan string, 1)
	errs := make(chan error, 1)
	srv := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch {
		case q.Get("state") != state:
			http.Error(w, "state mismatch", http.StatusBadRequest)
			return
		case q.Get("error") != "":
			errs <- fmt.Errorf("authorization denied: %s", q.Get("error"))
		case q.Get("code") == "":
			http.Error(w, "missing code", http.StatusBadRequest)
			return
		default:
			codes <- q.Get("code")
		}
		fmt.Fprintln(w, "Authorization received. You can close this window.")
	})}
	go srv.Serve(ln)
	defer srv.Close()

	u.notify(conf.AuthCodeURL(state, oauth2.AccessTypeOffline))

	select {
	case code := <-codes:
		tok, err := conf.Exchange(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("token exchange: %w", err)
		}
		return tok, nil
	case err := <-errs:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func loadToken(path string) (*oauth2.Token, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, err
	}
	if tok.RefreshToken == "" && tok.AccessToken == "" {
		return nil, fmt.Errorf("token file %s is empty", path)
	}
	return &tok, nil
}

func saveToken(path string, tok *oauth2.Token) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	data, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// LogUpload saves the upload result to the logs directory
func LogUpload(res *Result, videoFile, outputDir string, meta *types.UploadMetadata) (string, error) {
	entry := map[string]interface{}{
		"video_id":    res.ID,
		"video_url":   res.URL,
		"title":       meta.Title,
		"uploaded_at": time.Now().UTC().Format(time.RFC3339),
		"video_file":  videoFile,
	}

	logFile := filepath.Join(outputDir, fmt.Sprintf("upload_%s.json", time.Now().Format("20060102_150405.000")))
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal upload log: %w", err)
	}
	if err := os.WriteFile(logFile, data, 0644); err != nil {
		return "", fmt.Errorf("write upload log: %w", err)
	}

	log.Printf("[upload] Upload log saved: %s", logFile)
	return logFile, nil
}
