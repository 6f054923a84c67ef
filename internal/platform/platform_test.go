package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/ppiankov/postbot/internal/config"
)

func testCreds() config.Credentials {
	return config.Credentials{APIKey: "ck", APISecret: "cs", AccessToken: "at", AccessSecret: "as"}
}

func xWithServer(url string) *X {
	x := NewX(testCreds())
	x.apiBase = url
	x.uploadBase = url
	return x
}

func TestX_CreatePost(t *testing.T) {
	var got tweetRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/2/tweets" || r.Method != http.MethodPost {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); !strings.HasPrefix(auth, "OAuth ") || !strings.Contains(auth, `oauth_consumer_key="ck"`) {
			t.Errorf("authorization = %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"id":"100","text":"hi"}}`))
	}))
	defer srv.Close()

	id, err := xWithServer(srv.URL).CreatePost(context.Background(), "hi", []string{"m1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "100" {
		t.Errorf("id = %q, want 100", id)
	}
	if got.Text != "hi" || got.Media == nil || got.Media.MediaIDs[0] != "m1" || got.Reply != nil {
		t.Errorf("request = %+v", got)
	}
}

func TestX_Reply(t *testing.T) {
	var raw map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&raw)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"id":"101"}}`))
	}))
	defer srv.Close()

	id, err := xWithServer(srv.URL).Reply(context.Background(), "B", "100", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "101" {
		t.Errorf("id = %q", id)
	}
	reply, _ := raw["reply"].(map[string]any)
	if reply["in_reply_to_tweet_id"] != "100" {
		t.Errorf("request = %v", raw)
	}
	if _, ok := raw["media"]; ok {
		t.Errorf("media sent without ids: %v", raw)
	}
}

func TestX_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"title":"Too Many Requests"}`))
	}))
	defer srv.Close()

	_, err := xWithServer(srv.URL).CreatePost(context.Background(), "hi", nil)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.Status != http.StatusTooManyRequests || !strings.Contains(apiErr.Body, "Too Many") {
		t.Errorf("api error = %+v", apiErr)
	}
}

func TestX_EmptyText(t *testing.T) {
	x := xWithServer("http://127.0.0.1:0")
	if _, err := x.CreatePost(context.Background(), "  ", nil); !errors.Is(err, ErrEmptyText) {
		t.Errorf("err = %v, want ErrEmptyText", err)
	}
	if _, err := x.Reply(context.Background(), "text", "", nil); err == nil {
		t.Error("expected error for missing in_reply_to")
	}
}

func TestX_UploadMedia(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/1.1/media/upload.json" {
			t.Errorf("path = %s", r.URL.Path)
		}
		file, _, err := r.FormFile("media")
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		data, _ := io.ReadAll(file)
		if string(data) != "imagebytes" {
			t.Errorf("uploaded %q", data)
		}
		_, _ = w.Write([]byte(`{"media_id":7,"media_id_string":"7"}`))
	}))
	defer srv.Close()

	id, err := xWithServer(srv.URL).UploadMedia(context.Background(), []byte("imagebytes"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "7" {
		t.Errorf("id = %q, want 7", id)
	}
}

func TestX_UploadMediaFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	if _, err := xWithServer(srv.URL).UploadMedia(context.Background(), []byte("x")); err == nil {
		t.Fatal("expected error")
	}
	if _, err := xWithServer(srv.URL).UploadMedia(context.Background(), nil); err == nil {
		t.Fatal("expected error for empty image")
	}
}

func TestX_Me(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/2/users/me" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"data":{"id":"1","username":"postbot"}}`))
	}))
	defer srv.Close()

	name, err := xWithServer(srv.URL).Me(context.Background())
	if err != nil || name != "postbot" {
		t.Errorf("me = %q, %v", name, err)
	}
}

func TestDryRun(t *testing.T) {
	var buf bytes.Buffer
	d := NewDryRun(log.New(&buf))
	ctx := context.Background()

	root, err := d.CreatePost(ctx, "root", nil)
	if err != nil {
		t.Fatal(err)
	}
	reply, err := d.Reply(ctx, "reply", root, nil)
	if err != nil {
		t.Fatal(err)
	}
	if root == reply {
		t.Errorf("ids not unique: %q", root)
	}
	if _, err := d.UploadMedia(ctx, []byte("x")); err != nil {
		t.Fatal(err)
	}
	if _, err := d.CreatePost(ctx, "", nil); !errors.Is(err, ErrEmptyText) {
		t.Errorf("err = %v, want ErrEmptyText", err)
	}
	if !strings.Contains(buf.String(), "dry run reply") || !strings.Contains(buf.String(), root) {
		t.Errorf("log = %q", buf.String())
	}
}
