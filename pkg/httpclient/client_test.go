package httpclient

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

// testPayload はテスト用のリクエスト/レスポンスペイロード。
type testPayload struct {
	// Name はテスト用の名前フィールド。
	Name string `json:"name"`
	// Value はテスト用の値フィールド。
	Value int `json:"value"`
}

// TestGetJSON はGetJSON関数を検証する。
func TestGetJSON(t *testing.T) {
	t.Parallel()

	t.Run("GETリクエストを送信してレスポンスを取得できること", func(t *testing.T) {
		t.Parallel()

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				t.Errorf("method = %s, want GET", r.Method)
			}
			if r.URL.Path != "/rest/v1/chats" {
				t.Errorf("path = %s, want /rest/v1/chats", r.URL.Path)
			}
			w.Header().Set("Content-Type", "application/json")
			io.WriteString(w, `{"name":"chat","value":1}`)
		}))
		t.Cleanup(ts.Close)

		var result testPayload
		if err := New(ts.URL).GetJSON(context.Background(), "/rest/v1/chats", &result); err != nil {
			t.Fatalf("GetJSON() error = %v", err)
		}
		if result.Name != "chat" || result.Value != 1 {
			t.Errorf("result = %+v, want {chat 1}", result)
		}
	})

	t.Run("非2xxレスポンスはステータスとボディを含むエラーになること", func(t *testing.T) {
		t.Parallel()

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			io.WriteString(w, "upstream down")
		}))
		t.Cleanup(ts.Close)

		err := New(ts.URL).GetJSON(context.Background(), "/", nil)
		if err == nil {
			t.Fatal("非2xxでエラーが返らなかった")
		}
		if !strings.Contains(err.Error(), "503") || !strings.Contains(err.Error(), "upstream down") {
			t.Errorf("エラーにステータスとボディが含まれない: %v", err)
		}
	})
}

// TestPostJSON はPostJSON関数を検証する。
func TestPostJSON(t *testing.T) {
	t.Parallel()

	t.Run("JSONボディでPOSTリクエストを送信できること", func(t *testing.T) {
		t.Parallel()

		var receivedBody []byte
		var receivedContentType string
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			receivedBody, _ = io.ReadAll(r.Body)
			receivedContentType = r.Header.Get("Content-Type")
			io.WriteString(w, `{"name":"ok","value":200}`)
		}))
		t.Cleanup(ts.Close)

		var result testPayload
		err := New(ts.URL).PostJSON(context.Background(), "/send", testPayload{Name: "req", Value: 7}, &result)
		if err != nil {
			t.Fatalf("PostJSON() error = %v", err)
		}
		if string(receivedBody) != `{"name":"req","value":7}` {
			t.Errorf("body = %s", receivedBody)
		}
		if receivedContentType != "application/json" {
			t.Errorf("Content-Type = %s, want application/json", receivedContentType)
		}
		if result.Name != "ok" || result.Value != 200 {
			t.Errorf("result = %+v, want {ok 200}", result)
		}
	})
}

// TestPostForm はPostForm関数を検証する。
func TestPostForm(t *testing.T) {
	t.Parallel()

	t.Run("フォームエンコードでPOSTリクエストを送信できること", func(t *testing.T) {
		t.Parallel()

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if ct := r.Header.Get("Content-Type"); ct != "application/x-www-form-urlencoded" {
				t.Errorf("Content-Type = %s, want application/x-www-form-urlencoded", ct)
			}
			if err := r.ParseForm(); err != nil {
				t.Errorf("フォームの解析に失敗: %v", err)
			}
			if r.PostForm.Get("grant_type") != "test-grant" {
				t.Errorf("grant_type = %s, want test-grant", r.PostForm.Get("grant_type"))
			}
			io.WriteString(w, `{"name":"token","value":1}`)
		}))
		t.Cleanup(ts.Close)

		var result testPayload
		form := url.Values{"grant_type": {"test-grant"}}
		if err := New(ts.URL).PostForm(context.Background(), "", form, &result); err != nil {
			t.Fatalf("PostForm() error = %v", err)
		}
		if result.Name != "token" {
			t.Errorf("result = %+v, want name=token", result)
		}
	})
}

// TestWithHeader は既定ヘッダーの付与を検証する。
func TestWithHeader(t *testing.T) {
	t.Parallel()

	t.Run("既定ヘッダーが全リクエストに付与されること", func(t *testing.T) {
		t.Parallel()

		var received http.Header
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			received = r.Header.Clone()
			io.WriteString(w, `{}`)
		}))
		t.Cleanup(ts.Close)

		client := New(ts.URL).
			WithHeader("apikey", "service-key").
			WithHeader("Authorization", "Bearer service-key")
		if err := client.GetJSON(context.Background(), "/", nil); err != nil {
			t.Fatalf("GetJSON() error = %v", err)
		}
		if received.Get("apikey") != "service-key" {
			t.Errorf("apikey = %s, want service-key", received.Get("apikey"))
		}
		if received.Get("Authorization") != "Bearer service-key" {
			t.Errorf("Authorization = %s", received.Get("Authorization"))
		}
	})

	t.Run("元のクライアントにはヘッダーが追加されないこと", func(t *testing.T) {
		t.Parallel()

		base := New("http://localhost")
		_ = base.WithHeader("apikey", "service-key")
		if len(base.defaultHeaders) != 0 {
			t.Errorf("元のクライアントのヘッダー数 = %d, want 0", len(base.defaultHeaders))
		}
	})
}
