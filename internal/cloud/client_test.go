package cloud

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	c, err := NewClient(ClientConfig{Endpoint: ts.URL + "/", UserAgent: "pktcloud-test"})
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func TestClientPostsForm(t *testing.T) {
	var got url.Values
	var contentType, userAgent, method string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		contentType = r.Header.Get("Content-Type")
		userAgent = r.Header.Get("User-Agent")
		body, _ := io.ReadAll(r.Body)
		got, _ = url.ParseQuery(string(body))
		io.WriteString(w, "success: logged in")
	})

	req := NewLoginRequest(Credentials{Username: "alice", Password: "secret"}, true)
	body, err := c.Do(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "success: logged in", body)
	assert.Equal(t, http.MethodPost, method)
	assert.Equal(t, "application/x-www-form-urlencoded", contentType)
	assert.Equal(t, "pktcloud-test", userAgent)
	assert.Equal(t, "alice", got.Get("un"))
	assert.Equal(t, EncodePassword("secret"), got.Get("pw64"))
	assert.Equal(t, "1", got.Get("newaccount"))
}

func TestClientFetchesByKey(t *testing.T) {
	var method, key string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		key = r.URL.Query().Get("key")
		io.WriteString(w, "[]")
	})

	body, err := c.Do(context.Background(), NewFetchRequest(ExtractKey("https://host/share?key=ABC=123")))
	require.NoError(t, err)
	assert.Equal(t, "[]", body)
	assert.Equal(t, http.MethodGet, method)
	assert.Equal(t, "123", key)
}

func TestClientReturnsBodyOnHTTPError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, "error: database unavailable")
	})

	body, err := c.Do(context.Background(), NewFetchRequest("k"))
	require.NoError(t, err)
	assert.Equal(t, "error: database unavailable", body)
}

func TestClientKeepsCookies(t *testing.T) {
	var second string
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			http.SetCookie(w, &http.Cookie{Name: "session", Value: "abc", Path: "/"})
			io.WriteString(w, "success")
			return
		}
		if ck, err := r.Cookie("session"); err == nil {
			second = ck.Value
		}
		io.WriteString(w, "[]")
	})

	_, err := c.Do(context.Background(), NewLoginRequest(Credentials{Username: "alice", Password: "secret"}, false))
	require.NoError(t, err)
	_, err = c.Do(context.Background(), NewFetchRequest("k"))
	require.NoError(t, err)
	assert.Equal(t, "abc", second)
}

func TestClientTransportError(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	endpoint := ts.URL + "/"
	ts.Close()

	c, err := NewClient(ClientConfig{Endpoint: endpoint})
	require.NoError(t, err)
	t.Cleanup(c.Close)

	body, err := c.Do(context.Background(), NewFetchRequest("k"))
	assert.Error(t, err)
	assert.Empty(t, body)
}

func TestClientTimeout(t *testing.T) {
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(ts.Close)
	t.Cleanup(func() { close(release) })

	c, err := NewClient(ClientConfig{Endpoint: ts.URL, Timeout: 50 * time.Millisecond})
	require.NoError(t, err)
	t.Cleanup(c.Close)

	_, err = c.Do(context.Background(), NewFetchRequest("k"))
	assert.Error(t, err)
}

func TestNewClientRejectsBadEndpoint(t *testing.T) {
	for _, endpoint := range []string{"", "cloud.example", "://bad"} {
		_, err := NewClient(ClientConfig{Endpoint: endpoint})
		assert.Error(t, err, endpoint)
	}
}

func TestExchangeOverHTTP(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `[{"description":"shared","packetjson":"[{\"name\":\"p\"}]"}]`)
	})
	d, _, _ := newTestDialog(t)

	req, err := d.SubmitImportKey("https://cloud.example/share?key=xyz")
	require.NoError(t, err)

	outcomes := Exchange(context.Background(), c, d, req)
	require.Len(t, outcomes, 1)
	assert.Equal(t, "Found 1 sets of packets!", outcomes[0].Notification.Text)
	assert.Equal(t, []Row{{Tag: 0, Description: "shared", Count: 1}}, d.Rows())
}
