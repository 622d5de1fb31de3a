package cloud

import (
	"encoding/base64"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodePasswordReversible(t *testing.T) {
	for _, pw := range []string{"abc", "p@ss w0rd!", "ünicode-☃", "==trailing=="} {
		encoded := EncodePassword(pw)
		decoded, err := base64.StdEncoding.DecodeString(encoded)
		require.NoError(t, err)
		assert.Equal(t, []byte(pw), decoded)
	}
}

func TestExtractKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://host/share?key=ABC=123", "123"},
		{"https://cloud.packetsender.com/abcdef", "abcdef"},
		{"https://cloud.packetsender.com/?key=xyz", "xyz"},
		{"  bare-key  ", "bare-key"},
		{"https://host/trailing/", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractKey(tt.in))
		})
	}
}

func TestNewLoginRequest(t *testing.T) {
	creds := Credentials{Username: " alice ", Password: "secret"}

	login := NewLoginRequest(creds, false)
	assert.Equal(t, KindLogin, login.Kind)
	assert.Equal(t, http.MethodPost, login.Method())
	assert.Equal(t, "alice", login.Form.Get("un"))
	assert.Equal(t, EncodePassword("secret"), login.Form.Get("pw64"))
	assert.False(t, login.Form.Has("newaccount"))
	assert.NotEmpty(t, login.ID)

	create := NewLoginRequest(creds, true)
	assert.Equal(t, KindCreateAccount, create.Kind)
	assert.Equal(t, "1", create.Form.Get("newaccount"))
	assert.NotEqual(t, login.ID, create.ID)
}

func TestNewUploadRequest(t *testing.T) {
	creds := Credentials{Username: "alice", Password: "secret"}

	private := NewUploadRequest(creds, Upload{SetName: " lab set "}, []byte(`[]`))
	assert.Equal(t, KindUpload, private.Kind)
	assert.Equal(t, "lab set", private.Form.Get("setname"))
	assert.False(t, private.Form.Has("makepublic"))
	assert.False(t, private.Form.Has("pubblurb"))
	assert.Equal(t, "[]", private.Form.Get("packetjson"))

	public := NewUploadRequest(creds, Upload{SetName: "lab", Public: true, Description: " for everyone "}, []byte(`[]`))
	assert.Equal(t, "1", public.Form.Get("makepublic"))
	assert.Equal(t, "for everyone", public.Form.Get("pubblurb"))
}

func TestNewFetchRequest(t *testing.T) {
	req := NewFetchRequest("k1")
	assert.Equal(t, KindFetchByKey, req.Kind)
	assert.Equal(t, http.MethodGet, req.Method())
	assert.Equal(t, "k1", req.Key)
	assert.Nil(t, req.Form)
}
