package cloud

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// Kind is the purpose of a request to the cloud endpoint.
type Kind int

const (
	KindLogin Kind = iota
	KindCreateAccount
	KindUpload
	KindFetchByKey
)

func (k Kind) String() string {
	switch k {
	case KindLogin:
		return "login"
	case KindCreateAccount:
		return "create_account"
	case KindUpload:
		return "upload"
	case KindFetchByKey:
		return "fetch_by_key"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Form field names understood by the cloud endpoint.
const (
	fieldUsername    = "un"
	fieldPassword64  = "pw64"
	fieldNewAccount  = "newaccount"
	fieldSetName     = "setname"
	fieldMakePublic  = "makepublic"
	fieldPublicBlurb = "pubblurb"
	fieldPacketJSON  = "packetjson"
	queryKey         = "key"
)

// Credentials are the login form contents. Confirm is only checked when
// creating an account.
type Credentials struct {
	Username string
	Password string
	Confirm  string
	Remember bool
}

// Upload describes a packet set to save to the cloud.
type Upload struct {
	SetName     string
	Public      bool
	Description string
}

// Request is one exchange with the cloud endpoint: a form POST or a GET by key.
type Request struct {
	ID   string
	Kind Kind
	Form url.Values
	Key  string
}

// Method returns the HTTP method the request is sent with.
func (r *Request) Method() string {
	if r.Kind == KindFetchByKey {
		return http.MethodGet
	}
	return http.MethodPost
}

// EncodePassword base64-encodes the raw password bytes. This keeps the
// password out of plain sight on the wire; it is not encryption.
func EncodePassword(password string) string {
	return base64.StdEncoding.EncodeToString([]byte(password))
}

// ExtractKey pulls the set key out of a share link or a bare key: every '='
// becomes '/', and the last '/'-separated segment is the key.
func ExtractKey(input string) string {
	s := strings.ReplaceAll(strings.TrimSpace(input), "=", "/")
	if i := strings.LastIndex(s, "/"); i >= 0 {
		s = s[i+1:]
	}
	return s
}

func authForm(creds Credentials) url.Values {
	form := url.Values{}
	form.Set(fieldUsername, strings.TrimSpace(creds.Username))
	form.Set(fieldPassword64, EncodePassword(creds.Password))
	return form
}

// NewLoginRequest builds a login, or an account creation when createAccount is set.
func NewLoginRequest(creds Credentials, createAccount bool) *Request {
	form := authForm(creds)
	kind := KindLogin
	if createAccount {
		form.Set(fieldNewAccount, "1")
		kind = KindCreateAccount
	}
	return &Request{ID: uuid.NewString(), Kind: kind, Form: form}
}

// NewUploadRequest builds a save-to-cloud request. packetJSON is the encoded
// packet set (see packet.ExportJSON).
func NewUploadRequest(creds Credentials, up Upload, packetJSON []byte) *Request {
	form := authForm(creds)
	form.Set(fieldSetName, strings.TrimSpace(up.SetName))
	if up.Public {
		form.Set(fieldMakePublic, "1")
		form.Set(fieldPublicBlurb, strings.TrimSpace(up.Description))
	}
	form.Set(fieldPacketJSON, string(packetJSON))
	return &Request{ID: uuid.NewString(), Kind: KindUpload, Form: form}
}

// NewFetchRequest builds an unauthenticated fetch of a shared set by key.
func NewFetchRequest(key string) *Request {
	return &Request{ID: uuid.NewString(), Kind: KindFetchByKey, Key: key}
}
