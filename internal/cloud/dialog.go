package cloud

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"pktcloud/internal/logging"
	"pktcloud/internal/packet"
	"pktcloud/internal/settings"
)

var (
	// ErrBusy is returned when a submission arrives while a request is outstanding.
	ErrBusy = errors.New("a cloud request is already in progress")
	// ErrNoKey is returned when an import link contains no key.
	ErrNoKey = errors.New("no key found in import link")
)

// RequestState is Pending from submission until its reply is handled.
type RequestState int

const (
	Idle RequestState = iota
	Pending
)

func (s RequestState) String() string {
	if s == Pending {
		return "pending"
	}
	return "idle"
}

// View is the dialog page currently shown.
type View int

const (
	ViewLogin View = iota
	ViewResults
	ViewShare
)

// SettingsStore is the persisted key/value store credentials come from.
type SettingsStore interface {
	String(key, def string) string
	Bool(key string, def bool) bool
	SetMany(kv map[string]any) error
}

// PacketSource lists the locally stored packets.
type PacketSource interface {
	FetchAll(ctx context.Context) ([]packet.Packet, error)
}

// PacketMerger receives imported packets for the host's packet store.
type PacketMerger interface {
	Merge(ctx context.Context, packets []packet.Packet) (int, error)
}

// Notification is a message the user must acknowledge.
type Notification struct {
	Title   string
	Text    string
	IsError bool
}

// Outcome is what handling one reply produced.
type Outcome struct {
	Reply        Reply
	Notification Notification
	// FollowUp is set when the reply chains into another request, which the
	// caller must send. The dialog is already Pending on it.
	FollowUp *Request
	// TransportErr is the send error, if any. The reply was still interpreted.
	TransportErr error
}

// Row is one line of the results table. Tag indexes the dialog's packet sets
// and stays with the row when the table is sorted.
type Row struct {
	Tag         int
	Description string
	Count       int
}

// SortColumn selects the results table sort key.
type SortColumn int

const (
	SortByDescription SortColumn = iota
	SortByCount
)

// ImportResult describes a completed import.
type ImportResult struct {
	Description string
	Merged      int
}

// Dialog is the cloud dialog state machine. It is not safe for concurrent
// use; front ends drive it from their single event loop.
type Dialog struct {
	settings SettingsStore
	source   PacketSource
	merger   PacketMerger

	creds      Credentials
	createMode bool
	state      RequestState
	view       View
	pending    *Request
	sets       []PacketSet
	localCount int
}

// NewDialog wires the dialog to its collaborators. Call Open before use.
func NewDialog(st SettingsStore, source PacketSource, merger PacketMerger) *Dialog {
	return &Dialog{settings: st, source: source, merger: merger}
}

// Open loads remembered credentials and counts the local packets.
func (d *Dialog) Open(ctx context.Context) error {
	d.creds = Credentials{
		Username: d.settings.String(settings.KeyUsername, ""),
		Password: d.settings.String(settings.KeyPassword, ""),
		Remember: d.settings.Bool(settings.KeyRemember, false),
	}
	d.view = ViewLogin
	d.state = Idle
	d.sets = nil
	return d.RefreshLocalCount(ctx)
}

// RefreshLocalCount re-reads the number of locally stored packets.
func (d *Dialog) RefreshLocalCount(ctx context.Context) error {
	packets, err := d.source.FetchAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to list local packets: %w", err)
	}
	d.localCount = len(packets)
	return nil
}

// ReloadCredentials picks up credentials another process saved. Form edits in
// progress are kept while a request is pending.
func (d *Dialog) ReloadCredentials() {
	if d.state == Pending || !d.settings.Bool(settings.KeyRemember, false) {
		return
	}
	d.creds.Username = d.settings.String(settings.KeyUsername, d.creds.Username)
	d.creds.Password = d.settings.String(settings.KeyPassword, d.creds.Password)
	d.creds.Remember = true
}

// Close discards fetched packet sets.
func (d *Dialog) Close() {
	d.sets = nil
	d.pending = nil
	d.state = Idle
}

func (d *Dialog) Credentials() Credentials { return d.creds }
func (d *Dialog) SetCredentials(c Credentials) { d.creds = c }
func (d *Dialog) State() RequestState { return d.state }
func (d *Dialog) View() View { return d.view }
func (d *Dialog) SetView(v View) { d.view = v }
func (d *Dialog) CreateMode() bool { return d.createMode }
func (d *Dialog) LocalPacketCount() int { return d.localCount }
func (d *Dialog) PendingRequest() *Request { return d.pending }
func (d *Dialog) Sets() []PacketSet { return d.sets }

// ToggleCreateMode switches between logging in and signing up.
func (d *Dialog) ToggleCreateMode() {
	d.createMode = !d.createMode
	if !d.createMode {
		d.creds.Confirm = ""
	}
}

// SubmitLogin validates the form and returns the login or sign-up request.
func (d *Dialog) SubmitLogin() (*Request, error) {
	if d.state == Pending {
		return nil, ErrBusy
	}
	if err := ValidateCredentials(d.creds, d.createMode); err != nil {
		return nil, err
	}

	d.persistCredentials()
	return d.begin(NewLoginRequest(d.creds, d.createMode)), nil
}

// SubmitUpload validates the form and returns a request saving every local
// packet under up.SetName.
func (d *Dialog) SubmitUpload(ctx context.Context, up Upload) (*Request, error) {
	if d.state == Pending {
		return nil, ErrBusy
	}
	if err := ValidateCredentials(d.creds, false); err != nil {
		return nil, err
	}
	if err := ValidateSetName(up.SetName); err != nil {
		return nil, err
	}
	if up.Public {
		if err := ValidatePublicDescription(up.Description); err != nil {
			return nil, err
		}
	}

	packets, err := d.source.FetchAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list local packets: %w", err)
	}
	d.localCount = len(packets)
	payload, err := packet.ExportJSON(packets)
	if err != nil {
		return nil, err
	}

	d.persistCredentials()
	return d.begin(NewUploadRequest(d.creds, up, payload)), nil
}

// SubmitImportKey returns a fetch for the set named by a share link or bare key.
func (d *Dialog) SubmitImportKey(input string) (*Request, error) {
	if d.state == Pending {
		return nil, ErrBusy
	}
	key := ExtractKey(input)
	if key == "" {
		return nil, ErrNoKey
	}
	return d.begin(NewFetchRequest(key)), nil
}

func (d *Dialog) begin(req *Request) *Request {
	d.state = Pending
	d.pending = req
	logging.CloudDebug("submitted %s request %s", req.Kind, req.ID)
	return req
}

// persistCredentials always saves the remember flag, and the username and
// password only when it is set.
func (d *Dialog) persistCredentials() {
	kv := map[string]any{settings.KeyRemember: d.creds.Remember}
	if d.creds.Remember {
		kv[settings.KeyUsername] = d.creds.Username
		kv[settings.KeyPassword] = d.creds.Password
	}
	if err := d.settings.SetMany(kv); err != nil {
		logging.SettingsError("failed to persist credentials: %v", err)
	}
}

// HandleReply returns the dialog to Idle and acts on the response body.
// transportErr is recorded but the body is interpreted regardless, so a failed
// send reads as "no packets".
func (d *Dialog) HandleReply(body string, transportErr error) Outcome {
	req := d.pending
	d.state = Idle
	d.pending = nil

	out := Outcome{Reply: Interpret(body), TransportErr: transportErr}
	if transportErr != nil {
		logging.CloudWarn("transport error: %v", transportErr)
	}

	switch out.Reply.Kind {
	case ReplySuccess:
		out.Notification = Notification{Title: "Success", Text: out.Reply.Text}
		if d.createMode {
			// The account exists now; log in with the same credentials.
			d.createMode = false
			d.creds.Confirm = ""
			d.view = ViewLogin
			if next, err := d.SubmitLogin(); err == nil {
				out.FollowUp = next
			} else {
				logging.CloudWarn("follow-up login not sent: %v", err)
			}
		}

	case ReplyServerError:
		out.Notification = Notification{Title: "Error", Text: out.Reply.Text, IsError: true}

	case ReplyDataset:
		if len(out.Reply.Sets) > 0 {
			d.sets = out.Reply.Sets
			d.view = ViewResults
			out.Notification = Notification{
				Title: "Success",
				Text:  fmt.Sprintf("Found %d sets of packets!", len(d.sets)),
			}
		} else {
			out.Notification = Notification{Title: "Error", Text: "Did not fetch any packets", IsError: true}
		}
	}

	if req != nil {
		logging.WithRequestID(logging.CategoryCloud, req.ID).Info("reply handled: %s", out.Reply.Kind)
	}
	return out
}

// Rows lists the fetched sets in collection order.
func (d *Dialog) Rows() []Row {
	rows := make([]Row, len(d.sets))
	for i, s := range d.sets {
		rows[i] = Row{Tag: i, Description: s.Description, Count: len(s.Packets)}
	}
	return rows
}

// SortRows orders rows in place by column. Tags move with their rows.
func SortRows(rows []Row, col SortColumn, descending bool) {
	less := func(a, b Row) bool {
		if col == SortByCount {
			return a.Count < b.Count
		}
		return strings.ToLower(a.Description) < strings.ToLower(b.Description)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if descending {
			return less(rows[j], rows[i])
		}
		return less(rows[i], rows[j])
	})
}

// ImportSelected hands the set tagged by tag to the packet merger. With no
// selection or an unknown tag it does nothing and returns (nil, nil).
func (d *Dialog) ImportSelected(ctx context.Context, tag int, selected bool) (*ImportResult, error) {
	if !selected || tag < 0 || tag >= len(d.sets) {
		return nil, nil
	}
	set := d.sets[tag]
	n, err := d.merger.Merge(ctx, set.Packets)
	if err != nil {
		return nil, fmt.Errorf("failed to import %q: %w", set.Description, err)
	}
	logging.Cloud("imported %d packets from set %q", n, set.Description)
	if err := d.RefreshLocalCount(ctx); err != nil {
		logging.CloudWarn("%v", err)
	}
	return &ImportResult{Description: set.Description, Merged: n}, nil
}
