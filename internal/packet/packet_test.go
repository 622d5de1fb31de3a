package packet

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestImportJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []Packet
	}{
		{
			name: "single packet",
			in:   `[{"name":"ping","hexString":"70 69 6E 67","toIP":"10.0.0.1","port":55005,"tcpOrUdp":"UDP"}]`,
			want: []Packet{{Name: "ping", HexString: "70 69 6E 67", ToIP: "10.0.0.1", Port: 55005, Protocol: "UDP"}},
		},
		{
			name: "unnamed entries dropped",
			in:   `[{"name":"  "},{"name":"keep","toIP":"host","port":80,"tcpOrUdp":"TCP"}]`,
			want: []Packet{{Name: "keep", ToIP: "host", Port: 80, Protocol: "TCP"}},
		},
		{
			name: "loosely typed fields",
			in:   `[{"name":"a","port":"80","fromPort":" 5000 ","tcpOrUdp":"TCP"},{"name":"b","port":443.0,"repeat":"1.5","sendResponse":true}]`,
			want: []Packet{
				{Name: "a", Port: 80, FromPort: 5000, Protocol: "TCP"},
				{Name: "b", Port: 443, Repeat: 1.5},
			},
		},
		{
			name: "bad entries skipped, rest kept",
			in:   `[42, "text", null, {"name":"ok","port":"not a number"}, {"name":7}]`,
			want: []Packet{{Name: "ok"}, {Name: "7"}},
		},
		{name: "empty", in: "", want: nil},
		{name: "malformed", in: `{"name":`, want: nil},
		{name: "object not array", in: `{"name":"x"}`, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ImportJSON([]byte(tt.in))
			if len(tt.want) == 0 {
				if len(got) != 0 {
					t.Fatalf("expected no packets, got %d", len(got))
				}
				return
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ImportJSON mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestExportJSONReadsBack(t *testing.T) {
	packets := []Packet{
		{Name: "a", HexString: "00 01", ToIP: "127.0.0.1", Port: 1, Protocol: "TCP", Repeat: 1.5},
		{Name: "b", ToIP: "example.com", Port: 443, Protocol: "SSL", RequestPath: "/x"},
	}

	data, err := ExportJSON(packets)
	if err != nil {
		t.Fatalf("ExportJSON: %v", err)
	}
	if diff := cmp.Diff(packets, ImportJSON(data)); diff != "" {
		t.Errorf("packets changed through export (-want +got):\n%s", diff)
	}
}

func TestExportJSONNil(t *testing.T) {
	data, err := ExportJSON(nil)
	if err != nil {
		t.Fatalf("ExportJSON: %v", err)
	}
	if string(data) != "[]" {
		t.Errorf("expected empty array, got %s", data)
	}
}
