package zconfig

import "testing"

func TestParseLocatorRoundTrip(t *testing.T) {
	cases := []string{
		"tcp/127.0.0.1:7447",
		"udp/224.0.0.224:7447",
		"raweth/eth0",
		"serial/ttyUSB0#baudrate=115200",
		"tls/example.org:7447#cert=client.pem;key=client.key",
	}
	for _, s := range cases {
		loc, err := ParseLocator(s)
		if err != nil {
			t.Fatalf("ParseLocator(%q): %v", s, err)
		}
		if got := loc.String(); len(loc.Params) <= 1 && got != s {
			t.Fatalf("String() round-trip: got %q, want %q", got, s)
		}
	}
}

func TestParseLocatorErrors(t *testing.T) {
	bad := []string{
		"tcp127.0.0.1:7447",  // missing /
		"sctp/1.2.3.4:1",     // unknown proto
		"tcp/",               // empty address
		"tcp/1.2.3.4:1#key",  // malformed param
	}
	for _, s := range bad {
		if _, err := ParseLocator(s); err == nil {
			t.Fatalf("ParseLocator(%q): expected error, got nil", s)
		}
	}
}

func TestConfigJSONRoundTrip(t *testing.T) {
	c := Default()
	c.Connect = []string{"tcp/10.0.0.1:7447"}
	b, err := c.MarshalJSON()
	if err != nil {
		t.Fatal(err)
	}
	var got Config
	if err := got.UnmarshalJSON(b); err != nil {
		t.Fatal(err)
	}
	if got.Mode != c.Mode || got.LeaseMs != c.LeaseMs || len(got.Connect) != 1 {
		t.Fatalf("round trip mismatch: %+v vs %+v", got, c)
	}
}

func TestInfoJSON(t *testing.T) {
	info := Info{LocalZID: "ab12", LocalResources: 3}
	b, err := info.JSON()
	if err != nil {
		t.Fatal(err)
	}
	if len(b) == 0 {
		t.Fatal("expected non-empty JSON")
	}
}
