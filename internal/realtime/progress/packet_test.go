package progress

import "testing"

func TestPercent(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"45% completed", 45},
		{"  100 % done", 100},
		{"0%", 0},
		{"completed 45%", 0},
		{"", 0},
		{"abc", 0},
	}
	for _, tc := range cases {
		if got := Percent(tc.in); got != tc.want {
			t.Fatalf("Percent(%q): want=%d got=%d", tc.in, tc.want, got)
		}
	}
}

func TestParseFrame(t *testing.T) {
	f, err := parseFrame(`0{"sid":"a","pingInterval":100,"pingTimeout":50}`)
	if err != nil || f.kind != frameOpen || f.open.SID != "a" || f.open.liveness().Milliseconds() != 150 {
		t.Fatalf("open: %+v %v", f, err)
	}
	f, err = parseFrame(`40{"sid":"s1"}`)
	if err != nil || f.kind != frameConnect || f.sid != "s1" {
		t.Fatalf("connect: %+v %v", f, err)
	}
	f, err = parseFrame(`42/admin,7["progress",{"progress":"1%"}]`)
	if err != nil || f.kind != frameEvent || f.event != "progress" || len(f.args) != 1 {
		t.Fatalf("namespaced event with ack: %+v %v", f, err)
	}
	f, err = parseFrame(`44{"message":"not authorized"}`)
	if err != nil || f.kind != frameConnectError || f.err != "not authorized" {
		t.Fatalf("connect error: %+v %v", f, err)
	}
	if f, _ := parseFrame("2"); f.kind != framePing {
		t.Fatalf("ping: %+v", f)
	}
	if _, err := parseFrame(`42["progress"`); err == nil {
		t.Fatalf("expected error for truncated event")
	}
}

func TestSocketURL(t *testing.T) {
	cases := map[string]string{
		"http://localhost:5000":        "ws://localhost:5000/socket.io/?EIO=4&transport=websocket",
		"https://api.example.com/":     "wss://api.example.com/socket.io/?EIO=4&transport=websocket",
		"wss://push.example.com/rt/io": "wss://push.example.com/rt/io?EIO=4&transport=websocket",
	}
	for in, want := range cases {
		got, err := socketURL(in)
		if err != nil || got != want {
			t.Fatalf("socketURL(%q): want=%q got=%q err=%v", in, want, got, err)
		}
	}
}
