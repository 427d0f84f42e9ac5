package netutil

import (
	"net"
	"testing"
)

func TestSuspicious(t *testing.T) {
	ipnet := func(s string) net.Addr {
		_, n, err := net.ParseCIDR(s)
		if err != nil {
			t.Fatalf("ParseCIDR(%q): %v", s, err)
		}
		return n
	}

	tests := []struct {
		name  string
		iface string
		addrs []net.Addr
		want  bool
	}{
		{"wireguard", "wg0", nil, true},
		{"openvpn", "tun0", nil, true},
		{"warp", "CloudflareWARP", nil, true},
		{"cgnat", "eth0", []net.Addr{ipnet("100.100.1.2/32")}, true},
		{"cgnat ipaddr", "eth0", []net.Addr{&net.IPAddr{IP: net.ParseIP("100.64.0.9")}}, true},
		{"plain lan", "eth0", []net.Addr{ipnet("192.168.1.10/24")}, false},
		{"just outside cgnat", "en0", []net.Addr{ipnet("100.128.0.1/32")}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := suspicious(tt.iface, tt.addrs); got != tt.want {
				t.Errorf("suspicious(%q)=%v, want %v", tt.iface, got, tt.want)
			}
		})
	}
}
