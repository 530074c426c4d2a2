package capture

import (
	"errors"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/google/gopacket/pcap"
	"github.com/google/gopacket/routing"
	"github.com/sirupsen/logrus"
)

// ErrNoInterfaceFound is fatal: neither traffic sampling nor the routing
// table produced a capture candidate, so there is nothing to capture from.
var ErrNoInterfaceFound = errors.New("no usable capture interface found")

// virtualNameHints excludes known virtual adapter families from
// auto-detection. Matching is case-insensitive on name and description.
var virtualNameHints = []string{
	"loopback", "vmware", "virtualbox", "vethernet", "hyper-v",
	"docker", "veth", "br-", "bridge", "tailscale", "zerotier",
	"wsl", "vpn", "tun", "tap", "wireguard",
}

// ListDevices returns all capture devices the host exposes, in pcap order.
// The index into this list is what the device_index config selects.
func ListDevices() ([]pcap.Interface, error) {
	return pcap.FindAllDevs()
}

// SelectDevice resolves the capture device name. An explicit non-negative
// index wins; otherwise candidates are ranked by observed traffic over
// sampleWindow, falling back to the default-route interface when everything
// is silent.
func SelectDevice(index int, sampleWindow time.Duration) (string, error) {
	devs, err := pcap.FindAllDevs()
	if err != nil {
		return "", err
	}
	if len(devs) == 0 {
		return "", ErrNoInterfaceFound
	}

	if index >= 0 {
		if index >= len(devs) {
			return "", ErrNoInterfaceFound
		}
		return devs[index].Name, nil
	}

	if sampleWindow <= 0 {
		sampleWindow = 3 * time.Second
	}

	if name := sampleTraffic(devs, sampleWindow); name != "" {
		return name, nil
	}
	logrus.Info("capture: no interface showed traffic, falling back to the default route")
	if name := defaultRouteDevice(devs); name != "" {
		return name, nil
	}
	return "", ErrNoInterfaceFound
}

// sampleTraffic listens on every non-virtual candidate concurrently for the
// given window and returns the device that saw the most bytes, or "" when
// nothing moved.
func sampleTraffic(devs []pcap.Interface, window time.Duration) string {
	type sample struct {
		name  string
		bytes uint64
	}

	var wg sync.WaitGroup
	results := make(chan sample, len(devs))

	for _, dev := range devs {
		if isVirtual(dev) || len(dev.Addresses) == 0 {
			continue
		}
		wg.Add(1)
		go func(dev pcap.Interface) {
			defer wg.Done()
			results <- sample{name: dev.Name, bytes: countBytes(dev.Name, window)}
		}(dev)
	}
	wg.Wait()
	close(results)

	var best sample
	for s := range results {
		logrus.Debugf("capture: sampled %s: %d bytes in %s", s.name, s.bytes, window)
		if s.bytes > best.bytes {
			best = s
		}
	}
	if best.bytes == 0 {
		return ""
	}
	logrus.Infof("capture: auto-selected %s (%d bytes observed)", best.name, best.bytes)
	return best.name
}

// countBytes opens a short-lived handle and sums captured packet lengths
// until the window closes. Errors simply score the device at zero.
func countBytes(device string, window time.Duration) uint64 {
	handle, err := pcap.OpenLive(device, 256, false, 100*time.Millisecond)
	if err != nil {
		return 0
	}
	defer handle.Close()

	var total uint64
	deadline := time.Now().Add(window)
	for time.Now().Before(deadline) {
		_, ci, err := handle.ReadPacketData()
		if err != nil {
			if errors.Is(err, pcap.NextErrorTimeoutExpired) {
				continue
			}
			return total
		}
		total += uint64(ci.Length)
	}
	return total
}

// defaultRouteDevice asks the host routing table which interface carries the
// default route and maps it back to a pcap device name.
func defaultRouteDevice(devs []pcap.Interface) string {
	router, err := routing.New()
	if err != nil {
		logrus.Warnf("capture: routing table unavailable: %v", err)
		return ""
	}
	iface, _, _, err := router.Route(net.IPv4(8, 8, 8, 8))
	if err != nil || iface == nil {
		return ""
	}
	for _, dev := range devs {
		if dev.Name == iface.Name {
			return dev.Name
		}
	}
	return ""
}

// isVirtual applies the name/description heuristics for virtual adapters.
func isVirtual(dev pcap.Interface) bool {
	name := strings.ToLower(dev.Name)
	desc := strings.ToLower(dev.Description)
	for _, hint := range virtualNameHints {
		if strings.Contains(name, hint) || strings.Contains(desc, hint) {
			return true
		}
	}
	return false
}
