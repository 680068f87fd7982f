package packet

import (
	"fmt"
	"strings"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// Describe renders a one-line summary of a raw IPv4 frame for debug logs.
func Describe(raw []byte) string {
	pkt := gopacket.NewPacket(raw, layers.LayerTypeIPv4, gopacket.Default)

	var parts []string
	if ip, ok := pkt.Layer(layers.LayerTypeIPv4).(*layers.IPv4); ok {
		parts = append(parts, fmt.Sprintf("IPv4 %s > %s ttl=%d len=%d", ip.SrcIP, ip.DstIP, ip.TTL, ip.Length))
	}
	if icmp, ok := pkt.Layer(layers.LayerTypeICMPv4).(*layers.ICMPv4); ok {
		parts = append(parts, fmt.Sprintf("ICMPv4 %s id=%d seq=%d", icmp.TypeCode, icmp.Id, icmp.Seq))
	}
	if errLayer := pkt.ErrorLayer(); errLayer != nil {
		parts = append(parts, "decode error: "+errLayer.Error().Error())
	}
	if len(parts) == 0 {
		return fmt.Sprintf("%d undecodable bytes", len(raw))
	}
	return strings.Join(parts, " | ")
}
