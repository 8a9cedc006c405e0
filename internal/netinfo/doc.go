// Package netinfo resolves the local network interface and IPv4 address the
// discovery engine joins the multicast group on.
//
// The address doubles as the engine's identity for self-suppression: any
// datagram whose source IP equals it is treated as our own echo and dropped.
package netinfo
