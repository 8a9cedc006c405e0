// Package discovery browses DNS-SD services over mDNS and turns them into
// registry advertisements with protocol "mdns".
//
// It runs alongside the SSDP engine so that one registry holds every service
// visible on the local network, whichever protocol announced it.
//
// # Discovery Process
//
// Each browse round:
//  1. Sends mDNS queries for every configured service type (default "_http._tcp")
//  2. Collects service entries until the round timeout expires
//  3. Converts entries to advertisements, preferring IPv4 addresses
//  4. De-duplicates by service instance name
//
// Run repeats rounds on an interval and publishes the results as discovered
// (non-internal) advertisements.
//
// # Usage Example
//
//	scanner := discovery.NewScanner("_http._tcp", "_ipp._tcp")
//	ads, err := scanner.Scan(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, ad := range ads {
//	    fmt.Printf("%s -> %s\n", ad.ID, ad.URI)
//	}
//
// # Network Requirements
//
// - Requires multicast support on the network interface
// - Firewall must allow mDNS (UDP port 5353)
package discovery
