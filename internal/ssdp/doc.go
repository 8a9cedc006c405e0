// Package ssdp implements a Simple Service Discovery Protocol participant.
//
// The package listens on the SSDP multicast group (239.255.255.250:1900),
// learns about devices from NOTIFY messages and search responses, and answers
// M-SEARCH requests from other participants with the advertisements this host
// publishes locally.
//
// # Components
//
// The package is built from three pieces:
//   - Packet: parses inbound datagram text and builds search requests and
//     search responses. Header names are case-insensitive. Serialization only
//     writes the documented SSDP headers, so extension headers do not survive
//     a parse and re-serialize cycle.
//   - Manager: owns the multicast socket. It binds, joins the group, sends a
//     probe search (MX 120) and then polls with a short receive timeout. I/O
//     failures re-create the socket; after MaxFailures consecutive failures
//     the loop stops with an ExhaustedRetries error.
//   - Engine: classifies every datagram the Manager reads and acts on it.
//     Search requests are answered and advertisements are published to the
//     Sink. Both happen on an Executor, never on the receive goroutine.
//
// Service wires the three together.
//
// # Usage Example
//
//	reg := registry.New()
//	exec := dispatch.NewSerial()
//	defer exec.Close()
//
//	info, err := netinfo.Resolve("")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	svc := ssdp.NewService(ssdp.Options{}, reg, exec, info, nil)
//	if err := svc.Start(ctx); err != nil {
//	    log.Fatal(err) // StartupBind
//	}
//	defer svc.Stop()
//
//	<-svc.Done()
//	if ssdp.IsExhaustedRetries(svc.Err()) {
//	    log.Print("discovery stopped")
//	}
//
// # Classification
//
// Every inbound datagram goes through the same steps:
//  1. Parse. Malformed input is logged at debug level and dropped.
//  2. Self-suppression. Datagrams whose source IP is the local address are
//     dropped, since the host hears its own multicast searches.
//  3. Classify. M-SEARCH is a search request. Anything else with both USN and
//     LOCATION is an advertisement. Everything else is ignored.
//
// A search for ssdp:all is answered once per local advertisement. Any other
// search target is answered only when a local advertisement has exactly that
// service type. Responses echo the requester's ST and are unicast to the
// requester. A failed send is logged and does not stop the remaining sends.
//
// # Error Handling
//
// Errors are *Error values tagged with an ErrorKind:
//   - MalformedPacket: handled inside the engine, never returned
//   - TransientSocketError: triggers socket re-creation
//   - ExhaustedRetries: terminal, reported by Err after Done closes
//   - ResponseSendFailure: logged per response
//   - StartupBindFailure: returned by Start
//
// # Thread Safety
//
// Manager and Service methods are safe for concurrent use. Socket re-creation
// holds the same lock as sends, so a send never races a re-created socket.
// Engine.HandleDatagram is called from the receive goroutine only.
package ssdp
