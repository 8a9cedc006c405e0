// Package registry stores service advertisements for the discovery engine.
//
// Advertisements come from two places. Internal advertisements are published
// by this host (from configuration) and are the ones offered back to the
// network when another participant searches. Discovered advertisements are
// learned from NOTIFY messages and search responses, and age out once their
// max-age has passed.
//
// # Usage Example
//
//	reg := registry.New()
//	reg.Publish(registry.Advertisement{
//	    ID:          "uuid:1234::urn:schemas-upnp-org:device:MediaServer:1",
//	    Protocol:    "ssdp",
//	    URI:         "http://192.168.1.10:8200/rootDesc.xml",
//	    ServiceType: "urn:schemas-upnp-org:device:MediaServer:1",
//	}, true)
//
//	ad, ok := reg.Advertisement("ssdp", "urn:schemas-upnp-org:device:MediaServer:1")
//
// # Subscriptions
//
// Subscribe registers a callback invoked on every Publish. The websocket feed
// and the terminal watch view both consume the registry this way.
//
// # Thread Safety
//
// Registry is safe for concurrent use. Subscribers run on the publishing
// goroutine, outside the registry lock, and must not block.
package registry
