// Package metrics exposes Prometheus collectors for the SSDP discovery engine.
//
// Each Metrics value owns a private registry so that several engines (and
// tests) can run in one process without colliding on collector names. The
// HTTP handler returned by Handler serves that registry.
//
// All recording methods accept a nil receiver and do nothing, so components
// can take an optional *Metrics without guarding every call site.
package metrics
