// Package models contains the GORM persistence models. Domain types carry no
// ORM tags; each model converts to and from its domain counterpart.
//
//   - base.go: shared ID, timestamp and version columns
//   - order.go: orders, qc_records and order_audit_events
//   - partner.go: manufacturers
//   - outbox.go: outbox_events, relayed to the notification sinks
package models
