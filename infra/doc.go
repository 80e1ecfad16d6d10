// Package infra holds the adapters that talk to external systems. Each
// subpackage implements an interface declared under core and is wired
// together by app.
package infra
