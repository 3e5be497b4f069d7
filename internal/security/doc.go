// Package security summarises an engine configuration into a Report and
// flags settings that weaken it. It performs no I/O.
package security
