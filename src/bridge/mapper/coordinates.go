// Package mapper collects the small pure translation helpers shared between
// the breakpoint ledger, the command router, and the event translator: line
// and column conversions, and the session-id lookup from a context.
package mapper

// ClientToAdapterLine converts a 0-based client line to the adapter's
// 1-based convention.
func ClientToAdapterLine(line int) int { return line + 1 }

// AdapterToClientLine converts a 1-based adapter line to the client's
// 0-based convention.
func AdapterToClientLine(line int) int { return line - 1 }

// ClientToAdapterColumn converts a 0-based client column to the adapter's
// 1-based convention.
func ClientToAdapterColumn(col int) int { return col + 1 }

// AdapterToClientColumn converts a 1-based adapter column to the client's
// 0-based convention.
func AdapterToClientColumn(col int) int { return col - 1 }
