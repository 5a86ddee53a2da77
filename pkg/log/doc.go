/*
Package log provides structured logging for Eidetica using zerolog.

The global Logger is initialized via Init and scoped per-component with
WithComponent, WithTree, and WithPeer. Output is JSON or console
depending on Config.JSONOutput; both forms carry a timestamp.

Every package that does I/O (backend, sync, transaction) logs through a
component-scoped child logger rather than the bare global logger, so log
lines can be filtered by component in production.
*/
package log
