// Package watch runs buildwatch's long-lived watch session. It opens an
// esbuild context, starts esbuild's watch mode, waits for the first build,
// prints a single status line, and then keeps the session alive until the
// process is told to stop. Rebuilds are reported through the logger, with
// output changes detected by content hash. Optionally the config file is
// watched and the session replaced when it changes.
package watch
