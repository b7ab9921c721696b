// Package shutdown coordinates graceful process termination.
//
// A Handler collects named cleanup hooks while the process starts up and
// runs them in reverse registration order once SIGINT or SIGTERM arrives,
// the caller's context ends, or Trigger is called (for example when a
// listener fails). All hooks share one deadline.
//
// Usage:
//
//	sd := shutdown.NewHandler(15*time.Second, log)
//	sd.OnShutdown("badger", engine.CloseContext)
//	sd.OnShutdown("http", srv.Shutdown)
//	if err := sd.Wait(); err != nil { ... }
package shutdown
