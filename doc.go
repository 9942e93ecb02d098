// Package bootphase provides series boot phases: reusable units of an application boot sequence
// that run a fixed list of asynchronous steps one at a time, in order, stopping at the first step
// that reports an error.
//
// Quick Start
//
// 	phase, err := bootphase.New(
// 		bootphase.NamedFunc("config", loadConfig),
// 		bootphase.NamedFunc("database", connectDatabase),
// 		bootphase.NamedFunc("cache", warmCache),
// 	)
// 	if err != nil {
// 		return err
// 	}
//
// 	// Every step receives ctx and app, followed by its continuation.
// 	phase.Invoke(ctx, func(err error) {
// 		// All steps have completed, or one of them failed with err.
// 	}, app)
//
// A step signals that it is done by calling the continuation it was given, once, optionally with
// an error. It may do so before returning, or later from any goroutine:
//
// 	func connectDatabase(ctx context.Context, args []any, next bootphase.Next) {
// 		app := args[0].(*App)
// 		go func() {
// 			db, err := sql.Open("postgres", app.DSN)
// 			app.DB = db
// 			next(err)
// 		}()
// 	}
//
// Phases are steps themselves, so they nest. Package sequence composes named phases into a boot
// pipeline that runs them serially or concurrently.
//
// Diagnostics are written at verbosity 1 to the logr.Logger set with Phase.WithLogger, or to the
// one found on the invocation context.
package bootphase
