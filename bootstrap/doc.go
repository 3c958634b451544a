// Package bootstrap runs a captiongen process: typed config, logger,
// ordered components and lifecycle hooks.
//
//	app, err := bootstrap.NewApp(cfg)
//	app.RegisterComponent(storageComponent)
//	app.OnConfigure(func(ctx context.Context, a *bootstrap.App[*app.Config]) error {
//	    // build the pipeline on started infrastructure, register the server
//	    return a.RegisterComponent(serverComponent)
//	})
//	err = app.Run(ctx)
//
// Components registered before Run start first. Components registered
// during OnConfigure start after the configure phase, so business code can
// be built on running infrastructure. Run blocks until SIGINT or SIGTERM;
// RunTask runs a finite task with the same lifecycle.
package bootstrap
