// Package handlers contains reusable HTTP building blocks: health checking and
// middleware.
//
// Health checks are registered by name and executed in parallel:
//
//	checker := handlers.NewCompositeHealthChecker("v1")
//	checker.AddCheck("database", handlers.NewPingCheck(store))
//	checker.AddOptionalCheck("cache", handlers.NewPingCheck(cache))
//
//	status := checker.Check(ctx)
//
// Middleware composes with Chain:
//
//	h := handlers.ChainHandler(
//	    mux,
//	    handlers.SecurityHeadersMiddleware,
//	    handlers.RequestSizeLimitMiddleware(1<<20),
//	)
package handlers
