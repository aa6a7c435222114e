// Package dashboard serves the Tutoria dashboard to its signed-in operator.
//
// Page views (/dashboard, /courses, ...) sit behind the protected route
// middleware and answer with a JSON View: the data loaded from the
// backends and the actions the user's role unlocks. JSON actions under
// /api answer 401 or 403 instead of redirecting.
//
//	srv := dashboard.NewServer(dashboard.Options{
//		Client:   client,
//		Sessions: store,
//		Metrics:  metrics,
//	})
//	err := srv.Run(ctx, dashboard.HTTPConfig{Addr: "127.0.0.1:3000", ShutdownTimeout: 15 * time.Second})
package dashboard
