// Package session owns the signed-in dashboard user.
//
// A Store restores a persisted session at startup, logs users in and out
// and keeps the persisted tokens in step with the ones the API client
// renews. Sessions are persisted in a Storage: a JSON file by default, or
// process memory, Redis or SQLite.
//
//	store := session.New(session.Options{Client: client, Storage: storage})
//	if err := store.Restore(ctx); err != nil {
//		return err
//	}
//	if store.HasPermission(rbac.ActionCreate, rbac.ResourceCourse, &rbac.Context{UniversityID: id}) {
//		// show the create button
//	}
package session
