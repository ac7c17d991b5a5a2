// Package manager is the single entry point of the notification pipeline.
//
// An Emit call walks a message through authorization, rate and abuse
// guarding, atomic persistence, and live routing. Work is serialized per
// recipient so one user's notifications always arrive in creation order,
// while different recipients proceed in parallel. When a recipient
// reconnects, the manager replays their pending backlog in order, skipping
// anything already in flight.
//
//	mgr, err := manager.New(storage, validator, tr, directory,
//		manager.WithGuard(g),
//		manager.WithAudit(auditLog),
//		manager.WithPurge(time.Hour, 30*24*time.Hour),
//	)
//	if err != nil {
//		return err
//	}
//	go mgr.Run(ctx)
//
//	out, err := mgr.SendToUser(ctx, sender, "user-42", notification.Message{
//		Category: notification.CategoryUser,
//		Severity: notification.SeverityInfo,
//		Title:    "Export finished",
//		Body:     "Your report is ready for download.",
//	})
package manager
